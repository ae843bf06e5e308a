package airdrop

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"

	"memez-terminal/internal/domain"
	"memez-terminal/internal/infra/fs"

	"github.com/shopspring/decimal"
)

const (
	DefaultBatchSize = 100
	// MaxBatchSize bounds the recipients of one pay transaction.
	MaxBatchSize = 500
	PlansDir     = "airdrops"
)

type Plan struct {
	Hash       string                    `json:"hash"`
	Decimals   int                       `json:"decimals"`
	BatchSize  int                       `json:"batchSize"`
	Recipients []domain.AirdropRecipient `json:"recipients"`
	Batches    []domain.AirdropBatch     `json:"batches"`
	TotalRaw   decimal.Decimal           `json:"totalRaw"`
}

// NewPlan merges duplicate addresses, converts amounts to raw units, orders
// recipients by address and splits them into batches of at most batchSize.
// The same recipients always produce the same plan and hash.
func NewPlan(recipients []domain.AirdropRecipient, decimals, batchSize int) (*Plan, error) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if batchSize > MaxBatchSize {
		return nil, fmt.Errorf("batch size %d exceeds %d", batchSize, MaxBatchSize)
	}
	if decimals < 0 {
		return nil, fmt.Errorf("invalid decimals %d", decimals)
	}
	if len(recipients) == 0 {
		return nil, fmt.Errorf("%w: empty recipient list", ErrInvalidRecipient)
	}

	merged := make(map[string]decimal.Decimal, len(recipients))
	for _, r := range recipients {
		merged[r.Address] = merged[r.Address].Add(r.Amount)
	}

	plan := &Plan{Decimals: decimals, BatchSize: batchSize, TotalRaw: decimal.Zero}
	for addr, amount := range merged {
		raw, err := domain.ToRaw(amount, decimals)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidRecipient, addr, err)
		}
		plan.Recipients = append(plan.Recipients, domain.AirdropRecipient{Address: addr, Amount: amount, Raw: raw})
		plan.TotalRaw = plan.TotalRaw.Add(raw)
	}
	sort.Slice(plan.Recipients, func(i, j int) bool {
		return plan.Recipients[i].Address < plan.Recipients[j].Address
	})

	for start := 0; start < len(plan.Recipients); start += batchSize {
		end := start + batchSize
		if end > len(plan.Recipients) {
			end = len(plan.Recipients)
		}
		batch := domain.AirdropBatch{
			Index:      len(plan.Batches),
			Recipients: plan.Recipients[start:end],
			TotalRaw:   decimal.Zero,
			Status:     domain.BatchPending,
		}
		for _, r := range batch.Recipients {
			batch.TotalRaw = batch.TotalRaw.Add(r.Raw)
		}
		plan.Batches = append(plan.Batches, batch)
	}

	plan.Hash = plan.hash()
	return plan, nil
}

func (p *Plan) hash() string {
	h := sha256.New()
	h.Write([]byte(strconv.Itoa(p.Decimals) + "|" + strconv.Itoa(p.BatchSize) + "\n"))
	for _, r := range p.Recipients {
		h.Write([]byte(r.Address + "," + r.Raw.String() + "\n"))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// RunKey identifies one execution of the plan: the same plan sent from a
// different wallet or in a different coin is a different run.
func (p *Plan) RunKey(coinType, sender string) string {
	sum := sha256.Sum256([]byte(p.Hash + "|" + coinType + "|" + sender))
	return hex.EncodeToString(sum[:])
}

// Save writes the plan to <outDir>/airdrops/<hash prefix>.json.
func (p *Plan) Save(outDir string) (string, error) {
	path := filepath.Join(outDir, PlansDir, p.Hash[:16]+".json")
	if err := fs.WriteJSON(path, p); err != nil {
		return "", err
	}
	return path, nil
}

func LoadPlan(path string) (*Plan, error) {
	var p Plan
	ok, err := fs.ReadJSON(path, &p)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("plan file %s not found", path)
	}
	if p.hash() != p.Hash {
		return nil, fmt.Errorf("plan file %s was modified: hash mismatch", path)
	}
	return &p, nil
}

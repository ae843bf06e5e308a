package airdrop

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"memez-terminal/internal/clients_api/suirpc"
	"memez-terminal/internal/domain"
	"memez-terminal/internal/features/rewards"
	"memez-terminal/internal/infra/log"
	"memez-terminal/internal/infra/metrics"
	"memez-terminal/internal/infra/retry"
	"memez-terminal/internal/storage"
	"memez-terminal/internal/sui"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// maxGasCoins caps the SUI coins passed to one PaySui call.
const maxGasCoins = 255

var ErrInsufficientBalance = errors.New("insufficient balance")

type Chain interface {
	GetAllCoins(ctx context.Context, owner, coinType string) ([]domain.WalletCoin, error)
	PaySui(ctx context.Context, signer string, inputCoins, recipients []string, amounts []decimal.Decimal) (*suirpc.TransactionBytes, error)
	Pay(ctx context.Context, signer string, inputCoins, recipients []string, amounts []decimal.Decimal, gas *string) (*suirpc.TransactionBytes, error)
	ExecuteTransactionBlock(ctx context.Context, txBytes string, signatures []string) (*suirpc.ExecutionResult, error)
}

type Merger interface {
	MergeAll(ctx context.Context, kp *sui.Keypair, coinType string) (*rewards.MergeResult, error)
}

type Runner struct {
	chain   Chain
	merger  Merger
	store   storage.AirdropStore
	backoff retry.Options
	now     func() time.Time
}

type RunnerOption func(*Runner)

func WithBackoff(opts retry.Options) RunnerOption {
	return func(r *Runner) { r.backoff = opts }
}

func NewRunner(chain Chain, merger Merger, store storage.AirdropStore, opts ...RunnerOption) *Runner {
	r := &Runner{
		chain:   chain,
		merger:  merger,
		store:   store,
		backoff: retry.RPCBackoff,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run pays every pending batch of plan from kp's wallet. Progress is keyed by
// the plan's run key, so rerunning an interrupted plan skips batches already
// paid. It stops at the first failed batch and returns the run with the error.
func (r *Runner) Run(ctx context.Context, plan *Plan, coinType string, kp *sui.Keypair) (*domain.AirdropRun, error) {
	coinType, err := sui.NormalizeCoinType(coinType)
	if err != nil {
		return nil, fmt.Errorf("%w: coin type: %v", storage.ErrInvalidInput, err)
	}
	sender := kp.Address()

	run, err := r.loadOrCreate(ctx, plan, coinType, sender)
	if err != nil {
		return nil, err
	}
	if run.Done() {
		log.LogInfo("Airdrop already complete", zap.String("run_id", run.ID), zap.Int("batches", len(run.Batches)))
		return run, nil
	}

	for i := range run.Batches {
		batch := &run.Batches[i]
		if batch.Status == domain.BatchDone {
			continue
		}
		if err := ctx.Err(); err != nil {
			return run, err
		}

		digest, err := r.pay(ctx, kp, coinType, batch)
		batch.Digest = digest
		status := domain.BatchDone
		errMsg := ""
		if err != nil {
			status = domain.BatchFailed
			errMsg = err.Error()
		}
		batch.Status = status
		batch.Error = errMsg
		metrics.AirdropBatches.WithLabelValues(string(status)).Inc()

		if serr := r.store.MarkBatch(ctx, run.ID, batch.Index, digest, status, errMsg); serr != nil {
			log.LogError("Failed to record airdrop batch", zap.String("run_id", run.ID), zap.Int("batch", batch.Index), zap.Error(serr))
			if err == nil {
				return run, fmt.Errorf("record batch %d: %w", batch.Index, serr)
			}
		}

		if err != nil {
			log.LogError("Airdrop batch failed",
				zap.String("run_id", run.ID),
				zap.Int("batch", batch.Index),
				zap.String("digest", digest),
				zap.Error(err))
			return run, fmt.Errorf("batch %d: %w", batch.Index, err)
		}
		log.LogSuccess("Airdrop batch paid",
			zap.String("run_id", run.ID),
			zap.Int("batch", batch.Index),
			zap.Int("recipients", len(batch.Recipients)),
			zap.String("total_raw", batch.TotalRaw.String()),
			zap.String("digest", digest))
	}
	run.UpdatedAt = r.now().UTC()
	return run, nil
}

func (r *Runner) loadOrCreate(ctx context.Context, plan *Plan, coinType, sender string) (*domain.AirdropRun, error) {
	key := plan.RunKey(coinType, sender)
	run, err := r.store.GetRun(ctx, key)
	if err == nil {
		log.LogInfo("Resuming airdrop run", zap.String("run_id", run.ID), zap.String("plan", plan.Hash[:16]))
		return run, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("load airdrop run: %w", err)
	}

	now := r.now().UTC()
	run = &domain.AirdropRun{
		ID:        uuid.NewString(),
		PlanHash:  key,
		CoinType:  coinType,
		Sender:    sender,
		Batches:   make([]domain.AirdropBatch, len(plan.Batches)),
		CreatedAt: now,
		UpdatedAt: now,
	}
	copy(run.Batches, plan.Batches)
	for i := range run.Batches {
		run.Batches[i].Status = domain.BatchPending
		run.Batches[i].Digest = ""
		run.Batches[i].Error = ""
	}
	if err := r.store.UpsertRun(ctx, run); err != nil {
		return nil, fmt.Errorf("create airdrop run: %w", err)
	}
	log.LogInfo("Created airdrop run",
		zap.String("run_id", run.ID),
		zap.String("plan", plan.Hash[:16]),
		zap.Int("batches", len(run.Batches)),
		zap.String("total_raw", plan.TotalRaw.String()))
	return run, nil
}

func (r *Runner) pay(ctx context.Context, kp *sui.Keypair, coinType string, batch *domain.AirdropBatch) (string, error) {
	recipients := make([]string, len(batch.Recipients))
	amounts := make([]decimal.Decimal, len(batch.Recipients))
	for i, rcpt := range batch.Recipients {
		recipients[i] = rcpt.Address
		amounts[i] = rcpt.Raw
	}
	sender := kp.Address()

	if sui.IsSUI(coinType) {
		coins, err := r.chain.GetAllCoins(ctx, sender, coinType)
		if err != nil {
			return "", fmt.Errorf("list gas coins: %w", err)
		}
		sort.SliceStable(coins, func(i, j int) bool { return coins[i].Balance.Cmp(coins[j].Balance) > 0 })
		if len(coins) > maxGasCoins {
			coins = coins[:maxGasCoins]
		}
		total := decimal.Zero
		ids := make([]string, 0, len(coins))
		for _, c := range coins {
			total = total.Add(c.Balance)
			ids = append(ids, c.CoinObjectID)
		}
		if total.LessThan(batch.TotalRaw) {
			return "", fmt.Errorf("%w: have %s, need %s", ErrInsufficientBalance, total, batch.TotalRaw)
		}
		return rewards.SignAndExecute(ctx, r.chain, kp, r.backoff, "pay_sui", func(ctx context.Context) (*suirpc.TransactionBytes, error) {
			return r.chain.PaySui(ctx, sender, ids, recipients, amounts)
		})
	}

	merged, err := r.merger.MergeAll(ctx, kp, coinType)
	if errors.Is(err, rewards.ErrNothingToClaim) {
		return "", fmt.Errorf("%w: no %s coins", ErrInsufficientBalance, coinType)
	}
	if err != nil {
		return "", fmt.Errorf("merge sender coins: %w", err)
	}
	if merged.Primary.Balance.LessThan(batch.TotalRaw) {
		return "", fmt.Errorf("%w: have %s, need %s", ErrInsufficientBalance, merged.Primary.Balance, batch.TotalRaw)
	}
	primary := merged.Primary.CoinObjectID
	return rewards.SignAndExecute(ctx, r.chain, kp, r.backoff, "pay", func(ctx context.Context) (*suirpc.TransactionBytes, error) {
		return r.chain.Pay(ctx, sender, []string{primary}, recipients, amounts, nil)
	})
}

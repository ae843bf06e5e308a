package rewards

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"memez-terminal/internal/clients_api/suirpc"
	"memez-terminal/internal/domain"
	"memez-terminal/internal/infra/log"
	"memez-terminal/internal/infra/metrics"
	"memez-terminal/internal/infra/retry"
	"memez-terminal/internal/storage"
	"memez-terminal/internal/sui"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const DefaultMergeBatchSize = 200

// Chain is the subset of the Sui RPC client the claim flow needs.
type Chain interface {
	GetAllCoins(ctx context.Context, owner, coinType string) ([]domain.WalletCoin, error)
	MoveCall(ctx context.Context, signer, pkg, module, function string, typeArgs []string, args []interface{}, gas *string) (*suirpc.TransactionBytes, error)
	PayAllSui(ctx context.Context, signer string, inputCoins []string, recipient string) (*suirpc.TransactionBytes, error)
	TransferObject(ctx context.Context, signer, objectID string, gas *string, recipient string) (*suirpc.TransactionBytes, error)
	ExecuteTransactionBlock(ctx context.Context, txBytes string, signatures []string) (*suirpc.ExecutionResult, error)
}

type Wallets interface {
	Wallet(user string) (*sui.Keypair, error)
}

type ClaimRequest struct {
	User     string `json:"user"`
	CoinType string `json:"coinType"`
	Transfer bool   `json:"transfer"`
}

// MergeResult describes the coin left after merging every coin of one type.
type MergeResult struct {
	Primary  domain.WalletCoin
	Merged   int
	Batches  int
	TotalRaw decimal.Decimal
	Digests  []string
}

type Claimer struct {
	chain     Chain
	wallets   Wallets
	store     storage.ClaimStore
	batchSize int
	backoff   retry.Options
	now       func() time.Time
}

type ClaimerOption func(*Claimer)

func WithBackoff(opts retry.Options) ClaimerOption {
	return func(c *Claimer) { c.backoff = opts }
}

func NewClaimer(chain Chain, wallets Wallets, store storage.ClaimStore, batchSize int, opts ...ClaimerOption) *Claimer {
	if batchSize <= 0 {
		batchSize = DefaultMergeBatchSize
	}
	c := &Claimer{
		chain:     chain,
		wallets:   wallets,
		store:     store,
		batchSize: batchSize,
		backoff:   retry.RPCBackoff,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// MergeAndPrepareReceive gathers every coin of req.CoinType in the user's memez
// wallet. SUI is swept to the user (or back into the wallet when Transfer is
// false) with PayAllSui; other coins are joined into the largest one and that
// coin is transferred when Transfer is set. A failed step returns the partial
// receipt together with the error.
func (c *Claimer) MergeAndPrepareReceive(ctx context.Context, req ClaimRequest) (*domain.ClaimReceipt, error) {
	user, err := sui.NormalizeAddress(req.User)
	if err != nil {
		return nil, fmt.Errorf("%w: user: %v", storage.ErrInvalidInput, err)
	}
	coinType, err := sui.NormalizeCoinType(req.CoinType)
	if err != nil {
		return nil, fmt.Errorf("%w: coin type: %v", storage.ErrInvalidInput, err)
	}

	kp, err := c.wallets.Wallet(user)
	if err != nil {
		return nil, err
	}
	wallet := kp.Address()

	coins, err := c.chain.GetAllCoins(ctx, wallet, coinType)
	if err != nil {
		return nil, fmt.Errorf("list coins of memez wallet: %w", err)
	}
	coins = nonEmpty(coins)
	if len(coins) == 0 {
		return nil, ErrNothingToClaim
	}
	sortByBalance(coins)

	receipt := &domain.ClaimReceipt{
		ID:          uuid.NewString(),
		User:        user,
		MemezWallet: wallet,
		CoinType:    coinType,
		TotalRaw:    totalOf(coins),
		Digests:     []string{},
		Status:      domain.ClaimStatusPending,
		CreatedAt:   c.now().UTC(),
	}

	log.LogInfo("Claim started",
		zap.String("claim_id", receipt.ID),
		zap.String("user", sui.ShortAddress(user)),
		zap.String("coin_type", coinType),
		zap.Int("coins", len(coins)),
		zap.String("total_raw", receipt.TotalRaw.String()))

	if sui.IsSUI(coinType) {
		err = c.sweepSUI(ctx, kp, coins, user, req.Transfer, receipt)
	} else {
		err = c.mergeAndTransfer(ctx, kp, coinType, coins, user, req.Transfer, receipt)
	}
	c.finish(ctx, receipt, err)
	return receipt, err
}

func (c *Claimer) sweepSUI(ctx context.Context, kp *sui.Keypair, coins []domain.WalletCoin, user string, transfer bool, receipt *domain.ClaimReceipt) error {
	recipient := kp.Address()
	if transfer {
		recipient = user
	}
	for _, batch := range chunk(coins, c.batchSize) {
		ids := objectIDs(batch)
		digest, err := c.submit(ctx, kp, "pay_all_sui", func(ctx context.Context) (*suirpc.TransactionBytes, error) {
			return c.chain.PayAllSui(ctx, kp.Address(), ids, recipient)
		})
		if digest != "" {
			receipt.Digests = append(receipt.Digests, digest)
		}
		if err != nil {
			return err
		}
		receipt.Batches++
		receipt.CoinsMerged += len(batch)
	}
	receipt.Transferred = transfer
	return nil
}

func (c *Claimer) mergeAndTransfer(ctx context.Context, kp *sui.Keypair, coinType string, coins []domain.WalletCoin, user string, transfer bool, receipt *domain.ClaimReceipt) error {
	receipt.PrimaryCoin = coins[0].CoinObjectID

	res, err := c.merge(ctx, kp, coinType, coins)
	receipt.Digests = append(receipt.Digests, res.Digests...)
	receipt.Batches = res.Batches
	receipt.CoinsMerged = res.Merged
	if err != nil {
		return err
	}
	if !transfer {
		return nil
	}

	digest, err := c.submit(ctx, kp, "transfer_object", func(ctx context.Context) (*suirpc.TransactionBytes, error) {
		return c.chain.TransferObject(ctx, kp.Address(), res.Primary.CoinObjectID, nil, user)
	})
	if digest != "" {
		receipt.Digests = append(receipt.Digests, digest)
	}
	if err != nil {
		return err
	}
	receipt.Transferred = true
	return nil
}

// MergeAll joins every coin of coinType owned by kp into the largest one.
// SUI is not supported here because gas coins cannot be joined by join_vec.
func (c *Claimer) MergeAll(ctx context.Context, kp *sui.Keypair, coinType string) (*MergeResult, error) {
	coinType, err := sui.NormalizeCoinType(coinType)
	if err != nil {
		return nil, err
	}
	if sui.IsSUI(coinType) {
		return nil, fmt.Errorf("%w: cannot join_vec SUI", storage.ErrInvalidInput)
	}
	coins, err := c.chain.GetAllCoins(ctx, kp.Address(), coinType)
	if err != nil {
		return nil, fmt.Errorf("list coins: %w", err)
	}
	coins = nonEmpty(coins)
	if len(coins) == 0 {
		return nil, ErrNothingToClaim
	}
	sortByBalance(coins)
	return c.merge(ctx, kp, coinType, coins)
}

// merge expects coins sorted largest first.
func (c *Claimer) merge(ctx context.Context, kp *sui.Keypair, coinType string, coins []domain.WalletCoin) (*MergeResult, error) {
	primary := coins[0]
	res := &MergeResult{TotalRaw: totalOf(coins), Digests: []string{}}

	for _, batch := range chunk(coins[1:], c.batchSize) {
		ids := objectIDs(batch)
		digest, err := c.submit(ctx, kp, "join_vec", func(ctx context.Context) (*suirpc.TransactionBytes, error) {
			return c.chain.MoveCall(ctx, kp.Address(), "0x2", "pay", "join_vec",
				[]string{coinType}, []interface{}{primary.CoinObjectID, ids}, nil)
		})
		if digest != "" {
			res.Digests = append(res.Digests, digest)
		}
		if err != nil {
			res.Primary = primary
			return res, err
		}
		res.Batches++
		res.Merged += len(batch)
		for _, coin := range batch {
			primary.Balance = primary.Balance.Add(coin.Balance)
		}
	}
	res.Primary = primary
	return res, nil
}

func (c *Claimer) submit(ctx context.Context, kp *sui.Keypair, step string, build func(ctx context.Context) (*suirpc.TransactionBytes, error)) (string, error) {
	return SignAndExecute(ctx, c.chain, kp, c.backoff, step, build)
}

func (c *Claimer) finish(ctx context.Context, receipt *domain.ClaimReceipt, err error) {
	switch {
	case err == nil:
		receipt.Status = domain.ClaimStatusSuccess
	case receipt.Batches > 0:
		receipt.Status = domain.ClaimStatusPartial
	default:
		receipt.Status = domain.ClaimStatusFailed
	}
	if err != nil {
		receipt.Error = err.Error()
	}
	metrics.Claims.WithLabelValues(string(receipt.Status)).Inc()

	fields := []zap.Field{
		zap.String("claim_id", receipt.ID),
		zap.String("status", string(receipt.Status)),
		zap.Int("batches", receipt.Batches),
		zap.Int("coins_merged", receipt.CoinsMerged),
		zap.Strings("digests", receipt.Digests),
	}
	var failed *TxFailedError
	switch {
	case err == nil:
		log.LogSuccess("Claim completed", fields...)
	case errors.As(err, &failed):
		log.LogError("Claim transaction failed on chain", append(fields, zap.Error(err))...)
	default:
		log.LogError("Claim aborted", append(fields, zap.Error(err))...)
	}

	if c.store == nil {
		return
	}
	if serr := c.store.Insert(ctx, receipt); serr != nil {
		log.LogError("Failed to record claim receipt", zap.String("claim_id", receipt.ID), zap.Error(serr))
	}
}

func nonEmpty(coins []domain.WalletCoin) []domain.WalletCoin {
	out := make([]domain.WalletCoin, 0, len(coins))
	for _, coin := range coins {
		if coin.Balance.IsPositive() {
			out = append(out, coin)
		}
	}
	return out
}

func sortByBalance(coins []domain.WalletCoin) {
	sort.SliceStable(coins, func(i, j int) bool {
		if c := coins[i].Balance.Cmp(coins[j].Balance); c != 0 {
			return c > 0
		}
		return coins[i].CoinObjectID < coins[j].CoinObjectID
	})
}

func totalOf(coins []domain.WalletCoin) decimal.Decimal {
	total := decimal.Zero
	for _, coin := range coins {
		total = total.Add(coin.Balance)
	}
	return total
}

func objectIDs(coins []domain.WalletCoin) []string {
	ids := make([]string, len(coins))
	for i, coin := range coins {
		ids[i] = coin.CoinObjectID
	}
	return ids
}

func chunk(coins []domain.WalletCoin, size int) [][]domain.WalletCoin {
	var out [][]domain.WalletCoin
	for start := 0; start < len(coins); start += size {
		end := start + size
		if end > len(coins) {
			end = len(coins)
		}
		out = append(out, coins[start:end])
	}
	return out
}

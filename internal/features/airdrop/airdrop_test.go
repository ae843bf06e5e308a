package airdrop

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"memez-terminal/internal/clients_api/suirpc"
	"memez-terminal/internal/domain"
	"memez-terminal/internal/features/rewards"
	"memez-terminal/internal/infra/retry"
	"memez-terminal/internal/storage/memory"
	"memez-terminal/internal/sui"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func addr(b byte) string {
	return fmt.Sprintf("0x%064x", b)
}

func TestParseCSV(t *testing.T) {
	in := "address,amount\n" +
		"# team\n" +
		"0xA, 1.5\n" +
		"\n" +
		"0xb,2\n"
	got, err := ParseCSV(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, addr(0xa), got[0].Address)
	assert.Equal(t, "1.5", got[0].Amount.String())

	noHeader, err := ParseCSV(strings.NewReader("0x1,10\n"))
	require.NoError(t, err)
	assert.Len(t, noHeader, 1)

	_, err = ParseCSV(strings.NewReader("address,amount\n0x1,1\n0x2,-3\n"))
	assert.ErrorIs(t, err, ErrInvalidRecipient)
	assert.ErrorContains(t, err, "line 3")

	_, err = ParseCSV(strings.NewReader("0x1,1\nnot-hex,1\n"))
	assert.ErrorContains(t, err, "line 2")

	_, err = ParseCSV(strings.NewReader("0x1\n"))
	assert.ErrorIs(t, err, ErrInvalidRecipient)
}

func TestParseYAML(t *testing.T) {
	list := "- address: 0x1\n  amount: 5\n- address: 0x2\n  amount: \"0.25\"\n"
	got, err := ParseYAML(strings.NewReader(list))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "0.25", got[1].Amount.String())

	wrapped := "recipients:\n  - address: 0x1\n    amount: 5\n"
	got, err = ParseYAML(strings.NewReader(wrapped))
	require.NoError(t, err)
	assert.Len(t, got, 1)

	bad := "- address: 0x1\n  amount: 5\n- address: 0x2\n  amount: zero\n"
	_, err = ParseYAML(strings.NewReader(bad))
	assert.ErrorIs(t, err, ErrInvalidRecipient)
	assert.ErrorContains(t, err, "line 3")

	_, err = ParseYAML(strings.NewReader("foo: bar\n"))
	assert.ErrorIs(t, err, ErrInvalidRecipient)
}

func recipients(pairs ...interface{}) []domain.AirdropRecipient {
	var out []domain.AirdropRecipient
	for i := 0; i < len(pairs); i += 2 {
		out = append(out, domain.AirdropRecipient{
			Address: addr(pairs[i].(byte)),
			Amount:  decimal.RequireFromString(pairs[i+1].(string)),
		})
	}
	return out
}

func TestNewPlan(t *testing.T) {
	in := recipients(byte(3), "1", byte(1), "0.5", byte(3), "2", byte(2), "1.25")
	plan, err := NewPlan(in, 2, 2)
	require.NoError(t, err)

	require.Len(t, plan.Recipients, 3)
	assert.Equal(t, addr(1), plan.Recipients[0].Address)
	assert.Equal(t, "50", plan.Recipients[0].Raw.String())
	assert.Equal(t, addr(3), plan.Recipients[2].Address)
	assert.Equal(t, "300", plan.Recipients[2].Raw.String())
	assert.Equal(t, "475", plan.TotalRaw.String())

	require.Len(t, plan.Batches, 2)
	assert.Len(t, plan.Batches[0].Recipients, 2)
	assert.Equal(t, "175", plan.Batches[0].TotalRaw.String())
	assert.Equal(t, 1, plan.Batches[1].Index)

	// input order does not matter
	again, err := NewPlan([]domain.AirdropRecipient{in[3], in[2], in[1], in[0]}, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, plan.Hash, again.Hash)

	other, err := NewPlan(in, 2, 3)
	require.NoError(t, err)
	assert.NotEqual(t, plan.Hash, other.Hash)

	_, err = NewPlan(recipients(byte(1), "0.001"), 2, 2)
	assert.ErrorIs(t, err, ErrInvalidRecipient)
	_, err = NewPlan(nil, 9, 2)
	assert.ErrorIs(t, err, ErrInvalidRecipient)
	_, err = NewPlan(in, 9, MaxBatchSize+1)
	assert.Error(t, err)
}

func TestPlanSaveLoad(t *testing.T) {
	plan, err := NewPlan(recipients(byte(1), "1", byte(2), "2"), 9, 10)
	require.NoError(t, err)

	path, err := plan.Save(t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, path, PlansDir)

	loaded, err := LoadPlan(path)
	require.NoError(t, err)
	assert.Equal(t, plan.Hash, loaded.Hash)
	assert.True(t, plan.TotalRaw.Equal(loaded.TotalRaw))
}

type payCall struct {
	method     string
	coins      []string
	recipients []string
}

type fakeChain struct {
	coins    []domain.WalletCoin
	calls    []payCall
	executes int
	failAt   map[int]bool
}

func (f *fakeChain) GetAllCoins(context.Context, string, string) ([]domain.WalletCoin, error) {
	return f.coins, nil
}

func (f *fakeChain) PaySui(_ context.Context, _ string, inputCoins, recipients []string, _ []decimal.Decimal) (*suirpc.TransactionBytes, error) {
	f.calls = append(f.calls, payCall{"pay_sui", inputCoins, recipients})
	return &suirpc.TransactionBytes{TxBytes: "AAEC"}, nil
}

func (f *fakeChain) Pay(_ context.Context, _ string, inputCoins, recipients []string, _ []decimal.Decimal, _ *string) (*suirpc.TransactionBytes, error) {
	f.calls = append(f.calls, payCall{"pay", inputCoins, recipients})
	return &suirpc.TransactionBytes{TxBytes: "AAEC"}, nil
}

func (f *fakeChain) ExecuteTransactionBlock(context.Context, string, []string) (*suirpc.ExecutionResult, error) {
	f.executes++
	digest := fmt.Sprintf("d%d", f.executes)
	if f.failAt[f.executes] {
		return &suirpc.ExecutionResult{Digest: digest, Status: "failure", Error: "MoveAbort"}, nil
	}
	return &suirpc.ExecutionResult{Digest: digest, Status: "success"}, nil
}

type fakeMerger struct {
	result *rewards.MergeResult
	err    error
	calls  int
}

func (f *fakeMerger) MergeAll(context.Context, *sui.Keypair, string) (*rewards.MergeResult, error) {
	f.calls++
	return f.result, f.err
}

var fastRetry = retry.Options{MaxRetries: 1, BaseDelay: time.Millisecond, NoJitter: true}

func keypair(t *testing.T) *sui.Keypair {
	kp, err := sui.KeypairFromSeed(make([]byte, 32))
	require.NoError(t, err)
	return kp
}

func TestRunnerPaysSUIAndResumes(t *testing.T) {
	plan, err := NewPlan(recipients(byte(1), "1", byte(2), "1", byte(3), "1"), 9, 1)
	require.NoError(t, err)

	chain := &fakeChain{
		coins:  []domain.WalletCoin{{CoinObjectID: "0xg1", Balance: decimal.NewFromInt(2_000_000_000)}, {CoinObjectID: "0xg2", Balance: decimal.NewFromInt(5_000_000_000)}},
		failAt: map[int]bool{2: true},
	}
	store := memory.NewAirdropStore()
	runner := NewRunner(chain, &fakeMerger{}, store, WithBackoff(fastRetry))
	kp := keypair(t)

	run, err := runner.Run(context.Background(), plan, "0x2::sui::SUI", kp)
	require.Error(t, err)
	var failed *rewards.TxFailedError
	assert.ErrorAs(t, err, &failed)
	assert.Equal(t, domain.BatchDone, run.Batches[0].Status)
	assert.Equal(t, domain.BatchFailed, run.Batches[1].Status)
	assert.Equal(t, "d2", run.Batches[1].Digest)
	assert.Equal(t, domain.BatchPending, run.Batches[2].Status)
	require.Len(t, chain.calls, 2)
	assert.Equal(t, []string{"0xg2", "0xg1"}, chain.calls[0].coins)
	assert.Equal(t, []string{addr(1)}, chain.calls[0].recipients)

	stored, err := store.GetRun(context.Background(), plan.RunKey(run.CoinType, kp.Address()))
	require.NoError(t, err)
	assert.Equal(t, domain.BatchFailed, stored.Batches[1].Status)

	// second run retries the failed batch and skips the paid one
	resumed, err := runner.Run(context.Background(), plan, "0x2::sui::SUI", kp)
	require.NoError(t, err)
	assert.Equal(t, run.ID, resumed.ID)
	assert.True(t, resumed.Done())
	require.Len(t, chain.calls, 4)
	assert.Equal(t, []string{addr(2)}, chain.calls[2].recipients)
	assert.Equal(t, []string{addr(3)}, chain.calls[3].recipients)

	// nothing left to do
	_, err = runner.Run(context.Background(), plan, "0x2::sui::SUI", kp)
	require.NoError(t, err)
	assert.Len(t, chain.calls, 4)
}

func TestRunnerSUIInsufficientBalance(t *testing.T) {
	plan, err := NewPlan(recipients(byte(1), "10"), 9, 5)
	require.NoError(t, err)
	chain := &fakeChain{coins: []domain.WalletCoin{{CoinObjectID: "0xg", Balance: decimal.NewFromInt(1)}}}

	run, err := NewRunner(chain, &fakeMerger{}, memory.NewAirdropStore(), WithBackoff(fastRetry)).
		Run(context.Background(), plan, "0x2::sui::SUI", keypair(t))
	assert.ErrorIs(t, err, ErrInsufficientBalance)
	assert.Equal(t, domain.BatchFailed, run.Batches[0].Status)
	assert.Empty(t, chain.calls)
}

func TestRunnerTokenMergesThenPays(t *testing.T) {
	plan, err := NewPlan(recipients(byte(1), "1", byte(2), "2"), 6, 10)
	require.NoError(t, err)

	chain := &fakeChain{}
	merger := &fakeMerger{result: &rewards.MergeResult{
		Primary: domain.WalletCoin{CoinObjectID: "0xprimary", Balance: decimal.NewFromInt(3_000_000)},
	}}
	run, err := NewRunner(chain, merger, memory.NewAirdropStore(), WithBackoff(fastRetry)).
		Run(context.Background(), plan, "0xa::pepe::PEPE", keypair(t))
	require.NoError(t, err)
	assert.True(t, run.Done())
	assert.Equal(t, 1, merger.calls)
	require.Len(t, chain.calls, 1)
	assert.Equal(t, payCall{"pay", []string{"0xprimary"}, []string{addr(1), addr(2)}}, chain.calls[0])

	merger.result.Primary.Balance = decimal.NewFromInt(1)
	plan2, _ := NewPlan(recipients(byte(9), "1"), 6, 10)
	_, err = NewRunner(chain, merger, memory.NewAirdropStore()).Run(context.Background(), plan2, "0xa::pepe::PEPE", keypair(t))
	assert.ErrorIs(t, err, ErrInsufficientBalance)

	merger.err = rewards.ErrNothingToClaim
	_, err = NewRunner(chain, merger, memory.NewAirdropStore()).Run(context.Background(), plan2, "0xa::pepe::PEPE", keypair(t))
	assert.ErrorIs(t, err, ErrInsufficientBalance)

	merger.err = errors.New("rpc down")
	_, err = NewRunner(chain, merger, memory.NewAirdropStore()).Run(context.Background(), plan2, "0xa::pepe::PEPE", keypair(t))
	assert.ErrorContains(t, err, "rpc down")
}

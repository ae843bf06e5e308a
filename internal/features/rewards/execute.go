package rewards

import (
	"context"
	"fmt"
	"time"

	"memez-terminal/internal/clients_api/suirpc"
	"memez-terminal/internal/infra/log"
	"memez-terminal/internal/infra/retry"
	"memez-terminal/internal/sui"

	"go.uber.org/zap"
)

type Executor interface {
	ExecuteTransactionBlock(ctx context.Context, txBytes string, signatures []string) (*suirpc.ExecutionResult, error)
}

// TxFailedError is an executed transaction whose effects report failure.
type TxFailedError struct {
	Digest string
	Reason string
}

func (e *TxFailedError) Error() string {
	return fmt.Sprintf("transaction %s failed: %s", e.Digest, e.Reason)
}

// SignAndExecute builds, signs and executes one transaction. It is the only
// retry layer for the step: RPC calls inside run as single attempts, and the
// step is rebuilt on rate limits so every attempt signs fresh bytes. A build is
// also retried on node 5xx; an execute is retried only when the node throttled
// it, since any other failure may have landed the transaction. The digest is
// returned for executed transactions even when their status is a failure.
func SignAndExecute(ctx context.Context, exec Executor, kp *sui.Keypair, backoff retry.Options, step string, build func(ctx context.Context) (*suirpc.TransactionBytes, error)) (string, error) {
	var digest string
	opts := backoff
	opts.OnRetry = func(attempt int, delay time.Duration, err error) {
		log.LogWarn("Transaction step rate limited, retrying",
			zap.String("step", step),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err))
	}
	callCtx := suirpc.WithoutRetry(ctx)

	err := retry.Do(ctx, opts, func() error {
		tx, err := build(callCtx)
		if err != nil {
			return fmt.Errorf("build %s: %w", step, err)
		}
		sig, err := kp.SignTransaction(tx.TxBytes)
		if err != nil {
			return fmt.Errorf("sign %s: %w", step, err)
		}
		res, err := exec.ExecuteTransactionBlock(callCtx, tx.TxBytes, []string{sig})
		if err != nil {
			err = fmt.Errorf("execute %s: %w", step, err)
			if !retry.IsRateLimited(err) {
				return retry.Permanent(err)
			}
			return err
		}
		digest = res.Digest
		if !res.Success() {
			return &TxFailedError{Digest: res.Digest, Reason: res.Error}
		}
		return nil
	})
	return digest, err
}

package storage

import (
	"context"
	"time"

	"memez-terminal/internal/domain"
)

// ClaimStore journals claim receipts.
type ClaimStore interface {
	// Insert adds a receipt. Returns ErrDuplicateKey if the id exists.
	Insert(ctx context.Context, r *domain.ClaimReceipt) error

	// Get returns ErrNotFound if the id does not exist.
	Get(ctx context.Context, id string) (*domain.ClaimReceipt, error)

	// ListByUser returns the newest receipts of user first.
	ListByUser(ctx context.Context, user string, limit int) ([]*domain.ClaimReceipt, error)
}

// AirdropStore persists airdrop runs and per-batch progress.
type AirdropStore interface {
	// UpsertRun inserts the run with its batches, or replaces batches of an existing run.
	UpsertRun(ctx context.Context, run *domain.AirdropRun) error

	// GetRun returns the run for a plan hash. Returns ErrNotFound if none.
	GetRun(ctx context.Context, planHash string) (*domain.AirdropRun, error)

	// MarkBatch records the outcome of one batch. Returns ErrNotFound for an unknown run or index.
	MarkBatch(ctx context.Context, runID string, index int, digest string, status domain.BatchStatus, errMsg string) error
}

// SnapshotStore holds pool price history.
type SnapshotStore interface {
	InsertBulk(ctx context.Context, snapshots []domain.PoolSnapshot) error

	// History returns the latest limit snapshots of pool at or after since, oldest first.
	History(ctx context.Context, pool string, since time.Time, limit int) ([]domain.PoolSnapshot, error)
}

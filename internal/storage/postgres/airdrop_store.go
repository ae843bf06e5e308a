package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"memez-terminal/internal/domain"
	"memez-terminal/internal/storage"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// AirdropStore implements storage.AirdropStore using PostgreSQL.
type AirdropStore struct {
	pool *Pool
}

func NewAirdropStore(pool *Pool) *AirdropStore {
	return &AirdropStore{pool: pool}
}

var _ storage.AirdropStore = (*AirdropStore)(nil)

// UpsertRun writes the run header and all batches in one transaction.
func (s *AirdropStore) UpsertRun(ctx context.Context, run *domain.AirdropRun) error {
	if run == nil || run.ID == "" || run.PlanHash == "" {
		return storage.ErrInvalidInput
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	updated := run.UpdatedAt
	if updated.IsZero() {
		updated = time.Now().UTC()
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO airdrop_runs (id, plan_hash, coin_type, sender, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET updated_at = EXCLUDED.updated_at
	`, run.ID, run.PlanHash, run.CoinType, run.Sender, run.CreatedAt, updated)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("upsert airdrop run: %w", err)
	}

	batch := &pgx.Batch{}
	for _, b := range run.Batches {
		recipients, err := json.Marshal(b.Recipients)
		if err != nil {
			return fmt.Errorf("encode batch %d recipients: %w", b.Index, err)
		}
		batch.Queue(`
			INSERT INTO airdrop_batches (run_id, batch_index, recipients, total_raw, status, digest, error)
			VALUES ($1, $2, $3, $4::text::numeric, $5, $6, $7)
			ON CONFLICT (run_id, batch_index) DO UPDATE SET
				status = EXCLUDED.status, digest = EXCLUDED.digest, error = EXCLUDED.error
		`, run.ID, b.Index, recipients, b.TotalRaw.String(), string(b.Status), b.Digest, b.Error)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("upsert airdrop batches: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit airdrop run: %w", err)
	}
	return nil
}

func (s *AirdropStore) GetRun(ctx context.Context, planHash string) (*domain.AirdropRun, error) {
	var run domain.AirdropRun
	err := s.pool.QueryRow(ctx, `
		SELECT id, plan_hash, coin_type, sender, created_at, updated_at
		FROM airdrop_runs WHERE plan_hash = $1
	`, planHash).Scan(&run.ID, &run.PlanHash, &run.CoinType, &run.Sender, &run.CreatedAt, &run.UpdatedAt)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get airdrop run: %w", err)
	}
	run.CreatedAt, run.UpdatedAt = run.CreatedAt.UTC(), run.UpdatedAt.UTC()

	rows, err := s.pool.Query(ctx, `
		SELECT batch_index, recipients, total_raw::text, status, digest, error
		FROM airdrop_batches WHERE run_id = $1
		ORDER BY batch_index ASC
	`, run.ID)
	if err != nil {
		return nil, fmt.Errorf("query airdrop batches: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			b          domain.AirdropBatch
			recipients []byte
			total      string
			status     string
		)
		if err := rows.Scan(&b.Index, &recipients, &total, &status, &b.Digest, &b.Error); err != nil {
			return nil, fmt.Errorf("scan airdrop batch: %w", err)
		}
		if err := json.Unmarshal(recipients, &b.Recipients); err != nil {
			return nil, fmt.Errorf("decode batch %d recipients: %w", b.Index, err)
		}
		if b.TotalRaw, err = decimal.NewFromString(total); err != nil {
			return nil, fmt.Errorf("batch %d total_raw: %w", b.Index, err)
		}
		b.Status = domain.BatchStatus(status)
		run.Batches = append(run.Batches, b)
	}
	return &run, rows.Err()
}

func (s *AirdropStore) MarkBatch(ctx context.Context, runID string, index int, digest string, status domain.BatchStatus, errMsg string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE airdrop_batches SET status = $3, digest = $4, error = $5
		WHERE run_id = $1 AND batch_index = $2
	`, runID, index, string(status), digest, errMsg)
	if err != nil {
		return fmt.Errorf("mark airdrop batch: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	if _, err := s.pool.Exec(ctx, `UPDATE airdrop_runs SET updated_at = $2 WHERE id = $1`, runID, time.Now().UTC()); err != nil {
		return fmt.Errorf("touch airdrop run: %w", err)
	}
	return nil
}

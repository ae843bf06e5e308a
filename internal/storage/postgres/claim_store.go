package postgres

import (
	"context"
	"fmt"

	"memez-terminal/internal/domain"
	"memez-terminal/internal/storage"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// ClaimStore implements storage.ClaimStore using PostgreSQL.
type ClaimStore struct {
	pool *Pool
}

func NewClaimStore(pool *Pool) *ClaimStore {
	return &ClaimStore{pool: pool}
}

var _ storage.ClaimStore = (*ClaimStore)(nil)

const claimColumns = `id, user_address, memez_wallet, coin_type, coins_merged, batches,
	primary_coin, total_raw::text, digests, transferred, status, error, created_at`

func (s *ClaimStore) Insert(ctx context.Context, r *domain.ClaimReceipt) error {
	if r == nil || r.ID == "" {
		return storage.ErrInvalidInput
	}
	digests := r.Digests
	if digests == nil {
		digests = []string{}
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO claim_receipts (
			id, user_address, memez_wallet, coin_type, coins_merged, batches,
			primary_coin, total_raw, digests, transferred, status, error, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8::text::numeric, $9, $10, $11, $12, $13)
	`, r.ID, r.User, r.MemezWallet, r.CoinType, r.CoinsMerged, r.Batches,
		r.PrimaryCoin, r.TotalRaw.String(), digests, r.Transferred, string(r.Status), r.Error, r.CreatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert claim receipt: %w", err)
	}
	return nil
}

func (s *ClaimStore) Get(ctx context.Context, id string) (*domain.ClaimReceipt, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+claimColumns+` FROM claim_receipts WHERE id = $1`, id)
	r, err := scanClaim(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get claim receipt: %w", err)
	}
	return r, nil
}

func (s *ClaimStore) ListByUser(ctx context.Context, user string, limit int) ([]*domain.ClaimReceipt, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+claimColumns+`
		FROM claim_receipts
		WHERE user_address = $1
		ORDER BY created_at DESC, id ASC
		LIMIT $2
	`, user, limit)
	if err != nil {
		return nil, fmt.Errorf("list claim receipts: %w", err)
	}
	defer rows.Close()

	var result []*domain.ClaimReceipt
	for rows.Next() {
		r, err := scanClaim(rows)
		if err != nil {
			return nil, fmt.Errorf("scan claim receipt: %w", err)
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

func scanClaim(row pgx.Row) (*domain.ClaimReceipt, error) {
	var (
		r      domain.ClaimReceipt
		total  string
		status string
	)
	err := row.Scan(&r.ID, &r.User, &r.MemezWallet, &r.CoinType, &r.CoinsMerged, &r.Batches,
		&r.PrimaryCoin, &total, &r.Digests, &r.Transferred, &status, &r.Error, &r.CreatedAt)
	if err != nil {
		return nil, err
	}
	r.TotalRaw, err = decimal.NewFromString(total)
	if err != nil {
		return nil, fmt.Errorf("total_raw %q: %w", total, err)
	}
	r.Status = domain.ClaimStatus(status)
	r.CreatedAt = r.CreatedAt.UTC()
	return &r, nil
}

package clickhouse

import (
	"context"
	"fmt"
	"time"

	"memez-terminal/internal/domain"
	"memez-terminal/internal/storage"
)

// SnapshotStore implements storage.SnapshotStore on the pool_snapshots table.
// ReplacingMergeTree collapses repeated (pool_address, ts) rows, so re-inserts are harmless.
type SnapshotStore struct {
	conn *Conn
}

func NewSnapshotStore(conn *Conn) *SnapshotStore {
	return &SnapshotStore{conn: conn}
}

var _ storage.SnapshotStore = (*SnapshotStore)(nil)

func (s *SnapshotStore) InsertBulk(ctx context.Context, snaps []domain.PoolSnapshot) error {
	if len(snaps) == 0 {
		return nil
	}
	for _, snap := range snaps {
		if snap.PoolAddress == "" || snap.Timestamp.IsZero() {
			return storage.ErrInvalidInput
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO pool_snapshots (
			pool_address, ts, price_sui, price_usd, market_cap_usd, quote_balance
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, snap := range snaps {
		err = batch.Append(
			snap.PoolAddress, snap.Timestamp.UTC(),
			snap.PriceSUI, snap.PriceUSD, snap.MarketCapUSD, snap.QuoteBalance,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// History returns the latest limit points at or after since, oldest first.
func (s *SnapshotStore) History(ctx context.Context, pool string, since time.Time, limit int) ([]domain.PoolSnapshot, error) {
	query := `
		SELECT pool_address, ts, price_sui, price_usd, market_cap_usd, quote_balance
		FROM pool_snapshots FINAL
		WHERE pool_address = ? AND ts >= ?
		ORDER BY ts DESC
	`
	args := []interface{}{pool, since.UTC()}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, uint64(limit))
	}

	rows, err := s.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query pool history: %w", err)
	}
	defer rows.Close()

	snaps, err := scanSnapshots(rows)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(snaps)-1; i < j; i, j = i+1, j-1 {
		snaps[i], snaps[j] = snaps[j], snaps[i]
	}
	return snaps, nil
}

func scanSnapshots(rows chRows) ([]domain.PoolSnapshot, error) {
	var snaps []domain.PoolSnapshot
	for rows.Next() {
		var snap domain.PoolSnapshot
		err := rows.Scan(
			&snap.PoolAddress, &snap.Timestamp,
			&snap.PriceSUI, &snap.PriceUSD, &snap.MarketCapUSD, &snap.QuoteBalance,
		)
		if err != nil {
			return nil, fmt.Errorf("scan pool snapshot row: %w", err)
		}
		snap.Timestamp = snap.Timestamp.UTC()
		snaps = append(snaps, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pool snapshot rows: %w", err)
	}
	return snaps, nil
}

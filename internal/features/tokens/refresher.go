package tokens

import (
	"context"
	"time"

	"memez-terminal/internal/domain"
	"memez-terminal/internal/infra/log"

	"go.uber.org/zap"
)

const (
	TopicTokens = "tokens"
	TopicTrades = "trades"
)

type SnapshotRecorder interface {
	InsertBulk(ctx context.Context, snapshots []domain.PoolSnapshot) error
}

type Publisher interface {
	Publish(topic string, payload interface{})
}

type TradeSource interface {
	RecentTrades(ctx context.Context, since time.Time, limit int) ([]domain.Trade, error)
}

// Refresher keeps the default token page warm, records price snapshots and
// pushes listings and new trades to the live feed.
type Refresher struct {
	svc       *Service
	snapshots SnapshotRecorder
	feed      Publisher
	trades    TradeSource
	interval  time.Duration
	query     Query

	lastTrade time.Time
}

func NewRefresher(svc *Service, snapshots SnapshotRecorder, feed Publisher, trades TradeSource, interval time.Duration) *Refresher {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Refresher{
		svc:       svc,
		snapshots: snapshots,
		feed:      feed,
		trades:    trades,
		interval:  interval,
		query:     Query{}.normalized(),
	}
}

// Run refreshes immediately and then every interval until ctx is done.
func (r *Refresher) Run(ctx context.Context) {
	log.LogInfo("Token refresher started", zap.Duration("interval", r.interval))
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			log.LogInfo("Token refresher stopped")
			return
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

func (r *Refresher) tick(ctx context.Context) {
	if err := r.RefreshOnce(ctx); err != nil {
		log.LogError("Token refresh failed", zap.Error(err))
	}
	if r.trades != nil {
		r.pollTrades(ctx)
	}
}

// RefreshOnce bypasses the fresh page cache, records snapshots and publishes.
func (r *Refresher) RefreshOnce(ctx context.Context) error {
	listing, err := r.svc.list(ctx, r.query, true)
	if err != nil {
		return err
	}

	// stale pages carry old prices, do not record them as history
	if r.snapshots != nil && listing.Source == SourceIndexer {
		at := listing.UpdatedAt.UTC().Truncate(time.Second)
		snaps := make([]domain.PoolSnapshot, 0, len(listing.Tokens))
		for _, p := range listing.Tokens {
			snaps = append(snaps, domain.SnapshotOf(p, at))
		}
		if err := r.snapshots.InsertBulk(ctx, snaps); err != nil {
			log.LogWarn("Snapshot insert failed", zap.Int("count", len(snaps)), zap.Error(err))
		}
	}

	if r.feed != nil {
		r.feed.Publish(TopicTokens, listing)
	}
	return nil
}

func (r *Refresher) pollTrades(ctx context.Context) {
	since := r.lastTrade
	if since.IsZero() {
		since = r.svc.now().Add(-r.interval)
	}
	trades, err := r.trades.RecentTrades(ctx, since, 100)
	if err != nil {
		log.LogWarn("Recent trades poll failed", zap.Error(err))
		return
	}
	for _, t := range trades {
		if t.Timestamp.After(r.lastTrade) {
			r.lastTrade = t.Timestamp
		}
	}
	if len(trades) > 0 && r.feed != nil {
		r.feed.Publish(TopicTrades, trades)
	}
}

package portfolio

import (
	"context"
	"time"

	"memez-terminal/internal/domain"
	"memez-terminal/internal/infra/log"

	"go.uber.org/zap"
)

type Fetcher interface {
	Get(ctx context.Context, owner string) (*domain.Portfolio, error)
}

// Watcher polls one owner's portfolio. Failed polls are logged and skipped.
type Watcher struct {
	fetcher Fetcher
}

func NewWatcher(f Fetcher) *Watcher {
	return &Watcher{fetcher: f}
}

// Run fetches immediately, then every interval, calling fn with each snapshot.
// It returns ctx.Err() once ctx is done.
func (w *Watcher) Run(ctx context.Context, owner string, interval time.Duration, fn func(*domain.Portfolio)) error {
	if interval <= 0 {
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		p, err := w.fetcher.Get(ctx, owner)
		switch {
		case err == nil:
			fn(p)
		case ctx.Err() != nil:
			return ctx.Err()
		default:
			log.LogWarn("Portfolio poll failed", zap.String("owner", owner), zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

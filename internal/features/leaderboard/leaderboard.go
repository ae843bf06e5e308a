// Package leaderboard ranks traders by volume, PnL or trade count.
package leaderboard

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"memez-terminal/internal/domain"
	"memez-terminal/internal/infra/cache"
	"memez-terminal/internal/infra/log"

	"go.uber.org/zap"
)

const (
	DefaultLimit = 50
	MaxLimit     = 200
)

type Period string

const (
	Period24h Period = "24h"
	Period7d  Period = "7d"
	PeriodAll Period = "all"
)

type Metric string

const (
	MetricVolume Metric = "volume"
	MetricPnL    Metric = "pnl"
	MetricTrades Metric = "trades"
)

func ParsePeriod(s string) (Period, error) {
	switch p := Period(strings.ToLower(s)); p {
	case "":
		return Period24h, nil
	case Period24h, Period7d, PeriodAll:
		return p, nil
	}
	return "", fmt.Errorf("invalid period %q (want 24h, 7d or all)", s)
}

func ParseMetric(s string) (Metric, error) {
	switch m := Metric(strings.ToLower(s)); m {
	case "":
		return MetricVolume, nil
	case MetricVolume, MetricPnL, MetricTrades:
		return m, nil
	}
	return "", fmt.Errorf("invalid metric %q (want volume, pnl or trades)", s)
}

type Source interface {
	Leaderboard(ctx context.Context, period string, limit int) ([]domain.LeaderboardEntry, error)
}

type Service struct {
	source Source
	cache  cache.Store
}

func NewService(source Source, store cache.Store) *Service {
	return &Service{source: source, cache: store}
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// Top returns up to limit entries ranked by metric, cached per (period, metric, limit).
func (s *Service) Top(ctx context.Context, period Period, metric Metric, limit int) ([]domain.LeaderboardEntry, error) {
	limit = clampLimit(limit)
	key := cache.LeaderboardKey(string(period), string(metric), limit)

	var entries []domain.LeaderboardEntry
	if err := cache.GetJSON(ctx, s.cache, key, &entries); err == nil {
		return entries, nil
	}

	// the indexer ranks by volume; ask for the full window so other metrics rank correctly
	rows, err := s.source.Leaderboard(ctx, string(period), MaxLimit)
	if err != nil {
		return nil, fmt.Errorf("leaderboard %s/%s: %w", period, metric, err)
	}
	entries = Rank(rows, metric, limit)

	if err := cache.SetJSON(ctx, s.cache, key, entries, cache.LeaderboardTTL); err != nil {
		log.LogWarn("Leaderboard cache write failed", zap.String("key", key), zap.Error(err))
	}
	return entries, nil
}

// Rank sorts entries descending by metric, address ascending on ties, assigns
// 1-based ranks and truncates to limit.
func Rank(entries []domain.LeaderboardEntry, metric Metric, limit int) []domain.LeaderboardEntry {
	out := make([]domain.LeaderboardEntry, len(entries))
	copy(out, entries)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		var c int
		switch metric {
		case MetricPnL:
			c = a.PnLSUI.Cmp(b.PnLSUI)
		case MetricTrades:
			c = a.Trades - b.Trades
		default:
			c = a.VolumeSUI.Cmp(b.VolumeSUI)
		}
		if c != 0 {
			return c > 0
		}
		return a.Address < b.Address
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}

package leaderboard

import (
	"context"
	"errors"
	"testing"

	"memez-terminal/internal/domain"
	"memez-terminal/internal/infra/cache"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	entries []domain.LeaderboardEntry
	err     error
	calls   int
	limits  []int
}

func (f *fakeSource) Leaderboard(_ context.Context, _ string, limit int) ([]domain.LeaderboardEntry, error) {
	f.calls++
	f.limits = append(f.limits, limit)
	return f.entries, f.err
}

func entry(addr string, vol, pnl int64, trades int) domain.LeaderboardEntry {
	return domain.LeaderboardEntry{
		Address:   addr,
		VolumeSUI: decimal.NewFromInt(vol),
		PnLSUI:    decimal.NewFromInt(pnl),
		Trades:    trades,
	}
}

var sample = []domain.LeaderboardEntry{
	entry("0xc", 100, -5, 3),
	entry("0xa", 300, 10, 1),
	entry("0xb", 300, 50, 9),
}

func TestRank(t *testing.T) {
	tests := []struct {
		metric   Metric
		expected []string
	}{
		{MetricVolume, []string{"0xa", "0xb", "0xc"}},
		{MetricPnL, []string{"0xb", "0xa", "0xc"}},
		{MetricTrades, []string{"0xb", "0xc", "0xa"}},
	}
	for _, tt := range tests {
		t.Run(string(tt.metric), func(t *testing.T) {
			ranked := Rank(sample, tt.metric, 10)
			got := make([]string, len(ranked))
			for i, e := range ranked {
				got[i] = e.Address
				assert.Equal(t, i+1, e.Rank)
			}
			assert.Equal(t, tt.expected, got)
		})
	}

	assert.Len(t, Rank(sample, MetricVolume, 2), 2)
	// input untouched
	assert.Equal(t, "0xc", sample[0].Address)
}

func TestTopCachesAndClamps(t *testing.T) {
	src := &fakeSource{entries: sample}
	svc := NewService(src, cache.NewMemoryStore())
	ctx := context.Background()

	first, err := svc.Top(ctx, Period24h, MetricPnL, 1000)
	require.NoError(t, err)
	require.Len(t, first, 3)

	second, err := svc.Top(ctx, Period24h, MetricPnL, 1000)
	require.NoError(t, err)
	assert.Equal(t, first[0].Address, second[0].Address)
	assert.Equal(t, 1, src.calls)
	assert.Equal(t, []int{MaxLimit}, src.limits)

	_, err = svc.Top(ctx, Period7d, MetricPnL, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, src.calls)
}

func TestTopPropagatesError(t *testing.T) {
	svc := NewService(&fakeSource{err: errors.New("indexer down")}, cache.NewMemoryStore())
	_, err := svc.Top(context.Background(), PeriodAll, MetricVolume, 10)
	assert.ErrorContains(t, err, "indexer down")
}

func TestParse(t *testing.T) {
	p, err := ParsePeriod("")
	require.NoError(t, err)
	assert.Equal(t, Period24h, p)
	_, err = ParsePeriod("1y")
	assert.Error(t, err)

	m, err := ParseMetric("PNL")
	require.NoError(t, err)
	assert.Equal(t, MetricPnL, m)
	_, err = ParseMetric("roi")
	assert.Error(t, err)
}

package bots_monitor

import (
	"context"
	"fmt"
	"html"
	"strings"

	"memez-terminal/internal/domain"
	"memez-terminal/internal/features/hot_token"
	"memez-terminal/internal/features/market"
	"memez-terminal/internal/infra/fs"
	"memez-terminal/internal/infra/log"

	"go.uber.org/zap"
)

// FormatHotTokenMessage renders a hot alert; pool may be nil when the pool
// lookup failed.
func FormatHotTokenMessage(h hot_token.Hot, pool *domain.Pool) string {
	symbol := h.Symbol
	marketCap := "?"
	if pool != nil {
		if pool.Symbol != "" {
			symbol = pool.Symbol
		}
		marketCap = market.FormatUSD(pool.MarketCapUSD)
	}
	if symbol == "" {
		symbol = shortPool(h.PoolAddress)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "❗️<b>hot</b> rn: {%s} - $%s\n", html.EscapeString(symbol), marketCap)
	b.WriteString("<blockquote>")
	fmt.Fprintf(&b, "Traders: %d in last %d trades\n", h.UniqueSenders, len(h.Trades))
	fmt.Fprintf(&b, "Pool: <a href=\"%s%s\">%s</a>\n", explorerObjectURL, h.PoolAddress, shortPool(h.PoolAddress))
	if pool != nil {
		writeSocials(&b, *pool)
	} else {
		b.WriteString("X: null")
	}
	b.WriteString("</blockquote>")
	return b.String()
}

// checkHotTokens feeds trades to the detector and alerts on each pool that
// turned hot. The detector owns the per-pool cooldown.
func (m *Monitor) checkHotTokens(ctx context.Context, trades []domain.Trade, muted []string) {
	candidates := m.detector.Observe(trades)
	if len(candidates) == 0 {
		return
	}

	allowed := candidates[:0]
	for _, p := range candidates {
		if !fs.IsMuted(p, muted) {
			allowed = append(allowed, p)
		}
	}

	for _, h := range m.detector.Detect(allowed, m.now()) {
		pool, err := m.pools.Get(ctx, h.PoolAddress)
		if err != nil {
			log.LogWarn("Failed to get pool for hot token",
				zap.String("pool", h.PoolAddress),
				zap.Error(err))
			pool = nil
		}

		if err := m.sendText(FormatHotTokenMessage(h, pool)); err != nil {
			log.LogError("Failed to send hot token notification",
				zap.String("pool", h.PoolAddress),
				zap.Error(err))
			continue
		}
		log.LogInfo("Hot token notification sent",
			zap.String("pool", h.PoolAddress),
			zap.Int("uniqueAddresses", h.UniqueSenders))
	}
}

package bots_monitor

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"memez-terminal/internal/domain"
	"memez-terminal/internal/features/charts"
	"memez-terminal/internal/features/market"

	"github.com/shopspring/decimal"
)

const (
	explorerTxURL     = "https://suiscan.xyz/mainnet/tx/"
	explorerObjectURL = "https://suiscan.xyz/mainnet/object/"
	cardHistory       = 24 * time.Hour
	cardPoints        = 288
)

// ShouldSendTrade reports whether the SUI side of t reaches minSUI.
func ShouldSendTrade(t domain.Trade, minSUI decimal.Decimal) bool {
	if t.Digest == "" || t.QuoteAmount.IsZero() {
		return false
	}
	return t.QuoteSUI().GreaterThanOrEqual(minSUI)
}

// formatAmount trims a human amount to at most 4 decimals, with K/M suffixes
// for large values.
func formatAmount(v decimal.Decimal) string {
	abs := v.Abs()
	switch {
	case abs.GreaterThanOrEqual(decimal.NewFromInt(1_000_000)):
		return v.Div(decimal.NewFromInt(1_000_000)).StringFixed(2) + "M"
	case abs.GreaterThanOrEqual(decimal.NewFromInt(10_000)):
		return v.Div(decimal.NewFromInt(1_000)).StringFixed(1) + "K"
	}
	return v.Round(4).String()
}

// FormatTradeMessage assembles the HTML alert for one trade. suiUSD may be zero.
func FormatTradeMessage(t domain.Trade, suiUSD decimal.Decimal) string {
	emoji, label := "🔴", "SELL"
	if t.IsBuy {
		emoji, label = "🟢", "BUY"
	}
	symbol := t.Symbol
	if symbol == "" {
		symbol = shortPool(t.PoolAddress)
	}

	quote := t.QuoteSUI()
	var b strings.Builder
	fmt.Fprintf(&b, "%s <b>%s</b> %s\n", emoji, label, html.EscapeString(symbol))
	b.WriteString("<blockquote>")
	if suiUSD.IsPositive() {
		fmt.Fprintf(&b, "SUI: %s ($%s)\n", formatAmount(quote), market.FormatUSD(quote.Mul(suiUSD)))
	} else {
		fmt.Fprintf(&b, "SUI: %s\n", formatAmount(quote))
	}
	fmt.Fprintf(&b, "Tokens: %s\n", formatAmount(t.CoinAmount))
	fmt.Fprintf(&b, "Trader: %s\n", shortPool(t.Sender))
	fmt.Fprintf(&b, "Pool: <a href=\"%s%s\">%s</a>\n", explorerObjectURL, t.PoolAddress, shortPool(t.PoolAddress))
	fmt.Fprintf(&b, "Tx: <a href=\"%s%s\">link</a>", explorerTxURL, t.Digest)
	b.WriteString("</blockquote>")
	return b.String()
}

// FormatNewPoolMessage is the caption posted with the card of a new pool.
func FormatNewPoolMessage(p domain.Pool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🆕 <b>%s</b> (%s)\n", html.EscapeString(p.Symbol), html.EscapeString(p.Name))
	b.WriteString("<blockquote>")
	fmt.Fprintf(&b, "Market cap: $%s\n", market.FormatUSD(p.MarketCapUSD))
	fmt.Fprintf(&b, "Price: %s SUI\n", market.FormatPrice(p.PriceSUI))
	fmt.Fprintf(&b, "Bonding: %.1f%%\n", p.BondingProgress)
	fmt.Fprintf(&b, "Creator: %s\n", shortPool(p.Creator))
	fmt.Fprintf(&b, "Pool: <a href=\"%s%s\">%s</a>\n", explorerObjectURL, p.Address, shortPool(p.Address))
	writeSocials(&b, p)
	b.WriteString("</blockquote>")
	return b.String()
}

func writeSocials(b *strings.Builder, p domain.Pool) {
	if site := p.Socials["website"]; site != "" {
		fmt.Fprintf(b, "Website: <a href=\"%s\">link</a>\n", html.EscapeString(site))
	} else {
		b.WriteString("Website: null\n")
	}
	fmt.Fprintf(b, "TA: <a href=\"https://x.com/search?q=%s\">link</a>\n", p.CoinType)
	if x := p.Socials["twitter"]; x != "" {
		fmt.Fprintf(b, "X: <a href=\"%s\">link</a>", html.EscapeString(x))
	} else {
		b.WriteString("X: null")
	}
}

func renderCard(ctx context.Context, history HistorySource, p domain.Pool, now time.Time) ([]byte, error) {
	var points []domain.PoolSnapshot
	if history != nil {
		h, err := history.History(ctx, p.Address, now.Add(-cardHistory), cardPoints)
		if err != nil {
			return nil, fmt.Errorf("history: %w", err)
		}
		points = h
	}
	return charts.RenderTokenCard(p, points)
}

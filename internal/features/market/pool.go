// Package market turns raw indexer pool rows into priced pools.
package market

import (
	"sort"
	"strings"
	"time"

	"memez-terminal/internal/clients_api/indexer"
	"memez-terminal/internal/domain"

	"github.com/shopspring/decimal"
)

// DefaultDecimals is used when neither the indexer nor the chain knows a coin's decimals.
const DefaultDecimals = 9

// DefaultSupplyWhole is the launch supply of a memez coin in whole units.
var DefaultSupplyWhole = decimal.NewFromInt(1_000_000_000)

var hundred = decimal.NewFromInt(100)

// ProcessPoolData fills metadata gaps from meta and derives prices, market cap
// and bonding progress. suiUSD may be zero when no price is available.
func ProcessPoolData(raw indexer.Pool, suiUSD decimal.Decimal, meta *domain.TokenMetadata) domain.Pool {
	p := domain.Pool{
		Address:     raw.Address,
		CoinType:    raw.CoinType,
		Name:        raw.Name,
		Symbol:      raw.Symbol,
		Description: raw.Description,
		IconURL:     raw.IconURL,
		Creator:     raw.Creator,
		Socials:     raw.Socials,
		Holders:     raw.Holders,
		Migrated:    raw.Migrated,
		CreatedAt:   raw.CreatedAt.Time(),
		LastTradeAt: raw.LastTradeAt.Time(),

		QuoteBalance:         raw.QuoteBalance.Decimal(),
		CoinBalance:          raw.CoinBalance.Decimal(),
		VirtualLiquidity:     raw.VirtualLiquidity.Decimal(),
		TargetQuoteLiquidity: raw.TargetQuoteLiquidity.Decimal(),
		TotalSupply:          raw.TotalSupply.Decimal(),
	}

	decimals := DefaultDecimals
	decimalsKnown := false
	if raw.Decimals != nil {
		decimals, decimalsKnown = *raw.Decimals, true
	}
	if meta != nil {
		if p.Name == "" {
			p.Name = meta.Name
		}
		if p.Symbol == "" {
			p.Symbol = meta.Symbol
		}
		if p.Description == "" {
			p.Description = meta.Description
		}
		if p.IconURL == "" {
			p.IconURL = meta.IconURL
		}
		if !decimalsKnown && meta.DecimalsKnown {
			decimals = meta.Decimals
		}
		if !p.TotalSupply.IsPositive() && meta.Supply.IsPositive() {
			p.TotalSupply = meta.Supply
		}
	}
	p.Decimals = decimals
	if p.Symbol == "" {
		p.Symbol = symbolFromCoinType(p.CoinType)
	}
	if !p.TotalSupply.IsPositive() {
		p.TotalSupply = DefaultSupplyWhole.Shift(int32(decimals))
	}

	p.PriceSUI = priceSUI(raw, p, decimals)
	p.PriceUSD = p.PriceSUI.Mul(suiUSD)
	p.MarketCapUSD = p.PriceUSD.Mul(domain.ToHuman(p.TotalSupply, decimals))
	p.Volume24hUSD = domain.ToHuman(raw.Volume24h.Decimal(), domain.SUIDecimals).Mul(suiUSD)
	p.BondingProgress = bondingProgress(p)
	return p
}

// priceSUI is the indexer price when it has one, else the curve spot price
// (quote + virtual liquidity) / coin balance in whole units.
func priceSUI(raw indexer.Pool, p domain.Pool, decimals int) decimal.Decimal {
	if raw.Price.Known() {
		return raw.Price.Decimal()
	}
	if !p.CoinBalance.IsPositive() {
		return decimal.Zero
	}
	quote := domain.ToHuman(p.QuoteBalance.Add(p.VirtualLiquidity), domain.SUIDecimals)
	coins := domain.ToHuman(p.CoinBalance, decimals)
	return quote.DivRound(coins, 18)
}

func bondingProgress(p domain.Pool) float64 {
	if p.Migrated {
		return 100
	}
	if !p.TargetQuoteLiquidity.IsPositive() {
		return 0
	}
	progress := p.QuoteBalance.Div(p.TargetQuoteLiquidity).Mul(hundred)
	if progress.GreaterThan(hundred) {
		return 100
	}
	f, _ := progress.Round(2).Float64()
	return f
}

// symbolFromCoinType returns the struct name of "0x..::module::NAME".
func symbolFromCoinType(coinType string) string {
	if i := strings.LastIndex(coinType, "::"); i >= 0 {
		return coinType[i+2:]
	}
	return ""
}

type SortKey string

const (
	SortMarketCap SortKey = "marketcap"
	SortVolume    SortKey = "volume"
	SortCreated   SortKey = "created"
	SortLastTrade SortKey = "last_trade"
)

func ParseSortKey(s string) (SortKey, bool) {
	switch k := SortKey(strings.ToLower(s)); k {
	case SortMarketCap, SortVolume, SortCreated, SortLastTrade:
		return k, true
	case "":
		return SortMarketCap, true
	}
	return "", false
}

// Sort orders pools descending by key, address ascending on ties.
func Sort(pools []domain.Pool, key SortKey) {
	sort.SliceStable(pools, func(i, j int) bool {
		a, b := pools[i], pools[j]
		var c int
		switch key {
		case SortVolume:
			c = a.Volume24hUSD.Cmp(b.Volume24hUSD)
		case SortCreated:
			c = compareTime(a.CreatedAt, b.CreatedAt)
		case SortLastTrade:
			c = compareTime(a.LastTradeAt, b.LastTradeAt)
		default:
			c = a.MarketCapUSD.Cmp(b.MarketCapUSD)
		}
		if c != 0 {
			return c > 0
		}
		return a.Address < b.Address
	})
}

func compareTime(a, b time.Time) int {
	switch {
	case a.After(b):
		return 1
	case a.Before(b):
		return -1
	}
	return 0
}

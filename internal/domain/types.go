// Package domain holds the transfer shapes shared by clients, features and stores.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	SUICoinType = "0x2::sui::SUI"
	SUIDecimals = 9
)

// TokenMetadata is the on-chain CoinMetadata of a coin type.
type TokenMetadata struct {
	CoinType    string `json:"coinType"`
	Name        string `json:"name"`
	Symbol      string `json:"symbol"`
	Description string `json:"description,omitempty"`
	IconURL     string `json:"iconUrl,omitempty"`
	Decimals    int    `json:"decimals"`
	// DecimalsKnown is set when Decimals comes from an on-chain metadata object.
	DecimalsKnown bool `json:"decimalsKnown"`
	// Supply is the raw total supply, zero when unknown.
	Supply decimal.Decimal `json:"supply"`
}

// Pool is a memecoin bonding-curve pool with its derived market data.
type Pool struct {
	Address     string            `json:"address"`
	CoinType    string            `json:"coinType"`
	Name        string            `json:"name"`
	Symbol      string            `json:"symbol"`
	Description string            `json:"description,omitempty"`
	IconURL     string            `json:"iconUrl,omitempty"`
	Decimals    int               `json:"decimals"`
	Creator     string            `json:"creator"`
	Socials     map[string]string `json:"socials,omitempty"`

	TotalSupply          decimal.Decimal `json:"totalSupply"`
	QuoteBalance         decimal.Decimal `json:"quoteBalance"`
	CoinBalance          decimal.Decimal `json:"coinBalance"`
	VirtualLiquidity     decimal.Decimal `json:"virtualLiquidity"`
	TargetQuoteLiquidity decimal.Decimal `json:"targetQuoteLiquidity"`
	Migrated             bool            `json:"migrated"`

	PriceSUI        decimal.Decimal `json:"priceSui"`
	PriceUSD        decimal.Decimal `json:"priceUsd"`
	MarketCapUSD    decimal.Decimal `json:"marketCapUsd"`
	Volume24hUSD    decimal.Decimal `json:"volume24hUsd"`
	BondingProgress float64         `json:"bondingProgress"`
	Holders         int             `json:"holders"`

	CreatedAt   time.Time `json:"createdAt"`
	LastTradeAt time.Time `json:"lastTradeAt,omitempty"`
}

// WalletCoin is one coin object owned by an address.
type WalletCoin struct {
	CoinObjectID string          `json:"coinObjectId"`
	CoinType     string          `json:"coinType"`
	Version      string          `json:"version"`
	Digest       string          `json:"digest"`
	Balance      decimal.Decimal `json:"balance"`
}

// CoinBalance is the aggregate balance of one coin type for an owner.
type CoinBalance struct {
	CoinType        string          `json:"coinType"`
	CoinObjectCount int             `json:"coinObjectCount"`
	TotalBalance    decimal.Decimal `json:"totalBalance"`
}

type PortfolioBalance struct {
	CoinType    string          `json:"coinType"`
	PoolAddress string          `json:"poolAddress,omitempty"`
	Name        string          `json:"name"`
	Symbol      string          `json:"symbol"`
	IconURL     string          `json:"iconUrl,omitempty"`
	Decimals    int             `json:"decimals"`
	Raw         decimal.Decimal `json:"raw"`
	Amount      decimal.Decimal `json:"amount"`
	PriceSUI    decimal.Decimal `json:"priceSui"`
	PriceUSD    decimal.Decimal `json:"priceUsd"`
	ValueSUI    decimal.Decimal `json:"valueSui"`
	ValueUSD    decimal.Decimal `json:"valueUsd"`
}

type Portfolio struct {
	Owner     string             `json:"owner"`
	Balances  []PortfolioBalance `json:"balances"`
	TotalSUI  decimal.Decimal    `json:"totalSui"`
	TotalUSD  decimal.Decimal    `json:"totalUsd"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

type LeaderboardEntry struct {
	Rank      int             `json:"rank"`
	Address   string          `json:"address"`
	VolumeSUI decimal.Decimal `json:"volumeSui"`
	PnLSUI    decimal.Decimal `json:"pnlSui"`
	Trades    int             `json:"trades"`
}

// CreatorReward is the fee share accrued to a pool creator.
type CreatorReward struct {
	PoolAddress string          `json:"poolAddress"`
	CoinType    string          `json:"coinType"`
	Symbol      string          `json:"symbol"`
	RewardType  string          `json:"rewardType"`
	AmountRaw   decimal.Decimal `json:"amountRaw"`
	Amount      decimal.Decimal `json:"amount"`
	Claimable   bool            `json:"claimable"`
}

type Trade struct {
	Digest      string          `json:"digest"`
	PoolAddress string          `json:"poolAddress"`
	CoinType    string          `json:"coinType"`
	Symbol      string          `json:"symbol"`
	Sender      string          `json:"sender"`
	IsBuy       bool            `json:"isBuy"`
	QuoteAmount decimal.Decimal `json:"quoteAmount"`
	CoinAmount  decimal.Decimal `json:"coinAmount"`
	Timestamp   time.Time       `json:"timestamp"`
}

// QuoteSUI is the SUI side of the trade in whole SUI.
func (t Trade) QuoteSUI() decimal.Decimal {
	return ToHuman(t.QuoteAmount, SUIDecimals)
}

// PoolSnapshot is one point of a pool's price history.
type PoolSnapshot struct {
	PoolAddress  string          `json:"poolAddress"`
	Timestamp    time.Time       `json:"timestamp"`
	PriceSUI     decimal.Decimal `json:"priceSui"`
	PriceUSD     decimal.Decimal `json:"priceUsd"`
	MarketCapUSD decimal.Decimal `json:"marketCapUsd"`
	QuoteBalance decimal.Decimal `json:"quoteBalance"`
}

func SnapshotOf(p Pool, at time.Time) PoolSnapshot {
	return PoolSnapshot{
		PoolAddress:  p.Address,
		Timestamp:    at,
		PriceSUI:     p.PriceSUI,
		PriceUSD:     p.PriceUSD,
		MarketCapUSD: p.MarketCapUSD,
		QuoteBalance: p.QuoteBalance,
	}
}

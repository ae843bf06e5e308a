package indexer

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"memez-terminal/internal/domain"

	"github.com/shopspring/decimal"
)

// Millis is a unix millisecond timestamp sent either as a number or a BigInt string.
type Millis int64

func (m *Millis) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*m = 0
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("timestamp %q: %w", s, err)
	}
	*m = Millis(v)
	return nil
}

func (m Millis) Time() time.Time {
	if m == 0 {
		return time.Time{}
	}
	return time.UnixMilli(int64(m)).UTC()
}

// Amount is a u64/i128 amount sent as a string or a number.
type Amount string

func (a *Amount) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*a = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*a = Amount(s)
		return nil
	}
	*a = Amount(b)
	return nil
}

// Decimal parses the amount; empty or malformed amounts are zero.
func (a Amount) Decimal() decimal.Decimal {
	d, err := decimal.NewFromString(string(a))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func (a Amount) Known() bool {
	return a != "" && a.Decimal().IsPositive()
}

// Pool is a pool row as the indexer returns it. Missing metadata is filled from
// chain in features/tokens.
type Pool struct {
	Address     string            `json:"address"`
	CoinType    string            `json:"coinType"`
	Name        string            `json:"name"`
	Symbol      string            `json:"symbol"`
	Description string            `json:"description"`
	IconURL     string            `json:"iconUrl"`
	Decimals    *int              `json:"decimals"`
	Creator     string            `json:"creator"`
	Socials     map[string]string `json:"socials"`

	TotalSupply          Amount `json:"totalSupply"`
	QuoteBalance         Amount `json:"quoteBalance"`
	CoinBalance          Amount `json:"coinBalance"`
	VirtualLiquidity     Amount `json:"virtualLiquidity"`
	TargetQuoteLiquidity Amount `json:"targetQuoteLiquidity"`
	Price                Amount `json:"price"`     // SUI per whole coin
	Volume24h            Amount `json:"volume24h"` // MIST
	Holders              int    `json:"holders"`
	Migrated             bool   `json:"migrated"`
	CreatedAt            Millis `json:"createdAt"`
	LastTradeAt          Millis `json:"lastTradeAt"`
}

// NeedsMetadata reports whether name, symbol or decimals are missing.
func (p Pool) NeedsMetadata() bool {
	return p.Name == "" || p.Symbol == "" || p.Decimals == nil
}

type PoolQuery struct {
	Sort            string
	Limit           int
	Offset          int
	Search          string
	IncludeMigrated bool
}

type PoolPage struct {
	Total int    `json:"total"`
	Items []Pool `json:"items"`
}

type LeaderboardRow struct {
	Address string `json:"address"`
	Volume  Amount `json:"volume"` // MIST
	PnL     Amount `json:"pnl"`    // MIST, signed
	Trades  int    `json:"trades"`
}

func (r LeaderboardRow) Entry() domain.LeaderboardEntry {
	return domain.LeaderboardEntry{
		Address:   r.Address,
		VolumeSUI: domain.ToHuman(r.Volume.Decimal(), domain.SUIDecimals),
		PnLSUI:    domain.ToHuman(r.PnL.Decimal(), domain.SUIDecimals),
		Trades:    r.Trades,
	}
}

type CreatorRewardRow struct {
	PoolAddress string `json:"poolAddress"`
	CoinType    string `json:"coinType"`
	Symbol      string `json:"symbol"`
	Decimals    int    `json:"decimals"`
	RewardType  string `json:"rewardType"`
	Amount      Amount `json:"amount"`
	Claimable   bool   `json:"claimable"`
}

func (r CreatorRewardRow) Reward() domain.CreatorReward {
	raw := r.Amount.Decimal()
	return domain.CreatorReward{
		PoolAddress: r.PoolAddress,
		CoinType:    r.CoinType,
		Symbol:      r.Symbol,
		RewardType:  r.RewardType,
		AmountRaw:   raw,
		Amount:      domain.ToHuman(raw, r.Decimals),
		Claimable:   r.Claimable && raw.IsPositive(),
	}
}

type VestingRow struct {
	ID         string `json:"id"`
	Owner      string `json:"owner"`
	CoinType   string `json:"coinType"`
	Symbol     string `json:"symbol"`
	Decimals   int    `json:"decimals"`
	Total      Amount `json:"total"`
	Claimed    Amount `json:"claimed"`
	Start      Millis `json:"start"`
	DurationMs Amount `json:"duration"`
	CliffMs    Amount `json:"cliff"`
}

func (r VestingRow) Position() domain.VestingPosition {
	return domain.VestingPosition{
		ID:       r.ID,
		Owner:    r.Owner,
		CoinType: r.CoinType,
		Symbol:   r.Symbol,
		Decimals: r.Decimals,
		Total:    r.Total.Decimal(),
		Claimed:  r.Claimed.Decimal(),
		Start:    r.Start.Time(),
		Duration: time.Duration(r.DurationMs.Decimal().IntPart()) * time.Millisecond,
		Cliff:    time.Duration(r.CliffMs.Decimal().IntPart()) * time.Millisecond,
	}
}

type TradeRow struct {
	Digest      string `json:"digest"`
	PoolAddress string `json:"poolAddress"`
	CoinType    string `json:"coinType"`
	Symbol      string `json:"symbol"`
	Sender      string `json:"sender"`
	IsBuy       bool   `json:"isBuy"`
	QuoteAmount Amount `json:"quoteAmount"`
	CoinAmount  Amount `json:"coinAmount"`
	Timestamp   Millis `json:"timestamp"`
}

func (r TradeRow) Trade() domain.Trade {
	return domain.Trade{
		Digest:      r.Digest,
		PoolAddress: r.PoolAddress,
		CoinType:    r.CoinType,
		Symbol:      r.Symbol,
		Sender:      r.Sender,
		IsBuy:       r.IsBuy,
		QuoteAmount: r.QuoteAmount.Decimal(),
		CoinAmount:  r.CoinAmount.Decimal(),
		Timestamp:   r.Timestamp.Time(),
	}
}

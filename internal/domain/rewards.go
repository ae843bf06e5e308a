package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// VestingPosition is a linear vesting schedule with an optional cliff.
type VestingPosition struct {
	ID       string          `json:"id"`
	Owner    string          `json:"owner"`
	CoinType string          `json:"coinType"`
	Symbol   string          `json:"symbol"`
	Decimals int             `json:"decimals"`
	Total    decimal.Decimal `json:"total"`
	Claimed  decimal.Decimal `json:"claimed"`
	Start    time.Time       `json:"start"`
	Duration time.Duration   `json:"duration"`
	Cliff    time.Duration   `json:"cliff"`
}

// Vested is the raw amount unlocked at now.
func (v VestingPosition) Vested(now time.Time) decimal.Decimal {
	if now.Before(v.Start.Add(v.Cliff)) {
		return decimal.Zero
	}
	if v.Duration <= 0 {
		return v.Total
	}
	elapsed := now.Sub(v.Start)
	if elapsed >= v.Duration {
		return v.Total
	}
	ratio := decimal.NewFromInt(int64(elapsed)).Div(decimal.NewFromInt(int64(v.Duration)))
	return v.Total.Mul(ratio).Floor()
}

// Claimable is Vested minus what has already been claimed, never negative.
func (v VestingPosition) Claimable(now time.Time) decimal.Decimal {
	c := v.Vested(now).Sub(v.Claimed)
	if c.IsNegative() {
		return decimal.Zero
	}
	return c
}

type ClaimStatus string

const (
	ClaimStatusPending ClaimStatus = "pending"
	ClaimStatusSuccess ClaimStatus = "success"
	ClaimStatusPartial ClaimStatus = "partial"
	ClaimStatusFailed  ClaimStatus = "failed"
)

// ClaimReceipt records one run of the merge-and-receive flow.
type ClaimReceipt struct {
	ID          string          `json:"id"`
	User        string          `json:"user"`
	MemezWallet string          `json:"memezWallet"`
	CoinType    string          `json:"coinType"`
	CoinsMerged int             `json:"coinsMerged"`
	Batches     int             `json:"batches"`
	PrimaryCoin string          `json:"primaryCoin,omitempty"`
	TotalRaw    decimal.Decimal `json:"totalRaw"`
	Digests     []string        `json:"digests"`
	Transferred bool            `json:"transferred"`
	Status      ClaimStatus     `json:"status"`
	Error       string          `json:"error,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
}

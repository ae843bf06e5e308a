package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ToHuman converts a raw on-chain integer amount into whole units.
func ToHuman(raw decimal.Decimal, decimals int) decimal.Decimal {
	return raw.Shift(int32(-decimals))
}

// ToRaw converts a whole-unit amount into the integer on-chain representation.
// Amounts with more precision than the coin supports are rejected.
func ToRaw(human decimal.Decimal, decimals int) (decimal.Decimal, error) {
	raw := human.Shift(int32(decimals))
	if !raw.Equal(raw.Truncate(0)) {
		return decimal.Zero, fmt.Errorf("amount %s has more than %d decimals", human, decimals)
	}
	return raw, nil
}

// ParseRaw parses a u64 amount as returned by the RPC ("12345").
func ParseRaw(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse amount %q: %w", s, err)
	}
	return d, nil
}

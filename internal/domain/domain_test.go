package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToRawAndHuman(t *testing.T) {
	raw, err := ToRaw(decimal.RequireFromString("1.5"), 9)
	require.NoError(t, err)
	assert.Equal(t, "1500000000", raw.String())
	assert.Equal(t, "1.5", ToHuman(raw, 9).String())

	_, err = ToRaw(decimal.RequireFromString("0.0000000001"), 9)
	assert.Error(t, err)
}

func TestParseRaw(t *testing.T) {
	d, err := ParseRaw("42")
	require.NoError(t, err)
	assert.True(t, d.Equal(decimal.NewFromInt(42)))

	d, err = ParseRaw("")
	require.NoError(t, err)
	assert.True(t, d.IsZero())

	_, err = ParseRaw("x")
	assert.Error(t, err)
}

func TestVestingSchedule(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	v := VestingPosition{
		Total:    decimal.NewFromInt(1000),
		Claimed:  decimal.NewFromInt(100),
		Start:    start,
		Duration: 100 * time.Hour,
		Cliff:    10 * time.Hour,
	}

	tests := []struct {
		name      string
		at        time.Time
		vested    int64
		claimable int64
	}{
		{"before start", start.Add(-time.Hour), 0, 0},
		{"inside cliff", start.Add(9 * time.Hour), 0, 0},
		{"at cliff", start.Add(10 * time.Hour), 100, 0},
		{"halfway", start.Add(50 * time.Hour), 500, 400},
		{"after end", start.Add(200 * time.Hour), 1000, 900},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.vested, v.Vested(tt.at).IntPart())
			assert.Equal(t, tt.claimable, v.Claimable(tt.at).IntPart())
		})
	}
}

func TestAirdropRunDone(t *testing.T) {
	r := &AirdropRun{Batches: []AirdropBatch{{Status: BatchDone}, {Status: BatchPending}}}
	assert.False(t, r.Done())
	r.Batches[1].Status = BatchDone
	assert.True(t, r.Done())
}

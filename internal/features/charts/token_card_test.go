package charts

import (
	"bytes"
	"image/png"
	"testing"
	"time"

	"memez-terminal/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func history(prices ...string) []domain.PoolSnapshot {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]domain.PoolSnapshot, len(prices))
	for i, p := range prices {
		out[i] = domain.PoolSnapshot{Timestamp: base.Add(time.Duration(i) * time.Minute), PriceSUI: decimal.RequireFromString(p)}
	}
	return out
}

func TestRenderTokenCard(t *testing.T) {
	pool := domain.Pool{
		Symbol:          "PEPE",
		Name:            "Pepe on Sui",
		PriceUSD:        decimal.RequireFromString("0.0000123"),
		MarketCapUSD:    decimal.NewFromInt(12_300),
		BondingProgress: 42.5,
	}

	for name, h := range map[string][]domain.PoolSnapshot{
		"with history": history("1", "3", "2"),
		"no history":   nil,
	} {
		t.Run(name, func(t *testing.T) {
			data, err := RenderTokenCard(pool, h)
			require.NoError(t, err)

			img, err := png.Decode(bytes.NewReader(data))
			require.NoError(t, err)
			assert.Equal(t, CardWidth, img.Bounds().Dx())
			assert.Equal(t, CardHeight, img.Bounds().Dy())
		})
	}
}

func TestSparkPoints(t *testing.T) {
	pts := sparkPoints(history("1", "3", "2"), 0, 100, 0, 50)
	require.Len(t, pts, 3)
	assert.Equal(t, 0.0, pts[0].X)
	assert.Equal(t, 50.0, pts[0].Y)
	assert.Equal(t, 50.0, pts[1].X)
	assert.Equal(t, 0.0, pts[1].Y)
	assert.Equal(t, 100.0, pts[2].X)
	assert.Equal(t, 25.0, pts[2].Y)

	flat := sparkPoints(history("2", "2"), 0, 100, 0, 50)
	assert.Equal(t, 25.0, flat[0].Y)
	assert.Equal(t, 25.0, flat[1].Y)

	assert.Nil(t, sparkPoints(history("1"), 0, 100, 0, 50))
}

func TestChangeColor(t *testing.T) {
	assert.Equal(t, red, changeColor(history("2", "1")))
	assert.Equal(t, green, changeColor(history("1", "2")))
	assert.Equal(t, green, changeColor(nil))
}

package main

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"memez-terminal/internal/domain"
	"memez-terminal/internal/features/charts"

	"github.com/shopspring/decimal"
)

// go run etc/tools/test_chart.go
// in etc/charts/token_card.png
func main() {
	fmt.Println("Generating test token card...")

	pool := domain.Pool{
		Address:         "0x5d2f8c0e4b1a9e3f7c6d2b8a1e0f9c3d7b6a5e4f3c2d1b0a9e8f7c6d5b4a3e2f",
		Name:            "Sample Coin",
		Symbol:          "SAMPLE",
		PriceSUI:        decimal.RequireFromString("0.00001234"),
		PriceUSD:        decimal.RequireFromString("0.00004321"),
		MarketCapUSD:    decimal.NewFromInt(43_210),
		BondingProgress: 37.5,
	}

	start := time.Now().Add(-24 * time.Hour)
	history := make([]domain.PoolSnapshot, 0, 96)
	for i := 0; i < 96; i++ {
		wave := 1 + 0.3*math.Sin(float64(i)/8) + float64(i)/200
		history = append(history, domain.PoolSnapshot{
			PoolAddress: pool.Address,
			Timestamp:   start.Add(time.Duration(i) * 15 * time.Minute),
			PriceSUI:    pool.PriceSUI.Mul(decimal.NewFromFloat(wave)),
		})
	}

	png, err := charts.RenderTokenCard(pool, history)
	if err != nil {
		fmt.Printf("Error generating card: %v\n", err)
		os.Exit(1)
	}

	out := filepath.Join("etc", "charts", "token_card.png")
	if err := os.MkdirAll(filepath.Dir(out), 0755); err != nil {
		fmt.Printf("Error creating directory: %v\n", err)
		os.Exit(1)
	}
	if err := os.WriteFile(out, png, 0644); err != nil {
		fmt.Printf("Error writing card: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Card generated successfully: %s\n", out)
	fmt.Println("Open the file to see the result!")
}

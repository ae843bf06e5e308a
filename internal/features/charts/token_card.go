// Package charts renders shareable PNG token cards.
package charts

import (
	"bytes"
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"sync"

	"memez-terminal/internal/domain"
	"memez-terminal/internal/features/market"
	logging "memez-terminal/internal/infra/log"

	"github.com/fogleman/gg"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	CardWidth  = 1200
	CardHeight = 630

	marginX = 60.0

	symbolY = 110.0
	nameY   = 160.0

	priceLabelY = 240.0
	priceValueY = 300.0
	mcapX       = 640.0

	progressY      = 360.0
	progressHeight = 28.0

	sparkTop    = 430.0
	sparkBottom = 590.0

	symbolFontSize = 64.0
	nameFontSize   = 30.0
	labelFontSize  = 26.0
	valueFontSize  = 48.0
	smallFontSize  = 22.0
)

var (
	background = color.RGBA{12, 14, 20, 255}
	muted      = color.RGBA{140, 146, 160, 255}
	green      = color.RGBA{0, 214, 120, 255}
	red        = color.RGBA{240, 80, 80, 255}
	track      = color.RGBA{40, 44, 56, 255}
)

var fontPaths = []string{
	"etc/fonts/InterVariable.ttf",
	"etc/fonts/Inter-Regular.ttf",
	"/usr/share/fonts/truetype/inter/Inter-Regular.ttf",
	"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
	"/usr/share/fonts/truetype/liberation/LiberationSans-Regular.ttf",
	"/Library/Fonts/Inter-Regular.ttf",
	"/System/Library/Fonts/Supplemental/Arial.ttf",
}

var (
	fontOnce sync.Once
	fontPath string
)

// resolveFont finds the first usable font once; without one gg falls back to
// its built-in bitmap face.
func resolveFont() string {
	fontOnce.Do(func() {
		for _, p := range fontPaths {
			if _, err := os.Stat(p); err != nil {
				continue
			}
			if _, err := gg.LoadFontFace(p, labelFontSize); err == nil {
				fontPath = p
				logging.LogInfo("Loaded card font", zap.String("path", filepath.Clean(p)))
				return
			}
		}
		logging.LogWarn("No TTF font found, using default face", zap.Int("paths_checked", len(fontPaths)))
	})
	return fontPath
}

type canvas struct {
	*gg.Context
	font string
}

func (c *canvas) face(size float64) {
	if c.font != "" {
		c.LoadFontFace(c.font, size)
	}
}

// RenderTokenCard draws a 1200x630 PNG with the token's identity, price,
// market cap, bonding progress and a sparkline of history prices (oldest first).
func RenderTokenCard(pool domain.Pool, history []domain.PoolSnapshot) ([]byte, error) {
	c := &canvas{Context: gg.NewContext(CardWidth, CardHeight), font: resolveFont()}
	c.SetColor(background)
	c.Clear()

	symbol := pool.Symbol
	if symbol == "" {
		symbol = "???"
	}
	c.face(symbolFontSize)
	c.SetColor(color.White)
	c.DrawString("$"+symbol, marginX, symbolY)

	c.face(nameFontSize)
	c.SetColor(muted)
	c.DrawString(pool.Name, marginX, nameY)

	c.face(labelFontSize)
	c.DrawString("Price", marginX, priceLabelY)
	c.DrawString("Market Cap", mcapX, priceLabelY)

	c.face(valueFontSize)
	c.SetColor(changeColor(history))
	c.DrawString("$"+market.FormatPrice(pool.PriceUSD), marginX, priceValueY)
	c.SetColor(color.White)
	c.DrawString("$"+market.FormatUSD(pool.MarketCapUSD), mcapX, priceValueY)

	c.drawProgress(pool)
	c.drawSparkline(history)

	var buf bytes.Buffer
	if err := c.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("failed to encode card: %w", err)
	}
	if buf.Len() == 0 {
		return nil, fmt.Errorf("card is empty after rendering")
	}
	return buf.Bytes(), nil
}

func (c *canvas) drawProgress(pool domain.Pool) {
	width := float64(CardWidth) - 2*marginX
	c.SetColor(track)
	c.DrawRoundedRectangle(marginX, progressY, width, progressHeight, progressHeight/2)
	c.Fill()

	progress := pool.BondingProgress
	if pool.Migrated {
		progress = 100
	}
	if progress > 0 {
		c.SetColor(green)
		c.DrawRoundedRectangle(marginX, progressY, width*progress/100, progressHeight, progressHeight/2)
		c.Fill()
	}

	label := fmt.Sprintf("Bonding curve %.1f%%", progress)
	if pool.Migrated {
		label = "Migrated"
	}
	c.face(smallFontSize)
	c.SetColor(color.White)
	c.DrawStringAnchored(label, float64(CardWidth)/2, progressY+progressHeight/2, 0.5, 0.35)
}

func (c *canvas) drawSparkline(history []domain.PoolSnapshot) {
	points := sparkPoints(history, marginX, float64(CardWidth)-marginX, sparkTop, sparkBottom)
	if len(points) < 2 {
		c.face(smallFontSize)
		c.SetColor(muted)
		c.DrawStringAnchored("No price history yet", float64(CardWidth)/2, (sparkTop+sparkBottom)/2, 0.5, 0.5)
		return
	}
	c.SetColor(changeColor(history))
	c.SetLineWidth(4)
	c.MoveTo(points[0].X, points[0].Y)
	for _, p := range points[1:] {
		c.LineTo(p.X, p.Y)
	}
	c.Stroke()
}

// sparkPoints maps snapshot prices onto the box, evenly spaced on x.
// A flat series is drawn through the middle of the box.
func sparkPoints(history []domain.PoolSnapshot, left, right, top, bottom float64) []gg.Point {
	if len(history) < 2 {
		return nil
	}
	lo, hi := history[0].PriceSUI, history[0].PriceSUI
	for _, s := range history[1:] {
		lo = decimal.Min(lo, s.PriceSUI)
		hi = decimal.Max(hi, s.PriceSUI)
	}
	span, _ := hi.Sub(lo).Float64()
	step := (right - left) / float64(len(history)-1)

	points := make([]gg.Point, len(history))
	for i, s := range history {
		y := (top + bottom) / 2
		if span > 0 {
			off, _ := s.PriceSUI.Sub(lo).Float64()
			y = bottom - off/span*(bottom-top)
		}
		points[i] = gg.Point{X: left + float64(i)*step, Y: y}
	}
	return points
}

func changeColor(history []domain.PoolSnapshot) color.Color {
	if len(history) >= 2 && history[len(history)-1].PriceSUI.LessThan(history[0].PriceSUI) {
		return red
	}
	return green
}

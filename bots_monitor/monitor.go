// Package bots_monitor posts new pools, large trades and hot tokens to a
// Telegram chat.
package bots_monitor

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"memez-terminal/internal/domain"
	"memez-terminal/internal/features/hot_token"
	"memez-terminal/internal/features/market"
	"memez-terminal/internal/features/tokens"
	"memez-terminal/internal/infra/fs"
	"memez-terminal/internal/infra/log"
	"memez-terminal/internal/sui"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	StateFile = "monitor_state.json"

	DefaultInterval = 30 * time.Second
	newPoolsLimit   = 20
	tradesLimit     = 200
	maxSeen         = 2000
	// trades are re-queried slightly before the last one seen; digests dedupe.
	tradeOverlap = time.Minute
)

// Sender is the part of *tgbotapi.BotAPI the monitor posts through.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type TradeSource interface {
	RecentTrades(ctx context.Context, since time.Time, limit int) ([]domain.Trade, error)
}

type PoolSource interface {
	List(ctx context.Context, q tokens.Query) (*tokens.Listing, error)
	Get(ctx context.Context, address string) (*domain.Pool, error)
}

type HistorySource interface {
	History(ctx context.Context, pool string, since time.Time, limit int) ([]domain.PoolSnapshot, error)
}

type Config struct {
	ChatID       int64
	MinTradeSUI  decimal.Decimal
	Interval     time.Duration
	OutDir       string
	SwapsCount   int
	MinAddresses int
	HotCooldown  time.Duration
}

type monitorState struct {
	SeenPools    []string             `json:"seenPools"`
	SeenTrades   []string             `json:"seenTrades"`
	LastTradeAt  time.Time            `json:"lastTradeAt"`
	HotCooldowns map[string]time.Time `json:"hotCooldowns,omitempty"`
}

// seenSet remembers the most recent maxSeen ids in insertion order.
type seenSet struct {
	ids   map[string]bool
	order []string
}

func newSeenSet(ids []string) *seenSet {
	s := &seenSet{ids: make(map[string]bool)}
	for _, id := range ids {
		s.add(id)
	}
	return s
}

func (s *seenSet) has(id string) bool { return s.ids[id] }

func (s *seenSet) add(id string) {
	if id == "" || s.ids[id] {
		return
	}
	s.ids[id] = true
	s.order = append(s.order, id)
	if len(s.order) > maxSeen {
		for _, old := range s.order[:len(s.order)-maxSeen] {
			delete(s.ids, old)
		}
		s.order = append([]string(nil), s.order[len(s.order)-maxSeen:]...)
	}
}

type Monitor struct {
	bot      Sender
	trades   TradeSource
	pools    PoolSource
	history  HistorySource
	cfg      Config
	muted    *fs.MutedPools
	detector *hot_token.Detector

	statePath   string
	seenPools   *seenSet
	seenTrades  *seenSet
	lastTradeAt time.Time
	baseline    bool

	now func() time.Time
}

// NewMonitor loads persisted state from cfg.OutDir. Without prior state the
// first poll only records what already exists.
func NewMonitor(bot Sender, trades TradeSource, pools PoolSource, history HistorySource, cfg Config) (*Monitor, error) {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	m := &Monitor{
		bot:       bot,
		trades:    trades,
		pools:     pools,
		history:   history,
		cfg:       cfg,
		muted:     fs.NewMutedPools(cfg.OutDir),
		detector:  hot_token.NewDetector(cfg.SwapsCount, cfg.MinAddresses, cfg.HotCooldown),
		statePath: filepath.Join(cfg.OutDir, StateFile),
		now:       time.Now,
	}

	var st monitorState
	found, err := fs.ReadJSON(m.statePath, &st)
	if err != nil {
		return nil, fmt.Errorf("load monitor state: %w", err)
	}
	m.seenPools = newSeenSet(st.SeenPools)
	m.seenTrades = newSeenSet(st.SeenTrades)
	m.lastTradeAt = st.LastTradeAt
	m.baseline = !found
	m.detector.RestoreCooldowns(st.HotCooldowns, m.now())

	log.LogInfo("Monitor state loaded",
		zap.String("file", m.statePath),
		zap.Bool("found", found),
		zap.Int("seenPools", len(m.seenPools.order)),
		zap.Int("seenTrades", len(m.seenTrades.order)))
	return m, nil
}

// Run polls every interval until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) error {
	log.LogInfo("Starting Telegram monitor",
		zap.Int64("chatID", m.cfg.ChatID),
		zap.String("minTradeSui", m.cfg.MinTradeSUI.String()),
		zap.Duration("interval", m.cfg.Interval))

	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	for {
		if err := m.Poll(ctx); err != nil && ctx.Err() == nil {
			log.LogWarn("Monitor poll failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			log.LogInfo("Telegram monitor stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// Poll runs one round: new pools, big trades, hot tokens, then saves state.
func (m *Monitor) Poll(ctx context.Context) error {
	muted, err := m.muted.Load()
	if err != nil {
		log.LogWarn("Failed to load muted pools", zap.Error(err))
		muted = nil
	}

	var firstErr error
	suiUSD, err := m.checkNewPools(ctx, muted)
	if err != nil {
		firstErr = err
	}
	if err := m.checkTrades(ctx, muted, suiUSD); err != nil && firstErr == nil {
		firstErr = err
	}

	m.baseline = false
	if err := m.saveState(); err != nil {
		log.LogError("Failed to save monitor state", zap.String("file", m.statePath), zap.Error(err))
	}
	return firstErr
}

func (m *Monitor) checkNewPools(ctx context.Context, muted []string) (decimal.Decimal, error) {
	listing, err := m.pools.List(ctx, tokens.Query{Sort: market.SortCreated, Limit: newPoolsLimit})
	if err != nil {
		return decimal.Zero, fmt.Errorf("list newest pools: %w", err)
	}

	fresh := make([]domain.Pool, 0)
	for _, p := range listing.Tokens {
		if !m.seenPools.has(p.Address) {
			fresh = append(fresh, p)
		}
	}
	// oldest first so the chat reads chronologically
	sort.SliceStable(fresh, func(i, j int) bool { return fresh[i].CreatedAt.Before(fresh[j].CreatedAt) })

	for _, p := range fresh {
		if m.baseline || fs.IsMuted(p.Address, muted) {
			m.seenPools.add(p.Address)
			continue
		}
		if err := m.sendNewPool(ctx, p); err != nil {
			log.LogError("Failed to send new pool notification",
				zap.String("pool", p.Address),
				zap.Error(err))
			continue
		}
		m.seenPools.add(p.Address)
		log.LogInfo("New pool notification sent",
			zap.String("pool", p.Address),
			zap.String("symbol", p.Symbol))
	}
	return listing.SUIPriceUSD, nil
}

func (m *Monitor) sendNewPool(ctx context.Context, p domain.Pool) error {
	caption := FormatNewPoolMessage(p)
	png, err := renderCard(ctx, m.history, p, m.now())
	if err != nil {
		log.LogWarn("Card unavailable, sending text", zap.String("pool", p.Address), zap.Error(err))
		return m.sendText(caption)
	}
	photo := tgbotapi.NewPhoto(m.cfg.ChatID, tgbotapi.FileBytes{Name: "card.png", Bytes: png})
	photo.Caption = caption
	photo.ParseMode = tgbotapi.ModeHTML
	_, err = m.bot.Send(photo)
	return err
}

func (m *Monitor) checkTrades(ctx context.Context, muted []string, suiUSD decimal.Decimal) error {
	since := m.lastTradeAt.Add(-tradeOverlap)
	if m.lastTradeAt.IsZero() {
		since = m.now().Add(-m.cfg.Interval)
	}
	trades, err := m.trades.RecentTrades(ctx, since, tradesLimit)
	if err != nil {
		return fmt.Errorf("recent trades: %w", err)
	}

	fresh := make([]domain.Trade, 0, len(trades))
	for _, t := range trades {
		if m.seenTrades.has(t.Digest) {
			continue
		}
		m.seenTrades.add(t.Digest)
		fresh = append(fresh, t)
		if t.Timestamp.After(m.lastTradeAt) {
			m.lastTradeAt = t.Timestamp
		}
	}
	sort.SliceStable(fresh, func(i, j int) bool { return fresh[i].Timestamp.Before(fresh[j].Timestamp) })

	if m.baseline {
		m.detector.Observe(fresh)
		return nil
	}

	for _, t := range fresh {
		if !ShouldSendTrade(t, m.cfg.MinTradeSUI) || fs.IsMuted(t.PoolAddress, muted) {
			continue
		}
		if err := m.sendText(FormatTradeMessage(t, suiUSD)); err != nil {
			log.LogError("Failed to send trade notification", zap.String("digest", t.Digest), zap.Error(err))
			continue
		}
		log.LogInfo("Big trade notification sent",
			zap.String("digest", t.Digest),
			zap.String("pool", t.PoolAddress),
			zap.String("quoteSui", t.QuoteSUI().String()))
	}

	m.checkHotTokens(ctx, fresh, muted)
	return nil
}

func (m *Monitor) sendText(text string) error {
	msg := tgbotapi.NewMessage(m.cfg.ChatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	_, err := m.bot.Send(msg)
	return err
}

func (m *Monitor) saveState() error {
	return fs.WriteJSON(m.statePath, monitorState{
		SeenPools:    m.seenPools.order,
		SeenTrades:   m.seenTrades.order,
		LastTradeAt:  m.lastTradeAt,
		HotCooldowns: m.detector.Cooldowns(),
	})
}

func shortPool(address string) string {
	return sui.ShortAddress(address)
}

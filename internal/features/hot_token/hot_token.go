// Package hot_token flags pools whose latest trades come from many distinct wallets.
package hot_token

import (
	"sort"
	"sync"
	"time"

	"memez-terminal/internal/domain"
	"memez-terminal/internal/infra/log"
	"memez-terminal/internal/sui"

	"go.uber.org/zap"
)

const (
	DefaultSwapsCount   = 6
	DefaultMinAddresses = 3
	DefaultCooldown     = time.Hour
)

// Hot is one alert-worthy pool.
type Hot struct {
	PoolAddress   string
	Symbol        string
	UniqueSenders int
	Trades        []domain.Trade
}

// CheckFromTrades reports whether the swapsCount most recent trades of pool come
// from at least minAddresses distinct senders. trades must be newest first.
func CheckFromTrades(trades []domain.Trade, pool string, swapsCount, minAddresses int) (bool, int) {
	if pool == "" {
		return false, 0
	}

	unique := make(map[string]bool)
	forPool := 0
	for _, t := range trades {
		if t.PoolAddress != pool {
			continue
		}
		forPool++
		if t.Sender != "" {
			unique[t.Sender] = true
		}
		if forPool >= swapsCount {
			break
		}
	}

	if forPool >= swapsCount && len(unique) >= minAddresses {
		return true, len(unique)
	}
	return false, len(unique)
}

// UniquePools lists the pools that appear in trades, sorted.
func UniquePools(trades []domain.Trade) []string {
	seen := make(map[string]bool)
	for _, t := range trades {
		if t.PoolAddress != "" {
			seen[t.PoolAddress] = true
		}
	}
	out := make([]string, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Detector keeps the latest trades per pool across polls and alerts on a pool
// at most once per cooldown.
type Detector struct {
	mu           sync.Mutex
	swapsCount   int
	minAddresses int
	cooldown     time.Duration

	recent      map[string][]domain.Trade // newest first, at most swapsCount
	seen        map[string]bool
	lastAlerted map[string]time.Time
}

func NewDetector(swapsCount, minAddresses int, cooldown time.Duration) *Detector {
	if swapsCount <= 0 {
		swapsCount = DefaultSwapsCount
	}
	if minAddresses <= 0 {
		minAddresses = DefaultMinAddresses
	}
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &Detector{
		swapsCount:   swapsCount,
		minAddresses: minAddresses,
		cooldown:     cooldown,
		recent:       make(map[string][]domain.Trade),
		seen:         make(map[string]bool),
		lastAlerted:  make(map[string]time.Time),
	}
}

// Observe adds trades (any order); trades already seen by digest are ignored.
// It returns the pools whose window changed.
func (d *Detector) Observe(trades []domain.Trade) []string {
	d.mu.Lock()
	defer d.mu.Unlock()

	touched := make(map[string]bool)
	for _, t := range trades {
		if t.PoolAddress == "" || (t.Digest != "" && d.seen[t.Digest]) {
			continue
		}
		if t.Digest != "" {
			d.seen[t.Digest] = true
		}
		d.recent[t.PoolAddress] = append(d.recent[t.PoolAddress], t)
		touched[t.PoolAddress] = true
	}

	for pool := range touched {
		window := d.recent[pool]
		sort.SliceStable(window, func(i, j int) bool { return window[i].Timestamp.After(window[j].Timestamp) })
		if len(window) > d.swapsCount {
			for _, old := range window[d.swapsCount:] {
				delete(d.seen, old.Digest)
			}
			window = window[:d.swapsCount]
		}
		d.recent[pool] = window
	}
	out := make([]string, 0, len(touched))
	for pool := range touched {
		out = append(out, pool)
	}
	sort.Strings(out)
	return out
}

// Detect returns hot pools among candidates that are not cooling down and
// starts their cooldown.
func (d *Detector) Detect(candidates []string, now time.Time) []Hot {
	d.mu.Lock()
	defer d.mu.Unlock()

	var out []Hot
	for _, pool := range candidates {
		if last, ok := d.lastAlerted[pool]; ok && now.Sub(last) < d.cooldown {
			continue
		}
		window := d.recent[pool]
		hot, unique := CheckFromTrades(window, pool, d.swapsCount, d.minAddresses)
		log.LogDebug("Checked hot token conditions",
			zap.String("pool", sui.ShortAddress(pool)),
			zap.Int("trades", len(window)),
			zap.Int("uniqueSenders", unique),
			zap.Bool("isHot", hot))
		if !hot {
			continue
		}
		d.lastAlerted[pool] = now
		h := Hot{PoolAddress: pool, UniqueSenders: unique, Trades: append([]domain.Trade(nil), window...)}
		if len(window) > 0 {
			h.Symbol = window[0].Symbol
		}
		out = append(out, h)
	}
	return out
}

// Cooldowns returns the last alert time per pool for persistence.
func (d *Detector) Cooldowns() map[string]time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(map[string]time.Time, len(d.lastAlerted))
	for k, v := range d.lastAlerted {
		out[k] = v
	}
	return out
}

// RestoreCooldowns reloads persisted alert times, dropping expired entries.
func (d *Detector) RestoreCooldowns(cooldowns map[string]time.Time, now time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for pool, at := range cooldowns {
		if now.Sub(at) < d.cooldown {
			d.lastAlerted[pool] = at
		}
	}
}

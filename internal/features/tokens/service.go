// Package tokens serves the aggregated token list behind /api/tokens.
//
// Reads go cache first. On a miss the indexer is asked, and when it fails the
// last good page (kept under a long-lived stale key) is served instead. The SUI
// price degrades oracle -> binance -> stale -> zero. Coin metadata the indexer
// lacks is read from chain once a day and kept in a shared hash.
package tokens

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"memez-terminal/internal/clients_api/indexer"
	"memez-terminal/internal/clients_api/oracle"
	"memez-terminal/internal/domain"
	"memez-terminal/internal/features/market"
	"memez-terminal/internal/infra/cache"
	"memez-terminal/internal/infra/log"
	"memez-terminal/internal/infra/metrics"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var ErrNotFound = errors.New("token not found")

const (
	DefaultLimit = 50
	MaxLimit     = 100

	metadataWorkers = 8
)

const (
	SourceCache   = "cache"
	SourceIndexer = "indexer"
	SourceStale   = "stale"
)

type PoolIndexer interface {
	Pools(ctx context.Context, q indexer.PoolQuery) (*indexer.PoolPage, error)
	Pool(ctx context.Context, address string) (*indexer.Pool, error)
}

type ChainReader interface {
	GetCoinMetadata(ctx context.Context, coinType string) (*domain.TokenMetadata, error)
	GetTotalSupply(ctx context.Context, coinType string) (decimal.Decimal, error)
}

type PriceSource interface {
	SUIPrice(ctx context.Context) (oracle.Quote, error)
}

type Query struct {
	Sort            market.SortKey
	Limit           int
	Offset          int
	Search          string
	IncludeMigrated bool
}

func (q Query) normalized() Query {
	if q.Sort == "" {
		q.Sort = market.SortMarketCap
	}
	if q.Limit <= 0 {
		q.Limit = DefaultLimit
	}
	if q.Limit > MaxLimit {
		q.Limit = MaxLimit
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	return q
}

func (q Query) cacheKey() string {
	return cache.TokenListKey(string(q.Sort), fmt.Sprint(q.Limit), fmt.Sprint(q.Offset),
		q.Search, fmt.Sprint(q.IncludeMigrated))
}

type Listing struct {
	Tokens        []domain.Pool   `json:"tokens"`
	Total         int             `json:"total"`
	SUIPriceUSD   decimal.Decimal `json:"suiPriceUsd"`
	PriceSource   string          `json:"priceSource"`
	PriceDegraded bool            `json:"priceDegraded"`
	Source        string          `json:"source"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

type cachedPrice struct {
	Price  decimal.Decimal `json:"price"`
	Source string          `json:"source"`
}

type Service struct {
	indexer PoolIndexer
	chain   ChainReader
	prices  PriceSource
	cache   cache.Store
	now     func() time.Time
}

func NewService(idx PoolIndexer, chain ChainReader, prices PriceSource, store cache.Store) *Service {
	return &Service{indexer: idx, chain: chain, prices: prices, cache: store, now: time.Now}
}

func (s *Service) List(ctx context.Context, q Query) (*Listing, error) {
	return s.list(ctx, q, false)
}

// list skips the fresh page key when force is set; used by the refresher.
func (s *Service) list(ctx context.Context, q Query, force bool) (*Listing, error) {
	q = q.normalized()
	key := q.cacheKey()

	var (
		page     indexer.PoolPage
		pageHit  bool
		price    cachedPrice
		priceHit bool
		metaHash map[string]string
	)

	g, gctx := errgroup.WithContext(ctx)
	if !force {
		g.Go(func() error {
			pageHit = cache.GetJSON(gctx, s.cache, key, &page) == nil
			return nil
		})
	}
	g.Go(func() error {
		priceHit = cache.GetJSON(gctx, s.cache, cache.KeySUIPrice, &price) == nil
		return nil
	})
	g.Go(func() error {
		h, err := s.cache.HGetAll(gctx, cache.KeyMetadata)
		if err != nil && !errors.Is(err, cache.ErrMiss) {
			log.LogWarn("Metadata hash read failed", zap.Error(err))
		}
		metaHash = h
		return nil
	})
	g.Wait()

	listing := &Listing{Source: SourceCache, UpdatedAt: s.now()}
	if !pageHit {
		fresh, err := s.indexer.Pools(ctx, indexer.PoolQuery{
			Sort:            string(q.Sort),
			Limit:           q.Limit,
			Offset:          q.Offset,
			Search:          q.Search,
			IncludeMigrated: q.IncludeMigrated,
		})
		if err == nil {
			page = *fresh
			listing.Source = SourceIndexer
			s.storePage(ctx, key, page)
		} else {
			log.LogWarn("Indexer pools failed, trying stale page", zap.String("key", key), zap.Error(err))
			if staleErr := cache.GetJSON(ctx, s.cache, cache.StaleKey(key), &page); staleErr != nil {
				return nil, fmt.Errorf("list tokens: %w", err)
			}
			metrics.Fallbacks.WithLabelValues("tokens", SourceStale).Inc()
			listing.Source = SourceStale
		}
	}

	if !priceHit {
		price = s.resolvePrice(ctx)
	}
	listing.SUIPriceUSD = price.Price
	listing.PriceSource = price.Source
	listing.PriceDegraded = price.Source == SourceStale || !price.Price.IsPositive()

	metas := s.metadataFor(ctx, page.Items, decodeMetaHash(metaHash))

	listing.Total = page.Total
	listing.Tokens = make([]domain.Pool, 0, len(page.Items))
	for _, raw := range page.Items {
		listing.Tokens = append(listing.Tokens, market.ProcessPoolData(raw, price.Price, metas[raw.CoinType]))
	}
	market.Sort(listing.Tokens, q.Sort)
	return listing, nil
}

// Get returns one priced pool by address.
func (s *Service) Get(ctx context.Context, address string) (*domain.Pool, error) {
	key := cache.PoolKey(address)

	var raw indexer.Pool
	if err := cache.GetJSON(ctx, s.cache, key, &raw); err != nil {
		p, err := s.indexer.Pool(ctx, address)
		if err != nil {
			return nil, fmt.Errorf("get token %s: %w", address, err)
		}
		if p == nil {
			return nil, ErrNotFound
		}
		raw = *p
		if err := cache.SetJSON(ctx, s.cache, key, raw, cache.PoolTTL); err != nil {
			log.LogWarn("Pool cache write failed", zap.String("pool", address), zap.Error(err))
		}
	}

	var price cachedPrice
	if err := cache.GetJSON(ctx, s.cache, cache.KeySUIPrice, &price); err != nil {
		price = s.resolvePrice(ctx)
	}

	metaHash, err := s.cache.HGetAll(ctx, cache.KeyMetadata)
	if err != nil && !errors.Is(err, cache.ErrMiss) {
		log.LogWarn("Metadata hash read failed", zap.Error(err))
	}
	metas := s.metadataFor(ctx, []indexer.Pool{raw}, decodeMetaHash(metaHash))

	pool := market.ProcessPoolData(raw, price.Price, metas[raw.CoinType])
	return &pool, nil
}

// SUIPrice returns the current SUI/USD price through the cache.
func (s *Service) SUIPrice(ctx context.Context) (decimal.Decimal, bool) {
	var price cachedPrice
	if err := cache.GetJSON(ctx, s.cache, cache.KeySUIPrice, &price); err != nil {
		price = s.resolvePrice(ctx)
	}
	return price.Price, price.Source != SourceStale && price.Price.IsPositive()
}

func (s *Service) storePage(ctx context.Context, key string, page indexer.PoolPage) {
	if err := cache.SetJSON(ctx, s.cache, key, page, cache.TokenListTTL); err != nil {
		log.LogWarn("Token page cache write failed", zap.String("key", key), zap.Error(err))
		return
	}
	if err := cache.SetJSON(ctx, s.cache, cache.StaleKey(key), page, cache.StaleTokenListTTL); err != nil {
		log.LogWarn("Stale token page cache write failed", zap.String("key", key), zap.Error(err))
	}
}

// resolvePrice walks the price sources, then the stale price, then zero.
func (s *Service) resolvePrice(ctx context.Context) cachedPrice {
	if s.prices != nil {
		quote, err := s.prices.SUIPrice(ctx)
		if err == nil {
			p := cachedPrice{Price: quote.Price, Source: quote.Source}
			if err := cache.SetJSON(ctx, s.cache, cache.KeySUIPrice, p, cache.SUIPriceTTL); err != nil {
				log.LogWarn("SUI price cache write failed", zap.Error(err))
			}
			if err := cache.SetJSON(ctx, s.cache, cache.KeySUIPriceStale, p, cache.StaleSUIPriceTTL); err != nil {
				log.LogWarn("Stale SUI price cache write failed", zap.Error(err))
			}
			return p
		}
		log.LogWarn("All SUI price sources failed", zap.Error(err))
	}

	var stale cachedPrice
	if err := cache.GetJSON(ctx, s.cache, cache.KeySUIPriceStale, &stale); err == nil {
		metrics.Fallbacks.WithLabelValues("sui_price", SourceStale).Inc()
		return cachedPrice{Price: stale.Price, Source: SourceStale}
	}
	metrics.Fallbacks.WithLabelValues("sui_price", "zero").Inc()
	log.LogError("No SUI price available, pricing in USD disabled")
	return cachedPrice{Price: decimal.Zero, Source: "none"}
}

func decodeMetaHash(h map[string]string) map[string]*domain.TokenMetadata {
	out := make(map[string]*domain.TokenMetadata, len(h))
	for coinType, js := range h {
		var m domain.TokenMetadata
		if err := json.Unmarshal([]byte(js), &m); err != nil {
			continue
		}
		out[coinType] = &m
	}
	return out
}

func needsChain(p indexer.Pool) (meta, supply bool) {
	return p.NeedsMetadata(), !p.TotalSupply.Known()
}

// metadataFor returns metadata for every pool that needs it, reading the
// chain for coin types missing from known and writing them back to the hash.
func (s *Service) metadataFor(ctx context.Context, pools []indexer.Pool, known map[string]*domain.TokenMetadata) map[string]*domain.TokenMetadata {
	type job struct {
		coinType     string
		meta, supply bool
	}
	var jobs []job
	queued := make(map[string]bool)
	for _, p := range pools {
		needMeta, needSupply := needsChain(p)
		if !needMeta && !needSupply {
			continue
		}
		if _, ok := known[p.CoinType]; ok || queued[p.CoinType] || p.CoinType == "" {
			continue
		}
		queued[p.CoinType] = true
		jobs = append(jobs, job{coinType: p.CoinType, meta: needMeta, supply: needSupply})
	}
	if len(jobs) == 0 || s.chain == nil {
		return known
	}

	type result struct {
		meta *domain.TokenMetadata
		// complete is false when a lookup failed; such records are not cached
		complete bool
	}
	fetched := make([]result, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(metadataWorkers)
	for i, j := range jobs {
		g.Go(func() error {
			m := &domain.TokenMetadata{CoinType: j.coinType}
			if j.meta {
				onChain, err := s.chain.GetCoinMetadata(gctx, j.coinType)
				if err != nil {
					log.LogWarn("Coin metadata from chain failed", zap.String("coin_type", j.coinType), zap.Error(err))
					return nil
				}
				if onChain != nil {
					m = onChain
				}
			}
			complete := true
			if j.supply {
				supply, err := s.chain.GetTotalSupply(gctx, j.coinType)
				if err != nil {
					log.LogWarn("Total supply from chain failed", zap.String("coin_type", j.coinType), zap.Error(err))
					complete = false
				} else {
					m.Supply = supply
				}
			}
			fetched[i] = result{meta: m, complete: complete}
			return nil
		})
	}
	g.Wait()

	fields := make(map[string]string)
	for _, r := range fetched {
		m := r.meta
		if m == nil {
			continue
		}
		known[m.CoinType] = m
		if !r.complete {
			continue
		}
		js, err := json.Marshal(m)
		if err != nil {
			continue
		}
		fields[m.CoinType] = string(js)
	}
	if len(fields) > 0 {
		if err := s.cache.HSet(ctx, cache.KeyMetadata, fields, cache.MetadataTTL); err != nil {
			log.LogWarn("Metadata hash write failed", zap.Error(err))
		}
	}
	return known
}

package tokens

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"memez-terminal/internal/clients_api/indexer"
	"memez-terminal/internal/clients_api/oracle"
	"memez-terminal/internal/domain"
	"memez-terminal/internal/features/market"
	"memez-terminal/internal/infra/cache"
	"memez-terminal/internal/infra/log"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type fakeIndexer struct {
	page  *indexer.PoolPage
	pool  *indexer.Pool
	err   error
	calls atomic.Int32
}

func (f *fakeIndexer) Pools(ctx context.Context, q indexer.PoolQuery) (*indexer.PoolPage, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return f.page, nil
}

func (f *fakeIndexer) Pool(ctx context.Context, address string) (*indexer.Pool, error) {
	f.calls.Add(1)
	return f.pool, f.err
}

type fakeChain struct {
	mu        sync.Mutex
	metaHits  map[string]int
	noMeta    bool
	supplyErr error
}

func (f *fakeChain) GetCoinMetadata(ctx context.Context, coinType string) (*domain.TokenMetadata, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.metaHits == nil {
		f.metaHits = map[string]int{}
	}
	f.metaHits[coinType]++
	if f.noMeta {
		return nil, nil
	}
	return &domain.TokenMetadata{CoinType: coinType, Name: "Chain Dog", Symbol: "CDOG", Decimals: 6, DecimalsKnown: true}, nil
}

func (f *fakeChain) GetTotalSupply(ctx context.Context, coinType string) (decimal.Decimal, error) {
	if f.supplyErr != nil {
		return decimal.Zero, f.supplyErr
	}
	return decimal.NewFromInt(1_000_000_000_000), nil
}

type fakePrices struct {
	quote oracle.Quote
	err   error
}

func (f fakePrices) SUIPrice(context.Context) (oracle.Quote, error) { return f.quote, f.err }

func intPtr(v int) *int { return &v }

func samplePage() *indexer.PoolPage {
	return &indexer.PoolPage{
		Total: 2,
		Items: []indexer.Pool{
			{Address: "0xp1", CoinType: "0xa::pepe::PEPE", Name: "Pepe", Symbol: "PEPE", Decimals: intPtr(9),
				Price: "0.001", TotalSupply: "1000000000000000000"},
			{Address: "0xp2", CoinType: "0xb::dog::DOG", Price: "0.5"},
		},
	}
}

func newService(idx *fakeIndexer, chain *fakeChain, prices PriceSource) (*Service, *cache.MemoryStore) {
	store := cache.NewMemoryStore()
	return NewService(idx, chain, prices, store), store
}

func TestListReadThroughAndCacheHit(t *testing.T) {
	idx := &fakeIndexer{page: samplePage()}
	chain := &fakeChain{}
	svc, _ := newService(idx, chain, fakePrices{quote: oracle.Quote{Price: decimal.NewFromInt(2), Source: "oracle"}})
	ctx := context.Background()

	listing, err := svc.List(ctx, Query{})
	require.NoError(t, err)
	assert.Equal(t, SourceIndexer, listing.Source)
	assert.Equal(t, "oracle", listing.PriceSource)
	assert.False(t, listing.PriceDegraded)
	require.Len(t, listing.Tokens, 2)

	// sorted by market cap: dog 0.5 SUI * 1M supply (6 decimals) vs pepe 0.001 * 1B
	assert.Equal(t, "0xp1", listing.Tokens[0].Address)
	dog := listing.Tokens[1]
	assert.Equal(t, "Chain Dog", dog.Name)
	assert.Equal(t, 6, dog.Decimals)
	assert.Equal(t, "1", dog.PriceUSD.String())

	again, err := svc.List(ctx, Query{})
	require.NoError(t, err)
	assert.Equal(t, SourceCache, again.Source)
	assert.Equal(t, int32(1), idx.calls.Load())
	assert.Equal(t, 1, chain.metaHits["0xb::dog::DOG"])
}

func TestListWithoutChainMetadataKeepsDefaultDecimals(t *testing.T) {
	idx := &fakeIndexer{page: &indexer.PoolPage{
		Total: 1,
		Items: []indexer.Pool{{Address: "0xp3", CoinType: "0xc::cat::CAT", Name: "Cat", Symbol: "CAT", Price: "0.5"}},
	}}
	chain := &fakeChain{noMeta: true, supplyErr: errors.New("node unavailable")}
	svc, store := newService(idx, chain, fakePrices{quote: oracle.Quote{Price: decimal.NewFromInt(2), Source: "oracle"}})
	ctx := context.Background()

	listing, err := svc.List(ctx, Query{})
	require.NoError(t, err)
	require.Len(t, listing.Tokens, 1)
	cat := listing.Tokens[0]
	assert.Equal(t, market.DefaultDecimals, cat.Decimals)
	assert.Equal(t, "0.5", cat.PriceSUI.String())
	// 1B whole coins at 1 USD each
	assert.Equal(t, "1000000000", cat.MarketCapUSD.String())

	// a record with a failed lookup is not cached
	_, err = store.HGetAll(ctx, cache.KeyMetadata)
	assert.ErrorIs(t, err, cache.ErrMiss)

	_, err = svc.List(ctx, Query{})
	require.NoError(t, err)
	assert.Equal(t, 2, chain.metaHits["0xc::cat::CAT"])
}

func TestListFallsBackToStalePage(t *testing.T) {
	idx := &fakeIndexer{err: errors.New("indexer down")}
	svc, store := newService(idx, &fakeChain{}, fakePrices{quote: oracle.Quote{Price: decimal.NewFromInt(1), Source: "oracle"}})
	ctx := context.Background()

	key := Query{}.normalized().cacheKey()
	require.NoError(t, cache.SetJSON(ctx, store, cache.StaleKey(key), samplePage(), time.Minute))

	listing, err := svc.List(ctx, Query{})
	require.NoError(t, err)
	assert.Equal(t, SourceStale, listing.Source)
	assert.Len(t, listing.Tokens, 2)
}

func TestListErrorsWithoutStalePage(t *testing.T) {
	idx := &fakeIndexer{err: errors.New("indexer down")}
	svc, _ := newService(idx, &fakeChain{}, fakePrices{quote: oracle.Quote{Price: decimal.NewFromInt(1), Source: "oracle"}})

	_, err := svc.List(context.Background(), Query{})
	assert.ErrorContains(t, err, "indexer down")
}

func TestPriceDegradesToStaleThenZero(t *testing.T) {
	idx := &fakeIndexer{page: samplePage()}
	svc, store := newService(idx, &fakeChain{}, fakePrices{err: errors.New("all sources down")})
	ctx := context.Background()

	listing, err := svc.List(ctx, Query{})
	require.NoError(t, err)
	assert.True(t, listing.PriceDegraded)
	assert.True(t, listing.SUIPriceUSD.IsZero())
	assert.True(t, listing.Tokens[0].PriceUSD.IsZero())

	require.NoError(t, cache.SetJSON(ctx, store, cache.KeySUIPriceStale,
		cachedPrice{Price: decimal.NewFromFloat(3.5), Source: "oracle"}, time.Hour))

	price, live := svc.SUIPrice(ctx)
	assert.Equal(t, "3.5", price.String())
	assert.False(t, live)
}

func TestQueryNormalization(t *testing.T) {
	q := Query{Limit: 1000, Offset: -5}.normalized()
	assert.Equal(t, MaxLimit, q.Limit)
	assert.Equal(t, 0, q.Offset)
	assert.Equal(t, DefaultLimit, Query{}.normalized().Limit)
	assert.NotEqual(t, Query{Search: "dog"}.normalized().cacheKey(), Query{}.normalized().cacheKey())
}

func TestGetNotFound(t *testing.T) {
	svc, _ := newService(&fakeIndexer{}, &fakeChain{}, fakePrices{quote: oracle.Quote{Price: decimal.NewFromInt(1), Source: "oracle"}})
	_, err := svc.Get(context.Background(), "0xmissing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetCachesPool(t *testing.T) {
	page := samplePage()
	idx := &fakeIndexer{pool: &page.Items[0]}
	svc, _ := newService(idx, &fakeChain{}, fakePrices{quote: oracle.Quote{Price: decimal.NewFromInt(2), Source: "oracle"}})

	for i := 0; i < 2; i++ {
		p, err := svc.Get(context.Background(), "0xp1")
		require.NoError(t, err)
		assert.Equal(t, "0.002", p.PriceUSD.String())
	}
	assert.Equal(t, int32(1), idx.calls.Load())
}

// brokenStore fails hash reads and writes of the stale price key.
type brokenStore struct {
	*cache.MemoryStore
}

func (b brokenStore) HGetAll(context.Context, string) (map[string]string, error) {
	return nil, errors.New("connection reset")
}

func (b brokenStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if key == cache.KeySUIPriceStale {
		return errors.New("connection reset")
	}
	return b.MemoryStore.Set(ctx, key, value, ttl)
}

func TestGetLogsCacheFailures(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	prev := log.Logger
	log.Logger = zap.New(core)
	t.Cleanup(func() { log.Logger = prev })

	page := samplePage()
	svc := NewService(&fakeIndexer{pool: &page.Items[0]}, &fakeChain{},
		fakePrices{quote: oracle.Quote{Price: decimal.NewFromInt(2), Source: "oracle"}},
		brokenStore{cache.NewMemoryStore()})

	p, err := svc.Get(context.Background(), "0xp1")
	require.NoError(t, err)
	assert.Equal(t, "0.002", p.PriceUSD.String())

	assert.Equal(t, 1, logs.FilterMessage("Metadata hash read failed").Len())
	assert.Equal(t, 1, logs.FilterMessage("Stale SUI price cache write failed").Len())
}

type recordingSnapshots struct{ got []domain.PoolSnapshot }

func (r *recordingSnapshots) InsertBulk(_ context.Context, s []domain.PoolSnapshot) error {
	r.got = append(r.got, s...)
	return nil
}

type recordingFeed struct{ topics []string }

func (r *recordingFeed) Publish(topic string, _ interface{}) { r.topics = append(r.topics, topic) }

type fakeTrades struct{ trades []domain.Trade }

func (f fakeTrades) RecentTrades(context.Context, time.Time, int) ([]domain.Trade, error) {
	return f.trades, nil
}

func TestRefresherRecordsAndPublishes(t *testing.T) {
	idx := &fakeIndexer{page: samplePage()}
	svc, _ := newService(idx, &fakeChain{}, fakePrices{quote: oracle.Quote{Price: decimal.NewFromInt(2), Source: "oracle"}})
	snaps := &recordingSnapshots{}
	feed := &recordingFeed{}
	tradeAt := time.Now()
	r := NewRefresher(svc, snaps, feed, fakeTrades{trades: []domain.Trade{{Digest: "d", Timestamp: tradeAt}}}, time.Minute)

	r.tick(context.Background())
	r.tick(context.Background())

	// force skips the fresh key both times
	assert.Equal(t, int32(2), idx.calls.Load())
	assert.Len(t, snaps.got, 4)
	assert.Equal(t, []string{TopicTokens, TopicTrades, TopicTokens, TopicTrades}, feed.topics)
	assert.Equal(t, tradeAt, r.lastTrade)
}

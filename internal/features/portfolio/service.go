// Package portfolio values a wallet's coin balances in SUI and USD.
package portfolio

import (
	"context"
	"fmt"
	"sort"
	"time"

	"memez-terminal/internal/clients_api/indexer"
	"memez-terminal/internal/domain"
	"memez-terminal/internal/features/market"
	"memez-terminal/internal/infra/log"
	"memez-terminal/internal/sui"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const DefaultInterval = 30 * time.Second

type Chain interface {
	GetAllBalances(ctx context.Context, owner string) ([]domain.CoinBalance, error)
	GetCoinMetadata(ctx context.Context, coinType string) (*domain.TokenMetadata, error)
}

type PoolLookup interface {
	PoolsByCoinTypes(ctx context.Context, coinTypes []string) ([]indexer.Pool, error)
}

// PriceSource returns the SUI/USD price and whether it is live.
type PriceSource interface {
	SUIPrice(ctx context.Context) (decimal.Decimal, bool)
}

type Service struct {
	chain  Chain
	pools  PoolLookup
	prices PriceSource
	now    func() time.Time
}

func NewService(chain Chain, pools PoolLookup, prices PriceSource) *Service {
	return &Service{chain: chain, pools: pools, prices: prices, now: time.Now}
}

func (s *Service) Get(ctx context.Context, owner string) (*domain.Portfolio, error) {
	owner, err := sui.NormalizeAddress(owner)
	if err != nil {
		return nil, err
	}

	balances, err := s.chain.GetAllBalances(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("balances of %s: %w", owner, err)
	}

	var coinTypes []string
	held := balances[:0]
	for _, b := range balances {
		if !b.TotalBalance.IsPositive() {
			continue
		}
		held = append(held, b)
		if !sui.IsSUI(b.CoinType) {
			coinTypes = append(coinTypes, b.CoinType)
		}
	}

	suiUSD := decimal.Zero
	if s.prices != nil {
		suiUSD, _ = s.prices.SUIPrice(ctx)
	}

	pools := s.lookupPools(ctx, coinTypes, suiUSD)
	metas := s.lookupMetadata(ctx, coinTypes, pools)

	p := &domain.Portfolio{Owner: owner, UpdatedAt: s.now()}
	for _, b := range held {
		pb := valueBalance(b, pools[b.CoinType], metas[b.CoinType], suiUSD)
		p.Balances = append(p.Balances, pb)
		p.TotalSUI = p.TotalSUI.Add(pb.ValueSUI)
		p.TotalUSD = p.TotalUSD.Add(pb.ValueUSD)
	}
	sortBalances(p.Balances)
	return p, nil
}

func (s *Service) lookupPools(ctx context.Context, coinTypes []string, suiUSD decimal.Decimal) map[string]domain.Pool {
	out := make(map[string]domain.Pool)
	if len(coinTypes) == 0 || s.pools == nil {
		return out
	}
	raw, err := s.pools.PoolsByCoinTypes(ctx, coinTypes)
	if err != nil {
		log.LogWarn("Pool lookup failed, memecoins will be unpriced", zap.Int("coin_types", len(coinTypes)), zap.Error(err))
		return out
	}
	for _, r := range raw {
		out[r.CoinType] = market.ProcessPoolData(r, suiUSD, nil)
	}
	return out
}

// lookupMetadata reads chain metadata for coins no pool describes.
func (s *Service) lookupMetadata(ctx context.Context, coinTypes []string, pools map[string]domain.Pool) map[string]*domain.TokenMetadata {
	var missing []string
	for _, ct := range coinTypes {
		if _, ok := pools[ct]; !ok {
			missing = append(missing, ct)
		}
	}
	results := make([]*domain.TokenMetadata, len(missing))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i, ct := range missing {
		g.Go(func() error {
			m, err := s.chain.GetCoinMetadata(gctx, ct)
			if err != nil {
				log.LogWarn("Coin metadata lookup failed", zap.String("coin_type", ct), zap.Error(err))
				return nil
			}
			results[i] = m
			return nil
		})
	}
	g.Wait()

	out := make(map[string]*domain.TokenMetadata, len(missing))
	for i, ct := range missing {
		if results[i] != nil {
			out[ct] = results[i]
		}
	}
	return out
}

func valueBalance(b domain.CoinBalance, pool domain.Pool, meta *domain.TokenMetadata, suiUSD decimal.Decimal) domain.PortfolioBalance {
	pb := domain.PortfolioBalance{CoinType: b.CoinType, Raw: b.TotalBalance}
	switch {
	case sui.IsSUI(b.CoinType):
		pb.Name, pb.Symbol, pb.Decimals = "Sui", "SUI", domain.SUIDecimals
		pb.PriceSUI = decimal.NewFromInt(1)
	case pool.Address != "":
		pb.PoolAddress = pool.Address
		pb.Name, pb.Symbol, pb.Decimals, pb.IconURL = pool.Name, pool.Symbol, pool.Decimals, pool.IconURL
		pb.PriceSUI = pool.PriceSUI
	case meta != nil:
		pb.Name, pb.Symbol, pb.Decimals, pb.IconURL = meta.Name, meta.Symbol, meta.Decimals, meta.IconURL
		if !meta.DecimalsKnown {
			pb.Decimals = market.DefaultDecimals
		}
	default:
		pb.Symbol = b.CoinType
		pb.Decimals = market.DefaultDecimals
	}
	pb.Amount = domain.ToHuman(b.TotalBalance, pb.Decimals)
	pb.ValueSUI = pb.Amount.Mul(pb.PriceSUI)
	pb.PriceUSD = pb.PriceSUI.Mul(suiUSD)
	pb.ValueUSD = pb.ValueSUI.Mul(suiUSD)
	return pb
}

// sortBalances orders by USD value, then SUI value, then coin type.
func sortBalances(bs []domain.PortfolioBalance) {
	sort.SliceStable(bs, func(i, j int) bool {
		if c := bs[i].ValueUSD.Cmp(bs[j].ValueUSD); c != 0 {
			return c > 0
		}
		if c := bs[i].ValueSUI.Cmp(bs[j].ValueSUI); c != 0 {
			return c > 0
		}
		return bs[i].CoinType < bs[j].CoinType
	})
}

package commands

// Shared wiring: config -> clients -> stores -> services. Every subcommand
// builds the same graph and closes it on exit.

import (
	"context"
	"fmt"
	"time"

	"memez-terminal/internal/clients_api/indexer"
	"memez-terminal/internal/clients_api/oracle"
	"memez-terminal/internal/clients_api/suirpc"
	"memez-terminal/internal/features/tokens"
	"memez-terminal/internal/infra/cache"
	"memez-terminal/internal/infra/config"
	logging "memez-terminal/internal/infra/log"
	"memez-terminal/internal/infra/retry"
	"memez-terminal/internal/storage"
	"memez-terminal/internal/storage/clickhouse"
	"memez-terminal/internal/storage/memory"
	"memez-terminal/internal/storage/migrations"
	"memez-terminal/internal/storage/postgres"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const (
	memorySnapshotsPerPool = 2880
	shutdownTimeout        = 10 * time.Second
)

type app struct {
	cfg     *config.Config
	cache   cache.Store
	indexer *indexer.Client
	rpc     *suirpc.Client
	prices  *oracle.Chain
	tokens  *tokens.Service

	claims    storage.ClaimStore
	airdrops  storage.AirdropStore
	snapshots storage.SnapshotStore

	closers []func()
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		logging.LogError("Failed to load config", zap.Error(err))
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg}
	if err := a.openCache(ctx); err != nil {
		return nil, err
	}

	a.indexer = indexer.NewClient(cfg.Indexer.GraphQLURL,
		indexer.WithAPIKey(cfg.Indexer.APIKey),
		indexer.WithRateLimit(cfg.Indexer.RequestsPerSec, cfg.Indexer.Burst),
		indexer.WithTimeout(time.Duration(cfg.Indexer.RequestTimeout)*time.Second))

	rpcRetry := retry.RPCBackoff
	rpcRetry.MaxRetries = cfg.Sui.MaxRetries
	a.rpc = suirpc.NewClient(cfg.Sui.RPCURL,
		suirpc.WithRateLimit(cfg.Sui.RequestsPerSec, int(cfg.Sui.RequestsPerSec)+1),
		suirpc.WithRetry(rpcRetry),
		suirpc.WithGasBudget(cfg.Sui.GasBudget))

	var sources []oracle.SUIPricer
	if cfg.Oracle.BaseURL != "" {
		sources = append(sources, oracle.NewClient(cfg.Oracle.BaseURL, cfg.Oracle.APIKey))
	}
	if cfg.Binance.Enabled {
		sources = append(sources, oracle.NewBinance(cfg.Binance.Symbol, cfg.Binance.BaseURL))
	}
	if len(sources) == 0 {
		logging.LogWarn("No SUI price source configured, USD values will be zero")
	}
	a.prices = oracle.NewChain(sources...)

	a.tokens = tokens.NewService(a.indexer, a.rpc, a.prices, a.cache)

	if err := a.openStores(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) openCache(ctx context.Context) error {
	if a.cfg.Redis.URL == "" {
		logging.LogInfo("Using in-process cache")
		a.cache = cache.NewMemoryStore()
		return nil
	}
	store, err := cache.NewRedisStore(ctx, a.cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	logging.LogInfo("Using redis cache")
	a.cache = store
	a.closers = append(a.closers, func() { store.Close() })
	return nil
}

// openStores picks postgres/clickhouse when a DSN is configured and the
// in-memory stores otherwise.
func (a *app) openStores(ctx context.Context) error {
	if dsn := a.cfg.Postgres.DSN; dsn != "" {
		pool, err := postgres.NewPool(ctx, dsn)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		a.closers = append(a.closers, pool.Close)
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			return fmt.Errorf("postgres migrations: %w", err)
		}
		a.claims = postgres.NewClaimStore(pool)
		a.airdrops = postgres.NewAirdropStore(pool)
		logging.LogInfo("Using postgres journals")
	} else {
		a.claims = memory.NewClaimStore()
		a.airdrops = memory.NewAirdropStore()
		logging.LogWarn("postgres.dsn not set, claim and airdrop journals are in-memory")
	}

	if dsn := a.cfg.ClickHouse.DSN; dsn != "" {
		conn, err := clickhouse.NewConn(ctx, dsn)
		if err != nil {
			return fmt.Errorf("connect clickhouse: %w", err)
		}
		a.closers = append(a.closers, func() { conn.Close() })
		if err := migrations.RunClickhouseMigrations(ctx, conn); err != nil {
			return fmt.Errorf("clickhouse migrations: %w", err)
		}
		a.snapshots = clickhouse.NewSnapshotStore(conn)
		logging.LogInfo("Using clickhouse snapshots")
	} else {
		a.snapshots = memory.NewSnapshotStore(memorySnapshotsPerPool)
		logging.LogWarn("clickhouse.dsn not set, price history is in-memory")
	}
	return nil
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// withApp loads config, builds the app and runs fn with a signal-aware context.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	a, err := newApp(ctx, cfg)
	if err != nil {
		logging.LogError("Failed to initialize", zap.Error(err))
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

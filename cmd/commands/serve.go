package commands

// serve runs the HTTP API, the websocket feed and the background refresher
// until SIGINT/SIGTERM, then waits up to shutdownTimeout for them to stop.

import (
	"context"
	"net/http"
	"sync"
	"time"

	"memez-terminal/internal/api"
	"memez-terminal/internal/features/leaderboard"
	"memez-terminal/internal/features/livefeed"
	"memez-terminal/internal/features/portfolio"
	"memez-terminal/internal/features/rewards"
	"memez-terminal/internal/features/tokens"
	logging "memez-terminal/internal/infra/log"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:                "serve",
	Short:              "Run the HTTP API, websocket feed and pool refresher",
	FParseErrWhitelist: cobra.FParseErrWhitelist{UnknownFlags: true},
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, runServe)
	},
}

func runServe(ctx context.Context, a *app) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cfg := a.cfg
	hub := livefeed.NewHub()

	deps := api.Deps{
		Tokens:      a.tokens,
		Portfolio:   portfolio.NewService(a.rpc, a.indexer, a.tokens),
		Leaderboard: leaderboard.NewService(a.indexer, a.cache),
		Rewards:     rewards.NewService(a.indexer),
		Claims:      a.claims,
		Snapshots:   a.snapshots,
		Feed:        http.HandlerFunc(hub.ServeWS),
		AdminToken:  cfg.Server.AdminToken,
	}

	if claimer, err := buildClaimer(a); err != nil {
		logging.LogWarn("Claims disabled", zap.Error(err))
	} else {
		deps.Claimer = claimer
	}
	if cfg.Server.AdminToken == "" {
		logging.LogWarn("server.admin_token not set, POST /api/rewards/claim is disabled")
	}

	server := api.NewServer(cfg.Server.Addr, deps,
		time.Duration(cfg.Server.ReadTimeout)*time.Second,
		time.Duration(cfg.Server.WriteTimeout)*time.Second)
	refresher := tokens.NewRefresher(a.tokens, a.snapshots, hub, a.indexer, cfg.App.RefreshEvery())

	var wg sync.WaitGroup
	errCh := make(chan error, 1)

	wg.Add(3)
	go func() {
		defer wg.Done()
		hub.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		refresher.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		if err := server.Run(ctx); err != nil {
			logging.LogError("HTTP server failed", zap.Error(err))
			errCh <- err
		}
	}()

	logging.LogSuccess("Memez terminal is running", zap.String("addr", cfg.Server.Addr))

	var runErr error
	select {
	case <-ctx.Done():
		logging.LogInfo("Shutdown signal received, gracefully stopping...")
	case runErr = <-errCh:
	}
	cancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logging.LogSuccess("All services stopped gracefully")
	case <-time.After(shutdownTimeout):
		logging.LogWarn("Timeout waiting for services to stop, forcing shutdown")
	}
	return runErr
}

// buildClaimer loads the memez wallet keys; without any the claim endpoint
// stays disabled.
func buildClaimer(a *app) (*rewards.Claimer, error) {
	keys, err := rewards.LoadKeyStore(a.cfg.Claim.WalletsFile)
	if err != nil {
		return nil, err
	}
	if keys.Len() == 0 {
		return nil, errNoWallets
	}
	logging.LogInfo("Claim wallets loaded", zap.Int("count", keys.Len()))
	return rewards.NewClaimer(a.rpc, keys, a.claims, a.cfg.Claim.MergeBatchSize), nil
}

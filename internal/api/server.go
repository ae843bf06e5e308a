// Package api exposes the terminal's read models and the claim endpoint over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"memez-terminal/internal/domain"
	"memez-terminal/internal/features/leaderboard"
	"memez-terminal/internal/features/rewards"
	"memez-terminal/internal/features/tokens"
	"memez-terminal/internal/infra/log"
	"memez-terminal/internal/infra/metrics"
	"memez-terminal/internal/storage"

	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

type TokenService interface {
	List(ctx context.Context, q tokens.Query) (*tokens.Listing, error)
	Get(ctx context.Context, address string) (*domain.Pool, error)
}

type PortfolioService interface {
	Get(ctx context.Context, owner string) (*domain.Portfolio, error)
}

type LeaderboardService interface {
	Top(ctx context.Context, period leaderboard.Period, metric leaderboard.Metric, limit int) ([]domain.LeaderboardEntry, error)
}

type RewardsService interface {
	Summary(ctx context.Context, address string) (*rewards.Summary, error)
}

type Claimer interface {
	MergeAndPrepareReceive(ctx context.Context, req rewards.ClaimRequest) (*domain.ClaimReceipt, error)
}

// Deps are the services behind the routes. A nil Claimer disables the claim endpoint.
type Deps struct {
	Tokens      TokenService
	Portfolio   PortfolioService
	Leaderboard LeaderboardService
	Rewards     RewardsService
	Claimer     Claimer
	Claims      storage.ClaimStore
	Snapshots   storage.SnapshotStore
	Feed        http.Handler
	AdminToken  string
}

type Server struct {
	deps Deps
	srv  *http.Server
}

func NewServer(addr string, deps Deps, readTimeout, writeTimeout time.Duration) *Server {
	s := &Server{deps: deps}
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: readTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
	}
	return s
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/tokens", s.handleTokens)
	mux.HandleFunc("GET /api/tokens/{address}", s.handleToken)
	mux.HandleFunc("GET /api/tokens/{address}/history", s.handleTokenHistory)
	mux.HandleFunc("GET /api/tokens/{address}/card.png", s.handleTokenCard)
	mux.HandleFunc("GET /api/portfolio/{address}", s.handlePortfolio)
	mux.HandleFunc("GET /api/leaderboard", s.handleLeaderboard)
	mux.HandleFunc("GET /api/rewards/{address}", s.handleRewards)
	mux.Handle("POST /api/rewards/claim", s.requireAdmin(http.HandlerFunc(s.handleClaim)))
	mux.HandleFunc("GET /api/claims/{user}", s.handleClaims)

	if s.deps.Feed != nil {
		mux.Handle("GET /ws/feed", s.deps.Feed)
	}
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("GET /metrics", metrics.Handler())

	return recoverer(requestLogger(mux))
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		log.LogInfo("HTTP server listening", zap.String("addr", s.srv.Addr))
		errCh <- s.srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.LogInfo("HTTP server stopped")
	return nil
}

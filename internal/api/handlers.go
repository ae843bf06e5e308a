package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"memez-terminal/internal/domain"
	"memez-terminal/internal/features/charts"
	"memez-terminal/internal/features/leaderboard"
	"memez-terminal/internal/features/market"
	"memez-terminal/internal/features/rewards"
	"memez-terminal/internal/features/tokens"
	"memez-terminal/internal/infra/log"
	"memez-terminal/internal/storage"
	"memez-terminal/internal/sui"

	"go.uber.org/zap"
)

const (
	defaultHistoryWindow = 24 * time.Hour
	defaultHistoryLimit  = 500
	maxHistoryLimit      = 5000
	cardHistoryLimit     = 288

	defaultClaimsLimit = 20
	maxClaimsLimit     = 100
	maxClaimBody       = 1 << 14
)

type errorResponse struct {
	Error   string               `json:"error"`
	Receipt *domain.ClaimReceipt `json:"receipt,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.LogWarn("Failed to write response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// statusFor maps service errors onto HTTP statuses; anything unknown is an
// upstream failure.
func statusFor(err error) int {
	switch {
	case errors.Is(err, storage.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, tokens.ErrNotFound),
		errors.Is(err, storage.ErrNotFound),
		errors.Is(err, rewards.ErrUnknownWallet):
		return http.StatusNotFound
	case errors.Is(err, rewards.ErrNothingToClaim):
		return http.StatusConflict
	}
	return http.StatusBadGateway
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= 500 {
		log.LogError("Request failed", zap.String("endpoint", r.URL.Path), zap.Error(err))
	}
	writeError(w, status, err.Error())
}

func intParam(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s %q", name, v)
	}
	return n, nil
}

func addressParam(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	addr, err := sui.NormalizeAddress(r.PathValue(name))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return "", false
	}
	return addr, true
}

func (s *Server) handleTokens(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	sortKey, ok := market.ParseSortKey(q.Get("sort"))
	if !ok {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid sort %q", q.Get("sort")))
		return
	}
	limit, err := intParam(r, "limit", tokens.DefaultLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	offset, err := intParam(r, "offset", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	includeMigrated, _ := strconv.ParseBool(q.Get("includeMigrated"))

	listing, err := s.deps.Tokens.List(r.Context(), tokens.Query{
		Sort:            sortKey,
		Limit:           limit,
		Offset:          offset,
		Search:          q.Get("search"),
		IncludeMigrated: includeMigrated,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("X-Data-Source", listing.Source)
	writeJSON(w, http.StatusOK, listing)
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	addr, ok := addressParam(w, r, "address")
	if !ok {
		return
	}
	pool, err := s.deps.Tokens.Get(r.Context(), addr)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pool)
}

func (s *Server) handleTokenHistory(w http.ResponseWriter, r *http.Request) {
	addr, ok := addressParam(w, r, "address")
	if !ok {
		return
	}
	window := defaultHistoryWindow
	if v := r.URL.Query().Get("window"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid window %q", v))
			return
		}
		window = d
	}
	limit, err := intParam(r, "limit", defaultHistoryLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if limit == 0 || limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	points, err := s.deps.Snapshots.History(r.Context(), addr, time.Now().Add(-window), limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if points == nil {
		points = []domain.PoolSnapshot{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"pool": addr, "points": points})
}

func (s *Server) handleTokenCard(w http.ResponseWriter, r *http.Request) {
	addr, ok := addressParam(w, r, "address")
	if !ok {
		return
	}
	pool, err := s.deps.Tokens.Get(r.Context(), addr)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	history, err := s.deps.Snapshots.History(r.Context(), addr, time.Now().Add(-defaultHistoryWindow), cardHistoryLimit)
	if err != nil {
		log.LogWarn("Card history unavailable", zap.String("pool", addr), zap.Error(err))
		history = nil
	}

	png, err := charts.RenderTokenCard(*pool, history)
	if err != nil {
		log.LogError("Card render failed", zap.String("pool", addr), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "render failed")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=60")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}

func (s *Server) handlePortfolio(w http.ResponseWriter, r *http.Request) {
	addr, ok := addressParam(w, r, "address")
	if !ok {
		return
	}
	p, err := s.deps.Portfolio.Get(r.Context(), addr)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	period, err := leaderboard.ParsePeriod(q.Get("period"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	metric, err := leaderboard.ParseMetric(q.Get("metric"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	limit, err := intParam(r, "limit", leaderboard.DefaultLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	entries, err := s.deps.Leaderboard.Top(r.Context(), period, metric, limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"period":  period,
		"metric":  metric,
		"entries": entries,
	})
}

func (s *Server) handleRewards(w http.ResponseWriter, r *http.Request) {
	addr, ok := addressParam(w, r, "address")
	if !ok {
		return
	}
	summary, err := s.deps.Rewards.Summary(r.Context(), addr)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	if s.deps.Claimer == nil {
		writeError(w, http.StatusServiceUnavailable, "claims are not configured")
		return
	}
	var req rewards.ClaimRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxClaimBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid claim request: "+err.Error())
		return
	}
	if req.User == "" || req.CoinType == "" {
		writeError(w, http.StatusBadRequest, "user and coinType are required")
		return
	}

	receipt, err := s.deps.Claimer.MergeAndPrepareReceive(r.Context(), req)
	if err != nil {
		status := statusFor(err)
		if status >= 500 {
			log.LogError("Claim failed", zap.String("user", req.User), zap.Error(err))
		}
		writeJSON(w, status, errorResponse{Error: err.Error(), Receipt: receipt})
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

func (s *Server) handleClaims(w http.ResponseWriter, r *http.Request) {
	user, ok := addressParam(w, r, "user")
	if !ok {
		return
	}
	limit, err := intParam(r, "limit", defaultClaimsLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if limit == 0 || limit > maxClaimsLimit {
		limit = maxClaimsLimit
	}
	receipts, err := s.deps.Claims.ListByUser(r.Context(), user, limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if receipts == nil {
		receipts = []*domain.ClaimReceipt{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"user": user, "claims": receipts})
}

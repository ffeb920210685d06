// Package api exposes the market service over HTTP and websocket.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"kalshi_news/internal/domain"
	"kalshi_news/internal/infra"
	"kalshi_news/internal/service"
)

const (
	defaultHotLimit     = 20
	defaultHistoryHours = 24
)

// Server routes HTTP requests to the market service
type Server struct {
	svc         *service.MarketService
	hub         *Hub
	metrics     *infra.Metrics
	name        string
	version     string
	allowOrigin string
	logger      *slog.Logger
}

// NewServer creates a Server. hub may be nil, in which case /ws is not routed.
func NewServer(cfg *infra.Config, svc *service.MarketService, hub *Hub, metrics *infra.Metrics) *Server {
	return &Server{
		svc:         svc,
		hub:         hub,
		metrics:     metrics,
		name:        cfg.App.Name,
		version:     cfg.App.Version,
		allowOrigin: cfg.Server.AllowOrigin,
		logger:      slog.Default().With(slog.String("module", "api")),
	}
}

// Handler returns the routed handler wrapped in logging and CORS middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /topics", s.handleTopics)
	mux.HandleFunc("GET /markets", s.handleMarkets)
	mux.HandleFunc("GET /markets/{ticker}", s.handleMarket)
	mux.HandleFunc("GET /markets/{ticker}/history", s.handleHistory)
	mux.HandleFunc("GET /articles", s.handleArticles)
	mux.HandleFunc("GET /hot", s.handleHot)
	mux.HandleFunc("POST /refresh", s.handleRefresh)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	if s.hub != nil {
		mux.Handle("GET /ws", s.hub)
	}
	return s.withLogging(s.withCORS(mux))
}

// NewHTTPServer wraps h with the configured address and timeouts.
func NewHTTPServer(cfg *infra.Config, h http.Handler) *http.Server {
	return &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      h,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSec) * time.Second,
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	endpoints := []string{
		"/topics - Get all topics ranked by activity",
		"/markets - Get all markets with news matches",
		"/markets/{ticker} - Get a specific market with related news",
		"/markets/{ticker}/history - Get archived heat history for a market",
		"/articles - Get archived articles matched to markets",
		"/hot - Get the hottest markets right now",
		"/refresh - Force a cache refresh (POST)",
		"/healthz - Cache status and metrics",
	}
	if s.hub != nil {
		endpoints = append(endpoints, "/ws - Live hot list updates")
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"name":      s.name,
		"version":   s.version,
		"endpoints": endpoints,
	})
}

func (s *Server) handleTopics(w http.ResponseWriter, r *http.Request) {
	view, err := s.svc.Topics(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"topics":       toTopicsJSON(view.Topics),
		"last_updated": view.UpdatedAt,
	})
}

func (s *Server) handleMarkets(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := intParam(q.Get("limit"), "limit", 0)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	minHeat, err := floatParam(q.Get("min_heat"), "min_heat")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	view, err := s.svc.Markets(r.Context(), service.MarketQuery{
		Category: q.Get("category"),
		Limit:    limit,
		MinHeat:  minHeat,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"markets":      toMarketsJSON(view.Markets),
		"count":        len(view.Markets),
		"last_updated": view.UpdatedAt,
	})
}

func (s *Server) handleMarket(w http.ResponseWriter, r *http.Request) {
	view, err := s.svc.Market(r.Context(), r.PathValue("ticker"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"market":       toMarketJSON(view.Market),
		"last_updated": view.UpdatedAt,
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	ticker := r.PathValue("ticker")
	hours, err := hoursParam(r.URL.Query().Get("hours"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	records, err := s.svc.History(r.Context(), ticker, time.Duration(hours)*time.Hour)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ticker":  ticker,
		"hours":   hours,
		"history": toHistoryJSON(records),
		"count":   len(records),
	})
}

func (s *Server) handleArticles(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	hours, err := hoursParam(q.Get("hours"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	limit, err := intParam(q.Get("limit"), "limit", 0)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	articles, err := s.svc.Articles(r.Context(), time.Duration(hours)*time.Hour, limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"hours":    hours,
		"articles": toArticlesJSON(articles),
		"count":    len(articles),
	})
}

func (s *Server) handleHot(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r.URL.Query().Get("limit"), "limit", defaultHotLimit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	view, err := s.svc.Hot(r.Context(), limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"hot_markets":  toMarketsJSON(view.Markets),
		"last_updated": view.UpdatedAt,
	})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	res, err := s.svc.Refresh(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "refreshed",
		"timestamp":   res.UpdatedAt,
		"snapshot_id": res.SnapshotID,
		"markets":     res.Markets,
		"news":        res.News,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toHealthJSON(s.svc.Status(), s.metrics.Snapshot()))
}

// ======================================================================================
// Helpers
// ======================================================================================

func intParam(raw, name string, def int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, domain.NewInputError(name, err)
	}
	return v, nil
}

// hoursParam parses a look-back window in hours, bounded so it converts to a time.Duration safely.
func hoursParam(raw string) (int, error) {
	hours, err := intParam(raw, "hours", defaultHistoryHours)
	if err != nil {
		return 0, err
	}
	if hours <= 0 || hours > service.MaxWindowHours {
		return 0, domain.NewInputError("hours", domain.ErrOutOfRange)
	}
	return hours, nil
}

func floatParam(raw, name string) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, domain.NewInputError(name, err)
	}
	return v, nil
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrUpstreamUnavailable):
		return http.StatusBadGateway
	case errors.Is(err, domain.ErrArchiveDisabled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		s.logger.Error("Request failed",
			slog.String("path", r.URL.Path),
			slog.Int("status", code),
			slog.Any("error", err),
		)
	}
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("Failed to encode response", slog.Any("error", err))
	}
}

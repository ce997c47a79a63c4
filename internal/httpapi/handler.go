// Package httpapi serves read-only term-match search over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/roach88/maude/internal/engine"
	"github.com/roach88/maude/internal/queryir"
	"github.com/roach88/maude/internal/store"
)

// Searcher runs term-match queries. Implemented by *engine.Engine.
type Searcher interface {
	Query(ctx context.Context, req engine.Request) ([]engine.Record, error)
}

// StatsSource reports archive statistics. Implemented by *store.Store.
type StatsSource interface {
	Stats(ctx context.Context) (store.Stats, error)
}

// QueryObserver is told about every search. Implemented by *metrics.Metrics.
type QueryObserver interface {
	ObserveQuery(table string, records int, elapsed time.Duration, err error)
}

// Deps holds the handler's collaborators. Searcher and Stats are required.
type Deps struct {
	Searcher Searcher
	Stats    StatsSource
	Observer QueryObserver // optional
	Metrics  http.Handler  // optional; served at /metrics
	Logger   *slog.Logger
}

// SearchResponse is the body of a successful /search.
type SearchResponse struct {
	Count   int             `json:"count"`
	Records []engine.Record `json:"records"`
}

// NewHandler builds the router.
//
//	GET /search?field=foi_text&q=pump,infusion&q=occlu&x=test&table=foitext&limit=50
//	GET /stats
//	GET /healthz
//	GET /metrics
//
// Each q (include) or x (exclude) parameter is one group; commas separate
// the terms inside a group.
func NewHandler(deps Deps) http.Handler {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/search", handleSearch(deps))
	r.Get("/stats", handleStats(deps))
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}

	return r
}

func handleSearch(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := parseSearch(r)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}

		start := time.Now()
		records, err := deps.Searcher.Query(r.Context(), req)
		if deps.Observer != nil {
			deps.Observer.ObserveQuery(req.Table, len(records), time.Since(start), err)
		}

		if err != nil {
			var ve *engine.ValidationError
			if errors.As(err, &ve) {
				httpError(w, http.StatusBadRequest, "validation_error", "%v", ve)
				return
			}
			deps.Logger.Error("search failed",
				"request_id", middleware.GetReqID(r.Context()),
				"error", err,
			)
			httpError(w, http.StatusInternalServerError, "internal_error", "search failed")
			return
		}

		writeJSON(w, http.StatusOK, SearchResponse{Count: len(records), Records: records})
	}
}

func handleStats(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := deps.Stats.Stats(r.Context())
		if err != nil {
			deps.Logger.Error("stats failed", "error", err)
			httpError(w, http.StatusInternalServerError, "internal_error", "stats unavailable")
			return
		}
		writeJSON(w, http.StatusOK, stats)
	}
}

// parseSearch turns query parameters into an engine.Request.
func parseSearch(r *http.Request) (engine.Request, error) {
	q := r.URL.Query()

	req := engine.Request{
		Table: q.Get("table"),
		Field: q.Get("field"),
	}
	if req.Field == "" {
		return req, errors.New("field is required")
	}

	for _, g := range q["q"] {
		req.Include = append(req.Include, queryir.SplitTerms(g))
	}
	for _, g := range q["x"] {
		req.Exclude = append(req.Exclude, queryir.SplitTerms(g))
	}

	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return req, fmt.Errorf("limit must be an integer, got %q", v)
		}
		req.Limit = n
	}

	return req, nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	writeJSON(w, code, map[string]any{
		"error": map[string]any{
			"message": fmt.Sprintf(format, args...),
			"type":    errType,
		},
	})
}

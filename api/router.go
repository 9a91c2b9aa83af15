// Package api serves workflow generation and catalog queries over HTTP.
package api

import (
	"log/slog"
	"net/http"

	"github.com/GoCodeAlone/wfgen/observability/tracing"
)

// Config holds configuration for the API layer.
type Config struct {
	// JWTSecret enables HS256 bearer-token auth on /api routes when set.
	JWTSecret string //nolint:gosec // G117: config field

	// RateLimit is requests per second per IP on the generation routes.
	// Zero disables limiting.
	RateLimit float64
	Burst     int

	// Recorder receives request metrics; optional.
	Recorder HTTPRecorder

	// Metrics is mounted at MetricsPath when set.
	Metrics     http.Handler
	MetricsPath string

	// Tracing wraps the router with a server span per request.
	Tracing bool

	Logger *slog.Logger
}

// Router is the assembled HTTP handler plus the middleware state it owns.
type Router struct {
	http.Handler
	mw *Middleware
}

// Close releases the rate limiter's cleanup goroutine.
func (rt *Router) Close() { rt.mw.Stop() }

// NewRouter creates a Router with every route registered.
func NewRouter(generator GeneratorFunc, cfg Config) *Router {
	mux := http.NewServeMux()
	mw := NewMiddleware([]byte(cfg.JWTSecret), cfg.Recorder)
	limited := mw.RateLimit(cfg.RateLimit, cfg.Burst)
	protect := func(h http.HandlerFunc) http.Handler { return limited(mw.RequireAuth(h)) }

	// --- Workflows ---
	wfH := NewWorkflowHandler(generator, cfg.Logger)
	mux.Handle("POST /api/workflows/generate", protect(wfH.Generate))
	mux.Handle("POST /api/workflows/assemble", protect(wfH.Assemble))
	mux.Handle("GET /api/workflows/stream", protect(wfH.Stream))

	// --- Catalog ---
	nodeH := NewNodeHandler(generator)
	mux.Handle("GET /api/nodes", mw.RequireAuth(http.HandlerFunc(nodeH.List)))
	mux.Handle("GET /api/nodes/search", mw.RequireAuth(http.HandlerFunc(nodeH.Search)))
	mux.Handle("GET /api/nodes/lookup", mw.RequireAuth(http.HandlerFunc(nodeH.Lookup)))
	mux.Handle("GET /api/nodes/categories", mw.RequireAuth(http.HandlerFunc(nodeH.Categories)))

	// --- Operations ---
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]any{
			"status": "ok",
			"nodes":  generator().Registry().Len(),
		})
	})
	if cfg.Metrics != nil {
		path := cfg.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		mux.Handle("GET "+path, cfg.Metrics)
	}

	var h http.Handler = mw.Instrument(mux)
	if cfg.Tracing {
		h = tracing.SpanMiddleware(h)
	}
	return &Router{Handler: h, mw: mw}
}

// Package server provides HTTP server initialization and lifecycle management
// for the energy services dashboard API.
package server

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	gorillahandlers "github.com/gorilla/handlers"
	"github.com/scrypster/energy-services/internal/config"
	"github.com/scrypster/energy-services/internal/datasets"
	"github.com/scrypster/energy-services/internal/metrics"
	"github.com/scrypster/energy-services/web/handlers"
)

// Deps are the collaborators the server routes to.
type Deps struct {
	Provider datasets.Provider    // Dataset bundles, usually a *datasets.Cache
	Cache    handlers.Invalidator // Optional; enables POST /api/datasets/refresh
	Chatter  handlers.Chatter     // Optional; chat routes are omitted when nil
	Catalog  config.Catalog
	Metrics  *metrics.Metrics // Optional
}

// securityHeadersMiddleware adds security headers to all HTTP responses.
func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

// NewHandler builds the full HTTP handler. The returned hub is nil when chat
// is disabled; otherwise the caller must Run and Stop it.
func NewHandler(cfg *config.Config, deps Deps) (http.Handler, *handlers.ChatHub) {
	mux := http.NewServeMux()
	m := deps.Metrics
	origins := splitOrigins(cfg.Server.AllowedOrigins)

	route := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, m.Instrument(routeLabel(pattern), h))
	}

	api := handlers.NewAPIHandlers(deps.Provider, deps.Catalog)
	route("GET /api/global/periods", api.GlobalPeriods)
	route("GET /api/global/status", api.GlobalStatus)
	route("GET /api/global/yoy", api.GlobalYearOverYear)
	route("GET /api/global/sources", api.GlobalSources)
	route("GET /api/projections/peaks", api.ProjectionPeaks)
	route("GET /api/regions", api.ListRegions)
	route("GET /api/regions/comparison", api.RegionComparison)
	route("GET /api/regions/timeline", api.RegionTimeline)
	route("GET /api/sectors/breakdown", api.SectorBreakdown)
	route("GET /api/sectors/timeseries", api.SectorTimeseries)
	route("GET /api/briefing", api.Briefing)
	route("POST /api/query", api.Query)

	// Health endpoints are not instrumented.
	mux.HandleFunc("GET /healthz", api.Health)
	mux.HandleFunc("GET /readyz", api.Ready)

	var hub *handlers.ChatHub
	if cfg.Features.EnableChat && deps.Chatter != nil {
		chatHandlers := handlers.NewChatHandlers(deps.Chatter, deps.Provider, deps.Catalog)
		rateLimiter := handlers.NewRateLimiter(cfg.RateLimit.ChatRequestsPerSecond, cfg.RateLimit.ChatBurst)

		mux.Handle("POST /api/chat", m.Instrument("/api/chat",
			handlers.RateLimitMiddleware(http.HandlerFunc(chatHandlers.Send), rateLimiter)))
		route("GET /api/chat/suggestions", chatHandlers.Suggestions)

		hub = handlers.NewChatHub(deps.Chatter, handlers.ChatHubConfig{
			AllowedOrigins:    origins,
			RequestsPerSecond: cfg.RateLimit.ChatRequestsPerSecond,
			Burst:             cfg.RateLimit.ChatBurst,
			MaxHistory:        cfg.Assistant.MaxHistory,
		}, m)
		// The socket needs the raw ResponseWriter for the upgrade, so it is
		// not instrumented.
		mux.Handle("GET /ws/chat", hub)
	}

	if deps.Cache != nil {
		var notifier handlers.Notifier
		if hub != nil {
			notifier = hub
		}
		mux.Handle("POST /api/datasets/refresh", m.Instrument("/api/datasets/refresh", handlers.NewRefreshHandler(deps.Cache, notifier)))
	}

	if cfg.Features.EnableMetrics && m != nil {
		mux.Handle("GET /metrics", m.Handler())
	}

	var handler http.Handler = mux
	handler = securityHeadersMiddleware(handler)
	handler = gorillahandlers.CORS(
		gorillahandlers.AllowedOrigins(origins),
		gorillahandlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		gorillahandlers.AllowedHeaders([]string{"Content-Type"}),
	)(handler)
	handler = gorillahandlers.RecoveryHandler(gorillahandlers.PrintRecoveryStack(true))(handler)
	handler = gorillahandlers.LoggingHandler(os.Stdout, handler)
	return handler, hub
}

// Start initializes and starts the HTTP server.
// Returns the actual address being listened on (useful for testing with port 0)
// and the chat hub, which is nil when chat is disabled. The hub is returned so
// callers outside the request path can push notices to connected sockets.
// The server shuts down when ctx is cancelled.
func Start(ctx context.Context, cfg *config.Config, deps Deps) (string, *handlers.ChatHub, error) {
	handler, hub := NewHandler(cfg, deps)
	if hub != nil {
		go hub.Run()
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Assistant answers can take most of the assistant timeout.
		WriteTimeout: cfg.Assistant.Timeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		if hub != nil {
			hub.Stop()
		}
		return "", nil, fmt.Errorf("listen on %s: %w", addr, err)
	}

	actualAddr := listener.Addr().String()

	go func() {
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Printf("ERROR: Server error: %v", err)
		}
	}()

	// Handle graceful shutdown
	go func() {
		<-ctx.Done()
		if hub != nil {
			hub.Stop()
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("ERROR: Server shutdown error: %v", err)
		}
	}()

	return actualAddr, hub, nil
}

// routeLabel strips the method from a mux pattern for use as a metric label.
func routeLabel(pattern string) string {
	if _, path, ok := strings.Cut(pattern, " "); ok {
		return path
	}
	return pattern
}

func splitOrigins(s string) []string {
	var out []string
	for _, o := range strings.Split(s, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

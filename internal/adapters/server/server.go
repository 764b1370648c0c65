// Package server mounts the planning API, MCP tools and metrics on one HTTP listener.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/evanschultz/sprinter/internal/adapters/metrics"
	"github.com/evanschultz/sprinter/internal/adapters/server/common"
	"github.com/evanschultz/sprinter/internal/adapters/server/httpapi"
	"github.com/evanschultz/sprinter/internal/adapters/server/mcpapi"
)

const (
	defaultBindAddress     = "127.0.0.1:8080"
	defaultShutdownTimeout = 5 * time.Second
	readyTimeout           = 2 * time.Second
)

// Config holds the listen address and mount points for serve mode.
type Config struct {
	HTTPBind        string
	APIEndpoint     string
	MCPEndpoint     string
	MetricsEndpoint string
	ServerName      string
	ServerVersion   string
}

// ReadyFunc reports whether backing storage can serve requests.
type ReadyFunc func(context.Context) error

// Dependencies are the app-facing pieces the transports call into.
type Dependencies struct {
	Planner common.Planner
	// Ready backs /readyz; nil always reports ready.
	Ready ReadyFunc
	// Metrics enables request instrumentation and the metrics endpoint.
	Metrics *metrics.Manager
}

// NewHandler builds the root mux and returns the config it was normalized to.
func NewHandler(cfg Config, deps Dependencies) (http.Handler, Config, error) {
	cfg, err := normalizeConfig(cfg)
	if err != nil {
		return nil, Config{}, err
	}
	if deps.Planner == nil {
		return nil, Config{}, errors.New("planner dependency is required")
	}

	tools, err := mcpapi.NewHandler(mcpapi.Config{
		ServerName:    cfg.ServerName,
		ServerVersion: cfg.ServerVersion,
		EndpointPath:  cfg.MCPEndpoint,
	}, deps.Planner)
	if err != nil {
		return nil, Config{}, fmt.Errorf("configure mcp handler: %w", err)
	}

	routes := map[string]http.Handler{
		cfg.APIEndpoint: http.StripPrefix(cfg.APIEndpoint, httpapi.NewHandler(deps.Planner)),
		cfg.MCPEndpoint: tools,
	}
	if deps.Metrics != nil {
		routes[cfg.APIEndpoint] = deps.Metrics.InstrumentHandler("api", routes[cfg.APIEndpoint])
		routes[cfg.MCPEndpoint] = deps.Metrics.InstrumentHandler("mcp", routes[cfg.MCPEndpoint])
		routes[cfg.MetricsEndpoint] = deps.Metrics.Handler()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", writeOK)
	mux.HandleFunc("/readyz", readinessHandler(deps.Ready))
	for path, h := range routes {
		mux.Handle(path, h)
	}
	mux.Handle(cfg.APIEndpoint+"/", routes[cfg.APIEndpoint])
	return mux, cfg, nil
}

// Run listens on cfg.HTTPBind and serves until ctx is cancelled.
// A bind failure is returned before any request is served.
func Run(ctx context.Context, cfg Config, deps Dependencies) error {
	if ctx == nil {
		ctx = context.Background()
	}
	handler, cfg, err := NewHandler(cfg, deps)
	if err != nil {
		return fmt.Errorf("build server handler: %w", err)
	}

	ln, err := net.Listen("tcp", cfg.HTTPBind)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.HTTPBind, err)
	}
	srv := &http.Server{Handler: handler, ReadHeaderTimeout: 10 * time.Second}

	served := make(chan error, 1)
	go func() { served <- srv.Serve(ln) }()

	select {
	case err := <-served:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), defaultShutdownTimeout)
	defer cancel()
	stopErr := srv.Shutdown(stopCtx)
	if err := <-served; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve after shutdown: %w", err)
	}
	if stopErr != nil && !errors.Is(stopErr, context.Canceled) {
		return fmt.Errorf("shutdown server: %w", stopErr)
	}
	return nil
}

// reservedPaths are mounted unconditionally.
var reservedPaths = []string{"/healthz", "/readyz"}

func normalizeConfig(cfg Config) (Config, error) {
	cfg.HTTPBind = orDefault(cfg.HTTPBind, defaultBindAddress)
	cfg.ServerName = orDefault(cfg.ServerName, "sprinter")
	cfg.ServerVersion = orDefault(cfg.ServerVersion, "dev")
	cfg.APIEndpoint = cleanEndpoint(cfg.APIEndpoint, "/api/v1")
	cfg.MCPEndpoint = cleanEndpoint(cfg.MCPEndpoint, "/mcp")
	cfg.MetricsEndpoint = cleanEndpoint(cfg.MetricsEndpoint, "/metrics")

	seen := map[string]bool{}
	for _, p := range append([]string{cfg.APIEndpoint, cfg.MCPEndpoint, cfg.MetricsEndpoint}, reservedPaths...) {
		if seen[p] {
			return Config{}, fmt.Errorf("endpoint %q is configured more than once", p)
		}
		seen[p] = true
	}
	return cfg, nil
}

func orDefault(v, fallback string) string {
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	return fallback
}

// cleanEndpoint trims surrounding slashes and whitespace to "/a/b"; empty or root paths take fallback.
func cleanEndpoint(path, fallback string) string {
	trimmed := strings.Trim(strings.TrimSpace(path), "/")
	if trimmed == "" {
		return fallback
	}
	return "/" + trimmed
}

func writeOK(w http.ResponseWriter, _ *http.Request) {
	writeStatus(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeStatus(w http.ResponseWriter, code int, body map[string]string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

// readinessHandler answers 503 with the probe error while storage is unavailable.
func readinessHandler(ready ReadyFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ready != nil {
			ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
			defer cancel()
			if err := ready(ctx); err != nil {
				writeStatus(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
				return
			}
		}
		writeOK(w, r)
	}
}

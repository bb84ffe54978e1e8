package bootstrap

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/wayfinderhq/wayfinder/config"
	httpx "github.com/wayfinderhq/wayfinder/internal/http"
)

// HTTPServerConfig contains configuration for HTTP server.
type HTTPServerConfig struct {
	Config      *config.AppConfig
	Services    ServiceContainer
	DB          *sql.DB
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
}

// redisPinger adapts the redis client's Ping to the probe's Pinger contract.
type redisPinger struct {
	client redis.UniversalClient
}

func (p redisPinger) PingContext(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

// StartHTTPServer creates and starts the HTTP server.
// Returns the server instance for graceful shutdown.
func StartHTTPServer(cfg *HTTPServerConfig) *http.Server {
	if cfg == nil {
		return nil
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	// Build router services
	appCfg := cfg.Config
	if appCfg == nil {
		appCfg = &config.AppConfig{}
	}

	services := httpx.RouterServices{
		Trips:       cfg.Services.Trips,
		Jobs:        cfg.Services.Jobs,
		Itineraries: cfg.Services.Itineraries,
		Logger:      logger,
	}
	if cfg.DB != nil {
		services.DB = cfg.DB
	}
	if cfg.RedisClient != nil {
		services.Cache = redisPinger{client: cfg.RedisClient}
	}

	// Build handler with middleware
	handler := buildHTTPHandler(httpHandlerConfig{
		Logger:   logger,
		Services: services,
		HTTP:     appCfg.HTTP,
	})

	// Start server (logs "starting HTTP server" internally)
	server := startServer(serverParams{
		Logger:       logger,
		Handler:      handler,
		Addr:         appCfg.HTTP.Addr,
		WriteTimeout: writeTimeoutFor(appCfg.Planner.Timeout),
	})

	return server
}

type httpHandlerConfig struct {
	Logger   *slog.Logger
	Services httpx.RouterServices
	HTTP     config.HTTPConfig
}

func buildHTTPHandler(cfg httpHandlerConfig) http.Handler {
	router := httpx.NewRouter(cfg.Services)

	// Apply compression middleware first (innermost) so logging captures compressed sizes
	// Order: Recover -> Logging -> Compression -> Router
	h := router
	if cfg.HTTP.CompressionEnabled {
		cfg.Logger.Info("HTTP compression enabled", "level", cfg.HTTP.CompressionLevel)
		h = httpx.Compression(httpx.CompressionConfig{Level: cfg.HTTP.CompressionLevel})(h)
	}

	h = httpx.Logging(cfg.Logger)(h)
	h = httpx.Recover(cfg.Logger)(h)

	return h
}

// writeTimeoutFor sizes the server write timeout around the plan window. A
// trip submission holds its connection for the whole planning run, so the
// write timeout has to outlast it or the server cuts off in-flight plans.
func writeTimeoutFor(planTimeout time.Duration) time.Duration {
	timeout := planTimeout + 30*time.Second
	if timeout < 30*time.Second {
		timeout = 30 * time.Second
	}
	return timeout
}

type serverParams struct {
	Logger       *slog.Logger
	Handler      http.Handler
	Addr         string
	WriteTimeout time.Duration
}

func startServer(params serverParams) *http.Server {
	// Guard against empty addr to avoid listening on Go default
	addr := params.Addr
	if addr == "" {
		addr = ":8080"
	}

	server := &http.Server{
		Addr:         addr,
		Handler:      params.Handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: params.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		params.Logger.Info("starting HTTP server", "addr", server.Addr, "write_timeout", server.WriteTimeout)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			params.Logger.Error("HTTP server failed", "error", err)
		}
	}()

	return server
}

// ShutdownConfig contains dependencies for HTTP server shutdown.
type ShutdownConfig struct {
	Context context.Context
	Server  *http.Server
	Logger  *slog.Logger
}

// ShutdownHTTPServer gracefully shuts down the HTTP server.
//
// In-flight planning runs are not waited for: a run can hold its connection
// for minutes, and a stuck drain would block the whole shutdown. The janitor
// fails whatever jobs the cut-off leaves RUNNING.
func ShutdownHTTPServer(cfg ShutdownConfig) error {
	if cfg.Server == nil {
		return nil
	}

	if cfg.Logger != nil {
		cfg.Logger.Info("shutting down HTTP server")
	}

	// Shutdown HTTP server with timeout
	shutdownCtx, cancel := context.WithTimeout(cfg.Context, 10*time.Second)
	defer cancel()

	if err := cfg.Server.Shutdown(shutdownCtx); err != nil {
		return err
	}

	if cfg.Logger != nil {
		cfg.Logger.Info("HTTP server stopped")
	}

	return nil
}

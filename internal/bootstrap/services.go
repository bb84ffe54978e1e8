package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/wayfinderhq/wayfinder/config"
	"github.com/wayfinderhq/wayfinder/internal/adapters/gatewayauth"
	"github.com/wayfinderhq/wayfinder/internal/adapters/mcpgateway"
	"github.com/wayfinderhq/wayfinder/internal/adapters/planner"
	"github.com/wayfinderhq/wayfinder/internal/core"
	"github.com/wayfinderhq/wayfinder/internal/data"
	"github.com/wayfinderhq/wayfinder/internal/observability/statsd"
	"github.com/wayfinderhq/wayfinder/internal/service"
)

// ServiceContainer holds all application services.
type ServiceContainer struct {
	Trips         *service.TripService
	Jobs          *service.JobService
	Itineraries   *service.ItineraryService
	Observability ObservabilityContainer
}

// ObservabilityContainer groups shared observability dependencies.
type ObservabilityContainer struct {
	MetricsSink   *statsd.Client
	MetricsConfig config.ObservabilityMetricsConfig
}

// Sink returns the metrics sink as the interface services consume, or nil
// when metrics are disabled. Returning the concrete nil pointer directly
// would produce a non-nil interface value.
func (o ObservabilityContainer) Sink() statsd.Sink {
	if o.MetricsSink == nil {
		return nil
	}
	return o.MetricsSink
}

// ServiceDeps groups dependencies for service initialization.
type ServiceDeps struct {
	Config      *config.AppConfig
	DB          *sql.DB
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
}

// serviceRepositories groups data adapters backing service ports.
type serviceRepositories struct {
	DB            *sql.DB
	Redis         redis.UniversalClient
	JobRepo       *data.JobRepo
	ItineraryRepo *data.ItineraryRepo
	CacheRepo     *data.RedisCacheRepo
}

// buildObservability configures the metrics sink.
func buildObservability(logger *slog.Logger, cfg config.ObservabilityConfig) ObservabilityContainer {
	obsLogger := logger
	if obsLogger == nil {
		obsLogger = slog.Default()
	}

	var metricsSink *statsd.Client
	if cfg.Metrics.IsEnabled() {
		client, err := statsd.NewClient(statsd.Config{
			Enabled: true,
			Address: cfg.Metrics.StatsdAddress,
			Prefix:  "wayfinder",
			Logger:  obsLogger,
		})
		if err != nil {
			obsLogger.Error("failed to initialise statsd client", "error", err)
		} else {
			metricsSink = client
		}
	}

	return ObservabilityContainer{
		MetricsSink:   metricsSink,
		MetricsConfig: cfg.Metrics,
	}
}

// buildRepositories builds repositories backing service ports; no business rules here.
func buildRepositories(db *sql.DB, redisClient redis.UniversalClient, logger *slog.Logger) *serviceRepositories {
	repoCfg := data.RepoConfig{Logger: logger}
	repos := &serviceRepositories{
		DB:            db,
		Redis:         redisClient,
		JobRepo:       data.NewJobRepo(db, repoCfg),
		ItineraryRepo: data.NewItineraryRepo(db, repoCfg),
	}
	// The cache is optional; every consumer degrades without it.
	if redisClient != nil {
		repos.CacheRepo = data.NewRedisCacheRepo(redisClient)
	}
	return repos
}

// cacheRepository returns the cache as the interface services consume, or nil
// when Redis is not connected.
func (r *serviceRepositories) cacheRepository() core.CacheRepository {
	if r.CacheRepo == nil {
		return nil
	}
	return r.CacheRepo
}

// newCredentialSource picks the gateway credential strategy from config: a
// static development token when injected, the minting OAuth2 source when
// client credentials exist, and the anonymous source otherwise. An anonymous
// credential makes discovery degrade to the local tool set.
//
//nolint:ireturn // the source implementation is a deployment-time choice.
func newCredentialSource(cfg config.GatewayConfig, obs ObservabilityContainer, logger *slog.Logger) core.CredentialSource {
	switch {
	case cfg.HasStaticToken():
		logger.Info("gateway credentials: static token")
		return gatewayauth.NewStaticSource(cfg.StaticAccessToken)

	case cfg.HasClientCredentials():
		source, err := gatewayauth.NewMintingSource(gatewayauth.SourceConfig{
			ClientID:             cfg.ClientID,
			ClientSecret:         cfg.ClientSecret,
			Scope:                cfg.Scope,
			TokenURL:             cfg.TokenURL,
			IssuerURL:            cfg.IssuerURL,
			MintTimeout:          cfg.MintTimeout,
			ExpiryMargin:         cfg.ExpiryMargin,
			DefaultTokenLifetime: cfg.DefaultTokenLifetime,
			Logger:               logger,
			Metrics:              obs.Sink(),
		})
		if err != nil {
			logger.Error("failed to initialise gateway credential source", "error", err)
			return gatewayauth.NewStaticSource("")
		}
		logger.Info("gateway credentials: client-credentials grant", "client_id", cfg.ClientID)
		return source

	default:
		logger.Warn("no gateway credentials configured; remote tools disabled")
		return gatewayauth.NewStaticSource("")
	}
}

// newToolDiscoverer wires gateway tool discovery, or returns nil when no
// gateway is configured so planning runs with local tools only.
//
//nolint:ireturn // nil means no gateway; callers treat the port as optional.
func newToolDiscoverer(repos *serviceRepositories, cfg *config.AppConfig, obs ObservabilityContainer, logger *slog.Logger) core.ToolDiscoverer {
	if cfg.Gateway.URL == "" {
		return nil
	}

	discoverer, err := mcpgateway.NewDiscoverer(mcpgateway.DiscovererOptions{
		GatewayURL:  cfg.Gateway.URL,
		Credentials: newCredentialSource(cfg.Gateway, obs, logger),
		Cache:       repos.cacheRepository(),
		CacheTTL:    cfg.Gateway.DiscoveryCacheTTL,
		CallTimeout: cfg.Gateway.CallTimeout,
		Logger:      logger,
		Metrics:     obs.Sink(),
	})
	if err != nil {
		logger.Error("failed to initialise gateway tool discoverer", "error", err)
		return nil
	}

	logger.Info("gateway tools enabled", "url", cfg.Gateway.URL)
	return discoverer
}

// newPlannerLoop builds the model client and the tool-use loop around it.
// Startup has already validated that an API key exists when this runs.
func newPlannerLoop(cfg config.PlannerConfig, obs ObservabilityContainer, logger *slog.Logger) *planner.Loop {
	client, err := planner.NewAnthropicClient(planner.AnthropicClientConfig{
		APIKey:      cfg.APIKey,
		Model:       cfg.Model,
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
	})
	if err != nil {
		//nolint:forbidigo // planning cannot run without a model client
		panic(fmt.Sprintf("failed to create planner model client: %v", err))
	}

	loop, err := planner.NewLoop(planner.LoopOptions{
		Client:         client,
		Model:          cfg.Model,
		MaxTurns:       cfg.MaxTurns,
		HTTPCallBudget: cfg.HTTPMaxCalls,
		Logger:         logger,
		Metrics:        obs.Sink(),
	})
	if err != nil {
		//nolint:forbidigo // planning cannot run without the loop
		panic(fmt.Sprintf("failed to create planner loop: %v", err))
	}
	return loop
}

func newJobService(repos *serviceRepositories, obs ObservabilityContainer, logger *slog.Logger) *service.JobService {
	return service.MustNewJobService(service.JobServiceOptions{
		Repo:    repos.JobRepo,
		Logger:  logger,
		Metrics: obs.Sink(),
	})
}

func newItineraryService(repos *serviceRepositories, logger *slog.Logger) *service.ItineraryService {
	return service.MustNewItineraryService(service.ItineraryServiceOptions{
		Repo:   repos.ItineraryRepo,
		Logger: logger,
	})
}

type tripServiceDeps struct {
	Jobs        *service.JobService
	Itineraries *service.ItineraryService
	Repos       *serviceRepositories
	Config      *config.AppConfig
	Obs         ObservabilityContainer
	Logger      *slog.Logger
}

func newTripService(deps tripServiceDeps) *service.TripService {
	return service.MustNewTripService(service.TripServiceOptions{
		Jobs:        deps.Jobs,
		Itineraries: deps.Itineraries,
		Planner:     newPlannerLoop(deps.Config.Planner, deps.Obs, deps.Logger),
		Config:      deps.Config.Planner,
		Discoverer:  newToolDiscoverer(deps.Repos, deps.Config, deps.Obs, deps.Logger),
		Cache:       deps.Repos.cacheRepository(),
		Logger:      deps.Logger,
	})
}

// DomainServicesOptions groups inputs for buildDomainServices.
type DomainServicesOptions struct {
	Repos         *serviceRepositories
	Observability ObservabilityContainer
	Config        *config.AppConfig
	Logger        *slog.Logger
}

// buildDomainServices wires business services using repositories and observability adapters.
func buildDomainServices(opts *DomainServicesOptions) ServiceContainer {
	if opts == nil {
		return ServiceContainer{}
	}
	svcLogger := opts.Logger
	if svcLogger == nil {
		svcLogger = slog.Default()
	}

	appCfg := opts.Config
	if appCfg == nil {
		appCfg = &config.AppConfig{}
	}

	jobService := newJobService(opts.Repos, opts.Observability, svcLogger)
	itineraryService := newItineraryService(opts.Repos, svcLogger)

	// The trip service carries the planner, which needs a model credential.
	// Janitor-only deployments run without one.
	var tripService *service.TripService
	if appCfg.IsHTTPServerEnabled() {
		tripService = newTripService(tripServiceDeps{
			Jobs:        jobService,
			Itineraries: itineraryService,
			Repos:       opts.Repos,
			Config:      appCfg,
			Obs:         opts.Observability,
			Logger:      svcLogger,
		})
	}

	return ServiceContainer{
		Trips:         tripService,
		Jobs:          jobService,
		Itineraries:   itineraryService,
		Observability: opts.Observability,
	}
}

// NewServices builds the full service container from shared infrastructure.
func NewServices(deps *ServiceDeps) ServiceContainer {
	if deps == nil {
		return ServiceContainer{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var obsCfg config.ObservabilityConfig
	if deps.Config != nil {
		obsCfg = deps.Config.Observability
	}
	observability := buildObservability(logger, obsCfg)
	repos := buildRepositories(deps.DB, deps.RedisClient, logger)
	return buildDomainServices(&DomainServicesOptions{
		Repos:         repos,
		Observability: observability,
		Config:        deps.Config,
		Logger:        logger,
	})
}

// ServiceOrchestrationConfig contains configuration for service orchestration.
type ServiceOrchestrationConfig struct {
	Config      *config.AppConfig
	Services    ServiceContainer
	DB          *sql.DB
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
}

const (
	// shutdownWaitTimeout is the maximum time to wait for services to stop gracefully.
	shutdownWaitTimeout = 15 * time.Second
)

// serviceStartupDeps groups dependencies for service startup.
type serviceStartupDeps struct {
	ctx             context.Context
	cfg             *ServiceOrchestrationConfig
	logger          *slog.Logger
	enabledServices map[config.ServiceMode]bool
	errCh           chan error
}

// backgroundService describes a startable background component.
type backgroundService struct {
	mode  config.ServiceMode
	name  string
	start func(context.Context) error
}

// backgroundServiceHandle tracks a running background service.
type backgroundServiceHandle struct {
	mode config.ServiceMode
	name string
	done <-chan struct{}
}

// startHTTPServerIfEnabled starts the HTTP server if enabled.
func startHTTPServerIfEnabled(deps *serviceStartupDeps) *http.Server {
	if deps == nil || deps.cfg == nil || !deps.enabledServices[config.ServiceModeHTTP] {
		return nil
	}
	return StartHTTPServer(&HTTPServerConfig{
		Config:      deps.cfg.Config,
		Services:    deps.cfg.Services,
		DB:          deps.cfg.DB,
		RedisClient: deps.cfg.RedisClient,
		Logger:      deps.logger,
	})
}

func launchBackground(ctx context.Context, deps *serviceStartupDeps, descriptor backgroundService) <-chan struct{} {
	if deps == nil || !deps.enabledServices[descriptor.mode] {
		return nil
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := descriptor.start(ctx); err != nil {
			errMsg := fmt.Errorf("%s failed: %w", descriptor.name, err)
			select {
			case deps.errCh <- errMsg:
			case <-ctx.Done():
			default:
				if deps.logger != nil {
					deps.logger.WarnContext(
						ctx,
						"dropping background service error",
						"service",
						descriptor.name,
						"error",
						errMsg,
					)
				} else {
					slog.Default().WarnContext(ctx, "dropping background service error", "service", descriptor.name, "error", errMsg)
				}
			}
		}
	}()

	if deps.logger != nil {
		deps.logger.InfoContext(ctx, "background service started", "service", descriptor.name, "mode", descriptor.mode)
	} else {
		slog.Default().InfoContext(ctx, "background service started", "service", descriptor.name, "mode", descriptor.mode)
	}

	return done
}

func startBackgroundServices(deps *serviceStartupDeps, services []backgroundService) []backgroundServiceHandle {
	if deps == nil {
		return nil
	}
	handles := make([]backgroundServiceHandle, 0, len(services))

	for _, svc := range services {
		done := launchBackground(deps.ctx, deps, svc)
		if done == nil {
			continue
		}

		handles = append(handles, backgroundServiceHandle{
			mode: svc.mode,
			name: svc.name,
			done: done,
		})
	}

	return handles
}

func newJanitorBackgroundService(deps *serviceStartupDeps) backgroundService {
	return backgroundService{
		mode: config.ServiceModeJanitor,
		name: "janitor",
		start: func(ctx context.Context) error {
			if deps == nil || deps.cfg == nil {
				return nil
			}
			var janitorCfg config.JanitorConfig
			if deps.cfg.Config != nil {
				janitorCfg = deps.cfg.Config.Janitor
			}
			return RunJanitor(ctx, JanitorRunnerConfig{
				DB:      deps.cfg.DB,
				Logger:  deps.logger,
				Config:  janitorCfg,
				Metrics: deps.cfg.Services.Observability.Sink(),
			})
		},
	}
}

func buildBackgroundServices(deps *serviceStartupDeps) []backgroundService {
	if deps == nil {
		return nil
	}
	return []backgroundService{
		newJanitorBackgroundService(deps),
	}
}

// ServiceStartupResult holds the results of starting all services.
type ServiceStartupResult struct {
	HTTPServer *http.Server
	Background []backgroundServiceHandle
}

// startServices starts all enabled services and returns their completion channels.
func startServices(deps *serviceStartupDeps) ServiceStartupResult {
	return ServiceStartupResult{
		HTTPServer: startHTTPServerIfEnabled(deps),
		Background: startBackgroundServices(deps, buildBackgroundServices(deps)),
	}
}

// RunServicesWithShutdown starts all enabled services and manages their lifecycle.
// This function blocks until a shutdown signal is received or a service fails.
func RunServicesWithShutdown(cfg *ServiceOrchestrationConfig) error {
	if cfg == nil {
		return errors.New("service orchestration config is required")
	}
	ctx := context.Background()
	serviceCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if cfg.Config == nil {
		return errors.New("service orchestration config missing AppConfig")
	}

	// Determine which services are enabled
	enabledServices, err := cfg.Config.GetEnabledServices()
	if err != nil {
		return fmt.Errorf("determine enabled services: %w", err)
	}
	errCh := make(chan error, errorChannelBufferSize(enabledServices))

	// Start all enabled services
	result := startServices(&serviceStartupDeps{
		ctx:             serviceCtx,
		cfg:             cfg,
		logger:          logger,
		enabledServices: enabledServices,
		errCh:           errCh,
	})

	// Wait for shutdown signal or error
	return waitForShutdown(shutdownConfig{
		ctx:         serviceCtx,
		cancel:      cancel,
		errCh:       errCh,
		httpServer:  result.HTTPServer,
		metrics:     cfg.Services.Observability.MetricsSink,
		logger:      logger,
		backgrounds: result.Background,
	})
}

func errorChannelCapacity(enabled map[config.ServiceMode]bool) int {
	modes := []config.ServiceMode{
		config.ServiceModeHTTP,
		config.ServiceModeJanitor,
	}

	count := 0
	for _, mode := range modes {
		if enabled[mode] {
			count++
		}
	}
	return count
}

func errorChannelBufferSize(enabled map[config.ServiceMode]bool) int {
	size := errorChannelCapacity(enabled) + 1
	if size < 1 {
		return 1
	}
	return size
}

// shutdownConfig contains dependencies for graceful shutdown.
type shutdownConfig struct {
	ctx         context.Context
	cancel      context.CancelFunc
	errCh       <-chan error
	httpServer  *http.Server
	metrics     *statsd.Client
	logger      *slog.Logger
	backgrounds []backgroundServiceHandle
}

// waitForShutdown waits for shutdown signal or service error.
func waitForShutdown(cfg shutdownConfig) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case <-quit:
		cfg.logger.Info("shutting down services...")
		cfg.cancel() // Cancel service context before waiting
		return gracefulStop(cfg)
	case err := <-cfg.errCh:
		cfg.logger.Error("service error", "error", err)
		cfg.cancel() // Cancel service context before waiting
		if stopErr := gracefulStop(cfg); stopErr != nil {
			cfg.logger.Error("graceful stop failed", "error", stopErr)
		}
		return err
	}
}

// gracefulStop attempts to gracefully stop all services.
func gracefulStop(cfg shutdownConfig) error {
	// Gracefully stop HTTP server if running
	if cfg.httpServer != nil {
		// Create a timeout context for HTTP shutdown
		shutdownCtx, cancel := context.WithTimeout(cfg.ctx, shutdownWaitTimeout)
		defer cancel()

		if err := ShutdownHTTPServer(ShutdownConfig{
			Context: shutdownCtx,
			Server:  cfg.httpServer,
			Logger:  cfg.logger,
		}); err != nil {
			return err
		}
	}

	// Wait for background services to finish
	for _, svc := range cfg.backgrounds {
		waitForService(svc.done, svc.name, cfg.logger)
	}

	if cfg.metrics != nil {
		if err := cfg.metrics.Close(); err != nil {
			cfg.logger.Warn("failed to close metrics sink", "error", err)
		}
	}

	return nil
}

// waitForService waits for a service to finish with timeout.
func waitForService(done <-chan struct{}, name string, logger *slog.Logger) {
	if done == nil {
		return
	}
	select {
	case <-done:
		logger.Info(name + " stopped")
	case <-time.After(shutdownWaitTimeout):
		logger.Warn("timeout waiting for " + name + " to stop")
	}
}

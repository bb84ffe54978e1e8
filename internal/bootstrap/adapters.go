package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/wayfinderhq/wayfinder/config"
	"github.com/wayfinderhq/wayfinder/internal/data"
	"github.com/wayfinderhq/wayfinder/internal/observability/statsd"
	"github.com/wayfinderhq/wayfinder/internal/service"
)

// JanitorRunnerConfig contains configuration for the stale-job janitor.
type JanitorRunnerConfig struct {
	DB      *sql.DB
	Logger  *slog.Logger
	Config  config.JanitorConfig
	Metrics statsd.Sink
}

// RunJanitor starts the janitor sweep loop and blocks until the context is
// cancelled. The janitor owns its repository so it can run in a process with
// no other services wired.
func RunJanitor(ctx context.Context, cfg JanitorRunnerConfig) error {
	if cfg.DB == nil {
		return errors.New("janitor requires a database connection")
	}

	janitor, err := service.NewJanitorService(service.JanitorServiceOptions{
		Repo:    data.NewJobRepo(cfg.DB, data.RepoConfig{Logger: cfg.Logger}),
		Config:  cfg.Config,
		Logger:  cfg.Logger,
		Metrics: cfg.Metrics,
	})
	if err != nil {
		return err
	}

	return janitor.Run(ctx)
}

package service

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/wayfinderhq/wayfinder/config"
	"github.com/wayfinderhq/wayfinder/internal/core"
	obserrors "github.com/wayfinderhq/wayfinder/internal/observability/errors"
	"github.com/wayfinderhq/wayfinder/internal/observability/metrics"
	"github.com/wayfinderhq/wayfinder/internal/observability/statsd"
)

// JanitorServiceOptions groups dependencies for JanitorService.
type JanitorServiceOptions struct {
	Repo    core.JanitorRepository // Required: janitor repository
	Config  config.JanitorConfig   // Required: janitor configuration
	Logger  *slog.Logger           // Optional: structured logger
	Metrics statsd.Sink            // Optional: metrics sink (StatsD-compatible)
}

// JanitorService fails abandoned planning jobs.
//
// A process that dies mid-run leaves its job RUNNING forever and its pollers
// spinning. The janitor sweeps on an interval and marks RUNNING jobs FAILED
// once they have gone without a progress write for longer than the configured
// max age. The completion guard in the store keeps the sweep from touching
// jobs that finish while it runs.
type JanitorService struct {
	repo    core.JanitorRepository
	config  config.JanitorConfig
	logger  *slog.Logger
	metrics statsd.Sink
}

// NewJanitorService constructs a new JanitorService.
func NewJanitorService(opts JanitorServiceOptions) (*JanitorService, error) {
	if opts.Repo == nil {
		return nil, errors.New("JanitorRepository is required")
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "janitor_service")
		logger.Debug("JanitorService initialized",
			"interval", opts.Config.Interval,
			"running_max_age", opts.Config.RunningMaxAge,
			"batch_size", opts.Config.BatchSize,
		)
	}

	return &JanitorService{
		repo:    opts.Repo,
		config:  opts.Config,
		logger:  logger,
		metrics: opts.Metrics,
	}, nil
}

// MustNewJanitorService constructs a new JanitorService and panics on error.
// Use this when you're certain the options are valid (e.g., in main.go).
func MustNewJanitorService(opts JanitorServiceOptions) *JanitorService {
	svc, err := NewJanitorService(opts)
	if err != nil {
		//nolint:forbidigo // Must constructor fails fast when dependencies are invalid during startup
		panic(fmt.Sprintf("failed to create JanitorService: %v", err))
	}
	return svc
}

// Run starts the janitor loop and runs until the context is cancelled.
// Returns nil on graceful shutdown (context.Canceled), error otherwise.
func (s *JanitorService) Run(ctx context.Context) error {
	if s.logger != nil {
		s.logger.InfoContext(ctx, "starting janitor service", "interval", s.config.Interval)
	}

	// Jitter prevents a thundering herd when multiple instances start together
	s.waitWithJitter(ctx)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	// Sweep immediately after jitter
	if err := s.Sweep(ctx); err != nil {
		s.logSweepError(err, "initial sweep")
	}

	return s.runLoop(ctx, ticker)
}

// waitWithJitter adds a random delay up to 10% of the interval.
func (s *JanitorService) waitWithJitter(ctx context.Context) {
	maxJitter := int64(s.config.Interval / 10)
	if maxJitter <= 0 {
		return
	}

	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// If crypto/rand fails, skip jitter rather than failing startup
		if s.logger != nil {
			s.logger.WarnContext(ctx, "failed to generate jitter, skipping", "error", err)
		}
		return
	}

	// Use modulo on uint64 before converting to avoid overflow
	jitterNanos := binary.BigEndian.Uint64(buf[:]) % uint64(maxJitter)
	jitter := time.Duration(int64(jitterNanos)) // #nosec G115 - bounded by maxJitter which is int64

	select {
	case <-time.After(jitter):
	case <-ctx.Done():
		// Graceful shutdown during jitter
	}
}

// runLoop runs the sweep loop until context is cancelled.
func (s *JanitorService) runLoop(ctx context.Context, ticker *time.Ticker) error {
	for {
		select {
		case <-ctx.Done():
			if s.logger != nil {
				s.logger.InfoContext(ctx, "janitor service stopping", "reason", ctx.Err())
			}
			// Return nil on graceful shutdown to avoid treating it as a failure
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()

		case <-ticker.C:
			if err := s.Sweep(ctx); err != nil {
				s.logSweepError(err, "sweep")
				// Continue running despite errors
			}
		}
	}
}

// Sweep fails stale RUNNING jobs in batches until a pass finds none.
// Batching keeps row locks short on large tables.
func (s *JanitorService) Sweep(ctx context.Context) error {
	start := time.Now()

	var (
		total    int64
		sweepErr error
	)
	for {
		count, err := s.repo.FailStaleRunningJobs(ctx, s.config.RunningMaxAge, s.config.BatchSize)
		total += count
		if err != nil {
			sweepErr = err
			break
		}
		if count == 0 {
			break
		}
		// Check context between batches
		if ctx.Err() != nil {
			sweepErr = ctx.Err()
			break
		}
	}

	if total > 0 && s.logger != nil {
		s.logger.InfoContext(ctx, "failed stale running jobs",
			"count", total,
			"max_age", s.config.RunningMaxAge,
		)
	}

	s.emitSweepMetrics(total, time.Since(start), suppressContextCancellation(sweepErr))

	if sweepErr != nil {
		if isContextCancellation(sweepErr) {
			return context.Canceled
		}
		return fmt.Errorf("fail stale running jobs: %w", sweepErr)
	}
	return nil
}

func (s *JanitorService) emitSweepMetrics(count int64, elapsed time.Duration, err error) {
	if s.metrics == nil {
		return
	}

	result := metrics.ResultSuccess
	if err != nil {
		result = metrics.ResultError
	} else if count == 0 {
		result = metrics.ResultNoop
	}

	tags := map[string]string{
		"result": result,
	}
	if err != nil {
		if class := obserrors.Classify(err); class != "" {
			tags["error_class"] = class
		}
	}

	s.metrics.Count("janitor.sweep", 1, tags)

	if count > 0 {
		s.metrics.Count("janitor.jobs_failed", count, metrics.CloneTags(tags))
	}
	if elapsed > 0 {
		s.metrics.Timing("janitor.sweep_duration", elapsed, metrics.CloneTags(tags))
	}
	if err == nil {
		s.metrics.Gauge("janitor.last_success_epoch", float64(time.Now().Unix()), nil)
	}
}

func (s *JanitorService) logSweepError(err error, label string) {
	if err == nil || s.logger == nil {
		return
	}

	if isContextCancellation(err) {
		s.logger.Debug(label+" cancelled by context", "error", err)
		return
	}

	s.logger.Error(label+" failed", "error", err)
}

func isContextCancellation(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func suppressContextCancellation(err error) error {
	if isContextCancellation(err) {
		return nil
	}
	return err
}

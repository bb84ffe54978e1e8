package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/wayfinderhq/wayfinder/internal/core"
	"github.com/wayfinderhq/wayfinder/internal/domain/model"
	"github.com/wayfinderhq/wayfinder/internal/observability/metrics"
	"github.com/wayfinderhq/wayfinder/internal/observability/statsd"
)

const (
	// maxProgressLineRunes caps one progress line before the ellipsis marker.
	maxProgressLineRunes = 600

	// maxFinalMessageRunes caps the stored final message.
	maxFinalMessageRunes = 180000

	// progressTimeLayout prefixes each stored progress line.
	progressTimeLayout = "15:04:05"
)

// JobServiceOptions groups dependencies for JobService.
type JobServiceOptions struct {
	Repo    core.JobRepository // Required: job repository
	Logger  *slog.Logger       // Optional: structured logger
	Metrics statsd.Sink        // Optional: metrics sink (StatsD-compatible)
	Clock   func() time.Time   // Optional: time source for progress timestamps
}

// JobService provides business logic for trip-planning job records.
//
// Writes split into two classes. Creation is store-fatal: a submission cannot
// proceed without its record, so failures propagate. Progress and completion
// are telemetry on a run already in flight: they are best-effort and absorb
// their own failures so reporting can never disturb the run it describes.
type JobService struct {
	repo    core.JobRepository
	logger  *slog.Logger
	metrics statsd.Sink
	now     func() time.Time
}

// NewJobService constructs a new JobService.
func NewJobService(opts JobServiceOptions) (*JobService, error) {
	if opts.Repo == nil {
		return nil, errors.New("JobRepository is required")
	}

	now := opts.Clock
	if now == nil {
		now = time.Now
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "job_service")
		logger.Debug("JobService initialized")
	}

	return &JobService{
		repo:    opts.Repo,
		logger:  logger,
		metrics: opts.Metrics,
		now:     now,
	}, nil
}

// MustNewJobService constructs a new JobService and panics on error.
// Use this when you're certain the options are valid (e.g., in main.go).
func MustNewJobService(opts JobServiceOptions) *JobService {
	svc, err := NewJobService(opts)
	if err != nil {
		//nolint:forbidigo // Must constructor fails fast when dependencies are invalid during startup
		panic(fmt.Sprintf("failed to create JobService: %v", err))
	}
	return svc
}

// Create conditionally creates the job record for a submission in RUNNING
// state. It reports true when this call created the record and false when one
// already existed for the same identity; either way the submission may
// proceed. Only store failures return an error.
func (s *JobService) Create(ctx context.Context, req *model.CreateJobRequest) (bool, error) {
	created, err := s.repo.CreateIfAbsent(ctx, req)
	if err != nil {
		s.emitTransition("create", metrics.ResultError, err)
		return false, fmt.Errorf("create job: %w", err)
	}

	result := metrics.ResultSuccess
	if !created {
		result = metrics.ResultNoop
	}
	s.emitTransition("create", result, nil)

	if s.logger != nil {
		msg := "job created"
		if !created {
			msg = "job already exists"
		}
		s.logger.DebugContext(ctx, msg,
			"owner_id", req.OwnerID,
			"request_id", req.RequestID,
		)
	}
	return created, nil
}

// Get retrieves a job by owner and request identity.
func (s *JobService) Get(ctx context.Context, ownerID, requestID string) (*model.Job, error) {
	job, err := s.repo.Get(ctx, ownerID, requestID)
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// View retrieves the poller-facing projection of a job.
func (s *JobService) View(ctx context.Context, ownerID, requestID string) (model.JobView, error) {
	job, err := s.Get(ctx, ownerID, requestID)
	if err != nil {
		return model.JobView{}, err
	}
	return job.View(), nil
}

// AppendProgress records one progress line, best-effort. Blank lines are
// dropped, long lines are truncated with a visible marker, and every stored
// line carries a wall-clock prefix. Failures are logged and swallowed.
func (s *JobService) AppendProgress(ctx context.Context, ownerID, requestID, line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}
	line = truncateRunes(line, maxProgressLineRunes)
	stamped := s.now().Format(progressTimeLayout) + "  " + line

	if err := s.repo.AppendProgress(ctx, ownerID, requestID, stamped); err != nil {
		if s.logger != nil {
			s.logger.WarnContext(ctx, "append progress failed",
				"owner_id", ownerID,
				"request_id", requestID,
				"error", err,
			)
		}
	}
}

// Complete transitions the job to a terminal state, best-effort. The store
// applies the write only while the job is still RUNNING, so the first terminal
// write wins and later completions are no-ops. It reports whether this call
// applied the transition; failures are logged and swallowed.
func (s *JobService) Complete(ctx context.Context, req *model.CompleteJobRequest) bool {
	if req == nil {
		return false
	}

	capped := *req
	capped.FinalMessage = capRunes(req.FinalMessage, maxFinalMessageRunes)

	applied, err := s.repo.Complete(ctx, &capped)
	if err != nil {
		s.emitTransition("complete", metrics.ResultError, err)
		if s.logger != nil {
			s.logger.WarnContext(ctx, "complete job failed",
				"owner_id", req.OwnerID,
				"request_id", req.RequestID,
				"status", req.Status,
				"error", err,
			)
		}
		return false
	}

	result := metrics.ResultSuccess
	if !applied {
		result = metrics.ResultNoop
	}
	s.emitTransition("complete", result, nil)

	if s.logger != nil {
		if applied {
			s.logger.InfoContext(ctx, "job completed",
				"owner_id", req.OwnerID,
				"request_id", req.RequestID,
				"status", req.Status,
				"result_itinerary_id", req.ResultItineraryID,
			)
		} else {
			s.logger.WarnContext(ctx, "job completion skipped, job missing or already terminal",
				"owner_id", req.OwnerID,
				"request_id", req.RequestID,
				"status", req.Status,
			)
		}
	}
	return applied
}

func (s *JobService) emitTransition(transition, result string, err error) {
	metrics.EmitJobTransition(s.metrics, metrics.JobTransitionMetric{
		Transition: transition,
		Result:     result,
		Err:        err,
	})
}

// JobProgressSink adapts JobService.AppendProgress to core.ProgressSink for
// one job identity.
type JobProgressSink struct {
	Jobs      *JobService
	OwnerID   string
	RequestID string
}

// Append implements core.ProgressSink.
func (s JobProgressSink) Append(ctx context.Context, line string) {
	s.Jobs.AppendProgress(ctx, s.OwnerID, s.RequestID, line)
}

var _ core.ProgressSink = JobProgressSink{}

// truncateRunes caps s at max runes, marking the cut with a trailing ellipsis.
func truncateRunes(s string, maxRunes int) string {
	if utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	return string([]rune(s)[:maxRunes]) + " ..."
}

// capRunes caps s at max runes with no marker.
func capRunes(s string, maxRunes int) string {
	if utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	return string([]rune(s)[:maxRunes])
}

// Package service provides business logic services for the wayfinder
// trip-planning system.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/wayfinderhq/wayfinder/config"
	"github.com/wayfinderhq/wayfinder/internal/core"
	"github.com/wayfinderhq/wayfinder/internal/domain/model"
)

const (
	// runClaimPrefix namespaces the per-submission execution claim keys.
	runClaimPrefix = "wayfinder:run:"

	// maxTraceRunes caps the stack trace carried in an error envelope.
	maxTraceRunes = 3800
)

// TripServiceOptions groups dependencies for TripService.
type TripServiceOptions struct {
	Jobs        *JobService          // Required: job record lifecycle
	Itineraries *ItineraryService    // Required: itinerary persistence
	Planner     core.Planner         // Required: planning run driver
	Config      config.PlannerConfig // Required: run budgets and timeout
	Discoverer  core.ToolDiscoverer  // Optional: gateway tool discovery
	Cache       core.CacheRepository // Optional: execution claim guard
	HTTPClient  *http.Client         // Optional: web fetch client for run tools
	Logger      *slog.Logger         // Optional: structured logger
}

// TripService orchestrates one trip-planning submission end to end: job
// record, tool assembly, the planning run, and the terminal write.
//
// Submit is a hard boundary. Whatever happens inside, the caller receives a
// bounded result envelope; errors and panics never propagate past it.
type TripService struct {
	jobs        *JobService
	itineraries *ItineraryService
	planner     core.Planner
	discoverer  core.ToolDiscoverer
	cache       core.CacheRepository
	config      config.PlannerConfig
	httpClient  *http.Client
	logger      *slog.Logger
}

// NewTripService constructs a new TripService.
func NewTripService(opts TripServiceOptions) (*TripService, error) {
	if opts.Jobs == nil {
		return nil, errors.New("JobService is required")
	}
	if opts.Itineraries == nil {
		return nil, errors.New("ItineraryService is required")
	}
	if opts.Planner == nil {
		return nil, errors.New("Planner is required")
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "trip_service")
		logger.Debug("TripService initialized",
			"plan_timeout", opts.Config.Timeout,
			"max_turns", opts.Config.MaxTurns,
			"claim_guard", opts.Cache != nil,
			"gateway_discovery", opts.Discoverer != nil,
		)
	}

	return &TripService{
		jobs:        opts.Jobs,
		itineraries: opts.Itineraries,
		planner:     opts.Planner,
		discoverer:  opts.Discoverer,
		cache:       opts.Cache,
		config:      opts.Config,
		httpClient:  opts.HTTPClient,
		logger:      logger,
	}, nil
}

// MustNewTripService constructs a new TripService and panics on error.
// Use this when you're certain the options are valid (e.g., in main.go).
func MustNewTripService(opts TripServiceOptions) *TripService {
	svc, err := NewTripService(opts)
	if err != nil {
		//nolint:forbidigo // Must constructor fails fast when dependencies are invalid during startup
		panic(fmt.Sprintf("failed to create TripService: %v", err))
	}
	return svc
}

// Submit runs one trip-planning submission to completion and returns its
// result envelope. Missing identity fields are defaulted first, so the
// envelope always carries the identity the caller needs for status polling.
func (s *TripService) Submit(ctx context.Context, req model.TripRequest) (res model.SubmitResult) {
	req.ApplyDefaults()

	defer func() {
		r := recover()
		if r == nil {
			return
		}
		err := fmt.Errorf("submission panic: %v", r)
		if s.logger != nil {
			s.logger.ErrorContext(ctx, "submission panicked",
				"owner_id", req.OwnerID,
				"request_id", req.RequestID,
				"panic", r,
			)
		}
		s.jobs.Complete(ctx, &model.CompleteJobRequest{
			OwnerID:      req.OwnerID,
			RequestID:    req.RequestID,
			Status:       model.JobStatusFailed,
			FinalMessage: err.Error(),
		})
		res = s.errorEnvelope(req, err, string(debug.Stack()))
	}()

	return s.submit(ctx, req)
}

func (s *TripService) submit(ctx context.Context, req model.TripRequest) model.SubmitResult {
	if err := req.Validate(); err != nil {
		return s.errorEnvelope(req, err, "")
	}

	if _, err := s.jobs.Create(ctx, &model.CreateJobRequest{
		OwnerID:   req.OwnerID,
		RequestID: req.RequestID,
		Meta:      tripMeta(req),
	}); err != nil {
		return s.errorEnvelope(req, err, "")
	}

	claimed, release := s.claimRun(ctx, req.OwnerID, req.RequestID)
	if !claimed {
		if s.logger != nil {
			s.logger.InfoContext(ctx, "submission already in progress",
				"owner_id", req.OwnerID,
				"request_id", req.RequestID,
			)
		}
		return okEnvelope(req, "planning already in progress")
	}
	defer release()

	registry := s.buildRegistry(ctx, req)
	sink := core.NewPrefixFilterSink(JobProgressSink{
		Jobs:      s.jobs,
		OwnerID:   req.OwnerID,
		RequestID: req.RequestID,
	})

	planCtx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	started := time.Now()
	plan, err := s.planner.Plan(planCtx, core.PlanRequest{
		Input:    req.ContextBlock() + "\n\nUser request: " + req.Query(),
		Tools:    registry,
		Progress: sink,
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("planning timed out after %s", s.config.Timeout)
		}
		return s.failSubmission(ctx, req, err)
	}

	itineraryID := plan.ItineraryID
	if itineraryID == "" {
		itineraryID = s.salvageItinerary(ctx, req, plan.FinalMessage)
	}

	s.jobs.Complete(ctx, &model.CompleteJobRequest{
		OwnerID:           req.OwnerID,
		RequestID:         req.RequestID,
		Status:            model.JobStatusSucceeded,
		FinalMessage:      plan.FinalMessage,
		ResultItineraryID: itineraryID,
	})

	if s.logger != nil {
		s.logger.InfoContext(ctx, "submission succeeded",
			"owner_id", req.OwnerID,
			"request_id", req.RequestID,
			"itinerary_id", itineraryID,
			"turns", plan.Turns,
			"elapsed", time.Since(started),
		)
	}
	return okEnvelope(req, plan.FinalMessage)
}

// buildRegistry assembles the run's tool registry: baseline local tools first,
// then whatever gateway discovery yields. Registration order means a gateway
// descriptor can never shadow a local tool name.
func (s *TripService) buildRegistry(ctx context.Context, req model.TripRequest) *core.ToolRegistry {
	tools := LocalTools(LocalToolsOptions{
		Itineraries:   s.itineraries,
		OwnerID:       req.OwnerID,
		RequestID:     req.RequestID,
		HTTPClient:    s.httpClient,
		WebCallBudget: s.config.HTTPMaxCalls,
		Logger:        s.logger,
	})
	if s.discoverer != nil {
		tools = append(tools, s.discoverer.Discover(ctx)...)
	}

	registry := core.NewToolRegistry(tools...)
	if s.logger != nil {
		s.logger.DebugContext(ctx, "tool registry assembled",
			"owner_id", req.OwnerID,
			"request_id", req.RequestID,
			"tools", registry.Len(),
		)
	}
	return registry
}

// claimRun takes the per-submission execution claim so two concurrent
// identical submissions cannot double-run the planner. The claim expires with
// the plan timeout. A missing or unreachable cache disables the guard; the
// submission proceeds unguarded rather than failing.
func (s *TripService) claimRun(ctx context.Context, ownerID, requestID string) (bool, func()) {
	release := func() {}
	if s.cache == nil {
		return true, release
	}

	key := runClaimPrefix + ownerID + ":" + requestID
	ok, err := s.cache.SetIfNotExists(ctx, key, []byte("1"), s.config.Timeout)
	if err != nil {
		if s.logger != nil {
			s.logger.DebugContext(ctx, "execution claim unavailable", "error", err)
		}
		return true, release
	}
	if !ok {
		return false, release
	}

	return true, func() {
		if _, err := s.cache.Delete(ctx, key); err != nil && s.logger != nil {
			s.logger.DebugContext(ctx, "release execution claim", "key", key, "error", err)
		}
	}
}

// salvageItinerary recovers an itinerary the run described but never saved.
// Returns the saved id, or empty when the final message carries no document.
func (s *TripService) salvageItinerary(ctx context.Context, req model.TripRequest, finalMessage string) string {
	doc := s.itineraries.ExtractDocument(finalMessage)
	if doc == nil {
		return ""
	}

	result, err := s.itineraries.Save(ctx, req.OwnerID, doc, req.RequestID)
	if err != nil {
		if s.logger != nil {
			s.logger.WarnContext(ctx, "itinerary salvage failed",
				"owner_id", req.OwnerID,
				"request_id", req.RequestID,
				"error", err,
			)
		}
		return ""
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "itinerary recovered from final message",
			"owner_id", req.OwnerID,
			"itinerary_id", result.ID,
			"created", result.Created,
		)
	}
	return result.ID
}

// failSubmission records the failed run and builds its error envelope.
func (s *TripService) failSubmission(ctx context.Context, req model.TripRequest, err error) model.SubmitResult {
	if s.logger != nil {
		s.logger.ErrorContext(ctx, "submission failed",
			"owner_id", req.OwnerID,
			"request_id", req.RequestID,
			"error", err,
		)
	}
	s.jobs.Complete(ctx, &model.CompleteJobRequest{
		OwnerID:      req.OwnerID,
		RequestID:    req.RequestID,
		Status:       model.JobStatusFailed,
		FinalMessage: err.Error(),
	})
	return s.errorEnvelope(req, err, "")
}

func (s *TripService) errorEnvelope(req model.TripRequest, err error, trace string) model.SubmitResult {
	res := model.SubmitResult{
		Result:    model.SubmitOutcomeError,
		OwnerID:   req.OwnerID,
		RequestID: req.RequestID,
		Error:     err.Error(),
	}
	if trace != "" {
		res.Trace = capRunes(trace, maxTraceRunes)
	}
	return res
}

func okEnvelope(req model.TripRequest, message string) model.SubmitResult {
	return model.SubmitResult{
		Result:    model.SubmitOutcomeOK,
		OwnerID:   req.OwnerID,
		RequestID: req.RequestID,
		Message:   message,
	}
}

// tripMeta carries the trip fields onto the job record for status readers.
func tripMeta(req model.TripRequest) map[string]any {
	meta := make(map[string]any, 4)
	for key, value := range map[string]string{
		"destination": req.Destination,
		"startDate":   req.StartDate,
		"endDate":     req.EndDate,
		"preferences": req.Preferences,
	} {
		if strings.TrimSpace(value) != "" {
			meta[key] = value
		}
	}
	if len(meta) == 0 {
		return nil
	}
	return meta
}

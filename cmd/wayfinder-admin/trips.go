package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/wayfinderhq/wayfinder/internal/domain/model"
	"github.com/wayfinderhq/wayfinder/internal/poll"
)

const (
	// defaultSubmitTimeout must outlast the server-side planning window: the
	// submission response is not written until the run finishes.
	defaultSubmitTimeout = 15 * time.Minute

	defaultStatusTimeout = 30 * time.Second

	maxAPIResponseBytes = 1 << 20
)

var errJobNotFound = errors.New("job record not found")

type submitOptions struct {
	ServerURL   string
	OwnerID     string
	RequestID   string
	Destination string
	StartDate   string
	EndDate     string
	Preferences string
	Prompt      string
	Timeout     time.Duration
}

type statusOptions struct {
	ServerURL string
	OwnerID   string
	RequestID string
	RawJSON   bool
	Timeout   time.Duration
}

type watchOptions struct {
	ServerURL     string
	OwnerID       string
	RequestID     string
	Interval      time.Duration
	NotFoundGrace time.Duration
}

func runSubmitTrip(cmdCtx *commandContext, args []string) error {
	opts, err := parseSubmitFlags(args)
	if err != nil {
		return err
	}
	if opts.ServerURL == "" {
		opts.ServerURL = cmdCtx.Config.HTTP.BaseURL
	}

	ctx, stop := signal.NotifyContext(cmdCtx.Ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	trip := model.TripRequest{
		OwnerID:     opts.OwnerID,
		RequestID:   opts.RequestID,
		Destination: opts.Destination,
		StartDate:   opts.StartDate,
		EndDate:     opts.EndDate,
		Preferences: opts.Preferences,
		Prompt:      opts.Prompt,
	}

	cmdCtx.Logger.Info(
		"submitting trip request",
		"server", opts.ServerURL,
		"owner_id", trip.OwnerID,
		"request_id", trip.RequestID,
		"destination", trip.Destination,
	)

	result, err := postTripRequest(ctx, opts.ServerURL, trip)
	if err != nil {
		return err
	}

	if printErr := printSubmitResult(result); printErr != nil {
		return printErr
	}

	if result.Result != model.SubmitOutcomeOK {
		reason := result.Error
		if reason == "" {
			reason = "unknown error"
		}
		return fmt.Errorf("planning run failed: %s", reason)
	}
	return nil
}

func runTripStatus(cmdCtx *commandContext, args []string) error {
	opts, err := parseStatusFlags(args)
	if err != nil {
		return err
	}
	if opts.ServerURL == "" {
		opts.ServerURL = cmdCtx.Config.HTTP.BaseURL
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, opts.Timeout)
	defer cancel()

	view, err := fetchJobView(ctx, opts.ServerURL, opts.OwnerID, opts.RequestID)
	if errors.Is(err, errJobNotFound) {
		return fmt.Errorf(
			"no job record for owner %q request %q; the submission may not have been accepted yet",
			opts.OwnerID, opts.RequestID,
		)
	}
	if err != nil {
		return err
	}

	if opts.RawJSON {
		return printIndentedJSON(view)
	}
	return printJobStatus(view, opts.OwnerID, opts.RequestID)
}

func runTripWatch(cmdCtx *commandContext, args []string) error {
	opts, err := parseWatchFlags(args)
	if err != nil {
		return err
	}
	if opts.ServerURL == "" {
		opts.ServerURL = cmdCtx.Config.HTTP.BaseURL
	}

	ctx, stop := signal.NotifyContext(cmdCtx.Ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	watcher, err := poll.NewWatcher(poll.WatcherOptions{
		BaseURL:       opts.ServerURL,
		Interval:      opts.Interval,
		NotFoundGrace: opts.NotFoundGrace,
		Logger:        cmdCtx.Logger,
	})
	if err != nil {
		return fmt.Errorf("build watcher: %w", err)
	}

	if headerErr := writef(
		os.Stdout,
		"Watching job %s/%s (polling every %s)\n",
		opts.OwnerID, opts.RequestID, opts.Interval,
	); headerErr != nil {
		return fmt.Errorf("print watch header: %w", headerErr)
	}

	result, err := watcher.Watch(ctx, opts.OwnerID, opts.RequestID, func(line string) {
		if writeErr := writef(os.Stdout, "  %s\n", line); writeErr != nil {
			cmdCtx.Logger.Warn("stdout write for progress line failed", "error", writeErr)
		}
	})
	if err != nil {
		return err
	}

	if printErr := printWatchResult(result); printErr != nil {
		return printErr
	}

	if result.Status != model.JobStatusSucceeded {
		return fmt.Errorf("job ended with status %s", result.Status)
	}
	return nil
}

func parseSubmitFlags(args []string) (submitOptions, error) {
	fs := flag.NewFlagSet("submit", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	opts := submitOptions{
		Timeout: defaultSubmitTimeout,
	}

	fs.StringVar(&opts.ServerURL, "server", "", "Base URL of the wayfinder service (defaults to APP_BASE_URL)")
	fs.StringVar(&opts.OwnerID, "owner", "", "Owner ID (generated when omitted)")
	fs.StringVar(&opts.RequestID, "request", "", "Request ID for idempotent retries (generated when omitted)")
	fs.StringVar(&opts.Destination, "destination", "", "Trip destination (required)")
	fs.StringVar(&opts.StartDate, "start", "", "Trip start date, e.g. 2026-09-12 (required)")
	fs.StringVar(&opts.EndDate, "end", "", "Trip end date, e.g. 2026-09-15 (required)")
	fs.StringVar(&opts.Preferences, "preferences", "", "Free-form trip preferences")
	fs.StringVar(&opts.Prompt, "prompt", "", "Override the default planning prompt")
	fs.DurationVar(
		&opts.Timeout,
		"timeout",
		defaultSubmitTimeout,
		"Maximum duration to wait for the planning run to finish",
	)

	if err := fs.Parse(args); err != nil {
		return submitOptions{}, err
	}

	normalizeSubmitOptions(&opts)
	if err := validateSubmitOptions(&opts); err != nil {
		return submitOptions{}, err
	}

	return opts, nil
}

func normalizeSubmitOptions(opts *submitOptions) {
	opts.ServerURL = strings.TrimSpace(opts.ServerURL)
	opts.OwnerID = strings.TrimSpace(opts.OwnerID)
	opts.RequestID = strings.TrimSpace(opts.RequestID)
	opts.Destination = strings.TrimSpace(opts.Destination)
	opts.StartDate = strings.TrimSpace(opts.StartDate)
	opts.EndDate = strings.TrimSpace(opts.EndDate)
	opts.Preferences = strings.TrimSpace(opts.Preferences)
	opts.Prompt = strings.TrimSpace(opts.Prompt)

	// Identity defaults mirror the interactive client: a fresh owner gets a
	// u-prefixed UUID and every invocation without -request is a new
	// submission rather than a retry.
	if opts.OwnerID == "" {
		opts.OwnerID = "u-" + uuid.NewString()
	}
	if opts.RequestID == "" {
		opts.RequestID = uuid.NewString()
	}
}

func validateSubmitOptions(opts *submitOptions) error {
	if opts.Destination == "" {
		return errors.New("--destination is required")
	}
	if opts.StartDate == "" || opts.EndDate == "" {
		return errors.New("--start and --end are required")
	}
	if opts.Timeout <= 0 {
		return errors.New("--timeout must be greater than zero")
	}
	return nil
}

func parseStatusFlags(args []string) (statusOptions, error) {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	opts := statusOptions{
		Timeout: defaultStatusTimeout,
	}

	fs.StringVar(&opts.ServerURL, "server", "", "Base URL of the wayfinder service (defaults to APP_BASE_URL)")
	fs.StringVar(&opts.OwnerID, "owner", "", "Owner ID of the submission (required)")
	fs.StringVar(&opts.RequestID, "request", "", "Request ID of the submission (required)")
	fs.BoolVar(&opts.RawJSON, "json", false, "Print the raw job record JSON")
	fs.DurationVar(&opts.Timeout, "timeout", defaultStatusTimeout, "Maximum duration to wait for the status fetch")

	if err := fs.Parse(args); err != nil {
		return statusOptions{}, err
	}

	opts.ServerURL = strings.TrimSpace(opts.ServerURL)
	opts.OwnerID = strings.TrimSpace(opts.OwnerID)
	opts.RequestID = strings.TrimSpace(opts.RequestID)

	if opts.OwnerID == "" || opts.RequestID == "" {
		return statusOptions{}, errors.New("--owner and --request are required")
	}
	if opts.Timeout <= 0 {
		return statusOptions{}, errors.New("--timeout must be greater than zero")
	}

	return opts, nil
}

func parseWatchFlags(args []string) (watchOptions, error) {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts watchOptions
	fs.StringVar(&opts.ServerURL, "server", "", "Base URL of the wayfinder service (defaults to APP_BASE_URL)")
	fs.StringVar(&opts.OwnerID, "owner", "", "Owner ID of the submission (required)")
	fs.StringVar(&opts.RequestID, "request", "", "Request ID of the submission (required)")
	fs.DurationVar(&opts.Interval, "interval", 0, "Poll interval (defaults to 4s)")
	fs.DurationVar(
		&opts.NotFoundGrace,
		"grace",
		0,
		"How long a missing job record stays transient before the watch fails (defaults to 30s)",
	)

	if err := fs.Parse(args); err != nil {
		return watchOptions{}, err
	}

	opts.ServerURL = strings.TrimSpace(opts.ServerURL)
	opts.OwnerID = strings.TrimSpace(opts.OwnerID)
	opts.RequestID = strings.TrimSpace(opts.RequestID)

	if opts.OwnerID == "" || opts.RequestID == "" {
		return watchOptions{}, errors.New("--owner and --request are required")
	}

	return opts, nil
}

func postTripRequest(ctx context.Context, serverURL string, trip model.TripRequest) (*model.SubmitResult, error) {
	body, err := json.Marshal(trip)
	if err != nil {
		return nil, fmt.Errorf("encode trip request: %w", err)
	}

	endpoint := strings.TrimRight(serverURL, "/") + "/api/trips"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build submit request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	// No client-level timeout: the submission response is held open for the
	// whole planning run and the request context already carries the bound.
	client := &http.Client{}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post trip request: %w", err)
	}

	payload, readErr := io.ReadAll(io.LimitReader(resp.Body, maxAPIResponseBytes))
	if closeErr := resp.Body.Close(); closeErr != nil {
		readErr = errors.Join(readErr, closeErr)
	}
	if readErr != nil {
		return nil, fmt.Errorf("read submit response: %w", readErr)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf(
			"submit returned HTTP %d: %s",
			resp.StatusCode, strings.TrimSpace(string(payload)),
		)
	}

	var result model.SubmitResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, fmt.Errorf("decode submit response: %w", err)
	}
	return &result, nil
}

func fetchJobView(ctx context.Context, serverURL, ownerID, requestID string) (*model.JobView, error) {
	endpoint := strings.TrimRight(serverURL, "/") +
		"/api/jobs/" + url.PathEscape(ownerID) + "/" + url.PathEscape(requestID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build status request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	client := &http.Client{Timeout: defaultStatusTimeout}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch job record: %w", err)
	}

	payload, readErr := io.ReadAll(io.LimitReader(resp.Body, maxAPIResponseBytes))
	if closeErr := resp.Body.Close(); closeErr != nil {
		readErr = errors.Join(readErr, closeErr)
	}
	if readErr != nil {
		return nil, fmt.Errorf("read status response: %w", readErr)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		var view model.JobView
		if err := json.Unmarshal(payload, &view); err != nil {
			return nil, fmt.Errorf("decode job record: %w", err)
		}
		return &view, nil
	case http.StatusNotFound:
		return nil, errJobNotFound
	default:
		return nil, fmt.Errorf(
			"status returned HTTP %d: %s",
			resp.StatusCode, strings.TrimSpace(string(payload)),
		)
	}
}

func printSubmitResult(result *model.SubmitResult) error {
	if result == nil {
		return errors.New("submit result is required")
	}

	if err := writef(os.Stdout, "\nSubmission result\n"); err != nil {
		return fmt.Errorf("write submit header: %w", err)
	}
	if err := writef(os.Stdout, "Result:     %s\n", result.Result); err != nil {
		return fmt.Errorf("write submit outcome: %w", err)
	}
	if err := writef(os.Stdout, "Owner ID:   %s\n", result.OwnerID); err != nil {
		return fmt.Errorf("write submit owner: %w", err)
	}
	if err := writef(os.Stdout, "Request ID: %s\n", result.RequestID); err != nil {
		return fmt.Errorf("write submit request: %w", err)
	}
	if result.Message != "" {
		if err := writef(os.Stdout, "Message:    %s\n", result.Message); err != nil {
			return fmt.Errorf("write submit message: %w", err)
		}
	}
	if result.Error != "" {
		if err := writef(os.Stdout, "Error:      %s\n", result.Error); err != nil {
			return fmt.Errorf("write submit error: %w", err)
		}
	}
	if result.Trace != "" {
		if err := writef(os.Stdout, "Trace:      %s\n", result.Trace); err != nil {
			return fmt.Errorf("write submit trace: %w", err)
		}
	}
	return nil
}

func printJobStatus(view *model.JobView, ownerID, requestID string) error {
	if view == nil {
		return errors.New("job view is required")
	}

	if err := writef(os.Stdout, "\nJob record\n"); err != nil {
		return fmt.Errorf("write status header: %w", err)
	}
	if err := writef(os.Stdout, "Owner ID:   %s\n", ownerID); err != nil {
		return fmt.Errorf("write status owner: %w", err)
	}
	if err := writef(os.Stdout, "Request ID: %s\n", requestID); err != nil {
		return fmt.Errorf("write status request: %w", err)
	}
	if err := writef(os.Stdout, "Status:     %s\n", view.Status); err != nil {
		return fmt.Errorf("write status value: %w", err)
	}

	if err := writef(os.Stdout, "\nProgress (%d lines):\n", len(view.Progress)); err != nil {
		return fmt.Errorf("write progress header: %w", err)
	}
	if len(view.Progress) == 0 {
		if err := writeln(os.Stdout, "  (no progress recorded)"); err != nil {
			return fmt.Errorf("write progress empty message: %w", err)
		}
	}
	for i, line := range view.Progress {
		if err := writef(os.Stdout, "  %d. %s\n", i+1, line); err != nil {
			return fmt.Errorf("write progress line: %w", err)
		}
	}

	if view.FinalMessage != nil && *view.FinalMessage != "" {
		if err := writef(os.Stdout, "\nFinal message: %s\n", *view.FinalMessage); err != nil {
			return fmt.Errorf("write final message: %w", err)
		}
	}
	if view.ResultItineraryID != nil && *view.ResultItineraryID != "" {
		if err := writef(os.Stdout, "Itinerary ID:  %s\n", *view.ResultItineraryID); err != nil {
			return fmt.Errorf("write itinerary id: %w", err)
		}
	}
	return nil
}

func printWatchResult(result *poll.Result) error {
	if result == nil {
		return errors.New("watch result is required")
	}

	if err := writef(os.Stdout, "\nJob finished: %s\n", result.Status); err != nil {
		return fmt.Errorf("write watch status: %w", err)
	}
	if result.FinalMessage != "" {
		if err := writef(os.Stdout, "Final message: %s\n", result.FinalMessage); err != nil {
			return fmt.Errorf("write watch final message: %w", err)
		}
	}
	if result.ResultItineraryID != "" {
		if err := writef(os.Stdout, "Itinerary ID:  %s\n", result.ResultItineraryID); err != nil {
			return fmt.Errorf("write watch itinerary id: %w", err)
		}
	}
	return nil
}

func printIndentedJSON(v any) error {
	encoded, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	if err := writef(os.Stdout, "%s\n", encoded); err != nil {
		return fmt.Errorf("write record json: %w", err)
	}
	return nil
}

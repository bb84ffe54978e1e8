// Package poll watches a trip-planning job through the public status API.
//
// The watcher keeps a cursor over the job's append-only progress log and
// surfaces each line exactly once, so a caller can render a live feed without
// re-printing history on every poll. Progress is a monotonic prefix: the
// server only ever appends, which is what makes the cursor safe.
package poll

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/wayfinderhq/wayfinder/internal/domain/model"
)

const (
	// defaultInterval matches the polling cadence of the reference UI.
	defaultInterval = 4 * time.Second

	// defaultNotFoundGrace is how long a missing job record counts as "not
	// yet visible". Submission and first poll race; the record can lag.
	defaultNotFoundGrace = 30 * time.Second

	// defaultHTTPTimeout bounds one status round-trip.
	defaultHTTPTimeout = 10 * time.Second
)

// errNotVisible marks a poll that found no job record.
var errNotVisible = errors.New("job record not visible")

// WatcherOptions groups dependencies for Watcher.
type WatcherOptions struct {
	// BaseURL is the service root, e.g. http://localhost:8080.
	BaseURL string

	// Interval between polls. Defaults to 4s.
	Interval time.Duration

	// NotFoundGrace is how long missing-record polls stay transient before
	// the watch fails. Applies only until the record is first observed.
	NotFoundGrace time.Duration

	HTTPClient *http.Client // Optional, defaults to a 10s-timeout client
	Logger     *slog.Logger // Optional: structured logger
}

// Watcher polls a job's status endpoint until the run reaches a terminal
// state.
type Watcher struct {
	baseURL       string
	interval      time.Duration
	notFoundGrace time.Duration
	httpClient    *http.Client
	logger        *slog.Logger

	now func() time.Time
}

// NewWatcher constructs a new Watcher.
func NewWatcher(opts WatcherOptions) (*Watcher, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		return nil, errors.New("base URL is required")
	}

	interval := opts.Interval
	if interval <= 0 {
		interval = defaultInterval
	}

	grace := opts.NotFoundGrace
	if grace <= 0 {
		grace = defaultNotFoundGrace
	}

	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultHTTPTimeout}
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "poll_watcher")
	}

	return &Watcher{
		baseURL:       base,
		interval:      interval,
		notFoundGrace: grace,
		httpClient:    client,
		logger:        logger,
		now:           time.Now,
	}, nil
}

// Result carries the terminal state of a watched job.
type Result struct {
	Status            model.JobStatus
	Progress          []string
	FinalMessage      string
	ResultItineraryID string
}

// Watch polls the job until it reaches a terminal status and returns the
// terminal view. Each progress line not seen on a previous poll is handed to
// onProgress in order. The first poll happens immediately.
//
// Watch fails when the context ends, when a poll errors at the transport
// level, or when the record stays invisible past the grace budget.
func (w *Watcher) Watch(
	ctx context.Context,
	ownerID, requestID string,
	onProgress func(line string),
) (*Result, error) {
	if strings.TrimSpace(ownerID) == "" || strings.TrimSpace(requestID) == "" {
		return nil, errors.New("owner id and request id are required")
	}

	graceDeadline := w.now().Add(w.notFoundGrace)
	recordSeen := false
	seen := 0

	for {
		view, err := w.fetch(ctx, ownerID, requestID)
		switch {
		case err == nil:
			recordSeen = true
			seen = emitNewLines(view.Progress, seen, onProgress)
			if view.Done() {
				return terminalResult(view), nil
			}

		case errors.Is(err, errNotVisible):
			// A record that vanishes after being observed is not a
			// visibility lag; jobs are never deleted mid-run.
			if recordSeen {
				return nil, fmt.Errorf("job %s/%s disappeared mid-watch", ownerID, requestID)
			}
			if w.now().After(graceDeadline) {
				return nil, fmt.Errorf("job %s/%s not visible after %s", ownerID, requestID, w.notFoundGrace)
			}
			if w.logger != nil {
				w.logger.DebugContext(ctx, "job record not visible yet",
					"owner_id", ownerID,
					"request_id", requestID,
				)
			}

		default:
			return nil, err
		}

		if waitErr := w.wait(ctx); waitErr != nil {
			return nil, waitErr
		}
	}
}

// fetch performs one status round-trip.
func (w *Watcher) fetch(ctx context.Context, ownerID, requestID string) (model.JobView, error) {
	endpoint := w.baseURL + "/api/jobs/" + url.PathEscape(ownerID) + "/" + url.PathEscape(requestID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return model.JobView{}, fmt.Errorf("build status request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return model.JobView{}, fmt.Errorf("poll status: %w", err)
	}

	body, readErr := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if closeErr := resp.Body.Close(); closeErr != nil && readErr == nil {
		readErr = closeErr
	}
	if readErr != nil {
		return model.JobView{}, fmt.Errorf("read status response: %w", readErr)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		var view model.JobView
		if decodeErr := json.Unmarshal(body, &view); decodeErr != nil {
			return model.JobView{}, fmt.Errorf("decode status response: %w", decodeErr)
		}
		return view, nil

	case http.StatusNotFound:
		return model.JobView{}, errNotVisible

	default:
		return model.JobView{}, fmt.Errorf("status endpoint returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
}

// wait sleeps one poll interval or returns early when ctx ends.
func (w *Watcher) wait(ctx context.Context) error {
	timer := time.NewTimer(w.interval)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// emitNewLines hands lines past the cursor to onProgress and returns the new
// cursor. A response shorter than the cursor is ignored rather than replayed.
func emitNewLines(progress []string, seen int, onProgress func(string)) int {
	if len(progress) <= seen {
		return seen
	}
	if onProgress != nil {
		for _, line := range progress[seen:] {
			onProgress(line)
		}
	}
	return len(progress)
}

func terminalResult(view model.JobView) *Result {
	result := &Result{
		Status:   view.Status,
		Progress: view.Progress,
	}
	if view.FinalMessage != nil {
		result.FinalMessage = *view.FinalMessage
	}
	if view.ResultItineraryID != nil {
		result.ResultItineraryID = *view.ResultItineraryID
	}
	return result
}

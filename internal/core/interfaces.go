package core

import (
	"context"
	"time"

	"github.com/wayfinderhq/wayfinder/internal/domain/model"
)

// This file contains repository interface definitions (ports in hexagonal architecture).
// These interfaces define the contracts between the service layer and data layer.
// Service implementations should depend on these interfaces, not concrete implementations.

// JobRepository defines the interface for job record persistence.
//
// A job is addressed by (ownerID, requestID); the repository derives the stored
// job key from the request identity, so a retried submission lands on the row
// the first attempt created.
type JobRepository interface {
	// CreateIfAbsent conditionally creates a job record in RUNNING state.
	// It reports true when a new record was created and false when a record
	// already existed for the same identity. Either outcome is success; only
	// store failures are returned as errors.
	CreateIfAbsent(ctx context.Context, req *model.CreateJobRequest) (bool, error)

	// Get retrieves a job by owner and request identity.
	Get(ctx context.Context, ownerID, requestID string) (*model.Job, error)

	// AppendProgress atomically appends one line to the job's progress list.
	// Two concurrent appends must both land; the list is never read back and
	// overwritten whole.
	AppendProgress(ctx context.Context, ownerID, requestID, line string) error

	// Complete transitions a job to a terminal state. The update requires the
	// current status to be RUNNING, so a terminal job is never moved again.
	// It reports true when the transition was applied and false when the
	// guard rejected it (job missing or already terminal).
	Complete(ctx context.Context, req *model.CompleteJobRequest) (bool, error)
}

// ItineraryRepository defines the interface for itinerary record persistence.
type ItineraryRepository interface {
	// CreateIfAbsent conditionally creates an itinerary record. It reports
	// true when the record was created and false when one already existed at
	// the same identity. An existing record is never overwritten.
	CreateIfAbsent(ctx context.Context, itinerary *model.Itinerary) (bool, error)

	// Get retrieves an itinerary by owner and itinerary identity.
	Get(ctx context.Context, ownerID, itineraryID string) (*model.Itinerary, error)

	// ListRecent returns the owner's itineraries ordered most recent first,
	// capped at limit.
	ListRecent(ctx context.Context, ownerID string, limit int) ([]*model.Itinerary, error)
}

// JanitorRepository defines the interface for stale job cleanup operations.
type JanitorRepository interface {
	// FailStaleRunningJobs marks RUNNING jobs whose last update is older than
	// maxAge as FAILED. Processes up to batchSize jobs per call to prevent
	// long locks. Returns the number of jobs marked as failed.
	FailStaleRunningJobs(ctx context.Context, maxAge time.Duration, batchSize int) (int64, error)
}

// Package model defines the core data types and structures used throughout the wayfinder trip-planning system.
package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// JobStatus represents the lifecycle state of a trip-planning job.
//
//nolint:recvcheck // UnmarshalText needs pointer receiver, Valid needs value receiver
type JobStatus string

const (
	// JobStatusRunning indicates the planning run is in flight.
	JobStatusRunning JobStatus = "RUNNING"
	// JobStatusSucceeded indicates the planning run finished and recorded its outputs.
	JobStatusSucceeded JobStatus = "SUCCEEDED"
	// JobStatusFailed indicates the planning run ended with an error.
	JobStatusFailed JobStatus = "FAILED"
)

// UnmarshalText implements encoding.TextUnmarshaler for JobStatus to allow env parsing.
func (s *JobStatus) UnmarshalText(text []byte) error {
	v := JobStatus(strings.ToUpper(strings.TrimSpace(string(text))))
	if v.Valid() {
		*s = v
		return nil
	}
	return fmt.Errorf("invalid JobStatus: %q", string(text))
}

// Valid returns true if the JobStatus is valid.
func (s JobStatus) Valid() bool {
	return s == JobStatusRunning || s == JobStatusSucceeded || s == JobStatusFailed
}

// Terminal returns true for states that permit no further transitions.
func (s JobStatus) Terminal() bool {
	return s == JobStatusSucceeded || s == JobStatusFailed
}

// JobKeyPrefix namespaces job keys so a job row can never collide with
// another record kind sharing the owner partition.
const JobKeyPrefix = "job#"

// JobKeyFor derives the store key for a request id.
func JobKeyFor(requestID string) string {
	return JobKeyPrefix + requestID
}

// RequestIDFromJobKey recovers the request id from a job key.
func RequestIDFromJobKey(jobKey string) string {
	return strings.TrimPrefix(jobKey, JobKeyPrefix)
}

// Job represents one trip-planning run for an owner.
// Identity is (OwnerID, JobKey); both are immutable once created.
type Job struct {
	OwnerID           string         `json:"ownerId"                     db:"owner_id"`
	JobKey            string         `json:"jobKey"                      db:"job_key"`
	Status            JobStatus      `json:"status"                      db:"status"`
	StartedAt         time.Time      `json:"startedAt"                   db:"started_at"`
	UpdatedAt         time.Time      `json:"updatedAt"                   db:"updated_at"`
	CompletedAt       *time.Time     `json:"completedAt,omitempty"       db:"completed_at"`
	Progress          []string       `json:"progress"                    db:"progress"`
	FinalMessage      *string        `json:"finalMessage,omitempty"      db:"final_message"`
	ResultItineraryID *string        `json:"resultItineraryId,omitempty" db:"result_itinerary_id"`
	Meta              map[string]any `json:"meta,omitempty"              db:"meta"`
}

// RequestID recovers the client-supplied request id from the job key.
func (j *Job) RequestID() string {
	return RequestIDFromJobKey(j.JobKey)
}

// View projects the job into its poller-facing shape.
func (j *Job) View() JobView {
	progress := j.Progress
	if progress == nil {
		progress = []string{}
	}
	return JobView{
		Status:            j.Status,
		Progress:          progress,
		FinalMessage:      j.FinalMessage,
		ResultItineraryID: j.ResultItineraryID,
	}
}

// JobView is the poller-facing projection of a job.
type JobView struct {
	Status            JobStatus `json:"status"`
	Progress          []string  `json:"progress"`
	FinalMessage      *string   `json:"finalMessage,omitempty"`
	ResultItineraryID *string   `json:"resultItineraryId,omitempty"`
}

// Done returns true once the view reached a terminal status.
func (v JobView) Done() bool {
	return v.Status.Terminal()
}

// CreateJobRequest carries the identity and optional metadata for a new job.
type CreateJobRequest struct {
	OwnerID   string
	RequestID string
	Meta      map[string]any
}

// Validate validates the CreateJobRequest fields.
func (r *CreateJobRequest) Validate() error {
	if r.OwnerID == "" {
		return errors.New("owner id is required")
	}
	if r.RequestID == "" {
		return errors.New("request id is required")
	}
	return nil
}

// CompleteJobRequest carries the terminal write for a job.
// FinalMessage and ResultItineraryID are written only when non-empty.
type CompleteJobRequest struct {
	OwnerID           string
	RequestID         string
	Status            JobStatus
	FinalMessage      string
	ResultItineraryID string
}

// Validate validates the CompleteJobRequest fields.
func (r *CompleteJobRequest) Validate() error {
	if r.OwnerID == "" {
		return errors.New("owner id is required")
	}
	if r.RequestID == "" {
		return errors.New("request id is required")
	}
	if !r.Status.Terminal() {
		return errors.New("completion status must be terminal")
	}
	return nil
}

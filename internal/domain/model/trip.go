package model

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// TripRequest is one trip-planning submission.
//
// OwnerID and RequestID are optional on the wire; ApplyDefaults fills them.
// A server-generated RequestID means retries of the same logical submission
// no longer collide, so callers that need idempotent retries must supply
// their own.
type TripRequest struct {
	OwnerID     string `json:"ownerId"`
	RequestID   string `json:"requestId"`
	Destination string `json:"destination"`
	StartDate   string `json:"startDate"`
	EndDate     string `json:"endDate"`
	Preferences string `json:"preferences,omitempty"`
	Prompt      string `json:"prompt,omitempty"`
}

// ApplyDefaults fills missing identity fields.
func (r *TripRequest) ApplyDefaults() {
	if strings.TrimSpace(r.OwnerID) == "" {
		r.OwnerID = "u-" + uuid.NewString()
	}
	if strings.TrimSpace(r.RequestID) == "" {
		r.RequestID = uuid.NewString()
	}
}

// Validate validates the TripRequest fields.
func (r *TripRequest) Validate() error {
	if strings.TrimSpace(r.Destination) == "" && strings.TrimSpace(r.Prompt) == "" {
		return errors.New("destination or prompt is required")
	}
	return nil
}

// Query returns the natural-language planning request, synthesizing one from
// the structured fields when the caller did not provide a prompt.
func (r *TripRequest) Query() string {
	if q := strings.TrimSpace(r.Prompt); q != "" {
		return q
	}
	return fmt.Sprintf(
		"Plan a trip to %s from %s to %s. Preferences: %s",
		r.Destination, r.StartDate, r.EndDate, r.Preferences,
	)
}

// ContextBlock renders the identity and trip fields the planner prepends to
// the user request.
func (r *TripRequest) ContextBlock() string {
	return fmt.Sprintf(
		"OwnerId: %s\nRequestId: %s\nDestination: %s\nDates: %s to %s\nPreferences: %s\n\n"+
			"Follow the protocol; emit STATUS/TOOL lines; call save_itinerary exactly once.",
		r.OwnerID, r.RequestID, r.Destination, r.StartDate, r.EndDate, r.Preferences,
	)
}

// SubmitOutcome distinguishes the two submission results.
type SubmitOutcome string

const (
	// SubmitOutcomeOK marks a submission that ran to completion.
	SubmitOutcomeOK SubmitOutcome = "ok"
	// SubmitOutcomeError marks a submission that failed inside the boundary.
	SubmitOutcomeError SubmitOutcome = "error"
)

// SubmitResult is the submission envelope. A submission never propagates a
// panic or error past this shape; Result distinguishes the outcomes.
type SubmitResult struct {
	Result    SubmitOutcome `json:"result"`
	OwnerID   string        `json:"ownerId"`
	RequestID string        `json:"requestId"`
	Message   string        `json:"message,omitempty"`
	Error     string        `json:"error,omitempty"`
	Trace     string        `json:"trace,omitempty"`
}

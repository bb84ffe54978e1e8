package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// itineraryIDPrefix namespaces derived itinerary identities.
const itineraryIDPrefix = "wayfinder:"

// Itinerary is the result artifact of a planning run.
//
// Records are write-once: a second store with the same identity reports
// duplication instead of overwriting.
type Itinerary struct {
	OwnerID     string         `json:"ownerId"     db:"owner_id"`
	ItineraryID string         `json:"itineraryId" db:"itinerary_id"`
	Destination string         `json:"destination" db:"destination"`
	StartDate   string         `json:"startDate"   db:"start_date"`
	EndDate     string         `json:"endDate"     db:"end_date"`
	Items       []ItineraryDay `json:"items"       db:"items"`
	Sources     []SourceRef    `json:"sources"     db:"sources"`
	CreatedAt   time.Time      `json:"createdAt"   db:"created_at"`
}

// ItineraryDay is one day of the itinerary.
type ItineraryDay struct {
	Day        int        `json:"day"`
	Date       string     `json:"date"`
	Summary    string     `json:"summary"`
	Activities []Activity `json:"activities"`
}

// Activity is one scheduled stop within a day.
type Activity struct {
	Name    string `json:"name"`
	URL     string `json:"url,omitempty"`
	Time    string `json:"time,omitempty"`
	Address string `json:"address,omitempty"`
	Notes   string `json:"notes,omitempty"`
	EstCost string `json:"estCost,omitempty"`
	Travel  string `json:"travel,omitempty"`
}

// SourceRef is one source citation backing the plan.
type SourceRef struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// EnsureShape fills the slices the planner may omit so stored artifacts
// always carry the full shape.
func (it *Itinerary) EnsureShape() {
	if it.Items == nil {
		it.Items = []ItineraryDay{}
	}
	if it.Sources == nil {
		it.Sources = []SourceRef{}
	}
}

// StableItineraryID derives a deterministic identity for an itinerary so
// re-submission of the same logical request addresses the same record.
//
// A non-empty requestID anchors the identity; otherwise the trip fields do,
// which intentionally collapses identical (owner, destination, dates) trips
// into one record.
func StableItineraryID(ownerID, requestID, destination, startDate, endDate string) string {
	base := requestID
	if base == "" {
		base = strings.Join([]string{destination, startDate, endDate}, "|")
	}
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(itineraryIDPrefix+ownerID+"|"+base)).String()
}

// SaveResult reports the outcome of an idempotent itinerary store.
type SaveResult struct {
	Created bool   `json:"created"`
	ID      string `json:"id"`
}

// String renders the tool-protocol form of the result.
func (r SaveResult) String() string {
	if r.Created {
		return "saved:" + r.ID
	}
	return "duplicate:" + r.ID
}

// ParseSaveResultID extracts the itinerary identity from a save tool result.
// Returns empty when the text is not a save outcome.
func ParseSaveResultID(text string) string {
	trimmed := strings.TrimSpace(text)
	for _, prefix := range []string{"saved:", "duplicate:"} {
		if rest, ok := strings.CutPrefix(trimmed, prefix); ok {
			if id := strings.TrimSpace(rest); id != "" {
				return id
			}
		}
	}
	return ""
}

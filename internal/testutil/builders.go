// Package testutil provides testing utilities and helpers for the wayfinder trip service.
package testutil

import (
	"time"

	"github.com/google/uuid"
	"github.com/wayfinderhq/wayfinder/internal/domain/model"
)

// JobRequestBuilder provides a fluent interface for building CreateJobRequest objects for testing.
type JobRequestBuilder struct {
	req *model.CreateJobRequest
}

// NewJobRequest creates a new JobRequestBuilder with sensible defaults.
// RequestID defaults to a fresh UUID so repeated builds never collide on the
// conditional-create path.
func NewJobRequest() *JobRequestBuilder {
	return &JobRequestBuilder{
		req: &model.CreateJobRequest{
			OwnerID:   "u-test",
			RequestID: uuid.NewString(),
		},
	}
}

// WithOwner sets the owner id.
func (b *JobRequestBuilder) WithOwner(ownerID string) *JobRequestBuilder {
	b.req.OwnerID = ownerID
	return b
}

// WithRequestID sets the request id.
func (b *JobRequestBuilder) WithRequestID(requestID string) *JobRequestBuilder {
	b.req.RequestID = requestID
	return b
}

// WithMeta sets the job metadata.
func (b *JobRequestBuilder) WithMeta(meta map[string]interface{}) *JobRequestBuilder {
	b.req.Meta = meta
	return b
}

// Build returns the constructed CreateJobRequest.
func (b *JobRequestBuilder) Build() *model.CreateJobRequest {
	return b.req
}

// ItineraryBuilder provides a fluent interface for building Itinerary objects for testing.
type ItineraryBuilder struct {
	it *model.Itinerary
}

// NewItinerary creates a new ItineraryBuilder with a one-day itinerary.
func NewItinerary() *ItineraryBuilder {
	return &ItineraryBuilder{
		it: &model.Itinerary{
			OwnerID:     "u-test",
			ItineraryID: uuid.NewString(),
			Destination: "Lisbon",
			StartDate:   "2026-05-04",
			EndDate:     "2026-05-08",
			Items: []model.ItineraryDay{
				{
					Day:     1,
					Date:    "2026-05-04",
					Summary: "Alfama and the riverfront",
					Activities: []model.Activity{
						{Name: "Castelo de S. Jorge", Time: "10:00"},
						{Name: "Time Out Market", Time: "13:00", Notes: "lunch"},
					},
				},
			},
			Sources: []model.SourceRef{
				{Title: "Lisbon travel guide", URL: "https://example.com/lisbon"},
			},
			CreatedAt: TestTime(),
		},
	}
}

// WithOwner sets the owner id.
func (b *ItineraryBuilder) WithOwner(ownerID string) *ItineraryBuilder {
	b.it.OwnerID = ownerID
	return b
}

// WithID sets the itinerary id.
func (b *ItineraryBuilder) WithID(itineraryID string) *ItineraryBuilder {
	b.it.ItineraryID = itineraryID
	return b
}

// WithStableID derives the itinerary id from the request identity, matching
// what a planning run would store.
func (b *ItineraryBuilder) WithStableID(requestID string) *ItineraryBuilder {
	b.it.ItineraryID = model.StableItineraryID(
		b.it.OwnerID, requestID, b.it.Destination, b.it.StartDate, b.it.EndDate)
	return b
}

// WithDestination sets the destination.
func (b *ItineraryBuilder) WithDestination(destination string) *ItineraryBuilder {
	b.it.Destination = destination
	return b
}

// WithDates sets the start and end dates.
func (b *ItineraryBuilder) WithDates(start, end string) *ItineraryBuilder {
	b.it.StartDate = start
	b.it.EndDate = end
	return b
}

// WithItems sets the day-by-day items.
func (b *ItineraryBuilder) WithItems(items []model.ItineraryDay) *ItineraryBuilder {
	b.it.Items = items
	return b
}

// WithSources sets the source citations.
func (b *ItineraryBuilder) WithSources(sources []model.SourceRef) *ItineraryBuilder {
	b.it.Sources = sources
	return b
}

// WithCreatedAt sets the creation timestamp.
func (b *ItineraryBuilder) WithCreatedAt(t time.Time) *ItineraryBuilder {
	b.it.CreatedAt = t
	return b
}

// Build returns the constructed Itinerary.
func (b *ItineraryBuilder) Build() *model.Itinerary {
	return b.it
}

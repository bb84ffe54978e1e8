package model

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStableItineraryID_Deterministic(t *testing.T) {
	a := StableItineraryID("u1", "r1", "Kyoto", "2025-04-01", "2025-04-05")
	b := StableItineraryID("u1", "r1", "Kyoto", "2025-04-01", "2025-04-05")
	assert.Equal(t, a, b)

	_, err := uuid.Parse(a)
	require.NoError(t, err, "derived id should be a parseable uuid")
}

func TestStableItineraryID_RequestAnchorsIdentity(t *testing.T) {
	// With a request id, the trip fields do not participate.
	a := StableItineraryID("u1", "r1", "Kyoto", "2025-04-01", "2025-04-05")
	b := StableItineraryID("u1", "r1", "Osaka", "2025-05-01", "2025-05-02")
	assert.Equal(t, a, b)

	// Different owners never share an identity, even for the same request id.
	c := StableItineraryID("u2", "r1", "Kyoto", "2025-04-01", "2025-04-05")
	assert.NotEqual(t, a, c)
}

func TestStableItineraryID_FallbackUsesTripFields(t *testing.T) {
	a := StableItineraryID("u1", "", "Kyoto", "2025-04-01", "2025-04-05")
	b := StableItineraryID("u1", "", "Kyoto", "2025-04-01", "2025-04-05")
	assert.Equal(t, a, b)

	c := StableItineraryID("u1", "", "Kyoto", "2025-04-01", "2025-04-06")
	assert.NotEqual(t, a, c)
}

func TestItinerary_EnsureShape(t *testing.T) {
	it := Itinerary{OwnerID: "u1", ItineraryID: "i1"}
	it.EnsureShape()

	require.NotNil(t, it.Items)
	require.NotNil(t, it.Sources)
	assert.Empty(t, it.Items)
	assert.Empty(t, it.Sources)

	// Populated slices are left alone.
	it = Itinerary{
		Items:   []ItineraryDay{{Day: 1, Date: "2025-04-01", Summary: "arrive"}},
		Sources: []SourceRef{{Title: "Guide", URL: "https://example.org"}},
	}
	it.EnsureShape()
	assert.Len(t, it.Items, 1)
	assert.Len(t, it.Sources, 1)
}

func TestSaveResult_String(t *testing.T) {
	assert.Equal(t, "saved:abc", SaveResult{Created: true, ID: "abc"}.String())
	assert.Equal(t, "duplicate:abc", SaveResult{Created: false, ID: "abc"}.String())
}

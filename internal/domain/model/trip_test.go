package model

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTripRequest_ApplyDefaults(t *testing.T) {
	req := TripRequest{Destination: "Kyoto"}
	req.ApplyDefaults()

	assert.True(t, strings.HasPrefix(req.OwnerID, "u-"), "owner id should carry the u- prefix, got %q", req.OwnerID)
	assert.NotEmpty(t, req.RequestID)

	// Supplied identities survive.
	req = TripRequest{OwnerID: "u1", RequestID: "r1", Destination: "Kyoto"}
	req.ApplyDefaults()
	assert.Equal(t, "u1", req.OwnerID)
	assert.Equal(t, "r1", req.RequestID)

	// Whitespace counts as absent.
	req = TripRequest{OwnerID: "  ", RequestID: "\t", Destination: "Kyoto"}
	req.ApplyDefaults()
	assert.NotEqual(t, "  ", req.OwnerID)
	assert.NotEqual(t, "\t", req.RequestID)
}

func TestTripRequest_Validate(t *testing.T) {
	req := TripRequest{}
	require.Error(t, req.Validate())

	req = TripRequest{Destination: "Kyoto"}
	assert.NoError(t, req.Validate())

	req = TripRequest{Prompt: "Plan me a weekend in Kyoto"}
	assert.NoError(t, req.Validate())
}

func TestTripRequest_Query(t *testing.T) {
	req := TripRequest{
		Destination: "Kyoto, Japan",
		StartDate:   "2025-04-01",
		EndDate:     "2025-04-05",
		Preferences: "temples, food",
	}
	assert.Equal(
		t,
		"Plan a trip to Kyoto, Japan from 2025-04-01 to 2025-04-05. Preferences: temples, food",
		req.Query(),
	)

	req.Prompt = "  Surprise me  "
	assert.Equal(t, "Surprise me", req.Query())
}

func TestTripRequest_ContextBlock(t *testing.T) {
	req := TripRequest{
		OwnerID:     "u1",
		RequestID:   "r1",
		Destination: "Kyoto",
		StartDate:   "2025-04-01",
		EndDate:     "2025-04-05",
		Preferences: "temples",
	}

	block := req.ContextBlock()
	assert.Contains(t, block, "OwnerId: u1")
	assert.Contains(t, block, "RequestId: r1")
	assert.Contains(t, block, "Dates: 2025-04-01 to 2025-04-05")
	assert.Contains(t, block, "call save_itinerary exactly once")
}

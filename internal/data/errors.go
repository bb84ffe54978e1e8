package data

import "errors"

// Shared sentinel errors for data-layer repositories.
var (
	// Job repository sentinels.
	ErrJobNotFound = errors.New("job not found")

	// Itinerary repository sentinels.
	ErrItineraryNotFound = errors.New("itinerary not found")
)

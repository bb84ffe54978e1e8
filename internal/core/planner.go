package core

import "context"

// PlanRequest carries one planning run's inputs.
type PlanRequest struct {
	// Input is the fully composed prompt: the run's context block followed
	// by the traveler's request.
	Input string
	// Tools is the registry built for this run.
	Tools *ToolRegistry
	// Progress receives protocol lines as the run advances.
	Progress ProgressSink
}

// PlanResult is the outcome of a completed planning run.
type PlanResult struct {
	// FinalMessage is the model's closing text.
	FinalMessage string
	// ItineraryID identifies the itinerary the run saved, when it saved one.
	ItineraryID string
	// Turns is the number of model turns consumed.
	Turns int
	// InputTokens and OutputTokens aggregate usage across turns.
	InputTokens  int64
	OutputTokens int64
}

// Planner drives a model-backed planning run to completion.
type Planner interface {
	Plan(ctx context.Context, req PlanRequest) (*PlanResult, error)
}

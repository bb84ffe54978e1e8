package metrics

import (
	"time"

	obserrors "github.com/wayfinderhq/wayfinder/internal/observability/errors"
	"github.com/wayfinderhq/wayfinder/internal/observability/statsd"
)

// Result constants for metric tagging.
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultNoop    = "noop"
)

// PlanMetric captures details about a completed planning run for metric emission.
type PlanMetric struct {
	Model        string
	Result       string
	Duration     time.Duration
	Turns        int
	InputTokens  int64
	OutputTokens int64
	Err          error
}

// EmitPlanLifecycle emits standardised planning run metrics.
func EmitPlanLifecycle(sink statsd.Sink, in PlanMetric) {
	if sink == nil {
		return
	}

	tags := map[string]string{
		"model":  in.Model,
		"result": in.Result,
	}

	if in.Err != nil && in.Result == ResultError {
		if class := obserrors.Classify(in.Err); class != "" {
			tags["error_class"] = class
		}
	}

	sink.Count("plan.run", 1, tags)

	if in.Duration > 0 {
		sink.Timing("plan.duration", in.Duration, CloneTags(tags))
	}
	if in.Turns > 0 {
		sink.Gauge("plan.turns", float64(in.Turns), CloneTags(tags))
	}
	if in.InputTokens > 0 {
		inTags := CloneTags(tags)
		inTags["direction"] = "input"
		sink.Count("plan.tokens", in.InputTokens, inTags)
	}
	if in.OutputTokens > 0 {
		outTags := CloneTags(tags)
		outTags["direction"] = "output"
		sink.Count("plan.tokens", in.OutputTokens, outTags)
	}
}

// ToolMetric captures details about a single tool invocation.
type ToolMetric struct {
	Tool     string
	Variant  string
	Result   string
	Duration time.Duration
	Err      error
}

// EmitToolInvocation emits standardised tool invocation metrics.
func EmitToolInvocation(sink statsd.Sink, in ToolMetric) {
	if sink == nil {
		return
	}

	tags := map[string]string{
		"tool":    in.Tool,
		"variant": in.Variant,
		"result":  in.Result,
	}

	if in.Err != nil && in.Result == ResultError {
		if class := obserrors.Classify(in.Err); class != "" {
			tags["error_class"] = class
		}
	}

	sink.Count("tool.invocation", 1, tags)

	if in.Duration > 0 {
		sink.Timing("tool.duration", in.Duration, CloneTags(tags))
	}
}

// EmitTokenMint records the outcome of a gateway credential mint attempt.
func EmitTokenMint(sink statsd.Sink, result string, duration time.Duration) {
	if sink == nil {
		return
	}

	tags := map[string]string{"result": result}
	sink.Count("gateway.token_mint", 1, tags)

	if duration > 0 {
		sink.Timing("gateway.token_mint_duration", duration, CloneTags(tags))
	}
}

// JobTransitionMetric captures a job record state change.
type JobTransitionMetric struct {
	Transition string
	Result     string
	Err        error
}

// EmitJobTransition emits standardised job state change metrics.
func EmitJobTransition(sink statsd.Sink, in JobTransitionMetric) {
	if sink == nil {
		return
	}

	tags := map[string]string{
		"transition": in.Transition,
		"result":     in.Result,
	}

	if in.Err != nil && in.Result == ResultError {
		if class := obserrors.Classify(in.Err); class != "" {
			tags["error_class"] = class
		}
	}

	sink.Count("job.transition", 1, tags)
}

// CloneTags creates a shallow copy of a tag map, filtering out empty keys.
func CloneTags(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string]string, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

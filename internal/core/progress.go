package core

import (
	"context"
	"strings"
)

// ProgressSink receives user-visible progress lines from a running plan.
// Appends are best-effort; implementations must absorb their own failures so
// progress reporting can never disturb the run it describes.
type ProgressSink interface {
	Append(ctx context.Context, line string)
}

// ProgressPrefixes returns the line prefixes considered user-visible
// progress. Driver output not carrying one of these prefixes stays out of
// the job record.
func ProgressPrefixes() []string {
	return []string{"STATUS:", "TOOL:", "TOOL_RESULT:", "Tool #"}
}

// PrefixFilterSink forwards only lines carrying an allowed prefix.
// It replaces ad-hoc matching on intercepted log text with an explicit
// filter at the single point where driver output meets the job record.
type PrefixFilterSink struct {
	next     ProgressSink
	prefixes []string
}

// NewPrefixFilterSink wraps next with the default progress prefix filter.
func NewPrefixFilterSink(next ProgressSink) *PrefixFilterSink {
	return &PrefixFilterSink{next: next, prefixes: ProgressPrefixes()}
}

// Append forwards line to the underlying sink when it matches the filter.
func (s *PrefixFilterSink) Append(ctx context.Context, line string) {
	trimmed := strings.TrimSpace(line)
	for _, prefix := range s.prefixes {
		if strings.HasPrefix(trimmed, prefix) {
			s.next.Append(ctx, line)
			return
		}
	}
}

// NopProgressSink discards every line. Useful for runs that have no observer.
type NopProgressSink struct{}

// Append implements ProgressSink.
func (NopProgressSink) Append(context.Context, string) {}

package core

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

type collectSink struct {
	lines []string
}

func (c *collectSink) Append(_ context.Context, line string) {
	c.lines = append(c.lines, line)
}

func TestPrefixFilterSink_Append(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		line string
		want bool
	}{
		{name: "status line", line: "STATUS: researching buses", want: true},
		{name: "tool line", line: "TOOL: http_request GET https://example.org/", want: true},
		{name: "tool result line", line: "TOOL_RESULT: ok 2345 chars", want: true},
		{name: "numbered tool line", line: "Tool #1: otm_geoname", want: true},
		{name: "leading whitespace", line: "  STATUS: drafting day plan", want: true},
		{name: "plain prose", line: "Here is your itinerary for Kyoto.", want: false},
		{name: "prefix mid-line", line: "note STATUS: hidden", want: false},
		{name: "lowercase prefix", line: "status: not a protocol line", want: false},
		{name: "empty line", line: "", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			next := &collectSink{}
			sink := NewPrefixFilterSink(next)
			sink.Append(context.Background(), tt.line)

			if tt.want {
				assert.Equal(t, []string{tt.line}, next.lines)
			} else {
				assert.Empty(t, next.lines)
			}
		})
	}
}

func TestPrefixFilterSink_PreservesOrder(t *testing.T) {
	t.Parallel()

	next := &collectSink{}
	sink := NewPrefixFilterSink(next)

	ctx := context.Background()
	sink.Append(ctx, "STATUS: starting research")
	sink.Append(ctx, "thinking out loud, not for the record")
	sink.Append(ctx, "TOOL: otm_geoname {\"name\":\"Kyoto\"}")
	sink.Append(ctx, "TOOL_RESULT: ok 512 chars")

	assert.Equal(t, []string{
		"STATUS: starting research",
		"TOOL: otm_geoname {\"name\":\"Kyoto\"}",
		"TOOL_RESULT: ok 512 chars",
	}, next.lines)
}

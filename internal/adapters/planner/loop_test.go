package planner

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wayfinderhq/wayfinder/internal/core"
)

type scriptedClient struct {
	replies []*ConverseResponse
	errs    []error
	calls   []ConverseRequest
}

func (c *scriptedClient) Converse(_ context.Context, req ConverseRequest) (*ConverseResponse, error) {
	i := len(c.calls)
	c.calls = append(c.calls, req)
	if i < len(c.errs) && c.errs[i] != nil {
		return nil, c.errs[i]
	}
	if i >= len(c.replies) {
		return nil, errors.New("script exhausted")
	}
	return c.replies[i], nil
}

type recordingSink struct {
	mu    sync.Mutex
	lines []string
}

func (s *recordingSink) Append(_ context.Context, line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = append(s.lines, line)
}

func (s *recordingSink) all() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.lines...)
}

func (s *recordingSink) joined() string {
	return strings.Join(s.all(), "\n")
}

func stubTool(name, result string, err error) core.Tool {
	return core.Tool{
		Descriptor: core.ToolDescriptor{
			Name:    name,
			Variant: core.ToolVariantBuiltin,
			Schema:  core.ToolSchema{Type: "object"},
		},
		Invoke: func(_ context.Context, _ core.ToolCall) (string, error) {
			return result, err
		},
	}
}

func newTestLoop(t *testing.T, client ModelClient) *Loop {
	t.Helper()
	loop, err := NewLoop(LoopOptions{Client: client, Model: "test-model", MaxTurns: 5})
	require.NoError(t, err)
	return loop
}

func TestNewLoopRequiresClient(t *testing.T) {
	_, err := NewLoop(LoopOptions{})
	require.Error(t, err)
}

func TestPlanFinishesWithoutTools(t *testing.T) {
	client := &scriptedClient{
		replies: []*ConverseResponse{{
			Text:  "STATUS: planning\nHere is your trip.",
			Usage: Usage{InputTokens: 10, OutputTokens: 20},
		}},
	}
	loop := newTestLoop(t, client)
	sink := &recordingSink{}

	result, err := loop.Plan(context.Background(), core.PlanRequest{
		Input:    "plan Lisbon",
		Progress: sink,
	})
	require.NoError(t, err)
	assert.Equal(t, "STATUS: planning\nHere is your trip.", result.FinalMessage)
	assert.Equal(t, 1, result.Turns)
	assert.Equal(t, int64(10), result.InputTokens)
	assert.Equal(t, int64(20), result.OutputTokens)
	assert.Empty(t, result.ItineraryID)

	require.Len(t, client.calls, 1)
	assert.Contains(t, client.calls[0].System, "travel-planning agent")
	require.Len(t, client.calls[0].Messages, 1)
	assert.Equal(t, RoleUser, client.calls[0].Messages[0].Role)

	assert.Contains(t, sink.all(), "STATUS: planning")
	assert.Contains(t, sink.all(), "Here is your trip.")
}

func TestPlanDispatchesToolsAndRecordsSave(t *testing.T) {
	client := &scriptedClient{
		replies: []*ConverseResponse{
			{
				Text: "STATUS: saving itinerary",
				ToolUses: []ToolUse{{
					ID:        "toolu_1",
					Name:      "save_itinerary",
					Arguments: map[string]any{"itinerary": map[string]any{"destination": "Lisbon"}},
				}},
				Usage: Usage{InputTokens: 5, OutputTokens: 7},
			},
			{
				Text:  "Trip saved, enjoy Lisbon!",
				Usage: Usage{InputTokens: 11, OutputTokens: 13},
			},
		},
	}
	loop := newTestLoop(t, client)
	sink := &recordingSink{}
	registry := core.NewToolRegistry(stubTool("save_itinerary", "saved:itin-42", nil))

	result, err := loop.Plan(context.Background(), core.PlanRequest{
		Input:    "plan Lisbon",
		Tools:    registry,
		Progress: sink,
	})
	require.NoError(t, err)
	assert.Equal(t, "Trip saved, enjoy Lisbon!", result.FinalMessage)
	assert.Equal(t, "itin-42", result.ItineraryID)
	assert.Equal(t, 2, result.Turns)
	assert.Equal(t, int64(16), result.InputTokens)
	assert.Equal(t, int64(20), result.OutputTokens)

	// Second round-trip carries the full exchange back to the model.
	require.Len(t, client.calls, 2)
	msgs := client.calls[1].Messages
	require.Len(t, msgs, 3)
	assert.Equal(t, RoleUser, msgs[0].Role)
	assert.Equal(t, RoleAssistant, msgs[1].Role)
	require.Len(t, msgs[1].ToolUses, 1)
	assert.Equal(t, "toolu_1", msgs[1].ToolUses[0].ID)
	assert.Equal(t, RoleTool, msgs[2].Role)
	assert.Equal(t, "toolu_1", msgs[2].ToolUseID)
	assert.Equal(t, "saved:itin-42", msgs[2].Content)
	assert.False(t, msgs[2].IsError)

	joined := sink.joined()
	assert.Contains(t, joined, "TOOL: save_itinerary")
	assert.Contains(t, joined, "TOOL_RESULT: ok 13 chars")
}

func TestPlanFeedsToolErrorsBack(t *testing.T) {
	client := &scriptedClient{
		replies: []*ConverseResponse{
			{
				ToolUses: []ToolUse{{ID: "toolu_1", Name: "http_request", Arguments: map[string]any{"url": "https://x"}}},
			},
			{Text: "Proceeding without that source."},
		},
	}
	loop := newTestLoop(t, client)
	sink := &recordingSink{}
	registry := core.NewToolRegistry(stubTool("http_request", "", errors.New("connection refused")))

	result, err := loop.Plan(context.Background(), core.PlanRequest{
		Input:    "plan Lisbon",
		Tools:    registry,
		Progress: sink,
	})
	require.NoError(t, err)
	assert.Equal(t, "Proceeding without that source.", result.FinalMessage)

	msgs := client.calls[1].Messages
	require.Len(t, msgs, 3)
	assert.Equal(t, RoleTool, msgs[2].Role)
	assert.True(t, msgs[2].IsError)
	assert.Contains(t, msgs[2].Content, "connection refused")

	assert.Contains(t, sink.joined(), "TOOL_RESULT: error")
}

func TestPlanUnknownToolFedBackAsError(t *testing.T) {
	client := &scriptedClient{
		replies: []*ConverseResponse{
			{ToolUses: []ToolUse{{ID: "toolu_1", Name: "no_such_tool"}}},
			{Text: "done"},
		},
	}
	loop := newTestLoop(t, client)

	result, err := loop.Plan(context.Background(), core.PlanRequest{Input: "plan"})
	require.NoError(t, err)
	assert.Equal(t, "done", result.FinalMessage)

	msgs := client.calls[1].Messages
	require.Len(t, msgs, 3)
	assert.True(t, msgs[2].IsError)
	assert.Contains(t, msgs[2].Content, "unknown tool")
}

func TestPlanTurnExhaustion(t *testing.T) {
	reply := &ConverseResponse{
		ToolUses: []ToolUse{{ID: "toolu_1", Name: "spin"}},
	}
	client := &scriptedClient{
		replies: []*ConverseResponse{reply, reply, reply},
	}
	loop, err := NewLoop(LoopOptions{Client: client, MaxTurns: 3})
	require.NoError(t, err)
	registry := core.NewToolRegistry(stubTool("spin", "again", nil))

	_, err = loop.Plan(context.Background(), core.PlanRequest{Input: "plan", Tools: registry})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "did not finish within 3 turns")
	assert.Len(t, client.calls, 3)
}

func TestPlanModelError(t *testing.T) {
	client := &scriptedClient{errs: []error{errors.New("overloaded")}}
	loop := newTestLoop(t, client)

	_, err := loop.Plan(context.Background(), core.PlanRequest{Input: "plan"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model turn 1")
	assert.Contains(t, err.Error(), "overloaded")
}

func TestPlanCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := &scriptedClient{}
	loop := newTestLoop(t, client)

	_, err := loop.Plan(ctx, core.PlanRequest{Input: "plan"})
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, client.calls)
}

func TestArgsPreview(t *testing.T) {
	assert.Equal(t, "{}", argsPreview(nil))
	assert.Equal(t, `{"url":"https://x"}`, argsPreview(map[string]any{"url": "https://x"}))

	long := argsPreview(map[string]any{"blob": strings.Repeat("x", 500)})
	assert.True(t, strings.HasSuffix(long, " ..."))
	assert.LessOrEqual(t, len([]rune(long)), toolArgsPreviewLimit+4)
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "short", truncateRunes("short", 10))
	assert.Equal(t, "ab ...", truncateRunes("abcdef", 2))
}

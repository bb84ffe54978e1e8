package planner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/wayfinderhq/wayfinder/internal/core"
	"github.com/wayfinderhq/wayfinder/internal/domain/model"
	"github.com/wayfinderhq/wayfinder/internal/observability/metrics"
	"github.com/wayfinderhq/wayfinder/internal/observability/statsd"
)

const (
	defaultMaxTurns       = 10
	defaultHTTPCallBudget = 8

	// Previews keep progress lines readable; the job record applies its own
	// cap on top.
	toolArgsPreviewLimit  = 200
	toolErrorPreviewLimit = 200
)

// LoopOptions configures the planning loop.
type LoopOptions struct {
	// Client performs the model round-trips.
	Client ModelClient

	// Model is the model identifier, used for logging and metric tags.
	Model string

	// MaxTurns bounds the tool-use loop.
	MaxTurns int

	// HTTPCallBudget is rendered into the system prompt.
	HTTPCallBudget int

	Logger  *slog.Logger
	Metrics statsd.Sink
}

// Loop implements core.Planner with a bounded tool-use loop: each model turn
// either requests tool invocations, which are dispatched through the run's
// registry and fed back, or closes the run with final text.
type Loop struct {
	client   ModelClient
	model    string
	maxTurns int
	system   string
	logger   *slog.Logger
	metrics  statsd.Sink

	now func() time.Time
}

var _ core.Planner = (*Loop)(nil)

// NewLoop creates a planning loop.
func NewLoop(opts LoopOptions) (*Loop, error) {
	if opts.Client == nil {
		return nil, errors.New("model client is required")
	}

	maxTurns := opts.MaxTurns
	if maxTurns <= 0 {
		maxTurns = defaultMaxTurns
	}

	budget := opts.HTTPCallBudget
	if budget <= 0 {
		budget = defaultHTTPCallBudget
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Loop{
		client:   opts.Client,
		model:    opts.Model,
		maxTurns: maxTurns,
		system:   SystemPrompt(budget),
		logger:   logger.With("component", "planner"),
		metrics:  opts.Metrics,
		now:      time.Now,
	}, nil
}

// Plan runs the conversation to completion. Tool failures are fed back to the
// model as error results rather than ending the run; only model failures,
// context cancellation, and turn exhaustion are terminal.
func (l *Loop) Plan(ctx context.Context, req core.PlanRequest) (*core.PlanResult, error) {
	start := l.now()

	sink := req.Progress
	if sink == nil {
		sink = core.NopProgressSink{}
	}

	registry := req.Tools
	if registry == nil {
		registry = core.NewToolRegistry()
	}

	messages := []Message{{Role: RoleUser, Content: req.Input}}
	descriptors := registry.Descriptors()
	result := &core.PlanResult{}

	for turn := 1; turn <= l.maxTurns; turn++ {
		select {
		case <-ctx.Done():
			l.emitPlan(metrics.ResultError, l.now().Sub(start), result, ctx.Err())
			return nil, ctx.Err()
		default:
		}

		resp, err := l.client.Converse(ctx, ConverseRequest{
			System:   l.system,
			Messages: messages,
			Tools:    descriptors,
		})
		if err != nil {
			l.emitPlan(metrics.ResultError, l.now().Sub(start), result, err)
			return nil, fmt.Errorf("model turn %d: %w", turn, err)
		}

		result.Turns = turn
		result.InputTokens += resp.Usage.InputTokens
		result.OutputTokens += resp.Usage.OutputTokens

		l.forwardText(ctx, sink, resp.Text)

		if len(resp.ToolUses) == 0 {
			result.FinalMessage = resp.Text
			l.logger.DebugContext(ctx, "planning run complete",
				"turns", result.Turns,
				"input_tokens", result.InputTokens,
				"output_tokens", result.OutputTokens)
			l.emitPlan(metrics.ResultSuccess, l.now().Sub(start), result, nil)
			return result, nil
		}

		messages = append(messages, Message{
			Role:     RoleAssistant,
			Content:  resp.Text,
			ToolUses: resp.ToolUses,
		})

		for _, tu := range resp.ToolUses {
			messages = append(messages, l.dispatchTool(ctx, registry, sink, tu, result))
		}
	}

	err := fmt.Errorf("planning did not finish within %d turns", l.maxTurns)
	l.emitPlan(metrics.ResultError, l.now().Sub(start), result, err)
	return nil, err
}

// dispatchTool invokes one requested tool and renders the exchange as
// progress lines plus the tool message fed back to the model.
func (l *Loop) dispatchTool(ctx context.Context, registry *core.ToolRegistry, sink core.ProgressSink, tu ToolUse, result *core.PlanResult) Message {
	sink.Append(ctx, "TOOL: "+tu.Name+" "+argsPreview(tu.Arguments))

	variant := "unknown"
	if tool, ok := registry.Lookup(tu.Name); ok {
		variant = string(tool.Descriptor.Variant)
	}

	started := l.now()
	out, err := registry.Invoke(ctx, core.ToolCall{
		Name:          tu.Name,
		Arguments:     tu.Arguments,
		CorrelationID: tu.ID,
	})
	elapsed := l.now().Sub(started)

	if err != nil {
		l.logger.WarnContext(ctx, "tool invocation failed", "tool", tu.Name, "error", err)
		metrics.EmitToolInvocation(l.metrics, metrics.ToolMetric{
			Tool:     tu.Name,
			Variant:  variant,
			Result:   metrics.ResultError,
			Duration: elapsed,
			Err:      err,
		})
		sink.Append(ctx, "TOOL_RESULT: error "+truncateRunes(err.Error(), toolErrorPreviewLimit))
		return Message{
			Role:      RoleTool,
			ToolUseID: tu.ID,
			Content:   "error: " + err.Error(),
			IsError:   true,
		}
	}

	metrics.EmitToolInvocation(l.metrics, metrics.ToolMetric{
		Tool:     tu.Name,
		Variant:  variant,
		Result:   metrics.ResultSuccess,
		Duration: elapsed,
	})

	if id := model.ParseSaveResultID(out); id != "" {
		result.ItineraryID = id
	}

	sink.Append(ctx, fmt.Sprintf("TOOL_RESULT: ok %d chars", utf8.RuneCountInString(out)))
	return Message{
		Role:      RoleTool,
		ToolUseID: tu.ID,
		Content:   out,
	}
}

// forwardText hands the model's own protocol lines to the sink. Filtering to
// user-visible prefixes happens downstream.
func (l *Loop) forwardText(ctx context.Context, sink core.ProgressSink, text string) {
	if text == "" {
		return
	}
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		sink.Append(ctx, line)
	}
}

func (l *Loop) emitPlan(outcome string, duration time.Duration, result *core.PlanResult, err error) {
	m := metrics.PlanMetric{
		Model:    l.model,
		Result:   outcome,
		Duration: duration,
		Err:      err,
	}
	if result != nil {
		m.Turns = result.Turns
		m.InputTokens = result.InputTokens
		m.OutputTokens = result.OutputTokens
	}
	metrics.EmitPlanLifecycle(l.metrics, m)
}

// argsPreview renders a compact single-line view of tool arguments.
func argsPreview(args map[string]any) string {
	if len(args) == 0 {
		return "{}"
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return "{}"
	}
	return truncateRunes(string(raw), toolArgsPreviewLimit)
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + " ..."
}

package planner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/wayfinderhq/wayfinder/internal/core"
)

// AnthropicClientConfig configures the Claude-backed model client.
type AnthropicClientConfig struct {
	APIKey      string
	Model       string
	MaxTokens   int64
	Temperature float64
}

// AnthropicClient implements ModelClient over the Anthropic messages API.
type AnthropicClient struct {
	client      anthropic.Client
	model       string
	maxTokens   int64
	temperature float64
}

var _ ModelClient = (*AnthropicClient)(nil)

// NewAnthropicClient creates a model client for the configured model.
func NewAnthropicClient(cfg AnthropicClientConfig) (*AnthropicClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("api key is required")
	}
	if cfg.Model == "" {
		return nil, errors.New("model is required")
	}

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	return &AnthropicClient{
		client:      anthropic.NewClient(option.WithAPIKey(cfg.APIKey)),
		model:       cfg.Model,
		maxTokens:   maxTokens,
		temperature: cfg.Temperature,
	}, nil
}

// Converse performs one messages-API round-trip.
func (c *AnthropicClient) Converse(ctx context.Context, req ConverseRequest) (*ConverseResponse, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		Messages:  encodeMessages(req.Messages),
		MaxTokens: c.maxTokens,
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	if c.temperature > 0 {
		params.Temperature = anthropic.Float(c.temperature)
	}
	if len(req.Tools) > 0 {
		params.Tools = encodeTools(req.Tools)
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic messages: %w", err)
	}
	return decodeResponse(resp)
}

func encodeMessages(messages []Message) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(messages))
	for _, msg := range messages {
		switch {
		case msg.Role == RoleTool:
			out = append(out, anthropic.NewUserMessage(
				anthropic.NewToolResultBlock(msg.ToolUseID, msg.Content, msg.IsError),
			))
		case msg.Role == RoleAssistant && len(msg.ToolUses) > 0:
			blocks := make([]anthropic.ContentBlockParamUnion, 0, len(msg.ToolUses)+1)
			if msg.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(msg.Content))
			}
			for _, tu := range msg.ToolUses {
				blocks = append(blocks, anthropic.NewToolUseBlock(tu.ID, tu.Arguments, tu.Name))
			}
			out = append(out, anthropic.MessageParam{
				Role:    anthropic.MessageParamRoleAssistant,
				Content: blocks,
			})
		case msg.Role == RoleAssistant:
			out = append(out, anthropic.MessageParam{
				Role: anthropic.MessageParamRoleAssistant,
				Content: []anthropic.ContentBlockParamUnion{
					anthropic.NewTextBlock(msg.Content),
				},
			})
		default:
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}
	return out
}

func encodeTools(descriptors []core.ToolDescriptor) []anthropic.ToolUnionParam {
	tools := make([]anthropic.ToolUnionParam, 0, len(descriptors))
	for _, desc := range descriptors {
		tool := anthropic.ToolParam{
			Name: desc.Name,
			InputSchema: anthropic.ToolInputSchemaParam{
				Properties: desc.Schema.Properties,
			},
		}
		if desc.Description != "" {
			tool.Description = anthropic.String(desc.Description)
		}
		if len(desc.Schema.Required) > 0 {
			tool.InputSchema.Required = desc.Schema.Required
		}
		tools = append(tools, anthropic.ToolUnionParam{OfTool: &tool})
	}
	return tools
}

func decodeResponse(msg *anthropic.Message) (*ConverseResponse, error) {
	resp := &ConverseResponse{
		Usage: Usage{
			InputTokens:  msg.Usage.InputTokens,
			OutputTokens: msg.Usage.OutputTokens,
		},
	}

	for _, block := range msg.Content {
		switch b := block.AsAny().(type) {
		case anthropic.TextBlock:
			resp.Text += b.Text
		case anthropic.ToolUseBlock:
			args := map[string]any{}
			if raw := b.JSON.Input.Raw(); raw != "" && raw != "null" {
				if err := json.Unmarshal([]byte(raw), &args); err != nil {
					return nil, fmt.Errorf("decode tool input for %q: %w", b.Name, err)
				}
			}
			resp.ToolUses = append(resp.ToolUses, ToolUse{
				ID:        b.ID,
				Name:      b.Name,
				Arguments: args,
			})
		}
	}
	return resp, nil
}

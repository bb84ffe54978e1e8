// Package planner drives model-backed planning runs through a bounded
// tool-use loop.
package planner

import (
	"context"

	"github.com/wayfinderhq/wayfinder/internal/core"
)

// Role identifies who produced a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolUse is one tool invocation requested by the model.
type ToolUse struct {
	ID        string
	Name      string
	Arguments map[string]any
}

// Message is one entry in the running conversation.
type Message struct {
	Role    Role
	Content string

	// ToolUses carries the invocations an assistant turn requested.
	ToolUses []ToolUse

	// ToolUseID correlates a tool message back to the requesting invocation;
	// IsError marks the result as a failure the model should recover from.
	ToolUseID string
	IsError   bool
}

// Usage aggregates the token consumption reported for one model turn.
type Usage struct {
	InputTokens  int64
	OutputTokens int64
}

// ConverseRequest is the input to one model round-trip.
type ConverseRequest struct {
	System   string
	Messages []Message
	Tools    []core.ToolDescriptor
}

// ConverseResponse is the model's turn: closing text, requested tool
// invocations, or both.
type ConverseResponse struct {
	Text     string
	ToolUses []ToolUse
	Usage    Usage
}

// ModelClient performs one conversational round-trip with the planning model.
type ModelClient interface {
	Converse(ctx context.Context, req ConverseRequest) (*ConverseResponse, error)
}

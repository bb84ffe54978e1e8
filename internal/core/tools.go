package core

import (
	"context"
	"fmt"
)

// ToolVariant tags where a tool's implementation lives.
type ToolVariant string

const (
	// ToolVariantBuiltin marks tools implemented in this process.
	ToolVariantBuiltin ToolVariant = "builtin"
	// ToolVariantGateway marks tools proxied to the remote tool gateway.
	ToolVariantGateway ToolVariant = "gateway"
)

// ToolSchema is the JSON Schema shape advertised for a tool's arguments.
type ToolSchema struct {
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties,omitempty"`
	Required   []string       `json:"required,omitempty"`
}

// ToolDescriptor describes one callable tool exposed to the planning model.
type ToolDescriptor struct {
	Name        string
	Description string
	Variant     ToolVariant
	Schema      ToolSchema
}

// ToolCall carries one tool invocation.
type ToolCall struct {
	// Name is the tool being invoked.
	Name string
	// Arguments is the structured argument object supplied by the model.
	Arguments map[string]any
	// CorrelationID ties the invocation back to its originating model turn.
	CorrelationID string
}

// InvokeFunc executes one tool call and returns the tool's textual result.
type InvokeFunc func(ctx context.Context, call ToolCall) (string, error)

// Tool pairs a descriptor with its invocation closure.
type Tool struct {
	Descriptor ToolDescriptor
	Invoke     InvokeFunc
}

// Valid reports whether the tool is complete enough to register.
func (t Tool) Valid() bool {
	return t.Descriptor.Name != "" && t.Invoke != nil
}

// ToolRegistry maps tool names to typed invocation closures for one planning
// run. It is built once per discovery cycle; malformed entries are rejected at
// registration time, so every registered tool is callable. The registry is
// safe for concurrent reads after construction.
type ToolRegistry struct {
	byName map[string]Tool
	order  []string
}

// NewToolRegistry builds a registry from the given tools. Entries that fail
// Valid and names already registered are dropped; the first registration of a
// name wins. Callers that need to report dropped entries should use Register
// directly.
func NewToolRegistry(tools ...Tool) *ToolRegistry {
	r := &ToolRegistry{byName: make(map[string]Tool, len(tools))}
	for _, t := range tools {
		r.Register(t)
	}
	return r
}

// Register adds a tool to the registry. It reports false when the tool is
// malformed or its name is already taken.
func (r *ToolRegistry) Register(t Tool) bool {
	if !t.Valid() {
		return false
	}
	if _, exists := r.byName[t.Descriptor.Name]; exists {
		return false
	}
	r.byName[t.Descriptor.Name] = t
	r.order = append(r.order, t.Descriptor.Name)
	return true
}

// Lookup returns the tool registered under name.
func (r *ToolRegistry) Lookup(name string) (Tool, bool) {
	t, ok := r.byName[name]
	return t, ok
}

// Invoke dispatches a call to the named tool.
func (r *ToolRegistry) Invoke(ctx context.Context, call ToolCall) (string, error) {
	t, ok := r.byName[call.Name]
	if !ok {
		return "", fmt.Errorf("unknown tool %q", call.Name)
	}
	return t.Invoke(ctx, call)
}

// Descriptors returns the registered tool descriptors in registration order.
func (r *ToolRegistry) Descriptors() []ToolDescriptor {
	out := make([]ToolDescriptor, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.byName[name].Descriptor)
	}
	return out
}

// Len returns the number of registered tools.
func (r *ToolRegistry) Len() int {
	return len(r.order)
}

// ToolDiscoverer lists remotely described tools wrapped as locally callable
// entries. Discovery is advisory: implementations return an empty list when
// the gateway client or credential is unavailable and skip individual
// descriptors that fail to wrap, logging rather than failing.
type ToolDiscoverer interface {
	Discover(ctx context.Context) []Tool
}

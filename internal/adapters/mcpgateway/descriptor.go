package mcpgateway

import (
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/xeipuuv/gojsonschema"

	"github.com/wayfinderhq/wayfinder/internal/core"
)

// toolDescriptor is the cacheable form of a discovered gateway tool. Only the
// advertised contract is cached; invocation closures are rebuilt per run.
type toolDescriptor struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Schema      core.ToolSchema `json:"schema"`
}

// newToolDescriptor converts an advertised MCP tool into a cacheable
// descriptor, rejecting entries the planner could not call safely.
func newToolDescriptor(tool mcp.Tool) (toolDescriptor, error) {
	if tool.Name == "" {
		return toolDescriptor{}, fmt.Errorf("tool advertised without a name")
	}

	schema := core.ToolSchema{
		Type:       tool.InputSchema.Type,
		Properties: tool.InputSchema.Properties,
		Required:   tool.InputSchema.Required,
	}
	if schema.Type == "" {
		schema.Type = "object"
	}
	if err := compileSchema(schema); err != nil {
		return toolDescriptor{}, fmt.Errorf("tool %q schema: %w", tool.Name, err)
	}

	return toolDescriptor{
		Name:        tool.Name,
		Description: tool.Description,
		Schema:      schema,
	}, nil
}

func schemaDocument(schema core.ToolSchema) map[string]any {
	doc := map[string]any{"type": schema.Type}
	if schema.Properties != nil {
		doc["properties"] = schema.Properties
	}
	if len(schema.Required) > 0 {
		doc["required"] = schema.Required
	}
	return doc
}

// compileSchema proves the advertised argument schema is well formed JSON
// Schema before the tool is offered to the model.
func compileSchema(schema core.ToolSchema) error {
	if _, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(schemaDocument(schema))); err != nil {
		return fmt.Errorf("compile: %w", err)
	}
	return nil
}

// validateArguments checks a structured argument object against the tool's
// advertised schema. A mismatch fails the invocation before anything is
// forwarded to the gateway.
func validateArguments(schema core.ToolSchema, args map[string]any) error {
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(schemaDocument(schema)))
	if err != nil {
		return fmt.Errorf("compile: %w", err)
	}

	if args == nil {
		args = map[string]any{}
	}
	result, err := compiled.Validate(gojsonschema.NewGoLoader(args))
	if err != nil {
		return fmt.Errorf("validate: %w", err)
	}
	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			details = append(details, e.String())
		}
		return fmt.Errorf("arguments rejected: %s", strings.Join(details, "; "))
	}
	return nil
}

// coreDescriptor widens the cached form back into the planning contract.
func (d toolDescriptor) coreDescriptor() core.ToolDescriptor {
	return core.ToolDescriptor{
		Name:        d.Name,
		Description: d.Description,
		Variant:     core.ToolVariantGateway,
		Schema:      d.Schema,
	}
}

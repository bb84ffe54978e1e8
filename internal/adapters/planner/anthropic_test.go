package planner

import (
	"encoding/json"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wayfinderhq/wayfinder/internal/core"
)

func TestNewAnthropicClientValidation(t *testing.T) {
	_, err := NewAnthropicClient(AnthropicClientConfig{Model: "claude-sonnet-4-5"})
	require.Error(t, err)

	_, err = NewAnthropicClient(AnthropicClientConfig{APIKey: "key"})
	require.Error(t, err)

	c, err := NewAnthropicClient(AnthropicClientConfig{APIKey: "key", Model: "claude-sonnet-4-5"})
	require.NoError(t, err)
	assert.Equal(t, int64(4096), c.maxTokens)
}

func TestEncodeMessages(t *testing.T) {
	msgs := encodeMessages([]Message{
		{Role: RoleUser, Content: "plan Lisbon"},
		{
			Role:    RoleAssistant,
			Content: "STATUS: saving",
			ToolUses: []ToolUse{{
				ID:        "toolu_1",
				Name:      "save_itinerary",
				Arguments: map[string]any{"itinerary": map[string]any{}},
			}},
		},
		{Role: RoleTool, ToolUseID: "toolu_1", Content: "saved:abc", IsError: false},
		{Role: RoleAssistant, Content: "done"},
	})
	require.Len(t, msgs, 4)

	assert.Equal(t, anthropic.MessageParamRoleUser, msgs[0].Role)
	require.Len(t, msgs[0].Content, 1)
	require.NotNil(t, msgs[0].Content[0].OfText)
	assert.Equal(t, "plan Lisbon", msgs[0].Content[0].OfText.Text)

	assert.Equal(t, anthropic.MessageParamRoleAssistant, msgs[1].Role)
	require.Len(t, msgs[1].Content, 2)
	require.NotNil(t, msgs[1].Content[0].OfText)
	require.NotNil(t, msgs[1].Content[1].OfToolUse)
	assert.Equal(t, "toolu_1", msgs[1].Content[1].OfToolUse.ID)
	assert.Equal(t, "save_itinerary", msgs[1].Content[1].OfToolUse.Name)

	assert.Equal(t, anthropic.MessageParamRoleUser, msgs[2].Role)
	require.Len(t, msgs[2].Content, 1)
	require.NotNil(t, msgs[2].Content[0].OfToolResult)
	assert.Equal(t, "toolu_1", msgs[2].Content[0].OfToolResult.ToolUseID)

	assert.Equal(t, anthropic.MessageParamRoleAssistant, msgs[3].Role)
	require.Len(t, msgs[3].Content, 1)
	require.NotNil(t, msgs[3].Content[0].OfText)
}

func TestEncodeTools(t *testing.T) {
	tools := encodeTools([]core.ToolDescriptor{{
		Name:        "otmPlacesRadius",
		Description: "Find places near a point",
		Variant:     core.ToolVariantGateway,
		Schema: core.ToolSchema{
			Type: "object",
			Properties: map[string]any{
				"lat": map[string]any{"type": "number"},
			},
			Required: []string{"lat"},
		},
	}})
	require.Len(t, tools, 1)
	require.NotNil(t, tools[0].OfTool)
	assert.Equal(t, "otmPlacesRadius", tools[0].OfTool.Name)
	assert.Equal(t, "Find places near a point", tools[0].OfTool.Description.Value)
	assert.Equal(t, []string{"lat"}, tools[0].OfTool.InputSchema.Required)
}

func TestDecodeResponse(t *testing.T) {
	raw := `{
		"id": "msg_1",
		"type": "message",
		"role": "assistant",
		"model": "claude-sonnet-4-5",
		"content": [
			{"type": "text", "text": "STATUS: saving"},
			{"type": "tool_use", "id": "toolu_1", "name": "save_itinerary", "input": {"itinerary": {"destination": "Lisbon"}}}
		],
		"stop_reason": "tool_use",
		"usage": {"input_tokens": 42, "output_tokens": 17}
	}`

	var msg anthropic.Message
	require.NoError(t, json.Unmarshal([]byte(raw), &msg))

	resp, err := decodeResponse(&msg)
	require.NoError(t, err)
	assert.Equal(t, "STATUS: saving", resp.Text)
	assert.Equal(t, int64(42), resp.Usage.InputTokens)
	assert.Equal(t, int64(17), resp.Usage.OutputTokens)

	require.Len(t, resp.ToolUses, 1)
	assert.Equal(t, "toolu_1", resp.ToolUses[0].ID)
	assert.Equal(t, "save_itinerary", resp.ToolUses[0].Name)
	itinerary, ok := resp.ToolUses[0].Arguments["itinerary"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Lisbon", itinerary["destination"])
}

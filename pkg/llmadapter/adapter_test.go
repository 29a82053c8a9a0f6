package llmadapter

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClient_Complete_CredentialResolutionFailsBeforeAnyNetworkCall(t *testing.T) {
	wantErr := errors.New("no such credential")
	client := NewClient(func(credentialID string) (string, error) {
		assert.Equal(t, "legal-provider", credentialID)
		return "", wantErr
	})

	_, err := client.Complete(context.Background(), "legal-provider", CompletionRequest{Model: "claude-sonnet-4-5"})
	assert.ErrorIs(t, err, wantErr)
}

func TestToAnthropicMessages_PreservesOrderAndRole(t *testing.T) {
	history := []Turn{
		{Text: "hi, I need help"},
		{FromAssistant: true, Text: "sure, what's going on?"},
		{Text: "my order never arrived"},
	}
	msgs := toAnthropicMessages(history)
	assert.Len(t, msgs, 3)
	assert.Equal(t, msgs[0].Role, msgs[2].Role, "two customer turns share the same role")
	assert.NotEqual(t, msgs[0].Role, msgs[1].Role, "the assistant turn uses a distinct role from the customer turns")
}

func TestToAnthropicTools_MapsNameAndSchema(t *testing.T) {
	specs := []ToolSpec{
		{Name: "schedule_meeting", Description: "book a slot", InputSchema: map[string]any{"start": map[string]any{"type": "string"}}},
	}
	tools := toAnthropicTools(specs)
	require := assert.New(t)
	require.Len(tools, 1)
	require.NotNil(tools[0].OfTool)
	require.Equal("schedule_meeting", tools[0].OfTool.Name)
}

package presence

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTruncateIfNeeded_PassesThroughSmallPayloads(t *testing.T) {
	payload := `{"type":"typing","conversation_id":"u1:u2"}`
	assert.Equal(t, payload, truncateIfNeeded(payload))
}

func TestTruncateIfNeeded_ReplacesOversizedPayloads(t *testing.T) {
	payload := `{"type":"message.created","text":"` + strings.Repeat("a", 8000) + `"}`
	got := truncateIfNeeded(payload)
	assert.Less(t, len(got), len(payload))
	assert.Contains(t, got, `"truncated":true`)
}

func TestInjectEventID_AddsFieldWithoutDisturbingExisting(t *testing.T) {
	payloadJSON := []byte(`{"type":"message.created","message_id":"m1"}`)
	got, err := injectEventID(payloadJSON, 42)
	require.NoError(t, err)
	assert.Contains(t, got, `"db_event_id":42`)
	assert.Contains(t, got, `"message_id":"m1"`)
}

func TestInjectEventID_RejectsMalformedPayload(t *testing.T) {
	_, err := injectEventID([]byte("not json"), 1)
	assert.Error(t, err)
}

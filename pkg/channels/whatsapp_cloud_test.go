package channels

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWhatsAppCloud_SendPostsExpectedPayload(t *testing.T) {
	var captured waCloudTextMessage
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"messages":[{"id":"wamid.123"}]}`))
	}))
	defer server.Close()

	adapter := NewWhatsAppCloud("15550001111", "test-token")
	adapter.BaseURL = server.URL

	id, err := adapter.Send(context.Background(), "5511999998888", "hello there")
	require.NoError(t, err)
	assert.Equal(t, "wamid.123", id)
	assert.Equal(t, "5511999998888", captured.To)
	assert.Equal(t, "hello there", captured.Text.Body)
}

func TestWhatsAppCloud_SendSurfacesNonSuccessStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid recipient"}`))
	}))
	defer server.Close()

	adapter := NewWhatsAppCloud("15550001111", "test-token")
	adapter.BaseURL = server.URL

	_, err := adapter.Send(context.Background(), "bad-number", "hello")
	assert.Error(t, err)
}

func TestParseWhatsAppCloudWebhook_ExtractsMessagesAndContactNames(t *testing.T) {
	body := []byte(`{
		"entry": [{
			"changes": [{
				"value": {
					"contacts": [{"profile": {"name": "Ada"}, "wa_id": "5511999998888"}],
					"messages": [{"from": "5511999998888", "id": "wamid.abc", "text": {"body": "oi"}}]
				}
			}]
		}]
	}`)

	inbound, err := ParseWhatsAppCloudWebhook(body)
	require.NoError(t, err)
	require.Len(t, inbound, 1)
	assert.Equal(t, "whatsapp", inbound[0].Channel)
	assert.Equal(t, "5511999998888", inbound[0].ChannelContactID)
	assert.Equal(t, "wamid.abc", inbound[0].ChannelMessageID)
	assert.Equal(t, "Ada", inbound[0].DisplayName)
	assert.Equal(t, "oi", inbound[0].Text)
}

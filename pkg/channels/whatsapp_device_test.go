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

func TestWhatsAppDevice_StartSessionTracksAwaitingScan(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/sessions", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"qr_code":"base64png"}`))
	}))
	defer server.Close()

	device := NewWhatsAppDevice(server.URL)

	session, err := device.StartSession(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SessionAwaitingScan, session.Status)
	assert.Equal(t, "base64png", session.QRCode)
	assert.NotEmpty(t, session.ID)

	got, ok := device.Session(session.ID)
	require.True(t, ok)
	assert.Equal(t, session, got)
}

func TestWhatsAppDevice_MarkConnectedClearsQRCode(t *testing.T) {
	device := NewWhatsAppDevice("http://unused")
	device.sessions["s1"] = &Session{ID: "s1", Status: SessionAwaitingScan, QRCode: "base64png"}

	device.MarkConnected("s1")

	got, ok := device.Session("s1")
	require.True(t, ok)
	assert.Equal(t, SessionConnected, got.Status)
	assert.Empty(t, got.QRCode)
}

func TestWhatsAppDevice_MarkConnectedIgnoresUnknownSession(t *testing.T) {
	device := NewWhatsAppDevice("http://unused")
	device.MarkConnected("no-such-session")

	_, ok := device.Session("no-such-session")
	assert.False(t, ok)
}

func TestWhatsAppDevice_SendPostsRecipientAndText(t *testing.T) {
	var captured deviceSendRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/send", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"message_id":"dev-123"}`))
	}))
	defer server.Close()

	device := NewWhatsAppDevice(server.URL)

	id, err := device.Send(context.Background(), "5511999998888", "hello there")
	require.NoError(t, err)
	assert.Equal(t, "dev-123", id)
	assert.Equal(t, "5511999998888", captured.Recipient)
	assert.Equal(t, "hello there", captured.Text)
}

func TestWhatsAppDevice_SendSurfacesNonSuccessStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	device := NewWhatsAppDevice(server.URL)

	_, err := device.Send(context.Background(), "x", "y")
	assert.Error(t, err)
}

func TestWhatsAppDevice_Name(t *testing.T) {
	assert.Equal(t, "whatsapp_device", NewWhatsAppDevice("http://unused").Name())
}

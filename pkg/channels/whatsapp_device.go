package channels

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/google/uuid"
)

// SessionStatus is the lifecycle of a device-paired WhatsApp session, the
// QR-login variant distinct from the Cloud API's system-user token.
type SessionStatus string

const (
	SessionAwaitingScan SessionStatus = "awaiting_scan"
	SessionConnected    SessionStatus = "connected"
	SessionExpired      SessionStatus = "expired"
)

// Session is one device pairing, tracked in memory: the bridge process
// owning the paired device is the durable side of this state, so the core
// only needs a cache of what it last reported (mirrors the scheduling
// Machine's ephemeral-attempt design for a similarly provider-owned state).
type Session struct {
	ID        string
	Status    SessionStatus
	QRCode    string // base64 PNG, present only while AwaitingScan
}

// WhatsAppDevice sends through a self-hosted WhatsApp bridge process (e.g. a
// whatsmeow-backed sidecar) addressed by baseURL, exposing the session
// start/QR retrieval operations spec §6 calls for in addition to send.
type WhatsAppDevice struct {
	BaseURL string
	client  *http.Client

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewWhatsAppDevice builds a WhatsAppDevice adapter against a bridge sidecar.
func NewWhatsAppDevice(baseURL string) *WhatsAppDevice {
	return &WhatsAppDevice{BaseURL: baseURL, client: defaultHTTPClient(), sessions: map[string]*Session{}}
}

func (w *WhatsAppDevice) Name() string { return "whatsapp_device" }

// StartSession requests a new pairing from the bridge and returns its id.
func (w *WhatsAppDevice) StartSession(ctx context.Context) (*Session, error) {
	type startResponse struct {
		QRCode string `json:"qr_code"`
	}
	var resp startResponse
	if err := postJSON(ctx, w.client, w.BaseURL+"/sessions", nil, struct{}{}, &resp); err != nil {
		return nil, fmt.Errorf("start whatsapp device session: %w", err)
	}

	session := &Session{ID: uuid.New().String(), Status: SessionAwaitingScan, QRCode: resp.QRCode}
	w.mu.Lock()
	w.sessions[session.ID] = session
	w.mu.Unlock()
	return session, nil
}

// Session returns the last-known status for a session id.
func (w *WhatsAppDevice) Session(id string) (*Session, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	s, ok := w.sessions[id]
	return s, ok
}

// MarkConnected transitions a session to connected, called by the bridge's
// own pairing-complete webhook.
func (w *WhatsAppDevice) MarkConnected(id string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if s, ok := w.sessions[id]; ok {
		s.Status = SessionConnected
		s.QRCode = ""
	}
}

type deviceSendRequest struct {
	Recipient string `json:"recipient"`
	Text      string `json:"text"`
}

type deviceSendResponse struct {
	MessageID string `json:"message_id"`
}

// Send posts a text message through the bridge sidecar.
func (w *WhatsAppDevice) Send(ctx context.Context, recipient, text string) (string, error) {
	var resp deviceSendResponse
	req := deviceSendRequest{Recipient: recipient, Text: text}
	if err := postJSON(ctx, w.client, w.BaseURL+"/send", nil, req, &resp); err != nil {
		return "", fmt.Errorf("whatsapp device send: %w", err)
	}
	return resp.MessageID, nil
}

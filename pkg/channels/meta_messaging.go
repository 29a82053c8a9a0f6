package channels

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// metaMessenger is the shared send path for Instagram and Facebook
// Messenger: both ride Meta's Send API (POST /me/messages) with a
// page-scoped access token, differing only in the "channel" label attached
// to resulting messages.
type metaMessenger struct {
	channel     string
	accessToken string
	baseURL     string
	client      *http.Client
}

func newMetaMessenger(channel, accessToken string) *metaMessenger {
	return &metaMessenger{
		channel:     channel,
		accessToken: accessToken,
		baseURL:     "https://graph.facebook.com/v20.0",
		client:      defaultHTTPClient(),
	}
}

func (m *metaMessenger) Name() string { return m.channel }

type metaSendRequest struct {
	Recipient struct {
		ID string `json:"id"`
	} `json:"recipient"`
	Message struct {
		Text string `json:"text"`
	} `json:"message"`
}

type metaSendResponse struct {
	MessageID string `json:"message_id"`
}

func (m *metaMessenger) send(ctx context.Context, recipient, text string) (string, error) {
	var req metaSendRequest
	req.Recipient.ID = recipient
	req.Message.Text = text

	url := fmt.Sprintf("%s/me/messages?access_token=%s", m.baseURL, m.accessToken)
	var resp metaSendResponse
	if err := postJSON(ctx, m.client, url, nil, req, &resp); err != nil {
		return "", fmt.Errorf("%s send: %w", m.channel, err)
	}
	return resp.MessageID, nil
}

// metaWebhookEnvelope mirrors Meta's shared Messenger-platform webhook
// shape, used by both Instagram and Messenger.
type metaWebhookEnvelope struct {
	Entry []struct {
		Messaging []struct {
			Sender struct {
				ID string `json:"id"`
			} `json:"sender"`
			Message struct {
				Mid  string `json:"mid"`
				Text string `json:"text"`
			} `json:"message"`
		} `json:"messaging"`
	} `json:"entry"`
}

func parseMetaWebhook(channel string, body []byte) ([]Inbound, error) {
	var envelope metaWebhookEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("parse %s webhook: %w", channel, err)
	}

	var out []Inbound
	for _, entry := range envelope.Entry {
		for _, msg := range entry.Messaging {
			if msg.Message.Mid == "" {
				continue // delivery/read receipts carry no message.mid
			}
			out = append(out, Inbound{
				Channel:          channel,
				ChannelContactID: msg.Sender.ID,
				ChannelMessageID: msg.Message.Mid,
				Text:             msg.Message.Text,
			})
		}
	}
	return out, nil
}

// Instagram sends through Meta's Messenger Platform for Instagram DMs.
type Instagram struct{ *metaMessenger }

// NewInstagram builds an Instagram adapter.
func NewInstagram(pageAccessToken string) *Instagram {
	return &Instagram{newMetaMessenger("instagram", pageAccessToken)}
}

func (i *Instagram) Send(ctx context.Context, recipient, text string) (string, error) {
	return i.send(ctx, recipient, text)
}

// ParseInstagramWebhook normalizes an Instagram DM webhook payload.
func ParseInstagramWebhook(body []byte) ([]Inbound, error) { return parseMetaWebhook("instagram", body) }

// Messenger sends through Meta's Messenger Platform for Facebook Pages.
type Messenger struct{ *metaMessenger }

// NewMessenger builds a Messenger adapter.
func NewMessenger(pageAccessToken string) *Messenger {
	return &Messenger{newMetaMessenger("messenger", pageAccessToken)}
}

func (m *Messenger) Send(ctx context.Context, recipient, text string) (string, error) {
	return m.send(ctx, recipient, text)
}

// ParseMessengerWebhook normalizes a Facebook Messenger webhook payload.
func ParseMessengerWebhook(body []byte) ([]Inbound, error) { return parseMetaWebhook("messenger", body) }

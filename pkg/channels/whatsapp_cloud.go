package channels

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// WhatsAppCloud sends through Meta's WhatsApp Cloud API using a long-lived
// system-user access token (the vendor-hosted variant; no QR/device pairing).
type WhatsAppCloud struct {
	PhoneNumberID string
	AccessToken   string
	BaseURL       string // defaults to the Graph API root if empty
	client        *http.Client
}

// NewWhatsAppCloud builds a WhatsAppCloud adapter.
func NewWhatsAppCloud(phoneNumberID, accessToken string) *WhatsAppCloud {
	return &WhatsAppCloud{
		PhoneNumberID: phoneNumberID,
		AccessToken:   accessToken,
		BaseURL:       "https://graph.facebook.com/v20.0",
		client:        defaultHTTPClient(),
	}
}

func (w *WhatsAppCloud) Name() string { return "whatsapp" }

type waCloudTextMessage struct {
	MessagingProduct string `json:"messaging_product"`
	To               string `json:"to"`
	Type             string `json:"type"`
	Text             struct {
		Body string `json:"body"`
	} `json:"text"`
}

type waCloudResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

// Send posts a text message to recipient's WhatsApp number.
func (w *WhatsAppCloud) Send(ctx context.Context, recipient, text string) (string, error) {
	payload := waCloudTextMessage{MessagingProduct: "whatsapp", To: recipient, Type: "text"}
	payload.Text.Body = text

	url := fmt.Sprintf("%s/%s/messages", w.BaseURL, w.PhoneNumberID)
	headers := map[string]string{"Authorization": "Bearer " + w.AccessToken}

	var resp waCloudResponse
	if err := postJSON(ctx, w.client, url, headers, payload, &resp); err != nil {
		return "", fmt.Errorf("whatsapp cloud send: %w", err)
	}
	if len(resp.Messages) == 0 {
		return "", fmt.Errorf("whatsapp cloud send: empty response")
	}
	return resp.Messages[0].ID, nil
}

// waCloudWebhookEntry mirrors the subset of Meta's webhook envelope this
// deployment needs: sender id, message id, and text body.
type waCloudWebhookEntry struct {
	Entry []struct {
		Changes []struct {
			Value struct {
				Contacts []struct {
					Profile struct {
						Name string `json:"name"`
					} `json:"profile"`
					WaID string `json:"wa_id"`
				} `json:"contacts"`
				Messages []struct {
					From string `json:"from"`
					ID   string `json:"id"`
					Text struct {
						Body string `json:"body"`
					} `json:"text"`
				} `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

// ParseWhatsAppCloudWebhook normalizes Meta's webhook POST body into zero or
// more Inbound records (a single delivery can batch several messages).
func ParseWhatsAppCloudWebhook(body []byte) ([]Inbound, error) {
	var envelope waCloudWebhookEntry
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("parse whatsapp webhook: %w", err)
	}

	var out []Inbound
	for _, entry := range envelope.Entry {
		for _, change := range entry.Changes {
			names := map[string]string{}
			for _, c := range change.Value.Contacts {
				names[c.WaID] = c.Profile.Name
			}
			for _, m := range change.Value.Messages {
				out = append(out, Inbound{
					Channel:          "whatsapp",
					ChannelContactID: m.From,
					ChannelMessageID: m.ID,
					DisplayName:      names[m.From],
					Phone:            m.From,
					Text:             m.Text.Body,
				})
			}
		}
	}
	return out, nil
}

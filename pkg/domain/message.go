// Package domain holds the types shared by every component: messages,
// conversations, agents, and the handover/calendar records they produce.
// None of these types touch storage or transport directly.
package domain

import (
	"sort"
	"strings"
	"time"
)

// MessageKind is the payload discriminator for a Message (I4).
type MessageKind string

const (
	KindText  MessageKind = "text"
	KindImage MessageKind = "image"
	KindAudio MessageKind = "audio"
	KindFile  MessageKind = "file"
)

// DeliveryStatus is monotone per I3: pending < sent < delivered < read.
type DeliveryStatus int

const (
	StatusPending DeliveryStatus = iota
	StatusSent
	StatusDelivered
	StatusRead
)

func (s DeliveryStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusSent:
		return "sent"
	case StatusDelivered:
		return "delivered"
	case StatusRead:
		return "read"
	default:
		return "unknown"
	}
}

// ParseDeliveryStatus maps the wire string back to a DeliveryStatus.
func ParseDeliveryStatus(s string) (DeliveryStatus, bool) {
	switch s {
	case "pending":
		return StatusPending, true
	case "sent":
		return StatusSent, true
	case "delivered":
		return StatusDelivered, true
	case "read":
		return StatusRead, true
	default:
		return StatusPending, false
	}
}

// Attachment is the object-store reference carried by non-text messages (I4, I6).
type Attachment struct {
	Bucket           string
	ObjectKey        string
	OriginalFilename string
	MimeType         string
	SizeBytes        int64
}

// Message is the canonical, server-assigned record of one turn in a conversation.
type Message struct {
	ID               string
	Author           string // user id (may be a synthetic agent user id)
	ConversationID   string
	Timestamp        time.Time
	Kind             MessageKind
	Text             string
	Attachment       *Attachment
	Status           DeliveryStatus
	AgentKey         string // optional: see I5
	ContactID        string // optional: conversation this belongs to when authored from an agent panel
	ClientTempID     string // optional: idempotency token for client-originated sends
	Channel          string // optional: originating external channel (whatsapp, instagram, messenger, web)
	ChannelMessageID string // optional: provider-native id, for re-delivery dedup
}

// Valid reports whether the message satisfies I4: attachments for non-text
// kinds, non-empty text for text messages.
func (m Message) Valid() bool {
	if m.Kind == KindText {
		return strings.TrimSpace(m.Text) != ""
	}
	return m.Attachment != nil
}

// ConversationID canonicalizes a human-to-human conversation identity by
// sorting the two participant ids (spec §3: "canonicalized by id ordering").
// Conversations have no stored schema beyond this derived identity.
func ConversationID(userA, userB string) string {
	ids := []string{userA, userB}
	sort.Strings(ids)
	return ids[0] + ":" + ids[1]
}

// User is a stable, authenticated identity.
type User struct {
	ID               string
	DisplayName      string
	Email            string // unique, lower-cased
	PasswordVerifier string
	CreatedAt        time.Time
}

// ExternalContact is a synthetic user materialized on first inbound message
// from a non-web channel, keyed by channel + channel-native id (spec §3).
type ExternalContact struct {
	ID               string // synthetic user id, used as a participant in ConversationID
	Channel          string
	ChannelContactID string
	DisplayName      string
	Phone            string
	Email            string
	CreatedAt        time.Time
}

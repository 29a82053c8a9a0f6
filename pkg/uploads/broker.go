// Package uploads implements the Upload Broker (spec §4.3): issuing
// short-lived write credentials, validating confirmation, and materializing
// the resulting attachment as a first-class Message. The object store
// itself is out of scope (spec §1) — ObjectStore is the narrow contract
// this package needs from it.
package uploads

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/omnichat/relay/pkg/apperrors"
	"github.com/omnichat/relay/pkg/domain"
	"github.com/omnichat/relay/pkg/store"
)

// ObjectStore is the external collaborator that issues presigned
// credentials for the bucket this deployment uses. Implementations live
// outside this package; the broker never proxies bytes (spec §4.3).
type ObjectStore struct {
	Bucket         string
	PresignWrite   func(ctx context.Context, bucket, key, mimeType string, ttl time.Duration) (string, error)
	PresignRead    func(ctx context.Context, bucket, key string, ttl time.Duration) (string, error)
}

// Transcriber produces best-effort text from an audio attachment. Failure
// is silent per spec §4.3; callers must not surface transcription errors
// to the customer.
type Transcriber interface {
	Transcribe(ctx context.Context, bucket, objectKey, mimeType string) (string, error)
}

// Policy is the Broker's size/type allowlist, loaded from config.Defaults.
type Policy struct {
	MaxSizeBytes     int64
	AllowedMimeTypes []string
	GrantTTL         time.Duration
}

func (p Policy) allows(mimeType string) bool {
	for _, m := range p.AllowedMimeTypes {
		if m == mimeType {
			return true
		}
	}
	return false
}

// Broker implements the grant/confirm protocol.
type Broker struct {
	policy      Policy
	store       ObjectStore
	uploads     *store.UploadRepo
	messages    *store.MessageRepo
	transcriber Transcriber
}

// NewBroker builds a Broker enforcing policy against objectStore, uploads,
// and messages, with an optional transcriber (nil disables transcription).
func NewBroker(policy Policy, objectStore ObjectStore, uploads *store.UploadRepo, messages *store.MessageRepo, transcriber Transcriber) *Broker {
	return &Broker{policy: policy, store: objectStore, uploads: uploads, messages: messages, transcriber: transcriber}
}

// Grant is the result of step 1: a write credential and the object key the
// client must PUT bytes to.
type Grant struct {
	ObjectKey string
	WriteURL  string
	ExpiresAt time.Time
}

// Grant validates the declared upload and issues a short-lived write
// credential (spec §4.3 step 1).
func (b *Broker) Grant(ctx context.Context, issuerUserID, filename, mimeType string, declaredSize int64) (Grant, error) {
	if !b.policy.allows(mimeType) {
		return Grant{}, fmt.Errorf("%w: mime type %q not allowed", apperrors.Invalid, mimeType)
	}
	if declaredSize > b.policy.MaxSizeBytes {
		return Grant{}, fmt.Errorf("%w: declared size %d exceeds maximum %d", apperrors.Invalid, declaredSize, b.policy.MaxSizeBytes)
	}

	now := time.Now()
	ttl := b.policy.GrantTTL
	if ttl > 10*time.Minute {
		ttl = 10 * time.Minute // spec §3: PendingUpload.expires-at ≤ 10 minutes
	}
	expiresAt := now.Add(ttl)

	objectKey := newObjectKey(now, filename)

	writeURL, err := b.store.PresignWrite(ctx, b.store.Bucket, objectKey, mimeType, ttl)
	if err != nil {
		return Grant{}, fmt.Errorf("presign write url: %w", err)
	}

	if err := b.uploads.Grant(ctx, store.PendingUpload{
		ObjectKey: objectKey, MimeType: mimeType, MaxSizeBytes: b.policy.MaxSizeBytes,
		IssuerUserID: issuerUserID, IssuedAt: now, ExpiresAt: expiresAt,
	}); err != nil {
		return Grant{}, fmt.Errorf("record upload grant: %w", err)
	}

	return Grant{ObjectKey: objectKey, WriteURL: writeURL, ExpiresAt: expiresAt}, nil
}

// Confirmation is the result of step 3: the materialized message and a
// short-lived read credential for immediate display.
type Confirmation struct {
	Message domain.Message
	ReadURL string
}

// Confirm is the commit point of the protocol (spec §4.3 step 3). A second
// confirm of the same key returns apperrors.Conflict and never produces a
// second Message — UploadRepo.Confirm's CAS update is what makes this safe
// under concurrent/duplicate calls.
func (b *Broker) Confirm(ctx context.Context, objectKey, author, conversationID, agentKey string, originalFilename string, sizeBytes int64) (Confirmation, error) {
	grant, err := b.uploads.Get(ctx, objectKey)
	if err != nil {
		return Confirmation{}, err
	}

	now := time.Now()
	if err := b.uploads.Confirm(ctx, objectKey, now); err != nil {
		return Confirmation{}, err
	}

	kind := kindFromMime(grant.MimeType)

	msg := domain.Message{
		ID:             uuid.New().String(),
		Author:         author,
		ConversationID: conversationID,
		Timestamp:      now,
		Kind:           kind,
		Attachment: &domain.Attachment{
			Bucket:           b.store.Bucket,
			ObjectKey:        objectKey,
			OriginalFilename: originalFilename,
			MimeType:         grant.MimeType,
			SizeBytes:        sizeBytes,
		},
		Status:   domain.StatusPending,
		AgentKey: agentKey,
	}

	stored, err := b.messages.Append(ctx, msg)
	if err != nil {
		return Confirmation{}, fmt.Errorf("append attachment message: %w", err)
	}

	readURL, err := b.store.PresignRead(ctx, b.store.Bucket, objectKey, 10*time.Minute)
	if err != nil {
		return Confirmation{}, fmt.Errorf("presign read url: %w", err)
	}

	if kind == domain.KindAudio && b.transcriber != nil {
		go b.transcribeAsync(context.Background(), stored, grant.MimeType)
	}

	return Confirmation{Message: stored, ReadURL: readURL}, nil
}

// transcribeAsync runs best-effort transcription and appends the result as
// a separate text message. Any failure is logged and silently dropped
// (spec §4.3: "failure is silent").
func (b *Broker) transcribeAsync(ctx context.Context, source domain.Message, mimeType string) {
	text, err := b.transcriber.Transcribe(ctx, source.Attachment.Bucket, source.Attachment.ObjectKey, mimeType)
	if err != nil {
		slog.Warn("transcription failed", "message_id", source.ID, "error", err)
		return
	}
	if strings.TrimSpace(text) == "" {
		return
	}

	_, err = b.messages.Append(ctx, domain.Message{
		ID:             uuid.New().String(),
		Author:         source.Author,
		ConversationID: source.ConversationID,
		Timestamp:      time.Now(),
		Kind:           domain.KindText,
		Text:           "[transcription] " + text,
		Status:         domain.StatusPending,
		AgentKey:       source.AgentKey,
	})
	if err != nil {
		slog.Warn("failed to append transcription message", "message_id", source.ID, "error", err)
	}
}

func kindFromMime(mimeType string) domain.MessageKind {
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return domain.KindImage
	case strings.HasPrefix(mimeType, "audio/"):
		return domain.KindAudio
	default:
		return domain.KindFile
	}
}

func newObjectKey(now time.Time, filename string) string {
	var buf [8]byte
	_, _ = rand.Read(buf[:])
	random := hex.EncodeToString(buf[:])
	ext := strings.TrimPrefix(path.Ext(filename), ".")
	if ext == "" {
		ext = "bin"
	}
	return fmt.Sprintf("messages/%04d/%02d/%02d/%s.%s", now.Year(), now.Month(), now.Day(), random, ext)
}

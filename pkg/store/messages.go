package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/omnichat/relay/pkg/apperrors"
	"github.com/omnichat/relay/pkg/domain"
)

// MessageRepo persists domain.Message rows and the delivery-status outbox
// used for catch-up on reconnect (spec §4.1, SPEC_FULL M1).
type MessageRepo struct {
	db *sql.DB
}

// NewMessageRepo builds a MessageRepo over the shared pool.
func NewMessageRepo(db *sql.DB) *MessageRepo { return &MessageRepo{db: db} }

// Append inserts a new message. If clientTempID is set and a row already
// exists for (author, client_temp_id), the existing message is returned
// instead, making resend-on-timeout idempotent per spec §4.1 edge cases.
func (r *MessageRepo) Append(ctx context.Context, m domain.Message) (domain.Message, error) {
	if !m.Valid() {
		return domain.Message{}, fmt.Errorf("%w: message violates I4 (non-text kinds require an attachment, text requires non-empty text)", apperrors.Invalid)
	}

	if m.ClientTempID != "" {
		if existing, err := r.byClientTempID(ctx, m.Author, m.ClientTempID); err == nil {
			return existing, nil
		} else if !apperrors.Is(err, apperrors.NotFound) {
			return domain.Message{}, err
		}
	}
	if m.Channel != "" && m.ChannelMessageID != "" {
		if existing, err := r.byChannelMessageID(ctx, m.Channel, m.ChannelMessageID); err == nil {
			return existing, nil
		} else if !apperrors.Is(err, apperrors.NotFound) {
			return domain.Message{}, err
		}
	}

	var bucket, key, filename, mime sql.NullString
	var size sql.NullInt64
	if m.Attachment != nil {
		bucket = sql.NullString{String: m.Attachment.Bucket, Valid: true}
		key = sql.NullString{String: m.Attachment.ObjectKey, Valid: true}
		filename = sql.NullString{String: m.Attachment.OriginalFilename, Valid: true}
		mime = sql.NullString{String: m.Attachment.MimeType, Valid: true}
		size = sql.NullInt64{Int64: m.Attachment.SizeBytes, Valid: true}
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO messages (
			id, author, conversation_id, ts, kind, body,
			attachment_bucket, attachment_key, attachment_filename, attachment_mime, attachment_size,
			status, agent_key, contact_id, client_temp_id, channel, channel_message_id
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)`,
		m.ID, m.Author, m.ConversationID, m.Timestamp, string(m.Kind), m.Text,
		bucket, key, filename, mime, size,
		int(m.Status), m.AgentKey, m.ContactID, m.ClientTempID, m.Channel, m.ChannelMessageID)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Message{}, fmt.Errorf("%w: duplicate message", apperrors.Conflict)
		}
		return domain.Message{}, fmt.Errorf("insert message: %w", err)
	}
	return m, nil
}

func (r *MessageRepo) byClientTempID(ctx context.Context, author, clientTempID string) (domain.Message, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+messageColumns+`
		FROM messages WHERE author = $1 AND client_temp_id = $2`, author, clientTempID)
	return scanMessage(row)
}

// byChannelMessageID backs re-delivery dedup for channel webhooks: the same
// provider-native id arriving twice (webhook retry) returns the message
// already recorded for it instead of erroring.
func (r *MessageRepo) byChannelMessageID(ctx context.Context, channel, channelMessageID string) (domain.Message, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+messageColumns+`
		FROM messages WHERE channel = $1 AND channel_message_id = $2`, channel, channelMessageID)
	return scanMessage(row)
}

// History returns the last limit messages of a conversation in ascending
// order, the shape fed to an agent's context window (spec §4.8).
func (r *MessageRepo) History(ctx context.Context, conversationID string, limit int) ([]domain.Message, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT * FROM (
			SELECT `+messageColumns+`
			FROM messages WHERE conversation_id = $1
			ORDER BY ts DESC, id DESC LIMIT $2
		) recent ORDER BY ts ASC, id ASC`, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var out []domain.Message
	for rows.Next() {
		m, err := scanMessageRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Recent returns the most recent limit messages across all conversations,
// newest first — the global admin/debug feed (GET /messages).
func (r *MessageRepo) Recent(ctx context.Context, limit int) ([]domain.Message, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+messageColumns+`
		FROM messages ORDER BY ts DESC, id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent messages: %w", err)
	}
	defer rows.Close()

	var out []domain.Message
	for rows.Next() {
		m, err := scanMessageRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// HistoryBefore paginates a conversation backwards from before (exclusive),
// returning up to limit messages in ascending order — the cursor the
// contact history endpoint walks when the client scrolls up for older
// messages (spec §4.1, GET /contacts/{id}/messages?before=).
func (r *MessageRepo) HistoryBefore(ctx context.Context, conversationID string, before time.Time, limit int) ([]domain.Message, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT * FROM (
			SELECT `+messageColumns+`
			FROM messages WHERE conversation_id = $1 AND ts < $2
			ORDER BY ts DESC, id DESC LIMIT $3
		) recent ORDER BY ts ASC, id ASC`, conversationID, before, limit)
	if err != nil {
		return nil, fmt.Errorf("query history before cursor: %w", err)
	}
	defer rows.Close()

	var out []domain.Message
	for rows.Next() {
		m, err := scanMessageRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// UpdateStatus advances a message's delivery status and records a
// delivery_events row, enforcing I3 monotonicity: a lower status never
// overwrites a higher one.
func (r *MessageRepo) UpdateStatus(ctx context.Context, messageID string, status domain.DeliveryStatus) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE messages SET status = $1 WHERE id = $2 AND status < $1`, int(status), messageID)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		// Either already at or past this status (I3), or the message doesn't
		// exist. Either way there is nothing to record.
		return tx.Commit()
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO delivery_events (message_id, status) VALUES ($1, $2)`,
		messageID, int(status)); err != nil {
		return fmt.Errorf("insert delivery event: %w", err)
	}
	return tx.Commit()
}

// PeerSummary is one row of a user's contact list: the most recent message
// exchanged with a peer and how many of the peer's messages are unread.
type PeerSummary struct {
	PeerID      string
	LastMessage domain.Message
	UnreadCount int
}

// RecentPerPeer backs the contact list view (spec §4.1 recent_per_peer):
// for every conversation userID participates in, the newest message and the
// count of the peer's messages not yet at StatusRead.
func (r *MessageRepo) RecentPerPeer(ctx context.Context, userID string) ([]PeerSummary, error) {
	rows, err := r.db.QueryContext(ctx, `
		WITH mine AS (
			SELECT conversation_id,
				CASE WHEN split_part(conversation_id, ':', 1) = $1
					THEN split_part(conversation_id, ':', 2)
					ELSE split_part(conversation_id, ':', 1)
				END AS peer_id
			FROM messages
			WHERE conversation_id LIKE $1 || ':%' OR conversation_id LIKE '%:' || $1
			GROUP BY conversation_id
		),
		last AS (
			SELECT DISTINCT ON (m.conversation_id) m.conversation_id, `+messageColumns+`
			FROM messages m
			JOIN mine ON mine.conversation_id = m.conversation_id
			ORDER BY m.conversation_id, m.ts DESC, m.id DESC
		),
		unread AS (
			SELECT m.conversation_id, COUNT(*) AS n
			FROM messages m
			JOIN mine ON mine.conversation_id = m.conversation_id
			WHERE m.author = mine.peer_id AND m.status < $2
			GROUP BY m.conversation_id
		)
		SELECT mine.peer_id, last.id, last.author, last.conversation_id, last.ts, last.kind, last.body,
			last.attachment_bucket, last.attachment_key, last.attachment_filename, last.attachment_mime, last.attachment_size,
			last.status, last.agent_key, last.contact_id, last.client_temp_id, last.channel, last.channel_message_id,
			COALESCE(unread.n, 0)
		FROM mine
		JOIN last ON last.conversation_id = mine.conversation_id
		LEFT JOIN unread ON unread.conversation_id = mine.conversation_id
		ORDER BY last.ts DESC, last.id DESC`, userID, int(domain.StatusRead))
	if err != nil {
		return nil, fmt.Errorf("query recent per peer: %w", err)
	}
	defer rows.Close()

	var out []PeerSummary
	for rows.Next() {
		var s PeerSummary
		var m domain.Message
		var kind string
		var status int
		var bucket, key, filename, mime sql.NullString
		var size sql.NullInt64

		if err := rows.Scan(
			&s.PeerID, &m.ID, &m.Author, &m.ConversationID, &m.Timestamp, &kind, &m.Text,
			&bucket, &key, &filename, &mime, &size,
			&status, &m.AgentKey, &m.ContactID, &m.ClientTempID, &m.Channel, &m.ChannelMessageID,
			&s.UnreadCount,
		); err != nil {
			return nil, fmt.Errorf("scan peer summary: %w", err)
		}
		m.Kind = domain.MessageKind(kind)
		m.Status = domain.DeliveryStatus(status)
		if key.Valid {
			m.Attachment = &domain.Attachment{
				Bucket:           bucket.String,
				ObjectKey:        key.String,
				OriginalFilename: filename.String,
				MimeType:         mime.String,
				SizeBytes:        size.Int64,
			}
		}
		s.LastMessage = m
		out = append(out, s)
	}
	return out, rows.Err()
}

// MarkConversationRead transitions every message authored by peerID in
// conversationID and not yet read, up to asOf, to StatusRead, recording one
// delivery event per advanced message (spec §4.1 mark_conversation_read).
// Idempotent: a repeat call with the same or earlier asOf advances nothing.
func (r *MessageRepo) MarkConversationRead(ctx context.Context, conversationID, peerID string, asOf time.Time) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `
		UPDATE messages SET status = $1
		WHERE conversation_id = $2 AND author = $3 AND status < $1 AND ts <= $4
		RETURNING id`, int(domain.StatusRead), conversationID, peerID, asOf)
	if err != nil {
		return fmt.Errorf("mark conversation read: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return fmt.Errorf("scan advanced id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	for _, id := range ids {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO delivery_events (message_id, status) VALUES ($1, $2)`,
			id, int(domain.StatusRead)); err != nil {
			return fmt.Errorf("insert delivery event: %w", err)
		}
	}
	return tx.Commit()
}

// EventsSince returns delivery_events rows with id > sinceID, the catch-up
// feed for a client that reconnects after missing live updates (spec §4.1).
func (r *MessageRepo) EventsSince(ctx context.Context, sinceID int64, limit int) ([]DeliveryEvent, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, message_id, status, created_at
		FROM delivery_events WHERE id > $1 ORDER BY id ASC LIMIT $2`, sinceID, limit)
	if err != nil {
		return nil, fmt.Errorf("query delivery events: %w", err)
	}
	defer rows.Close()

	var out []DeliveryEvent
	for rows.Next() {
		var e DeliveryEvent
		var status int
		if err := rows.Scan(&e.ID, &e.MessageID, &status, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan delivery event: %w", err)
		}
		e.Status = domain.DeliveryStatus(status)
		out = append(out, e)
	}
	return out, rows.Err()
}

// DeliveryEvent is one entry in the outbox used for reconnect catch-up.
type DeliveryEvent struct {
	ID        int64
	MessageID string
	Status    domain.DeliveryStatus
	CreatedAt time.Time
}

const messageColumns = `
	id, author, conversation_id, ts, kind, body,
	attachment_bucket, attachment_key, attachment_filename, attachment_mime, attachment_size,
	status, agent_key, contact_id, client_temp_id, channel, channel_message_id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(row *sql.Row) (domain.Message, error) {
	m, err := scanMessageRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Message{}, fmt.Errorf("%w: message", apperrors.NotFound)
	}
	return m, err
}

func scanMessageRow(s rowScanner) (domain.Message, error) {
	return scanMessageColumns(s)
}

func scanMessageRows(rows *sql.Rows) (domain.Message, error) {
	return scanMessageColumns(rows)
}

func scanMessageColumns(s rowScanner) (domain.Message, error) {
	var m domain.Message
	var kind string
	var status int
	var bucket, key, filename, mime sql.NullString
	var size sql.NullInt64

	err := s.Scan(
		&m.ID, &m.Author, &m.ConversationID, &m.Timestamp, &kind, &m.Text,
		&bucket, &key, &filename, &mime, &size,
		&status, &m.AgentKey, &m.ContactID, &m.ClientTempID, &m.Channel, &m.ChannelMessageID,
	)
	if err != nil {
		return domain.Message{}, fmt.Errorf("scan message: %w", err)
	}
	m.Kind = domain.MessageKind(kind)
	m.Status = domain.DeliveryStatus(status)
	if key.Valid {
		m.Attachment = &domain.Attachment{
			Bucket:           bucket.String,
			ObjectKey:        key.String,
			OriginalFilename: filename.String,
			MimeType:         mime.String,
			SizeBytes:        size.Int64,
		}
	}
	return m, nil
}

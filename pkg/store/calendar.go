package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/omnichat/relay/pkg/apperrors"
	"github.com/omnichat/relay/pkg/domain"
)

// CalendarRepo persists domain.CalendarCommitment rows.
type CalendarRepo struct {
	db *sql.DB
}

// NewCalendarRepo builds a CalendarRepo over the shared pool.
func NewCalendarRepo(db *sql.DB) *CalendarRepo { return &CalendarRepo{db: db} }

// ByDedupKey looks up a commitment already recorded for this (conversation,
// start, customer email) triple, the crash-recovery lookup used by the
// Committing state (spec §4.7) before attempting a fresh provider call.
func (r *CalendarRepo) ByDedupKey(ctx context.Context, dedupKey string) (domain.CalendarCommitment, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+commitmentColumns+` FROM calendar_commitments WHERE dedup_key = $1`, dedupKey)
	return scanCommitment(row)
}

// Create inserts a new commitment, translating a dedup-key collision into
// apperrors.Conflict so the caller falls back to ByDedupKey (idempotent
// commit-under-retry, spec §4.7 edge cases).
func (r *CalendarRepo) Create(ctx context.Context, c domain.CalendarCommitment) error {
	attendeesJSON, err := json.Marshal(c.Attendees)
	if err != nil {
		return fmt.Errorf("marshal attendees: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO calendar_commitments (
			id, provider_event_id, conversation_id, agent_key, customer_email,
			start_at, end_at, meeting_url, calendar_url, status, attendees, notes, dedup_key
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		c.ID, c.ProviderEventID, c.ConversationID, c.AgentKey, c.CustomerEmail,
		c.Start, c.End, c.MeetingURL, c.CalendarURL, string(c.Status), attendeesJSON, c.Notes, c.DedupKey)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: commitment already recorded for this dedup key", apperrors.Conflict)
		}
		return fmt.Errorf("insert commitment: %w", err)
	}
	return nil
}

// ByID fetches a single commitment.
func (r *CalendarRepo) ByID(ctx context.Context, id string) (domain.CalendarCommitment, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+commitmentColumns+` FROM calendar_commitments WHERE id = $1`, id)
	return scanCommitment(row)
}

// Reschedule moves a confirmed commitment to a new start/end, the manual
// operator-facing edit behind PUT /calendar/events/{id} (distinct from the
// scheduling sub-protocol's own exactly-once Committing step).
func (r *CalendarRepo) Reschedule(ctx context.Context, id string, start, end time.Time) (domain.CalendarCommitment, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE calendar_commitments SET start_at = $1, end_at = $2
		WHERE id = $3 AND status <> 'cancelled'`, start, end, id)
	if err != nil {
		return domain.CalendarCommitment{}, fmt.Errorf("reschedule commitment: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return domain.CalendarCommitment{}, fmt.Errorf("%w: commitment not found or cancelled", apperrors.Conflict)
	}
	return r.ByID(ctx, id)
}

// Cancel marks a commitment cancelled.
func (r *CalendarRepo) Cancel(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE calendar_commitments SET status = 'cancelled' WHERE id = $1 AND status <> 'cancelled'`, id)
	if err != nil {
		return fmt.Errorf("cancel commitment: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("%w: commitment not found or already cancelled", apperrors.Conflict)
	}
	return nil
}

// ForConversation lists commitments tied to a conversation, most recent first.
func (r *CalendarRepo) ForConversation(ctx context.Context, conversationID string) ([]domain.CalendarCommitment, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+commitmentColumns+` FROM calendar_commitments
		WHERE conversation_id = $1 ORDER BY start_at DESC`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("query commitments: %w", err)
	}
	defer rows.Close()

	var out []domain.CalendarCommitment
	for rows.Next() {
		c, err := scanCommitmentRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

const commitmentColumns = `
	id, provider_event_id, conversation_id, agent_key, customer_email,
	start_at, end_at, meeting_url, calendar_url, status, attendees, notes, dedup_key`

func scanCommitment(row *sql.Row) (domain.CalendarCommitment, error) {
	c, err := scanCommitmentColumns(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.CalendarCommitment{}, fmt.Errorf("%w: calendar commitment", apperrors.NotFound)
	}
	return c, err
}

func scanCommitmentRows(rows *sql.Rows) (domain.CalendarCommitment, error) {
	return scanCommitmentColumns(rows)
}

func scanCommitmentColumns(s rowScanner) (domain.CalendarCommitment, error) {
	var c domain.CalendarCommitment
	var status string
	var attendeesJSON []byte

	err := s.Scan(&c.ID, &c.ProviderEventID, &c.ConversationID, &c.AgentKey, &c.CustomerEmail,
		&c.Start, &c.End, &c.MeetingURL, &c.CalendarURL, &status, &attendeesJSON, &c.Notes, &c.DedupKey)
	if err != nil {
		return domain.CalendarCommitment{}, fmt.Errorf("scan commitment: %w", err)
	}
	c.Status = domain.CommitmentStatus(status)
	if len(attendeesJSON) > 0 {
		if err := json.Unmarshal(attendeesJSON, &c.Attendees); err != nil {
			return domain.CalendarCommitment{}, fmt.Errorf("unmarshal attendees: %w", err)
		}
	}
	return c, nil
}

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

// HandoverRepo persists domain.HandoverTicket rows.
type HandoverRepo struct {
	db *sql.DB
}

// NewHandoverRepo builds a HandoverRepo over the shared pool.
func NewHandoverRepo(db *sql.DB) *HandoverRepo { return &HandoverRepo{db: db} }

// Create inserts a new ticket in the pending state.
func (r *HandoverRepo) Create(ctx context.Context, t domain.HandoverTicket) error {
	ctxJSON, err := json.Marshal(contextDTO{
		Entities:      t.Context.Entities,
		LastIntent:    t.Context.LastIntent,
		CustomerName:  t.Context.CustomerName,
		CustomerEmail: t.Context.CustomerEmail,
		CustomerPhone: t.Context.CustomerPhone,
		LastMessageIDs: messageIDs(t.Context.LastMessages),
	})
	if err != nil {
		return fmt.Errorf("marshal context snapshot: %w", err)
	}
	tagsJSON, err := json.Marshal(t.Tags)
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO handover_tickets (
			id, conversation_id, reason, priority, status, created_at,
			assigned_agent, context, resolution_note, tags
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		t.ID, t.ConversationID, string(t.Reason), t.Priority, string(t.Status), t.CreatedAt,
		t.AssignedAgent, ctxJSON, t.ResolutionNote, tagsJSON)
	if err != nil {
		return fmt.Errorf("insert handover ticket: %w", err)
	}
	return nil
}

// Accept atomically transitions a pending ticket to accepted for the given
// agent, the CAS pattern grounded on the teacher's ClaimNextPendingSession:
// the UPDATE only matches rows still in status='pending', so two operators
// racing to accept the same ticket leave exactly one winner.
func (r *HandoverRepo) Accept(ctx context.Context, ticketID, agentUserID string, now time.Time) (domain.HandoverTicket, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE handover_tickets
		SET status = 'accepted', assigned_agent = $1, accepted_at = $2
		WHERE id = $3 AND status = 'pending'`,
		agentUserID, now, ticketID)
	if err != nil {
		return domain.HandoverTicket{}, fmt.Errorf("accept ticket: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return domain.HandoverTicket{}, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		if _, err := r.ByID(ctx, ticketID); err != nil {
			return domain.HandoverTicket{}, err
		}
		return domain.HandoverTicket{}, fmt.Errorf("%w: ticket already accepted", apperrors.Conflict)
	}
	return r.ByID(ctx, ticketID)
}

// Resolve closes an open ticket with a resolution note.
func (r *HandoverRepo) Resolve(ctx context.Context, ticketID, note string, now time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE handover_tickets SET status = 'resolved', resolved_at = $1, resolution_note = $2
		WHERE id = $3 AND status IN ('pending', 'accepted', 'in_progress')`,
		now, note, ticketID)
	if err != nil {
		return fmt.Errorf("resolve ticket: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("%w: ticket not open", apperrors.Conflict)
	}
	return nil
}

// MarkInProgress transitions an accepted ticket to in_progress, the
// operator-facing "I'm actively working this" signal distinct from the
// initial accept CAS.
func (r *HandoverRepo) MarkInProgress(ctx context.Context, ticketID string) (domain.HandoverTicket, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE handover_tickets SET status = 'in_progress' WHERE id = $1 AND status = 'accepted'`, ticketID)
	if err != nil {
		return domain.HandoverTicket{}, fmt.Errorf("mark ticket in progress: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return domain.HandoverTicket{}, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		if _, err := r.ByID(ctx, ticketID); err != nil {
			return domain.HandoverTicket{}, err
		}
		return domain.HandoverTicket{}, fmt.Errorf("%w: ticket must be accepted before it can start in progress", apperrors.Conflict)
	}
	return r.ByID(ctx, ticketID)
}

// Cancel closes a ticket without an agent resolution (e.g. customer left).
func (r *HandoverRepo) Cancel(ctx context.Context, ticketID string, now time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE handover_tickets SET status = 'cancelled', resolved_at = $1
		WHERE id = $2 AND status IN ('pending', 'accepted', 'in_progress')`,
		now, ticketID)
	if err != nil {
		return fmt.Errorf("cancel ticket: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("%w: ticket not open", apperrors.Conflict)
	}
	return nil
}

// OpenForConversation returns the open ticket for a conversation, if any,
// used to enforce "at most one open ticket per conversation" (spec §4.6 I).
func (r *HandoverRepo) OpenForConversation(ctx context.Context, conversationID string) (domain.HandoverTicket, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+ticketColumns+`
		FROM handover_tickets
		WHERE conversation_id = $1 AND status IN ('pending', 'accepted', 'in_progress')
		ORDER BY created_at DESC LIMIT 1`, conversationID)
	return scanTicket(row)
}

// Queue returns pending tickets ordered by priority desc, created_at asc, the
// operator-facing view from spec §4.6.
func (r *HandoverRepo) Queue(ctx context.Context, limit int) ([]domain.HandoverTicket, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+ticketColumns+`
		FROM handover_tickets
		WHERE status = 'pending'
		ORDER BY priority DESC, created_at ASC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query queue: %w", err)
	}
	defer rows.Close()

	var out []domain.HandoverTicket
	for rows.Next() {
		t, err := scanTicketRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// ByID fetches a single ticket.
func (r *HandoverRepo) ByID(ctx context.Context, id string) (domain.HandoverTicket, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+ticketColumns+` FROM handover_tickets WHERE id = $1`, id)
	return scanTicket(row)
}

// List is the operator-facing filtered queue view (GET /handovers/?status=&priority=&limit=).
// An empty status or a zero priority leaves that filter unconstrained.
func (r *HandoverRepo) List(ctx context.Context, status domain.HandoverStatus, priority, limit int) ([]domain.HandoverTicket, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+ticketColumns+`
		FROM handover_tickets
		WHERE ($1 = '' OR status = $1) AND ($2 = 0 OR priority = $2)
		ORDER BY priority DESC, created_at ASC LIMIT $3`, string(status), priority, limit)
	if err != nil {
		return nil, fmt.Errorf("query handovers: %w", err)
	}
	defer rows.Close()

	var out []domain.HandoverTicket
	for rows.Next() {
		t, err := scanTicketRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Stats summarizes the queue for the operator dashboard (GET /handovers/stats/summary):
// open ticket count per status, plus the count of urgent (priority 4) tickets still open.
type Stats struct {
	PendingCount    int
	AcceptedCount   int
	InProgressCount int
	UrgentOpenCount int
}

func (r *HandoverRepo) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	row := r.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE status = 'pending'),
			COUNT(*) FILTER (WHERE status = 'accepted'),
			COUNT(*) FILTER (WHERE status = 'in_progress'),
			COUNT(*) FILTER (WHERE status IN ('pending','accepted','in_progress') AND priority = 4)
		FROM handover_tickets`)
	if err := row.Scan(&s.PendingCount, &s.AcceptedCount, &s.InProgressCount, &s.UrgentOpenCount); err != nil {
		return Stats{}, fmt.Errorf("query handover stats: %w", err)
	}
	return s, nil
}

const ticketColumns = `
	id, conversation_id, reason, priority, status, created_at, accepted_at, resolved_at,
	assigned_agent, context, resolution_note, tags`

type contextDTO struct {
	Entities       map[string]string `json:"entities"`
	LastIntent     string            `json:"last_intent"`
	CustomerName   string            `json:"customer_name"`
	CustomerEmail  string            `json:"customer_email"`
	CustomerPhone  string            `json:"customer_phone"`
	LastMessageIDs []string          `json:"last_message_ids"`
}

func messageIDs(msgs []domain.Message) []string {
	ids := make([]string, 0, len(msgs))
	for _, m := range msgs {
		ids = append(ids, m.ID)
	}
	return ids
}

func scanTicket(row *sql.Row) (domain.HandoverTicket, error) {
	t, err := scanTicketColumns(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.HandoverTicket{}, fmt.Errorf("%w: handover ticket", apperrors.NotFound)
	}
	return t, err
}

func scanTicketRows(rows *sql.Rows) (domain.HandoverTicket, error) {
	return scanTicketColumns(rows)
}

func scanTicketColumns(s rowScanner) (domain.HandoverTicket, error) {
	var t domain.HandoverTicket
	var reason, status string
	var acceptedAt, resolvedAt sql.NullTime
	var ctxJSON, tagsJSON []byte

	err := s.Scan(&t.ID, &t.ConversationID, &reason, &t.Priority, &status, &t.CreatedAt,
		&acceptedAt, &resolvedAt, &t.AssignedAgent, &ctxJSON, &t.ResolutionNote, &tagsJSON)
	if err != nil {
		return domain.HandoverTicket{}, fmt.Errorf("scan ticket: %w", err)
	}
	t.Reason = domain.HandoverReason(reason)
	t.Status = domain.HandoverStatus(status)
	if len(tagsJSON) > 0 {
		if err := json.Unmarshal(tagsJSON, &t.Tags); err != nil {
			return domain.HandoverTicket{}, fmt.Errorf("unmarshal tags: %w", err)
		}
	}
	if acceptedAt.Valid {
		t.AcceptedAt = &acceptedAt.Time
	}
	if resolvedAt.Valid {
		t.ResolvedAt = &resolvedAt.Time
	}

	var dto contextDTO
	if len(ctxJSON) > 0 {
		if err := json.Unmarshal(ctxJSON, &dto); err != nil {
			return domain.HandoverTicket{}, fmt.Errorf("unmarshal context snapshot: %w", err)
		}
	}
	t.Context = domain.ContextSnapshot{
		Entities:      dto.Entities,
		LastIntent:    dto.LastIntent,
		CustomerName:  dto.CustomerName,
		CustomerEmail: dto.CustomerEmail,
		CustomerPhone: dto.CustomerPhone,
	}
	return t, nil
}

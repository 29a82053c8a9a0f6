package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/omnichat/relay/pkg/apperrors"
	"github.com/omnichat/relay/pkg/domain"
)

// UserRepo persists domain.User rows.
type UserRepo struct {
	db *sql.DB
}

// NewUserRepo builds a UserRepo over the shared pool.
func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{db: db} }

// Create inserts a new user, failing with apperrors.Conflict if the email
// is already taken.
func (r *UserRepo) Create(ctx context.Context, u domain.User) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, display_name, email, password_verifier, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		u.ID, u.DisplayName, u.Email, u.PasswordVerifier, u.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: email already registered", apperrors.Conflict)
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// ByEmail looks up a user by (lower-cased) email.
func (r *UserRepo) ByEmail(ctx context.Context, email string) (domain.User, error) {
	return r.scanOne(ctx, `
		SELECT id, display_name, email, password_verifier, created_at
		FROM users WHERE email = $1`, email)
}

// ByID looks up a user by id.
func (r *UserRepo) ByID(ctx context.Context, id string) (domain.User, error) {
	return r.scanOne(ctx, `
		SELECT id, display_name, email, password_verifier, created_at
		FROM users WHERE id = $1`, id)
}

func (r *UserRepo) scanOne(ctx context.Context, query string, arg string) (domain.User, error) {
	var u domain.User
	row := r.db.QueryRowContext(ctx, query, arg)
	err := row.Scan(&u.ID, &u.DisplayName, &u.Email, &u.PasswordVerifier, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.User{}, fmt.Errorf("%w: user", apperrors.NotFound)
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("scan user: %w", err)
	}
	return u, nil
}

// ContactRepo persists domain.ExternalContact rows.
type ContactRepo struct {
	db *sql.DB
}

// NewContactRepo builds a ContactRepo over the shared pool.
func NewContactRepo(db *sql.DB) *ContactRepo { return &ContactRepo{db: db} }

// EnsureContact returns the existing contact for (channel, channelContactID)
// or creates it, implementing the "materialize a synthetic user on first
// inbound message" rule from spec §3.
func (r *ContactRepo) EnsureContact(ctx context.Context, c domain.ExternalContact) (domain.ExternalContact, error) {
	existing, err := r.byChannel(ctx, c.Channel, c.ChannelContactID)
	if err == nil {
		return existing, nil
	}
	if !apperrors.Is(err, apperrors.NotFound) {
		return domain.ExternalContact{}, err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO external_contacts (id, channel, channel_contact_id, display_name, phone, email, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (channel, channel_contact_id) DO NOTHING`,
		c.ID, c.Channel, c.ChannelContactID, c.DisplayName, c.Phone, c.Email, c.CreatedAt)
	if err != nil {
		return domain.ExternalContact{}, fmt.Errorf("insert contact: %w", err)
	}
	return r.byChannel(ctx, c.Channel, c.ChannelContactID)
}

func (r *ContactRepo) byChannel(ctx context.Context, channel, channelContactID string) (domain.ExternalContact, error) {
	var c domain.ExternalContact
	row := r.db.QueryRowContext(ctx, `
		SELECT id, channel, channel_contact_id, display_name, phone, email, created_at
		FROM external_contacts WHERE channel = $1 AND channel_contact_id = $2`,
		channel, channelContactID)
	err := row.Scan(&c.ID, &c.Channel, &c.ChannelContactID, &c.DisplayName, &c.Phone, &c.Email, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ExternalContact{}, fmt.Errorf("%w: contact", apperrors.NotFound)
	}
	if err != nil {
		return domain.ExternalContact{}, fmt.Errorf("scan contact: %w", err)
	}
	return c, nil
}

// ByID looks up a contact by its synthetic user id.
func (r *ContactRepo) ByID(ctx context.Context, id string) (domain.ExternalContact, error) {
	var c domain.ExternalContact
	row := r.db.QueryRowContext(ctx, `
		SELECT id, channel, channel_contact_id, display_name, phone, email, created_at
		FROM external_contacts WHERE id = $1`, id)
	err := row.Scan(&c.ID, &c.Channel, &c.ChannelContactID, &c.DisplayName, &c.Phone, &c.Email, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ExternalContact{}, fmt.Errorf("%w: contact", apperrors.NotFound)
	}
	if err != nil {
		return domain.ExternalContact{}, fmt.Errorf("scan contact: %w", err)
	}
	return c, nil
}

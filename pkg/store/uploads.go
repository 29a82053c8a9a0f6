package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/omnichat/relay/pkg/apperrors"
)

// PendingUpload is a grant issued by the Upload Broker (spec §4.2), naming
// the object key the client must PUT to and the constraints it must honor.
type PendingUpload struct {
	ObjectKey    string
	MimeType     string
	MaxSizeBytes int64
	IssuerUserID string
	IssuedAt     time.Time
	ExpiresAt    time.Time
	Consumed     bool
}

// UploadRepo persists pending_uploads rows.
type UploadRepo struct {
	db *sql.DB
}

// NewUploadRepo builds an UploadRepo over the shared pool.
func NewUploadRepo(db *sql.DB) *UploadRepo { return &UploadRepo{db: db} }

// Grant records a new upload grant.
func (r *UploadRepo) Grant(ctx context.Context, u PendingUpload) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO pending_uploads (object_key, mime_type, max_size_bytes, issuer_user_id, issued_at, expires_at, consumed)
		VALUES ($1, $2, $3, $4, $5, $6, false)`,
		u.ObjectKey, u.MimeType, u.MaxSizeBytes, u.IssuerUserID, u.IssuedAt, u.ExpiresAt)
	if err != nil {
		return fmt.Errorf("insert upload grant: %w", err)
	}
	return nil
}

// Get looks up a grant by object key.
func (r *UploadRepo) Get(ctx context.Context, objectKey string) (PendingUpload, error) {
	var u PendingUpload
	row := r.db.QueryRowContext(ctx, `
		SELECT object_key, mime_type, max_size_bytes, issuer_user_id, issued_at, expires_at, consumed
		FROM pending_uploads WHERE object_key = $1`, objectKey)
	err := row.Scan(&u.ObjectKey, &u.MimeType, &u.MaxSizeBytes, &u.IssuerUserID, &u.IssuedAt, &u.ExpiresAt, &u.Consumed)
	if errors.Is(err, sql.ErrNoRows) {
		return PendingUpload{}, fmt.Errorf("%w: upload grant", apperrors.NotFound)
	}
	if err != nil {
		return PendingUpload{}, fmt.Errorf("scan upload grant: %w", err)
	}
	return u, nil
}

// Confirm atomically marks a grant consumed, mirroring the teacher's
// claim-then-conditional-update pattern (pkg/services SessionService
// .ClaimNextPendingSession): the UPDATE only succeeds while consumed is
// still false and the grant has not expired, so a second confirm (retry,
// race) gets apperrors.Conflict rather than silently double-processing.
func (r *UploadRepo) Confirm(ctx context.Context, objectKey string, now time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE pending_uploads SET consumed = true
		WHERE object_key = $1 AND consumed = false AND expires_at > $2`,
		objectKey, now)
	if err != nil {
		return fmt.Errorf("confirm upload: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		if _, err := r.Get(ctx, objectKey); err != nil {
			return err
		}
		return fmt.Errorf("%w: upload grant already consumed or expired", apperrors.Conflict)
	}
	return nil
}

// DeleteExpired removes grants past expiry that were never consumed, called
// from the periodic sweep (spec §4.2 edge cases).
func (r *UploadRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM pending_uploads WHERE consumed = false AND expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired uploads: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

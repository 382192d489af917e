package meetings

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/liveclass-lms/backend/internal/models"
)

// Repository handles meeting, registrant and Zoom credential persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a meeting repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a new meeting mapping row.
func (r *Repository) Create(ctx context.Context, m *models.Meeting) error {
	const q = `INSERT INTO meetings (meeting_id, user_id, title, course_id, block_id, restricted_access, email_notification, broadcast_enabled)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at`
	return r.pool.QueryRow(ctx, q,
		m.MeetingID, m.UserID, m.Title, m.CourseID, m.BlockID, m.RestrictedAccess, m.EmailNotification, m.BroadcastEnabled,
	).Scan(&m.CreatedAt, &m.UpdatedAt)
}

// Upsert updates the mutable fields of a meeting mapping, inserting the row if
// the meeting id was never recorded. The meeting id never changes, and the
// broadcast columns are owned by SetBroadcastID so a meeting edit cannot
// detach a linked broadcast.
func (r *Repository) Upsert(ctx context.Context, m *models.Meeting) error {
	const q = `INSERT INTO meetings (meeting_id, user_id, title, course_id, block_id, restricted_access, email_notification, broadcast_enabled)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (meeting_id) DO UPDATE SET
			title = EXCLUDED.title,
			course_id = EXCLUDED.course_id,
			block_id = EXCLUDED.block_id,
			restricted_access = EXCLUDED.restricted_access,
			email_notification = EXCLUDED.email_notification,
			updated_at = NOW()`
	_, err := r.pool.Exec(ctx, q,
		m.MeetingID, m.UserID, m.Title, m.CourseID, m.BlockID, m.RestrictedAccess, m.EmailNotification, m.BroadcastEnabled,
	)
	return err
}

// GetByID returns a meeting by vendor meeting id, or nil when unknown.
func (r *Repository) GetByID(ctx context.Context, meetingID string) (*models.Meeting, error) {
	const q = `SELECT meeting_id, user_id, title, course_id, block_id, restricted_access, email_notification, broadcast_enabled, broadcast_id, created_at, updated_at
		FROM meetings WHERE meeting_id = $1`
	var m models.Meeting
	err := r.pool.QueryRow(ctx, q, meetingID).Scan(
		&m.MeetingID, &m.UserID, &m.Title, &m.CourseID, &m.BlockID,
		&m.RestrictedAccess, &m.EmailNotification, &m.BroadcastEnabled, &m.BroadcastID,
		&m.CreatedAt, &m.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// SetBroadcastID records the linked live-broadcast id for a meeting and marks
// it broadcast-enabled, which is what makes the started webhook switch the
// livestream on.
func (r *Repository) SetBroadcastID(ctx context.Context, meetingID, broadcastID string) error {
	const q = `UPDATE meetings SET broadcast_id = $1, broadcast_enabled = TRUE, updated_at = NOW() WHERE meeting_id = $2`
	tag, err := r.pool.Exec(ctx, q, broadcastID, meetingID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// UpsertRegistrant records a student's personalized join link.
func (r *Repository) UpsertRegistrant(ctx context.Context, meetingID, email, joinURL string) error {
	const q = `INSERT INTO meeting_registrants (meeting_id, email, join_url)
		VALUES ($1, $2, $3)
		ON CONFLICT (meeting_id, email) DO UPDATE SET join_url = EXCLUDED.join_url`
	_, err := r.pool.Exec(ctx, q, meetingID, email, joinURL)
	return err
}

// GetRegistrant returns the join link for a student on a meeting, or nil.
func (r *Repository) GetRegistrant(ctx context.Context, meetingID, email string) (*models.Registrant, error) {
	const q = `SELECT meeting_id, email, join_url, created_at
		FROM meeting_registrants WHERE meeting_id = $1 AND email = $2`
	var reg models.Registrant
	err := r.pool.QueryRow(ctx, q, meetingID, email).Scan(&reg.MeetingID, &reg.Email, &reg.JoinURL, &reg.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &reg, nil
}

// CountRegistrants returns how many registrants a meeting has. A zero count
// means registration has not run yet, i.e. the meeting has not started.
func (r *Repository) CountRegistrants(ctx context.Context, meetingID string) (int, error) {
	const q = `SELECT COUNT(*) FROM meeting_registrants WHERE meeting_id = $1`
	var n int
	err := r.pool.QueryRow(ctx, q, meetingID).Scan(&n)
	return n, err
}

// GetRefreshToken implements zoom.CredentialStore. Returns "" when the user
// never linked a Zoom account.
func (r *Repository) GetRefreshToken(ctx context.Context, userID uuid.UUID) (string, error) {
	const q = `SELECT refresh_token FROM zoom_credentials WHERE user_id = $1`
	var token string
	err := r.pool.QueryRow(ctx, q, userID).Scan(&token)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return token, nil
}

// SaveRefreshToken implements zoom.CredentialStore.
func (r *Repository) SaveRefreshToken(ctx context.Context, userID uuid.UUID, token string) error {
	const q = `INSERT INTO zoom_credentials (user_id, refresh_token)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET refresh_token = EXCLUDED.refresh_token, updated_at = NOW()`
	_, err := r.pool.Exec(ctx, q, userID, token)
	return err
}

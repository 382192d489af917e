package emaillogs

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/liveclass-lms/backend/internal/models"
)

// Statuses recorded per notification attempt.
const (
	StatusSent   = "sent"
	StatusFailed = "failed"
)

// Repository records meeting-start notification deliveries.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an email log repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Record inserts one delivery attempt.
func (r *Repository) Record(ctx context.Context, log *models.EmailLog) error {
	const q = `INSERT INTO email_logs (meeting_id, recipient, subject, status, error)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, sent_at`
	return r.pool.QueryRow(ctx, q, log.MeetingID, log.Recipient, log.Subject, log.Status, log.Error).
		Scan(&log.ID, &log.SentAt)
}

// ListByMeeting returns the delivery log for one meeting, newest first.
func (r *Repository) ListByMeeting(ctx context.Context, meetingID string) ([]models.EmailLog, error) {
	const q = `SELECT id, meeting_id, recipient, subject, status, error, sent_at
		FROM email_logs WHERE meeting_id = $1 ORDER BY sent_at DESC`
	rows, err := r.pool.Query(ctx, q, meetingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.EmailLog
	for rows.Next() {
		var l models.EmailLog
		if err := rows.Scan(&l.ID, &l.MeetingID, &l.Recipient, &l.Subject, &l.Status, &l.Error, &l.SentAt); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

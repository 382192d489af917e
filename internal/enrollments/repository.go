package enrollments

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Enrollee is an active course member, in the shape the vendor registrant API
// wants.
type Enrollee struct {
	UserID    uuid.UUID
	Email     string
	FirstName string
	LastName  string
}

// Repository handles course enrollment persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an enrollment repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Enroll activates a user's enrollment in a course, reactivating a previously
// dropped one.
func (r *Repository) Enroll(ctx context.Context, courseID string, userID uuid.UUID) error {
	const q = `INSERT INTO enrollments (course_id, user_id, is_active)
		VALUES ($1, $2, TRUE)
		ON CONFLICT (course_id, user_id) DO UPDATE SET is_active = TRUE`
	_, err := r.pool.Exec(ctx, q, courseID, userID)
	return err
}

// Unenroll deactivates a user's enrollment. The row stays so re-enrollment
// keeps history.
func (r *Repository) Unenroll(ctx context.Context, courseID string, userID uuid.UUID) error {
	const q = `UPDATE enrollments SET is_active = FALSE WHERE course_id = $1 AND user_id = $2`
	_, err := r.pool.Exec(ctx, q, courseID, userID)
	return err
}

// CountActive returns the number of active enrollees in a course.
func (r *Repository) CountActive(ctx context.Context, courseID string) (int, error) {
	const q = `SELECT COUNT(*) FROM enrollments WHERE course_id = $1 AND is_active`
	var n int
	err := r.pool.QueryRow(ctx, q, courseID).Scan(&n)
	return n, err
}

// ListActive returns the active enrollees of a course, excluding the given
// user. The host is excluded so registration and notifications never target
// the person running the meeting.
func (r *Repository) ListActive(ctx context.Context, courseID string, exclude uuid.UUID) ([]Enrollee, error) {
	const q = `SELECT u.id, u.email, u.full_name
		FROM enrollments e
		JOIN users u ON u.id = e.user_id
		WHERE e.course_id = $1 AND e.is_active AND u.id <> $2
		ORDER BY u.email`
	rows, err := r.pool.Query(ctx, q, courseID, exclude)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Enrollee
	for rows.Next() {
		var e Enrollee
		var fullName string
		if err := rows.Scan(&e.UserID, &e.Email, &fullName); err != nil {
			return nil, err
		}
		e.FirstName, e.LastName = splitName(fullName)
		out = append(out, e)
	}
	return out, rows.Err()
}

// ListActiveEmails returns just the emails of the active enrollees, excluding
// the given user.
func (r *Repository) ListActiveEmails(ctx context.Context, courseID string, exclude uuid.UUID) ([]string, error) {
	enrollees, err := r.ListActive(ctx, courseID, exclude)
	if err != nil {
		return nil, err
	}
	emails := make([]string, 0, len(enrollees))
	for _, e := range enrollees {
		emails = append(emails, e.Email)
	}
	return emails, nil
}

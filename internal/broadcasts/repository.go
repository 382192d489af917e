package broadcasts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/oauth2"
)

// Validation caches the last known state of a user's YouTube permissions.
type Validation struct {
	ChannelEnabled       bool
	LivebroadcastEnabled bool
	CustomLiveStreaming  bool
}

// Repository persists per-user Google OAuth tokens and YouTube permission
// flags.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a broadcast repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// SaveToken stores a user's Google OAuth token, replacing any previous one.
func (r *Repository) SaveToken(ctx context.Context, userID uuid.UUID, token *oauth2.Token) error {
	raw, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("marshal token: %w", err)
	}
	const q = `INSERT INTO google_credentials (user_id, credentials)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET credentials = EXCLUDED.credentials, updated_at = NOW()`
	_, err = r.pool.Exec(ctx, q, userID, raw)
	return err
}

// GetToken loads a user's Google OAuth token, or nil when the user never
// linked a Google account.
func (r *Repository) GetToken(ctx context.Context, userID uuid.UUID) (*oauth2.Token, error) {
	const q = `SELECT credentials FROM google_credentials WHERE user_id = $1`
	var raw []byte
	err := r.pool.QueryRow(ctx, q, userID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var token oauth2.Token
	if err := json.Unmarshal(raw, &token); err != nil {
		return nil, fmt.Errorf("unmarshal token: %w", err)
	}
	return &token, nil
}

// SaveValidation records the outcome of a permission probe.
func (r *Repository) SaveValidation(ctx context.Context, userID uuid.UUID, v Validation) error {
	const q = `UPDATE google_credentials
		SET channel_enabled = $1, livebroadcast_enabled = $2, custom_live_streaming_service = $3, updated_at = NOW()
		WHERE user_id = $4`
	_, err := r.pool.Exec(ctx, q, v.ChannelEnabled, v.LivebroadcastEnabled, v.CustomLiveStreaming, userID)
	return err
}

// GetValidation loads the cached permission flags for a user.
func (r *Repository) GetValidation(ctx context.Context, userID uuid.UUID) (*Validation, error) {
	const q = `SELECT channel_enabled, livebroadcast_enabled, custom_live_streaming_service
		FROM google_credentials WHERE user_id = $1`
	var v Validation
	err := r.pool.QueryRow(ctx, q, userID).Scan(&v.ChannelEnabled, &v.LivebroadcastEnabled, &v.CustomLiveStreaming)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

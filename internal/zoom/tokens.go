package zoom

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ErrNotConnected is returned when a user has no stored Zoom refresh token.
var ErrNotConnected = errors.New("zoom account not connected")

// tokenCacheMargin keeps cached access tokens comfortably inside the vendor's
// one hour expiry.
const tokenCacheMargin = 5 * time.Minute

// CredentialStore persists per-user refresh tokens. Zoom rotates the refresh
// token on every refresh, so SaveRefreshToken is called after each grant.
type CredentialStore interface {
	GetRefreshToken(ctx context.Context, userID uuid.UUID) (string, error)
	SaveRefreshToken(ctx context.Context, userID uuid.UUID, token string) error
}

// TokenManager resolves per-user access tokens, caching them in Redis and
// rotating the stored refresh token on every grant.
type TokenManager struct {
	client *Client
	store  CredentialStore
	cache  *redis.Client
	logger *zap.Logger
}

// NewTokenManager creates a token manager.
func NewTokenManager(client *Client, store CredentialStore, cache *redis.Client, logger *zap.Logger) *TokenManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TokenManager{client: client, store: store, cache: cache, logger: logger}
}

func cacheKey(userID uuid.UUID) string {
	return "zoom:access_token:" + userID.String()
}

// Connected reports whether the user has a stored refresh token.
func (m *TokenManager) Connected(ctx context.Context, userID uuid.UUID) (bool, error) {
	token, err := m.store.GetRefreshToken(ctx, userID)
	if err != nil {
		return false, err
	}
	return token != "", nil
}

// Authorize exchanges an OAuth authorization code and stores the refresh token.
func (m *TokenManager) Authorize(ctx context.Context, userID uuid.UUID, code, redirectURI string) error {
	token, err := m.client.ExchangeCode(ctx, code, redirectURI)
	if err != nil {
		return fmt.Errorf("exchange code: %w", err)
	}
	if err := m.store.SaveRefreshToken(ctx, userID, token.RefreshToken); err != nil {
		return fmt.Errorf("save refresh token: %w", err)
	}
	m.cacheAccessToken(ctx, userID, token)
	return nil
}

// AccessToken returns a valid access token for the user, from cache when
// possible, otherwise via a refresh grant. Returns ErrNotConnected when the
// user never linked a Zoom account.
func (m *TokenManager) AccessToken(ctx context.Context, userID uuid.UUID) (string, error) {
	if m.cache != nil {
		cached, err := m.cache.Get(ctx, cacheKey(userID)).Result()
		if err == nil && cached != "" {
			return cached, nil
		}
	}

	refresh, err := m.store.GetRefreshToken(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("load refresh token: %w", err)
	}
	if refresh == "" {
		return "", ErrNotConnected
	}

	token, err := m.client.RefreshAccessToken(ctx, refresh)
	if err != nil {
		return "", fmt.Errorf("refresh access token: %w", err)
	}
	if err := m.store.SaveRefreshToken(ctx, userID, token.RefreshToken); err != nil {
		return "", fmt.Errorf("rotate refresh token: %w", err)
	}
	m.cacheAccessToken(ctx, userID, token)
	return token.AccessToken, nil
}

func (m *TokenManager) cacheAccessToken(ctx context.Context, userID uuid.UUID, token *Token) {
	if m.cache == nil || token.AccessToken == "" {
		return
	}
	ttl := time.Duration(token.ExpiresIn)*time.Second - tokenCacheMargin
	if ttl <= 0 {
		return
	}
	if err := m.cache.Set(ctx, cacheKey(userID), token.AccessToken, ttl).Err(); err != nil {
		m.logger.Warn("cache access token", zap.Error(err))
	}
}

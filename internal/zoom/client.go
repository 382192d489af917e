// Package zoom implements the Zoom REST surface this service depends on:
// the OAuth token endpoints, user profile, scheduled meetings, registrants
// and meeting livestream control.
package zoom

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/liveclass-lms/backend/config"
)

var (
	// ErrOAuth is returned when the token endpoint reports an error field.
	ErrOAuth = errors.New("zoom oauth error")
)

// APIError is returned when the vendor answers with an unexpected HTTP status.
type APIError struct {
	Method string
	Path   string
	Status int
}

func (e *APIError) Error() string {
	return fmt.Sprintf("zoom api: %s %s: unexpected status %d", e.Method, e.Path, e.Status)
}

// Client is a Zoom REST API client authenticated per-call with a bearer token.
type Client struct {
	cfg    config.ZoomConfig
	http   *http.Client
	logger *zap.Logger
}

// NewClient creates a Zoom client.
func NewClient(cfg config.ZoomConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: 30 * time.Second},
		logger: logger,
	}
}

// Token is the Zoom OAuth token response. Every refresh rotates the refresh
// token, so callers must persist the new one.
type Token struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	Error        string `json:"error"`
}

// ExchangeCode exchanges an authorization code for tokens.
func (c *Client) ExchangeCode(ctx context.Context, code, redirectURI string) (*Token, error) {
	params := url.Values{
		"grant_type":   {"authorization_code"},
		"code":         {code},
		"redirect_uri": {redirectURI},
	}
	return c.tokenRequest(ctx, params)
}

// RefreshAccessToken trades a refresh token for a fresh access token.
func (c *Client) RefreshAccessToken(ctx context.Context, refreshToken string) (*Token, error) {
	params := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
	}
	return c.tokenRequest(ctx, params)
}

func (c *Client) tokenRequest(ctx context.Context, params url.Values) (*Token, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.OAuthTokenURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	basic := base64.StdEncoding.EncodeToString([]byte(c.cfg.ClientID + ":" + c.cfg.ClientSecret))
	req.Header.Set("Authorization", "Basic "+basic)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()

	var token Token
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return nil, fmt.Errorf("decode token response: %w", err)
	}
	if token.Error != "" {
		return nil, fmt.Errorf("%w: %s", ErrOAuth, token.Error)
	}
	return &token, nil
}

// Profile is the Zoom account profile of the authenticated user.
// Type 1 is a basic account, type 2 a licensed one.
type Profile struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Type      int    `json:"type"`
}

// Licensed reports whether the account tier allows registrant-based meetings.
func (p *Profile) Licensed() bool {
	return p.Type >= 2
}

// UserProfile fetches the profile of the token's user.
func (c *Client) UserProfile(ctx context.Context, accessToken string) (*Profile, error) {
	var profile Profile
	if err := c.do(ctx, http.MethodGet, "/users/me", accessToken, nil, http.StatusOK, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// StartURL returns the stable host start link for a meeting. The vendor's own
// start_url grants host rights to anyone holding it, so the block hands out
// this domain link instead.
func (c *Client) StartURL(meetingID string) string {
	return fmt.Sprintf("%ss/%s", c.cfg.Domain, meetingID)
}

// do performs an authenticated JSON request and decodes the response into out
// when the expected status is met. out may be nil for bodyless responses.
func (c *Client) do(ctx context.Context, method, path, accessToken string, body interface{}, wantStatus int, out interface{}) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
		reader = bytes.NewReader(raw)
	}
	u := c.cfg.APIBaseURL + path
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.logger.Warn("zoom api error",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("body", strings.TrimSpace(string(snippet))),
		)
		return &APIError{Method: method, Path: path, Status: resp.StatusCode}
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

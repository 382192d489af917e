package zoom

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

const (
	// registrantPageSize is the vendor maximum page size for registrant listing.
	registrantPageSize = 300
	// rateLimitMaxRetries bounds per-second rate limit retries on registrant calls.
	rateLimitMaxRetries = 10
	rateLimitBackoff    = time.Second
)

// RegistrantInfo identifies one student to register on a restricted meeting.
type RegistrantInfo struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// RegistrantRef pairs a vendor registrant id with the student email,
// as expected by the status endpoint.
type RegistrantRef struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type addRegistrantResponse struct {
	RegistrantID string `json:"registrant_id"`
}

// AddRegistrant registers a student on a meeting and returns the vendor
// registrant id. Per-second rate limit responses (429) are retried with a one
// second backoff, up to rateLimitMaxRetries times.
func (c *Client) AddRegistrant(ctx context.Context, accessToken, meetingID string, info RegistrantInfo) (string, error) {
	path := "/meetings/" + meetingID + "/registrants"
	var resp addRegistrantResponse
	for attempt := 0; ; attempt++ {
		err := c.do(ctx, http.MethodPost, path, accessToken, info, http.StatusCreated, &resp)
		if err == nil {
			return resp.RegistrantID, nil
		}
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusTooManyRequests && attempt < rateLimitMaxRetries {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(rateLimitBackoff):
			}
			continue
		}
		return "", fmt.Errorf("add registrant: %w", err)
	}
}

type registrantStatusBody struct {
	Action      string          `json:"action"`
	Registrants []RegistrantRef `json:"registrants"`
}

// ApproveRegistrants sets the given registrants to approved. Rate limit
// responses are retried the same way as AddRegistrant.
func (c *Client) ApproveRegistrants(ctx context.Context, accessToken, meetingID string, refs []RegistrantRef) error {
	if len(refs) == 0 {
		return nil
	}
	path := "/meetings/" + meetingID + "/registrants/status"
	body := registrantStatusBody{Action: "approve", Registrants: refs}
	for attempt := 0; ; attempt++ {
		err := c.do(ctx, http.MethodPut, path, accessToken, body, http.StatusNoContent, nil)
		if err == nil {
			return nil
		}
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusTooManyRequests && attempt < rateLimitMaxRetries {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(rateLimitBackoff):
			}
			continue
		}
		return fmt.Errorf("approve registrants: %w", err)
	}
}

// RegistrantJoin is an approved registrant with their personalized join link.
type RegistrantJoin struct {
	Email   string `json:"email"`
	JoinURL string `json:"join_url"`
}

type listRegistrantsResponse struct {
	PageCount   int              `json:"page_count"`
	Registrants []RegistrantJoin `json:"registrants"`
}

// ListApprovedRegistrants pages through all approved registrants of a meeting.
func (c *Client) ListApprovedRegistrants(ctx context.Context, accessToken, meetingID string) ([]RegistrantJoin, error) {
	var out []RegistrantJoin
	pageCount := 1
	for page := 1; page <= pageCount; page++ {
		params := url.Values{
			"status":      {"approved"},
			"page_size":   {fmt.Sprint(registrantPageSize)},
			"page_number": {fmt.Sprint(page)},
		}
		path := "/meetings/" + meetingID + "/registrants?" + params.Encode()
		var resp listRegistrantsResponse
		if err := c.do(ctx, http.MethodGet, path, accessToken, nil, http.StatusOK, &resp); err != nil {
			return nil, fmt.Errorf("list registrants page %d: %w", page, err)
		}
		pageCount = resp.PageCount
		out = append(out, resp.Registrants...)
	}
	return out, nil
}

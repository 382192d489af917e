package zoom

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/liveclass-lms/backend/config"
)

func testClient(apiURL, oauthURL string) *Client {
	return NewClient(config.ZoomConfig{
		ClientID:      "client",
		ClientSecret:  "secret",
		APIBaseURL:    apiURL,
		OAuthTokenURL: oauthURL,
		Domain:        "https://zoom.example/",
		Timezone:      "America/Santiago",
	}, zap.NewNop())
}

func TestCreateMeetingPublic(t *testing.T) {
	var got meetingBody
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/users/me/meetings" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer tok" {
			t.Errorf("Authorization = %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]interface{}{"id": 987654321, "join_url": "https://zoom.example/j/987654321"})
	}))
	defer srv.Close()

	c := testClient(srv.URL, srv.URL+"/oauth/token")
	meeting, err := c.CreateMeeting(context.Background(), "tok", MeetingParams{
		Topic:    "Clase 1",
		Agenda:   "Intro",
		Date:     "2026-09-01",
		Time:     "14:30",
		Duration: 60,
	})
	if err != nil {
		t.Fatalf("CreateMeeting: %v", err)
	}
	if meeting.MeetingID != "987654321" {
		t.Errorf("MeetingID = %q", meeting.MeetingID)
	}
	if meeting.StartURL != "https://zoom.example/s/987654321" {
		t.Errorf("StartURL = %q", meeting.StartURL)
	}
	if meeting.JoinURL != "https://zoom.example/j/987654321" {
		t.Errorf("JoinURL = %q", meeting.JoinURL)
	}
	if len(meeting.Password) != meetingPasswordLength {
		t.Errorf("Password length = %d, want %d", len(meeting.Password), meetingPasswordLength)
	}

	if got.Type != typeScheduledMeeting {
		t.Errorf("body type = %d", got.Type)
	}
	if got.StartTime != "2026-09-01T14:30:00" {
		t.Errorf("start_time = %q", got.StartTime)
	}
	if got.Settings.UsePMI {
		t.Error("use_pmi must be false")
	}
	if got.Settings.ApprovalType != nil {
		t.Error("public meeting must not set approval_type")
	}
	if got.Password == nil || *got.Password == "" {
		t.Error("public meeting must carry a generated password")
	}
}

func TestCreateMeetingRestricted(t *testing.T) {
	var got meetingBody
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]interface{}{"id": 1, "join_url": "https://zoom.example/j/1"})
	}))
	defer srv.Close()

	c := testClient(srv.URL, srv.URL+"/oauth/token")
	meeting, err := c.CreateMeeting(context.Background(), "tok", MeetingParams{
		Topic: "Clase", Date: "2026-09-01", Time: "10:00", Duration: 30, RestrictedAccess: true,
	})
	if err != nil {
		t.Fatalf("CreateMeeting: %v", err)
	}
	if meeting.Password != "" {
		t.Errorf("restricted meeting password = %q, want empty", meeting.Password)
	}
	if got.Settings.ApprovalType == nil || *got.Settings.ApprovalType != approvalTypeManual {
		t.Error("restricted meeting must set manual approval")
	}
	if got.Settings.RegistrantsEmailNotification == nil || *got.Settings.RegistrantsEmailNotification {
		t.Error("restricted meeting must disable registrant emails")
	}
}

func TestUpdateMeeting(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch || r.URL.Path != "/meetings/42" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := testClient(srv.URL, srv.URL+"/oauth/token")
	err := c.UpdateMeeting(context.Background(), "tok", "42", MeetingParams{
		Topic: "Clase", Date: "2026-09-02", Time: "11:00", Duration: 45,
	})
	if err != nil {
		t.Fatalf("UpdateMeeting: %v", err)
	}
}

func TestUpdateMeetingAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := testClient(srv.URL, srv.URL+"/oauth/token")
	err := c.UpdateMeeting(context.Background(), "tok", "42", MeetingParams{Topic: "x", Date: "2026-09-02", Time: "11:00"})
	if err == nil {
		t.Fatal("expected error")
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusNotFound {
		t.Errorf("error = %v, want APIError 404", err)
	}
}

func TestAddRegistrantRetriesRateLimit(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]string{"registrant_id": "reg-1"})
	}))
	defer srv.Close()

	c := testClient(srv.URL, srv.URL+"/oauth/token")
	id, err := c.AddRegistrant(context.Background(), "tok", "42", RegistrantInfo{Email: "a@b.cl", FirstName: "Ana", LastName: "LMS"})
	if err != nil {
		t.Fatalf("AddRegistrant: %v", err)
	}
	if id != "reg-1" {
		t.Errorf("registrant id = %q", id)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestListApprovedRegistrantsPaginates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page := r.URL.Query().Get("page_number")
		resp := listRegistrantsResponse{PageCount: 2}
		switch page {
		case "1":
			resp.Registrants = []RegistrantJoin{{Email: "a@b.cl", JoinURL: "https://j/1"}}
		case "2":
			resp.Registrants = []RegistrantJoin{{Email: "c@d.cl", JoinURL: "https://j/2"}}
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	c := testClient(srv.URL, srv.URL+"/oauth/token")
	regs, err := c.ListApprovedRegistrants(context.Background(), "tok", "42")
	if err != nil {
		t.Fatalf("ListApprovedRegistrants: %v", err)
	}
	if len(regs) != 2 {
		t.Fatalf("len = %d, want 2", len(regs))
	}
	if regs[1].Email != "c@d.cl" {
		t.Errorf("second registrant = %+v", regs[1])
	}
}

func TestExchangeCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("grant_type") != "authorization_code" || q.Get("code") != "abc" {
			t.Errorf("unexpected query %v", q)
		}
		if r.Header.Get("Authorization") == "" {
			t.Error("missing basic auth")
		}
		json.NewEncoder(w).Encode(Token{AccessToken: "at", RefreshToken: "rt", ExpiresIn: 3600})
	}))
	defer srv.Close()

	c := testClient(srv.URL, srv.URL)
	token, err := c.ExchangeCode(context.Background(), "abc", "https://lms.example/zoom/api?redirect=xyz")
	if err != nil {
		t.Fatalf("ExchangeCode: %v", err)
	}
	if token.AccessToken != "at" || token.RefreshToken != "rt" {
		t.Errorf("token = %+v", token)
	}
}

func TestExchangeCodeOAuthError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(Token{Error: "invalid_grant"})
	}))
	defer srv.Close()

	c := testClient(srv.URL, srv.URL)
	if _, err := c.ExchangeCode(context.Background(), "abc", "uri"); err == nil {
		t.Fatal("expected oauth error")
	}
}

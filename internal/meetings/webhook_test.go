package meetings

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/liveclass-lms/backend/config"
	"github.com/liveclass-lms/backend/internal/models"
	"github.com/liveclass-lms/backend/internal/zoom"
)

const webhookSecret = "hook-secret"

type fakeStore struct {
	meeting *models.Meeting
}

func (s *fakeStore) Create(ctx context.Context, m *models.Meeting) error { return nil }
func (s *fakeStore) Upsert(ctx context.Context, m *models.Meeting) error { return nil }

func (s *fakeStore) GetByID(ctx context.Context, meetingID string) (*models.Meeting, error) {
	if s.meeting != nil && s.meeting.MeetingID == meetingID {
		return s.meeting, nil
	}
	return nil, nil
}

func (s *fakeStore) GetRegistrant(ctx context.Context, meetingID, email string) (*models.Registrant, error) {
	return nil, nil
}

func (s *fakeStore) CountRegistrants(ctx context.Context, meetingID string) (int, error) {
	return 0, nil
}

type fakeCredentials struct {
	refresh string
}

func (f *fakeCredentials) GetRefreshToken(ctx context.Context, userID uuid.UUID) (string, error) {
	return f.refresh, nil
}

func (f *fakeCredentials) SaveRefreshToken(ctx context.Context, userID uuid.UUID, token string) error {
	f.refresh = token
	return nil
}

// vendorStub fakes the Zoom token endpoint and the livestream status control,
// recording which livestream actions arrive.
type vendorStub struct {
	server  *httptest.Server
	actions []string
}

func newVendorStub(t *testing.T) *vendorStub {
	t.Helper()
	stub := &vendorStub{}
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"at-1","refresh_token":"rt-2","expires_in":3600}`))
	})
	mux.HandleFunc("/meetings/", func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/livestream/status") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		var body struct {
			Action string `json:"action"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		stub.actions = append(stub.actions, body.Action)
		w.WriteHeader(http.StatusNoContent)
	})
	stub.server = httptest.NewServer(mux)
	t.Cleanup(stub.server.Close)
	return stub
}

func newWebhookRouter(stub *vendorStub, store *fakeStore) *gin.Engine {
	cfg := &config.Config{Zoom: config.ZoomConfig{
		ClientID:      "cid",
		ClientSecret:  "cs",
		APIBaseURL:    stub.server.URL,
		OAuthTokenURL: stub.server.URL + "/oauth/token",
		Domain:        "https://zoom.example/",
		WebhookSecret: webhookSecret,
	}}
	client := zoom.NewClient(cfg.Zoom, nil)
	tokens := zoom.NewTokenManager(client, &fakeCredentials{refresh: "rt-1"}, nil, nil)
	h := NewHandler(cfg, store, client, tokens, nil, nil, nil)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/zoom/events", h.Webhook)
	return router
}

func postEvent(router *gin.Engine, bearer, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/zoom/events", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

const startedEvent = `{"event":"meeting.started","payload":{"object":{"id":987654321}}}`

func TestWebhookStartsLinkedBroadcast(t *testing.T) {
	stub := newVendorStub(t)
	store := &fakeStore{meeting: &models.Meeting{
		MeetingID:   "987654321",
		UserID:      uuid.New(),
		CourseID:    "course-v1:Uni+C1+2026",
		BlockID:     "block-1",
		BroadcastID: "yt-broadcast-1",
	}}
	router := newWebhookRouter(stub, store)

	rec := postEvent(router, webhookSecret, startedEvent)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if len(stub.actions) != 1 || stub.actions[0] != "start" {
		t.Fatalf("livestream actions = %v, want [start]", stub.actions)
	}
}

func TestWebhookSkipsLivestreamWithoutBroadcast(t *testing.T) {
	stub := newVendorStub(t)
	store := &fakeStore{meeting: &models.Meeting{
		MeetingID: "987654321",
		UserID:    uuid.New(),
		CourseID:  "course-v1:Uni+C1+2026",
		BlockID:   "block-1",
	}}
	router := newWebhookRouter(stub, store)

	rec := postEvent(router, webhookSecret, startedEvent)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if len(stub.actions) != 0 {
		t.Fatalf("livestream actions = %v, want none", stub.actions)
	}
}

func TestWebhookRejectsBadSecret(t *testing.T) {
	stub := newVendorStub(t)
	router := newWebhookRouter(stub, &fakeStore{})

	rec := postEvent(router, "wrong-secret", startedEvent)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
	if len(stub.actions) != 0 {
		t.Fatalf("livestream actions = %v, want none", stub.actions)
	}
}

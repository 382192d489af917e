package studio

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []string
}

func (n *recordingNotifier) record(e string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, e)
}

func (n *recordingNotifier) SaveStart() { n.record("save_start") }
func (n *recordingNotifier) SaveEnd()   { n.record("save_end") }
func (n *recordingNotifier) Cancel()    { n.record("cancel") }

func (n *recordingNotifier) Error(title, msg string) { n.record("error:" + msg) }

func (n *recordingNotifier) has(e string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, got := range n.events {
		if got == e {
			return true
		}
	}
	return false
}

// testBackend is a fake of the three endpoints the pipeline submits to,
// recording every call and the form it carried.
type testBackend struct {
	mu    sync.Mutex
	calls []string
	forms map[string]map[string]string

	meetingResponse   map[string]string
	broadcastResponse map[string]string
	server            *httptest.Server
}

func newTestBackend(t *testing.T) *testBackend {
	t.Helper()
	b := &testBackend{
		forms:             map[string]map[string]string{},
		meetingResponse:   map[string]string{"meeting_id": "111", "start_url": "https://v/s/111", "join_url": "https://v/j/111", "meeting_password": "pw111"},
		broadcastResponse: map[string]string{"status": "ok", "id_broadcast": "yt-1"},
	}
	b.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse form on %s: %v", r.URL.Path, err)
		}
		fields := map[string]string{}
		for k, v := range r.MultipartForm.Value {
			if len(v) > 0 {
				fields[k] = v[0]
			}
		}
		b.mu.Lock()
		b.calls = append(b.calls, r.URL.Path)
		b.forms[r.URL.Path] = fields
		b.mu.Unlock()

		switch r.URL.Path {
		case "/create_meeting", "/update_meeting":
			json.NewEncoder(w).Encode(b.meetingResponse)
		case "/create_broadcast", "/update_broadcast":
			json.NewEncoder(w).Encode(b.broadcastResponse)
		default:
			w.Write([]byte("saved"))
		}
	}))
	t.Cleanup(b.server.Close)
	return b
}

func (b *testBackend) settings() Settings {
	base := b.server.URL
	return Settings{
		Endpoints: Endpoints{
			CreateMeeting:   base + "/create_meeting",
			UpdateMeeting:   base + "/update_meeting",
			CreateBroadcast: base + "/create_broadcast",
			UpdateBroadcast: base + "/update_broadcast",
			Persist:         base + "/persist",
		},
		CourseID:            "course-v1:U+C1+2026",
		BlockID:             "block-1",
		UserID:              "u-1",
		CreatorID:           "u-1",
		BroadcastPermission: BroadcastPermissionEnabled,
		MaxParticipants:     300,
	}
}

func (b *testBackend) called(path string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, p := range b.calls {
		if p == path {
			return true
		}
	}
	return false
}

func validDraft() Draft {
	return Draft{
		DisplayName: "Clase 1",
		Description: "Intro",
		Date:        "2026-09-01",
		Time:        "14:30",
		Duration:    "60",
	}
}

func TestValidationBlocksWithoutNetworkCalls(t *testing.T) {
	backend := newTestBackend(t)

	cases := []struct {
		name string
		mut  func(*Draft)
		perm string
	}{
		{"empty display name", func(d *Draft) { d.DisplayName = "" }, BroadcastPermissionEnabled},
		{"empty date", func(d *Draft) { d.Date = "" }, BroadcastPermissionEnabled},
		{"empty time", func(d *Draft) { d.Time = "" }, BroadcastPermissionEnabled},
		{"empty duration", func(d *Draft) { d.Duration = "" }, BroadcastPermissionEnabled},
		{"negative duration", func(d *Draft) { d.Duration = "-5" }, BroadcastPermissionEnabled},
		{"broadcast without permission", func(d *Draft) { d.Broadcast = true }, "0"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			settings := backend.settings()
			settings.BroadcastPermission = tc.perm
			o := NewOrchestrator(settings, nil, nil, nil)
			draft := validDraft()
			tc.mut(&draft)

			_, err := o.Save(context.Background(), draft)
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("err = %v, want ErrValidation", err)
			}
		})
	}
	if len(backend.calls) != 0 {
		t.Errorf("network calls issued on validation failure: %v", backend.calls)
	}
}

func TestSaveNewMeetingUsesCreate(t *testing.T) {
	backend := newTestBackend(t)
	notifier := &recordingNotifier{}
	o := NewOrchestrator(backend.settings(), notifier, nil, nil)

	result, err := o.Save(context.Background(), validDraft())
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !backend.called("/create_meeting") || backend.called("/update_meeting") {
		t.Errorf("calls = %v, want create without update", backend.calls)
	}
	if result.MeetingID != "111" || result.StartURL != "https://v/s/111" || result.MeetingPassword != "pw111" {
		t.Errorf("result = %+v", result)
	}
	if !backend.called("/persist") {
		t.Error("persist was not called")
	}
	if !notifier.has("save_start") || !notifier.has("save_end") {
		t.Errorf("notifier events = %v", notifier.events)
	}

	persisted := backend.forms["/persist"]
	if persisted["meeting_id"] != "111" || persisted["join_url"] != "https://v/j/111" {
		t.Errorf("persisted form = %v", persisted)
	}
}

func TestSaveExistingMeetingCarriesLinksForward(t *testing.T) {
	backend := newTestBackend(t)
	// An update answer only echoes the meeting id; any link fields it carries
	// must be ignored.
	backend.meetingResponse = map[string]string{
		"meeting_id": "222",
		"start_url":  "https://drifted/s",
		"join_url":   "https://drifted/j",
	}

	settings := backend.settings()
	settings.MeetingID = "222"
	settings.StartURL = "https://v/s/222"
	settings.JoinURL = "https://v/j/222"
	settings.MeetingPassword = "pw222"
	o := NewOrchestrator(settings, nil, nil, nil)

	result, err := o.Save(context.Background(), validDraft())
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if backend.called("/create_meeting") || !backend.called("/update_meeting") {
		t.Errorf("calls = %v, want update without create", backend.calls)
	}
	if result.StartURL != "https://v/s/222" || result.JoinURL != "https://v/j/222" || result.MeetingPassword != "pw222" {
		t.Errorf("result = %+v, stored links must be carried forward", result)
	}

	persisted := backend.forms["/persist"]
	if persisted["start_url"] != "https://v/s/222" || persisted["join_url"] != "https://v/j/222" || persisted["meeting_password"] != "pw222" {
		t.Errorf("persisted form = %v, stored links must be carried forward", persisted)
	}
	if persisted["meeting_id"] != "222" {
		t.Errorf("persisted meeting_id = %q", persisted["meeting_id"])
	}
}

func TestBroadcastFailureAbortsPersist(t *testing.T) {
	backend := newTestBackend(t)
	backend.broadcastResponse = map[string]string{"status": "error", "text": "youtube_500"}
	notifier := &recordingNotifier{}
	o := NewOrchestrator(backend.settings(), notifier, nil, nil)

	draft := validDraft()
	draft.Broadcast = true
	_, err := o.Save(context.Background(), draft)
	if !errors.Is(err, ErrBroadcastRejected) {
		t.Fatalf("err = %v, want ErrBroadcastRejected", err)
	}
	if backend.called("/persist") {
		t.Error("persist must not run after a rejected broadcast")
	}
	if !notifier.has("error:" + errMsgYouTubeProvision) {
		t.Errorf("notifier events = %v, want provisioning message", notifier.events)
	}
}

func TestBroadcastDisabledSkipsBroadcastEndpoint(t *testing.T) {
	backend := newTestBackend(t)
	o := NewOrchestrator(backend.settings(), nil, nil, nil)

	if _, err := o.Save(context.Background(), validDraft()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if backend.called("/create_broadcast") || backend.called("/update_broadcast") {
		t.Errorf("calls = %v, broadcast endpoints must not be touched", backend.calls)
	}
}

func TestBroadcastSuccessAddsBroadcastID(t *testing.T) {
	backend := newTestBackend(t)
	o := NewOrchestrator(backend.settings(), nil, nil, nil)

	draft := validDraft()
	draft.Broadcast = true
	result, err := o.Save(context.Background(), draft)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if result.BroadcastID != "yt-1" {
		t.Errorf("BroadcastID = %q", result.BroadcastID)
	}
	if got := backend.forms["/persist"]["id_broadcast"]; got != "yt-1" {
		t.Errorf("persisted id_broadcast = %q", got)
	}
	if !backend.called("/create_broadcast") {
		t.Errorf("calls = %v, want create_broadcast", backend.calls)
	}
}

func TestConcurrentSaveIsRejected(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	var once sync.Once
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		once.Do(func() { close(entered) })
		<-release
		json.NewEncoder(w).Encode(map[string]string{"meeting_id": "111"})
	}))
	defer srv.Close()

	settings := Settings{
		Endpoints: Endpoints{
			CreateMeeting: srv.URL + "/create_meeting",
			Persist:       srv.URL + "/persist",
		},
	}
	o := NewOrchestrator(settings, nil, nil, nil)

	done := make(chan error, 1)
	go func() {
		_, err := o.Save(context.Background(), validDraft())
		done <- err
	}()
	<-entered

	if _, err := o.Save(context.Background(), validDraft()); !errors.Is(err, ErrSaveInProgress) {
		t.Errorf("second save err = %v, want ErrSaveInProgress", err)
	}
	close(release)
	<-done
}

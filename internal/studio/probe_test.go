package studio

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func proberFor(t *testing.T, zoomBody, youtubeBody string, status int) *Prober {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		switch r.URL.Path {
		case "/zoom/is_logged":
			w.Write([]byte(zoomBody))
		case "/zoom/youtube_validate":
			w.Write([]byte(youtubeBody))
		}
	}))
	t.Cleanup(srv.Close)
	return NewProber(Settings{
		Endpoints: Endpoints{
			ZoomIsLogged:    srv.URL + "/zoom/is_logged",
			YouTubeValidate: srv.URL + "/zoom/youtube_validate",
		},
	}, nil, nil)
}

func TestZoomSessionAuthenticated(t *testing.T) {
	p := proberFor(t, `{"id":"z1","email":"prof@u.cl","type":2}`, `{}`, http.StatusOK)
	session := p.ZoomSession(context.Background())
	if !session.Authenticated {
		t.Fatal("expected authenticated session")
	}
	if session.Profile.Email != "prof@u.cl" || !session.Profile.Licensed() {
		t.Errorf("profile = %+v", session.Profile)
	}
}

func TestZoomSessionDegradesSilently(t *testing.T) {
	cases := []struct {
		name   string
		body   string
		status int
	}{
		{"null body", `null`, http.StatusOK},
		{"empty profile", `{}`, http.StatusOK},
		{"server error", `boom`, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := proberFor(t, tc.body, `{}`, tc.status)
			if session := p.ZoomSession(context.Background()); session.Authenticated {
				t.Errorf("session = %+v, want unauthenticated", session)
			}
		})
	}
}

func TestZoomSessionUnreachableHost(t *testing.T) {
	p := NewProber(Settings{
		Endpoints: Endpoints{ZoomIsLogged: "http://127.0.0.1:1/zoom/is_logged"},
	}, nil, nil)
	if session := p.ZoomSession(context.Background()); session.Authenticated {
		t.Error("transport failure must degrade to unauthenticated")
	}
}

func TestYouTubeSessionFlags(t *testing.T) {
	p := proberFor(t, `null`, `{"credentials":true,"channel":true,"livestream":false,"livestream_zoom":true}`, http.StatusOK)
	session := p.YouTubeSession(context.Background())
	if !session.Credentials || !session.Channel || session.Livestream {
		t.Errorf("session = %+v", session)
	}
	if session.Ready() {
		t.Error("Ready must require every flag")
	}
}

func TestGateLoggedOut(t *testing.T) {
	v := Gate(Settings{}, ZoomSession{}, YouTubeSession{})
	if !v.ShowLoginPrompt || v.ShowForm || v.AllowEdit {
		t.Errorf("view = %+v", v)
	}
}

func TestGateOwnership(t *testing.T) {
	settings := Settings{
		MeetingID:       "42",
		OwnerEmail:      "prof@u.cl",
		UserID:          "u-1",
		CreatorID:       "u-1",
		MaxParticipants: 300,
	}
	session := ZoomSession{Authenticated: true, Profile: ZoomProfile{Email: "prof@u.cl", Type: 2}}

	cases := []struct {
		name      string
		mut       func(*Settings, *ZoomSession)
		allowEdit bool
	}{
		{"creator with matching account", func(s *Settings, z *ZoomSession) {}, true},
		{"different vendor account", func(s *Settings, z *ZoomSession) { z.Profile.Email = "other@u.cl" }, false},
		{"different platform user", func(s *Settings, z *ZoomSession) { s.UserID = "u-2" }, false},
		{"no meeting yet", func(s *Settings, z *ZoomSession) { s.MeetingID = "" }, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s, z := settings, session
			tc.mut(&s, &z)
			v := Gate(s, z, YouTubeSession{})
			if v.AllowEdit != tc.allowEdit {
				t.Errorf("AllowEdit = %v, want %v", v.AllowEdit, tc.allowEdit)
			}
			if s.MeetingID != "" && v.ReadOnlyNotice == tc.allowEdit {
				t.Errorf("ReadOnlyNotice = %v with AllowEdit = %v", v.ReadOnlyNotice, v.AllowEdit)
			}
		})
	}
}

func TestGateLicenseAndCapacity(t *testing.T) {
	settings := Settings{EnrolledCount: 301, MaxParticipants: 300}

	basic := Gate(settings, ZoomSession{Authenticated: true, Profile: ZoomProfile{Email: "p@u.cl", Type: 1}}, YouTubeSession{})
	if basic.AllowRestrictedToggle || basic.LicenseText != licenseBasic {
		t.Errorf("basic view = %+v", basic)
	}
	if !basic.CapacityWarning {
		t.Error("expected capacity warning above the participant cap")
	}

	licensed := Gate(settings, ZoomSession{Authenticated: true, Profile: ZoomProfile{Email: "p@u.cl", Type: 2}}, YouTubeSession{})
	if !licensed.AllowRestrictedToggle || licensed.LicenseText != licenseLicensed {
		t.Errorf("licensed view = %+v", licensed)
	}
}

func TestGateBroadcastAvailability(t *testing.T) {
	ready := YouTubeSession{Credentials: true, Channel: true, Livestream: true, LivestreamZoom: true}
	session := ZoomSession{Authenticated: true, Profile: ZoomProfile{Email: "p@u.cl", Type: 2}}

	withPermission := Gate(Settings{BroadcastPermission: BroadcastPermissionEnabled}, session, ready)
	if !withPermission.BroadcastAvailable {
		t.Error("expected broadcast available with permission and all flags")
	}

	withoutPermission := Gate(Settings{BroadcastPermission: "yes"}, session, ready)
	if withoutPermission.BroadcastAvailable {
		t.Error("permission marker must match exactly")
	}

	missingFlag := ready
	missingFlag.LivestreamZoom = false
	partial := Gate(Settings{BroadcastPermission: BroadcastPermissionEnabled}, session, missingFlag)
	if partial.BroadcastAvailable {
		t.Error("any missing flag must disable broadcast")
	}
}

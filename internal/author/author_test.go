package author

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func resolverFor(t *testing.T, body string, opened *string) *Resolver {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("meeting_id") != "42" {
			t.Errorf("meeting_id = %q", r.URL.Query().Get("meeting_id"))
		}
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return NewResolver(Settings{
		JoinEndpoint: srv.URL + "/zoom/get_student_join_url",
		MeetingID:    "42",
	}, nil, func(url string) { *opened = url }, nil)
}

func TestResolveSuccessOpensTab(t *testing.T) {
	var opened string
	r := resolverFor(t, `{"status":true,"join_url":"https://x"}`, &opened)

	outcome := r.Resolve(context.Background())
	if !outcome.Opened || outcome.JoinURL != "https://x" {
		t.Errorf("outcome = %+v", outcome)
	}
	if opened != "https://x" {
		t.Errorf("opened tab = %q, want https://x", opened)
	}
	if outcome.Alert != "" {
		t.Errorf("alert = %q, want none on success", outcome.Alert)
	}
}

func TestResolveErrorMessages(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"not enrolled", `{"status":false,"error_type":"NOT_FOUND"}`, msgNotFound},
		{"not started", `{"status":false,"error_type":"NOT_STARTED"}`, msgNotStarted},
		{"unknown error", `{"status":false,"error_type":"WEIRD"}`, msgGeneric},
		{"malformed body", `nope`, msgGeneric},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var opened string
			r := resolverFor(t, tc.body, &opened)

			outcome := r.Resolve(context.Background())
			if outcome.Opened || opened != "" {
				t.Errorf("no tab must open on failure, outcome = %+v", outcome)
			}
			if outcome.Alert != tc.want {
				t.Errorf("alert = %q, want %q", outcome.Alert, tc.want)
			}
		})
	}
}

func TestResolveTransportFailure(t *testing.T) {
	r := NewResolver(Settings{
		JoinEndpoint: "http://127.0.0.1:1/zoom/get_student_join_url",
		MeetingID:    "42",
	}, nil, nil, nil)
	if outcome := r.Resolve(context.Background()); outcome.Opened || outcome.Alert != msgGeneric {
		t.Errorf("outcome = %+v", outcome)
	}
}

func TestHostStartLinkRestricted(t *testing.T) {
	s := Settings{
		VendorBase:   "https://zoom.us/oauth/authorize?response_type=code&client_id=abc&redirect_uri=",
		Origin:       "https://lms.example",
		CallbackPath: "/zoom/start_meeting",
		MeetingID:    "42",
		BlockID:      "block-1",
		Restricted:   true,
		StartURL:     "https://zoom.example/s/42",
	}
	link, err := s.HostStartLink()
	if err != nil {
		t.Fatalf("HostStartLink: %v", err)
	}
	if link == s.StartURL {
		t.Error("restricted meeting must route through the OAuth hop")
	}
	want := "https%3A%2F%2Flms.example%2Fzoom%2Fstart_meeting"
	if !strings.Contains(link, want) {
		t.Errorf("link = %q, want encoded callback %q", link, want)
	}
	if !strings.Contains(link, "?data=") {
		t.Errorf("link = %q, want data payload", link)
	}
}

func TestHostStartLinkPublic(t *testing.T) {
	s := Settings{Restricted: false, StartURL: "https://zoom.example/s/42"}
	link, err := s.HostStartLink()
	if err != nil {
		t.Fatalf("HostStartLink: %v", err)
	}
	if link != s.StartURL {
		t.Errorf("link = %q, want stored start URL", link)
	}
}

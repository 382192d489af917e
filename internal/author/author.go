// Package author implements the viewer-facing flow: building the host's
// start link and resolving a student's personalized join link, with the
// localized messages the page renders on failure.
package author

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/liveclass-lms/backend/pkg/redirect"
)

// Join resolution error types, part of the join endpoint contract.
const (
	ErrorNotFound   = "NOT_FOUND"
	ErrorNotStarted = "NOT_STARTED"
)

// Localized messages rendered in the viewer's alert panel.
const (
	msgNotFound   = "No te encuentras inscrito en esta clase. Si acabas de inscribirte, espera unos minutos e inténtalo nuevamente."
	msgNotStarted = "La clase aún no ha comenzado. Inténtalo nuevamente cuando el profesor haya iniciado la transmisión."
	msgGeneric    = "Se ha producido un error al obtener tu enlace. Inténtalo nuevamente."
	msgRedirect   = "Redirigiendo a la clase. Si no se abre automáticamente, usa el siguiente enlace:"
)

// Settings is the immutable per-page configuration of the viewer surface.
type Settings struct {
	JoinEndpoint string // join resolution endpoint, host-configured
	VendorBase   string // vendor OAuth entry URL for the start hop
	Origin       string // current page origin
	CallbackPath string // start callback path on the origin

	MeetingID  string
	BlockID    string
	Restricted bool
	StartURL   string // stable start link stored at creation
}

// startPayload identifies the meeting to return to after the start hop.
type startPayload struct {
	MeetingID string `json:"meeting_id"`
	BlockID   string `json:"block_id"`
}

// HostStartLink builds the link the host clicks to start the meeting. A
// restricted meeting routes through the vendor OAuth hop so the backend gets
// a fresh code to register students with; a public one starts directly.
func (s Settings) HostStartLink() (string, error) {
	if !s.Restricted {
		return s.StartURL, nil
	}
	return redirect.StartURL(s.VendorBase, s.Origin, s.CallbackPath, startPayload{
		MeetingID: s.MeetingID,
		BlockID:   s.BlockID,
	})
}

// Outcome is the rendered result of one join resolution.
type Outcome struct {
	Opened  bool   // a tab was opened at JoinURL
	JoinURL string // manual fallback link when Opened
	Notice  string // redirecting notice shown next to the fallback link
	Alert   string // localized alert panel message when not Opened
}

// TabOpener opens a URL in a new browser tab. Injected so tests observe the
// open without a browser.
type TabOpener func(url string)

// Resolver fetches a student's personalized join link and maps failures to
// the localized messages the page shows.
type Resolver struct {
	settings Settings
	http     *http.Client
	open     TabOpener
	logger   *zap.Logger
}

// NewResolver creates a join-link resolver.
func NewResolver(settings Settings, httpClient *http.Client, open TabOpener, logger *zap.Logger) *Resolver {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	if open == nil {
		open = func(string) {}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{settings: settings, http: httpClient, open: open, logger: logger}
}

type joinResponse struct {
	Status    bool   `json:"status"`
	JoinURL   string `json:"join_url"`
	ErrorType string `json:"error_type"`
}

// Resolve fetches the join link for the configured meeting. On success the
// tab opener fires and the outcome carries the redirecting notice with the
// manual fallback; on failure the outcome carries the localized alert and no
// tab opens.
func (r *Resolver) Resolve(ctx context.Context) Outcome {
	url := fmt.Sprintf("%s?meeting_id=%s", r.settings.JoinEndpoint, r.settings.MeetingID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Outcome{Alert: msgGeneric}
	}
	resp, err := r.http.Do(req)
	if err != nil {
		r.logger.Warn("join resolution failed", zap.Error(err), zap.String("meeting_id", r.settings.MeetingID))
		return Outcome{Alert: msgGeneric}
	}
	defer resp.Body.Close()

	var body joinResponse
	if resp.StatusCode != http.StatusOK || json.NewDecoder(resp.Body).Decode(&body) != nil {
		return Outcome{Alert: msgGeneric}
	}
	if !body.Status {
		return Outcome{Alert: alertFor(body.ErrorType)}
	}

	r.open(body.JoinURL)
	return Outcome{Opened: true, JoinURL: body.JoinURL, Notice: msgRedirect}
}

func alertFor(errorType string) string {
	switch errorType {
	case ErrorNotFound:
		return msgNotFound
	case ErrorNotStarted:
		return msgNotStarted
	default:
		return msgGeneric
	}
}

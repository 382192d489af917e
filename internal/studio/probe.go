package studio

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// ZoomProfile is the vendor account metadata reported by the session probe.
type ZoomProfile struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Type  int    `json:"type"`
}

// Licensed reports whether the account tier allows restricted meetings.
func (p ZoomProfile) Licensed() bool {
	return p.Type >= 2
}

// ZoomSession is the two-state probe result for the meeting vendor. A failed
// or empty probe is Unauthenticated; there is deliberately no error state,
// the editor degrades to its logged-out rendering instead.
type ZoomSession struct {
	Authenticated bool
	Profile       ZoomProfile
}

// YouTubeSession reports the broadcast vendor permissions, each probed
// independently.
type YouTubeSession struct {
	Credentials    bool `json:"credentials"`
	Channel        bool `json:"channel"`
	Livestream     bool `json:"livestream"`
	LivestreamZoom bool `json:"livestream_zoom"`
}

// Ready reports whether every permission a broadcast needs is in place.
func (s YouTubeSession) Ready() bool {
	return s.Credentials && s.Channel && s.Livestream && s.LivestreamZoom
}

// Prober queries the session endpoints that gate the editor form.
type Prober struct {
	settings Settings
	http     *http.Client
	logger   *zap.Logger
}

// NewProber creates a session prober for one editor page.
func NewProber(settings Settings, httpClient *http.Client, logger *zap.Logger) *Prober {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Prober{settings: settings, http: httpClient, logger: logger}
}

// get fetches a probe endpoint into dst. Any transport error or non-200
// answer leaves dst untouched and reports false.
func (p *Prober) get(ctx context.Context, url string, dst interface{}) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}
	resp, err := p.http.Do(req)
	if err != nil {
		p.logger.Debug("session probe failed", zap.String("url", url), zap.Error(err))
		return false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return false
	}
	return true
}

// ZoomSession probes the meeting vendor session. A null body, an error or an
// empty profile all degrade to Unauthenticated.
func (p *Prober) ZoomSession(ctx context.Context) ZoomSession {
	var profile *ZoomProfile
	if !p.get(ctx, p.settings.Endpoints.ZoomIsLogged, &profile) || profile == nil || profile.Email == "" {
		return ZoomSession{}
	}
	return ZoomSession{Authenticated: true, Profile: *profile}
}

// YouTubeSession probes the broadcast vendor permissions. A failed probe
// reports every flag false.
func (p *Prober) YouTubeSession(ctx context.Context) YouTubeSession {
	var session YouTubeSession
	if !p.get(ctx, p.settings.Endpoints.YouTubeValidate, &session) {
		return YouTubeSession{}
	}
	return session
}

// View is the set of gating decisions the editor renders from the probe
// results.
type View struct {
	ShowLoginPrompt       bool
	ShowForm              bool
	LicenseText           string
	CapacityWarning       bool
	AllowEdit             bool
	ReadOnlyNotice        bool
	AllowRestrictedToggle bool
	BroadcastAvailable    bool
}

// License tier labels rendered next to the connected account.
const (
	licenseBasic    = "Cuenta Básica"
	licenseLicensed = "Cuenta Licenciada"
)

// Gate reconciles the probe results with the stored block state into the
// editor's gating decisions.
func Gate(s Settings, z ZoomSession, y YouTubeSession) View {
	v := View{}
	if !z.Authenticated {
		v.ShowLoginPrompt = true
		return v
	}
	v.ShowForm = true

	if z.Profile.Licensed() {
		v.LicenseText = licenseLicensed
		v.AllowRestrictedToggle = true
	} else {
		v.LicenseText = licenseBasic
	}
	v.CapacityWarning = s.EnrolledCount > s.MaxParticipants

	// Only the creator, still holding the same vendor account, may edit an
	// existing meeting.
	if !s.HasMeeting() {
		v.AllowEdit = true
	} else if z.Profile.Email == s.OwnerEmail && s.UserID == s.CreatorID {
		v.AllowEdit = true
	} else {
		v.ReadOnlyNotice = true
	}

	v.BroadcastAvailable = s.BroadcastPermission == BroadcastPermissionEnabled && y.Ready()
	return v
}

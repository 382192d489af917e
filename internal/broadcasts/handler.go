package broadcasts

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/liveclass-lms/backend/config"
	"github.com/liveclass-lms/backend/internal/meetings"
	"github.com/liveclass-lms/backend/internal/middleware"
	"github.com/liveclass-lms/backend/internal/zoom"
	"github.com/liveclass-lms/backend/pkg/redirect"
	"github.com/liveclass-lms/backend/pkg/response"
)

// Broadcast endpoint status strings, part of the block front-end contract.
const (
	statusOK    = "ok"
	statusError = "error"

	// textUnavailable tells the block the vendor itself failed, so it renders
	// a retry hint instead of a permissions walkthrough.
	textUnavailable = "youtube_500"
)

// Handler handles the YouTube live-broadcast endpoints consumed by the course
// block.
type Handler struct {
	cfg      *config.Config
	repo     *Repository
	meetings *meetings.Repository
	zoom     *zoom.Client
	tokens   *zoom.TokenManager
	yt       *YouTube
	logger   *zap.Logger
}

// NewHandler creates a broadcasts handler.
func NewHandler(cfg *config.Config, repo *Repository, meetingRepo *meetings.Repository, zoomClient *zoom.Client, tokens *zoom.TokenManager, yt *YouTube, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{cfg: cfg, repo: repo, meetings: meetingRepo, zoom: zoomClient, tokens: tokens, yt: yt, logger: logger}
}

func broadcastOK(c *gin.Context, broadcastID string) {
	response.Raw(c, gin.H{"status": statusOK, "id_broadcast": broadcastID, "text": ""})
}

func broadcastError(c *gin.Context, err error, text string) {
	if errors.Is(err, ErrYouTubeUnavailable) {
		text = textUnavailable
	}
	response.Raw(c, gin.H{"status": statusError, "id_broadcast": "", "text": text})
}

// AuthGoogle handles GET /zoom/auth_google: sends the browser into the Google
// consent flow. The page to return to travels in the OAuth state parameter.
func (h *Handler) AuthGoogle(c *gin.Context) {
	back := c.Query("redirect")
	if back == "" {
		response.BadRequest(c, "missing redirect")
		return
	}
	c.Redirect(http.StatusFound, h.yt.AuthURL(redirect.EncodeState(back)))
}

// CallbackGoogleAuth handles GET /zoom/callback_google_auth: stores the
// exchanged token and bounces the browser back to the page encoded in state.
func (h *Handler) CallbackGoogleAuth(c *gin.Context) {
	code := c.Query("code")
	state := c.Query("state")
	if code == "" || state == "" {
		response.BadRequest(c, "missing code or state")
		return
	}
	back, err := redirect.DecodeState(state)
	if err != nil {
		response.BadRequest(c, "invalid state")
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	token, err := h.yt.Exchange(c.Request.Context(), code)
	if err != nil {
		h.logger.Error("google code exchange failed", zap.Error(err), zap.String("user_id", userID.String()))
		response.Internal(c, "failed to link google account")
		return
	}
	if err := h.repo.SaveToken(c.Request.Context(), userID, token); err != nil {
		h.logger.Error("save google token failed", zap.Error(err), zap.String("user_id", userID.String()))
		response.Internal(c, "failed to save google credentials")
		return
	}
	// Freshly linked account: record what the new credentials can do so the
	// block renders the right checklist on the page it returns to.
	h.validate(c.Request.Context(), userID, token)
	c.Redirect(http.StatusFound, back)
}

// validationFlags maps the cached (or freshly probed) permission state to the
// shape the block consumes.
func validationFlags(credentials bool, v Validation) gin.H {
	return gin.H{
		"credentials":     credentials,
		"channel":         v.ChannelEnabled,
		"livestream":      v.LivebroadcastEnabled,
		"livestream_zoom": v.CustomLiveStreaming,
	}
}

// validate probes every permission a broadcast needs and caches the outcome.
// Each flag fails independently so the block can tell the instructor exactly
// which step to fix.
func (h *Handler) validate(ctx context.Context, userID uuid.UUID, token *oauth2.Token) Validation {
	v := Validation{}
	if ok, err := h.yt.HasChannel(ctx, token); err == nil {
		v.ChannelEnabled = ok
	} else {
		h.logger.Warn("channel probe failed", zap.Error(err), zap.String("user_id", userID.String()))
	}
	if v.ChannelEnabled {
		if ok, err := h.yt.CanBroadcast(ctx, token); err == nil {
			v.LivebroadcastEnabled = ok
		} else {
			h.logger.Warn("broadcast probe failed", zap.Error(err), zap.String("user_id", userID.String()))
		}
	}

	if accessToken, err := h.tokens.AccessToken(ctx, userID); err == nil {
		if ok, err := h.zoom.LiveStreamingEnabled(ctx, accessToken); err == nil {
			v.CustomLiveStreaming = ok
		}
	}

	if err := h.repo.SaveValidation(ctx, userID, v); err != nil {
		h.logger.Warn("save validation failed", zap.Error(err), zap.String("user_id", userID.String()))
	}
	return v
}

// GoogleIsLogged handles GET /zoom/google_is_logged. Answers the cached
// permission flags without touching the vendor; probe failures and unlinked
// accounts degrade to all-false, matching the Zoom session probe.
func (h *Handler) GoogleIsLogged(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	token, err := h.repo.GetToken(c.Request.Context(), userID)
	if err != nil || token == nil {
		if err != nil {
			h.logger.Warn("google credentials probe failed", zap.Error(err), zap.String("user_id", userID.String()))
		}
		response.Raw(c, validationFlags(false, Validation{}))
		return
	}
	cached, err := h.repo.GetValidation(c.Request.Context(), userID)
	if err != nil || cached == nil {
		response.Raw(c, validationFlags(true, Validation{}))
		return
	}
	response.Raw(c, validationFlags(true, *cached))
}

// YouTubeValidate handles GET /zoom/youtube_validate: re-probes every
// permission against the vendors and refreshes the cache.
func (h *Handler) YouTubeValidate(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	token, err := h.repo.GetToken(c.Request.Context(), userID)
	if err != nil || token == nil {
		response.Raw(c, validationFlags(false, Validation{}))
		return
	}
	response.Raw(c, validationFlags(true, h.validate(c.Request.Context(), userID, token)))
}

// broadcastForm reads the live-broadcast form fields shared by create and
// update.
func broadcastForm(c *gin.Context) (meetingID, title, description, date, startTime string, ok bool) {
	fields := map[string]string{}
	for _, name := range []string{"meeting_id", "display_name", "description", "date", "time"} {
		v, present := c.GetPostForm(name)
		if !present {
			response.BadRequest(c, "missing field: "+name)
			return "", "", "", "", "", false
		}
		fields[name] = v
	}
	return fields["meeting_id"], fields["display_name"], fields["description"], fields["date"], fields["time"], true
}

// CreateLiveBroadcast handles POST /zoom/create_livebroadcast: creates the
// broadcast and its stream, points the meeting's livestream at it and records
// the broadcast id. Any step failing leaves the meeting itself intact and
// reports an error status the block can show.
func (h *Handler) CreateLiveBroadcast(c *gin.Context) {
	meetingID, title, description, date, startTime, ok := broadcastForm(c)
	if !ok {
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	meeting, err := h.meetings.GetByID(c.Request.Context(), meetingID)
	if err != nil || meeting == nil {
		broadcastError(c, err, "meeting not found")
		return
	}
	if meeting.UserID != userID {
		response.Forbidden(c, "meeting belongs to another host")
		return
	}

	token, err := h.repo.GetToken(c.Request.Context(), userID)
	if err != nil || token == nil {
		broadcastError(c, err, "google account not connected")
		return
	}

	broadcast, err := h.yt.CreateBroadcast(c.Request.Context(), token, title, description, date, startTime)
	if err != nil {
		h.logger.Error("create broadcast failed", zap.Error(err), zap.String("meeting_id", meetingID))
		broadcastError(c, err, "failed to create broadcast")
		return
	}

	accessToken, err := h.tokens.AccessToken(c.Request.Context(), userID)
	if err != nil {
		broadcastError(c, err, "zoom account not connected")
		return
	}
	ls := zoom.Livestream{
		StreamURL: broadcast.StreamURL,
		StreamKey: broadcast.StreamKey,
		PageURL:   broadcast.WatchURL(),
	}
	if err := h.zoom.SetLivestream(c.Request.Context(), accessToken, meetingID, ls); err != nil {
		h.logger.Error("set livestream failed", zap.Error(err), zap.String("meeting_id", meetingID))
		broadcastError(c, err, "failed to configure meeting livestream")
		return
	}

	if err := h.meetings.SetBroadcastID(c.Request.Context(), meetingID, broadcast.ID); err != nil {
		h.logger.Error("save broadcast id failed", zap.Error(err), zap.String("meeting_id", meetingID))
		broadcastError(c, err, "failed to save broadcast")
		return
	}
	broadcastOK(c, broadcast.ID)
}

// UpdateLiveBroadcast handles POST /zoom/livebroadcast_update: rewrites the
// linked broadcast's metadata and schedule. The broadcast id never changes.
func (h *Handler) UpdateLiveBroadcast(c *gin.Context) {
	meetingID, title, description, date, startTime, ok := broadcastForm(c)
	if !ok {
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	meeting, err := h.meetings.GetByID(c.Request.Context(), meetingID)
	if err != nil || meeting == nil {
		broadcastError(c, err, "meeting not found")
		return
	}
	if meeting.UserID != userID {
		response.Forbidden(c, "meeting belongs to another host")
		return
	}
	if meeting.BroadcastID == "" {
		broadcastError(c, nil, "meeting has no broadcast")
		return
	}

	token, err := h.repo.GetToken(c.Request.Context(), userID)
	if err != nil || token == nil {
		broadcastError(c, err, "google account not connected")
		return
	}

	if err := h.yt.UpdateBroadcast(c.Request.Context(), token, meeting.BroadcastID, title, description, date, startTime); err != nil {
		h.logger.Error("update broadcast failed", zap.Error(err), zap.String("meeting_id", meetingID))
		broadcastError(c, err, "failed to update broadcast")
		return
	}
	broadcastOK(c, meeting.BroadcastID)
}

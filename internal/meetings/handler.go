package meetings

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/liveclass-lms/backend/config"
	"github.com/liveclass-lms/backend/internal/middleware"
	"github.com/liveclass-lms/backend/internal/models"
	"github.com/liveclass-lms/backend/internal/zoom"
	"github.com/liveclass-lms/backend/pkg/queue"
	"github.com/liveclass-lms/backend/pkg/redirect"
	"github.com/liveclass-lms/backend/pkg/response"
)

// Join resolution error types returned by GetStudentJoinURL.
const (
	JoinErrorNotFound   = "NOT_FOUND"
	JoinErrorNotStarted = "NOT_STARTED"
)

// EnrollmentLister lists the active enrollee emails of a course, used to fan
// out meeting-start notifications for public meetings.
type EnrollmentLister interface {
	ListActiveEmails(ctx context.Context, courseID string, exclude uuid.UUID) ([]string, error)
}

// Store persists meeting mappings and registrant join links.
type Store interface {
	Create(ctx context.Context, m *models.Meeting) error
	Upsert(ctx context.Context, m *models.Meeting) error
	GetByID(ctx context.Context, meetingID string) (*models.Meeting, error)
	GetRegistrant(ctx context.Context, meetingID, email string) (*models.Registrant, error)
	CountRegistrants(ctx context.Context, meetingID string) (int, error)
}

// Handler handles the meeting HTTP endpoints consumed by the course block.
type Handler struct {
	cfg         *config.Config
	repo        Store
	zoom        *zoom.Client
	tokens      *zoom.TokenManager
	queue       *queue.Queue
	enrollments EnrollmentLister
	logger      *zap.Logger
}

// NewHandler creates a meetings handler.
func NewHandler(cfg *config.Config, repo Store, client *zoom.Client, tokens *zoom.TokenManager, q *queue.Queue, enrollments EnrollmentLister, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{cfg: cfg, repo: repo, zoom: client, tokens: tokens, queue: q, enrollments: enrollments, logger: logger}
}

// callbackRedirectURI rebuilds the redirect_uri the vendor validated during the
// authorization hop: the full callback URL with everything from the code
// parameter on cut off. The vendor appends &code=... to whatever entry URL the
// block built, so this reconstruction matches byte for byte.
func (h *Handler) callbackRedirectURI(c *gin.Context) string {
	uri := c.Request.RequestURI
	if i := strings.Index(uri, "&code"); i >= 0 {
		uri = uri[:i]
	}
	return h.cfg.Server.ExternalURL + uri
}

// OAuthCallback handles GET /zoom/api: exchanges the authorization code,
// stores the rotated refresh token and bounces the browser back to the page
// the login hop started from.
func (h *Handler) OAuthCallback(c *gin.Context) {
	code := c.Query("code")
	back := c.Query("redirect")
	if code == "" || back == "" {
		response.BadRequest(c, "missing code or redirect")
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	if err := h.tokens.Authorize(c.Request.Context(), userID, code, h.callbackRedirectURI(c)); err != nil {
		h.logger.Error("zoom authorize failed", zap.Error(err), zap.String("user_id", userID.String()))
		response.Internal(c, "failed to link zoom account")
		return
	}
	c.Redirect(http.StatusFound, back)
}

// IsLogged handles GET /zoom/is_logged. Answers the linked Zoom profile, or
// null when the user has no working Zoom session. Probe failures degrade to
// null so the block renders its login prompt instead of an error page.
func (h *Handler) IsLogged(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	accessToken, err := h.tokens.AccessToken(c.Request.Context(), userID)
	if err != nil {
		if !errors.Is(err, zoom.ErrNotConnected) {
			h.logger.Warn("zoom session probe failed", zap.Error(err), zap.String("user_id", userID.String()))
		}
		response.Raw(c, nil)
		return
	}
	profile, err := h.zoom.UserProfile(c.Request.Context(), accessToken)
	if err != nil {
		h.logger.Warn("zoom profile probe failed", zap.Error(err), zap.String("user_id", userID.String()))
		response.Raw(c, nil)
		return
	}
	response.Raw(c, profile)
}

// meetingForm reads the scheduled-meeting form fields. Every field must be
// present; an absent field is a malformed submission, not a default.
func meetingForm(c *gin.Context) (zoom.MeetingParams, *models.Meeting, bool) {
	fields := map[string]string{}
	for _, name := range []string{"display_name", "description", "date", "time", "duration", "restricted_access", "email_notification", "course_id", "block_id"} {
		v, ok := c.GetPostForm(name)
		if !ok {
			response.BadRequest(c, "missing field: "+name)
			return zoom.MeetingParams{}, nil, false
		}
		fields[name] = v
	}
	duration, err := strconv.Atoi(fields["duration"])
	if err != nil || duration < 0 {
		response.BadRequest(c, "invalid duration")
		return zoom.MeetingParams{}, nil, false
	}
	params := zoom.MeetingParams{
		Topic:            fields["display_name"],
		Agenda:           fields["description"],
		Date:             fields["date"],
		Time:             fields["time"],
		Duration:         duration,
		RestrictedAccess: fields["restricted_access"] == "true",
	}
	meeting := &models.Meeting{
		Title:             fields["display_name"],
		CourseID:          fields["course_id"],
		BlockID:           fields["block_id"],
		RestrictedAccess:  params.RestrictedAccess,
		EmailNotification: fields["email_notification"] == "true",
	}
	return params, meeting, true
}

// CreateScheduledMeeting handles POST /zoom/new_scheduled_meeting.
func (h *Handler) CreateScheduledMeeting(c *gin.Context) {
	params, meeting, ok := meetingForm(c)
	if !ok {
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	accessToken, err := h.tokens.AccessToken(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, zoom.ErrNotConnected) {
			response.Unauthorized(c, "zoom account not connected")
			return
		}
		response.Internal(c, "failed to reach zoom")
		return
	}

	created, err := h.zoom.CreateMeeting(c.Request.Context(), accessToken, params)
	if err != nil {
		h.logger.Error("create meeting failed", zap.Error(err), zap.String("user_id", userID.String()))
		response.Internal(c, "failed to create meeting")
		return
	}

	meeting.MeetingID = created.MeetingID
	meeting.UserID = userID
	if err := h.repo.Create(c.Request.Context(), meeting); err != nil {
		h.logger.Error("save meeting mapping failed", zap.Error(err), zap.String("meeting_id", created.MeetingID))
		response.Internal(c, "failed to save meeting")
		return
	}

	response.Raw(c, gin.H{
		"meeting_id":       created.MeetingID,
		"start_url":        created.StartURL,
		"join_url":         created.JoinURL,
		"meeting_password": created.Password,
	})
}

// UpdateScheduledMeeting handles POST /zoom/update_scheduled_meeting. The
// vendor answers the patch with no body, so only the unchanged meeting id is
// returned; the block keeps its stored start/join links and password.
func (h *Handler) UpdateScheduledMeeting(c *gin.Context) {
	params, updated, ok := meetingForm(c)
	if !ok {
		return
	}
	meetingID, ok := c.GetPostForm("meeting_id")
	if !ok || meetingID == "" {
		response.BadRequest(c, "missing field: meeting_id")
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	existing, err := h.repo.GetByID(c.Request.Context(), meetingID)
	if err != nil {
		response.Internal(c, "failed to load meeting")
		return
	}
	if existing != nil && existing.UserID != userID {
		response.Forbidden(c, "meeting belongs to another host")
		return
	}

	accessToken, err := h.tokens.AccessToken(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, zoom.ErrNotConnected) {
			response.Unauthorized(c, "zoom account not connected")
			return
		}
		response.Internal(c, "failed to reach zoom")
		return
	}

	if err := h.zoom.UpdateMeeting(c.Request.Context(), accessToken, meetingID, params); err != nil {
		h.logger.Error("update meeting failed", zap.Error(err), zap.String("meeting_id", meetingID))
		response.Internal(c, "failed to update meeting")
		return
	}

	updated.MeetingID = meetingID
	updated.UserID = userID
	if err := h.repo.Upsert(c.Request.Context(), updated); err != nil {
		h.logger.Error("save meeting mapping failed", zap.Error(err), zap.String("meeting_id", meetingID))
		response.Internal(c, "failed to save meeting")
		return
	}

	response.Raw(c, gin.H{"meeting_id": meetingID})
}

// startPayload is the base64 JSON payload carried through the start-meeting
// OAuth hop.
type startPayload struct {
	MeetingID string `json:"meeting_id"`
	BlockID   string `json:"block_id"`
}

// StartMeeting handles GET /zoom/start_meeting: the return leg of the
// start-meeting OAuth hop. Refreshes the host's tokens with the fresh code and
// bounces the browser to the stable start link. Only the recorded host may
// start the meeting.
func (h *Handler) StartMeeting(c *gin.Context) {
	code := c.Query("code")
	data := c.Query("data")
	if code == "" || data == "" {
		response.BadRequest(c, "missing code or data")
		return
	}
	var payload startPayload
	if err := redirect.DecodeData(data, &payload); err != nil {
		response.BadRequest(c, "invalid data payload")
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	meeting, err := h.repo.GetByID(c.Request.Context(), payload.MeetingID)
	if err != nil {
		response.Internal(c, "failed to load meeting")
		return
	}
	if meeting == nil {
		response.NotFound(c, "meeting not found")
		return
	}
	if meeting.UserID != userID {
		response.Forbidden(c, "meeting belongs to another host")
		return
	}

	if err := h.tokens.Authorize(c.Request.Context(), userID, code, h.callbackRedirectURI(c)); err != nil {
		h.logger.Error("zoom authorize failed", zap.Error(err), zap.String("user_id", userID.String()))
		response.Internal(c, "failed to refresh zoom session")
		return
	}
	c.Redirect(http.StatusFound, h.zoom.StartURL(meeting.MeetingID))
}

// GetStudentJoinURL handles GET /zoom/get_student_join_url. Resolves the
// calling student's personalized join link for a restricted meeting. The link
// only exists once the host has started the meeting and registration has run.
func (h *Handler) GetStudentJoinURL(c *gin.Context) {
	meetingID := c.Query("meeting_id")
	if meetingID == "" {
		response.BadRequest(c, "missing meeting_id")
		return
	}
	email := c.MustGet(middleware.ContextUserEmail).(string)

	meeting, err := h.repo.GetByID(c.Request.Context(), meetingID)
	if err != nil {
		response.Internal(c, "failed to load meeting")
		return
	}
	if meeting == nil {
		response.Raw(c, gin.H{"status": false, "error_type": JoinErrorNotFound})
		return
	}

	reg, err := h.repo.GetRegistrant(c.Request.Context(), meetingID, email)
	if err != nil {
		response.Internal(c, "failed to load registrant")
		return
	}
	if reg == nil {
		// No registrants at all means the host has not started the meeting
		// yet; registrants without this student means they are not enrolled.
		n, err := h.repo.CountRegistrants(c.Request.Context(), meetingID)
		if err != nil {
			response.Internal(c, "failed to load registrants")
			return
		}
		errType := JoinErrorNotFound
		if n == 0 {
			errType = JoinErrorNotStarted
		}
		response.Raw(c, gin.H{"status": false, "error_type": errType})
		return
	}
	response.Raw(c, gin.H{"status": true, "join_url": reg.JoinURL})
}

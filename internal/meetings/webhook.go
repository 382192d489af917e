package meetings

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/liveclass-lms/backend/internal/models"
	"github.com/liveclass-lms/backend/pkg/queue"
	"github.com/liveclass-lms/backend/pkg/response"
)

const eventMeetingStarted = "meeting.started"

type webhookEvent struct {
	Event   string `json:"event"`
	Payload struct {
		Object struct {
			ID json.Number `json:"id"`
		} `json:"object"`
	} `json:"payload"`
}

// Webhook handles POST /zoom/events, the vendor's event notifications.
// On meeting.started it kicks off the linked broadcast, schedules registrant
// registration for restricted meetings and notification emails for public
// ones. Events for meetings this service never scheduled are acknowledged and
// dropped.
func (h *Handler) Webhook(c *gin.Context) {
	auth := c.GetHeader("Authorization")
	if h.cfg.Zoom.WebhookSecret == "" || auth != "Bearer "+h.cfg.Zoom.WebhookSecret {
		response.Unauthorized(c, "invalid webhook credentials")
		return
	}

	var event webhookEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		response.BadRequest(c, "invalid event body")
		return
	}
	if event.Event != eventMeetingStarted {
		c.Status(http.StatusOK)
		return
	}

	meetingID := event.Payload.Object.ID.String()
	meeting, err := h.repo.GetByID(c.Request.Context(), meetingID)
	if err != nil {
		h.logger.Error("webhook meeting lookup failed", zap.Error(err), zap.String("meeting_id", meetingID))
		response.Internal(c, "failed to load meeting")
		return
	}
	if meeting == nil {
		c.Status(http.StatusOK)
		return
	}

	if meeting.BroadcastID != "" {
		h.startBroadcast(c, meeting)
	}

	if meeting.RestrictedAccess {
		err := h.queue.EnqueueRegisterMeeting(c.Request.Context(), queue.RegisterMeetingPayload{
			MeetingID:         meeting.MeetingID,
			CourseID:          meeting.CourseID,
			BlockID:           meeting.BlockID,
			HostUserID:        meeting.UserID,
			EmailNotification: meeting.EmailNotification,
		})
		if err != nil {
			h.logger.Error("enqueue registration failed", zap.Error(err), zap.String("meeting_id", meetingID))
			response.Internal(c, "failed to schedule registration")
			return
		}
	} else if meeting.EmailNotification {
		emails, err := h.enrollments.ListActiveEmails(c.Request.Context(), meeting.CourseID, meeting.UserID)
		if err != nil {
			h.logger.Error("list enrollees failed", zap.Error(err), zap.String("course_id", meeting.CourseID))
			response.Internal(c, "failed to list enrollees")
			return
		}
		for _, recipient := range emails {
			err := h.queue.EnqueueEmail(c.Request.Context(), queue.EmailPayload{
				MeetingID: meeting.MeetingID,
				BlockID:   meeting.BlockID,
				Recipient: recipient,
			})
			if err != nil {
				h.logger.Error("enqueue email failed", zap.Error(err), zap.String("recipient", recipient))
			}
		}
	}

	c.Status(http.StatusOK)
}

// startBroadcast flips the external livestream on for a started meeting.
// Failures are logged, never surfaced: the meeting itself must not be blocked
// by a broken broadcast.
func (h *Handler) startBroadcast(c *gin.Context, meeting *models.Meeting) {
	accessToken, err := h.tokens.AccessToken(c.Request.Context(), meeting.UserID)
	if err != nil {
		h.logger.Warn("broadcast token unavailable", zap.Error(err), zap.String("host_id", meeting.UserID.String()))
		return
	}
	if err := h.zoom.StartLivestream(c.Request.Context(), accessToken, meeting.MeetingID); err != nil {
		h.logger.Warn("start livestream failed", zap.Error(err), zap.String("meeting_id", meeting.MeetingID))
	}
}

package emaillogs

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/liveclass-lms/backend/pkg/response"
)

// Handler exposes the notification delivery log.
type Handler struct {
	repo   *Repository
	logger *zap.Logger
}

// NewHandler creates an email log handler.
func NewHandler(repo *Repository, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, logger: logger}
}

// ListByMeeting handles GET /meetings/:id/emails (instructors only).
func (h *Handler) ListByMeeting(c *gin.Context) {
	meetingID := c.Param("id")
	logs, err := h.repo.ListByMeeting(c.Request.Context(), meetingID)
	if err != nil {
		h.logger.Error("list email logs failed", zap.Error(err), zap.String("meeting_id", meetingID))
		response.Internal(c, "failed to list email logs")
		return
	}
	response.OK(c, logs)
}

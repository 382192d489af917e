package enrollments

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/liveclass-lms/backend/internal/middleware"
	"github.com/liveclass-lms/backend/pkg/response"
)

// EnrollRequest is the body for POST /courses/:id/enroll.
type EnrollRequest struct {
	UserID string `json:"user_id"` // optional; defaults to the caller
}

// Store persists course enrollment state.
type Store interface {
	Enroll(ctx context.Context, courseID string, userID uuid.UUID) error
	Unenroll(ctx context.Context, courseID string, userID uuid.UUID) error
	CountActive(ctx context.Context, courseID string) (int, error)
}

// Handler handles enrollment HTTP endpoints.
type Handler struct {
	repo            Store
	maxParticipants int
	logger          *zap.Logger
}

// NewHandler creates an enrollment handler. maxParticipants is the vendor's
// meeting participant cap, reported alongside counts so the editor can warn
// oversized courses.
func NewHandler(repo Store, maxParticipants int, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, maxParticipants: maxParticipants, logger: logger}
}

func (h *Handler) targetUser(c *gin.Context) (uuid.UUID, bool) {
	caller := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	var req EnrollRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.UserID == "" {
		return caller, true
	}
	if c.MustGet(middleware.ContextUserRole).(string) != "instructor" {
		response.Forbidden(c, "only instructors may enroll other users")
		return uuid.Nil, false
	}
	target, err := uuid.Parse(req.UserID)
	if err != nil {
		response.BadRequest(c, "invalid user_id")
		return uuid.Nil, false
	}
	return target, true
}

// Enroll handles POST /courses/:id/enroll.
func (h *Handler) Enroll(c *gin.Context) {
	courseID := c.Param("id")
	target, ok := h.targetUser(c)
	if !ok {
		return
	}
	if err := h.repo.Enroll(c.Request.Context(), courseID, target); err != nil {
		h.logger.Error("enroll failed", zap.Error(err), zap.String("course_id", courseID))
		response.Internal(c, "failed to enroll")
		return
	}
	response.OK(c, gin.H{"course_id": courseID, "user_id": target})
}

// Unenroll handles POST /courses/:id/unenroll.
func (h *Handler) Unenroll(c *gin.Context) {
	courseID := c.Param("id")
	target, ok := h.targetUser(c)
	if !ok {
		return
	}
	if err := h.repo.Unenroll(c.Request.Context(), courseID, target); err != nil {
		h.logger.Error("unenroll failed", zap.Error(err), zap.String("course_id", courseID))
		response.Internal(c, "failed to unenroll")
		return
	}
	response.OK(c, gin.H{"course_id": courseID, "user_id": target})
}

// Count handles GET /courses/:id/enrollments/count. The vendor participant cap
// ships with the count so the editor can warn when a course outgrows it.
func (h *Handler) Count(c *gin.Context) {
	courseID := c.Param("id")
	n, err := h.repo.CountActive(c.Request.Context(), courseID)
	if err != nil {
		h.logger.Error("count enrollments failed", zap.Error(err), zap.String("course_id", courseID))
		response.Internal(c, "failed to count enrollments")
		return
	}
	response.OK(c, gin.H{"course_id": courseID, "count": n, "max_participants": h.maxParticipants})
}

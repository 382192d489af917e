package auth

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/liveclass-lms/backend/internal/models"
	"github.com/liveclass-lms/backend/pkg/response"
	"github.com/liveclass-lms/backend/pkg/utils"
)

// RegisterRequest is the body for POST /auth/register.
type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
	FullName string `json:"full_name" binding:"required"`
	Role     string `json:"role"` // optional, defaults to student
}

// LoginRequest is the body for POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// TokenResponse is the auth response with JWT.
type TokenResponse struct {
	Token string            `json:"token"`
	User  models.UserPublic `json:"user"`
}

// Handler handles auth HTTP endpoints.
type Handler struct {
	repo   *Repository
	jwt    *JWTService
	logger *zap.Logger
}

// NewHandler creates an auth handler.
func NewHandler(repo *Repository, jwt *JWTService, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, jwt: jwt, logger: logger}
}

// Register handles POST /auth/register.
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	role := models.RoleStudent
	switch req.Role {
	case "", "student":
	case "instructor":
		role = models.RoleInstructor
	default:
		response.BadRequest(c, "invalid role")
		return
	}

	if _, err := h.repo.GetByEmail(c.Request.Context(), req.Email); err == nil {
		response.BadRequest(c, "email already registered")
		return
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		response.Internal(c, "failed to hash password")
		return
	}

	user, err := h.repo.Create(c.Request.Context(), req.Email, hash, req.FullName, role)
	if err != nil {
		response.Internal(c, "failed to create user")
		return
	}

	token, err := h.jwt.Generate(user.ID, user.Email, string(user.Role))
	if err != nil {
		response.Internal(c, "failed to generate token")
		return
	}

	h.setSessionCookie(c, token)
	response.Created(c, TokenResponse{Token: token, User: user.ToPublic()})
}

// setSessionCookie mirrors the token into the session cookie so the OAuth
// redirect legs, which carry no Authorization header, stay authenticated.
func (h *Handler) setSessionCookie(c *gin.Context, token string) {
	maxAge := int(h.jwt.ExpiresIn().Seconds())
	c.SetCookie(SessionCookie, token, maxAge, "/", "", false, true)
}

// Login handles POST /auth/login.
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	user, err := h.repo.GetByEmail(c.Request.Context(), req.Email)
	if err != nil {
		response.Unauthorized(c, "invalid email or password")
		return
	}

	if !utils.CheckPassword(req.Password, user.Password) {
		response.Unauthorized(c, "invalid email or password")
		return
	}

	token, err := h.jwt.Generate(user.ID, user.Email, string(user.Role))
	if err != nil {
		response.Internal(c, "failed to generate token")
		return
	}

	h.setSessionCookie(c, token)
	response.OK(c, TokenResponse{Token: token, User: user.ToPublic()})
}

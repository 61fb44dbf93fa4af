package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/XCEIN/consyf-sub000/internal/core/domain"
	"github.com/XCEIN/consyf-sub000/internal/transport/http/middleware"
	"github.com/XCEIN/consyf-sub000/internal/usecase"
)

// LoginService opens sessions and resolves the caller's profile.
type LoginService interface {
	Login(ctx context.Context, input usecase.LoginInput) (*usecase.AuthResult, error)
	GetProfile(ctx context.Context, principal domain.Principal) (domain.User, error)
}

// AuthHandler exposes login and the caller's profile.
type AuthHandler struct {
	auth LoginService
}

func NewAuthHandler(auth LoginService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

// Login godoc
// @Summary Authenticate with email or phone and password
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body usecase.LoginInput true "Login request"
// @Success 200 {object} AuthResponse
// @Failure 401 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse "Email verification required"
// @Failure 429 {object} ErrorResponse
// @Router /api/v1/auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req usecase.LoginInput
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadPayload(c)
		return
	}

	result, err := h.auth.Login(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, AuthResponse{
		User:    newUserResponse(result.User),
		Session: newSessionResponse(result.Session),
	})
}

// Me godoc
// @Summary Current user profile
// @Tags Account
// @Produce json
// @Security BearerAuth
// @Success 200 {object} UserResponse
// @Failure 401 {object} ErrorResponse
// @Router /api/v1/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	principal, ok := requirePrincipal(c)
	if !ok {
		return
	}

	user, err := h.auth.GetProfile(c.Request.Context(), principal)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, newUserResponse(user))
}

// requirePrincipal fetches the caller stored by the auth middleware.
func requirePrincipal(c *gin.Context) (domain.Principal, bool) {
	principal, ok := middleware.PrincipalFrom(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return domain.Principal{}, false
	}
	return principal, true
}

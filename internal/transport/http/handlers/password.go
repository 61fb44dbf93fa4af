package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/XCEIN/consyf-sub000/internal/usecase"
)

const resetRequestedMessage = "if the email is registered, a reset link has been sent"

// PasswordResetService issues and redeems reset tokens.
type PasswordResetService interface {
	RequestReset(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, input usecase.ResetPasswordInput) error
}

// PasswordHandler exposes the password recovery endpoints.
type PasswordHandler struct {
	reset PasswordResetService
}

func NewPasswordHandler(reset PasswordResetService) *PasswordHandler {
	return &PasswordHandler{reset: reset}
}

// RegisterRoutes binds password recovery endpoints.
func (h *PasswordHandler) RegisterRoutes(r gin.IRoutes) {
	r.POST("/forgot", h.Forgot)
	r.POST("/reset", h.Reset)
}

// Forgot godoc
// @Summary Request a password reset link
// @Description Always answers with the same message whether or not the email is registered.
// @Tags Password
// @Accept json
// @Produce json
// @Param request body EmailRequest true "Account email"
// @Success 202 {object} MessageResponse
// @Failure 400 {object} ErrorResponse
// @Failure 429 {object} ErrorResponse
// @Router /api/v1/password/forgot [post]
func (h *PasswordHandler) Forgot(c *gin.Context) {
	var req EmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadPayload(c)
		return
	}

	if err := h.reset.RequestReset(c.Request.Context(), req.Email); err != nil {
		var verr *usecase.ValidationError
		if errors.As(err, &verr) || errors.Is(err, usecase.ErrRateLimited) {
			respondError(c, err)
			return
		}
		// delivery problems stay invisible to keep the answer uniform
		_ = c.Error(err)
	}

	c.JSON(http.StatusAccepted, MessageResponse{Message: resetRequestedMessage})
}

// Reset godoc
// @Summary Set a new password with a reset token
// @Tags Password
// @Accept json
// @Produce json
// @Param request body usecase.ResetPasswordInput true "Reset confirmation"
// @Success 200 {object} MessageResponse
// @Failure 400 {object} ErrorResponse
// @Router /api/v1/password/reset [post]
func (h *PasswordHandler) Reset(c *gin.Context) {
	var req usecase.ResetPasswordInput
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadPayload(c)
		return
	}

	if err := h.reset.ResetPassword(c.Request.Context(), req); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "password updated"})
}

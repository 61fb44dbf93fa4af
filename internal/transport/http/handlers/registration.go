package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/XCEIN/consyf-sub000/internal/usecase"
)

// RegistrationService is the slice of the credential flows used for sign-up.
type RegistrationService interface {
	Register(ctx context.Context, input usecase.RegisterInput) (*usecase.RegisterResult, error)
	ResendOTP(ctx context.Context, email string) (time.Time, error)
	VerifyEmail(ctx context.Context, input usecase.VerifyEmailInput) (*usecase.AuthResult, error)
}

// RegistrationHandler exposes endpoints for user registration and verification.
type RegistrationHandler struct {
	registration RegistrationService
}

func NewRegistrationHandler(registration RegistrationService) *RegistrationHandler {
	return &RegistrationHandler{registration: registration}
}

// RegisterRoutes binds registration endpoints.
func (h *RegistrationHandler) RegisterRoutes(r gin.IRoutes) {
	r.POST("/register", h.Register)
	r.POST("/otp/resend", h.ResendOTP)
	r.POST("/verify-email", h.VerifyEmail)
}

// Register godoc
// @Summary Register a new user account
// @Description Creates an unverified personal account and emails a verification code.
// @Tags Registration
// @Accept json
// @Produce json
// @Param request body usecase.RegisterInput true "Registration request"
// @Success 201 {object} RegisterResponse
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 429 {object} ErrorResponse
// @Router /api/v1/auth/register [post]
func (h *RegistrationHandler) Register(c *gin.Context) {
	var req usecase.RegisterInput
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadPayload(c)
		return
	}

	result, err := h.registration.Register(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, RegisterResponse{
		User:         newUserResponse(result.User),
		Message:      "verification code sent",
		OTPExpiresAt: result.OTPExpiresAt,
	})
}

// ResendOTP godoc
// @Summary Resend the email verification code
// @Tags Registration
// @Accept json
// @Produce json
// @Param request body EmailRequest true "Account email"
// @Success 200 {object} OTPResentResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /api/v1/auth/otp/resend [post]
func (h *RegistrationHandler) ResendOTP(c *gin.Context) {
	var req EmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadPayload(c)
		return
	}

	expiresAt, err := h.registration.ResendOTP(c.Request.Context(), req.Email)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, OTPResentResponse{Message: "verification code sent", OTPExpiresAt: expiresAt})
}

// VerifyEmail godoc
// @Summary Verify an email address with the emailed code
// @Description Marks the account verified and opens a session.
// @Tags Registration
// @Accept json
// @Produce json
// @Param request body usecase.VerifyEmailInput true "Verification request"
// @Success 200 {object} AuthResponse
// @Failure 400 {object} ErrorResponse
// @Router /api/v1/auth/verify-email [post]
func (h *RegistrationHandler) VerifyEmail(c *gin.Context) {
	var req usecase.VerifyEmailInput
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadPayload(c)
		return
	}

	result, err := h.registration.VerifyEmail(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, AuthResponse{
		User:    newUserResponse(result.User),
		Session: newSessionResponse(result.Session),
	})
}

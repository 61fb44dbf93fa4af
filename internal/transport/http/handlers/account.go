package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/XCEIN/consyf-sub000/internal/core/domain"
	"github.com/XCEIN/consyf-sub000/internal/usecase"
)

// AccountService runs account-type transitions and company upserts.
type AccountService interface {
	ChangeAccountType(ctx context.Context, principal domain.Principal, target domain.AccountType) (*usecase.AccountChangeResult, error)
	EnsureCompany(ctx context.Context, principal domain.Principal, input usecase.CompanyInput) (domain.Company, error)
}

// AccountHandler exposes the caller's account settings.
type AccountHandler struct {
	accounts AccountService
}

func NewAccountHandler(accounts AccountService) *AccountHandler {
	return &AccountHandler{accounts: accounts}
}

// ChangeAccountType godoc
// @Summary Switch between personal and organization accounts
// @Description Organization to personal deletes every post the caller owns.
// @Tags Account
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body AccountTypeRequest true "Target account type"
// @Success 200 {object} AccountTypeResponse
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse "Account has an approved post"
// @Router /api/v1/me/account-type [patch]
func (h *AccountHandler) ChangeAccountType(c *gin.Context) {
	principal, ok := requirePrincipal(c)
	if !ok {
		return
	}

	var req AccountTypeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadPayload(c)
		return
	}

	result, err := h.accounts.ChangeAccountType(c.Request.Context(), principal, req.AccountType)
	if err != nil {
		respondError(c, err)
		return
	}

	resp := AccountTypeResponse{
		User:         newUserResponse(result.User),
		Changed:      result.Changed,
		DeletedPosts: result.DeletedPosts,
	}
	if result.Session.Token != "" {
		session := newSessionResponse(result.Session)
		resp.Session = &session
	}
	c.JSON(http.StatusOK, resp)
}

// UpsertCompany godoc
// @Summary Create or update the caller's company
// @Tags Account
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body usecase.CompanyInput true "Company profile"
// @Success 200 {object} CompanyResponse
// @Failure 400 {object} ErrorResponse
// @Router /api/v1/me/company [put]
func (h *AccountHandler) UpsertCompany(c *gin.Context) {
	principal, ok := requirePrincipal(c)
	if !ok {
		return
	}

	var req usecase.CompanyInput
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadPayload(c)
		return
	}

	company, err := h.accounts.EnsureCompany(c.Request.Context(), principal, req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, newCompanyResponse(company))
}

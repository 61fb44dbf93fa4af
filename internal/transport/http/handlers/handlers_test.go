package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/XCEIN/consyf-sub000/internal/core/domain"
	"github.com/XCEIN/consyf-sub000/internal/transport/http/middleware"
	"github.com/XCEIN/consyf-sub000/internal/usecase"
)

var fixedNow = time.Date(2023, 7, 10, 12, 0, 0, 0, time.UTC)

type stubAuthenticator struct {
	principal domain.Principal
}

func (s stubAuthenticator) Authenticate(context.Context, string) (domain.Principal, error) {
	return s.principal, nil
}

func newTestRouter(principal domain.Principal, register func(r *gin.Engine, auth gin.HandlerFunc)) *gin.Engine {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(middleware.EnrichContext())
	register(r, middleware.RequireAuth(stubAuthenticator{principal: principal}))
	return r
}

func doJSON(t *testing.T, r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer test-token")

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func TestRespondErrorMapsTaxonomy(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		check  func(t *testing.T, rr *httptest.ResponseRecorder)
	}{
		{
			name:   "validation",
			err:    &usecase.ValidationError{Fields: map[string]string{"email": "is required"}},
			status: http.StatusBadRequest,
			check: func(t *testing.T, rr *httptest.ResponseRecorder) {
				resp := decode[ErrorResponse](t, rr)
				require.Equal(t, "is required", resp.Fields["email"])
			},
		},
		{
			name:   "verification required carries email",
			err:    &usecase.VerificationRequiredError{Email: "ann@x.com"},
			status: http.StatusForbidden,
			check: func(t *testing.T, rr *httptest.ResponseRecorder) {
				require.Equal(t, "ann@x.com", decode[ErrorResponse](t, rr).Email)
			},
		},
		{
			name:   "rate limited",
			err:    &usecase.RateLimitExceededError{Scope: "login", RetryAfter: 90*time.Second + time.Millisecond},
			status: http.StatusTooManyRequests,
			check: func(t *testing.T, rr *httptest.ResponseRecorder) {
				require.Equal(t, "91", rr.Header().Get("Retry-After"))
			},
		},
		{name: "duplicate email", err: usecase.ErrDuplicateEmail, status: http.StatusConflict},
		{name: "approved post guard", err: usecase.ErrHasApprovedPost, status: http.StatusConflict},
		{name: "invalid transition", err: fmt.Errorf("approve: %w", domain.ErrInvalidTransition), status: http.StatusConflict},
		{name: "bad credentials", err: usecase.ErrInvalidCredentials, status: http.StatusUnauthorized},
		{name: "not owner", err: usecase.ErrUnauthorized, status: http.StatusForbidden},
		{name: "missing", err: usecase.ErrNotFound, status: http.StatusNotFound},
		{
			name:   "transition failure stays opaque",
			err:    fmt.Errorf("%w: delete posts: %w", usecase.ErrTransitionFailed, errors.New("pq: deadlock detected")),
			status: http.StatusInternalServerError,
			check: func(t *testing.T, rr *httptest.ResponseRecorder) {
				resp := decode[ErrorResponse](t, rr)
				require.Equal(t, "internal server error", resp.Error)
				require.NotEmpty(t, resp.TraceID)
				require.NotContains(t, rr.Body.String(), "deadlock")
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gin.SetMode(gin.TestMode)
			r := gin.New()
			r.Use(middleware.EnrichContext())
			r.GET("/", func(c *gin.Context) { respondError(c, tc.err) })

			rr := httptest.NewRecorder()
			r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

			require.Equal(t, tc.status, rr.Code)
			if tc.check != nil {
				tc.check(t, rr)
			}
		})
	}
}

type stubCredentials struct {
	registerErr error
	loginErr    error
	lastLogin   usecase.LoginInput
}

func (s *stubCredentials) Register(_ context.Context, in usecase.RegisterInput) (*usecase.RegisterResult, error) {
	if s.registerErr != nil {
		return nil, s.registerErr
	}
	return &usecase.RegisterResult{
		User:         domain.User{ID: "u-1", Name: in.Name, Email: in.Email, PasswordHash: "secret-hash", AccountType: domain.AccountTypePersonal, Role: domain.RoleUser},
		OTPExpiresAt: fixedNow.Add(5 * time.Minute),
	}, nil
}

func (s *stubCredentials) ResendOTP(context.Context, string) (time.Time, error) {
	return fixedNow.Add(5 * time.Minute), nil
}

func (s *stubCredentials) VerifyEmail(context.Context, usecase.VerifyEmailInput) (*usecase.AuthResult, error) {
	return nil, usecase.ErrInvalidOrExpiredOTP
}

func (s *stubCredentials) Login(_ context.Context, in usecase.LoginInput) (*usecase.AuthResult, error) {
	s.lastLogin = in
	if s.loginErr != nil {
		return nil, s.loginErr
	}
	return &usecase.AuthResult{
		User:    domain.User{ID: "u-1", Email: "ann@x.com", EmailVerified: true},
		Session: domain.Session{Token: "jwt", ExpiresAt: fixedNow.Add(time.Hour)},
	}, nil
}

func (s *stubCredentials) GetProfile(_ context.Context, p domain.Principal) (domain.User, error) {
	return domain.User{ID: p.UserID, Email: p.Email}, nil
}

func credentialRouter(creds *stubCredentials) *gin.Engine {
	return newTestRouter(domain.Principal{UserID: "u-1", Email: "ann@x.com"}, func(r *gin.Engine, auth gin.HandlerFunc) {
		group := r.Group("/auth")
		NewRegistrationHandler(creds).RegisterRoutes(group)
		authHandler := NewAuthHandler(creds)
		group.POST("/login", authHandler.Login)
		r.GET("/me", auth, authHandler.Me)
	})
}

func TestRegisterReturnsCreatedWithoutPasswordHash(t *testing.T) {
	r := credentialRouter(&stubCredentials{})

	rr := doJSON(t, r, http.MethodPost, "/auth/register", `{"name":"Ann","email":"ann@x.com","password":"Secret#1"}`)

	require.Equal(t, http.StatusCreated, rr.Code)
	require.NotContains(t, rr.Body.String(), "secret-hash")
	resp := decode[RegisterResponse](t, rr)
	require.Equal(t, "u-1", resp.User.ID)
	require.False(t, resp.User.EmailVerified)
	require.True(t, resp.OTPExpiresAt.Equal(fixedNow.Add(5*time.Minute)))
}

func TestRegisterRejectsMalformedJSON(t *testing.T) {
	r := credentialRouter(&stubCredentials{})

	rr := doJSON(t, r, http.MethodPost, "/auth/register", `{"name":`)

	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestLoginPassesIdentifierAndReturnsSession(t *testing.T) {
	creds := &stubCredentials{}
	r := credentialRouter(creds)

	rr := doJSON(t, r, http.MethodPost, "/auth/login", `{"identifier":"0900000123","password":"pw"}`)

	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "0900000123", creds.lastLogin.Identifier)
	resp := decode[AuthResponse](t, rr)
	require.Equal(t, "jwt", resp.Session.Token)
	require.Equal(t, "Bearer", resp.Session.TokenType)
}

func TestLoginUnverifiedAccountIsDistinguished(t *testing.T) {
	r := credentialRouter(&stubCredentials{loginErr: &usecase.VerificationRequiredError{Email: "ann@x.com"}})

	rr := doJSON(t, r, http.MethodPost, "/auth/login", `{"identifier":"ann@x.com","password":"pw"}`)

	require.Equal(t, http.StatusForbidden, rr.Code)
	require.Equal(t, "ann@x.com", decode[ErrorResponse](t, rr).Email)
}

func TestVerifyEmailInvalidCode(t *testing.T) {
	r := credentialRouter(&stubCredentials{})

	rr := doJSON(t, r, http.MethodPost, "/auth/verify-email", `{"email":"ann@x.com","otp":"0000"}`)

	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, "invalid or expired verification code", decode[ErrorResponse](t, rr).Error)
}

func TestMeUsesPrincipal(t *testing.T) {
	r := credentialRouter(&stubCredentials{})

	rr := doJSON(t, r, http.MethodGet, "/me", "")

	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "u-1", decode[UserResponse](t, rr).ID)
}

type stubReset struct {
	requestErr error
}

func (s stubReset) RequestReset(context.Context, string) error { return s.requestErr }

func (s stubReset) ResetPassword(context.Context, usecase.ResetPasswordInput) error {
	return usecase.ErrInvalidOrExpiredToken
}

func TestForgotPasswordAnswersUniformly(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{name: "sent", err: nil, status: http.StatusAccepted},
		{name: "store failure hidden", err: errors.New("store reset token: connection refused"), status: http.StatusAccepted},
		{name: "rate limited", err: &usecase.RateLimitExceededError{Scope: "password_reset", RetryAfter: time.Minute}, status: http.StatusTooManyRequests},
		{name: "bad email", err: &usecase.ValidationError{Fields: map[string]string{"email": "must be a valid email address"}}, status: http.StatusBadRequest},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := newTestRouter(domain.Principal{}, func(r *gin.Engine, _ gin.HandlerFunc) {
				NewPasswordHandler(stubReset{requestErr: tc.err}).RegisterRoutes(r.Group("/password"))
			})

			rr := doJSON(t, r, http.MethodPost, "/password/forgot", `{"email":"ann@x.com"}`)

			require.Equal(t, tc.status, rr.Code)
			if tc.status == http.StatusAccepted {
				require.Equal(t, resetRequestedMessage, decode[MessageResponse](t, rr).Message)
			}
		})
	}
}

func TestResetPasswordInvalidToken(t *testing.T) {
	r := newTestRouter(domain.Principal{}, func(r *gin.Engine, _ gin.HandlerFunc) {
		NewPasswordHandler(stubReset{}).RegisterRoutes(r.Group("/password"))
	})

	rr := doJSON(t, r, http.MethodPost, "/password/reset", `{"token":"t","new_password":"Secret#2"}`)

	require.Equal(t, http.StatusBadRequest, rr.Code)
}

type stubAccounts struct {
	changeErr error
	target    domain.AccountType
}

func (s *stubAccounts) ChangeAccountType(_ context.Context, p domain.Principal, target domain.AccountType) (*usecase.AccountChangeResult, error) {
	s.target = target
	if s.changeErr != nil {
		return nil, s.changeErr
	}
	return &usecase.AccountChangeResult{
		User:         domain.User{ID: p.UserID, AccountType: target},
		Session:      domain.Session{Token: "fresh", ExpiresAt: fixedNow.Add(time.Hour)},
		Changed:      true,
		DeletedPosts: 2,
	}, nil
}

func (s *stubAccounts) EnsureCompany(_ context.Context, p domain.Principal, in usecase.CompanyInput) (domain.Company, error) {
	return domain.Company{ID: "c-1", UserID: p.UserID, Name: in.Name, Sector: in.Sector, CreatedAt: fixedNow}, nil
}

func accountRouter(accounts *stubAccounts) *gin.Engine {
	return newTestRouter(domain.Principal{UserID: "u-1"}, func(r *gin.Engine, auth gin.HandlerFunc) {
		h := NewAccountHandler(accounts)
		r.PATCH("/me/account-type", auth, h.ChangeAccountType)
		r.PUT("/me/company", auth, h.UpsertCompany)
	})
}

func TestChangeAccountTypeReturnsFreshSession(t *testing.T) {
	accounts := &stubAccounts{}
	r := accountRouter(accounts)

	rr := doJSON(t, r, http.MethodPatch, "/me/account-type", `{"account_type":"personal"}`)

	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, domain.AccountTypePersonal, accounts.target)
	resp := decode[AccountTypeResponse](t, rr)
	require.True(t, resp.Changed)
	require.Equal(t, 2, resp.DeletedPosts)
	require.NotNil(t, resp.Session)
	require.Equal(t, "fresh", resp.Session.Token)
}

func TestChangeAccountTypeBlockedByApprovedPost(t *testing.T) {
	r := accountRouter(&stubAccounts{changeErr: usecase.ErrHasApprovedPost})

	rr := doJSON(t, r, http.MethodPatch, "/me/account-type", `{"account_type":"organization"}`)

	require.Equal(t, http.StatusConflict, rr.Code)
}

func TestUpsertCompany(t *testing.T) {
	r := accountRouter(&stubAccounts{})

	rr := doJSON(t, r, http.MethodPut, "/me/company", `{"name":"Acme","sector":"retail"}`)

	require.Equal(t, http.StatusOK, rr.Code)
	resp := decode[CompanyResponse](t, rr)
	require.Equal(t, "Acme", resp.Name)
}

type stubPosts struct {
	post        domain.Post
	err         error
	limit       int
	offset      int
	moderatedID string
	patch       usecase.PostPatch
}

func (s *stubPosts) Create(_ context.Context, p domain.Principal, in usecase.PostInput) (domain.Post, error) {
	if s.err != nil {
		return domain.Post{}, s.err
	}
	return domain.Post{ID: "p-1", OwnerID: p.UserID, Type: in.Type, Title: in.Title, Status: domain.PostStatusPending, CreatedAt: fixedNow}, nil
}

func (s *stubPosts) Edit(_ context.Context, _ domain.Principal, _ string, patch usecase.PostPatch) (domain.Post, error) {
	s.patch = patch
	return s.post, s.err
}

func (s *stubPosts) Delete(context.Context, domain.Principal, string) error { return s.err }

func (s *stubPosts) Get(context.Context, domain.Principal, string) (domain.Post, error) {
	return s.post, s.err
}

func (s *stubPosts) ListMine(context.Context, domain.Principal) ([]domain.Post, error) {
	return []domain.Post{s.post}, s.err
}

func (s *stubPosts) ListPending(_ context.Context, _ domain.Principal, limit, offset int) ([]domain.Post, error) {
	s.limit, s.offset = limit, offset
	return nil, s.err
}

func (s *stubPosts) Approve(_ context.Context, _ domain.Principal, id string) (domain.Post, error) {
	s.moderatedID = id
	if s.err != nil {
		return domain.Post{}, s.err
	}
	return domain.Post{ID: id, Status: domain.PostStatusApproved}, nil
}

func (s *stubPosts) Reject(_ context.Context, _ domain.Principal, id string) (domain.Post, error) {
	s.moderatedID = id
	if s.err != nil {
		return domain.Post{}, s.err
	}
	return domain.Post{ID: id, Status: domain.PostStatusRejected}, nil
}

func postRouter(posts *stubPosts, role domain.Role) *gin.Engine {
	return newTestRouter(domain.Principal{UserID: "u-1", Role: role}, func(r *gin.Engine, auth gin.HandlerFunc) {
		h := NewPostHandler(posts)
		h.RegisterRoutes(r.Group("/posts", auth))
		h.RegisterModerationRoutes(r.Group("/admin/posts", auth, middleware.RequireAdmin()))
	})
}

func TestCreatePostStartsPending(t *testing.T) {
	r := postRouter(&stubPosts{}, domain.RoleUser)

	rr := doJSON(t, r, http.MethodPost, "/posts", `{"type":"sell","title":"Bike","description":"Red bike"}`)

	require.Equal(t, http.StatusCreated, rr.Code)
	resp := decode[PostResponse](t, rr)
	require.Equal(t, domain.PostStatusPending, resp.Status)
	require.NotNil(t, resp.Tags)
}

func TestCreatePostLimitReached(t *testing.T) {
	r := postRouter(&stubPosts{err: usecase.ErrPostLimitReached}, domain.RoleUser)

	rr := doJSON(t, r, http.MethodPost, "/posts", `{"type":"sell","title":"Bike","description":"Red bike"}`)

	require.Equal(t, http.StatusConflict, rr.Code)
}

func TestEditPostBindsOnlyPresentFields(t *testing.T) {
	posts := &stubPosts{post: domain.Post{ID: "p-1", Title: "Bike v2", Status: domain.PostStatusPending}}
	r := postRouter(posts, domain.RoleUser)

	rr := doJSON(t, r, http.MethodPatch, "/posts/p-1", `{"title":"Bike v2"}`)

	require.Equal(t, http.StatusOK, rr.Code)
	require.NotNil(t, posts.patch.Title)
	require.Equal(t, "Bike v2", *posts.patch.Title)
	require.Nil(t, posts.patch.PostImage)
	require.Nil(t, posts.patch.Category)
	require.Nil(t, posts.patch.Tags)
}

func TestGetHiddenPostIsNotFound(t *testing.T) {
	r := postRouter(&stubPosts{err: usecase.ErrNotFound}, domain.RoleUser)

	rr := doJSON(t, r, http.MethodGet, "/posts/p-9", "")

	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestListMineRouteDoesNotCollideWithID(t *testing.T) {
	r := postRouter(&stubPosts{post: domain.Post{ID: "p-1"}}, domain.RoleUser)

	rr := doJSON(t, r, http.MethodGet, "/posts/mine", "")

	require.Equal(t, http.StatusOK, rr.Code)
	require.Len(t, decode[PostListResponse](t, rr).Posts, 1)
}

func TestDeletePostNoContent(t *testing.T) {
	r := postRouter(&stubPosts{}, domain.RoleUser)

	rr := doJSON(t, r, http.MethodDelete, "/posts/p-1", "")

	require.Equal(t, http.StatusNoContent, rr.Code)
}

func TestModerationRequiresAdminRole(t *testing.T) {
	posts := &stubPosts{}
	r := postRouter(posts, domain.RoleUser)

	rr := doJSON(t, r, http.MethodPost, "/admin/posts/p-1/approve", "")

	require.Equal(t, http.StatusForbidden, rr.Code)
	require.Empty(t, posts.moderatedID)
}

func TestModerationApproveAndReject(t *testing.T) {
	posts := &stubPosts{}
	r := postRouter(posts, domain.RoleAdmin)

	rr := doJSON(t, r, http.MethodPost, "/admin/posts/p-1/approve", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, domain.PostStatusApproved, decode[PostResponse](t, rr).Status)

	rr = doJSON(t, r, http.MethodPost, "/admin/posts/p-2/reject", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "p-2", posts.moderatedID)
}

func TestModerationInvalidTransitionConflicts(t *testing.T) {
	r := postRouter(&stubPosts{err: fmt.Errorf("approve: %w", domain.ErrInvalidTransition)}, domain.RoleAdmin)

	rr := doJSON(t, r, http.MethodPost, "/admin/posts/p-1/approve", "")

	require.Equal(t, http.StatusConflict, rr.Code)
}

func TestListPendingPagination(t *testing.T) {
	posts := &stubPosts{}
	r := postRouter(posts, domain.RoleAdmin)

	rr := doJSON(t, r, http.MethodGet, "/admin/posts/pending?limit=10&offset=20", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, 10, posts.limit)
	require.Equal(t, 20, posts.offset)

	rr = doJSON(t, r, http.MethodGet, "/admin/posts/pending?limit=-1", "")
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

type stubNotifications struct {
	unreadOnly bool
	markErr    error
}

func (s *stubNotifications) List(_ context.Context, _ domain.Principal, unreadOnly bool, _ int) ([]domain.Notification, error) {
	s.unreadOnly = unreadOnly
	return []domain.Notification{{ID: "n-1", Type: domain.NotificationPostApproved, Title: "Post approved", CreatedAt: fixedNow}}, nil
}

func (s *stubNotifications) UnreadCount(context.Context, domain.Principal) (int, error) { return 3, nil }

func (s *stubNotifications) MarkRead(context.Context, domain.Principal, string) error {
	return s.markErr
}

func (s *stubNotifications) MarkAllRead(context.Context, domain.Principal) (int64, error) {
	return 3, nil
}

func TestNotificationEndpoints(t *testing.T) {
	notifications := &stubNotifications{markErr: usecase.ErrNotFound}
	r := newTestRouter(domain.Principal{UserID: "u-1"}, func(r *gin.Engine, auth gin.HandlerFunc) {
		NewNotificationHandler(notifications).RegisterRoutes(r.Group("/notifications", auth))
	})

	rr := doJSON(t, r, http.MethodGet, "/notifications?unread=true", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.True(t, notifications.unreadOnly)
	require.Len(t, decode[NotificationListResponse](t, rr).Notifications, 1)

	rr = doJSON(t, r, http.MethodGet, "/notifications/unread-count", "")
	require.Equal(t, 3, decode[UnreadCountResponse](t, rr).Unread)

	rr = doJSON(t, r, http.MethodPost, "/notifications/n-404/read", "")
	require.Equal(t, http.StatusNotFound, rr.Code)

	rr = doJSON(t, r, http.MethodPost, "/notifications/read-all", "")
	require.Equal(t, int64(3), decode[MarkAllReadResponse](t, rr).Updated)
}

func TestReadinessReportsFailingDependency(t *testing.T) {
	gin.SetMode(gin.TestMode)

	h := NewHealthHandler(
		WithReadinessCheck("postgres", func(context.Context) error { return nil }),
		WithReadinessCheck("redis", func(context.Context) error { return errors.New("dial tcp: refused") }),
	)
	r := gin.New()
	r.GET("/readyz", h.Readiness)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
	resp := decode[ReadinessResponse](t, rr)
	require.Equal(t, "ok", resp.Checks["postgres"])
	require.Equal(t, "unavailable", resp.Checks["redis"])
	require.NotContains(t, rr.Body.String(), "refused")
}

package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/XCEIN/consyf-sub000/internal/core/domain"
)

// ErrorResponse represents a generic error payload with trace ID for debugging.
type ErrorResponse struct {
	Error   string            `json:"error"`
	Fields  map[string]string `json:"fields,omitempty"`
	Email   string            `json:"email,omitempty"`
	TraceID string            `json:"trace_id,omitempty"`
}

// NewErrorResponse creates an error response with trace ID from context
func NewErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	return ErrorResponse{
		Error:   errorMsg,
		TraceID: c.GetString("trace_id"),
	}
}

// MessageResponse represents a simple message payload.
type MessageResponse struct {
	Message string `json:"message"`
}

// UserResponse is the public view of an account. The password hash never leaves the service.
type UserResponse struct {
	ID            string             `json:"id"`
	Name          string             `json:"name"`
	Email         string             `json:"email"`
	Phone         *string            `json:"phone,omitempty"`
	EmailVerified bool               `json:"email_verified"`
	Role          domain.Role        `json:"role"`
	AccountType   domain.AccountType `json:"account_type"`
	Avatar        *string            `json:"avatar,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
}

func newUserResponse(u domain.User) UserResponse {
	return UserResponse{
		ID:            u.ID,
		Name:          u.Name,
		Email:         u.Email,
		Phone:         u.Phone,
		EmailVerified: u.EmailVerified,
		Role:          u.Role,
		AccountType:   u.AccountType,
		Avatar:        u.Avatar,
		CreatedAt:     u.CreatedAt,
	}
}

// SessionResponse carries a bearer token.
type SessionResponse struct {
	Token     string    `json:"token"`
	TokenType string    `json:"token_type"`
	ExpiresAt time.Time `json:"expires_at"`
}

func newSessionResponse(s domain.Session) SessionResponse {
	return SessionResponse{Token: s.Token, TokenType: "Bearer", ExpiresAt: s.ExpiresAt}
}

// AuthResponse is returned when a flow opens a session.
type AuthResponse struct {
	User    UserResponse    `json:"user"`
	Session SessionResponse `json:"session"`
}

// RegisterResponse is returned after registration; the account still needs verification.
type RegisterResponse struct {
	User         UserResponse `json:"user"`
	Message      string       `json:"message"`
	OTPExpiresAt time.Time    `json:"otp_expires_at"`
}

// EmailRequest carries a bare email address.
type EmailRequest struct {
	Email string `json:"email"`
}

// OTPResentResponse reports when the new verification code lapses.
type OTPResentResponse struct {
	Message      string    `json:"message"`
	OTPExpiresAt time.Time `json:"otp_expires_at"`
}

// AccountTypeRequest selects the target account type.
type AccountTypeRequest struct {
	AccountType domain.AccountType `json:"account_type"`
}

// AccountTypeResponse describes the outcome of an account-type change.
type AccountTypeResponse struct {
	User         UserResponse     `json:"user"`
	Session      *SessionResponse `json:"session,omitempty"`
	Changed      bool             `json:"changed"`
	DeletedPosts int              `json:"deleted_posts"`
}

// CompanyResponse is the public view of a company.
type CompanyResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Sector    string    `json:"sector,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func newCompanyResponse(c domain.Company) CompanyResponse {
	return CompanyResponse{ID: c.ID, Name: c.Name, Sector: c.Sector, CreatedAt: c.CreatedAt}
}

// PostResponse is the public view of a post.
type PostResponse struct {
	ID          string            `json:"id"`
	CompanyID   string            `json:"company_id"`
	OwnerID     string            `json:"owner_id"`
	Type        domain.PostType   `json:"type"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Category    string            `json:"category,omitempty"`
	Budget      *float64          `json:"budget,omitempty"`
	Location    string            `json:"location,omitempty"`
	Tags        []string          `json:"tags"`
	Status      domain.PostStatus `json:"status"`
	PostImage   *string           `json:"post_image,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

func newPostResponse(p domain.Post) PostResponse {
	tags := p.Tags
	if tags == nil {
		tags = []string{}
	}
	return PostResponse{
		ID:          p.ID,
		CompanyID:   p.CompanyID,
		OwnerID:     p.OwnerID,
		Type:        p.Type,
		Title:       p.Title,
		Description: p.Description,
		Category:    p.Category,
		Budget:      p.Budget,
		Location:    p.Location,
		Tags:        tags,
		Status:      p.Status,
		PostImage:   p.PostImage,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

// PostListResponse wraps a page of posts.
type PostListResponse struct {
	Posts []PostResponse `json:"posts"`
}

func newPostListResponse(posts []domain.Post) PostListResponse {
	out := make([]PostResponse, 0, len(posts))
	for _, p := range posts {
		out = append(out, newPostResponse(p))
	}
	return PostListResponse{Posts: out}
}

// NotificationResponse is the public view of an inbox entry.
type NotificationResponse struct {
	ID        string                  `json:"id"`
	PostID    *string                 `json:"post_id,omitempty"`
	Type      domain.NotificationType `json:"type"`
	Title     string                  `json:"title"`
	Content   string                  `json:"content"`
	IsRead    bool                    `json:"is_read"`
	CreatedAt time.Time               `json:"created_at"`
}

// NotificationListResponse wraps the caller's notifications.
type NotificationListResponse struct {
	Notifications []NotificationResponse `json:"notifications"`
}

func newNotificationListResponse(items []domain.Notification) NotificationListResponse {
	out := make([]NotificationResponse, 0, len(items))
	for _, n := range items {
		out = append(out, NotificationResponse{
			ID:        n.ID,
			PostID:    n.PostID,
			Type:      n.Type,
			Title:     n.Title,
			Content:   n.Content,
			IsRead:    n.IsRead,
			CreatedAt: n.CreatedAt,
		})
	}
	return NotificationListResponse{Notifications: out}
}

// UnreadCountResponse reports the unread notification count.
type UnreadCountResponse struct {
	Unread int `json:"unread"`
}

// MarkAllReadResponse reports how many notifications were flipped.
type MarkAllReadResponse struct {
	Updated int64 `json:"updated"`
}

// HealthResponse describes the health check payload.
type HealthResponse struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
}

// ReadinessResponse lists the outcome of each dependency check.
type ReadinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

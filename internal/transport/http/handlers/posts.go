package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/XCEIN/consyf-sub000/internal/core/domain"
	"github.com/XCEIN/consyf-sub000/internal/usecase"
)

// PostService covers authoring and moderation of posts.
type PostService interface {
	Create(ctx context.Context, principal domain.Principal, input usecase.PostInput) (domain.Post, error)
	Edit(ctx context.Context, principal domain.Principal, postID string, patch usecase.PostPatch) (domain.Post, error)
	Delete(ctx context.Context, principal domain.Principal, postID string) error
	Get(ctx context.Context, principal domain.Principal, postID string) (domain.Post, error)
	ListMine(ctx context.Context, principal domain.Principal) ([]domain.Post, error)
	ListPending(ctx context.Context, principal domain.Principal, limit, offset int) ([]domain.Post, error)
	Approve(ctx context.Context, principal domain.Principal, postID string) (domain.Post, error)
	Reject(ctx context.Context, principal domain.Principal, postID string) (domain.Post, error)
}

// PostHandler exposes post authoring and the moderation queue.
type PostHandler struct {
	posts PostService
}

func NewPostHandler(posts PostService) *PostHandler {
	return &PostHandler{posts: posts}
}

// RegisterRoutes binds the authoring endpoints.
func (h *PostHandler) RegisterRoutes(r gin.IRoutes) {
	r.POST("", h.Create)
	r.GET("/mine", h.ListMine)
	r.GET("/:id", h.Get)
	r.PATCH("/:id", h.Edit)
	r.DELETE("/:id", h.Delete)
}

// RegisterModerationRoutes binds the admin endpoints.
func (h *PostHandler) RegisterModerationRoutes(r gin.IRoutes) {
	r.GET("/pending", h.ListPending)
	r.POST("/:id/approve", h.Approve)
	r.POST("/:id/reject", h.Reject)
}

// Create godoc
// @Summary Submit a post for moderation
// @Tags Posts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body usecase.PostInput true "Post content"
// @Success 201 {object} PostResponse
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse "Personal post limit reached"
// @Router /api/v1/posts [post]
func (h *PostHandler) Create(c *gin.Context) {
	principal, ok := requirePrincipal(c)
	if !ok {
		return
	}

	var req usecase.PostInput
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadPayload(c)
		return
	}

	post, err := h.posts.Create(c.Request.Context(), principal, req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, newPostResponse(post))
}

// Edit godoc
// @Summary Edit a post; approved or rejected posts return to pending
// @Description Omitted fields keep their current value. An empty post_image removes the image.
// @Tags Posts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Post ID"
// @Param request body usecase.PostPatch true "Changed fields"
// @Success 200 {object} PostResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/posts/{id} [patch]
func (h *PostHandler) Edit(c *gin.Context) {
	principal, ok := requirePrincipal(c)
	if !ok {
		return
	}

	var req usecase.PostPatch
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadPayload(c)
		return
	}

	post, err := h.posts.Edit(c.Request.Context(), principal, c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, newPostResponse(post))
}

// Delete godoc
// @Summary Delete a post
// @Tags Posts
// @Security BearerAuth
// @Param id path string true "Post ID"
// @Success 204
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/posts/{id} [delete]
func (h *PostHandler) Delete(c *gin.Context) {
	principal, ok := requirePrincipal(c)
	if !ok {
		return
	}

	if err := h.posts.Delete(c.Request.Context(), principal, c.Param("id")); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// Get godoc
// @Summary Read a post
// @Description Pending and rejected posts are visible to their owner and admins only.
// @Tags Posts
// @Produce json
// @Security BearerAuth
// @Param id path string true "Post ID"
// @Success 200 {object} PostResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/posts/{id} [get]
func (h *PostHandler) Get(c *gin.Context) {
	principal, ok := requirePrincipal(c)
	if !ok {
		return
	}

	post, err := h.posts.Get(c.Request.Context(), principal, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, newPostResponse(post))
}

// ListMine godoc
// @Summary List the caller's posts
// @Tags Posts
// @Produce json
// @Security BearerAuth
// @Success 200 {object} PostListResponse
// @Router /api/v1/posts/mine [get]
func (h *PostHandler) ListMine(c *gin.Context) {
	principal, ok := requirePrincipal(c)
	if !ok {
		return
	}

	posts, err := h.posts.ListMine(c.Request.Context(), principal)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, newPostListResponse(posts))
}

// ListPending godoc
// @Summary Moderation queue, oldest first
// @Tags Moderation
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {object} PostListResponse
// @Failure 403 {object} ErrorResponse
// @Router /api/v1/admin/posts/pending [get]
func (h *PostHandler) ListPending(c *gin.Context) {
	principal, ok := requirePrincipal(c)
	if !ok {
		return
	}

	limit, okLimit := queryInt(c, "limit")
	offset, okOffset := queryInt(c, "offset")
	if !okLimit || !okOffset {
		respondError(c, &usecase.ValidationError{Fields: map[string]string{"pagination": "limit and offset must be non-negative integers"}})
		return
	}

	posts, err := h.posts.ListPending(c.Request.Context(), principal, limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, newPostListResponse(posts))
}

// Approve godoc
// @Summary Approve a pending or rejected post
// @Tags Moderation
// @Produce json
// @Security BearerAuth
// @Param id path string true "Post ID"
// @Success 200 {object} PostResponse
// @Failure 403 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /api/v1/admin/posts/{id}/approve [post]
func (h *PostHandler) Approve(c *gin.Context) {
	h.moderate(c, h.posts.Approve)
}

// Reject godoc
// @Summary Reject a pending or approved post
// @Tags Moderation
// @Produce json
// @Security BearerAuth
// @Param id path string true "Post ID"
// @Success 200 {object} PostResponse
// @Failure 403 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /api/v1/admin/posts/{id}/reject [post]
func (h *PostHandler) Reject(c *gin.Context) {
	h.moderate(c, h.posts.Reject)
}

func (h *PostHandler) moderate(c *gin.Context, action func(context.Context, domain.Principal, string) (domain.Post, error)) {
	principal, ok := requirePrincipal(c)
	if !ok {
		return
	}

	post, err := action(c.Request.Context(), principal, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, newPostResponse(post))
}

// queryInt parses an optional non-negative integer query parameter.
func queryInt(c *gin.Context, key string) (int, bool) {
	raw := c.Query(key)
	if raw == "" {
		return 0, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, false
	}
	return v, true
}

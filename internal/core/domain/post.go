package domain

import (
	"errors"
	"time"
)

// PostType distinguishes demand listings from supply listings.
type PostType string

const (
	PostTypeBuy  PostType = "buy"
	PostTypeSell PostType = "sell"
)

// PostStatus is the moderation state of a post.
type PostStatus string

const (
	PostStatusPending  PostStatus = "pending"
	PostStatusApproved PostStatus = "approved"
	PostStatusRejected PostStatus = "rejected"
)

// ModerationAction names an edge of the moderation state machine.
type ModerationAction string

const (
	ActionApprove  ModerationAction = "approve"
	ActionReject   ModerationAction = "reject"
	ActionResubmit ModerationAction = "resubmit"
)

// ErrInvalidTransition is returned when an action is not allowed from the current status.
var ErrInvalidTransition = errors.New("invalid moderation transition")

// Transition returns the status reached by applying action to s.
func (s PostStatus) Transition(action ModerationAction) (PostStatus, error) {
	switch action {
	case ActionApprove:
		if s == PostStatusPending || s == PostStatusRejected {
			return PostStatusApproved, nil
		}
	case ActionReject:
		if s == PostStatusPending || s == PostStatusApproved {
			return PostStatusRejected, nil
		}
	case ActionResubmit:
		return PostStatusPending, nil
	}
	return s, ErrInvalidTransition
}

// Post is a buy/sell listing owned by a user through their company.
type Post struct {
	ID          string
	CompanyID   string
	OwnerID     string
	Type        PostType
	Title       string
	Description string
	Category    string
	Budget      *float64
	Location    string
	Tags        []string
	Status      PostStatus
	PostImage   *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// PostContent carries the author-editable fields of a post.
type PostContent struct {
	Type        PostType
	Title       string
	Description string
	Category    string
	Budget      *float64
	Location    string
	Tags        []string
	PostImage   *string
}

// Content extracts the author-editable fields.
func (p Post) Content() PostContent {
	return PostContent{
		Type:        p.Type,
		Title:       p.Title,
		Description: p.Description,
		Category:    p.Category,
		Budget:      p.Budget,
		Location:    p.Location,
		Tags:        p.Tags,
		PostImage:   p.PostImage,
	}
}

// Apply overwrites the author-editable fields.
func (p *Post) Apply(c PostContent) {
	p.Type = c.Type
	p.Title = c.Title
	p.Description = c.Description
	p.Category = c.Category
	p.Budget = c.Budget
	p.Location = c.Location
	p.Tags = c.Tags
	p.PostImage = c.PostImage
}

// Equal reports whether two contents are identical field by field.
func (c PostContent) Equal(o PostContent) bool {
	if c.Type != o.Type || c.Title != o.Title || c.Description != o.Description ||
		c.Category != o.Category || c.Location != o.Location {
		return false
	}
	if !equalFloatPtr(c.Budget, o.Budget) || !equalStringPtr(c.PostImage, o.PostImage) {
		return false
	}
	if len(c.Tags) != len(o.Tags) {
		return false
	}
	for i := range c.Tags {
		if c.Tags[i] != o.Tags[i] {
			return false
		}
	}
	return true
}

func equalFloatPtr(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func equalStringPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// PostEmbedding stores the vector derived from a post description.
type PostEmbedding struct {
	PostID    string
	Vector    []float32
	UpdatedAt time.Time
}

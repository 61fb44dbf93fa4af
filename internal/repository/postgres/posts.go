package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/XCEIN/consyf-sub000/internal/core/domain"
	"github.com/XCEIN/consyf-sub000/internal/core/port"
	"github.com/XCEIN/consyf-sub000/internal/repository"
)

// Owner columns come from the joined company row.
var postColumns = []string{
	"p.id",
	"p.company_id",
	"c.user_id",
	"p.type",
	"p.title",
	"p.description",
	"p.category",
	"p.budget",
	"p.location",
	"p.tags",
	"p.status",
	"p.post_image",
	"p.created_at",
	"p.updated_at",
}

// PostRepository implements port.PostRepository using PostgreSQL.
type PostRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewPostRepository constructs a repository backed by any executor that satisfies pgExecutor.
func NewPostRepository(exec pgExecutor) *PostRepository {
	return &PostRepository{exec: exec, builder: newBuilder()}
}

// Create inserts a post row.
func (r *PostRepository) Create(ctx context.Context, post domain.Post) error {
	stmt, args, err := r.builder.Insert("posts").
		Columns(
			"id",
			"company_id",
			"type",
			"title",
			"description",
			"category",
			"budget",
			"location",
			"tags",
			"status",
			"post_image",
			"created_at",
			"updated_at",
		).
		Values(
			post.ID,
			post.CompanyID,
			string(post.Type),
			post.Title,
			post.Description,
			post.Category,
			post.Budget,
			post.Location,
			nonNilTags(post.Tags),
			string(post.Status),
			post.PostImage,
			post.CreatedAt,
			post.UpdatedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert post sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert post: %w", err)
	}
	return nil
}

// GetByID retrieves a post with its owner.
func (r *PostRepository) GetByID(ctx context.Context, id string) (*domain.Post, error) {
	return r.getOne(ctx, r.selectPosts().Where(squirrel.Eq{"p.id": id}))
}

// GetByIDForUpdate retrieves a post and locks its row.
func (r *PostRepository) GetByIDForUpdate(ctx context.Context, id string) (*domain.Post, error) {
	return r.getOne(ctx, r.selectPosts().Where(squirrel.Eq{"p.id": id}).Suffix("FOR UPDATE OF p"))
}

// Update overwrites the mutable columns of a post.
func (r *PostRepository) Update(ctx context.Context, post domain.Post) error {
	stmt, args, err := r.builder.Update("posts").
		Set("type", string(post.Type)).
		Set("title", post.Title).
		Set("description", post.Description).
		Set("category", post.Category).
		Set("budget", post.Budget).
		Set("location", post.Location).
		Set("tags", nonNilTags(post.Tags)).
		Set("status", string(post.Status)).
		Set("post_image", post.PostImage).
		Set("updated_at", post.UpdatedAt).
		Where(squirrel.Eq{"id": post.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update post sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("update post: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// Delete removes a post.
func (r *PostRepository) Delete(ctx context.Context, id string) error {
	stmt, args, err := r.builder.Delete("posts").Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete post sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// ListByOwner returns the user's posts, newest first.
func (r *PostRepository) ListByOwner(ctx context.Context, ownerID string) ([]domain.Post, error) {
	return r.list(ctx, r.selectPosts().
		Where(squirrel.Eq{"c.user_id": ownerID}).
		OrderBy("p.created_at DESC"))
}

// ListByStatus returns posts in the given status, oldest first.
func (r *PostRepository) ListByStatus(ctx context.Context, status domain.PostStatus, limit, offset int) ([]domain.Post, error) {
	query := r.selectPosts().
		Where(squirrel.Eq{"p.status": string(status)}).
		OrderBy("p.created_at ASC")
	if limit > 0 {
		query = query.Limit(uint64(limit))
	}
	if offset > 0 {
		query = query.Offset(uint64(offset))
	}
	return r.list(ctx, query)
}

// CountByOwnerAndStatus counts the user's posts in one status.
func (r *PostRepository) CountByOwnerAndStatus(ctx context.Context, ownerID string, status domain.PostStatus) (int, error) {
	return r.count(ctx, squirrel.Eq{"c.user_id": ownerID, "p.status": string(status)})
}

// DeleteByOwner removes every post reachable through the user's company.
func (r *PostRepository) DeleteByOwner(ctx context.Context, ownerID string) ([]domain.Post, error) {
	stmt, args, err := r.builder.Delete("posts p USING companies c").
		Where("c.id = p.company_id").
		Where(squirrel.Eq{"c.user_id": ownerID}).
		Suffix("RETURNING " + strings.Join(postColumns, ", ")).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build delete posts by owner sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("delete posts by owner: %w", err)
	}
	return collectPosts(rows)
}

func (r *PostRepository) selectPosts() squirrel.SelectBuilder {
	return r.builder.Select(postColumns...).
		From("posts p").
		Join("companies c ON c.id = p.company_id")
}

func (r *PostRepository) getOne(ctx context.Context, query squirrel.SelectBuilder) (*domain.Post, error) {
	stmt, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select post sql: %w", err)
	}

	post, err := scanPost(r.exec.QueryRow(ctx, stmt, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan post: %w", err)
	}
	return post, nil
}

func (r *PostRepository) list(ctx context.Context, query squirrel.SelectBuilder) ([]domain.Post, error) {
	stmt, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list posts sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	return collectPosts(rows)
}

func (r *PostRepository) count(ctx context.Context, where squirrel.Eq) (int, error) {
	stmt, args, err := r.builder.Select("COUNT(*)").
		From("posts p").
		Join("companies c ON c.id = p.company_id").
		Where(where).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count posts sql: %w", err)
	}

	var count int
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count posts: %w", err)
	}
	return count, nil
}

func collectPosts(rows pgx.Rows) ([]domain.Post, error) {
	defer rows.Close()

	posts := make([]domain.Post, 0)
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		posts = append(posts, *post)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate posts: %w", err)
	}
	return posts, nil
}

func scanPost(row rowScanner) (*domain.Post, error) {
	var (
		post     domain.Post
		postType string
		status   string
	)
	if err := row.Scan(
		&post.ID,
		&post.CompanyID,
		&post.OwnerID,
		&postType,
		&post.Title,
		&post.Description,
		&post.Category,
		&post.Budget,
		&post.Location,
		&post.Tags,
		&status,
		&post.PostImage,
		&post.CreatedAt,
		&post.UpdatedAt,
	); err != nil {
		return nil, err
	}
	post.Type = domain.PostType(postType)
	post.Status = domain.PostStatus(status)
	return &post, nil
}

func nonNilTags(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}

var _ port.PostRepository = (*PostRepository)(nil)

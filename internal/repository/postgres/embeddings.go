package postgres

import (
	"context"
	"fmt"

	squirrel "github.com/Masterminds/squirrel"

	"github.com/XCEIN/consyf-sub000/internal/core/domain"
	"github.com/XCEIN/consyf-sub000/internal/core/port"
)

// EmbeddingRepository implements port.EmbeddingRepository on post_embeddings.
type EmbeddingRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewEmbeddingRepository constructs a repository backed by any executor that satisfies pgExecutor.
func NewEmbeddingRepository(exec pgExecutor) *EmbeddingRepository {
	return &EmbeddingRepository{exec: exec, builder: newBuilder()}
}

// Upsert stores or replaces the vector for a post.
func (r *EmbeddingRepository) Upsert(ctx context.Context, embedding domain.PostEmbedding) error {
	stmt, args, err := r.builder.Insert("post_embeddings").
		Columns("post_id", "vector", "updated_at").
		Values(embedding.PostID, embedding.Vector, embedding.UpdatedAt).
		Suffix("ON CONFLICT (post_id) DO UPDATE SET vector = EXCLUDED.vector, updated_at = EXCLUDED.updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert embedding sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("upsert embedding: %w", err)
	}
	return nil
}

// Delete removes the vector for a post. Missing rows are not an error.
func (r *EmbeddingRepository) Delete(ctx context.Context, postID string) error {
	return r.DeleteByPostIDs(ctx, []string{postID})
}

// DeleteByPostIDs removes vectors for every listed post.
func (r *EmbeddingRepository) DeleteByPostIDs(ctx context.Context, postIDs []string) error {
	if len(postIDs) == 0 {
		return nil
	}

	stmt, args, err := r.builder.Delete("post_embeddings").
		Where(squirrel.Eq{"post_id": postIDs}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete embeddings sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("delete embeddings: %w", err)
	}
	return nil
}

var _ port.EmbeddingRepository = (*EmbeddingRepository)(nil)

package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/XCEIN/consyf-sub000/internal/core/domain"
	"github.com/XCEIN/consyf-sub000/internal/core/port"
	"github.com/XCEIN/consyf-sub000/internal/repository"
)

var tokenColumns = []string{
	"id",
	"user_id",
	"purpose",
	"secret_hash",
	"created_at",
	"expires_at",
	"consumed_at",
}

// TokenRepository implements port.TokenRepository on the lifecycle_tokens table.
// Rows are never deleted; superseded tokens simply stop matching.
type TokenRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewTokenRepository constructs a repository backed by any executor that satisfies pgExecutor.
func NewTokenRepository(exec pgExecutor) *TokenRepository {
	return &TokenRepository{exec: exec, builder: newBuilder()}
}

// Create appends a token row.
func (r *TokenRepository) Create(ctx context.Context, token domain.Token) error {
	stmt, args, err := r.builder.Insert("lifecycle_tokens").
		Columns(tokenColumns...).
		Values(
			token.ID,
			token.UserID,
			string(token.Purpose),
			token.SecretHash,
			token.CreatedAt,
			token.ExpiresAt,
			token.ConsumedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert token sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert token: %w", err)
	}
	return nil
}

// FindLatestActive locks and returns the newest matching active token for the user.
func (r *TokenRepository) FindLatestActive(ctx context.Context, userID string, purpose domain.TokenPurpose, secretHash string, now time.Time) (*domain.Token, error) {
	return r.findActive(ctx, squirrel.Eq{
		"user_id":     userID,
		"purpose":     string(purpose),
		"secret_hash": secretHash,
	}, now)
}

// FindActiveBySecret locks and returns the active token with the given hash.
func (r *TokenRepository) FindActiveBySecret(ctx context.Context, purpose domain.TokenPurpose, secretHash string, now time.Time) (*domain.Token, error) {
	return r.findActive(ctx, squirrel.Eq{
		"purpose":     string(purpose),
		"secret_hash": secretHash,
	}, now)
}

// Consume marks the token used. Already consumed tokens yield repository.ErrNotFound.
func (r *TokenRepository) Consume(ctx context.Context, id string, at time.Time) error {
	stmt, args, err := r.builder.Update("lifecycle_tokens").
		Set("consumed_at", at).
		Where(squirrel.Eq{"id": id, "consumed_at": nil}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build consume token sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("consume token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *TokenRepository) findActive(ctx context.Context, match squirrel.Eq, now time.Time) (*domain.Token, error) {
	stmt, args, err := r.builder.Select(tokenColumns...).
		From("lifecycle_tokens").
		Where(match).
		Where(squirrel.Eq{"consumed_at": nil}).
		Where(squirrel.Gt{"expires_at": now}).
		OrderBy("created_at DESC").
		Limit(1).
		Suffix("FOR UPDATE").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select token sql: %w", err)
	}

	var (
		token   domain.Token
		purpose string
	)
	err = r.exec.QueryRow(ctx, stmt, args...).Scan(
		&token.ID,
		&token.UserID,
		&purpose,
		&token.SecretHash,
		&token.CreatedAt,
		&token.ExpiresAt,
		&token.ConsumedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan token: %w", err)
	}
	token.Purpose = domain.TokenPurpose(purpose)
	return &token, nil
}

var _ port.TokenRepository = (*TokenRepository)(nil)

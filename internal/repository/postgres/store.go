package postgres

import (
	"context"
	"errors"
	"fmt"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/XCEIN/consyf-sub000/internal/core/port"
)

const uniqueViolationCode = "23505"

// pgExecutor is satisfied by pgxpool.Pool, pgx.Tx and pgxmock pools.
type pgExecutor interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// txStarter is an executor able to open transactions.
type txStarter interface {
	pgExecutor
	Begin(ctx context.Context) (pgx.Tx, error)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func newBuilder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode
}

func violatedConstraint(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.ConstraintName
	}
	return ""
}

// Store implements port.Store on top of a pgx pool.
type Store struct {
	db txStarter
}

// NewStore wraps the provided pool.
func NewStore(db txStarter) *Store {
	return &Store{db: db}
}

// Repositories returns repositories bound to the pool.
func (s *Store) Repositories() port.Repositories {
	return bind(s.db)
}

// InTx runs fn inside a single transaction. A panic inside fn rolls back and re-panics.
func (s *Store) InTx(ctx context.Context, fn func(repos port.Repositories) error) (err error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				err = errors.Join(err, fmt.Errorf("rollback tx: %w", rbErr))
			}
			return
		}
		if cErr := tx.Commit(ctx); cErr != nil {
			err = fmt.Errorf("commit tx: %w", cErr)
		}
	}()

	return fn(bind(tx))
}

func bind(exec pgExecutor) port.Repositories {
	return port.Repositories{
		Users:         NewUserRepository(exec),
		Tokens:        NewTokenRepository(exec),
		Companies:     NewCompanyRepository(exec),
		Posts:         NewPostRepository(exec),
		Embeddings:    NewEmbeddingRepository(exec),
		Notifications: NewNotificationRepository(exec),
	}
}

var _ port.Store = (*Store)(nil)

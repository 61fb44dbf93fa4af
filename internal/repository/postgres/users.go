package postgres

import (
	"context"
	"errors"
	"fmt"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/XCEIN/consyf-sub000/internal/core/domain"
	"github.com/XCEIN/consyf-sub000/internal/core/port"
	"github.com/XCEIN/consyf-sub000/internal/repository"
)

var userColumns = []string{
	"id",
	"name",
	"email",
	"phone",
	"password_hash",
	"email_verified",
	"role",
	"account_type",
	"avatar",
	"created_at",
}

const usersPhoneKey = "users_phone_key"

// UserRepository implements port.UserRepository using PostgreSQL.
type UserRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewUserRepository constructs a repository backed by any executor that satisfies pgExecutor.
func NewUserRepository(exec pgExecutor) *UserRepository {
	return &UserRepository{exec: exec, builder: newBuilder()}
}

// Create inserts a new user row. A duplicate email yields repository.ErrConflict.
func (r *UserRepository) Create(ctx context.Context, user domain.User) error {
	stmt, args, err := r.builder.Insert("users").
		Columns(userColumns...).
		Values(
			user.ID,
			user.Name,
			domain.NormalizeEmail(user.Email),
			user.Phone,
			user.PasswordHash,
			user.EmailVerified,
			string(user.Role),
			string(user.AccountType),
			user.Avatar,
			user.CreatedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert user sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		if isUniqueViolation(err) {
			if violatedConstraint(err) == usersPhoneKey {
				return repository.ErrPhoneConflict
			}
			return repository.ErrConflict
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetByID retrieves a user by identifier.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.getOne(ctx, r.selectUsers().Where(squirrel.Eq{"id": id}))
}

// GetByIDForUpdate retrieves a user by identifier and locks the row.
func (r *UserRepository) GetByIDForUpdate(ctx context.Context, id string) (*domain.User, error) {
	return r.getOne(ctx, r.selectUsers().Where(squirrel.Eq{"id": id}).Suffix("FOR UPDATE"))
}

// GetByEmail retrieves a user by case-insensitive email.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getOne(ctx, r.selectUsers().Where(squirrel.Expr("lower(email) = ?", domain.NormalizeEmail(email))))
}

// GetByPhone retrieves a user by exact phone number.
func (r *UserRepository) GetByPhone(ctx context.Context, phone string) (*domain.User, error) {
	return r.getOne(ctx, r.selectUsers().Where(squirrel.Eq{"phone": phone}))
}

// MarkEmailVerified flips the verification flag.
func (r *UserRepository) MarkEmailVerified(ctx context.Context, id string) error {
	return r.update(ctx, "mark email verified", r.builder.Update("users").
		Set("email_verified", true).
		Where(squirrel.Eq{"id": id}))
}

// UpdatePassword overwrites the stored password hash.
func (r *UserRepository) UpdatePassword(ctx context.Context, id string, passwordHash string) error {
	return r.update(ctx, "update password", r.builder.Update("users").
		Set("password_hash", passwordHash).
		Where(squirrel.Eq{"id": id}))
}

// UpdateAccountType persists a new account type.
func (r *UserRepository) UpdateAccountType(ctx context.Context, id string, accountType domain.AccountType) error {
	return r.update(ctx, "update account type", r.builder.Update("users").
		Set("account_type", string(accountType)).
		Where(squirrel.Eq{"id": id}))
}

// RecordPersonalPost bumps the lifetime count of posts created while the account
// was personal and returns the new total. Deleting posts never lowers it.
func (r *UserRepository) RecordPersonalPost(ctx context.Context, id string) (int, error) {
	stmt, args, err := r.builder.Update("users").
		Set("personal_posts_created", squirrel.Expr("personal_posts_created + 1")).
		Where(squirrel.Eq{"id": id}).
		Suffix("RETURNING personal_posts_created").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build record personal post sql: %w", err)
	}

	var total int
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(&total); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, repository.ErrNotFound
		}
		return 0, fmt.Errorf("record personal post: %w", err)
	}
	return total, nil
}

func (r *UserRepository) selectUsers() squirrel.SelectBuilder {
	return r.builder.Select(userColumns...).From("users")
}

func (r *UserRepository) getOne(ctx context.Context, query squirrel.SelectBuilder) (*domain.User, error) {
	stmt, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select user sql: %w", err)
	}

	user, err := scanUser(r.exec.QueryRow(ctx, stmt, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return user, nil
}

func (r *UserRepository) update(ctx context.Context, op string, query squirrel.UpdateBuilder) error {
	stmt, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build %s sql: %w", op, err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func scanUser(row rowScanner) (*domain.User, error) {
	var (
		user        domain.User
		role        string
		accountType string
	)
	if err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.Phone,
		&user.PasswordHash,
		&user.EmailVerified,
		&role,
		&accountType,
		&user.Avatar,
		&user.CreatedAt,
	); err != nil {
		return nil, err
	}
	user.Role = domain.Role(role)
	user.AccountType = domain.AccountType(accountType)
	return &user, nil
}

var _ port.UserRepository = (*UserRepository)(nil)

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

// CompanyRepository implements port.CompanyRepository using PostgreSQL.
type CompanyRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewCompanyRepository constructs a repository backed by any executor that satisfies pgExecutor.
func NewCompanyRepository(exec pgExecutor) *CompanyRepository {
	return &CompanyRepository{exec: exec, builder: newBuilder()}
}

// Create inserts a company. A second company for the same user yields repository.ErrConflict.
func (r *CompanyRepository) Create(ctx context.Context, company domain.Company) error {
	stmt, args, err := r.builder.Insert("companies").
		Columns("id", "user_id", "name", "sector", "created_at").
		Values(company.ID, company.UserID, company.Name, company.Sector, company.CreatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert company sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		if isUniqueViolation(err) {
			return repository.ErrConflict
		}
		return fmt.Errorf("insert company: %w", err)
	}
	return nil
}

// Update overwrites the company name and sector.
func (r *CompanyRepository) Update(ctx context.Context, company domain.Company) error {
	stmt, args, err := r.builder.Update("companies").
		Set("name", company.Name).
		Set("sector", company.Sector).
		Where(squirrel.Eq{"id": company.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update company sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("update company: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// GetByUserID returns the company owned by the user.
func (r *CompanyRepository) GetByUserID(ctx context.Context, userID string) (*domain.Company, error) {
	stmt, args, err := r.builder.Select("id", "user_id", "name", "sector", "created_at").
		From("companies").
		Where(squirrel.Eq{"user_id": userID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select company sql: %w", err)
	}

	var company domain.Company
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(
		&company.ID,
		&company.UserID,
		&company.Name,
		&company.Sector,
		&company.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan company: %w", err)
	}
	return &company, nil
}

var _ port.CompanyRepository = (*CompanyRepository)(nil)

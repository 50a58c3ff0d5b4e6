package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/spec-kit/portal-auth/internal/domain"
)

// SupportUserRepository handles persistence for internal operators.
type SupportUserRepository interface {
	Create(ctx context.Context, user *domain.SupportUser) error
	GetByID(ctx context.Context, id string) (*domain.SupportUser, error)
	GetByEmail(ctx context.Context, email string) (*domain.SupportUser, error)
	List(ctx context.Context, filter SupportUserFilter) ([]domain.SupportUser, error)
}

// SupportUserFilter defines query params for listing.
type SupportUserFilter struct {
	Role   *domain.SupportRole
	Active *bool
	Limit  int
	Offset int
}

type supportUserRepository struct {
	db Querier
}

// NewSupportUserRepository instantiates the repository.
func NewSupportUserRepository(db Querier) SupportUserRepository {
	return &supportUserRepository{db: db}
}

const supportUserColumns = `id, name, email, password_hash, role, active_flag, created_at, updated_at`

func (r *supportUserRepository) Create(ctx context.Context, user *domain.SupportUser) error {
	const query = `
        INSERT INTO support_users (name, email, password_hash, role, active_flag)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id, created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		user.Name,
		user.Email,
		user.PasswordHash,
		user.Role,
		user.Active,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicateEmail
	}
	return err
}

func (r *supportUserRepository) GetByID(ctx context.Context, id string) (*domain.SupportUser, error) {
	return r.getOne(ctx, `SELECT `+supportUserColumns+` FROM support_users WHERE id=$1`, id)
}

func (r *supportUserRepository) GetByEmail(ctx context.Context, email string) (*domain.SupportUser, error) {
	return r.getOne(ctx, `SELECT `+supportUserColumns+` FROM support_users WHERE email=$1`, email)
}

func (r *supportUserRepository) getOne(ctx context.Context, query string, arg string) (*domain.SupportUser, error) {
	var u domain.SupportUser
	if err := r.db.QueryRow(ctx, query, arg).Scan(
		&u.ID,
		&u.Name,
		&u.Email,
		&u.PasswordHash,
		&u.Role,
		&u.Active,
		&u.CreatedAt,
		&u.UpdatedAt,
	); err != nil {
		return nil, mapNoRows(err)
	}
	return &u, nil
}

func (r *supportUserRepository) List(ctx context.Context, filter SupportUserFilter) ([]domain.SupportUser, error) {
	query := `SELECT ` + supportUserColumns + ` FROM support_users`
	args := []any{}
	clauses := []string{}

	if filter.Role != nil {
		args = append(args, *filter.Role)
		clauses = append(clauses, fmt.Sprintf("role=$%d", len(args)))
	}
	if filter.Active != nil {
		args = append(args, *filter.Active)
		clauses = append(clauses, fmt.Sprintf("active_flag=$%d", len(args)))
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}

	query += " ORDER BY created_at DESC"
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	query += fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.SupportUser
	for rows.Next() {
		var u domain.SupportUser
		if err := rows.Scan(
			&u.ID,
			&u.Name,
			&u.Email,
			&u.PasswordHash,
			&u.Role,
			&u.Active,
			&u.CreatedAt,
			&u.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, u)
	}
	return result, rows.Err()
}

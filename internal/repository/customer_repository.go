package repository

import (
	"context"

	"github.com/spec-kit/portal-auth/internal/domain"
)

// CustomerRepository reads organization members for credential checks.
type CustomerRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Customer, error)
	GetByEmail(ctx context.Context, email string) (*domain.Customer, error)
}

type customerRepository struct {
	db Querier
}

// NewCustomerRepository returns a Postgres-backed implementation.
func NewCustomerRepository(db Querier) CustomerRepository {
	return &customerRepository{db: db}
}

const customerColumns = `id, organization_id, name, email, password_hash, role, status, created_at, updated_at`

func (r *customerRepository) GetByID(ctx context.Context, id string) (*domain.Customer, error) {
	return r.getOne(ctx, `SELECT `+customerColumns+` FROM customers WHERE id=$1`, id)
}

func (r *customerRepository) GetByEmail(ctx context.Context, email string) (*domain.Customer, error) {
	return r.getOne(ctx, `SELECT `+customerColumns+` FROM customers WHERE email=$1`, email)
}

func (r *customerRepository) getOne(ctx context.Context, query string, arg string) (*domain.Customer, error) {
	var c domain.Customer
	if err := r.db.QueryRow(ctx, query, arg).Scan(
		&c.ID,
		&c.OrganizationID,
		&c.Name,
		&c.Email,
		&c.PasswordHash,
		&c.Role,
		&c.Status,
		&c.CreatedAt,
		&c.UpdatedAt,
	); err != nil {
		return nil, mapNoRows(err)
	}
	return &c, nil
}

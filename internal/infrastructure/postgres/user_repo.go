package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/layoffproof/layoff-tracker/internal/domain"
	"github.com/layoffproof/layoff-tracker/internal/repository"
)

const userColumns = `id, email, name, stripe_customer_id, company_id, created_at, updated_at`

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

func (r *UserRepository) FindOrCreate(ctx context.Context, email string) (*domain.User, error) {
	// The no-op update makes RETURNING yield the existing row on conflict.
	query := `
		INSERT INTO users (email) VALUES (LOWER($1))
		ON CONFLICT (email) DO UPDATE SET email = EXCLUDED.email
		RETURNING ` + userColumns

	u, err := scanUser(r.pool.QueryRow(ctx, query, email))
	if err != nil {
		return nil, fmt.Errorf("find or create user: %w", err)
	}
	return u, nil
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.pool.QueryRow(ctx, query, id))
}

func (r *UserRepository) FindByStripeCustomerID(ctx context.Context, customerID string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE stripe_customer_id = $1`
	return scanUser(r.pool.QueryRow(ctx, query, customerID))
}

func (r *UserRepository) UpdateProfile(ctx context.Context, id string, input repository.UpdateProfileInput) (*domain.User, error) {
	query := `
		UPDATE users
		SET    name       = COALESCE($2, name),
		       updated_at = NOW()
		WHERE  id = $1
		RETURNING ` + userColumns

	return scanUser(r.pool.QueryRow(ctx, query, id, input.Name))
}

func (r *UserRepository) SetStripeCustomerID(ctx context.Context, id, customerID string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET stripe_customer_id = $2, updated_at = NOW() WHERE id = $1`,
		id, customerID,
	)
	if err != nil {
		return fmt.Errorf("set stripe customer id: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) SelectCompany(ctx context.Context, id, companyID string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET company_id = $2, updated_at = NOW() WHERE id = $1`,
		id, companyID,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return domain.ErrCompanyNotFound
		}
		return fmt.Errorf("select company: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.StripeCustomerID, &u.CompanyID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &u, nil
}

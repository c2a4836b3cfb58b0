package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/layoffproof/layoff-tracker/internal/domain"
)

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

type CompanyRepository struct {
	pool *pgxpool.Pool
}

func NewCompanyRepository(pool *pgxpool.Pool) *CompanyRepository {
	return &CompanyRepository{pool: pool}
}

// Search matches companies whose name contains query, case-insensitively.
// Prefix matches sort first.
func (r *CompanyRepository) Search(ctx context.Context, query string, limit int) ([]*domain.Company, error) {
	sql := `
		SELECT id, name, industry, layoff_count, last_layoff_at, employee_count, created_at
		FROM   companies
		WHERE  LOWER(name) LIKE '%' || LOWER($1) || '%'
		ORDER BY (LOWER(name) LIKE LOWER($1) || '%') DESC, layoff_count DESC, name ASC
		LIMIT  $2`

	rows, err := r.pool.Query(ctx, sql, likeEscaper.Replace(query), limit)
	if err != nil {
		return nil, fmt.Errorf("search companies: %w", err)
	}
	defer rows.Close()

	var companies []*domain.Company
	for rows.Next() {
		c, err := scanCompany(rows)
		if err != nil {
			return nil, err
		}
		companies = append(companies, c)
	}
	return companies, rows.Err()
}

func (r *CompanyRepository) GetByID(ctx context.Context, id string) (*domain.Company, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, industry, layoff_count, last_layoff_at, employee_count, created_at
		FROM   companies
		WHERE  id = $1`, id)
	return scanCompany(row)
}

func scanCompany(row rowScanner) (*domain.Company, error) {
	var c domain.Company
	err := row.Scan(&c.ID, &c.Name, &c.Industry, &c.LayoffCount, &c.LastLayoffAt, &c.EmployeeCount, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrCompanyNotFound
		}
		return nil, fmt.Errorf("scan company: %w", err)
	}
	return &c, nil
}

package repository

import (
	"context"

	"github.com/layoffproof/layoff-tracker/internal/domain"
)

type CompanyRepository interface {
	Search(ctx context.Context, query string, limit int) ([]*domain.Company, error)
	GetByID(ctx context.Context, id string) (*domain.Company, error)
}

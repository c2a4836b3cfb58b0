package repository

import (
	"context"

	"github.com/layoffproof/layoff-tracker/internal/domain"
)

type UpdateProfileInput struct {
	Name *string
}

type UserRepository interface {
	FindOrCreate(ctx context.Context, email string) (*domain.User, error)
	FindByID(ctx context.Context, id string) (*domain.User, error)
	FindByStripeCustomerID(ctx context.Context, customerID string) (*domain.User, error)
	UpdateProfile(ctx context.Context, id string, input UpdateProfileInput) (*domain.User, error)
	// SetStripeCustomerID overwrites any previously stored gateway customer id.
	SetStripeCustomerID(ctx context.Context, id, customerID string) error
	SelectCompany(ctx context.Context, id, companyID string) error
}

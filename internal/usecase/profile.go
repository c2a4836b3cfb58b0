package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/layoffproof/layoff-tracker/internal/domain"
	"github.com/layoffproof/layoff-tracker/internal/repository"
)

const (
	companySearchLimit    = 20
	notificationListLimit = 50
	maxNameLength         = 100
)

var ErrInvalidName = errors.New("name must be 1-100 characters")

type ProfileUsecase struct {
	users         repository.UserRepository
	companies     repository.CompanyRepository
	subs          repository.SubscriptionRepository
	notifications repository.NotificationRepository
}

func NewProfileUsecase(
	users repository.UserRepository,
	companies repository.CompanyRepository,
	subs repository.SubscriptionRepository,
	notifications repository.NotificationRepository,
) *ProfileUsecase {
	return &ProfileUsecase{
		users:         users,
		companies:     companies,
		subs:          subs,
		notifications: notifications,
	}
}

// GetProfile assembles the user, the tracked company and the mirrored
// subscription status. A missing subscription or company is not an error.
func (u *ProfileUsecase) GetProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	user, err := u.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	profile := &domain.Profile{User: user}

	if user.CompanyID != nil {
		company, err := u.companies.GetByID(ctx, *user.CompanyID)
		switch {
		case err == nil:
			profile.Company = company
		case !errors.Is(err, domain.ErrCompanyNotFound):
			return nil, fmt.Errorf("load company: %w", err)
		}
	}

	sub, err := u.subs.LatestForUser(ctx, userID)
	switch {
	case err == nil:
		profile.SubscriptionStatus = sub.Status
	case !errors.Is(err, domain.ErrSubscriptionNotFound):
		return nil, fmt.Errorf("load subscription: %w", err)
	}
	return profile, nil
}

func (u *ProfileUsecase) UpdateProfile(ctx context.Context, userID string, input repository.UpdateProfileInput) (*domain.Profile, error) {
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" || len([]rune(name)) > maxNameLength {
			return nil, ErrInvalidName
		}
		input.Name = &name
	}
	if _, err := u.users.UpdateProfile(ctx, userID, input); err != nil {
		return nil, err
	}
	return u.GetProfile(ctx, userID)
}

// SearchCompanies matches names case-insensitively. An empty query returns
// no results rather than the whole table.
func (u *ProfileUsecase) SearchCompanies(ctx context.Context, query string) ([]*domain.Company, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []*domain.Company{}, nil
	}
	return u.companies.Search(ctx, query, companySearchLimit)
}

func (u *ProfileUsecase) SelectCompany(ctx context.Context, userID, companyID string) (*domain.Profile, error) {
	if err := u.users.SelectCompany(ctx, userID, companyID); err != nil {
		return nil, err
	}
	return u.GetProfile(ctx, userID)
}

// ListNotifications returns the user's notifications, newest first.
func (u *ProfileUsecase) ListNotifications(ctx context.Context, userID string, unreadOnly bool) ([]*domain.Notification, error) {
	return u.notifications.ListForUser(ctx, userID, unreadOnly, notificationListLimit)
}

func (u *ProfileUsecase) MarkNotificationRead(ctx context.Context, userID, notificationID string) error {
	return u.notifications.MarkRead(ctx, notificationID, userID)
}

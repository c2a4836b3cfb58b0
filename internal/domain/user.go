package domain

import "time"

type User struct {
	ID               string
	Email            string
	Name             string
	StripeCustomerID *string // nil until the first billing interaction
	CompanyID        *string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Profile is the user plus the billing status mirrored for the UI.
type Profile struct {
	User               *User
	Company            *Company
	SubscriptionStatus SubscriptionStatus
}

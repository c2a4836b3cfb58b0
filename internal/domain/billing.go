package domain

import (
	"errors"
	"time"
)

var (
	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrSubscriptionExists   = errors.New("an active subscription already exists")
	ErrNoCheckoutSession    = errors.New("no checkout session in progress")
	ErrCheckoutSetup        = errors.New("checkout could not be set up")
	ErrCheckoutSuperseded   = errors.New("a newer checkout action is in progress")
	ErrInvalidAmount        = errors.New("amount must be a positive value")
	ErrPlanNotConfigured    = errors.New("no recurring price is configured")
)

// SubscriptionStatus mirrors the gateway's subscription states.
type SubscriptionStatus string

const (
	SubscriptionNone              SubscriptionStatus = ""
	SubscriptionIncomplete        SubscriptionStatus = "incomplete"
	SubscriptionIncompleteExpired SubscriptionStatus = "incomplete_expired"
	SubscriptionTrialing          SubscriptionStatus = "trialing"
	SubscriptionActive            SubscriptionStatus = "active"
	SubscriptionPastDue           SubscriptionStatus = "past_due"
	SubscriptionUnpaid            SubscriptionStatus = "unpaid"
	SubscriptionPaused            SubscriptionStatus = "paused"
	SubscriptionCanceled          SubscriptionStatus = "canceled"
)

// Terminal reports whether no further transition can happen. Cancellation is final.
func (s SubscriptionStatus) Terminal() bool {
	return s == SubscriptionCanceled || s == SubscriptionIncompleteExpired
}

// Premium reports whether the status grants premium access.
func (s SubscriptionStatus) Premium() bool {
	return s == SubscriptionActive || s == SubscriptionTrialing
}

// Subscription is the local mirror of a gateway subscription. The gateway owns
// the record; only ids and the last seen status are kept here.
type Subscription struct {
	ID                   string
	UserID               string
	StripeSubscriptionID string
	StripeCustomerID     string
	PriceID              string
	Status               SubscriptionStatus
	CurrentPeriodEnd     *time.Time
	CanceledAt           *time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

type CheckoutMode string

const (
	CheckoutTrial        CheckoutMode = "trial"
	CheckoutSubscription CheckoutMode = "subscription"
)

// CheckoutSession is the per-user "subscription intent" handed to the payment
// form. Only one session exists per user; replacing it discards the old secret.
type CheckoutSession struct {
	UserID       string
	Mode         CheckoutMode
	IntentID     string
	ClientSecret string
	Status       string
	Amount       int64 // minor units; zero for trial
	Currency     string
	UpdatedAt    time.Time
}

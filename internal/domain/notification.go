package domain

import (
	"errors"
	"time"
)

var ErrNotificationNotFound = errors.New("notification not found")

type NotificationKind string

const (
	NotificationLayoff        NotificationKind = "layoff"
	NotificationPaymentFailed NotificationKind = "payment_failed"
	NotificationSubscription  NotificationKind = "subscription"
)

type Notification struct {
	ID     string
	UserID string
	Kind   NotificationKind
	Title  string
	Body   string
	// SourceID names the gateway object that raised the notification, such
	// as an invoice id. Empty for notifications without one.
	SourceID  string
	ReadAt    *time.Time
	CreatedAt time.Time
}

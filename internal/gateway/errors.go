package gateway

import (
	"errors"
	"fmt"
)

var (
	// ErrGateway matches every error produced by a remote gateway call.
	ErrGateway = errors.New("gateway error")
	// ErrGatewayUnavailable is returned when a customer lookup fails for a
	// reason other than the customer not existing.
	ErrGatewayUnavailable = errors.New("gateway unavailable")
	ErrNotFound           = errors.New("gateway resource not found")
	ErrInvalidSignature   = errors.New("invalid webhook signature")
	// ErrWebhookNotConfigured is returned when no signing secret is set.
	ErrWebhookNotConfigured = errors.New("webhook signing secret is not configured")
)

type ErrorKind string

const (
	KindNetwork    ErrorKind = "network"
	KindAuth       ErrorKind = "auth"
	KindValidation ErrorKind = "validation"
	KindNotFound   ErrorKind = "not_found"
	KindRateLimit  ErrorKind = "rate_limit"
	KindOther      ErrorKind = "other"
)

// Error describes a failed gateway call. The SDK error is kept as Err.
type Error struct {
	Op         string
	Kind       ErrorKind
	Code       string
	StatusCode int
	RequestID  string
	Err        error
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s (%s): %v", e.Op, e.Kind, e.Code, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	switch target {
	case ErrGateway:
		return true
	case ErrNotFound:
		return e.Kind == KindNotFound
	}
	return false
}

// Retryable reports whether a user re-submitting the same action may succeed.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindNetwork, KindRateLimit, KindOther:
		return true
	}
	return false
}

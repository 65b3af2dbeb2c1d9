package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrMissingSignature is returned when a webhook arrives without its HMAC header
	ErrMissingSignature = errors.New("missing webhook signature")
	// ErrInvalidSignature is returned when the HMAC does not match the raw body
	ErrInvalidSignature = errors.New("invalid webhook signature")
	// ErrIntegrationNotFound is returned when an integration id does not resolve
	ErrIntegrationNotFound = errors.New("integration not found")
	// ErrIntegrationDisconnected is returned for operations that need a live integration
	ErrIntegrationDisconnected = errors.New("integration is disconnected")
	// ErrImportRunning is returned when an import is already in progress
	ErrImportRunning = errors.New("import already running")
)

// ValidationError is an inbound request that can never succeed as sent
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NewValidationError creates a ValidationError for field
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// AuthError is a platform 401/403: the access token was revoked or lacks scope
type AuthError struct {
	Status  int
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("platform authentication failed (%d): %s", e.Status, e.Message)
}

// NotFoundError is a platform 404
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("platform resource not found: %s", e.Message)
}

// RateLimitedError is a platform 429
type RateLimitedError struct {
	RetryAfter time.Duration
	Message    string
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("platform rate limited, retry after %s: %s", e.RetryAfter, e.Message)
}

// PlatformError is any other platform failure including transport errors and timeouts
type PlatformError struct {
	Status  int
	Message string
	Err     error
}

func (e *PlatformError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("platform request failed: %s", e.Message)
	}
	return fmt.Sprintf("platform request failed (%d): %s", e.Status, e.Message)
}

func (e *PlatformError) Unwrap() error {
	return e.Err
}

// IsTransientPlatformError reports whether err is a platform failure worth retrying later
func IsTransientPlatformError(err error) bool {
	var rl *RateLimitedError
	var pe *PlatformError
	return errors.As(err, &rl) || errors.As(err, &pe)
}

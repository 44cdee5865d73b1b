// Package errors provides the standardized error taxonomy for the
// generation pipeline and quota subsystem.
package errors

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	// Input / quota errors — terminal, no side effects beyond what the
	// message describes.
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	ErrCodeQuotaExceeded    ErrorCode = "QUOTA_EXCEEDED"

	// Account-state errors — terminal.
	ErrCodeSubscriptionNotFound ErrorCode = "SUBSCRIPTION_NOT_FOUND"
	ErrCodeSubscriptionExpired  ErrorCode = "SUBSCRIPTION_EXPIRED"

	// Operator-facing: reference data is broken, not the user's fault.
	ErrCodePlanConfigMissing ErrorCode = "PLAN_CONFIG_MISSING"

	// External AI provider failures. REJECTED is the 400-analogous class
	// (malformed or refused prompt) and never retried; UNAVAILABLE covers
	// timeouts, 5xx and network errors and is retryable.
	ErrCodeUpstreamRejected    ErrorCode = "UPSTREAM_REJECTED"
	ErrCodeUpstreamUnavailable ErrorCode = "UPSTREAM_UNAVAILABLE"

	// Transient store write conflict, retried internally by the usage
	// recorder and never surfaced if a retry succeeds.
	ErrCodeUsageConflict ErrorCode = "USAGE_CONFLICT"

	ErrCodeUnauthenticated ErrorCode = "UNAUTHENTICATED"
	ErrCodeInternal        ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// ==========================
// 2. Error Constructors
// ==========================

// NewValidationError creates a terminal bad-input error naming the field.
func NewValidationError(field, reason string) *StandardError {
	return &StandardError{
		Code:      ErrCodeValidationFailed,
		Message:   fmt.Sprintf("invalid field %q: %s", field, reason),
		Retryable: false,
		Metadata:  map[string]interface{}{"field": field},
		Timestamp: time.Now().UTC(),
	}
}

// NewQuotaExceededError carries remaining/limit so the client can prompt
// an upgrade.
func NewQuotaExceededError(kind string, remaining, limit int) *StandardError {
	return &StandardError{
		Code:      ErrCodeQuotaExceeded,
		Message:   fmt.Sprintf("monthly %s generation quota exhausted", kind),
		Retryable: false,
		Metadata: map[string]interface{}{
			"kind":      kind,
			"remaining": remaining,
			"limit":     limit,
		},
		Timestamp: time.Now().UTC(),
	}
}

func NewSubscriptionNotFoundError(userID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeSubscriptionNotFound,
		Message:   "no active subscription",
		Details:   fmt.Sprintf("user %s has no active subscription record", userID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewSubscriptionExpiredError(userID string, renewalDate time.Time) *StandardError {
	return &StandardError{
		Code:      ErrCodeSubscriptionExpired,
		Message:   "subscription expired",
		Details:   fmt.Sprintf("user %s renewal date %s has passed", userID, renewalDate.Format(time.RFC3339)),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewPlanConfigMissingError(planID string) *StandardError {
	return &StandardError{
		Code:      ErrCodePlanConfigMissing,
		Message:   "plan configuration missing",
		Details:   fmt.Sprintf("plan %s not found in reference data", planID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewUpstreamRejectedError marks a provider response that retrying cannot fix.
func NewUpstreamRejectedError(provider, details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeUpstreamRejected,
		Message:   fmt.Sprintf("%s rejected the request", provider),
		Details:   details,
		Retryable: false,
		Metadata:  map[string]interface{}{"provider": provider},
		Timestamp: time.Now().UTC(),
	}
}

// NewUpstreamUnavailableError marks a transient provider failure.
func NewUpstreamUnavailableError(provider, details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeUpstreamUnavailable,
		Message:   fmt.Sprintf("%s call failed", provider),
		Details:   details,
		Retryable: true,
		Metadata:  map[string]interface{}{"provider": provider},
		Timestamp: time.Now().UTC(),
	}
}

func NewUsageConflictError(userID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeUsageConflict,
		Message:   "concurrent usage write conflict",
		Details:   fmt.Sprintf("subscription row for user %s changed underneath the write", userID),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewUnauthenticatedError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeUnauthenticated,
		Message:   "missing or invalid credentials",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewInternalError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInternal,
		Message:   "internal error",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 3. Classification Helpers
// ==========================

// AsStandard extracts a *StandardError from err, wrapping unknown errors as
// INTERNAL_ERROR so callers always have a code to act on.
func AsStandard(err error) *StandardError {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr
	}
	return &StandardError{
		Code:      ErrCodeInternal,
		Message:   "unexpected error",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// IsRetryable reports whether err may succeed on a later attempt.
func IsRetryable(err error) bool {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr.Retryable
	}
	return false
}

// CodeOf returns the error code, or INTERNAL_ERROR for foreign errors.
func CodeOf(err error) ErrorCode {
	return AsStandard(err).Code
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code ErrorCode) bool {
	var stdErr *StandardError
	return errors.As(err, &stdErr) && stdErr.Code == code
}

// HTTPStatus maps an error code onto the status the API surface returns.
// Upstream failures deliberately map to 502 with a generic message; the
// provider's own error text never reaches the client.
func HTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeValidationFailed:
		return http.StatusBadRequest
	case ErrCodeQuotaExceeded:
		return http.StatusPaymentRequired
	case ErrCodeSubscriptionNotFound, ErrCodeSubscriptionExpired:
		return http.StatusForbidden
	case ErrCodeUnauthenticated:
		return http.StatusUnauthorized
	case ErrCodeUpstreamRejected, ErrCodeUpstreamUnavailable:
		return http.StatusBadGateway
	case ErrCodeUsageConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Package errors provides the error taxonomy shared by the analytics client,
// the dashboard API and the workflow workers.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"time"
)

// ==========================
// 1. Transport errors
// ==========================

// TransportKind classifies a failed call to the analytics API.
type TransportKind string

const (
	KindTimeout         TransportKind = "timeout"
	KindPaymentRequired TransportKind = "payment_required"
	KindTransport       TransportKind = "transport"
)

// TransportError is returned by the analytics client for every failed request.
type TransportError struct {
	Kind       TransportKind
	Path       string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("analytics %s %s: status %d", e.Kind, e.Path, e.StatusCode)
	}
	if e.Err != nil {
		return fmt.Sprintf("analytics %s %s: %v", e.Kind, e.Path, e.Err)
	}
	return fmt.Sprintf("analytics %s %s", e.Kind, e.Path)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsKind reports whether err is a TransportError of the given kind.
func IsKind(err error, kind TransportKind) bool {
	var te *TransportError
	if stderrors.As(err, &te) {
		return te.Kind == kind
	}
	return false
}

// ==========================
// 2. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeAnalyticsTimeout       ErrorCode = "ANALYTICS_TIMEOUT"
	ErrCodeAnalyticsAccessRevoked ErrorCode = "ANALYTICS_ACCESS_REVOKED"
	ErrCodeAnalyticsUnavailable   ErrorCode = "ANALYTICS_UNAVAILABLE"
	ErrCodeInvalidRequest         ErrorCode = "INVALID_REQUEST"
	ErrCodePreferencesFailed      ErrorCode = "PREFERENCES_FAILED"
	ErrCodeInternal               ErrorCode = "INTERNAL_ERROR"
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
// 3. Error Constructors
// ==========================

// NewInvalidRequestError is returned for malformed query parameters or job input.
func NewInvalidRequestError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidRequest,
		Message:   UserMessage(ErrCodeInvalidRequest),
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewPreferencesFailedError wraps a preference store failure.
func NewPreferencesFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodePreferencesFailed,
		Message:   UserMessage(ErrCodePreferencesFailed),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// FromTransport converts any error into a StandardError, classifying
// TransportErrors by kind.
func FromTransport(err error) *StandardError {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr
	}

	code := ErrCodeInternal
	var te *TransportError
	if stderrors.As(err, &te) {
		switch te.Kind {
		case KindTimeout:
			code = ErrCodeAnalyticsTimeout
		case KindPaymentRequired:
			code = ErrCodeAnalyticsAccessRevoked
		default:
			code = ErrCodeAnalyticsUnavailable
		}
	}

	return &StandardError{
		Code:      code,
		Message:   UserMessage(code),
		Details:   err.Error(),
		Retryable: code == ErrCodeAnalyticsTimeout || code == ErrCodeAnalyticsUnavailable,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 4. Presentation helpers
// ==========================

const retryHint = "Please try again in a few moments."

// UserMessage is the short, non-technical text shown in the error panel.
func UserMessage(code ErrorCode) string {
	switch code {
	case ErrCodeAnalyticsTimeout:
		return "The analytics service is taking too long to respond. " + retryHint
	case ErrCodeAnalyticsAccessRevoked:
		return "Access to analytics data is currently unavailable for this site."
	case ErrCodeAnalyticsUnavailable:
		return "We couldn't load the latest analytics. " + retryHint
	case ErrCodeInvalidRequest:
		return "The request was incomplete or invalid."
	case ErrCodePreferencesFailed:
		return "Your preferences could not be saved. " + retryHint
	default:
		return "Something went wrong. " + retryHint
	}
}

// HTTPStatus maps an error code to the status returned by the dashboard API.
func HTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeAnalyticsTimeout:
		return http.StatusGatewayTimeout
	case ErrCodeAnalyticsAccessRevoked:
		return http.StatusPaymentRequired
	case ErrCodeAnalyticsUnavailable:
		return http.StatusBadGateway
	case ErrCodeInvalidRequest:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// GetErrorCategory groups codes for logging.
func GetErrorCategory(code ErrorCode) string {
	switch code {
	case ErrCodeAnalyticsTimeout, ErrCodeAnalyticsAccessRevoked, ErrCodeAnalyticsUnavailable:
		return "UPSTREAM"
	case ErrCodeInvalidRequest:
		return "VALIDATION"
	case ErrCodePreferencesFailed:
		return "STORAGE"
	default:
		return "SYSTEM"
	}
}

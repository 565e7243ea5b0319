package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromTransport_ClassifiesKinds(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantCode   ErrorCode
		wantStatus int
		retryable  bool
	}{
		{
			name:       "timeout",
			err:        &TransportError{Kind: KindTimeout, Path: "/trending"},
			wantCode:   ErrCodeAnalyticsTimeout,
			wantStatus: http.StatusGatewayTimeout,
			retryable:  true,
		},
		{
			name:       "payment required",
			err:        &TransportError{Kind: KindPaymentRequired, Path: "/compare", StatusCode: 402},
			wantCode:   ErrCodeAnalyticsAccessRevoked,
			wantStatus: http.StatusPaymentRequired,
			retryable:  false,
		},
		{
			name:       "generic transport",
			err:        &TransportError{Kind: KindTransport, Path: "/entities", StatusCode: 500},
			wantCode:   ErrCodeAnalyticsUnavailable,
			wantStatus: http.StatusBadGateway,
			retryable:  true,
		},
		{
			name:       "wrapped transport error",
			err:        fmt.Errorf("top movers: %w", &TransportError{Kind: KindTimeout}),
			wantCode:   ErrCodeAnalyticsTimeout,
			wantStatus: http.StatusGatewayTimeout,
			retryable:  true,
		},
		{
			name:       "unknown error",
			err:        stderrors.New("boom"),
			wantCode:   ErrCodeInternal,
			wantStatus: http.StatusInternalServerError,
			retryable:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stdErr := FromTransport(tt.err)
			assert.Equal(t, tt.wantCode, stdErr.Code)
			assert.Equal(t, tt.wantStatus, HTTPStatus(stdErr.Code))
			assert.Equal(t, tt.retryable, stdErr.Retryable)
			assert.Equal(t, UserMessage(tt.wantCode), stdErr.Message)
		})
	}
}

func TestFromTransport_PassesStandardErrorThrough(t *testing.T) {
	original := NewInvalidRequestError("limit must be positive")
	assert.Same(t, original, FromTransport(original))
}

func TestAccessRevokedMessageIsDistinct(t *testing.T) {
	revoked := UserMessage(ErrCodeAnalyticsAccessRevoked)
	assert.NotEqual(t, UserMessage(ErrCodeAnalyticsUnavailable), revoked)
	assert.NotEqual(t, UserMessage(ErrCodeAnalyticsTimeout), revoked)
	assert.NotContains(t, revoked, "402")
}

func TestIsKind(t *testing.T) {
	err := fmt.Errorf("wrap: %w", &TransportError{Kind: KindPaymentRequired})
	assert.True(t, IsKind(err, KindPaymentRequired))
	assert.False(t, IsKind(err, KindTimeout))
	assert.False(t, IsKind(stderrors.New("plain"), KindTransport))
}

func TestTransportError_Error(t *testing.T) {
	assert.Equal(t, "analytics payment_required /compare: status 402",
		(&TransportError{Kind: KindPaymentRequired, Path: "/compare", StatusCode: 402}).Error())

	inner := stderrors.New("dial tcp: refused")
	te := &TransportError{Kind: KindTransport, Path: "/trending", Err: inner}
	assert.Contains(t, te.Error(), "dial tcp: refused")
	assert.ErrorIs(t, te, inner)
}

func TestGetErrorCategory(t *testing.T) {
	assert.Equal(t, "UPSTREAM", GetErrorCategory(ErrCodeAnalyticsTimeout))
	assert.Equal(t, "VALIDATION", GetErrorCategory(ErrCodeInvalidRequest))
	assert.Equal(t, "STORAGE", GetErrorCategory(ErrCodePreferencesFailed))
	assert.Equal(t, "SYSTEM", GetErrorCategory(ErrCodeInternal))
}

package llmadapter

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"regexp"
)

type ErrorCode string

const (
	ErrCodeBadRequest         ErrorCode = "BAD_REQUEST"
	ErrCodeUnauthorized       ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden          ErrorCode = "FORBIDDEN"
	ErrCodeNotFound           ErrorCode = "NOT_FOUND"
	ErrCodeRateLimit          ErrorCode = "RATE_LIMIT"
	ErrCodeInternalServer     ErrorCode = "INTERNAL_SERVER"
	ErrCodeBadGateway         ErrorCode = "BAD_GATEWAY"
	ErrCodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	ErrCodeGatewayTimeout     ErrorCode = "GATEWAY_TIMEOUT"
	ErrCodeTimeout            ErrorCode = "TIMEOUT"
	ErrCodeConnectionReset    ErrorCode = "CONNECTION_RESET"
	ErrCodeConnectionRefused  ErrorCode = "CONNECTION_REFUSED"
	ErrCodeQuotaExceeded      ErrorCode = "QUOTA_EXCEEDED"
	ErrCodeCapacityError      ErrorCode = "CAPACITY_ERROR"
	ErrCodeInvalidModel       ErrorCode = "INVALID_MODEL"
	ErrCodeContentPolicy      ErrorCode = "CONTENT_POLICY"
	ErrCodeEmptyResponse      ErrorCode = "EMPTY_RESPONSE"
	ErrCodeUnknown            ErrorCode = "UNKNOWN"
)

// Error is a classified completion service failure.
type Error struct {
	Code       ErrorCode
	HTTPStatus int
	Message    string
	Provider   string
	Err        error
}

func (e *Error) Error() string {
	if e.HTTPStatus > 0 {
		return fmt.Sprintf("%s (%s, status %d): %s", e.Provider, e.Code, e.HTTPStatus, e.Message)
	}
	return fmt.Sprintf("%s (%s): %s", e.Provider, e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable reports whether another attempt may succeed.
func (e *Error) Retryable() bool {
	switch e.Code {
	case ErrCodeRateLimit,
		ErrCodeTimeout,
		ErrCodeServiceUnavailable,
		ErrCodeInternalServer,
		ErrCodeBadGateway,
		ErrCodeGatewayTimeout,
		ErrCodeCapacityError,
		ErrCodeConnectionReset,
		ErrCodeConnectionRefused,
		ErrCodeEmptyResponse:
		return true
	case ErrCodeBadRequest,
		ErrCodeUnauthorized,
		ErrCodeForbidden,
		ErrCodeNotFound,
		ErrCodeInvalidModel,
		ErrCodeContentPolicy,
		ErrCodeQuotaExceeded:
		return false
	}
	return transientRetryPattern.MatchString(e.Message)
}

func NewError(status int, message, provider string, err error) *Error {
	return &Error{
		Code:       codeFromStatus(status),
		HTTPStatus: status,
		Message:    message,
		Provider:   provider,
		Err:        err,
	}
}

func NewErrorWithCode(code ErrorCode, message, provider string, err error) *Error {
	return &Error{Code: code, Message: message, Provider: provider, Err: err}
}

func IsLLMError(err error) (*Error, bool) {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr, true
	}
	return nil, false
}

func codeFromStatus(status int) ErrorCode {
	switch status {
	case http.StatusBadRequest:
		return ErrCodeBadRequest
	case http.StatusUnauthorized:
		return ErrCodeUnauthorized
	case http.StatusForbidden:
		return ErrCodeForbidden
	case http.StatusNotFound:
		return ErrCodeNotFound
	case http.StatusTooManyRequests:
		return ErrCodeRateLimit
	case http.StatusInternalServerError:
		return ErrCodeInternalServer
	case http.StatusBadGateway:
		return ErrCodeBadGateway
	case http.StatusServiceUnavailable:
		return ErrCodeServiceUnavailable
	case http.StatusGatewayTimeout:
		return ErrCodeGatewayTimeout
	}
	if status >= 500 {
		return ErrCodeInternalServer
	}
	return ErrCodeUnknown
}

var transientRetryPattern = regexp.MustCompile(`(?i)(timeout|temporarily|try again|temporarily unavailable)`)

// IsRetryable classifies err for the completion retry loop. Caller
// cancellation is final; deadlines and network faults are transient.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if llmErr, ok := IsLLMError(err); ok {
		return llmErr.Retryable()
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return transientRetryPattern.MatchString(err.Error())
}

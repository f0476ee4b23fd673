package router

// Error codes
const (
	ErrInternalCode           = "INTERNAL_ERROR"
	ErrBadRequestCode         = "BAD_REQUEST"
	ErrUnauthorizedCode       = "UNAUTHORIZED"
	ErrForbiddenCode          = "FORBIDDEN"
	ErrNotFoundCode           = "NOT_FOUND"
	ErrValidationCode         = "VALIDATION_FAILED"
	ErrRequestTooLargeCode    = "REQUEST_TOO_LARGE"
	ErrRateLimitedCode        = "RATE_LIMITED"
	ErrBadGatewayCode         = "BAD_GATEWAY"
	ErrServiceUnavailableCode = "SERVICE_UNAVAILABLE"
)

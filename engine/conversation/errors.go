package conversation

import "errors"

var (
	ErrNotFound     = errors.New("conversation not found")
	ErrForbidden    = errors.New("conversation belongs to another user")
	ErrInvalidInput = errors.New("invalid input")
)

const (
	ErrCodeNotFound     = "CONVERSATION_NOT_FOUND"
	ErrCodeForbidden    = "CONVERSATION_FORBIDDEN"
	ErrCodeInvalidInput = "INVALID_INPUT"
)

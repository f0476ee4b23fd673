package core

import (
	"errors"
	"maps"
)

// Error decorates an error with a machine readable code and structured details.
type Error struct {
	Err     error
	Code    string
	Details map[string]any
}

func NewError(err error, code string, details map[string]any) *Error {
	return &Error{Err: err, Code: code, Details: details}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Code
	}
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// AsMap renders the error for JSON payloads.
func (e *Error) AsMap() map[string]any {
	out := map[string]any{"code": e.Code, "message": e.Error()}
	if len(e.Details) > 0 {
		out["details"] = maps.Clone(e.Details)
	}
	return out
}

// ErrorCode returns the code of the first core.Error in err's chain.
func ErrorCode(err error) string {
	var coreErr *Error
	if errors.As(err, &coreErr) {
		return coreErr.Code
	}
	return ""
}

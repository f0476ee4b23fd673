package tool

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/taskchat/taskchat/engine/core"
	"github.com/taskchat/taskchat/engine/item"
)

var (
	ErrUnknownTool      = errors.New("unknown tool")
	ErrInvalidToolInput = errors.New("invalid tool input")
	ErrToolExecution    = errors.New("tool execution failed")
)

const (
	CodeUnknownTool      = "UNKNOWN_TOOL"
	CodeInvalidToolInput = "INVALID_TOOL_INPUT"
	CodeToolExecution    = "TOOL_EXECUTION_ERROR"
	CodeNotFound         = "NOT_FOUND"
)

func invalidInput(name string, err error) error {
	return core.NewError(
		fmt.Errorf("%w: %w", ErrInvalidToolInput, err),
		CodeInvalidToolInput,
		map[string]any{"tool": name},
	)
}

func executionFailed(name string, err error) error {
	code := CodeToolExecution
	if errors.Is(err, item.ErrNotFound) {
		code = CodeNotFound
	}
	if errors.Is(err, item.ErrInvalidInput) {
		return invalidInput(name, err)
	}
	return core.NewError(
		fmt.Errorf("%w: %w", ErrToolExecution, err),
		code,
		map[string]any{"tool": name},
	)
}

// ErrorPayload renders a tool failure as the JSON document fed back to the model.
func ErrorPayload(err error) json.RawMessage {
	code := core.ErrorCode(err)
	if code == "" {
		code = CodeToolExecution
	}
	payload := map[string]any{
		"success": false,
		"error": map[string]any{
			"code":    code,
			"message": causeMessage(err),
		},
	}
	out, mErr := json.Marshal(payload)
	if mErr != nil {
		return json.RawMessage(`{"success":false,"error":{"code":"TOOL_EXECUTION_ERROR"}}`)
	}
	return out
}

// causeMessage strips the sentinel prefix so the model sees the actual reason.
func causeMessage(err error) string {
	var coreErr *core.Error
	if errors.As(err, &coreErr) {
		if joined, ok := coreErr.Err.(interface{ Unwrap() []error }); ok {
			errs := joined.Unwrap()
			if len(errs) > 1 {
				return errs[len(errs)-1].Error()
			}
		}
	}
	return err.Error()
}

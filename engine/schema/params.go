package schema

import (
	"errors"
	"fmt"
)

var ErrInvalidParams = errors.New("invalid parameters")

type ParamsValidator struct {
	id     string
	params map[string]any
	schema *Compiled
}

func NewParamsValidator(with map[string]any, schema *Compiled, id string) *ParamsValidator {
	return &ParamsValidator{
		id:     id,
		params: with,
		schema: schema,
	}
}

func (v *ParamsValidator) Validate() error {
	if v.schema == nil {
		return nil
	}
	params := v.params
	if params == nil {
		params = map[string]any{}
	}
	if err := v.schema.Validate(params); err != nil {
		return fmt.Errorf("%w for %s: %w", ErrInvalidParams, v.id, err)
	}
	return nil
}

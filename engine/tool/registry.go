package tool

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-viper/mapstructure/v2"

	"github.com/taskchat/taskchat/engine/core"
	"github.com/taskchat/taskchat/engine/schema"
	"github.com/taskchat/taskchat/pkg/logger"
)

// Registry holds the fixed tool set in registration order.
type Registry struct {
	tools  []*Tool
	byName map[string]*Tool
}

func NewRegistry(items ItemService) (*Registry, error) {
	r := &Registry{byName: make(map[string]*Tool)}
	for _, spec := range builtinSpecs(items) {
		if err := r.register(spec); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) register(spec toolSpec) error {
	if _, exists := r.byName[spec.name]; exists {
		return fmt.Errorf("tool %q already registered", spec.name)
	}
	compiled, err := schema.NewCompiled(spec.params)
	if err != nil {
		return fmt.Errorf("failed to compile parameters for %s: %w", spec.name, err)
	}
	t := &Tool{
		name:        spec.name,
		description: spec.description,
		params:      compiled,
		handler:     spec.handler,
	}
	r.tools = append(r.tools, t)
	r.byName[t.name] = t
	return nil
}

func (r *Registry) Has(name string) bool {
	_, ok := r.byName[name]
	return ok
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.tools))
	for _, t := range r.tools {
		names = append(names, t.name)
	}
	return names
}

func (r *Registry) Tools() []*Tool {
	out := make([]*Tool, len(r.tools))
	copy(out, r.tools)
	return out
}

func (r *Registry) Definitions() ([]Definition, error) {
	defs := make([]Definition, 0, len(r.tools))
	for _, t := range r.tools {
		def, err := t.Definition()
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, nil
}

// Invoke validates rawArgs against the tool's parameter schema and runs it
// on behalf of userID. The returned error wraps ErrUnknownTool,
// ErrInvalidToolInput or ErrToolExecution.
func (r *Registry) Invoke(ctx context.Context, userID, name string, rawArgs json.RawMessage) (*Result, error) {
	t, ok := r.byName[name]
	if !ok {
		return nil, core.NewError(
			fmt.Errorf("%w: %s", ErrUnknownTool, name),
			CodeUnknownTool,
			map[string]any{"tool": name},
		)
	}
	args, err := decodeArgs(rawArgs)
	if err != nil {
		return nil, invalidInput(name, err)
	}
	if err := schema.NewParamsValidator(args, t.params, name).Validate(); err != nil {
		return nil, invalidInput(name, err)
	}
	log := logger.FromContext(ctx)
	output, summary, err := t.handler(ctx, userID, args)
	if err != nil {
		log.Debug("Tool call failed", "tool", name, "error", err)
		return nil, err
	}
	raw, err := json.Marshal(output)
	if err != nil {
		return nil, executionFailed(name, fmt.Errorf("failed to encode result: %w", err))
	}
	log.Debug("Tool call succeeded", "tool", name)
	return &Result{Tool: name, Output: raw, Summary: summary}, nil
}

func decodeArgs(raw json.RawMessage) (map[string]any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return map[string]any{}, nil
	}
	var args map[string]any
	if err := json.Unmarshal(trimmed, &args); err != nil {
		return nil, fmt.Errorf("arguments must be a JSON object: %w", err)
	}
	if args == nil {
		args = map[string]any{}
	}
	return args, nil
}

// bindArgs decodes validated arguments into a typed struct.
func bindArgs(args map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      out,
		TagName:     "json",
		ErrorUnused: true,
	})
	if err != nil {
		return err
	}
	return dec.Decode(args)
}

package schema

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/kaptinlin/jsonschema"
)

// -----------------------------------------------------------------------------
// Schema
// -----------------------------------------------------------------------------

type Schema map[string]any
type Result = jsonschema.EvaluationResult

func (s *Schema) String() string {
	bytes, err := json.Marshal(s)
	if err != nil {
		return ""
	}
	return string(bytes)
}

// JSON returns the schema document as raw JSON.
func (s *Schema) JSON() (json.RawMessage, error) {
	if s == nil {
		return json.RawMessage(`{"type":"object"}`), nil
	}
	bytes, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}
	return bytes, nil
}

func (s *Schema) Compile() (*jsonschema.Schema, error) {
	if s == nil {
		return nil, nil
	}
	bytes, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	schema, err := compiler.Compile(bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}
	return schema, nil
}

// -----------------------------------------------------------------------------
// Compiled
// -----------------------------------------------------------------------------

// Compiled keeps the source document next to its compiled form so callers
// validate many values without recompiling.
type Compiled struct {
	source   Schema
	compiled *jsonschema.Schema
}

func NewCompiled(s Schema) (*Compiled, error) {
	compiled, err := s.Compile()
	if err != nil {
		return nil, err
	}
	return &Compiled{source: s, compiled: compiled}, nil
}

func (c *Compiled) Source() Schema {
	return c.source
}

func (c *Compiled) Validate(value any) error {
	if c == nil || c.compiled == nil {
		return nil
	}
	result := c.compiled.Validate(value)
	if result.Valid {
		return nil
	}
	return fmt.Errorf("schema validation failed: %s", describeErrors(result))
}

func describeErrors(result *Result) string {
	if len(result.Errors) == 0 {
		return "value does not match schema"
	}
	keys := make([]string, 0, len(result.Errors))
	for k := range result.Errors {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		e := result.Errors[k]
		if e == nil {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Message))
	}
	details := collectDetails(result)
	if len(details) > 0 {
		parts = append(parts, details...)
	}
	return strings.Join(parts, "; ")
}

// collectDetails walks nested results so property-level failures surface
// with their instance location instead of a generic "properties" error.
func collectDetails(result *Result) []string {
	var out []string
	for _, d := range result.Details {
		if d == nil || d.Valid {
			continue
		}
		for _, e := range d.Errors {
			if e == nil {
				continue
			}
			loc := d.InstanceLocation
			if loc == "" {
				loc = "/"
			}
			out = append(out, fmt.Sprintf("%s: %s", loc, e.Message))
		}
		out = append(out, collectDetails(d)...)
	}
	sort.Strings(out)
	return out
}

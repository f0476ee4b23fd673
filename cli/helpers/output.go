package helpers

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

type OutputFormat string

const (
	FormatJSON OutputFormat = "json"
	FormatYAML OutputFormat = "yaml"
)

// ParseFormat accepts json or yaml, case sensitive.
func ParseFormat(raw string) (OutputFormat, error) {
	switch OutputFormat(raw) {
	case FormatJSON, FormatYAML:
		return OutputFormat(raw), nil
	default:
		return "", fmt.Errorf("unsupported output format %q: must be one of [json yaml]", raw)
	}
}

// WriteData renders data to w in the requested format.
func WriteData(w io.Writer, format OutputFormat, data any) error {
	switch format {
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(data); err != nil {
			return fmt.Errorf("failed to encode yaml: %w", err)
		}
		return enc.Close()
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(data); err != nil {
			return fmt.Errorf("failed to encode json: %w", err)
		}
		return nil
	}
}

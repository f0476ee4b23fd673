package router

import "strings"

// RequestIDHeader carries the per-request correlation id.
const RequestIDHeader = "X-Request-ID"

// ParseExpandQuery splits a comma separated expansion list into a lowercase set.
func ParseExpandQuery(raw string) map[string]bool {
	result := make(map[string]bool)
	parts := strings.Split(raw, ",")
	for i := range parts {
		trimmed := strings.TrimSpace(parts[i])
		if trimmed != "" {
			result[strings.ToLower(trimmed)] = true
		}
	}
	return result
}

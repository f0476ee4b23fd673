package router

import (
	"strconv"
	"strings"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// LimitOrDefault returns a sanitized page size. Non-positive or malformed values fall back to def.
func LimitOrDefault(raw string, def int, maxLimit int) int {
	if def <= 0 {
		def = defaultPageSize
	}
	if maxLimit <= 0 {
		maxLimit = maxPageSize
	}
	val, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || val <= 0 {
		return def
	}
	if val > maxLimit {
		return maxLimit
	}
	return val
}

// OffsetOrZero parses a non-negative offset.
func OffsetOrZero(raw string) int {
	val, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || val < 0 {
		return 0
	}
	return val
}

// Package userctx stores the authenticated user id in context.Context. The
// authentication middleware injects it and handlers read it back.
package userctx

import (
	"context"
	"fmt"
)

// userKey is the context key for the authenticated user id
type userKey struct{}

// WithUserID adds the authenticated user id to context
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userKey{}, userID)
}

// UserIDFromContext extracts the authenticated user id from context
func UserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(userKey{}).(string)
	return userID, ok && userID != ""
}

// MustUserIDFromContext returns an error when no user id is present.
// Only use this in handlers that are protected by authentication middleware.
func MustUserIDFromContext(ctx context.Context) (string, error) {
	userID, ok := UserIDFromContext(ctx)
	if !ok {
		return "", fmt.Errorf("user not found in context")
	}
	return userID, nil
}

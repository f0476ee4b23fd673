package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/taskchat/taskchat/engine/auth"
	"github.com/taskchat/taskchat/engine/auth/userctx"
	"github.com/taskchat/taskchat/engine/infra/server/router"
	"github.com/taskchat/taskchat/pkg/logger"
)

// ContextKeyUserID is the gin key holding the authenticated user id.
const ContextKeyUserID = "user_id"

// TokenVerifier resolves a raw bearer token to a user id.
type TokenVerifier interface {
	Verify(raw string) (string, error)
}

// AttemptRecorder counts verification results.
type AttemptRecorder interface {
	AuthAttempt(ctx context.Context, result string)
}

// Manager handles authentication middleware
type Manager struct {
	verifier TokenVerifier
	recorder AttemptRecorder
}

func NewManager(verifier TokenVerifier) *Manager {
	return &Manager{verifier: verifier}
}

// WithMetrics adds an attempt recorder to the manager
func (m *Manager) WithMetrics(recorder AttemptRecorder) *Manager {
	m.recorder = recorder
	return m
}

// Middleware rejects requests without a valid bearer token.
func (m *Manager) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		log := logger.FromContext(ctx)
		raw, err := extractBearerToken(c)
		if err != nil {
			log.Debug("Authentication failed", "reason", err.Error())
			m.record(ctx, "missing_token")
			m.handleAuthError(c, err)
			return
		}
		userID, err := m.verifier.Verify(raw)
		if err != nil {
			log.Debug("Token verification failed", "reason", err.Error())
			m.record(ctx, "invalid_token")
			m.handleAuthError(c, err)
			return
		}
		m.record(ctx, "success")
		m.setAuthContext(c, userID)
		c.Next()
	}
}

func (m *Manager) record(ctx context.Context, result string) {
	if m.recorder != nil {
		m.recorder.AuthAttempt(ctx, result)
	}
}

func extractBearerToken(c *gin.Context) (string, error) {
	header := c.GetHeader("Authorization")
	if header == "" {
		return "", auth.ErrMissingToken
	}
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", errInvalidFormat
	}
	return parts[1], nil
}

var errInvalidFormat = errors.New("invalid authorization header format")

func (m *Manager) handleAuthError(c *gin.Context, err error) {
	// Verification details stay in the logs.
	detail := "Invalid or missing credentials"
	if errors.Is(err, errInvalidFormat) {
		detail = "Invalid authorization header format"
	}
	router.RespondProblemWithCode(c, http.StatusUnauthorized, router.ErrUnauthorizedCode, detail)
}

func (m *Manager) setAuthContext(c *gin.Context, userID string) {
	c.Set(ContextKeyUserID, userID)
	ctx := userctx.WithUserID(c.Request.Context(), userID)
	log := logger.FromContext(ctx).With("user_id", userID)
	ctx = logger.ContextWithLogger(ctx, log)
	c.Request = c.Request.WithContext(ctx)
	log.Debug("Authentication successful")
}

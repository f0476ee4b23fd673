package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/taskchat/taskchat/engine/auth/userctx"
	"github.com/taskchat/taskchat/engine/infra/server/router"
	"github.com/taskchat/taskchat/pkg/logger"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"
)

const (
	keyTypeUser = "user"
	keyTypeIP   = "ip"
)

// Manager applies a fixed window limit per authenticated user, or per client IP before auth.
type Manager struct {
	config  *Config
	limiter *limiter.Limiter
	client  *redis.Client
	owned   bool
}

// NewManager builds the limiter. A nil client with an empty RedisAddr uses the in-memory store.
func NewManager(cfg *Config, client *redis.Client) (*Manager, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	owned := false
	if client == nil && cfg.RedisAddr != "" {
		client = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		owned = true
	}
	store, err := newStore(cfg, client)
	if err != nil {
		if owned {
			_ = client.Close()
		}
		return nil, err
	}
	return &Manager{
		config:  cfg,
		limiter: limiter.New(store, cfg.Rate.ToLimiterRate()),
		client:  client,
		owned:   owned,
	}, nil
}

func newStore(cfg *Config, client *redis.Client) (limiter.Store, error) {
	if client == nil {
		return memory.NewStoreWithOptions(limiter.StoreOptions{
			Prefix:          cfg.Prefix,
			CleanUpInterval: limiter.DefaultCleanUpInterval,
		}), nil
	}
	store, err := sredis.NewStoreWithOptions(client, limiter.StoreOptions{
		Prefix:   cfg.Prefix,
		MaxRetry: cfg.MaxRetry,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create redis rate limit store: %w", err)
	}
	return store, nil
}

// Close releases a redis client opened by the manager.
func (m *Manager) Close() error {
	if !m.owned {
		return nil
	}
	return m.client.Close()
}

// Middleware enforces the limit and writes X-RateLimit-* headers.
func (m *Manager) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m.isExcluded(c.Request.URL.Path) {
			c.Next()
			return
		}
		ctx := c.Request.Context()
		key, keyType := m.key(c)
		result, err := m.limiter.Get(ctx, key)
		if err != nil {
			// Fail open on store errors.
			logger.FromContext(ctx).Error("Rate limiter unavailable", "error", err, "key_type", keyType)
			c.Next()
			return
		}
		if !m.config.DisableHeaders {
			setHeaders(c, result)
		}
		if result.Reached {
			route := c.FullPath()
			if route == "" {
				route = c.Request.URL.Path
			}
			IncrementBlockedRequests(ctx, route, keyType)
			retryAfter := time.Until(time.Unix(result.Reset, 0))
			if retryAfter < time.Second {
				retryAfter = time.Second
			}
			c.Header("Retry-After", strconv.Itoa(int(retryAfter.Seconds())))
			router.RespondProblemWithCode(
				c,
				http.StatusTooManyRequests,
				router.ErrRateLimitedCode,
				"rate limit exceeded, retry later",
			)
			return
		}
		c.Next()
	}
}

func (m *Manager) key(c *gin.Context) (string, string) {
	if userID, ok := userctx.UserIDFromContext(c.Request.Context()); ok {
		return keyTypeUser + ":" + userID, keyTypeUser
	}
	return keyTypeIP + ":" + c.ClientIP(), keyTypeIP
}

func (m *Manager) isExcluded(path string) bool {
	for _, excluded := range m.config.ExcludedPaths {
		if path == excluded || strings.HasPrefix(path, excluded+"/") {
			return true
		}
	}
	return false
}

func setHeaders(c *gin.Context, result limiter.Context) {
	c.Header("X-RateLimit-Limit", strconv.FormatInt(result.Limit, 10))
	c.Header("X-RateLimit-Remaining", strconv.FormatInt(result.Remaining, 10))
	c.Header("X-RateLimit-Reset", strconv.FormatInt(result.Reset, 10))
}

// Ping reports whether the backing store is reachable.
func (m *Manager) Ping(ctx context.Context) error {
	if m.client == nil {
		return nil
	}
	return m.client.Ping(ctx).Err()
}

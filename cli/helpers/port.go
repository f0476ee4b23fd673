package helpers

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/taskchat/taskchat/pkg/config"
)

// ListenAddress is the address the API server binds for cfg.
func ListenAddress(cfg *config.ServerConfig) string {
	return net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
}

// CheckListenAddress binds and releases the server address so a busy port
// fails the start command before migrations and store connections run.
func CheckListenAddress(ctx context.Context, cfg *config.ServerConfig) error {
	addr := ListenAddress(cfg)
	lc := net.ListenConfig{}
	listener, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("server address %s is not available (set server.port or SERVER_PORT): %w", addr, err)
	}
	return listener.Close()
}

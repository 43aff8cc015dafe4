//go:build !linux && !darwin

package core

import (
	"context"
	"errors"
	"fmt"
	"net"
)

type conn struct{}

func (c *conn) Reset() {}

// Run is not available on this platform; use ServeHTTP with net/http.
func (e *Engine) Run(ctx context.Context, addr string) error {
	return fmt.Errorf("core: native event loop: %w", errors.ErrUnsupported)
}

// Serve is not available on this platform; use ServeHTTP with net/http.
func (e *Engine) Serve(ctx context.Context, ln net.Listener) error {
	return fmt.Errorf("core: native event loop: %w", errors.ErrUnsupported)
}

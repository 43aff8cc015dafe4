// Package http2 serves a net/http handler over HTTP/2, in cleartext (h2c)
// or with TLS and ALPN, alongside HTTP/1.1.
package http2

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/searchktools/fast-express/core/logger"
)

// Config contains HTTP/2 server configuration.
type Config struct {
	Addr    string
	Handler http.Handler
	// TLSConfig enables h2 over TLS. Without it the server speaks h2c.
	TLSConfig            *tls.Config
	MaxConcurrentStreams uint32
	MaxReadFrameSize     uint32
	ReadTimeout          time.Duration
	WriteTimeout         time.Duration
	IdleTimeout          time.Duration
	// ShutdownTimeout bounds graceful shutdown once the context ends.
	ShutdownTimeout time.Duration
	Logger          *slog.Logger
}

// Server is an HTTP/2 server with HTTP/1.1 fallback.
type Server struct {
	server          *http.Server
	tls             bool
	shutdownTimeout time.Duration
	log             *slog.Logger
}

// NewServer creates a server from cfg, filling in defaults.
func NewServer(cfg Config) *Server {
	if cfg.MaxConcurrentStreams == 0 {
		cfg.MaxConcurrentStreams = 250
	}
	if cfg.MaxReadFrameSize == 0 {
		cfg.MaxReadFrameSize = 1 << 20
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 120 * time.Second
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Nop()
	}

	h2 := &http2.Server{
		MaxConcurrentStreams: cfg.MaxConcurrentStreams,
		MaxReadFrameSize:     cfg.MaxReadFrameSize,
		IdleTimeout:          cfg.IdleTimeout,
	}
	s := &Server{
		server: &http.Server{
			Addr:         cfg.Addr,
			Handler:      cfg.Handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
			ErrorLog:     slog.NewLogLogger(cfg.Logger.Handler(), slog.LevelWarn),
		},
		shutdownTimeout: cfg.ShutdownTimeout,
		log:             cfg.Logger,
	}

	if cfg.TLSConfig != nil {
		s.tls = true
		s.server.TLSConfig = cfg.TLSConfig.Clone()
		// ConfigureServer only fails for TLS configs that forbid h2 cipher suites.
		if err := http2.ConfigureServer(s.server, h2); err != nil {
			s.log.Warn("http2: tls config rejected, serving HTTP/1.1 only", logger.Error(err))
		}
	} else {
		s.server.Handler = h2c.NewHandler(cfg.Handler, h2)
	}
	return s
}

// ListenAndServe listens on the configured address and serves until ctx ends.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("http2: listen %s: %w", s.server.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx ends, then shuts down
// gracefully. It returns nil after a graceful shutdown.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	proto := "h2c"
	if s.tls {
		proto = "h2"
	}
	s.log.Info("http2 server listening", logger.Addr(ln.Addr().String()), slog.String("protocol", proto))

	errc := make(chan error, 1)
	go func() {
		if s.tls {
			errc <- s.server.ServeTLS(ln, "", "")
			return
		}
		errc <- s.server.Serve(ln)
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http2: serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http2: shutdown: %w", err)
	}
	<-errc
	return nil
}

// Close closes the server immediately.
func (s *Server) Close() error {
	return s.server.Close()
}

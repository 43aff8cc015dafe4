// Package app wires configuration, logging, the root router, the socket
// engine, metrics and the chosen transport into a runnable server.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	stdhttp "net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/searchktools/fast-express/config"
	"github.com/searchktools/fast-express/core"
	"github.com/searchktools/fast-express/core/http2"
	"github.com/searchktools/fast-express/core/logger"
	"github.com/searchktools/fast-express/core/middleware"
	"github.com/searchktools/fast-express/core/observability"
	"github.com/searchktools/fast-express/core/pools"
	"github.com/searchktools/fast-express/core/router"
)

const metricsNamespace = "fastexpress"

// App owns the root router and everything that serves it.
type App struct {
	cfg     *config.Config
	log     *slog.Logger
	engine  *core.Engine
	router  *router.Router
	metrics *observability.Metrics
}

// Option configures New.
type Option func(*options)

type options struct {
	log        *slog.Logger
	middleware bool
}

// WithLogger replaces the logger built from the configuration.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithoutMiddleware skips the stock request id, access log, metrics and
// tracing middleware.
func WithoutMiddleware() Option {
	return func(o *options) { o.middleware = false }
}

// New builds an application from cfg. Routes registered on Router after
// New returns are still promoted to native engine routes.
func New(cfg *config.Config, opts ...Option) *App {
	o := options{middleware: true}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = logger.New(logger.WithLevelName(cfg.LogLevel), logger.WithFormat(cfg.LogFormat))
	}

	engine := core.New(
		core.WithLogger(o.log.With(logger.Component("engine"))),
		core.WithTimeouts(cfg.ReadTimeout, cfg.WriteTimeout, cfg.IdleTimeout),
		core.WithMaxConnections(cfg.MaxConnections),
		core.WithWorkers(cfg.Workers),
	)

	r := router.New(
		router.WithLogger(o.log.With(logger.Component("router"))),
		router.WithEnv(cfg.Env),
		router.WithCaseSensitive(cfg.CaseSensitiveRouting),
		router.WithStrict(cfg.StrictRouting),
	)
	r.Attach(engine)

	metrics := observability.New(observability.Config{Namespace: metricsNamespace})
	if err := metrics.Register(core.NewCollector(engine, metricsNamespace)); err != nil {
		o.log.Warn("engine collector not registered", logger.Error(err))
	}

	if o.middleware {
		r.Use(
			middleware.RequestID(),
			middleware.Logger(o.log),
			middleware.Metrics(metrics),
			middleware.Tracing(),
		)
	}

	return &App{cfg: cfg, log: o.log, engine: engine, router: r, metrics: metrics}
}

// Router returns the root router.
func (a *App) Router() *router.Router { return a.router }

// Engine returns the socket engine the root router is attached to.
func (a *App) Engine() *core.Engine { return a.engine }

// Metrics returns the request metrics.
func (a *App) Metrics() *observability.Metrics { return a.metrics }

// Logger returns the application logger.
func (a *App) Logger() *slog.Logger { return a.log }

// Handler returns the application as a net/http handler.
func (a *App) Handler() stdhttp.Handler { return a.engine }

// Run listens on the configured address and serves until ctx is cancelled
// or the process receives SIGINT or SIGTERM.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ln, err := net.Listen("tcp", a.cfg.Addr())
	if err != nil {
		return fmt.Errorf("app: listen %s: %w", a.cfg.Addr(), err)
	}
	return a.Serve(ctx, ln)
}

// Serve serves on ln with the configured transport, plus the metrics
// endpoint when configured, until ctx is cancelled.
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	defer ln.Close()
	if prev := pools.ApplyGCConfig(pools.GCConfig{Percent: a.cfg.GCPercent}); prev >= 0 {
		a.log.Debug("gc percent applied", slog.Int("percent", a.cfg.GCPercent), slog.Int("previous", prev))
	}

	a.log.Info("starting",
		slog.String("env", a.cfg.Env),
		slog.String("transport", a.cfg.Transport),
		logger.Addr(ln.Addr().String()),
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.serveTransport(ctx, ln) })
	if a.cfg.MetricsAddr != "" {
		g.Go(func() error { return a.serveMetrics(ctx) })
	}
	err := g.Wait()
	a.log.Info("stopped", logger.Error(err))
	return err
}

func (a *App) serveTransport(ctx context.Context, ln net.Listener) error {
	switch a.cfg.Transport {
	case config.TransportH2C:
		srv := http2.NewServer(http2.Config{
			Handler:      a.engine,
			ReadTimeout:  a.cfg.ReadTimeout,
			WriteTimeout: a.cfg.WriteTimeout,
			IdleTimeout:  a.cfg.IdleTimeout,
			Logger:       a.log.With(logger.Component("http2")),
		})
		return srv.Serve(ctx, ln)
	case config.TransportStd:
		return serveStd(ctx, &stdhttp.Server{
			Handler:      a.engine,
			ReadTimeout:  a.cfg.ReadTimeout,
			WriteTimeout: a.cfg.WriteTimeout,
			IdleTimeout:  a.cfg.IdleTimeout,
			ErrorLog:     slog.NewLogLogger(a.log.Handler(), slog.LevelWarn),
		}, ln, a.cfg.WriteTimeout)
	default:
		err := a.engine.Serve(ctx, ln)
		if errors.Is(err, errors.ErrUnsupported) {
			a.log.Warn("native engine unsupported here, falling back to net/http")
			return serveStd(ctx, &stdhttp.Server{Handler: a.engine}, ln, a.cfg.WriteTimeout)
		}
		return err
	}
}

func (a *App) serveMetrics(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.cfg.MetricsAddr)
	if err != nil {
		return fmt.Errorf("app: metrics listen %s: %w", a.cfg.MetricsAddr, err)
	}
	a.log.Info("metrics listening", logger.Addr(ln.Addr().String()))
	handler := promhttp.HandlerFor(a.metrics.Registry(), promhttp.HandlerOpts{
		ErrorLog: slog.NewLogLogger(a.log.Handler(), slog.LevelWarn),
	})
	mux := stdhttp.NewServeMux()
	mux.Handle("/metrics", handler)
	return serveStd(ctx, &stdhttp.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}, ln, 5*time.Second)
}

// serveStd runs srv on ln and shuts it down gracefully when ctx ends.
func serveStd(ctx context.Context, srv *stdhttp.Server, ln net.Listener, grace time.Duration) error {
	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()

	select {
	case err := <-errc:
		if errors.Is(err, stdhttp.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("app: serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("app: shutdown: %w", err)
	}
	<-errc
	return nil
}

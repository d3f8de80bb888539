// Package bootstrap wires a container to configuration, logging and
// metrics, and serves it until interrupted.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/artpar/waterspout/adapters/metrics"
	"github.com/artpar/waterspout/adapters/tracing"
	"github.com/artpar/waterspout/app"
	"github.com/artpar/waterspout/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// App is a configured, built container ready to serve.
type App struct {
	Logger     zerolog.Logger
	Config     *config.Config
	Container  *app.Container
	Server     *app.Server
	HTTPServer *http.Server
	Metrics    *metrics.Collector

	holder       *config.Holder
	shutdownOnce sync.Once
}

// SetupFunc registers modules and handlers on the container.
type SetupFunc func(c *app.Container) error

type options struct {
	logOutput io.Writer
	registry  *prometheus.Registry
}

// Option configures New.
type Option func(*options)

// WithLogOutput sends logs to w instead of stdout.
func WithLogOutput(w io.Writer) Option {
	return func(o *options) {
		o.logOutput = w
	}
}

// WithRegistry registers metrics on reg instead of the default registry.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(o *options) {
		o.registry = reg
	}
}

// New creates the container from cfg, lets setup populate it and builds
// the server.
func New(cfg *config.Config, setup SetupFunc, opts ...Option) (*App, error) {
	o := options{logOutput: os.Stdout}
	for _, opt := range opts {
		opt(&o)
	}

	logger := NewLogger(cfg.Logging, o.logOutput)
	logger.Info().Str("version", app.Version).Msg("initializing waterspout")

	a := &App{
		Logger: logger,
		Config: cfg,
	}

	containerOpts := []app.Option{app.WithLogger(logger)}

	if cfg.Metrics.Enabled {
		if o.registry != nil {
			a.Metrics = metrics.NewWithRegistry(o.registry)
		} else {
			a.Metrics = metrics.New()
		}
		containerOpts = append(containerOpts, app.WithMetrics(a.Metrics))
		logger.Info().Str("path", cfg.Metrics.Path).Msg("prometheus metrics enabled")
	}
	if cfg.Tracing.Enabled {
		containerOpts = append(containerOpts, app.WithTracing(tracing.WithTracerName(cfg.Tracing.TracerName)))
		logger.Info().Msg("request tracing enabled")
	}

	a.Container = app.New(cfg.AppSettings(), containerOpts...)

	if setup != nil {
		if err := setup(a.Container); err != nil {
			return nil, fmt.Errorf("setup container: %w", err)
		}
	}

	srv, err := a.Container.Build()
	if err != nil {
		return nil, fmt.Errorf("build container: %w", err)
	}
	a.Server = srv

	var handler http.Handler = srv
	if a.Metrics != nil {
		handler = withMetricsEndpoint(cfg.Metrics.Path, a.Metrics.Handler(), srv)
	}

	a.HTTPServer = &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		ErrorLog:     log.New(logger, "", 0),
	}
	return a, nil
}

func withMetricsEndpoint(path string, metrics, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == path {
			metrics.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Watch reloads the config file at path on change or SIGHUP and applies
// the new log level.
func (a *App) Watch(path string) error {
	h, err := config.NewHolder(path, a.Logger, config.WithReloadMetrics(a.Metrics))
	if err != nil {
		return err
	}
	h.OnChange(func(cfg *config.Config) {
		SetLevel(cfg.Logging.Level)
	})
	if err := h.WatchFile(); err != nil {
		h.Stop()
		return err
	}
	h.WatchSignals()
	a.holder = h
	return nil
}

// Run listens on the configured address and serves until SIGINT or
// SIGTERM, then shuts down.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ln, err := net.Listen("tcp", a.HTTPServer.Addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	return a.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done or the server fails, then shuts
// down.
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info().
			Str("addr", ln.Addr().String()).
			Msg("start serving")
		if err := a.HTTPServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		a.Shutdown()
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		a.Logger.Info().Msg("shutting down")
	}

	return a.Shutdown()
}

// Shutdown stops the listener, waiting up to the configured shutdown
// timeout for in-flight requests, and releases watchers.
func (a *App) Shutdown() error {
	var err error
	a.shutdownOnce.Do(func() {
		timeout := a.Config.Server.ShutdownTimeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		if a.holder != nil {
			a.holder.Stop()
		}

		if a.HTTPServer != nil {
			if serr := a.HTTPServer.Shutdown(ctx); serr != nil {
				a.Logger.Error().Err(serr).Msg("http server shutdown error")
				err = serr
			}
		}

		if a.Server != nil {
			if cerr := a.Server.Close(); cerr != nil {
				a.Logger.Error().Err(cerr).Msg("template watcher close error")
			}
		}

		a.Logger.Info().Msg("shutdown complete")
	})
	return err
}

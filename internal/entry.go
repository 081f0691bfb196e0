// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/kalendar/internal/api"
	"github.com/starford/kalendar/internal/eventservice"
	"github.com/starford/kalendar/internal/mcpserver"
	"github.com/starford/kalendar/internal/sse"
	"github.com/starford/kalendar/internal/storage"
)

const sqlitePollInterval = 2 * time.Second

// core is what both the HTTP server and the MCP server run on.
type core struct {
	logger *slog.Logger
	store  storage.Provider
	svc    *eventservice.Service
}

func newCore(cfg *Config, logOut io.Writer) (*core, error) {
	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(logOut, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("storage_backend", cfg.Storage.Backend),
		slog.String("storage_path", cfg.Storage.Path),
		slog.String("timezone", cfg.Calendar.Timezone),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// Ensure storage directory exists.
	if err := os.MkdirAll(cfg.Storage.Dir(), 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}

	store, err := storage.Open(cfg.Storage.Backend, cfg.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	loc, err := cfg.Calendar.Location()
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("load timezone: %w", err)
	}

	svc, err := eventservice.New(store, eventservice.Options{
		Key:          cfg.Storage.Key,
		Location:     loc,
		WeekStart:    cfg.Calendar.WeekStartDay(),
		DefaultColor: cfg.Calendar.DefaultColor,
		Logger:       logger,
	})
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("load events: %w", err)
	}

	return &core{logger: logger, store: store, svc: svc}, nil
}

// watch reloads the service whenever another process rewrites the snapshot:
// the file backend is watched, the SQLite backend is polled for checksum
// changes. It blocks until ctx is done.
func (c *core) watch(ctx context.Context, key string) {
	reload := func() {
		if _, err := c.svc.Reload(ctx); err != nil {
			c.logger.Error("reload failed, keeping current events", slog.String("error", err.Error()))
		}
	}

	switch st := c.store.(type) {
	case *storage.FS:
		path, err := st.Path(key)
		if err != nil {
			c.logger.Warn("watcher disabled", slog.String("error", err.Error()))
			return
		}
		if err := storage.Watch(ctx, path, c.logger, reload); err != nil {
			c.logger.Warn("watcher disabled", slog.String("error", err.Error()))
		}
	case *storage.SQLite:
		storage.Poll(ctx, sqlitePollInterval, reload)
	}
}

// Run starts the application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	c, err := newCore(cfg, os.Stdout)
	if err != nil {
		return err
	}
	defer c.store.Close()
	logger := c.logger

	// SSE broker.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()
	loc := c.svc.Location()
	c.svc.OnChange(func(ch eventservice.Change) {
		broker.PublishChange(sse.Change{Kind: ch.Kind, ID: ch.ID, Span: sse.SpanOf(loc, ch.Events...)})
	})

	apiRouter := api.NewRouter(c.svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker, cfg.Calendar.Name)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	// stop ends the watcher once the HTTP server has shut down.
	runCtx, stop := context.WithCancel(ctx)
	defer stop()
	g, gCtx := errgroup.WithContext(runCtx)

	// Reload the snapshot when another process rewrites it.
	if cfg.Storage.Watch {
		g.Go(func() error {
			c.watch(gCtx, cfg.Storage.Key)
			return nil
		})
	}

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		stop()

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// RunMCP serves the MCP tools on stdin/stdout. Logs go to stderr so they
// never mix with protocol messages.
func RunMCP(ctx context.Context, opts ...Option) error {
	app := &application{}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	c, err := newCore(app.config, os.Stderr)
	if err != nil {
		return err
	}
	defer c.store.Close()

	if app.config.Storage.Watch {
		watchCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		go c.watch(watchCtx, app.config.Storage.Key)
	}

	c.logger.Info("MCP server starting on stdio")
	return mcpserver.New(c.svc).ServeStdio()
}

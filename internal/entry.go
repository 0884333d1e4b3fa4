// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/starford/notegraph/internal/api"
	"github.com/starford/notegraph/internal/mcpserver"
	"github.com/starford/notegraph/internal/notebook"
	"github.com/starford/notegraph/internal/noteservice"
	"github.com/starford/notegraph/internal/sse"
	"github.com/starford/notegraph/internal/storage"
	"github.com/starford/notegraph/internal/tokenizer"
	"github.com/starford/notegraph/internal/watch"
)

type runtime struct {
	cfg    *Config
	logger *slog.Logger
	nb     *notebook.Notebook
	svc    *noteservice.Service
}

func setup(opts []Option) (*runtime, error) {
	app := &application{logOutput: os.Stdout}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}

	cfg := app.config

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(app.logOutput, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("notebook_path", cfg.Notebook.Path),
		slog.Bool("include_subdirectories", cfg.Notebook.IncludeSubdirectories),
		slog.Bool("watch", cfg.Notebook.Watch),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// Ensure notebook directory exists.
	if err := os.MkdirAll(cfg.Notebook.Path, 0o755); err != nil {
		return nil, fmt.Errorf("create notebook dir: %w", err)
	}

	store, err := storage.NewFS(cfg.Notebook.Path)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}
	logger.Info("Notebook storage ready", slog.String("root", store.Root()))

	nb, err := notebook.New(store, tokenizer.NewGoldmark(),
		notebook.WithLogger(logger),
		notebook.WithIgnoreDirs(cfg.Notebook.IgnoreDirs...),
		notebook.WithScanConcurrency(cfg.Notebook.ScanConcurrency),
		notebook.WithSubdirectories(cfg.Notebook.IncludeSubdirectories),
	)
	if err != nil {
		return nil, fmt.Errorf("init notebook: %w", err)
	}

	return &runtime{
		cfg:    cfg,
		logger: logger,
		nb:     nb,
		svc:    noteservice.NewService(nb),
	}, nil
}

// Run starts the HTTP application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	rt, err := setup(opts)
	if err != nil {
		return err
	}
	defer rt.nb.Close()

	cfg, logger, nb := rt.cfg, rt.logger, rt.nb

	// SSE broker.
	broker := sse.NewBroker(cfg.Events.GraphThrottle, rt.svc.GraphHash)
	defer broker.Close()

	apiRouter := api.NewRouter(rt.svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, cfg.Search.DefaultLimit, broker)

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
		if !nb.Loaded() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = fmt.Fprintf(w, `{"status":%q}`, nb.State())
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", promhttp.Handler())

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Bootstrap, then follow the notebook directory.
	g.Go(func() error {
		if err := nb.Bootstrap(gCtx); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			logger.Warn("bootstrap failed", slog.String("error", err.Error()))
		}
		if !cfg.Notebook.Watch {
			return nil
		}
		err := watch.Watch(gCtx, nb, cfg.Notebook.Path, cfg.Notebook.IgnoreDirs, logger, func(kind, path string) {
			broker.PublishNoteEvent(kind, path)
		})
		if err != nil {
			logger.Error("watcher stopped", slog.String("error", err.Error()))
		}
		return nil
	})

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

		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown cancels the run group once the HTTP server has stopped so the
// watcher exits too.
var errShutdown = errors.New("shutdown")

// RunMCP bootstraps the notebook and serves MCP tools over stdio.
func RunMCP(ctx context.Context, opts ...Option) error {
	rt, err := setup(opts)
	if err != nil {
		return err
	}
	defer rt.nb.Close()

	if err := rt.nb.Bootstrap(ctx); err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}

	rt.logger.Info("MCP server starting", slog.Int("notes", rt.nb.Len()))
	return mcpserver.New(rt.svc, rt.cfg.Search.DefaultLimit).ServeStdio()
}

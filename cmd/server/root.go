package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ashureev/quizchat/internal/api"
	"github.com/ashureev/quizchat/internal/chat"
	"github.com/ashureev/quizchat/internal/config"
	"github.com/ashureev/quizchat/internal/identity"
	"github.com/ashureev/quizchat/internal/middleware"
	"github.com/ashureev/quizchat/internal/quizapi"
	"github.com/ashureev/quizchat/internal/render"
	"github.com/ashureev/quizchat/internal/store"
	"github.com/ashureev/quizchat/internal/telemetry"
	"github.com/ashureev/quizchat/web"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

var (
	flagPort     string
	flagLogLevel string
)

var rootCmd = &cobra.Command{
	Use:               "quizchat",
	Short:             "Chat-style web front end for the quiz generation service",
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	RunE:              serve,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level: debug, info, warn, error (default $LOG_LEVEL or info)")
	rootCmd.Flags().StringVar(&flagPort, "port", "", "listen port (default $PORT or 8080)")
}

func setup(_ *cobra.Command, _ []string) error {
	envErr := godotenv.Load()

	level := flagLogLevel
	if level == "" {
		level = os.Getenv("LOG_LEVEL")
	}
	var lvl slog.Level
	if level != "" {
		if err := lvl.UnmarshalText([]byte(strings.ToLower(level))); err != nil {
			return fmt.Errorf("invalid log level %q: %w", level, err)
		}
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)

	if envErr != nil {
		slog.Info("No .env file found, using environment variables")
	}
	return nil
}

func serve(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		return err
	}
	if flagPort != "" {
		cfg.Port = flagPort
	}

	slog.Info("Starting server", "port", cfg.Port, "api_url", cfg.APIURL, "dev", cfg.IsDevelopment())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tracing, err := telemetry.NewProvider(ctx, cfg.Telemetry)
	if err != nil {
		slog.Error("Failed to initialize telemetry", "error", err)
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracing.Shutdown(shutdownCtx); err != nil {
			slog.Error("Failed to flush telemetry", "error", err)
		}
	}()

	// Initialize dependencies.
	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		return err
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(ctx); err != nil {
		slog.Error("Database health check failed", "error", err)
		return err
	}
	slog.Info("Database connected")

	views, err := web.LoadViews()
	if err != nil {
		slog.Error("Failed to load templates", "error", err)
		return err
	}

	// Initialize services.
	client := quizapi.New(cfg.APIURL, quizapi.WithTimeout(cfg.RequestTimeout))
	auth := identity.NewAuthenticator(client)
	sessions := identity.NewSessions(repo, identity.NewCookieManager(cfg.CookieMaxAge, cfg.IsDevelopment()), auth)
	chatSvc := chat.NewService(client)

	limiter := middleware.NewKeyedLimiter(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.Burst)
	limiter.StartSweeper(ctx, 10*time.Minute)

	// Initialize handlers.
	handler := api.NewHandler(sessions, auth, chatSvc, views, render.NewMarkdown(), cfg.MaxUploadBytes)
	healthHandler := api.NewHealthHandler(repo)

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/ping"))
	r.Use(middleware.SecurityHeaders(!cfg.IsDevelopment()))

	// Public routes.
	healthHandler.RegisterHealth(r)
	r.Handle("/static/*", web.StaticHandler())

	// Pages.
	handler.RegisterRoutes(r, middleware.RateLimit(limiter, api.RateLimitKey))

	// WriteTimeout must outlast the slowest generate call.
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           otelhttp.NewHandler(r, "quizchat"),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       2 * time.Minute,
		WriteTimeout:      cfg.RequestTimeout + 30*time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Start TTL worker.
	store.StartTTLWorker(ctx, repo, cfg.SessionTTL, store.TTLWorkerInterval)

	// Start server.
	serverErr := make(chan error, 1)
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Wait for shutdown signal.
	select {
	case err := <-serverErr:
		slog.Error("Server failed", "error", err)
		return err
	case <-ctx.Done():
	}
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		return err
	}

	slog.Info("Server stopped successfully")
	return nil
}

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hyperengineering/vision/internal/api"
	"github.com/hyperengineering/vision/internal/config"
	"github.com/hyperengineering/vision/internal/worker"
)

// Version is set at build time via ldflags: -ldflags "-X main.Version=1.0.0"
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:          "vision",
	Short:        "Vision 2026 - AI business planner",
	RunE:         run,
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(checkoutCmd)
}

func run(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := newLogger(os.Stdout, cfg.Log)
	slog.SetDefault(logger)
	slog.Info("configuration loaded", "level", cfg.Log.Level, "provider", cfg.LLM.Provider)

	svc, err := buildServices(cfg, logger)
	if err != nil {
		return err
	}
	slog.Info("store initialized", "path", cfg.Database.Path)

	handler := api.NewHandler(api.Deps{
		Store:      svc.store,
		Streak:     svc.streak,
		Onboarding: svc.onboarding,
		Dashboards: svc.dashboards,
		Advisor:    svc.advisor,
		Checkout:   svc.checkout,
		Archive:    svc.archive,
		Model:      svc.generator,
		APIKey:     cfg.Auth.APIKey,
		Version:    Version,
		Limiter: api.NewRateLimiter(cfg.Server.GenerationBurst,
			time.Duration(cfg.Server.GenerationRefill)),
	})
	router := api.NewRouter(handler)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout),
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout),
	}

	var wg sync.WaitGroup
	startWorker(ctx, &wg, "draft-reaper", worker.NewDraftReaper(svc.store,
		time.Duration(cfg.Worker.DraftSweepInterval),
		time.Duration(cfg.Worker.DraftRetention)).Run)
	startWorker(ctx, &wg, "controller-sweeper", worker.NewControllerSweeper(svc.dashboards,
		time.Duration(cfg.Worker.ControllerSweepInterval)).Run)

	go func() {
		slog.Info("server starting", "address", addr, "model", svc.generator.ModelName())
		// ErrServerClosed is the expected error when Shutdown() is called gracefully.
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	slog.Info("shutdown initiated")

	shutdownCtx, shutdownCancel := context.WithTimeout(
		context.Background(),
		time.Duration(cfg.Server.ShutdownTimeout))
	defer shutdownCancel()

	// Drain in-flight requests, then workers, then the store
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}
	wg.Wait()
	if err := svc.store.Close(); err != nil {
		slog.Error("store close error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}

// newLogger builds the process logger. Format "text" is meant for local runs.
func newLogger(w io.Writer, cfg config.LogConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Level)}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// startWorker launches a background worker goroutine that respects context cancellation.
// Workers are tracked via WaitGroup for graceful shutdown.
func startWorker(ctx context.Context, wg *sync.WaitGroup, name string, fn func(ctx context.Context)) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		slog.Info("worker started", "worker", name)
		fn(ctx)
		slog.Info("worker stopped", "worker", name)
	}()
}

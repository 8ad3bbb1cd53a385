// Command api runs the club finance dashboard: statement imports, the
// transaction ledger, balance and reporting endpoints, plus committee auth.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/UMHC/umhc-finance/pkg/config"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("server exited", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if cfg.Auth.JWTSecret == "changeme" {
		logger.Warn("JWT_SECRET is the development default, set a real value before going live")
	}

	gin.SetMode(gin.ReleaseMode)

	deps, err := InitDependencies(cfg, logger)
	if err != nil {
		return err
	}
	defer deps.Cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// First boot on an empty database seeds the initial treasurer account
	if err := deps.AuthService.Bootstrap(ctx, cfg.Auth.AdminEmail); err != nil {
		return fmt.Errorf("bootstrap treasurer account: %w", err)
	}

	router := buildRouter(deps)

	corsMiddleware := cors.New(cors.Options{
		AllowedOrigins:   []string{cfg.Server.BaseURL},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           corsMiddleware.Handler(router),
		ReadHeaderTimeout: 10 * time.Second,
	}

	if cfg.Cron.Enabled {
		if err := deps.Scheduler.Start(); err != nil {
			return fmt.Errorf("start scheduler: %w", err)
		}
	}

	if cfg.Observability.MetricsEnabled {
		go serveMetrics(cfg.Observability.MetricsPort, logger)
	}
	if cfg.Profiling.Enabled {
		go servePprof(cfg.Profiling.Port, logger)
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}

	if cfg.Cron.Enabled {
		select {
		case <-deps.Scheduler.Stop().Done():
		case <-shutdownCtx.Done():
			logger.Warn("scheduler jobs still running at shutdown deadline")
		}
	}

	logger.Info("server stopped")
	return nil
}

// serveMetrics exposes Prometheus metrics on a separate listener, kept off
// the public API port.
func serveMetrics(port int, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	addr := fmt.Sprintf(":%d", port)
	logger.Info("metrics listening", slog.String("addr", addr))
	if err := http.ListenAndServe(addr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("metrics listener failed", slog.Any("error", err))
	}
}

// servePprof serves the net/http/pprof handlers registered on the default
// mux. Bound to localhost; enable with PPROF_ENABLED.
func servePprof(port int, logger *slog.Logger) {
	addr := fmt.Sprintf("localhost:%d", port)
	logger.Info("pprof listening", slog.String("addr", addr))
	if err := http.ListenAndServe(addr, nil); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("pprof listener failed", slog.Any("error", err))
	}
}

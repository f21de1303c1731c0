package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"agentforge/core/config"
	"agentforge/core/pkg/db"
	"agentforge/core/pkg/telemetry"
	"agentforge/core/services/events"
	"agentforge/core/services/registry"
	"agentforge/core/services/storage"
	"agentforge/core/services/workflow"
)

func main() {
	ctx := context.Background()

	configPath := flag.String("config", "", "path to a YAML config file (optional; env vars always apply)")
	flag.Parse()

	logHandler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	})
	slog.SetDefault(slog.New(logHandler))

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return
	}

	shutdownTracing, err := telemetry.Setup(ctx, cfg.Observability.ServiceName, cfg.Observability.OTLPEndpoint, cfg.Observability.OTLPInsecure)
	if err != nil {
		slog.Error("failed to set up tracing", "error", err)
		return
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			slog.Warn("failed to flush traces", "error", err)
		}
	}()

	pool, err := db.Connect(ctx, cfg.Database)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		return
	}
	defer pool.Close()

	pgStore, err := storage.New(pool)
	if err != nil {
		slog.Error("failed to create store instance", "error", err)
		return
	}

	agentRegistry := registry.NewPostgres(pool)
	hub := events.NewHub(cfg.Events.LogRingSize, cfg.Events.OutboxSize)

	workflowService, err := workflow.NewService(pgStore, agentRegistry, hub, slog.Default())
	if err != nil {
		slog.Error("failed to create workflow service", "error", err)
		return
	}

	mainRouter := mux.NewRouter()
	apiRouter := mainRouter.PathPrefix("/api/v1").Subrouter()
	workflowService.LoadRoutes(apiRouter)

	corsHandler := handlers.CORS(
		handlers.AllowedOrigins(cfg.Server.CORSOrigins),
		handlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization", "X-Request-ID"}),
		handlers.AllowCredentials(),
	)(mainRouter)

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      corsHandler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	metricsSrv := &http.Server{
		Addr:    cfg.Observability.MetricsAddr,
		Handler: promhttp.Handler(),
	}

	serverErrors := make(chan error, 1)

	go func() {
		slog.Info("starting server", "addr", cfg.Server.Addr)
		serverErrors <- srv.ListenAndServe()
	}()

	go func() {
		slog.Info("starting metrics server", "addr", cfg.Observability.MetricsAddr)
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server error", "error", err)
		}
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		slog.Error("server error", "error", err)

	case sig := <-shutdown:
		slog.Info("shutdown signal received", "signal", sig)

		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("could not stop server gracefully", "error", err)
			srv.Close()
		}
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
}

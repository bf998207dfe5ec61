package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"persona-server/internal/ai"
	"persona-server/internal/config"
	"persona-server/internal/database"
	"persona-server/internal/logger"
	"persona-server/internal/messaging"
	"persona-server/internal/models"
	"persona-server/internal/registry"
	"persona-server/internal/repository"
	"persona-server/internal/service"
	"persona-server/internal/state"
)

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found, using environment variables")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if err := checkConfig(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{Level: cfg.LogLevel, Encoding: cfg.LogEncoding})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()
	zap.ReplaceGlobals(log)
	log = log.Named("moderation-worker")
	log.Info("Configuration loaded", cfg.LogFields()...)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := state.LoadCatalog(cfg.CatalogFile, models.AIContextSettings{
		MaxHistory:        cfg.AIMaxHistory,
		MaxResponseTokens: cfg.AIMaxResponseTokens,
		Temperature:       cfg.AITemperature,
		DefaultModel:      cfg.AIDefaultModel,
	}, cfg.Secrets(), log)
	if err != nil {
		log.Fatal("Failed to load catalog", zap.Error(err))
	}
	repos := repository.NewMemoryRepositories(st, log)

	pool, err := database.Connect(ctx, database.PoolConfig{
		DSN:         cfg.GetDSN(),
		MaxConns:    cfg.DBMaxConns,
		IdleTimeout: cfg.DBIdleTimeout,
		MaxRetries:  10,
		RetryDelay:  3 * time.Second,
	}, log)
	if err != nil {
		log.Fatal("Failed to connect to PostgreSQL", zap.Error(err))
	}
	defer pool.Close()
	if err := database.NewMigrator(pool, log).Up(); err != nil {
		log.Fatal("Failed to apply migrations", zap.Error(err))
	}
	alertRepo := repository.NewPgModerationAlertRepository(pool, log)

	// connections come from the catalog; edits made through the admin API
	// reach the worker only after the catalog is updated and it restarts
	reg := registry.New(repos.Connections, nil, ai.Options{Timeout: cfg.AITimeout, Logger: log}, log)
	moderation := service.NewModerationService(reg, alertRepo, nil, cfg.AITimeout, log)

	mqConn, err := messaging.Connect(ctx, cfg.RabbitMQURL, 10, 3*time.Second, log)
	if err != nil {
		log.Fatal("Failed to connect to RabbitMQ", zap.Error(err))
	}
	defer mqConn.Close()

	consumer := messaging.NewModerationConsumer(mqConn, moderation, cfg.AITimeout, log)
	if err := consumer.Start(ctx); err != nil {
		log.Fatal("Failed to start moderation consumer", zap.Error(err))
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	metricsSrv := &http.Server{
		Addr:         ":" + cfg.MetricsPort,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() {
		log.Info("Starting metrics server", zap.String("port", cfg.MetricsPort))
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Metrics server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down moderation worker...")

	if err := consumer.Stop(); err != nil {
		log.Error("Failed to stop consumer", zap.Error(err))
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		log.Error("Metrics server forced to shutdown", zap.Error(err))
	}
	log.Info("Moderation worker exited")
}

// checkConfig rejects settings the worker cannot run with. Alerts must land
// in PostgreSQL so the API server can list them.
func checkConfig(cfg *config.Config) error {
	if cfg.RabbitMQURL == "" {
		return errors.New("RABBITMQ_URL is required for the moderation worker")
	}
	if cfg.DBHost == "" {
		return errors.New("DB_HOST is required for the moderation worker")
	}
	return nil
}

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

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"persona-server/internal/ai"
	"persona-server/internal/config"
	"persona-server/internal/database"
	"persona-server/internal/handler"
	"persona-server/internal/logger"
	"persona-server/internal/messaging"
	"persona-server/internal/middleware"
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

	log, err := logger.New(logger.Config{Level: cfg.LogLevel, Encoding: cfg.LogEncoding})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()
	zap.ReplaceGlobals(log)
	log.Info("Configuration loaded", cfg.LogFields()...)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := state.LoadCatalog(cfg.CatalogFile, defaultAISettings(cfg), cfg.Secrets(), log)
	if err != nil {
		log.Fatal("Failed to load catalog", zap.Error(err))
	}
	repos := repository.NewMemoryRepositories(st, log)

	chatRepo := repos.Chat
	alertRepo := repos.Alerts
	sessionRepo := repos.Sessions

	if cfg.DBHost != "" {
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
		chatRepo = repository.NewPgChatRepository(pool, log)
		alertRepo = repository.NewPgModerationAlertRepository(pool, log)
	}

	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			log.Fatal("Failed to connect to Redis", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		}
		defer rdb.Close()
		log.Info("Connected to Redis", zap.String("addr", cfg.RedisAddr))
		sessionRepo = repository.NewRedisSessionRepository(rdb, cfg.RedisSessionTTL, log)
	}

	var publisher messaging.ModerationTaskPublisher
	if cfg.RabbitMQURL != "" {
		mqConn, err := messaging.Connect(ctx, cfg.RabbitMQURL, 10, 3*time.Second, log)
		if err != nil {
			log.Fatal("Failed to connect to RabbitMQ", zap.Error(err))
		}
		defer mqConn.Close()
		pub, ch, err := messaging.NewModerationPublisher(mqConn, log)
		if err != nil {
			log.Fatal("Failed to create moderation publisher", zap.Error(err))
		}
		defer ch.Close()
		publisher = pub
	} else {
		log.Info("RABBITMQ_URL not set, chat messages are not queued for moderation")
	}

	reg := registry.New(repos.Connections, nil, ai.Options{Timeout: cfg.AITimeout, Logger: log}, log)
	retry := service.RetryPolicy{MaxAttempts: cfg.AIMaxAttempts, BaseDelay: cfg.AIBaseRetryDelay}

	h := handler.NewHandler(handler.Services{
		Chat: service.NewChatService(service.ChatDeps{
			Users:      repos.Users,
			Characters: repos.Characters,
			Chat:       chatRepo,
			Sessions:   sessionRepo,
			Settings:   repos.Settings,
			Resolver:   reg,
			Publisher:  publisher,
		}, cfg.AITimeout, log),
		Moderation:  service.NewModerationService(reg, alertRepo, nil, cfg.AITimeout, log),
		Summary:     service.NewSummaryService(repos.Characters, reg, retry, cfg.AITimeout, log),
		Characters:  service.NewCharacterService(repos.Characters, log),
		Connections: service.NewConnectionService(repos.Connections, reg, log),
		Settings:    service.NewSettingsService(repos.Settings, log),
	}, cfg.AdminToken, log)

	gin.SetMode(gin.ReleaseMode)
	if cfg.LogLevel == "debug" {
		gin.SetMode(gin.DebugMode)
	}
	router := gin.New()
	router.RedirectTrailingSlash = true
	router.Use(middleware.GinZapLogger(log))
	router.Use(middleware.Metrics())
	router.Use(gin.Recovery())
	router.Use(cors.New(corsConfig(cfg, log)))
	h.RegisterRoutes(router)

	srv := &http.Server{
		Addr:        ":" + cfg.HTTPPort,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		// streamed turns stay open for up to AI_TIMEOUT
		WriteTimeout: cfg.AITimeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("Starting HTTP server", zap.String("port", cfg.HTTPPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP server listen error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server forced to shutdown", zap.Error(err))
	}
	log.Info("Server exited")
}

func defaultAISettings(cfg *config.Config) models.AIContextSettings {
	fields := make([]models.PersonaField, 0, len(models.AllPersonaFields))
	for _, f := range models.AllPersonaFields {
		if f != models.FieldGreeting {
			fields = append(fields, f)
		}
	}
	return models.AIContextSettings{
		IncludedFields:    fields,
		MaxHistory:        cfg.AIMaxHistory,
		MaxResponseTokens: cfg.AIMaxResponseTokens,
		Temperature:       cfg.AITemperature,
		DefaultModel:      cfg.AIDefaultModel,
	}
}

func corsConfig(cfg *config.Config, log *zap.Logger) cors.Config {
	c := cors.DefaultConfig()
	if len(cfg.CORSAllowedOrigins) == 0 || (len(cfg.CORSAllowedOrigins) == 1 && cfg.CORSAllowedOrigins[0] == "*") {
		c.AllowAllOrigins = true
		log.Info("CORS allows all origins")
	} else {
		c.AllowOrigins = cfg.CORSAllowedOrigins
		c.AllowCredentials = true
	}
	c.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	c.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", middleware.UserIDHeader, middleware.RequestIDHeader}
	c.ExposeHeaders = []string{middleware.RequestIDHeader}
	c.MaxAge = 12 * time.Hour
	return c
}

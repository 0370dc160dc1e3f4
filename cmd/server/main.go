package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"agentsurvey/internal/cache"
	"agentsurvey/internal/config"
	"agentsurvey/internal/llm"
	"agentsurvey/internal/logging"
	"agentsurvey/internal/question"
	"agentsurvey/internal/repository"
	"agentsurvey/internal/service"
	"agentsurvey/internal/transport/rest"
	"agentsurvey/internal/transport/ws"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// @title Agent Survey API
// @version 1.0
// @description Administers surveys to simulated respondents through a language model
// @host localhost:8080
// @BasePath /v1
func main() {
	cfg := config.Load()

	logger, err := logging.New(cfg.LogLevel, cfg.LogJSON)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	ctx := context.Background()

	logger.Info("ai config",
		zap.String("provider", cfg.AI.Provider),
		zap.String("model", cfg.AI.Model),
		zap.Float32("temperature", cfg.AI.Temperature),
		zap.Bool("api_key_set", cfg.AI.IsEnabled()))

	// MongoDB connection
	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		logger.Fatal("failed to connect to MongoDB", zap.Error(err))
	}
	defer mongoClient.Disconnect(ctx)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := mongoClient.Ping(pingCtx, nil); err != nil {
		logger.Fatal("failed to ping MongoDB", zap.Error(err))
	}
	logger.Info("connected to MongoDB", zap.String("database", cfg.MongoDatabase))

	db := mongoClient.Database(cfg.MongoDatabase)

	// Redis connection
	rdb := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr,
	})
	defer rdb.Close()

	if _, err := rdb.Ping(ctx).Result(); err != nil {
		logger.Fatal("failed to ping Redis", zap.Error(err))
	}
	logger.Info("connected to Redis", zap.String("addr", cfg.RedisAddr))

	// Model client
	client, err := llm.NewClientFromConfig(ctx, cfg.AI, logger)
	if err != nil {
		logger.Fatal("failed to create model client", zap.Error(err))
	}

	wsHub := ws.NewHub(logger)

	// Initialize repositories
	surveyRepo := repository.NewSurveyRepo(db)
	runRepo := repository.NewRunRepo(db)
	resultRepo := repository.NewResultRepo(db)

	responseCache := cache.NewResponseCache(rdb, cfg.CacheTTL)
	registry := question.Default()

	// Initialize services
	authSvc := service.NewAuthService(cfg)
	surveySvc := service.NewSurveyService(surveyRepo, registry)
	adminSvc := service.NewAdministrationService(surveySvc, client, responseCache, resultRepo, logger)
	runner := service.NewRunner(service.RunnerOptions{
		Caller:      client,
		Cache:       responseCache,
		RunRepo:     runRepo,
		ResultRepo:  resultRepo,
		Broadcaster: wsHub,
		Registry:    registry,
		Concurrency: cfg.RunConcurrency,
		Logger:      logger,
	})

	router := rest.NewRouter(&rest.Container{
		AuthService:           authSvc,
		SurveyService:         surveySvc,
		AdministrationService: adminSvc,
		Runner:                runner,
		RunRepo:               runRepo,
		ResultRepo:            resultRepo,
		WSHub:                 wsHub,
		Logger:                logger,
	})

	srv := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: router,
	}

	go func() {
		logger.Info("server starting", zap.String("port", cfg.HTTPPort), zap.String("operator", cfg.OperatorUsername))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen and serve", zap.Error(err))
		}
	}()

	// Wait for interrupt
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server exited")
}

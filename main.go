package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/ideaflow-inc/ideaflow-engine/pkg/config"
	"github.com/ideaflow-inc/ideaflow-engine/pkg/confidence"
	"github.com/ideaflow-inc/ideaflow-engine/pkg/database"
	"github.com/ideaflow-inc/ideaflow-engine/pkg/embedding"
	"github.com/ideaflow-inc/ideaflow-engine/pkg/handlers"
	"github.com/ideaflow-inc/ideaflow-engine/pkg/logging"
	"github.com/ideaflow-inc/ideaflow-engine/pkg/middleware"
	"github.com/ideaflow-inc/ideaflow-engine/pkg/repositories"
	"github.com/ideaflow-inc/ideaflow-engine/pkg/retry"
	"github.com/ideaflow-inc/ideaflow-engine/pkg/services"
	"github.com/ideaflow-inc/ideaflow-engine/pkg/similarity"
)

// Version is set at build time via ldflags
var Version = "dev"

const runLockKey = "ideaflow:dedup:run"

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := newLogger(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	connStr := cfg.Database.ConnectionString()
	logger.Info("Configuration loaded",
		zap.String("env", cfg.Env),
		zap.String("version", cfg.Version),
		zap.String("database", logging.SanitizeConnectionString(connStr)),
		zap.String("embedding_model", cfg.Embedding.Model),
		zap.String("dedup_strategy", cfg.Dedup.Strategy),
		zap.Bool("batch_enabled", cfg.Batch.Enabled))

	// The database container is often still starting when the engine boots.
	db, err := retry.DoWithResult(ctx, retry.DefaultConfig(), func() (*database.DB, error) {
		return database.NewConnection(ctx, &database.Config{
			URL:              connStr,
			MaxConnections:   cfg.Database.MaxConnections,
			MinConnections:   cfg.Database.MinConnections,
			StatementTimeout: cfg.Database.StatementTimeout,
		})
	})
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.String("error", logging.SanitizeError(err)))
	}
	defer db.Close()

	if err := migrate(connStr, cfg.MigrationsPath, logger); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}

	redisClient, err := database.NewRedisClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
	} else {
		logger.Info("Redis not configured, batch runs are not coordinated across replicas")
	}

	provider, err := embedding.NewOpenAIProvider(&embedding.Config{
		BaseURL: config.ResolveURLForDocker(cfg.Embedding.BaseURL),
		Model:   cfg.Embedding.Model,
		APIKey:  cfg.Embedding.APIKey,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to create embedding provider", zap.Error(err))
	}

	// Repositories
	workspaceRepo := repositories.NewWorkspaceRepository()
	ideaRepo := repositories.NewIdeaRepository()
	voteRepo := repositories.NewVoteRepository()
	embeddingRepo := repositories.NewEmbeddingRepository()
	suggestionRepo := repositories.NewSuggestionRepository()
	mergeRepo := repositories.NewMergeRepository()
	signalsRepo := repositories.NewSignalsRepository()

	getTenantCtx := database.NewTenantContextFunc(db)

	// Services
	embeddingSync := services.NewEmbeddingSyncService(ideaRepo, embeddingRepo, provider, getTenantCtx,
		services.EmbeddingSyncConfig{
			RequestsPerSecond: cfg.Embedding.RequestsPerSecond,
			MaxPerWorkspace:   cfg.Embedding.MaxPerWorkspace,
			Workers:           cfg.Embedding.Workers,
			Retry:             retry.ProviderConfig(),
		}, logger)
	detection := services.NewDuplicateDetectionService(embeddingRepo, suggestionRepo,
		services.DetectionConfig{
			Strategy: cfg.Dedup.Strategy,
			Options: similarity.Options{
				Threshold: cfg.Dedup.SimilarityThreshold,
				MinIdeas:  cfg.Dedup.MinIdeas,
				Weights:   similarity.Weights{Title: cfg.Dedup.TitleWeight, Problem: cfg.Dedup.ProblemWeight},
			},
		}, logger)
	suggestionService := services.NewSuggestionService(suggestionRepo, mergeRepo, logger)
	ideaService := services.NewIdeaService(ideaRepo, voteRepo, embeddingSync, logger)
	confidenceService := services.NewConfidenceService(signalsRepo,
		confidence.NewScorer(services.ConfidenceParams(cfg.Confidence)), logger)
	scheduler := services.NewDedupScheduler(
		workspaceRepo, embeddingSync, detection, suggestionService,
		database.NewGlobalContextFunc(db), getTenantCtx,
		services.NewRunLock(redisClient, runLockKey, cfg.Batch.LockTTL),
		services.BatchSettings{
			Size:        cfg.Batch.Size,
			Cooldown:    cfg.Batch.Cooldown,
			Concurrency: cfg.Batch.Concurrency,
		}, logger)

	if cfg.Batch.Enabled {
		scheduler.RunScheduler(ctx, cfg.Batch.Interval)
	}

	// HTTP
	mux := http.NewServeMux()
	tenantMiddleware := handlers.TenantMiddleware(database.WithTenantContext(db, logger))

	handlers.NewHealthHandler(cfg, db, logger).RegisterRoutes(mux)
	handlers.NewSuggestionHandler(suggestionService, logger).RegisterRoutes(mux, tenantMiddleware)
	handlers.NewIdeaHandler(ideaService, logger).RegisterRoutes(mux, tenantMiddleware)
	handlers.NewConfidenceHandler(confidenceService, logger).RegisterRoutes(mux, tenantMiddleware)
	handlers.NewDedupHandler(scheduler, logger).RegisterRoutes(mux)

	server := &http.Server{
		Addr:              net.JoinHostPort(cfg.BindAddr, cfg.Port),
		Handler:           middleware.RequestLogger(logger)(mux),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Manual dedup runs hold the request open for the whole pass.
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("Starting ideaflow-engine", zap.String("addr", server.Addr), zap.String("version", cfg.Version))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown error", zap.Error(err))
	}
	if err := embeddingSync.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Pending embedding updates abandoned", zap.Error(err))
	}
}

func newLogger(env string) (*zap.Logger, error) {
	if env == "local" || env == "dev" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func migrate(connStr, path string, logger *zap.Logger) error {
	sqlDB, err := database.OpenForMigrations(connStr)
	if err != nil {
		return err
	}
	defer func() { _ = sqlDB.Close() }()

	return database.RunMigrations(sqlDB, path, logger)
}

package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"

	_ "github.com/jackc/pgx/v5/stdlib" // database/sql driver for migrations
	"go.uber.org/zap"

	"github.com/mnemo-labs/mnemo-engine/pkg/config"
	"github.com/mnemo-labs/mnemo-engine/pkg/database"
	"github.com/mnemo-labs/mnemo-engine/pkg/events"
	"github.com/mnemo-labs/mnemo-engine/pkg/graph"
	"github.com/mnemo-labs/mnemo-engine/pkg/handlers"
	"github.com/mnemo-labs/mnemo-engine/pkg/repositories"
	"github.com/mnemo-labs/mnemo-engine/pkg/services"
)

// Version is set at build time via ldflags
var Version = "dev"

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

	logger.Info("Configuration loaded",
		zap.String("environment", cfg.Env),
		zap.String("database", cfg.Database.Host),
		zap.String("redis", cfg.Redis.Host))

	ctx := context.Background()

	db, err := database.NewConnection(ctx, &database.Config{
		URL:            cfg.Database.ConnectionString(),
		MaxConnections: cfg.Database.MaxConnections,
	})
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	migrationDB, err := sql.Open("pgx", cfg.Database.ConnectionString())
	if err != nil {
		logger.Fatal("Failed to open migration connection", zap.Error(err))
	}
	if err := database.RunMigrations(migrationDB, cfg.Database.MigrationsPath, logger); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}
	_ = migrationDB.Close()

	redisClient, err := database.NewRedisClient(&cfg.Redis)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}

	var sink events.Sink
	if redisClient != nil {
		sink = events.NewRedisSink(redisClient, logger)
	} else {
		sink = events.NewLogSink(logger)
	}

	adapter := graph.NewPostgresAdapter(db)
	episodeRepo := repositories.NewEpisodeRepository(adapter)
	policyRepo := repositories.NewPolicyRepository(adapter)

	policyService := services.NewPolicyService(policyRepo, cfg.Lifecycle, redisClient, logger)
	pruneService := services.NewPruneService(episodeRepo, policyService, sink, logger)
	consolidationService := services.NewConsolidationService(episodeRepo, policyService, logger)
	archiveService := services.NewArchiveService(episodeRepo, policyService, sink, logger)
	capService := services.NewCapService(episodeRepo, policyService, sink, logger)
	memoryService := services.NewMemoryService(episodeRepo, sink, logger)
	reportService := services.NewReportService(episodeRepo, policyService, logger)
	lifecycleService := services.NewLifecycleService(
		episodeRepo, pruneService, consolidationService, archiveService, capService, sink, logger)

	mux := http.NewServeMux()

	healthHandler := handlers.NewHealthHandler(cfg, logger)
	healthHandler.RegisterRoutes(mux)

	lifecycleHandler := handlers.NewLifecycleHandler(
		policyService, lifecycleService, reportService, memoryService, logger)
	lifecycleHandler.RegisterRoutes(mux)

	addr := cfg.BindAddr + ":" + cfg.Port
	logger.Info("Starting mnemo-engine",
		zap.String("addr", addr),
		zap.String("version", cfg.Version))
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
}

func newLogger(env string) (*zap.Logger, error) {
	if env == "local" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

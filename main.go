package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"github.com/talentcore/talent-engine/pkg/config"
	"github.com/talentcore/talent-engine/pkg/database"
	"github.com/talentcore/talent-engine/pkg/handlers"
	"github.com/talentcore/talent-engine/pkg/logging"
	"github.com/talentcore/talent-engine/pkg/middleware"
	"github.com/talentcore/talent-engine/pkg/repositories"
	"github.com/talentcore/talent-engine/pkg/services"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	connString := cfg.Database.ConnectionString()
	logger.Info("Configuration loaded",
		zap.String("environment", cfg.Env),
		zap.String("database", logging.SanitizeConnectionString(connString)))

	ctx := context.Background()

	migrationDB, err := sql.Open("pgx", connString)
	if err != nil {
		logger.Fatal("Failed to open migration connection", zap.Error(err))
	}
	if err := database.RunMigrations(migrationDB, cfg.MigrationsPath, logger); err != nil {
		logger.Fatal("Failed to run migrations", zap.String("error", logging.SanitizeError(err)))
	}
	if err := migrationDB.Close(); err != nil {
		logger.Warn("Failed to close migration connection", zap.Error(err))
	}

	db, err := database.NewConnection(ctx, &database.Config{
		URL:            connString,
		MaxConnections: cfg.Database.MaxConnections,
	})
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.String("error", logging.SanitizeError(err)))
	}
	defer db.Close()

	templateRepo := repositories.NewTemplateRepository(db)
	organizationRepo := repositories.NewOrganizationRepository(db)
	instanceRepo := repositories.NewInstanceRepository()
	inheritanceRepo := repositories.NewInheritanceRepository()

	importService := services.NewImportService(templateRepo, instanceRepo, logger)
	instanceService := services.NewInstanceService(templateRepo, instanceRepo, inheritanceRepo, logger)
	templateService := services.NewTemplateService(templateRepo, inheritanceRepo, logger)

	tenantMiddleware := database.WithTenantContext(db, organizationRepo.Exists, logger)

	mux := http.NewServeMux()

	healthHandler := handlers.NewHealthHandler(cfg, logger)
	healthHandler.RegisterRoutes(mux)

	templateHandler := handlers.NewTemplateHandler(templateService, logger)
	templateHandler.RegisterRoutes(mux, tenantMiddleware)

	instanceHandler := handlers.NewInstanceHandler(importService, instanceService, logger)
	instanceHandler.RegisterRoutes(mux, tenantMiddleware)

	handler := middleware.RequestLogger(logger)(mux)

	addr := cfg.BindAddr + ":" + cfg.Port
	logger.Info("Starting talent-engine",
		zap.String("addr", addr),
		zap.String("version", cfg.Version))
	if err := http.ListenAndServe(addr, handler); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
}

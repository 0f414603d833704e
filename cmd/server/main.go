package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/antgonto/smart-contract/internal/api"
	"github.com/antgonto/smart-contract/internal/auth"
	"github.com/antgonto/smart-contract/internal/config"
	"github.com/antgonto/smart-contract/internal/contentstore"
	"github.com/antgonto/smart-contract/internal/db"
	"github.com/antgonto/smart-contract/internal/db/models"
	"github.com/antgonto/smart-contract/internal/ledger"
	"github.com/antgonto/smart-contract/internal/roles"
	"github.com/antgonto/smart-contract/internal/services"
	"github.com/antgonto/smart-contract/internal/store"
	"github.com/antgonto/smart-contract/internal/utils"
	"github.com/antgonto/smart-contract/pkg/audit"
	"github.com/antgonto/smart-contract/pkg/logger"
	"github.com/antgonto/smart-contract/pkg/metrics"
)

func main() {
	cfg := config.Load()

	zapLogger, err := logger.NewLogger(cfg.Logging.Environment)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zapLogger.Sync()
	zap.ReplaceGlobals(zapLogger)

	config.LogConfig(zapLogger)

	collector := metrics.NewCollector()
	chain := ledger.NewMemoryLedger()
	contents := contentstore.NewMemoryStore()

	var database *gorm.DB
	var registry roles.Registry
	var certStore store.CertificateStore

	if cfg.Database.Enabled {
		database, err = db.Initialize(cfg)
		if err != nil {
			zapLogger.Fatal("Failed to initialize database", zap.Error(err))
		}
		registry = roles.NewGormRegistry(database, chain, zapLogger)
		certStore = store.NewGormStore(database)
	} else {
		registry = roles.NewMemoryRegistry(chain, zapLogger)
		certStore = store.NewMemoryStore()
	}

	var sink audit.Sink
	if cfg.Audit.NatsURL != "" {
		natsSink, err := audit.NewNatsSink(cfg.Audit.NatsURL, cfg.Audit.SubjectPrefix, zapLogger)
		if err != nil {
			zapLogger.Fatal("Failed to connect audit sink", zap.Error(err))
		}
		defer natsSink.Close()
		sink = natsSink
	} else {
		sink = audit.NewMemorySink(1000)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	adminHash, err := seedPrincipals(ctx, cfg, registry, database, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to seed principals", zap.Error(err))
	}

	challenges := auth.NewChallengeStore(cfg.Security.ChallengeLifetime, zapLogger)
	defer challenges.Stop()
	verifier := auth.NewSignatureVerifier()
	tokens := auth.NewTokenIssuer(cfg.Security.JWTSecret, cfg.Security.TokenLifetime)

	certService := services.NewCertificateService(
		registry, certStore, contents, chain, sink, collector, zapLogger)

	router := api.NewRouter(
		cfg, zapLogger, collector,
		challenges, verifier, tokens,
		registry, certService, sink, database, adminHash)
	router.SetupRoutes()

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.Server.Port
	}
	go func() {
		if err := router.Run(":" + port); err != nil {
			zapLogger.Fatal("Failed to start server", zap.Error(err))
		}
	}()
	zapLogger.Info("Server started", zap.String("port", port))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zapLogger.Info("Shutting down server...")

	if database != nil {
		if sqlDB, err := database.DB(); err == nil {
			sqlDB.Close()
		}
	}
	zapLogger.Info("Server gracefully stopped")
}

// seedPrincipals installs the out-of-band provisioned admin and issuer
// addresses and the console admin user. This is the only path that ever
// establishes Admin standing.
func seedPrincipals(ctx context.Context, cfg *config.Configuration, registry roles.Registry, database *gorm.DB, zapLogger *zap.Logger) (string, error) {
	for _, raw := range cfg.Seed.AdminAddresses {
		address, err := utils.NormalizeAddress(raw)
		if err != nil {
			return "", err
		}
		if err := registry.Seed(ctx, address, models.RoleAdmin); err != nil {
			return "", err
		}
		zapLogger.Info("Seeded admin address", zap.String("address", address))
	}

	for _, raw := range cfg.Seed.IssuerAddresses {
		address, err := utils.NormalizeAddress(raw)
		if err != nil {
			return "", err
		}
		if err := registry.Seed(ctx, address, models.RoleIssuer); err != nil {
			return "", err
		}
		zapLogger.Info("Seeded issuer address", zap.String("address", address))
	}

	if cfg.Seed.AdminPassword == "" {
		zapLogger.Warn("No admin password configured, console login disabled")
		return "", nil
	}

	adminHash, err := utils.EncryptPassword(cfg.Seed.AdminPassword)
	if err != nil {
		return "", err
	}

	if database != nil {
		admin := models.AdminUser{
			Username:     cfg.Seed.AdminUsername,
			PasswordHash: adminHash,
		}
		err := database.WithContext(ctx).
			Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "username"}},
				DoUpdates: clause.AssignmentColumns([]string{"password_hash"}),
			}).
			Create(&admin).Error
		if err != nil {
			return "", err
		}
	}
	zapLogger.Info("Seeded console admin", zap.String("username", cfg.Seed.AdminUsername))

	return adminHash, nil
}

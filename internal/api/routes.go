package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/antgonto/smart-contract/internal/api/handlers"
	"github.com/antgonto/smart-contract/internal/api/middleware"
	"github.com/antgonto/smart-contract/internal/auth"
	"github.com/antgonto/smart-contract/internal/config"
	"github.com/antgonto/smart-contract/internal/db/models"
	"github.com/antgonto/smart-contract/internal/roles"
	"github.com/antgonto/smart-contract/internal/services"
	"github.com/antgonto/smart-contract/pkg/audit"
	"github.com/antgonto/smart-contract/pkg/metrics"
)

type Router struct {
	engine         *gin.Engine
	logger         *zap.Logger
	metrics        *metrics.Collector
	authHandler    *handlers.AuthHandler
	certHandler    *handlers.CertificateHandler
	roleHandler    *handlers.RoleHandler
	authMiddleware *middleware.AuthMiddleware
	reqMiddleware  *middleware.RequestMiddleware
}

func NewRouter(
	cfg *config.Configuration,
	logger *zap.Logger,
	collector *metrics.Collector,
	challenges *auth.ChallengeStore,
	verifier *auth.SignatureVerifier,
	tokens *auth.TokenIssuer,
	registry roles.Registry,
	certificates *services.CertificateService,
	sink audit.Sink,
	database *gorm.DB,
	adminHash string,
) *Router {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	reqMiddleware := middleware.NewRequestMiddleware(logger, cfg.Security.MaxLoginAttempts)
	authMiddleware := middleware.NewAuthMiddleware(tokens)

	engine.Use(reqMiddleware.ProcessRequest())
	engine.Use(reqMiddleware.RecoverPanic())

	authHandler := handlers.NewAuthHandler(
		challenges, verifier, tokens, registry, database,
		cfg.Seed.AdminUsername, adminHash, sink, logger)
	certHandler := handlers.NewCertificateHandler(certificates, logger)
	roleHandler := handlers.NewRoleHandler(registry, sink, logger)

	return &Router{
		engine:         engine,
		logger:         logger,
		metrics:        collector,
		authHandler:    authHandler,
		certHandler:    certHandler,
		roleHandler:    roleHandler,
		authMiddleware: authMiddleware,
		reqMiddleware:  reqMiddleware,
	}
}

func (r *Router) SetupRoutes() {
	r.engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "up", "name": "certificate-registry"})
	})

	r.engine.GET("/metrics", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"counters":  r.metrics.GetCounters(),
			"latencies": r.metrics.GetLatencies(),
		})
	})

	v1 := r.engine.Group("/api/v1")

	authGroup := v1.Group("/auth")
	{
		authGroup.GET("/challenge/:address", r.authHandler.GetChallenge)
		authGroup.POST("/login", r.reqMiddleware.ThrottleLogins(), r.authHandler.Login)
		authGroup.POST("/admin/login", r.reqMiddleware.ThrottleLogins(), r.authHandler.AdminLogin)
	}

	certs := v1.Group("/certificates")
	{
		// Verification and download are public queries.
		certs.GET("/verify/:certHash", r.certHandler.Verify)
		certs.GET("/download/:certHash", r.certHandler.Download)

		authorized := certs.Group("")
		authorized.Use(r.authMiddleware.RequireAuth())
		{
			authorized.POST("/register",
				r.authMiddleware.RequireRole(models.RoleIssuer),
				r.certHandler.Register)
			authorized.POST("/revoke", r.certHandler.Revoke)
			authorized.GET("/issuer/:address", r.certHandler.ListByIssuer)
			authorized.GET("/student/:address", r.certHandler.ListByStudent)
		}
	}

	roleGroup := v1.Group("/roles")
	roleGroup.Use(r.authMiddleware.RequireAuth())
	{
		roleGroup.POST("/grant",
			r.authMiddleware.RequireRole(models.RoleAdmin),
			r.roleHandler.Grant)
		roleGroup.POST("/revoke",
			r.authMiddleware.RequireRole(models.RoleAdmin),
			r.roleHandler.Revoke)
		roleGroup.GET("/:address", r.roleHandler.RolesOf)
	}
}

func (r *Router) GetEngine() *gin.Engine {
	return r.engine
}

func (r *Router) Run(addr string) error {
	r.logger.Info("Starting HTTP server", zap.String("address", addr))
	return r.engine.Run(addr)
}

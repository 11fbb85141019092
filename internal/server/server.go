package server

import (
	"context"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"delegate-api/internal/auth"
	awsclient "delegate-api/internal/client/aws"
	"delegate-api/internal/client/relay"
	"delegate-api/internal/db"
	"delegate-api/internal/handlers"
	"delegate-api/internal/keys"
	"delegate-api/internal/logger"
	"delegate-api/internal/services"
)

// Handler Definitions
var (
	verificationHandler *handlers.VerificationHandler
	permissionHandler   *handlers.PermissionHandler
	executionHandler    *handlers.ExecutionHandler
	healthHandler       *handlers.HealthHandler

	sessionKeyManager *keys.Manager

	// Database
	dbQueries *db.Queries
)

// InitializeHandlers wires the engine: database pool, session key manager,
// relay client, services, handlers. Fatal on missing required configuration
// so misdeployments fail at startup, not on the first request.
func InitializeHandlers() {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		logger.Fatal("DATABASE_URL environment variable is required")
	}

	poolConfig, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		logger.Fatal("Unable to parse database connection string", zap.Error(err))
	}
	poolConfig.MaxConns = 20
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = time.Minute * 30

	connPool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		logger.Fatal("Unable to create connection pool", zap.Error(err))
	}
	dbQueries = db.New(connPool)

	secretsClient, err := awsclient.NewSecretsManagerClient(context.Background())
	if err != nil {
		logger.Fatal("Unable to create secrets manager client", zap.Error(err))
	}

	sessionKeyManager = keys.NewManager(secretsClient, logger.Log)
	// Surface key configuration errors now rather than on first execution.
	if err := sessionKeyManager.Load(context.Background()); err != nil {
		logger.Fatal("Session signing key misconfigured", zap.Error(err))
	}

	relayURL := os.Getenv("RELAY_URL")
	if relayURL == "" {
		logger.Fatal("RELAY_URL environment variable is required")
	}
	relayTimeout := 60 * time.Second
	if raw := os.Getenv("RELAY_TIMEOUT_SECONDS"); raw != "" {
		seconds, err := strconv.Atoi(raw)
		if err != nil || seconds <= 0 {
			logger.Fatal("RELAY_TIMEOUT_SECONDS must be a positive integer", zap.String("value", raw))
		}
		relayTimeout = time.Duration(seconds) * time.Second
	}
	relayClient, err := relay.NewHTTPClient(relay.Config{
		BaseURL: relayURL,
		APIKey:  os.Getenv("RELAY_API_KEY"),
		Timeout: relayTimeout,
	}, logger.Log)
	if err != nil {
		logger.Fatal("Unable to create relay client", zap.Error(err))
	}

	chainID, err := strconv.ParseUint(os.Getenv("CHAIN_ID"), 10, 64)
	if err != nil || chainID == 0 {
		logger.Fatal("CHAIN_ID environment variable must be a positive integer")
	}

	verificationService := services.NewVerificationService(dbQueries)
	permissionService := services.NewPermissionService(dbQueries)
	executionService := services.NewExecutionService(dbQueries, permissionService, sessionKeyManager, relayClient, chainID)

	commonServices := handlers.NewCommonServices(
		dbQueries,
		verificationService,
		permissionService,
		executionService,
		sessionKeyManager,
	)

	verificationHandler = handlers.NewVerificationHandler(commonServices)
	permissionHandler = handlers.NewPermissionHandler(commonServices)
	executionHandler = handlers.NewExecutionHandler(commonServices)
	healthHandler = handlers.NewHealthHandler()
}

// InitializeRoutes registers middleware and the boundary routes.
func InitializeRoutes(router *gin.Engine) {
	router.Use(configureCORS())

	// Add Swagger endpoint
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health check
	router.GET("/health", healthHandler.Health)

	// if we are not in production, log the request body
	if os.Getenv("GIN_MODE") != "release" {
		router.Use(handlers.LogRequest())
	}

	apiKeys := serviceAPIKeys()
	if len(apiKeys) == 0 {
		logger.Fatal("ENGINE_API_KEYS environment variable is required")
	}

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		protected := v1.Group("/")
		protected.Use(auth.RequireAPIKey(apiKeys))
		{
			verify := protected.Group("/verify")
			{
				verify.POST("/message", verificationHandler.IssueChallenge)
				verify.POST("/signature", verificationHandler.VerifySignature)
				verify.GET("/status/:identity", verificationHandler.LinkStatus)
				verify.GET("/links/:identity", verificationHandler.LinkHistory)
				verify.POST("/revoke", verificationHandler.RevokeLink)
			}

			permissions := protected.Group("/permissions")
			{
				permissions.POST("/sync", permissionHandler.SyncGrant)
				permissions.GET("/wallet/:wallet_address", permissionHandler.WalletGrants)
			}

			protected.POST("/execute", executionHandler.Execute)
			protected.GET("/session-key", executionHandler.SessionKey)
		}
	}
}

func serviceAPIKeys() []string {
	raw := os.Getenv("ENGINE_API_KEYS")
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	keys := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			keys = append(keys, trimmed)
		}
	}
	return keys
}

// configureCORS returns a configured CORS middleware
func configureCORS() gin.HandlerFunc {
	corsConfig := cors.DefaultConfig()

	originsEnv := os.Getenv("CORS_ALLOWED_ORIGINS")
	if originsEnv == "" {
		corsConfig.AllowOrigins = []string{"http://localhost:3000"}
	} else {
		origins := strings.Split(originsEnv, ",")
		for i, origin := range origins {
			origins[i] = strings.TrimSpace(origin)
		}
		corsConfig.AllowOrigins = origins
	}

	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "X-API-Key"}
	corsConfig.AllowCredentials = os.Getenv("CORS_ALLOW_CREDENTIALS") == "true"

	return cors.New(corsConfig)
}

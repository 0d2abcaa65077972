// internal/app/server.go
package app

import (
	"context"
	"fmt"
	"log"

	"pressroom-service/internal/config"
	"pressroom-service/internal/db"
	apikeyHandler "pressroom-service/internal/handlers/apikey"
	auditHandler "pressroom-service/internal/handlers/audit"
	authHandler "pressroom-service/internal/handlers/auth"
	contentHandler "pressroom-service/internal/handlers/content"
	geoHandler "pressroom-service/internal/handlers/geo"
	prefHandler "pressroom-service/internal/handlers/preferences"
	wsHandler "pressroom-service/internal/handlers/websocket"
	"pressroom-service/internal/middleware"
	"pressroom-service/internal/pkg/jwt"
	"pressroom-service/internal/pkg/session"
	"pressroom-service/internal/repository/postgres"
	apikeyUsecase "pressroom-service/internal/service/apikey"
	authUsecase "pressroom-service/internal/service/auth"
	geoUsecase "pressroom-service/internal/service/geo"
	"pressroom-service/internal/service/preferences"
	searchUsecase "pressroom-service/internal/service/search"
	"pressroom-service/internal/upstream"
	"pressroom-service/internal/websocket"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Server struct {
	cfg    config.AppConfig
	engine *gin.Engine
	logger *zap.Logger
}

func NewServer() *Server {
	cfg := config.Load()
	engine := gin.New()
	return &Server{cfg: cfg, engine: engine}
}

func (s *Server) Start() error {
	ctx := context.Background()

	// ----- Logger -----
	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer logger.Sync()
	s.logger = logger

	// ----- PostgreSQL -----
	pool, err := db.ConnectDB(ctx, s.cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	// ----- Redis -----
	redisCfg := db.RedisConfig{
		ClusterMode: false,
		Addresses:   []string{s.cfg.RedisAddr},
		Password:    s.cfg.RedisPass,
		DB:          0,
		PoolSize:    10,
	}

	redisClient, err := db.NewRedisClient(redisCfg)
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	// ----- JWT Manager -----
	jwtManager, err := jwt.LoadAndBuild(s.cfg.JWT)
	if err != nil {
		return fmt.Errorf("failed to load JWT manager: %w", err)
	}

	// ----- Session Manager & Rate Limiter -----
	sessionManager := session.NewManager(redisClient, s.cfg.SessionTTL)
	rateLimiter := session.NewRateLimiter(redisClient)

	// ----- Upstream Client -----
	upstreamClient := upstream.NewClient(s.cfg.UpstreamBaseURL, s.cfg.UpstreamTimeout, logger)

	// ----- Repositories -----
	dbWrapper := postgres.NewDB(pool)
	auditRepo := postgres.NewAuditRepository(pool)
	apiKeyRepo := postgres.NewAPIKeyRepository(pool, dbWrapper)

	// ----- WebSocket Hub -----
	hub := websocket.NewHub(jwtManager.Verifier, sessionManager)
	go hub.Run(context.Background())

	// ----- Services -----
	prefStore := preferences.NewStore(redisClient)
	authService := authUsecase.NewAuthService(
		upstreamClient,
		sessionManager,
		rateLimiter,
		jwtManager,
		auditRepo,
		hub,
		prefStore,
		s.cfg.Sites,
		s.cfg.SessionTTL,
		logger,
	)
	searchService := searchUsecase.NewService(upstreamClient, logger)
	geoService := geoUsecase.NewService(upstreamClient, logger)
	apiKeyService := apikeyUsecase.NewService(apiKeyRepo, logger)

	// ----- Handlers -----
	authHandlerInst := authHandler.NewAuthHandler(authService, logger)
	contentHandlerInst := contentHandler.NewContentHandler(searchService, logger)
	geoHandlerInst := geoHandler.NewGeoHandler(geoService)
	prefHandlerInst := prefHandler.NewPreferencesHandler(prefStore)
	apiKeyHandlerInst := apikeyHandler.NewAPIKeyHandler(apiKeyService, logger)
	auditHandlerInst := auditHandler.NewAuditHandler(auditRepo)
	wsHandlerInst := wsHandler.NewWebSocketHandler(hub, logger)

	// ----- Middlewares -----
	authMiddleware := middleware.NewAuthMiddleware(authService)
	apiKeyMiddleware := middleware.NewAPIKeyMiddleware(apiKeyService)

	s.engine.Use(
		middleware.RecoveryMiddleware(logger),
		middleware.RequestIDMiddleware(),
		middleware.LoggingMiddleware(logger),
		middleware.CORSMiddleware(),
	)

	// ----- Router -----
	handlers := &Handlers{
		AuthHandler:      authHandlerInst,
		ContentHandler:   contentHandlerInst,
		GeoHandler:       geoHandlerInst,
		PrefHandler:      prefHandlerInst,
		APIKeyHandler:    apiKeyHandlerInst,
		AuditHandler:     auditHandlerInst,
		WSHandler:        wsHandlerInst,
		AuthMiddleware:   authMiddleware,
		APIKeyMiddleware: apiKeyMiddleware,
	}
	SetupRouter(s.engine, logger, handlers)

	// ----- Start HTTP -----
	log.Printf("server running on %s", s.cfg.HTTPAddr)
	return s.engine.Run(s.cfg.HTTPAddr)
}

package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/nordrail/storefront-api/api/swagger"
	"github.com/nordrail/storefront-api/internal/federated"
	"github.com/nordrail/storefront-api/internal/handler"
	"github.com/nordrail/storefront-api/internal/middleware"
	"github.com/nordrail/storefront-api/internal/repository"
	"github.com/nordrail/storefront-api/internal/service"
	"github.com/nordrail/storefront-api/pkg/cache"
	"github.com/nordrail/storefront-api/pkg/config"
	"github.com/nordrail/storefront-api/pkg/database"
	"github.com/nordrail/storefront-api/pkg/logger"
	corsmiddleware "github.com/nordrail/storefront-api/pkg/middleware/cors"
	reqidmiddleware "github.com/nordrail/storefront-api/pkg/middleware/requestid"
)

// @title Nordrail Storefront API
// @version 0.1.0
// @description Account, session and catalog API for the storefront
// @BasePath /api/v1
// @schemes http

func main() {
	// A missing signing secret fails here, before any traffic is accepted.
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	var redisClient *redis.Client
	if cfg.RateLimit.Enabled {
		redisClient, err = cache.NewRedis(cfg.Redis)
		if err != nil {
			// The limiter fails open; auth stays available without Redis.
			logr.Warn("redis unavailable, auth rate limiting disabled", zap.Error(err))
			redisClient = nil
		} else {
			defer redisClient.Close()
		}
	}

	var verifier federated.Verifier
	if cfg.Federated.Enabled {
		client, err := federated.NewTokenInfoClient(cfg.Federated.TokenInfoURL, cfg.Federated.RequestTimeout)
		if err != nil {
			logr.Sugar().Fatalw("failed to configure federated verifier", "error", err)
		}
		verifier = client
	}

	validate := validator.New()

	accountRepo := repository.NewAccountRepository(db)
	refreshRepo := repository.NewRefreshTokenRepository(db)
	itemRepo := repository.NewItemRepository(db)

	signer := service.NewTokenSigner(cfg.JWT.Secret, cfg.JWT.Expiration)
	ledger := service.NewRefreshLedger(refreshRepo, cfg.Refresh.Expiration, logr)
	linker := service.NewIdentityLinker(accountRepo, logr)
	authSvc := service.NewAuthService(accountRepo, signer, ledger, linker, verifier, validate, logr)
	catalogSvc := service.NewCatalogService(itemRepo, validate, logr)
	metricsSvc := service.NewMetricsService()

	authHandler := handler.NewAuthHandler(authSvc, metricsSvc, cfg.Cookie, cfg.APIPrefix)
	catalogHandler := handler.NewCatalogHandler(catalogSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Health)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	if cfg.RateLimit.Enabled {
		auth.Use(middleware.RateLimit(redisClient, cfg.RateLimit.Window, cfg.RateLimit.Limit, logr))
	}
	auth.POST("/register", authHandler.Register)
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)
	auth.POST("/logout", authHandler.Logout)
	auth.POST("/federated", authHandler.Federated)
	auth.GET("/me", middleware.Session(signer), authHandler.Me)

	items := api.Group("/items")
	items.GET("", catalogHandler.List)
	items.POST("", middleware.Session(signer), catalogHandler.Create)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil && err != http.ErrServerClosed {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}

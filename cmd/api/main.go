package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/GTDGit/catalog_api/internal/cache"
	"github.com/GTDGit/catalog_api/internal/config"
	"github.com/GTDGit/catalog_api/internal/handler"
	"github.com/GTDGit/catalog_api/internal/middleware"
	"github.com/GTDGit/catalog_api/internal/repository"
	"github.com/GTDGit/catalog_api/internal/service"
	"github.com/GTDGit/catalog_api/internal/sse"
	"github.com/GTDGit/catalog_api/internal/utils"
	"github.com/GTDGit/catalog_api/internal/worker"
)

// main is the application entrypoint for the catalog API.
func main() {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// 2. Setup logger
	setupLogger(cfg.Env)
	log.Info().Str("env", cfg.Env).Str("store", cfg.Store.Driver).Msg("starting catalog api")

	// 3. Open the catalog store (runs migrations for postgres)
	backend, err := repository.Open(cfg)
	if err != nil {
		log.Error().Err(err).Msg("store initialization failed")
		fmt.Fprintf(os.Stderr, "store initialization failed: %v\n", err)
		os.Exit(1)
	}
	defer backend.Close()

	// 3a. Guard state store: Redis, or process memory when disabled
	var guardStore service.GuardStore
	var redisPinger handler.Pinger
	if cfg.Redis.Enabled {
		redisClient, err := cache.NewRedisClient(&cfg.Redis)
		if err != nil {
			log.Error().Err(err).Msg("redis connection failed")
			fmt.Fprintf(os.Stderr, "redis connection failed: %v\n", err)
			os.Exit(1)
		}
		defer redisClient.Close()
		log.Info().Msg("redis connected successfully")
		guardStore = cache.NewGuardCache(redisClient)
		redisPinger = redisClient
	} else {
		log.Warn().Msg("redis disabled - admin sessions are kept in memory")
		guardStore = cache.NewMemoryGuardCache()
	}

	// 4. SSE hub for admin catalog events
	hub := sse.NewHub()

	// 5. Initialize services
	catalogSvc := service.NewCatalogService(backend.Gateway, sse.NewHubNotifier(hub))

	jwtManager := utils.NewJWTManager(cfg.JWTSecret, nil)
	if cfg.Admin.Password == "" {
		log.Warn().Msg("ADMIN_PASSWORD is empty - login works only with a stored password hash")
	}
	adminAuthSvc := service.NewAdminAuthService(guardStore, backend.AdminConfig, jwtManager, service.GuardPolicy{
		SessionTTL:       cfg.Admin.SessionTTL,
		LockoutWindow:    cfg.Admin.LockoutWindow,
		MaxAttempts:      cfg.Admin.MaxAttempts,
		FallbackPassword: cfg.Admin.Password,
	}, nil)

	var archiver service.SnapshotArchiver
	if cfg.Snapshot.Bucket != "" {
		s3Svc, err := service.NewS3Service(context.Background(), &cfg.S3, cfg.Snapshot.Bucket, cfg.Snapshot.Prefix)
		if err != nil {
			log.Warn().Err(err).Msg("S3 service initialization failed - snapshot archive will be disabled")
		} else {
			archiver = s3Svc
		}
	}
	snapshotSvc := service.NewSnapshotService(catalogSvc, archiver, cfg.Snapshot.LegacyDataPath)

	// 5a. Initial catalog load; a failure leaves the catalog empty but serving
	loadCtx, loadCancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := catalogSvc.LoadAll(loadCtx); err != nil {
		log.Error().Err(err).Msg("initial catalog load failed")
	}
	loadCancel()
	if snapshotSvc.HasLegacyData() {
		log.Warn().Str("path", cfg.Snapshot.LegacyDataPath).Msg("legacy catalog data found - run migrate-legacy to copy it")
	}

	// 6. Initialize handlers
	handlers := &Handlers{
		Health:            handler.NewHealthHandler(backend.Gateway, catalogSvc, redisPinger),
		Catalog:           handler.NewCatalogHandler(catalogSvc, cfg.Contact.Phone),
		ProductManagement: handler.NewProductManagementHandler(catalogSvc),
		Auth:              handler.NewAuthHandler(adminAuthSvc),
		Data:              handler.NewDataHandler(catalogSvc, snapshotSvc),
		SSE:               handler.NewSSEHandler(hub),
	}

	// 7. Initialize middleware
	jwtMw := middleware.NewJWTMiddleware(adminAuthSvc)

	// 8. Setup router
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))
	router.Use(middleware.LoggingMiddleware())
	setupRoutes(router, handlers, jwtMw)

	// 9. Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 10. Start workers
	go worker.NewCatalogRefreshWorker(catalogSvc, cfg.Worker.CatalogRefreshInterval).Start(ctx)

	// 11. Start HTTP server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	// 12. Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// 13. Cancel context to stop workers
	cancel()

	// 14. Shutdown HTTP server with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited")
}

// Handlers groups all HTTP handlers used by the server.
type Handlers struct {
	Health            *handler.HealthHandler
	Catalog           *handler.CatalogHandler
	ProductManagement *handler.ProductManagementHandler
	Auth              *handler.AuthHandler
	Data              *handler.DataHandler
	SSE               *handler.SSEHandler
}

// setupRoutes registers all routes.
func setupRoutes(router *gin.Engine, handlers *Handlers, jwtMiddleware *middleware.JWTMiddleware) {
	router.GET("/v1/health", handlers.Health.GetHealth)

	// Public storefront
	catalog := router.Group("/v1/catalog")
	{
		catalog.GET("/categories", handlers.Catalog.ListCategories)
		catalog.GET("/categories/:slug", handlers.Catalog.GetCategory)
		catalog.GET("/products", handlers.Catalog.ListProducts)
		catalog.GET("/products/:code", handlers.Catalog.GetProduct)
	}

	// Admin routes
	admin := router.Group("/v1/admin")
	admin.POST("/auth/login", handlers.Auth.Login)
	admin.GET("/auth/status", handlers.Auth.Status)
	admin.GET("/auth/lockout/stream", handlers.Auth.LockoutStream)
	admin.Use(jwtMiddleware.Handle())
	{
		admin.POST("/auth/logout", handlers.Auth.Logout)

		// Product Management
		admin.GET("/products", handlers.ProductManagement.ListProducts)
		admin.POST("/products", handlers.ProductManagement.CreateProduct)
		admin.GET("/products/:code", handlers.ProductManagement.GetProduct)
		admin.PUT("/products/:code", handlers.ProductManagement.UpdateProduct)
		admin.DELETE("/products/:code", handlers.ProductManagement.DeleteProduct)

		// Category Management
		admin.GET("/categories", handlers.ProductManagement.ListCategories)
		admin.POST("/categories", handlers.ProductManagement.CreateCategory)
		admin.GET("/categories/:slug", handlers.ProductManagement.GetCategory)
		admin.PUT("/categories/:slug", handlers.ProductManagement.UpdateCategory)
		admin.POST("/categories/:slug/toggle", handlers.ProductManagement.ToggleCategory)
		admin.DELETE("/categories/:slug", handlers.ProductManagement.DeleteCategory)

		// Data management
		admin.GET("/catalog/state", handlers.Data.State)
		admin.POST("/catalog/reload", handlers.Data.Reload)
		admin.GET("/catalog/export", handlers.Data.Export)
		admin.POST("/catalog/import", handlers.Data.Import)
		admin.GET("/catalog/legacy", handlers.Data.LegacyStatus)
		admin.POST("/catalog/migrate-legacy", handlers.Data.MigrateLegacy)
		admin.DELETE("/catalog", handlers.Data.ClearAll)

		// Real-time events
		admin.GET("/events", handlers.SSE.Stream)
	}
}

func setupLogger(env string) {
	if env == "production" {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
}

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ecom-studio/internal/config"
	"ecom-studio/internal/database"
	"ecom-studio/internal/generation"
	"ecom-studio/internal/handler"
	"ecom-studio/internal/logger"
	"ecom-studio/internal/middleware"
	"ecom-studio/internal/models"
	"ecom-studio/internal/repository"
	"ecom-studio/internal/service"
	"ecom-studio/internal/sources"
	"ecom-studio/internal/storage"
	"ecom-studio/pkg/tasks"

	rateli "github.com/JGLTechnologies/gin-rate-limit"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	redis "github.com/redis/go-redis/v9"
	ginprometheus "github.com/zsais/go-gin-prometheus"
	"go.uber.org/zap"
)

func main() {
	// --- Configuration ---
	cfg, err := config.LoadConfig(".env")
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// --- Logger Setup ---
	log, err := logger.New(logger.Config{
		Level:    cfg.LogLevel,
		Encoding: "json",
	})
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	zap.ReplaceGlobals(log)
	zap.L().Info("Logger initialized", zap.String("logLevel", cfg.LogLevel))

	// --- External Connections ---
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbCfg := database.Config{
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		User:     cfg.DBUser,
		Password: cfg.DBPassword,
		DBName:   cfg.DBName,
		SSLMode:  cfg.DBSSLMode,
	}
	pgPool, err := setupPostgres(ctx, dbCfg)
	if err != nil {
		zap.L().Fatal("Failed to connect to PostgreSQL", zap.Error(err))
	}
	defer pgPool.Close()
	zap.L().Info("Connected to PostgreSQL")

	if err := database.RunMigrations(dbCfg.DSN()); err != nil {
		zap.L().Fatal("Failed to run database migrations", zap.Error(err))
	}
	zap.L().Info("Database migrations applied")

	redisClient, err := setupRedis(cfg)
	if err != nil {
		zap.L().Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()
	zap.L().Info("Connected to Redis")

	// --- Storage & Background Tasks ---
	objectStore, err := storage.NewLocalStorage(cfg.UploadDir, cfg.PublicBaseURL, log)
	if err != nil {
		zap.L().Fatal("Failed to initialize object storage", zap.Error(err))
	}

	taskMgr := tasks.NewManager(100)

	// --- Dependency Injection ---
	userRepo := repository.NewPgUserRepository(pgPool, log)
	profileRepo := repository.NewPgProfileRepository(pgPool, log)
	txRepo := repository.NewPgTransactionRepository(pgPool, log)
	settingsRepo := repository.NewPgAdminSettingsRepository(pgPool, log)
	fileRepo := repository.NewPgUserFileRepository(pgPool, log)
	notificationRepo := repository.NewPgNotificationRepository(pgPool, log)
	billingRepo := repository.NewPgBillingAddressRepository(pgPool, log)
	tokenRepo := repository.NewRedisTokenRepository(redisClient, log)

	authSvc := service.NewAuthService(userRepo, profileRepo, tokenRepo, cfg, log)
	creditSvc := service.NewCreditService(profileRepo, txRepo, settingsRepo, log)
	gallerySvc := service.NewGalleryService(fileRepo, log)
	notificationSvc := service.NewNotificationService(notificationRepo, log)

	fetcher := sources.NewProductURLFetcher(cfg.FetchImagesURL, cfg.GenerateTimeout, log)
	uploadSrc := sources.NewUploadSource(objectStore, gallerySvc, log)
	librarySrc := sources.NewLibrarySource(fileRepo, log)

	backendClient := generation.NewBackendClient(cfg.GenerateVideoURL, cfg.GenerateTimeout, log)
	poller := generation.NewPoller(backendClient, cfg.PollInterval, cfg.PollMaxAttempts, cfg.PollMaxTransportErrors, log)
	batchRegistry := generation.NewRegistry()
	generationSvc := generation.NewService(
		batchRegistry,
		fetcher,
		backendClient,
		poller,
		taskMgr,
		creditSvc,
		gallerySvc,
		notificationSvc,
		log,
	)

	// --- Rate Limiter Middleware ---
	rateLimitStore := rateli.RedisStore(&rateli.RedisOptions{
		RedisClient: redisClient,
		Rate:        time.Minute,
		Limit:       30,
	})
	rateLimitMiddleware := rateli.RateLimiter(rateLimitStore, &rateli.Options{
		ErrorHandler: func(c *gin.Context, info rateli.Info) {
			zap.L().Warn("Rate limit exceeded",
				zap.String("clientIP", c.ClientIP()),
				zap.Time("resetTime", info.ResetTime),
				zap.String("path", c.Request.URL.Path),
			)
			c.String(http.StatusTooManyRequests, "Too many requests. Try again in "+time.Until(info.ResetTime).String())
		},
		KeyFunc: func(c *gin.Context) string {
			return c.ClientIP()
		},
	})

	// --- Handlers ---
	authHandler := handler.NewAuthHandler(authSvc, userRepo, creditSvc, log)
	batchHandler := handler.NewBatchHandler(generationSvc, uploadSrc, librarySrc, log)
	galleryHandler := handler.NewGalleryHandler(gallerySvc, uploadSrc, log)
	creditHandler := handler.NewCreditHandler(creditSvc, log)
	notificationHandler := handler.NewNotificationHandler(notificationSvc, log)
	settingsHandler := handler.NewSettingsHandler(billingRepo, log)
	adminHandler := handler.NewAdminHandler(userRepo, creditSvc, notificationSvc, log)

	// --- HTTP Server Setup (Gin) ---
	gin.SetMode(gin.ReleaseMode)
	if cfg.Env == "development" {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()
	router.RedirectTrailingSlash = true
	router.Use(middleware.ZapLogger(log))
	router.Use(gin.Recovery())

	p := ginprometheus.NewPrometheus("gin")

	corsConfig := cors.DefaultConfig()
	allowedOrigins := cfg.GetAllowedOrigins()
	if len(allowedOrigins) > 0 {
		corsConfig.AllowOrigins = allowedOrigins
	} else {
		corsConfig.AllowOrigins = []string{"http://localhost:3000"}
		zap.L().Info("CORSAllowedOrigins not set, allowing default", zap.String("origin", "http://localhost:3000"))
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization"}
	corsConfig.AllowCredentials = true
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	healthHandler := func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
	router.GET("/health", healthHandler)
	router.HEAD("/health", healthHandler)

	// Загруженные файлы раздаются напрямую
	router.Static("/static", cfg.UploadDir)

	// --- Route Groups ---
	api := router.Group("/api")
	public := api.Group("")
	public.Use(rateLimitMiddleware)

	private := api.Group("")
	private.Use(middleware.Auth(authSvc.VerifyAccessToken, log))

	admin := api.Group("/admin")
	admin.Use(middleware.Auth(authSvc.VerifyAccessToken, log, models.RoleAdmin))

	authHandler.RegisterRoutes(public, private)
	batchHandler.RegisterRoutes(private)
	galleryHandler.RegisterRoutes(private)
	creditHandler.RegisterRoutes(private)
	notificationHandler.RegisterRoutes(private)
	settingsHandler.RegisterRoutes(private)
	adminHandler.RegisterRoutes(admin)

	p.Use(router)

	// Периодическая уборка завершенных задач и старых batch-сессий
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for range ticker.C {
			taskMgr.Cleanup(24 * time.Hour)
			batchRegistry.Prune(24 * time.Hour)
		}
	}()

	// --- Start HTTP Server ---
	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	zap.L().Info("Starting HTTP server", zap.String("port", cfg.ServerPort))

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zap.L().Fatal("HTTP Server listen error", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zap.L().Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := taskMgr.Shutdown(shutdownCtx); err != nil {
		zap.L().Error("Background tasks did not stop in time", zap.Error(err))
	}

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zap.L().Error("HTTP Server forced to shutdown", zap.Error(err))
	}

	zap.L().Info("Server exiting")
}

// setupPostgres initializes the PostgreSQL connection pool with retry logic.
func setupPostgres(ctx context.Context, cfg database.Config) (*pgxpool.Pool, error) {
	var pool *pgxpool.Pool
	var lastErr error
	maxRetries := 50
	retryDelay := 3 * time.Second

	zap.L().Info("Attempting to connect to PostgreSQL", zap.Int("max_retries", maxRetries), zap.Duration("retry_delay", retryDelay))

	for i := 0; i < maxRetries; i++ {
		attempt := i + 1
		pool, lastErr = database.NewPool(ctx, cfg)
		if lastErr == nil {
			zap.L().Info("Successfully connected to PostgreSQL", zap.Int("attempt", attempt))
			return pool, nil
		}
		zap.L().Warn("Postgres connection failed, retrying...",
			zap.Int("attempt", attempt),
			zap.Int("max_retries", maxRetries),
			zap.Error(lastErr),
		)
		if i < maxRetries-1 {
			time.Sleep(retryDelay)
		}
	}
	return nil, fmt.Errorf("failed to connect to postgres after %d attempts: %w", maxRetries, lastErr)
}

// setupRedis initializes the Redis client with retry logic.
func setupRedis(cfg *config.Config) (*redis.Client, error) {
	redisOpts := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}

	var client *redis.Client
	var lastErr error
	maxRetries := 50
	retryDelay := 3 * time.Second

	zap.L().Info("Attempting to connect and ping Redis", zap.Int("max_retries", maxRetries), zap.Duration("retry_delay", retryDelay))

	for i := 0; i < maxRetries; i++ {
		attempt := i + 1
		client = redis.NewClient(redisOpts)

		pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
		_, err := client.Ping(pingCtx).Result()
		pingCancel()

		if err == nil {
			zap.L().Info("Successfully connected and pinged Redis", zap.Int("attempt", attempt))
			return client, nil
		}

		client.Close()
		lastErr = fmt.Errorf("unable to ping redis (attempt %d/%d): %w", attempt, maxRetries, err)
		zap.L().Warn("Redis ping failed, retrying...",
			zap.Int("attempt", attempt),
			zap.Int("max_retries", maxRetries),
			zap.Error(err),
		)
		if i < maxRetries-1 {
			time.Sleep(retryDelay)
		}
	}
	return nil, fmt.Errorf("failed to connect to redis after %d attempts: %w", maxRetries, lastErr)
}

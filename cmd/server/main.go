package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/fenwick-labs/gatehouse/internal/api"
	"github.com/fenwick-labs/gatehouse/internal/auth"
	"github.com/fenwick-labs/gatehouse/internal/db"
	"github.com/fenwick-labs/gatehouse/internal/mail"
	"github.com/fenwick-labs/gatehouse/internal/utils"
)

func main() {
	_ = godotenv.Load()

	cfg, err := utils.LoadConfig()
	if err != nil {
		panic(err)
	}

	logger := utils.MustNewLogger(cfg.Logging)
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()

	mongoStore, err := db.NewMongo(ctx, cfg.Mongo)
	if err != nil {
		logger.Fatal("mongo: failed to connect", zap.Error(err))
	}
	defer func() {
		if err := mongoStore.Close(context.Background()); err != nil {
			logger.Warn("mongo: close error", zap.Error(err))
		}
	}()

	if err := mongoStore.EnsureCollections(ctx); err != nil {
		logger.Fatal("mongo: ensure collections", zap.Error(err))
	}

	// The activity log and the rate limiter are optional: the service runs
	// without postgres or redis configured.
	var activity *db.Postgres
	if cfg.Postgres.Enabled {
		activity, err = db.NewPostgres(ctx, cfg.Postgres)
		if err != nil {
			logger.Fatal("postgres: failed to connect", zap.Error(err))
		}
		defer activity.Close()

		if err := activity.Ping(ctx); err != nil {
			logger.Fatal("postgres: ping failed", zap.Error(err))
		}
		if err := activity.EnsureSchema(ctx); err != nil {
			logger.Fatal("postgres: ensure schema", zap.Error(err))
		}
	} else {
		logger.Info("activity log disabled; no postgres configured")
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient, err = db.NewRedisClient(ctx, cfg.Redis.Addr)
		if err != nil {
			logger.Fatal("redis: failed to connect", zap.Error(err))
		}
		defer func() { _ = redisClient.Close() }()
	} else {
		logger.Info("login rate limiter disabled; no redis configured")
	}

	authService, err := auth.NewService(cfg.JWT.Secret, cfg.JWT.TTL)
	if err != nil {
		logger.Fatal("failed to initialise auth service", zap.Error(err))
	}

	mailer := mail.NewSMTPMailer(cfg.SMTP, logger)

	handler := api.NewHandler(authService, db.NewMongoUsers(mongoStore), mailer, activity, api.Options{
		CookieDays:    cfg.JWT.CookieDays,
		SecureCookies: cfg.IsProduction(),
		FrontendURL:   cfg.SMTP.FrontendURL,
		Logger:        logger,
		RateLimiter:   api.RateLimit(redisClient, 10, time.Minute),
	})

	router := setupRouter(handler, logger, cfg.IsProduction())

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server crashed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown failed", zap.Error(err))
	}

	logger.Info("server stopped cleanly")
}

func setupRouter(handler *api.Handler, logger *zap.Logger, production bool) *gin.Engine {
	if production {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(api.RequestLogger(logger), gin.Recovery())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	})

	handler.RegisterRoutes(router)

	return router
}

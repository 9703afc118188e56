package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"elearn-api/internal/cache"
	"elearn-api/internal/config"
	"elearn-api/internal/db"
	"elearn-api/internal/email"
	apihttp "elearn-api/internal/http"
	"elearn-api/internal/media"
	"elearn-api/internal/repository"
	"elearn-api/internal/service"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer pool.Close()

	if err := db.Ping(ctx, pool); err != nil {
		logger.Fatal("db ping", zap.Error(err))
	}

	userRepo := repository.NewPgUserRepository(pool)
	courseRepo := repository.NewPgCourseRepository(pool)

	emailSender := email.NewDisabledSender("email sender not configured")
	if cfg.SMTPHost != "" {
		sender, err := email.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPFrom, cfg.SMTPFromName, cfg.SMTPUseTLS)
		if err != nil {
			logger.Warn("smtp sender init failed", zap.Error(err))
		} else {
			emailSender = sender
		}
	}

	mediaStore := media.NewDisabledStore("media store not configured")
	if cfg.S3Bucket != "" {
		s3Store, err := media.NewS3Store(ctx, media.S3Config{
			Region:        cfg.S3Region,
			Bucket:        cfg.S3Bucket,
			AccessKey:     cfg.S3AccessKey,
			SecretKey:     cfg.S3SecretKey,
			BaseEndpoint:  cfg.S3BaseEndpoint,
			PublicBaseURL: cfg.S3PublicBaseURL,
		})
		if err != nil {
			logger.Warn("s3 store init failed", zap.Error(err))
		} else {
			mediaStore = s3Store
		}
	}

	var (
		sessions    cache.SessionStore
		limiter     service.RateLimiter
		redisClient *redis.Client
	)
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := redisClient.Ping(ctxPing).Err(); err != nil {
			logger.Warn("redis ping failed", zap.Error(err))
		} else {
			sessions = cache.NewRedisSessionStore(redisClient)
			limiter = service.NewRedisRateLimiter(redisClient, 10*time.Minute, 5)
		}
		cancel()
		defer redisClient.Close()
	}
	if sessions == nil {
		logger.Warn("redis unavailable, sessions are in-process only")
		sessions = cache.NewMemorySessionStore()
		limiter = service.NewRateLimiter(10*time.Minute, 5)
	}

	tokens := service.NewTokenService(
		cfg.ActivationSecret,
		cfg.AccessTokenSecret,
		cfg.RefreshTokenSecret,
		time.Duration(cfg.ActivationTTLMinutes)*time.Minute,
		time.Duration(cfg.AccessTTLMinutes)*time.Minute,
		time.Duration(cfg.RefreshTTLDays)*24*time.Hour,
	)

	authSvc := service.NewAuthService(logger, service.AuthDeps{
		Users:           userRepo,
		Sessions:        sessions,
		Tokens:          tokens,
		Email:           emailSender,
		Media:           mediaStore,
		Limiter:         limiter,
		SessionTTL:      time.Duration(cfg.SessionTTLDays) * 24 * time.Hour,
		LegacyEmailRule: cfg.LegacyProfileEmailCheck,
	})

	cookies := apihttp.CookieConfig{
		Domain:     cfg.CookieDomain,
		Secure:     cfg.CookieSecure,
		AccessTTL:  tokens.AccessTTL(),
		RefreshTTL: tokens.RefreshTTL(),
	}

	authHandler := apihttp.NewAuthHandler(logger, authSvc, cookies)
	userHandler := apihttp.NewUserHandler(logger, authSvc)
	adminHandler := apihttp.NewAdminHandler(logger, authSvc)
	courseHandler := apihttp.NewCourseHandler(logger, courseRepo)
	router := apihttp.NewRouter(logger, authSvc, cookies, authHandler, userHandler, adminHandler, courseHandler)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("server shutdown", zap.Error(err))
		}
	}()

	logger.Info("starting server", zap.String("port", cfg.HTTPPort))

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server error", zap.Error(err))
	}
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/genius-academy-api/api/swagger"
	"github.com/noah-isme/genius-academy-api/internal/handler"
	"github.com/noah-isme/genius-academy-api/internal/middleware"
	"github.com/noah-isme/genius-academy-api/internal/repository"
	"github.com/noah-isme/genius-academy-api/internal/service"
	"github.com/noah-isme/genius-academy-api/pkg/cache"
	"github.com/noah-isme/genius-academy-api/pkg/config"
	"github.com/noah-isme/genius-academy-api/pkg/database"
	"github.com/noah-isme/genius-academy-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/genius-academy-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/genius-academy-api/pkg/middleware/requestid"
	"github.com/noah-isme/genius-academy-api/pkg/notify"
	"github.com/noah-isme/genius-academy-api/pkg/storage"
	"github.com/noah-isme/genius-academy-api/pkg/validation"
)

// @title Genius Academy Accounts API
// @version 1.0.0
// @description Accounts, role profiles and generated credentials for The Genius Academy
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("database unavailable", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("redis unavailable", "error", err)
	}
	defer redisClient.Close()

	files, err := storage.NewLocalStorage(cfg.Media.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("media storage unavailable", "dir", cfg.Media.StorageDir, "error", err)
	}
	pictures := storage.NewPictureStore(files, cfg.Media.MaxBytes, cfg.Media.ThumbnailSize)
	signer := storage.NewURLSigner(cfg.Media.URLSecret, cfg.Media.URLTTL)

	validate := validation.New()
	metrics := service.NewMetricsService()

	accountsRepo := repository.NewAccountRepository(db)
	studentsRepo := repository.NewStudentRepository(db)
	parentsRepo := repository.NewParentRepository(db)
	teachersRepo := repository.NewTeacherRepository(db)
	adminsRepo := repository.NewAdminRoleRepository(db)
	outboxRepo := repository.NewNotificationRepository(db)
	tx := repository.NewTransactor(db)

	activity := service.NewActivityService(repository.NewActivityRepository(db), logr)
	notifier := service.NewNotificationService(
		outboxRepo,
		cache.NewLocker(redisClient),
		mailer(cfg.Notifications, logr),
		smsSender(cfg.Notifications, logr),
		metrics,
		logr,
		service.NotificationConfig{
			Workers:       cfg.Notifications.Workers,
			BufferSize:    cfg.Notifications.BufferSize,
			MaxAttempts:   cfg.Notifications.MaxAttempts,
			BaseBackoff:   cfg.Notifications.BaseBackoff,
			MaxBackoff:    cfg.Notifications.MaxBackoff,
			RelayInterval: cfg.Notifications.RelayInterval,
			RelayBatch:    cfg.Notifications.RelayBatch,
			RelayLease:    cfg.Notifications.RelayLease,
		},
	)
	notifier.Start(ctx)

	credentials := service.NewCredentialService(tx, accountsRepo, teachersRepo, adminsRepo, outboxRepo, notifier, service.CredentialConfig{
		AppName:        cfg.AppName,
		LoginURL:       cfg.Credentials.LoginURL,
		PasswordLength: cfg.Credentials.PasswordLength,
		SMSEnabled:     cfg.Notifications.SMSEnabled,
	}, logr)
	identifiers := service.NewIdentifierGenerator(accountsRepo, service.IdentifierConfig{
		LecturerPrefix: cfg.Credentials.LecturerPrefix,
		AdminPrefix:    cfg.Credentials.AdminPrefix,
		MaxAttempts:    cfg.Credentials.MaxAttempts,
	}, metrics, logr)
	statsCache := service.NewCacheService(repository.NewCacheRepository(redisClient), metrics, cfg.Stats.CacheTTL, logr)

	accounts := service.NewAccountService(tx, service.AccountRepositories{
		Accounts: accountsRepo,
		Students: studentsRepo,
		Parents:  parentsRepo,
		Teachers: teachersRepo,
		Admins:   adminsRepo,
	}, identifiers, credentials, pictures, signer, statsCache, metrics, validate, logr, service.AccountServiceConfig{
		MediaBaseURL: cfg.APIPrefix + "/media",
		StatsTTL:     cfg.Stats.CacheTTL,
	})
	auth := service.NewAuthService(accountsRepo, adminsRepo, repository.NewRefreshTokenRepository(db), activity, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
		SingleSession:      cfg.JWT.SingleSession,
	})
	teacherInfos := service.NewTeacherInfoService(repository.NewTeacherInfoRepository(db), teachersRepo, validate, logr)
	exports := service.NewExportService(service.RosterSources{
		Accounts: accountsRepo,
		Students: studentsRepo,
		Parents:  parentsRepo,
		Teachers: teachersRepo,
		Admins:   adminsRepo,
	}, nil, logr)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	handler.RegisterRoutes(r, r.Group(cfg.APIPrefix), handler.Handlers{
		Auth:         handler.NewAuthHandler(auth),
		Accounts:     handler.NewAccountHandler(accounts, credentials),
		Exports:      handler.NewExportHandler(exports),
		TeacherInfos: handler.NewTeacherInfoHandler(teacherInfos),
		Activity:     handler.NewActivityHandler(activity),
		Media:        handler.NewMediaHandler(signer, files, logr),
		Metrics: handler.NewMetricsHandler(metrics, map[string]handler.ReadinessCheck{
			"database": db.PingContext,
			"redis":    cache.Ping(redisClient),
		}),
	}, auth, activity)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("http shutdown incomplete", zap.Error(err))
	}
	notifier.Stop()
}

func mailer(cfg config.NotificationsConfig, logr *zap.Logger) notify.Mailer {
	if cfg.SendGridKey == "" {
		logr.Warn("SENDGRID_API_KEY not set, emails are logged instead of sent")
		return notify.NewLogMailer(logr)
	}
	return notify.NewSendGridMailer(cfg.SendGridKey, cfg.FromName, cfg.FromEmail)
}

func smsSender(cfg config.NotificationsConfig, logr *zap.Logger) notify.SMSSender {
	if !cfg.SMSEnabled || cfg.TwilioSID == "" {
		return notify.NewLogSMSSender(logr)
	}
	return notify.NewTwilioSender(cfg.TwilioSID, cfg.TwilioToken, cfg.TwilioFrom)
}

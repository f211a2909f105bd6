package main // Entry point package

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/iliyamo/member-directory/internal/config"
	"github.com/iliyamo/member-directory/internal/database"
	"github.com/iliyamo/member-directory/internal/handler"
	"github.com/iliyamo/member-directory/internal/logger"
	"github.com/iliyamo/member-directory/internal/metrics"
	"github.com/iliyamo/member-directory/internal/middleware"
	"github.com/iliyamo/member-directory/internal/queue"
	"github.com/iliyamo/member-directory/internal/repository"
	"github.com/iliyamo/member-directory/internal/router"
	"github.com/iliyamo/member-directory/internal/service/admission"
	"github.com/iliyamo/member-directory/internal/service/allocator"
	"github.com/iliyamo/member-directory/internal/service/credential"
	"github.com/iliyamo/member-directory/internal/service/mailer"
	"github.com/iliyamo/member-directory/internal/service/media"
)

func main() {
	_ = godotenv.Load() // a missing .env is fine
	cfg := config.Load()

	zl, err := logger.New(logger.ConfigFromEnv())
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(ctx, database.Options{
		User: cfg.DBUser, Pass: cfg.DBPass,
		Host: cfg.DBHost, Port: cfg.DBPort, Name: cfg.DBName,
		MaxOpenConns:    cfg.DBMaxConns,
		ConnMaxLifetime: cfg.DBConnTTL,
	})
	if err != nil {
		zl.Fatal("database", zap.Error(err))
	}
	defer db.Close()
	if cfg.AutoMigrate {
		if err := database.Migrate(ctx, db); err != nil {
			zl.Fatal("migrate", zap.Error(err))
		}
	}

	m := metrics.New()
	profiles := repository.NewProfileRepo(db)
	inbox := repository.NewNotificationRepo(db)

	rdb := config.NewRedisClient(cfg.Redis) // nil disables the photo cache
	if rdb == nil {
		zl.Warn("redis unavailable, photo cache disabled")
	} else {
		defer rdb.Close()
	}
	var cache media.Cache
	if rdb != nil && cfg.MediaCache.Enabled {
		cache = repository.NewPhotoCache(rdb, cfg.MediaCache.Prefix, cfg.MediaCache.TTL, cfg.MediaCache.MaxBodyBytes)
	}

	objects, err := media.NewObjectStore(ctx, cfg.ObjectStore)
	if err != nil {
		zl.Fatal("object store", zap.String("driver", cfg.ObjectStore.Driver), zap.Error(err))
	}
	photos := media.NewService(profiles, objects, cache, m, media.Config{
		Bucket:       cfg.ObjectStore.Bucket,
		HostPatterns: cfg.ObjectStore.HostPattern,
		PublicURL:    cfg.ObjectStore.PublicURL,
		ReadTimeout:  cfg.ObjectStore.ReadTimeout,
		LegacyPrefix: config.LegacyPhotoPrefix(),
	}, zl.Named("media"))

	smtpMailer := mailer.NewSMTPMailer(cfg.Mail, m, zl.Named("mail"))
	mail := mailer.NewSender(cfg.Mail, smtpMailer, queue.NewPublisher(cfg.Mail.AMQPURL, cfg.Mail.Queue, zl), m, zl.Named("mail"))
	if mailer.Queueable(cfg.Mail) {
		consumer := queue.NewConsumer(cfg.Mail.AMQPURL, cfg.Mail.Queue, smtpMailer.HandleQueued, zl.Named("mail-consumer"))
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				zl.Error("mail consumer stopped", zap.Error(err))
			}
		}()
	}

	gate := credential.New(profiles, cfg.BcryptCost, zl.Named("credential"))
	flow := admission.New(profiles, inbox, allocator.New(profiles, m, zl.Named("allocator")), gate, photos, mail, m,
		admission.Config{BaseURL: cfg.PublicBaseURL, ExposeLink: cfg.ExposeVerifyLink}, zl.Named("admission"))

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger(zl.Named("http")))

	auth := router.Auth{Secret: cfg.JWTSecret, Roles: profiles, Log: zl}
	photoHandler := handler.NewPhotoHandler(photos, cfg.MaxUploadBytes, zl)
	router.RegisterRoutes(e, db, m.Handler())
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, gate, flow, zl))
	router.RegisterPhotos(e, photoHandler, auth)
	router.RegisterProfiles(e, handler.NewProfileHandler(flow, zl), auth)
	router.RegisterAdmin(e, handler.NewAdminHandler(flow, zl), photoHandler, auth)

	addr := ":" + cfg.Port
	go func() {
		zl.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Fatal("server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zl.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		zl.Error("shutdown", zap.Error(err))
	}
}

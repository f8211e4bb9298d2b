package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"automax/internal/config"
	"automax/internal/database"
	"automax/internal/domain/upload"
	"automax/internal/mailer"
	"automax/internal/middleware"
	jwtsvc "automax/internal/pkg/jwt"
	"automax/internal/pkg/logger"
	"automax/internal/static"
	"automax/internal/storage"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("config")
	}
	log := logger.Setup(cfg.LogLevel, cfg.Debug)

	db, err := database.Connect(cfg.DatabaseDSN(), cfg.Debug)
	if err != nil {
		log.WithError(err).Fatal("db connect failed")
	}
	defer database.Close(db)

	if err := database.MigrateModels(db, &upload.Upload{}); err != nil {
		log.WithError(err).Fatal("migration failed")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := storage.New(ctx, cfg)
	if err != nil {
		log.WithError(err).Fatal("storage")
	}
	log.WithField("provider", store.Name()).Info("media storage ready")

	r := newRouter(cfg, log, db, store, mailer.New(cfg.Email, cfg.Debug))

	srv := &http.Server{
		Addr:              cfg.ServerAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.WithField("addr", cfg.ServerAddr).Info("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("graceful shutdown failed")
	}
}

func newRouter(cfg *config.Config, log *logrus.Logger, db *gorm.DB, store storage.Storage, m mailer.Mailer) *gin.Engine {
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(
		middleware.RequestLogger(log),
		middleware.ErrorLogger(log, middleware.ErrorReporting{
			Debug:  cfg.Debug,
			Mailer: m,
			Admins: cfg.Email.Admins,
		}),
		middleware.AllowedHosts(cfg.AllowedHosts, cfg.Debug),
		middleware.SecurityHeaders(),
	)

	r.GET("/healthz", func(c *gin.Context) {
		if err := database.Ping(c.Request.Context(), db); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	static.Register(r, cfg.Static, cfg.Debug)

	uploadService := upload.NewService(upload.NewRepository(db), store, cfg.Static.MaxUploadSz)
	uploadHandler := upload.NewHandler(uploadService)
	upload.RegisterMediaRoutes(r, cfg.Static.MediaURL, uploadHandler)

	j := jwtsvc.New(cfg.SecretKey, cfg.SessionTTL)

	v1 := r.Group("/api/v1")
	protected := v1.Group("/")
	protected.Use(middleware.SessionAuth(j))
	{
		upload.RegisterRoutes(protected, uploadHandler)
	}

	return r
}

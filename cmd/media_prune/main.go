package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"automax/internal/config"
	"automax/internal/database"
	"automax/internal/domain/upload"
	"automax/internal/pkg/logger"
	"automax/internal/storage"
)

// media_prune drops upload records whose file no longer exists in storage.
func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("config")
	}
	log := logger.Setup(cfg.LogLevel, cfg.Debug)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(cfg.DatabaseDSN(), cfg.Debug)
	if err != nil {
		log.WithError(err).Fatal("db connect failed")
	}
	defer database.Close(db)

	store, err := storage.New(ctx, cfg)
	if err != nil {
		log.WithError(err).Fatal("storage")
	}

	svc := upload.NewService(upload.NewRepository(db), store, cfg.Static.MaxUploadSz)
	removed, err := svc.Prune(ctx)
	if err != nil {
		log.WithError(err).WithField("removed", removed).Fatal("media prune failed")
	}
	log.WithFields(logrus.Fields{"removed": removed, "provider": store.Name()}).Info("media prune completed")
}

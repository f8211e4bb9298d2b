package main

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"automax/internal/config"
	"automax/internal/pkg/logger"
	"automax/internal/static"
)

// collectstatic copies STATICFILES_DIRS into STATIC_ROOT.
func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("config")
	}
	log := logger.Setup(cfg.LogLevel, cfg.Debug)

	if err := os.MkdirAll(cfg.Static.StaticRoot, 0o755); err != nil {
		log.WithError(err).Fatal("create static root")
	}

	osFs := afero.NewOsFs()
	n, err := static.Collect(osFs, cfg.Static.StaticDirs, afero.NewBasePathFs(osFs, cfg.Static.StaticRoot))
	if err != nil {
		log.WithError(err).Fatal("collectstatic failed")
	}
	log.WithFields(logrus.Fields{"files": n, "root": cfg.Static.StaticRoot}).Info("static files collected")
}

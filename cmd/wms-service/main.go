package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/wms/internal/app"
)

// setupLogger настраивает формат и уровень логирования для сервиса.
func setupLogger() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetLevel(log.InfoLevel)
	if v := os.Getenv("WMS_LOG_LEVEL"); v != "" {
		level, err := log.ParseLevel(v)
		if err != nil {
			log.WithField("value", v).Warn("неизвестный уровень логирования, остаёмся на info")
			return
		}
		log.SetLevel(level)
	}
}

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", os.Getenv("WMS_CONFIG"), "path to YAML config file (optional)")
	flag.Parse()

	setupLogger()

	cfg, err := app.LoadConfig(configPath)
	if err != nil {
		log.WithError(err).Fatal("ошибка конфигурации")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.WithFields(log.Fields{
		"http_addr":    cfg.HTTPAddr,
		"metrics_addr": cfg.MetricsAddr,
		"storage":      cfg.StorageBackend,
	}).Info("запускаем WMS service")

	if err := app.Run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Fatal("приложение завершилось с ошибкой")
	}

	log.Info("WMS service остановлен")
}

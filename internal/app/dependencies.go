package app

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/wms/internal/domain"
	"github.com/vladislavdragonenkov/wms/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/wms/internal/metrics"
	"github.com/vladislavdragonenkov/wms/internal/service/history"
	"github.com/vladislavdragonenkov/wms/internal/service/orders"
	"github.com/vladislavdragonenkov/wms/internal/storage/memory"
	"github.com/vladislavdragonenkov/wms/internal/storage/postgres"
)

// Dependencies содержит все зависимости приложения.
type Dependencies struct {
	Store         domain.Store
	Postgres      *postgres.Store // nil при in-memory бэкенде
	History       *history.Recorder
	Orders        *orders.Service
	KafkaProducer *kafka.Producer
	Logger        *log.Entry
}

// NewDependencies создаёт и инициализирует все зависимости приложения
// согласно конфигурации: хранилище, рекордер истории, движки заказов
// и опциональный Kafka producer.
func NewDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*Dependencies, error) {
	if logger == nil {
		logger = log.WithField("component", "app")
	}

	orderMetrics := metrics.NewOrderMetrics()

	var (
		store   domain.Store
		pgStore *postgres.Store
	)
	switch cfg.StorageBackend {
	case "postgres":
		pg, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		if err := pg.EnsureSchema(ctx); err != nil {
			_ = pg.Close()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		pg.OnTxRetry = orderMetrics.RecordTxRetry
		store = pg
		pgStore = pg
		logger.Info("postgres storage initialized")
	default:
		store = memory.NewStore()
		logger.Info("in-memory storage initialized")
	}

	var archive history.Archive
	if cfg.Archive.Enabled {
		s3Archive, err := history.NewS3Archive(ctx, history.S3Config{
			Region:    cfg.Archive.Region,
			Bucket:    cfg.Archive.Bucket,
			Endpoint:  cfg.Archive.Endpoint,
			PathStyle: cfg.Archive.PathStyle,
			Prefix:    cfg.Archive.Prefix,
		})
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("init snapshot archive: %w", err)
		}
		archive = s3Archive
		logger.WithField("bucket", cfg.Archive.Bucket).Info("snapshot archive initialized")
	}

	recorder := history.NewRecorder(store, archive, orderMetrics, logger.WithField("component", "history"))

	kafkaProducer, _ := initKafkaProducer(cfg.KafkaBrokers, logger)

	var orderService *orders.Service
	if kafkaProducer != nil {
		orderService = orders.NewServiceWithKafka(store, recorder, kafkaProducer, logger.WithField("component", "orders"))
	} else {
		orderService = orders.NewService(store, recorder, logger.WithField("component", "orders"))
	}

	return &Dependencies{
		Store:         store,
		Postgres:      pgStore,
		History:       recorder,
		Orders:        orderService,
		KafkaProducer: kafkaProducer,
		Logger:        logger,
	}, nil
}

// Close дожидается фоновых записей истории и освобождает ресурсы.
func (d *Dependencies) Close() {
	d.History.Wait()
	closeKafka(d.KafkaProducer, d.Logger)
	if err := d.Store.Close(); err != nil {
		d.Logger.WithError(err).Warn("failed to close store")
	}
}

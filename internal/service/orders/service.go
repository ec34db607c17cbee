package orders

import (
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/wms/internal/domain"
	"github.com/vladislavdragonenkov/wms/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/wms/internal/metrics"
)

// Service исполняет жизненный цикл заказов на перемещение:
// создание (валидация + резервирование), завершение (фиксация перемещения)
// и отмена (откат резервирования). Вся межсущностная согласованность
// держится на транзакциях хранилища и флагах блокировки.
type Service struct {
	store         domain.Store
	history       domain.SnapshotRecorder
	logger        *log.Entry
	metrics       *metrics.OrderMetrics
	kafkaProducer *kafka.Producer // опциональный Kafka producer для событий жизненного цикла
}

// NewService создаёт рабочий экземпляр движков заказов.
func NewService(store domain.Store, history domain.SnapshotRecorder, logger *log.Entry) *Service {
	if logger == nil {
		logger = log.New().WithField("component", "orders")
	}
	return &Service{
		store:   store,
		history: history,
		logger:  logger,
		metrics: metrics.NewOrderMetrics(),
	}
}

// NewServiceWithKafka создаёт движки с Kafka producer для публикации событий.
func NewServiceWithKafka(store domain.Store, history domain.SnapshotRecorder, producer *kafka.Producer, logger *log.Entry) *Service {
	svc := NewService(store, history, logger)
	svc.kafkaProducer = producer
	return svc
}

// NewServiceWithoutMetrics создаёт движки без метрик (для тестов).
func NewServiceWithoutMetrics(store domain.Store, history domain.SnapshotRecorder, logger *log.Entry) *Service {
	if logger == nil {
		logger = log.New().WithField("component", "orders")
	}
	return &Service{
		store:   store,
		history: history,
		logger:  logger,
	}
}

// CreateRequest — запрос на создание заказа.
type CreateRequest struct {
	OrderType   domain.OrderType
	Source      domain.EndpointRef
	Destination domain.EndpointRef
	// SourceWheelstack задаёт стопку явно, когда источник — storage
	// (у плоского хранилища нет координат, по которым её можно найти).
	SourceWheelstack string
	// ChosenWheel — извлекаемое колесо, только для moveToLaboratory.
	ChosenWheel string
}

// BulkCreateRequest — запрос на массовое создание processing/rejected заказов
// по всем стопкам партии в пределах одного размещения.
type BulkCreateRequest struct {
	OrderType   domain.OrderType
	BatchNumber string
	// Scope ограничивает выборку стопок одним размещением.
	ScopeKind domain.PlacementKind
	ScopeID   string
	// Destination — extra element (кран), принимающий все заказы пачки.
	Destination domain.EndpointRef
}

// recordSnapshots запускает фоновую запись снимков затронутых размещений
// и публикует placement.changed для клиентов, опрашивающих через Kafka.
// Ошибки записи не влияют на уже зафиксированный переход.
func (s *Service) recordSnapshots(order domain.Order) {
	seen := make(map[string]struct{}, 2)
	for _, ref := range []domain.EndpointRef{order.Source, order.Destination} {
		if !ref.PlacementKind.Valid() {
			continue
		}
		key := string(ref.PlacementKind) + "/" + ref.PlacementID
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		if s.history != nil {
			s.history.RecordSnapshot(ref.PlacementKind, ref.PlacementID)
		}
		s.publishPlacementEvent(ref.PlacementKind, ref.PlacementID)
	}
}

// publishPlacementEvent публикует событие изменения размещения (если producer настроен).
func (s *Service) publishPlacementEvent(kind domain.PlacementKind, placementID string) {
	if s.kafkaProducer == nil {
		return
	}

	event := kafka.NewPlacementEvent(string(kind), placementID)
	if err := s.kafkaProducer.PublishEvent(kafka.TopicPlacementEvents, placementID, event); err != nil {
		s.logger.WithError(err).WithFields(log.Fields{
			"placement_kind": kind,
			"placement_id":   placementID,
		}).Warn("failed to publish placement event to kafka")
	}
}

// publishOrderEvent публикует событие жизненного цикла в Kafka (если producer настроен).
func (s *Service) publishOrderEvent(eventType kafka.EventType, order domain.Order, metadata map[string]interface{}) {
	if s.kafkaProducer == nil {
		return
	}

	event := kafka.NewOrderEvent(eventType, order.ID, string(order.OrderType), metadata)
	if err := s.kafkaProducer.PublishEvent(kafka.TopicOrderEvents, order.ID, event); err != nil {
		// Логируем ошибку, но не прерываем операцию - Kafka опциональный
		s.logger.WithError(err).WithFields(log.Fields{
			"event_type": eventType,
			"order_id":   order.ID,
		}).Warn("failed to publish order event to kafka")
	}
}

func (s *Service) observeDuration(operation string, start time.Time) {
	if s.metrics != nil {
		s.metrics.RecordOperationDuration(operation, time.Since(start))
	}
}

package kafka

import "time"

// EventType определяет тип события
type EventType string

const (
	// События жизненного цикла заказов на перемещение
	EventTypeOrderCreated   EventType = "order.created"
	EventTypeOrderCompleted EventType = "order.completed"
	EventTypeOrderCanceled  EventType = "order.canceled"

	// События размещений
	EventTypePlacementChanged EventType = "placement.changed"
)

// Topics для Kafka
const (
	TopicOrderEvents     = "wms.order.events"
	TopicPlacementEvents = "wms.placement.events"
)

// OrderEvent представляет событие жизненного цикла заказа
type OrderEvent struct {
	EventType EventType              `json:"event_type"`
	OrderID   string                 `json:"order_id"`
	OrderType string                 `json:"order_type"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// PlacementEvent сигнализирует об изменении занятости размещения.
// Служит минимальным мостом для клиентов, собирающих данные по событиям
// вместо push-инвалидации.
type PlacementEvent struct {
	EventType     EventType `json:"event_type"`
	PlacementKind string    `json:"placement_kind"`
	PlacementID   string    `json:"placement_id"`
	Timestamp     time.Time `json:"timestamp"`
}

// NewOrderEvent создает новое событие заказа
func NewOrderEvent(eventType EventType, orderID, orderType string, metadata map[string]interface{}) *OrderEvent {
	return &OrderEvent{
		EventType: eventType,
		OrderID:   orderID,
		OrderType: orderType,
		Timestamp: time.Now(),
		Metadata:  metadata,
	}
}

// NewPlacementEvent создает новое событие размещения
func NewPlacementEvent(kind, placementID string) *PlacementEvent {
	return &PlacementEvent{
		EventType:     EventTypePlacementChanged,
		PlacementKind: kind,
		PlacementID:   placementID,
		Timestamp:     time.Now(),
	}
}

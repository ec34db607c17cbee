package domain

import "time"

// WheelStatus отражает статус колеса, производный от размещения его стопки.
type WheelStatus string

const (
	WheelStatusInactive     WheelStatus = "inActive"
	WheelStatusGrid         WheelStatus = "grid"
	WheelStatusBasePlatform WheelStatus = "basePlatform"
	WheelStatusStorage      WheelStatus = "storage"
	WheelStatusShipped      WheelStatus = "shipped"
	WheelStatusRejected     WheelStatus = "rejected"
	// WheelStatusLaboratory — колесо извлечено из стопки и передано в лабораторию.
	WheelStatusLaboratory WheelStatus = "laboratory"
)

// WheelSlot привязывает колесо к стопке и вертикальной позиции в ней.
// Позиции плотные: 0..n-1 снизу вверх; движки перенумеровывают
// оставшиеся колёса после извлечения.
type WheelSlot struct {
	WheelstackID string
	Position     int
}

// Wheel — единица учёта внутри wheelstack-а.
type Wheel struct {
	ID          string
	BatchNumber string
	Diameter    int
	ReceiptDate time.Time
	Status      WheelStatus
	Slot        *WheelSlot // nil, если колесо не состоит в стопке
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// WheelStatusForPlacement возвращает статус колеса для вида размещения стопки.
func WheelStatusForPlacement(kind PlacementKind) WheelStatus {
	switch kind {
	case PlacementGrid:
		return WheelStatusGrid
	case PlacementPlatform:
		return WheelStatusBasePlatform
	case PlacementStorage:
		return WheelStatusStorage
	default:
		return WheelStatusInactive
	}
}

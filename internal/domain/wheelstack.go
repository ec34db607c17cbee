package domain

import "time"

// WheelstackStatus описывает жизненный цикл wheelstack-а.
type WheelstackStatus string

const (
	// WheelstackStatusInactive — стопка создана, но ещё не размещена.
	WheelstackStatusInactive WheelstackStatus = "inActive"
	// WheelstackStatusOrderQue — стопка участвует в активном заказе.
	WheelstackStatusOrderQue WheelstackStatus = "orderQue"
	// WheelstackStatusShipped — стопка покинула отслеживаемую зону (processing).
	WheelstackStatusShipped WheelstackStatus = "shipped"
	// WheelstackStatusGrid — стопка стоит в ячейке grid-а.
	WheelstackStatusGrid WheelstackStatus = "grid"
	// WheelstackStatusBasePlatform — стопка стоит на базовой платформе.
	WheelstackStatusBasePlatform WheelstackStatus = "basePlatform"
	// WheelstackStatusRejected — стопка отбракована по результатам лаборатории.
	WheelstackStatusRejected WheelstackStatus = "rejected"
	// WheelstackStatusStorage — стопка лежит в плоском хранилище.
	WheelstackStatusStorage WheelstackStatus = "storage"
	// WheelstackStatusDeconstructed — стопка логически разобрана после merge.
	// Запись никогда не удаляется обычным потоком, только помечается.
	WheelstackStatusDeconstructed WheelstackStatus = "deconstructed"
)

// MaxWheelsPerStack ограничивает высоту стопки.
const MaxWheelsPerStack = 6

// WheelstackPlacement описывает текущее местоположение стопки.
// Row/Col семантически бессмысленны для storage и несут sentinel "0".
type WheelstackPlacement struct {
	Kind        PlacementKind
	PlacementID string
	Row         string
	Col         string
}

// Wheelstack — упорядоченная пачка колёс одной партии, атомарная единица перемещения.
type Wheelstack struct {
	ID          string
	BatchNumber string
	Placement   WheelstackPlacement
	MaxSize     int
	Blocked     bool
	LastOrder   string // ID последнего заказа, трогавшего стопку
	Wheels      []string
	Status      WheelstackStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ValidateInvariants проверяет базовые инварианты стопки и возвращает список замечаний.
func (w *Wheelstack) ValidateInvariants() []error {
	var errs []error

	if w.BatchNumber == "" {
		errs = append(errs, ErrBatchNumberRequired)
	}
	if w.MaxSize < 1 || w.MaxSize > MaxWheelsPerStack {
		errs = append(errs, ErrMaxSizeInvalid)
	}
	if len(w.Wheels) > w.MaxSize {
		errs = append(errs, ErrWheelsOverflow)
	}
	if !w.Placement.Kind.Valid() {
		errs = append(errs, ErrPlacementKindInvalid)
	}

	return errs
}

// StatusForPlacement возвращает статус, соответствующий виду размещения.
// Применяется к стопке и каскадно к её колёсам после завершения перемещения.
func StatusForPlacement(kind PlacementKind) WheelstackStatus {
	switch kind {
	case PlacementGrid:
		return WheelstackStatusGrid
	case PlacementPlatform:
		return WheelstackStatusBasePlatform
	case PlacementStorage:
		return WheelstackStatusStorage
	default:
		return WheelstackStatusInactive
	}
}

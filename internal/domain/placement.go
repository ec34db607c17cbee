package domain

import "time"

// PlacementKind описывает вид пространственного размещения wheelstack-ов.
type PlacementKind string

const (
	// PlacementGrid — приёмочная сетка с адресацией (row, col).
	PlacementGrid PlacementKind = "grid"
	// PlacementPlatform — базовая платформа, структурно идентична grid.
	PlacementPlatform PlacementKind = "basePlatform"
	// PlacementStorage — плоское хранилище без координатной структуры.
	PlacementStorage PlacementKind = "storage"
)

// Valid проверяет, что вид размещения относится к поддерживаемым значениям.
func (k PlacementKind) Valid() bool {
	switch k {
	case PlacementGrid, PlacementPlatform, PlacementStorage:
		return true
	default:
		return false
	}
}

// HasCells сообщает, адресуется ли размещение координатными ячейками.
func (k PlacementKind) HasCells() bool {
	return k == PlacementGrid || k == PlacementPlatform
}

// CellRef однозначно идентифицирует ячейку внутри grid или platform.
type CellRef struct {
	PlacementKind PlacementKind
	PlacementID   string
	Row           string
	Col           string
}

// Cell — одна адресуемая ячейка grid/platform.
// Инвариант: Blocked == true тогда и только тогда, когда BlockedBy != "".
type Cell struct {
	Ref          CellRef
	WheelstackID string // пустая строка означает свободную ячейку
	Blocked      bool
	BlockedBy    string // ID заказа, удерживающего резерв
}

// Occupied сообщает, ссылается ли ячейка на wheelstack.
func (c Cell) Occupied() bool {
	return c.WheelstackID != ""
}

// ExtraKind описывает тип внекоординатного элемента grid-а.
type ExtraKind string

const (
	ExtraKindLaboratory ExtraKind = "laboratory"
	ExtraKindHandCrane  ExtraKind = "handCrane"
)

// ExtraElement — внекоординатный элемент grid-а (лаборатория, кран).
// В отличие от ячеек, может держать несколько активных заказов одновременно.
type ExtraElement struct {
	PlacementID string
	Name        string
	Kind        ExtraKind
	Blocked     bool
	Orders      []string // ID активных заказов на элементе
}

// HoldsOrder проверяет членство заказа в наборе активных заказов элемента.
func (e ExtraElement) HoldsOrder(orderID string) bool {
	for _, id := range e.Orders {
		if id == orderID {
			return true
		}
	}
	return false
}

// Storage — плоское хранилище wheelstack-ов.
// LastChange штампуется при каждом изменении состава и служит
// дешёвым признаком «грязности» для опрашивающих клиентов.
type Storage struct {
	ID         string
	Name       string
	Elements   []string // ID wheelstack-ов в хранилище
	LastChange time.Time
}

// Contains проверяет членство wheelstack-а в хранилище.
func (s Storage) Contains(wheelstackID string) bool {
	for _, id := range s.Elements {
		if id == wheelstackID {
			return true
		}
	}
	return false
}

// EndpointRef описывает источник или назначение заказа.
// Для внекоординатных элементов Row содержит sentinel ExtraRowSentinel,
// а Col — имя элемента.
type EndpointRef struct {
	PlacementKind PlacementKind
	PlacementID   string
	Row           string
	Col           string
}

// ExtraRowSentinel помечает EndpointRef, указывающий на extra element.
const ExtraRowSentinel = "extra"

// StorageRowSentinel подставляется в row/col wheelstack-а, лежащего в storage.
const StorageRowSentinel = "0"

// IsExtra сообщает, указывает ли endpoint на внекоординатный элемент.
func (r EndpointRef) IsExtra() bool {
	return r.Row == ExtraRowSentinel
}

// ExtraName возвращает имя extra element-а для extra-endpoint-а.
func (r EndpointRef) ExtraName() string {
	if !r.IsExtra() {
		return ""
	}
	return r.Col
}

// CellRef приводит endpoint к ссылке на ячейку.
// Осмысленно только для координатных endpoint-ов grid/platform.
func (r EndpointRef) CellRef() CellRef {
	return CellRef{
		PlacementKind: r.PlacementKind,
		PlacementID:   r.PlacementID,
		Row:           r.Row,
		Col:           r.Col,
	}
}

package domain

import (
	"context"
	"time"
)

// CellAccessor — типизированные операции над ячейками grid/platform.
// Условные обновления принимают ожидаемое состояние частью фильтра и
// возвращают число совпавших строк: ноль означает, что состояние ушло
// из-под читателя, и классификацию выполняет вызывающий движок.
type CellAccessor interface {
	// Get возвращает ячейку или ErrCellNotFound.
	Get(ctx context.Context, ref CellRef) (Cell, error)
	// ListByPlacement возвращает все ячейки размещения.
	ListByPlacement(ctx context.Context, kind PlacementKind, placementID string) ([]Cell, error)
	// Create добавляет ячейку в grid/platform.
	Create(ctx context.Context, cell Cell) error
	// Reserve ставит блокировку заказа на свободную от блокировок ячейку.
	// mustBeOccupied=true дополнительно требует наличия wheelstack-а в ячейке,
	// false — его отсутствия. Проигравший конкурент получает ноль совпадений.
	Reserve(ctx context.Context, ref CellRef, orderID string, mustBeOccupied bool) (int64, error)
	// Release снимает блокировку, сохраняя ссылку на wheelstack.
	// Фильтр требует blocked_by = orderID.
	Release(ctx context.Context, ref CellRef, orderID string) (int64, error)
	// ClearWheelstack очищает ссылку на wheelstack и снимает блокировку.
	ClearWheelstack(ctx context.Context, ref CellRef, orderID string) (int64, error)
	// PlaceWheelstack записывает wheelstack в ячейку и снимает блокировку.
	PlaceWheelstack(ctx context.Context, ref CellRef, orderID, wheelstackID string) (int64, error)
	// ForceClear — ручная операция: сбрасывает blocked и blockedBy разом,
	// без владеющего заказа. Никогда не вызывается движками.
	ForceClear(ctx context.Context, ref CellRef) error
	// ReleaseMany снимает блокировки всех ячеек размещения, удерживаемых
	// перечисленными заказами, одним обновлением.
	ReleaseMany(ctx context.Context, kind PlacementKind, placementID string, orderIDs []string) (int64, error)
}

// ExtraElementAccessor — операции над внекоординатными элементами grid-а.
type ExtraElementAccessor interface {
	// Get возвращает элемент или ErrExtraElementNotFound.
	Get(ctx context.Context, placementID, name string) (ExtraElement, error)
	// Create добавляет элемент в grid.
	Create(ctx context.Context, element ExtraElement) error
	// AddOrder добавляет заказ в набор активных заказов незаблокированного элемента.
	AddOrder(ctx context.Context, placementID, name, orderID string) (int64, error)
	// RemoveOrder удаляет заказ из набора активных заказов элемента.
	RemoveOrder(ctx context.Context, placementID, name, orderID string) (int64, error)
}

// WheelstackAccessor — операции над стопками колёс.
type WheelstackAccessor interface {
	// Get возвращает стопку или ErrWheelstackNotFound.
	Get(ctx context.Context, id string) (Wheelstack, error)
	// Create сохраняет новую стопку вместе с её начальным размещением.
	Create(ctx context.Context, stack Wheelstack) error
	// Block ставит блокировку заказа на незаблокированную стопку
	// и штампует lastOrder. Ноль совпадений — стопку успели занять.
	Block(ctx context.Context, id, orderID string) (int64, error)
	// Unblock снимает блокировку, не трогая остальные поля.
	Unblock(ctx context.Context, id string) (int64, error)
	// Save перезаписывает стопку целиком.
	Save(ctx context.Context, stack Wheelstack) error
	// ListByBatch возвращает стопки партии.
	ListByBatch(ctx context.Context, batchNumber string) ([]Wheelstack, error)
}

// WheelAccessor — операции над колёсами.
type WheelAccessor interface {
	// Get возвращает колесо или ErrWheelNotFound.
	Get(ctx context.Context, id string) (Wheel, error)
	// Create сохраняет новое колесо.
	Create(ctx context.Context, wheel Wheel) error
	// Save перезаписывает колесо целиком.
	Save(ctx context.Context, wheel Wheel) error
}

// StorageAccessor — операции над плоскими хранилищами.
// Каждое изменение состава штампует lastChange.
type StorageAccessor interface {
	// Get возвращает хранилище или ErrStorageNotFound.
	Get(ctx context.Context, id string) (Storage, error)
	// GetByName возвращает хранилище по уникальному имени.
	GetByName(ctx context.Context, name string) (Storage, error)
	// Create сохраняет новое хранилище.
	Create(ctx context.Context, storage Storage) error
	// AddWheelstack добавляет стопку в состав хранилища.
	AddWheelstack(ctx context.Context, storageID, wheelstackID string) error
	// RemoveWheelstack удаляет стопку из состава хранилища.
	RemoveWheelstack(ctx context.Context, storageID, wheelstackID string) (int64, error)
	// Touch штампует lastChange без изменения состава.
	Touch(ctx context.Context, storageID string) error
}

// BatchAccessor — операции над производственными партиями.
type BatchAccessor interface {
	// Get возвращает партию или ErrBatchNotFound.
	Get(ctx context.Context, batchNumber string) (BatchNumber, error)
	// Create сохраняет новую партию.
	Create(ctx context.Context, batch BatchNumber) error
	// AppendTestRecord добавляет запись о передаче колеса в лабораторию.
	AppendTestRecord(ctx context.Context, batchNumber string, record TestRecord) error
}

// OrderAccessor — операции над записями заказов.
// Заказ живёт в одной таблице с lifecycle state; перевод состояния —
// одно условное обновление, поэтому разделы не пересекаются.
type OrderAccessor interface {
	// Create сохраняет заказ в pending-разделе.
	Create(ctx context.Context, order Order) error
	// GetPending возвращает pending-заказ или ErrOrderNotFound.
	GetPending(ctx context.Context, id string) (Order, error)
	// Get возвращает заказ в любом состоянии или ErrOrderNotFound.
	Get(ctx context.Context, id string) (Order, error)
	// ListByState возвращает заказы раздела, свежие первыми.
	ListByState(ctx context.Context, state LifecycleState, limit int) ([]Order, error)
	// Complete переводит pending-заказ в completed. Фильтр требует pending.
	Complete(ctx context.Context, id string, at time.Time) (int64, error)
	// Cancel переводит pending-заказ в canceled с причиной. Фильтр требует pending.
	Cancel(ctx context.Context, id, reason string, at time.Time) (int64, error)
}

// PlacementSnapshot — точечный снимок состояния размещения для истории.
type PlacementSnapshot struct {
	ID            string
	PlacementKind PlacementKind
	PlacementID   string
	State         []byte // JSON-представление ячеек/состава на момент снимка
	CreatedAt     time.Time
}

// SnapshotAccessor — операции над историческими снимками размещений.
type SnapshotAccessor interface {
	// Insert сохраняет снимок.
	Insert(ctx context.Context, snapshot PlacementSnapshot) error
	// Last возвращает последний снимок размещения или ErrSnapshotNotFound.
	Last(ctx context.Context, kind PlacementKind, placementID string) (PlacementSnapshot, error)
}

// Tx даёт доступ к акцессорам в рамках одной транзакции.
type Tx interface {
	Cells() CellAccessor
	ExtraElements() ExtraElementAccessor
	Wheelstacks() WheelstackAccessor
	Wheels() WheelAccessor
	Storages() StorageAccessor
	Batches() BatchAccessor
	Orders() OrderAccessor
	Snapshots() SnapshotAccessor
}

// Store — корневой доступ к данным склада. Вне транзакции акцессоры
// работают в autocommit-режиме; WithinTx исполняет fn атомарно и
// повторяет её при транзиентных конфликтах транзакций.
type Store interface {
	Tx
	// WithinTx выполняет fn в одной транзакции. Любая ошибка fn
	// откатывает все мутации. Транзиентные конфликты повторяются
	// до трёх раз с фиксированной паузой, затем ErrTxRetriesExhausted.
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
	// Close освобождает ресурсы хранилища.
	Close() error
}

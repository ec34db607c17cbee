package memory

import (
	"context"
	"sync"

	"github.com/vladislavdragonenkov/wms/internal/domain"
)

type extraKey struct {
	placementID string
	name        string
}

// state — всё содержимое склада. Транзакция работает поверх живого state,
// а откат восстанавливает снятую перед началом копию.
type state struct {
	cells       map[domain.CellRef]domain.Cell
	extras      map[extraKey]domain.ExtraElement
	wheelstacks map[string]domain.Wheelstack
	wheels      map[string]domain.Wheel
	storages    map[string]domain.Storage
	batches     map[string]domain.BatchNumber
	orders      map[string]domain.Order
	snapshots   []domain.PlacementSnapshot
}

func newState() *state {
	return &state{
		cells:       make(map[domain.CellRef]domain.Cell),
		extras:      make(map[extraKey]domain.ExtraElement),
		wheelstacks: make(map[string]domain.Wheelstack),
		wheels:      make(map[string]domain.Wheel),
		storages:    make(map[string]domain.Storage),
		batches:     make(map[string]domain.BatchNumber),
		orders:      make(map[string]domain.Order),
	}
}

// clone снимает глубокую копию состояния для отката транзакции.
func (s *state) clone() *state {
	c := newState()
	for k, v := range s.cells {
		c.cells[k] = v
	}
	for k, v := range s.extras {
		v.Orders = append([]string(nil), v.Orders...)
		c.extras[k] = v
	}
	for k, v := range s.wheelstacks {
		v.Wheels = append([]string(nil), v.Wheels...)
		c.wheelstacks[k] = v
	}
	for k, v := range s.wheels {
		c.wheels[k] = v
	}
	for k, v := range s.storages {
		v.Elements = append([]string(nil), v.Elements...)
		c.storages[k] = v
	}
	for k, v := range s.batches {
		v.Wheels = append([]domain.TestRecord(nil), v.Wheels...)
		c.batches[k] = v
	}
	for k, v := range s.orders {
		v.AffectedWheels.Source = append([]string(nil), v.AffectedWheels.Source...)
		v.AffectedWheels.Destination = append([]string(nil), v.AffectedWheels.Destination...)
		c.orders[k] = v
	}
	c.snapshots = append([]domain.PlacementSnapshot(nil), s.snapshots...)
	return c
}

// Store — in-memory реализация domain.Store для локальной разработки и тестов.
// Атомарность обеспечивается глобальным мьютексом: транзакция держит его
// целиком, а откат подменяет состояние копией, снятой перед началом.
type Store struct {
	mu sync.Mutex
	st *state
}

// NewStore возвращает пустое in-memory хранилище.
func NewStore() *Store {
	return &Store{st: newState()}
}

// WithinTx исполняет fn атомарно. Любая ошибка fn откатывает все мутации.
// Конфликтов транзакций здесь не бывает, поэтому повторы не нужны.
func (s *Store) WithinTx(_ context.Context, fn func(tx domain.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	backup := s.st.clone()
	if err := fn(view{store: s, locked: true}); err != nil {
		s.st = backup
		return err
	}
	return nil
}

// Close освобождает ресурсы; для in-memory хранилища это no-op.
func (s *Store) Close() error {
	return nil
}

func (s *Store) Cells() domain.CellAccessor { return view{store: s}.Cells() }
func (s *Store) ExtraElements() domain.ExtraElementAccessor {
	return view{store: s}.ExtraElements()
}
func (s *Store) Wheelstacks() domain.WheelstackAccessor { return view{store: s}.Wheelstacks() }
func (s *Store) Wheels() domain.WheelAccessor           { return view{store: s}.Wheels() }
func (s *Store) Storages() domain.StorageAccessor       { return view{store: s}.Storages() }
func (s *Store) Batches() domain.BatchAccessor          { return view{store: s}.Batches() }
func (s *Store) Orders() domain.OrderAccessor           { return view{store: s}.Orders() }
func (s *Store) Snapshots() domain.SnapshotAccessor     { return view{store: s}.Snapshots() }

// view маршрутизирует акцессоры на общее состояние. locked=true внутри
// WithinTx (мьютекс уже удержан), false — autocommit с блокировкой на операцию.
type view struct {
	store  *Store
	locked bool
}

func (v view) Cells() domain.CellAccessor                 { return cellAccessor{v} }
func (v view) ExtraElements() domain.ExtraElementAccessor { return extraAccessor{v} }
func (v view) Wheelstacks() domain.WheelstackAccessor     { return wheelstackAccessor{v} }
func (v view) Wheels() domain.WheelAccessor               { return wheelAccessor{v} }
func (v view) Storages() domain.StorageAccessor           { return storageAccessor{v} }
func (v view) Batches() domain.BatchAccessor              { return batchAccessor{v} }
func (v view) Orders() domain.OrderAccessor               { return orderAccessor{v} }
func (v view) Snapshots() domain.SnapshotAccessor         { return snapshotAccessor{v} }

// do выполняет op над состоянием, при необходимости беря мьютекс.
func (v view) do(op func(st *state) error) error {
	if !v.locked {
		v.store.mu.Lock()
		defer v.store.mu.Unlock()
	}
	return op(v.store.st)
}

var _ domain.Store = (*Store)(nil)
var _ domain.Tx = view{}

package memory

import (
	"context"
	"sort"
	"time"

	"github.com/vladislavdragonenkov/wms/internal/domain"
)

type extraAccessor struct {
	v view
}

func (a extraAccessor) Get(_ context.Context, placementID, name string) (domain.ExtraElement, error) {
	var element domain.ExtraElement
	err := a.v.do(func(st *state) error {
		e, ok := st.extras[extraKey{placementID, name}]
		if !ok {
			return domain.ErrExtraElementNotFound
		}
		e.Orders = append([]string(nil), e.Orders...)
		element = e
		return nil
	})
	return element, err
}

func (a extraAccessor) Create(_ context.Context, element domain.ExtraElement) error {
	return a.v.do(func(st *state) error {
		st.extras[extraKey{element.PlacementID, element.Name}] = element
		return nil
	})
}

func (a extraAccessor) AddOrder(_ context.Context, placementID, name, orderID string) (int64, error) {
	var matched int64
	err := a.v.do(func(st *state) error {
		key := extraKey{placementID, name}
		element, ok := st.extras[key]
		if !ok || element.Blocked || element.HoldsOrder(orderID) {
			return nil
		}
		element.Orders = append(append([]string(nil), element.Orders...), orderID)
		st.extras[key] = element
		matched = 1
		return nil
	})
	return matched, err
}

func (a extraAccessor) RemoveOrder(_ context.Context, placementID, name, orderID string) (int64, error) {
	var matched int64
	err := a.v.do(func(st *state) error {
		key := extraKey{placementID, name}
		element, ok := st.extras[key]
		if !ok {
			return nil
		}
		kept := make([]string, 0, len(element.Orders))
		for _, id := range element.Orders {
			if id == orderID {
				matched = 1
				continue
			}
			kept = append(kept, id)
		}
		element.Orders = kept
		st.extras[key] = element
		return nil
	})
	return matched, err
}

type wheelstackAccessor struct {
	v view
}

func (a wheelstackAccessor) Get(_ context.Context, id string) (domain.Wheelstack, error) {
	var stack domain.Wheelstack
	err := a.v.do(func(st *state) error {
		s, ok := st.wheelstacks[id]
		if !ok {
			return domain.ErrWheelstackNotFound
		}
		s.Wheels = append([]string(nil), s.Wheels...)
		stack = s
		return nil
	})
	return stack, err
}

func (a wheelstackAccessor) Create(_ context.Context, stack domain.Wheelstack) error {
	return a.v.do(func(st *state) error {
		st.wheelstacks[stack.ID] = stack
		return nil
	})
}

func (a wheelstackAccessor) Block(_ context.Context, id, orderID string) (int64, error) {
	var matched int64
	err := a.v.do(func(st *state) error {
		stack, ok := st.wheelstacks[id]
		if !ok || stack.Blocked {
			return nil
		}
		stack.Blocked = true
		stack.LastOrder = orderID
		stack.UpdatedAt = time.Now().UTC()
		st.wheelstacks[id] = stack
		matched = 1
		return nil
	})
	return matched, err
}

func (a wheelstackAccessor) Unblock(_ context.Context, id string) (int64, error) {
	var matched int64
	err := a.v.do(func(st *state) error {
		stack, ok := st.wheelstacks[id]
		if !ok {
			return nil
		}
		stack.Blocked = false
		stack.UpdatedAt = time.Now().UTC()
		st.wheelstacks[id] = stack
		matched = 1
		return nil
	})
	return matched, err
}

func (a wheelstackAccessor) Save(_ context.Context, stack domain.Wheelstack) error {
	return a.v.do(func(st *state) error {
		if _, ok := st.wheelstacks[stack.ID]; !ok {
			return domain.ErrWheelstackNotFound
		}
		stack.Wheels = append([]string(nil), stack.Wheels...)
		stack.UpdatedAt = time.Now().UTC()
		st.wheelstacks[stack.ID] = stack
		return nil
	})
}

func (a wheelstackAccessor) ListByBatch(_ context.Context, batchNumber string) ([]domain.Wheelstack, error) {
	var stacks []domain.Wheelstack
	err := a.v.do(func(st *state) error {
		for _, stack := range st.wheelstacks {
			if stack.BatchNumber != batchNumber {
				continue
			}
			stack.Wheels = append([]string(nil), stack.Wheels...)
			stacks = append(stacks, stack)
		}
		return nil
	})
	sort.Slice(stacks, func(i, j int) bool { return stacks[i].ID < stacks[j].ID })
	return stacks, err
}

type wheelAccessor struct {
	v view
}

func (a wheelAccessor) Get(_ context.Context, id string) (domain.Wheel, error) {
	var wheel domain.Wheel
	err := a.v.do(func(st *state) error {
		w, ok := st.wheels[id]
		if !ok {
			return domain.ErrWheelNotFound
		}
		wheel = w
		return nil
	})
	return wheel, err
}

func (a wheelAccessor) Create(_ context.Context, wheel domain.Wheel) error {
	return a.v.do(func(st *state) error {
		st.wheels[wheel.ID] = wheel
		return nil
	})
}

func (a wheelAccessor) Save(_ context.Context, wheel domain.Wheel) error {
	return a.v.do(func(st *state) error {
		if _, ok := st.wheels[wheel.ID]; !ok {
			return domain.ErrWheelNotFound
		}
		wheel.UpdatedAt = time.Now().UTC()
		st.wheels[wheel.ID] = wheel
		return nil
	})
}

type storageAccessor struct {
	v view
}

func (a storageAccessor) Get(_ context.Context, id string) (domain.Storage, error) {
	var storage domain.Storage
	err := a.v.do(func(st *state) error {
		s, ok := st.storages[id]
		if !ok {
			return domain.ErrStorageNotFound
		}
		s.Elements = append([]string(nil), s.Elements...)
		storage = s
		return nil
	})
	return storage, err
}

func (a storageAccessor) GetByName(_ context.Context, name string) (domain.Storage, error) {
	var storage domain.Storage
	err := a.v.do(func(st *state) error {
		for _, s := range st.storages {
			if s.Name == name {
				s.Elements = append([]string(nil), s.Elements...)
				storage = s
				return nil
			}
		}
		return domain.ErrStorageNotFound
	})
	return storage, err
}

func (a storageAccessor) Create(_ context.Context, storage domain.Storage) error {
	return a.v.do(func(st *state) error {
		st.storages[storage.ID] = storage
		return nil
	})
}

func (a storageAccessor) AddWheelstack(_ context.Context, storageID, wheelstackID string) error {
	return a.v.do(func(st *state) error {
		storage, ok := st.storages[storageID]
		if !ok {
			return domain.ErrStorageNotFound
		}
		if !storage.Contains(wheelstackID) {
			storage.Elements = append(append([]string(nil), storage.Elements...), wheelstackID)
		}
		storage.LastChange = time.Now().UTC()
		st.storages[storageID] = storage
		return nil
	})
}

func (a storageAccessor) RemoveWheelstack(_ context.Context, storageID, wheelstackID string) (int64, error) {
	var matched int64
	err := a.v.do(func(st *state) error {
		storage, ok := st.storages[storageID]
		if !ok {
			return domain.ErrStorageNotFound
		}
		kept := make([]string, 0, len(storage.Elements))
		for _, id := range storage.Elements {
			if id == wheelstackID {
				matched = 1
				continue
			}
			kept = append(kept, id)
		}
		storage.Elements = kept
		storage.LastChange = time.Now().UTC()
		st.storages[storageID] = storage
		return nil
	})
	return matched, err
}

func (a storageAccessor) Touch(_ context.Context, storageID string) error {
	return a.v.do(func(st *state) error {
		storage, ok := st.storages[storageID]
		if !ok {
			return domain.ErrStorageNotFound
		}
		storage.LastChange = time.Now().UTC()
		st.storages[storageID] = storage
		return nil
	})
}

type batchAccessor struct {
	v view
}

func (a batchAccessor) Get(_ context.Context, batchNumber string) (domain.BatchNumber, error) {
	var batch domain.BatchNumber
	err := a.v.do(func(st *state) error {
		b, ok := st.batches[batchNumber]
		if !ok {
			return domain.ErrBatchNotFound
		}
		b.Wheels = append([]domain.TestRecord(nil), b.Wheels...)
		batch = b
		return nil
	})
	return batch, err
}

func (a batchAccessor) Create(_ context.Context, batch domain.BatchNumber) error {
	return a.v.do(func(st *state) error {
		st.batches[batch.BatchNumber] = batch
		return nil
	})
}

func (a batchAccessor) AppendTestRecord(_ context.Context, batchNumber string, record domain.TestRecord) error {
	return a.v.do(func(st *state) error {
		batch, ok := st.batches[batchNumber]
		if !ok {
			return domain.ErrBatchNotFound
		}
		batch.Wheels = append(append([]domain.TestRecord(nil), batch.Wheels...), record)
		batch.UpdatedAt = time.Now().UTC()
		st.batches[batchNumber] = batch
		return nil
	})
}

type snapshotAccessor struct {
	v view
}

func (a snapshotAccessor) Insert(_ context.Context, snapshot domain.PlacementSnapshot) error {
	return a.v.do(func(st *state) error {
		st.snapshots = append(st.snapshots, snapshot)
		return nil
	})
}

func (a snapshotAccessor) Last(_ context.Context, kind domain.PlacementKind, placementID string) (domain.PlacementSnapshot, error) {
	var snapshot domain.PlacementSnapshot
	err := a.v.do(func(st *state) error {
		for i := len(st.snapshots) - 1; i >= 0; i-- {
			s := st.snapshots[i]
			if s.PlacementKind == kind && s.PlacementID == placementID {
				snapshot = s
				return nil
			}
		}
		return domain.ErrSnapshotNotFound
	})
	return snapshot, err
}

var _ domain.ExtraElementAccessor = extraAccessor{}
var _ domain.WheelstackAccessor = wheelstackAccessor{}
var _ domain.WheelAccessor = wheelAccessor{}
var _ domain.StorageAccessor = storageAccessor{}
var _ domain.BatchAccessor = batchAccessor{}
var _ domain.SnapshotAccessor = snapshotAccessor{}

package memory

import (
	"context"
	"sort"
	"time"

	"github.com/vladislavdragonenkov/wms/internal/domain"
)

type orderAccessor struct {
	v view
}

func (a orderAccessor) Create(_ context.Context, order domain.Order) error {
	return a.v.do(func(st *state) error {
		order.AffectedWheels.Source = append([]string(nil), order.AffectedWheels.Source...)
		order.AffectedWheels.Destination = append([]string(nil), order.AffectedWheels.Destination...)
		st.orders[order.ID] = order
		return nil
	})
}

func (a orderAccessor) GetPending(_ context.Context, id string) (domain.Order, error) {
	var order domain.Order
	err := a.v.do(func(st *state) error {
		o, ok := st.orders[id]
		if !ok || o.State != domain.LifecyclePending {
			return domain.ErrOrderNotFound
		}
		order = copyOrder(o)
		return nil
	})
	return order, err
}

func (a orderAccessor) Get(_ context.Context, id string) (domain.Order, error) {
	var order domain.Order
	err := a.v.do(func(st *state) error {
		o, ok := st.orders[id]
		if !ok {
			return domain.ErrOrderNotFound
		}
		order = copyOrder(o)
		return nil
	})
	return order, err
}

func (a orderAccessor) ListByState(_ context.Context, lifecycleState domain.LifecycleState, limit int) ([]domain.Order, error) {
	var orders []domain.Order
	err := a.v.do(func(st *state) error {
		for _, order := range st.orders {
			if order.State != lifecycleState {
				continue
			}
			orders = append(orders, copyOrder(order))
		}
		return nil
	})

	sort.Slice(orders, func(i, j int) bool {
		if !orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
			return orders[i].CreatedAt.After(orders[j].CreatedAt)
		}
		return orders[i].ID > orders[j].ID
	})
	if limit > 0 && len(orders) > limit {
		orders = orders[:limit]
	}
	return orders, err
}

func (a orderAccessor) Complete(_ context.Context, id string, at time.Time) (int64, error) {
	var matched int64
	err := a.v.do(func(st *state) error {
		order, ok := st.orders[id]
		if !ok || order.State != domain.LifecyclePending {
			return nil
		}
		order.State = domain.LifecycleCompleted
		order.CompletedAt = &at
		order.LastUpdated = at
		st.orders[id] = order
		matched = 1
		return nil
	})
	return matched, err
}

func (a orderAccessor) Cancel(_ context.Context, id, reason string, at time.Time) (int64, error) {
	var matched int64
	err := a.v.do(func(st *state) error {
		order, ok := st.orders[id]
		if !ok || order.State != domain.LifecyclePending {
			return nil
		}
		order.State = domain.LifecycleCanceled
		order.CancellationReason = reason
		order.CanceledAt = &at
		order.LastUpdated = at
		st.orders[id] = order
		matched = 1
		return nil
	})
	return matched, err
}

func copyOrder(order domain.Order) domain.Order {
	order.AffectedWheels.Source = append([]string(nil), order.AffectedWheels.Source...)
	order.AffectedWheels.Destination = append([]string(nil), order.AffectedWheels.Destination...)
	return order
}

var _ domain.OrderAccessor = orderAccessor{}

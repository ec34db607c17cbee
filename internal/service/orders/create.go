package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/wms/internal/domain"
	"github.com/vladislavdragonenkov/wms/internal/messaging/kafka"
)

// Create валидирует запрос и атомарно резервирует ресурсы под новый заказ:
// блокирует исходную ячейку и стопку, назначение, штампует blockedBy/lastOrder
// и вставляет pending-запись. Любая ошибка откатывает транзакцию целиком —
// полусозданных заказов не бывает.
func (s *Service) Create(ctx context.Context, req CreateRequest) (string, error) {
	start := time.Now()
	defer s.observeDuration("create", start)

	plan, err := s.validateCreate(ctx, req)
	if err != nil {
		if s.metrics != nil {
			s.metrics.RecordOrderFailed(string(req.OrderType))
		}
		return "", err
	}

	now := time.Now().UTC()
	order := domain.Order{
		ID:          uuid.NewString(),
		OrderType:   req.OrderType,
		Source:      req.Source,
		Destination: req.Destination,
		AffectedWheelstacks: domain.AffectedWheelstacks{
			Source: plan.sourceStack.ID,
		},
		AffectedWheels: domain.AffectedWheels{
			Source: append([]string(nil), plan.sourceStack.Wheels...),
		},
		ChosenWheel: req.ChosenWheel,
		State:       domain.LifecyclePending,
		CreatedAt:   now,
		LastUpdated: now,
	}
	if req.OrderType == domain.OrderTypeMoveToLaboratory {
		order.AffectedWheels.Source = []string{req.ChosenWheel}
	}
	if plan.destStack != nil {
		order.AffectedWheelstacks.Destination = plan.destStack.ID
		order.AffectedWheels.Destination = append([]string(nil), plan.destStack.Wheels...)
	}

	err = s.store.WithinTx(ctx, func(tx domain.Tx) error {
		return s.reserve(ctx, tx, order, plan)
	})
	if err != nil {
		if s.metrics != nil {
			s.metrics.RecordOrderFailed(string(req.OrderType))
		}
		return "", err
	}

	if s.metrics != nil {
		s.metrics.RecordOrderCreated(string(order.OrderType))
	}
	s.logger.WithFields(log.Fields{
		"order_id":   order.ID,
		"order_type": order.OrderType,
	}).Info("order created")
	s.publishOrderEvent(kafka.EventTypeOrderCreated, order, map[string]interface{}{
		"source_wheelstack": order.AffectedWheelstacks.Source,
	})
	s.recordSnapshots(order)

	return order.ID, nil
}

// reserve выполняет шаги резервирования внутри транзакции. Условные
// обновления включают «свободность» ресурса в фильтр, поэтому проигравший
// конкурент получает ноль совпадений и чистый Conflict вместо молчаливой
// перезаписи чужого резерва.
func (s *Service) reserve(ctx context.Context, tx domain.Tx, order domain.Order, plan reservationPlan) error {
	if err := tx.Orders().Create(ctx, order); err != nil {
		return fmt.Errorf("insert pending order: %w", err)
	}

	// Источник: ячейка блокируется вместе со стопкой; у storage-источника
	// блокируется только стопка, состав хранилища меняется при завершении.
	if order.Source.PlacementKind.HasCells() {
		ref := order.Source.CellRef()
		matched, err := tx.Cells().Reserve(ctx, ref, order.ID, true)
		if err != nil {
			return fmt.Errorf("reserve source cell: %w", err)
		}
		if matched == 0 {
			return s.explainCellReserveFailure(ctx, tx, ref, "source cell", true)
		}
	} else {
		storage, err := tx.Storages().Get(ctx, order.Source.PlacementID)
		if err != nil {
			return fmt.Errorf("resolve source storage: %w", err)
		}
		if !storage.Contains(plan.sourceStack.ID) {
			return s.corruption("storage "+storage.ID,
				"wheelstack "+plan.sourceStack.ID+" left the element set between validation and reservation",
				log.Fields{"storage_id": storage.ID, "wheelstack_id": plan.sourceStack.ID})
		}
	}

	matched, err := tx.Wheelstacks().Block(ctx, plan.sourceStack.ID, order.ID)
	if err != nil {
		return fmt.Errorf("block source wheelstack: %w", err)
	}
	if matched == 0 {
		return s.explainStackBlockFailure(ctx, tx, plan.sourceStack.ID)
	}

	if err := s.reserveDestination(ctx, tx, order); err != nil {
		return err
	}

	if plan.destStack != nil {
		matched, err := tx.Wheelstacks().Block(ctx, plan.destStack.ID, order.ID)
		if err != nil {
			return fmt.Errorf("block destination wheelstack: %w", err)
		}
		if matched == 0 {
			return s.explainStackBlockFailure(ctx, tx, plan.destStack.ID)
		}
	}

	return nil
}

func (s *Service) reserveDestination(ctx context.Context, tx domain.Tx, order domain.Order) error {
	dest := order.Destination
	switch {
	case dest.IsExtra():
		// Extra element-ы принимают несколько заказов одновременно:
		// вместо блокировки заказ добавляется в их набор.
		matched, err := tx.ExtraElements().AddOrder(ctx, dest.PlacementID, dest.ExtraName(), order.ID)
		if err != nil {
			return fmt.Errorf("add order to extra element: %w", err)
		}
		if matched == 0 {
			element, getErr := tx.ExtraElements().Get(ctx, dest.PlacementID, dest.ExtraName())
			if getErr != nil {
				return fmt.Errorf("resolve extra element %q: %w", dest.ExtraName(), getErr)
			}
			return &domain.ConflictError{Resource: "extra element " + element.Name}
		}
		return nil

	case dest.PlacementKind == domain.PlacementStorage:
		// Назначение-хранилище не резервируется: состав меняется при
		// завершении, конфликтовать не с чем.
		if _, err := tx.Storages().Get(ctx, dest.PlacementID); err != nil {
			return fmt.Errorf("resolve destination storage: %w", err)
		}
		return nil

	default:
		forMerge := order.OrderType == domain.OrderTypeMergeWheelstacks
		ref := dest.CellRef()
		matched, err := tx.Cells().Reserve(ctx, ref, order.ID, forMerge)
		if err != nil {
			return fmt.Errorf("reserve destination cell: %w", err)
		}
		if matched == 0 {
			return s.explainCellReserveFailure(ctx, tx, ref, "destination cell", forMerge)
		}
		return nil
	}
}

// explainCellReserveFailure классифицирует нулевое совпадение условного
// резервирования: ячейка исчезла, занята конкурентом или сменила занятость.
func (s *Service) explainCellReserveFailure(ctx context.Context, tx domain.Tx, ref domain.CellRef, role string, wantOccupied bool) error {
	cell, err := tx.Cells().Get(ctx, ref)
	if err != nil {
		return fmt.Errorf("resolve %s %s: %w", role, cellName(ref), err)
	}
	if cell.Blocked {
		return &domain.ConflictError{Resource: role + " " + cellName(ref), BlockedBy: cell.BlockedBy}
	}
	if wantOccupied && !cell.Occupied() {
		return &domain.ConflictError{Resource: role + " " + cellName(ref) + " is no longer occupied"}
	}
	if !wantOccupied && cell.Occupied() {
		return &domain.ConflictError{Resource: role + " " + cellName(ref) + " is already occupied"}
	}
	return s.corruption(role+" "+cellName(ref), "conditional reserve matched nothing on a free cell",
		log.Fields{"cell": cellName(ref)})
}

func (s *Service) explainStackBlockFailure(ctx context.Context, tx domain.Tx, stackID string) error {
	stack, err := tx.Wheelstacks().Get(ctx, stackID)
	if err != nil {
		return s.corruption("wheelstack "+stackID, "wheelstack vanished during reservation",
			log.Fields{"wheelstack_id": stackID})
	}
	return &domain.ConflictError{Resource: "wheelstack " + stack.ID, BlockedBy: stack.LastOrder}
}

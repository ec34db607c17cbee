package orders

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/wms/internal/domain"
	"github.com/vladislavdragonenkov/wms/internal/messaging/kafka"
)

// Complete фиксирует перемещение: повторно проверяет владение блокировками,
// применяет мутации типа заказа и переводит запись в completed — всё в одной
// транзакции, без зазора между проверкой и мутацией. Отсутствие заказа в
// pending-разделе означает «уже разрешён» и отдаётся как ErrOrderNotFound.
// actor попадает в confirmedBy лабораторной записи и больше никуда.
func (s *Service) Complete(ctx context.Context, orderID, actor string) error {
	start := time.Now()
	defer s.observeDuration("complete", start)

	var completed domain.Order
	err := s.store.WithinTx(ctx, func(tx domain.Tx) error {
		order, err := tx.Orders().GetPending(ctx, orderID)
		if err != nil {
			return err
		}
		completed = order

		stack, err := s.revalidateReservation(ctx, tx, order)
		if err != nil {
			return err
		}

		switch order.OrderType {
		case domain.OrderTypeMoveWholeStack:
			err = s.completeWholeStack(ctx, tx, order, stack)
		case domain.OrderTypeMoveToLaboratory:
			err = s.completeToLaboratory(ctx, tx, order, stack, actor)
		case domain.OrderTypeMoveToProcessing:
			err = s.completeShipment(ctx, tx, order, stack, domain.WheelstackStatusShipped, domain.WheelStatusShipped)
		case domain.OrderTypeMoveToRejected:
			err = s.completeShipment(ctx, tx, order, stack, domain.WheelstackStatusRejected, domain.WheelStatusRejected)
		case domain.OrderTypeMoveToStorage:
			err = s.completeToStorage(ctx, tx, order, stack)
		case domain.OrderTypeMergeWheelstacks:
			err = s.completeMerge(ctx, tx, order, stack)
		default:
			err = s.corruption("order "+order.ID, "pending order carries unsupported type "+string(order.OrderType),
				log.Fields{"order_id": order.ID})
		}
		if err != nil {
			return err
		}

		matched, err := tx.Orders().Complete(ctx, order.ID, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("move order to completed: %w", err)
		}
		if matched == 0 {
			return s.corruption("order "+order.ID, "pending order vanished inside its own completion transaction",
				log.Fields{"order_id": order.ID})
		}
		return nil
	})
	if err != nil {
		if s.metrics != nil && !domain.IsNotFound(err) {
			s.metrics.RecordOrderFailed(string(completed.OrderType))
		}
		return err
	}

	if s.metrics != nil {
		s.metrics.RecordOrderCompleted(string(completed.OrderType))
	}
	s.logger.WithFields(log.Fields{
		"order_id":   completed.ID,
		"order_type": completed.OrderType,
	}).Info("order completed")
	s.publishOrderEvent(kafka.EventTypeOrderCompleted, completed, nil)
	s.recordSnapshots(completed)

	return nil
}

// revalidateReservation — защита от гонки с конкурентной отменой и от порчи
// данных: блокировки должны всё ещё принадлежать этому заказу.
func (s *Service) revalidateReservation(ctx context.Context, tx domain.Tx, order domain.Order) (domain.Wheelstack, error) {
	if order.Source.PlacementKind.HasCells() {
		ref := order.Source.CellRef()
		cell, err := tx.Cells().Get(ctx, ref)
		if err != nil {
			return domain.Wheelstack{}, fmt.Errorf("resolve source cell %s: %w", cellName(ref), err)
		}
		if cell.BlockedBy != order.ID {
			return domain.Wheelstack{}, s.corruption("cell "+cellName(ref),
				fmt.Sprintf("blockedBy %q does not match order %s", cell.BlockedBy, order.ID),
				log.Fields{"cell": cellName(ref), "order_id": order.ID, "blocked_by": cell.BlockedBy})
		}
	}

	stack, err := tx.Wheelstacks().Get(ctx, order.AffectedWheelstacks.Source)
	if err != nil {
		return domain.Wheelstack{}, s.corruption("order "+order.ID,
			"affected source wheelstack "+order.AffectedWheelstacks.Source+" does not exist",
			log.Fields{"order_id": order.ID, "wheelstack_id": order.AffectedWheelstacks.Source})
	}
	if !stack.Blocked || stack.LastOrder != order.ID {
		return domain.Wheelstack{}, s.corruption("wheelstack "+stack.ID,
			fmt.Sprintf("lastOrder %q does not match order %s", stack.LastOrder, order.ID),
			log.Fields{"wheelstack_id": stack.ID, "order_id": order.ID, "last_order": stack.LastOrder})
	}
	return stack, nil
}

// releaseSource убирает стопку из источника: очищает ячейку либо состав хранилища.
func (s *Service) releaseSource(ctx context.Context, tx domain.Tx, order domain.Order, stack domain.Wheelstack) error {
	if order.Source.PlacementKind.HasCells() {
		ref := order.Source.CellRef()
		matched, err := tx.Cells().ClearWheelstack(ctx, ref, order.ID)
		if err != nil {
			return fmt.Errorf("clear source cell: %w", err)
		}
		if matched == 0 {
			return s.corruption("cell "+cellName(ref), "source cell is no longer held by order "+order.ID,
				log.Fields{"cell": cellName(ref), "order_id": order.ID})
		}
		return nil
	}

	matched, err := tx.Storages().RemoveWheelstack(ctx, order.Source.PlacementID, stack.ID)
	if err != nil {
		return fmt.Errorf("remove wheelstack from storage: %w", err)
	}
	if matched == 0 {
		return s.corruption("storage "+order.Source.PlacementID,
			"wheelstack "+stack.ID+" is missing from the element set",
			log.Fields{"storage_id": order.Source.PlacementID, "wheelstack_id": stack.ID})
	}
	return nil
}

// setWheelStatuses каскадно обновляет статус колёс стопки.
func (s *Service) setWheelStatuses(ctx context.Context, tx domain.Tx, wheelIDs []string, status domain.WheelStatus) error {
	for _, id := range wheelIDs {
		wheel, err := tx.Wheels().Get(ctx, id)
		if err != nil {
			return s.corruption("wheel "+id, "wheelstack references missing wheel", log.Fields{"wheel_id": id})
		}
		wheel.Status = status
		if err := tx.Wheels().Save(ctx, wheel); err != nil {
			return fmt.Errorf("save wheel %s: %w", id, err)
		}
	}
	return nil
}

func (s *Service) completeWholeStack(ctx context.Context, tx domain.Tx, order domain.Order, stack domain.Wheelstack) error {
	if err := s.releaseSource(ctx, tx, order, stack); err != nil {
		return err
	}

	destRef := order.Destination.CellRef()
	matched, err := tx.Cells().PlaceWheelstack(ctx, destRef, order.ID, stack.ID)
	if err != nil {
		return fmt.Errorf("place wheelstack into destination cell: %w", err)
	}
	if matched == 0 {
		return s.corruption("cell "+cellName(destRef), "destination cell is no longer held by order "+order.ID,
			log.Fields{"cell": cellName(destRef), "order_id": order.ID})
	}

	stack.Placement = domain.WheelstackPlacement{
		Kind:        order.Destination.PlacementKind,
		PlacementID: order.Destination.PlacementID,
		Row:         order.Destination.Row,
		Col:         order.Destination.Col,
	}
	stack.Status = domain.StatusForPlacement(order.Destination.PlacementKind)
	stack.Blocked = false
	if err := tx.Wheelstacks().Save(ctx, stack); err != nil {
		return fmt.Errorf("save wheelstack: %w", err)
	}

	return s.setWheelStatuses(ctx, tx, stack.Wheels, domain.WheelStatusForPlacement(order.Destination.PlacementKind))
}

// completeShipment обслуживает processing и rejected: стопка покидает
// отслеживаемую зону и остаётся терминально заблокированной.
func (s *Service) completeShipment(ctx context.Context, tx domain.Tx, order domain.Order, stack domain.Wheelstack,
	stackStatus domain.WheelstackStatus, wheelStatus domain.WheelStatus) error {

	if err := s.releaseSource(ctx, tx, order, stack); err != nil {
		return err
	}

	stack.Status = stackStatus
	stack.Blocked = true
	if err := tx.Wheelstacks().Save(ctx, stack); err != nil {
		return fmt.Errorf("save wheelstack: %w", err)
	}
	if err := s.setWheelStatuses(ctx, tx, stack.Wheels, wheelStatus); err != nil {
		return err
	}

	return s.removeOrderFromExtra(ctx, tx, order)
}

func (s *Service) completeToLaboratory(ctx context.Context, tx domain.Tx, order domain.Order, stack domain.Wheelstack, actor string) error {
	chosen := order.ChosenWheel
	remaining := make([]string, 0, len(stack.Wheels))
	found := false
	for _, id := range stack.Wheels {
		if id == chosen {
			found = true
			continue
		}
		remaining = append(remaining, id)
	}
	if !found {
		return s.corruption("order "+order.ID, "chosen wheel "+chosen+" is no longer part of wheelstack "+stack.ID,
			log.Fields{"order_id": order.ID, "wheel_id": chosen, "wheelstack_id": stack.ID})
	}

	// Позиции остаются плотными 0..n-1 после извлечения.
	for position, id := range remaining {
		wheel, err := tx.Wheels().Get(ctx, id)
		if err != nil {
			return s.corruption("wheel "+id, "wheelstack references missing wheel", log.Fields{"wheel_id": id})
		}
		wheel.Slot = &domain.WheelSlot{WheelstackID: stack.ID, Position: position}
		if err := tx.Wheels().Save(ctx, wheel); err != nil {
			return fmt.Errorf("save wheel %s: %w", id, err)
		}
	}

	srcRef := order.Source.CellRef()
	stack.Wheels = remaining
	if len(remaining) == 0 {
		// Пустая стопка уходит из ячейки и остаётся терминально заблокированной.
		matched, err := tx.Cells().ClearWheelstack(ctx, srcRef, order.ID)
		if err != nil {
			return fmt.Errorf("clear source cell: %w", err)
		}
		if matched == 0 {
			return s.corruption("cell "+cellName(srcRef), "source cell is no longer held by order "+order.ID,
				log.Fields{"cell": cellName(srcRef), "order_id": order.ID})
		}
		stack.Blocked = true
		stack.Status = domain.WheelstackStatusShipped
	} else {
		matched, err := tx.Cells().Release(ctx, srcRef, order.ID)
		if err != nil {
			return fmt.Errorf("release source cell: %w", err)
		}
		if matched == 0 {
			return s.corruption("cell "+cellName(srcRef), "source cell is no longer held by order "+order.ID,
				log.Fields{"cell": cellName(srcRef), "order_id": order.ID})
		}
		stack.Blocked = false
	}
	if err := tx.Wheelstacks().Save(ctx, stack); err != nil {
		return fmt.Errorf("save wheelstack: %w", err)
	}

	wheel, err := tx.Wheels().Get(ctx, chosen)
	if err != nil {
		return s.corruption("wheel "+chosen, "chosen wheel does not exist", log.Fields{"wheel_id": chosen})
	}
	wheel.Status = domain.WheelStatusLaboratory
	wheel.Slot = nil
	if err := tx.Wheels().Save(ctx, wheel); err != nil {
		return fmt.Errorf("save chosen wheel: %w", err)
	}

	record := domain.TestRecord{
		WheelID:     chosen,
		ArrivalDate: time.Now().UTC(),
		ConfirmedBy: actor,
	}
	if err := tx.Batches().AppendTestRecord(ctx, stack.BatchNumber, record); err != nil {
		return fmt.Errorf("append laboratory test record: %w", err)
	}

	return s.removeOrderFromExtra(ctx, tx, order)
}

func (s *Service) completeToStorage(ctx context.Context, tx domain.Tx, order domain.Order, stack domain.Wheelstack) error {
	if err := s.releaseSource(ctx, tx, order, stack); err != nil {
		return err
	}

	if err := tx.Storages().AddWheelstack(ctx, order.Destination.PlacementID, stack.ID); err != nil {
		return fmt.Errorf("add wheelstack to storage: %w", err)
	}

	stack.Placement = domain.WheelstackPlacement{
		Kind:        domain.PlacementStorage,
		PlacementID: order.Destination.PlacementID,
		Row:         domain.StorageRowSentinel,
		Col:         domain.StorageRowSentinel,
	}
	stack.Status = domain.WheelstackStatusStorage
	stack.Blocked = false
	if err := tx.Wheelstacks().Save(ctx, stack); err != nil {
		return fmt.Errorf("save wheelstack: %w", err)
	}

	return s.setWheelStatuses(ctx, tx, stack.Wheels, domain.WheelStatusStorage)
}

func (s *Service) completeMerge(ctx context.Context, tx domain.Tx, order domain.Order, stack domain.Wheelstack) error {
	destStack, err := tx.Wheelstacks().Get(ctx, order.AffectedWheelstacks.Destination)
	if err != nil {
		return s.corruption("order "+order.ID,
			"affected destination wheelstack "+order.AffectedWheelstacks.Destination+" does not exist",
			log.Fields{"order_id": order.ID, "wheelstack_id": order.AffectedWheelstacks.Destination})
	}
	if !destStack.Blocked || destStack.LastOrder != order.ID {
		return s.corruption("wheelstack "+destStack.ID,
			fmt.Sprintf("lastOrder %q does not match order %s", destStack.LastOrder, order.ID),
			log.Fields{"wheelstack_id": destStack.ID, "order_id": order.ID})
	}
	if len(destStack.Wheels)+len(stack.Wheels) > destStack.MaxSize {
		return s.corruption("wheelstack "+destStack.ID,
			fmt.Sprintf("merge would overflow capacity: %d + %d > %d",
				len(destStack.Wheels), len(stack.Wheels), destStack.MaxSize),
			log.Fields{"order_id": order.ID, "wheelstack_id": destStack.ID})
	}

	// Колёса назначения сохраняют порядок, исходные дописываются сверху.
	base := len(destStack.Wheels)
	wheelStatus := domain.WheelStatusForPlacement(destStack.Placement.Kind)
	for offset, id := range stack.Wheels {
		wheel, err := tx.Wheels().Get(ctx, id)
		if err != nil {
			return s.corruption("wheel "+id, "wheelstack references missing wheel", log.Fields{"wheel_id": id})
		}
		wheel.Slot = &domain.WheelSlot{WheelstackID: destStack.ID, Position: base + offset}
		wheel.Status = wheelStatus
		if err := tx.Wheels().Save(ctx, wheel); err != nil {
			return fmt.Errorf("save wheel %s: %w", id, err)
		}
	}

	if err := s.releaseSource(ctx, tx, order, stack); err != nil {
		return err
	}

	// Исходная стопка логически разобрана, запись остаётся навсегда.
	movedWheels := stack.Wheels
	stack.Wheels = nil
	stack.Status = domain.WheelstackStatusDeconstructed
	stack.Blocked = true
	if err := tx.Wheelstacks().Save(ctx, stack); err != nil {
		return fmt.Errorf("save source wheelstack: %w", err)
	}

	destStack.Wheels = append(destStack.Wheels, movedWheels...)
	destStack.Blocked = false
	if err := tx.Wheelstacks().Save(ctx, destStack); err != nil {
		return fmt.Errorf("save destination wheelstack: %w", err)
	}

	destRef := order.Destination.CellRef()
	matched, err := tx.Cells().Release(ctx, destRef, order.ID)
	if err != nil {
		return fmt.Errorf("release destination cell: %w", err)
	}
	if matched == 0 {
		return s.corruption("cell "+cellName(destRef), "destination cell is no longer held by order "+order.ID,
			log.Fields{"cell": cellName(destRef), "order_id": order.ID})
	}
	return nil
}

func (s *Service) removeOrderFromExtra(ctx context.Context, tx domain.Tx, order domain.Order) error {
	dest := order.Destination
	matched, err := tx.ExtraElements().RemoveOrder(ctx, dest.PlacementID, dest.ExtraName(), order.ID)
	if err != nil {
		return fmt.Errorf("remove order from extra element: %w", err)
	}
	if matched == 0 {
		return s.corruption("extra element "+dest.ExtraName(),
			"order "+order.ID+" is missing from the element order set",
			log.Fields{"extra_element": dest.ExtraName(), "order_id": order.ID})
	}
	return nil
}

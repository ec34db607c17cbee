package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/wms/internal/domain"
	"github.com/vladislavdragonenkov/wms/internal/messaging/kafka"
)

// Cancel откатывает резервирование, не выполняя перемещения: снимает
// блокировки с источника и назначения и переводит запись в canceled.
// Сбрасываются только флаги блокировки — бизнес-статусы стопки и колёс
// остаются как есть.
func (s *Service) Cancel(ctx context.Context, orderID, reason string) error {
	start := time.Now()
	defer s.observeDuration("cancel", start)

	if reason == "" {
		reason = domain.DefaultCancellationReason
	}

	var canceled domain.Order
	err := s.store.WithinTx(ctx, func(tx domain.Tx) error {
		order, err := tx.Orders().GetPending(ctx, orderID)
		if err != nil {
			return err
		}
		canceled = order

		if _, err := s.revalidateReservation(ctx, tx, order); err != nil {
			return err
		}
		if err := s.rollbackReservation(ctx, tx, order); err != nil {
			return err
		}

		matched, err := tx.Orders().Cancel(ctx, order.ID, reason, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("move order to canceled: %w", err)
		}
		if matched == 0 {
			return s.corruption("order "+order.ID, "pending order vanished inside its own cancellation transaction",
				log.Fields{"order_id": order.ID})
		}
		return nil
	})
	if err != nil {
		if s.metrics != nil && !domain.IsNotFound(err) {
			s.metrics.RecordOrderFailed(string(canceled.OrderType))
		}
		return err
	}

	if s.metrics != nil {
		s.metrics.RecordOrderCanceled(string(canceled.OrderType))
	}
	s.logger.WithFields(log.Fields{
		"order_id":   canceled.ID,
		"order_type": canceled.OrderType,
		"reason":     reason,
	}).Info("order canceled")
	s.publishOrderEvent(kafka.EventTypeOrderCanceled, canceled, map[string]interface{}{
		"reason": reason,
	})
	s.recordSnapshots(canceled)

	return nil
}

// rollbackReservation — инверсия резервирования, не завершения: ячейки и
// стопки разблокируются, ссылки и составы не трогаются.
func (s *Service) rollbackReservation(ctx context.Context, tx domain.Tx, order domain.Order) error {
	if order.Source.PlacementKind.HasCells() {
		ref := order.Source.CellRef()
		matched, err := tx.Cells().Release(ctx, ref, order.ID)
		if err != nil {
			return fmt.Errorf("release source cell: %w", err)
		}
		if matched == 0 {
			return s.corruption("cell "+cellName(ref), "source cell is no longer held by order "+order.ID,
				log.Fields{"cell": cellName(ref), "order_id": order.ID})
		}
	} else {
		// Состав storage-источника не менялся, но lastChange штампуется,
		// чтобы опрашивающие клиенты увидели снятие блокировки стопки.
		if err := tx.Storages().Touch(ctx, order.Source.PlacementID); err != nil {
			return fmt.Errorf("touch source storage: %w", err)
		}
	}

	if _, err := tx.Wheelstacks().Unblock(ctx, order.AffectedWheelstacks.Source); err != nil {
		return fmt.Errorf("unblock source wheelstack: %w", err)
	}

	switch {
	case order.Destination.IsExtra():
		matched, err := tx.ExtraElements().RemoveOrder(ctx, order.Destination.PlacementID, order.Destination.ExtraName(), order.ID)
		if err != nil {
			return fmt.Errorf("remove order from extra element: %w", err)
		}
		if matched == 0 {
			return s.corruption("extra element "+order.Destination.ExtraName(),
				"order "+order.ID+" is missing from the element order set",
				log.Fields{"extra_element": order.Destination.ExtraName(), "order_id": order.ID})
		}
	case order.Destination.PlacementKind == domain.PlacementStorage:
		if err := tx.Storages().Touch(ctx, order.Destination.PlacementID); err != nil {
			return fmt.Errorf("touch destination storage: %w", err)
		}
	default:
		ref := order.Destination.CellRef()
		matched, err := tx.Cells().Release(ctx, ref, order.ID)
		if err != nil {
			return fmt.Errorf("release destination cell: %w", err)
		}
		if matched == 0 {
			return s.corruption("cell "+cellName(ref), "destination cell is no longer held by order "+order.ID,
				log.Fields{"cell": cellName(ref), "order_id": order.ID})
		}
	}

	if order.AffectedWheelstacks.Destination != "" {
		if _, err := tx.Wheelstacks().Unblock(ctx, order.AffectedWheelstacks.Destination); err != nil {
			return fmt.Errorf("unblock destination wheelstack: %w", err)
		}
	}
	return nil
}

// CancelBulk отменяет пачку заказов одной транзакцией. Владение блокировками
// каждого заказа перепроверяется так же, как в одиночной отмене. Ячейки
// каждого grid-а разблокируются одним групповым обновлением вместо N
// отдельных; стопки и storage-штампы обновляются поштучно — у хранилищ нет
// поячеечной структуры, которую можно было бы батчить. Уже разрешённые
// заказы пропускаются.
func (s *Service) CancelBulk(ctx context.Context, orderIDs []string, reason string) ([]string, error) {
	start := time.Now()
	defer s.observeDuration("cancel_bulk", start)

	if reason == "" {
		reason = domain.DefaultCancellationReason
	}

	var canceled []domain.Order
	err := s.store.WithinTx(ctx, func(tx domain.Tx) error {
		canceled = canceled[:0]

		type placementKey struct {
			kind domain.PlacementKind
			id   string
		}
		cellOrders := make(map[placementKey][]string)

		for _, id := range orderIDs {
			order, err := tx.Orders().GetPending(ctx, id)
			if err != nil {
				if errors.Is(err, domain.ErrOrderNotFound) {
					s.logger.WithField("order_id", id).Debug("bulk cancel: order already resolved, skipping")
					continue
				}
				return err
			}

			if _, err := s.revalidateReservation(ctx, tx, order); err != nil {
				return err
			}

			if order.Source.PlacementKind.HasCells() {
				key := placementKey{order.Source.PlacementKind, order.Source.PlacementID}
				cellOrders[key] = append(cellOrders[key], order.ID)
			} else if err := tx.Storages().Touch(ctx, order.Source.PlacementID); err != nil {
				return fmt.Errorf("touch source storage: %w", err)
			}

			switch {
			case order.Destination.IsExtra():
				if err := s.removeOrderFromExtra(ctx, tx, order); err != nil {
					return err
				}
			case order.Destination.PlacementKind == domain.PlacementStorage:
				if err := tx.Storages().Touch(ctx, order.Destination.PlacementID); err != nil {
					return fmt.Errorf("touch destination storage: %w", err)
				}
			default:
				key := placementKey{order.Destination.PlacementKind, order.Destination.PlacementID}
				cellOrders[key] = append(cellOrders[key], order.ID)
			}

			if _, err := tx.Wheelstacks().Unblock(ctx, order.AffectedWheelstacks.Source); err != nil {
				return fmt.Errorf("unblock source wheelstack: %w", err)
			}
			if order.AffectedWheelstacks.Destination != "" {
				if _, err := tx.Wheelstacks().Unblock(ctx, order.AffectedWheelstacks.Destination); err != nil {
					return fmt.Errorf("unblock destination wheelstack: %w", err)
				}
			}

			matched, err := tx.Orders().Cancel(ctx, order.ID, reason, time.Now().UTC())
			if err != nil {
				return fmt.Errorf("move order to canceled: %w", err)
			}
			if matched == 1 {
				canceled = append(canceled, order)
			}
		}

		// Каждый элемент ids отвечает ровно одной удерживаемой ячейке,
		// поэтому недобор совпадений означает перехваченный резерв.
		for key, ids := range cellOrders {
			matched, err := tx.Cells().ReleaseMany(ctx, key.kind, key.id, ids)
			if err != nil {
				return fmt.Errorf("release cells on %s/%s: %w", key.kind, key.id, err)
			}
			if matched != int64(len(ids)) {
				return s.corruption("placement "+string(key.kind)+"/"+key.id,
					fmt.Sprintf("released %d of %d cells held by the canceled orders", matched, len(ids)),
					log.Fields{"placement_kind": key.kind, "placement_id": key.id})
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(canceled))
	for _, order := range canceled {
		if s.metrics != nil {
			s.metrics.RecordOrderCanceled(string(order.OrderType))
		}
		s.publishOrderEvent(kafka.EventTypeOrderCanceled, order, map[string]interface{}{"reason": reason})
		s.recordSnapshots(order)
		ids = append(ids, order.ID)
	}
	return ids, nil
}

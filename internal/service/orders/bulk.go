package orders

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/wms/internal/domain"
)

// CreateBulk создаёт processing/rejected заказы для всех подходящих стопок
// партии в пределах одного размещения. Batch-gating проверяется до любых
// записей: непротестированная партия не оставляет следов. Стопки, занятые
// конкурентами к моменту резервирования, пропускаются с предупреждением —
// остальная пачка не откатывается из-за одной.
func (s *Service) CreateBulk(ctx context.Context, req BulkCreateRequest) ([]string, error) {
	start := time.Now()
	defer s.observeDuration("create_bulk", start)

	if req.OrderType != domain.OrderTypeMoveToProcessing && req.OrderType != domain.OrderTypeMoveToRejected {
		return nil, domain.NewValidationError("bulk creation supports only processing/rejected orders, got %q", req.OrderType)
	}

	batch, err := s.store.Batches().Get(ctx, req.BatchNumber)
	if err != nil {
		return nil, fmt.Errorf("resolve batch %q: %w", req.BatchNumber, err)
	}
	if req.OrderType == domain.OrderTypeMoveToProcessing {
		if err := batch.GateProcessing(); err != nil {
			return nil, err
		}
	} else {
		if err := batch.GateRejected(); err != nil {
			return nil, err
		}
	}

	stacks, err := s.store.Wheelstacks().ListByBatch(ctx, req.BatchNumber)
	if err != nil {
		return nil, fmt.Errorf("list wheelstacks of batch %q: %w", req.BatchNumber, err)
	}

	var ids []string
	for _, stack := range stacks {
		if stack.Blocked {
			continue
		}
		if stack.Placement.Kind != req.ScopeKind || stack.Placement.PlacementID != req.ScopeID {
			continue
		}
		switch stack.Status {
		case domain.WheelstackStatusDeconstructed, domain.WheelstackStatusShipped, domain.WheelstackStatusRejected:
			continue
		}

		createReq := CreateRequest{
			OrderType:   req.OrderType,
			Destination: req.Destination,
		}
		if stack.Placement.Kind == domain.PlacementStorage {
			createReq.Source = domain.EndpointRef{
				PlacementKind: domain.PlacementStorage,
				PlacementID:   stack.Placement.PlacementID,
			}
			createReq.SourceWheelstack = stack.ID
		} else {
			createReq.Source = domain.EndpointRef{
				PlacementKind: stack.Placement.Kind,
				PlacementID:   stack.Placement.PlacementID,
				Row:           stack.Placement.Row,
				Col:           stack.Placement.Col,
			}
		}

		id, err := s.Create(ctx, createReq)
		if err != nil {
			if domain.IsConflict(err) {
				s.logger.WithError(err).WithFields(log.Fields{
					"wheelstack_id": stack.ID,
					"batch_number":  req.BatchNumber,
				}).Warn("bulk create: wheelstack taken by a concurrent order, skipping")
				continue
			}
			return ids, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

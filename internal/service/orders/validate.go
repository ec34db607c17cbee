package orders

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/wms/internal/domain"
)

// reservationPlan — результат валидации: всё, что нужно транзакции
// резервирования, без повторных чтений.
type reservationPlan struct {
	sourceStack domain.Wheelstack
	destStack   *domain.Wheelstack // заполняется только для merge
}

// validateCreate прогоняет чеклист предусловий типа заказа.
// Проверки выполняются жадно: первая провалившаяся прерывает валидацию.
// Чтения идут вне транзакции; гонку закрывают условные обновления
// в транзакции резервирования.
func (s *Service) validateCreate(ctx context.Context, req CreateRequest) (reservationPlan, error) {
	var plan reservationPlan

	if !req.OrderType.Valid() {
		return plan, domain.NewValidationError("unsupported order type %q", req.OrderType)
	}

	stack, err := s.resolveSourceStack(ctx, req)
	if err != nil {
		return plan, err
	}
	plan.sourceStack = stack

	switch req.OrderType {
	case domain.OrderTypeMoveWholeStack:
		if !req.Destination.PlacementKind.HasCells() || req.Destination.IsExtra() {
			return plan, domain.NewValidationError("moveWholeStack destination must be a grid or platform cell")
		}
		if _, err := s.checkDestinationCell(ctx, req.Destination, false); err != nil {
			return plan, err
		}

	case domain.OrderTypeMoveToLaboratory:
		if req.Source.PlacementKind == domain.PlacementStorage {
			return plan, domain.NewValidationError("moveToLaboratory source must be a grid or platform cell")
		}
		if err := s.checkLaboratoryDestination(ctx, req, stack); err != nil {
			return plan, err
		}

	case domain.OrderTypeMoveToProcessing:
		if err := s.checkCraneDestination(ctx, req.Destination); err != nil {
			return plan, err
		}
		batch, err := s.store.Batches().Get(ctx, stack.BatchNumber)
		if err != nil {
			return plan, fmt.Errorf("resolve batch %q: %w", stack.BatchNumber, err)
		}
		if err := batch.GateProcessing(); err != nil {
			return plan, err
		}

	case domain.OrderTypeMoveToRejected:
		if err := s.checkCraneDestination(ctx, req.Destination); err != nil {
			return plan, err
		}
		batch, err := s.store.Batches().Get(ctx, stack.BatchNumber)
		if err != nil {
			return plan, fmt.Errorf("resolve batch %q: %w", stack.BatchNumber, err)
		}
		if err := batch.GateRejected(); err != nil {
			return plan, err
		}

	case domain.OrderTypeMoveToStorage:
		if req.Source.PlacementKind == domain.PlacementStorage {
			return plan, domain.NewValidationError("moveToStorage source is already a storage")
		}
		if req.Destination.PlacementKind != domain.PlacementStorage {
			return plan, domain.NewValidationError("moveToStorage destination must be a storage")
		}
		if _, err := s.store.Storages().Get(ctx, req.Destination.PlacementID); err != nil {
			return plan, fmt.Errorf("resolve destination storage %q: %w", req.Destination.PlacementID, err)
		}

	case domain.OrderTypeMergeWheelstacks:
		destStack, err := s.checkMergeDestination(ctx, req.Destination, stack)
		if err != nil {
			return plan, err
		}
		plan.destStack = &destStack
	}

	return plan, nil
}

// resolveSourceStack находит исходную стопку, ветвясь по виду размещения
// ровно один раз.
func (s *Service) resolveSourceStack(ctx context.Context, req CreateRequest) (domain.Wheelstack, error) {
	if req.Source.PlacementKind == domain.PlacementStorage {
		return s.resolveStorageSource(ctx, req)
	}
	if !req.Source.PlacementKind.HasCells() || req.Source.IsExtra() {
		return domain.Wheelstack{}, domain.NewValidationError("order source must be a cell or a storage wheelstack")
	}
	return s.resolveCellSource(ctx, req.Source.CellRef())
}

func (s *Service) resolveCellSource(ctx context.Context, ref domain.CellRef) (domain.Wheelstack, error) {
	cell, err := s.store.Cells().Get(ctx, ref)
	if err != nil {
		return domain.Wheelstack{}, fmt.Errorf("resolve source cell %s: %w", cellName(ref), err)
	}
	if cell.Blocked {
		return domain.Wheelstack{}, &domain.ConflictError{Resource: "source cell " + cellName(ref), BlockedBy: cell.BlockedBy}
	}
	if !cell.Occupied() {
		return domain.Wheelstack{}, domain.NewValidationError("source cell %s is empty", cellName(ref))
	}

	stack, err := s.store.Wheelstacks().Get(ctx, cell.WheelstackID)
	if err != nil {
		if errors.Is(err, domain.ErrWheelstackNotFound) {
			// Ячейка ссылается на несуществующую стопку — порча данных,
			// никогда не чинится молча.
			return domain.Wheelstack{}, s.corruption("cell "+cellName(ref),
				"cell references missing wheelstack "+cell.WheelstackID,
				log.Fields{"cell": cellName(ref), "wheelstack_id": cell.WheelstackID})
		}
		return domain.Wheelstack{}, err
	}
	if stack.Blocked {
		return domain.Wheelstack{}, &domain.ConflictError{Resource: "wheelstack " + stack.ID, BlockedBy: stack.LastOrder}
	}
	if stack.Placement.Kind != ref.PlacementKind || stack.Placement.PlacementID != ref.PlacementID ||
		stack.Placement.Row != ref.Row || stack.Placement.Col != ref.Col {
		return domain.Wheelstack{}, s.corruption("wheelstack "+stack.ID,
			"placement fields do not match cell "+cellName(ref),
			log.Fields{"cell": cellName(ref), "wheelstack_id": stack.ID})
	}
	return stack, nil
}

func (s *Service) resolveStorageSource(ctx context.Context, req CreateRequest) (domain.Wheelstack, error) {
	if req.SourceWheelstack == "" {
		return domain.Wheelstack{}, domain.NewValidationError("storage source requires an explicit wheelstack id")
	}
	storage, err := s.store.Storages().Get(ctx, req.Source.PlacementID)
	if err != nil {
		return domain.Wheelstack{}, fmt.Errorf("resolve source storage %q: %w", req.Source.PlacementID, err)
	}
	stack, err := s.store.Wheelstacks().Get(ctx, req.SourceWheelstack)
	if err != nil {
		return domain.Wheelstack{}, fmt.Errorf("resolve source wheelstack %q: %w", req.SourceWheelstack, err)
	}
	if stack.Blocked {
		return domain.Wheelstack{}, &domain.ConflictError{Resource: "wheelstack " + stack.ID, BlockedBy: stack.LastOrder}
	}
	if stack.Placement.Kind != domain.PlacementStorage || stack.Placement.PlacementID != storage.ID {
		return domain.Wheelstack{}, domain.NewValidationError("wheelstack %s is not placed in storage %s", stack.ID, storage.ID)
	}
	if !storage.Contains(stack.ID) {
		return domain.Wheelstack{}, s.corruption("storage "+storage.ID,
			"wheelstack "+stack.ID+" claims storage placement but is missing from the element set",
			log.Fields{"storage_id": storage.ID, "wheelstack_id": stack.ID})
	}
	return stack, nil
}

// checkDestinationCell валидирует координатное назначение.
// forMerge=true требует занятую ячейку, false — свободную.
func (s *Service) checkDestinationCell(ctx context.Context, ref domain.EndpointRef, forMerge bool) (domain.Cell, error) {
	cell, err := s.store.Cells().Get(ctx, ref.CellRef())
	if err != nil {
		return domain.Cell{}, fmt.Errorf("resolve destination cell %s: %w", cellName(ref.CellRef()), err)
	}
	if cell.Blocked {
		return domain.Cell{}, &domain.ConflictError{Resource: "destination cell " + cellName(ref.CellRef()), BlockedBy: cell.BlockedBy}
	}
	if !forMerge && cell.Occupied() {
		return domain.Cell{}, &domain.ConflictError{Resource: "destination cell " + cellName(ref.CellRef()) + " is already occupied"}
	}
	if forMerge && !cell.Occupied() {
		return domain.Cell{}, domain.NewValidationError("merge destination cell %s is empty", cellName(ref.CellRef()))
	}
	return cell, nil
}

func (s *Service) checkLaboratoryDestination(ctx context.Context, req CreateRequest, stack domain.Wheelstack) error {
	if !req.Destination.IsExtra() {
		return domain.NewValidationError("moveToLaboratory destination must be an extra element")
	}
	element, err := s.store.ExtraElements().Get(ctx, req.Destination.PlacementID, req.Destination.ExtraName())
	if err != nil {
		return fmt.Errorf("resolve extra element %q: %w", req.Destination.ExtraName(), err)
	}
	if element.Kind != domain.ExtraKindLaboratory {
		return domain.NewValidationError("extra element %q is not a laboratory", element.Name)
	}
	if element.Blocked {
		return &domain.ConflictError{Resource: "extra element " + element.Name}
	}

	if req.ChosenWheel == "" {
		return domain.NewValidationError("moveToLaboratory requires a chosen wheel")
	}
	if _, err := s.store.Wheels().Get(ctx, req.ChosenWheel); err != nil {
		return fmt.Errorf("resolve chosen wheel %q: %w", req.ChosenWheel, err)
	}
	for _, id := range stack.Wheels {
		if id == req.ChosenWheel {
			return nil
		}
	}
	return domain.NewValidationError("wheel %s does not belong to wheelstack %s", req.ChosenWheel, stack.ID)
}

func (s *Service) checkCraneDestination(ctx context.Context, ref domain.EndpointRef) error {
	if !ref.IsExtra() {
		return domain.NewValidationError("processing/rejected destination must be an extra element")
	}
	element, err := s.store.ExtraElements().Get(ctx, ref.PlacementID, ref.ExtraName())
	if err != nil {
		return fmt.Errorf("resolve extra element %q: %w", ref.ExtraName(), err)
	}
	if element.Blocked {
		return &domain.ConflictError{Resource: "extra element " + element.Name}
	}
	return nil
}

func (s *Service) checkMergeDestination(ctx context.Context, ref domain.EndpointRef, source domain.Wheelstack) (domain.Wheelstack, error) {
	if !ref.PlacementKind.HasCells() || ref.IsExtra() {
		return domain.Wheelstack{}, domain.NewValidationError("merge destination must be a grid or platform cell")
	}
	cell, err := s.checkDestinationCell(ctx, ref, true)
	if err != nil {
		return domain.Wheelstack{}, err
	}

	destStack, err := s.store.Wheelstacks().Get(ctx, cell.WheelstackID)
	if err != nil {
		if errors.Is(err, domain.ErrWheelstackNotFound) {
			return domain.Wheelstack{}, s.corruption("cell "+cellName(ref.CellRef()),
				"cell references missing wheelstack "+cell.WheelstackID,
				log.Fields{"cell": cellName(ref.CellRef()), "wheelstack_id": cell.WheelstackID})
		}
		return domain.Wheelstack{}, err
	}
	if destStack.Blocked {
		return domain.Wheelstack{}, &domain.ConflictError{Resource: "wheelstack " + destStack.ID, BlockedBy: destStack.LastOrder}
	}
	if destStack.ID == source.ID {
		return domain.Wheelstack{}, domain.NewValidationError("merge source and destination wheelstacks must differ")
	}
	if destStack.BatchNumber != source.BatchNumber {
		return domain.Wheelstack{}, domain.NewValidationError(
			"merge requires a shared batch: source %q, destination %q", source.BatchNumber, destStack.BatchNumber)
	}
	if len(destStack.Wheels)+len(source.Wheels) > destStack.MaxSize {
		return domain.Wheelstack{}, domain.NewValidationError(
			"merge exceeds destination capacity: %d + %d > %d",
			len(destStack.Wheels), len(source.Wheels), destStack.MaxSize)
	}
	return destStack, nil
}

// corruption фиксирует нарушение межсущностного инварианта: лог уровня error
// с полным контекстом, автоматического ремонта нет.
func (s *Service) corruption(resource, detail string, fields log.Fields) error {
	err := &domain.CorruptionError{Resource: resource, Detail: detail}
	s.logger.WithFields(fields).WithError(err).Error("data corruption detected")
	return err
}

func cellName(ref domain.CellRef) string {
	return fmt.Sprintf("%s/%s(%s,%s)", ref.PlacementKind, ref.PlacementID, ref.Row, ref.Col)
}

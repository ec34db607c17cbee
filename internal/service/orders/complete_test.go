package orders

import (
	"context"
	"errors"
	"testing"

	"github.com/vladislavdragonenkov/wms/internal/domain"
)

func TestComplete_MoveWholeStack(t *testing.T) {
	svc, store := newFixture(t)
	ctx := context.Background()

	id := mustCreate(t, svc, wholeStackRequest())
	if err := svc.Complete(ctx, id, "petrov"); err != nil {
		t.Fatalf("complete order: %v", err)
	}

	source, err := store.Cells().Get(ctx, gridCellRef("A", "1"))
	if err != nil {
		t.Fatalf("get source cell: %v", err)
	}
	if source.Occupied() || source.Blocked {
		t.Fatalf("source cell must be cleared, got wheelstack=%q blocked=%v", source.WheelstackID, source.Blocked)
	}

	dest, err := store.Cells().Get(ctx, gridCellRef("B", "1"))
	if err != nil {
		t.Fatalf("get destination cell: %v", err)
	}
	if dest.WheelstackID != "stackA" || dest.Blocked {
		t.Fatalf("destination cell must hold stackA unblocked, got wheelstack=%q blocked=%v", dest.WheelstackID, dest.Blocked)
	}

	stack, err := store.Wheelstacks().Get(ctx, "stackA")
	if err != nil {
		t.Fatalf("get wheelstack: %v", err)
	}
	if stack.Blocked {
		t.Fatal("wheelstack must be unblocked after completion")
	}
	if stack.Placement.Row != "B" || stack.Placement.Col != "1" {
		t.Fatalf("wheelstack placement must follow the move, got %s/%s", stack.Placement.Row, stack.Placement.Col)
	}
	if stack.Status != domain.WheelstackStatusGrid {
		t.Fatalf("expected grid status, got %s", stack.Status)
	}

	order, err := store.Orders().Get(ctx, id)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if order.State != domain.LifecycleCompleted || order.CompletedAt == nil {
		t.Fatalf("order must be completed with a timestamp, got state=%s", order.State)
	}
}

func TestComplete_Twice(t *testing.T) {
	svc, _ := newFixture(t)
	ctx := context.Background()

	id := mustCreate(t, svc, wholeStackRequest())
	if err := svc.Complete(ctx, id, ""); err != nil {
		t.Fatalf("first completion: %v", err)
	}
	if err := svc.Complete(ctx, id, ""); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("second completion must report an already resolved order, got %v", err)
	}
}

func TestComplete_ToLaboratory(t *testing.T) {
	svc, store := newFixture(t)
	ctx := context.Background()

	id := mustCreate(t, svc, CreateRequest{
		OrderType:   domain.OrderTypeMoveToLaboratory,
		Source:      gridEndpoint("A", "1"),
		Destination: extraEndpoint(labName),
		ChosenWheel: "w2",
	})
	if err := svc.Complete(ctx, id, "ivanova"); err != nil {
		t.Fatalf("complete laboratory order: %v", err)
	}

	stack, err := store.Wheelstacks().Get(ctx, "stackA")
	if err != nil {
		t.Fatalf("get wheelstack: %v", err)
	}
	if len(stack.Wheels) != 2 || stack.Wheels[0] != "w1" || stack.Wheels[1] != "w3" {
		t.Fatalf("expected wheels [w1 w3], got %v", stack.Wheels)
	}
	if stack.Blocked {
		t.Fatal("wheelstack must stay available after a single extraction")
	}

	// Позиции остаются плотными после извлечения.
	for want, wheelID := range stack.Wheels {
		wheel, err := store.Wheels().Get(ctx, wheelID)
		if err != nil {
			t.Fatalf("get wheel %s: %v", wheelID, err)
		}
		if wheel.Slot == nil || wheel.Slot.Position != want {
			t.Fatalf("wheel %s must sit at position %d, got %+v", wheelID, want, wheel.Slot)
		}
	}

	chosen, err := store.Wheels().Get(ctx, "w2")
	if err != nil {
		t.Fatalf("get chosen wheel: %v", err)
	}
	if chosen.Status != domain.WheelStatusLaboratory || chosen.Slot != nil {
		t.Fatalf("chosen wheel must leave the stack for laboratory, got status=%s slot=%+v", chosen.Status, chosen.Slot)
	}

	cell, err := store.Cells().Get(ctx, gridCellRef("A", "1"))
	if err != nil {
		t.Fatalf("get source cell: %v", err)
	}
	if cell.WheelstackID != "stackA" || cell.Blocked {
		t.Fatalf("cell must keep the shrunken stack unblocked, got wheelstack=%q blocked=%v", cell.WheelstackID, cell.Blocked)
	}

	batch, err := store.Batches().Get(ctx, testBatch)
	if err != nil {
		t.Fatalf("get batch: %v", err)
	}
	if len(batch.Wheels) != 1 {
		t.Fatalf("expected one laboratory record, got %d", len(batch.Wheels))
	}
	record := batch.Wheels[0]
	if record.WheelID != "w2" || record.ConfirmedBy != "ivanova" {
		t.Fatalf("unexpected laboratory record: %+v", record)
	}
	if record.Result != nil || record.TestDate != nil {
		t.Fatal("laboratory record must start without a result")
	}

	lab, err := store.ExtraElements().Get(ctx, testGridID, labName)
	if err != nil {
		t.Fatalf("get laboratory: %v", err)
	}
	if lab.HoldsOrder(id) {
		t.Fatal("completed order must leave the laboratory order set")
	}
}

func TestComplete_LaboratoryLastWheel(t *testing.T) {
	svc, store := newFixture(t)
	ctx := context.Background()

	id := mustCreate(t, svc, CreateRequest{
		OrderType:   domain.OrderTypeMoveToLaboratory,
		Source:      gridEndpoint("A", "1"),
		Destination: extraEndpoint(labName),
		ChosenWheel: "w1",
	})

	// Между резервированием и завершением стопка осталась с одним колесом.
	stack, err := store.Wheelstacks().Get(ctx, "stackA")
	if err != nil {
		t.Fatalf("get wheelstack: %v", err)
	}
	stack.Wheels = []string{"w1"}
	if err := store.Wheelstacks().Save(ctx, stack); err != nil {
		t.Fatalf("shrink wheelstack: %v", err)
	}

	if err := svc.Complete(ctx, id, ""); err != nil {
		t.Fatalf("complete laboratory order: %v", err)
	}

	stack, err = store.Wheelstacks().Get(ctx, "stackA")
	if err != nil {
		t.Fatalf("get wheelstack: %v", err)
	}
	if len(stack.Wheels) != 0 || !stack.Blocked || stack.Status != domain.WheelstackStatusShipped {
		t.Fatalf("emptied stack must be terminally blocked and shipped, got wheels=%v blocked=%v status=%s",
			stack.Wheels, stack.Blocked, stack.Status)
	}

	cell, err := store.Cells().Get(ctx, gridCellRef("A", "1"))
	if err != nil {
		t.Fatalf("get source cell: %v", err)
	}
	if cell.Occupied() || cell.Blocked {
		t.Fatalf("cell must be fully cleared, got wheelstack=%q blocked=%v", cell.WheelstackID, cell.Blocked)
	}
}

func TestComplete_Processing(t *testing.T) {
	svc, store := newFixture(t)
	ctx := context.Background()
	markBatchTested(t, store, true)

	id := mustCreate(t, svc, CreateRequest{
		OrderType:   domain.OrderTypeMoveToProcessing,
		Source:      gridEndpoint("A", "1"),
		Destination: extraEndpoint(craneName),
	})
	if err := svc.Complete(ctx, id, ""); err != nil {
		t.Fatalf("complete processing order: %v", err)
	}

	stack, err := store.Wheelstacks().Get(ctx, "stackA")
	if err != nil {
		t.Fatalf("get wheelstack: %v", err)
	}
	if stack.Status != domain.WheelstackStatusShipped || !stack.Blocked {
		t.Fatalf("shipped stack must stay terminally blocked, got status=%s blocked=%v", stack.Status, stack.Blocked)
	}

	for _, wheelID := range []string{"w1", "w2", "w3"} {
		wheel, err := store.Wheels().Get(ctx, wheelID)
		if err != nil {
			t.Fatalf("get wheel %s: %v", wheelID, err)
		}
		if wheel.Status != domain.WheelStatusShipped {
			t.Fatalf("wheel %s must be shipped, got %s", wheelID, wheel.Status)
		}
	}

	cell, err := store.Cells().Get(ctx, gridCellRef("A", "1"))
	if err != nil {
		t.Fatalf("get source cell: %v", err)
	}
	if cell.Occupied() || cell.Blocked {
		t.Fatal("source cell must be cleared after shipment")
	}

	crane, err := store.ExtraElements().Get(ctx, testGridID, craneName)
	if err != nil {
		t.Fatalf("get crane: %v", err)
	}
	if crane.HoldsOrder(id) {
		t.Fatal("completed order must leave the crane order set")
	}
}

func TestComplete_ToStorage(t *testing.T) {
	svc, store := newFixture(t)
	ctx := context.Background()

	id := mustCreate(t, svc, CreateRequest{
		OrderType:   domain.OrderTypeMoveToStorage,
		Source:      gridEndpoint("A", "1"),
		Destination: storageEndpoint(),
	})
	if err := svc.Complete(ctx, id, ""); err != nil {
		t.Fatalf("complete storage order: %v", err)
	}

	storage, err := store.Storages().Get(ctx, testStorageID)
	if err != nil {
		t.Fatalf("get storage: %v", err)
	}
	if !storage.Contains("stackA") {
		t.Fatal("storage must contain the moved wheelstack")
	}

	stack, err := store.Wheelstacks().Get(ctx, "stackA")
	if err != nil {
		t.Fatalf("get wheelstack: %v", err)
	}
	if stack.Status != domain.WheelstackStatusStorage || stack.Blocked {
		t.Fatalf("expected unblocked storage status, got status=%s blocked=%v", stack.Status, stack.Blocked)
	}
	if stack.Placement.Kind != domain.PlacementStorage || stack.Placement.Row != domain.StorageRowSentinel {
		t.Fatalf("placement must carry the storage sentinel, got %+v", stack.Placement)
	}
}

func TestComplete_Merge(t *testing.T) {
	svc, store := newFixture(t)
	ctx := context.Background()

	id := mustCreate(t, svc, CreateRequest{
		OrderType:   domain.OrderTypeMergeWheelstacks,
		Source:      gridEndpoint("A", "1"),
		Destination: gridEndpoint("A", "2"),
	})
	if err := svc.Complete(ctx, id, ""); err != nil {
		t.Fatalf("complete merge order: %v", err)
	}

	dest, err := store.Wheelstacks().Get(ctx, "stackB")
	if err != nil {
		t.Fatalf("get destination wheelstack: %v", err)
	}
	want := []string{"w4", "w5", "w1", "w2", "w3"}
	if len(dest.Wheels) != len(want) {
		t.Fatalf("expected %d wheels after merge, got %v", len(want), dest.Wheels)
	}
	for i, wheelID := range want {
		if dest.Wheels[i] != wheelID {
			t.Fatalf("expected wheel order %v, got %v", want, dest.Wheels)
		}
		wheel, err := store.Wheels().Get(ctx, wheelID)
		if err != nil {
			t.Fatalf("get wheel %s: %v", wheelID, err)
		}
		if wheel.Slot == nil || wheel.Slot.WheelstackID != "stackB" || wheel.Slot.Position != i {
			t.Fatalf("wheel %s must sit in stackB at %d, got %+v", wheelID, i, wheel.Slot)
		}
	}
	if dest.Blocked {
		t.Fatal("destination wheelstack must be unblocked after merge")
	}

	source, err := store.Wheelstacks().Get(ctx, "stackA")
	if err != nil {
		t.Fatalf("get source wheelstack: %v", err)
	}
	if source.Status != domain.WheelstackStatusDeconstructed || !source.Blocked || len(source.Wheels) != 0 {
		t.Fatalf("source must be deconstructed and blocked, got status=%s blocked=%v wheels=%v",
			source.Status, source.Blocked, source.Wheels)
	}

	sourceCell, err := store.Cells().Get(ctx, gridCellRef("A", "1"))
	if err != nil {
		t.Fatalf("get source cell: %v", err)
	}
	if sourceCell.Occupied() || sourceCell.Blocked {
		t.Fatal("source cell must be cleared after merge")
	}

	destCell, err := store.Cells().Get(ctx, gridCellRef("A", "2"))
	if err != nil {
		t.Fatalf("get destination cell: %v", err)
	}
	if destCell.WheelstackID != "stackB" || destCell.Blocked {
		t.Fatal("destination cell must keep stackB unblocked")
	}
}

func TestComplete_MergeFromStorage(t *testing.T) {
	svc, store := newFixture(t)
	ctx := context.Background()

	id := mustCreate(t, svc, CreateRequest{
		OrderType:        domain.OrderTypeMergeWheelstacks,
		Source:           storageEndpoint(),
		SourceWheelstack: "stackC",
		Destination:      gridEndpoint("A", "2"),
	})
	if err := svc.Complete(ctx, id, ""); err != nil {
		t.Fatalf("complete merge order: %v", err)
	}

	storage, err := store.Storages().Get(ctx, testStorageID)
	if err != nil {
		t.Fatalf("get storage: %v", err)
	}
	if storage.Contains("stackC") {
		t.Fatal("merged wheelstack must leave the storage element set")
	}

	dest, err := store.Wheelstacks().Get(ctx, "stackB")
	if err != nil {
		t.Fatalf("get destination wheelstack: %v", err)
	}
	want := []string{"w4", "w5", "w6"}
	if len(dest.Wheels) != len(want) {
		t.Fatalf("expected %d wheels after merge, got %v", len(want), dest.Wheels)
	}
	for i, wheelID := range want {
		if dest.Wheels[i] != wheelID {
			t.Fatalf("expected wheel order %v, got %v", want, dest.Wheels)
		}
		wheel, err := store.Wheels().Get(ctx, wheelID)
		if err != nil {
			t.Fatalf("get wheel %s: %v", wheelID, err)
		}
		if wheel.Slot == nil || wheel.Slot.WheelstackID != "stackB" || wheel.Slot.Position != i {
			t.Fatalf("wheel %s must sit in stackB at %d, got %+v", wheelID, i, wheel.Slot)
		}
	}
	if dest.Blocked {
		t.Fatal("destination wheelstack must be unblocked after merge")
	}

	moved, err := store.Wheels().Get(ctx, "w6")
	if err != nil {
		t.Fatalf("get moved wheel: %v", err)
	}
	if moved.Status != domain.WheelStatusGrid {
		t.Fatalf("moved wheel must take the grid status, got %s", moved.Status)
	}

	source, err := store.Wheelstacks().Get(ctx, "stackC")
	if err != nil {
		t.Fatalf("get source wheelstack: %v", err)
	}
	if source.Status != domain.WheelstackStatusDeconstructed || !source.Blocked || len(source.Wheels) != 0 {
		t.Fatalf("source must be deconstructed and blocked, got status=%s blocked=%v wheels=%v",
			source.Status, source.Blocked, source.Wheels)
	}

	destCell, err := store.Cells().Get(ctx, gridCellRef("A", "2"))
	if err != nil {
		t.Fatalf("get destination cell: %v", err)
	}
	if destCell.WheelstackID != "stackB" || destCell.Blocked {
		t.Fatal("destination cell must keep stackB unblocked")
	}
}

func TestComplete_CanceledOrder(t *testing.T) {
	svc, _ := newFixture(t)
	ctx := context.Background()

	id := mustCreate(t, svc, wholeStackRequest())
	if err := svc.Cancel(ctx, id, "changed plans"); err != nil {
		t.Fatalf("cancel order: %v", err)
	}
	if err := svc.Complete(ctx, id, ""); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("completing a canceled order must fail with ErrOrderNotFound, got %v", err)
	}
}

func TestComplete_DetectsForeignCellHold(t *testing.T) {
	svc, store := newFixture(t)
	ctx := context.Background()

	id := mustCreate(t, svc, wholeStackRequest())

	// Ручная порча: ячейку перезаписали чужим заказом.
	if err := store.Cells().ForceClear(ctx, gridCellRef("A", "1")); err != nil {
		t.Fatalf("force clear cell: %v", err)
	}
	if _, err := store.Cells().Reserve(ctx, gridCellRef("A", "1"), "rival-order", true); err != nil {
		t.Fatalf("re-reserve cell: %v", err)
	}

	err := svc.Complete(ctx, id, "")
	if !domain.IsCorruption(err) {
		t.Fatalf("expected corruption error, got %v", err)
	}

	// Заказ остаётся pending: транзакция откатилась.
	if _, err := store.Orders().GetPending(ctx, id); err != nil {
		t.Fatalf("order must stay pending after a failed completion: %v", err)
	}
}

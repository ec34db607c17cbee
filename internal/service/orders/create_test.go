package orders

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/vladislavdragonenkov/wms/internal/domain"
)

func TestCreate_MoveWholeStack(t *testing.T) {
	svc, store := newFixture(t)
	ctx := context.Background()

	id := mustCreate(t, svc, wholeStackRequest())

	order, err := store.Orders().GetPending(ctx, id)
	if err != nil {
		t.Fatalf("pending order not found: %v", err)
	}
	if order.State != domain.LifecyclePending {
		t.Fatalf("expected pending state, got %s", order.State)
	}
	if order.AffectedWheelstacks.Source != "stackA" {
		t.Fatalf("expected affected wheelstack stackA, got %q", order.AffectedWheelstacks.Source)
	}
	if len(order.AffectedWheels.Source) != 3 {
		t.Fatalf("expected 3 affected wheels, got %d", len(order.AffectedWheels.Source))
	}

	source, err := store.Cells().Get(ctx, gridCellRef("A", "1"))
	if err != nil {
		t.Fatalf("get source cell: %v", err)
	}
	if !source.Blocked || source.BlockedBy != id {
		t.Fatalf("source cell must be held by order %s, got blocked=%v blockedBy=%q", id, source.Blocked, source.BlockedBy)
	}
	if source.WheelstackID != "stackA" {
		t.Fatalf("source cell must keep its wheelstack until completion, got %q", source.WheelstackID)
	}

	dest, err := store.Cells().Get(ctx, gridCellRef("B", "1"))
	if err != nil {
		t.Fatalf("get destination cell: %v", err)
	}
	if !dest.Blocked || dest.BlockedBy != id {
		t.Fatalf("destination cell must be held by order %s", id)
	}

	stack, err := store.Wheelstacks().Get(ctx, "stackA")
	if err != nil {
		t.Fatalf("get wheelstack: %v", err)
	}
	if !stack.Blocked || stack.LastOrder != id {
		t.Fatalf("wheelstack must be blocked by order %s, got blocked=%v lastOrder=%q", id, stack.Blocked, stack.LastOrder)
	}
}

func TestCreate_UnsupportedOrderType(t *testing.T) {
	svc, _ := newFixture(t)

	_, err := svc.Create(context.Background(), CreateRequest{OrderType: "teleport"})
	if !domain.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCreate_EmptySourceCell(t *testing.T) {
	svc, _ := newFixture(t)

	req := wholeStackRequest()
	req.Source = gridEndpoint("B", "2")
	_, err := svc.Create(context.Background(), req)
	if !domain.IsValidation(err) {
		t.Fatalf("expected validation error for empty source cell, got %v", err)
	}
}

func TestCreate_SourceCellHeldByAnotherOrder(t *testing.T) {
	svc, store := newFixture(t)
	ctx := context.Background()

	if _, err := store.Cells().Reserve(ctx, gridCellRef("A", "1"), "rival-order", true); err != nil {
		t.Fatalf("pre-block source cell: %v", err)
	}

	_, err := svc.Create(ctx, wholeStackRequest())
	if !domain.IsConflict(err) {
		t.Fatalf("expected conflict, got %v", err)
	}

	var conflict *domain.ConflictError
	if errors.As(err, &conflict) && conflict.BlockedBy != "rival-order" {
		t.Fatalf("conflict must name the holder, got %q", conflict.BlockedBy)
	}
}

func TestCreate_OccupiedDestination(t *testing.T) {
	svc, _ := newFixture(t)

	req := wholeStackRequest()
	req.Destination = gridEndpoint("A", "2")
	_, err := svc.Create(context.Background(), req)
	if !domain.IsConflict(err) {
		t.Fatalf("expected conflict for occupied destination, got %v", err)
	}
}

func TestCreate_CellReferencesMissingStack(t *testing.T) {
	svc, store := newFixture(t)
	ctx := context.Background()

	if err := store.Cells().Create(ctx, domain.Cell{
		Ref:          gridCellRef("C", "1"),
		WheelstackID: "ghost",
	}); err != nil {
		t.Fatalf("seed corrupted cell: %v", err)
	}

	req := wholeStackRequest()
	req.Source = gridEndpoint("C", "1")
	_, err := svc.Create(ctx, req)
	if !domain.IsCorruption(err) {
		t.Fatalf("expected corruption error, got %v", err)
	}
}

func TestCreate_ConcurrentSameSource(t *testing.T) {
	svc, _ := newFixture(t)
	ctx := context.Background()

	results := make([]error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			req := wholeStackRequest()
			if slot == 1 {
				req.Destination = gridEndpoint("B", "2")
			}
			_, results[slot] = svc.Create(ctx, req)
		}(i)
	}
	wg.Wait()

	var succeeded, conflicted int
	for _, err := range results {
		switch {
		case err == nil:
			succeeded++
		case domain.IsConflict(err):
			conflicted++
		default:
			t.Fatalf("unexpected error class: %v", err)
		}
	}
	if succeeded != 1 || conflicted != 1 {
		t.Fatalf("expected exactly one winner and one conflict, got success=%d conflict=%d", succeeded, conflicted)
	}
}

func TestCreate_LaboratoryRequiresChosenWheel(t *testing.T) {
	svc, _ := newFixture(t)

	_, err := svc.Create(context.Background(), CreateRequest{
		OrderType:   domain.OrderTypeMoveToLaboratory,
		Source:      gridEndpoint("A", "1"),
		Destination: extraEndpoint(labName),
	})
	if !domain.IsValidation(err) {
		t.Fatalf("expected validation error without chosen wheel, got %v", err)
	}
}

func TestCreate_LaboratoryWheelFromAnotherStack(t *testing.T) {
	svc, _ := newFixture(t)

	_, err := svc.Create(context.Background(), CreateRequest{
		OrderType:   domain.OrderTypeMoveToLaboratory,
		Source:      gridEndpoint("A", "1"),
		Destination: extraEndpoint(labName),
		ChosenWheel: "w4", // лежит в stackB
	})
	if !domain.IsValidation(err) {
		t.Fatalf("expected validation error for foreign wheel, got %v", err)
	}
}

func TestCreate_ProcessingGates(t *testing.T) {
	svc, store := newFixture(t)
	ctx := context.Background()

	req := CreateRequest{
		OrderType:   domain.OrderTypeMoveToProcessing,
		Source:      gridEndpoint("A", "1"),
		Destination: extraEndpoint(craneName),
	}

	if _, err := svc.Create(ctx, req); !errors.Is(err, domain.ErrTestsNotDone) {
		t.Fatalf("untested batch must be rejected with TESTS_NOT_DONE, got %v", err)
	}

	markBatchTested(t, store, false)
	if _, err := svc.Create(ctx, req); !errors.Is(err, domain.ErrTestsFailed) {
		t.Fatalf("failed batch must be rejected with TESTS_FAILED, got %v", err)
	}

	// Отбраковка требует только факта теста, результат не важен.
	rejected := req
	rejected.OrderType = domain.OrderTypeMoveToRejected
	if _, err := svc.Create(ctx, rejected); err != nil {
		t.Fatalf("rejected move must pass after a failed test: %v", err)
	}

	markBatchTested(t, store, true)
	req.Source = gridEndpoint("A", "2")
	if _, err := svc.Create(ctx, req); err != nil {
		t.Fatalf("processing move must pass after a passed test: %v", err)
	}
}

func TestCreate_StorageSourceRequiresExplicitStack(t *testing.T) {
	svc, _ := newFixture(t)

	_, err := svc.Create(context.Background(), CreateRequest{
		OrderType:   domain.OrderTypeMoveWholeStack,
		Source:      storageEndpoint(),
		Destination: gridEndpoint("B", "1"),
	})
	if !domain.IsValidation(err) {
		t.Fatalf("expected validation error without explicit wheelstack, got %v", err)
	}
}

func TestCreate_FromStorage(t *testing.T) {
	svc, store := newFixture(t)
	ctx := context.Background()

	id, err := svc.Create(ctx, CreateRequest{
		OrderType:        domain.OrderTypeMoveWholeStack,
		Source:           storageEndpoint(),
		Destination:      gridEndpoint("B", "1"),
		SourceWheelstack: "stackC",
	})
	if err != nil {
		t.Fatalf("create from storage: %v", err)
	}

	stack, err := store.Wheelstacks().Get(ctx, "stackC")
	if err != nil {
		t.Fatalf("get wheelstack: %v", err)
	}
	if !stack.Blocked || stack.LastOrder != id {
		t.Fatalf("storage wheelstack must be blocked by order %s", id)
	}

	// Состав хранилища до завершения не меняется.
	storage, err := store.Storages().Get(ctx, testStorageID)
	if err != nil {
		t.Fatalf("get storage: %v", err)
	}
	if !storage.Contains("stackC") {
		t.Fatal("wheelstack must stay in the storage element set until completion")
	}
}

func TestCreate_MergeBatchAndCapacityChecks(t *testing.T) {
	svc, store := newFixture(t)
	ctx := context.Background()

	merge := CreateRequest{
		OrderType:   domain.OrderTypeMergeWheelstacks,
		Source:      gridEndpoint("A", "1"),
		Destination: gridEndpoint("A", "2"),
	}

	// Переполнение: 2 + 5 > 6.
	big, err := store.Wheelstacks().Get(ctx, "stackA")
	if err != nil {
		t.Fatalf("get stackA: %v", err)
	}
	big.Wheels = []string{"w1", "w2", "w3", "x1", "x2"}
	if err := store.Wheelstacks().Save(ctx, big); err != nil {
		t.Fatalf("inflate stackA: %v", err)
	}
	if _, err := svc.Create(ctx, merge); !domain.IsValidation(err) {
		t.Fatalf("expected capacity validation error, got %v", err)
	}

	big.Wheels = []string{"w1", "w2", "w3"}
	if err := store.Wheelstacks().Save(ctx, big); err != nil {
		t.Fatalf("restore stackA: %v", err)
	}

	// Разные партии.
	dest, err := store.Wheelstacks().Get(ctx, "stackB")
	if err != nil {
		t.Fatalf("get stackB: %v", err)
	}
	dest.BatchNumber = "BATCH-OTHER"
	if err := store.Wheelstacks().Save(ctx, dest); err != nil {
		t.Fatalf("switch stackB batch: %v", err)
	}
	if _, err := svc.Create(ctx, merge); !domain.IsValidation(err) {
		t.Fatalf("expected batch validation error, got %v", err)
	}
}

func TestCreate_MergeReservesBothStacks(t *testing.T) {
	svc, store := newFixture(t)
	ctx := context.Background()

	id := mustCreate(t, svc, CreateRequest{
		OrderType:   domain.OrderTypeMergeWheelstacks,
		Source:      gridEndpoint("A", "1"),
		Destination: gridEndpoint("A", "2"),
	})

	for _, stackID := range []string{"stackA", "stackB"} {
		stack, err := store.Wheelstacks().Get(ctx, stackID)
		if err != nil {
			t.Fatalf("get %s: %v", stackID, err)
		}
		if !stack.Blocked || stack.LastOrder != id {
			t.Fatalf("%s must be blocked by merge order %s", stackID, id)
		}
	}

	order, err := store.Orders().GetPending(ctx, id)
	if err != nil {
		t.Fatalf("pending order not found: %v", err)
	}
	if order.AffectedWheelstacks.Destination != "stackB" {
		t.Fatalf("expected destination wheelstack stackB, got %q", order.AffectedWheelstacks.Destination)
	}
}

package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/wms/internal/domain"
)

func testCellRef(row, col string) domain.CellRef {
	return domain.CellRef{
		PlacementKind: domain.PlacementGrid,
		PlacementID:   "G1",
		Row:           row,
		Col:           col,
	}
}

func seedCell(t *testing.T, store *Store, row, col, wheelstackID string) {
	t.Helper()
	if err := store.Cells().Create(context.Background(), domain.Cell{
		Ref:          testCellRef(row, col),
		WheelstackID: wheelstackID,
	}); err != nil {
		t.Fatalf("seed cell %s/%s: %v", row, col, err)
	}
}

func TestWithinTx_RollbackRestoresState(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	seedCell(t, store, "A", "1", "stack-1")

	boom := errors.New("boom")
	err := store.WithinTx(ctx, func(tx domain.Tx) error {
		if _, err := tx.Cells().Reserve(ctx, testCellRef("A", "1"), "order-1", true); err != nil {
			return err
		}
		if err := tx.Wheelstacks().Create(ctx, domain.Wheelstack{ID: "stack-2"}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected fn error to propagate, got %v", err)
	}

	cell, err := store.Cells().Get(ctx, testCellRef("A", "1"))
	if err != nil {
		t.Fatalf("get cell: %v", err)
	}
	if cell.Blocked || cell.BlockedBy != "" {
		t.Fatalf("rollback must undo the reservation, got blocked=%v blockedBy=%q", cell.Blocked, cell.BlockedBy)
	}
	if _, err := store.Wheelstacks().Get(ctx, "stack-2"); !errors.Is(err, domain.ErrWheelstackNotFound) {
		t.Fatalf("rollback must discard the created wheelstack, got %v", err)
	}
}

func TestCellReserve_ConditionalMatch(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	seedCell(t, store, "A", "1", "stack-1")
	seedCell(t, store, "B", "1", "")

	// Занятость не совпадает с ожиданием — 0 совпадений.
	if matched, err := store.Cells().Reserve(ctx, testCellRef("A", "1"), "order-1", false); err != nil || matched != 0 {
		t.Fatalf("occupied cell must not match mustBeOccupied=false, got matched=%d err=%v", matched, err)
	}
	if matched, err := store.Cells().Reserve(ctx, testCellRef("B", "1"), "order-1", true); err != nil || matched != 0 {
		t.Fatalf("empty cell must not match mustBeOccupied=true, got matched=%d err=%v", matched, err)
	}

	if matched, err := store.Cells().Reserve(ctx, testCellRef("A", "1"), "order-1", true); err != nil || matched != 1 {
		t.Fatalf("expected reservation to match, got matched=%d err=%v", matched, err)
	}
	// Повторное резервирование проигрывает.
	if matched, err := store.Cells().Reserve(ctx, testCellRef("A", "1"), "order-2", true); err != nil || matched != 0 {
		t.Fatalf("second reservation must lose, got matched=%d err=%v", matched, err)
	}
	// Чужой заказ не может снять блокировку.
	if matched, err := store.Cells().Release(ctx, testCellRef("A", "1"), "order-2"); err != nil || matched != 0 {
		t.Fatalf("foreign release must not match, got matched=%d err=%v", matched, err)
	}
}

func TestCellReleaseMany(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	seedCell(t, store, "A", "1", "stack-1")
	seedCell(t, store, "A", "2", "stack-2")
	seedCell(t, store, "B", "1", "stack-3")

	for i, ref := range []domain.CellRef{testCellRef("A", "1"), testCellRef("A", "2"), testCellRef("B", "1")} {
		orderID := []string{"order-1", "order-2", "order-3"}[i]
		if matched, err := store.Cells().Reserve(ctx, ref, orderID, true); err != nil || matched != 1 {
			t.Fatalf("reserve %v: matched=%d err=%v", ref, matched, err)
		}
	}

	matched, err := store.Cells().ReleaseMany(ctx, domain.PlacementGrid, "G1", []string{"order-1", "order-2", "missing"})
	if err != nil {
		t.Fatalf("release many: %v", err)
	}
	if matched != 2 {
		t.Fatalf("expected 2 released cells, got %d", matched)
	}

	third, err := store.Cells().Get(ctx, testCellRef("B", "1"))
	if err != nil {
		t.Fatalf("get third cell: %v", err)
	}
	if !third.Blocked || third.BlockedBy != "order-3" {
		t.Fatal("unlisted order must keep its hold")
	}
}

func TestWheelstackBlock_Conditional(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	if err := store.Wheelstacks().Create(ctx, domain.Wheelstack{ID: "stack-1"}); err != nil {
		t.Fatalf("create wheelstack: %v", err)
	}

	if matched, err := store.Wheelstacks().Block(ctx, "stack-1", "order-1"); err != nil || matched != 1 {
		t.Fatalf("expected block to match, got matched=%d err=%v", matched, err)
	}
	if matched, err := store.Wheelstacks().Block(ctx, "stack-1", "order-2"); err != nil || matched != 0 {
		t.Fatalf("blocked stack must not match again, got matched=%d err=%v", matched, err)
	}

	stack, err := store.Wheelstacks().Get(ctx, "stack-1")
	if err != nil {
		t.Fatalf("get wheelstack: %v", err)
	}
	if stack.LastOrder != "order-1" {
		t.Fatalf("loser must not overwrite lastOrder, got %q", stack.LastOrder)
	}
}

func TestOrders_PendingFilter(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	now := time.Now().UTC()

	if err := store.Orders().Create(ctx, domain.Order{
		ID:        "order-1",
		OrderType: domain.OrderTypeMoveWholeStack,
		State:     domain.LifecyclePending,
		CreatedAt: now,
	}); err != nil {
		t.Fatalf("create order: %v", err)
	}

	if _, err := store.Orders().GetPending(ctx, "order-1"); err != nil {
		t.Fatalf("pending order must be visible: %v", err)
	}

	matched, err := store.Orders().Complete(ctx, "order-1", now)
	if err != nil || matched != 1 {
		t.Fatalf("complete order: matched=%d err=%v", matched, err)
	}
	if _, err := store.Orders().GetPending(ctx, "order-1"); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("resolved order must be invisible to GetPending, got %v", err)
	}
	// Второй переход состояния не совпадает.
	if matched, err := store.Orders().Cancel(ctx, "order-1", "late", now); err != nil || matched != 0 {
		t.Fatalf("canceling a completed order must match nothing, got matched=%d err=%v", matched, err)
	}

	order, err := store.Orders().Get(ctx, "order-1")
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if order.State != domain.LifecycleCompleted {
		t.Fatalf("expected completed state, got %s", order.State)
	}
}

func TestSnapshots_LastReturnsNewest(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	base := time.Now().UTC()

	for i, id := range []string{"snap-1", "snap-2"} {
		if err := store.Snapshots().Insert(ctx, domain.PlacementSnapshot{
			ID:            id,
			PlacementKind: domain.PlacementGrid,
			PlacementID:   "G1",
			State:         []byte(`{}`),
			CreatedAt:     base.Add(time.Duration(i) * time.Second),
		}); err != nil {
			t.Fatalf("insert snapshot %s: %v", id, err)
		}
	}

	last, err := store.Snapshots().Last(ctx, domain.PlacementGrid, "G1")
	if err != nil {
		t.Fatalf("last snapshot: %v", err)
	}
	if last.ID != "snap-2" {
		t.Fatalf("expected newest snapshot, got %s", last.ID)
	}

	if _, err := store.Snapshots().Last(ctx, domain.PlacementStorage, "S1"); !errors.Is(err, domain.ErrSnapshotNotFound) {
		t.Fatalf("expected ErrSnapshotNotFound for unknown placement, got %v", err)
	}
}

func TestCells_ListByPlacementOrdered(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	seedCell(t, store, "B", "1", "")
	seedCell(t, store, "A", "2", "")
	seedCell(t, store, "A", "1", "")

	cells, err := store.Cells().ListByPlacement(ctx, domain.PlacementGrid, "G1")
	if err != nil {
		t.Fatalf("list cells: %v", err)
	}
	want := []struct{ row, col string }{{"A", "1"}, {"A", "2"}, {"B", "1"}}
	if len(cells) != len(want) {
		t.Fatalf("expected %d cells, got %d", len(want), len(cells))
	}
	for i, w := range want {
		if cells[i].Ref.Row != w.row || cells[i].Ref.Col != w.col {
			t.Fatalf("position %d: expected %s/%s, got %s/%s", i, w.row, w.col, cells[i].Ref.Row, cells[i].Ref.Col)
		}
	}
}

package orders

import (
	"context"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/wms/internal/domain"
	"github.com/vladislavdragonenkov/wms/internal/storage/memory"
)

// Тестовый склад: grid G1 с ячейками A/1, A/2 (заняты), B/1, B/2 (свободны),
// лабораторией и краном; плоское хранилище S1 со стопкой stackC.
const (
	testGridID    = "G1"
	testStorageID = "S1"
	testBatch     = "BATCH-001"
	labName       = "laboratory"
	craneName     = "crane"
)

func gridCellRef(row, col string) domain.CellRef {
	return domain.CellRef{
		PlacementKind: domain.PlacementGrid,
		PlacementID:   testGridID,
		Row:           row,
		Col:           col,
	}
}

func gridEndpoint(row, col string) domain.EndpointRef {
	return domain.EndpointRef{
		PlacementKind: domain.PlacementGrid,
		PlacementID:   testGridID,
		Row:           row,
		Col:           col,
	}
}

func extraEndpoint(name string) domain.EndpointRef {
	return domain.EndpointRef{
		PlacementKind: domain.PlacementGrid,
		PlacementID:   testGridID,
		Row:           domain.ExtraRowSentinel,
		Col:           name,
	}
}

func storageEndpoint() domain.EndpointRef {
	return domain.EndpointRef{
		PlacementKind: domain.PlacementStorage,
		PlacementID:   testStorageID,
	}
}

func newFixture(t *testing.T) (*Service, *memory.Store) {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()
	now := time.Now().UTC()

	seedStack := func(id string, wheels []string, placement domain.WheelstackPlacement, status domain.WheelstackStatus) {
		if err := store.Wheelstacks().Create(ctx, domain.Wheelstack{
			ID:          id,
			BatchNumber: testBatch,
			Placement:   placement,
			MaxSize:     domain.MaxWheelsPerStack,
			Wheels:      wheels,
			Status:      status,
			CreatedAt:   now,
			UpdatedAt:   now,
		}); err != nil {
			t.Fatalf("seed wheelstack %s: %v", id, err)
		}
		for position, wheelID := range wheels {
			if err := store.Wheels().Create(ctx, domain.Wheel{
				ID:          wheelID,
				BatchNumber: testBatch,
				Diameter:    950,
				ReceiptDate: now,
				Status:      domain.WheelStatusForPlacement(placement.Kind),
				Slot:        &domain.WheelSlot{WheelstackID: id, Position: position},
				CreatedAt:   now,
				UpdatedAt:   now,
			}); err != nil {
				t.Fatalf("seed wheel %s: %v", wheelID, err)
			}
		}
	}

	gridPlacement := func(row, col string) domain.WheelstackPlacement {
		return domain.WheelstackPlacement{
			Kind:        domain.PlacementGrid,
			PlacementID: testGridID,
			Row:         row,
			Col:         col,
		}
	}

	seedStack("stackA", []string{"w1", "w2", "w3"}, gridPlacement("A", "1"), domain.WheelstackStatusGrid)
	seedStack("stackB", []string{"w4", "w5"}, gridPlacement("A", "2"), domain.WheelstackStatusGrid)
	seedStack("stackC", []string{"w6"}, domain.WheelstackPlacement{
		Kind:        domain.PlacementStorage,
		PlacementID: testStorageID,
		Row:         domain.StorageRowSentinel,
		Col:         domain.StorageRowSentinel,
	}, domain.WheelstackStatusStorage)

	seedCell := func(row, col, wheelstackID string) {
		if err := store.Cells().Create(ctx, domain.Cell{
			Ref:          gridCellRef(row, col),
			WheelstackID: wheelstackID,
		}); err != nil {
			t.Fatalf("seed cell %s/%s: %v", row, col, err)
		}
	}
	seedCell("A", "1", "stackA")
	seedCell("A", "2", "stackB")
	seedCell("B", "1", "")
	seedCell("B", "2", "")

	if err := store.ExtraElements().Create(ctx, domain.ExtraElement{
		PlacementID: testGridID,
		Name:        labName,
		Kind:        domain.ExtraKindLaboratory,
	}); err != nil {
		t.Fatalf("seed laboratory: %v", err)
	}
	if err := store.ExtraElements().Create(ctx, domain.ExtraElement{
		PlacementID: testGridID,
		Name:        craneName,
		Kind:        domain.ExtraKindHandCrane,
	}); err != nil {
		t.Fatalf("seed crane: %v", err)
	}

	if err := store.Storages().Create(ctx, domain.Storage{
		ID:         testStorageID,
		Name:       "buffer",
		Elements:   []string{"stackC"},
		LastChange: now,
	}); err != nil {
		t.Fatalf("seed storage: %v", err)
	}

	if err := store.Batches().Create(ctx, domain.BatchNumber{
		BatchNumber: testBatch,
		CreatedAt:   now,
		UpdatedAt:   now,
	}); err != nil {
		t.Fatalf("seed batch: %v", err)
	}

	return NewServiceWithoutMetrics(store, nil, nil), store
}

// markBatchTested перезаписывает партию с заданным результатом лаборатории.
func markBatchTested(t *testing.T, store *memory.Store, passed bool) {
	t.Helper()
	now := time.Now().UTC()
	if err := store.Batches().Create(context.Background(), domain.BatchNumber{
		BatchNumber:        testBatch,
		LaboratoryPassed:   &passed,
		LaboratoryTestDate: &now,
		CreatedAt:          now,
		UpdatedAt:          now,
	}); err != nil {
		t.Fatalf("mark batch tested: %v", err)
	}
}

func mustCreate(t *testing.T, svc *Service, req CreateRequest) string {
	t.Helper()
	id, err := svc.Create(context.Background(), req)
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	return id
}

func wholeStackRequest() CreateRequest {
	return CreateRequest{
		OrderType:   domain.OrderTypeMoveWholeStack,
		Source:      gridEndpoint("A", "1"),
		Destination: gridEndpoint("B", "1"),
	}
}

package memory

import (
	"context"
	"sort"

	"github.com/vladislavdragonenkov/wms/internal/domain"
)

type cellAccessor struct {
	v view
}

func (a cellAccessor) Get(_ context.Context, ref domain.CellRef) (domain.Cell, error) {
	var cell domain.Cell
	err := a.v.do(func(st *state) error {
		c, ok := st.cells[ref]
		if !ok {
			return domain.ErrCellNotFound
		}
		cell = c
		return nil
	})
	return cell, err
}

func (a cellAccessor) ListByPlacement(_ context.Context, kind domain.PlacementKind, placementID string) ([]domain.Cell, error) {
	var cells []domain.Cell
	err := a.v.do(func(st *state) error {
		for ref, cell := range st.cells {
			if ref.PlacementKind == kind && ref.PlacementID == placementID {
				cells = append(cells, cell)
			}
		}
		return nil
	})
	sort.Slice(cells, func(i, j int) bool {
		if cells[i].Ref.Row != cells[j].Ref.Row {
			return cells[i].Ref.Row < cells[j].Ref.Row
		}
		return cells[i].Ref.Col < cells[j].Ref.Col
	})
	return cells, err
}

func (a cellAccessor) Create(_ context.Context, cell domain.Cell) error {
	return a.v.do(func(st *state) error {
		st.cells[cell.Ref] = cell
		return nil
	})
}

func (a cellAccessor) Reserve(_ context.Context, ref domain.CellRef, orderID string, mustBeOccupied bool) (int64, error) {
	var matched int64
	err := a.v.do(func(st *state) error {
		cell, ok := st.cells[ref]
		if !ok || cell.Blocked {
			return nil
		}
		if mustBeOccupied != cell.Occupied() {
			return nil
		}
		cell.Blocked = true
		cell.BlockedBy = orderID
		st.cells[ref] = cell
		matched = 1
		return nil
	})
	return matched, err
}

func (a cellAccessor) Release(_ context.Context, ref domain.CellRef, orderID string) (int64, error) {
	return a.update(ref, orderID, func(cell *domain.Cell) {
		cell.Blocked = false
		cell.BlockedBy = ""
	})
}

func (a cellAccessor) ClearWheelstack(_ context.Context, ref domain.CellRef, orderID string) (int64, error) {
	return a.update(ref, orderID, func(cell *domain.Cell) {
		cell.WheelstackID = ""
		cell.Blocked = false
		cell.BlockedBy = ""
	})
}

func (a cellAccessor) PlaceWheelstack(_ context.Context, ref domain.CellRef, orderID, wheelstackID string) (int64, error) {
	return a.update(ref, orderID, func(cell *domain.Cell) {
		cell.WheelstackID = wheelstackID
		cell.Blocked = false
		cell.BlockedBy = ""
	})
}

func (a cellAccessor) ForceClear(_ context.Context, ref domain.CellRef) error {
	return a.v.do(func(st *state) error {
		cell, ok := st.cells[ref]
		if !ok {
			return domain.ErrCellNotFound
		}
		cell.Blocked = false
		cell.BlockedBy = ""
		st.cells[ref] = cell
		return nil
	})
}

func (a cellAccessor) ReleaseMany(_ context.Context, kind domain.PlacementKind, placementID string, orderIDs []string) (int64, error) {
	owners := make(map[string]struct{}, len(orderIDs))
	for _, id := range orderIDs {
		owners[id] = struct{}{}
	}

	var matched int64
	err := a.v.do(func(st *state) error {
		for ref, cell := range st.cells {
			if ref.PlacementKind != kind || ref.PlacementID != placementID {
				continue
			}
			if _, ok := owners[cell.BlockedBy]; !ok {
				continue
			}
			cell.Blocked = false
			cell.BlockedBy = ""
			st.cells[ref] = cell
			matched++
		}
		return nil
	})
	return matched, err
}

// update применяет mutate к ячейке, удерживаемой заказом orderID.
func (a cellAccessor) update(ref domain.CellRef, orderID string, mutate func(cell *domain.Cell)) (int64, error) {
	var matched int64
	err := a.v.do(func(st *state) error {
		cell, ok := st.cells[ref]
		if !ok || cell.BlockedBy != orderID {
			return nil
		}
		mutate(&cell)
		st.cells[ref] = cell
		matched = 1
		return nil
	})
	return matched, err
}

var _ domain.CellAccessor = cellAccessor{}

package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vladislavdragonenkov/wms/internal/domain"
)

type cellAccessor struct {
	q queryer
}

func (a cellAccessor) Get(ctx context.Context, ref domain.CellRef) (domain.Cell, error) {
	cell := domain.Cell{Ref: ref}
	err := a.q.QueryRowContext(ctx, `
		SELECT wheelstack_id, blocked, blocked_by
		FROM placement_cells
		WHERE placement_kind = $1 AND placement_id = $2 AND row_name = $3 AND col_name = $4
	`, string(ref.PlacementKind), ref.PlacementID, ref.Row, ref.Col).Scan(
		&cell.WheelstackID, &cell.Blocked, &cell.BlockedBy,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Cell{}, domain.ErrCellNotFound
		}
		return domain.Cell{}, fmt.Errorf("select cell: %w", err)
	}
	return cell, nil
}

func (a cellAccessor) ListByPlacement(ctx context.Context, kind domain.PlacementKind, placementID string) ([]domain.Cell, error) {
	rows, err := a.q.QueryContext(ctx, `
		SELECT row_name, col_name, wheelstack_id, blocked, blocked_by
		FROM placement_cells
		WHERE placement_kind = $1 AND placement_id = $2
		ORDER BY row_name ASC, col_name ASC
	`, string(kind), placementID)
	if err != nil {
		return nil, fmt.Errorf("list cells: %w", err)
	}
	defer rows.Close()

	var cells []domain.Cell
	for rows.Next() {
		cell := domain.Cell{Ref: domain.CellRef{PlacementKind: kind, PlacementID: placementID}}
		if err := rows.Scan(&cell.Ref.Row, &cell.Ref.Col, &cell.WheelstackID, &cell.Blocked, &cell.BlockedBy); err != nil {
			return nil, fmt.Errorf("scan cell row: %w", err)
		}
		cells = append(cells, cell)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cell rows: %w", err)
	}
	return cells, nil
}

func (a cellAccessor) Create(ctx context.Context, cell domain.Cell) error {
	_, err := a.q.ExecContext(ctx, `
		INSERT INTO placement_cells (
			placement_kind, placement_id, row_name, col_name, wheelstack_id, blocked, blocked_by
		) VALUES ($1,$2,$3,$4,$5,$6,$7)
	`,
		string(cell.Ref.PlacementKind), cell.Ref.PlacementID, cell.Ref.Row, cell.Ref.Col,
		cell.WheelstackID, cell.Blocked, cell.BlockedBy,
	)
	if err != nil {
		return fmt.Errorf("insert cell: %w", err)
	}
	return nil
}

// Reserve включает свободу от блокировок и требуемую занятость в фильтр:
// конкурент, проигравший гонку, получает ноль совпадений вместо
// перезаписи чужого резерва.
func (a cellAccessor) Reserve(ctx context.Context, ref domain.CellRef, orderID string, mustBeOccupied bool) (int64, error) {
	res, err := a.q.ExecContext(ctx, `
		UPDATE placement_cells
		SET blocked = TRUE, blocked_by = $5
		WHERE placement_kind = $1 AND placement_id = $2 AND row_name = $3 AND col_name = $4
		  AND blocked = FALSE
		  AND (wheelstack_id <> '') = $6
	`, string(ref.PlacementKind), ref.PlacementID, ref.Row, ref.Col, orderID, mustBeOccupied)
	if err != nil {
		return 0, fmt.Errorf("reserve cell: %w", err)
	}
	return res.RowsAffected()
}

func (a cellAccessor) Release(ctx context.Context, ref domain.CellRef, orderID string) (int64, error) {
	return a.updateHeld(ctx, ref, orderID, `blocked = FALSE, blocked_by = ''`)
}

func (a cellAccessor) ClearWheelstack(ctx context.Context, ref domain.CellRef, orderID string) (int64, error) {
	return a.updateHeld(ctx, ref, orderID, `wheelstack_id = '', blocked = FALSE, blocked_by = ''`)
}

func (a cellAccessor) PlaceWheelstack(ctx context.Context, ref domain.CellRef, orderID, wheelstackID string) (int64, error) {
	res, err := a.q.ExecContext(ctx, `
		UPDATE placement_cells
		SET wheelstack_id = $5, blocked = FALSE, blocked_by = ''
		WHERE placement_kind = $1 AND placement_id = $2 AND row_name = $3 AND col_name = $4
		  AND blocked_by = $6
	`, string(ref.PlacementKind), ref.PlacementID, ref.Row, ref.Col, wheelstackID, orderID)
	if err != nil {
		return 0, fmt.Errorf("place wheelstack into cell: %w", err)
	}
	return res.RowsAffected()
}

func (a cellAccessor) ForceClear(ctx context.Context, ref domain.CellRef) error {
	res, err := a.q.ExecContext(ctx, `
		UPDATE placement_cells
		SET blocked = FALSE, blocked_by = ''
		WHERE placement_kind = $1 AND placement_id = $2 AND row_name = $3 AND col_name = $4
	`, string(ref.PlacementKind), ref.PlacementID, ref.Row, ref.Col)
	if err != nil {
		return fmt.Errorf("force clear cell: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrCellNotFound
	}
	return nil
}

func (a cellAccessor) ReleaseMany(ctx context.Context, kind domain.PlacementKind, placementID string, orderIDs []string) (int64, error) {
	if len(orderIDs) == 0 {
		return 0, nil
	}
	res, err := a.q.ExecContext(ctx, `
		UPDATE placement_cells
		SET blocked = FALSE, blocked_by = ''
		WHERE placement_kind = $1 AND placement_id = $2
		  AND blocked_by = ANY($3)
	`, string(kind), placementID, orderIDs)
	if err != nil {
		return 0, fmt.Errorf("release cells: %w", err)
	}
	return res.RowsAffected()
}

// updateHeld выполняет обновление ячейки с фильтром по владеющему заказу.
func (a cellAccessor) updateHeld(ctx context.Context, ref domain.CellRef, orderID, setClause string) (int64, error) {
	res, err := a.q.ExecContext(ctx, `
		UPDATE placement_cells
		SET `+setClause+`
		WHERE placement_kind = $1 AND placement_id = $2 AND row_name = $3 AND col_name = $4
		  AND blocked_by = $5
	`, string(ref.PlacementKind), ref.PlacementID, ref.Row, ref.Col, orderID)
	if err != nil {
		return 0, fmt.Errorf("update held cell: %w", err)
	}
	return res.RowsAffected()
}

var _ domain.CellAccessor = cellAccessor{}

package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/wms/internal/domain"
)

type wheelstackAccessor struct {
	q queryer
}

const wheelstackColumns = `
	id, batch_number, placement_kind, placement_id, row_name, col_name,
	max_size, blocked, last_order, wheels, status, created_at, updated_at`

func (a wheelstackAccessor) Get(ctx context.Context, id string) (domain.Wheelstack, error) {
	row := a.q.QueryRowContext(ctx, `
		SELECT `+wheelstackColumns+`
		FROM wheelstacks
		WHERE id = $1
	`, id)
	stack, err := scanWheelstack(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Wheelstack{}, domain.ErrWheelstackNotFound
		}
		return domain.Wheelstack{}, fmt.Errorf("select wheelstack: %w", err)
	}
	return stack, nil
}

func (a wheelstackAccessor) Create(ctx context.Context, stack domain.Wheelstack) error {
	wheels, err := json.Marshal(stack.Wheels)
	if err != nil {
		return fmt.Errorf("encode wheels: %w", err)
	}
	_, err = a.q.ExecContext(ctx, `
		INSERT INTO wheelstacks (`+wheelstackColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
	`,
		stack.ID, stack.BatchNumber, string(stack.Placement.Kind), stack.Placement.PlacementID,
		stack.Placement.Row, stack.Placement.Col, stack.MaxSize, stack.Blocked, stack.LastOrder,
		wheels, string(stack.Status), stack.CreatedAt, stack.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert wheelstack: %w", err)
	}
	return nil
}

// Block ставит блокировку только на свободную стопку: фильтр по
// blocked = FALSE закрывает гонку двух конкурирующих заказов.
func (a wheelstackAccessor) Block(ctx context.Context, id, orderID string) (int64, error) {
	res, err := a.q.ExecContext(ctx, `
		UPDATE wheelstacks
		SET blocked = TRUE, last_order = $2, updated_at = $3
		WHERE id = $1 AND blocked = FALSE
	`, id, orderID, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("block wheelstack: %w", err)
	}
	return res.RowsAffected()
}

func (a wheelstackAccessor) Unblock(ctx context.Context, id string) (int64, error) {
	res, err := a.q.ExecContext(ctx, `
		UPDATE wheelstacks
		SET blocked = FALSE, updated_at = $2
		WHERE id = $1
	`, id, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("unblock wheelstack: %w", err)
	}
	return res.RowsAffected()
}

func (a wheelstackAccessor) Save(ctx context.Context, stack domain.Wheelstack) error {
	wheels, err := json.Marshal(stack.Wheels)
	if err != nil {
		return fmt.Errorf("encode wheels: %w", err)
	}
	res, err := a.q.ExecContext(ctx, `
		UPDATE wheelstacks
		SET batch_number = $2,
		    placement_kind = $3,
		    placement_id = $4,
		    row_name = $5,
		    col_name = $6,
		    max_size = $7,
		    blocked = $8,
		    last_order = $9,
		    wheels = $10,
		    status = $11,
		    updated_at = $12
		WHERE id = $1
	`,
		stack.ID, stack.BatchNumber, string(stack.Placement.Kind), stack.Placement.PlacementID,
		stack.Placement.Row, stack.Placement.Col, stack.MaxSize, stack.Blocked, stack.LastOrder,
		wheels, string(stack.Status), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("update wheelstack: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrWheelstackNotFound
	}
	return nil
}

func (a wheelstackAccessor) ListByBatch(ctx context.Context, batchNumber string) ([]domain.Wheelstack, error) {
	rows, err := a.q.QueryContext(ctx, `
		SELECT `+wheelstackColumns+`
		FROM wheelstacks
		WHERE batch_number = $1
		ORDER BY created_at ASC, id ASC
	`, batchNumber)
	if err != nil {
		return nil, fmt.Errorf("list wheelstacks by batch: %w", err)
	}
	defer rows.Close()

	stacks := make([]domain.Wheelstack, 0)
	for rows.Next() {
		stack, err := scanWheelstack(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan wheelstack row: %w", err)
		}
		stacks = append(stacks, stack)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate wheelstack rows: %w", err)
	}
	return stacks, nil
}

func scanWheelstack(scan func(dest ...interface{}) error) (domain.Wheelstack, error) {
	var (
		stack         domain.Wheelstack
		kind, status  string
		wheelsEncoded []byte
	)
	if err := scan(
		&stack.ID, &stack.BatchNumber, &kind, &stack.Placement.PlacementID,
		&stack.Placement.Row, &stack.Placement.Col, &stack.MaxSize, &stack.Blocked,
		&stack.LastOrder, &wheelsEncoded, &status, &stack.CreatedAt, &stack.UpdatedAt,
	); err != nil {
		return domain.Wheelstack{}, err
	}
	stack.Placement.Kind = domain.PlacementKind(kind)
	stack.Status = domain.WheelstackStatus(status)
	if err := json.Unmarshal(wheelsEncoded, &stack.Wheels); err != nil {
		return domain.Wheelstack{}, fmt.Errorf("decode wheels: %w", err)
	}
	return stack, nil
}

var _ domain.WheelstackAccessor = wheelstackAccessor{}

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

type orderAccessor struct {
	q queryer
}

const orderColumns = `
	id, order_type,
	source_kind, source_id, source_row, source_col,
	dest_kind, dest_id, dest_row, dest_col,
	source_wheelstack, dest_wheelstack, source_wheels, dest_wheels,
	chosen_wheel, lifecycle_state, cancellation_reason,
	created_at, last_updated, completed_at, canceled_at`

func (a orderAccessor) Create(ctx context.Context, order domain.Order) error {
	sourceWheels, err := json.Marshal(order.AffectedWheels.Source)
	if err != nil {
		return fmt.Errorf("encode source wheels: %w", err)
	}
	destWheels, err := json.Marshal(order.AffectedWheels.Destination)
	if err != nil {
		return fmt.Errorf("encode destination wheels: %w", err)
	}

	_, err = a.q.ExecContext(ctx, `
		INSERT INTO orders (`+orderColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21)
	`,
		order.ID, string(order.OrderType),
		string(order.Source.PlacementKind), order.Source.PlacementID, order.Source.Row, order.Source.Col,
		string(order.Destination.PlacementKind), order.Destination.PlacementID, order.Destination.Row, order.Destination.Col,
		order.AffectedWheelstacks.Source, order.AffectedWheelstacks.Destination, sourceWheels, destWheels,
		order.ChosenWheel, string(order.State), order.CancellationReason,
		order.CreatedAt, order.LastUpdated, order.CompletedAt, order.CanceledAt,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (a orderAccessor) GetPending(ctx context.Context, id string) (domain.Order, error) {
	return a.getWhere(ctx, `WHERE id = $1 AND lifecycle_state = 'pending'`, id)
}

func (a orderAccessor) Get(ctx context.Context, id string) (domain.Order, error) {
	return a.getWhere(ctx, `WHERE id = $1`, id)
}

func (a orderAccessor) getWhere(ctx context.Context, where string, arg interface{}) (domain.Order, error) {
	row := a.q.QueryRowContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		`+where, arg)
	order, err := scanOrder(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, fmt.Errorf("select order: %w", err)
	}
	return order, nil
}

func (a orderAccessor) ListByState(ctx context.Context, state domain.LifecycleState, limit int) ([]domain.Order, error) {
	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE lifecycle_state = $1
		ORDER BY created_at DESC, id DESC
	`

	var (
		rows *sql.Rows
		err  error
	)
	if limit > 0 {
		rows, err = a.q.QueryContext(ctx, query+" LIMIT $2", string(state), limit)
	} else {
		rows, err = a.q.QueryContext(ctx, query, string(state))
	}
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := make([]domain.Order, 0)
	for rows.Next() {
		order, err := scanOrder(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order rows: %w", err)
	}
	return orders, nil
}

// Complete и Cancel переводят состояние одним условным обновлением той же
// строки: фильтр по pending исключает двойное разрешение заказа.

func (a orderAccessor) Complete(ctx context.Context, id string, at time.Time) (int64, error) {
	res, err := a.q.ExecContext(ctx, `
		UPDATE orders
		SET lifecycle_state = 'completed', completed_at = $2, last_updated = $2
		WHERE id = $1 AND lifecycle_state = 'pending'
	`, id, at)
	if err != nil {
		return 0, fmt.Errorf("complete order: %w", err)
	}
	return res.RowsAffected()
}

func (a orderAccessor) Cancel(ctx context.Context, id, reason string, at time.Time) (int64, error) {
	res, err := a.q.ExecContext(ctx, `
		UPDATE orders
		SET lifecycle_state = 'canceled', cancellation_reason = $2, canceled_at = $3, last_updated = $3
		WHERE id = $1 AND lifecycle_state = 'pending'
	`, id, reason, at)
	if err != nil {
		return 0, fmt.Errorf("cancel order: %w", err)
	}
	return res.RowsAffected()
}

func scanOrder(scan func(dest ...interface{}) error) (domain.Order, error) {
	var (
		order                    domain.Order
		orderType, state         string
		sourceKind, destKind     string
		sourceWheels, destWheels []byte
	)
	if err := scan(
		&order.ID, &orderType,
		&sourceKind, &order.Source.PlacementID, &order.Source.Row, &order.Source.Col,
		&destKind, &order.Destination.PlacementID, &order.Destination.Row, &order.Destination.Col,
		&order.AffectedWheelstacks.Source, &order.AffectedWheelstacks.Destination, &sourceWheels, &destWheels,
		&order.ChosenWheel, &state, &order.CancellationReason,
		&order.CreatedAt, &order.LastUpdated, &order.CompletedAt, &order.CanceledAt,
	); err != nil {
		return domain.Order{}, err
	}
	order.OrderType = domain.OrderType(orderType)
	order.State = domain.LifecycleState(state)
	order.Source.PlacementKind = domain.PlacementKind(sourceKind)
	order.Destination.PlacementKind = domain.PlacementKind(destKind)
	if err := json.Unmarshal(sourceWheels, &order.AffectedWheels.Source); err != nil {
		return domain.Order{}, fmt.Errorf("decode source wheels: %w", err)
	}
	if err := json.Unmarshal(destWheels, &order.AffectedWheels.Destination); err != nil {
		return domain.Order{}, fmt.Errorf("decode destination wheels: %w", err)
	}
	return order, nil
}

var _ domain.OrderAccessor = orderAccessor{}

package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vladislavdragonenkov/wms/internal/domain"
)

type extraAccessor struct {
	q queryer
}

func (a extraAccessor) Get(ctx context.Context, placementID, name string) (domain.ExtraElement, error) {
	element := domain.ExtraElement{PlacementID: placementID, Name: name}
	var kind string
	err := a.q.QueryRowContext(ctx, `
		SELECT kind, blocked
		FROM extra_elements
		WHERE placement_id = $1 AND name = $2
	`, placementID, name).Scan(&kind, &element.Blocked)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ExtraElement{}, domain.ErrExtraElementNotFound
		}
		return domain.ExtraElement{}, fmt.Errorf("select extra element: %w", err)
	}
	element.Kind = domain.ExtraKind(kind)

	rows, err := a.q.QueryContext(ctx, `
		SELECT order_id
		FROM extra_element_orders
		WHERE placement_id = $1 AND name = $2
		ORDER BY added_at ASC, order_id ASC
	`, placementID, name)
	if err != nil {
		return domain.ExtraElement{}, fmt.Errorf("load extra element orders: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var orderID string
		if err := rows.Scan(&orderID); err != nil {
			return domain.ExtraElement{}, fmt.Errorf("scan extra element order: %w", err)
		}
		element.Orders = append(element.Orders, orderID)
	}
	if err := rows.Err(); err != nil {
		return domain.ExtraElement{}, fmt.Errorf("iterate extra element orders: %w", err)
	}
	return element, nil
}

func (a extraAccessor) Create(ctx context.Context, element domain.ExtraElement) error {
	_, err := a.q.ExecContext(ctx, `
		INSERT INTO extra_elements (placement_id, name, kind, blocked)
		VALUES ($1,$2,$3,$4)
	`, element.PlacementID, element.Name, string(element.Kind), element.Blocked)
	if err != nil {
		return fmt.Errorf("insert extra element: %w", err)
	}
	for _, orderID := range element.Orders {
		if _, err := a.q.ExecContext(ctx, `
			INSERT INTO extra_element_orders (placement_id, name, order_id)
			VALUES ($1,$2,$3)
		`, element.PlacementID, element.Name, orderID); err != nil {
			return fmt.Errorf("insert extra element order: %w", err)
		}
	}
	return nil
}

// AddOrder вставляет заказ только если элемент существует и не заблокирован
// вручную. Ноль совпадений покрывает оба отказа разом.
func (a extraAccessor) AddOrder(ctx context.Context, placementID, name, orderID string) (int64, error) {
	res, err := a.q.ExecContext(ctx, `
		INSERT INTO extra_element_orders (placement_id, name, order_id)
		SELECT $1, $2, $3
		WHERE EXISTS (
			SELECT 1 FROM extra_elements
			WHERE placement_id = $1 AND name = $2 AND blocked = FALSE
		)
		ON CONFLICT DO NOTHING
	`, placementID, name, orderID)
	if err != nil {
		return 0, fmt.Errorf("add order to extra element: %w", err)
	}
	return res.RowsAffected()
}

func (a extraAccessor) RemoveOrder(ctx context.Context, placementID, name, orderID string) (int64, error) {
	res, err := a.q.ExecContext(ctx, `
		DELETE FROM extra_element_orders
		WHERE placement_id = $1 AND name = $2 AND order_id = $3
	`, placementID, name, orderID)
	if err != nil {
		return 0, fmt.Errorf("remove order from extra element: %w", err)
	}
	return res.RowsAffected()
}

var _ domain.ExtraElementAccessor = extraAccessor{}

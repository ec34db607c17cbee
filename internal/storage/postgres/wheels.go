package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/wms/internal/domain"
)

type wheelAccessor struct {
	q queryer
}

func (a wheelAccessor) Get(ctx context.Context, id string) (domain.Wheel, error) {
	var (
		wheel        domain.Wheel
		status       string
		wheelstackID sql.NullString
		position     sql.NullInt64
	)
	err := a.q.QueryRowContext(ctx, `
		SELECT id, batch_number, diameter, receipt_date, status,
		       wheelstack_id, slot_position, created_at, updated_at
		FROM wheels
		WHERE id = $1
	`, id).Scan(
		&wheel.ID, &wheel.BatchNumber, &wheel.Diameter, &wheel.ReceiptDate, &status,
		&wheelstackID, &position, &wheel.CreatedAt, &wheel.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Wheel{}, domain.ErrWheelNotFound
		}
		return domain.Wheel{}, fmt.Errorf("select wheel: %w", err)
	}
	wheel.Status = domain.WheelStatus(status)
	if wheelstackID.Valid {
		wheel.Slot = &domain.WheelSlot{
			WheelstackID: wheelstackID.String,
			Position:     int(position.Int64),
		}
	}
	return wheel, nil
}

func (a wheelAccessor) Create(ctx context.Context, wheel domain.Wheel) error {
	wheelstackID, position := slotColumns(wheel.Slot)
	_, err := a.q.ExecContext(ctx, `
		INSERT INTO wheels (
			id, batch_number, diameter, receipt_date, status,
			wheelstack_id, slot_position, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`,
		wheel.ID, wheel.BatchNumber, wheel.Diameter, wheel.ReceiptDate, string(wheel.Status),
		wheelstackID, position, wheel.CreatedAt, wheel.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert wheel: %w", err)
	}
	return nil
}

func (a wheelAccessor) Save(ctx context.Context, wheel domain.Wheel) error {
	wheelstackID, position := slotColumns(wheel.Slot)
	res, err := a.q.ExecContext(ctx, `
		UPDATE wheels
		SET batch_number = $2,
		    diameter = $3,
		    receipt_date = $4,
		    status = $5,
		    wheelstack_id = $6,
		    slot_position = $7,
		    updated_at = $8
		WHERE id = $1
	`,
		wheel.ID, wheel.BatchNumber, wheel.Diameter, wheel.ReceiptDate, string(wheel.Status),
		wheelstackID, position, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("update wheel: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrWheelNotFound
	}
	return nil
}

func slotColumns(slot *domain.WheelSlot) (sql.NullString, sql.NullInt64) {
	if slot == nil {
		return sql.NullString{}, sql.NullInt64{}
	}
	return sql.NullString{String: slot.WheelstackID, Valid: true},
		sql.NullInt64{Int64: int64(slot.Position), Valid: true}
}

var _ domain.WheelAccessor = wheelAccessor{}

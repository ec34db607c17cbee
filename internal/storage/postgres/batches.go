package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/wms/internal/domain"
)

type batchAccessor struct {
	q queryer
}

func (a batchAccessor) Get(ctx context.Context, batchNumber string) (domain.BatchNumber, error) {
	var batch domain.BatchNumber
	err := a.q.QueryRowContext(ctx, `
		SELECT batch_number, laboratory_passed, laboratory_test_date, created_at, updated_at
		FROM batch_numbers
		WHERE batch_number = $1
	`, batchNumber).Scan(
		&batch.BatchNumber, &batch.LaboratoryPassed, &batch.LaboratoryTestDate,
		&batch.CreatedAt, &batch.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.BatchNumber{}, domain.ErrBatchNotFound
		}
		return domain.BatchNumber{}, fmt.Errorf("select batch: %w", err)
	}

	rows, err := a.q.QueryContext(ctx, `
		SELECT wheel_id, arrival_date, result, test_date, confirmed_by
		FROM batch_test_records
		WHERE batch_number = $1
		ORDER BY arrival_date ASC, wheel_id ASC
	`, batchNumber)
	if err != nil {
		return domain.BatchNumber{}, fmt.Errorf("load batch test records: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var record domain.TestRecord
		if err := rows.Scan(
			&record.WheelID, &record.ArrivalDate, &record.Result,
			&record.TestDate, &record.ConfirmedBy,
		); err != nil {
			return domain.BatchNumber{}, fmt.Errorf("scan batch test record: %w", err)
		}
		batch.Wheels = append(batch.Wheels, record)
	}
	if err := rows.Err(); err != nil {
		return domain.BatchNumber{}, fmt.Errorf("iterate batch test records: %w", err)
	}
	return batch, nil
}

func (a batchAccessor) Create(ctx context.Context, batch domain.BatchNumber) error {
	_, err := a.q.ExecContext(ctx, `
		INSERT INTO batch_numbers (batch_number, laboratory_passed, laboratory_test_date, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5)
	`, batch.BatchNumber, batch.LaboratoryPassed, batch.LaboratoryTestDate, batch.CreatedAt, batch.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert batch: %w", err)
	}
	for _, record := range batch.Wheels {
		if err := a.insertRecord(ctx, batch.BatchNumber, record); err != nil {
			return err
		}
	}
	return nil
}

func (a batchAccessor) AppendTestRecord(ctx context.Context, batchNumber string, record domain.TestRecord) error {
	res, err := a.q.ExecContext(ctx, `
		UPDATE batch_numbers
		SET updated_at = $2
		WHERE batch_number = $1
	`, batchNumber, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("stamp batch: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrBatchNotFound
	}
	return a.insertRecord(ctx, batchNumber, record)
}

func (a batchAccessor) insertRecord(ctx context.Context, batchNumber string, record domain.TestRecord) error {
	_, err := a.q.ExecContext(ctx, `
		INSERT INTO batch_test_records (batch_number, wheel_id, arrival_date, result, test_date, confirmed_by)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, batchNumber, record.WheelID, record.ArrivalDate, record.Result, record.TestDate, record.ConfirmedBy)
	if err != nil {
		return fmt.Errorf("insert batch test record: %w", err)
	}
	return nil
}

var _ domain.BatchAccessor = batchAccessor{}

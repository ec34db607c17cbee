package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/wms/internal/domain"
)

type storageAccessor struct {
	q queryer
}

func (a storageAccessor) Get(ctx context.Context, id string) (domain.Storage, error) {
	return a.get(ctx, `WHERE id = $1`, id)
}

func (a storageAccessor) GetByName(ctx context.Context, name string) (domain.Storage, error) {
	return a.get(ctx, `WHERE name = $1`, name)
}

func (a storageAccessor) get(ctx context.Context, where string, arg interface{}) (domain.Storage, error) {
	var storage domain.Storage
	err := a.q.QueryRowContext(ctx, `
		SELECT id, name, last_change
		FROM storages
		`+where, arg).Scan(&storage.ID, &storage.Name, &storage.LastChange)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Storage{}, domain.ErrStorageNotFound
		}
		return domain.Storage{}, fmt.Errorf("select storage: %w", err)
	}

	rows, err := a.q.QueryContext(ctx, `
		SELECT wheelstack_id
		FROM storage_elements
		WHERE storage_id = $1
		ORDER BY added_at ASC, wheelstack_id ASC
	`, storage.ID)
	if err != nil {
		return domain.Storage{}, fmt.Errorf("load storage elements: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var wheelstackID string
		if err := rows.Scan(&wheelstackID); err != nil {
			return domain.Storage{}, fmt.Errorf("scan storage element: %w", err)
		}
		storage.Elements = append(storage.Elements, wheelstackID)
	}
	if err := rows.Err(); err != nil {
		return domain.Storage{}, fmt.Errorf("iterate storage elements: %w", err)
	}
	return storage, nil
}

func (a storageAccessor) Create(ctx context.Context, storage domain.Storage) error {
	lastChange := storage.LastChange
	if lastChange.IsZero() {
		lastChange = time.Now().UTC()
	}
	_, err := a.q.ExecContext(ctx, `
		INSERT INTO storages (id, name, last_change)
		VALUES ($1,$2,$3)
	`, storage.ID, storage.Name, lastChange)
	if err != nil {
		return fmt.Errorf("insert storage: %w", err)
	}
	for _, wheelstackID := range storage.Elements {
		if _, err := a.q.ExecContext(ctx, `
			INSERT INTO storage_elements (storage_id, wheelstack_id)
			VALUES ($1,$2)
		`, storage.ID, wheelstackID); err != nil {
			return fmt.Errorf("insert storage element: %w", err)
		}
	}
	return nil
}

func (a storageAccessor) AddWheelstack(ctx context.Context, storageID, wheelstackID string) error {
	if err := a.Touch(ctx, storageID); err != nil {
		return err
	}
	_, err := a.q.ExecContext(ctx, `
		INSERT INTO storage_elements (storage_id, wheelstack_id)
		VALUES ($1,$2)
		ON CONFLICT DO NOTHING
	`, storageID, wheelstackID)
	if err != nil {
		return fmt.Errorf("add wheelstack to storage: %w", err)
	}
	return nil
}

func (a storageAccessor) RemoveWheelstack(ctx context.Context, storageID, wheelstackID string) (int64, error) {
	res, err := a.q.ExecContext(ctx, `
		DELETE FROM storage_elements
		WHERE storage_id = $1 AND wheelstack_id = $2
	`, storageID, wheelstackID)
	if err != nil {
		return 0, fmt.Errorf("remove wheelstack from storage: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	if affected > 0 {
		if err := a.Touch(ctx, storageID); err != nil {
			return affected, err
		}
	}
	return affected, nil
}

func (a storageAccessor) Touch(ctx context.Context, storageID string) error {
	res, err := a.q.ExecContext(ctx, `
		UPDATE storages
		SET last_change = $2
		WHERE id = $1
	`, storageID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("touch storage: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrStorageNotFound
	}
	return nil
}

var _ domain.StorageAccessor = storageAccessor{}

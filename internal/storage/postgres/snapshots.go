package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vladislavdragonenkov/wms/internal/domain"
)

type snapshotAccessor struct {
	q queryer
}

func (a snapshotAccessor) Insert(ctx context.Context, snapshot domain.PlacementSnapshot) error {
	_, err := a.q.ExecContext(ctx, `
		INSERT INTO placement_snapshots (id, placement_kind, placement_id, state, created_at)
		VALUES ($1,$2,$3,$4,$5)
	`, snapshot.ID, string(snapshot.PlacementKind), snapshot.PlacementID, snapshot.State, snapshot.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert placement snapshot: %w", err)
	}
	return nil
}

func (a snapshotAccessor) Last(ctx context.Context, kind domain.PlacementKind, placementID string) (domain.PlacementSnapshot, error) {
	snapshot := domain.PlacementSnapshot{PlacementKind: kind, PlacementID: placementID}
	err := a.q.QueryRowContext(ctx, `
		SELECT id, state, created_at
		FROM placement_snapshots
		WHERE placement_kind = $1 AND placement_id = $2
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`, string(kind), placementID).Scan(&snapshot.ID, &snapshot.State, &snapshot.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.PlacementSnapshot{}, domain.ErrSnapshotNotFound
		}
		return domain.PlacementSnapshot{}, fmt.Errorf("select last placement snapshot: %w", err)
	}
	return snapshot, nil
}

var _ domain.SnapshotAccessor = snapshotAccessor{}

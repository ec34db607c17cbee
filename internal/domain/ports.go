package domain

// SnapshotRecorder описывает сборщик исторических снимков размещений.
// Вызывается fire-and-forget после транзакций, меняющих занятость ячеек;
// ошибки записи не влияют на уже зафиксированный переход.
type SnapshotRecorder interface {
	RecordSnapshot(kind PlacementKind, placementID string)
}

package history

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/wms/internal/domain"
	"github.com/vladislavdragonenkov/wms/internal/metrics"
)

const recordTimeout = 10 * time.Second

// Archive — опциональное внешнее хранилище снимков (S3-совместимое).
type Archive interface {
	Put(ctx context.Context, key string, data []byte) error
}

// Recorder собирает точечные снимки размещений после переходов, меняющих
// занятость ячеек. Вызывается fire-and-forget: ошибки записи логируются
// и никогда не доходят до инициатора перехода.
type Recorder struct {
	store   domain.Store
	archive Archive // nil, если внешний архив не настроен
	logger  *log.Entry
	metrics *metrics.OrderMetrics

	wg sync.WaitGroup
}

// NewRecorder создаёт рабочий экземпляр рекордера.
func NewRecorder(store domain.Store, archive Archive, orderMetrics *metrics.OrderMetrics, logger *log.Entry) *Recorder {
	if logger == nil {
		logger = log.New().WithField("component", "history")
	}
	return &Recorder{
		store:   store,
		archive: archive,
		logger:  logger,
		metrics: orderMetrics,
	}
}

// RecordSnapshot запускает фоновую запись снимка размещения.
func (r *Recorder) RecordSnapshot(kind domain.PlacementKind, placementID string) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		defer cancel()

		if err := r.record(ctx, kind, placementID); err != nil {
			if r.metrics != nil {
				r.metrics.RecordSnapshotFailed()
			}
			r.logger.WithError(err).WithFields(log.Fields{
				"placement_kind": kind,
				"placement_id":   placementID,
			}).Warn("placement snapshot failed")
			return
		}
		if r.metrics != nil {
			r.metrics.RecordSnapshot()
		}
	}()
}

// Wait дожидается завершения всех фоновых записей (shutdown и тесты).
func (r *Recorder) Wait() {
	r.wg.Wait()
}

func (r *Recorder) record(ctx context.Context, kind domain.PlacementKind, placementID string) error {
	state, err := r.assemble(ctx, kind, placementID)
	if err != nil {
		return err
	}

	snapshot := domain.PlacementSnapshot{
		ID:            uuid.NewString(),
		PlacementKind: kind,
		PlacementID:   placementID,
		State:         state,
		CreatedAt:     time.Now().UTC(),
	}
	if err := r.store.Snapshots().Insert(ctx, snapshot); err != nil {
		return err
	}

	if r.archive != nil {
		key := string(kind) + "/" + placementID + "/" + snapshot.CreatedAt.Format(time.RFC3339Nano) + ".json"
		if err := r.archive.Put(ctx, key, state); err != nil {
			// Снимок уже лежит в основном хранилище; архив — best-effort.
			r.logger.WithError(err).WithField("key", key).Warn("snapshot archive upload failed")
		}
	}
	return nil
}

// assemble строит JSON-представление текущего состояния размещения.
func (r *Recorder) assemble(ctx context.Context, kind domain.PlacementKind, placementID string) ([]byte, error) {
	if kind == domain.PlacementStorage {
		storage, err := r.store.Storages().Get(ctx, placementID)
		if err != nil {
			return nil, err
		}
		return json.Marshal(map[string]interface{}{
			"storage_id":  storage.ID,
			"name":        storage.Name,
			"elements":    storage.Elements,
			"last_change": storage.LastChange,
		})
	}

	cells, err := r.store.Cells().ListByPlacement(ctx, kind, placementID)
	if err != nil {
		return nil, err
	}
	rows := make([]map[string]interface{}, 0, len(cells))
	for _, cell := range cells {
		rows = append(rows, map[string]interface{}{
			"row":           cell.Ref.Row,
			"col":           cell.Ref.Col,
			"wheelstack_id": cell.WheelstackID,
			"blocked":       cell.Blocked,
			"blocked_by":    cell.BlockedBy,
		})
	}
	return json.Marshal(map[string]interface{}{
		"placement_kind": kind,
		"placement_id":   placementID,
		"cells":          rows,
	})
}

var _ domain.SnapshotRecorder = (*Recorder)(nil)

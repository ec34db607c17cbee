package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/wms/internal/domain"
	"github.com/vladislavdragonenkov/wms/internal/service/orders"
)

// actorHeader несёт имя сотрудника, подтверждающего операцию.
const actorHeader = "X-Actor"

// Handler — тонкий JSON-слой над движками заказов. Вся доменная логика
// живёт в service/orders; здесь только декодирование, маршрутизация
// и трансляция доменных ошибок в HTTP-статусы.
type Handler struct {
	service *orders.Service
	store   domain.Store
	logger  *log.Entry
}

// NewHandler создаёт HTTP-обработчик поверх движков заказов.
func NewHandler(service *orders.Service, store domain.Store, logger *log.Entry) *Handler {
	if logger == nil {
		logger = log.New().WithField("component", "httpapi")
	}
	return &Handler{service: service, store: store, logger: logger}
}

// Register навешивает маршруты API на mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /orders", h.createOrder)
	mux.HandleFunc("POST /orders/bulk", h.createOrdersBulk)
	mux.HandleFunc("POST /orders/cancel", h.cancelOrdersBulk)
	mux.HandleFunc("POST /orders/{id}/complete", h.completeOrder)
	mux.HandleFunc("POST /orders/{id}/cancel", h.cancelOrder)
	mux.HandleFunc("GET /orders/{id}", h.getOrder)
	mux.HandleFunc("GET /orders", h.listOrders)
	mux.HandleFunc("GET /storages/{name}", h.getStorageByName)
}

type endpointPayload struct {
	PlacementKind string `json:"placementKind"`
	PlacementID   string `json:"placementId"`
	Row           string `json:"row"`
	Col           string `json:"col"`
}

func (p endpointPayload) toRef() domain.EndpointRef {
	return domain.EndpointRef{
		PlacementKind: domain.PlacementKind(p.PlacementKind),
		PlacementID:   p.PlacementID,
		Row:           p.Row,
		Col:           p.Col,
	}
}

type createOrderPayload struct {
	OrderType        string          `json:"orderType"`
	Source           endpointPayload `json:"source"`
	Destination      endpointPayload `json:"destination"`
	SourceWheelstack string          `json:"sourceWheelstack,omitempty"`
	ChosenWheel      string          `json:"chosenWheel,omitempty"`
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	var payload createOrderPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.writeError(w, domain.NewValidationError("decode request body: %v", err))
		return
	}

	id, err := h.service.Create(r.Context(), orders.CreateRequest{
		OrderType:        domain.OrderType(payload.OrderType),
		Source:           payload.Source.toRef(),
		Destination:      payload.Destination.toRef(),
		SourceWheelstack: payload.SourceWheelstack,
		ChosenWheel:      payload.ChosenWheel,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, map[string]string{"orderId": id})
}

type bulkCreatePayload struct {
	OrderType   string          `json:"orderType"`
	BatchNumber string          `json:"batchNumber"`
	ScopeKind   string          `json:"scopeKind"`
	ScopeID     string          `json:"scopeId"`
	Destination endpointPayload `json:"destination"`
}

func (h *Handler) createOrdersBulk(w http.ResponseWriter, r *http.Request) {
	var payload bulkCreatePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.writeError(w, domain.NewValidationError("decode request body: %v", err))
		return
	}

	ids, err := h.service.CreateBulk(r.Context(), orders.BulkCreateRequest{
		OrderType:   domain.OrderType(payload.OrderType),
		BatchNumber: payload.BatchNumber,
		ScopeKind:   domain.PlacementKind(payload.ScopeKind),
		ScopeID:     payload.ScopeID,
		Destination: payload.Destination.toRef(),
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	h.writeJSON(w, http.StatusCreated, map[string]interface{}{"orderIds": ids})
}

func (h *Handler) completeOrder(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Complete(r.Context(), r.PathValue("id"), r.Header.Get(actorHeader)); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "completed"})
}

type cancelPayload struct {
	Reason string `json:"reason,omitempty"`
}

func (h *Handler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	var payload cancelPayload
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			h.writeError(w, domain.NewValidationError("decode request body: %v", err))
			return
		}
	}

	if err := h.service.Cancel(r.Context(), r.PathValue("id"), payload.Reason); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "canceled"})
}

type bulkCancelPayload struct {
	OrderIDs []string `json:"orderIds"`
	Reason   string   `json:"reason,omitempty"`
}

func (h *Handler) cancelOrdersBulk(w http.ResponseWriter, r *http.Request) {
	var payload bulkCancelPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.writeError(w, domain.NewValidationError("decode request body: %v", err))
		return
	}
	if len(payload.OrderIDs) == 0 {
		h.writeError(w, domain.NewValidationError("orderIds must not be empty"))
		return
	}

	ids, err := h.service.CancelBulk(r.Context(), payload.OrderIDs, payload.Reason)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"canceledIds": ids})
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.store.Orders().Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, orderView(order))
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	state := domain.LifecycleState(r.URL.Query().Get("state"))
	if state == "" {
		state = domain.LifecyclePending
	}
	switch state {
	case domain.LifecyclePending, domain.LifecycleCompleted, domain.LifecycleCanceled:
	default:
		h.writeError(w, domain.NewValidationError("unknown lifecycle state %q", state))
		return
	}

	list, err := h.store.Orders().ListByState(r.Context(), state, 100)
	if err != nil {
		h.writeError(w, err)
		return
	}
	views := make([]map[string]interface{}, 0, len(list))
	for _, order := range list {
		views = append(views, orderView(order))
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"orders": views})
}

// getStorageByName отдаёт состав хранилища по уникальному имени.
// Опрашивающие клиенты сверяют lastChange, не перечитывая состав.
func (h *Handler) getStorageByName(w http.ResponseWriter, r *http.Request) {
	storage, err := h.store.Storages().GetByName(r.Context(), r.PathValue("name"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	elements := storage.Elements
	if elements == nil {
		elements = []string{}
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":         storage.ID,
		"name":       storage.Name,
		"elements":   elements,
		"lastChange": storage.LastChange,
	})
}

func orderView(order domain.Order) map[string]interface{} {
	view := map[string]interface{}{
		"id":        order.ID,
		"orderType": order.OrderType,
		"state":     order.State,
		"source": map[string]string{
			"placementKind": string(order.Source.PlacementKind),
			"placementId":   order.Source.PlacementID,
			"row":           order.Source.Row,
			"col":           order.Source.Col,
		},
		"destination": map[string]string{
			"placementKind": string(order.Destination.PlacementKind),
			"placementId":   order.Destination.PlacementID,
			"row":           order.Destination.Row,
			"col":           order.Destination.Col,
		},
		"sourceWheelstack": order.AffectedWheelstacks.Source,
		"createdAt":        order.CreatedAt,
		"lastUpdated":      order.LastUpdated,
	}
	if order.AffectedWheelstacks.Destination != "" {
		view["destinationWheelstack"] = order.AffectedWheelstacks.Destination
	}
	if order.ChosenWheel != "" {
		view["chosenWheel"] = order.ChosenWheel
	}
	if order.CancellationReason != "" {
		view["cancellationReason"] = order.CancellationReason
	}
	if order.CompletedAt != nil {
		view["completedAt"] = order.CompletedAt
	}
	if order.CanceledAt != nil {
		view["canceledAt"] = order.CanceledAt
	}
	return view
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.WithError(err).Warn("encode response failed")
	}
}

// writeError транслирует доменную классификацию ошибки в HTTP-статус.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrTestsNotDone), errors.Is(err, domain.ErrTestsFailed):
		status = http.StatusForbidden
	case domain.IsValidation(err):
		status = http.StatusBadRequest
	case domain.IsNotFound(err):
		status = http.StatusNotFound
	case domain.IsConflict(err):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrTxRetriesExhausted):
		status = http.StatusServiceUnavailable
	case domain.IsCorruption(err):
		status = http.StatusInternalServerError
	}

	if status == http.StatusInternalServerError {
		h.logger.WithError(err).Error("request failed")
	}
	h.writeJSON(w, status, map[string]string{"error": err.Error()})
}

package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OrderMetrics содержит метрики жизненного цикла заказов на перемещение.
type OrderMetrics struct {
	// Счётчики переходов по типам заказов
	ordersCreated   *prometheus.CounterVec
	ordersCompleted *prometheus.CounterVec
	ordersCanceled  *prometheus.CounterVec
	ordersFailed    *prometheus.CounterVec

	// Гистограммы времени исполнения операций движков
	operationDuration *prometheus.HistogramVec

	// Повторы транзакций после транзиентных конфликтов
	txRetries prometheus.Counter

	// Снимки истории размещений
	snapshotsRecorded prometheus.Counter
	snapshotsFailed   prometheus.Counter

	// Gauge активных (pending) заказов
	pendingOrders prometheus.Gauge
}

// NewOrderMetrics создаёт новый экземпляр метрик заказов.
func NewOrderMetrics() *OrderMetrics {
	return newOrderMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

func newOrderMetricsWithRegisterer(registerer prometheus.Registerer) *OrderMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &OrderMetrics{
		ordersCreated: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "wms_orders_created_total",
			Help: "Total number of movement orders created",
		}, []string{"order_type"}),
		ordersCompleted: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "wms_orders_completed_total",
			Help: "Total number of movement orders completed",
		}, []string{"order_type"}),
		ordersCanceled: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "wms_orders_canceled_total",
			Help: "Total number of movement orders canceled",
		}, []string{"order_type"}),
		ordersFailed: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "wms_orders_failed_total",
			Help: "Total number of movement order operations failed",
		}, []string{"order_type"}),
		operationDuration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "wms_order_operation_duration_seconds",
			Help:    "Duration of order engine operations in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"operation"}),
		txRetries: registerCounter(registerer, prometheus.CounterOpts{
			Name: "wms_tx_retries_total",
			Help: "Total number of transaction retries after transient conflicts",
		}),
		snapshotsRecorded: registerCounter(registerer, prometheus.CounterOpts{
			Name: "wms_placement_snapshots_total",
			Help: "Total number of placement history snapshots recorded",
		}),
		snapshotsFailed: registerCounter(registerer, prometheus.CounterOpts{
			Name: "wms_placement_snapshots_failed_total",
			Help: "Total number of placement history snapshots that failed",
		}),
		pendingOrders: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "wms_pending_orders",
			Help: "Number of currently pending movement orders",
		}),
	}
}

// RecordOrderCreated увеличивает счётчик созданных заказов.
func (m *OrderMetrics) RecordOrderCreated(orderType string) {
	m.ordersCreated.WithLabelValues(orderType).Inc()
	m.pendingOrders.Inc()
}

// RecordOrderCompleted увеличивает счётчик завершённых заказов.
func (m *OrderMetrics) RecordOrderCompleted(orderType string) {
	m.ordersCompleted.WithLabelValues(orderType).Inc()
	m.pendingOrders.Dec()
}

// RecordOrderCanceled увеличивает счётчик отменённых заказов.
func (m *OrderMetrics) RecordOrderCanceled(orderType string) {
	m.ordersCanceled.WithLabelValues(orderType).Inc()
	m.pendingOrders.Dec()
}

// RecordOrderFailed увеличивает счётчик провалившихся операций.
func (m *OrderMetrics) RecordOrderFailed(orderType string) {
	m.ordersFailed.WithLabelValues(orderType).Inc()
}

// RecordOperationDuration записывает длительность операции движка.
func (m *OrderMetrics) RecordOperationDuration(operation string, d time.Duration) {
	m.operationDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// RecordTxRetry увеличивает счётчик повторов транзакций.
func (m *OrderMetrics) RecordTxRetry() {
	m.txRetries.Inc()
}

// RecordSnapshot увеличивает счётчик записанных снимков.
func (m *OrderMetrics) RecordSnapshot() {
	m.snapshotsRecorded.Inc()
}

// RecordSnapshotFailed увеличивает счётчик провалившихся снимков.
func (m *OrderMetrics) RecordSnapshotFailed() {
	m.snapshotsFailed.Inc()
}

func registerCounter(registerer prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	collector := prometheus.NewCounter(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Counter)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter %q: %v", opts.Name, err))
	}
	return collector
}

func registerCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	collector := prometheus.NewCounterVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.CounterVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter vec %q: %v", opts.Name, err))
	}
	return collector
}

func registerGauge(registerer prometheus.Registerer, opts prometheus.GaugeOpts) prometheus.Gauge {
	collector := prometheus.NewGauge(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Gauge)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register gauge %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogramVec(registerer prometheus.Registerer, opts prometheus.HistogramOpts, labels []string) *prometheus.HistogramVec {
	collector := prometheus.NewHistogramVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.HistogramVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram vec %q: %v", opts.Name, err))
	}
	return collector
}

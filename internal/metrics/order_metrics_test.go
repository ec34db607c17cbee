package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestOrderMetrics_Counters(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := newOrderMetricsWithRegisterer(registry)

	m.RecordOrderCreated("moveWholeStack")
	m.RecordOrderCreated("moveWholeStack")
	m.RecordOrderCompleted("moveWholeStack")
	m.RecordOrderCanceled("moveWholeStack")
	m.RecordOrderFailed("mergeWheelstacks")
	m.RecordTxRetry()
	m.RecordSnapshot()
	m.RecordSnapshotFailed()
	m.RecordOperationDuration("create", 10*time.Millisecond)

	require.Equal(t, 2.0, testutil.ToFloat64(m.ordersCreated.WithLabelValues("moveWholeStack")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.ordersCompleted.WithLabelValues("moveWholeStack")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.ordersCanceled.WithLabelValues("moveWholeStack")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.ordersFailed.WithLabelValues("mergeWheelstacks")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.txRetries))
	require.Equal(t, 1.0, testutil.ToFloat64(m.snapshotsRecorded))
	require.Equal(t, 1.0, testutil.ToFloat64(m.snapshotsFailed))

	// created=2, completed=1, canceled=1.
	require.Equal(t, 0.0, testutil.ToFloat64(m.pendingOrders))
}

func TestOrderMetrics_DoubleRegistration(t *testing.T) {
	registry := prometheus.NewRegistry()

	first := newOrderMetricsWithRegisterer(registry)
	second := newOrderMetricsWithRegisterer(registry)

	// Повторная регистрация возвращает уже существующие коллекторы.
	first.RecordTxRetry()
	second.RecordTxRetry()
	require.Equal(t, 2.0, testutil.ToFloat64(first.txRetries))
}

func TestOrderMetrics_NilRegistererFallsBack(t *testing.T) {
	require.NotPanics(t, func() {
		m := newOrderMetricsWithRegisterer(nil)
		require.NotNil(t, m)
	})
}

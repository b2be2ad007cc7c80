package observability

import (
	"math/big"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for PerpPool.
type Metrics struct {
	// --- Engine ---
	OpsApplied       *prometheus.CounterVec
	OpsRejected      *prometheus.CounterVec
	OpDuration       *prometheus.HistogramVec
	EngineSequence   prometheus.Gauge
	VirtualPoolValue prometheus.Gauge
	ShareSupply      prometheus.Gauge
	PoolAmount       *prometheus.GaugeVec
	FeeReserve       *prometheus.GaugeVec
	BorrowIndex      *prometheus.GaugeVec

	// --- Channel & Backpressure ---
	ChannelSize         *prometheus.GaugeVec
	ChannelCapacity     *prometheus.GaugeVec
	ChannelUtilization  *prometheus.GaugeVec
	PublishDrops        prometheus.Counter
	PersistBackpressure prometheus.Counter

	// --- Persistence ---
	PersistRecordsWritten prometheus.Counter
	PersistBatchSize      prometheus.Histogram
	PersistBatchDur       prometheus.Histogram
	PersistErrors         *prometheus.CounterVec
	PersistRetry          prometheus.Counter
	PersistLastSequence   prometheus.Gauge

	// --- HTTP API ---
	APIRequests *prometheus.CounterVec
	APIDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	opBuckets := []float64{
		0.00001, 0.000025, 0.00005, 0.0001, 0.00025,
		0.0005, 0.001, 0.002, 0.005, 0.01,
	}

	return &Metrics{
		// Engine
		OpsApplied: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "pool_ops_applied_total",
			Help: "Operations committed by the engine",
		}, []string{"op"}),

		OpsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "pool_ops_rejected_total",
			Help: "Operations rejected (validation, reserve floor, external)",
		}, []string{"op", "reason"}),

		OpDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pool_op_duration_seconds",
			Help:    "Time to apply a single operation",
			Buckets: opBuckets,
		}, []string{"op"}),

		EngineSequence: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "pool_engine_sequence",
			Help: "Current operation sequence number",
		}),

		VirtualPoolValue: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "pool_virtual_value",
			Help: "Smoothed pool valuation (ValuePrecision scale, approximate)",
		}),

		ShareSupply: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "pool_share_supply",
			Help: "Total share token supply (approximate)",
		}),

		PoolAmount: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pool_asset_amount",
			Help: "Pool reserve per token in base units (approximate)",
		}, []string{"token"}),

		FeeReserve: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pool_fee_reserve",
			Help: "Protocol fee reserve per token in base units (approximate)",
		}, []string{"token"}),

		BorrowIndex: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pool_borrow_index",
			Help: "Cumulative interest index per token (approximate)",
		}, []string{"token"}),

		// Channel & Backpressure
		ChannelSize: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pool_channel_size",
			Help: "Current items in channel",
		}, []string{"name"}),

		ChannelCapacity: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pool_channel_capacity",
			Help: "Channel capacity (constant)",
		}, []string{"name"}),

		ChannelUtilization: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pool_channel_utilization",
			Help: "Channel size / capacity (0.0-1.0)",
		}, []string{"name"}),

		PublishDrops: promauto.NewCounter(prometheus.CounterOpts{
			Name: "pool_publish_drops_total",
			Help: "Records dropped due to full publish channel",
		}),

		PersistBackpressure: promauto.NewCounter(prometheus.CounterOpts{
			Name: "pool_persist_backpressure_total",
			Help: "Times the engine blocked on the persist channel",
		}),

		// Persistence
		PersistRecordsWritten: promauto.NewCounter(prometheus.CounterOpts{
			Name: "pool_persist_records_written_total",
			Help: "Operation records written to Postgres",
		}),

		PersistBatchSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "pool_persist_batch_size",
			Help:    "Records per batch",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500},
		}),

		PersistBatchDur: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "pool_persist_batch_duration_seconds",
			Help:    "Postgres batch write duration",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}),

		PersistErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "pool_persist_errors_total",
			Help: "Persistence errors",
		}, []string{"error_type"}),

		PersistRetry: promauto.NewCounter(prometheus.CounterOpts{
			Name: "pool_persist_retry_total",
			Help: "Persistence retries",
		}),

		PersistLastSequence: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "pool_persist_last_sequence",
			Help: "Last persisted sequence",
		}),

		// HTTP API
		APIRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "pool_api_requests_total",
			Help: "API requests",
		}, []string{"endpoint", "status"}),

		APIDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pool_api_duration_seconds",
			Help:    "API latency",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}, []string{"endpoint"}),
	}
}

// SetChannelMetrics updates channel utilization metrics.
func (m *Metrics) SetChannelMetrics(name string, size, capacity int) {
	m.ChannelSize.WithLabelValues(name).Set(float64(size))
	m.ChannelCapacity.WithLabelValues(name).Set(float64(capacity))
	if capacity > 0 {
		m.ChannelUtilization.WithLabelValues(name).Set(float64(size) / float64(capacity))
	}
}

// BigFloat converts a big.Int to float64 for gauge export. Lossy above
// 2^53; fine for dashboards, never used in economic math.
func BigFloat(v *big.Int) float64 {
	f, _ := new(big.Float).SetInt(v).Float64()
	return f
}

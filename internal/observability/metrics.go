package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for ordertrack.
// Components accept a nil *Metrics and skip recording, so tests can run
// without touching the global registry.
type Metrics struct {
	// --- Ledger ---
	OrdersCreated prometheus.Counter
	FillsTotal    *prometheus.CounterVec
	OpenOrders    prometheus.Gauge

	// --- Snapshot ---
	SnapshotSaveDuration prometheus.Histogram
	SnapshotLoadDuration prometheus.Histogram
	SnapshotOrders       prometheus.Gauge

	// --- Archive ---
	ArchiveRowsWritten   prometheus.Counter
	ArchiveErrors        *prometheus.CounterVec
	ArchiveBatchDuration prometheus.Histogram
	ArchiveDrops         prometheus.Counter

	// --- Fill feed ---
	FeedReports *prometheus.CounterVec

	// --- Bridge ---
	BridgeSubmissions *prometheus.CounterVec
	BridgeReconciles  *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	durationBuckets := []float64{
		0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0,
	}

	return &Metrics{
		OrdersCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "otrack_orders_created_total",
			Help: "Orders added to the ledger",
		}),

		FillsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "otrack_fills_total",
			Help: "Fill attempts routed through the ledger, by outcome",
		}, []string{"outcome"}),

		OpenOrders: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "otrack_open_orders",
			Help: "Orders whose status is not Filled",
		}),

		SnapshotSaveDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "otrack_snapshot_save_duration_seconds",
			Help:    "Time to write the orders snapshot file",
			Buckets: durationBuckets,
		}),

		SnapshotLoadDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "otrack_snapshot_load_duration_seconds",
			Help:    "Time to load and replay the orders snapshot file",
			Buckets: durationBuckets,
		}),

		SnapshotOrders: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "otrack_snapshot_orders",
			Help: "Orders written by the most recent snapshot save",
		}),

		ArchiveRowsWritten: promauto.NewCounter(prometheus.CounterOpts{
			Name: "otrack_archive_rows_written_total",
			Help: "Order rows upserted into the Postgres archive",
		}),

		ArchiveErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "otrack_archive_errors_total",
			Help: "Archive write failures, by stage",
		}, []string{"stage"}),

		ArchiveBatchDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "otrack_archive_batch_duration_seconds",
			Help:    "Postgres archive batch write duration",
			Buckets: durationBuckets,
		}),

		ArchiveDrops: promauto.NewCounter(prometheus.CounterOpts{
			Name: "otrack_archive_drops_total",
			Help: "Archive records dropped because the channel was full or retries were exhausted",
		}),

		FeedReports: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "otrack_feed_reports_total",
			Help: "Fill reports consumed from the feed, by result",
		}, []string{"result"}),

		BridgeSubmissions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "otrack_bridge_submissions_total",
			Help: "External order submissions through the bridge, by result",
		}, []string{"result"}),

		BridgeReconciles: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "otrack_bridge_reconciles_total",
			Help: "Bridge reconciliations against the execution venue, by result",
		}, []string{"result"}),
	}
}

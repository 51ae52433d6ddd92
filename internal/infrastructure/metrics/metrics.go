package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Ledger metrics
	Transfers        *prometheus.CounterVec
	TransferAmount   *prometheus.HistogramVec
	TransferDuration prometheus.Histogram
	FeesCollected    *prometheus.CounterVec
	CurrencyMinted   *prometheus.CounterVec
	CurrencyBurned   *prometheus.CounterVec

	// Market metrics
	OrdersPlaced    *prometheus.CounterVec
	OrdersCancelled prometheus.Counter
	OrdersExpired   prometheus.Counter
	Trades          *prometheus.CounterVec
	TradedValue     *prometheus.CounterVec
	MatchDuration   prometheus.Histogram

	// Errors by kind and operation
	BusinessErrors *prometheus.CounterVec

	// Snapshot and event metrics
	SnapshotDuration  prometheus.Histogram
	SnapshotFailures  prometheus.Counter
	EventsPublished   *prometheus.CounterVec
	EventPublishFails *prometheus.CounterVec

	// API metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
	HTTPInFlight prometheus.Gauge

	// Rate limiting metrics
	RateLimitHits *prometheus.CounterVec
}

// New creates all metrics and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Transfers: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "goeconomy_transfers_total",
				Help: "Total completed transfers by currency",
			},
			[]string{"currency"},
		),
		TransferAmount: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "goeconomy_transfer_amount",
				Help:    "Transfer amounts",
				Buckets: []float64{1, 10, 100, 1000, 10000, 100000},
			},
			[]string{"currency"},
		),
		TransferDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "goeconomy_transfer_duration_seconds",
			Help:    "Duration of transfer operations",
			Buckets: prometheus.DefBuckets,
		}),
		FeesCollected: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "goeconomy_fees_collected_total",
				Help: "Fees retained by the system",
			},
			[]string{"currency", "source"},
		),
		CurrencyMinted: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "goeconomy_currency_credited_total",
				Help: "Currency created by external credits",
			},
			[]string{"currency", "kind"},
		),
		CurrencyBurned: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "goeconomy_currency_debited_total",
				Help: "Currency removed by external debits",
			},
			[]string{"currency", "kind"},
		),

		OrdersPlaced: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "goeconomy_orders_placed_total",
				Help: "Total orders placed by side",
			},
			[]string{"side"},
		),
		OrdersCancelled: f.NewCounter(prometheus.CounterOpts{
			Name: "goeconomy_orders_cancelled_total",
			Help: "Total orders cancelled",
		}),
		OrdersExpired: f.NewCounter(prometheus.CounterOpts{
			Name: "goeconomy_orders_expired_total",
			Help: "Total orders expired by the sweep",
		}),
		Trades: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "goeconomy_trades_total",
				Help: "Total trades executed",
			},
			[]string{"currency"},
		),
		TradedValue: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "goeconomy_traded_value_total",
				Help: "Gross value of executed trades",
			},
			[]string{"currency"},
		),
		MatchDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "goeconomy_order_placement_duration_seconds",
			Help:    "Duration of order placement including matching",
			Buckets: prometheus.DefBuckets,
		}),

		BusinessErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "goeconomy_operation_errors_total",
				Help: "Failed operations by operation and error kind",
			},
			[]string{"operation", "kind"},
		),

		SnapshotDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "goeconomy_snapshot_duration_seconds",
			Help:    "Duration of snapshot persistence",
			Buckets: prometheus.DefBuckets,
		}),
		SnapshotFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "goeconomy_snapshot_failures_total",
			Help: "Failed snapshot writes",
		}),
		EventsPublished: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "goeconomy_events_published_total",
				Help: "Events delivered to sinks",
			},
			[]string{"kind"},
		),
		EventPublishFails: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "goeconomy_event_publish_failures_total",
				Help: "Events dropped after retries",
			},
			[]string{"kind"},
		),

		HTTPRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "goeconomy_http_requests_total",
				Help: "Total HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "goeconomy_http_duration_seconds",
				Help:    "HTTP request duration",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		HTTPInFlight: f.NewGauge(prometheus.GaugeOpts{
			Name: "goeconomy_http_requests_in_flight",
			Help: "HTTP requests currently being served",
		}),

		RateLimitHits: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "goeconomy_rate_limit_hits_total",
				Help: "Total rate limit hits",
			},
			[]string{"scope"},
		),
	}
}

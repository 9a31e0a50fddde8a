// Package metrics provides Prometheus instrumentation for the Yrdly payments backend.
package metrics

import (
	"context"
	"database/sql"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "yrdly",
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by method, path pattern, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration observes request latency by method and path.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "yrdly",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// TransactionsCreatedTotal counts escrow transactions created.
	TransactionsCreatedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "yrdly",
		Name:      "escrow_transactions_created_total",
		Help:      "Total escrow transactions created.",
	})

	// StatusTransitionsTotal counts status transitions by target status.
	StatusTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "yrdly",
			Name:      "escrow_status_transitions_total",
			Help:      "Total escrow status transitions by target status.",
		},
		[]string{"status"},
	)

	// TransitionConflictsTotal counts rejected transitions.
	TransitionConflictsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "yrdly",
			Name:      "escrow_transition_conflicts_total",
			Help:      "Status transitions rejected by validation or concurrent update.",
		},
		[]string{"reason"},
	)

	// PaymentVerificationsTotal counts gateway verification attempts by result.
	PaymentVerificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "yrdly",
			Name:      "payment_verifications_total",
			Help:      "Payment gateway verification attempts by result.",
		},
		[]string{"result"},
	)

	// MarkSoldAttemptsTotal counts item mark-sold attempts by result.
	MarkSoldAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "yrdly",
			Name:      "item_mark_sold_attempts_total",
			Help:      "Item mark-sold attempts by result.",
		},
		[]string{"result"},
	)

	// MarkSoldQueueDepth tracks pending mark-sold jobs.
	MarkSoldQueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "yrdly",
		Name:      "item_mark_sold_queue_depth",
		Help:      "Pending mark-sold retry jobs.",
	})

	// CommissionMinorUnitsTotal accumulates commission across created transactions.
	CommissionMinorUnitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "yrdly",
		Name:      "commission_minor_units_total",
		Help:      "Commission accrued at transaction creation, in minor currency units.",
	})

	// ActiveWebSocketClients tracks connected WebSocket clients.
	ActiveWebSocketClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "yrdly",
		Name:      "active_websocket_clients",
		Help:      "Number of currently connected WebSocket clients.",
	})

	// DBOpenConnections tracks open database connections.
	DBOpenConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "yrdly", Name: "db_open_connections",
		Help: "Number of open database connections.",
	})
	// DBIdleConnections tracks idle database connections.
	DBIdleConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "yrdly", Name: "db_idle_connections",
		Help: "Number of idle database connections.",
	})
	// DBInUseConnections tracks in-use database connections.
	DBInUseConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "yrdly", Name: "db_in_use_connections",
		Help: "Number of in-use database connections.",
	})
	// GoroutineCount tracks the current number of goroutines.
	GoroutineCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "yrdly", Name: "goroutines",
		Help: "Current number of goroutines.",
	})
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		TransactionsCreatedTotal,
		StatusTransitionsTotal,
		TransitionConflictsTotal,
		PaymentVerificationsTotal,
		MarkSoldAttemptsTotal,
		MarkSoldQueueDepth,
		CommissionMinorUnitsTotal,
		ActiveWebSocketClients,
		DBOpenConnections,
		DBIdleConnections,
		DBInUseConnections,
		GoroutineCount,
	)
}

// StartDBStatsCollector periodically samples sql.DBStats and runtime goroutine
// count into Prometheus gauges. Call in a goroutine; exits when ctx is done.
func StartDBStatsCollector(ctx context.Context, db *sql.DB, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := db.Stats()
			DBOpenConnections.Set(float64(stats.OpenConnections))
			DBIdleConnections.Set(float64(stats.Idle))
			DBInUseConnections.Set(float64(stats.InUse))
			GoroutineCount.Set(float64(runtime.NumGoroutine()))
		}
	}
}

// Middleware returns a gin middleware that records request metrics.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		timer := prometheus.NewTimer(HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(), // Route pattern, not actual path (avoids cardinality explosion)
		))

		c.Next()

		timer.ObserveDuration()
		HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			statusBucket(c.Writer.Status()),
		).Inc()
	}
}

// Handler returns the Prometheus metrics HTTP handler for the /metrics endpoint.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// statusBucket groups HTTP status codes into buckets (2xx, 3xx, 4xx, 5xx).
func statusBucket(code int) string {
	switch {
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}

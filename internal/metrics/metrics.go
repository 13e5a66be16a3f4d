// Package metrics provides Prometheus instrumentation for the RoleGate engine.
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
			Namespace: "rolegate",
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by method, path pattern, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration observes request latency by method and path.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "rolegate",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// GrantsTotal counts grant attempts by final outcome (granted, rejected,
	// payment_required, settlement_failed, platform_failed).
	GrantsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rolegate",
			Name:      "grants_total",
			Help:      "Total entitlement grant attempts by outcome.",
		},
		[]string{"outcome", "network"},
	)

	// PaymentVerificationsTotal counts facilitator verify calls by result.
	PaymentVerificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rolegate",
			Name:      "payment_verifications_total",
			Help:      "Total facilitator verification calls by result.",
		},
		[]string{"result"},
	)

	// PaymentSettlementsTotal counts facilitator settle calls by result.
	PaymentSettlementsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rolegate",
			Name:      "payment_settlements_total",
			Help:      "Total facilitator settlement calls by result.",
		},
		[]string{"result"},
	)

	// SettlementDuration observes end-to-end facilitator settle latency.
	SettlementDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "rolegate",
		Name:      "settlement_duration_seconds",
		Help:      "Facilitator settlement latency in seconds.",
		Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60},
	})

	// InvoicesIssuedTotal counts invoice issuance, split by fresh vs refresh.
	InvoicesIssuedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rolegate",
			Name:      "invoices_issued_total",
			Help:      "Total invoices issued.",
		},
		[]string{"kind"},
	)

	// InvoicesRedeemedTotal counts successful invoice redemptions.
	InvoicesRedeemedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "rolegate",
		Name:      "invoices_redeemed_total",
		Help:      "Total invoices redeemed into grants.",
	})

	// WalletsProvisionedTotal counts custodial wallets minted by network.
	WalletsProvisionedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rolegate",
			Name:      "wallets_provisioned_total",
			Help:      "Total custodial wallets provisioned by network.",
		},
		[]string{"network"},
	)

	// ReconciliationRequiredTotal counts settled payments whose role grant
	// failed afterwards. Non-zero values need operator attention.
	ReconciliationRequiredTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "rolegate",
		Name:      "reconciliation_required_total",
		Help:      "Settled payments where the platform grant failed and funds cannot be auto-refunded.",
	})

	// ActiveWebSocketClients tracks connected WebSocket clients.
	ActiveWebSocketClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "rolegate",
			Name:      "active_websocket_clients",
			Help:      "Number of currently connected WebSocket clients.",
		},
	)

	// DBOpenConnections tracks open database connections.
	DBOpenConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "rolegate", Name: "db_open_connections",
		Help: "Number of open database connections.",
	})
	// DBIdleConnections tracks idle database connections.
	DBIdleConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "rolegate", Name: "db_idle_connections",
		Help: "Number of idle database connections.",
	})
	// DBInUseConnections tracks in-use database connections.
	DBInUseConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "rolegate", Name: "db_in_use_connections",
		Help: "Number of in-use database connections.",
	})
	// DBWaitCount tracks the total number of connections waited for.
	DBWaitCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "rolegate", Name: "db_wait_count_total",
		Help: "Total number of connections waited for.",
	})
	// DBWaitDuration tracks total time waited for connections.
	DBWaitDuration = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "rolegate", Name: "db_wait_duration_seconds_total",
		Help: "Total time waited for connections in seconds.",
	})
	// GoroutineCount tracks the current number of goroutines.
	GoroutineCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "rolegate", Name: "goroutines",
		Help: "Current number of goroutines.",
	})
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		GrantsTotal,
		PaymentVerificationsTotal,
		PaymentSettlementsTotal,
		SettlementDuration,
		InvoicesIssuedTotal,
		InvoicesRedeemedTotal,
		WalletsProvisionedTotal,
		ReconciliationRequiredTotal,
		ActiveWebSocketClients,
		DBOpenConnections,
		DBIdleConnections,
		DBInUseConnections,
		DBWaitCount,
		DBWaitDuration,
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
			DBWaitCount.Set(float64(stats.WaitCount))
			DBWaitDuration.Set(stats.WaitDuration.Seconds())
			GoroutineCount.Set(float64(runtime.NumGoroutine()))
		}
	}
}

// Middleware returns a gin middleware that records request metrics.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		timer := prometheus.NewTimer(HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(), // Uses route pattern, not actual path (avoids cardinality explosion)
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

// Handler returns the Prometheus metrics HTTP handler for /metrics endpoint.
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

package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"delivery-planner/internal/models"
)

const namespace = "planner"

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests processed",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 10},
	}, []string{"method", "path"})

	// Planner metrics
	PlansTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "plan",
		Name:      "runs_total",
		Help:      "Total planning runs by strategy and outcome",
	}, []string{"strategy", "outcome"})

	PlanDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "plan",
		Name:      "duration_seconds",
		Help:      "Wall time of a full planning run",
		Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"strategy"})

	BalancerPasses = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "plan",
		Name:      "balancer_passes",
		Help:      "Balancer passes used per planning run",
		Buckets:   []float64{0, 1, 2, 5, 10, 25, 50, 100, 200},
	})

	RouteSpread = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "plan",
		Name:      "route_spread_minutes",
		Help:      "Difference between the longest and shortest route of a plan",
		Buckets:   []float64{0, 5, 10, 20, 30, 60, 90, 120, 240},
	})

	PartitionFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "plan",
		Name:      "partition_fallbacks_total",
		Help:      "Planning runs whose partitioner fell back to another strategy",
	}, []string{"from", "to"})

	// Geocoding metrics
	GeocodeRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "geocoding",
		Name:      "requests_total",
		Help:      "Total upstream geocoding requests by outcome",
	}, []string{"outcome"})

	// Database pool metrics
	DBPoolConnsAcquired = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "db",
		Name:      "pool_conns_acquired",
		Help:      "Connections currently acquired from the database pool",
	})

	DBPoolConnsIdle = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "db",
		Name:      "pool_conns_idle",
		Help:      "Idle connections in the database pool",
	})

	DBPoolConnsTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "db",
		Name:      "pool_conns_open",
		Help:      "Total connections open in the database pool",
	})
)

// ObservePlan records the outcome of one planning run. summary is nil when
// the run failed.
func ObservePlan(strategy models.PartitionStrategy, summary *models.PlanSummary, elapsed time.Duration) {
	label := string(strategy)
	if label == "" {
		label = string(models.StrategyKMeans)
	}
	PlanDuration.WithLabelValues(label).Observe(elapsed.Seconds())
	if summary == nil {
		PlansTotal.WithLabelValues(label, "error").Inc()
		return
	}
	PlansTotal.WithLabelValues(label, "ok").Inc()
	BalancerPasses.Observe(float64(summary.BalancerPasses))
	RouteSpread.Observe(summary.SpreadMinutes)
	if summary.Fallback != "" {
		PartitionFallbacks.WithLabelValues(label, string(summary.Fallback)).Inc()
	}
}

// PoolStat is the subset of pgxpool.Stat the pool gauges read
type PoolStat interface {
	AcquiredConns() int32
	IdleConns() int32
	TotalConns() int32
}

// UpdateDBPoolMetrics copies connection pool stats into the pool gauges
func UpdateDBPoolMetrics(s PoolStat) {
	DBPoolConnsAcquired.Set(float64(s.AcquiredConns()))
	DBPoolConnsIdle.Set(float64(s.IdleConns()))
	DBPoolConnsTotal.Set(float64(s.TotalConns()))
}

// normalizePath reduces path cardinality by replacing id segments with :id
func normalizePath(path string) string {
	parts := strings.Split(path, "/")
	for i, p := range parts {
		if p == "" {
			continue
		}
		if _, err := strconv.ParseInt(p, 10, 64); err == nil || looksLikeUUID(p) {
			parts[i] = ":id"
		}
	}
	return strings.Join(parts, "/")
}

func looksLikeUUID(s string) bool {
	if len(s) != 36 {
		return false
	}
	for i, r := range s {
		switch i {
		case 8, 13, 18, 23:
			if r != '-' {
				return false
			}
		default:
			if !strings.ContainsRune("0123456789abcdefABCDEF", r) {
				return false
			}
		}
	}
	return true
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Middleware records request metrics
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		path := normalizePath(r.URL.Path)
		httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(rec.status)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// Handler serves the Prometheus /metrics endpoint
func Handler() http.Handler {
	return promhttp.Handler()
}

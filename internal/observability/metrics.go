package observability

import (
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/yungbote/catalog-backend/internal/platform/envutil"
	"github.com/yungbote/catalog-backend/internal/platform/logger"
)

type Metrics struct {
	apiRequests *CounterVec
	apiLatency  *HistogramVec
	apiInflight *Gauge

	aggregateOps       *CounterVec
	aggregateLatency   *HistogramVec
	aggregateConflicts *CounterVec
	aggregateRetries   *CounterVec
	linkStates         *CounterVec

	storeCalls   *CounterVec
	storeLatency *HistogramVec

	reconcileSweeps   *CounterVec
	reconcileLatency  *HistogramVec
	reconcileFindings *CounterVec
	reconcileRepairs  *CounterVec
	ledgerPending     *Gauge
	ledgerRecorded    *CounterVec

	mirrorStats *GaugeVec
	redisUp     *Gauge
	redisPing   *Gauge
}

var (
	initOnce sync.Once
	instance *Metrics
)

func Enabled() bool {
	return envutil.Bool("METRICS_ENABLED", false)
}

func Current() *Metrics {
	return instance
}

// Init builds the process-wide registry when METRICS_ENABLED is set. It returns
// nil otherwise; every Metrics method is nil-safe.
func Init(log *logger.Logger) *Metrics {
	if !Enabled() {
		return nil
	}
	initOnce.Do(func() {
		instance = New()
		if log != nil {
			log.Info("metrics enabled")
		}
	})
	return instance
}

// New returns an unregistered Metrics value.
func New() *Metrics {
	latency := []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10}
	return &Metrics{
		apiRequests: NewCounterVec("catalog_api_requests_total", "Total API requests by method/route/status.", []string{"method", "route", "status"}),
		apiLatency: NewHistogramVec(
			"catalog_api_request_duration_seconds",
			"API request latency in seconds by method/route/status.",
			[]string{"method", "route", "status"},
			latency,
		),
		apiInflight: NewGauge("catalog_api_inflight_requests", "In-flight API requests."),

		aggregateOps: NewCounterVec("catalog_aggregate_operations_total", "Aggregate operations by name/status.", []string{"operation", "status"}),
		aggregateLatency: NewHistogramVec(
			"catalog_aggregate_operation_duration_seconds",
			"Aggregate operation latency in seconds by name/status.",
			[]string{"operation", "status"},
			latency,
		),
		aggregateConflicts: NewCounterVec("catalog_aggregate_conflicts_total", "Aggregate conflicts by operation.", []string{"operation"}),
		aggregateRetries:   NewCounterVec("catalog_aggregate_retries_total", "Aggregate retries by operation.", []string{"operation"}),
		linkStates:         NewCounterVec("catalog_link_state_transitions_total", "Link state machine transitions by operation/state.", []string{"operation", "state"}),

		storeCalls: NewCounterVec("catalog_store_calls_total", "Remote store calls by collection/op/outcome.", []string{"collection", "op", "outcome"}),
		storeLatency: NewHistogramVec(
			"catalog_store_call_duration_seconds",
			"Remote store call latency in seconds by collection/op.",
			[]string{"collection", "op"},
			latency,
		),

		reconcileSweeps: NewCounterVec("catalog_reconcile_runs_total", "Reconciliation runs by kind/mode/status.", []string{"kind", "mode", "status"}),
		reconcileLatency: NewHistogramVec(
			"catalog_reconcile_duration_seconds",
			"Reconciliation run latency in seconds by kind.",
			[]string{"kind"},
			[]float64{0.05, 0.1, 0.5, 1, 5, 15, 60, 300},
		),
		reconcileFindings: NewCounterVec("catalog_reconcile_findings_total", "Inconsistencies found by kind.", []string{"kind"}),
		reconcileRepairs:  NewCounterVec("catalog_reconcile_repairs_total", "Repairs attempted by kind/result.", []string{"kind", "result"}),
		ledgerPending:     NewGauge("catalog_partial_link_pending", "Partial-link ledger entries awaiting repair."),
		ledgerRecorded:    NewCounterVec("catalog_partial_link_recorded_total", "Partial-link failures recorded by operation/dangling.", []string{"operation", "dangling"}),

		mirrorStats: NewGaugeVec("catalog_mirror_db_stats", "Mirror database connection pool stats.", []string{"stat"}),
		redisUp:     NewGauge("catalog_redis_up", "Redis ledger ping status (1=up, 0=down)."),
		redisPing:   NewGauge("catalog_redis_ping_seconds", "Redis ledger ping latency in seconds."),
	}
}

func (m *Metrics) WriteHTTP(w http.ResponseWriter, r *http.Request) {
	if m == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	_ = m.WritePrometheus(w)
}

type promWriter interface {
	WritePrometheus(w io.Writer) error
}

func (m *Metrics) WritePrometheus(w io.Writer) error {
	if m == nil {
		return nil
	}
	all := []promWriter{
		m.apiRequests, m.apiLatency, m.apiInflight,
		m.aggregateOps, m.aggregateLatency, m.aggregateConflicts, m.aggregateRetries, m.linkStates,
		m.storeCalls, m.storeLatency,
		m.reconcileSweeps, m.reconcileLatency, m.reconcileFindings, m.reconcileRepairs,
		m.ledgerPending, m.ledgerRecorded,
		m.mirrorStats, m.redisUp, m.redisPing,
	}
	for _, pw := range all {
		if err := pw.WritePrometheus(w); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	if method == "" {
		method = "UNKNOWN"
	}
	if route == "" {
		route = "unknown"
	}
	if status == "" {
		status = "0"
	}
	m.apiRequests.Inc(method, route, status)
	m.apiLatency.Observe(dur.Seconds(), method, route, status)
}

func (m *Metrics) ApiInflightInc() {
	if m == nil {
		return
	}
	m.apiInflight.Inc()
}

func (m *Metrics) ApiInflightDec() {
	if m == nil {
		return
	}
	m.apiInflight.Dec()
}

func (m *Metrics) ObserveAggregateOperation(name, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.aggregateOps.Inc(name, status)
	m.aggregateLatency.Observe(dur.Seconds(), name, status)
}

func (m *Metrics) IncLinkState(name, state string) {
	if m == nil {
		return
	}
	m.linkStates.Inc(name, state)
}

func (m *Metrics) IncAggregateConflict(name string) {
	if m == nil {
		return
	}
	m.aggregateConflicts.Inc(name)
}

func (m *Metrics) IncAggregateRetry(name string) {
	if m == nil {
		return
	}
	m.aggregateRetries.Inc(name)
}

// ObserveStoreCall satisfies the restheart client's call observer.
func (m *Metrics) ObserveStoreCall(collection, op, outcome string, dur time.Duration) {
	if m == nil {
		return
	}
	m.storeCalls.Inc(collection, op, outcome)
	m.storeLatency.Observe(dur.Seconds(), collection, op)
}

func (m *Metrics) ObserveReconcile(kind, mode, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.reconcileSweeps.Inc(kind, mode, status)
	m.reconcileLatency.Observe(dur.Seconds(), kind)
}

func (m *Metrics) AddReconcileFindings(kind string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.reconcileFindings.Add(float64(n), kind)
}

func (m *Metrics) IncReconcileRepair(kind, result string) {
	if m == nil {
		return
	}
	m.reconcileRepairs.Inc(kind, result)
}

func (m *Metrics) IncPartialLinkRecorded(operation, dangling string) {
	if m == nil {
		return
	}
	m.ledgerRecorded.Inc(operation, dangling)
}

func (m *Metrics) SetLedgerPending(n int) {
	if m == nil {
		return
	}
	m.ledgerPending.Set(float64(n))
}

func scrapeInterval() time.Duration {
	return envutil.Duration("METRICS_SCRAPE_INTERVAL", 15*time.Second)
}

// StartMirrorCollector samples the mirror database pool until ctx is done.
func (m *Metrics) StartMirrorCollector(ctx context.Context, log *logger.Logger, db *gorm.DB) {
	if m == nil || db == nil {
		return
	}
	interval := scrapeInterval()
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := m.collectMirrorStats(db); err != nil && log != nil {
					log.Warn("metrics: mirror db stats unavailable", "error", err)
				}
			}
		}
	}()
}

func (m *Metrics) collectMirrorStats(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	stats := sqlDB.Stats()
	m.mirrorStats.Set(float64(stats.OpenConnections), "open_connections")
	m.mirrorStats.Set(float64(stats.InUse), "in_use")
	m.mirrorStats.Set(float64(stats.Idle), "idle")
	m.mirrorStats.Set(float64(stats.WaitCount), "wait_count")
	m.mirrorStats.Set(stats.WaitDuration.Seconds(), "wait_duration_seconds")
	m.mirrorStats.Set(float64(stats.MaxOpenConnections), "max_open_connections")
	return nil
}

// Pinger is the slice of the Redis ledger the collector needs.
type Pinger interface {
	Ping(ctx context.Context) error
}

func (m *Metrics) StartRedisCollector(ctx context.Context, log *logger.Logger, p Pinger) {
	if m == nil || p == nil {
		return
	}
	interval := scrapeInterval()
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := m.pingRedis(ctx, p); err != nil && log != nil {
					log.Warn("metrics: redis ping failed", "error", err)
				}
			}
		}
	}()
}

func (m *Metrics) pingRedis(ctx context.Context, p Pinger) error {
	start := time.Now()
	if err := p.Ping(ctx); err != nil {
		m.redisUp.Set(0)
		return err
	}
	m.redisUp.Set(1)
	m.redisPing.Set(time.Since(start).Seconds())
	return nil
}

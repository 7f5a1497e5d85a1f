package observability

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/yungbote/bonfires-backend/internal/platform/envutil"
	"github.com/yungbote/bonfires-backend/internal/platform/logger"
)

type Metrics struct {
	apiRequests *CounterVec
	apiLatency  *HistogramVec
	apiInflight *Gauge
	apiReqTotal *Counter
	apiReqError *Counter

	channelWrites        *CounterVec
	channelWriteLatency  *HistogramVec
	channelWriteConflict *CounterVec
	channelWriteRetry    *CounterVec

	fanoutDelivered *CounterVec
	fanoutDropped   *CounterVec
	sseConnections  *Gauge
	presenceViewers *Gauge
	typingSignals   *CounterVec

	avatarCache *CounterVec

	dbStats   *GaugeVec
	redisUp   *Gauge
	redisPing *Gauge
}

var (
	initOnce sync.Once
	instance *Metrics
)

func Current() *Metrics {
	return instance
}

func scrapeInterval() time.Duration {
	d := envutil.Duration("METRICS_SCRAPE_INTERVAL_SECONDS", 10*time.Second)
	if d <= 0 {
		return 10 * time.Second
	}
	return d
}

// Init builds the process-wide registry once. It returns nil when metrics are
// disabled; every method on a nil *Metrics is a no-op.
func Init(log *logger.Logger, enabled bool) *Metrics {
	if !enabled {
		return nil
	}
	initOnce.Do(func() {
		instance = New()
		if log != nil {
			log.Info("Observability metrics enabled")
		}
	})
	return instance
}

// New returns an unregistered set of collectors.
func New() *Metrics {
	return &Metrics{
		apiRequests: NewCounterVec("bf_api_requests_total", "Total API requests by method/route/status.", []string{"method", "route", "status"}),
		apiLatency: NewHistogramVec(
			"bf_api_request_duration_seconds",
			"API request latency in seconds by method/route/status.",
			[]string{"method", "route", "status"},
			[]float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		),
		apiInflight: NewGauge("bf_api_inflight_requests", "In-flight API requests."),
		apiReqTotal: NewCounter("bf_api_requests_total_all", "Total API requests (all)."),
		apiReqError: NewCounter("bf_api_requests_error_total", "Total API requests with 5xx status."),

		channelWrites: NewCounterVec("bf_channel_writes_total", "Channel and message writes by op/status.", []string{"op", "status"}),
		channelWriteLatency: NewHistogramVec(
			"bf_channel_write_duration_seconds",
			"Channel and message write latency in seconds, retries included.",
			[]string{"op", "status"},
			[]float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2},
		),
		channelWriteConflict: NewCounterVec("bf_channel_write_conflicts_total", "Writes rejected with a conflict by op.", []string{"op"}),
		channelWriteRetry:    NewCounterVec("bf_channel_write_retries_total", "Retryable write failures by op.", []string{"op"}),

		fanoutDelivered: NewCounterVec("bf_fanout_delivered_total", "SSE frames queued to a connection by event.", []string{"event"}),
		fanoutDropped:   NewCounterVec("bf_fanout_dropped_total", "SSE frames dropped on a full connection buffer by event.", []string{"event"}),
		sseConnections:  NewGauge("bf_sse_connections", "Open SSE connections on this instance."),
		presenceViewers: NewGauge("bf_presence_viewers", "Channel viewers tracked by this instance."),
		typingSignals:   NewCounterVec("bf_typing_signals_total", "Typing indicator signals by state.", []string{"state"}),

		avatarCache: NewCounterVec("bf_avatar_cache_total", "Avatar lookups by source.", []string{"source"}),

		dbStats:   NewGaugeVec("bf_db_stats", "Database connection pool stats.", []string{"metric"}),
		redisUp:   NewGauge("bf_redis_up", "Redis connectivity (1=up, 0=down)."),
		redisPing: NewGauge("bf_redis_ping_seconds", "Redis ping latency in seconds."),
	}
}

func (m *Metrics) collectors() []collector {
	return []collector{
		m.apiRequests,
		m.apiLatency,
		m.apiInflight,
		m.apiReqTotal,
		m.apiReqError,
		m.channelWrites,
		m.channelWriteLatency,
		m.channelWriteConflict,
		m.channelWriteRetry,
		m.fanoutDelivered,
		m.fanoutDropped,
		m.sseConnections,
		m.presenceViewers,
		m.typingSignals,
		m.avatarCache,
		m.dbStats,
		m.redisUp,
		m.redisPing,
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

func (m *Metrics) WritePrometheus(w io.Writer) error {
	if m == nil {
		return nil
	}
	for _, c := range m.collectors() {
		if err := c.WritePrometheus(w); err != nil {
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
	m.apiReqTotal.Inc()
	if isServerErrorStatus(status) {
		m.apiReqError.Inc()
	}
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

func (m *Metrics) ObserveChannelWrite(op, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.channelWrites.Inc(op, status)
	m.channelWriteLatency.Observe(dur.Seconds(), op, status)
}

func (m *Metrics) IncChannelWriteConflict(op string) {
	if m == nil {
		return
	}
	m.channelWriteConflict.Inc(op)
}

func (m *Metrics) IncChannelWriteRetry(op string) {
	if m == nil {
		return
	}
	m.channelWriteRetry.Inc(op)
}

// IncFanoutDelivered and IncFanoutDropped make *Metrics a hub delivery observer.
func (m *Metrics) IncFanoutDelivered(event string) {
	if m == nil {
		return
	}
	m.fanoutDelivered.Inc(event)
}

func (m *Metrics) IncFanoutDropped(event string) {
	if m == nil {
		return
	}
	m.fanoutDropped.Inc(event)
}

func (m *Metrics) SSEConnectionOpened() {
	if m == nil {
		return
	}
	m.sseConnections.Inc()
}

func (m *Metrics) SSEConnectionClosed() {
	if m == nil {
		return
	}
	m.sseConnections.Dec()
}

func (m *Metrics) AddPresenceViewers(delta int) {
	if m == nil {
		return
	}
	m.presenceViewers.Add(float64(delta))
}

func (m *Metrics) IncTyping(typing bool) {
	if m == nil {
		return
	}
	state := "stopped"
	if typing {
		state = "started"
	}
	m.typingSignals.Inc(state)
}

// IncAvatarLookup records where an avatar was served from: cache, blob or default.
func (m *Metrics) IncAvatarLookup(source string) {
	if m == nil {
		return
	}
	m.avatarCache.Inc(source)
}

func (m *Metrics) StartDBCollector(ctx context.Context, log *logger.Logger, db *gorm.DB) {
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
				sqlDB, err := db.DB()
				if err != nil {
					if log != nil {
						log.Warn("metrics: db stats unavailable", "error", err)
					}
					continue
				}
				stats := sqlDB.Stats()
				m.dbStats.Set(float64(stats.OpenConnections), "open_connections")
				m.dbStats.Set(float64(stats.InUse), "in_use")
				m.dbStats.Set(float64(stats.Idle), "idle")
				m.dbStats.Set(float64(stats.WaitCount), "wait_count")
				m.dbStats.Set(stats.WaitDuration.Seconds(), "wait_duration_seconds")
				m.dbStats.Set(float64(stats.MaxOpenConnections), "max_open_connections")
			}
		}
	}()
}

// StartRedisCollector pings the shared client on every scrape interval.
func (m *Metrics) StartRedisCollector(ctx context.Context, log *logger.Logger, rdb goredis.UniversalClient) {
	if m == nil || rdb == nil {
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
				start := time.Now()
				if err := rdb.Ping(ctx).Err(); err != nil {
					m.redisUp.Set(0)
					if log != nil {
						log.Warn("metrics: redis ping failed", "error", err)
					}
					continue
				}
				m.redisUp.Set(1)
				m.redisPing.Set(time.Since(start).Seconds())
			}
		}
	}()
}

func isServerErrorStatus(status string) bool {
	status = strings.TrimSpace(status)
	return len(status) == 3 && status[0] == '5'
}

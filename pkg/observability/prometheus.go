package observability

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus implements every hook interface on top of Prometheus metrics.
// Metrics are created and registered lazily on first use.
type Prometheus struct {
	reg       prometheus.Registerer
	namespace string
	once      sync.Once

	workersActive prometheus.Gauge
	workerStops   *prometheus.CounterVec
	postsApplied  *prometheus.CounterVec
	applyLatency  prometheus.Histogram
	postsDropped  *prometheus.CounterVec
	emptyTiles    *prometheus.GaugeVec

	cacheOps   *prometheus.CounterVec
	cacheBytes *prometheus.CounterVec

	httpRequests *prometheus.CounterVec
	httpLatency  *prometheus.HistogramVec
	httpErrors   *prometheus.CounterVec
}

var (
	_ WorkerHooks = (*Prometheus)(nil)
	_ CacheHooks  = (*Prometheus)(nil)
	_ HTTPHooks   = (*Prometheus)(nil)
)

// NewPrometheus creates hooks registering into reg under namespace.
// A nil reg uses prometheus.DefaultRegisterer; an empty namespace uses "mosaic".
func NewPrometheus(reg prometheus.Registerer, namespace string) *Prometheus {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = "mosaic"
	}
	return &Prometheus{reg: reg, namespace: namespace}
}

func (p *Prometheus) ensureRegistered() {
	p.once.Do(func() {
		p.workersActive = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Subsystem: "worker",
			Name:      "active",
			Help:      "Number of running mosaic workers.",
		})
		p.workerStops = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "worker",
			Name:      "stops_total",
			Help:      "Worker terminations by outcome (stopped, failed).",
		}, []string{"outcome"})
		p.postsApplied = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "worker",
			Name:      "posts_applied_total",
			Help:      "Post applications by source (feed, direct, store).",
		}, []string{"source"})
		p.applyLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "worker",
			Name:      "apply_seconds",
			Help:      "Time to place one post and publish the new snapshot.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		})
		p.postsDropped = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "worker",
			Name:      "posts_dropped_total",
			Help:      "Posts discarded before placement by reason.",
		}, []string{"reason"})
		p.emptyTiles = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Subsystem: "worker",
			Name:      "empty_tiles",
			Help:      "Tiles still waiting for their first post.",
		}, []string{"worker"})

		p.cacheOps = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "cache",
			Name:      "operations_total",
			Help:      "Cache lookups and writes by key type and result.",
		}, []string{"key_type", "result"})
		p.cacheBytes = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "cache",
			Name:      "written_bytes_total",
			Help:      "Bytes written to the cache by key type.",
		}, []string{"key_type"})

		p.httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "http_client",
			Name:      "responses_total",
			Help:      "Outgoing HTTP responses by host and status code.",
		}, []string{"host", "code"})
		p.httpLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "http_client",
			Name:      "request_seconds",
			Help:      "Outgoing HTTP request latency by host.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"host"})
		p.httpErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "http_client",
			Name:      "errors_total",
			Help:      "Outgoing HTTP requests that failed without a response.",
		}, []string{"host"})

		p.reg.MustRegister(
			p.workersActive, p.workerStops, p.postsApplied, p.applyLatency, p.postsDropped, p.emptyTiles,
			p.cacheOps, p.cacheBytes,
			p.httpRequests, p.httpLatency, p.httpErrors,
		)
	})
}

func (p *Prometheus) OnWorkerStart(_ context.Context, workerID uint64, tiles int) {
	p.ensureRegistered()
	p.workersActive.Inc()
	p.emptyTiles.WithLabelValues(strconv.FormatUint(workerID, 10)).Set(float64(tiles))
}

func (p *Prometheus) OnWorkerStop(_ context.Context, workerID uint64, err error) {
	p.ensureRegistered()
	p.workersActive.Dec()
	p.emptyTiles.DeleteLabelValues(strconv.FormatUint(workerID, 10))
	outcome := "stopped"
	if err != nil {
		outcome = "failed"
	}
	p.workerStops.WithLabelValues(outcome).Inc()
}

func (p *Prometheus) OnPostApplied(_ context.Context, _ uint64, source string, d time.Duration) {
	p.ensureRegistered()
	p.postsApplied.WithLabelValues(source).Inc()
	p.applyLatency.Observe(d.Seconds())
}

func (p *Prometheus) OnPostDropped(_ context.Context, _ uint64, reason string) {
	p.ensureRegistered()
	p.postsDropped.WithLabelValues(reason).Inc()
}

func (p *Prometheus) OnFillProgress(_ context.Context, workerID uint64, empty int) {
	p.ensureRegistered()
	p.emptyTiles.WithLabelValues(strconv.FormatUint(workerID, 10)).Set(float64(empty))
}

func (p *Prometheus) OnCacheHit(_ context.Context, keyType string) {
	p.ensureRegistered()
	p.cacheOps.WithLabelValues(keyType, "hit").Inc()
}

func (p *Prometheus) OnCacheMiss(_ context.Context, keyType string) {
	p.ensureRegistered()
	p.cacheOps.WithLabelValues(keyType, "miss").Inc()
}

func (p *Prometheus) OnCacheSet(_ context.Context, keyType string, size int) {
	p.ensureRegistered()
	p.cacheOps.WithLabelValues(keyType, "set").Inc()
	p.cacheBytes.WithLabelValues(keyType).Add(float64(size))
}

func (p *Prometheus) OnResponse(_ context.Context, _, host string, code int, d time.Duration) {
	p.ensureRegistered()
	p.httpRequests.WithLabelValues(host, strconv.Itoa(code)).Inc()
	p.httpLatency.WithLabelValues(host).Observe(d.Seconds())
}

func (p *Prometheus) OnError(_ context.Context, _, host string, _ error) {
	p.ensureRegistered()
	p.httpErrors.WithLabelValues(host).Inc()
}

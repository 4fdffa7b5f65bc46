// Package metrics exposes Prometheus metrics for the decode, execute and
// encode stages and for the plan cache.
//
// # Basic Usage
//
//	metrics.Records.WithLabelValues(metrics.OutcomeFiltered).Inc()
//
//	timer := metrics.NewTimer("compile")
//	proto, err := cache.Compile(ctx, text, schema)
//	metrics.CompileLatency.Observe(timer.Stop().Seconds())
//
// All collectors are registered with the default Prometheus registry on
// package initialisation and are served by promhttp.Handler.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Record outcomes used as the "outcome" label of Records.
const (
	OutcomeDecoded      = "decoded"
	OutcomeDecodeError  = "decode_error"
	OutcomeFiltered     = "filtered"
	OutcomeExecuteError = "execute_error"
	OutcomeProjected    = "projected"
)

var (
	// Records counts records by pipeline outcome.
	//
	// Example:
	//	metrics.Records.WithLabelValues(metrics.OutcomeDecodeError).Inc()
	Records = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "xdrflow_records_total",
			Help: "Records seen by the interceptor, by outcome",
		},
		[]string{"outcome"},
	)

	// Frames counts emitted output frames.
	Frames = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "xdrflow_frames_total",
			Help: "Output frames emitted by the batchers",
		},
	)

	// FrameBytes tracks the body size of emitted frames.
	FrameBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "xdrflow_frame_bytes",
			Help:    "Body size of emitted frames in bytes",
			Buckets: prometheus.ExponentialBuckets(64, 4, 10), // 64B .. 16MiB
		},
	)

	// Compiles counts plan compilations by result (ok/error).
	Compiles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "xdrflow_plan_compiles_total",
			Help: "Plan compilations, by result",
		},
		[]string{"result"},
	)

	// CompileLatency tracks how long plan compilation takes.
	CompileLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "xdrflow_plan_compile_seconds",
			Help:    "Plan compilation latency in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
		},
	)

	// CacheEntries is the number of cached plan prototypes.
	CacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "xdrflow_plan_cache_entries",
			Help: "Number of cached plan prototypes",
		},
	)

	// Instances counts execution clones built from prototypes.
	Instances = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "xdrflow_plan_instances_total",
			Help: "Execution clones instantiated from cached plans",
		},
	)

	// Throughput tracks records per second per pipeline.
	Throughput = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "xdrflow_throughput_records_per_second",
			Help: "Current throughput in records per second",
		},
		[]string{"pipeline"},
	)

	// QueueDepth tracks buffered events between source and workers.
	QueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "xdrflow_queue_depth",
			Help: "Events waiting for a worker",
		},
		[]string{"pipeline"},
	)
)

// Timer measures the duration of one operation.
type Timer struct {
	start time.Time
	name  string
}

// NewTimer creates a new timer and starts timing immediately.
func NewTimer(name string) *Timer {
	return &Timer{
		start: time.Now(),
		name:  name,
	}
}

// Name returns the label given to the timer.
func (t *Timer) Name() string { return t.name }

// Stop returns the elapsed duration since creation. It may be called more
// than once.
func (t *Timer) Stop() time.Duration {
	return time.Since(t.start)
}

// ThroughputTracker computes records per second over a window and publishes
// the rate to Throughput. Safe for concurrent use.
type ThroughputTracker struct {
	mu        sync.Mutex
	count     int64
	lastReset time.Time
	pipeline  string
}

// NewThroughputTracker creates a tracker for a pipeline.
func NewThroughputTracker(pipeline string) *ThroughputTracker {
	return &ThroughputTracker{
		lastReset: time.Now(),
		pipeline:  pipeline,
	}
}

// Increment adds n processed records.
func (t *ThroughputTracker) Increment(n int64) {
	t.mu.Lock()
	t.count += n
	t.mu.Unlock()
}

// GetAndReset returns the rate since the last reset, publishes it and starts
// a new window.
func (t *ThroughputTracker) GetAndReset() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	elapsed := time.Since(t.lastReset).Seconds()
	var rate float64
	if elapsed > 0 {
		rate = float64(t.count) / elapsed
	}
	t.count = 0
	t.lastReset = time.Now()

	Throughput.WithLabelValues(t.pipeline).Set(rate)
	return rate
}

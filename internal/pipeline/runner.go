// Package pipeline runs a Source through a pool of interceptor workers into
// a Sink.
//
//	source ──► events ──► worker 1..N (decode → execute → batch) ──► frames ──► sink
//
// Each worker owns its interceptor, so the execution clone and batcher are
// never shared. Record-level failures are logged and counted; only source
// and sink failures stop the run.
package pipeline

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ajitpratap0/xdrflow/internal/interceptor"
	"github.com/ajitpratap0/xdrflow/pkg/errors"
	"github.com/ajitpratap0/xdrflow/pkg/event"
	"github.com/ajitpratap0/xdrflow/pkg/metrics"
	"github.com/ajitpratap0/xdrflow/pkg/observability"
)

const tracerName = "github.com/ajitpratap0/xdrflow/internal/pipeline"

// Factory builds the interceptor for one worker.
type Factory func(worker int) (*interceptor.Interceptor, error)

// Stats summarises a run.
type Stats struct {
	interceptor.Stats
	Workers  int
	Duration time.Duration
}

// Option configures a Runner.
type Option func(*Runner)

// WithWorkers sets the number of interceptor workers.
func WithWorkers(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.workers = n
		}
	}
}

// WithQueueSize sets the capacity of the frame queue.
func WithQueueSize(n int) Option {
	return func(r *Runner) {
		if n >= 0 {
			r.queueSize = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// WithProgressInterval sets how often throughput is logged and published.
func WithProgressInterval(d time.Duration) Option {
	return func(r *Runner) {
		if d > 0 {
			r.progressInterval = d
		}
	}
}

// WithTracer sets the tracer used for the run span.
func WithTracer(t trace.Tracer) Option {
	return func(r *Runner) { r.tracer = t }
}

// Runner wires a source, N interceptor workers and a sink.
type Runner struct {
	name    string
	source  Source
	sink    Sink
	factory Factory

	workers          int
	queueSize        int
	progressInterval time.Duration
	logger           *zap.Logger
	tracer           trace.Tracer
}

// NewRunner creates a runner. Run closes source and sink.
func NewRunner(name string, source Source, sink Sink, factory Factory, opts ...Option) *Runner {
	r := &Runner{
		name:             name,
		source:           source,
		sink:             sink,
		factory:          factory,
		workers:          1,
		queueSize:        1024,
		progressInterval: 30 * time.Second,
		logger:           zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.tracer == nil {
		r.tracer = observability.Tracer(tracerName)
	}
	r.logger = r.logger.With(zap.String("pipeline", name))
	return r
}

// Run processes the source until it is exhausted or ctx is cancelled.
// Cancellation is a clean stop and returns no error. Incomplete frames are
// discarded.
func (r *Runner) Run(ctx context.Context) (Stats, error) {
	start := time.Now()
	stats := Stats{Workers: r.workers}

	workers := make([]*interceptor.Interceptor, r.workers)
	for i := range workers {
		in, err := r.factory(i)
		if err != nil {
			r.closeAll()
			return stats, err
		}
		workers[i] = in
	}

	ctx, span := r.tracer.Start(ctx, "pipeline.run", trace.WithAttributes(
		attribute.String("pipeline.name", r.name),
		attribute.Int("pipeline.workers", r.workers),
	))
	defer span.End()

	progress := observability.NewProgress(r.logger)
	progress.SetLogInterval(r.progressInterval)
	throughput := metrics.NewThroughputTracker(r.name)
	depth := metrics.QueueDepth.WithLabelValues(r.name)

	g, gctx := errgroup.WithContext(ctx)
	events, errs := r.source.Open(gctx)
	frames := make(chan *event.Event, r.queueSize)

	g.Go(func() error {
		if err, ok := <-errs; ok {
			return err
		}
		return nil
	})

	g.Go(func() error {
		defer close(frames)
		var wg errgroup.Group
		for _, in := range workers {
			in := in
			wg.Go(func() error {
				return r.work(gctx, in, events, frames, progress, throughput, depth)
			})
		}
		return wg.Wait()
	})

	g.Go(func() error {
		for f := range frames {
			if err := r.sink.Write(gctx, f); err != nil {
				return err
			}
			progress.RecordFrame()
		}
		return nil
	})

	stop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(r.progressInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				throughput.GetAndReset()
			case <-stop:
				return
			}
		}
	}()

	err := g.Wait()
	close(stop)

	for _, in := range workers {
		in.Close()
		s := in.Stats()
		stats.Records += s.Records
		stats.DecodeErrors += s.DecodeErrors
		stats.ExecuteErrors += s.ExecuteErrors
		stats.Filtered += s.Filtered
		stats.Projected += s.Projected
		stats.Frames += s.Frames
	}
	if cerr := r.closeAll(); err == nil {
		err = cerr
	}
	stats.Duration = time.Since(start)
	progress.LogFinal()

	if err != nil && stderrors.Is(err, context.Canceled) && ctx.Err() != nil {
		err = nil
	}
	span.SetAttributes(
		attribute.Int64("pipeline.records", stats.Records),
		attribute.Int64("pipeline.frames", stats.Frames),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.logger.Error("pipeline failed", zap.Error(err))
	}
	return stats, err
}

func (r *Runner) work(
	ctx context.Context,
	in *interceptor.Interceptor,
	events <-chan *event.Event,
	frames chan<- *event.Event,
	progress *observability.Progress,
	throughput *metrics.ThroughputTracker,
	depth prometheus.Gauge,
) error {
	for {
		var ev *event.Event
		var ok bool
		select {
		case ev, ok = <-events:
			if !ok {
				return nil
			}
		case <-ctx.Done():
			return ctx.Err()
		}
		depth.Set(float64(len(events)))

		out, err := in.Intercept(ev)
		throughput.Increment(1)
		progress.RecordProcessed(1, int64(len(ev.Body)))
		if err != nil {
			progress.RecordError()
			r.logger.Warn("record skipped",
				zap.Int64("record", in.Stats().Records),
				zap.String("error_type", string(errors.GetType(err))),
				zap.Error(err))
			continue
		}
		if out == nil {
			continue
		}
		select {
		case frames <- out:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (r *Runner) closeAll() error {
	err := r.source.Close()
	if serr := r.sink.Close(); err == nil {
		err = serr
	}
	return err
}

// Package interceptor chains decode, plan execution and batching over
// events. One Interceptor runs per worker; a Builder holds what workers
// share.
package interceptor

import (
	"context"

	"go.uber.org/zap"

	"github.com/ajitpratap0/xdrflow/pkg/column"
	"github.com/ajitpratap0/xdrflow/pkg/compression"
	"github.com/ajitpratap0/xdrflow/pkg/config"
	"github.com/ajitpratap0/xdrflow/pkg/encoder"
	"github.com/ajitpratap0/xdrflow/pkg/errors"
	"github.com/ajitpratap0/xdrflow/pkg/event"
	"github.com/ajitpratap0/xdrflow/pkg/layout"
	"github.com/ajitpratap0/xdrflow/pkg/logger"
	"github.com/ajitpratap0/xdrflow/pkg/metrics"
	"github.com/ajitpratap0/xdrflow/pkg/plan"
)

// Event is the record envelope the interceptor consumes and produces.
type Event = event.Event

// Builder holds the immutable parts of the chain: the layout, the cached
// plan prototype, the encoder settings and the compressor.
type Builder struct {
	desc       *layout.Descriptor
	proto      *plan.Prototype
	encoder    *encoder.Config
	compressor compression.Compressor
	logger     *zap.Logger
}

// NewBuilder validates cfg, parses the layout and compiles the expression
// through cache.
func NewBuilder(ctx context.Context, cfg *config.InterceptorConfig, cache *plan.Cache) (*Builder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	desc, err := cfg.Layout()
	if err != nil {
		return nil, err
	}
	schema, err := cfg.Schema(desc)
	if err != nil {
		return nil, err
	}
	proto, err := cache.Compile(ctx, cfg.SQL, schema)
	if err != nil {
		return nil, err
	}
	algo, err := compression.ParseAlgorithm(cfg.Compression)
	if err != nil {
		return nil, err
	}
	comp, err := compression.NewCompressor(&compression.Config{Algorithm: algo, Level: compression.Default})
	if err != nil {
		return nil, err
	}

	l := logger.WithContext(ctx)
	l.Info("interceptor configured",
		zap.Stringer("layout", desc),
		zap.Int("columns", desc.NumColumns()),
		zap.String("expression", cfg.SQL),
		zap.String("compression", string(algo)))

	return &Builder{
		desc:       desc,
		proto:      proto,
		encoder:    cfg.Encoder(),
		compressor: comp,
		logger:     l,
	}, nil
}

// Layout returns the parsed input layout.
func (b *Builder) Layout() *layout.Descriptor { return b.desc }

// Prototype returns the compiled plan.
func (b *Builder) Prototype() *plan.Prototype { return b.proto }

// Build creates an interceptor for one worker.
func (b *Builder) Build(worker int) (*Interceptor, error) {
	inst, err := b.proto.Instantiate()
	if err != nil {
		return nil, err
	}
	batcher, err := encoder.New(b.encoder)
	if err != nil {
		return nil, err
	}
	return &Interceptor{
		desc:       b.desc,
		inst:       inst,
		batcher:    batcher,
		compressor: b.compressor,
		logger:     b.logger.With(zap.Int("worker", worker)),
	}, nil
}

// Stats counts what an interceptor has done with its records.
type Stats struct {
	Records       int64
	DecodeErrors  int64
	ExecuteErrors int64
	Filtered      int64
	Projected     int64
	Frames        int64
}

// Interceptor owns one execution clone, one batcher and a decode scratch
// row. It is not safe for concurrent use.
type Interceptor struct {
	desc       *layout.Descriptor
	inst       *plan.Instance
	batcher    *encoder.Batcher
	compressor compression.Compressor
	logger     *zap.Logger

	row   column.Row
	stats Stats
}

// Intercept processes one event. It returns a frame event when this record
// completed a batch, and nil otherwise. Decode failures are returned as
// decode errors; execution failures are logged and count as filtered.
//
// Frame headers are the extra header map overlaid with ev's headers.
func (i *Interceptor) Intercept(ev *Event) (*Event, error) {
	i.stats.Records++

	row, _, err := i.desc.Decode(ev.Body, i.row)
	i.row = row
	if err != nil {
		i.stats.DecodeErrors++
		metrics.Records.WithLabelValues(metrics.OutcomeDecodeError).Inc()
		return nil, err
	}
	metrics.Records.WithLabelValues(metrics.OutcomeDecoded).Inc()

	out, err := i.inst.Execute(row)
	if err != nil {
		i.stats.ExecuteErrors++
		metrics.Records.WithLabelValues(metrics.OutcomeExecuteError).Inc()
		i.logger.Warn("record dropped by execution error",
			zap.Int64("record", i.stats.Records),
			zap.String("error_type", string(errors.GetType(err))),
			zap.Error(err))
		return nil, nil
	}
	if out == nil {
		i.stats.Filtered++
		metrics.Records.WithLabelValues(metrics.OutcomeFiltered).Inc()
		return nil, nil
	}
	i.stats.Projected++
	metrics.Records.WithLabelValues(metrics.OutcomeProjected).Inc()

	frame, ok := i.batcher.Add(out)
	if !ok {
		return nil, nil
	}
	return i.frameEvent(frame, ev.Headers)
}

func (i *Interceptor) frameEvent(frame *encoder.Frame, input map[string]string) (*Event, error) {
	headers := encoder.MergeHeaders(frame.Headers, input)
	body := frame.Body
	if algo := i.compressor.Algorithm(); algo != compression.None {
		compressed, err := i.compressor.Compress(body)
		if err != nil {
			return nil, err
		}
		body = compressed
		headers[compression.HeaderKey] = string(algo)
	}
	i.stats.Frames++
	return &Event{Headers: headers, Body: body}, nil
}

// InterceptBatch processes events in order and returns the frames they
// produced. Records that fail to decode are logged and skipped; the batch
// is never aborted.
func (i *Interceptor) InterceptBatch(evs []*Event) []*Event {
	var out []*Event
	for _, ev := range evs {
		frame, err := i.Intercept(ev)
		if err != nil {
			i.logger.Warn("record skipped",
				zap.Int64("record", i.stats.Records),
				zap.String("error_type", string(errors.GetType(err))),
				zap.Error(err))
			continue
		}
		if frame != nil {
			out = append(out, frame)
		}
	}
	return out
}

// Stats returns the counters of this interceptor.
func (i *Interceptor) Stats() Stats { return i.stats }

// Pending returns the number of rows waiting for a full frame.
func (i *Interceptor) Pending() int { return i.batcher.Pending() }

// Close drops rows of an incomplete frame. Partial frames are never
// emitted.
func (i *Interceptor) Close() {
	if n := i.batcher.Discard(); n > 0 {
		i.logger.Info("discarded incomplete frame", zap.Int("rows", n))
	}
}

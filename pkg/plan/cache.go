package plan

import (
	"context"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/ajitpratap0/xdrflow/pkg/errors"
	"github.com/ajitpratap0/xdrflow/pkg/logger"
	"github.com/ajitpratap0/xdrflow/pkg/metrics"
)

const tracerName = "github.com/ajitpratap0/xdrflow/pkg/plan"

// Compiler turns expression text into a plan specification over schema.
type Compiler interface {
	Compile(ctx context.Context, text string, schema Schema) (*Spec, error)
}

// CompilerFunc adapts a function to the Compiler interface.
type CompilerFunc func(ctx context.Context, text string, schema Schema) (*Spec, error)

// Compile calls f.
func (f CompilerFunc) Compile(ctx context.Context, text string, schema Schema) (*Spec, error) {
	return f(ctx, text, schema)
}

type cacheKey struct {
	schema string
	text   string
}

// Option configures a Cache.
type Option func(*Cache)

// WithTracer sets the tracer used for compile spans.
func WithTracer(t trace.Tracer) Option {
	return func(c *Cache) { c.tracer = t }
}

// WithLogger sets the logger used for compile events.
func WithLogger(l *zap.Logger) Option {
	return func(c *Cache) { c.logger = l }
}

// Cache maps (schema, expression text) to compiled prototypes. Lookups of
// cached entries never block; compilation of new entries is serialized so
// each key is compiled at most once and the first stored prototype is the
// one every later caller sees. Entries are never evicted.
type Cache struct {
	compiler Compiler
	tracer   trace.Tracer
	logger   *zap.Logger

	mu      sync.Mutex
	entries sync.Map // cacheKey -> *Prototype
	size    atomic.Int64
}

// NewCache creates an empty cache backed by compiler.
func NewCache(compiler Compiler, opts ...Option) *Cache {
	c := &Cache{
		compiler: compiler,
		tracer:   otel.Tracer(tracerName),
		logger:   logger.Get(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compile returns the prototype for text over schema, compiling and caching
// it on first use. Failed compilations are not cached.
func (c *Cache) Compile(ctx context.Context, text string, schema Schema) (*Prototype, error) {
	key := cacheKey{schema: schema.key(), text: text}
	if p, ok := c.entries.Load(key); ok {
		return p.(*Prototype), nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if p, ok := c.entries.Load(key); ok {
		return p.(*Prototype), nil
	}

	ctx, span := c.tracer.Start(ctx, "plan.compile", trace.WithAttributes(
		attribute.String("plan.text", text),
		attribute.Int("plan.columns", schema.Len()),
	))
	defer span.End()

	timer := metrics.NewTimer("compile")
	proto, err := c.compile(ctx, text, schema)
	metrics.CompileLatency.Observe(timer.Stop().Seconds())

	if err != nil {
		metrics.Compiles.WithLabelValues("error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logger.Warn("plan compile failed",
			zap.String("expression", text),
			zap.Error(err))
		return nil, err
	}

	c.entries.Store(key, proto)
	c.size.Add(1)
	metrics.Compiles.WithLabelValues("ok").Inc()
	metrics.CacheEntries.Inc()
	span.SetStatus(codes.Ok, "")
	c.logger.Info("plan compiled",
		zap.String("expression", text),
		zap.Stringers("topology", proto.Spec().Topology()))
	return proto, nil
}

func (c *Cache) compile(ctx context.Context, text string, schema Schema) (*Prototype, error) {
	spec, err := c.compiler.Compile(ctx, text, schema)
	if err == nil {
		var proto *Prototype
		if proto, err = NewPrototype(spec); err == nil {
			return proto, nil
		}
	}
	if !errors.IsCompile(err) {
		err = errors.Wrap(err, errors.ErrorTypeCompile, "compile failed")
	}
	return nil, err
}

// Lookup returns a cached prototype without compiling.
func (c *Cache) Lookup(text string, schema Schema) (*Prototype, bool) {
	p, ok := c.entries.Load(cacheKey{schema: schema.key(), text: text})
	if !ok {
		return nil, false
	}
	return p.(*Prototype), true
}

// Len returns the number of cached prototypes.
func (c *Cache) Len() int { return int(c.size.Load()) }

// Clear drops every cached prototype. Prototypes already handed out stay
// valid.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := c.size.Swap(0)
	c.entries.Range(func(k, _ any) bool {
		c.entries.Delete(k)
		return true
	})
	metrics.CacheEntries.Sub(float64(n))
}

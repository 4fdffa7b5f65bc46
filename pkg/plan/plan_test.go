package plan

import (
	"context"
	stderrors "errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap/zaptest"

	"github.com/ajitpratap0/xdrflow/pkg/column"
	"github.com/ajitpratap0/xdrflow/pkg/errors"
	"github.com/ajitpratap0/xdrflow/pkg/plan/expr"
)

var schema2 = PositionalSchema(2)

func c(i int) expr.Expr {
	return &expr.Column{Index: i, Name: schema2.Columns[i]}
}

// counterDef returns the number of times its instance has been called.
var counterDef = &expr.Definition{
	Name: "counter",
	New: func() expr.Impl {
		var n int64
		return expr.ImplFunc(func([]expr.Datum) (expr.Datum, error) {
			n++
			return expr.Int(n), nil
		})
	},
}

var panicDef = &expr.Definition{
	Name: "boom",
	New: func() expr.Impl {
		return expr.ImplFunc(func([]expr.Datum) (expr.Datum, error) {
			panic("boom")
		})
	},
}

// filterSpec builds "select c2, counter() where c1 = 'a'".
func filterSpec(text string, schema Schema) *Spec {
	pred := &expr.Binary{Op: expr.OpEQ, L: c(0), R: &expr.Literal{Value: expr.TextString("a")}}
	outs := []expr.Expr{c(1), &expr.Call{Func: counterDef}}
	return NewSpec(text, schema, pred, outs, []string{"c2", "counter()"})
}

type countingCompiler struct {
	calls atomic.Int32
	err   error
}

func (cc *countingCompiler) Compile(_ context.Context, text string, schema Schema) (*Spec, error) {
	cc.calls.Add(1)
	if cc.err != nil {
		return nil, cc.err
	}
	return filterSpec(text, schema), nil
}

func row(a, b string) column.Row {
	return column.Row{column.TextString(a), column.TextString(b)}
}

func TestSpecTopology(t *testing.T) {
	s := filterSpec("q", schema2)
	assert.Equal(t, []NodeKind{ScanNode, FilterNode, ProjectNode, SinkNode}, s.Topology())
	require.NoError(t, s.Validate())

	s = NewSpec("q", schema2, nil, []expr.Expr{c(0)}, nil)
	assert.Equal(t, []NodeKind{ScanNode, ProjectNode, SinkNode}, s.Topology())
	require.NoError(t, s.Validate())

	assert.Contains(t, s.Explain(), "scan 2 columns")
	assert.Contains(t, s.Explain(), "project [c1]")
}

func TestSpecValidate(t *testing.T) {
	tests := []struct {
		name string
		spec *Spec
	}{
		{"no root", &Spec{Schema: schema2}},
		{"no outputs", NewSpec("q", schema2, nil, nil, nil)},
		{"column outside schema", NewSpec("q", schema2, nil, []expr.Expr{&expr.Column{Index: 5, Name: "c6"}}, nil)},
		{"names mismatch", NewSpec("q", schema2, nil, []expr.Expr{c(0)}, []string{"a", "b"})},
		{"missing sink", &Spec{Schema: schema2, Root: &Node{Kind: ScanNode, Child: &Node{Kind: ProjectNode, Outputs: []expr.Expr{c(0)}}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.spec.Validate()
			require.Error(t, err)
			assert.True(t, errors.IsCompile(err))
		})
	}
}

func TestExecuteFilterAndProject(t *testing.T) {
	proto, err := NewPrototype(filterSpec("q", schema2))
	require.NoError(t, err)

	inst, err := proto.Instantiate()
	require.NoError(t, err)
	assert.Equal(t, []NodeKind{ScanNode, FilterNode, ProjectNode, SinkNode}, inst.Topology())
	assert.Same(t, proto, inst.Prototype())

	out, err := inst.Execute(row("a", "x"))
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "x", out[0].String())
	assert.Equal(t, "1", out[1].String())

	out, err = inst.Execute(row("b", "y"))
	require.NoError(t, err)
	assert.Nil(t, out)

	// NULL predicate filters the record
	out, err = inst.Execute(column.Row{column.NullValue(), column.TextString("z")})
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestInstanceOperatorLinks(t *testing.T) {
	proto, err := NewPrototype(filterSpec("q", schema2))
	require.NoError(t, err)
	inst, err := proto.Instantiate()
	require.NoError(t, err)

	require.Len(t, inst.ops, 4)
	assert.Nil(t, inst.ops[0].links().parent)
	for i := 1; i < len(inst.ops); i++ {
		assert.Equal(t, inst.ops[i-1], inst.ops[i].links().parent)
		assert.Equal(t, inst.ops[i], inst.ops[i-1].links().child)
	}
	assert.Nil(t, inst.ops[3].links().child)
}

func TestClonesAreIsolated(t *testing.T) {
	proto, err := NewPrototype(filterSpec("q", schema2))
	require.NoError(t, err)

	a, err := proto.Instantiate()
	require.NoError(t, err)
	b, err := proto.Instantiate()
	require.NoError(t, err)
	assert.NotSame(t, a.latch, b.latch)

	for i := 0; i < 3; i++ {
		_, err := a.Execute(row("a", "x"))
		require.NoError(t, err)
	}
	out, err := b.Execute(row("a", "y"))
	require.NoError(t, err)
	assert.Equal(t, "1", out[1].String(), "counter state must not leak between clones")

	out, err = a.Execute(row("a", "x"))
	require.NoError(t, err)
	assert.Equal(t, "4", out[1].String())
}

func TestExecuteErrorLeavesCloneUsable(t *testing.T) {
	spec := NewSpec("q", schema2,
		&expr.Binary{Op: expr.OpGT, L: c(0), R: &expr.Literal{Value: expr.Int(1)}},
		[]expr.Expr{c(1)}, nil)
	proto, err := NewPrototype(spec)
	require.NoError(t, err)
	inst, err := proto.Instantiate()
	require.NoError(t, err)

	_, err = inst.Execute(row("not-a-number", "x"))
	require.Error(t, err)
	assert.True(t, errors.IsExecute(err))

	out, err := inst.Execute(row("5", "x"))
	require.NoError(t, err)
	assert.Equal(t, "x", out[0].String())
}

func TestExecuteShortRow(t *testing.T) {
	proto, err := NewPrototype(filterSpec("q", schema2))
	require.NoError(t, err)
	_, err = proto.Execute(column.Row{column.TextString("a")})
	require.Error(t, err)
	assert.True(t, errors.IsExecute(err))
}

func TestExpressionPanicBecomesExecuteError(t *testing.T) {
	spec := NewSpec("q", schema2, nil, []expr.Expr{&expr.Call{Func: panicDef}}, nil)
	proto, err := NewPrototype(spec)
	require.NoError(t, err)

	_, err = proto.Execute(row("a", "b"))
	require.Error(t, err)
	assert.True(t, errors.IsExecute(err))
}

func TestPrototypeExecuteConcurrent(t *testing.T) {
	spec := NewSpec("q", schema2, nil, []expr.Expr{c(1), c(0)}, nil)
	proto, err := NewPrototype(spec)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				out, err := proto.Execute(row("a", "b"))
				if !assert.NoError(t, err) {
					return
				}
				assert.Equal(t, "b", out[0].String())
				assert.Equal(t, "a", out[1].String())
			}
		}()
	}
	wg.Wait()
}

func TestLatch(t *testing.T) {
	l := &Latch{}
	assert.Panics(t, func() { l.take() }, "read without execute")
	assert.Panics(t, func() { l.put(row("a", "b")) }, "write without prime")

	l.prime()
	_, ok := l.take()
	assert.False(t, ok)

	l.prime()
	l.put(row("a", "b"))
	assert.Panics(t, func() { l.put(row("c", "d")) }, "second write")

	l.abort()
	l.prime()
	l.put(row("a", "b"))
	assert.Panics(t, func() { l.prime() }, "prime over unread result")

	got, ok := l.take()
	assert.True(t, ok)
	assert.Equal(t, "a", got[0].String())
	assert.Panics(t, func() { l.take() }, "double read")
}

func TestCacheCompilesOnce(t *testing.T) {
	cc := &countingCompiler{}
	cache := NewCache(cc, WithLogger(zaptest.NewLogger(t)))

	const workers = 32
	protos := make([]*Prototype, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, err := cache.Compile(context.Background(), "select c2 where c1 = 'a'", schema2)
			assert.NoError(t, err)
			protos[i] = p
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), cc.calls.Load())
	assert.Equal(t, 1, cache.Len())
	for _, p := range protos {
		assert.Same(t, protos[0], p)
	}

	p, ok := cache.Lookup("select c2 where c1 = 'a'", schema2)
	assert.True(t, ok)
	assert.Same(t, protos[0], p)
}

func TestCacheKeyIncludesSchema(t *testing.T) {
	cc := &countingCompiler{}
	cache := NewCache(cc, WithLogger(zaptest.NewLogger(t)))
	ctx := context.Background()

	a, err := cache.Compile(ctx, "q", schema2)
	require.NoError(t, err)
	b, err := cache.Compile(ctx, "q", Schema{Columns: []string{"imsi", "msisdn"}})
	require.NoError(t, err)
	padded, err := cache.Compile(ctx, "q ", schema2)
	require.NoError(t, err)

	assert.NotSame(t, a, b)
	assert.NotSame(t, a, padded)
	assert.Equal(t, int32(3), cc.calls.Load())

	cache.Clear()
	assert.Equal(t, 0, cache.Len())
	_, ok := cache.Lookup("q", schema2)
	assert.False(t, ok)
}

func TestCacheDoesNotCacheFailures(t *testing.T) {
	cc := &countingCompiler{err: stderrors.New("syntax error")}
	cache := NewCache(cc, WithLogger(zaptest.NewLogger(t)))

	for i := 0; i < 2; i++ {
		_, err := cache.Compile(context.Background(), "selec", schema2)
		require.Error(t, err)
		assert.True(t, errors.IsCompile(err))
	}
	assert.Equal(t, int32(2), cc.calls.Load())
	assert.Equal(t, 0, cache.Len())
}

func TestCacheRejectsInvalidSpec(t *testing.T) {
	compiler := CompilerFunc(func(_ context.Context, text string, schema Schema) (*Spec, error) {
		return NewSpec(text, schema, nil, []expr.Expr{&expr.Column{Index: 9, Name: "c10"}}, nil), nil
	})
	cache := NewCache(compiler, WithLogger(zaptest.NewLogger(t)))

	_, err := cache.Compile(context.Background(), "select c10", schema2)
	require.Error(t, err)
	assert.True(t, errors.IsCompile(err))
}

func TestCacheCompileSpan(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	cache := NewCache(&countingCompiler{}, WithTracer(tp.Tracer("test")), WithLogger(zaptest.NewLogger(t)))
	_, err := cache.Compile(context.Background(), "q", schema2)
	require.NoError(t, err)
	// cache hits do not start spans
	_, err = cache.Compile(context.Background(), "q", schema2)
	require.NoError(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "plan.compile", spans[0].Name())
}

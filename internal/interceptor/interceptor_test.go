package interceptor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ajitpratap0/xdrflow/pkg/compression"
	"github.com/ajitpratap0/xdrflow/pkg/config"
	"github.com/ajitpratap0/xdrflow/pkg/errors"
	"github.com/ajitpratap0/xdrflow/pkg/plan"
	"github.com/ajitpratap0/xdrflow/pkg/sql"
	"github.com/ajitpratap0/xdrflow/pkg/udf"
)

func newCache() *plan.Cache {
	return plan.NewCache(sql.NewCompiler(udf.Default()), plan.WithLogger(zap.NewNop()))
}

// c1: 2-byte type, c2: 2-byte count, c3: IPv4 address
func fixedConfig() *config.InterceptorConfig {
	cfg := config.NewConfig().Interceptor
	cfg.SQL = "select c2, bytestoip(c3) from event where c1 = 1"
	cfg.InputColumnLengths = "2,2,4"
	cfg.MaxRecordNum = 2
	cfg.ExtraHeader = "topic=xdr,dc=east"
	return &cfg
}

func record(kind byte) []byte {
	return []byte{0x00, kind, 0x00, 0x2A, 0x64, 0x4B, 0xE6, 0x09}
}

func build(t *testing.T, cfg *config.InterceptorConfig) *Interceptor {
	t.Helper()
	b, err := NewBuilder(context.Background(), cfg, newCache())
	require.NoError(t, err)
	in, err := b.Build(0)
	require.NoError(t, err)
	return in
}

func TestInterceptEmitsFullFrames(t *testing.T) {
	in := build(t, fixedConfig())

	out, err := in.Intercept(&Event{Body: record(1)})
	require.NoError(t, err)
	assert.Nil(t, out, "first row waits for the batch")
	assert.Equal(t, 1, in.Pending())

	out, err = in.Intercept(&Event{Body: record(2)})
	require.NoError(t, err)
	assert.Nil(t, out, "filtered record does not count toward the batch")

	out, err = in.Intercept(&Event{Body: record(1), Headers: map[string]string{"dc": "west", "seq": "9"}})
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.Equal(t, "42|100.75.230.9\n42|100.75.230.9", string(out.Body))
	assert.Equal(t, map[string]string{"topic": "xdr", "dc": "west", "seq": "9"}, out.Headers)
	assert.Equal(t, 0, in.Pending())

	s := in.Stats()
	assert.Equal(t, Stats{Records: 3, Filtered: 1, Projected: 2, Frames: 1}, s)
}

func TestInterceptDecodeError(t *testing.T) {
	in := build(t, fixedConfig())

	_, err := in.Intercept(&Event{Body: []byte{0x00, 0x01, 0x00}})
	require.Error(t, err)
	assert.True(t, errors.IsDecode(err))
	assert.Equal(t, int64(1), in.Stats().DecodeErrors)
	assert.Equal(t, 0, in.Pending())
}

func TestInterceptExecuteErrorIsFiltered(t *testing.T) {
	cfg := config.NewConfig().Interceptor
	cfg.SQL = "select c1 from event where c2 + 1 > 0"
	cfg.InputColumnNum = 2
	in := build(t, &cfg)

	out, err := in.Intercept(&Event{Body: []byte("a,abc")})
	require.NoError(t, err)
	assert.Nil(t, out)
	assert.Equal(t, int64(1), in.Stats().ExecuteErrors)

	out, err = in.Intercept(&Event{Body: []byte("b,7")})
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.Equal(t, "b", string(out.Body))
}

func TestInterceptBatch(t *testing.T) {
	in := build(t, fixedConfig())
	core, logs := observer.New(zap.WarnLevel)
	in.logger = zap.New(core)

	frames := in.InterceptBatch([]*Event{
		{Body: record(1)},
		{Body: []byte{0xFF}},
		{Body: record(1)},
		{Body: record(1)},
		{Body: record(3)},
		{Body: record(1)},
	})
	require.Len(t, frames, 2)
	assert.Equal(t, 1, logs.FilterMessage("record skipped").Len())
	assert.Equal(t, int64(1), in.Stats().DecodeErrors)
	assert.Equal(t, int64(2), in.Stats().Frames)
}

func TestInterceptCompression(t *testing.T) {
	cfg := fixedConfig()
	cfg.MaxRecordNum = 1
	cfg.Compression = "zstd"
	in := build(t, cfg)

	out, err := in.Intercept(&Event{Body: record(1)})
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.Equal(t, "zstd", out.Headers[compression.HeaderKey])

	comp, err := compression.NewCompressor(&compression.Config{Algorithm: compression.Zstd})
	require.NoError(t, err)
	body, err := comp.Decompress(out.Body)
	require.NoError(t, err)
	assert.Equal(t, "42|100.75.230.9", string(body))
}

func TestBuilderSharesPrototype(t *testing.T) {
	cache := newCache()
	b1, err := NewBuilder(context.Background(), fixedConfig(), cache)
	require.NoError(t, err)
	b2, err := NewBuilder(context.Background(), fixedConfig(), cache)
	require.NoError(t, err)
	assert.Same(t, b1.Prototype(), b2.Prototype())
	assert.Equal(t, 1, cache.Len())

	w1, err := b1.Build(1)
	require.NoError(t, err)
	w2, err := b1.Build(2)
	require.NoError(t, err)
	assert.NotSame(t, w1.batcher, w2.batcher)
}

func TestBuilderErrors(t *testing.T) {
	cfg := fixedConfig()
	cfg.SQL = "select nosuchfn(c1) from event"
	_, err := NewBuilder(context.Background(), cfg, newCache())
	require.Error(t, err)
	assert.True(t, errors.IsCompile(err))

	cfg = fixedConfig()
	cfg.InputColumnLengths = "2,two"
	_, err = NewBuilder(context.Background(), cfg, newCache())
	require.Error(t, err)
	assert.True(t, errors.IsConfig(err))
}

func TestCloseDiscardsPartialFrame(t *testing.T) {
	in := build(t, fixedConfig())
	_, err := in.Intercept(&Event{Body: record(1)})
	require.NoError(t, err)
	in.Close()
	assert.Equal(t, 0, in.Pending())
}

func TestTaggedLayout(t *testing.T) {
	cfg := config.NewConfig().Interceptor
	cfg.SQL = "select c1, tbcd(c3) from event where c2 is null"
	cfg.InputTLVLayout = "v1,tlv20,tlv21"
	in := build(t, &cfg)

	// v1 = 0x07, then tag 21 with a 3-byte fixed-format value
	body := []byte{0x07, 0x15, 0x30, 0x10, 0x23, 0xA4}
	out, err := in.Intercept(&Event{Body: body})
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.Equal(t, "7|01324", string(out.Body))
}

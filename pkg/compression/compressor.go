// Package compression compresses output frame bodies.
//
// A frame body is compressed as a whole; the algorithm name travels in the
// frame's HeaderKey header so consumers can pick the matching decoder.
//
//	comp, err := compression.NewCompressor(&compression.Config{
//	    Algorithm: compression.Zstd,
//	    Level:     compression.Default,
//	})
//	body, err := comp.Compress(frame.Body)
//
// Algorithm selection:
//   - Snappy/S2: fastest, moderate ratio
//   - LZ4: very fast, decent ratio
//   - Zstd: best ratio at good speed
//   - Gzip: widest compatibility
//
// All compressors are safe for concurrent use.
package compression

import (
	"bytes"
	"io"
	"strings"
	"sync"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/ajitpratap0/xdrflow/pkg/errors"
	stringpool "github.com/ajitpratap0/xdrflow/pkg/strings"
)

// HeaderKey is the frame header naming the body compression.
const HeaderKey = "compression"

// Algorithm represents a compression algorithm.
type Algorithm string

const (
	// None leaves bodies untouched
	None   Algorithm = "none"
	Gzip   Algorithm = "gzip"
	Snappy Algorithm = "snappy"
	LZ4    Algorithm = "lz4"
	Zstd   Algorithm = "zstd"
	// S2 is snappy compatible with a better ratio
	S2 Algorithm = "s2"
)

// ParseAlgorithm maps a configuration value to an Algorithm. The empty
// string means None.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch a := Algorithm(strings.ToLower(strings.TrimSpace(s))); a {
	case "":
		return None, nil
	case None, Gzip, Snappy, LZ4, Zstd, S2:
		return a, nil
	default:
		return "", errors.Newf(errors.ErrorTypeConfig, "unsupported compression algorithm %q", s)
	}
}

// Level represents compression level, controlling the trade-off between
// compression speed and compression ratio.
type Level int

const (
	// Fastest prioritizes speed over compression ratio.
	Fastest Level = 1
	// Default balances speed and compression.
	Default Level = 5
	// Better improves compression at cost of speed.
	Better Level = 7
	// Best maximizes compression ratio.
	Best Level = 9
)

// Compressor compresses and decompresses whole buffers. The input is never
// modified and the result never aliases it, except for None which returns
// its input.
type Compressor interface {
	Compress(data []byte) ([]byte, error)
	Decompress(data []byte) ([]byte, error)
	Algorithm() Algorithm
}

// Config represents compressor configuration.
type Config struct {
	Algorithm Algorithm
	Level     Level
	// MaxDecodedSize bounds decompressed output; zero means 64 MiB.
	MaxDecodedSize int
}

const defaultMaxDecodedSize = 64 << 20

// NewCompressor creates a compressor for config. A nil config selects None.
func NewCompressor(config *Config) (Compressor, error) {
	if config == nil {
		return noneCompressor{}, nil
	}
	limit := config.MaxDecodedSize
	if limit <= 0 {
		limit = defaultMaxDecodedSize
	}

	switch config.Algorithm {
	case None, "":
		return noneCompressor{}, nil
	case Gzip:
		return newGzipCompressor(config.Level, limit), nil
	case Snappy:
		return blockCompressor{algorithm: Snappy, limit: limit,
			encode: snappy.Encode, decode: snappy.Decode, decodedLen: snappy.DecodedLen}, nil
	case S2:
		return blockCompressor{algorithm: S2, limit: limit,
			encode: s2.Encode, decode: s2.Decode, decodedLen: s2.DecodedLen}, nil
	case LZ4:
		return &lz4Compressor{level: mapLZ4Level(config.Level), limit: limit}, nil
	case Zstd:
		return newZstdCompressor(config.Level, limit)
	default:
		return nil, errors.Newf(errors.ErrorTypeConfig, "unsupported compression algorithm %q", config.Algorithm)
	}
}

func encodeError(a Algorithm, err error) error {
	return errors.Wrapf(err, errors.ErrorTypeEncode, "%s compression failed", a)
}

func decodeError(a Algorithm, err error) error {
	return errors.Wrapf(err, errors.ErrorTypeDecode, "%s decompression failed", a)
}

func tooLarge(a Algorithm, limit int) error {
	return errors.Newf(errors.ErrorTypeDecode, "%s payload exceeds %d decoded bytes", a, limit)
}

type noneCompressor struct{}

func (noneCompressor) Compress(data []byte) ([]byte, error)   { return data, nil }
func (noneCompressor) Decompress(data []byte) ([]byte, error) { return data, nil }
func (noneCompressor) Algorithm() Algorithm                   { return None }

// blockCompressor covers the snappy family, whose block formats record the
// decoded length up front.
type blockCompressor struct {
	algorithm  Algorithm
	limit      int
	encode     func(dst, src []byte) []byte
	decode     func(dst, src []byte) ([]byte, error)
	decodedLen func(src []byte) (int, error)
}

func (bc blockCompressor) Compress(data []byte) ([]byte, error) {
	return bc.encode(nil, data), nil
}

func (bc blockCompressor) Decompress(data []byte) ([]byte, error) {
	n, err := bc.decodedLen(data)
	if err != nil {
		return nil, decodeError(bc.algorithm, err)
	}
	if n > bc.limit {
		return nil, tooLarge(bc.algorithm, bc.limit)
	}
	out, err := bc.decode(nil, data)
	if err != nil {
		return nil, decodeError(bc.algorithm, err)
	}
	return out, nil
}

func (bc blockCompressor) Algorithm() Algorithm { return bc.algorithm }

type gzipCompressor struct {
	limit      int
	writerPool sync.Pool
	readerPool sync.Pool
}

func newGzipCompressor(level Level, limit int) *gzipCompressor {
	gc := &gzipCompressor{limit: limit}
	gl := mapGzipLevel(level)
	gc.writerPool.New = func() interface{} {
		w, _ := gzip.NewWriterLevel(nil, gl)
		return w
	}
	gc.readerPool.New = func() interface{} {
		return new(gzip.Reader)
	}
	return gc
}

func (gc *gzipCompressor) Compress(data []byte) ([]byte, error) {
	builder := stringpool.GetBuilder(stringpool.Medium)
	defer stringpool.PutBuilder(builder, stringpool.Medium)

	w := gc.writerPool.Get().(*gzip.Writer)
	defer gc.writerPool.Put(w)

	w.Reset(builder)
	if _, err := w.Write(data); err != nil {
		return nil, encodeError(Gzip, err)
	}
	if err := w.Close(); err != nil {
		return nil, encodeError(Gzip, err)
	}
	return bytes.Clone(builder.Bytes()), nil
}

func (gc *gzipCompressor) Decompress(data []byte) ([]byte, error) {
	r := gc.readerPool.Get().(*gzip.Reader)
	defer gc.readerPool.Put(r)

	if err := r.Reset(bytes.NewReader(data)); err != nil {
		return nil, decodeError(Gzip, err)
	}
	return readLimited(Gzip, r, gc.limit)
}

func (gc *gzipCompressor) Algorithm() Algorithm { return Gzip }

type lz4Compressor struct {
	level lz4.CompressionLevel
	limit int
}

func (lc *lz4Compressor) Compress(data []byte) ([]byte, error) {
	builder := stringpool.GetBuilder(stringpool.Medium)
	defer stringpool.PutBuilder(builder, stringpool.Medium)

	w := lz4.NewWriter(builder)
	if err := w.Apply(lz4.CompressionLevelOption(lc.level)); err != nil {
		return nil, encodeError(LZ4, err)
	}
	if _, err := w.Write(data); err != nil {
		return nil, encodeError(LZ4, err)
	}
	if err := w.Close(); err != nil {
		return nil, encodeError(LZ4, err)
	}
	return bytes.Clone(builder.Bytes()), nil
}

func (lc *lz4Compressor) Decompress(data []byte) ([]byte, error) {
	return readLimited(LZ4, lz4.NewReader(bytes.NewReader(data)), lc.limit)
}

func (lc *lz4Compressor) Algorithm() Algorithm { return LZ4 }

type zstdCompressor struct {
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

func newZstdCompressor(level Level, limit int) (*zstdCompressor, error) {
	// EncodeAll and DecodeAll are safe for concurrent use, so one of each
	// is shared.
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(mapZstdLevel(level)))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to create zstd encoder")
	}
	dec, err := zstd.NewReader(nil, zstd.WithDecoderMaxMemory(uint64(limit)))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to create zstd decoder")
	}
	return &zstdCompressor{encoder: enc, decoder: dec}, nil
}

func (zc *zstdCompressor) Compress(data []byte) ([]byte, error) {
	return zc.encoder.EncodeAll(data, nil), nil
}

func (zc *zstdCompressor) Decompress(data []byte) ([]byte, error) {
	out, err := zc.decoder.DecodeAll(data, nil)
	if err != nil {
		return nil, decodeError(Zstd, err)
	}
	return out, nil
}

func (zc *zstdCompressor) Algorithm() Algorithm { return Zstd }

func readLimited(a Algorithm, r io.Reader, limit int) ([]byte, error) {
	builder := stringpool.GetBuilder(stringpool.Medium)
	defer stringpool.PutBuilder(builder, stringpool.Medium)

	n, err := io.Copy(builder, io.LimitReader(r, int64(limit)+1))
	if err != nil {
		return nil, decodeError(a, err)
	}
	if n > int64(limit) {
		return nil, tooLarge(a, limit)
	}
	return bytes.Clone(builder.Bytes()), nil
}

func mapGzipLevel(level Level) int {
	switch level {
	case Fastest:
		return gzip.BestSpeed
	case Best:
		return gzip.BestCompression
	case Better:
		return 7
	default:
		return gzip.DefaultCompression
	}
}

func mapLZ4Level(level Level) lz4.CompressionLevel {
	switch level {
	case Fastest:
		return lz4.Fast
	case Best:
		return lz4.Level9
	default:
		return lz4.Level5
	}
}

func mapZstdLevel(level Level) zstd.EncoderLevel {
	switch level {
	case Fastest:
		return zstd.SpeedFastest
	case Better:
		return zstd.SpeedBetterCompression
	case Best:
		return zstd.SpeedBestCompression
	default:
		return zstd.SpeedDefault
	}
}

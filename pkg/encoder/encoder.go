// Package encoder renders projected rows into delimited text and batches
// them into output frames.
//
// A Batcher owns its buffer and row counter and is not safe for concurrent
// use; run one per worker. Frames are emitted only when they hold exactly
// MaxRecordNum rows.
package encoder

import (
	"github.com/ajitpratap0/xdrflow/pkg/column"
	"github.com/ajitpratap0/xdrflow/pkg/errors"
	"github.com/ajitpratap0/xdrflow/pkg/format"
	"github.com/ajitpratap0/xdrflow/pkg/metrics"
	stringpool "github.com/ajitpratap0/xdrflow/pkg/strings"
)

// Mode selects how Bytes columns are rendered.
type Mode string

const (
	// Text renders Bytes columns as hex dumps.
	Text Mode = "text"
	// Binary renders Bytes columns by width: 1 and 2 byte spans as unsigned
	// decimal, 3..8 byte spans as signed decimal, longer spans as hex dumps.
	Binary Mode = "binary"
)

// Config configures a Batcher.
type Config struct {
	Mode            Mode   `yaml:"output_mode" json:"output_mode"`
	Delimiter       string `yaml:"delimiter" json:"delimiter"`
	AppendHexPrefix bool   `yaml:"append_hex_prefix" json:"append_hex_prefix"`
	MaxRecordNum    int    `yaml:"max_record_num" json:"max_record_num"`
	BufferSize      int    `yaml:"buffer_size" json:"buffer_size"`
	// ExtraHeader is "k1=v1,k2=v2"; see ParseExtraHeader.
	ExtraHeader string `yaml:"extra_header" json:"extra_header"`
}

// DefaultConfig returns the default batcher configuration.
func DefaultConfig() *Config {
	return &Config{
		Mode:            Binary,
		Delimiter:       "|",
		AppendHexPrefix: true,
		MaxRecordNum:    1,
		BufferSize:      1 << 20,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	switch c.Mode {
	case Text, Binary:
	default:
		return errors.Newf(errors.ErrorTypeConfig, "unknown output mode %q", c.Mode)
	}
	if c.MaxRecordNum < 1 {
		return errors.Newf(errors.ErrorTypeConfig, "max-record-num must be positive, got %d", c.MaxRecordNum)
	}
	if c.BufferSize < 0 {
		return errors.Newf(errors.ErrorTypeConfig, "buffer-size must not be negative, got %d", c.BufferSize)
	}
	_, err := ParseExtraHeader(c.ExtraHeader)
	return err
}

// Frame is one batch of rendered rows.
type Frame struct {
	Body    []byte
	Headers map[string]string
	Rows    int
}

// Batcher accumulates rendered rows until MaxRecordNum is reached.
type Batcher struct {
	mode      Mode
	delimiter []byte
	hexPrefix bool
	maxRows   int
	headers   map[string]string

	buf     *stringpool.Builder
	scratch []byte
	rows    int

	framesEmitted int64
	rowsWritten   int64
}

// New creates a Batcher. A nil config uses DefaultConfig.
func New(cfg *Config) (*Batcher, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	headers, err := ParseExtraHeader(cfg.ExtraHeader)
	if err != nil {
		return nil, err
	}
	return &Batcher{
		mode:      cfg.Mode,
		delimiter: []byte(cfg.Delimiter),
		hexPrefix: cfg.AppendHexPrefix,
		maxRows:   cfg.MaxRecordNum,
		headers:   headers,
		buf:       stringpool.NewBuilder(cfg.BufferSize),
		scratch:   make([]byte, 0, 64),
	}, nil
}

// Add renders row into the buffer. It returns a frame once the buffer holds
// MaxRecordNum rows and resets the buffer. A nil row is a filtered record
// and is ignored.
func (b *Batcher) Add(row column.Row) (*Frame, bool) {
	if row == nil {
		return nil, false
	}
	if b.rows != 0 {
		_ = b.buf.WriteByte('\n')
	}
	for i, v := range row {
		if i != 0 {
			b.buf.WriteBytes(b.delimiter)
		}
		b.scratch = b.render(b.scratch[:0], v)
		b.buf.WriteBytes(b.scratch)
	}
	b.rows++
	b.rowsWritten++

	if b.rows < b.maxRows {
		return nil, false
	}
	return b.emit(), true
}

func (b *Batcher) emit() *Frame {
	body := make([]byte, b.buf.Len())
	copy(body, b.buf.Bytes())
	f := &Frame{
		Body:    body,
		Headers: b.Headers(),
		Rows:    b.rows,
	}
	b.buf.Reset()
	b.rows = 0
	b.framesEmitted++

	metrics.Frames.Inc()
	metrics.FrameBytes.Observe(float64(len(body)))
	return f
}

// Pending returns the number of buffered rows.
func (b *Batcher) Pending() int { return b.rows }

// Discard drops buffered rows and returns how many were dropped.
func (b *Batcher) Discard() int {
	n := b.rows
	b.buf.Reset()
	b.rows = 0
	return n
}

// Headers returns a copy of the extra header map.
func (b *Batcher) Headers() map[string]string {
	out := make(map[string]string, len(b.headers))
	for k, v := range b.headers {
		out[k] = v
	}
	return out
}

// FramesEmitted returns the number of frames returned by Add.
func (b *Batcher) FramesEmitted() int64 { return b.framesEmitted }

// RowsWritten returns the number of rows rendered.
func (b *Batcher) RowsWritten() int64 { return b.rowsWritten }

// render appends the display form of v. Null and all-sentinel values render
// empty.
func (b *Batcher) render(dst []byte, v column.Value) []byte {
	switch v.Kind() {
	case column.Text:
		return append(dst, v.Data()...)
	case column.Bytes:
		if b.mode == Binary {
			return AppendBinary(dst, v.Data(), b.hexPrefix)
		}
		if format.IsNull(v.Data()) {
			return dst
		}
		return format.AppendHex(dst, v.Data(), b.hexPrefix)
	default:
		return dst
	}
}

// uint32Null marks a 3..8 byte span that carries a widened 4-byte null.
const uint32Null = 0xFFFFFFFF

// AppendBinary appends the positional rendering of a binary span.
func AppendBinary(dst, data []byte, hexPrefix bool) []byte {
	if format.IsNull(data) {
		return dst
	}
	switch n := len(data); {
	case n == 1:
		return format.AppendByte(dst, data[0])
	case n == 2:
		return format.AppendPair(dst, data[0], data[1])
	case n <= 8:
		v := format.Uint(data)
		if v == uint32Null {
			return dst
		}
		return format.AppendInt(dst, int64(v))
	default:
		return format.AppendHex(dst, data, hexPrefix)
	}
}

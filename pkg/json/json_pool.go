// Package json provides goccy/go-json based serialization for CLI output:
// pooled buffers, a streaming encoder for JSON lines or arrays, and a
// row encoder that keeps column order.
package json

import (
	"bytes"
	"io"
	"sync"

	gojson "github.com/goccy/go-json"

	"github.com/ajitpratap0/xdrflow/pkg/column"
	"github.com/ajitpratap0/xdrflow/pkg/format"
)

var bufferPool = sync.Pool{
	New: func() interface{} {
		return bytes.NewBuffer(make([]byte, 0, 4096))
	},
}

// GetBuffer gets a pooled bytes.Buffer
func GetBuffer() *bytes.Buffer {
	buf := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	return buf
}

// PutBuffer returns a buffer to the pool
func PutBuffer(buf *bytes.Buffer) {
	if buf.Cap() > 1024*1024 { // Don't pool very large buffers
		return
	}
	bufferPool.Put(buf)
}

// Marshal is a drop-in replacement for json.Marshal
func Marshal(v interface{}) ([]byte, error) {
	return gojson.Marshal(v)
}

// Unmarshal is a drop-in replacement for json.Unmarshal
func Unmarshal(data []byte, v interface{}) error {
	return gojson.Unmarshal(data, v)
}

// MarshalIndent is a drop-in replacement for json.MarshalIndent
func MarshalIndent(v interface{}, prefix, indent string) ([]byte, error) {
	return gojson.MarshalIndent(v, prefix, indent)
}

// StreamingEncoder writes values as JSON lines or as one JSON array.
type StreamingEncoder struct {
	writer      io.Writer
	encoder     *gojson.Encoder
	firstRecord bool
	isArray     bool
	pretty      bool
}

// NewStreamingEncoder creates a new streaming encoder
func NewStreamingEncoder(w io.Writer, isArray bool) *StreamingEncoder {
	enc := gojson.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return &StreamingEncoder{
		writer:      w,
		encoder:     enc,
		firstRecord: true,
		isArray:     isArray,
	}
}

// SetPretty enables indented output
func (se *StreamingEncoder) SetPretty(indent string) {
	se.pretty = true
	se.encoder.SetIndent("", indent)
}

// Encode encodes a single value
func (se *StreamingEncoder) Encode(v interface{}) error {
	if se.isArray {
		sep := []byte{','}
		if se.firstRecord {
			sep = []byte{'['}
		}
		if _, err := se.writer.Write(sep); err != nil {
			return err
		}
		se.firstRecord = false
	}
	return se.encoder.Encode(v)
}

// WriteRaw writes an already encoded value followed by a newline.
func (se *StreamingEncoder) WriteRaw(data []byte) error {
	if se.isArray {
		sep := byte(',')
		if se.firstRecord {
			sep = '['
		}
		if _, err := se.writer.Write([]byte{sep}); err != nil {
			return err
		}
		se.firstRecord = false
	}
	if _, err := se.writer.Write(data); err != nil {
		return err
	}
	_, err := se.writer.Write([]byte{'\n'})
	return err
}

// Close finalizes the encoding
func (se *StreamingEncoder) Close() error {
	if !se.isArray {
		return nil
	}
	tail := []byte{']', '\n'}
	if se.firstRecord {
		tail = []byte{'[', ']', '\n'}
	}
	_, err := se.writer.Write(tail)
	return err
}

// AppendRow appends row as a JSON object keyed by names, in column order.
// Bytes render as 0x-prefixed hex, Text as a string and Null as null.
// Columns beyond names are keyed by position ("_6").
func AppendRow(dst []byte, names []string, row column.Row) ([]byte, error) {
	dst = append(dst, '{')
	for i, v := range row {
		if i > 0 {
			dst = append(dst, ',')
		}
		var key string
		if i < len(names) {
			key = names[i]
		} else {
			key = "_" + string(format.AppendInt(nil, int64(i+1)))
		}
		k, err := marshalString(key)
		if err != nil {
			return nil, err
		}
		dst = append(dst, k...)
		dst = append(dst, ':')

		switch v.Kind() {
		case column.Null:
			dst = append(dst, "null"...)
		case column.Bytes:
			dst = append(dst, '"')
			dst = format.AppendHex(dst, v.Data(), true)
			dst = append(dst, '"')
		default:
			s, err := marshalString(v.String())
			if err != nil {
				return nil, err
			}
			dst = append(dst, s...)
		}
	}
	return append(dst, '}'), nil
}

// marshalString quotes s without escaping '<', '>' and '&'.
func marshalString(s string) ([]byte, error) {
	return gojson.MarshalWithOption(s, gojson.DisableHTMLEscape())
}

// Package column defines the values produced by the decoder and consumed by
// the plan executor and the output encoders.
package column

import (
	"bytes"

	stringpool "github.com/ajitpratap0/xdrflow/pkg/strings"
)

// Kind discriminates the variants of Value.
type Kind uint8

const (
	// Null is an absent value.
	Null Kind = iota
	// Bytes is a binary span, usually a view into the decoded input buffer.
	Bytes
	// Text is a character value rendered verbatim by the encoders.
	Text
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case Bytes:
		return "bytes"
	case Text:
		return "text"
	default:
		return "null"
	}
}

// Value is a tagged union of Null, Bytes and Text. The zero Value is Null.
//
// Bytes and Text values produced by the decoder alias the input buffer; call
// Clone before the buffer is reused.
type Value struct {
	kind Kind
	data []byte
}

// NullValue returns the Null value.
func NullValue() Value { return Value{} }

// BytesValue wraps b as a binary value. A nil b still yields Bytes.
func BytesValue(b []byte) Value { return Value{kind: Bytes, data: b} }

// TextValue wraps b as a text value.
func TextValue(b []byte) Value { return Value{kind: Text, data: b} }

// TextString wraps s as a text value without copying.
func TextString(s string) Value { return Value{kind: Text, data: stringpool.StringToBytes(s)} }

// Kind returns the variant.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is Null.
func (v Value) IsNull() bool { return v.kind == Null }

// Data returns the raw bytes of a Bytes or Text value, nil for Null.
func (v Value) Data() []byte { return v.data }

// Len returns the payload length.
func (v Value) Len() int { return len(v.data) }

// String returns the payload as a string. Null renders empty.
func (v Value) String() string { return string(v.data) }

// Equal reports whether both values have the same kind and payload.
func (v Value) Equal(o Value) bool {
	return v.kind == o.kind && bytes.Equal(v.data, o.data)
}

// Clone returns a value whose payload no longer aliases the source buffer.
func (v Value) Clone() Value {
	if v.kind == Null {
		return v
	}
	data := make([]byte, len(v.data))
	copy(data, v.data)
	return Value{kind: v.kind, data: data}
}

// Row is a positional array of column values.
type Row []Value

// Clone deep-copies every value in the row.
func (r Row) Clone() Row {
	if r == nil {
		return nil
	}
	out := make(Row, len(r))
	for i, v := range r {
		out[i] = v.Clone()
	}
	return out
}

// Reset sets every value to Null, keeping the length.
func (r Row) Reset() {
	for i := range r {
		r[i] = Value{}
	}
}

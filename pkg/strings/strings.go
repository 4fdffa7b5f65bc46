// Package strings provides zero-copy conversions and pooled builders used on
// the record hot path.
package strings

import (
	"fmt"
	"strings"
	"sync"
	"unsafe"
)

// BytesToString converts a byte slice to a string without allocation.
// The returned string shares memory with b; b must not be modified afterwards.
func BytesToString(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	return unsafe.String(unsafe.SliceData(b), len(b))
}

// StringToBytes converts a string to a byte slice without allocation.
// The returned slice must not be modified.
func StringToBytes(s string) []byte {
	if len(s) == 0 {
		return nil
	}
	return unsafe.Slice(unsafe.StringData(s), len(s))
}

// Builder is an append-only byte buffer that also satisfies io.Writer.
type Builder struct {
	buf []byte
}

// NewBuilder creates a builder with the given initial capacity.
func NewBuilder(capacity int) *Builder {
	return &Builder{buf: make([]byte, 0, capacity)}
}

// WriteString appends s.
func (b *Builder) WriteString(s string) {
	b.buf = append(b.buf, s...)
}

// WriteBytes appends data.
func (b *Builder) WriteBytes(data []byte) {
	b.buf = append(b.buf, data...)
}

// WriteByte appends c.
func (b *Builder) WriteByte(c byte) error {
	b.buf = append(b.buf, c)
	return nil
}

// Write implements io.Writer.
func (b *Builder) Write(p []byte) (int, error) {
	b.buf = append(b.buf, p...)
	return len(p), nil
}

// String returns a view of the contents; use Clone to keep it past Reset.
func (b *Builder) String() string {
	return BytesToString(b.buf)
}

// Bytes returns the underlying buffer.
func (b *Builder) Bytes() []byte {
	return b.buf
}

// Len returns the number of buffered bytes.
func (b *Builder) Len() int {
	return len(b.buf)
}

// Reset empties the builder, keeping its capacity.
func (b *Builder) Reset() {
	b.buf = b.buf[:0]
}

// BuilderSize selects one of the builder pools.
type BuilderSize int

const (
	Small  BuilderSize = iota // < 1KB
	Medium                    // 1KB - 16KB
	Large                     // 16KB+
)

// builders with more capacity than this are dropped instead of pooled
const maxPooledCapacity = 1 << 20

var builderPools = [...]*sync.Pool{
	Small:  {New: func() interface{} { return NewBuilder(1024) }},
	Medium: {New: func() interface{} { return NewBuilder(16 * 1024) }},
	Large:  {New: func() interface{} { return NewBuilder(64 * 1024) }},
}

func poolFor(size BuilderSize) *sync.Pool {
	if size < Small || size > Large {
		return builderPools[Small]
	}
	return builderPools[size]
}

// GetBuilder retrieves a pooled builder of the specified size.
func GetBuilder(size BuilderSize) *Builder {
	builder := poolFor(size).Get().(*Builder)
	builder.Reset()
	return builder
}

// PutBuilder returns a builder to its pool.
func PutBuilder(builder *Builder, size BuilderSize) {
	if builder == nil || cap(builder.buf) > maxPooledCapacity {
		return
	}
	builder.Reset()
	poolFor(size).Put(builder)
}

// Clone returns a copy of s that does not share memory with it.
func Clone(s string) string {
	return strings.Clone(s)
}

// Sprintf is fmt.Sprintf rendered through a pooled builder.
func Sprintf(format string, args ...interface{}) string {
	if len(args) == 0 {
		return format
	}
	builder := GetBuilder(Small)
	defer PutBuilder(builder, Small)

	fmt.Fprintf(builder, format, args...)
	return Clone(builder.String())
}

// Join concatenates parts separated by sep using a pooled builder.
func Join(parts []string, sep string) string {
	switch len(parts) {
	case 0:
		return ""
	case 1:
		return parts[0]
	}
	builder := GetBuilder(Small)
	defer PutBuilder(builder, Small)

	for i, p := range parts {
		if i > 0 {
			builder.WriteString(sep)
		}
		builder.WriteString(p)
	}
	return Clone(builder.String())
}

package tlv

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/xdrflow/pkg/errors"
)

func TestHeaderBitPacking(t *testing.T) {
	// tag 0x0ABC with format 7: low byte first, high nibble of the tag in the
	// low nibble of byte 1, format in its high nibble.
	buf, err := AppendTV(nil, 0x0ABC, make([]byte, 8))
	require.NoError(t, err)
	assert.Equal(t, byte(0xBC), buf[0])
	assert.Equal(t, byte(0x7A), buf[1])

	tag, format := Header(buf[0], buf[1])
	assert.Equal(t, uint16(0x0ABC), tag)
	assert.Equal(t, uint8(7), format)
}

func TestFormatTable(t *testing.T) {
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 8, 16, 32, 64, 128, 256}, FixedLengths())
	for i, length := range FixedLengths() {
		format := uint8(i + 1)
		assert.Equal(t, format, FormatFor(length))
		got, ok := FormatLength(format)
		assert.True(t, ok)
		assert.Equal(t, length, got)
	}
	for _, length := range []int{0, 7, 9, 100, 255, 257} {
		assert.Equal(t, uint8(FormatExplicit), FormatFor(length), "length %d", length)
	}
	for _, format := range []uint8{0, 13, 14, 15} {
		_, ok := FormatLength(format)
		assert.False(t, ok)
	}
}

func TestRoundTripFixedClasses(t *testing.T) {
	for _, length := range FixedLengths() {
		value := bytes.Repeat([]byte{byte(length)}, length)
		value[0] = 0x5A

		buf, err := AppendTV(nil, 41, value)
		require.NoError(t, err)
		require.Len(t, buf, HeaderSize+length)

		tag, start, end, err := Field(buf, 0)
		require.NoError(t, err)
		assert.Equal(t, uint16(41), tag)
		assert.Equal(t, value, buf[start:end], "length %d", length)
		assert.Equal(t, len(buf), end)
	}
}

func TestRoundTripExplicitLength(t *testing.T) {
	for _, length := range []int{0, 7, 300, MaxLength} {
		value := bytes.Repeat([]byte{0xA5}, length)
		buf, err := AppendTLV(nil, MaxTag, value)
		require.NoError(t, err)
		require.Len(t, buf, HeaderSize+LengthSize+length)

		tag, start, end, err := Field(buf, 0)
		require.NoError(t, err)
		assert.Equal(t, uint16(MaxTag), tag)
		assert.True(t, bytes.Equal(value, buf[start:end]))
	}

	// a fixed-size value may still be written with an explicit length
	buf, err := AppendExplicit(nil, 41, []byte{0x42})
	require.NoError(t, err)
	assert.Equal(t, []byte{41, 0x00, 0x00, 0x01, 0x42}, buf)
}

func TestAppendLVAndField(t *testing.T) {
	buf, err := AppendLV([]byte{0xEE}, []byte("abc"))
	require.NoError(t, err)
	assert.Equal(t, []byte{0xEE, 0x00, 0x03, 'a', 'b', 'c'}, buf)

	start, end, err := LVField(buf, 1)
	require.NoError(t, err)
	assert.Equal(t, "abc", string(buf[start:end]))
}

func TestEncodeErrors(t *testing.T) {
	_, err := AppendTV(nil, 1, make([]byte, 7))
	assert.True(t, errors.IsType(err, errors.ErrorTypeEncode))

	_, err = AppendTV(nil, MaxTag+1, []byte{1})
	assert.True(t, errors.IsType(err, errors.ErrorTypeEncode))

	_, err = AppendTLV(nil, MaxTag+1, make([]byte, 7))
	assert.True(t, errors.IsType(err, errors.ErrorTypeEncode))

	_, err = AppendLV(nil, make([]byte, MaxLength+1))
	assert.True(t, errors.IsType(err, errors.ErrorTypeEncode))
}

func TestFieldDecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		buf  []byte
	}{
		{"short header", []byte{0x14}},
		{"short explicit length", []byte{0x14, 0x00, 0x00}},
		{"explicit value overrun", []byte{0x14, 0x00, 0x00, 0x05, 0x01}},
		{"fixed value overrun", []byte{0x14, 0x40, 0x01}},
		{"unknown format", []byte{0x14, 0xD0, 0x01}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, _, err := Field(tt.buf, 0)
			require.Error(t, err)
			assert.True(t, errors.IsDecode(err))
		})
	}

	_, _, err := LVField([]byte{0x00}, 0)
	assert.True(t, errors.IsDecode(err))
	_, _, err = LVField([]byte{0x00, 0x02, 0x01}, 0)
	assert.True(t, errors.IsDecode(err))
}

// Package tlv implements the tag-length-value wire format used by
// self-describing records.
//
// A field starts with a 2-byte header. Byte 0 holds tag bits 7..0; the low
// nibble of byte 1 holds tag bits 11..8 and its high nibble the format code.
// Format 0 is followed by a 2-byte big-endian length; formats 1..12 imply a
// fixed value length and the value starts right after the header.
package tlv

import (
	"encoding/binary"

	"github.com/ajitpratap0/xdrflow/pkg/errors"
)

const (
	// HeaderSize is the size of the tag/format header.
	HeaderSize = 2
	// LengthSize is the size of an explicit length field.
	LengthSize = 2
	// MaxTag is the largest tag a 12-bit header can carry.
	MaxTag = 0x0FFF
	// MaxLength is the largest value an explicit length can describe.
	MaxLength = 0xFFFF
	// FormatExplicit marks a field carrying an explicit 2-byte length.
	FormatExplicit = 0
	// MaxFormat is the last fixed-length format code.
	MaxFormat = 12
)

var formatLengths = [MaxFormat + 1]int{0, 1, 2, 3, 4, 5, 6, 8, 16, 32, 64, 128, 256}

// FixedLengths lists the value lengths addressable by formats 1..12.
func FixedLengths() []int {
	out := make([]int, MaxFormat)
	copy(out, formatLengths[1:])
	return out
}

// FormatLength returns the implied value length for a fixed format code.
func FormatLength(format uint8) (int, bool) {
	if format == FormatExplicit || format > MaxFormat {
		return 0, false
	}
	return formatLengths[format], true
}

// FormatFor returns the fixed format code for a value length, or
// FormatExplicit when the length is not in the table.
func FormatFor(length int) uint8 {
	switch length {
	case 1, 2, 3, 4, 5, 6:
		return uint8(length)
	case 8:
		return 7
	case 16:
		return 8
	case 32:
		return 9
	case 64:
		return 10
	case 128:
		return 11
	case 256:
		return 12
	}
	return FormatExplicit
}

// Header splits the two header bytes into tag and format.
func Header(b0, b1 byte) (tag uint16, format uint8) {
	return uint16(b0) | uint16(b1&0x0F)<<8, b1 >> 4
}

func putHeader(dst []byte, tag uint16, format uint8) []byte {
	return append(dst, byte(tag), byte(tag>>8)&0x0F|format<<4)
}

// Field locates the TLV field starting at off. It returns the tag, the
// value bounds and the offset of the next field.
func Field(buf []byte, off int) (tag uint16, start, end int, err error) {
	if off+HeaderSize > len(buf) {
		return 0, 0, 0, underrun("tlv header", off, HeaderSize, len(buf))
	}
	tag, format := Header(buf[off], buf[off+1])
	start = off + HeaderSize

	var length int
	if format == FormatExplicit {
		if start+LengthSize > len(buf) {
			return 0, 0, 0, underrun("tlv length", start, LengthSize, len(buf))
		}
		length = int(binary.BigEndian.Uint16(buf[start:]))
		start += LengthSize
	} else {
		var ok bool
		if length, ok = FormatLength(format); !ok {
			return 0, 0, 0, errors.Newf(errors.ErrorTypeDecode, "unknown tlv format code %d", format).
				WithDetail("offset", off).
				WithDetail("tag", tag)
		}
	}

	end = start + length
	if end > len(buf) {
		return 0, 0, 0, underrun("tlv value", start, length, len(buf)).WithDetail("tag", tag)
	}
	return tag, start, end, nil
}

// LVField locates the length-prefixed value starting at off.
func LVField(buf []byte, off int) (start, end int, err error) {
	if off+LengthSize > len(buf) {
		return 0, 0, underrun("lv length", off, LengthSize, len(buf))
	}
	start = off + LengthSize
	end = start + int(binary.BigEndian.Uint16(buf[off:]))
	if end > len(buf) {
		return 0, 0, underrun("lv value", start, end-start, len(buf))
	}
	return start, end, nil
}

// AppendTV appends a tag/value field using a fixed-length format. The value
// length must be one of FixedLengths.
func AppendTV(dst []byte, tag uint16, value []byte) ([]byte, error) {
	if tag > MaxTag {
		return dst, tagRange(tag)
	}
	format := FormatFor(len(value))
	if format == FormatExplicit {
		return dst, errors.Newf(errors.ErrorTypeEncode, "length %d has no fixed tlv format", len(value)).
			WithDetail("tag", tag)
	}
	dst = putHeader(dst, tag, format)
	return append(dst, value...), nil
}

// AppendLV appends a 2-byte big-endian length followed by value.
func AppendLV(dst []byte, value []byte) ([]byte, error) {
	if len(value) > MaxLength {
		return dst, errors.Newf(errors.ErrorTypeEncode, "lv value of %d bytes exceeds %d", len(value), MaxLength)
	}
	dst = binary.BigEndian.AppendUint16(dst, uint16(len(value)))
	return append(dst, value...), nil
}

// AppendTLV appends a field, choosing a fixed format when the value length
// allows it and an explicit length otherwise.
func AppendTLV(dst []byte, tag uint16, value []byte) ([]byte, error) {
	if FormatFor(len(value)) != FormatExplicit {
		return AppendTV(dst, tag, value)
	}
	return AppendExplicit(dst, tag, value)
}

// AppendExplicit appends a field that always carries an explicit length,
// even when a fixed format would fit.
func AppendExplicit(dst []byte, tag uint16, value []byte) ([]byte, error) {
	if tag > MaxTag {
		return dst, tagRange(tag)
	}
	if len(value) > MaxLength {
		return dst, errors.Newf(errors.ErrorTypeEncode, "tlv value of %d bytes exceeds %d", len(value), MaxLength).
			WithDetail("tag", tag)
	}
	dst = putHeader(dst, tag, FormatExplicit)
	return AppendLV(dst, value)
}

func underrun(what string, off, need, size int) *errors.Error {
	return errors.Newf(errors.ErrorTypeDecode, "%s needs %d bytes at offset %d, buffer has %d", what, need, off, size)
}

func tagRange(tag uint16) *errors.Error {
	return errors.Newf(errors.ErrorTypeEncode, "tag %d exceeds %d", tag, MaxTag)
}

package format

import (
	"encoding/hex"

	"github.com/ajitpratap0/xdrflow/pkg/errors"
)

// AppendIPv4 appends b[0:4] in dotted decimal form.
func AppendIPv4(dst, b []byte) []byte {
	_ = b[3]
	dst = AppendByte(dst, b[0])
	dst = append(dst, '.')
	dst = AppendByte(dst, b[1])
	dst = append(dst, '.')
	dst = AppendByte(dst, b[2])
	dst = append(dst, '.')
	return AppendByte(dst, b[3])
}

// AppendIPv6 appends b[0:16] as eight colon-separated groups of four
// lowercase hex digits. Zero groups are not compressed.
func AppendIPv6(dst, b []byte) []byte {
	_ = b[15]
	for i := 0; i < 16; i += 2 {
		if i > 0 {
			dst = append(dst, ':')
		}
		dst = append(dst,
			hexDigits[b[i]>>4], hexDigits[b[i]&0x0F],
			hexDigits[b[i+1]>>4], hexDigits[b[i+1]&0x0F])
	}
	return dst
}

// AppendTBCD appends the digits of a telephony BCD string: low nibble first,
// stopping at the first nibble that is not a decimal digit.
func AppendTBCD(dst, b []byte) []byte {
	for _, c := range b {
		lo := c & 0x0F
		if lo > 9 {
			break
		}
		dst = append(dst, '0'+lo)

		hi := c >> 4
		if hi > 9 {
			break
		}
		dst = append(dst, '0'+hi)
	}
	return dst
}

// EncodeTBCD packs a digit string into telephony BCD. An odd trailing digit
// gets a 0xF filler nibble and the result is padded with the sentinel up to
// size bytes when size is larger than needed.
func EncodeTBCD(digits string, size int) ([]byte, error) {
	n := (len(digits) + 1) / 2
	if size < n {
		size = n
	}
	out := make([]byte, size)
	for i := range out {
		out[i] = Sentinel
	}
	for i := 0; i < len(digits); i++ {
		d := digits[i]
		if d < '0' || d > '9' {
			return nil, errors.Newf(errors.ErrorTypeEncode, "invalid tbcd digit %q at %d", d, i)
		}
		if i%2 == 0 {
			out[i/2] = 0xF0 | (d - '0')
		} else {
			out[i/2] = out[i/2]&0x0F | (d-'0')<<4
		}
	}
	return out, nil
}

// ParseHex decodes a hex dump with an optional "0x" prefix.
func ParseHex(s string) ([]byte, error) {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		s = s[2:]
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeDecode, "invalid hex dump")
	}
	return b, nil
}

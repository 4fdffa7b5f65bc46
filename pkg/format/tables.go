// Package format renders integers, floats, hex dumps and addresses from
// precomputed lookup tables so the record hot path neither allocates nor
// branches per digit.
package format

import "strconv"

const (
	// Sentinel is the byte value that marks an absent field on the wire.
	Sentinel = 0xFF

	chunkBase = 10000
	hexDigits = "0123456789abcdef"
)

var (
	// decimal[i] is i without padding, for i in [0, 9999]
	decimal [chunkBase]string
	// padded[i] is i zero-padded to 4 digits
	padded [chunkBase][4]byte
	// pairs[hi<<8|lo] is the decimal text of the big-endian 16-bit value
	pairs [1 << 16]string
)

func init() {
	for i := 0; i < chunkBase; i++ {
		decimal[i] = strconv.Itoa(i)
		padded[i] = [4]byte{
			byte('0' + i/1000),
			byte('0' + i/100%10),
			byte('0' + i/10%10),
			byte('0' + i%10),
		}
	}
	for i := range pairs {
		if i < chunkBase {
			pairs[i] = decimal[i]
			continue
		}
		pairs[i] = strconv.Itoa(i)
	}
}

// AppendByte appends the decimal text of b.
func AppendByte(dst []byte, b byte) []byte {
	return append(dst, decimal[b]...)
}

// AppendPair appends the decimal text of the big-endian value hi<<8 | lo.
func AppendPair(dst []byte, hi, lo byte) []byte {
	return append(dst, pairs[int(hi)<<8|int(lo)]...)
}

// AppendUint appends the decimal text of v. The value is split into
// 4-digit chunks from the least significant end; the leading chunk is
// written unpadded and the rest through the padded table.
func AppendUint(dst []byte, v uint64) []byte {
	if v < chunkBase {
		return append(dst, decimal[v]...)
	}
	var chunks [5]uint16
	n := 0
	for v >= chunkBase {
		chunks[n] = uint16(v % chunkBase)
		v /= chunkBase
		n++
	}
	dst = append(dst, decimal[v]...)
	for n > 0 {
		n--
		dst = append(dst, padded[chunks[n]][:]...)
	}
	return dst
}

// AppendInt appends the signed decimal text of v.
func AppendInt(dst []byte, v int64) []byte {
	if v < 0 {
		// two's complement negation keeps MinInt64 correct
		return AppendUint(append(dst, '-'), uint64(-v))
	}
	return AppendUint(dst, uint64(v))
}

// AppendHex appends the lowercase hex dump of src, optionally prefixed "0x".
func AppendHex(dst, src []byte, prefix bool) []byte {
	if prefix {
		dst = append(dst, '0', 'x')
	}
	for _, b := range src {
		dst = append(dst, hexDigits[b>>4], hexDigits[b&0x0F])
	}
	return dst
}

// IsNull reports whether every byte of b is the sentinel. Empty spans count
// as null.
func IsNull(b []byte) bool {
	for _, c := range b {
		if c != Sentinel {
			return false
		}
	}
	return true
}

// Uint interprets up to the last 8 bytes of b as a big-endian unsigned
// integer.
func Uint(b []byte) uint64 {
	var v uint64
	for _, c := range b {
		v = v<<8 | uint64(c)
	}
	return v
}

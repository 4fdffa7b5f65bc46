package format

import (
	"math"
	"strconv"
)

const (
	mantissaBits = 52
	mantissaMask = 1<<mantissaBits - 1
	exponentBias = 1023

	// fast path exponent window; outside it the general formatter is used
	minFastExponent = -10
	maxFastExponent = 20

	// the fraction is rendered with 8 truncated digits
	fracScale = 100000000
)

// AppendFloatBits appends an approximate decimal rendering of the IEEE-754
// double whose bit pattern is bits.
//
// For binary exponents in [-10, 20] the integer part is taken directly from
// the mantissa and the fraction is truncated to 8 digits using 32 fraction
// bits, so the result is within 2^(e-32) + 1e-8 of the exact value. Other
// values, including zero, subnormals, infinities and NaN, are rendered by
// strconv.
func AppendFloatBits(dst []byte, bits uint64) []byte {
	e := int(bits>>mantissaBits&0x7FF) - exponentBias
	if e > maxFastExponent || e < minFastExponent {
		return strconv.AppendFloat(dst, math.Float64frombits(bits), 'g', -1, 64)
	}

	digits := bits&mantissaMask | 1<<mantissaBits
	if bits>>63 != 0 {
		dst = append(dst, '-')
	}

	var frac uint64
	if e < 0 {
		dst = append(dst, '0')
		frac = ((digits >> 20) * fracScale) >> uint(32-e)
	} else {
		dst = AppendUint(dst, digits>>uint(mantissaBits-e))
		frac = (((digits & (mantissaMask >> uint(e))) >> 20) * fracScale) >> uint(32-e)
	}
	dst = append(dst, '.')

	if frac > 0 {
		for t := frac; t < fracScale/10; t *= 10 {
			dst = append(dst, '0')
		}
	}
	return AppendUint(dst, frac)
}

// AppendFloat is AppendFloatBits for a float64 value.
func AppendFloat(dst []byte, f float64) []byte {
	return AppendFloatBits(dst, math.Float64bits(f))
}

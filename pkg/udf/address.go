package udf

import (
	"github.com/ajitpratap0/xdrflow/pkg/format"
	"github.com/ajitpratap0/xdrflow/pkg/plan/expr"
)

// bytesToIP renders 4 bytes as IPv4 and 16 bytes as IPv6. A 16-byte value
// whose first 12 bytes are all 0xFF carries an IPv4 address in its tail.
func bytesToIP(args []expr.Datum) (expr.Datum, error) {
	if args[0].IsNull() {
		return expr.Null(), nil
	}
	b, err := binaryArg("bytestoip", args[0])
	if err != nil {
		return expr.Null(), err
	}

	switch len(b) {
	case 4:
		if allSentinel(b) {
			return expr.Null(), nil
		}
		return expr.Text(format.AppendIPv4(make([]byte, 0, 15), b)), nil
	case 16:
		switch {
		case !allSentinel(b[:12]):
			return expr.Text(format.AppendIPv6(make([]byte, 0, 39), b)), nil
		case !allSentinel(b[12:]):
			return expr.Text(format.AppendIPv4(make([]byte, 0, 15), b[12:])), nil
		}
	}
	return expr.Null(), nil
}

func tbcd(args []expr.Datum) (expr.Datum, error) {
	if args[0].IsNull() {
		return expr.Null(), nil
	}
	b, err := binaryArg("tbcd", args[0])
	if err != nil {
		return expr.Null(), err
	}
	if len(b) == 0 || b[0] == format.Sentinel {
		return expr.Null(), nil
	}
	return expr.Text(format.AppendTBCD(make([]byte, 0, len(b)*2), b)), nil
}

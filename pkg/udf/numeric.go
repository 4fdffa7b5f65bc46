package udf

import (
	"github.com/ajitpratap0/xdrflow/pkg/errors"
	"github.com/ajitpratap0/xdrflow/pkg/format"
	"github.com/ajitpratap0/xdrflow/pkg/plan/expr"
)

func uintArg(fn string, d expr.Datum) (uint64, error) {
	b, err := binaryArg(fn, d)
	if err != nil {
		return 0, err
	}
	if len(b) > 8 {
		return 0, errors.Newf(errors.ErrorTypeExecute, "%s expects at most 8 bytes, got %d", fn, len(b)).
			WithDetail("function", fn)
	}
	return format.Uint(b), nil
}

// bytesToDouble reinterprets up to 8 big-endian bytes as float64 bits.
// All bits set is the null sentinel.
func bytesToDouble(args []expr.Datum) (expr.Datum, error) {
	if args[0].IsNull() {
		return expr.Null(), nil
	}
	bits, err := uintArg("bytestodouble", args[0])
	if err != nil || bits == ^uint64(0) {
		return expr.Null(), err
	}
	return expr.Text(format.AppendFloatBits(make([]byte, 0, 32), bits)), nil
}

// bytesToTimestamp renders an epoch value as signed decimal text.
func bytesToTimestamp(args []expr.Datum) (expr.Datum, error) {
	if args[0].IsNull() {
		return expr.Null(), nil
	}
	v, err := uintArg("bytestotimestamp", args[0])
	if err != nil || v == 0 {
		return expr.Null(), err
	}
	return expr.Text(format.AppendInt(make([]byte, 0, 20), int64(v))), nil
}

package udf

import (
	"github.com/ajitpratap0/xdrflow/pkg/format"
	"github.com/ajitpratap0/xdrflow/pkg/plan/expr"
)

// cutTail drops the last n bytes. Text may be cut to empty; bytes may not.
func cutTail(args []expr.Datum) (expr.Datum, error) {
	if args[0].IsNull() {
		return expr.Null(), nil
	}
	b, err := binaryArg("cuttail", args[0])
	if err != nil {
		return expr.Null(), err
	}
	n, ok, err := intArg("cuttail", args[1])
	if err != nil || !ok || n < 0 {
		return expr.Null(), err
	}

	if n > len(b) || (n == len(b) && args[0].Kind() == expr.KindBytes) {
		return expr.Null(), nil
	}
	return like(args[0], b[:len(b)-n]), nil
}

func subBytes(args []expr.Datum) (expr.Datum, error) {
	if args[0].IsNull() {
		return expr.Null(), nil
	}
	b, err := binaryArg("subbytes", args[0])
	if err != nil {
		return expr.Null(), err
	}
	off, ok, err := intArg("subbytes", args[1])
	if err != nil || !ok {
		return expr.Null(), err
	}
	n, ok, err := intArg("subbytes", args[2])
	if err != nil || !ok {
		return expr.Null(), err
	}

	if off < 0 || n < 0 || off+n > len(b) {
		return expr.Null(), nil
	}
	return like(args[0], b[off:off+n:off+n]), nil
}

// bytesToString reads a NUL or 0xFF terminated string.
func bytesToString(args []expr.Datum) (expr.Datum, error) {
	if args[0].IsNull() {
		return expr.Null(), nil
	}
	b, err := binaryArg("bytestostring", args[0])
	if err != nil {
		return expr.Null(), err
	}
	n := 0
	for n < len(b) && b[n] != 0x00 && b[n] != 0xFF {
		n++
	}
	return expr.Text(b[:n:n]), nil
}

func concat(fn string, args []expr.Datum) ([]byte, bool, error) {
	if args[0].IsNull() || args[1].IsNull() {
		return nil, false, nil
	}
	a, err := binaryArg(fn, args[0])
	if err != nil {
		return nil, false, err
	}
	b, err := binaryArg(fn, args[1])
	if err != nil {
		return nil, false, err
	}
	out := make([]byte, 0, len(a)+len(b))
	return append(append(out, a...), b...), true, nil
}

func bytesConcat(args []expr.Datum) (expr.Datum, error) {
	out, ok, err := concat("bytesconcat", args)
	if !ok {
		return expr.Null(), err
	}
	return expr.Bytes(out), nil
}

func charsConcat(args []expr.Datum) (expr.Datum, error) {
	out, ok, err := concat("charsconcat", args)
	if !ok {
		return expr.Null(), err
	}
	return expr.Text(out), nil
}

func hexDump(args []expr.Datum) (expr.Datum, error) {
	if args[0].IsNull() {
		return expr.Null(), nil
	}
	b, err := binaryArg("hex", args[0])
	if err != nil {
		return expr.Null(), err
	}
	return expr.Text(format.AppendHex(make([]byte, 0, 2+2*len(b)), b, true)), nil
}

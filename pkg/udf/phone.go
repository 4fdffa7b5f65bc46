package udf

import (
	"bytes"

	"github.com/ajitpratap0/xdrflow/pkg/plan/expr"
)

// normalize strips the Chinese country code from MSISDN-like numbers:
// 0086 on 15 characters, 086 or +86 on 14, 86 on 13 and a trunk 0 on 12.
// Anything else is returned unchanged.
func normalize(args []expr.Datum) (expr.Datum, error) {
	if args[0].IsNull() {
		return expr.Null(), nil
	}
	b, err := binaryArg("normalize", args[0])
	if err != nil {
		return expr.Null(), err
	}

	var cut int
	switch len(b) {
	case 15:
		if bytes.HasPrefix(b, []byte("0086")) {
			cut = 4
		}
	case 14:
		if bytes.HasPrefix(b, []byte("086")) || bytes.HasPrefix(b, []byte("+86")) {
			cut = 3
		}
	case 13:
		if bytes.HasPrefix(b, []byte("86")) {
			cut = 2
		}
	case 12:
		if b[0] == '0' {
			cut = 1
		}
	}
	return like(args[0], b[cut:]), nil
}

const (
	compactTimestampLen = len("20211011 11:36:15:456")
	isoTimestampLen     = len("2021-10-11 11:36:15.456")
)

// normalizeTimestamp rewrites "yyyyMMdd HH:mm:ss:SSS" as
// "yyyy-MM-dd HH:mm:ss.SSS". Values already in the long form pass through.
// Other lengths are NULL for text and unchanged for bytes.
func normalizeTimestamp(args []expr.Datum) (expr.Datum, error) {
	if args[0].IsNull() {
		return expr.Null(), nil
	}
	b, err := binaryArg("normalizetimestamp", args[0])
	if err != nil {
		return expr.Null(), err
	}

	switch len(b) {
	case isoTimestampLen:
		return args[0], nil
	case compactTimestampLen:
		out := make([]byte, 0, isoTimestampLen)
		out = append(out, b[0:4]...)
		out = append(out, '-')
		out = append(out, b[4:6]...)
		out = append(out, '-')
		out = append(out, b[6:17]...)
		out = append(out, '.')
		out = append(out, b[18:21]...)
		return like(args[0], out), nil
	}
	if args[0].Kind() == expr.KindBytes {
		return args[0], nil
	}
	return expr.Null(), nil
}

// Package udf provides the scalar functions available to filter and
// projection expressions over decoded XDR columns.
//
// Functions accept Text and Bytes arguments interchangeably unless noted,
// return NULL for NULL input and keep the input's kind where the result is
// a slice of the input. Results never alias per-call scratch state.
package udf

import (
	"sync"

	"github.com/ajitpratap0/xdrflow/pkg/errors"
	"github.com/ajitpratap0/xdrflow/pkg/plan/expr"
)

var (
	defaultRegistry *expr.Registry
	defaultOnce     sync.Once
)

// Definitions returns the built-in function definitions.
func Definitions() []expr.Definition {
	return []expr.Definition{
		stateless("bytestoip", 1, 1, "4 or 16 address bytes as IPv4/IPv6 text", bytesToIP),
		stateless("tbcd", 1, 1, "telephony BCD digits, low nibble first", tbcd),
		stateless("normalize", 1, 1, "phone number without the 86 country prefix", normalize),
		stateless("normalizetimestamp", 1, 1, "yyyyMMdd HH:mm:ss:SSS as yyyy-MM-dd HH:mm:ss.SSS", normalizeTimestamp),
		stateless("cuttail", 2, 2, "value without its last n bytes", cutTail),
		stateless("subbytes", 3, 3, "n bytes of value starting at offset", subBytes),
		{Name: "md5", MinArgs: 1, MaxArgs: 2, Doc: "md5 of value and optional salt; hex for text, raw digest for bytes", New: newMD5},
		stateless("bytestostring", 1, 1, "text up to the first 0x00 or 0xFF byte", bytesToString),
		stateless("bytestodouble", 1, 1, "big-endian IEEE-754 bits as decimal text", bytesToDouble),
		stateless("bytestotimestamp", 1, 1, "big-endian integer as decimal text, NULL for zero", bytesToTimestamp),
		stateless("bytesconcat", 2, 2, "concatenation as bytes", bytesConcat),
		stateless("charsconcat", 2, 2, "concatenation as text", charsConcat),
		stateless("hex", 1, 1, "0x-prefixed hex dump", hexDump),
	}
}

func stateless(name string, minArgs, maxArgs int, doc string, fn expr.ImplFunc) expr.Definition {
	return expr.Definition{
		Name:    name,
		MinArgs: minArgs,
		MaxArgs: maxArgs,
		Doc:     doc,
		New:     func() expr.Impl { return fn },
	}
}

// Register adds the built-in functions to reg.
func Register(reg *expr.Registry) error {
	for _, def := range Definitions() {
		if err := reg.Register(def); err != nil {
			return err
		}
	}
	return nil
}

// Default returns a shared registry holding the built-in functions.
// Callers must not register into it.
func Default() *expr.Registry {
	defaultOnce.Do(func() {
		defaultRegistry = expr.NewRegistry()
		defaultRegistry.MustRegister(Definitions()...)
	})
	return defaultRegistry
}

func binaryArg(fn string, d expr.Datum) ([]byte, error) {
	if !d.IsString() {
		return nil, errors.Newf(errors.ErrorTypeExecute, "%s expects a text or binary argument, got %s", fn, d.Kind()).
			WithDetail("function", fn)
	}
	return d.Data(), nil
}

func intArg(fn string, d expr.Datum) (int, bool, error) {
	if d.IsNull() {
		return 0, false, nil
	}
	v, err := d.AsInt()
	if err != nil {
		return 0, false, errors.Wrapf(err, errors.ErrorTypeExecute, "%s expects an integer argument", fn)
	}
	return int(v), true, nil
}

// like returns b with the kind of d.
func like(d expr.Datum, b []byte) expr.Datum {
	if d.Kind() == expr.KindBytes {
		return expr.Bytes(b)
	}
	return expr.Text(b)
}

func allSentinel(b []byte) bool {
	for _, c := range b {
		if c != 0xFF {
			return false
		}
	}
	return true
}

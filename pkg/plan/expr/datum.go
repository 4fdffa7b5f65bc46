package expr

import (
	"bytes"
	"math"
	"strconv"

	"github.com/ajitpratap0/xdrflow/pkg/column"
	"github.com/ajitpratap0/xdrflow/pkg/errors"
	"github.com/ajitpratap0/xdrflow/pkg/format"
	stringpool "github.com/ajitpratap0/xdrflow/pkg/strings"
)

// Kind is the runtime type of a Datum.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindText
	KindBytes
)

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindText:
		return "text"
	case KindBytes:
		return "bytes"
	default:
		return "null"
	}
}

// Datum is a value flowing through expression evaluation. Column values map
// to Text, Bytes or Null; literals and arithmetic add Bool, Int and Float.
type Datum struct {
	kind Kind
	i    int64
	f    float64
	b    []byte
}

// Null returns the NULL datum.
func Null() Datum { return Datum{} }

// Bool returns a boolean datum.
func Bool(v bool) Datum {
	if v {
		return Datum{kind: KindBool, i: 1}
	}
	return Datum{kind: KindBool}
}

// Int returns an integer datum.
func Int(v int64) Datum { return Datum{kind: KindInt, i: v} }

// Float returns a floating point datum.
func Float(v float64) Datum { return Datum{kind: KindFloat, f: v} }

// Text returns a text datum backed by b.
func Text(b []byte) Datum { return Datum{kind: KindText, b: b} }

// TextString returns a text datum for s.
func TextString(s string) Datum { return Datum{kind: KindText, b: stringpool.StringToBytes(s)} }

// Bytes returns a binary datum backed by b.
func Bytes(b []byte) Datum { return Datum{kind: KindBytes, b: b} }

// FromValue converts a decoded column value.
func FromValue(v column.Value) Datum {
	switch v.Kind() {
	case column.Bytes:
		return Bytes(v.Data())
	case column.Text:
		return Text(v.Data())
	default:
		return Null()
	}
}

// Kind returns the runtime type.
func (d Datum) Kind() Kind { return d.kind }

// IsNull reports whether d is NULL.
func (d Datum) IsNull() bool { return d.kind == KindNull }

// Data returns the payload of a Text or Bytes datum.
func (d Datum) Data() []byte { return d.b }

// IsString reports whether d carries a byte payload.
func (d Datum) IsString() bool { return d.kind == KindText || d.kind == KindBytes }

// Value converts d to a column value for projection. Numbers and booleans
// become decimal text.
func (d Datum) Value() column.Value {
	switch d.kind {
	case KindText:
		return column.TextValue(d.b)
	case KindBytes:
		return column.BytesValue(d.b)
	case KindBool:
		if d.i != 0 {
			return column.TextString("true")
		}
		return column.TextString("false")
	case KindInt:
		return column.TextValue(format.AppendInt(nil, d.i))
	case KindFloat:
		return column.TextValue(format.AppendFloat(nil, d.f))
	default:
		return column.NullValue()
	}
}

// String renders d for diagnostics and plan explanations.
func (d Datum) String() string {
	switch d.kind {
	case KindText:
		return strconv.Quote(string(d.b))
	case KindBytes:
		return string(format.AppendHex(nil, d.b, true))
	case KindBool:
		if d.i != 0 {
			return "TRUE"
		}
		return "FALSE"
	case KindInt:
		return strconv.FormatInt(d.i, 10)
	case KindFloat:
		return strconv.FormatFloat(d.f, 'g', -1, 64)
	default:
		return "NULL"
	}
}

// number is a numeric view of a datum.
type number struct {
	float bool
	i     int64
	f     float64
}

func (n number) asFloat() float64 {
	if n.float {
		return n.f
	}
	return float64(n.i)
}

// maxNumericBytes is the longest binary value readable as an integer.
const maxNumericBytes = 8

func (d Datum) number() (number, error) {
	switch d.kind {
	case KindBool, KindInt:
		return number{i: d.i}, nil
	case KindFloat:
		return number{float: true, f: d.f}, nil
	case KindBytes:
		if len(d.b) > maxNumericBytes {
			return number{}, errors.Newf(errors.ErrorTypeExecute,
				"binary value of %d bytes is not numeric", len(d.b))
		}
		return number{i: int64(format.Uint(d.b))}, nil
	case KindText:
		s := string(bytes.TrimSpace(d.b))
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return number{i: i}, nil
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return number{float: true, f: f}, nil
		}
		return number{}, errors.Newf(errors.ErrorTypeExecute, "text %q is not numeric", s)
	default:
		return number{}, errors.New(errors.ErrorTypeExecute, "NULL is not numeric")
	}
}

// AsInt coerces d to an integer. Floats are truncated.
func (d Datum) AsInt() (int64, error) {
	n, err := d.number()
	if err != nil {
		return 0, err
	}
	if n.float {
		if math.IsNaN(n.f) || math.IsInf(n.f, 0) {
			return 0, errors.Newf(errors.ErrorTypeExecute, "%v is not an integer", n.f)
		}
		return int64(n.f), nil
	}
	return n.i, nil
}

// AsFloat coerces d to a float.
func (d Datum) AsFloat() (float64, error) {
	n, err := d.number()
	if err != nil {
		return 0, err
	}
	return n.asFloat(), nil
}

// truth evaluates d as a predicate. NULL yields null=true.
func (d Datum) truth() (value, null bool, err error) {
	switch d.kind {
	case KindNull:
		return false, true, nil
	case KindBool, KindInt:
		return d.i != 0, false, nil
	case KindFloat:
		return d.f != 0, false, nil
	}
	n, err := d.number()
	if err != nil {
		return false, false, err
	}
	return n.asFloat() != 0, false, nil
}

// Compare orders two non-NULL datums. Text and Bytes compare bytewise with
// each other; any other pairing compares numerically.
func Compare(a, b Datum) (int, error) {
	if a.IsString() && b.IsString() {
		return bytes.Compare(a.b, b.b), nil
	}
	na, err := a.number()
	if err != nil {
		return 0, err
	}
	nb, err := b.number()
	if err != nil {
		return 0, err
	}
	if !na.float && !nb.float {
		switch {
		case na.i < nb.i:
			return -1, nil
		case na.i > nb.i:
			return 1, nil
		}
		return 0, nil
	}
	fa, fb := na.asFloat(), nb.asFloat()
	switch {
	case fa < fb:
		return -1, nil
	case fa > fb:
		return 1, nil
	}
	return 0, nil
}

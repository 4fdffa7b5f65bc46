package udf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/xdrflow/pkg/errors"
	"github.com/ajitpratap0/xdrflow/pkg/format"
	"github.com/ajitpratap0/xdrflow/pkg/plan/expr"
)

func call(t *testing.T, name string, args ...expr.Datum) expr.Datum {
	t.Helper()
	d, err := try(t, name, args...)
	require.NoError(t, err)
	return d
}

func try(t *testing.T, name string, args ...expr.Datum) (expr.Datum, error) {
	t.Helper()
	def, ok := Default().Lookup(name)
	require.True(t, ok, "function %s not registered", name)
	require.NoError(t, def.CheckArity(len(args)))
	return def.New().Call(args)
}

func hexBytes(t *testing.T, s string) expr.Datum {
	t.Helper()
	b, err := format.ParseHex(s)
	require.NoError(t, err)
	return expr.Bytes(b)
}

func text(s string) expr.Datum { return expr.TextString(s) }

// asText returns the projected form of d, unquoted.
func asText(d expr.Datum) string { return d.Value().String() }

func TestRegistry(t *testing.T) {
	reg := expr.NewRegistry()
	require.NoError(t, Register(reg))
	assert.Len(t, reg.Definitions(), len(Definitions()))

	err := Register(reg)
	require.Error(t, err, "duplicate registration")

	_, ok := Default().Lookup("BytesToIP")
	assert.True(t, ok, "lookup is case-insensitive")
}

func TestNullInNullOut(t *testing.T) {
	for _, def := range Definitions() {
		args := make([]expr.Datum, def.MinArgs)
		for i := range args {
			args[i] = expr.Int(1)
		}
		args[0] = expr.Null()
		d, err := def.New().Call(args)
		require.NoError(t, err, def.Name)
		assert.True(t, d.IsNull(), def.Name)
	}
}

func TestBytesToIP(t *testing.T) {
	assert.Equal(t, "100.75.230.9", asText(call(t, "bytestoip", hexBytes(t, "0x644be609"))))
	assert.Equal(t, "2409:800b:5003:1705:0000:0000:0000:0101",
		asText(call(t, "bytestoip", hexBytes(t, "0x2409800b500317050000000000000101"))))
	assert.Equal(t, "10.0.0.1",
		asText(call(t, "bytestoip", hexBytes(t, "0xffffffffffffffffffffffff0a000001"))))

	assert.True(t, call(t, "bytestoip", hexBytes(t, "0xffffffff")).IsNull())
	assert.True(t, call(t, "bytestoip", hexBytes(t, "0xffffffffffffffffffffffffffffffff")).IsNull())
	assert.True(t, call(t, "bytestoip", hexBytes(t, "0x0102")).IsNull())

	_, err := try(t, "bytestoip", expr.Int(7))
	assert.True(t, errors.IsExecute(err))
}

func TestTBCD(t *testing.T) {
	assert.Equal(t, "01324", asText(call(t, "tbcd", hexBytes(t, "0x1023a4"))))
	assert.Equal(t, "8613800138000", asText(call(t, "tbcd", hexBytes(t, "0x683108108300f0ff"))))
	assert.True(t, call(t, "tbcd", hexBytes(t, "0xff10")).IsNull())
	assert.True(t, call(t, "tbcd", expr.Bytes(nil)).IsNull())
}

func TestNormalize(t *testing.T) {
	for _, in := range []string{"16914568569", "8616914568569", "+8616914568569", "08616914568569", "008616914568569", "016914568569"} {
		d := call(t, "normalize", text(in))
		assert.Equal(t, expr.KindText, d.Kind())
		assert.Equal(t, "16914568569", asText(d), in)
	}
	assert.Equal(t, "", asText(call(t, "normalize", text(""))))
	assert.Equal(t, "dsfakewk", asText(call(t, "normalize", text("dsfakewk"))))

	d := call(t, "normalize", expr.Bytes([]byte("8616914568569")))
	assert.Equal(t, expr.KindBytes, d.Kind())
	assert.Equal(t, []byte("16914568569"), d.Data())
}

func TestNormalizeTimestamp(t *testing.T) {
	assert.Equal(t, "2021-10-11 11:36:15.456", asText(call(t, "normalizetimestamp", text("20211011 11:36:15:456"))))
	assert.Equal(t, "2021-10-11 11:36:15.456", asText(call(t, "normalizetimestamp", text("2021-10-11 11:36:15.456"))))
	assert.True(t, call(t, "normalizetimestamp", text("")).IsNull())
	assert.True(t, call(t, "normalizetimestamp", text("2021")).IsNull())

	d := call(t, "normalizetimestamp", expr.Bytes([]byte("20211011 11:36:15:456")))
	assert.Equal(t, expr.KindBytes, d.Kind())
	assert.Equal(t, []byte("2021-10-11 11:36:15.456"), d.Data())

	d = call(t, "normalizetimestamp", expr.Bytes([]byte{}))
	assert.False(t, d.IsNull())
	assert.Empty(t, d.Data())
}

func TestCutTail(t *testing.T) {
	assert.Equal(t, "12345", asText(call(t, "cuttail", text("1234567"), expr.Int(2))))
	assert.Equal(t, "", asText(call(t, "cuttail", text("12"), expr.Int(2))))
	assert.True(t, call(t, "cuttail", text("12"), expr.Int(3)).IsNull())
	assert.True(t, call(t, "cuttail", text("12"), expr.Int(-1)).IsNull())

	assert.Equal(t, []byte{1}, call(t, "cuttail", expr.Bytes([]byte{1, 2}), expr.Int(1)).Data())
	assert.True(t, call(t, "cuttail", expr.Bytes([]byte{1, 2}), expr.Int(2)).IsNull())
}

func TestSubBytes(t *testing.T) {
	assert.Equal(t, "1234567", asText(call(t, "subbytes", text("12345678910"), expr.Int(0), expr.Int(7))))
	assert.Equal(t, "910", asText(call(t, "subbytes", text("12345678910"), expr.Int(8), expr.Int(3))))
	assert.True(t, call(t, "subbytes", text("12345678910"), expr.Int(8), expr.Int(4)).IsNull())
	assert.True(t, call(t, "subbytes", text("12345678910"), expr.Int(-1), expr.Int(2)).IsNull())
	assert.True(t, call(t, "subbytes", text("12345678910"), expr.Int(1), expr.Int(-2)).IsNull())

	d := call(t, "subbytes", expr.Bytes([]byte{1, 2, 3, 4}), expr.Int(1), expr.Int(2))
	assert.Equal(t, expr.KindBytes, d.Kind())
	assert.Equal(t, []byte{2, 3}, d.Data())

	_, err := try(t, "subbytes", text("abc"), text("x"), expr.Int(1))
	assert.True(t, errors.IsExecute(err))
}

func TestMD5(t *testing.T) {
	assert.Equal(t, "33fbaa69f0c1c931312a92d81bb3eeab", asText(call(t, "md5", text("19999999999"))))
	assert.Equal(t, "532732a2a39defb9d0b9c664e947aab9", asText(call(t, "md5", text("19999999999"), text("hNLJj#@FgPQYygQA"))))
	assert.Equal(t, "d41d8cd98f00b204e9800998ecf8427e", asText(call(t, "md5", text(""))))
	assert.Equal(t, "d41d8cd98f00b204e9800998ecf8427e", asText(call(t, "md5", text(""), text(""))))

	d := call(t, "md5", expr.Bytes([]byte("19999999999")))
	assert.Equal(t, expr.KindBytes, d.Kind())
	assert.Equal(t, hexBytes(t, "0x33fbaa69f0c1c931312a92d81bb3eeab").Data(), d.Data())
}

func TestMD5ResultsDoNotAliasScratch(t *testing.T) {
	def, ok := Default().Lookup("md5")
	require.True(t, ok)
	impl := def.New()

	first, err := impl.Call([]expr.Datum{expr.Bytes([]byte("a"))})
	require.NoError(t, err)
	snapshot := append([]byte(nil), first.Data()...)
	_, err = impl.Call([]expr.Datum{expr.Bytes([]byte("b"))})
	require.NoError(t, err)
	assert.Equal(t, snapshot, first.Data())
}

func TestBytesToString(t *testing.T) {
	assert.Equal(t, "hello", asText(call(t, "bytestostring", expr.Bytes([]byte("hello")))))
	assert.Equal(t, "ab", asText(call(t, "bytestostring", expr.Bytes([]byte{'a', 'b', 0, 'c'}))))
	for _, in := range [][]byte{{0, 0, 0, 0}, {0xFF, 0xFF, 0xFF, 0xFF}, {}} {
		d := call(t, "bytestostring", expr.Bytes(in))
		assert.Equal(t, expr.KindText, d.Kind())
		assert.Empty(t, d.Data())
	}
}

func TestBytesToDouble(t *testing.T) {
	assert.Equal(t, "1.50000000", asText(call(t, "bytestodouble", hexBytes(t, "0x3ff8000000000000"))))
	assert.True(t, call(t, "bytestodouble", hexBytes(t, "0xffffffffffffffff")).IsNull())

	_, err := try(t, "bytestodouble", hexBytes(t, "0x000000000000000000"))
	assert.True(t, errors.IsExecute(err))
}

func TestBytesToTimestamp(t *testing.T) {
	assert.Equal(t, "1633923375456", asText(call(t, "bytestotimestamp", hexBytes(t, "0x0000017c6d6c2160"))))
	assert.True(t, call(t, "bytestotimestamp", hexBytes(t, "0x0000000000000000")).IsNull())
}

func TestConcat(t *testing.T) {
	d := call(t, "bytesconcat", expr.Bytes([]byte{1}), expr.Bytes([]byte{2, 3}))
	assert.Equal(t, expr.KindBytes, d.Kind())
	assert.Equal(t, []byte{1, 2, 3}, d.Data())

	d = call(t, "charsconcat", text("2|3"), text("|4"))
	assert.Equal(t, expr.KindText, d.Kind())
	assert.Equal(t, "2|3|4", asText(d))

	assert.True(t, call(t, "charsconcat", text("a"), expr.Null()).IsNull())
}

func TestHex(t *testing.T) {
	assert.Equal(t, "0x00ff10", asText(call(t, "hex", expr.Bytes([]byte{0x00, 0xFF, 0x10}))))
}

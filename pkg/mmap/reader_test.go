package mmap

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/xdrflow/pkg/errors"
	"github.com/ajitpratap0/xdrflow/pkg/tlv"
)

func writeFile(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "records.bin")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func readAll(t *testing.T, rr *RecordReader) [][]byte {
	t.Helper()
	var out [][]byte
	for {
		rec, err := rr.Next()
		if err == io.EOF {
			return out
		}
		require.NoError(t, err)
		out = append(out, bytes.Clone(rec))
	}
}

func TestReader(t *testing.T) {
	path := writeFile(t, []byte("hello mmap"))
	r, err := NewReader(path)
	require.NoError(t, err)
	assert.Equal(t, 10, r.Len())
	assert.Equal(t, []byte("hello mmap"), r.Bytes())
	require.NoError(t, r.Close())
	assert.Nil(t, r.Bytes())
	assert.NoError(t, r.Close(), "second close is a no-op")
}

func TestReaderMissingFile(t *testing.T) {
	_, err := NewReader(filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeFile))
}

func TestLVFraming(t *testing.T) {
	var data []byte
	for _, rec := range [][]byte{{0x01, 0x02}, {}, []byte("xdr record")} {
		var err error
		data, err = tlv.AppendLV(data, rec)
		require.NoError(t, err)
	}

	rr, err := NewRecordReader(writeFile(t, data), LV, 0)
	require.NoError(t, err)
	defer rr.Close()

	recs := readAll(t, rr)
	require.Len(t, recs, 3)
	assert.Equal(t, []byte{0x01, 0x02}, recs[0])
	assert.Empty(t, recs[1])
	assert.Equal(t, []byte("xdr record"), recs[2])
	assert.Equal(t, int64(3), rr.Count())
	assert.Equal(t, len(data), rr.Offset())
}

func TestLVTruncated(t *testing.T) {
	data, err := tlv.AppendLV(nil, []byte{0xAA})
	require.NoError(t, err)
	data = append(data, 0x00, 0x05, 0x01)

	rr, err := NewRecordReader(writeFile(t, data), LV, 0)
	require.NoError(t, err)
	defer rr.Close()

	rec, err := rr.Next()
	require.NoError(t, err)
	assert.Equal(t, []byte{0xAA}, rec)

	_, err = rr.Next()
	require.Error(t, err)
	assert.True(t, errors.IsDecode(err))

	_, err = rr.Next()
	assert.Equal(t, io.EOF, err)
}

func TestFixedFraming(t *testing.T) {
	rr, err := NewRecordReader(writeFile(t, []byte("aaabbbccc")), Fixed, 3)
	require.NoError(t, err)
	defer rr.Close()
	assert.Equal(t, [][]byte{[]byte("aaa"), []byte("bbb"), []byte("ccc")}, readAll(t, rr))

	short, err := NewRecordReader(writeFile(t, []byte("aaab")), Fixed, 3)
	require.NoError(t, err)
	defer short.Close()
	_, err = short.Next()
	require.NoError(t, err)
	_, err = short.Next()
	assert.True(t, errors.IsDecode(err))
}

func TestLineFraming(t *testing.T) {
	rr, err := NewRecordReader(writeFile(t, []byte("a,b\r\nc,d\n\ne")), Line, 0)
	require.NoError(t, err)
	defer rr.Close()
	assert.Equal(t, [][]byte{[]byte("a,b"), []byte("c,d"), {}, []byte("e")}, readAll(t, rr))
}

func TestEmptyFile(t *testing.T) {
	rr, err := NewRecordReader(writeFile(t, nil), LV, 0)
	require.NoError(t, err)
	defer rr.Close()
	_, err = rr.Next()
	assert.Equal(t, io.EOF, err)
}

func TestFramingErrors(t *testing.T) {
	path := writeFile(t, []byte("x"))
	_, err := NewRecordReader(path, Fixed, 0)
	assert.True(t, errors.IsConfig(err))
	_, err = NewRecordReader(path, "xml", 0)
	assert.True(t, errors.IsConfig(err))
}

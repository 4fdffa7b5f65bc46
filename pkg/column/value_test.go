package column

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestZeroValueIsNull(t *testing.T) {
	var v Value
	assert.True(t, v.IsNull())
	assert.Equal(t, Null, v.Kind())
	assert.Equal(t, "", v.String())
	assert.Nil(t, v.Data())
	assert.Equal(t, "null", v.Kind().String())
}

func TestVariants(t *testing.T) {
	b := BytesValue([]byte{0x01, 0x02})
	assert.Equal(t, Bytes, b.Kind())
	assert.Equal(t, 2, b.Len())
	assert.Equal(t, "bytes", b.Kind().String())

	txt := TextString("abc")
	assert.Equal(t, Text, txt.Kind())
	assert.Equal(t, "abc", txt.String())
	assert.True(t, txt.Equal(TextValue([]byte("abc"))))
	assert.False(t, txt.Equal(BytesValue([]byte("abc"))))

	assert.Equal(t, Bytes, BytesValue(nil).Kind())
}

func TestCloneDetachesFromBuffer(t *testing.T) {
	buf := []byte{1, 2, 3, 4}
	row := Row{BytesValue(buf[:2]), TextValue(buf[2:]), NullValue()}
	cloned := row.Clone()

	buf[0], buf[2] = 9, 9
	assert.Equal(t, []byte{9, 2}, row[0].Data())
	assert.Equal(t, []byte{1, 2}, cloned[0].Data())
	assert.Equal(t, []byte{3, 4}, cloned[1].Data())
	assert.True(t, cloned[2].IsNull())

	assert.Nil(t, Row(nil).Clone())
}

func TestRowReset(t *testing.T) {
	row := Row{BytesValue([]byte{1}), TextString("x")}
	row.Reset()
	assert.Len(t, row, 2)
	assert.True(t, row[0].IsNull())
	assert.True(t, row[1].IsNull())
}

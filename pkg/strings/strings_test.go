package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBytesToString(t *testing.T) {
	assert.Equal(t, "hello world", BytesToString([]byte("hello world")))
	assert.Equal(t, "", BytesToString(nil))
	assert.Equal(t, "", BytesToString([]byte{}))
}

func TestStringToBytes(t *testing.T) {
	assert.Equal(t, []byte("hello"), StringToBytes("hello"))
	assert.Nil(t, StringToBytes(""))
}

func TestBuilder(t *testing.T) {
	b := NewBuilder(4)
	b.WriteString("ab")
	_ = b.WriteByte('|')
	b.WriteBytes([]byte("cd"))
	n, err := b.Write([]byte("ef"))
	assert.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, "ab|cdef", b.String())
	assert.Equal(t, 7, b.Len())

	b.Reset()
	assert.Equal(t, 0, b.Len())
	assert.Equal(t, "", b.String())
}

func TestPooledBuilders(t *testing.T) {
	for _, size := range []BuilderSize{Small, Medium, Large, BuilderSize(42)} {
		b := GetBuilder(size)
		assert.Equal(t, 0, b.Len())
		b.WriteString("x")
		PutBuilder(b, size)
	}
	PutBuilder(nil, Small)
}

func TestSprintfAndJoin(t *testing.T) {
	assert.Equal(t, "plain", Sprintf("plain"))
	assert.Equal(t, "decode: column 3 of 5", Sprintf("decode: column %d of %d", 3, 5))

	assert.Equal(t, "", Join(nil, ","))
	assert.Equal(t, "a", Join([]string{"a"}, ","))
	assert.Equal(t, "a,b,,c", Join([]string{"a", "b", "", "c"}, ","))
}

func TestCloneDoesNotAlias(t *testing.T) {
	buf := []byte("abc")
	view := BytesToString(buf)
	copied := Clone(view)
	buf[0] = 'x'
	assert.Equal(t, "xbc", view)
	assert.Equal(t, "abc", copied)
}

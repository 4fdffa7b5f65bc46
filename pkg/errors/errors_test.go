package errors

import (
	stderrors "errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCapturesStack(t *testing.T) {
	err := New(ErrorTypeConfig, "duplicate tag")
	require.NotEmpty(t, err.Stack())
	assert.Contains(t, err.Stack()[0].Function, "TestNewCapturesStack")
	assert.Equal(t, "config: duplicate tag", err.Error())
}

func TestWrapPreservesStackAndCause(t *testing.T) {
	base := New(ErrorTypeDecode, "underrun")
	wrapped := Wrap(base, ErrorTypeInternal, "worker failed")

	assert.Equal(t, base.Stack(), wrapped.Stack())
	assert.True(t, stderrors.Is(wrapped, base))
	assert.Equal(t, "internal: worker failed: decode: underrun", wrapped.Error())

	assert.Nil(t, Wrap(nil, ErrorTypeFile, "nothing"))
	assert.Nil(t, Wrapf(nil, ErrorTypeFile, "nothing %d", 1))
}

func TestTypePredicates(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		check func(error) bool
	}{
		{"config", New(ErrorTypeConfig, "x"), IsConfig},
		{"compile", New(ErrorTypeCompile, "x"), IsCompile},
		{"decode", Newf(ErrorTypeDecode, "column %d", 2), IsDecode},
		{"execute", fmt.Errorf("outer: %w", New(ErrorTypeExecute, "x")), IsExecute},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.check(tt.err))
		})
	}

	assert.False(t, IsDecode(io.EOF))
	assert.Equal(t, ErrorTypeInternal, GetType(io.EOF))
	assert.Equal(t, ErrorTypeFile, GetType(Wrapf(io.EOF, ErrorTypeFile, "open %s", "a")))
}

func TestIsMatchesCategoryOnly(t *testing.T) {
	err := New(ErrorTypeExecute, "type mismatch")
	assert.True(t, stderrors.Is(err, &Error{Type: ErrorTypeExecute}))
	assert.False(t, stderrors.Is(err, &Error{Type: ErrorTypeExecute, Message: "other"}))
	assert.False(t, stderrors.Is(err, &Error{Type: ErrorTypeDecode}))
}

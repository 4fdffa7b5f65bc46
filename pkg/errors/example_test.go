package errors_test

import (
	stderrors "errors"
	"fmt"
	"io"

	"github.com/ajitpratap0/xdrflow/pkg/errors"
)

// Example demonstrates basic error creation with details.
func Example() {
	err := errors.New(errors.ErrorTypeDecode, "buffer underrun").
		WithDetail("column", 3).
		WithDetail("offset", 12)

	fmt.Println(err.Error())
	fmt.Println(err.Details["column"])

	// Output:
	// decode: buffer underrun
	// 3
}

// ExampleWrap shows how to wrap existing errors with context.
func ExampleWrap() {
	err := errors.Wrap(io.ErrUnexpectedEOF, errors.ErrorTypeFile, "failed to read record file").
		WithDetail("file", "records.lv")

	if errors.IsType(err, errors.ErrorTypeFile) {
		fmt.Println("This is a file error")
	}
	if stderrors.Is(err, io.ErrUnexpectedEOF) {
		fmt.Println("Original error was unexpected EOF")
	}

	// Output:
	// This is a file error
	// Original error was unexpected EOF
}

// ExampleError_Is matches an error category anywhere in a chain.
func ExampleError_Is() {
	inner := errors.Newf(errors.ErrorTypeCompile, "unknown function %q", "nosuch")
	outer := fmt.Errorf("interceptor setup: %w", inner)

	fmt.Println(stderrors.Is(outer, &errors.Error{Type: errors.ErrorTypeCompile}))
	fmt.Println(stderrors.Is(outer, &errors.Error{Type: errors.ErrorTypeDecode}))
	fmt.Println(errors.GetType(outer))

	// Output:
	// true
	// false
	// compile
}

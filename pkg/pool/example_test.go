package pool_test

import (
	"fmt"

	"github.com/ajitpratap0/xdrflow/pkg/pool"
)

type scratch struct {
	buf []byte
}

// ExampleNew shows a pool with a reset hook.
func ExampleNew() {
	p := pool.New(
		func() *scratch { return &scratch{buf: make([]byte, 0, 16)} },
		func(s *scratch) { s.buf = s.buf[:0] },
	)

	s := p.Get()
	s.buf = append(s.buf, "row"...)
	fmt.Println(string(s.buf))
	p.Put(s)

	_, inUse, _ := p.Stats()
	fmt.Println(inUse)

	// Output:
	// row
	// 0
}

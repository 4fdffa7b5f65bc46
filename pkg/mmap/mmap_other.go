//go:build !linux && !darwin

package mmap

import (
	"io"
	"os"
)

// Platforms without mmap read the file into memory.
func mapFile(f *os.File, size int) ([]byte, error) {
	buf := make([]byte, size)
	if _, err := io.ReadFull(io.NewSectionReader(f, 0, int64(size)), buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func unmap([]byte) error { return nil }

func adviseSequential([]byte) error { return nil }

// Package mmap reads record files through read-only memory maps and splits
// them into records without copying.
package mmap

import (
	"bytes"
	"io"
	"os"
	"sync"

	"go.uber.org/zap"

	"github.com/ajitpratap0/xdrflow/pkg/errors"
	"github.com/ajitpratap0/xdrflow/pkg/logger"
	"github.com/ajitpratap0/xdrflow/pkg/tlv"
)

// Reader is a read-only memory map of a whole file.
type Reader struct {
	file *os.File
	data []byte
	path string

	mu sync.RWMutex
}

// NewReader maps filename. An empty file yields a Reader with no data.
func NewReader(filename string) (*Reader, error) {
	file, err := os.Open(filename) //nolint:gosec // G304: path comes from configuration
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to open file").WithDetail("path", filename)
	}

	stat, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to stat file").WithDetail("path", filename)
	}

	r := &Reader{file: file, path: filename}
	if stat.Size() == 0 {
		return r, nil
	}

	data, err := mapFile(file, int(stat.Size()))
	if err != nil {
		_ = file.Close()
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to mmap file").WithDetail("path", filename)
	}
	if err := adviseSequential(data); err != nil {
		logger.Get().Debug("madvise failed", zap.String("path", filename), zap.Error(err))
	}
	r.data = data
	return r, nil
}

// Bytes returns the mapped contents. The slice is invalid after Close.
func (r *Reader) Bytes() []byte {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.data
}

// Len returns the file size.
func (r *Reader) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.data)
}

// Close unmaps the file and closes it
func (r *Reader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var err error
	if r.data != nil {
		err = unmap(r.data)
		r.data = nil
	}
	if r.file != nil {
		if closeErr := r.file.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
		r.file = nil
	}
	return err
}

// Framing splits a byte stream into records.
type Framing string

const (
	// LV records carry a 2-byte big-endian length prefix.
	LV Framing = "lv"
	// Fixed records all have the same size.
	Fixed Framing = "fixed"
	// Line records end with '\n'; a trailing '\r' is dropped.
	Line Framing = "line"
)

// RecordReader iterates the records of a mapped file. Records alias the
// map and are valid until Close. It is not safe for concurrent use.
type RecordReader struct {
	reader  *Reader
	data    []byte
	framing Framing
	size    int
	offset  int
	count   int64
}

// NewRecordReader maps filename and frames it. recordSize is only used by
// Fixed framing.
func NewRecordReader(filename string, framing Framing, recordSize int) (*RecordReader, error) {
	switch framing {
	case LV, Line:
	case Fixed:
		if recordSize < 1 {
			return nil, errors.Newf(errors.ErrorTypeConfig, "fixed framing requires a positive record size, got %d", recordSize)
		}
	default:
		return nil, errors.Newf(errors.ErrorTypeConfig, "unknown framing %q", framing)
	}

	r, err := NewReader(filename)
	if err != nil {
		return nil, err
	}
	return &RecordReader{reader: r, data: r.Bytes(), framing: framing, size: recordSize}, nil
}

// Next returns the next record, or io.EOF after the last one. A truncated
// final record is a decode error.
func (rr *RecordReader) Next() ([]byte, error) {
	if rr.offset >= len(rr.data) {
		return nil, io.EOF
	}

	var rec []byte
	switch rr.framing {
	case LV:
		start, end, err := tlv.LVField(rr.data, rr.offset)
		if err != nil {
			return nil, rr.truncated(err)
		}
		rec, rr.offset = rr.data[start:end], end
	case Fixed:
		end := rr.offset + rr.size
		if end > len(rr.data) {
			return nil, rr.truncated(errors.Newf(errors.ErrorTypeDecode,
				"record needs %d bytes at offset %d, file has %d", rr.size, rr.offset, len(rr.data)))
		}
		rec, rr.offset = rr.data[rr.offset:end], end
	case Line:
		end := len(rr.data)
		next := end
		if i := bytes.IndexByte(rr.data[rr.offset:], '\n'); i >= 0 {
			end = rr.offset + i
			next = end + 1
		}
		rec = bytes.TrimSuffix(rr.data[rr.offset:end], []byte{'\r'})
		rr.offset = next
	}
	rr.count++
	return rec, nil
}

func (rr *RecordReader) truncated(err error) error {
	// skip the remainder so the next call reports EOF
	rr.offset = len(rr.data)
	return errors.Wrap(err, errors.ErrorTypeDecode, "truncated record").
		WithDetail("path", rr.reader.path).
		WithDetail("record", rr.count)
}

// Offset returns the byte offset of the next record.
func (rr *RecordReader) Offset() int { return rr.offset }

// Count returns the number of records returned so far.
func (rr *RecordReader) Count() int64 { return rr.count }

// Size returns the mapped file size.
func (rr *RecordReader) Size() int { return len(rr.data) }

// Close unmaps the file.
func (rr *RecordReader) Close() error {
	rr.data = nil
	return rr.reader.Close()
}

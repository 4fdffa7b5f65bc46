package pipeline

import (
	"bufio"
	"context"
	"io"
	"os"
	"sync"

	"github.com/ajitpratap0/xdrflow/pkg/errors"
	"github.com/ajitpratap0/xdrflow/pkg/event"
)

// Sink consumes emitted frames. Write is called from a single goroutine.
type Sink interface {
	Write(ctx context.Context, ev *event.Event) error
	Close() error
}

// WriterSink writes frame bodies to a writer, one frame per line.
type WriterSink struct {
	mu     sync.Mutex
	w      *bufio.Writer
	closer io.Closer
	frames int64
}

// NewWriterSink wraps w. If w is an io.Closer it is closed by Close.
func NewWriterSink(w io.Writer) *WriterSink {
	s := &WriterSink{w: bufio.NewWriterSize(w, 64*1024)}
	if c, ok := w.(io.Closer); ok {
		s.closer = c
	}
	return s
}

// NewFileSink creates or truncates path.
func NewFileSink(path string) (*WriterSink, error) {
	f, err := os.Create(path) //nolint:gosec // G304: path comes from configuration
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to create output file").WithDetail("path", path)
	}
	return NewWriterSink(f), nil
}

// Write appends the frame body and a newline.
func (s *WriterSink) Write(_ context.Context, ev *event.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.w.Write(ev.Body); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to write frame")
	}
	if err := s.w.WriteByte('\n'); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to write frame")
	}
	s.frames++
	return nil
}

// Frames returns the number of frames written.
func (s *WriterSink) Frames() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}

// Close flushes buffered output and closes the underlying writer.
func (s *WriterSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.w.Flush()
	if s.closer != nil && s.closer != os.Stdout {
		if cerr := s.closer.Close(); cerr != nil && err == nil {
			err = cerr
		}
		s.closer = nil
	}
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to flush output")
	}
	return nil
}

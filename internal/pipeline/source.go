package pipeline

import (
	"context"
	"io"
	"sync"

	"go.uber.org/zap"

	"github.com/ajitpratap0/xdrflow/pkg/event"
	"github.com/ajitpratap0/xdrflow/pkg/mmap"
)

// Source produces events. The event channel is closed when the source is
// exhausted or ctx is done; fatal failures arrive on the error channel,
// which is closed after the event channel.
type Source interface {
	Open(ctx context.Context) (<-chan *event.Event, <-chan error)
	Close() error
}

// FileSource reads a record file through a memory map. Event bodies alias
// the map, which stays valid until Close.
type FileSource struct {
	path       string
	framing    mmap.Framing
	recordSize int
	buffer     int
	logger     *zap.Logger

	mu     sync.Mutex
	reader *mmap.RecordReader
}

// NewFileSource creates a source over path. recordSize applies to fixed
// framing only.
func NewFileSource(path string, framing mmap.Framing, recordSize, buffer int, logger *zap.Logger) *FileSource {
	return &FileSource{
		path:       path,
		framing:    framing,
		recordSize: recordSize,
		buffer:     buffer,
		logger:     logger.With(zap.String("component", "file_source"), zap.String("path", path)),
	}
}

// Open maps the file and streams its records. A truncated trailing record
// is logged and ends the stream.
func (s *FileSource) Open(ctx context.Context) (<-chan *event.Event, <-chan error) {
	events := make(chan *event.Event, s.buffer)
	errs := make(chan error, 1)

	rr, err := mmap.NewRecordReader(s.path, s.framing, s.recordSize)
	if err != nil {
		errs <- err
		close(events)
		close(errs)
		return events, errs
	}
	s.mu.Lock()
	s.reader = rr
	s.mu.Unlock()

	go func() {
		defer close(errs)
		defer close(events)
		for {
			rec, err := rr.Next()
			if err == io.EOF {
				s.logger.Info("file source exhausted", zap.Int64("records", rr.Count()))
				return
			}
			if err != nil {
				s.logger.Warn("stopping at unreadable record", zap.Int64("records", rr.Count()), zap.Error(err))
				return
			}
			select {
			case events <- &event.Event{Body: rec}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return events, errs
}

// Close unmaps the file. Call it only after every event has been
// processed.
func (s *FileSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reader == nil {
		return nil
	}
	err := s.reader.Close()
	s.reader = nil
	return err
}

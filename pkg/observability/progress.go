package observability

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Progress accumulates pipeline counters and logs them at a fixed interval.
// It is safe for concurrent use.
type Progress struct {
	logger      *zap.Logger
	logInterval time.Duration

	mu          sync.Mutex
	records     int64
	frames      int64
	errors      int64
	bytes       int64
	startTime   time.Time
	lastLogTime time.Time
}

// ProgressSnapshot is a point-in-time copy of the counters.
type ProgressSnapshot struct {
	Records int64
	Frames  int64
	Errors  int64
	Bytes   int64
	Elapsed time.Duration
}

// RecordsPerSecond returns the average record rate.
func (s ProgressSnapshot) RecordsPerSecond() float64 {
	if s.Elapsed <= 0 {
		return 0
	}
	return float64(s.Records) / s.Elapsed.Seconds()
}

// NewProgress creates a progress reporter logging every 30 seconds.
func NewProgress(logger *zap.Logger) *Progress {
	now := time.Now()
	return &Progress{
		logger:      logger,
		logInterval: 30 * time.Second,
		startTime:   now,
		lastLogTime: now,
	}
}

// SetLogInterval sets the interval for progress logging
func (p *Progress) SetLogInterval(interval time.Duration) {
	p.mu.Lock()
	p.logInterval = interval
	p.mu.Unlock()
}

// RecordProcessed adds processed input records and their size, logging
// progress when the interval has elapsed.
func (p *Progress) RecordProcessed(count int, bytes int64) {
	p.mu.Lock()
	p.records += int64(count)
	p.bytes += bytes
	due := time.Since(p.lastLogTime) >= p.logInterval
	if due {
		p.lastLogTime = time.Now()
	}
	p.mu.Unlock()

	if due {
		p.LogProgress()
	}
}

// RecordFrame counts an emitted frame.
func (p *Progress) RecordFrame() {
	p.mu.Lock()
	p.frames++
	p.mu.Unlock()
}

// RecordError counts a failed record.
func (p *Progress) RecordError() {
	p.mu.Lock()
	p.errors++
	p.mu.Unlock()
}

// Snapshot returns the current counters.
func (p *Progress) Snapshot() ProgressSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return ProgressSnapshot{
		Records: p.records,
		Frames:  p.frames,
		Errors:  p.errors,
		Bytes:   p.bytes,
		Elapsed: time.Since(p.startTime),
	}
}

// LogProgress logs current progress
func (p *Progress) LogProgress() {
	s := p.Snapshot()
	p.logger.Info("processing progress",
		zap.Int64("records_processed", s.Records),
		zap.Int64("frames_emitted", s.Frames),
		zap.Int64("errors", s.Errors),
		zap.Int64("bytes_processed", s.Bytes),
		zap.Float64("records_per_second", s.RecordsPerSecond()),
		zap.Duration("elapsed", s.Elapsed),
	)
}

// LogFinal logs final statistics
func (p *Progress) LogFinal() {
	s := p.Snapshot()
	var errorRate float64
	if s.Records > 0 {
		errorRate = float64(s.Errors) / float64(s.Records) * 100
	}
	p.logger.Info("processing completed",
		zap.Int64("total_records", s.Records),
		zap.Int64("total_frames", s.Frames),
		zap.Int64("total_errors", s.Errors),
		zap.Int64("total_bytes", s.Bytes),
		zap.Float64("avg_records_per_second", s.RecordsPerSecond()),
		zap.Float64("error_rate_percent", errorRate),
		zap.Duration("total_duration", s.Elapsed),
	)
}

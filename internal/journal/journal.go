// internal/journal/journal.go
package journal

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-router/internal/events"
)

// DefaultFlushInterval is how often buffered lines reach the file.
const DefaultFlushInterval = time.Second

// Recorder appends events as JSON lines. It is an events.Handler.
type Recorder struct {
	mu       sync.Mutex
	file     *os.File
	writer   *bufio.Writer
	enc      *json.Encoder
	ticker   *time.Ticker
	done     chan struct{}
	logger   *zap.Logger
	filePath string

	written uint64
	flushes uint64
}

// NewRecorder creates or opens path in append mode.
func NewRecorder(path string, flushInterval time.Duration, logger *zap.Logger) (*Recorder, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	if flushInterval <= 0 {
		flushInterval = DefaultFlushInterval
	}

	w := bufio.NewWriter(file)
	r := &Recorder{
		file:     file,
		writer:   w,
		enc:      json.NewEncoder(w),
		ticker:   time.NewTicker(flushInterval),
		done:     make(chan struct{}),
		logger:   logger.Named("journal"),
		filePath: path,
	}
	go r.periodicFlush()
	return r, nil
}

// Record writes one event as a JSON line.
func (r *Recorder) Record(event events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file == nil {
		return os.ErrClosed
	}
	if err := r.enc.Encode(event); err != nil {
		return fmt.Errorf("failed to encode %s: %w", event.Type(), err)
	}
	r.written++
	return nil
}

// Handle implements events.Handler.
func (r *Recorder) Handle(_ context.Context, event events.Event) error {
	return r.Record(event)
}

// Subscribe records the given event types published on bus, all router
// events when none are given.
func (r *Recorder) Subscribe(bus *events.Bus, types ...events.EventType) []events.Subscription {
	return bus.SubscribeMany(r, types...)
}

// Flush forces buffered lines to disk.
func (r *Recorder) Flush() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.flushLocked()
}

func (r *Recorder) flushLocked() error {
	if r.file == nil {
		return nil
	}
	if err := r.writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush buffer: %w", err)
	}
	if err := r.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync file: %w", err)
	}
	r.flushes++
	return nil
}

func (r *Recorder) periodicFlush() {
	for {
		select {
		case <-r.ticker.C:
			if err := r.Flush(); err != nil {
				r.logger.Error("Periodic flush failed",
					zap.String("file", r.filePath),
					zap.Error(err))
			}
		case <-r.done:
			return
		}
	}
}

// Close flushes and closes the file. Further records fail.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file == nil {
		return nil
	}
	close(r.done)
	r.ticker.Stop()

	if err := r.writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush on close: %w", err)
	}
	err := r.file.Close()
	r.file = nil

	r.logger.Info("Journal closed",
		zap.String("file", r.filePath),
		zap.Uint64("written", r.written),
		zap.Uint64("flushes", r.flushes))
	return err
}

// Stats returns the number of recorded events and flushes.
func (r *Recorder) Stats() (written, flushes uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.written, r.flushes
}

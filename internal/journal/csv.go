package journal

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/rovshanmuradov/solana-router/internal/events"
)

var csvHeader = []string{"timestamp", "step", "user", "status", "legs", "total_spent", "total_out", "fee", "error", "signature"}

// CSVReport writes one row per finished route.
type CSVReport struct {
	mu      sync.Mutex
	file    *os.File
	writer  *csv.Writer
	records uint64
}

// NewCSVReport creates or opens path, writing the header to an empty file.
func NewCSVReport(path string) (*CSVReport, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	r := &CSVReport{file: file, writer: csv.NewWriter(file)}
	if stat.Size() == 0 {
		if err := r.writer.Write(csvHeader); err != nil {
			file.Close()
			return nil, fmt.Errorf("failed to write header: %w", err)
		}
	}
	return r, nil
}

// Handle implements events.Handler for route outcome events.
func (r *CSVReport) Handle(_ context.Context, event events.Event) error {
	var row []string
	ts := event.Timestamp().Format(time.RFC3339Nano)
	switch e := event.(type) {
	case events.RouteCompletedEvent:
		row = []string{ts, e.Step, e.User, "success", strconv.Itoa(e.Legs),
			strconv.FormatUint(e.TotalSpent, 10), strconv.FormatUint(e.TotalOut, 10),
			strconv.FormatUint(e.Fee, 10), "", e.Signature}
	case events.RouteFailedEvent:
		row = []string{ts, e.Step, e.User, "failed", strconv.Itoa(e.Legs), "", "", "", errorLabel(e), ""}
	default:
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return os.ErrClosed
	}
	if err := r.writer.Write(row); err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}
	r.records++
	return nil
}

func errorLabel(e events.RouteFailedEvent) string {
	if e.ErrorName != "" {
		return e.ErrorName
	}
	return e.Error
}

// Close flushes and closes the report.
func (r *CSVReport) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return nil
	}
	r.writer.Flush()
	if err := r.writer.Error(); err != nil {
		r.file.Close()
		r.file = nil
		return fmt.Errorf("CSV writer error on close: %w", err)
	}
	err := r.file.Close()
	r.file = nil
	return err
}

// Records returns the number of rows written, header excluded.
func (r *CSVReport) Records() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.records
}

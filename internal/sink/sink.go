// Package sink holds the destinations export records are written to.
package sink

import (
	"context"
	"log/slog"
	"sync"

	"github.com/dgallion1/notegest/internal/export"
)

// LogSink writes every record to a slog logger.
type LogSink struct {
	log *slog.Logger
}

func NewLogSink(log *slog.Logger) *LogSink {
	if log == nil {
		log = slog.Default()
	}
	return &LogSink{log: log}
}

func (s *LogSink) Emit(ctx context.Context, r export.Record) error {
	attrs := []any{
		"seq", r.Seq,
		"type", r.Kind,
		"page_id", r.PageID,
		"page_title", r.PageTitle,
		"node_id", r.NodeID,
	}
	if r.Cell != nil {
		attrs = append(attrs, "table_id", r.Cell.TableID, "row", r.Cell.Row, "column", r.Cell.Column)
	}
	switch {
	case r.Image != nil:
		attrs = append(attrs,
			"hyperlink", r.Image.Hyperlink,
			"description", r.Image.Description,
			"width", r.Image.Width,
			"height", r.Image.Height,
			"has_bytes", r.Image.Base64 != "")
	case r.Table != nil:
		attrs = append(attrs, "rows", r.Table.Rows, "columns", r.Table.Columns)
	default:
		attrs = append(attrs, "text", r.Text)
	}
	s.log.InfoContext(ctx, "record", attrs...)
	return nil
}

// MemorySink collects records. It is safe for concurrent use.
type MemorySink struct {
	mu      sync.Mutex
	records []export.Record
}

func NewMemorySink() *MemorySink { return &MemorySink{} }

func (s *MemorySink) Emit(_ context.Context, r export.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, r)
	return nil
}

// Records returns a copy of everything emitted so far.
func (s *MemorySink) Records() []export.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]export.Record(nil), s.records...)
}

func (s *MemorySink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Multi emits each record to every sink in order, stopping at the first
// error.
type Multi []export.Sink

func (m Multi) Emit(ctx context.Context, r export.Record) error {
	for _, s := range m {
		if err := s.Emit(ctx, r); err != nil {
			return err
		}
	}
	return nil
}

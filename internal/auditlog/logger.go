package auditlog

import (
	"context"
	"log"
	"time"

	"github.com/dunamismax/enhancegate/internal/domain"
	"github.com/dunamismax/enhancegate/internal/recordstore"
)

// Field names of the remote logs collection.
const (
	FieldTimestamp      = "timestamp"
	FieldAPIKey         = "api_key"
	FieldStatus         = "status"
	FieldOriginalSize   = "original_size"
	FieldOutputSize     = "output_size"
	FieldScale          = "scale"
	FieldFormat         = "format"
	FieldProcessingTime = "processing_time"
	FieldErrorMessage   = "error_message"
)

type logStore interface {
	Create(ctx context.Context, fields map[string]any) (recordstore.Record, error)
}

// Logger writes one immutable audit record per enhancement attempt. Writes
// are best effort: an unreachable log store must never invalidate the
// already-determined outcome of the enclosing call.
type Logger struct {
	logger *log.Logger
	store  logStore
	notify func(op string, err error)
	now    func() time.Time
}

func New(logger *log.Logger, store logStore, notify func(op string, err error)) *Logger {
	return &Logger{
		logger: logger,
		store:  store,
		notify: notify,
		now:    time.Now,
	}
}

// Record creates the audit entry. The timestamp is captured here, at write
// time, not when the attempt started.
func (l *Logger) Record(ctx context.Context, entry domain.AuditEntry) {
	fields := map[string]any{
		FieldTimestamp: l.now().UTC().Format(time.RFC3339),
		FieldAPIKey:    entry.APIKey,
		FieldStatus:    entry.Status,
	}
	if entry.OriginalSize != "" {
		fields[FieldOriginalSize] = entry.OriginalSize
	}
	if entry.OutputSize != "" {
		fields[FieldOutputSize] = entry.OutputSize
	}
	if entry.Scale != 0 {
		fields[FieldScale] = entry.Scale
	}
	if entry.Format != "" {
		fields[FieldFormat] = entry.Format
	}
	if entry.ProcessingTime != 0 {
		fields[FieldProcessingTime] = entry.ProcessingTime
	}
	if entry.ErrorMessage != "" {
		fields[FieldErrorMessage] = entry.ErrorMessage
	}

	if _, err := l.store.Create(ctx, fields); err != nil {
		l.logger.Printf("audit write failed status=%s err=%v", entry.Status, err)
		if l.notify != nil {
			l.notify("auditlog.record", err)
		}
	}
}

package recording

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/penwyp/go-agent-timeline/internal/core/model"
)

var (
	// ErrNotFound is returned for unknown recording IDs
	ErrNotFound = errors.New("recording not found")
	// ErrInvalidRecording wraps the reason an import was rejected
	ErrInvalidRecording = errors.New("invalid recording")
)

// Sink persists recordings of a live timeline
type Sink interface {
	CreateRecording(ctx context.Context) (string, error)
	AppendEvent(ctx context.Context, id string, entry model.TimelineEntry) error
	FinalizeRecording(ctx context.Context, id string) error
	ListRecordings(ctx context.Context) ([]model.RecordingMeta, error)
	GetRecording(ctx context.Context, id string) (model.RecordingMeta, error)
	LoadRecordingEvents(ctx context.Context, id string) ([]model.TimelineEntry, error)
	DeleteRecording(ctx context.Context, id string) error
	ExportRecording(ctx context.Context, id string) ([]byte, error)
	ImportRecording(ctx context.Context, blob []byte) (string, error)
	Close() error
}

// NewRecordingID returns an ID of the form rec-<unix ms>-<8 hex>
func NewRecordingID(now time.Time) string {
	return fmt.Sprintf("rec-%d-%s", now.UnixMilli(), uuid.NewString()[:8])
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidRecording, fmt.Sprintf(format, args...))
}

package recording

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/penwyp/go-agent-timeline/internal/core/model"
)

// recordingFile mirrors model.Recording with pointers so missing keys are detectable
type recordingFile struct {
	Meta   *model.RecordingMeta    `json:"meta"`
	Events *[]model.TimelineEntry `json:"events"`
}

// ExportRecording renders a recording as indented JSON
func (s *SQLiteSink) ExportRecording(ctx context.Context, id string) ([]byte, error) {
	meta, err := getMeta(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	events, err := s.LoadRecordingEvents(ctx, id)
	if err != nil {
		return nil, err
	}
	return EncodeRecording(model.Recording{Meta: meta, Events: events})
}

// EncodeRecording marshals the export unit
func EncodeRecording(rec model.Recording) ([]byte, error) {
	if rec.Events == nil {
		rec.Events = []model.TimelineEntry{}
	}
	if rec.Meta.SessionIDs == nil {
		rec.Meta.SessionIDs = []string{}
	}
	data, err := sonic.ConfigStd.MarshalIndent(rec, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode recording %s: %w", rec.Meta.ID, err)
	}
	return data, nil
}

// DecodeRecording parses and validates an export. Errors wrap ErrInvalidRecording.
func DecodeRecording(blob []byte) (model.Recording, error) {
	var file recordingFile
	if err := sonic.Unmarshal(blob, &file); err != nil {
		return model.Recording{}, invalid("not a recording export: %v", err)
	}
	if file.Meta == nil {
		return model.Recording{}, invalid("missing meta")
	}
	if file.Events == nil {
		return model.Recording{}, invalid("missing events")
	}

	rec := model.Recording{Meta: *file.Meta, Events: *file.Events}
	rec.Meta.ID = strings.TrimSpace(rec.Meta.ID)

	seen := make(map[int64]bool, len(rec.Events))
	for i, e := range rec.Events {
		if seen[e.SequenceIndex] {
			return model.Recording{}, invalid("event %d: duplicate sequence index %d", i, e.SequenceIndex)
		}
		seen[e.SequenceIndex] = true
		if !e.Category.Valid() {
			return model.Recording{}, invalid("event %d: unknown category %q", i, e.Category)
		}
		if !e.From.Valid() || !e.To.Valid() {
			return model.Recording{}, invalid("event %d: unknown actor %q -> %q", i, e.From, e.To)
		}
	}
	return rec, nil
}

// ImportRecording validates the blob and stores it in one transaction. The
// recording keeps its ID unless that ID is empty or already taken, in which
// case a new one is assigned. Metadata counts are rebuilt from the events.
func (s *SQLiteSink) ImportRecording(ctx context.Context, blob []byte) (string, error) {
	rec, err := DecodeRecording(blob)
	if err != nil {
		return "", err
	}

	meta := model.RecordingMeta{
		ID:         rec.Meta.ID,
		StartTime:  rec.Meta.StartTime,
		EndTime:    rec.Meta.EndTime,
		SessionIDs: nil,
		Finalized:  rec.Meta.Finalized,
	}
	for _, id := range rec.Meta.SessionIDs {
		meta.AddSession(id)
	}
	for _, e := range rec.Events {
		meta.AddSession(e.SessionID)
		if e.Timestamp > meta.EndTime {
			meta.EndTime = e.Timestamp
		}
	}
	meta.EventCount = len(rec.Events)
	if meta.StartTime == 0 && len(rec.Events) > 0 {
		meta.StartTime = rec.Events[0].Timestamp
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin import tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	// keep the exported ID unless it is taken
	if meta.ID == "" {
		meta.ID = NewRecordingID(s.now())
	} else {
		_, err := getMeta(ctx, tx, meta.ID)
		switch {
		case err == nil:
			meta.ID = NewRecordingID(s.now())
		case !errors.Is(err, ErrNotFound):
			return "", fmt.Errorf("check recording %s: %w", meta.ID, err)
		}
	}

	if err := insertMeta(ctx, tx, meta); err != nil {
		return "", err
	}
	for _, e := range rec.Events {
		payload, err := sonic.Marshal(e)
		if err != nil {
			return "", fmt.Errorf("encode entry %d: %w", e.SequenceIndex, err)
		}
		if err := insertEvent(ctx, tx, meta.ID, e, payload); err != nil {
			return "", err
		}
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit import: %w", err)
	}
	return meta.ID, nil
}

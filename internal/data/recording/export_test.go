package recording

import (
	"context"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/penwyp/go-agent-timeline/internal/core/model"
	"github.com/penwyp/go-agent-timeline/internal/testing/fixtures"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recordFixture(t *testing.T, sink *SQLiteSink, n int) string {
	t.Helper()
	ctx := context.Background()
	id, err := sink.CreateRecording(ctx)
	require.NoError(t, err)
	entries := fixtures.Entries(n, "ses_1", 1000, 25)
	entries[0].SourceEvent = []byte(`{"type":"message.part.updated"}`)
	for _, e := range entries {
		require.NoError(t, sink.AppendEvent(ctx, id, e))
	}
	require.NoError(t, sink.FinalizeRecording(ctx, id))
	return id
}

func TestExportImportRoundTrip(t *testing.T) {
	ctx := context.Background()
	src := openTestSink(t)
	id := recordFixture(t, src, 5)

	blob, err := src.ExportRecording(ctx, id)
	require.NoError(t, err)
	assert.Contains(t, string(blob), "\n  \"meta\"", "export is indented")

	original, err := src.LoadRecordingEvents(ctx, id)
	require.NoError(t, err)

	dst := openTestSink(t)
	importedID, err := dst.ImportRecording(ctx, blob)
	require.NoError(t, err)
	assert.Equal(t, id, importedID, "a free ID is kept")

	imported, err := dst.LoadRecordingEvents(ctx, importedID)
	require.NoError(t, err)
	assert.Equal(t, original, imported)

	meta, err := dst.GetRecording(ctx, importedID)
	require.NoError(t, err)
	assert.Equal(t, 5, meta.EventCount)
	assert.Equal(t, []string{"ses_1"}, meta.SessionIDs)
	assert.True(t, meta.Finalized)
}

func TestImportAssignsNewIDOnCollision(t *testing.T) {
	ctx := context.Background()
	sink := openTestSink(t)
	id := recordFixture(t, sink, 2)

	blob, err := sink.ExportRecording(ctx, id)
	require.NoError(t, err)

	newID, err := sink.ImportRecording(ctx, blob)
	require.NoError(t, err)
	assert.NotEqual(t, id, newID)

	metas, err := sink.ListRecordings(ctx)
	require.NoError(t, err)
	assert.Len(t, metas, 2)

	events, err := sink.LoadRecordingEvents(ctx, id)
	require.NoError(t, err)
	assert.Len(t, events, 2, "existing recording untouched")
}

func TestImportFailsWhenExistingIDCannotBeRead(t *testing.T) {
	ctx := context.Background()
	sink := openTestSink(t)
	id := recordFixture(t, sink, 2)

	blob, err := sink.ExportRecording(ctx, id)
	require.NoError(t, err)
	_, err = sink.db.ExecContext(ctx, `UPDATE recordings SET session_ids = 'not json' WHERE id = ?`, id)
	require.NoError(t, err)

	_, err = sink.ImportRecording(ctx, blob)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "check recording "+id)
	assert.Contains(t, err.Error(), "decode session ids")

	var count int
	require.NoError(t, sink.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM recordings`).Scan(&count))
	assert.Equal(t, 1, count)
}

func TestImportRejectsMalformed(t *testing.T) {
	ctx := context.Background()
	sink := openTestSink(t)
	existing := recordFixture(t, sink, 1)

	encode := func(events ...model.TimelineEntry) []byte {
		blob, err := sonic.Marshal(model.Recording{Meta: model.RecordingMeta{ID: "rec-x"}, Events: events})
		require.NoError(t, err)
		return blob
	}
	tool := fixtures.Entries(2, "s1", 0, 1)
	badCategory := tool[0]
	badCategory.Category = "bogus"
	badActor := tool[0]
	badActor.From = "robot"

	tests := []struct {
		name string
		blob []byte
		want string
	}{
		{"not json", []byte("{nope"), "not a recording export"},
		{"missing meta", []byte(`{"events": []}`), "missing meta"},
		{"missing events", []byte(`{"meta": {"id": "rec-x"}}`), "missing events"},
		{"duplicate sequence", encode(tool[0], tool[0]), "duplicate sequence index"},
		{"bad category", encode(badCategory), "unknown category"},
		{"bad actor", encode(badActor), "unknown actor"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := sink.ImportRecording(ctx, tt.blob)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidRecording)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	metas, err := sink.ListRecordings(ctx)
	require.NoError(t, err)
	require.Len(t, metas, 1)
	assert.Equal(t, existing, metas[0].ID)
}

func TestImportWithoutIDOrStart(t *testing.T) {
	ctx := context.Background()
	sink := openTestSink(t)

	entries := fixtures.Entries(2, "s9", 4000, 100)
	blob, err := EncodeRecording(model.Recording{Events: entries})
	require.NoError(t, err)

	id, err := sink.ImportRecording(ctx, blob)
	require.NoError(t, err)
	assert.Regexp(t, `^rec-\d+-[0-9a-f]{8}$`, id)

	meta, err := sink.GetRecording(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(4000), meta.StartTime)
	assert.Equal(t, int64(4100), meta.EndTime)
	assert.Equal(t, 2, meta.EventCount)
	assert.Equal(t, []string{"s9"}, meta.SessionIDs)
}

func TestEncodeRecordingEmpty(t *testing.T) {
	blob, err := EncodeRecording(model.Recording{Meta: model.RecordingMeta{ID: "rec-1"}})
	require.NoError(t, err)

	rec, err := DecodeRecording(blob)
	require.NoError(t, err)
	assert.Equal(t, "rec-1", rec.Meta.ID)
	assert.Empty(t, rec.Events)
	assert.NotNil(t, rec.Events)
}

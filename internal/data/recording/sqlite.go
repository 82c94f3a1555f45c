package recording

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bytedance/sonic"
	"github.com/penwyp/go-agent-timeline/internal/core/model"

	_ "modernc.org/sqlite"
)

// SQLiteSink stores recordings in a local sqlite database
type SQLiteSink struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// OpenSQLite opens (creating if needed) the database at path and applies migrations
func OpenSQLite(ctx context.Context, path string) (*SQLiteSink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if err := applyMigrations(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteSink{db: db, path: path, now: time.Now}, nil
}

func (s *SQLiteSink) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file
func (s *SQLiteSink) Path() string {
	return s.path
}

func (s *SQLiteSink) CreateRecording(ctx context.Context) (string, error) {
	now := s.now()
	meta := model.RecordingMeta{ID: NewRecordingID(now), StartTime: now.UnixMilli()}
	if err := insertMeta(ctx, s.db, meta); err != nil {
		return "", err
	}
	return meta.ID, nil
}

// AppendEvent stores one entry and folds it into the recording's metadata.
// Re-appending a stored sequence index replaces the entry without counting it twice.
func (s *SQLiteSink) AppendEvent(ctx context.Context, id string, entry model.TimelineEntry) error {
	payload, err := sonic.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode entry %d: %w", entry.SequenceIndex, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	meta, err := getMeta(ctx, tx, id)
	if err != nil {
		return err
	}

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM events WHERE recording_id = ? AND sequence_index = ?`, id, entry.SequenceIndex).Scan(&exists)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("check event: %w", err)
	}
	duplicate := err == nil

	if err := insertEvent(ctx, tx, id, entry, payload); err != nil {
		return err
	}

	if duplicate {
		meta.AddSession(entry.SessionID)
	} else {
		meta.Observe(entry)
	}
	if err := updateMeta(ctx, tx, meta); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit append: %w", err)
	}
	return nil
}

// FinalizeRecording marks the recording complete and stamps its end time
func (s *SQLiteSink) FinalizeRecording(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE recordings SET finalized = 1, end_time = MAX(end_time, ?) WHERE id = ?`,
		s.now().UnixMilli(), id)
	if err != nil {
		return fmt.Errorf("finalize recording: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// ListRecordings returns every recording, newest first
func (s *SQLiteSink) ListRecordings(ctx context.Context) ([]model.RecordingMeta, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, start_time, end_time, session_ids, event_count, finalized
FROM recordings
ORDER BY start_time DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list recordings: %w", err)
	}
	defer rows.Close()

	metas := []model.RecordingMeta{}
	for rows.Next() {
		meta, err := scanMeta(rows)
		if err != nil {
			return nil, err
		}
		metas = append(metas, meta)
	}
	return metas, rows.Err()
}

func (s *SQLiteSink) GetRecording(ctx context.Context, id string) (model.RecordingMeta, error) {
	return getMeta(ctx, s.db, id)
}

// LoadRecordingEvents returns the entries ordered by sequence index
func (s *SQLiteSink) LoadRecordingEvents(ctx context.Context, id string) ([]model.TimelineEntry, error) {
	if _, err := getMeta(ctx, s.db, id); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT payload FROM events WHERE recording_id = ? ORDER BY sequence_index ASC`, id)
	if err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}
	defer rows.Close()

	entries := []model.TimelineEntry{}
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		var entry model.TimelineEntry
		if err := sonic.UnmarshalString(payload, &entry); err != nil {
			return nil, fmt.Errorf("decode event: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (s *SQLiteSink) DeleteRecording(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM recordings WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete recording: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// queryer is satisfied by both *sql.DB and *sql.Tx
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanMeta(row rowScanner) (model.RecordingMeta, error) {
	var (
		meta      model.RecordingMeta
		sessions  string
		finalized int
	)
	if err := row.Scan(&meta.ID, &meta.StartTime, &meta.EndTime, &sessions, &meta.EventCount, &finalized); err != nil {
		return model.RecordingMeta{}, err
	}
	if err := sonic.UnmarshalString(sessions, &meta.SessionIDs); err != nil {
		return model.RecordingMeta{}, fmt.Errorf("decode session ids of %s: %w", meta.ID, err)
	}
	if meta.SessionIDs == nil {
		meta.SessionIDs = []string{}
	}
	meta.Finalized = finalized != 0
	return meta, nil
}

func getMeta(ctx context.Context, q queryer, id string) (model.RecordingMeta, error) {
	row := q.QueryRowContext(ctx, `
SELECT id, start_time, end_time, session_ids, event_count, finalized
FROM recordings WHERE id = ?`, id)
	meta, err := scanMeta(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.RecordingMeta{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return model.RecordingMeta{}, fmt.Errorf("get recording: %w", err)
	}
	return meta, nil
}

func encodeSessions(ids []string) (string, error) {
	if ids == nil {
		ids = []string{}
	}
	return sonic.MarshalString(ids)
}

func insertMeta(ctx context.Context, q queryer, meta model.RecordingMeta) error {
	sessions, err := encodeSessions(meta.SessionIDs)
	if err != nil {
		return fmt.Errorf("encode session ids: %w", err)
	}
	_, err = q.ExecContext(ctx, `
INSERT INTO recordings(id, start_time, end_time, session_ids, event_count, finalized)
VALUES (?, ?, ?, ?, ?, ?)`,
		meta.ID, meta.StartTime, meta.EndTime, sessions, meta.EventCount, boolToInt(meta.Finalized))
	if err != nil {
		return fmt.Errorf("insert recording: %w", err)
	}
	return nil
}

func updateMeta(ctx context.Context, q queryer, meta model.RecordingMeta) error {
	sessions, err := encodeSessions(meta.SessionIDs)
	if err != nil {
		return fmt.Errorf("encode session ids: %w", err)
	}
	_, err = q.ExecContext(ctx, `
UPDATE recordings SET end_time = ?, session_ids = ?, event_count = ?, finalized = ?
WHERE id = ?`,
		meta.EndTime, sessions, meta.EventCount, boolToInt(meta.Finalized), meta.ID)
	if err != nil {
		return fmt.Errorf("update recording: %w", err)
	}
	return nil
}

func insertEvent(ctx context.Context, q queryer, id string, entry model.TimelineEntry, payload []byte) error {
	_, err := q.ExecContext(ctx, `
INSERT INTO events(recording_id, sequence_index, timestamp, session_id, category, payload)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(recording_id, sequence_index) DO UPDATE SET
	timestamp=excluded.timestamp,
	session_id=excluded.session_id,
	category=excluded.category,
	payload=excluded.payload`,
		id, entry.SequenceIndex, entry.Timestamp, entry.SessionID, string(entry.Category), string(payload))
	if err != nil {
		return fmt.Errorf("insert event %d: %w", entry.SequenceIndex, err)
	}
	return nil
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

// Package store persists MARC records to SQLite for "write ... as sqlite".
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"marcer/internal/marc"
)

// RecordStore is an SQLite database of encoded records and their fields.
type RecordStore struct {
	db     *sql.DB
	mu     sync.Mutex
	path   string
	logger *zap.Logger
}

// Open creates or opens the database at path and ensures the schema.
func Open(path string, logger *zap.Logger) (*RecordStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	if dir := filepath.Dir(path); path != ":memory:" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logger.Debug("failed to set sqlite busy_timeout", zap.Error(err))
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		logger.Debug("failed to enable foreign keys", zap.Error(err))
	}

	s := &RecordStore{db: db, path: path, logger: logger}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	logger.Debug("record store ready", zap.String("path", path))
	return s, nil
}

// initialize creates the required tables.
func (s *RecordStore) initialize() error {
	recordsTable := `
	CREATE TABLE IF NOT EXISTS records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		control_number TEXT,
		tcn TEXT,
		leader TEXT NOT NULL,
		multilingual INTEGER NOT NULL DEFAULT 0,
		raw BLOB NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);`

	fieldsTable := `
	CREATE TABLE IF NOT EXISTS fields (
		record_id INTEGER NOT NULL REFERENCES records(id) ON DELETE CASCADE,
		seq INTEGER NOT NULL,
		tag TEXT NOT NULL,
		content TEXT NOT NULL,
		PRIMARY KEY (record_id, seq)
	);`

	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_records_run ON records(run_id, seq);`,
		`CREATE INDEX IF NOT EXISTS idx_records_control ON records(control_number);`,
		`CREATE INDEX IF NOT EXISTS idx_fields_tag ON fields(tag);`,
	}

	for _, stmt := range append([]string{recordsTable, fieldsTable}, indexes...) {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to initialize schema: %w", err)
		}
	}
	return nil
}

// Path is the database location.
func (s *RecordStore) Path() string { return s.path }

// Truncate removes every stored record.
func (s *RecordStore) Truncate(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, "DELETE FROM fields"); err != nil {
		return fmt.Errorf("failed to clear fields: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "DELETE FROM records"); err != nil {
		return fmt.Errorf("failed to clear records: %w", err)
	}
	return nil
}

// SaveRecords stores recs under runID in one transaction. Sequence numbers
// continue after the run's last stored record.
func (s *RecordStore) SaveRecords(ctx context.Context, runID string, recs []*marc.Record) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var next int
	if err := tx.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(seq), -1) + 1 FROM records WHERE run_id = ?", runID).Scan(&next); err != nil {
		return fmt.Errorf("failed to read sequence: %w", err)
	}

	for i, rec := range recs {
		raw, err := rec.Encode()
		if err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx,
			`INSERT INTO records (run_id, seq, control_number, tcn, leader, multilingual, raw)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			runID, next+i, rec.ControlNumber(), rec.TCN(), rec.Leader().String(), rec.ContainsMultilingual(), raw)
		if err != nil {
			return fmt.Errorf("failed to insert record %s: %w", rec.ControlNumber(), err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to read record id: %w", err)
		}
		for j, e := range rec.Entries() {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO fields (record_id, seq, tag, content) VALUES (?, ?, ?, ?)",
				id, j, e.Tag.String(), e.Content.String()); err != nil {
				return fmt.Errorf("failed to insert field %s of record %s: %w", e.Tag, rec.ControlNumber(), err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	s.logger.Debug("saved records", zap.String("run_id", runID), zap.Int("count", len(recs)))
	return nil
}

// Count returns the number of stored records.
func (s *RecordStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM records").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}
	return n, nil
}

// LoadRecords decodes the records stored under runID in sequence order.
// An empty runID loads every record.
func (s *RecordStore) LoadRecords(ctx context.Context, runID string) ([]*marc.Record, error) {
	query := "SELECT raw FROM records ORDER BY id"
	args := []any{}
	if runID != "" {
		query = "SELECT raw FROM records WHERE run_id = ? ORDER BY seq"
		args = append(args, runID)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	var recs []*marc.Record
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		rec, err := marc.DecodeBytes(raw, marc.DecodeOptions{Strict: true, Index: len(recs), Logger: s.logger})
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// FieldTexts returns the content of every stored field with the tag.
func (s *RecordStore) FieldTexts(ctx context.Context, tag marc.Tag) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT content FROM fields WHERE tag = ? ORDER BY record_id, seq", tag.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query fields: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var text string
		if err := rows.Scan(&text); err != nil {
			return nil, fmt.Errorf("failed to scan field: %w", err)
		}
		out = append(out, text)
	}
	return out, rows.Err()
}

// Close closes the database.
func (s *RecordStore) Close() error {
	return s.db.Close()
}

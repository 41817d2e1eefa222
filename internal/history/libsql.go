package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/tursodatabase/go-libsql"

	"github.com/borzov/photo-validation-service/pkg/schema"
)

// LibSQLStore implements Store using libSQL (embedded SQLite fork).
type LibSQLStore struct {
	db *sql.DB
}

const createRecordsTable = `
CREATE TABLE IF NOT EXISTS validation_records (
  id              INTEGER PRIMARY KEY AUTOINCREMENT,
  request_id      TEXT NOT NULL UNIQUE,
  status          TEXT NOT NULL,
  checks_passed   INTEGER NOT NULL,
  total_checks    INTEGER NOT NULL,
  issues          TEXT,
  summary         TEXT,
  processing_ms   INTEGER NOT NULL,
  completed_at    TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_records_completed_at ON validation_records(completed_at);
CREATE INDEX IF NOT EXISTS idx_records_status ON validation_records(status);
`

// NewLibSQLStore opens a libSQL database at the given path and runs the
// migration. The path should be a file URI, e.g. "file:/path/to/db.db".
func NewLibSQLStore(dbPath string) (*LibSQLStore, error) {
	db, err := sql.Open("libsql", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open libsql: %w", err)
	}
	db.SetMaxOpenConns(1)

	// Apply connection-level PRAGMAs. Some PRAGMAs return rows so we use QueryRow.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA temp_store=MEMORY",
	}
	for _, p := range pragmas {
		var result string
		_ = db.QueryRow(p).Scan(&result)
	}

	if _, err := db.Exec(createRecordsTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate validation_records: %w", err)
	}

	return &LibSQLStore{db: db}, nil
}

// Close closes the database.
func (s *LibSQLStore) Close() error { return s.db.Close() }

// Vacuum reclaims space after pruning.
func (s *LibSQLStore) Vacuum(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "VACUUM")
	return err
}

func (s *LibSQLStore) Insert(ctx context.Context, rec *Record) error {
	issues, err := nullableJSON(rec.Issues)
	if err != nil {
		return fmt.Errorf("marshal issues: %w", err)
	}
	summary, err := nullableJSON(rec.Summary)
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO validation_records (request_id, status, checks_passed, total_checks, issues, summary, processing_ms, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RequestID, string(rec.Status), rec.ChecksPassed, rec.TotalChecks,
		issues, summary, rec.ProcessingTime.Milliseconds(), timeOrNow(rec.CompletedAt),
	)
	return err
}

func (s *LibSQLStore) Get(ctx context.Context, requestID string) (*Record, error) {
	rec := &Record{}
	var status string
	var issues, summary sql.NullString
	var processingMs int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id, request_id, status, checks_passed, total_checks, issues, summary, processing_ms, completed_at
		 FROM validation_records WHERE request_id = ?`, requestID,
	).Scan(&rec.ID, &rec.RequestID, &status, &rec.ChecksPassed, &rec.TotalChecks,
		&issues, &summary, &processingMs, &rec.CompletedAt)
	if err == sql.ErrNoRows {
		return nil, schema.NewErrorf(schema.ErrCodeNotFound, "validation record %q not found", requestID)
	}
	if err != nil {
		return nil, err
	}
	rec.Status = schema.VerdictStatus(status)
	rec.ProcessingTime = time.Duration(processingMs) * time.Millisecond
	if issues.Valid {
		_ = json.Unmarshal([]byte(issues.String), &rec.Issues)
	}
	if summary.Valid {
		_ = json.Unmarshal([]byte(summary.String), &rec.Summary)
	}
	return rec, nil
}

func (s *LibSQLStore) List(ctx context.Context, filter Filter) ([]*Record, error) {
	var where []string
	var args []any

	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.Since != nil {
		where = append(where, "completed_at >= ?")
		args = append(args, *filter.Since)
	}

	query := `SELECT id, request_id, status, checks_passed, total_checks, issues, summary, processing_ms, completed_at FROM validation_records`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY completed_at DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
		if filter.Offset > 0 {
			query += fmt.Sprintf(" OFFSET %d", filter.Offset)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		rec := &Record{}
		var status string
		var issues, summary sql.NullString
		var processingMs int64
		if err := rows.Scan(&rec.ID, &rec.RequestID, &status, &rec.ChecksPassed, &rec.TotalChecks,
			&issues, &summary, &processingMs, &rec.CompletedAt); err != nil {
			return nil, err
		}
		rec.Status = schema.VerdictStatus(status)
		rec.ProcessingTime = time.Duration(processingMs) * time.Millisecond
		if issues.Valid {
			_ = json.Unmarshal([]byte(issues.String), &rec.Issues)
		}
		if summary.Valid {
			_ = json.Unmarshal([]byte(summary.String), &rec.Summary)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *LibSQLStore) Prune(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM validation_records WHERE completed_at < ?`, before)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func timeOrNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}

func nullableJSON(v any) (any, error) {
	switch val := v.(type) {
	case []string:
		if len(val) == 0 {
			return nil, nil
		}
	case map[string]any:
		if len(val) == 0 {
			return nil, nil
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

var _ Store = (*LibSQLStore)(nil)

// Package store persists the history of completed compilations in SQLite.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/s0urc3k0d/Statisfaction-sub001/logging"
)

//go:embed schema.sql
var schemaSQL string

// DefaultHistoryLimit bounds History when the caller passes a non-positive limit.
const DefaultHistoryLimit = 20

// Record is the durable trace of one successful compilation.
type Record struct {
	ID         string    `json:"id"`
	UserID     string    `json:"userId"`
	JobID      string    `json:"jobId"`
	ClipCount  int       `json:"clipCount"`
	Format     string    `json:"format"`
	Quality    string    `json:"quality"`
	OutputPath string    `json:"outputPath"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Store manages compilation records backed by SQLite.
type Store struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// Open initializes or connects to the database at path and applies the schema.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure database directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Store{db: db, path: path, logger: logging.WithComponent(logger, "store")}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// RecordSuccess inserts rec in a single statement, assigning an id and a
// creation time when they are unset.
func (s *Store) RecordSuccess(ctx context.Context, rec Record) (Record, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	if rec.Status == "" {
		rec.Status = "done"
	}
	rec.CreatedAt = rec.CreatedAt.UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO compilations (
            id, user_id, job_id, clip_count, format, quality, output_path, status, created_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID,
		rec.UserID,
		rec.JobID,
		rec.ClipCount,
		rec.Format,
		rec.Quality,
		rec.OutputPath,
		rec.Status,
		rec.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return Record{}, fmt.Errorf("insert compilation: %w", err)
	}
	return rec, nil
}

// Get returns the record with id, or false when none exists.
func (s *Store) Get(ctx context.Context, id string) (Record, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, job_id, clip_count, format, quality, output_path, status, created_at
        FROM compilations WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, err
	}
	return rec, true, nil
}

// History lists a user's records newest first.
func (s *Store) History(ctx context.Context, userID string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, job_id, clip_count, format, quality, output_path, status, created_at
        FROM compilations WHERE user_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Delete removes the record and its output file when userID owns it. It
// reports false, touching nothing, for unknown ids and for other users' records.
func (s *Store) Delete(ctx context.Context, userID, recordID string) (bool, error) {
	var outputPath string
	err := s.db.QueryRowContext(ctx,
		`SELECT output_path FROM compilations WHERE id = ? AND user_id = ?`, recordID, userID,
	).Scan(&outputPath)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("lookup compilation: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM compilations WHERE id = ? AND user_id = ?`, recordID, userID)
	if err != nil {
		return false, fmt.Errorf("delete compilation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return false, nil
	}
	s.removeFile(outputPath)
	return true, nil
}

// PurgeOlderThan deletes every record created more than age ago and returns how
// many records were removed. Output files are removed best-effort.
func (s *Store) PurgeOlderThan(ctx context.Context, age time.Duration) (int, error) {
	cutoff := time.Now().Add(-age).UnixMilli()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin purge tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, `SELECT output_path FROM compilations WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("query expired compilations: %w", err)
	}
	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			rows.Close()
			return 0, err
		}
		paths = append(paths, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM compilations WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge compilations: %w", err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit purge: %w", err)
	}

	for _, p := range paths {
		s.removeFile(p)
	}
	return int(removed), nil
}

func (s *Store) removeFile(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.Warn("could not remove compilation file", "path", path, "error", err)
	}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (Record, error) {
	var rec Record
	var created int64
	if err := row.Scan(
		&rec.ID,
		&rec.UserID,
		&rec.JobID,
		&rec.ClipCount,
		&rec.Format,
		&rec.Quality,
		&rec.OutputPath,
		&rec.Status,
		&created,
	); err != nil {
		return Record{}, err
	}
	rec.CreatedAt = time.UnixMilli(created).UTC()
	return rec, nil
}

// Package store persists structured error records in an embedded SQLite
// database. It implements the reporter's Sink interface and additionally
// offers retrieval for inspection tooling and retention purging.
package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	migrate "github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"

	"errguard/pkg/report"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store is a single-writer record sink backed by one SQLite file.
type Store struct {
	db   *sql.DB
	log  *slog.Logger
	path string
}

// Open creates or opens the database at path, applies pending migrations and
// returns the ready Store.
func Open(ctx context.Context, path string, log *slog.Logger) (*Store, error) {
	if log == nil {
		log = slog.Default()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("store: create directory: %w", err)
	}
	if err := applyMigrations(path); err != nil {
		return nil, err
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}
	// One writer; SQLite serializes anyway.
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: ping database: %w", err)
	}

	return &Store{db: db, log: log, path: path}, nil
}

// applyMigrations runs the embedded migrations. Safe to call repeatedly.
func applyMigrations(path string) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("store: load migrations: %w", err)
	}
	url, err := migrateURL(path)
	if err != nil {
		return err
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, url)
	if err != nil {
		return fmt.Errorf("store: create migrator: %w", err)
	}
	defer func() { _, _ = m.Close() }()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("store: apply migrations: %w", err)
	}
	return nil
}

// migrateURL builds the sqlite:// URL golang-migrate expects, accounting for
// Windows drive letters.
func migrateURL(dbPath string) (string, error) {
	abs, err := filepath.Abs(dbPath)
	if err != nil {
		return "", fmt.Errorf("store: absolute path: %w", err)
	}
	urlPath := filepath.ToSlash(abs)
	if runtime.GOOS == "windows" && len(urlPath) >= 2 && urlPath[1] == ':' {
		urlPath = "/" + urlPath
	}
	if !strings.HasPrefix(urlPath, "/") {
		urlPath = "/" + urlPath
	}
	return "sqlite://" + urlPath, nil
}

// Write implements report.Sink.
func (s *Store) Write(ctx context.Context, rec report.Record, sev report.Severity) error {
	contextJSON, err := json.Marshal(rec.Context)
	if err != nil {
		return fmt.Errorf("store: marshal context: %w", err)
	}
	var paramsJSON []byte
	if rec.CustomParams != nil {
		paramsJSON, err = json.Marshal(rec.CustomParams)
		if err != nil {
			return fmt.Errorf("store: marshal custom params: %w", err)
		}
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO error_records (event_id, created_at, severity, message, context, custom_params)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.EventID, rec.Time.UTC(), string(sev), rec.Message, string(contextJSON), nullable(paramsJSON))
	if err != nil {
		return fmt.Errorf("store: insert record: %w", err)
	}
	return nil
}

// Entry is one stored record with its persisted severity.
type Entry struct {
	Record   report.Record
	Severity report.Severity
}

// Recent returns up to limit records, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT event_id, created_at, severity, message, context, custom_params
		 FROM error_records ORDER BY created_at DESC, event_id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("store: query records: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e          Entry
			sev        string
			contextRaw string
			paramsRaw  sql.NullString
		)
		if err := rows.Scan(&e.Record.EventID, &e.Record.Time, &sev, &e.Record.Message, &contextRaw, &paramsRaw); err != nil {
			return nil, fmt.Errorf("store: scan record: %w", err)
		}
		e.Severity = report.Severity(sev)
		if err := json.Unmarshal([]byte(contextRaw), &e.Record.Context); err != nil {
			return nil, fmt.Errorf("store: unmarshal context: %w", err)
		}
		if paramsRaw.Valid && paramsRaw.String != "" {
			if err := json.Unmarshal([]byte(paramsRaw.String), &e.Record.CustomParams); err != nil {
				return nil, fmt.Errorf("store: unmarshal custom params: %w", err)
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Purge deletes records older than the cutoff and returns how many went.
func (s *Store) Purge(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM error_records WHERE created_at < ?`, olderThan.UTC())
	if err != nil {
		return 0, fmt.Errorf("store: purge records: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("store: purge rows affected: %w", err)
	}
	if n > 0 {
		s.log.Info("purged error records", slog.Int64("count", n), slog.Time("older_than", olderThan))
	}
	return n, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func nullable(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}

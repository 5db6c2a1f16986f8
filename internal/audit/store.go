// Copyright (C) 2025 Dyne.org foundation
// designed, written and maintained by Denis Roio <jaromil@dyne.org>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

// Package audit persists one masked record per dispatched request in a
// local SQLite database.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"agentbridge/internal/dispatch"
)

// timeLayout has fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store is a SQLite-backed dispatch.AuditSink.
type Store struct {
	db     *sql.DB
	logger zerolog.Logger
}

var _ dispatch.AuditSink = (*Store)(nil)

// Open creates or opens the database at path. Parent directories are
// created as needed and the schema is applied.
func Open(path string, logger zerolog.Logger) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("creating audit directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening audit database: %w", err)
	}
	// Writers are serialized on a single connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &Store{db: db, logger: logger.With().Str("component", "audit").Logger()}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating audit schema: %w", err)
	}
	s.logger.Debug().Str("path", path).Msg("audit store initialized")
	return s, nil
}

func (s *Store) createSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS invocations (
			request_id    TEXT PRIMARY KEY,
			operation     TEXT NOT NULL,
			state         TEXT NOT NULL,
			success       INTEGER NOT NULL,
			exit_code     INTEGER NOT NULL,
			error_code    TEXT,
			error_message TEXT,
			arguments     TEXT,
			output        TEXT,
			stderr        TEXT,
			truncated     INTEGER NOT NULL,
			duration_ms   INTEGER NOT NULL,
			started_at    TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_invocations_started
			ON invocations(started_at);

		CREATE INDEX IF NOT EXISTS idx_invocations_operation
			ON invocations(operation, started_at);
	`)
	return err
}

// Record stores rec. Text fields are expected to be masked already.
func (s *Store) Record(ctx context.Context, rec dispatch.Record) error {
	if rec.StartedAt.IsZero() {
		rec.StartedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO invocations (
			request_id, operation, state, success, exit_code, error_code, error_message,
			arguments, output, stderr, truncated, duration_ms, started_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RequestID,
		rec.Operation,
		string(rec.State),
		rec.Success,
		rec.ExitCode,
		nullable(rec.ErrorCode),
		nullable(rec.ErrorMessage),
		nullable(rec.Arguments),
		rec.Output,
		rec.Stderr,
		rec.Truncated,
		rec.DurationMs,
		rec.StartedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting invocation: %w", err)
	}
	s.logger.Debug().Str("request_id", rec.RequestID).Str("operation", rec.Operation).Msg("invocation recorded")
	return nil
}

// Filter narrows List results.
type Filter struct {
	Operation string
	Since     time.Time
	// Limit defaults to 50 and is capped at 1000.
	Limit int
}

func normalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return 50
	case limit > 1000:
		return 1000
	default:
		return limit
	}
}

// List returns matching records, newest first.
func (s *Store) List(ctx context.Context, f Filter) ([]dispatch.Record, error) {
	var since *string
	if !f.Since.IsZero() {
		v := f.Since.UTC().Format(timeLayout)
		since = &v
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT request_id, operation, state, success, exit_code, error_code, error_message,
		       arguments, output, stderr, truncated, duration_ms, started_at
		FROM invocations
		WHERE (? = '' OR operation = ?)
		  AND (? IS NULL OR started_at >= ?)
		ORDER BY started_at DESC
		LIMIT ?`,
		f.Operation, f.Operation, since, since, normalizeLimit(f.Limit))
	if err != nil {
		return nil, fmt.Errorf("querying invocations: %w", err)
	}
	defer rows.Close()

	var out []dispatch.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating invocations: %w", err)
	}
	return out, nil
}

func scanRecord(scanner interface{ Scan(dest ...any) error }) (dispatch.Record, error) {
	var rec dispatch.Record
	var state, startedAt string
	var errorCode, errorMessage, arguments sql.NullString
	if err := scanner.Scan(
		&rec.RequestID,
		&rec.Operation,
		&state,
		&rec.Success,
		&rec.ExitCode,
		&errorCode,
		&errorMessage,
		&arguments,
		&rec.Output,
		&rec.Stderr,
		&rec.Truncated,
		&rec.DurationMs,
		&startedAt,
	); err != nil {
		return rec, fmt.Errorf("scanning invocation: %w", err)
	}
	rec.State = dispatch.State(state)
	rec.ErrorCode = errorCode.String
	rec.ErrorMessage = errorMessage.String
	rec.Arguments = arguments.String

	ts, err := time.Parse(timeLayout, startedAt)
	if err != nil {
		return rec, fmt.Errorf("parsing timestamp: %w", err)
	}
	rec.StartedAt = ts
	return rec, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

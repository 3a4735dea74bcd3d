// Package sqlite stores the mutation journal in a local SQLite file using
// the pure-Go modernc driver, opened in WAL mode.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/FranciscoTerron/ma-piscinas-sub000/internal/coordinator/journal"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS journal_entries (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    subject      TEXT NOT NULL,
    operation    TEXT NOT NULL,
    status       TEXT NOT NULL,
    step         TEXT NOT NULL DEFAULT '',
    payload      TEXT,
    errors       TEXT NOT NULL DEFAULT '[]',
    trace_id     TEXT NOT NULL DEFAULT '',
    span_id      TEXT NOT NULL DEFAULT '',
    recorded_at  TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_journal_subject ON journal_entries(subject, recorded_at);
CREATE INDEX IF NOT EXISTS idx_journal_trace_id ON journal_entries(trace_id);
`

type Repository struct {
	db *sql.DB
}

var _ journal.Repository = (*Repository)(nil)

// Open opens (or creates) the database at path and applies the schema.
func Open(path string) (*Repository, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("journal: open %q: %w", path, err)
	}

	// single writer
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("journal: apply schema: %w", err)
	}

	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}

func (r *Repository) Save(ctx context.Context, e *journal.Entry) error {
	const q = `
		INSERT INTO journal_entries
			(subject, operation, status, step, payload, errors, trace_id, span_id, recorded_at)
		VALUES
			(?, ?, ?, ?, ?, ?, ?, ?, ?)`

	var payload any
	if e.Payload != "" {
		payload = e.Payload
	}

	_, err := r.db.ExecContext(ctx, q,
		e.Subject,
		e.Operation,
		string(e.Status),
		e.Step,
		payload,
		e.Errors,
		e.TraceID,
		e.SpanID,
		formatTime(e.RecordedAt),
	)
	if err != nil {
		return fmt.Errorf("journal: save %s for %q: %w", e.Operation, e.Subject, err)
	}
	return nil
}

// List returns up to limit entries for subject, newest first.
func (r *Repository) List(ctx context.Context, subject string, limit int) ([]journal.Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	const q = `
		SELECT subject, operation, status, step, COALESCE(payload, ''), errors,
		       trace_id, span_id, recorded_at
		FROM   journal_entries
		WHERE  subject = ?
		ORDER  BY recorded_at DESC, id DESC
		LIMIT  ?`

	rows, err := r.db.QueryContext(ctx, q, subject, limit)
	if err != nil {
		return nil, fmt.Errorf("journal: list %q: %w", subject, err)
	}
	defer rows.Close()

	var out []journal.Entry
	for rows.Next() {
		var (
			e          journal.Entry
			status     string
			recordedAt string
		)
		if err := rows.Scan(&e.Subject, &e.Operation, &status, &e.Step, &e.Payload, &e.Errors,
			&e.TraceID, &e.SpanID, &recordedAt); err != nil {
			return nil, fmt.Errorf("journal: scan: %w", err)
		}
		e.Status = journal.Status(status)
		if e.RecordedAt, err = parseTime(recordedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

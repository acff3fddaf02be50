// Package journal records delivered host events and bridge diagnostics in
// DuckDB, so a session can be inspected after the fact.
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/joeblew999/plat-mapbridge/internal/bridge"
	"github.com/joeblew999/plat-mapbridge/internal/event"
)

var schema = []string{
	`CREATE SEQUENCE IF NOT EXISTS bridge_journal_id`,
	`CREATE TABLE IF NOT EXISTS bridge_journal (
		id      BIGINT DEFAULT nextval('bridge_journal_id') PRIMARY KEY,
		view_id VARCHAR NOT NULL,
		kind    VARCHAR NOT NULL,
		name    VARCHAR NOT NULL,
		seq     BIGINT,
		payload VARCHAR,
		at      TIMESTAMP NOT NULL
	)`,
}

// Entry kinds.
const (
	KindEvent      = "event"
	KindDiagnostic = "diagnostic"
)

// Entry is one journal row.
type Entry struct {
	Kind    string          `json:"kind" doc:"event or diagnostic"`
	Name    string          `json:"name" doc:"Event method or diagnostic kind"`
	Seq     uint64          `json:"seq,omitempty" doc:"Event sequence number"`
	Payload json.RawMessage `json:"payload,omitempty"`
	At      time.Time       `json:"at"`
}

// Journal writes to a bridge_journal table.
type Journal struct {
	db  *sql.DB
	log *slog.Logger
}

// New creates the journal schema if needed.
func New(ctx context.Context, db *sql.DB, log *slog.Logger) (*Journal, error) {
	if log == nil {
		log = slog.Default()
	}
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("create journal schema: %w", err)
		}
	}
	return &Journal{db: db, log: log}, nil
}

// RecordEvent stores a delivered event.
func (j *Journal) RecordEvent(ctx context.Context, viewID string, e event.Event) error {
	var payload any
	if e.Arguments != nil {
		b, err := json.Marshal(e.Arguments)
		if err != nil {
			return fmt.Errorf("marshal event arguments: %w", err)
		}
		payload = string(b)
	}
	return j.insert(ctx, viewID, KindEvent, string(e.Method), int64(e.Seq), payload, time.Now())
}

// RecordDiagnostic stores a bridge diagnostic.
func (j *Journal) RecordDiagnostic(ctx context.Context, viewID string, d bridge.Diagnostic) error {
	b, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshal diagnostic: %w", err)
	}
	at := d.Time
	if at.IsZero() {
		at = time.Now()
	}
	return j.insert(ctx, viewID, KindDiagnostic, string(d.Kind), nil, string(b), at)
}

func (j *Journal) insert(ctx context.Context, viewID, kind, name string, seq, payload any, at time.Time) error {
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO bridge_journal (view_id, kind, name, seq, payload, at) VALUES (?, ?, ?, ?, ?, ?)`,
		viewID, kind, name, seq, payload, at.UTC())
	if err != nil {
		return fmt.Errorf("insert journal %s: %w", kind, err)
	}
	return nil
}

// Sink returns an event sink that journals events of one view. Write
// failures are logged, never propagated to the emitter.
func (j *Journal) Sink(viewID string) event.Sink {
	return event.SinkFunc(func(e event.Event) {
		if err := j.RecordEvent(context.Background(), viewID, e); err != nil {
			j.log.Warn("journal_event_failed", "view", viewID, "error", err)
		}
	})
}

// Diagnostics returns a bridge diagnostic hook that journals for one view.
func (j *Journal) Diagnostics(viewID string) func(bridge.Diagnostic) {
	return func(d bridge.Diagnostic) {
		if err := j.RecordDiagnostic(context.Background(), viewID, d); err != nil {
			j.log.Warn("journal_diagnostic_failed", "view", viewID, "error", err)
		}
	}
}

// Recent returns up to limit entries of a view, newest first.
func (j *Journal) Recent(ctx context.Context, viewID string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := j.db.QueryContext(ctx,
		`SELECT kind, name, seq, payload, at FROM bridge_journal WHERE view_id = ? ORDER BY id DESC LIMIT ?`,
		viewID, limit)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var (
			e       Entry
			seq     sql.NullInt64
			payload sql.NullString
		)
		if err := rows.Scan(&e.Kind, &e.Name, &seq, &payload, &e.At); err != nil {
			return nil, fmt.Errorf("scan journal: %w", err)
		}
		if seq.Valid {
			e.Seq = uint64(seq.Int64)
		}
		if payload.Valid {
			e.Payload = json.RawMessage(payload.String)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Delete removes every entry of a view.
func (j *Journal) Delete(ctx context.Context, viewID string) error {
	if _, err := j.db.ExecContext(ctx, `DELETE FROM bridge_journal WHERE view_id = ?`, viewID); err != nil {
		return fmt.Errorf("delete journal: %w", err)
	}
	return nil
}

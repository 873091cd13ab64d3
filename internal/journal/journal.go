// Package journal keeps an SQLite audit log of decision fetch outcomes.
// It is write-only from the hall's point of view: nothing is restored from it.
package journal

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

// Entry is one fetch outcome.
type Entry struct {
	ID         uuid.UUID           `db:"id"`
	CycleID    uuid.UUID           `db:"cycle_id"`
	Generation int64               `db:"generation"`
	AgentID    string              `db:"agent_id"`
	AgentKind  string              `db:"agent_kind"`
	Symbol     string              `db:"symbol"`
	Quote      string              `db:"quote"`
	Action     string              `db:"action"`
	Confidence float64             `db:"confidence"`
	Reasoning  string              `db:"reasoning"`
	Price      decimal.NullDecimal `db:"price"`
	ErrorKind  string              `db:"error_kind"` // empty on success
	ErrorText  string              `db:"error_text"`
	LatencyMS  int64               `db:"latency_ms"`
	RecordedMS int64               `db:"recorded_at_ms"`
}

// Failed reports whether the entry records a failed fetch.
func (e Entry) Failed() bool { return e.ErrorKind != "" }

// RecordedAt returns the time the outcome was recorded.
func (e Entry) RecordedAt() time.Time { return time.UnixMilli(e.RecordedMS) }

// KindCount is the number of outcomes per error kind ("" for successes).
type KindCount struct {
	ErrorKind string `db:"error_kind"`
	Count     int64  `db:"n"`
}

// Journal wraps a SQLite connection.
type Journal struct {
	conn *sqlx.DB
}

// Open opens or creates a journal at the given path.
func Open(path string) (*Journal, error) {
	conn, err := sqlx.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}

	j := &Journal{conn: conn}
	if err := j.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate journal: %w", err)
	}
	return j, nil
}

// Close closes the database connection.
func (j *Journal) Close() error {
	return j.conn.Close()
}

func (j *Journal) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS outcomes (
		id TEXT PRIMARY KEY,
		cycle_id TEXT NOT NULL,
		generation INTEGER NOT NULL,
		agent_id TEXT NOT NULL,
		agent_kind TEXT NOT NULL,
		symbol TEXT NOT NULL,
		quote TEXT NOT NULL,
		action TEXT NOT NULL,
		confidence REAL NOT NULL,
		reasoning TEXT NOT NULL,
		price TEXT,
		error_kind TEXT NOT NULL,
		error_text TEXT NOT NULL,
		latency_ms INTEGER NOT NULL,
		recorded_at_ms INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_outcomes_recorded ON outcomes(recorded_at_ms);
	CREATE INDEX IF NOT EXISTS idx_outcomes_cycle ON outcomes(cycle_id);
	`
	_, err := j.conn.Exec(schema)
	return err
}

// Record appends an outcome. A zero ID is replaced with a fresh one.
func (j *Journal) Record(ctx context.Context, e Entry) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	_, err := j.conn.NamedExecContext(ctx, `INSERT INTO outcomes
		(id, cycle_id, generation, agent_id, agent_kind, symbol, quote, action,
		 confidence, reasoning, price, error_kind, error_text, latency_ms, recorded_at_ms)
		VALUES (:id, :cycle_id, :generation, :agent_id, :agent_kind, :symbol, :quote, :action,
		 :confidence, :reasoning, :price, :error_kind, :error_text, :latency_ms, :recorded_at_ms)`, e)
	if err != nil {
		return fmt.Errorf("record outcome: %w", err)
	}
	return nil
}

// Recent returns the most recent n outcomes, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Entry, error) {
	var out []Entry
	err := j.conn.SelectContext(ctx, &out,
		"SELECT * FROM outcomes ORDER BY recorded_at_ms DESC, rowid DESC LIMIT ?",
		limit,
	)
	return out, err
}

// Cycle returns every outcome of one fetch cycle in the order recorded.
func (j *Journal) Cycle(ctx context.Context, id uuid.UUID) ([]Entry, error) {
	var out []Entry
	err := j.conn.SelectContext(ctx, &out,
		"SELECT * FROM outcomes WHERE cycle_id = ? ORDER BY rowid",
		id.String(),
	)
	return out, err
}

// CountByKind tallies outcomes by error kind.
func (j *Journal) CountByKind(ctx context.Context) ([]KindCount, error) {
	var out []KindCount
	err := j.conn.SelectContext(ctx, &out,
		"SELECT error_kind, COUNT(*) AS n FROM outcomes GROUP BY error_kind ORDER BY error_kind",
	)
	return out, err
}

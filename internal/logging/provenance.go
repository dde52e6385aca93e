package logging

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// #region types

// DecisionEntry is one row of the decision provenance log: enough to
// reconstruct why a request ended the way it did.
type DecisionEntry struct {
	RunID      string
	Domain     string
	Question   string
	Decision   string
	Reason     string
	Score      float64
	S1Norm     float64
	S2         float64
	CPAccept   bool
	Iterations int
	TraceJSON  string
	CreatedAt  time.Time
}

// #endregion types

// #region schema

const schema = `
CREATE TABLE IF NOT EXISTS decision_log (
	run_id     TEXT NOT NULL,
	domain     TEXT NOT NULL,
	question   TEXT NOT NULL,
	decision   TEXT NOT NULL,
	reason     TEXT,
	score      REAL NOT NULL,
	s1_norm    REAL NOT NULL,
	s2         REAL NOT NULL,
	cp_accept  INTEGER NOT NULL,
	iterations INTEGER NOT NULL,
	trace_json TEXT,
	created_at TEXT NOT NULL
);
`

// Migrate creates the decision log table.
func Migrate(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("migrate decision log: %w", err)
	}
	return nil
}

// #endregion schema

// #region log-decision

// LogDecision appends one provenance row.
func LogDecision(db *sql.DB, entry DecisionEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := db.Exec(
		`INSERT INTO decision_log (run_id, domain, question, decision, reason, score, s1_norm, s2, cp_accept, iterations, trace_json, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.RunID,
		entry.Domain,
		entry.Question,
		entry.Decision,
		nullIfEmpty(entry.Reason),
		entry.Score,
		entry.S1Norm,
		entry.S2,
		boolInt(entry.CPAccept),
		entry.Iterations,
		nullIfEmpty(entry.TraceJSON),
		entry.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("log decision: %w", err)
	}
	return nil
}

// #endregion log-decision

// #region recent

// Recent returns the newest n entries, newest first.
func Recent(db *sql.DB, n int) ([]DecisionEntry, error) {
	rows, err := db.Query(
		`SELECT run_id, domain, question, decision, COALESCE(reason, ''), score, s1_norm, s2, cp_accept, iterations, COALESCE(trace_json, ''), created_at
		 FROM decision_log ORDER BY created_at DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("query decision log: %w", err)
	}
	defer rows.Close()

	var out []DecisionEntry
	for rows.Next() {
		var e DecisionEntry
		var cpAccept int
		var created string
		if err := rows.Scan(&e.RunID, &e.Domain, &e.Question, &e.Decision, &e.Reason,
			&e.Score, &e.S1Norm, &e.S2, &cpAccept, &e.Iterations, &e.TraceJSON, &created); err != nil {
			return nil, fmt.Errorf("scan decision row: %w", err)
		}
		e.CPAccept = cpAccept != 0
		if e.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
			return nil, fmt.Errorf("parse created_at: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// #endregion recent

// #region helpers

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// #endregion helpers

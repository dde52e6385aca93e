package calibration

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS calibration_artifacts (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id      TEXT NOT NULL,
	domain      TEXT NOT NULL,
	score       REAL NOT NULL,
	raw         REAL NOT NULL DEFAULT 0,
	accepted    INTEGER NOT NULL,
	correct     INTEGER NOT NULL,
	created_at  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_artifacts_domain ON calibration_artifacts(domain, created_at);

CREATE TABLE IF NOT EXISTS domain_references (
	domain              TEXT PRIMARY KEY,
	tau                 REAL,
	target_miscoverage  REAL NOT NULL,
	quantile_curve      TEXT NOT NULL,
	uncertainty_curve   TEXT NOT NULL DEFAULT '[]',
	stats_json          TEXT NOT NULL,
	updated_at          TEXT NOT NULL
);
`

// #endregion schema

// #region store-struct
// Store persists calibration artifacts and per-domain references in SQLite.
// Artifacts are append-only; references are upserted per calibration run.
type Store struct {
	db *sql.DB
}

// #endregion store-struct

// #region constructor
// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// NewStoreWithDB wraps an existing database handle and runs migrations.
func NewStoreWithDB(db *sql.DB) (*Store, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// #endregion constructor

// #region close
// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for use by other packages (e.g. logging).
func (s *Store) DB() *sql.DB {
	return s.db
}

// #endregion close

// #region append
// Append records one calibration artifact. A missing run id is filled in.
func (s *Store) Append(a Artifact) error {
	if a.RunID == "" {
		a.RunID = uuid.New().String()
	}
	if a.Timestamp.IsZero() {
		a.Timestamp = time.Now().UTC()
	}
	_, err := s.db.Exec(
		`INSERT INTO calibration_artifacts (run_id, domain, score, raw, accepted, correct, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.RunID, a.Domain, a.S, a.Raw, boolInt(a.Accepted), boolInt(a.Correct),
		a.Timestamp.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("append artifact: %w", err)
	}
	return nil
}

// #endregion append

// #region artifacts-for-domain
// ArtifactsForDomain returns all artifacts for a domain, oldest first.
func (s *Store) ArtifactsForDomain(domain string) ([]Artifact, error) {
	rows, err := s.db.Query(
		`SELECT run_id, domain, score, raw, accepted, correct, created_at
		 FROM calibration_artifacts WHERE domain = ? ORDER BY created_at ASC, id ASC`,
		domain,
	)
	if err != nil {
		return nil, fmt.Errorf("query artifacts: %w", err)
	}
	defer rows.Close()
	return scanArtifacts(rows)
}

// RecentArtifacts returns the newest `limit` artifacts for a domain, oldest first.
func (s *Store) RecentArtifacts(domain string, limit int) ([]Artifact, error) {
	rows, err := s.db.Query(
		`SELECT run_id, domain, score, raw, accepted, correct, created_at FROM (
		   SELECT run_id, domain, score, raw, accepted, correct, created_at, id
		   FROM calibration_artifacts WHERE domain = ?
		   ORDER BY created_at DESC, id DESC LIMIT ?
		 ) ORDER BY created_at ASC, id ASC`,
		domain, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query recent artifacts: %w", err)
	}
	defer rows.Close()
	return scanArtifacts(rows)
}

func scanArtifacts(rows *sql.Rows) ([]Artifact, error) {
	var out []Artifact
	for rows.Next() {
		var a Artifact
		var accepted, correct int
		var createdStr string
		if err := rows.Scan(&a.RunID, &a.Domain, &a.S, &a.Raw, &accepted, &correct, &createdStr); err != nil {
			return nil, fmt.Errorf("scan artifact: %w", err)
		}
		a.Accepted = accepted != 0
		a.Correct = correct != 0
		a.Timestamp, _ = time.Parse(time.RFC3339Nano, createdStr)
		out = append(out, a)
	}
	return out, rows.Err()
}

// #endregion artifacts-for-domain

// #region reference
// UpsertReference writes the per-domain reference row.
func (s *Store) UpsertReference(ref Reference) error {
	curveJSON, err := json.Marshal(ref.QuantileCurve)
	if err != nil {
		return fmt.Errorf("marshal curve: %w", err)
	}
	uqCurveJSON, err := json.Marshal(ref.UncertaintyCurve)
	if err != nil {
		return fmt.Errorf("marshal uncertainty curve: %w", err)
	}
	statsJSON, err := json.Marshal(ref.Stats)
	if err != nil {
		return fmt.Errorf("marshal stats: %w", err)
	}
	if ref.UpdatedAt.IsZero() {
		ref.UpdatedAt = time.Now().UTC()
	}

	var tauPtr interface{}
	if ref.Tau != nil {
		tauPtr = *ref.Tau
	}

	_, err = s.db.Exec(
		`INSERT INTO domain_references (domain, tau, target_miscoverage, quantile_curve, uncertainty_curve, stats_json, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(domain) DO UPDATE SET
		   tau = excluded.tau,
		   target_miscoverage = excluded.target_miscoverage,
		   quantile_curve = excluded.quantile_curve,
		   uncertainty_curve = excluded.uncertainty_curve,
		   stats_json = excluded.stats_json,
		   updated_at = excluded.updated_at`,
		ref.Domain, tauPtr, ref.TargetMiscoverage, string(curveJSON), string(uqCurveJSON), string(statsJSON),
		ref.UpdatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("upsert reference: %w", err)
	}
	return nil
}

// Reference reads the cached per-domain reference. Returns (nil, nil)
// when the domain has never been calibrated.
func (s *Store) Reference(domain string) (*Reference, error) {
	var ref Reference
	var tau sql.NullFloat64
	var curveJSON, uqCurveJSON, statsJSON, updatedStr string

	err := s.db.QueryRow(
		`SELECT domain, tau, target_miscoverage, quantile_curve, uncertainty_curve, stats_json, updated_at
		 FROM domain_references WHERE domain = ?`, domain,
	).Scan(&ref.Domain, &tau, &ref.TargetMiscoverage, &curveJSON, &uqCurveJSON, &statsJSON, &updatedStr)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get reference %s: %w", domain, err)
	}

	if tau.Valid {
		v := tau.Float64
		ref.Tau = &v
	}
	if err := json.Unmarshal([]byte(curveJSON), &ref.QuantileCurve); err != nil {
		return nil, fmt.Errorf("unmarshal curve: %w", err)
	}
	if err := json.Unmarshal([]byte(uqCurveJSON), &ref.UncertaintyCurve); err != nil {
		return nil, fmt.Errorf("unmarshal uncertainty curve: %w", err)
	}
	if err := json.Unmarshal([]byte(statsJSON), &ref.Stats); err != nil {
		return nil, fmt.Errorf("unmarshal stats: %w", err)
	}
	ref.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedStr)
	return &ref, nil
}

// Tau returns the calibrated threshold for a domain, or nil when
// calibration is unavailable. Satisfies gate.ThresholdSupplier.
func (s *Store) Tau(domain string) (*float64, error) {
	ref, err := s.Reference(domain)
	if err != nil {
		return nil, err
	}
	if ref == nil {
		return nil, nil
	}
	return ref.Tau, nil
}

// #endregion reference

// #region helpers
func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// #endregion helpers

package approval

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// #region types

// Status is the lifecycle state of an approval ticket.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusDenied   Status = "denied"
)

// Ticket is one human-approval request. Context carries what the
// approver needs to decide, e.g. the tool name and its arguments.
type Ticket struct {
	ID        string
	Status    Status
	Context   map[string]string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Expired reports whether the ticket's TTL has elapsed.
func (t *Ticket) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// ErrNotFound is returned when a ticket id does not exist.
var ErrNotFound = errors.New("ticket not found")

// ErrNotPending is returned when resolving a ticket that already left
// the pending state.
var ErrNotPending = errors.New("ticket not pending")

// #endregion types

// #region schema

const schema = `
CREATE TABLE IF NOT EXISTS approval_tickets (
	id TEXT PRIMARY KEY,
	status TEXT NOT NULL,
	context TEXT NOT NULL,
	created_at TEXT NOT NULL,
	expires_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tickets_status ON approval_tickets(status);
`

// #endregion schema

// #region store

// Store persists approval tickets in SQLite so a suspended refinement
// can be resumed by a later process.
type Store struct {
	db  *sql.DB
	ttl time.Duration
}

// NewStore opens (and migrates) the ticket database.
func NewStore(dbPath string, ttl time.Duration) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open approval db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	return newStore(db, ttl)
}

// NewStoreWithDB wraps an existing handle; used by tests.
func NewStoreWithDB(db *sql.DB, ttl time.Duration) (*Store, error) {
	return newStore(db, ttl)
}

func newStore(db *sql.DB, ttl time.Duration) (*Store, error) {
	if ttl <= 0 {
		ttl = time.Hour
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate approval schema: %w", err)
	}
	return &Store{db: db, ttl: ttl}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// #endregion store

// #region create

// Create opens a pending ticket with a fresh id and the store's TTL.
func (s *Store) Create(context map[string]string) (*Ticket, error) {
	now := time.Now().UTC()
	t := &Ticket{
		ID:        uuid.NewString(),
		Status:    StatusPending,
		Context:   context,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	ctxJSON, err := json.Marshal(t.Context)
	if err != nil {
		return nil, fmt.Errorf("marshal ticket context: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO approval_tickets (id, status, context, created_at, expires_at) VALUES (?, ?, ?, ?, ?)`,
		t.ID, string(t.Status), string(ctxJSON),
		t.CreatedAt.Format(time.RFC3339Nano), t.ExpiresAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("insert ticket: %w", err)
	}
	log.Printf("[APPROVAL] ticket %s created for %s", t.ID, context["tool"])
	return t, nil
}

// #endregion create

// #region read

// Get loads one ticket by id.
func (s *Store) Get(id string) (*Ticket, error) {
	row := s.db.QueryRow(
		`SELECT id, status, context, created_at, expires_at FROM approval_tickets WHERE id = ?`, id)
	return scanTicket(row)
}

// Pending returns all pending, unexpired tickets, oldest first.
func (s *Store) Pending() ([]*Ticket, error) {
	rows, err := s.db.Query(
		`SELECT id, status, context, created_at, expires_at FROM approval_tickets
		 WHERE status = ? ORDER BY created_at ASC`, string(StatusPending))
	if err != nil {
		return nil, fmt.Errorf("query pending tickets: %w", err)
	}
	defer rows.Close()

	now := time.Now().UTC()
	var out []*Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		if t.Expired(now) {
			continue
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTicket(row rowScanner) (*Ticket, error) {
	var t Ticket
	var status, ctxJSON, created, expires string
	err := row.Scan(&t.ID, &status, &ctxJSON, &created, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan ticket: %w", err)
	}
	t.Status = Status(status)
	if err := json.Unmarshal([]byte(ctxJSON), &t.Context); err != nil {
		return nil, fmt.Errorf("unmarshal ticket context: %w", err)
	}
	if t.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if t.ExpiresAt, err = time.Parse(time.RFC3339Nano, expires); err != nil {
		return nil, fmt.Errorf("parse expires_at: %w", err)
	}
	return &t, nil
}

// #endregion read

// #region resolve

// Approve moves a pending ticket to approved.
func (s *Store) Approve(id string) error {
	return s.resolve(id, StatusApproved)
}

// Deny moves a pending ticket to denied.
func (s *Store) Deny(id string) error {
	return s.resolve(id, StatusDenied)
}

func (s *Store) resolve(id string, to Status) error {
	res, err := s.db.Exec(
		`UPDATE approval_tickets SET status = ? WHERE id = ? AND status = ?`,
		string(to), id, string(StatusPending))
	if err != nil {
		return fmt.Errorf("resolve ticket: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("resolve ticket: %w", err)
	}
	if n == 0 {
		if _, err := s.Get(id); errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return ErrNotPending
	}
	log.Printf("[APPROVAL] ticket %s -> %s", id, to)
	return nil
}

// Consume deletes a resolved ticket after the orchestrator has read its
// outcome. Pending tickets cannot be consumed.
func (s *Store) Consume(id string) error {
	res, err := s.db.Exec(
		`DELETE FROM approval_tickets WHERE id = ? AND status != ?`,
		id, string(StatusPending))
	if err != nil {
		return fmt.Errorf("consume ticket: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("consume ticket: %w", err)
	}
	if n == 0 {
		if _, err := s.Get(id); errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return ErrNotPending
	}
	return nil
}

// PruneExpired removes pending tickets past their TTL. Returns the
// number pruned.
func (s *Store) PruneExpired() (int, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.Exec(
		`DELETE FROM approval_tickets WHERE status = ? AND expires_at < ?`,
		string(StatusPending), now)
	if err != nil {
		return 0, fmt.Errorf("prune tickets: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune tickets: %w", err)
	}
	if n > 0 {
		log.Printf("[APPROVAL] pruned %d expired tickets", n)
	}
	return int(n), nil
}

// #endregion resolve

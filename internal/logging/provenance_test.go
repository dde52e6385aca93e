package logging

import (
	"database/sql"
	"testing"
	"time"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestLogDecisionAndRecent(t *testing.T) {
	db := setupDB(t)

	err := LogDecision(db, DecisionEntry{
		RunID:      "r1",
		Domain:     "geography",
		Question:   "capital of norway?",
		Decision:   "accept",
		Reason:     "gate pass",
		Score:      0.91,
		S1Norm:     0.1,
		S2:         0.92,
		CPAccept:   true,
		Iterations: 1,
		CreatedAt:  time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("log decision: %v", err)
	}

	entries, err := Recent(db, 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	e := entries[0]
	if e.Decision != "accept" || !e.CPAccept || e.Score != 0.91 {
		t.Fatalf("unexpected entry %+v", e)
	}
}

func TestLogDecisionZeroCreatedAt(t *testing.T) {
	db := setupDB(t)
	if err := LogDecision(db, DecisionEntry{RunID: "r2", Domain: "d", Question: "q", Decision: "abstain"}); err != nil {
		t.Fatalf("log decision: %v", err)
	}
	entries, err := Recent(db, 1)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if entries[0].CreatedAt.IsZero() {
		t.Fatal("created_at must be filled in")
	}
}

func TestRecentNewestFirst(t *testing.T) {
	db := setupDB(t)
	base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		err := LogDecision(db, DecisionEntry{
			RunID:     string(rune('a' + i)),
			Domain:    "d",
			Question:  "q",
			Decision:  "iterate",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("log decision: %v", err)
		}
	}
	entries, err := Recent(db, 2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(entries) != 2 || entries[0].RunID != "c" || entries[1].RunID != "b" {
		t.Fatalf("unexpected order %+v", entries)
	}
}

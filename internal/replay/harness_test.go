package replay

import (
	"path/filepath"
	"strings"
	"testing"
)

// TestFixture_Decisions loads the recorded session and replays every
// turn through the live decision pipeline. If policy or gate semantics
// change, the expected actions here catch the drift.
func TestFixture_Decisions(t *testing.T) {
	f, err := LoadFixture(filepath.Join("testdata", "decisions.json"))
	if err != nil {
		t.Fatalf("LoadFixture: %v", err)
	}

	results, summary := Replay(f)
	if summary.Total != 4 {
		t.Fatalf("expected 4 turns, got %d", summary.Total)
	}
	for _, r := range results {
		if !r.Match {
			t.Errorf("turn %s: got %s, expected %s (S=%.4f)", r.TurnID, r.Decision, r.Expected, r.S)
		}
	}
	if summary.Matched != summary.Total {
		t.Fatalf("summary mismatch: %+v", summary)
	}
	if summary.Decisions["accept"] != 1 || summary.Decisions["iterate"] != 2 || summary.Decisions["abstain"] != 1 {
		t.Fatalf("unexpected decision mix: %v", summary.Decisions)
	}
}

func TestMissingCalibrationDuringReplay(t *testing.T) {
	f := &Fixture{
		Policy: FixturePolicy{W1: 0.5, W2: 0.5, TauAccept: 0.8, Delta: 0.1, GateEnabled: true, Tau: nil},
		Turns: []FixtureTurn{
			{TurnID: "t1", S1Norm: 0.1, S2: 0.95},
		},
	}
	results, _ := Replay(f)
	if results[0].CPAccept {
		t.Fatal("missing tau must reject at the gate")
	}
	if results[0].Decision == "accept" {
		t.Fatal("missing calibration must not accept")
	}
}

func TestLoadFixtureErrors(t *testing.T) {
	if _, err := LoadFixture("testdata/nope.json"); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestRenderSummaryListsMismatches(t *testing.T) {
	f := &Fixture{
		Description: "session",
		Policy:      FixturePolicy{W1: 0.5, W2: 0.5, TauAccept: 0.8, Delta: 0.1},
		Turns: []FixtureTurn{
			{TurnID: "t1", S1Norm: 0.1, S2: 0.95, Expected: "abstain"}, // wrong on purpose
		},
	}
	results, summary := Replay(f)
	out := RenderSummary(f, results, summary)
	if !strings.Contains(out, "MISMATCH t1") {
		t.Fatalf("mismatch not rendered:\n%s", out)
	}
}

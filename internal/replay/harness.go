package replay

import (
	"fmt"
	"log"
	"strings"

	"credence/internal/gate"
	"credence/internal/refine"
)

// #region types

// TurnResult is one replayed decision compared against the recording.
type TurnResult struct {
	TurnID   string
	S        float64
	CPAccept bool
	Decision string
	Expected string
	Match    bool
}

// Summary aggregates one replay run.
type Summary struct {
	Total     int
	Matched   int
	Decisions map[string]int
}

// fixedTau serves the recorded threshold to the gate.
type fixedTau struct{ tau *float64 }

func (f fixedTau) Tau(domain string) (*float64, error) {
	return f.tau, nil
}

// #endregion types

// #region replay

// Replay pushes every recorded turn through the scoring and decision
// pipeline and compares the outcome against the recorded expectation.
// This is the primary regression net: if policy or gate semantics
// change, fixture mismatches catch the drift.
func Replay(f *Fixture) ([]TurnResult, Summary) {
	policy := refine.PolicyConfig{
		W1:        f.Policy.W1,
		W2:        f.Policy.W2,
		TauAccept: f.Policy.TauAccept,
		Delta:     f.Policy.Delta,
	}
	g := gate.New(f.Policy.GateEnabled, fixedTau{tau: f.Policy.Tau})

	results := make([]TurnResult, 0, len(f.Turns))
	summary := Summary{Decisions: make(map[string]int)}

	for _, turn := range f.Turns {
		s := policy.FinalScore(turn.S1Norm, turn.S2)
		cp := g.Accept("replay", s)
		issues := append([]string{}, turn.Issues...)
		if !cp && g.LastReason() == "missing_tau" {
			issues = append(issues, refine.IssueCPMissingCalibration)
		}
		decision := policy.Decide(refine.ScoreState{
			S1Norm:   turn.S1Norm,
			S2:       turn.S2,
			S:        s,
			CPAccept: cp,
			Issues:   issues,
			NeedsFix: turn.NeedsFix,
		})

		r := TurnResult{
			TurnID:   turn.TurnID,
			S:        s,
			CPAccept: cp,
			Decision: string(decision),
			Expected: turn.Expected,
			Match:    turn.Expected == "" || turn.Expected == string(decision),
		}
		results = append(results, r)
		summary.Total++
		summary.Decisions[r.Decision]++
		if r.Match {
			summary.Matched++
		} else {
			log.Printf("[REPLAY] turn %s: got %s, expected %s (S=%.4f)", r.TurnID, r.Decision, r.Expected, r.S)
		}
	}
	return results, summary
}

// #endregion replay

// #region render

// RenderSummary formats a replay summary for CLI output.
func RenderSummary(f *Fixture, results []TurnResult, s Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", f.Description)
	fmt.Fprintf(&b, "turns: %d  matched: %d\n", s.Total, s.Matched)
	for decision, count := range s.Decisions {
		fmt.Fprintf(&b, "  %s: %d\n", decision, count)
	}
	for _, r := range results {
		if !r.Match {
			fmt.Fprintf(&b, "MISMATCH %s: got %s, expected %s (S=%.4f)\n", r.TurnID, r.Decision, r.Expected, r.S)
		}
	}
	return b.String()
}

// #endregion render

package refine

import "testing"

func TestDecideScenarios(t *testing.T) {
	p := PolicyConfig{W1: 0.5, W2: 0.5, TauAccept: 0.8, Delta: 0.1}

	cases := []struct {
		name string
		st   ScoreState
		want Decision
	}{
		{"borderline iterates", ScoreState{S: 0.75, CPAccept: true}, DecisionIterate},
		{"low score abstains", ScoreState{S: 0.6, CPAccept: true}, DecisionAbstain},
		{"clean pass accepts", ScoreState{S: 0.85, CPAccept: true}, DecisionAccept},
		{"gate reject blocks accept", ScoreState{S: 0.85, CPAccept: false}, DecisionIterate},
		{"needs_fix blocks accept", ScoreState{S: 0.85, CPAccept: true, NeedsFix: true}, DecisionIterate},
		{"exactly tau-delta iterates", ScoreState{S: 0.7, CPAccept: true}, DecisionIterate},
	}
	for _, tc := range cases {
		if got := p.Decide(tc.st); got != tc.want {
			t.Errorf("%s: got %s, want %s", tc.name, got, tc.want)
		}
	}
}

func TestFinalScoreBounds(t *testing.T) {
	p := PolicyConfig{W1: 0.5, W2: 0.5}
	for _, s1 := range []float64{0, 0.25, 0.5, 1} {
		for _, s2 := range []float64{0, 0.5, 1} {
			s := p.FinalScore(s1, s2)
			if s < 0 || s > 1 {
				t.Fatalf("score out of bounds: s1=%v s2=%v -> %v", s1, s2, s)
			}
		}
	}
	if got := p.FinalScore(0.2, 0.9); got != 0.5*0.8+0.5*0.9 {
		t.Fatalf("unexpected score %v", got)
	}
}

func TestHasIssue(t *testing.T) {
	st := ScoreState{Issues: []string{IssueMissingCitations}}
	if !st.HasIssue(IssueMissingCitations) || st.HasIssue(IssueMissingNumbers) {
		t.Fatal("issue lookup broken")
	}
}

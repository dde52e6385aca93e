package refine

// #region issues

// Issue tags shared between the verifier, tool selection, and the gate.
const (
	IssueMissingCitations     = "missing_citations"
	IssueMissingNumbers       = "missing_numbers"
	IssueMissingTableData     = "missing_table_data"
	IssueGovernance           = "governance"
	IssueCPMissingCalibration = "cp_missing_calibration"
)

// #endregion issues

// #region score-state

// ScoreState is one immutable scoring snapshot. One entry per iteration
// is appended to the trace, oldest first.
type ScoreState struct {
	S1Norm   float64
	S2       float64
	S        float64
	CPAccept bool
	Issues   []string
	NeedsFix bool
}

// HasIssue reports whether the snapshot carries the given issue tag.
func (s ScoreState) HasIssue(tag string) bool {
	for _, i := range s.Issues {
		if i == tag {
			return true
		}
	}
	return false
}

// #endregion score-state

// #region policy

// Decision is the outcome of one policy evaluation.
type Decision string

const (
	DecisionAccept  Decision = "accept"
	DecisionIterate Decision = "iterate"
	DecisionAbstain Decision = "abstain"
)

// PolicyConfig holds the scoring weights and decision thresholds.
// Immutable per request. With non-negative weights summing to 1 the
// final score stays in [0,1] for valid inputs.
type PolicyConfig struct {
	W1            float64
	W2            float64
	TauAccept     float64
	Delta         float64
	AcceptOnStall bool
}

// DefaultPolicy returns the stock decision policy.
func DefaultPolicy() PolicyConfig {
	return PolicyConfig{W1: 0.5, W2: 0.5, TauAccept: 0.8, Delta: 0.1}
}

// FinalScore combines inverted uncertainty and verifier score:
// w1*(1-s1_norm) + w2*s2.
func (p PolicyConfig) FinalScore(s1norm, s2 float64) float64 {
	return p.W1*(1-s1norm) + p.W2*s2
}

// Decide maps a score state to accept, iterate, or abstain. Accept
// requires the conformal gate, the accept threshold, and a clean
// verifier; scores within delta below the threshold iterate; anything
// lower abstains.
func (p PolicyConfig) Decide(st ScoreState) Decision {
	if st.CPAccept && st.S >= p.TauAccept && !st.NeedsFix {
		return DecisionAccept
	}
	if st.S >= p.TauAccept-p.Delta {
		return DecisionIterate
	}
	return DecisionAbstain
}

// #endregion policy

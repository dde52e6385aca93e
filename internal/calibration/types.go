package calibration

import "time"

// #region artifact

// Artifact is one append-only calibration record: the final score a run
// produced, the raw uncertainty value behind it, whether the gate
// accepted it, and whether the answer was correct.
type Artifact struct {
	RunID     string
	Domain    string
	Timestamp time.Time
	S         float64
	Raw       float64 // raw uncertainty score, unbounded
	Accepted  bool
	Correct   bool
}

// #endregion artifact

// #region reference

// QuantilePoint is one (value, probability) pair of a domain quantile curve.
// Probabilities are in [0,1]; values are non-decreasing once sorted.
type QuantilePoint struct {
	Value       float64 `json:"value"`
	Probability float64 `json:"probability"`
}

// Stats summarizes a domain's artifact set. Recomputed on demand by scan;
// never incrementally maintained.
type Stats struct {
	N               int     `json:"n"`
	Accepted        int     `json:"accepted"`
	FalseAccept     int     `json:"false_accept"`
	RateAccept      float64 `json:"rate_accept"`
	RateFalseAccept float64 `json:"rate_false_accept"`
}

// Reference is the per-domain calibration result cached for gate and
// estimator lookups. Tau is nil when no feasible threshold exists;
// callers must treat nil as "calibration unavailable", never as zero.
// QuantileCurve is over final scores and feeds drift detection;
// UncertaintyCurve is over raw uncertainty values and feeds estimator
// normalization. They live on different scales and are not
// interchangeable.
type Reference struct {
	Domain            string
	Tau               *float64
	TargetMiscoverage float64
	QuantileCurve     []QuantilePoint
	UncertaintyCurve  []QuantilePoint
	Stats             Stats
	UpdatedAt         time.Time
}

// #endregion reference

// #region drift

// DriftReport is the outcome of comparing recent artifact quantiles
// against the stored reference curve.
type DriftReport struct {
	Domain         string
	NeedsAttention bool
	MaxDelta       float64
	RecentN        int
	Reason         string
}

// #endregion drift

// quantileProbs are the fixed probabilities used for reference curves
// and drift comparison.
var quantileProbs = []float64{0.1, 0.25, 0.5, 0.75, 0.9}

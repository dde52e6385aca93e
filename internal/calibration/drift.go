package calibration

import (
	"fmt"
	"math"
)

// #region drift-config

// DriftConfig controls the recent-window quantile comparison.
type DriftConfig struct {
	Window    int     // recent artifacts considered
	Tolerance float64 // max per-quantile delta before flagging
	MinRecent int     // floor below which drift is never flagged
}

// DefaultDriftConfig returns the standard drift detection settings.
func DefaultDriftConfig() DriftConfig {
	return DriftConfig{
		Window:    200,
		Tolerance: 0.1,
		MinRecent: 20,
	}
}

// #endregion drift-config

// #region detect

// DetectDrift compares recent artifact quantiles against the stored
// reference curve. A domain needs attention only when the max quantile
// delta exceeds tolerance AND the recent sample size is at or above the
// floor; sparse domains never alarm.
func (s *Store) DetectDrift(domain string, cfg DriftConfig) (DriftReport, error) {
	report := DriftReport{Domain: domain}

	ref, err := s.Reference(domain)
	if err != nil {
		return report, err
	}
	if ref == nil || len(ref.QuantileCurve) == 0 {
		report.Reason = "no reference curve"
		return report, nil
	}

	recent, err := s.RecentArtifacts(domain, cfg.Window)
	if err != nil {
		return report, err
	}
	report.RecentN = len(recent)
	if len(recent) < cfg.MinRecent {
		report.Reason = fmt.Sprintf("recent sample %d below floor %d", len(recent), cfg.MinRecent)
		return report, nil
	}

	scores := make([]float64, len(recent))
	for i, a := range recent {
		scores[i] = a.S
	}
	current := ComputeQuantiles(scores)
	if len(current) != len(ref.QuantileCurve) {
		report.Reason = "quantile curve length mismatch"
		return report, nil
	}

	var maxDelta float64
	for i := range current {
		d := math.Abs(current[i].Value - ref.QuantileCurve[i].Value)
		if d > maxDelta {
			maxDelta = d
		}
	}
	report.MaxDelta = maxDelta

	if maxDelta > cfg.Tolerance {
		report.NeedsAttention = true
		report.Reason = fmt.Sprintf("max quantile delta %.4f exceeds tolerance %.4f", maxDelta, cfg.Tolerance)
	} else {
		report.Reason = fmt.Sprintf("max quantile delta %.4f within tolerance", maxDelta)
	}
	return report, nil
}

// #endregion detect

package calibration

import (
	"log"
	"sort"
	"time"
)

// #region compute-threshold

// ComputeThreshold scans candidate thresholds over the artifact set and
// returns the smallest tau whose false-accept rate among records with
// S >= tau stays within targetMiscoverage, subject to a minimum sample
// size. Returns nil when no feasible tau exists; callers must treat nil
// as "calibration unavailable", never as tau=0.
func ComputeThreshold(artifacts []Artifact, targetMiscoverage float64, minSamples int) *float64 {
	if len(artifacts) == 0 {
		return nil
	}

	// Candidate thresholds: sorted unique observed scores.
	seen := make(map[float64]struct{}, len(artifacts))
	var candidates []float64
	for _, a := range artifacts {
		if _, ok := seen[a.S]; !ok {
			seen[a.S] = struct{}{}
			candidates = append(candidates, a.S)
		}
	}
	sort.Float64s(candidates)

	for _, tau := range candidates {
		n := 0
		accepted := 0
		falseAccept := 0
		for _, a := range artifacts {
			if a.S < tau {
				continue
			}
			n++
			if a.Accepted {
				accepted++
				if !a.Correct {
					falseAccept++
				}
			}
		}
		if n < minSamples || accepted == 0 {
			continue
		}
		rate := float64(falseAccept) / float64(accepted)
		if rate <= targetMiscoverage {
			t := tau
			return &t // smallest feasible tau: most permissive threshold meeting the guarantee
		}
	}
	return nil
}

// #endregion compute-threshold

// #region stats

// ComputeStats derives domain aggregates from the full artifact set.
func ComputeStats(artifacts []Artifact) Stats {
	st := Stats{N: len(artifacts)}
	for _, a := range artifacts {
		if a.Accepted {
			st.Accepted++
			if !a.Correct {
				st.FalseAccept++
			}
		}
	}
	if st.N > 0 {
		st.RateAccept = float64(st.Accepted) / float64(st.N)
	}
	if st.Accepted > 0 {
		st.RateFalseAccept = float64(st.FalseAccept) / float64(st.Accepted)
	}
	return st
}

// #endregion stats

// #region quantiles

// ComputeQuantiles returns the quantile curve of the given scores at the
// fixed reference probabilities, using linear interpolation between order
// statistics. Empty input yields an empty curve.
func ComputeQuantiles(scores []float64) []QuantilePoint {
	if len(scores) == 0 {
		return nil
	}
	sorted := make([]float64, len(scores))
	copy(sorted, scores)
	sort.Float64s(sorted)

	curve := make([]QuantilePoint, 0, len(quantileProbs))
	for _, p := range quantileProbs {
		curve = append(curve, QuantilePoint{
			Value:       interpolateQuantile(sorted, p),
			Probability: p,
		})
	}
	return curve
}

func interpolateQuantile(sorted []float64, p float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := p * float64(len(sorted)-1)
	lo := int(pos)
	if lo >= len(sorted)-1 {
		return sorted[len(sorted)-1]
	}
	frac := pos - float64(lo)
	return sorted[lo] + frac*(sorted[lo+1]-sorted[lo])
}

// #endregion quantiles

// #region calibrate

// Calibrate runs a full calibration pass for a domain: threshold scan,
// stats, and both quantile curves over all artifacts, then upserts the
// reference row. The score curve feeds drift detection; the raw
// uncertainty curve feeds estimator normalization. Returns the stored
// reference.
func (s *Store) Calibrate(domain string, targetMiscoverage float64, minSamples int) (*Reference, error) {
	artifacts, err := s.ArtifactsForDomain(domain)
	if err != nil {
		return nil, err
	}

	scores := make([]float64, len(artifacts))
	raws := make([]float64, len(artifacts))
	for i, a := range artifacts {
		scores[i] = a.S
		raws[i] = a.Raw
	}

	ref := Reference{
		Domain:            domain,
		Tau:               ComputeThreshold(artifacts, targetMiscoverage, minSamples),
		TargetMiscoverage: targetMiscoverage,
		QuantileCurve:     ComputeQuantiles(scores),
		UncertaintyCurve:  ComputeQuantiles(raws),
		Stats:             ComputeStats(artifacts),
		UpdatedAt:         time.Now().UTC(),
	}
	if err := s.UpsertReference(ref); err != nil {
		return nil, err
	}

	if ref.Tau != nil {
		log.Printf("[CAL] domain=%s calibrated: tau=%.4f n=%d false_accept_rate=%.4f",
			domain, *ref.Tau, ref.Stats.N, ref.Stats.RateFalseAccept)
	} else {
		log.Printf("[CAL] domain=%s calibration unavailable (n=%d)", domain, ref.Stats.N)
	}
	return &ref, nil
}

// #endregion calibrate

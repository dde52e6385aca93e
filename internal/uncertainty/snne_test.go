package uncertainty

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"testing"

	"credence/internal/calibration"
)

// hashEmbedder produces a deterministic pseudo-embedding per text.
type hashEmbedder struct{}

func (hashEmbedder) Embed(_ context.Context, text string) ([]float64, error) {
	h := fnv.New64a()
	h.Write([]byte(text))
	seed := h.Sum64()
	vec := make([]float64, 8)
	for i := range vec {
		seed = seed*6364136223846793005 + 1442695040888963407
		vec[i] = float64(int64(seed>>32)) / float64(1<<31)
	}
	return vec, nil
}

type failingEmbedder struct{}

func (failingEmbedder) Embed(_ context.Context, _ string) ([]float64, error) {
	return nil, fmt.Errorf("embedding service down")
}

type stubRefs struct {
	ref *calibration.Reference
	err error
}

func (s stubRefs) Reference(domain string) (*calibration.Reference, error) {
	return s.ref, s.err
}

func TestEstimateBounds(t *testing.T) {
	e := NewEstimator(hashEmbedder{}, nil, nil, 60, DefaultConfig())
	res := e.Estimate(context.Background(), "what is the boiling point?", "100 degrees C", []string{"water boils at 100C"}, "science")

	if res.S1Norm < 0 || res.S1Norm > 1 {
		t.Fatalf("s1_norm %.4f out of [0,1]", res.S1Norm)
	}
	if len(res.Variants) < 2 {
		t.Fatalf("expected at least 2 samples, got %d", len(res.Variants))
	}
	if res.Fallback {
		t.Fatal("should not have fallen back")
	}
}

func TestLogisticNonIncreasing(t *testing.T) {
	prev := math.Inf(1)
	for raw := -20.0; raw <= 20.0; raw += 0.25 {
		v := logistic(raw)
		if v < 0 || v > 1 {
			t.Fatalf("logistic(%.2f)=%.4f out of [0,1]", raw, v)
		}
		if v > prev {
			t.Fatalf("logistic not non-increasing at raw=%.2f", raw)
		}
		prev = v
	}
}

func TestEmbeddingFailureDegradesToMaxUncertainty(t *testing.T) {
	e := NewEstimator(failingEmbedder{}, nil, nil, 60, DefaultConfig())
	res := e.Estimate(context.Background(), "q", "draft", nil, "d")

	if res.S1Norm != 1.0 {
		t.Fatalf("expected s1=1.0 on failure, got %.4f", res.S1Norm)
	}
	if !res.Fallback {
		t.Fatal("expected fallback flag")
	}
	if len(res.Variants) != 2 {
		t.Fatalf("expected synthesized two-sample set, got %d", len(res.Variants))
	}
}

func TestTemplateVariantsDeterministic(t *testing.T) {
	a := templateVariants("q", "draft", []string{"ev"}, 5)
	b := templateVariants("q", "draft", []string{"ev"}, 5)
	if len(a) != 5 || len(b) != 5 {
		t.Fatalf("expected 5 variants, got %d and %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("variant %d not deterministic", i)
		}
	}
	if a[0] != "draft" {
		t.Fatalf("draft must come first, got %q", a[0])
	}
}

func TestCalibratedNormalization(t *testing.T) {
	curve := []calibration.QuantilePoint{
		{Value: -10, Probability: 0.1},
		{Value: -5, Probability: 0.5},
		{Value: -1, Probability: 0.9},
	}
	refs := stubRefs{ref: &calibration.Reference{Domain: "d", UncertaintyCurve: curve}}
	e := NewEstimator(hashEmbedder{}, nil, refs, 60, DefaultConfig())

	res := e.Estimate(context.Background(), "q", "some draft answer", nil, "d")
	if !res.Calibrated {
		t.Fatal("expected calibrated normalization")
	}
	if res.S1Norm < 0 || res.S1Norm > 1 {
		t.Fatalf("s1_norm %.4f out of [0,1]", res.S1Norm)
	}
}

func TestNormalizationReadsRawCurveNotScoreCurve(t *testing.T) {
	// A calibrated reference carries two curves on different scales:
	// final scores in [0,1] and raw uncertainty values, which are
	// negative. Normalization must interpolate against the raw curve;
	// against the score curve every raw value clamps to the first knot
	// and the signal goes flat.
	ref := &calibration.Reference{
		Domain: "d",
		QuantileCurve: []calibration.QuantilePoint{
			{Value: 0.2, Probability: 0.1},
			{Value: 0.5, Probability: 0.5},
			{Value: 0.95, Probability: 0.9},
		},
		UncertaintyCurve: []calibration.QuantilePoint{
			{Value: -6, Probability: 0.1},
			{Value: -4, Probability: 0.5},
			{Value: -2, Probability: 0.9},
		},
	}
	e := NewEstimator(hashEmbedder{}, nil, stubRefs{ref: ref}, 60, DefaultConfig())

	lo, calibrated := e.normalize(-6, "d")
	if !calibrated {
		t.Fatal("expected calibrated normalization")
	}
	mid, _ := e.normalize(-4, "d")
	hi, _ := e.normalize(-2, "d")
	if math.Abs(mid-0.5) > 1e-9 {
		t.Fatalf("median raw must map to 0.5, got %.4f", mid)
	}
	if !(lo < mid && mid < hi) {
		t.Fatalf("normalization must vary with raw dispersion: %.4f %.4f %.4f", lo, mid, hi)
	}
}

func TestInterpolateCurveClamping(t *testing.T) {
	curve := []calibration.QuantilePoint{
		{Value: -4, Probability: 0.2},
		{Value: -2, Probability: 0.8},
	}
	if got := interpolateCurve(curve, -100); got != 0.2 {
		t.Fatalf("below curve: got %.4f want 0.2", got)
	}
	if got := interpolateCurve(curve, 100); got != 0.8 {
		t.Fatalf("above curve: got %.4f want 0.8", got)
	}
	mid := interpolateCurve(curve, -3)
	if math.Abs(mid-0.5) > 1e-9 {
		t.Fatalf("midpoint: got %.4f want 0.5", mid)
	}
}

func TestInterpolateDegenerateCurve(t *testing.T) {
	curve := []calibration.QuantilePoint{
		{Value: -3, Probability: 0.2},
		{Value: -3, Probability: 0.4},
		{Value: -3, Probability: 0.6},
	}
	got := interpolateCurve(curve, -1)
	if math.Abs(got-0.4) > 1e-9 {
		t.Fatalf("degenerate curve: got %.4f want mean probability 0.4", got)
	}
}

func TestReferenceErrorFallsBackToLogistic(t *testing.T) {
	refs := stubRefs{err: fmt.Errorf("db error")}
	e := NewEstimator(hashEmbedder{}, nil, refs, 60, DefaultConfig())
	res := e.Estimate(context.Background(), "q", "draft", nil, "d")
	if res.Calibrated {
		t.Fatal("lookup failure must fall back to logistic")
	}
	if res.S1Norm < 0 || res.S1Norm > 1 {
		t.Fatalf("s1_norm %.4f out of [0,1]", res.S1Norm)
	}
}

func TestRawScoreIdenticalSamples(t *testing.T) {
	// Identical vectors: S_ij = 1 for all pairs, raw = -(1/tau + log k).
	v := []float64{1, 0, 0}
	vectors := [][]float64{v, v, v}
	raw := rawScore(vectors, 0.3)
	want := -(math.Log(3 * math.Exp(1/0.3)))
	if math.Abs(raw-want) > 1e-9 {
		t.Fatalf("raw=%.6f want %.6f", raw, want)
	}
}

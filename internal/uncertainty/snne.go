package uncertainty

import (
	"context"
	"fmt"
	"log"
	"math"

	"credence/internal/calibration"
)

// #region interfaces

// Embedder maps text to a vector. Implementations should return unit
// vectors; Estimate normalizes defensively anyway.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// VariantSource produces paraphrase-style variants of a draft answer,
// conditioned on the question and evidence. May be nil, in which case
// deterministic template cycling is used.
type VariantSource interface {
	Variants(ctx context.Context, question, draft string, evidence []string, k int) ([]string, error)
}

// ReferenceSource reads the cached per-domain calibration reference.
type ReferenceSource interface {
	Reference(domain string) (*calibration.Reference, error)
}

// #endregion interfaces

// #region config

// Config controls sampling and normalization.
type Config struct {
	K           int     // number of samples, min 2
	Temperature float64 // LSE temperature, floored to avoid division by ~0
}

// DefaultConfig returns the standard estimator settings.
func DefaultConfig() Config {
	return Config{K: 5, Temperature: 0.3}
}

const minTemperature = 1e-3

// #endregion config

// #region result

// Result is one uncertainty estimate.
type Result struct {
	S1Norm     float64  // normalized uncertainty in [0,1]
	Raw        float64  // raw SNNE score, unbounded, typically negative
	Variants   []string // samples used, draft first
	Calibrated bool     // true when a domain quantile curve was applied
	Fallback   bool     // true when sampling/embedding failed
}

// #endregion result

// #region estimator

// Estimator computes the sampling-based uncertainty score (SNNE) for a
// draft answer and normalizes it against per-domain calibration when
// available.
type Estimator struct {
	embedder Embedder
	variants VariantSource
	cache    *refCache
	config   Config
}

// NewEstimator creates an estimator. variants may be nil (template
// fallback); refs may be nil (logistic normalization only).
func NewEstimator(embedder Embedder, variants VariantSource, refs ReferenceSource, cacheTTL float64, config Config) *Estimator {
	if config.K < 2 {
		config.K = 2
	}
	if config.Temperature < minTemperature {
		config.Temperature = minTemperature
	}
	return &Estimator{
		embedder: embedder,
		variants: variants,
		cache:    newRefCache(refs, cacheTTL),
		config:   config,
	}
}

// Estimate computes s1_norm for the draft. Failures never propagate:
// any sampling or embedding error degrades to maximal uncertainty
// (s1=1.0) with a synthesized two-sample variant set.
func (e *Estimator) Estimate(ctx context.Context, question, draft string, evidence []string, domain string) Result {
	samples := e.sampleVariants(ctx, question, draft, evidence)

	vectors := make([][]float64, 0, len(samples))
	for _, s := range samples {
		vec, err := e.embedder.Embed(ctx, s)
		if err != nil || len(vec) == 0 {
			log.Printf("[UQ] embed failed, degrading to max uncertainty: %v", err)
			return Result{
				S1Norm:   1.0,
				Variants: []string{draft, draft},
				Fallback: true,
			}
		}
		vectors = append(vectors, unit(vec))
	}

	raw := rawScore(vectors, e.config.Temperature)
	norm, calibrated := e.normalize(raw, domain)

	return Result{
		S1Norm:     norm,
		Raw:        raw,
		Variants:   samples,
		Calibrated: calibrated,
	}
}

// sampleVariants returns k samples with the draft first. External
// variation failures fall through to template cycling.
func (e *Estimator) sampleVariants(ctx context.Context, question, draft string, evidence []string) []string {
	k := e.config.K
	if len(evidence) > 3 {
		evidence = evidence[:3]
	}

	if e.variants != nil {
		vars, err := e.variants.Variants(ctx, question, draft, evidence, k-1)
		if err == nil && len(vars) > 0 {
			out := append([]string{draft}, vars...)
			if len(out) > k {
				out = out[:k]
			}
			for len(out) < 2 {
				out = append(out, draft)
			}
			return out
		}
		if err != nil {
			log.Printf("[UQ] variant source failed, using templates: %v", err)
		}
	}
	return templateVariants(question, draft, evidence, k)
}

// #endregion estimator

// #region templates

var variantTemplates = []string{
	"%s",
	"In short: %s",
	"Answer: %s",
	"Put differently, %s",
	"To summarize: %s",
}

// templateVariants cycles deterministic templates over the draft. The
// question and leading evidence snippet are appended as conditioning
// context so template variants still separate in embedding space.
func templateVariants(question, draft string, evidence []string, k int) []string {
	out := make([]string, 0, k)
	out = append(out, draft)
	for i := 1; i < k; i++ {
		tpl := variantTemplates[i%len(variantTemplates)]
		v := fmt.Sprintf(tpl, draft)
		if i%2 == 0 && question != "" {
			v = fmt.Sprintf("Q: %s A: %s", question, draft)
		}
		if i%3 == 0 && len(evidence) > 0 {
			v = fmt.Sprintf("%s (see: %s)", v, evidence[0])
		}
		out = append(out, v)
	}
	return out
}

// #endregion templates

// #region math

// rawScore computes -mean_i(log sum_j exp(cos(i,j)/tau)).
func rawScore(vectors [][]float64, tau float64) float64 {
	n := len(vectors)
	if n < 2 {
		return 0
	}
	var total float64
	for i := 0; i < n; i++ {
		var sum float64
		for j := 0; j < n; j++ {
			sum += math.Exp(cosine(vectors[i], vectors[j]) / tau)
		}
		total += math.Log(sum)
	}
	return -total / float64(n)
}

// normalize maps raw to [0,1]: quantile-curve interpolation when the
// domain has fresh calibration, logistic squash otherwise.
func (e *Estimator) normalize(raw float64, domain string) (float64, bool) {
	curve := e.cache.curve(domain)
	if len(curve) > 0 {
		return interpolateCurve(curve, raw), true
	}
	return logistic(raw), false
}

// logistic squashes raw into (0,1), non-increasing in raw.
func logistic(raw float64) float64 {
	return 1.0 / (1.0 + math.Exp(raw))
}

// interpolateCurve maps raw through the (value, probability) pairs by
// monotone linear interpolation, clamped to [0,1]. A degenerate curve
// (all values equal) yields the mean probability.
func interpolateCurve(curve []calibration.QuantilePoint, raw float64) float64 {
	first, last := curve[0], curve[len(curve)-1]
	if last.Value == first.Value {
		var sum float64
		for _, p := range curve {
			sum += p.Probability
		}
		return clamp01(sum / float64(len(curve)))
	}
	if raw <= first.Value {
		return clamp01(first.Probability)
	}
	if raw >= last.Value {
		return clamp01(last.Probability)
	}
	for i := 1; i < len(curve); i++ {
		lo, hi := curve[i-1], curve[i]
		if raw > hi.Value {
			continue
		}
		if hi.Value == lo.Value {
			return clamp01(hi.Probability)
		}
		frac := (raw - lo.Value) / (hi.Value - lo.Value)
		return clamp01(lo.Probability + frac*(hi.Probability-lo.Probability))
	}
	return clamp01(last.Probability)
}

// cosine computes cosine similarity; 0 for mismatched or zero vectors.
func cosine(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom == 0 {
		return 0
	}
	return dot / denom
}

// unit scales v to unit length; zero vectors pass through.
func unit(v []float64) []float64 {
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	n := math.Sqrt(sum)
	if n == 0 {
		return v
	}
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = x / n
	}
	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// #endregion math

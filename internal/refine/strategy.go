package refine

import (
	"context"
	"log"
	"regexp"
	"strings"

	"credence/internal/codec"
)

// #region backends

// GenerateBackend is the external drafting service. *codec.Client
// satisfies it.
type GenerateBackend interface {
	Generate(ctx context.Context, question string, evidence []string, instructions string) (codec.GenerateResult, error)
}

// VerifyBackend is the external structured verifier. *codec.Client
// satisfies it.
type VerifyBackend interface {
	Verify(ctx context.Context, question, answer string) (codec.VerifyResult, error)
}

// #endregion backends

// #region generator

// Generator drafts an answer and never fails: when the external backend
// errors it downgrades to the heuristic strategy for the rest of its
// lifetime and does not re-attempt the external path mid-request.
type Generator struct {
	external GenerateBackend
	degraded bool
}

// NewGenerator creates a generator; a nil backend is purely heuristic.
func NewGenerator(external GenerateBackend) *Generator {
	return &Generator{external: external}
}

// Generate returns the draft text and metadata about how it was made.
func (g *Generator) Generate(ctx context.Context, question string, evidence []string, instructions string) (string, map[string]string) {
	if g.external != nil && !g.degraded {
		res, err := g.external.Generate(ctx, question, evidence, instructions)
		if err == nil && strings.TrimSpace(res.Text) != "" {
			if res.Meta == nil {
				res.Meta = map[string]string{}
			}
			res.Meta["strategy"] = "external"
			return res.Text, res.Meta
		}
		log.Printf("[REFINE] generator backend failed, downgrading to heuristic: %v", err)
		g.degraded = true
	}
	return heuristicDraft(question, evidence), map[string]string{"strategy": "heuristic"}
}

// heuristicDraft picks the evidence snippet sharing the most question
// terms; with no usable evidence it returns an explicit
// insufficient-evidence answer.
func heuristicDraft(question string, evidence []string) string {
	terms := contentTerms(question)
	best := ""
	bestHits := -1
	for _, snippet := range evidence {
		hits := 0
		lower := strings.ToLower(snippet)
		for t := range terms {
			if strings.Contains(lower, t) {
				hits++
			}
		}
		if hits > bestHits {
			best = snippet
			bestHits = hits
		}
	}
	if strings.TrimSpace(best) == "" {
		return "No sufficient evidence is available to answer this question."
	}
	return strings.TrimSpace(best)
}

func contentTerms(text string) map[string]bool {
	out := make(map[string]bool)
	for _, f := range strings.Fields(strings.ToLower(text)) {
		f = strings.Trim(f, ".,!?;:\"'")
		if len(f) > 3 {
			out[f] = true
		}
	}
	return out
}

// #endregion generator

// #region verifier

// S2Result is one structured verification outcome.
type S2Result struct {
	Score    float64
	Issues   []string
	NeedsFix bool
}

// Verifier produces the S2 score and issue list, downgrading from the
// external backend to heuristics on first failure.
type Verifier struct {
	external VerifyBackend
	degraded bool
}

// NewVerifier creates a verifier; a nil backend is purely heuristic.
func NewVerifier(external VerifyBackend) *Verifier {
	return &Verifier{external: external}
}

// Verify scores the answer; it never fails.
func (v *Verifier) Verify(ctx context.Context, question, answer string) S2Result {
	if v.external != nil && !v.degraded {
		res, err := v.external.Verify(ctx, question, answer)
		if err == nil {
			return S2Result{Score: clamp01(res.Score), Issues: res.Issues, NeedsFix: res.NeedsFix}
		}
		log.Printf("[REFINE] verifier backend failed, downgrading to heuristic: %v", err)
		v.degraded = true
	}
	return heuristicVerify(question, answer)
}

var digitPattern = regexp.MustCompile(`\d`)

// numberCues mark questions whose answer should contain a number.
var numberCues = []string{"how many", "how much", "percent", "what number", "count of", "total"}

func heuristicVerify(question, answer string) S2Result {
	var issues []string
	trimmed := strings.TrimSpace(answer)
	if trimmed == "" {
		return S2Result{Score: 0, Issues: []string{"empty_answer"}, NeedsFix: true}
	}
	if !strings.Contains(strings.ToLower(answer), "http") {
		issues = append(issues, IssueMissingCitations)
	}
	lowerQ := strings.ToLower(question)
	for _, cue := range numberCues {
		if strings.Contains(lowerQ, cue) && !digitPattern.MatchString(answer) {
			issues = append(issues, IssueMissingNumbers)
			break
		}
	}
	score := 0.9 - 0.2*float64(len(issues))
	return S2Result{Score: clamp01(score), Issues: issues, NeedsFix: len(issues) > 0}
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

// #endregion verifier

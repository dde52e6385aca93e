package planner

import (
	"context"
	"log"
	"sort"
)

// #region config

// Mode selects the candidate search strategy.
type Mode string

const (
	ModeSinglePool Mode = "single-pool"
	ModeBeam       Mode = "beam"
	ModeGreedy     Mode = "greedy-expand"
)

// Trigger controls when planning runs.
type Trigger string

const (
	TriggerAlways      Trigger = "always"
	TriggerBorderline  Trigger = "borderline"
	TriggerIterateOnly Trigger = "iterate-only"
)

// Config controls the planner.
type Config struct {
	Enabled          bool
	Mode             Mode
	Trigger          Trigger
	BeamWidth        int
	PoolSize         int
	ThresholdImprove float64
}

// #endregion config

// #region types

// Candidate is one answer variant with its final score.
type Candidate struct {
	Text  string
	Score float64
}

// ScoreFunc scores a candidate through the exact same (s1_norm, s2) →
// final score pipeline used by refinement, so planning and refinement
// agree on what "better" means.
type ScoreFunc func(ctx context.Context, text string) (float64, error)

// VariantFunc generates n variants of the base text.
type VariantFunc func(ctx context.Context, base string, n int) ([]string, error)

// Plan is the outcome of one search.
type Plan struct {
	Base     Candidate
	Best     Candidate
	Improved bool
	Explored int
}

// #endregion types

// #region planner

// Planner searches for a better-scoring answer candidate before the
// repair loop runs.
type Planner struct {
	cfg      Config
	score    ScoreFunc
	variants VariantFunc
}

// New creates a planner. Zero or negative width/pool settings get
// minimal working defaults.
func New(cfg Config, score ScoreFunc, variants VariantFunc) *Planner {
	if cfg.BeamWidth < 1 {
		cfg.BeamWidth = 2
	}
	if cfg.PoolSize < 2 {
		cfg.PoolSize = 2
	}
	return &Planner{cfg: cfg, score: score, variants: variants}
}

// ShouldRun reports whether planning is triggered for the current
// decision and score.
func (p *Planner) ShouldRun(decision string, s, tauAccept, delta float64) bool {
	if !p.cfg.Enabled {
		return false
	}
	switch p.cfg.Trigger {
	case TriggerAlways:
		return true
	case TriggerBorderline:
		return s < tauAccept && s >= tauAccept-delta
	case TriggerIterateOnly:
		return decision == "iterate"
	}
	return false
}

// Plan searches from the base candidate. The plan is improved only when
// the best candidate strictly beats the base by more than the
// improvement threshold. Variant and scoring failures are soft: the
// affected candidate is skipped.
func (p *Planner) Plan(ctx context.Context, base string, baseScore float64) *Plan {
	baseCand := Candidate{Text: base, Score: baseScore}
	var best Candidate
	var explored int

	switch p.cfg.Mode {
	case ModeBeam:
		best, explored = p.beam(ctx, baseCand)
	case ModeGreedy:
		best, explored = p.greedy(ctx, baseCand)
	default:
		best, explored = p.singlePool(ctx, baseCand)
	}

	improved := best.Score > baseCand.Score+p.cfg.ThresholdImprove
	if !improved {
		best = baseCand
	}
	log.Printf("[PLAN] mode=%s explored=%d base=%.4f best=%.4f improved=%v",
		p.cfg.Mode, explored, baseCand.Score, best.Score, improved)
	return &Plan{Base: baseCand, Best: best, Improved: improved, Explored: explored}
}

// #endregion planner

// #region modes

// singlePool scores budget-1 variants of the base in one batch.
func (p *Planner) singlePool(ctx context.Context, base Candidate) (Candidate, int) {
	pool := p.expand(ctx, base.Text, p.cfg.PoolSize-1)
	best := base
	for _, c := range pool {
		if c.Score > best.Score {
			best = c
		}
	}
	return best, len(pool)
}

// beam keeps a fixed-width frontier and expands it for budget-1 rounds.
func (p *Planner) beam(ctx context.Context, base Candidate) (Candidate, int) {
	w := p.cfg.BeamWidth
	frontier := []Candidate{base}
	best := base
	explored := 0

	for round := 0; round < p.cfg.PoolSize-1; round++ {
		merged := append([]Candidate{}, frontier...)
		for _, member := range frontier {
			children := p.expand(ctx, member.Text, w)
			explored += len(children)
			merged = append(merged, children...)
		}
		sort.SliceStable(merged, func(i, j int) bool { return merged[i].Score > merged[j].Score })
		if len(merged) > w {
			merged = merged[:w]
		}
		frontier = merged
		if frontier[0].Score > best.Score {
			best = frontier[0]
		}
	}
	return best, explored
}

// greedy expands the current best and moves only on strict improvement,
// tracking the best candidate ever seen.
func (p *Planner) greedy(ctx context.Context, base Candidate) (Candidate, int) {
	current := base
	best := base
	explored := 0

	for sim := 0; sim < p.cfg.PoolSize; sim++ {
		children := p.expand(ctx, current.Text, p.cfg.BeamWidth)
		explored += len(children)
		if len(children) == 0 {
			break
		}
		top := children[0]
		for _, c := range children[1:] {
			if c.Score > top.Score {
				top = c
			}
		}
		if top.Score > best.Score {
			best = top
		}
		if top.Score > current.Score {
			current = top
		}
	}
	return best, explored
}

// expand generates and scores up to n variants; failures drop the
// affected candidate.
func (p *Planner) expand(ctx context.Context, base string, n int) []Candidate {
	if p.variants == nil || n < 1 {
		return nil
	}
	texts, err := p.variants(ctx, base, n)
	if err != nil {
		log.Printf("[PLAN] variant generation failed: %v", err)
		return nil
	}
	out := make([]Candidate, 0, len(texts))
	for _, t := range texts {
		if t == "" || t == base {
			continue
		}
		s, err := p.score(ctx, t)
		if err != nil {
			log.Printf("[PLAN] scoring failed for candidate: %v", err)
			continue
		}
		out = append(out, Candidate{Text: t, Score: s})
	}
	return out
}

// #endregion modes

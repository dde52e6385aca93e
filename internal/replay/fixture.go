package replay

import (
	"encoding/json"
	"fmt"
	"os"
)

// #region fixture-types

// Fixture is the top-level JSON structure for a replay fixture: a
// recorded policy configuration plus scored turns to re-decide.
type Fixture struct {
	Description string        `json:"description"`
	Policy      FixturePolicy `json:"policy"`
	Turns       []FixtureTurn `json:"turns"`
}

// FixturePolicy mirrors the decision policy with JSON tags. Tau is the
// recorded calibrated threshold; null means calibration was unavailable.
type FixturePolicy struct {
	W1          float64  `json:"w1"`
	W2          float64  `json:"w2"`
	TauAccept   float64  `json:"tau_accept"`
	Delta       float64  `json:"delta"`
	GateEnabled bool     `json:"gate_enabled"`
	Tau         *float64 `json:"tau"`
}

// FixtureTurn is one recorded scoring pass: the raw component scores
// and verifier output captured from a live run.
type FixtureTurn struct {
	TurnID   string   `json:"turn_id"`
	Question string   `json:"question"`
	Draft    string   `json:"draft"`
	S1Norm   float64  `json:"s1_norm"`
	S2       float64  `json:"s2"`
	Issues   []string `json:"issues"`
	NeedsFix bool     `json:"needs_fix"`
	Expected string   `json:"expected"`
}

// #endregion fixture-types

// #region fixture-loader

// LoadFixture reads and parses a JSON fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	if len(f.Turns) == 0 {
		return nil, fmt.Errorf("fixture %s has no turns", path)
	}
	return &f, nil
}

// #endregion fixture-loader

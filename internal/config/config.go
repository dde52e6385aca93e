package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// #region types

// Config is the full engine configuration. YAML file first, environment
// overrides second.
type Config struct {
	Policy   PolicyConfig   `yaml:"policy"`
	Gate     GateConfig     `yaml:"gate"`
	SNNE     SNNEConfig     `yaml:"snne"`
	Budgets  BudgetConfig   `yaml:"budgets"`
	Planner  PlannerConfig  `yaml:"planner"`
	Approval ApprovalConfig `yaml:"approval"`
	Gov      GovConfig      `yaml:"governance"`
	Paths    PathsConfig    `yaml:"paths"`
	Codec    CodecConfig    `yaml:"codec"`
}

// GovConfig toggles the per-step governance graph check.
type GovConfig struct {
	Enabled bool `yaml:"enabled"`
}

// PolicyConfig weights and thresholds for the accept/iterate/abstain
// decision.
type PolicyConfig struct {
	W1            float64 `yaml:"w1"`
	W2            float64 `yaml:"w2"`
	TauAccept     float64 `yaml:"tau_accept"`
	Delta         float64 `yaml:"delta"`
	AcceptOnStall bool    `yaml:"accept_on_stall"`
}

// GateConfig controls the conformal gate.
type GateConfig struct {
	Enabled           bool    `yaml:"enabled"`
	TargetMiscoverage float64 `yaml:"target_miscoverage"`
	MinSamples        int     `yaml:"min_samples"`
}

// SNNEConfig controls the uncertainty estimator.
type SNNEConfig struct {
	K           int     `yaml:"k"`
	Temperature float64 `yaml:"temperature"`
	CacheTTLSec float64 `yaml:"cache_ttl_sec"`
}

// BudgetConfig caps the refinement loop.
type BudgetConfig struct {
	MaxRefinements int `yaml:"max_refinements"`
	ToolsPerRefine int `yaml:"tools_per_refinement"`
	ToolsPerTurn   int `yaml:"tools_per_turn"`
}

// PlannerConfig controls candidate search.
type PlannerConfig struct {
	Enabled          bool    `yaml:"enabled"`
	Mode             string  `yaml:"mode"`    // single-pool | beam | greedy-expand
	Trigger          string  `yaml:"trigger"` // always | borderline | iterate-only
	BeamWidth        int     `yaml:"beam_width"`
	PoolSize         int     `yaml:"pool_size"`
	ThresholdImprove float64 `yaml:"threshold_improve"`
}

// ApprovalConfig controls human-approval tickets.
type ApprovalConfig struct {
	RequiredTools []string      `yaml:"required_tools"`
	AllowedTools  []string      `yaml:"allowed_tools"`
	TicketTTL     time.Duration `yaml:"ticket_ttl"`
}

// PathsConfig locates the SQLite databases.
type PathsConfig struct {
	CalibrationDB string `yaml:"calibration_db"`
	ApprovalDB    string `yaml:"approval_db"`
	TablesDB      string `yaml:"tables_db"`
	ProvenanceDB  string `yaml:"provenance_db"`
}

// CodecConfig locates the external inference service.
type CodecConfig struct {
	Addr    string        `yaml:"addr"`
	Timeout time.Duration `yaml:"timeout"`
}

// #endregion types

// #region defaults

// Default returns the stock configuration.
func Default() Config {
	return Config{
		Policy: PolicyConfig{
			W1:        0.5,
			W2:        0.5,
			TauAccept: 0.8,
			Delta:     0.1,
		},
		Gate: GateConfig{
			Enabled:           true,
			TargetMiscoverage: 0.05,
			MinSamples:        10,
		},
		SNNE: SNNEConfig{
			K:           5,
			Temperature: 0.3,
			CacheTTLSec: 300,
		},
		Budgets: BudgetConfig{
			MaxRefinements: 3,
			ToolsPerRefine: 2,
			ToolsPerTurn:   6,
		},
		Planner: PlannerConfig{
			Mode:      "single-pool",
			Trigger:   "borderline",
			BeamWidth: 2,
			PoolSize:  3,
		},
		Approval: ApprovalConfig{
			AllowedTools: []string{"search", "fetch", "numeric", "table"},
			TicketTTL:    time.Hour,
		},
		Paths: PathsConfig{
			CalibrationDB: "credence.db",
			ApprovalDB:    "credence.db",
			TablesDB:      "tables.db",
			ProvenanceDB:  "credence.db",
		},
		Codec: CodecConfig{
			Addr:    "localhost:50051",
			Timeout: 30 * time.Second,
		},
	}
}

// #endregion defaults

// #region load

// Load reads the YAML file at path (if non-empty) over the defaults,
// then applies environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Codec.Addr = envOr("CREDENCE_CODEC_ADDR", c.Codec.Addr)
	c.Paths.CalibrationDB = envOr("CREDENCE_CALIBRATION_DB", c.Paths.CalibrationDB)
	c.Paths.ApprovalDB = envOr("CREDENCE_APPROVAL_DB", c.Paths.ApprovalDB)
	c.Paths.TablesDB = envOr("CREDENCE_TABLES_DB", c.Paths.TablesDB)
	c.Paths.ProvenanceDB = envOr("CREDENCE_PROVENANCE_DB", c.Paths.ProvenanceDB)
	c.Gate.Enabled = envOrBool("CREDENCE_GATE_ENABLED", c.Gate.Enabled)
	c.Policy.TauAccept = envOrFloat("CREDENCE_TAU_ACCEPT", c.Policy.TauAccept)
	c.Policy.Delta = envOrFloat("CREDENCE_DELTA", c.Policy.Delta)
	c.Budgets.MaxRefinements = envOrInt("CREDENCE_MAX_REFINEMENTS", c.Budgets.MaxRefinements)
	c.SNNE.K = envOrInt("CREDENCE_SNNE_K", c.SNNE.K)
}

func (c *Config) validate() error {
	if c.Policy.W1 < 0 || c.Policy.W2 < 0 || c.Policy.W1+c.Policy.W2 == 0 {
		return fmt.Errorf("config: policy weights must be non-negative and not both zero")
	}
	if c.Policy.TauAccept < 0 || c.Policy.TauAccept > 1 {
		return fmt.Errorf("config: tau_accept must be in [0,1]")
	}
	if c.Gate.TargetMiscoverage <= 0 || c.Gate.TargetMiscoverage >= 1 {
		return fmt.Errorf("config: target_miscoverage must be in (0,1)")
	}
	if c.Budgets.MaxRefinements < 0 || c.Budgets.ToolsPerRefine < 0 || c.Budgets.ToolsPerTurn < 0 {
		return fmt.Errorf("config: budgets must be non-negative")
	}
	switch c.Planner.Mode {
	case "single-pool", "beam", "greedy-expand":
	default:
		return fmt.Errorf("config: unknown planner mode %q", c.Planner.Mode)
	}
	switch c.Planner.Trigger {
	case "always", "borderline", "iterate-only":
	default:
		return fmt.Errorf("config: unknown planner trigger %q", c.Planner.Trigger)
	}
	return nil
}

// #endregion load

// #region env-helpers

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		return v == "true" || v == "1"
	}
	return fallback
}

func envOrInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envOrFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

// #endregion env-helpers

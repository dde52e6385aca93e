package cli

import (
	"database/sql"
	"fmt"

	"credence/internal/approval"
	"credence/internal/calibration"
	"credence/internal/codec"
	"credence/internal/config"
	"credence/internal/gate"
	"credence/internal/logging"
	"credence/internal/planner"
	"credence/internal/refine"
	"credence/internal/tools"
	"credence/internal/uncertainty"
)

// engine bundles the wired components behind the CLI commands.
type engine struct {
	cfg       config.Config
	cal       *calibration.Store
	approvals *approval.Store
	client    *codec.Client
	provDB    *sql.DB
	ownProv   bool
	orch      *refine.Orchestrator
}

// buildEngine loads configuration and wires the full pipeline. Missing
// external services degrade at call time (heuristic strategies, max
// uncertainty), not here.
func buildEngine(configPath string) (*engine, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	cal, err := calibration.NewStore(cfg.Paths.CalibrationDB)
	if err != nil {
		return nil, fmt.Errorf("calibration store: %w", err)
	}
	approvals, err := approval.NewStore(cfg.Paths.ApprovalDB, cfg.Approval.TicketTTL)
	if err != nil {
		return nil, fmt.Errorf("approval store: %w", err)
	}
	client, err := codec.NewClient(cfg.Codec.Addr)
	if err != nil {
		return nil, fmt.Errorf("inference client: %w", err)
	}

	// Provenance shares the calibration database unless pointed
	// elsewhere.
	provDB := cal.DB()
	ownProv := false
	if p := cfg.Paths.ProvenanceDB; p != "" && p != cfg.Paths.CalibrationDB {
		db, err := sql.Open("sqlite", p)
		if err != nil {
			return nil, fmt.Errorf("provenance db: %w", err)
		}
		provDB = db
		ownProv = true
	}
	if err := logging.Migrate(provDB); err != nil {
		return nil, err
	}

	var tableStore *tools.TableStore
	if cfg.Paths.TablesDB != "" {
		if ts, err := tools.NewTableStore(cfg.Paths.TablesDB); err == nil {
			tableStore = ts
		}
	}

	estimator := uncertainty.NewEstimator(client, client, cal, cfg.SNNE.CacheTTLSec,
		uncertainty.Config{K: cfg.SNNE.K, Temperature: cfg.SNNE.Temperature})

	orch, err := refine.New(refine.Options{
		Policy: refine.PolicyConfig{
			W1:            cfg.Policy.W1,
			W2:            cfg.Policy.W2,
			TauAccept:     cfg.Policy.TauAccept,
			Delta:         cfg.Policy.Delta,
			AcceptOnStall: cfg.Policy.AcceptOnStall,
		},
		Budgets: refine.Budgets{
			MaxRefinements: cfg.Budgets.MaxRefinements,
			ToolsPerRefine: cfg.Budgets.ToolsPerRefine,
			ToolsPerTurn:   cfg.Budgets.ToolsPerTurn,
		},
		Gate:      gate.New(cfg.Gate.Enabled, cal),
		Estimator: estimator,
		Generator: refine.NewGenerator(client),
		Verifier:  refine.NewVerifier(client),
		Tools:     tools.NewRegistry(client, client, tableStore),
		Approvals: approvals,
		Planner: planner.Config{
			Enabled:          cfg.Planner.Enabled,
			Mode:             planner.Mode(cfg.Planner.Mode),
			Trigger:          planner.Trigger(cfg.Planner.Trigger),
			BeamWidth:        cfg.Planner.BeamWidth,
			PoolSize:         cfg.Planner.PoolSize,
			ThresholdImprove: cfg.Planner.ThresholdImprove,
		},
		Variants:         client,
		Allowlist:        cfg.Approval.AllowedTools,
		ApprovalRequired: cfg.Approval.RequiredTools,
		GovernanceCheck:  cfg.Gov.Enabled,
		ProvenanceDB:     provDB,
	})
	if err != nil {
		return nil, err
	}

	return &engine{
		cfg:       cfg,
		cal:       cal,
		approvals: approvals,
		client:    client,
		provDB:    provDB,
		ownProv:   ownProv,
		orch:      orch,
	}, nil
}

// close releases the engine's handles.
func (e *engine) close() {
	e.client.Close()
	e.approvals.Close()
	if e.ownProv {
		e.provDB.Close()
	}
	e.cal.Close()
}

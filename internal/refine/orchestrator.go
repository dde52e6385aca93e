package refine

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"regexp"
	"sort"
	"strings"

	"github.com/google/uuid"

	"credence/internal/approval"
	"credence/internal/gate"
	"credence/internal/gov"
	"credence/internal/logging"
	"credence/internal/pcn"
	"credence/internal/planner"
	"credence/internal/tools"
	"credence/internal/uncertainty"
)

// #region contracts

// EmitFunc receives pipeline events in call order. Event types: uq,
// score, tool, trace, pcn, gov, planning, guardrails.
type EmitFunc func(event string, data map[string]any)

// ApprovalStore is the ticket store consumed by the orchestrator.
// *approval.Store satisfies it.
type ApprovalStore interface {
	Create(context map[string]string) (*approval.Ticket, error)
	Get(id string) (*approval.Ticket, error)
	Consume(id string) error
}

// Budgets are the hard caps on the refinement loop.
type Budgets struct {
	MaxRefinements int
	ToolsPerRefine int
	ToolsPerTurn   int
}

// StopReason explains how a run ended.
type StopReason string

const (
	StopAccept          StopReason = "accept"
	StopIterate         StopReason = "iterate"
	StopAbstain         StopReason = "abstain"
	StopApprovalPending StopReason = "approval_pending"
)

// Usage counts the work one run performed.
type Usage struct {
	ScoringPasses int
	ToolCalls     int
	Iterations    int
	PlannerEvals  int
}

// Params is one request. ApprovedTools and Resume carry the loop state
// needed to continue deterministically after an approval suspension.
type Params struct {
	Question      string
	Domain        string
	Evidence      []string
	Instructions  string
	QueryOverride string
	ApprovedTools []string
	TicketID      string
	Resume        *ResumeState
}

// ResumeState is the capturable loop state returned with an
// approval_pending result and re-supplied on resume. Completed tool
// side effects are not replayed; their budget consumption is preserved.
type ResumeState struct {
	Draft         string
	Iteration     int
	ToolsUsedTurn int
	Step          *StepState
}

// StepState carries the partial results of the interrupted refinement
// round. Tools listed in ExecutedTools already ran before the
// suspension; on resume their outputs re-enter the round and they are
// never run or billed again.
type StepState struct {
	ExecutedTools  []string
	ToolsUsedRound int
	Evidence       string
	URL            string
	Expr           string
	Value          *float64
	TableValue     *float64
	TableSummary   string
}

// AgentResult is the structured outcome of one run. The agent never
// fails past this boundary; approval_pending is a typed suspension.
type AgentResult struct {
	Final       string
	StopReason  StopReason
	Reason      string
	Uncertainty uncertainty.Result
	Trace       []ScoreState
	Usage       Usage
	TicketID    string
	Resume      *ResumeState
}

// #endregion contracts

// #region orchestrator

// Options wires an orchestrator. Gate, Estimator, Generator, and
// Verifier are required; everything else is optional.
type Options struct {
	Policy           PolicyConfig
	Budgets          Budgets
	Gate             *gate.Gate
	Estimator        *uncertainty.Estimator
	Generator        *Generator
	Verifier         *Verifier
	Tools            *tools.Registry
	Approvals        ApprovalStore
	Planner          planner.Config
	Variants         uncertainty.VariantSource
	Allowlist        []string
	ApprovalRequired []string
	GovernanceCheck  bool
	ProvenanceDB     *sql.DB
}

// Orchestrator drives the scored refinement loop for one request at a
// time. It owns no shared mutable state between requests.
type Orchestrator struct {
	policy    PolicyConfig
	budgets   Budgets
	gate      *gate.Gate
	estimator *uncertainty.Estimator
	generator *Generator
	verifier  *Verifier
	tools     *tools.Registry
	approvals ApprovalStore
	planCfg   planner.Config
	variants  uncertainty.VariantSource
	allow     map[string]bool
	needOK    map[string]bool
	govCheck  bool
	provDB    *sql.DB
}

// New validates the wiring and returns an orchestrator.
func New(opts Options) (*Orchestrator, error) {
	if opts.Gate == nil || opts.Estimator == nil || opts.Generator == nil || opts.Verifier == nil {
		return nil, fmt.Errorf("orchestrator: gate, estimator, generator, and verifier are required")
	}
	if opts.Budgets.MaxRefinements < 0 || opts.Budgets.ToolsPerRefine < 0 || opts.Budgets.ToolsPerTurn < 0 {
		return nil, fmt.Errorf("orchestrator: budgets must be non-negative")
	}
	o := &Orchestrator{
		policy:    opts.Policy,
		budgets:   opts.Budgets,
		gate:      opts.Gate,
		estimator: opts.Estimator,
		generator: opts.Generator,
		verifier:  opts.Verifier,
		tools:     opts.Tools,
		approvals: opts.Approvals,
		planCfg:   opts.Planner,
		variants:  opts.Variants,
		govCheck:  opts.GovernanceCheck,
		provDB:    opts.ProvenanceDB,
	}
	if len(opts.Allowlist) > 0 {
		o.allow = toSet(opts.Allowlist)
	}
	o.needOK = toSet(opts.ApprovalRequired)
	return o, nil
}

// #endregion orchestrator

// #region answer

// Answer runs the full decision loop: draft, score, optionally plan,
// then iterate through budgeted tool-driven repair until a terminal
// decision. The final text passes PCN substitution exactly once.
func (o *Orchestrator) Answer(ctx context.Context, params Params, emit EmitFunc) (*AgentResult, error) {
	if emit == nil {
		emit = func(string, map[string]any) {}
	}
	runID := uuid.NewString()
	ver := pcn.NewVerifier()
	approved := toSet(params.ApprovedTools)
	denied := o.consumeTicket(params, approved)

	draft := ""
	iter := 0
	toolsTurn := 0
	var pendingStep *StepState
	if params.Resume != nil {
		draft = params.Resume.Draft
		iter = params.Resume.Iteration
		toolsTurn = params.Resume.ToolsUsedTurn
		pendingStep = params.Resume.Step
		log.Printf("[REFINE] run %s resuming at iteration %d", runID, iter)
	}
	if draft == "" {
		text, meta := o.generator.Generate(ctx, params.Question, params.Evidence, params.Instructions)
		draft = text
		emit("trace", map[string]any{"step": "draft", "strategy": meta["strategy"]})
	}

	var trace []ScoreState
	var lastUQ uncertainty.Result
	usage := Usage{}

	score := func(text string) ScoreState {
		uq := o.estimator.Estimate(ctx, params.Question, text, params.Evidence, params.Domain)
		lastUQ = uq
		emit("uq", map[string]any{"s1_norm": uq.S1Norm, "raw": uq.Raw, "calibrated": uq.Calibrated, "fallback": uq.Fallback})

		s2 := o.verifier.Verify(ctx, params.Question, text)
		final := o.policy.FinalScore(uq.S1Norm, s2.Score)
		cp := o.gate.Accept(params.Domain, final)
		issues := append([]string{}, s2.Issues...)
		if !cp && o.gate.LastReason() == "missing_tau" {
			issues = append(issues, IssueCPMissingCalibration)
		}
		st := ScoreState{
			S1Norm:   uq.S1Norm,
			S2:       s2.Score,
			S:        final,
			CPAccept: cp,
			Issues:   issues,
			NeedsFix: s2.NeedsFix,
		}
		usage.ScoringPasses++
		trace = append(trace, st)
		emit("score", map[string]any{"s": st.S, "s2": st.S2, "cp_accept": st.CPAccept, "issues": st.Issues})
		return st
	}

	finish := func(stop StopReason, reason string, state ScoreState) (*AgentResult, error) {
		usage.Iterations = iter
		res := &AgentResult{
			Final:       ver.Substitute(draft),
			StopReason:  stop,
			Reason:      reason,
			Uncertainty: lastUQ,
			Trace:       trace,
			Usage:       usage,
		}
		emit("trace", map[string]any{"step": "final", "stop_reason": string(stop), "reason": reason})
		o.logDecision(runID, params, res, state)
		return res, nil
	}

	state := score(draft)

	if draft2, st2, ok := o.plan(ctx, params, draft, state, &usage, emit); ok {
		draft, state = draft2, st2
		trace = append(trace, state)
	}

	for {
		decision := o.policy.Decide(state)
		if decision != DecisionIterate {
			return finish(StopReason(decision), o.decisionReason(decision, state), state)
		}
		if iter >= o.budgets.MaxRefinements {
			return finish(StopIterate, "refinement cap reached", state)
		}
		if toolsTurn >= o.budgets.ToolsPerTurn {
			return finish(StopIterate, "turn tool budget exhausted", state)
		}
		iter++
		usage.Iterations = iter

		step := &iterationStep{}
		toolsRefine := 0
		ranThisRound := map[string]bool{}
		if pendingStep != nil {
			step.restore(pendingStep)
			toolsRefine = pendingStep.ToolsUsedRound
			ranThisRound = toSet(pendingStep.ExecutedTools)
			pendingStep = nil
		}

		runTool := func(name string, args tools.Args) *AgentResult {
			if ranThisRound[name] {
				// Completed before the suspension; its output is already
				// in the step.
				return nil
			}
			if o.allow != nil && !o.allow[name] {
				emit("guardrails", map[string]any{"tool": name, "status": "blocked", "reason": "not_allowlisted"})
				return nil
			}
			if denied[name] {
				emit("guardrails", map[string]any{"tool": name, "status": "blocked", "reason": "approval_denied"})
				return nil
			}
			if o.needOK[name] && !approved[name] {
				return o.suspend(name, params, draft, iter, toolsTurn, trace, lastUQ, usage,
					step.snapshot(ranThisRound, toolsRefine), emit)
			}
			if toolsRefine >= o.budgets.ToolsPerRefine || toolsTurn >= o.budgets.ToolsPerTurn {
				return nil
			}
			out, err := o.tools.Run(ctx, name, args)
			if err != nil {
				if tools.IsBlocked(err) {
					emit("guardrails", map[string]any{"tool": name, "status": "blocked", "reason": err.Error()})
				} else {
					emit("tool", map[string]any{"tool": name, "status": "failed", "error": err.Error()})
				}
				return nil
			}
			toolsRefine++
			toolsTurn++
			usage.ToolCalls++
			step.toolExecuted = true
			ranThisRound[name] = true
			emit("tool", map[string]any{"tool": name, "status": "executed", "summary": out.Summary})
			step.absorb(out)
			return nil
		}

		if o.tools != nil {
			// Search runs opportunistically; the rest are issue-driven.
			if suspended := runTool(tools.ToolSearch, tools.Args{Query: params.Question}); suspended != nil {
				return suspended, nil
			}
			if state.HasIssue(IssueMissingCitations) && step.url != "" {
				if suspended := runTool(tools.ToolFetch, tools.Args{URL: step.url}); suspended != nil {
					return suspended, nil
				}
			}
			if state.HasIssue(IssueMissingNumbers) {
				if expr := extractExpr(params.Question); expr != "" {
					step.expr = expr
					if suspended := runTool(tools.ToolNumeric, tools.Args{Expr: expr}); suspended != nil {
						return suspended, nil
					}
				}
			}
			// Table data needs an explicit query; the override supplies it
			// whether or not the issue is outstanding.
			if params.QueryOverride != "" {
				if suspended := runTool(tools.ToolTable, tools.Args{SQL: params.QueryOverride}); suspended != nil {
					return suspended, nil
				}
			}
		}

		o.registerProofs(ver, step, emit)
		govFailed := o.checkGovernance(ver, step, emit)

		resolved := step.resolvedIssues(state)
		newDraft := recompose(draft, step, remaining(state.Issues, resolved))
		emit("trace", map[string]any{"step": "recompose", "iteration": iter, "resolved": resolved})

		newState := score(newDraft)
		if govFailed {
			newState.Issues = append(newState.Issues, IssueGovernance)
			newState.NeedsFix = true
			trace[len(trace)-1] = newState
		}

		if !step.toolExecuted && len(resolvedAgainst(state.Issues, newState.Issues)) == 0 {
			if !(o.policy.AcceptOnStall && o.policy.Decide(newState) == DecisionAccept) {
				newState.CPAccept = false
				trace[len(trace)-1] = newState
				draft = newDraft
				return finish(StopAbstain, "no progress", newState)
			}
		}

		draft = newDraft
		state = newState
	}
}

// #endregion answer

// #region planning

// plan runs the candidate search when triggered and returns the
// improved draft with a fresh score state.
func (o *Orchestrator) plan(ctx context.Context, params Params, draft string, state ScoreState, usage *Usage, emit EmitFunc) (string, ScoreState, bool) {
	if !o.planCfg.Enabled || params.Resume != nil {
		return draft, state, false
	}
	scoreText := func(ctx context.Context, text string) (float64, error) {
		uq := o.estimator.Estimate(ctx, params.Question, text, params.Evidence, params.Domain)
		s2 := o.verifier.Verify(ctx, params.Question, text)
		return o.policy.FinalScore(uq.S1Norm, s2.Score), nil
	}
	variantsOf := func(ctx context.Context, base string, n int) ([]string, error) {
		if o.variants == nil {
			return nil, nil
		}
		return o.variants.Variants(ctx, params.Question, base, params.Evidence, n)
	}

	p := planner.New(o.planCfg, scoreText, variantsOf)
	decision := o.policy.Decide(state)
	if !p.ShouldRun(string(decision), state.S, o.policy.TauAccept, o.policy.Delta) {
		return draft, state, false
	}

	plan := p.Plan(ctx, draft, state.S)
	usage.PlannerEvals += plan.Explored
	emit("planning", map[string]any{"mode": string(o.planCfg.Mode), "explored": plan.Explored, "improved": plan.Improved, "best": plan.Best.Score})
	if !plan.Improved {
		return draft, state, false
	}

	uq := o.estimator.Estimate(ctx, params.Question, plan.Best.Text, params.Evidence, params.Domain)
	s2 := o.verifier.Verify(ctx, params.Question, plan.Best.Text)
	final := o.policy.FinalScore(uq.S1Norm, s2.Score)
	cp := o.gate.Accept(params.Domain, final)
	st := ScoreState{S1Norm: uq.S1Norm, S2: s2.Score, S: final, CPAccept: cp, Issues: s2.Issues, NeedsFix: s2.NeedsFix}
	return plan.Best.Text, st, true
}

// #endregion planning

// #region suspension

// suspend creates an approval ticket and returns the typed partial
// result. The resume state points at the interrupted iteration, with
// the round's partial tool results attached, so a later call re-enters
// where the loop left off without replaying completed side effects.
func (o *Orchestrator) suspend(tool string, params Params, draft string, iter, toolsTurn int, trace []ScoreState, uq uncertainty.Result, usage Usage, stepState *StepState, emit EmitFunc) *AgentResult {
	if o.approvals == nil {
		emit("guardrails", map[string]any{"tool": tool, "status": "blocked", "reason": "approval required but no store configured"})
		return nil
	}
	ticket, err := o.approvals.Create(map[string]string{"tool": tool, "question": params.Question, "domain": params.Domain})
	if err != nil {
		emit("guardrails", map[string]any{"tool": tool, "status": "blocked", "reason": fmt.Sprintf("ticket create failed: %v", err)})
		return nil
	}
	emit("tool", map[string]any{"tool": tool, "status": "waiting_approval", "ticket": ticket.ID})
	usage.Iterations = iter
	return &AgentResult{
		Final:       draft,
		StopReason:  StopApprovalPending,
		Reason:      fmt.Sprintf("tool %s requires approval", tool),
		Uncertainty: uq,
		Trace:       trace,
		Usage:       usage,
		TicketID:    ticket.ID,
		Resume: &ResumeState{
			Draft:         draft,
			Iteration:     iter - 1,
			ToolsUsedTurn: toolsTurn,
			Step:          stepState,
		},
	}
}

// consumeTicket resolves the ticket named in params: approved tickets
// extend the approved-tools set, denied ones block the tool for this
// run. The ticket is consumed either way.
func (o *Orchestrator) consumeTicket(params Params, approved map[string]bool) map[string]bool {
	denied := map[string]bool{}
	if params.TicketID == "" || o.approvals == nil {
		return denied
	}
	t, err := o.approvals.Get(params.TicketID)
	if err != nil {
		log.Printf("[REFINE] ticket %s lookup failed: %v", params.TicketID, err)
		return denied
	}
	tool := t.Context["tool"]
	switch t.Status {
	case approval.StatusApproved:
		approved[tool] = true
	case approval.StatusDenied:
		denied[tool] = true
	default:
		return denied
	}
	if err := o.approvals.Consume(params.TicketID); err != nil {
		log.Printf("[REFINE] ticket %s consume failed: %v", params.TicketID, err)
	}
	return denied
}

// #endregion suspension

// #region proofs

// registerProofs turns this step's tool outputs into proof-carrying
// tokens: math re-derivation for numeric values, coercion for table
// values, and direct verification for source URLs.
func (o *Orchestrator) registerProofs(ver *pcn.Verifier, step *iterationStep, emit EmitFunc) {
	if step.value != nil && step.expr != "" {
		tok := shortToken()
		ver.Register(tok, pcn.Policy{}, "numeric:"+step.expr)
		status := ver.VerifyMath(tok, step.expr, *step.value)
		step.valueToken = tok
		emit("pcn", map[string]any{"token": tok, "kind": "math", "status": string(status)})
	}
	if step.tableValue != nil {
		tok := shortToken()
		ver.Register(tok, pcn.Policy{}, "table")
		status := ver.VerifySQL(tok, pcn.FormatValue(*step.tableValue))
		step.tableToken = tok
		emit("pcn", map[string]any{"token": tok, "kind": "sql", "status": string(status)})
	}
	if step.url != "" {
		tok := shortToken()
		ver.Register(tok, pcn.Policy{}, "url")
		status := ver.VerifyURL(tok, step.url)
		step.urlToken = tok
		emit("pcn", map[string]any{"token": tok, "kind": "url", "status": string(status)})
	}
}

// checkGovernance builds a small evidence→premise→claim graph over this
// step's proofs and evaluates it. Failures surface as the governance
// issue; they never abort the request.
func (o *Orchestrator) checkGovernance(ver *pcn.Verifier, step *iterationStep, emit EmitFunc) bool {
	if !o.govCheck {
		return false
	}
	token := step.valueToken
	if token == "" {
		token = step.tableToken
	}
	if token == "" && step.evidence == "" {
		return false
	}

	g := gov.Graph{
		Nodes: []gov.Node{
			{ID: "claim", Type: gov.NodeClaim},
		},
	}
	if step.evidence != "" {
		g.Nodes = append(g.Nodes, gov.Node{ID: "evidence", Type: gov.NodeEvidence})
		g.Edges = append(g.Edges, gov.Edge{From: "evidence", To: "claim"})
	}
	if token != "" {
		g.Nodes = append(g.Nodes, gov.Node{ID: "premise", Type: gov.NodePremise, PCNToken: token})
		g.Edges = append(g.Edges, gov.Edge{From: "premise", To: "claim"})
	}

	ok, codes := gov.Evaluate(g, func(tok string) string { return string(ver.StatusOf(tok)) })
	emit("gov", map[string]any{"ok": ok, "codes": codes})
	return !ok
}

func shortToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// #endregion proofs

// #region recompose

// iterationStep accumulates what one refinement round gathered.
type iterationStep struct {
	toolExecuted bool
	evidence     string
	url          string
	expr         string
	value        *float64
	tableValue   *float64
	tableSummary string
	valueToken   string
	tableToken   string
	urlToken     string
}

// snapshot captures the round's partial results for suspension. Nil
// when no tool has run yet: a fresh round needs nothing carried.
func (s *iterationStep) snapshot(executed map[string]bool, toolsRound int) *StepState {
	if len(executed) == 0 {
		return nil
	}
	names := make([]string, 0, len(executed))
	for name := range executed {
		names = append(names, name)
	}
	sort.Strings(names)
	return &StepState{
		ExecutedTools:  names,
		ToolsUsedRound: toolsRound,
		Evidence:       s.evidence,
		URL:            s.url,
		Expr:           s.expr,
		Value:          s.value,
		TableValue:     s.tableValue,
		TableSummary:   s.tableSummary,
	}
}

// restore re-enters a suspended round's partial results.
func (s *iterationStep) restore(st *StepState) {
	s.toolExecuted = len(st.ExecutedTools) > 0
	s.evidence = st.Evidence
	s.url = st.URL
	s.expr = st.Expr
	s.value = st.Value
	s.tableValue = st.TableValue
	s.tableSummary = st.TableSummary
}

func (s *iterationStep) absorb(out *tools.Outcome) {
	switch out.Tool {
	case tools.ToolSearch, tools.ToolFetch:
		if s.evidence == "" {
			s.evidence = out.Evidence
		}
		if out.URL != "" {
			s.url = out.URL
		}
	case tools.ToolNumeric:
		s.value = out.Value
	case tools.ToolTable:
		s.tableValue = out.Value
		s.tableSummary = out.Summary
		if s.evidence == "" {
			s.evidence = out.Evidence
		}
	}
}

// resolvedIssues lists the issues this step's gathered material
// addresses.
func (s *iterationStep) resolvedIssues(state ScoreState) []string {
	var out []string
	if state.HasIssue(IssueMissingCitations) && s.url != "" {
		out = append(out, IssueMissingCitations)
	}
	if state.HasIssue(IssueMissingNumbers) && s.valueToken != "" {
		out = append(out, IssueMissingNumbers)
	}
	if state.HasIssue(IssueMissingTableData) && s.tableSummary != "" {
		out = append(out, IssueMissingTableData)
	}
	return out
}

// recompose builds the next draft from the gathered material. Remaining
// issues are stated explicitly, never silently dropped.
func recompose(prev string, step *iterationStep, outstanding []string) string {
	var b strings.Builder
	if step.evidence != "" {
		b.WriteString(firstSentence(step.evidence))
	} else {
		b.WriteString(firstSentence(prev))
	}
	if step.valueToken != "" {
		fmt.Fprintf(&b, " The computed value is [PCN:%s].", step.valueToken)
	}
	if step.tableSummary != "" {
		fmt.Fprintf(&b, " Table data: %s", step.tableSummary)
		if step.tableToken != "" {
			fmt.Fprintf(&b, " ([PCN:%s])", step.tableToken)
		}
		b.WriteString(".")
	}
	if step.urlToken != "" {
		fmt.Fprintf(&b, " Source: [PCN:%s].", step.urlToken)
	} else if step.url != "" {
		fmt.Fprintf(&b, " Source: %s.", step.url)
	}
	if len(outstanding) > 0 {
		fmt.Fprintf(&b, " Outstanding: %s.", strings.Join(outstanding, ", "))
	}
	return strings.TrimSpace(b.String())
}

// firstSentence takes the leading sentence, ignoring early terminators
// such as list numbering dots.
func firstSentence(text string) string {
	text = strings.TrimSpace(text)
	for i, r := range text {
		if (r == '.' || r == '!' || r == '?' || r == '\n') && i >= 20 {
			return strings.TrimSpace(text[:i+1])
		}
	}
	if len(text) > 200 {
		return strings.TrimSpace(text[:200])
	}
	return text
}

// #endregion recompose

// #region helpers

var exprPattern = regexp.MustCompile(`\d+(?:\.\d+)?(?:\s*[-+*/^]\s*\(?\d+(?:\.\d+)?\)?)+`)

// extractExpr pulls an arithmetic expression out of free text, if any.
func extractExpr(text string) string {
	return strings.TrimSpace(exprPattern.FindString(text))
}

// decisionReason explains a terminal policy decision in terms of what
// drove it. The gate's diagnostic only applies to accepts; an abstain
// is always a score falling below the iterate band.
func (o *Orchestrator) decisionReason(decision Decision, st ScoreState) string {
	switch decision {
	case DecisionAccept:
		return o.gate.LastReason()
	case DecisionAbstain:
		return fmt.Sprintf("S=%.4f below tau_accept-delta=%.4f", st.S, o.policy.TauAccept-o.policy.Delta)
	default:
		return string(decision)
	}
}

// remaining returns issues minus the resolved set, preserving order.
func remaining(issues, resolved []string) []string {
	drop := toSet(resolved)
	var out []string
	for _, i := range issues {
		if !drop[i] {
			out = append(out, i)
		}
	}
	return out
}

// resolvedAgainst lists issues present before but absent after.
func resolvedAgainst(before, after []string) []string {
	have := toSet(after)
	var out []string
	for _, i := range before {
		if !have[i] {
			out = append(out, i)
		}
	}
	return out
}

func toSet(items []string) map[string]bool {
	out := make(map[string]bool, len(items))
	for _, i := range items {
		out[i] = true
	}
	return out
}

// logDecision appends the final decision to the provenance log when a
// database is configured.
func (o *Orchestrator) logDecision(runID string, params Params, res *AgentResult, state ScoreState) {
	if o.provDB == nil {
		return
	}
	traceJSON, _ := json.Marshal(res.Trace)
	err := logging.LogDecision(o.provDB, logging.DecisionEntry{
		RunID:      runID,
		Domain:     params.Domain,
		Question:   params.Question,
		Decision:   string(res.StopReason),
		Reason:     res.Reason,
		Score:      state.S,
		S1Norm:     state.S1Norm,
		S2:         state.S2,
		CPAccept:   state.CPAccept,
		Iterations: res.Usage.Iterations,
		TraceJSON:  string(traceJSON),
	})
	if err != nil {
		log.Printf("[REFINE] provenance log failed: %v", err)
	}
}

// #endregion helpers

package gov

import (
	"fmt"
	"strings"
)

// #region assertion-types

// AssertionResult is the outcome of one predicate.
type AssertionResult struct {
	Name    string
	Pass    bool
	Details string
}

// Assertion is an independent predicate over an evaluated graph.
type Assertion struct {
	Name string
	eval func(ev *evaluation) (bool, string)
}

// evaluation bundles everything the predicates inspect.
type evaluation struct {
	graph           Graph
	validationCodes []string
	execCodes       []string
	valid           bool
	depths          map[string]int
	adj             map[string][]string
}

// #endregion assertion-types

// #region checker

// Checker runs assertions and accumulates per-predicate run/fail
// counters across calls for observability.
type Checker struct {
	runs  map[string]int
	fails map[string]int
}

// NewChecker creates an assertion checker with zeroed counters.
func NewChecker() *Checker {
	return &Checker{
		runs:  make(map[string]int),
		fails: make(map[string]int),
	}
}

// Check validates and executes the graph, then evaluates each assertion
// independently. Counters key on the assertion's base name.
func (c *Checker) Check(g Graph, status PCNStatus, assertions []Assertion) []AssertionResult {
	valid, vCodes := Validate(g)
	var eCodes []string
	if valid {
		_, eCodes = Execute(g, status)
	}

	ev := &evaluation{
		graph:           g,
		validationCodes: vCodes,
		execCodes:       eCodes,
		valid:           valid,
		adj:             buildAdj(g),
	}

	results := make([]AssertionResult, 0, len(assertions))
	for _, a := range assertions {
		pass, details := a.eval(ev)
		base := baseName(a.Name)
		c.runs[base]++
		if !pass {
			c.fails[base]++
		}
		results = append(results, AssertionResult{Name: a.Name, Pass: pass, Details: details})
	}
	return results
}

// Counters returns copies of the accumulated run and fail counts.
func (c *Checker) Counters() (runs, fails map[string]int) {
	runs = make(map[string]int, len(c.runs))
	fails = make(map[string]int, len(c.fails))
	for k, v := range c.runs {
		runs[k] = v
	}
	for k, v := range c.fails {
		fails[k] = v
	}
	return runs, fails
}

func baseName(name string) string {
	if i := strings.IndexByte(name, '('); i > 0 {
		return name[:i]
	}
	return name
}

// #endregion checker

// #region predicates

// NoCycles passes when validation found no cycle codes.
func NoCycles() Assertion {
	return Assertion{Name: "no_cycles", eval: func(ev *evaluation) (bool, string) {
		if codes := codesWithPrefix(ev.validationCodes, "cycle:"); len(codes) > 0 {
			return false, strings.Join(codes, ",")
		}
		return true, ""
	}}
}

// NoPCNFailures passes when execution recorded no pcn_failure codes.
func NoPCNFailures() Assertion {
	return Assertion{Name: "no_pcn_failures", eval: func(ev *evaluation) (bool, string) {
		if codes := codesWithPrefix(ev.execCodes, "pcn_failure:"); len(codes) > 0 {
			return false, strings.Join(codes, ",")
		}
		return true, ""
	}}
}

// NoDependencyFailures passes when no claim inherited a failed parent.
func NoDependencyFailures() Assertion {
	return Assertion{Name: "no_dependency_failures", eval: func(ev *evaluation) (bool, string) {
		if codes := codesWithPrefix(ev.execCodes, "dependency_failure:"); len(codes) > 0 {
			return false, strings.Join(codes, ",")
		}
		return true, ""
	}}
}

// AllClaimsSupported passes when validation produced no
// unsupported_claim codes.
func AllClaimsSupported() Assertion {
	return Assertion{Name: "all_claims_supported", eval: func(ev *evaluation) (bool, string) {
		if codes := codesWithPrefix(ev.validationCodes, "unsupported_claim:"); len(codes) > 0 {
			return false, strings.Join(codes, ",")
		}
		return true, ""
	}}
}

// MaxDepth passes when the longest path (in edges) does not exceed
// limit. An invalid graph has depth -1 and fails the assertion.
func MaxDepth(limit int) Assertion {
	return Assertion{Name: fmt.Sprintf("max_depth(%d)", limit), eval: func(ev *evaluation) (bool, string) {
		d := ev.maxDepth()
		if d < 0 {
			return false, "graph invalid, depth=-1"
		}
		if d > limit {
			return false, fmt.Sprintf("depth %d exceeds %d", d, limit)
		}
		return true, fmt.Sprintf("depth %d", d)
	}}
}

// PathExists passes when target is reachable from source by forward
// traversal.
func PathExists(source, target string) Assertion {
	return Assertion{Name: fmt.Sprintf("path_exists(%s,%s)", source, target), eval: func(ev *evaluation) (bool, string) {
		if ev.reachable(source, target) {
			return true, ""
		}
		return false, fmt.Sprintf("no path %s -> %s", source, target)
	}}
}

// TypesAllowed passes when every node type is within the given set.
func TypesAllowed(types []NodeType) Assertion {
	allowed := make(map[NodeType]bool, len(types))
	for _, t := range types {
		allowed[t] = true
	}
	return Assertion{Name: "types_allowed", eval: func(ev *evaluation) (bool, string) {
		var bad []string
		for _, n := range ev.graph.Nodes {
			if !allowed[n.Type] {
				bad = append(bad, fmt.Sprintf("%s:%s", n.ID, n.Type))
			}
		}
		if len(bad) > 0 {
			return false, strings.Join(bad, ",")
		}
		return true, ""
	}}
}

// #endregion predicates

// #region graph-walks

// maxDepth computes the longest path in edges via memoized DFS.
// Returns -1 when the graph failed validation.
func (ev *evaluation) maxDepth() int {
	if !ev.valid {
		return -1
	}
	if ev.depths == nil {
		ev.depths = make(map[string]int, len(ev.graph.Nodes))
	}
	best := 0
	for _, n := range ev.graph.Nodes {
		if d := ev.depthFrom(n.ID); d > best {
			best = d
		}
	}
	return best
}

func (ev *evaluation) depthFrom(id string) int {
	if d, ok := ev.depths[id]; ok {
		return d
	}
	best := 0
	for _, next := range ev.adj[id] {
		if d := ev.depthFrom(next) + 1; d > best {
			best = d
		}
	}
	ev.depths[id] = best
	return best
}

// reachable does a forward BFS from source.
func (ev *evaluation) reachable(source, target string) bool {
	if source == target {
		for _, n := range ev.graph.Nodes {
			if n.ID == source {
				return true
			}
		}
		return false
	}
	visited := map[string]bool{source: true}
	queue := []string{source}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, next := range ev.adj[id] {
			if next == target {
				return true
			}
			if !visited[next] {
				visited[next] = true
				queue = append(queue, next)
			}
		}
	}
	return false
}

func buildAdj(g Graph) map[string][]string {
	ids := make(map[string]bool, len(g.Nodes))
	for _, n := range g.Nodes {
		ids[n.ID] = true
	}
	adj := make(map[string][]string)
	for _, e := range g.Edges {
		if ids[e.From] && ids[e.To] {
			adj[e.From] = append(adj[e.From], e.To)
		}
	}
	return adj
}

func codesWithPrefix(codes []string, prefix string) []string {
	var out []string
	for _, c := range codes {
		if strings.HasPrefix(c, prefix) {
			out = append(out, c)
		}
	}
	return out
}

// #endregion graph-walks

package gov

import (
	"fmt"
	"sort"
)

// #region types

// NodeType classifies a governance graph node.
type NodeType string

const (
	NodePremise     NodeType = "premise"
	NodeClaim       NodeType = "claim"
	NodeCalculation NodeType = "calculation"
	NodeEvidence    NodeType = "evidence"
	NodeObservation NodeType = "observation"
)

var allowedTypes = map[NodeType]bool{
	NodePremise:     true,
	NodeClaim:       true,
	NodeCalculation: true,
	NodeEvidence:    true,
	NodeObservation: true,
}

// Node is one vertex of a governance graph. Non-claim nodes may carry a
// PCN token that must be verified for the node to pass execution.
type Node struct {
	ID       string
	Type     NodeType
	PCNToken string
}

// Edge is a directed dependency from one node to another.
type Edge struct {
	From string
	To   string
}

// Graph is built fresh per governance check; it is never persisted.
type Graph struct {
	Nodes []Node
	Edges []Edge
}

// PCNStatus reports the current status of a PCN token; empty means the
// token is unknown.
type PCNStatus func(token string) string

// #endregion types

// #region validate

// Validate runs the pure structural checks: edge endpoints must exist,
// node types must be allowed, every claim needs at least one incoming
// edge, and the graph must be acyclic. Returns deduplicated failure
// codes; ok means the list is empty. No side effects.
func Validate(g Graph) (bool, []string) {
	codes := newCodeSet()

	byID := make(map[string]Node, len(g.Nodes))
	for _, n := range g.Nodes {
		byID[n.ID] = n
		if !allowedTypes[n.Type] {
			codes.add(fmt.Sprintf("invalid_type:%s", n.ID))
		}
	}

	incoming := make(map[string]int)
	adj := make(map[string][]string)
	for _, e := range g.Edges {
		if _, ok := byID[e.From]; !ok {
			codes.add(fmt.Sprintf("unknown_node:%s", e.From))
			continue
		}
		if _, ok := byID[e.To]; !ok {
			codes.add(fmt.Sprintf("unknown_node:%s", e.To))
			continue
		}
		incoming[e.To]++
		adj[e.From] = append(adj[e.From], e.To)
	}

	for _, n := range g.Nodes {
		if n.Type == NodeClaim && incoming[n.ID] == 0 {
			codes.add(fmt.Sprintf("unsupported_claim:%s", n.ID))
		}
	}

	for _, id := range detectCycles(g.Nodes, adj) {
		codes.add(fmt.Sprintf("cycle:%s", id))
	}

	out := codes.list()
	return len(out) == 0, out
}

// detectCycles runs an iterative two-color DFS and reports the target
// node of every back-edge found.
func detectCycles(nodes []Node, adj map[string][]string) []string {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(nodes))
	var hits []string

	for _, start := range nodes {
		if color[start.ID] != white {
			continue
		}
		// Explicit stack: frame index tracks the next neighbor to visit,
		// keeping depth bounded on adversarial graphs.
		type frame struct {
			id   string
			next int
		}
		stack := []frame{{id: start.ID}}
		color[start.ID] = gray

		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			neighbors := adj[top.id]
			if top.next < len(neighbors) {
				v := neighbors[top.next]
				top.next++
				switch color[v] {
				case white:
					color[v] = gray
					stack = append(stack, frame{id: v})
				case gray:
					hits = append(hits, v) // back-edge
				}
				continue
			}
			color[top.id] = black
			stack = stack[:len(stack)-1]
		}
	}
	return hits
}

// #endregion validate

// #region execute

// Execute processes nodes in topological order (Kahn's algorithm).
// Non-claim nodes carrying a PCN token fail unless the token is
// verified; claim nodes fail when any direct parent failed; unknown
// types always fail. Returns deduplicated failure codes.
func Execute(g Graph, status PCNStatus) (bool, []string) {
	codes := newCodeSet()

	byID := make(map[string]Node, len(g.Nodes))
	indeg := make(map[string]int, len(g.Nodes))
	adj := make(map[string][]string)
	parents := make(map[string][]string)
	for _, n := range g.Nodes {
		byID[n.ID] = n
		indeg[n.ID] = 0
	}
	for _, e := range g.Edges {
		adj[e.From] = append(adj[e.From], e.To)
		parents[e.To] = append(parents[e.To], e.From)
		indeg[e.To]++
	}

	var ready []string
	for _, n := range g.Nodes {
		if indeg[n.ID] == 0 {
			ready = append(ready, n.ID)
		}
	}
	sort.Strings(ready)

	failed := make(map[string]bool, len(g.Nodes))
	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		n := byID[id]

		switch {
		case n.Type == NodeClaim:
			for _, p := range parents[id] {
				if failed[p] {
					failed[id] = true
					codes.add(fmt.Sprintf("dependency_failure:%s", id))
					break
				}
			}
		case allowedTypes[n.Type]:
			if n.PCNToken != "" {
				st := ""
				if status != nil {
					st = status(n.PCNToken)
				}
				if st != "verified" {
					failed[id] = true
					codes.add(fmt.Sprintf("pcn_failure:%s", id))
				}
			}
		default:
			failed[id] = true
			codes.add(fmt.Sprintf("unknown_type:%s", id))
		}

		for _, m := range adj[id] {
			indeg[m]--
			if indeg[m] == 0 {
				ready = append(ready, m)
			}
		}
		sort.Strings(ready)
	}

	out := codes.list()
	return len(out) == 0, out
}

// #endregion execute

// #region evaluate

// Evaluate validates, then executes. When validation fails, execution
// is skipped entirely and the validation codes are returned; there is
// no partial evaluation of an invalid graph.
func Evaluate(g Graph, status PCNStatus) (bool, []string) {
	if ok, codes := Validate(g); !ok {
		return false, codes
	}
	return Execute(g, status)
}

// #endregion evaluate

// #region code-set

// codeSet deduplicates failure codes while preserving insert order.
type codeSet struct {
	seen  map[string]bool
	codes []string
}

func newCodeSet() *codeSet {
	return &codeSet{seen: make(map[string]bool)}
}

func (c *codeSet) add(code string) {
	if c.seen[code] {
		return
	}
	c.seen[code] = true
	c.codes = append(c.codes, code)
}

func (c *codeSet) list() []string {
	return c.codes
}

// #endregion code-set

package gov

import "testing"

func chainGraph() Graph {
	return Graph{
		Nodes: []Node{
			{ID: "e1", Type: NodeEvidence},
			{ID: "p1", Type: NodePremise, PCNToken: "t1"},
			{ID: "c1", Type: NodeClaim},
		},
		Edges: []Edge{
			{From: "e1", To: "p1"},
			{From: "p1", To: "c1"},
		},
	}
}

func TestCheckerAllPass(t *testing.T) {
	c := NewChecker()
	status := verifiedStatus(map[string]string{"t1": "verified"})

	results := c.Check(chainGraph(), status, []Assertion{
		NoCycles(),
		NoPCNFailures(),
		NoDependencyFailures(),
		AllClaimsSupported(),
		MaxDepth(2),
		PathExists("e1", "c1"),
		TypesAllowed([]NodeType{NodePremise, NodeClaim, NodeEvidence}),
	})

	for _, r := range results {
		if !r.Pass {
			t.Errorf("assertion %s failed: %s", r.Name, r.Details)
		}
	}
}

func TestMaxDepthExceeded(t *testing.T) {
	c := NewChecker()
	results := c.Check(chainGraph(), verifiedStatus(map[string]string{"t1": "verified"}), []Assertion{
		MaxDepth(1),
	})
	if results[0].Pass {
		t.Fatal("depth 2 must fail max_depth(1)")
	}
}

func TestMaxDepthInvalidGraph(t *testing.T) {
	g := Graph{
		Nodes: []Node{
			{ID: "a", Type: NodePremise},
			{ID: "b", Type: NodeCalculation},
		},
		Edges: []Edge{
			{From: "a", To: "b"},
			{From: "b", To: "a"},
		},
	}
	c := NewChecker()
	results := c.Check(g, nil, []Assertion{MaxDepth(10)})
	if results[0].Pass {
		t.Fatal("invalid graph must fail max_depth with depth=-1")
	}
}

func TestPathExistsNegative(t *testing.T) {
	c := NewChecker()
	results := c.Check(chainGraph(), verifiedStatus(map[string]string{"t1": "verified"}), []Assertion{
		PathExists("c1", "e1"), // wrong direction
	})
	if results[0].Pass {
		t.Fatal("reverse path must not exist")
	}
}

func TestTypesAllowedViolation(t *testing.T) {
	c := NewChecker()
	results := c.Check(chainGraph(), verifiedStatus(map[string]string{"t1": "verified"}), []Assertion{
		TypesAllowed([]NodeType{NodeClaim}),
	})
	if results[0].Pass {
		t.Fatal("expected types_allowed violation")
	}
}

func TestCountersAccumulateAcrossCalls(t *testing.T) {
	c := NewChecker()
	status := verifiedStatus(nil) // t1 unverified: pcn failure

	for i := 0; i < 3; i++ {
		c.Check(chainGraph(), status, []Assertion{NoPCNFailures(), NoCycles()})
	}

	runs, fails := c.Counters()
	if runs["no_pcn_failures"] != 3 {
		t.Fatalf("expected 3 runs, got %d", runs["no_pcn_failures"])
	}
	if fails["no_pcn_failures"] != 3 {
		t.Fatalf("expected 3 fails, got %d", fails["no_pcn_failures"])
	}
	if fails["no_cycles"] != 0 {
		t.Fatalf("no_cycles should not fail, got %d", fails["no_cycles"])
	}
	if runs["no_cycles"] != 3 {
		t.Fatalf("expected 3 runs, got %d", runs["no_cycles"])
	}
}

func TestMaxDepthCounterBaseName(t *testing.T) {
	c := NewChecker()
	c.Check(chainGraph(), verifiedStatus(map[string]string{"t1": "verified"}), []Assertion{MaxDepth(5)})
	c.Check(chainGraph(), verifiedStatus(map[string]string{"t1": "verified"}), []Assertion{MaxDepth(9)})
	runs, _ := c.Counters()
	if runs["max_depth"] != 2 {
		t.Fatalf("parameterized assertions must share a base counter, got %v", runs)
	}
}

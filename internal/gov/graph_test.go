package gov

import (
	"testing"
)

func verifiedStatus(tokens map[string]string) PCNStatus {
	return func(token string) string { return tokens[token] }
}

func TestEvaluateVerifiedChain(t *testing.T) {
	g := Graph{
		Nodes: []Node{
			{ID: "a", Type: NodePremise, PCNToken: "t1"},
			{ID: "b", Type: NodeClaim},
		},
		Edges: []Edge{{From: "a", To: "b"}},
	}

	ok, codes := Evaluate(g, verifiedStatus(map[string]string{"t1": "verified"}))
	if !ok {
		t.Fatalf("expected ok, got codes %v", codes)
	}
	if len(codes) != 0 {
		t.Fatalf("expected no codes, got %v", codes)
	}
}

func TestEvaluateUnverifiedTokenPropagates(t *testing.T) {
	g := Graph{
		Nodes: []Node{
			{ID: "a", Type: NodePremise, PCNToken: "t1"},
			{ID: "b", Type: NodeClaim},
		},
		Edges: []Edge{{From: "a", To: "b"}},
	}

	ok, codes := Evaluate(g, verifiedStatus(nil))
	if ok {
		t.Fatal("expected failure")
	}
	if len(codes) != 2 || codes[0] != "pcn_failure:a" || codes[1] != "dependency_failure:b" {
		t.Fatalf("unexpected codes %v", codes)
	}
}

func TestValidateCycle(t *testing.T) {
	g := Graph{
		Nodes: []Node{
			{ID: "a", Type: NodePremise},
			{ID: "b", Type: NodeClaim},
			{ID: "c", Type: NodeCalculation},
		},
		Edges: []Edge{
			{From: "a", To: "b"},
			{From: "b", To: "c"},
			{From: "c", To: "b"},
		},
	}

	ok, codes := Validate(g)
	if ok {
		t.Fatal("cyclic graph must fail validation")
	}
	found := false
	for _, c := range codes {
		if len(c) > 6 && c[:6] == "cycle:" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a cycle code, got %v", codes)
	}
}

func TestValidateUnknownEdgeEndpoint(t *testing.T) {
	g := Graph{
		Nodes: []Node{{ID: "a", Type: NodePremise}},
		Edges: []Edge{{From: "a", To: "ghost"}},
	}
	ok, codes := Validate(g)
	if ok {
		t.Fatal("expected validation failure")
	}
	if codes[0] != "unknown_node:ghost" {
		t.Fatalf("unexpected codes %v", codes)
	}
}

func TestValidateUnsupportedClaim(t *testing.T) {
	g := Graph{
		Nodes: []Node{{ID: "c1", Type: NodeClaim}},
	}
	ok, codes := Validate(g)
	if ok {
		t.Fatal("claim without incoming edge must fail")
	}
	if codes[0] != "unsupported_claim:c1" {
		t.Fatalf("unexpected codes %v", codes)
	}
}

func TestValidateBadType(t *testing.T) {
	g := Graph{
		Nodes: []Node{{ID: "x", Type: "wish"}},
	}
	ok, codes := Validate(g)
	if ok {
		t.Fatal("expected failure")
	}
	if codes[0] != "invalid_type:x" {
		t.Fatalf("unexpected codes %v", codes)
	}
}

func TestValidationFailureSkipsExecution(t *testing.T) {
	// The cycle makes the graph invalid; the unverified token must NOT
	// surface because execution is skipped entirely.
	g := Graph{
		Nodes: []Node{
			{ID: "a", Type: NodePremise, PCNToken: "t1"},
			{ID: "b", Type: NodeClaim},
		},
		Edges: []Edge{
			{From: "a", To: "b"},
			{From: "b", To: "a"},
		},
	}
	ok, codes := Evaluate(g, verifiedStatus(nil))
	if ok {
		t.Fatal("expected failure")
	}
	for _, c := range codes {
		if c == "pcn_failure:a" {
			t.Fatalf("execution ran on an invalid graph: %v", codes)
		}
	}
}

func TestExecuteDeepPropagation(t *testing.T) {
	// premise(fail) -> calc -> claim1 -> claim2: only claims inherit
	// failure; the intermediate calculation has no token and passes.
	g := Graph{
		Nodes: []Node{
			{ID: "p", Type: NodePremise, PCNToken: "t1"},
			{ID: "m", Type: NodeCalculation},
			{ID: "c1", Type: NodeClaim},
			{ID: "c2", Type: NodeClaim},
		},
		Edges: []Edge{
			{From: "p", To: "c1"},
			{From: "m", To: "c1"},
			{From: "c1", To: "c2"},
		},
	}
	ok, codes := Evaluate(g, verifiedStatus(map[string]string{"t1": "failed"}))
	if ok {
		t.Fatal("expected failure")
	}
	want := map[string]bool{"pcn_failure:p": true, "dependency_failure:c1": true, "dependency_failure:c2": true}
	if len(codes) != len(want) {
		t.Fatalf("unexpected codes %v", codes)
	}
	for _, c := range codes {
		if !want[c] {
			t.Fatalf("unexpected code %s in %v", c, codes)
		}
	}
}

func TestCodesDeduplicated(t *testing.T) {
	g := Graph{
		Nodes: []Node{{ID: "a", Type: NodePremise}},
		Edges: []Edge{
			{From: "a", To: "ghost"},
			{From: "a", To: "ghost"},
		},
	}
	_, codes := Validate(g)
	if len(codes) != 1 {
		t.Fatalf("expected deduplicated codes, got %v", codes)
	}
}

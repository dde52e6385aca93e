package numeval

import (
	"math"
	"testing"
)

func TestEvaluateBasicOps(t *testing.T) {
	cases := []struct {
		expr string
		want float64
	}{
		{"1+2", 3},
		{"2*3+4", 10},
		{"2+3*4", 14},
		{"(2+3)*4", 20},
		{"10/4", 2.5},
		{"2^10", 1024},
		{"2^3^2", 512}, // right associative
		{"-5+3", -2},
		{"--4", 4},
		{"1.5e2 + 0.5", 150.5},
		{" 7 - 2 - 1 ", 4},
	}
	for _, c := range cases {
		got, err := Evaluate(c.expr)
		if err != nil {
			t.Fatalf("Evaluate(%q) error: %v", c.expr, err)
		}
		if math.Abs(got-c.want) > 1e-9 {
			t.Errorf("Evaluate(%q) = %v, want %v", c.expr, got, c.want)
		}
	}
}

func TestEvaluateRejectsIdentifiers(t *testing.T) {
	for _, expr := range []string{"os.exit(1)", "x+1", "1+abc", "__import__"} {
		if _, err := Evaluate(expr); err == nil {
			t.Errorf("Evaluate(%q) should fail", expr)
		}
	}
}

func TestEvaluateDivisionByZero(t *testing.T) {
	if _, err := Evaluate("1/0"); err == nil {
		t.Fatal("expected division by zero error")
	}
}

func TestEvaluateMalformed(t *testing.T) {
	for _, expr := range []string{"", "(1+2", "1+", "1 2", "1..2"} {
		if _, err := Evaluate(expr); err == nil {
			t.Errorf("Evaluate(%q) should fail", expr)
		}
	}
}

func TestEvaluateNonFinite(t *testing.T) {
	if _, err := Evaluate("10^10^10"); err == nil {
		t.Fatal("expected non-finite result error")
	}
}

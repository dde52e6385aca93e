package pcn

import (
	"strings"
	"testing"
)

func TestVerifyMathMatch(t *testing.T) {
	v := NewVerifier()
	v.Register("t1", Policy{}, "calc")

	if got := v.VerifyMath("t1", "6*7", 42); got != StatusVerified {
		t.Fatalf("expected verified, got %s", got)
	}
	val := v.ValueFor("t1")
	if val == nil || *val != "42" {
		t.Fatalf("expected value 42, got %v", val)
	}
}

func TestVerifyMathMismatch(t *testing.T) {
	v := NewVerifier()
	v.Register("t1", Policy{}, "calc")

	if got := v.VerifyMath("t1", "6*7", 41); got != StatusFailed {
		t.Fatalf("expected failed, got %s", got)
	}
	if v.ValueFor("t1") != nil {
		t.Fatal("failed token must have nil value")
	}
	e := v.Entry("t1")
	if e.Reason == nil || !strings.Contains(*e.Reason, "expected") {
		t.Fatalf("expected mismatch reason, got %v", e.Reason)
	}
}

func TestVerifyMathTolerance(t *testing.T) {
	v := NewVerifier()
	v.Register("t1", Policy{Tolerance: 0.5}, "calc")
	if got := v.VerifyMath("t1", "10/3", 3.5); got != StatusVerified {
		t.Fatalf("within tolerance should verify, got %s", got)
	}
}

func TestVerifyMathBadExpression(t *testing.T) {
	v := NewVerifier()
	v.Register("t1", Policy{}, "calc")
	if got := v.VerifyMath("t1", "import os", 0); got != StatusFailed {
		t.Fatalf("expected failed, got %s", got)
	}
}

func TestOneShotTransition(t *testing.T) {
	v := NewVerifier()
	v.Register("t1", Policy{}, "calc")
	v.VerifyMath("t1", "2+2", 4)

	// A second verification attempt with a mismatch must not change
	// the terminal state or the stored value.
	if got := v.VerifyMath("t1", "2+2", 99); got != StatusVerified {
		t.Fatalf("terminal state changed, got %s", got)
	}
	if val := v.ValueFor("t1"); val == nil || *val != "4" {
		t.Fatalf("value changed after terminal state: %v", val)
	}

	if got := v.Fail("t1", "too late"); got != StatusVerified {
		t.Fatalf("Fail overrode terminal state: %s", got)
	}
}

func TestReRegisterIsNoOp(t *testing.T) {
	v := NewVerifier()
	e1 := v.Register("t1", Policy{Tolerance: 0.1}, "calc")
	e2 := v.Register("t1", Policy{Tolerance: 9.9}, "other")
	if e1 != e2 {
		t.Fatal("re-registration must reuse the existing entry")
	}
	if e2.Policy.Tolerance != 0.1 {
		t.Fatal("re-registration must not overwrite policy")
	}
}

func TestVerifySQL(t *testing.T) {
	v := NewVerifier()
	v.Register("q1", Policy{}, "sql")
	if got := v.VerifySQL("q1", " 1234.5 "); got != StatusVerified {
		t.Fatalf("expected verified, got %s", got)
	}
	if val := v.ValueFor("q1"); val == nil || *val != "1234.5" {
		t.Fatalf("unexpected value %v", val)
	}

	v.Register("q2", Policy{}, "sql")
	if got := v.VerifySQL("q2", "not a number"); got != StatusFailed {
		t.Fatalf("expected failed, got %s", got)
	}
}

func TestVerifyURL(t *testing.T) {
	v := NewVerifier()
	v.Register("u1", Policy{}, "fetch")
	if got := v.VerifyURL("u1", "https://example.com/data"); got != StatusVerified {
		t.Fatalf("expected verified, got %s", got)
	}
	if val := v.ValueFor("u1"); val == nil || *val != "https://example.com/data" {
		t.Fatalf("unexpected value %v", val)
	}
}

func TestUnitAllowList(t *testing.T) {
	v := NewVerifier()
	v.Register("t1", Policy{Units: "kg"}, "calc")
	if got := v.VerifyMath("t1", "2+2", 4); got != StatusVerified {
		t.Fatalf("recognized unit should pass, got %s", got)
	}

	v.Register("t2", Policy{Units: "florps"}, "calc")
	if got := v.VerifyMath("t2", "2+2", 4); got != StatusFailed {
		t.Fatalf("unrecognized unit should fail, got %s", got)
	}
}

func TestFormatValue(t *testing.T) {
	cases := map[float64]string{
		42:        "42",
		-7:        "-7",
		3.14159:   "3.14159",
		2.0 / 3.0: "0.666667",
	}
	for in, want := range cases {
		if got := FormatValue(in); got != want {
			t.Errorf("FormatValue(%v) = %q, want %q", in, got, want)
		}
	}
}

func TestSubstitute(t *testing.T) {
	v := NewVerifier()
	v.Register("ok", Policy{}, "calc")
	v.VerifyMath("ok", "6*7", 42)
	v.Register("bad", Policy{}, "calc")
	v.Fail("bad", "upstream problem")

	text := "The result is [PCN:ok] items, not [PCN:bad] or [PCN:unknown]."
	got := v.Substitute(text)
	want := "The result is 42 items, not [unverified] or [unverified]."
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestSubstituteIdempotent(t *testing.T) {
	v := NewVerifier()
	v.Register("ok", Policy{}, "calc")
	v.VerifyMath("ok", "1+1", 2)

	once := v.Substitute("value: [PCN:ok] and [PCN:missing]")
	twice := v.Substitute(once)
	if once != twice {
		t.Fatalf("substitution not idempotent: %q vs %q", once, twice)
	}
}

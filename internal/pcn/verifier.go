package pcn

import (
	"fmt"
	"log"
	"math"
	"strconv"
	"strings"

	"credence/internal/numeval"
)

// #region types

// Status is the lifecycle state of a proof-carrying token.
type Status string

const (
	StatusPending  Status = "pending"
	StatusVerified Status = "verified"
	StatusFailed   Status = "failed"
)

// Policy constrains how a token's claim is checked. Units validation is
// best-effort against a fixed allow-list of simple unit strings; it is
// not physically rigorous.
type Policy struct {
	Tolerance float64
	Units     string
}

// Entry is the stored record for one token. It transitions exactly once
// from pending to a terminal state.
type Entry struct {
	TokenID    string
	Policy     Policy
	Provenance string
	Status     Status
	Value      *string
	Reason     *string
}

// #endregion types

// #region verifier

// Verifier tracks proof-carrying tokens for one request.
type Verifier struct {
	entries map[string]*Entry
	order   []string
}

// NewVerifier creates an empty token registry.
func NewVerifier() *Verifier {
	return &Verifier{entries: make(map[string]*Entry)}
}

// Register creates a pending entry for the token id. Re-registering an
// existing id is a no-op that reuses the entry.
func (v *Verifier) Register(tokenID string, policy Policy, provenance string) *Entry {
	if e, ok := v.entries[tokenID]; ok {
		return e
	}
	e := &Entry{
		TokenID:    tokenID,
		Policy:     policy,
		Provenance: provenance,
		Status:     StatusPending,
	}
	v.entries[tokenID] = e
	v.order = append(v.order, tokenID)
	return e
}

// Entry returns the entry for a token id, or nil.
func (v *Verifier) Entry(tokenID string) *Entry {
	return v.entries[tokenID]
}

// Entries returns all entries in registration order.
func (v *Verifier) Entries() []*Entry {
	out := make([]*Entry, 0, len(v.order))
	for _, id := range v.order {
		out = append(out, v.entries[id])
	}
	return out
}

// #endregion verifier

// #region verify-math

// VerifyMath evaluates expr and compares against the observed value
// within the token's tolerance. Any evaluation error, unit mismatch, or
// numeric mismatch fails the token; terminal states never change.
func (v *Verifier) VerifyMath(tokenID, expr string, observed float64) Status {
	e := v.entries[tokenID]
	if e == nil {
		e = v.Register(tokenID, Policy{}, "math")
	}
	if e.Status != StatusPending {
		return e.Status
	}

	expected, err := numeval.Evaluate(expr)
	if err != nil {
		return v.fail(e, fmt.Sprintf("eval %q: %v", expr, err))
	}
	if math.Abs(expected-observed) > e.Policy.Tolerance {
		return v.fail(e, fmt.Sprintf("expected %v, observed %v (tolerance %v)", expected, observed, e.Policy.Tolerance))
	}
	if e.Policy.Units != "" && !unitRecognized(e.Policy.Units) {
		return v.fail(e, fmt.Sprintf("unrecognized unit %q", e.Policy.Units))
	}
	return v.verify(e, FormatValue(observed))
}

// #endregion verify-math

// #region verify-sql

// VerifySQL coerces a query result to a number and applies the unit
// check. The numeric value itself is trusted; only coercion can fail.
func (v *Verifier) VerifySQL(tokenID, value string) Status {
	e := v.entries[tokenID]
	if e == nil {
		e = v.Register(tokenID, Policy{}, "sql")
	}
	if e.Status != StatusPending {
		return e.Status
	}

	num, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return v.fail(e, fmt.Sprintf("non-numeric sql value %q", value))
	}
	if e.Policy.Units != "" && !unitRecognized(e.Policy.Units) {
		return v.fail(e, fmt.Sprintf("unrecognized unit %q", e.Policy.Units))
	}
	return v.verify(e, FormatValue(num))
}

// #endregion verify-sql

// #region verify-url

// VerifyURL marks a URL token verified with the URL as its value; there
// is no numeric correctness to check.
func (v *Verifier) VerifyURL(tokenID, url string) Status {
	e := v.entries[tokenID]
	if e == nil {
		e = v.Register(tokenID, Policy{}, "url")
	}
	if e.Status != StatusPending {
		return e.Status
	}
	return v.verify(e, url)
}

// #endregion verify-url

// #region fail

// Fail marks a pending token failed with the given reason. Callers use
// this when a problem is detected upstream of verification.
func (v *Verifier) Fail(tokenID, reason string) Status {
	e := v.entries[tokenID]
	if e == nil {
		e = v.Register(tokenID, Policy{}, "")
	}
	if e.Status != StatusPending {
		return e.Status
	}
	return v.fail(e, reason)
}

// #endregion fail

// #region value-for

// ValueFor returns the formatted value only for verified tokens;
// otherwise nil. Callers must render "[unverified]" for nil.
func (v *Verifier) ValueFor(tokenID string) *string {
	e := v.entries[tokenID]
	if e == nil || e.Status != StatusVerified {
		return nil
	}
	return e.Value
}

// StatusOf returns the token's current status, or empty for unknown ids.
func (v *Verifier) StatusOf(tokenID string) Status {
	e := v.entries[tokenID]
	if e == nil {
		return ""
	}
	return e.Status
}

// #endregion value-for

// #region transitions

func (v *Verifier) verify(e *Entry, value string) Status {
	e.Status = StatusVerified
	e.Value = &value
	log.Printf("[PCN] token %s verified: %s", e.TokenID, value)
	return e.Status
}

func (v *Verifier) fail(e *Entry, reason string) Status {
	e.Status = StatusFailed
	e.Reason = &reason
	log.Printf("[PCN] token %s failed: %s", e.TokenID, reason)
	return e.Status
}

// #endregion transitions

// #region formatting

// FormatValue renders integers without decimals and floats with up to 6
// significant digits.
func FormatValue(v float64) string {
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return strconv.FormatFloat(v, 'f', 0, 64)
	}
	return strconv.FormatFloat(v, 'g', 6, 64)
}

// #endregion formatting

// #region units

// simpleUnits is the best-effort unit allow-list used when no units
// library is available.
var simpleUnits = map[string]bool{
	"m": true, "km": true, "cm": true, "mm": true, "mi": true, "ft": true,
	"kg": true, "g": true, "mg": true, "lb": true, "oz": true, "t": true,
	"s": true, "ms": true, "min": true, "h": true, "day": true, "yr": true,
	"c": true, "f": true, "k": true, "%": true, "usd": true, "eur": true,
	"gb": true, "mb": true, "kb": true, "tb": true,
}

func unitRecognized(unit string) bool {
	return simpleUnits[strings.ToLower(strings.TrimSpace(unit))]
}

// #endregion units

package gate

import (
	"fmt"
	"log"
)

// #region supplier

// ThresholdSupplier provides the calibrated threshold for a domain.
// A nil tau means calibration is unavailable for that domain.
type ThresholdSupplier interface {
	Tau(domain string) (*float64, error)
}

// #endregion supplier

// #region gate

// Gate is the conformal acceptance check: a score passes only when it
// meets the domain's calibrated threshold.
type Gate struct {
	enabled    bool
	supplier   ThresholdSupplier
	lastReason string
}

// New creates a gate. A disabled gate accepts everything.
func New(enabled bool, supplier ThresholdSupplier) *Gate {
	return &Gate{enabled: enabled, supplier: supplier}
}

// Accept returns whether S clears the domain threshold. When the
// threshold is unavailable it returns false with reason "missing_tau";
// the caller surfaces this as the cp_missing_calibration issue rather
// than an error. The only side effect is the last-reason diagnostic.
func (g *Gate) Accept(domain string, s float64) bool {
	if !g.enabled {
		g.lastReason = "disabled"
		return true
	}

	tau, err := g.supplier.Tau(domain)
	if err != nil {
		log.Printf("[GATE] threshold lookup failed for %s: %v", domain, err)
		g.lastReason = "missing_tau"
		return false
	}
	if tau == nil {
		g.lastReason = "missing_tau"
		return false
	}

	if s >= *tau {
		g.lastReason = fmt.Sprintf("S=%.4f >= tau=%.4f", s, *tau)
		return true
	}
	g.lastReason = fmt.Sprintf("S=%.4f < tau=%.4f", s, *tau)
	return false
}

// LastReason reports why the most recent Accept call decided the way it
// did. Diagnostics only.
func (g *Gate) LastReason() string {
	return g.lastReason
}

// Enabled returns whether the gate is active.
func (g *Gate) Enabled() bool {
	return g.enabled
}

// #endregion gate

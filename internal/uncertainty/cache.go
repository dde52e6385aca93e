package uncertainty

import (
	"log"
	"time"

	"credence/internal/calibration"
)

// #region cache

// refCache holds per-domain raw-uncertainty quantile curves with a
// refresh interval. Stale or missing entries refresh on read; lookup
// failures fall back to an empty curve (logistic normalization) rather
// than erroring.
type refCache struct {
	refs    ReferenceSource
	ttl     time.Duration
	entries map[string]cacheEntry
}

type cacheEntry struct {
	curve     []calibration.QuantilePoint
	fetchedAt time.Time
}

func newRefCache(refs ReferenceSource, ttlSeconds float64) *refCache {
	return &refCache{
		refs:    refs,
		ttl:     time.Duration(ttlSeconds * float64(time.Second)),
		entries: make(map[string]cacheEntry),
	}
}

// curve returns the domain's raw-uncertainty quantile curve, refreshing
// when stale. An empty result means "no calibration: use logistic". The
// reference's score curve is on the final-score scale and must never be
// used here; interpolating a raw value against it degenerates to the
// curve's first knot.
func (c *refCache) curve(domain string) []calibration.QuantilePoint {
	if c.refs == nil {
		return nil
	}
	if entry, ok := c.entries[domain]; ok && time.Since(entry.fetchedAt) < c.ttl {
		return entry.curve
	}

	ref, err := c.refs.Reference(domain)
	if err != nil {
		log.Printf("[UQ] reference lookup failed for %s: %v", domain, err)
		return nil
	}

	var curve []calibration.QuantilePoint
	if ref != nil {
		curve = ref.UncertaintyCurve
	}
	c.entries[domain] = cacheEntry{curve: curve, fetchedAt: time.Now()}
	return curve
}

// #endregion cache

package pcn

import "regexp"

// #region substitution

var tokenPattern = regexp.MustCompile(`\[PCN:([A-Za-z0-9_\-]+)\]`)

// Unverified is the placeholder rendered for any token that did not
// reach verified status.
const Unverified = "[unverified]"

// Substitute replaces every [PCN:<id>] placeholder with the token's
// verified value, or "[unverified]" otherwise. Substituted text contains
// no placeholders, so a second pass is a no-op: this runs exactly once
// at the very end of the pipeline, after all refinement iterations.
func (v *Verifier) Substitute(text string) string {
	return tokenPattern.ReplaceAllStringFunc(text, func(match string) string {
		id := tokenPattern.FindStringSubmatch(match)[1]
		if val := v.ValueFor(id); val != nil {
			return *val
		}
		return Unverified
	})
}

// #endregion substitution

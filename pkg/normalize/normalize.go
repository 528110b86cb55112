// Package normalize classifies raw, possibly-localized error messages into
// the canonical identifiers of an error catalog.
//
// Lookup runs in two phases: an O(1) exact match against the full message
// string, then an ordered scan of the partial-match rules where the first
// matching rule wins and its capture groups are extracted as named variables.
// A Normalizer is a pure function of its catalog and the input string; it is
// safe for concurrent use without synchronization.
package normalize

import "errguard/pkg/catalog"

// Normalizer resolves messages against an immutable catalog.
type Normalizer struct {
	cat *catalog.Catalog
}

// New returns a Normalizer over the given catalog.
func New(cat *catalog.Catalog) *Normalizer {
	return &Normalizer{cat: cat}
}

// Catalog returns the catalog this normalizer runs on.
func (n *Normalizer) Catalog() *catalog.Catalog {
	return n.cat
}

// Normalize returns the canonical identifier for message and, for partial
// matches, the extracted variables keyed by the rule's variable names. A
// capture group that did not participate in the match yields an empty string,
// never an absent key, so callers can always index variables by name once a
// rule matched. No match returns the empty identifier and a nil map; there is
// no error case.
func (n *Normalizer) Normalize(message string) (catalog.ID, map[string]string) {
	if tr, ok := n.cat.Exact[message]; ok {
		return tr.ID, nil
	}
	if message == "" {
		return "", nil
	}
	for _, rule := range n.cat.Partial {
		m := rule.Pattern.FindStringSubmatch(message)
		if m == nil {
			continue
		}
		vars := make(map[string]string, len(rule.Variables))
		for i, name := range rule.Variables {
			// FindStringSubmatch pads non-participating groups with "".
			vars[name] = m[i+1]
		}
		return rule.ID, vars
	}
	return "", nil
}

// LocaleOf mirrors Normalize's two-phase lookup but returns the locale stored
// with the matching entry instead of the canonical identifier. It returns the
// empty string when the message is unknown.
func (n *Normalizer) LocaleOf(message string) string {
	if tr, ok := n.cat.Exact[message]; ok {
		return tr.Locale
	}
	if message == "" {
		return ""
	}
	for _, rule := range n.cat.Partial {
		if rule.Pattern.MatchString(message) {
			return rule.Locale
		}
	}
	return ""
}

// Package catalog holds the static error data the normalization layer is
// built on: canonical error identifiers with their English reference text,
// the subset of identifiers known to never benefit from a retry, exact
// translations of error messages keyed by the full localized string, and an
// ordered list of partial-match rules with variable extraction.
//
// The tables are data, not code. They live in an embedded YAML file and are
// loaded exactly once per process; after loading the catalog is immutable and
// safe for concurrent use without synchronization. Identifiers are stable:
// once published they never change, because downstream consumers persist and
// compare against them.
//
// Partial rules are evaluated in file order and the first match wins. Order
// is a designed tie-break: a generic pattern placed before a more specific
// one would shadow it, so specific rules come first in the data file.
package catalog

package catalog

import (
	_ "embed"
	"fmt"
	"regexp"
	"sync"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// ID is a canonical, language-independent error identifier. Identifiers are
// unique within the catalog and never change once published.
type ID string

// Canonical identifiers known to the default catalog.
const (
	ServerErrorRetryLater      ID = "SERVER_ERROR_RETRY_LATER"
	ServerErrorDeadline        ID = "SERVER_ERROR_DEADLINE"
	BackendError               ID = "BACKEND_ERROR"
	EmptyResponse              ID = "EMPTY_RESPONSE"
	ServiceUnavailable         ID = "SERVICE_UNAVAILABLE"
	LockTimeout                ID = "LOCK_TIMEOUT"
	UserRateLimitExceeded      ID = "USER_RATE_LIMIT_EXCEEDED"
	RateLimitRetryAfter        ID = "RATE_LIMIT_RETRY_AFTER"
	ServiceInvokedTooManyTimes ID = "SERVICE_INVOKED_TOO_MANY_TIMES"
	AuthorizationRequired      ID = "AUTHORIZATION_REQUIRED"
	PermissionDenied           ID = "PERMISSION_DENIED"
	NotFound                   ID = "NOT_FOUND"
	InvalidArgument            ID = "INVALID_ARGUMENT"
	DocumentMissing            ID = "DOCUMENT_MISSING"
	ConditionNotMet            ID = "CONDITION_NOT_MET"
	ServiceDisabled            ID = "SERVICE_DISABLED"
)

// RetryAfterVariable is the variable name under which rules for
// RateLimitRetryAfter expose the server-specified resume time.
const RetryAfterVariable = "retryAfter"

// Translation is the value side of an exact-match entry.
type Translation struct {
	ID     ID
	Locale string
}

// Rule is one partial-match entry: a compiled pattern whose capture groups
// pair positionally with Variables.
type Rule struct {
	Pattern   *regexp.Regexp
	Variables []string
	ID        ID
	Locale    string
}

// Catalog is the immutable set of lookup tables the normalizer runs on.
type Catalog struct {
	// Reference maps every canonical identifier to its English reference text.
	Reference map[ID]string
	// NoRetry is the set of identifiers for which retrying never helps.
	NoRetry map[ID]struct{}
	// Exact maps full localized message strings to their classification.
	Exact map[string]Translation
	// Partial holds the ordered partial-match rules; first match wins.
	Partial []Rule
}

// IsNoRetry reports whether retrying an error with the given id is known to
// never help.
func (c *Catalog) IsNoRetry(id ID) bool {
	_, ok := c.NoRetry[id]
	return ok
}

//go:embed translations.yaml
var embedded []byte

type rawCatalog struct {
	Errors []struct {
		ID      string `yaml:"id"`
		Message string `yaml:"message"`
		NoRetry bool   `yaml:"noRetry"`
	} `yaml:"errors"`
	Exact []struct {
		Text   string `yaml:"text"`
		ID     string `yaml:"id"`
		Locale string `yaml:"locale"`
	} `yaml:"exact"`
	Partial []struct {
		Pattern   string   `yaml:"pattern"`
		Variables []string `yaml:"variables"`
		ID        string   `yaml:"id"`
		Locale    string   `yaml:"locale"`
	} `yaml:"partial"`
}

// Parse builds a Catalog from YAML data, validating that identifiers are
// unique, exact keys do not collide, locales are well-formed BCP 47 tags and
// every pattern captures exactly as many groups as it names variables.
func Parse(data []byte) (*Catalog, error) {
	var raw rawCatalog
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("catalog: parse yaml: %w", err)
	}

	c := &Catalog{
		Reference: make(map[ID]string, len(raw.Errors)),
		NoRetry:   make(map[ID]struct{}),
		Exact:     make(map[string]Translation, len(raw.Exact)),
	}

	for _, e := range raw.Errors {
		id := ID(e.ID)
		if id == "" || e.Message == "" {
			return nil, fmt.Errorf("catalog: error entry %q missing id or message", e.ID)
		}
		if _, dup := c.Reference[id]; dup {
			return nil, fmt.Errorf("catalog: duplicate identifier %q", id)
		}
		c.Reference[id] = e.Message
		if e.NoRetry {
			c.NoRetry[id] = struct{}{}
		}
	}

	for _, e := range raw.Exact {
		if _, dup := c.Exact[e.Text]; dup {
			return nil, fmt.Errorf("catalog: duplicate exact entry %q", e.Text)
		}
		id := ID(e.ID)
		if _, known := c.Reference[id]; !known {
			return nil, fmt.Errorf("catalog: exact entry %q references unknown id %q", e.Text, e.ID)
		}
		locale, err := canonicalLocale(e.Locale)
		if err != nil {
			return nil, fmt.Errorf("catalog: exact entry %q: %w", e.Text, err)
		}
		c.Exact[e.Text] = Translation{ID: id, Locale: locale}
	}

	c.Partial = make([]Rule, 0, len(raw.Partial))
	for i, p := range raw.Partial {
		id := ID(p.ID)
		if _, known := c.Reference[id]; !known {
			return nil, fmt.Errorf("catalog: partial rule %d references unknown id %q", i, p.ID)
		}
		re, err := regexp.Compile(p.Pattern)
		if err != nil {
			return nil, fmt.Errorf("catalog: partial rule %d: %w", i, err)
		}
		if re.NumSubexp() != len(p.Variables) {
			return nil, fmt.Errorf("catalog: partial rule %d captures %d groups but names %d variables",
				i, re.NumSubexp(), len(p.Variables))
		}
		locale, err := canonicalLocale(p.Locale)
		if err != nil {
			return nil, fmt.Errorf("catalog: partial rule %d: %w", i, err)
		}
		c.Partial = append(c.Partial, Rule{
			Pattern:   re,
			Variables: p.Variables,
			ID:        id,
			Locale:    locale,
		})
	}

	return c, nil
}

func canonicalLocale(s string) (string, error) {
	if s == "" {
		return "", fmt.Errorf("missing locale")
	}
	tag, err := language.Parse(s)
	if err != nil {
		return "", fmt.Errorf("invalid locale %q: %w", s, err)
	}
	return tag.String(), nil
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
	defaultErr     error
)

// Default returns the process-wide catalog built from the embedded
// translation tables. The data is parsed on first use and shared afterwards.
func Default() (*Catalog, error) {
	defaultOnce.Do(func() {
		defaultCatalog, defaultErr = Parse(embedded)
	})
	return defaultCatalog, defaultErr
}

// MustDefault is Default for initialization paths where a broken embedded
// catalog is unrecoverable.
func MustDefault() *Catalog {
	c, err := Default()
	if err != nil {
		panic(err)
	}
	return c
}

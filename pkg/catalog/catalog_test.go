package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultLoads(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)
	require.NotNil(t, c)

	// Default is cached.
	c2, err := Default()
	require.NoError(t, err)
	assert.Same(t, c, c2)
}

func TestReferenceCoversAllTables(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	for text, tr := range c.Exact {
		_, ok := c.Reference[tr.ID]
		assert.True(t, ok, "exact entry %q references unknown id %q", text, tr.ID)
		assert.NotEmpty(t, tr.Locale, "exact entry %q has no locale", text)
	}
	for i, rule := range c.Partial {
		_, ok := c.Reference[rule.ID]
		assert.True(t, ok, "partial rule %d references unknown id %q", i, rule.ID)
	}
	for id := range c.NoRetry {
		_, ok := c.Reference[id]
		assert.True(t, ok, "no-retry id %q not in catalog", id)
	}
}

func TestRuleCaptureCountsMatchVariables(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	for i, rule := range c.Partial {
		assert.Equal(t, len(rule.Variables), rule.Pattern.NumSubexp(),
			"rule %d (%s): capture groups must pair with variable names", i, rule.ID)
	}
}

func TestRateLimitRuleExposesRetryAfter(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	found := false
	for _, rule := range c.Partial {
		if rule.ID != RateLimitRetryAfter {
			continue
		}
		found = true
		assert.Contains(t, rule.Variables, RetryAfterVariable)
	}
	assert.True(t, found, "catalog must contain at least one rate-limit rule")
}

func TestNoRetrySet(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	assert.True(t, c.IsNoRetry(AuthorizationRequired))
	assert.True(t, c.IsNoRetry(InvalidArgument))
	assert.True(t, c.IsNoRetry(PermissionDenied))
	assert.False(t, c.IsNoRetry(ServerErrorRetryLater))
	assert.False(t, c.IsNoRetry(RateLimitRetryAfter))
	assert.False(t, c.IsNoRetry(ID("NOT_IN_CATALOG")))
}

func TestParseRejectsBrokenData(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{
			name: "duplicate id",
			yaml: `
errors:
  - {id: A, message: a}
  - {id: A, message: b}
`,
		},
		{
			name: "exact references unknown id",
			yaml: `
errors:
  - {id: A, message: a}
exact:
  - {text: x, id: B, locale: en}
`,
		},
		{
			name: "duplicate exact key",
			yaml: `
errors:
  - {id: A, message: a}
exact:
  - {text: x, id: A, locale: en}
  - {text: x, id: A, locale: fr}
`,
		},
		{
			name: "capture count mismatch",
			yaml: `
errors:
  - {id: A, message: a}
partial:
  - {pattern: "x (.+)", variables: [], id: A, locale: en}
`,
		},
		{
			name: "invalid pattern",
			yaml: `
errors:
  - {id: A, message: a}
partial:
  - {pattern: "x (", variables: [v], id: A, locale: en}
`,
		},
		{
			name: "invalid locale",
			yaml: `
errors:
  - {id: A, message: a}
exact:
  - {text: x, id: A, locale: "!!"}
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLocalesAreCanonical(t *testing.T) {
	c, err := Parse([]byte(`
errors:
  - {id: A, message: a}
exact:
  - {text: x, id: A, locale: fr_FR}
`))
	require.NoError(t, err)
	assert.Equal(t, "fr-FR", c.Exact["x"].Locale)
}

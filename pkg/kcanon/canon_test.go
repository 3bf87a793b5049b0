package kcanon

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalizePlanStripsHeaderAndTrims(t *testing.T) {
	raw := "<!-- KAIZA_PLAN_HASH: abc123 STATUS: APPROVED -->\n\n# Title   \n\nBody line   \n\n\n"
	got := CanonicalizePlan(raw)
	assert.Equal(t, "# Title\n\nBody line", got)
}

func TestCanonicalizePlanIdempotent(t *testing.T) {
	raw := "<!-- KAIZA_PLAN_HASH: abc STATUS: APPROVED -->\nline one  \nline two\t\n"
	once := CanonicalizePlan(raw)
	twice := CanonicalizePlan(once)
	assert.Equal(t, once, twice)
}

func TestPlanHashDeterministic(t *testing.T) {
	a := PlanHash("<!-- KAIZA_PLAN_HASH: x STATUS: APPROVED -->\n# Plan\n")
	b := PlanHash("# Plan")
	assert.Equal(t, a, b, "header stripping must make both forms hash identically")
	assert.Len(t, a, 64)
}

func TestCanonicalJSONKeyOrderInsensitive(t *testing.T) {
	a, err := CanonicalJSON(map[string]interface{}{"b": 2, "a": 1})
	require.NoError(t, err)
	b, err := CanonicalJSON(map[string]interface{}{"a": 1, "b": 2})
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
	assert.Equal(t, `{"a":1,"b":2}`, string(a))
}

func TestCanonicalJSONHashRoundTrip(t *testing.T) {
	h1, err := CanonicalJSONHash(map[string]interface{}{"x": 1})
	require.NoError(t, err)
	h2, err := CanonicalJSONHash(map[string]interface{}{"x": 1})
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64)
}

//go:build property
// +build property

package kcanon_test

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/kaiza-dev/kaiza/pkg/kcanon"
)

// TestCanonicalizePlanIdempotentProperty verifies the round-trip law
// plan identity depends on: canonicalizing an already-canonical document
// must be a no-op, for any Markdown body.
func TestCanonicalizePlanIdempotentProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("CanonicalizePlan is idempotent", prop.ForAll(
		func(body string) bool {
			once := kcanon.CanonicalizePlan(body)
			twice := kcanon.CanonicalizePlan(once)
			return once == twice
		},
		gen.AnyString(),
	))

	properties.TestingRun(t)
}

// TestPlanHashDeterministicProperty verifies PlanHash never depends on
// anything but the canonical byte content: hashing the same document
// twice, or hashing its own canonical form, always agrees.
func TestPlanHashDeterministicProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("PlanHash agrees with the hash of the canonical form", prop.ForAll(
		func(body string) bool {
			direct := kcanon.PlanHash(body)
			viaCanonical := kcanon.PlanHash(kcanon.CanonicalizePlan(body))
			return direct == viaCanonical
		},
		gen.AnyString(),
	))

	properties.TestingRun(t)
}

// TestCanonicalJSONKeyOrderInsensitiveProperty verifies JCS output never
// depends on Go map iteration order, for arbitrary string-keyed maps.
func TestCanonicalJSONKeyOrderInsensitiveProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("CanonicalJSON is stable across rebuilt maps with the same entries", prop.ForAll(
		func(keys []string, values []string) bool {
			n := len(keys)
			if len(values) < n {
				n = len(values)
			}
			obj := make(map[string]interface{}, n)
			for i := 0; i < n; i++ {
				obj[keys[i]] = values[i]
			}
			a, errA := kcanon.CanonicalJSON(obj)
			// Rebuild the same logical map from scratch; Go randomizes
			// map iteration order per-build so this exercises it.
			rebuilt := make(map[string]interface{}, n)
			for i := 0; i < n; i++ {
				rebuilt[keys[i]] = values[i]
			}
			b, errB := kcanon.CanonicalJSON(rebuilt)
			if errA != nil || errB != nil {
				return errA != nil && errB != nil
			}
			return string(a) == string(b)
		},
		gen.SliceOf(gen.AlphaString),
		gen.SliceOf(gen.AlphaString),
	))

	properties.TestingRun(t)
}

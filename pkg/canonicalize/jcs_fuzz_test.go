package canonicalize

import (
	"encoding/json"
	"testing"
)

// FuzzJCS checks the two properties every hashed artifact in the kernel
// leans on: canonicalization never panics on valid JSON, and the same
// value always canonicalizes (and hashes) to the same bytes.
func FuzzJCS(f *testing.F) {
	f.Add([]byte(`{"seq":1,"prev_hash":"GENESIS","tool":"initialize"}`))
	f.Add([]byte(`{"args":{"path":"src/a.txt","content":"hello"},"result":"ok"}`))
	f.Add([]byte(`{"scores":{"Reliability":4.5,"Security":5},"overall":4.5}`))
	f.Add([]byte(`{"notes":"input -> output & <done>"}`))
	f.Add([]byte(`{"plan_hashes":["aa","bb"],"window":{"from":"2026-07-01","to":"2026-07-30"}}`))
	f.Add([]byte(`{}`))
	f.Add([]byte(`{"":"empty_key","a":""}`))
	f.Add([]byte(`{"unicode":"見出し","emoji":"✅"}`))
	f.Add([]byte(`{"escape":"line1\nline2\ttab"}`))

	f.Fuzz(func(t *testing.T, data []byte) {
		var v interface{}
		if err := json.Unmarshal(data, &v); err != nil {
			t.Skip("invalid JSON input")
			return
		}

		b1, err := JCS(v)
		if err != nil {
			// Some valid JSON values are not representable; not a bug.
			return
		}

		b2, err := JCS(v)
		if err != nil {
			t.Fatal("JCS returned error on second call but not first")
		}
		if string(b1) != string(b2) {
			t.Errorf("JCS non-deterministic:\n  first:  %s\n  second: %s", b1, b2)
		}

		var check interface{}
		if err := json.Unmarshal(b1, &check); err != nil {
			t.Errorf("JCS output is not valid JSON: %s", string(b1))
		}

		h1, err := CanonicalHash(v)
		if err != nil {
			return
		}
		h2, err := CanonicalHash(v)
		if err != nil {
			t.Fatal("CanonicalHash returned error on second call but not first")
		}
		if h1 != h2 {
			t.Errorf("CanonicalHash non-deterministic: %s != %s", h1, h2)
		}
	})
}

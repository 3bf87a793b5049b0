package kattest

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/kaiza-dev/kaiza/pkg/canonicalize"
	"github.com/kaiza-dev/kaiza/pkg/kerr"
)

// Signer produces and verifies bundle signatures with a fixed key.
type Signer struct {
	key []byte
}

// NewSigner returns a Signer using key (as derived by ResolveSecret).
func NewSigner(key []byte) *Signer {
	return &Signer{key: key}
}

// signableCanon renders b's canonical (JCS) form with bundle_id,
// generated_timestamp, and signature removed. Both the bundle ID and the
// signature are computed over these bytes, so two bundles over identical
// state collide on bundle_id and signature even when their generation
// timestamps differ.
func signableCanon(b *Bundle) ([]byte, error) {
	raw, err := json.Marshal(b)
	if err != nil {
		return nil, kerr.New(kerr.CodeInternalError, "cannot marshal bundle", kerr.WithCause(err))
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, kerr.New(kerr.CodeInternalError, "cannot decode bundle for canonicalization", kerr.WithCause(err))
	}
	delete(m, "bundle_id")
	delete(m, "generated_timestamp")
	delete(m, "signature")

	canon, err := canonicalize.JCS(m)
	if err != nil {
		return nil, kerr.New(kerr.CodeInternalError, "cannot canonicalize bundle for signing", kerr.WithCause(err))
	}
	return canon, nil
}

// Seal computes and sets b.BundleID (SHA-256 of the signable canonical
// form) and b.Signature (HMAC-SHA256 hex over the same bytes).
func (s *Signer) Seal(b *Bundle) error {
	canon, err := signableCanon(b)
	if err != nil {
		return err
	}
	sum := sha256.Sum256(canon)
	b.BundleID = hex.EncodeToString(sum[:])

	mac := hmac.New(sha256.New, s.key)
	mac.Write(canon)
	b.Signature = hex.EncodeToString(mac.Sum(nil))
	return nil
}

// Verify recomputes the signature over b's signable canonical form and
// compares it to the recorded one using a timing-safe comparison.
func (s *Signer) Verify(b *Bundle) (bool, error) {
	if b.Signature == "" {
		return false, kerr.New(kerr.CodeInvalidInputValue, "bundle carries no signature")
	}
	want, err := hex.DecodeString(b.Signature)
	if err != nil {
		return false, kerr.New(kerr.CodeInvalidInputFormat, "bundle signature is not valid hex", kerr.WithCause(err))
	}

	canon, err := signableCanon(b)
	if err != nil {
		return false, err
	}
	mac := hmac.New(sha256.New, s.key)
	mac.Write(canon)
	return hmac.Equal(mac.Sum(nil), want), nil
}

// RecomputeBundleID returns the bundle ID implied by b's current
// content, independent of the recorded BundleID field.
func RecomputeBundleID(b *Bundle) (string, error) {
	canon, err := signableCanon(b)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canon)
	return hex.EncodeToString(sum[:]), nil
}

// CanonicalJSON renders b (including bundle_id, timestamp, and
// signature) as its canonical JCS form, the exported byte
// representation.
func CanonicalJSON(b *Bundle) ([]byte, error) {
	canon, err := canonicalize.JCS(*b)
	if err != nil {
		return nil, kerr.New(kerr.CodeInternalError, "cannot canonicalize bundle", kerr.WithCause(err))
	}
	return canon, nil
}

// PrettyJSON renders b as indented JSON for human inspection (not used
// for signing).
func PrettyJSON(b *Bundle) ([]byte, error) {
	out, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return nil, kerr.New(kerr.CodeInternalError, "cannot marshal bundle", kerr.WithCause(err))
	}
	return out, nil
}

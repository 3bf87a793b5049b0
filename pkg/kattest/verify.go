package kattest

import (
	"encoding/json"

	"github.com/kaiza-dev/kaiza/pkg/kerr"
)

// VerifyResult is the outcome of verifying an exported bundle, reporting
// each step independently so a caller can see exactly which check failed
// rather than a single opaque boolean.
type VerifyResult struct {
	ShapeValid       bool `json:"shape_valid"`
	SchemaCompatible bool `json:"schema_compatible"`
	SignatureValid   bool `json:"signature_valid"`
	BundleIDValid    bool `json:"bundle_id_valid"`
	ChecksumsValid   bool `json:"checksums_valid"`
	Valid            bool `json:"valid"`
}

// VerifyExported runs the full verification pipeline in order: shape,
// schema compatibility, signature (timing-safe), bundle_id recompute,
// then the three verifier checksums. The first failed step halts the
// rest, so the result always reflects the first broken invariant.
func VerifyExported(raw []byte, signer *Signer) (*VerifyResult, error) {
	result := &VerifyResult{}

	var decoded map[string]interface{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, kerr.New(kerr.CodeInvalidInputFormat, "cannot parse attestation bundle JSON", kerr.WithCause(err))
	}

	if err := ValidateShape(decoded); err != nil {
		return result, err
	}
	result.ShapeValid = true

	var b Bundle
	if err := json.Unmarshal(raw, &b); err != nil {
		return result, kerr.New(kerr.CodeInvalidInputFormat, "cannot decode attestation bundle", kerr.WithCause(err))
	}

	if err := CheckSchemaCompatible(b.SchemaVersion); err != nil {
		return result, err
	}
	result.SchemaCompatible = true

	ok, err := signer.Verify(&b)
	if err != nil {
		return result, err
	}
	result.SignatureValid = ok
	if !ok {
		return result, nil
	}

	wantID, err := RecomputeBundleID(&b)
	if err != nil {
		return result, err
	}
	result.BundleIDValid = wantID == b.BundleID
	if !result.BundleIDValid {
		return result, nil
	}

	result.ChecksumsValid, err = checksumsMatch(&b)
	if err != nil {
		return result, err
	}
	result.Valid = result.ChecksumsValid
	return result, nil
}

// checksumsMatch re-derives the three verifier checksums from the
// bundle's own sections and compares them to the stored map.
func checksumsMatch(b *Bundle) (bool, error) {
	want, err := verifierChecksums(b)
	if err != nil {
		return false, err
	}
	for name, hash := range want {
		if b.VerifierChecksums[name] != hash {
			return false, nil
		}
	}
	return true, nil
}

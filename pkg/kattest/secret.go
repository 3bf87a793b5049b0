package kattest

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"golang.org/x/crypto/hkdf"

	"github.com/kaiza-dev/kaiza/pkg/kerr"
)

const envSecretVar = "KAIZA_ATTESTATION_SECRET"

// secretFile is the on-disk shape at .kaiza/attestation_secret.json:
// one raw secret, base64-encoded, with restrictive file permissions.
type secretFile struct {
	Secret string `json:"secret"`
}

// SecretSource records where the signing secret came from, so callers
// can surface a warning when it was never persisted.
type SecretSource string

const (
	SourceEnv       SecretSource = "env"
	SourceFile      SecretSource = "file"
	SourceEphemeral SecretSource = "ephemeral"
)

// ResolveSecret resolves the signing secret: environment variable
// first, then the persisted keystore file, then a freshly generated
// random secret. The generated secret is persisted to path and reported
// as SourceFile; only when persisting fails is it reported as
// SourceEphemeral, and bundles signed with such a secret cannot be
// re-verified after the process exits.
func ResolveSecret(path string) (key []byte, source SecretSource, err error) {
	if raw := os.Getenv(envSecretVar); raw != "" {
		return derive([]byte(raw)), SourceEnv, nil
	}

	if b, err := os.ReadFile(path); err == nil {
		var sf secretFile
		if err := json.Unmarshal(b, &sf); err != nil {
			return nil, "", kerr.New(kerr.CodeFileReadFailed, "corrupt attestation secret file", kerr.WithCause(err))
		}
		raw, err := base64.StdEncoding.DecodeString(sf.Secret)
		if err != nil {
			return nil, "", kerr.New(kerr.CodeFileReadFailed, "attestation secret is not valid base64", kerr.WithCause(err))
		}
		return derive(raw), SourceFile, nil
	} else if !os.IsNotExist(err) {
		return nil, "", kerr.New(kerr.CodeFileReadFailed, "cannot read attestation secret file", kerr.WithCause(err))
	}

	raw := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, raw); err != nil {
		return nil, "", kerr.New(kerr.CodeInternalError, "cannot generate ephemeral attestation secret", kerr.WithCause(err))
	}
	if err := PersistSecret(path, raw); err != nil {
		// Persisting is best-effort: an unpersisted ephemeral secret is
		// still usable for this process's lifetime, just not reproducible
		// across restarts. The caller is told via SourceEphemeral.
		return derive(raw), SourceEphemeral, nil
	}
	return derive(raw), SourceFile, nil
}

// PersistSecret writes raw to path as the keystore's sole secret.
func PersistSecret(path string, raw []byte) error {
	sf := secretFile{Secret: base64.StdEncoding.EncodeToString(raw)}
	b, err := json.Marshal(sf)
	if err != nil {
		return kerr.New(kerr.CodeInternalError, "cannot marshal attestation secret", kerr.WithCause(err))
	}
	return os.WriteFile(path, b, 0o600)
}

// derive stretches an arbitrary-length raw secret into a fixed 32-byte
// HMAC key via HKDF-SHA256 with a domain-separation label, so the same
// underlying secret never collides with keys used elsewhere in the
// kernel (e.g. a future encryption-at-rest key sharing the same env var).
func derive(raw []byte) []byte {
	h := hkdf.New(sha256.New, raw, nil, []byte("kaiza:attestation:hmac:v1"))
	out := make([]byte, 32)
	if _, err := io.ReadFull(h, out); err != nil {
		// HKDF only fails if the requested length exceeds 255*hash size;
		// 32 bytes against SHA-256 never does.
		panic(fmt.Sprintf("kattest: hkdf derive: %v", err))
	}
	return out
}

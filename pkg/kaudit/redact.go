package kaudit

import (
	"encoding/base64"
	"regexp"
	"strings"
)

const redactedPlaceholder = "[REDACTED]"

// sensitiveKeySubstrings lists field-name fragments that force
// redaction regardless of value shape. Matching is case-insensitive
// substring.
var sensitiveKeySubstrings = []string{
	"token", "apikey", "password", "secret", "authorization", "cookie",
	"session", "jwt", "bearer", "api_key", "api_secret", "refresh_token",
	"private_key", "access_token", "id_token", "client_secret",
	"signing_key", "webhook_secret", "passphrase", "credential",
	"key", "auth",
}

var jwtLikeRE = regexp.MustCompile(`^[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+$`)

// base64LikeRE matches values that look like base64 payloads of
// meaningful length.
var base64LikeRE = regexp.MustCompile(`^[A-Za-z0-9+/_=-]{64,}$`)

// Redact returns a deep copy of v with sensitive fields replaced by a
// fixed placeholder. Redaction is key-driven (any key whose name
// contains one of the sensitive substrings) and value-driven (JWT-shaped
// or long base64-looking strings are redacted regardless of key name).
// Redaction runs before hashing so the entry_hash never depends on the
// raw secret value.
func Redact(v interface{}) interface{} {
	return redactValue("", v)
}

func redactValue(key string, v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			if isSensitiveKey(k) {
				out[k] = redactedPlaceholder
				continue
			}
			out[k] = redactValue(k, val)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, elem := range t {
			out[i] = redactValue(key, elem)
		}
		return out
	case string:
		if looksSensitive(t) {
			return redactedPlaceholder
		}
		return t
	default:
		return v
	}
}

func isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, sub := range sensitiveKeySubstrings {
		if strings.Contains(lower, sub) {
			return true
		}
	}
	return false
}

func looksSensitive(s string) bool {
	if jwtLikeRE.MatchString(s) {
		return true
	}
	if len(s) >= 64 && base64LikeRE.MatchString(s) {
		if _, err := base64.StdEncoding.DecodeString(s); err == nil {
			return true
		}
		// Still treat long URL-safe-base64-shaped tokens as sensitive even
		// if they aren't strict standard-base64, matching common secret
		// encodings (JWT segments, hex API keys).
		return base64LikeRE.MatchString(s)
	}
	return false
}

// RedactArgs redacts a string-keyed argument map, returning nil if args
// is empty so the JSON field is omitted rather than serialized as {}.
func RedactArgs(args map[string]interface{}) map[string]interface{} {
	if len(args) == 0 {
		return nil
	}
	redacted := redactValue("", args)
	m, _ := redacted.(map[string]interface{})
	return m
}

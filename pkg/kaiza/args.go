package kaiza

import "github.com/kaiza-dev/kaiza/pkg/kerr"

// stringArg extracts a required string field, surfacing the stable
// input-error codes for malformed tool arguments.
func stringArg(args map[string]interface{}, key string) (string, error) {
	v, ok := args[key]
	if !ok {
		return "", kerr.New(kerr.CodeMissingRequiredField, "missing required field: "+key)
	}
	s, ok := v.(string)
	if !ok {
		return "", kerr.New(kerr.CodeInvalidInputType, key+" must be a string")
	}
	return s, nil
}

// optionalStringArg extracts an optional string field, defaulting to "".
func optionalStringArg(args map[string]interface{}, key string) string {
	if v, ok := args[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// boolArg extracts a required bool field.
func boolArg(args map[string]interface{}, key string) (bool, error) {
	v, ok := args[key]
	if !ok {
		return false, kerr.New(kerr.CodeMissingRequiredField, "missing required field: "+key)
	}
	b, ok := v.(bool)
	if !ok {
		return false, kerr.New(kerr.CodeInvalidInputType, key+" must be a boolean")
	}
	return b, nil
}

// stringSliceArg extracts an optional []string field from a decoded
// JSON []interface{}, skipping non-string elements.
func stringSliceArg(args map[string]interface{}, key string) []string {
	v, ok := args[key]
	if !ok {
		return nil
	}
	raw, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

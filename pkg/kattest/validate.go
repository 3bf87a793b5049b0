package kattest

import (
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/kaiza-dev/kaiza/pkg/kerr"
)

const schemaDoc = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["bundle_id", "schema_version", "workspace_root_hash", "time_window", "audit_log_root_hash", "generated_timestamp", "signature"],
  "properties": {
    "bundle_id": {"type": "string", "minLength": 1},
    "schema_version": {"type": "string", "minLength": 1},
    "workspace_root_hash": {"type": "string"},
    "audit_log_root_hash": {"type": "string"},
    "replay_verdict": {"type": "string"},
    "signature": {"type": "string", "minLength": 1}
  }
}`

const schemaURL = "https://kaiza.local/kattest/bundle.schema.json"

var compiledSchema *jsonschema.Schema

func init() {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	if err := c.AddResource(schemaURL, strings.NewReader(schemaDoc)); err != nil {
		panic("kattest: invalid embedded schema: " + err.Error())
	}
	compiled, err := c.Compile(schemaURL)
	if err != nil {
		panic("kattest: cannot compile embedded schema: " + err.Error())
	}
	compiledSchema = compiled
}

// ValidateShape checks a decoded bundle (as map[string]interface{}, the
// shape jsonschema/v5 validates against) has every field the schema
// requires, before any signature or semver check runs.
func ValidateShape(decoded map[string]interface{}) error {
	if err := compiledSchema.Validate(decoded); err != nil {
		return kerr.New(kerr.CodeInvalidInputFormat, "attestation bundle fails shape validation", kerr.WithCause(err))
	}
	return nil
}

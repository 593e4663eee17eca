package protocol

import "github.com/invopop/jsonschema"

// SchemaFor reflects the JSON schema of a protocol message. The schemas
// double as wire documentation and back the protocol contract tests.
func SchemaFor(msg Message) *jsonschema.Schema {
	reflector := jsonschema.Reflector{DoNotReference: true}
	return reflector.Reflect(msg)
}

// Package schema describes the expected shape of a JSON mode response and
// checks generated text against it. Two backends are available: a raw JSON
// Schema document (CompileString) and a schema reflected from a Go struct
// (ForType).
package schema

// Schema is a structural description of the expected response.
type Schema interface {
	// Definition returns the JSON schema text that is embedded into the
	// prompt so the model knows what to produce.
	Definition() string
	// Decode extracts and validates a value from the generated text. On
	// success the value is returned with a nil message list; on failure the
	// value is nil and the messages describe what did not match.
	Decode(text string) (any, []string)
}

package schema

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// JSONSchema validates responses against a caller-supplied JSON Schema
// document.
type JSONSchema struct {
	compiled   *jsonschema.Schema
	definition string
}

// CompileString compiles a JSON Schema document. A document that is not valid
// JSON or not a valid schema fails here, before any request is made.
func CompileString(raw string) (*JSONSchema, error) {
	compiled, err := jsonschema.CompileString("response.schema.json", raw)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid response schema")
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, []byte(raw), "", "  "); err != nil {
		return nil, errors.Wrapf(err, "invalid response schema")
	}

	return &JSONSchema{
		compiled:   compiled,
		definition: pretty.String(),
	}, nil
}

// MustCompileString is CompileString for schema literals.
func MustCompileString(raw string) *JSONSchema {
	s, err := CompileString(raw)
	if err != nil {
		panic(err)
	}
	return s
}

func (s *JSONSchema) Definition() string {
	return s.definition
}

func (s *JSONSchema) Decode(text string) (any, []string) {
	value, ok := ExtractJSON(text)
	if !ok {
		return nil, []string{"could not extract valid JSON from response"}
	}
	if err := s.compiled.Validate(value); err != nil {
		var ve *jsonschema.ValidationError
		if errors.As(err, &ve) {
			return nil, flatten(ve)
		}
		return nil, []string{err.Error()}
	}
	return value, nil
}

// flatten walks the validation error tree and renders one "path: message"
// line per leaf cause.
func flatten(ve *jsonschema.ValidationError) []string {
	if len(ve.Causes) == 0 {
		return []string{formatCause(ve)}
	}
	var msgs []string
	for _, cause := range ve.Causes {
		msgs = append(msgs, flatten(cause)...)
	}
	return msgs
}

func formatCause(ve *jsonschema.ValidationError) string {
	loc := strings.TrimPrefix(ve.InstanceLocation, "/")
	if loc == "" {
		loc = "root"
	} else {
		loc = strings.ReplaceAll(loc, "/", " -> ")
	}
	return loc + ": " + ve.Message
}

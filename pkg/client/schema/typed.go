package schema

import (
	"encoding/json"
	"reflect"
	"strconv"
	"sync"

	"github.com/bububa/ljson"
	"github.com/cespare/xxhash/v2"
	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"
	"github.com/pkg/errors"
)

var reflectorPool = sync.Pool{
	New: func() any {
		return new(jsonschema.Reflector)
	},
}

var validate = validator.New()

// TypedSchema is reflected from a Go struct. Decoded values are instances of
// that struct, validated against its `validate` tags.
type TypedSchema struct {
	typ        reflect.Type
	definition string
}

// ForType reflects a schema from the given value's type, e.g.
// ForType(Person{}). Pointer types are dereferenced.
func ForType(v any) (*TypedSchema, error) {
	t := reflect.TypeOf(v)
	if t == nil {
		return nil, errors.Errorf("cannot reflect schema from nil")
	}
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, errors.Errorf("cannot reflect schema from %s, expected a struct", t.Kind())
	}

	sch := reflectSchema(t)
	str, err := json.MarshalIndent(sch, "", "  ")
	if err != nil {
		return nil, errors.Wrapf(err, "failed to render schema for %s", t)
	}

	return &TypedSchema{
		typ:        t,
		definition: string(str),
	}, nil
}

func (s *TypedSchema) Definition() string {
	return s.definition
}

func (s *TypedSchema) Decode(text string) (any, []string) {
	instance := reflect.New(s.typ).Interface()
	if err := ljson.Unmarshal(trimToJSON([]byte(text)), instance); err != nil {
		return nil, []string{"could not extract valid JSON from response: " + err.Error()}
	}
	if err := validate.Struct(instance); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fe.Error())
			}
			return nil, msgs
		}
		return nil, []string{err.Error()}
	}
	return instance, nil
}

// reflectSchema builds the JSON schema for a struct type. Struct names are
// hashed together with their package path so that identically named structs
// from different packages cannot collide in $defs.
func reflectSchema(t reflect.Type) *jsonschema.Schema {
	r := reflectorPool.Get().(*jsonschema.Reflector)
	defer reflectorPool.Put(r)

	r.Namer = func(t reflect.Type) string {
		name := t.Name()
		if t.Kind() == reflect.Struct {
			name = strconv.FormatUint(xxhash.Sum64String(t.PkgPath()+"/"+t.Name()), 10)
		}
		return name
	}

	return r.ReflectFromType(t)
}

// Package testutil provides test support for the record contracts: a small
// declarative field schema, a JSON-file reference storage backend, an
// in-memory cache, and assertion helpers. Production adapters live in their
// own modules; everything here exists to exercise the contracts.
package testutil

import (
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/arthur-debert/recordstore/record"
	"github.com/arthur-debert/recordstore/schema"
	"gopkg.in/yaml.v3"
)

// Field types understood by the test schema.
const (
	TypeString = "string"
	TypeInt    = "int"
	TypeFloat  = "float"
	TypeBool   = "bool"
	TypeList   = "list"
	TypeMap    = "map"
	TypeAny    = "any"
)

// FieldDef declares one field of a test schema.
type FieldDef struct {
	// Type is one of the Type* constants.
	Type string `yaml:"type"`

	// Required marks the field as mandatory for whole-record validation.
	Required bool `yaml:"required,omitempty"`

	// Values restricts a string field to an enumerated set.
	Values []string `yaml:"values,omitempty"`

	// Minimum and Maximum bound numeric values, and the length of string
	// values.
	Minimum *float64 `yaml:"minimum,omitempty"`
	Maximum *float64 `yaml:"maximum,omitempty"`
}

// Schema is a declarative field schema sufficient to exercise the record
// proxy and storage contracts. It implements schema.Schema.
type Schema struct {
	fields map[string]FieldDef
}

// NewSchema builds a schema from field definitions, rejecting definitions
// that make no sense (unknown types, enumerations on non-strings).
func NewSchema(fields map[string]FieldDef) (*Schema, error) {
	if len(fields) == 0 {
		return nil, fmt.Errorf("schema must declare at least one field")
	}
	for name, def := range fields {
		if name == "" {
			return nil, fmt.Errorf("field name cannot be empty")
		}
		if name == record.IDField {
			return nil, fmt.Errorf("field name %q is reserved", record.IDField)
		}
		switch def.Type {
		case TypeString, TypeInt, TypeFloat, TypeBool, TypeList, TypeMap, TypeAny:
		default:
			return nil, fmt.Errorf("field %s: unknown type %q", name, def.Type)
		}
		if len(def.Values) > 0 && def.Type != TypeString {
			return nil, fmt.Errorf("field %s: enumerated values require type string", name)
		}
		if def.Minimum != nil && def.Maximum != nil && *def.Minimum > *def.Maximum {
			return nil, fmt.Errorf("field %s: minimum exceeds maximum", name)
		}
	}
	return &Schema{fields: fields}, nil
}

// ParseSchema builds a schema from a YAML document mapping field names to
// definitions:
//
//	name:
//	  type: string
//	  required: true
//	count:
//	  type: int
//	  minimum: 0
func ParseSchema(data []byte) (*Schema, error) {
	var fields map[string]FieldDef
	if err := yaml.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("failed to parse schema: %w", err)
	}
	return NewSchema(fields)
}

// LoadSchema reads a YAML schema definition from a file.
func LoadSchema(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file: %w", err)
	}
	return ParseSchema(data)
}

// Contains reports whether the named field is declared.
func (s *Schema) Contains(field string) bool {
	_, ok := s.fields[field]
	return ok
}

// ValidateField checks a candidate value against the field's definition.
// A nil value is always acceptable; the proxy stores nil verbatim.
func (s *Schema) ValidateField(field string, value interface{}) []schema.FieldError {
	def, ok := s.fields[field]
	if !ok {
		return []schema.FieldError{{Field: field, Detail: "not declared in schema"}}
	}
	if value == nil {
		return nil
	}

	fail := func(detail string) []schema.FieldError {
		return []schema.FieldError{{Field: field, Detail: detail}}
	}

	switch def.Type {
	case TypeString:
		str, ok := value.(string)
		if !ok {
			return fail(fmt.Sprintf("expected string, got %T", value))
		}
		if len(def.Values) > 0 && !containsString(def.Values, str) {
			return fail(fmt.Sprintf("%q is not one of the allowed values", str))
		}
		if def.Minimum != nil && float64(len(str)) < *def.Minimum {
			return fail("value too short")
		}
		if def.Maximum != nil && float64(len(str)) > *def.Maximum {
			return fail("value too long")
		}
	case TypeInt:
		n, ok := asInt64(value)
		if !ok {
			return fail(fmt.Sprintf("expected integer, got %T", value))
		}
		if def.Minimum != nil && float64(n) < *def.Minimum {
			return fail("value below minimum")
		}
		if def.Maximum != nil && float64(n) > *def.Maximum {
			return fail("value above maximum")
		}
	case TypeFloat:
		f, ok := asFloat64(value)
		if !ok {
			return fail(fmt.Sprintf("expected number, got %T", value))
		}
		if def.Minimum != nil && f < *def.Minimum {
			return fail("value below minimum")
		}
		if def.Maximum != nil && f > *def.Maximum {
			return fail("value above maximum")
		}
	case TypeBool:
		if _, ok := value.(bool); !ok {
			return fail(fmt.Sprintf("expected bool, got %T", value))
		}
	case TypeList:
		switch reflect.ValueOf(value).Kind() {
		case reflect.Slice, reflect.Array:
		default:
			return fail(fmt.Sprintf("expected list, got %T", value))
		}
	case TypeMap:
		rv := reflect.ValueOf(value)
		if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
			return fail(fmt.Sprintf("expected map, got %T", value))
		}
	case TypeAny:
	}

	return nil
}

// CleanField normalizes a validated value: strings are trimmed, integers
// widened to int64, floats to float64. Other types pass through.
func (s *Schema) CleanField(field string, value interface{}) (interface{}, error) {
	def, ok := s.fields[field]
	if !ok {
		return nil, fmt.Errorf("unknown field: %s", field)
	}
	if value == nil {
		return nil, nil
	}
	switch def.Type {
	case TypeString:
		str, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("field %s: expected string, got %T", field, value)
		}
		return strings.TrimSpace(str), nil
	case TypeInt:
		n, ok := asInt64(value)
		if !ok {
			return nil, fmt.Errorf("field %s: expected integer, got %T", field, value)
		}
		return n, nil
	case TypeFloat:
		f, ok := asFloat64(value)
		if !ok {
			return nil, fmt.Errorf("field %s: expected number, got %T", field, value)
		}
		return f, nil
	default:
		return value, nil
	}
}

// Validate checks a whole record value: every present field must be
// declared and valid, and every required field must be present. The
// reserved ID field is ignored.
func (s *Schema) Validate(value map[string]interface{}) []schema.FieldError {
	var failures []schema.FieldError

	for field, v := range value {
		if field == record.IDField {
			continue
		}
		failures = append(failures, s.ValidateField(field, v)...)
	}

	for field, def := range s.fields {
		if !def.Required {
			continue
		}
		if _, ok := value[field]; !ok {
			failures = append(failures, schema.FieldError{Field: field, Detail: "missing required field"})
		}
	}

	return failures
}

// Clean returns the normalized form of a whole record value. Cleaning a
// value that has not passed Validate is undefined; unknown fields are an
// error.
func (s *Schema) Clean(value map[string]interface{}) (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(value))
	for field, v := range value {
		if field == record.IDField {
			out[field] = v
			continue
		}
		if v == nil {
			out[field] = nil
			continue
		}
		cleaned, err := s.CleanField(field, v)
		if err != nil {
			return nil, err
		}
		out[field] = cleaned
	}
	return out, nil
}

func containsString(list []string, s string) bool {
	for _, e := range list {
		if e == s {
			return true
		}
	}
	return false
}

func asInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return int64(n), true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case float32:
		if float32(int64(n)) == n {
			return int64(n), true
		}
	case float64:
		// JSON numbers decode as float64; accept integral ones
		if float64(int64(n)) == n {
			return int64(n), true
		}
	}
	return 0, false
}

func asFloat64(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

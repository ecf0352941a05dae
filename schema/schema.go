// Package schema defines the field-schema contract consumed by the record
// proxy. A schema knows which fields a record may carry, how to validate a
// candidate value for a field, and how to normalize a validated value before
// it is stored. The validation engine itself lives outside this module;
// record stores and proxies only depend on this interface.
package schema

import "fmt"

// FieldError describes a single validation failure for one field.
type FieldError struct {
	Field  string `json:"field"`
	Detail string `json:"detail"`
}

// Error implements the error interface so a FieldError can be wrapped or
// printed directly.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Detail)
}

// Schema is the contract a field-schema implementation must satisfy to back
// a record store. Implementations are expected to be safe for concurrent
// reads; none of the methods mutate the schema.
type Schema interface {
	// Contains reports whether the named field is declared in the schema.
	Contains(field string) bool

	// ValidateField checks a candidate value for a single field. A nil or
	// empty result means the value is acceptable; otherwise each entry
	// describes one failure.
	ValidateField(field string, value interface{}) []FieldError

	// CleanField returns the normalized form of a value that has already
	// passed ValidateField. The result of cleaning an invalid value is
	// undefined.
	CleanField(field string, value interface{}) (interface{}, error)

	// Validate checks a whole record value for structural validity:
	// required fields, unknown keys, and per-field constraints.
	Validate(value map[string]interface{}) []FieldError

	// Clean returns the normalized form of a whole record value. Callers
	// must have seen Validate succeed first; cleaning an invalid record is
	// undefined.
	Clean(value map[string]interface{}) (map[string]interface{}, error)
}

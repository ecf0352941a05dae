package record

import (
	"errors"
	"fmt"
	"strings"

	"github.com/arthur-debert/recordstore/schema"
)

// ErrDuplicate is returned by storage backends when an Add or Save conflicts
// with an existing record and the conflict policy is ConflictError.
var ErrDuplicate = errors.New("duplicate record")

// ErrNotFound is returned by storage backends when an operation targets a
// record ID that does not exist.
var ErrNotFound = errors.New("record not found")

// UnknownFieldError reports a mutation that targeted a field the schema does
// not declare.
type UnknownFieldError struct {
	Field string
}

func (e *UnknownFieldError) Error() string {
	return fmt.Sprintf("unknown field: %s", e.Field)
}

// InvalidValueError reports a value the schema rejected, carrying the
// schema's structured failure detail so callers can present field-level
// errors.
type InvalidValueError struct {
	Field    string
	Failures []schema.FieldError
}

func (e *InvalidValueError) Error() string {
	if len(e.Failures) == 0 {
		return fmt.Sprintf("invalid value for field %s", e.Field)
	}
	details := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		details[i] = f.Error()
	}
	return fmt.Sprintf("invalid value for field %s: %s", e.Field, strings.Join(details, "; "))
}

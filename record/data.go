package record

import (
	"reflect"
	"sort"

	"github.com/arthur-debert/recordstore/schema"
)

// Data is a mutable, schema-validated view over a single record's field
// values. Every mutation is checked against the owning storage's field
// schema at the point of the call, and the set of fields changed since the
// last persistence point is tracked so backends can persist only what
// moved.
//
// A Data instance owns its value exclusively and is not safe for concurrent
// mutation; confine each instance to one logical operation at a time.
type Data struct {
	storage  Storage
	value    map[string]interface{}
	changed  map[string]bool
	errors   []schema.FieldError
	original map[string]interface{}
}

// NewData creates a proxy over value, owned by the given storage backend.
// A nil value starts the record empty. The proxy takes ownership of the
// map; callers must not retain references into it.
func NewData(storage Storage, value map[string]interface{}) *Data {
	if value == nil {
		value = map[string]interface{}{}
	}
	return &Data{
		storage: storage,
		value:   value,
		changed: map[string]bool{},
	}
}

// ID returns the record's ID, or "" if the record has not been stored yet.
func (d *Data) ID() string {
	id, _ := d.value[IDField].(string)
	return id
}

// Get returns the current value of field, or def when the field is absent.
func (d *Data) Get(field string, def interface{}) interface{} {
	v, ok := d.value[field]
	if !ok {
		return def
	}
	return v
}

// Contains reports whether the field currently holds a value.
func (d *Data) Contains(field string) bool {
	_, ok := d.value[field]
	return ok
}

// Set validates and stores a new value for field.
//
// It fails with *UnknownFieldError when the schema does not declare the
// field and with *InvalidValueError when the schema rejects the value; in
// both cases the record value and changed-field set are left untouched.
// Setting a field to a value equal to what it already holds is a no-op and
// does not mark the field changed.
//
// On the first successful mutation after construction or a persistence
// point, and only when the owning storage tracks revisions, a deep copy of
// the pre-mutation value is captured as the revision snapshot (see
// Original). A nil value is stored verbatim; any other value is stored in
// the schema's cleaned form.
func (d *Data) Set(field string, value interface{}) error {
	if !d.storage.Contains(field) {
		return &UnknownFieldError{Field: field}
	}

	// reassigning an identical value must not register a change
	if current, ok := d.value[field]; ok && reflect.DeepEqual(current, value) {
		return nil
	}

	if failures := d.storage.ValidateField(field, value); len(failures) > 0 {
		return &InvalidValueError{Field: field, Failures: failures}
	}

	if d.storage.Revisions() && d.original == nil {
		d.original = CopyValue(d.value)
	}

	if value == nil {
		d.value[field] = nil
	} else {
		cleaned, err := d.storage.CleanField(field, value)
		if err != nil {
			return &InvalidValueError{
				Field:    field,
				Failures: []schema.FieldError{{Field: field, Detail: err.Error()}},
			}
		}
		d.value[field] = cleaned
	}

	d.changed[field] = true
	return nil
}

// Remove deletes field from the record value and marks it changed. It fails
// with *UnknownFieldError when the schema does not declare the field, and is
// a no-op when the field is already absent.
func (d *Data) Remove(field string) error {
	if !d.storage.Contains(field) {
		return &UnknownFieldError{Field: field}
	}
	if _, ok := d.value[field]; !ok {
		return nil
	}
	delete(d.value, field)
	d.changed[field] = true
	return nil
}

// Changed reports whether field has been mutated since the last persistence
// point. For fields whose value tracks its own changes (implements
// ChangeReporter) the nested value is consulted as well. Read-only.
func (d *Data) Changed(field string) bool {
	if d.changed[field] {
		return true
	}
	if r, ok := d.value[field].(ChangeReporter); ok {
		return r.HasChanges()
	}
	return false
}

// Changes returns the sorted names of all fields changed since the last
// persistence point.
func (d *Data) Changes() []string {
	fields := make([]string, 0, len(d.changed))
	for f := range d.changed {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}

// Valid runs the schema's whole-record validation against the current
// value. On failure the structured failure list is retained (see Errors)
// and false is returned; on success previous failures are cleared. Valid
// must have returned true before Clean is relied on.
func (d *Data) Valid() bool {
	d.errors = nil
	if failures := d.storage.Validate(d.value); len(failures) > 0 {
		d.errors = failures
		return false
	}
	return true
}

// Errors returns the failure list from the last Valid call that returned
// false, or nil.
func (d *Data) Errors() []schema.FieldError {
	if d.errors == nil {
		return nil
	}
	return append([]schema.FieldError(nil), d.errors...)
}

// Clean replaces the record value with the schema's normalized form of the
// current value. The result of calling Clean without a prior successful
// Valid is undefined.
func (d *Data) Clean() error {
	cleaned, err := d.storage.Clean(d.value)
	if err != nil {
		return err
	}
	d.value = cleaned
	return nil
}

// Value returns a defensive deep copy of the current record value.
func (d *Data) Value() map[string]interface{} {
	return CopyValue(d.value)
}

// Original returns a deep copy of the revision snapshot: the record value
// as it was before the first mutation since the last persistence point.
// It returns nil when no snapshot has been captured (no mutation yet, or
// the owning storage does not track revisions).
func (d *Data) Original() map[string]interface{} {
	return CopyValue(d.original)
}

// ClearChanges marks a persistence point: the changed-field set is emptied
// and the revision snapshot released. Called automatically after a
// successful Add or Save.
func (d *Data) ClearChanges() {
	d.changed = map[string]bool{}
	d.original = nil
}

// Add persists the record as a new entry in the owning storage and records
// its assigned ID in the value. revision carries optional extra metadata
// for the revision entry when the backend tracks revisions.
func (d *Data) Add(conflict Conflict, revision map[string]interface{}) (string, error) {
	id, err := d.storage.Add(d.value, conflict, revision)
	if err != nil {
		return "", err
	}
	d.value[IDField] = id
	d.ClearChanges()
	return id, nil
}

// Save persists the current value over the stored record identified by the
// record's ID field. The proxy holds the record's complete value, so the
// stored record is overwritten rather than merged; fields removed through
// Remove stay removed. Backends that track revisions record the change set
// between the stored version and this one as part of the save.
func (d *Data) Save(revision map[string]interface{}) (bool, error) {
	saved, err := d.storage.Save(d.value, true, revision)
	if err != nil || !saved {
		return saved, err
	}
	d.ClearChanges()
	return true, nil
}

// Delete removes the stored record by its ID. It reports false when the
// record has no ID or is not stored.
func (d *Data) Delete() (bool, error) {
	id := d.ID()
	if id == "" {
		return false, nil
	}
	n, err := d.storage.Remove([]string{id}, nil)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

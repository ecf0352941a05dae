package record

// IDField is the reserved field name that carries a record's ID inside its
// value map. Storage backends set it on Add and require it on Save.
const IDField = "_id"

// Conflict selects how Storage.Add resolves a collision with an existing
// record.
type Conflict string

const (
	// ConflictError fails the add with ErrDuplicate.
	ConflictError Conflict = "error"

	// ConflictIgnore leaves the existing record untouched and reports the
	// add as successful.
	ConflictIgnore Conflict = "ignore"

	// ConflictReplace overwrites the existing record with the new value.
	ConflictReplace Conflict = "replace"
)

// Valid reports whether c is one of the three defined conflict policies.
func (c Conflict) Valid() bool {
	switch c {
	case ConflictError, ConflictIgnore, ConflictReplace:
		return true
	}
	return false
}

// Limit bounds a fetch to a window of records: at most Max records,
// starting Start records into the result set.
type Limit struct {
	Max   int
	Start int
}

// FetchOptions refines what Fetch, FetchMany and Search return.
type FetchOptions struct {
	// Fields, when non-nil, projects each returned record down to the
	// named fields (the ID field is always kept).
	Fields []string

	// Limit, when non-nil, windows the result set.
	Limit *Limit
}

// ChangeReporter is implemented by structured field values that track their
// own internal changes. Data.Changed consults it for fields whose value is
// not a terminal type.
type ChangeReporter interface {
	HasChanges() bool
}

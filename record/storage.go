package record

import "github.com/arthur-debert/recordstore/schema"

// Storage is the contract a concrete record store must satisfy. A backend
// owns one kind of record: it embeds the field schema for that record and
// exposes CRUD plus provisioning operations over wherever the records live
// (a SQL table, a document collection, a file). This package supplies no
// implementation; see the testutil package for a reference backend.
//
// Backends that are configured to track revisions report it through
// Revisions and must persist the change sets handed to RevisionAdd; the
// change sets themselves come from GenerateChanges.
type Storage interface {
	schema.Schema

	// Add stores one raw record value and returns the ID of the stored
	// record. conflict selects what happens when the value collides with
	// an existing record: fail with ErrDuplicate, silently keep the
	// existing record, or replace it. revision carries optional extra
	// metadata to store with the revision entry when the backend tracks
	// revisions.
	Add(value map[string]interface{}, conflict Conflict, revision map[string]interface{}) (string, error)

	// Count returns the number of records, optionally narrowed by a
	// field-equality filter.
	Count(filter map[string]interface{}) (int, error)

	// Exists reports whether a record with the given ID is stored.
	Exists(id string) (bool, error)

	// Fetch returns a proxy over the record with the given ID, or
	// ErrNotFound if no such record is stored.
	Fetch(id string, opts *FetchOptions) (*Data, error)

	// FetchMany returns proxies for each of the given IDs, skipping IDs
	// that are not stored.
	FetchMany(ids []string, opts *FetchOptions) ([]*Data, error)

	// Search returns proxies for every record matching the field-equality
	// filter; a nil filter matches everything.
	Search(filter map[string]interface{}, opts *FetchOptions) ([]*Data, error)

	// Insert creates a new, unstored proxy associated with this backend,
	// seeded with the given initial value. The record is not persisted
	// until Data.Add is called.
	Insert(value map[string]interface{}) (*Data, error)

	// Install provisions the location records will be stored in.
	Install() error

	// Uninstall removes the storage location and everything in it.
	Uninstall() error

	// Remove deletes records by ID and/or filter and returns how many
	// were deleted.
	Remove(ids []string, filter map[string]interface{}) (int, error)

	// RevisionAdd persists a change set against a record ID.
	RevisionAdd(id string, changes map[string]interface{}) error

	// Revisions reports whether this backend is configured to track
	// revisions.
	Revisions() bool

	// Save updates the stored record identified by value's ID field. When
	// replace is false only the fields present in value are updated; when
	// true the stored record is overwritten entirely. The boolean result
	// reports whether a record was written. revision carries optional
	// extra metadata for the revision entry.
	Save(value map[string]interface{}, replace bool, revision map[string]interface{}) (bool, error)
}

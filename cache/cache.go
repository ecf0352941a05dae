// Package cache defines the contract for record caches and the registry
// through which backends are selected by name at configuration time.
// Storage backends use a cache to avoid redundant fetches; this package
// supplies no backend of its own.
package cache

import "time"

// State describes what a cache knows about one record ID.
type State int

const (
	// StateAbsent means the cache holds nothing for the ID; the caller
	// should go to storage.
	StateAbsent State = iota

	// StateMissing means the ID was previously marked as missing from
	// storage; the caller should not fetch it again.
	StateMissing

	// StateFound means the cache holds record data for the ID.
	StateFound
)

// Result is the outcome of a cache fetch for a single record ID. Data is
// set only when State is StateFound.
type Result struct {
	State State
	Data  map[string]interface{}
}

// Cache is the contract a record cache backend must satisfy.
type Cache interface {
	// Fetch returns what the cache knows about one record ID.
	Fetch(id string) (Result, error)

	// FetchMany returns one Result per ID, in the same order as ids.
	FetchMany(ids []string) ([]Result, error)

	// Store caches the record data under the given ID.
	Store(id string, data map[string]interface{}) error

	// MarkMissing records that the given IDs are known to be missing from
	// storage, so they are not fetched over and over. A zero ttl uses the
	// backend's default expiry.
	MarkMissing(ids []string, ttl time.Duration) error
}

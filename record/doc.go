// Package record defines the contracts and core algorithms of the record
// data-access layer: the Storage interface concrete backends implement, the
// Data proxy through which callers read and mutate a single record's fields,
// and the revision change-set generator used to describe what changed
// between two versions of a record.
//
//	Record values
//
// A record value is a map from field name to field value, where a field
// value is a scalar, a nested map, or a slice of such values: the shape
// JSON decodes to. A value is owned by exactly one Data proxy at a time.
//
//	Change sets
//
// GenerateChanges compares two record values and produces a nested change
// set. Each entry is either a terminal replacement
//
//	{"old": <old value>, "new": <new value>}
//
// or, for a nested map or slice, a map from child key (or stringified index)
// to a nested change set. When every key at a level differs the per-key
// breakdown collapses into a single terminal replacement for the whole
// value, which bounds the size of a change set.
//
//	Proxies
//
// A Data proxy is obtained from a Storage backend (Insert for new records,
// Fetch for stored ones). Every Set and Remove is checked against the
// backend's field schema and recorded in the proxy's changed-field set, so
// the backend can tell which fields need persisting on Save.
package record

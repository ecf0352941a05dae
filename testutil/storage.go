package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"reflect"
	"sort"
	"sync"
	"time"

	"github.com/arthur-debert/recordstore/record"
	"github.com/gofrs/flock"
	"github.com/google/uuid"
)

// Revision is one persisted change-set entry in the reference backend.
type Revision struct {
	RecordID string                 `json:"record_id"`
	Created  time.Time              `json:"created"`
	Changes  map[string]interface{} `json:"changes"`
	Extra    map[string]interface{} `json:"extra,omitempty"`
}

// storeFile is the JSON file layout of the reference backend.
type storeFile struct {
	Records   map[string]map[string]interface{} `json:"records"`
	Revisions []Revision                        `json:"revisions"`
	Metadata  storeMetadata                     `json:"metadata"`
}

type storeMetadata struct {
	Version   string    `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

const storeVersion = "1.0"

// StorageOptions configures the reference backend.
type StorageOptions struct {
	// Revisions enables revision tracking: every add and every effective
	// save records a change set.
	Revisions bool
}

// Storage is a reference record.Storage backend persisting to a single JSON
// file, guarded by a file lock for cross-process safety and a RWMutex for
// in-process safety. It exists to exercise the contracts in tests; it makes
// no attempt at being fast.
type Storage struct {
	*Schema

	path      string
	fileLock  *flock.Flock
	mu        sync.RWMutex
	revisions bool
}

var _ record.Storage = (*Storage)(nil)

// NewStorage creates a reference backend over a JSON file at path, with the
// given field schema. The file is not touched until Install or the first
// write.
func NewStorage(path string, sch *Schema, opts *StorageOptions) *Storage {
	s := &Storage{
		Schema:   sch,
		path:     path,
		fileLock: flock.New(path + ".lock"),
	}
	if opts != nil {
		s.revisions = opts.Revisions
	}
	return s
}

// lock acquires the file lock and returns the release function.
func (s *Storage) lock() (func(), error) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	locked, err := s.fileLock.TryLockContext(ctx, 100*time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire file lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("could not acquire file lock")
	}
	return func() { _ = s.fileLock.Unlock() }, nil
}

// load reads the store file. A missing or empty file is an empty store.
// Callers must hold the mutex and the file lock.
func (s *Storage) load() (*storeFile, error) {
	store := &storeFile{Records: map[string]map[string]interface{}{}}

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return store, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read store file: %w", err)
	}
	if len(data) == 0 {
		return store, nil
	}

	if err := json.Unmarshal(data, store); err != nil {
		return nil, fmt.Errorf("failed to parse store file: %w", err)
	}
	if store.Records == nil {
		store.Records = map[string]map[string]interface{}{}
	}
	return store, nil
}

// persist writes the store file. Callers must hold the mutex and the file
// lock.
func (s *Storage) persist(store *storeFile) error {
	if store.Metadata.Version == "" {
		store.Metadata.Version = storeVersion
		store.Metadata.CreatedAt = time.Now().UTC()
	}
	store.Metadata.UpdatedAt = time.Now().UTC()

	data, err := json.MarshalIndent(store, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode store file: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write store file: %w", err)
	}
	return nil
}

// Install provisions the store file.
func (s *Storage) Install() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	unlock, err := s.lock()
	if err != nil {
		return err
	}
	defer unlock()

	store, err := s.load()
	if err != nil {
		return err
	}
	return s.persist(store)
}

// Uninstall removes the store file and its lock file.
func (s *Storage) Uninstall() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove store file: %w", err)
	}
	if err := os.Remove(s.path + ".lock"); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove lock file: %w", err)
	}
	return nil
}

// Revisions reports whether revision tracking is enabled.
func (s *Storage) Revisions() bool {
	return s.revisions
}

// Add stores one raw record value under a new or provided ID, applying the
// conflict policy when the ID is already taken.
func (s *Storage) Add(value map[string]interface{}, conflict record.Conflict, revision map[string]interface{}) (string, error) {
	if !conflict.Valid() {
		return "", fmt.Errorf("invalid conflict policy: %q", conflict)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	unlock, err := s.lock()
	if err != nil {
		return "", err
	}
	defer unlock()

	store, err := s.load()
	if err != nil {
		return "", err
	}

	id, _ := value[record.IDField].(string)
	if id == "" {
		id = uuid.New().String()
	}

	if _, taken := store.Records[id]; taken {
		switch conflict {
		case record.ConflictError:
			return "", fmt.Errorf("add %q: %w", id, record.ErrDuplicate)
		case record.ConflictIgnore:
			return id, nil
		case record.ConflictReplace:
			// fall through and overwrite
		}
	}

	stored := record.CopyValue(value)
	stored[record.IDField] = id
	store.Records[id] = stored

	if s.revisions {
		store.Revisions = append(store.Revisions, Revision{
			RecordID: id,
			Created:  time.Now().UTC(),
			Changes:  record.GenerateChanges(nil, stored),
			Extra:    revision,
		})
	}

	if err := s.persist(store); err != nil {
		return "", err
	}
	return id, nil
}

// Save updates the stored record identified by value's ID field. With
// replace false only the provided fields are updated; with replace true the
// stored record is overwritten. When revision tracking is on and the save
// effectively changed something, the change set between the stored and the
// new version is recorded.
func (s *Storage) Save(value map[string]interface{}, replace bool, revision map[string]interface{}) (bool, error) {
	id, _ := value[record.IDField].(string)
	if id == "" {
		return false, fmt.Errorf("record value missing %s field", record.IDField)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	unlock, err := s.lock()
	if err != nil {
		return false, err
	}
	defer unlock()

	store, err := s.load()
	if err != nil {
		return false, err
	}

	old, ok := store.Records[id]
	if !ok {
		return false, fmt.Errorf("save %q: %w", id, record.ErrNotFound)
	}

	var updated map[string]interface{}
	if replace {
		updated = record.CopyValue(value)
	} else {
		updated = record.CopyValue(old)
		for k, v := range record.CopyValue(value) {
			updated[k] = v
		}
	}
	updated[record.IDField] = id

	changes := record.GenerateChanges(old, updated)

	store.Records[id] = updated
	if s.revisions && changes != nil {
		store.Revisions = append(store.Revisions, Revision{
			RecordID: id,
			Created:  time.Now().UTC(),
			Changes:  changes,
			Extra:    revision,
		})
	}

	if err := s.persist(store); err != nil {
		return false, err
	}
	return true, nil
}

// RevisionAdd persists a change set against a record ID.
func (s *Storage) RevisionAdd(id string, changes map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	unlock, err := s.lock()
	if err != nil {
		return err
	}
	defer unlock()

	store, err := s.load()
	if err != nil {
		return err
	}

	store.Revisions = append(store.Revisions, Revision{
		RecordID: id,
		Created:  time.Now().UTC(),
		Changes:  changes,
	})
	return s.persist(store)
}

// RevisionLog returns the recorded revisions for one record, oldest first.
// Not part of the record.Storage contract; tests use it to inspect what the
// change-set generator produced.
func (s *Storage) RevisionLog(id string) ([]Revision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	unlock, err := s.lock()
	if err != nil {
		return nil, err
	}
	defer unlock()

	store, err := s.load()
	if err != nil {
		return nil, err
	}

	var log []Revision
	for _, rev := range store.Revisions {
		if rev.RecordID == id {
			log = append(log, rev)
		}
	}
	return log, nil
}

// Count returns the number of records matching the field-equality filter,
// or all records when filter is nil.
func (s *Storage) Count(filter map[string]interface{}) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	unlock, err := s.lock()
	if err != nil {
		return 0, err
	}
	defer unlock()

	store, err := s.load()
	if err != nil {
		return 0, err
	}

	if filter == nil {
		return len(store.Records), nil
	}
	count := 0
	for _, rec := range store.Records {
		if matchesFilter(rec, filter) {
			count++
		}
	}
	return count, nil
}

// Exists reports whether a record with the given ID is stored.
func (s *Storage) Exists(id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	unlock, err := s.lock()
	if err != nil {
		return false, err
	}
	defer unlock()

	store, err := s.load()
	if err != nil {
		return false, err
	}
	_, ok := store.Records[id]
	return ok, nil
}

// Fetch returns a proxy over the record with the given ID.
func (s *Storage) Fetch(id string, opts *record.FetchOptions) (*record.Data, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	unlock, err := s.lock()
	if err != nil {
		return nil, err
	}
	defer unlock()

	store, err := s.load()
	if err != nil {
		return nil, err
	}

	rec, ok := store.Records[id]
	if !ok {
		return nil, fmt.Errorf("fetch %q: %w", id, record.ErrNotFound)
	}
	return record.NewData(s, project(rec, opts)), nil
}

// FetchMany returns proxies for each of the given IDs, skipping IDs that
// are not stored.
func (s *Storage) FetchMany(ids []string, opts *record.FetchOptions) ([]*record.Data, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	unlock, err := s.lock()
	if err != nil {
		return nil, err
	}
	defer unlock()

	store, err := s.load()
	if err != nil {
		return nil, err
	}

	var out []*record.Data
	for _, id := range ids {
		rec, ok := store.Records[id]
		if !ok {
			continue
		}
		out = append(out, record.NewData(s, project(rec, opts)))
	}
	return window(out, opts), nil
}

// Search returns proxies for every record matching the field-equality
// filter, ordered by record ID for determinism.
func (s *Storage) Search(filter map[string]interface{}, opts *record.FetchOptions) ([]*record.Data, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	unlock, err := s.lock()
	if err != nil {
		return nil, err
	}
	defer unlock()

	store, err := s.load()
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(store.Records))
	for id, rec := range store.Records {
		if filter == nil || matchesFilter(rec, filter) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	out := make([]*record.Data, 0, len(ids))
	for _, id := range ids {
		out = append(out, record.NewData(s, project(store.Records[id], opts)))
	}
	return window(out, opts), nil
}

// Insert creates a new, unstored proxy seeded with value.
func (s *Storage) Insert(value map[string]interface{}) (*record.Data, error) {
	return record.NewData(s, record.CopyValue(value)), nil
}

// Remove deletes records by ID and/or filter and returns how many were
// deleted.
func (s *Storage) Remove(ids []string, filter map[string]interface{}) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	unlock, err := s.lock()
	if err != nil {
		return 0, err
	}
	defer unlock()

	store, err := s.load()
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, id := range ids {
		if _, ok := store.Records[id]; ok {
			delete(store.Records, id)
			removed++
		}
	}
	if filter != nil {
		for id, rec := range store.Records {
			if matchesFilter(rec, filter) {
				delete(store.Records, id)
				removed++
			}
		}
	}

	if removed == 0 {
		return 0, nil
	}
	if err := s.persist(store); err != nil {
		return 0, err
	}
	return removed, nil
}

// matchesFilter reports whether every filter entry equals the record's
// value for that field.
func matchesFilter(rec, filter map[string]interface{}) bool {
	for field, want := range filter {
		got, ok := rec[field]
		if !ok || !reflect.DeepEqual(got, want) {
			return false
		}
	}
	return true
}

// project deep-copies a stored record, optionally narrowed to the requested
// fields. The ID field is always kept.
func project(rec map[string]interface{}, opts *record.FetchOptions) map[string]interface{} {
	if opts == nil || opts.Fields == nil {
		return record.CopyValue(rec)
	}
	out := map[string]interface{}{}
	if id, ok := rec[record.IDField]; ok {
		out[record.IDField] = id
	}
	for _, field := range opts.Fields {
		if v, ok := rec[field]; ok {
			out[field] = v
		}
	}
	return record.CopyValue(out)
}

// window applies the fetch limit to an already ordered result set.
func window(datas []*record.Data, opts *record.FetchOptions) []*record.Data {
	if opts == nil || opts.Limit == nil {
		return datas
	}
	start := opts.Limit.Start
	if start < 0 {
		start = 0
	}
	if start >= len(datas) {
		return nil
	}
	end := len(datas)
	if opts.Limit.Max > 0 && start+opts.Limit.Max < end {
		end = start + opts.Limit.Max
	}
	return datas[start:end]
}

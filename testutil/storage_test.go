package testutil

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/arthur-debert/recordstore/record"
)

func newTestSchema(t *testing.T) *Schema {
	t.Helper()
	sch, err := NewSchema(map[string]FieldDef{
		"name":   {Type: TypeString, Required: true},
		"tags":   {Type: TypeList},
		"status": {Type: TypeString, Values: []string{"pending", "active", "done"}},
	})
	if err != nil {
		t.Fatalf("failed to build schema: %v", err)
	}
	return sch
}

func newTestStorage(t *testing.T, opts *StorageOptions) *Storage {
	t.Helper()
	path := filepath.Join(t.TempDir(), "records.json")
	s := NewStorage(path, newTestSchema(t), opts)
	if err := s.Install(); err != nil {
		t.Fatalf("failed to install storage: %v", err)
	}
	return s
}

func TestStorageInstallUninstall(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.json")
	s := NewStorage(path, newTestSchema(t), nil)

	if err := s.Install(); err != nil {
		t.Fatalf("install: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("store file missing after install: %v", err)
	}

	if err := s.Uninstall(); err != nil {
		t.Fatalf("uninstall: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("store file still present after uninstall")
	}
	if _, err := os.Stat(path + ".lock"); !os.IsNotExist(err) {
		t.Error("lock file still present after uninstall")
	}
}

func TestStorageAddConflictPolicies(t *testing.T) {
	s := newTestStorage(t, nil)

	id, err := s.Add(map[string]interface{}{"name": "a"}, record.ConflictError, nil)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if id == "" {
		t.Fatal("add returned empty ID")
	}

	t.Run("error policy", func(t *testing.T) {
		_, err := s.Add(map[string]interface{}{"_id": id, "name": "b"}, record.ConflictError, nil)
		if !errors.Is(err, record.ErrDuplicate) {
			t.Errorf("expected ErrDuplicate, got %v", err)
		}
	})

	t.Run("ignore policy", func(t *testing.T) {
		got, err := s.Add(map[string]interface{}{"_id": id, "name": "b"}, record.ConflictIgnore, nil)
		if err != nil {
			t.Fatalf("add: %v", err)
		}
		if got != id {
			t.Errorf("id: got %q, want %q", got, id)
		}
		d, err := s.Fetch(id, nil)
		if err != nil {
			t.Fatalf("fetch: %v", err)
		}
		if name := d.Get("name", nil); name != "a" {
			t.Errorf("existing record overwritten under ignore policy: name %v", name)
		}
	})

	t.Run("replace policy", func(t *testing.T) {
		if _, err := s.Add(map[string]interface{}{"_id": id, "name": "c"}, record.ConflictReplace, nil); err != nil {
			t.Fatalf("add: %v", err)
		}
		d, err := s.Fetch(id, nil)
		if err != nil {
			t.Fatalf("fetch: %v", err)
		}
		if name := d.Get("name", nil); name != "c" {
			t.Errorf("record not replaced: name %v", name)
		}
	})

	t.Run("invalid policy", func(t *testing.T) {
		if _, err := s.Add(map[string]interface{}{"name": "d"}, record.Conflict("merge"), nil); err == nil {
			t.Error("expected error for invalid conflict policy")
		}
	})
}

func TestStorageFetch(t *testing.T) {
	s := newTestStorage(t, nil)
	id, err := s.Add(map[string]interface{}{
		"name": "a",
		"tags": []interface{}{"x", "y"},
	}, record.ConflictError, nil)
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	t.Run("not found", func(t *testing.T) {
		_, err := s.Fetch("ghost", nil)
		if !errors.Is(err, record.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("full record", func(t *testing.T) {
		d, err := s.Fetch(id, nil)
		if err != nil {
			t.Fatalf("fetch: %v", err)
		}
		AssertValue(t, d.Value(), map[string]interface{}{
			"_id":  id,
			"name": "a",
			"tags": []interface{}{"x", "y"},
		})
	})

	t.Run("field projection keeps the ID", func(t *testing.T) {
		d, err := s.Fetch(id, &record.FetchOptions{Fields: []string{"name"}})
		if err != nil {
			t.Fatalf("fetch: %v", err)
		}
		AssertValue(t, d.Value(), map[string]interface{}{
			"_id":  id,
			"name": "a",
		})
	})
}

func TestStorageFetchMany(t *testing.T) {
	s := newTestStorage(t, nil)
	id1, _ := s.Add(map[string]interface{}{"name": "a"}, record.ConflictError, nil)
	id2, _ := s.Add(map[string]interface{}{"name": "b"}, record.ConflictError, nil)

	datas, err := s.FetchMany([]string{id1, "ghost", id2}, nil)
	if err != nil {
		t.Fatalf("fetch many: %v", err)
	}
	if len(datas) != 2 {
		t.Fatalf("result count: got %d, want 2 (missing IDs skipped)", len(datas))
	}
	if datas[0].ID() != id1 || datas[1].ID() != id2 {
		t.Errorf("result order: got %q, %q", datas[0].ID(), datas[1].ID())
	}
}

func TestStorageSearchCountExists(t *testing.T) {
	s := newTestStorage(t, nil)
	for _, rec := range []map[string]interface{}{
		{"name": "a", "status": "active"},
		{"name": "b", "status": "active"},
		{"name": "c", "status": "done"},
	} {
		if _, err := s.Add(rec, record.ConflictError, nil); err != nil {
			t.Fatalf("add: %v", err)
		}
	}

	if n, err := s.Count(nil); err != nil || n != 3 {
		t.Errorf("Count(nil): got (%d, %v), want (3, nil)", n, err)
	}
	if n, err := s.Count(map[string]interface{}{"status": "active"}); err != nil || n != 2 {
		t.Errorf("Count(active): got (%d, %v), want (2, nil)", n, err)
	}

	active, err := s.Search(map[string]interface{}{"status": "active"}, nil)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(active) != 2 {
		t.Fatalf("search result count: got %d, want 2", len(active))
	}
	for _, d := range active {
		if ok, err := s.Exists(d.ID()); err != nil || !ok {
			t.Errorf("Exists(%s): got (%v, %v), want (true, nil)", d.ID(), ok, err)
		}
	}

	t.Run("limit window", func(t *testing.T) {
		page, err := s.Search(nil, &record.FetchOptions{Limit: &record.Limit{Max: 2, Start: 1}})
		if err != nil {
			t.Fatalf("search: %v", err)
		}
		if len(page) != 2 {
			t.Errorf("windowed result count: got %d, want 2", len(page))
		}

		past, err := s.Search(nil, &record.FetchOptions{Limit: &record.Limit{Start: 10}})
		if err != nil {
			t.Fatalf("search: %v", err)
		}
		if len(past) != 0 {
			t.Errorf("window past the end: got %d results, want 0", len(past))
		}
	})
}

func TestStorageRemove(t *testing.T) {
	s := newTestStorage(t, nil)
	id1, _ := s.Add(map[string]interface{}{"name": "a", "status": "done"}, record.ConflictError, nil)
	id2, _ := s.Add(map[string]interface{}{"name": "b", "status": "done"}, record.ConflictError, nil)
	id3, _ := s.Add(map[string]interface{}{"name": "c", "status": "active"}, record.ConflictError, nil)

	if n, err := s.Remove([]string{id1, "ghost"}, nil); err != nil || n != 1 {
		t.Errorf("Remove by ID: got (%d, %v), want (1, nil)", n, err)
	}
	if n, err := s.Remove(nil, map[string]interface{}{"status": "done"}); err != nil || n != 1 {
		t.Errorf("Remove by filter: got (%d, %v), want (1, nil)", n, err)
	}
	if ok, _ := s.Exists(id2); ok {
		t.Error("filtered record still present")
	}
	if ok, _ := s.Exists(id3); !ok {
		t.Error("unmatched record removed")
	}
}

func TestStorageSave(t *testing.T) {
	s := newTestStorage(t, nil)
	id, err := s.Add(map[string]interface{}{
		"name":   "a",
		"status": "pending",
		"tags":   []interface{}{"x"},
	}, record.ConflictError, nil)
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	t.Run("missing id", func(t *testing.T) {
		if _, err := s.Save(map[string]interface{}{"name": "x"}, false, nil); err == nil {
			t.Error("expected error for value without an ID")
		}
	})

	t.Run("unknown id", func(t *testing.T) {
		_, err := s.Save(map[string]interface{}{"_id": "ghost", "name": "x"}, false, nil)
		if !errors.Is(err, record.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("partial update merges", func(t *testing.T) {
		saved, err := s.Save(map[string]interface{}{"_id": id, "status": "active"}, false, nil)
		if err != nil || !saved {
			t.Fatalf("save: got (%v, %v), want (true, nil)", saved, err)
		}
		d, _ := s.Fetch(id, nil)
		AssertValue(t, d.Value(), map[string]interface{}{
			"_id":    id,
			"name":   "a",
			"status": "active",
			"tags":   []interface{}{"x"},
		})
	})

	t.Run("replace overwrites", func(t *testing.T) {
		saved, err := s.Save(map[string]interface{}{"_id": id, "name": "b"}, true, nil)
		if err != nil || !saved {
			t.Fatalf("save: got (%v, %v), want (true, nil)", saved, err)
		}
		d, _ := s.Fetch(id, nil)
		AssertValue(t, d.Value(), map[string]interface{}{
			"_id":  id,
			"name": "b",
		})
	})
}

func TestStorageInsert(t *testing.T) {
	s := newTestStorage(t, nil)

	d, err := s.Insert(map[string]interface{}{"name": "a"})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if n, _ := s.Count(nil); n != 0 {
		t.Fatal("insert persisted the record before Add")
	}
	if !d.Valid() {
		t.Fatalf("record invalid: %v", d.Errors())
	}

	id, err := d.Add(record.ConflictError, nil)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if ok, _ := s.Exists(id); !ok {
		t.Error("record missing after Data.Add")
	}
}

// TestStorageRevisionScenario walks the whole revision path: fetch a stored
// record through a proxy, mutate two fields, save, and check the change set
// the backend recorded.
func TestStorageRevisionScenario(t *testing.T) {
	s := newTestStorage(t, &StorageOptions{Revisions: true})
	if !s.Revisions() {
		t.Fatal("revision tracking not reported")
	}

	id, err := s.Add(map[string]interface{}{
		"name": "a",
		"tags": []interface{}{"x", "y"},
	}, record.ConflictError, nil)
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	d, err := s.Fetch(id, nil)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if err := d.Set("name", "b"); err != nil {
		t.Fatalf("set name: %v", err)
	}
	if err := d.Set("tags", []interface{}{"x"}); err != nil {
		t.Fatalf("set tags: %v", err)
	}

	// the pre-mutation snapshot was captured on the first set
	AssertValue(t, d.Original(), map[string]interface{}{
		"_id":  id,
		"name": "a",
		"tags": []interface{}{"x", "y"},
	})
	AssertChanges(t, d, "name", "tags")

	saved, err := d.Save(nil)
	if err != nil || !saved {
		t.Fatalf("save: got (%v, %v), want (true, nil)", saved, err)
	}
	AssertChanges(t, d)

	log, err := s.RevisionLog(id)
	if err != nil {
		t.Fatalf("revision log: %v", err)
	}
	if len(log) != 2 {
		t.Fatalf("revision count: got %d, want 2 (add + save)", len(log))
	}

	// the add revision records the whole value as new
	if log[0].Changes["old"] != nil {
		t.Errorf("add revision old: got %v, want nil", log[0].Changes["old"])
	}
	added, ok := log[0].Changes["new"].(map[string]interface{})
	if !ok || added["name"] != "a" {
		t.Errorf("add revision new: got %v", log[0].Changes["new"])
	}

	// the save revision is the per-field change set
	AssertChangeSet(t, log[1].Changes, map[string]interface{}{
		"name": map[string]interface{}{"old": "a", "new": "b"},
		"tags": map[string]interface{}{
			"1": map[string]interface{}{"old": "y", "new": nil},
		},
	})
}

func TestStorageRevisionAdd(t *testing.T) {
	s := newTestStorage(t, &StorageOptions{Revisions: true})

	changes := map[string]interface{}{
		"name": map[string]interface{}{"old": "a", "new": "b"},
	}
	if err := s.RevisionAdd("r1", changes); err != nil {
		t.Fatalf("revision add: %v", err)
	}

	log, err := s.RevisionLog("r1")
	if err != nil {
		t.Fatalf("revision log: %v", err)
	}
	if len(log) != 1 {
		t.Fatalf("revision count: got %d, want 1", len(log))
	}
	AssertChangeSet(t, log[0].Changes, changes)
}

func TestStorageNoRevisionWhenDisabled(t *testing.T) {
	s := newTestStorage(t, nil)

	id, err := s.Add(map[string]interface{}{"name": "a"}, record.ConflictError, nil)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := s.Save(map[string]interface{}{"_id": id, "name": "b"}, false, nil); err != nil {
		t.Fatalf("save: %v", err)
	}

	log, err := s.RevisionLog(id)
	if err != nil {
		t.Fatalf("revision log: %v", err)
	}
	if len(log) != 0 {
		t.Errorf("revisions recorded with tracking disabled: %v", log)
	}
}

package testutil

import (
	"sort"
	"testing"

	"github.com/arthur-debert/recordstore/record"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

// AssertChangeSet fails the test when got does not equal the expected
// change set, printing a structural diff.
func AssertChangeSet(t *testing.T, got, want map[string]interface{}) {
	t.Helper()
	if diff := cmp.Diff(want, got, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("change set mismatch (-want +got):\n%s", diff)
	}
}

// AssertValue fails the test when a record value does not equal want.
func AssertValue(t *testing.T, got, want map[string]interface{}) {
	t.Helper()
	if diff := cmp.Diff(want, got, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("record value mismatch (-want +got):\n%s", diff)
	}
}

// AssertChanges fails the test when the proxy's changed-field set does not
// equal exactly the given fields.
func AssertChanges(t *testing.T, d *record.Data, fields ...string) {
	t.Helper()
	want := append([]string(nil), fields...)
	sort.Strings(want)
	got := d.Changes()
	if diff := cmp.Diff(want, got, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("changed fields mismatch (-want +got):\n%s", diff)
	}
}

package record

import (
	"reflect"
	"strconv"
)

// value categories recognized by the change-set generator
type valueKind int

const (
	kindScalar valueKind = iota
	kindMapping
	kindSequence
)

// kindOf classifies a value for diffing purposes. String-keyed maps are
// mappings, slices and arrays are sequences (except []byte, which is treated
// as an opaque scalar), and everything else, including nil, is a scalar.
func kindOf(v interface{}) valueKind {
	if v == nil {
		return kindScalar
	}
	if _, ok := v.([]byte); ok {
		return kindScalar
	}
	switch rv := reflect.ValueOf(v); rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() == reflect.String {
			return kindMapping
		}
	case reflect.Slice, reflect.Array:
		return kindSequence
	}
	return kindScalar
}

// replacement builds a terminal change-set entry: the whole value was
// replaced.
func replacement(old, new interface{}) map[string]interface{} {
	return map[string]interface{}{"old": old, "new": new}
}

// GenerateChanges compares two versions of a record value and returns a
// nested description of what changed, or nil when the values are equal.
//
// When both values are string-keyed maps the result maps each differing key
// to a nested change set: keys dropped from old map to {"old": v, "new":
// nil}, keys added in new map to {"old": nil, "new": v}, and keys present in
// both recurse. Slices diff the same way, keyed by stringified index.
// Values of differing categories (map vs slice, container vs scalar) and
// unequal scalars produce a terminal {"old": ..., "new": ...} replacement.
//
// One caveat carried over for compatibility with existing revision data:
// when the number of differing keys at a level reaches the total number of
// distinct keys across both versions, the per-key breakdown collapses into a
// single terminal replacement of the whole value. This bounds change-set
// size, but it also means a map whose every key was touched is recorded as
// replaced wholesale even if the mutations were independent.
//
// The function never mutates its inputs, never fails, and depends only on
// the input values. The returned maps reference the input values directly;
// callers that go on to mutate the inputs should copy first.
func GenerateChanges(old, new interface{}) map[string]interface{} {
	switch kindOf(old) {
	case kindMapping:
		if kindOf(new) != kindMapping {
			return replacement(old, new)
		}
		return diffMappings(old, new)
	case kindSequence:
		if kindOf(new) != kindSequence {
			return replacement(old, new)
		}
		return diffSequences(old, new)
	default:
		if kindOf(new) != kindScalar || !reflect.DeepEqual(old, new) {
			return replacement(old, new)
		}
		return nil
	}
}

func diffMappings(old, new interface{}) map[string]interface{} {
	ov := reflect.ValueOf(old)
	nv := reflect.ValueOf(new)

	changes := map[string]interface{}{}

	// keys removed or changed
	for _, key := range ov.MapKeys() {
		oldElem := ov.MapIndex(key).Interface()
		newElem := nv.MapIndex(key)
		if !newElem.IsValid() {
			changes[key.String()] = replacement(oldElem, nil)
			continue
		}
		if d := GenerateChanges(oldElem, newElem.Interface()); d != nil {
			changes[key.String()] = d
		}
	}

	// keys added
	for _, key := range nv.MapKeys() {
		if !ov.MapIndex(key).IsValid() {
			changes[key.String()] = replacement(nil, nv.MapIndex(key).Interface())
		}
	}

	return collapse(changes, ov.Len(), nv.Len(), old, new)
}

func diffSequences(old, new interface{}) map[string]interface{} {
	ov := reflect.ValueOf(old)
	nv := reflect.ValueOf(new)

	changes := map[string]interface{}{}

	// indexes present in old: changed, or truncated away in new
	for i := 0; i < ov.Len(); i++ {
		if i >= nv.Len() {
			changes[strconv.Itoa(i)] = replacement(ov.Index(i).Interface(), nil)
			continue
		}
		if d := GenerateChanges(ov.Index(i).Interface(), nv.Index(i).Interface()); d != nil {
			changes[strconv.Itoa(i)] = d
		}
	}

	// trailing indexes appended in new
	for i := ov.Len(); i < nv.Len(); i++ {
		changes[strconv.Itoa(i)] = replacement(nil, nv.Index(i).Interface())
	}

	return collapse(changes, ov.Len(), nv.Len(), old, new)
}

// collapse applies the full-replacement rule: once every key differs the
// per-key breakdown carries no more information than a terminal replacement.
// An empty breakdown always means "no change", even for empty containers.
func collapse(changes map[string]interface{}, oldLen, newLen int, old, new interface{}) map[string]interface{} {
	if len(changes) == 0 {
		return nil
	}
	maxKeys := oldLen
	if newLen > maxKeys {
		maxKeys = newLen
	}
	if len(changes) >= maxKeys {
		return replacement(old, new)
	}
	return changes
}

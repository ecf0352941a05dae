package record

// CopyValue returns a deep copy of a record value. Nested maps and slices of
// the canonical JSON shape (map[string]interface{} and []interface{}) are
// copied recursively; scalars and other types are shared as-is.
func CopyValue(value map[string]interface{}) map[string]interface{} {
	if value == nil {
		return nil
	}
	out := make(map[string]interface{}, len(value))
	for k, v := range value {
		out[k] = copyAny(v)
	}
	return out
}

func copyAny(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		return CopyValue(t)
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = copyAny(e)
		}
		return out
	default:
		return v
	}
}

package models

// SettingsDocument is a theme settings schema or a project's customized
// copy of it. The shape is author-defined:
//
//	{"settings": {"global": {<category>: [{id, type, value?, default?}]}}}
//
// so it is handled as a generic JSON object rather than a fixed struct.
type SettingsDocument = map[string]interface{}

// CloneValue makes a structural deep copy of a decoded JSON value. Maps and
// slices are copied recursively; scalars are returned as-is. This replaces
// marshal/unmarshal round-trip cloning so the cost is explicit and values
// that JSON cannot represent are not silently dropped.
func CloneValue(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			out[k] = CloneValue(item)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = CloneValue(item)
		}
		return out
	default:
		return val
	}
}

// CloneDocument deep-copies a settings document
func CloneDocument(doc SettingsDocument) SettingsDocument {
	if doc == nil {
		return nil
	}
	return CloneValue(doc).(map[string]interface{})
}

package services

import (
	"github.com/loomsite/server/internal/models"
)

// SettingsMergeService reconciles a project's customized settings with the
// settings schema of a newer theme version
type SettingsMergeService struct{}

// NewSettingsMergeService creates a settings merger
func NewSettingsMergeService() *SettingsMergeService {
	return &SettingsMergeService{}
}

// MergeThemeSettings merges the values of an old (user-customized) settings
// document into a new schema document. This is not a generic deep merge:
// the new schema is authoritative for structure, old values win only where
// the schema still defines them, and settings the schema dropped are lost.
//
//   - setting-definition lists merge element-wise by id: a matching old
//     element contributes its value (only) onto the new element
//   - nested objects recurse
//   - scalar leaves present in both: the user's value wins outright
//   - keys absent from the old document keep the schema's own defaults
func (s *SettingsMergeService) MergeThemeSettings(old, new models.SettingsDocument) models.SettingsDocument {
	if new == nil {
		return nil
	}

	merged := models.CloneDocument(new)
	if old == nil {
		return merged
	}

	mergeObjects(old, merged)
	return merged
}

// mergeObjects overlays old values onto merged in place. merged starts as a
// deep copy of the new schema.
func mergeObjects(old, merged map[string]interface{}) {
	for key, newVal := range merged {
		oldVal, present := old[key]
		if !present {
			continue
		}

		switch newTyped := newVal.(type) {
		case []interface{}:
			oldList, ok := oldVal.([]interface{})
			if !ok {
				continue
			}
			if isSettingList(newTyped) {
				merged[key] = mergeSettingLists(oldList, newTyped)
			}
		case map[string]interface{}:
			oldObj, ok := oldVal.(map[string]interface{})
			if !ok {
				continue
			}
			mergeObjects(oldObj, newTyped)
		default:
			if oldVal != nil {
				merged[key] = models.CloneValue(oldVal)
			}
		}
	}
}

// mergeSettingLists merges two lists of setting-definition records by id.
// Elements only in the new schema keep their defaults; elements only in the
// old list were removed by the theme author and are dropped.
func mergeSettingLists(old, new []interface{}) []interface{} {
	byID := make(map[string]map[string]interface{}, len(old))
	for _, item := range old {
		if rec, ok := item.(map[string]interface{}); ok {
			if id, ok := rec["id"].(string); ok && id != "" {
				byID[id] = rec
			}
		}
	}

	for _, item := range new {
		rec, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		id, ok := rec["id"].(string)
		if !ok {
			continue
		}

		oldRec, present := byID[id]
		if !present {
			continue
		}

		// Only the user's value carries over; an id with no current value
		// is unset and must not be emitted as customized
		if value, has := oldRec["value"]; has && value != nil {
			rec["value"] = models.CloneValue(value)
		}
	}

	return new
}

// isSettingList reports whether a list looks like an ordered list of
// setting-definition records (every element is an object with an id)
func isSettingList(list []interface{}) bool {
	if len(list) == 0 {
		return false
	}
	for _, item := range list {
		rec, ok := item.(map[string]interface{})
		if !ok {
			return false
		}
		if _, ok := rec["id"]; !ok {
			return false
		}
	}
	return true
}

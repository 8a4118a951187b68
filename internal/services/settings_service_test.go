package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomsite/server/internal/models"
)

func settingList(items ...map[string]interface{}) []interface{} {
	list := make([]interface{}, len(items))
	for i, item := range items {
		list[i] = item
	}
	return list
}

func TestMergeThemeSettings(t *testing.T) {
	merger := NewSettingsMergeService()

	t.Run("user values win on scalar leaves", func(t *testing.T) {
		old := models.SettingsDocument{"siteTitle": "My Bakery", "showBanner": false}
		new := models.SettingsDocument{"siteTitle": "Aurora", "showBanner": true, "tagline": "Fresh"}

		merged := merger.MergeThemeSettings(old, new)
		assert.Equal(t, "My Bakery", merged["siteTitle"])
		assert.Equal(t, false, merged["showBanner"])
		assert.Equal(t, "Fresh", merged["tagline"], "keys the user never touched keep schema defaults")
	})

	t.Run("setting lists merge element-wise by id", func(t *testing.T) {
		old := models.SettingsDocument{
			"colors": settingList(
				map[string]interface{}{"id": "background", "label": "Old label", "value": "#111111"},
				map[string]interface{}{"id": "removed", "value": "#222222"},
			),
		}
		new := models.SettingsDocument{
			"colors": settingList(
				map[string]interface{}{"id": "background", "label": "Background", "default": "#ffffff"},
				map[string]interface{}{"id": "accent", "label": "Accent", "default": "#ff0000"},
			),
		}

		merged := merger.MergeThemeSettings(old, new)
		colors := merged["colors"].([]interface{})
		require.Len(t, colors, 2)

		background := colors[0].(map[string]interface{})
		assert.Equal(t, "#111111", background["value"], "old value carries onto the matching element")
		assert.Equal(t, "Background", background["label"], "everything but the value comes from the schema")

		accent := colors[1].(map[string]interface{})
		assert.Equal(t, "Accent", accent["label"])
		_, hasValue := accent["value"]
		assert.False(t, hasValue, "elements new to the schema keep their defaults")
	})

	t.Run("ids dropped from the schema are lost", func(t *testing.T) {
		old := models.SettingsDocument{
			"colors": settingList(map[string]interface{}{"id": "removed", "value": "#222222"}),
		}
		new := models.SettingsDocument{
			"colors": settingList(map[string]interface{}{"id": "accent", "default": "#ff0000"}),
		}

		merged := merger.MergeThemeSettings(old, new)
		colors := merged["colors"].([]interface{})
		require.Len(t, colors, 1)
		assert.Equal(t, "accent", colors[0].(map[string]interface{})["id"])
	})

	t.Run("an unset old value is not emitted", func(t *testing.T) {
		old := models.SettingsDocument{
			"colors": settingList(map[string]interface{}{"id": "background"}),
		}
		new := models.SettingsDocument{
			"colors": settingList(map[string]interface{}{"id": "background", "default": "#ffffff"}),
		}

		merged := merger.MergeThemeSettings(old, new)
		background := merged["colors"].([]interface{})[0].(map[string]interface{})
		_, hasValue := background["value"]
		assert.False(t, hasValue)
	})

	t.Run("nested objects recurse", func(t *testing.T) {
		old := models.SettingsDocument{
			"typography": map[string]interface{}{
				"heading": map[string]interface{}{"font": "Garamond"},
			},
		}
		new := models.SettingsDocument{
			"typography": map[string]interface{}{
				"heading": map[string]interface{}{"font": "Inter", "weight": "600"},
				"body":    map[string]interface{}{"font": "Inter"},
			},
		}

		merged := merger.MergeThemeSettings(old, new)
		typography := merged["typography"].(map[string]interface{})
		heading := typography["heading"].(map[string]interface{})
		assert.Equal(t, "Garamond", heading["font"])
		assert.Equal(t, "600", heading["weight"])
		assert.Contains(t, typography, "body")
	})

	t.Run("type disagreements resolve to the schema", func(t *testing.T) {
		old := models.SettingsDocument{"colors": "not-a-list"}
		new := models.SettingsDocument{
			"colors": settingList(map[string]interface{}{"id": "accent", "default": "#ff0000"}),
		}

		merged := merger.MergeThemeSettings(old, new)
		assert.Equal(t, new["colors"], merged["colors"])
	})

	t.Run("nil inputs", func(t *testing.T) {
		assert.Nil(t, merger.MergeThemeSettings(models.SettingsDocument{"a": 1}, nil))

		new := models.SettingsDocument{"a": "default"}
		merged := merger.MergeThemeSettings(nil, new)
		assert.Equal(t, new, merged)
	})

	t.Run("the old document is never mutated", func(t *testing.T) {
		old := models.SettingsDocument{
			"colors": settingList(map[string]interface{}{"id": "background", "value": "#111111"}),
		}
		new := models.SettingsDocument{
			"colors": settingList(map[string]interface{}{"id": "background", "default": "#ffffff"}),
		}

		merged := merger.MergeThemeSettings(old, new)
		merged["colors"].([]interface{})[0].(map[string]interface{})["value"] = "#999999"

		oldValue := old["colors"].([]interface{})[0].(map[string]interface{})["value"]
		assert.Equal(t, "#111111", oldValue)
	})
}

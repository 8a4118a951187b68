package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCloneValue(t *testing.T) {
	t.Run("copies nested maps and slices", func(t *testing.T) {
		original := map[string]interface{}{
			"settings": map[string]interface{}{
				"global": map[string]interface{}{
					"colors": []interface{}{
						map[string]interface{}{"id": "bg", "value": "#111"},
					},
				},
			},
		}

		clone := CloneValue(original).(map[string]interface{})
		require.Equal(t, original, clone)

		// Mutating the clone must not reach the original
		global := clone["settings"].(map[string]interface{})["global"].(map[string]interface{})
		global["colors"].([]interface{})[0].(map[string]interface{})["value"] = "#fff"

		origValue := original["settings"].(map[string]interface{})["global"].(map[string]interface{})["colors"].([]interface{})[0].(map[string]interface{})["value"]
		assert.Equal(t, "#111", origValue)
	})

	t.Run("passes scalars through", func(t *testing.T) {
		assert.Equal(t, "x", CloneValue("x"))
		assert.Equal(t, 4.2, CloneValue(4.2))
		assert.Equal(t, true, CloneValue(true))
		assert.Nil(t, CloneValue(nil))
	})
}

func TestCloneDocument(t *testing.T) {
	assert.Nil(t, CloneDocument(nil))

	doc := SettingsDocument{"name": "Aurora"}
	clone := CloneDocument(doc)
	clone["name"] = "Borealis"
	assert.Equal(t, "Aurora", doc["name"])
}

func TestThemeMetadataValidate(t *testing.T) {
	t.Run("accepts a complete document", func(t *testing.T) {
		meta := ThemeMetadata{Name: "Aurora", Version: "1.0.0", Author: "Studio"}
		assert.NoError(t, meta.Validate())
	})

	t.Run("names every missing field", func(t *testing.T) {
		meta := ThemeMetadata{Description: "only optional fields"}
		err := meta.Validate()
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrMetadataIncomplete)
		assert.Contains(t, err.Error(), "name")
		assert.Contains(t, err.Error(), "version")
		assert.Contains(t, err.Error(), "author")
	})

	t.Run("rejects an invalid version string", func(t *testing.T) {
		meta := ThemeMetadata{Name: "Aurora", Version: "1.0", Author: "Studio"}
		assert.ErrorIs(t, meta.Validate(), ErrInvalidVersion)
	})
}

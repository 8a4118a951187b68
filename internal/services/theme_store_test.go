package services

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomsite/server/internal/models"
)

func TestThemeDir(t *testing.T) {
	store := newTestStore(t)

	t.Run("resolves inside the store root", func(t *testing.T) {
		dir, err := store.ThemeDir("aurora")
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(store.BasePath(), "aurora"), dir)
	})

	t.Run("rejects path-shaped ids", func(t *testing.T) {
		for _, id := range []string{"", "  ", ".", "..", "../aurora", "a/b", "themes/../../etc"} {
			_, err := store.ThemeDir(id)
			assert.ErrorIs(t, err, models.ErrInvalidThemeID, "id %q", id)
		}
	})
}

func TestGetVersions(t *testing.T) {
	t.Run("unknown theme", func(t *testing.T) {
		store := newTestStore(t)
		_, err := store.GetVersions("missing")
		assert.ErrorIs(t, err, models.ErrThemeNotFound)
	})

	t.Run("base version only", func(t *testing.T) {
		store := newTestStore(t)
		seedBaseTheme(t, store, "aurora", "1.0.0")

		versions, err := store.GetVersions("aurora")
		require.NoError(t, err)
		assert.Equal(t, []string{"1.0.0"}, versions)
	})

	t.Run("base plus update layers, ascending", func(t *testing.T) {
		store := newTestStore(t)
		seedBaseTheme(t, store, "aurora", "1.0.0")
		seedUpdateLayer(t, store, "aurora", "10.0.0", nil)
		seedUpdateLayer(t, store, "aurora", "1.1.0", nil)

		versions, err := store.GetVersions("aurora")
		require.NoError(t, err)
		assert.Equal(t, []string{"1.0.0", "1.1.0", "10.0.0"}, versions)
	})

	t.Run("ignores non-version folders and duplicates", func(t *testing.T) {
		store := newTestStore(t)
		dir := seedBaseTheme(t, store, "aurora", "1.0.0")
		seedUpdateLayer(t, store, "aurora", "1.1.0", nil)
		require.NoError(t, os.MkdirAll(filepath.Join(dir, UpdatesDirName, "not-a-version"), 0755))
		require.NoError(t, os.MkdirAll(filepath.Join(dir, UpdatesDirName, "1.0.0"), 0755))

		versions, err := store.GetVersions("aurora")
		require.NoError(t, err)
		assert.Equal(t, []string{"1.0.0", "1.1.0"}, versions)
	})
}

func TestSourceDir(t *testing.T) {
	store := newTestStore(t)
	baseDir := seedBaseTheme(t, store, "aurora", "1.0.0")

	t.Run("falls back to the base directory", func(t *testing.T) {
		dir, err := store.SourceDir("aurora")
		require.NoError(t, err)
		assert.Equal(t, baseDir, dir)
	})

	t.Run("prefers the snapshot once it exists", func(t *testing.T) {
		snapshot := filepath.Join(baseDir, SnapshotDirName)
		writeFile(t, filepath.Join(snapshot, MetadataFileName), themeJSON("1.1.0"))

		dir, err := store.SourceDir("aurora")
		require.NoError(t, err)
		assert.Equal(t, snapshot, dir)

		version, err := store.SourceVersion("aurora")
		require.NoError(t, err)
		assert.Equal(t, "1.1.0", version)
	})
}

func TestHasPendingUpdates(t *testing.T) {
	store := newTestStore(t)
	seedBaseTheme(t, store, "aurora", "1.0.0")

	pending, err := store.HasPendingUpdates("aurora")
	require.NoError(t, err)
	assert.False(t, pending)

	seedUpdateLayer(t, store, "aurora", "1.1.0", nil)

	pending, err = store.HasPendingUpdates("aurora")
	require.NoError(t, err)
	assert.True(t, pending)
}

func TestCopyToProject(t *testing.T) {
	store := newTestStore(t)
	seedBaseTheme(t, store, "aurora", "1.0.0")
	seedUpdateLayer(t, store, "aurora", "1.1.0", nil)

	projectDir := filepath.Join(t.TempDir(), "site")
	require.NoError(t, store.CopyToProject("aurora", projectDir))

	assert.FileExists(t, filepath.Join(projectDir, MetadataFileName))
	assert.FileExists(t, filepath.Join(projectDir, LayoutFileName))
	assert.FileExists(t, filepath.Join(projectDir, AssetsDirName, "css", "main.css"))

	// Store-internal directories never leave the store
	assert.NoDirExists(t, filepath.Join(projectDir, UpdatesDirName))
	assert.NoDirExists(t, filepath.Join(projectDir, SnapshotDirName))
}

func TestParseThemeMetadata(t *testing.T) {
	t.Run("tolerates comments and trailing commas", func(t *testing.T) {
		meta, err := ParseThemeMetadata([]byte(`{
			// hand-authored by the theme developer
			"name": "Aurora",
			"version": "2.1.0",
			"author": "Studio",
		}`))
		require.NoError(t, err)
		assert.Equal(t, "2.1.0", meta.Version)
	})

	t.Run("rejects incomplete documents", func(t *testing.T) {
		_, err := ParseThemeMetadata([]byte(`{"name": "Aurora"}`))
		assert.ErrorIs(t, err, models.ErrMetadataIncomplete)
	})

	t.Run("rejects malformed json", func(t *testing.T) {
		_, err := ParseThemeMetadata([]byte(`{"name": `))
		assert.Error(t, err)
	})
}

func TestThemeInfo(t *testing.T) {
	store := newTestStore(t)
	seedBaseTheme(t, store, "aurora", "1.0.0")
	seedUpdateLayer(t, store, "aurora", "1.1.0", nil)

	info, err := store.Info("aurora")
	require.NoError(t, err)
	assert.Equal(t, "aurora", info.ID)
	assert.Equal(t, "1.0.0", info.BaseVersion)
	assert.Equal(t, []string{"1.0.0", "1.1.0"}, info.Versions)
	assert.False(t, info.HasSnapshot)
}

package services

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomsite/server/internal/models"
)

func TestCreateProjectFromTheme(t *testing.T) {
	store := newTestStore(t)
	seedBaseTheme(t, store, "aurora", "1.0.0")
	seedUpdateLayer(t, store, "aurora", "1.1.0", nil)

	repo := newFakeProjectRepo()
	base := t.TempDir()
	projects, err := NewProjectService(store, repo, base)
	require.NoError(t, err)

	project, err := projects.CreateProjectFromTheme(context.Background(), "My Bakery", "aurora")
	require.NoError(t, err)

	t.Run("binding starts at the theme's source version", func(t *testing.T) {
		assert.NotEmpty(t, project.ID)
		assert.Equal(t, "aurora", project.Theme)
		assert.Equal(t, "1.0.0", project.ThemeVersion)
		assert.True(t, project.ReceiveThemeUpdates)
		assert.Nil(t, project.LastThemeUpdateAt)

		stored, err := repo.GetByID(context.Background(), project.ID)
		require.NoError(t, err)
		assert.Equal(t, project.ID, stored.ID)
	})

	t.Run("theme files land in the project folder", func(t *testing.T) {
		assert.Equal(t, "my-bakery", project.Folder)
		projectDir := filepath.Join(base, project.Folder)
		assert.FileExists(t, filepath.Join(projectDir, MetadataFileName))
		assert.FileExists(t, filepath.Join(projectDir, LayoutFileName))
		assert.NoDirExists(t, filepath.Join(projectDir, UpdatesDirName))
	})

	t.Run("folder collisions get a counter suffix", func(t *testing.T) {
		second, err := projects.CreateProjectFromTheme(context.Background(), "My Bakery", "aurora")
		require.NoError(t, err)
		assert.Equal(t, "my-bakery-1", second.Folder)
	})

	t.Run("unknown theme", func(t *testing.T) {
		_, err := projects.CreateProjectFromTheme(context.Background(), "Nope", "missing")
		assert.ErrorIs(t, err, models.ErrThemeNotFound)
	})

	t.Run("empty name", func(t *testing.T) {
		_, err := projects.CreateProjectFromTheme(context.Background(), "  ", "aurora")
		assert.ErrorIs(t, err, models.ErrInvalidProjectName)
	})
}

func TestSetReceiveUpdates(t *testing.T) {
	store := newTestStore(t)
	seedBaseTheme(t, store, "aurora", "1.0.0")

	repo := newFakeProjectRepo()
	projects, err := NewProjectService(store, repo, t.TempDir())
	require.NoError(t, err)

	project, err := projects.CreateProjectFromTheme(context.Background(), "Site", "aurora")
	require.NoError(t, err)

	require.NoError(t, projects.SetReceiveUpdates(context.Background(), project.ID, false))

	stored, err := repo.GetByID(context.Background(), project.ID)
	require.NoError(t, err)
	assert.False(t, stored.ReceiveThemeUpdates)

	assert.ErrorIs(t, projects.SetReceiveUpdates(context.Background(), "missing", true),
		models.ErrProjectNotFound)
}

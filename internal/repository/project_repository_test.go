package repository

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomsite/server/internal/models"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := NewSQLiteDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func testProject(id, name, folder string) *models.Project {
	now := time.Now().UTC().Truncate(time.Second)
	return &models.Project{
		ID:                  id,
		Name:                name,
		Folder:              folder,
		Theme:               "aurora",
		ThemeVersion:        "1.0.0",
		ReceiveThemeUpdates: true,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
}

func TestProjectRepositoryCRUD(t *testing.T) {
	repo := NewProjectRepository(newTestDB(t))
	ctx := context.Background()

	t.Run("create and get", func(t *testing.T) {
		project := testProject("p1", "My Bakery", "my-bakery")
		require.NoError(t, repo.Create(ctx, project))

		got, err := repo.GetByID(ctx, "p1")
		require.NoError(t, err)
		assert.Equal(t, "My Bakery", got.Name)
		assert.Equal(t, "aurora", got.Theme)
		assert.Equal(t, "1.0.0", got.ThemeVersion)
		assert.True(t, got.ReceiveThemeUpdates)
		assert.Nil(t, got.LastThemeUpdateAt)
		assert.Empty(t, got.LastThemeUpdateVersion)
	})

	t.Run("get missing", func(t *testing.T) {
		_, err := repo.GetByID(ctx, "nope")
		assert.ErrorIs(t, err, models.ErrProjectNotFound)
	})

	t.Run("create rejects invalid projects", func(t *testing.T) {
		err := repo.Create(ctx, &models.Project{ID: "p2"})
		assert.ErrorIs(t, err, models.ErrInvalidProjectName)
	})

	t.Run("update persists binding changes", func(t *testing.T) {
		project, err := repo.GetByID(ctx, "p1")
		require.NoError(t, err)

		applied := time.Now().UTC().Truncate(time.Second)
		project.ThemeVersion = "1.1.0"
		project.LastThemeUpdateAt = &applied
		project.LastThemeUpdateVersion = "1.1.0"
		project.ReceiveThemeUpdates = false
		require.NoError(t, repo.Update(ctx, project))

		got, err := repo.GetByID(ctx, "p1")
		require.NoError(t, err)
		assert.Equal(t, "1.1.0", got.ThemeVersion)
		assert.Equal(t, "1.1.0", got.LastThemeUpdateVersion)
		require.NotNil(t, got.LastThemeUpdateAt)
		assert.True(t, applied.Equal(got.LastThemeUpdateAt.UTC()))
		assert.False(t, got.ReceiveThemeUpdates)
	})

	t.Run("update missing", func(t *testing.T) {
		err := repo.Update(ctx, testProject("ghost", "Ghost", "ghost"))
		assert.ErrorIs(t, err, models.ErrProjectNotFound)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, repo.Create(ctx, testProject("p3", "Gone soon", "gone-soon")))
		require.NoError(t, repo.Delete(ctx, "p3"))

		_, err := repo.GetByID(ctx, "p3")
		assert.ErrorIs(t, err, models.ErrProjectNotFound)
		assert.ErrorIs(t, repo.Delete(ctx, "p3"), models.ErrProjectNotFound)
	})
}

func TestProjectRepositoryQueries(t *testing.T) {
	repo := NewProjectRepository(newTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, testProject("p1", "Bravo", "bravo")))
	require.NoError(t, repo.Create(ctx, testProject("p2", "Alpha", "alpha")))

	other := testProject("p3", "Charlie", "charlie")
	other.Theme = "borealis"
	require.NoError(t, repo.Create(ctx, other))

	t.Run("GetAll orders by name", func(t *testing.T) {
		all, err := repo.GetAll(ctx)
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, "Alpha", all[0].Name)
		assert.Equal(t, "Bravo", all[1].Name)
		assert.Equal(t, "Charlie", all[2].Name)
	})

	t.Run("GetByTheme filters", func(t *testing.T) {
		bound, err := repo.GetByTheme(ctx, "aurora")
		require.NoError(t, err)
		require.Len(t, bound, 2)
		for _, project := range bound {
			assert.Equal(t, "aurora", project.Theme)
		}

		none, err := repo.GetByTheme(ctx, "unknown")
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("folder is unique", func(t *testing.T) {
		dup := testProject("p4", "Dup", "alpha")
		assert.Error(t, repo.Create(ctx, dup))
	})
}

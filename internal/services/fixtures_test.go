package services

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/require"

	"github.com/loomsite/server/internal/models"
)

func newTestStore(t *testing.T) *ThemeStorageService {
	t.Helper()

	store, err := NewThemeStorageService(t.TempDir())
	require.NoError(t, err)
	return store
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func themeJSON(version string) string {
	return fmt.Sprintf(`{"name":"Aurora","description":"Test theme","version":%q,"author":"Loomsite Studio"}`, version)
}

// seedBaseTheme writes a structurally complete base theme into the store
// and returns its directory
func seedBaseTheme(t *testing.T, store *ThemeStorageService, themeID, version string) string {
	t.Helper()

	dir, err := store.ThemeDir(themeID)
	require.NoError(t, err)

	writeFile(t, filepath.Join(dir, MetadataFileName), themeJSON(version))
	writeFile(t, filepath.Join(dir, ScreenshotFileName), "png-bytes")
	writeFile(t, filepath.Join(dir, LayoutFileName), "{{ content }}")
	writeFile(t, filepath.Join(dir, AssetsDirName, "css", "main.css"), "body {}")
	writeFile(t, filepath.Join(dir, TemplatesDirName, "home.liquid"), "<h1>Home</h1>")
	writeFile(t, filepath.Join(dir, WidgetsDirName, "hero", "widget.liquid"), "<div>hero</div>")
	writeFile(t, filepath.Join(dir, MenusDirName, "main.json"),
		`{"name":"Main menu","items":[{"label":"Home","url":"/"}]}`)

	return dir
}

// seedUpdateLayer writes an update layer with its own metadata document
// plus any extra files, keyed by path relative to the layer directory
func seedUpdateLayer(t *testing.T, store *ThemeStorageService, themeID, version string, files map[string]string) string {
	t.Helper()

	dir, err := store.ThemeDir(themeID)
	require.NoError(t, err)

	layerDir := filepath.Join(dir, UpdatesDirName, version)
	writeFile(t, filepath.Join(layerDir, MetadataFileName), themeJSON(version))
	for rel, content := range files {
		writeFile(t, filepath.Join(layerDir, filepath.FromSlash(rel)), content)
	}

	return layerDir
}

// buildZip assembles an in-memory zip archive from path -> content pairs
func buildZip(t *testing.T, files map[string]string) []byte {
	t.Helper()

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range files {
		f, err := w.Create(name)
		require.NoError(t, err)
		_, err = f.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	return buf.Bytes()
}

// completePackage returns the file set of a structurally valid upload for
// the given theme id and base version
func completePackage(themeID, version string) map[string]string {
	files := map[string]string{
		MetadataFileName:   themeJSON(version),
		ScreenshotFileName: "png-bytes",
		LayoutFileName:     "{{ content }}",
		AssetsDirName + "/css/main.css":      "body {}",
		TemplatesDirName + "/home.liquid":    "<h1>Home</h1>",
		WidgetsDirName + "/hero/hero.liquid": "<div>hero</div>",
		MenusDirName + "/main.json":          `{"name":"Main menu","items":[]}`,
	}

	pkg := make(map[string]string, len(files))
	for rel, content := range files {
		pkg[themeID+"/"+rel] = content
	}
	return pkg
}

// fakeProjectRepo is an in-memory repository.ProjectRepo for service tests
type fakeProjectRepo struct {
	projects map[string]*models.Project
}

func newFakeProjectRepo() *fakeProjectRepo {
	return &fakeProjectRepo{projects: make(map[string]*models.Project)}
}

func (r *fakeProjectRepo) GetByID(_ context.Context, id string) (*models.Project, error) {
	project, ok := r.projects[id]
	if !ok {
		return nil, models.ErrProjectNotFound
	}
	clone := *project
	return &clone, nil
}

func (r *fakeProjectRepo) GetAll(_ context.Context) ([]*models.Project, error) {
	var out []*models.Project
	for _, project := range r.projects {
		clone := *project
		out = append(out, &clone)
	}
	return out, nil
}

func (r *fakeProjectRepo) GetByTheme(_ context.Context, themeID string) ([]*models.Project, error) {
	var out []*models.Project
	for _, project := range r.projects {
		if project.Theme == themeID {
			clone := *project
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (r *fakeProjectRepo) Create(_ context.Context, project *models.Project) error {
	if err := project.Validate(); err != nil {
		return err
	}
	clone := *project
	r.projects[project.ID] = &clone
	return nil
}

func (r *fakeProjectRepo) Update(_ context.Context, project *models.Project) error {
	if _, ok := r.projects[project.ID]; !ok {
		return models.ErrProjectNotFound
	}
	clone := *project
	r.projects[project.ID] = &clone
	return nil
}

func (r *fakeProjectRepo) Delete(_ context.Context, id string) error {
	if _, ok := r.projects[id]; !ok {
		return models.ErrProjectNotFound
	}
	delete(r.projects, id)
	return nil
}

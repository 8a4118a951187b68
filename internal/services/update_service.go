package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/jsonc"

	"github.com/loomsite/server/internal/models"
	"github.com/loomsite/server/internal/observability"
	"github.com/loomsite/server/internal/repository"
)

// themeOwnedPaths are always replaced wholesale on update. They belong to
// the theme, never to the user.
var themeOwnedPaths = []string{
	LayoutFileName,
	ScreenshotFileName,
	AssetsDirName,
	WidgetsDirName,
	TemplatesDirName + "/" + SnippetsDirName,
}

// ThemeUpdateService applies a newer theme version to a project: replaces
// theme-owned paths, additively imports menus and page templates, merges
// settings, and records the new version on the project binding
type ThemeUpdateService struct {
	store        *ThemeStorageService
	settings     *SettingsMergeService
	projects     repository.ProjectRepo
	templates    TemplateSource
	assets       *AssetCache
	metrics      *observability.EngineMetrics
	projectsBase string
}

// NewThemeUpdateService creates a new ThemeUpdateService. assets may be nil
// when no render cache is attached.
func NewThemeUpdateService(
	store *ThemeStorageService,
	settings *SettingsMergeService,
	projects repository.ProjectRepo,
	templates TemplateSource,
	assets *AssetCache,
	metrics *observability.EngineMetrics,
	projectsBase string,
) (*ThemeUpdateService, error) {
	absBase, err := filepath.Abs(projectsBase)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(absBase, 0755); err != nil {
		return nil, err
	}

	return &ThemeUpdateService{
		store:        store,
		settings:     settings,
		projects:     projects,
		templates:    templates,
		assets:       assets,
		metrics:      metrics,
		projectsBase: absBase,
	}, nil
}

// ProjectDir returns the working directory of a project
func (s *ThemeUpdateService) ProjectDir(project *models.Project) string {
	return filepath.Join(s.projectsBase, project.Folder)
}

// CheckForUpdate compares a project's recorded theme version against the
// theme's current source version
func (s *ThemeUpdateService) CheckForUpdate(ctx context.Context, projectID string) (*models.UpdateCheckResult, error) {
	ctx, span := observability.StartServiceSpan(ctx, "ThemeUpdateService", "CheckForUpdate")
	defer span.End()
	span.SetAttributes(observability.ProjectID(projectID))

	project, err := s.projects.GetByID(ctx, projectID)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}

	sourceVersion, err := s.store.SourceVersion(project.Theme)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}

	result := &models.UpdateCheckResult{
		ProjectID:       project.ID,
		Theme:           project.Theme,
		CurrentVersion:  project.ThemeVersion,
		UpdateAvailable: models.IsNewerVersion(sourceVersion, project.ThemeVersion),
	}
	if result.UpdateAvailable {
		result.AvailableVersion = sourceVersion
	}

	observability.SetSuccess(span)
	return result, nil
}

// ApplyUpdate applies the theme's current source version to one project.
// When the project is already current it is a no-op reported through
// models.ErrNoUpdateAvailable. Steps after the version check are
// best-effort: a failing step is recorded as a warning and the remaining
// steps still run; nothing is rolled back. The binding metadata is written
// last so the recorded version never gets ahead of the files on disk.
func (s *ThemeUpdateService) ApplyUpdate(ctx context.Context, projectID string) (*models.ThemeUpdateResult, error) {
	ctx, span := observability.StartServiceSpan(ctx, "ThemeUpdateService", "ApplyUpdate")
	defer span.End()
	span.SetAttributes(observability.ProjectID(projectID))

	result, err := s.applyUpdate(ctx, projectID)
	s.metrics.RecordUpdateApply(ctx, err)

	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}

	observability.SetSuccess(span)
	return result, nil
}

func (s *ThemeUpdateService) applyUpdate(ctx context.Context, projectID string) (*models.ThemeUpdateResult, error) {
	project, err := s.projects.GetByID(ctx, projectID)
	if err != nil {
		return nil, err
	}

	if !project.ReceiveThemeUpdates {
		return nil, fmt.Errorf("%w: project %q", models.ErrUpdatesDisabled, project.ID)
	}

	sourceVersion, err := s.store.SourceVersion(project.Theme)
	if err != nil {
		return nil, err
	}

	if !models.IsNewerVersion(sourceVersion, project.ThemeVersion) {
		return nil, fmt.Errorf("%w: project %q already has theme %q at version %s",
			models.ErrNoUpdateAvailable, project.ID, project.Theme, project.ThemeVersion)
	}

	srcDir, err := s.store.SourceDir(project.Theme)
	if err != nil {
		return nil, err
	}

	logger := observability.WithContext(ctx).WithFields(map[string]interface{}{
		"project": project.ID,
		"theme":   project.Theme,
		"from":    project.ThemeVersion,
		"to":      sourceVersion,
	})
	logger.Info("Applying theme update")

	result := &models.ThemeUpdateResult{
		ProjectID:   project.ID,
		Theme:       project.Theme,
		FromVersion: project.ThemeVersion,
		ToVersion:   sourceVersion,
	}
	projectDir := s.ProjectDir(project)

	s.replaceThemeOwnedPaths(srcDir, projectDir, result, logger)
	s.importMenus(srcDir, projectDir, result, logger)
	s.importPages(srcDir, projectDir, result, logger)
	s.mergeSettings(srcDir, projectDir, result, logger)

	if s.assets != nil {
		s.assets.InvalidateProject(project.ID)
	}

	// Binding metadata last: the recorded version must never claim a state
	// the earlier steps did not reach
	now := time.Now()
	project.ThemeVersion = sourceVersion
	project.LastThemeUpdateAt = &now
	project.LastThemeUpdateVersion = sourceVersion
	if err := s.projects.Update(ctx, project); err != nil {
		return nil, fmt.Errorf("update project binding: %w", err)
	}

	result.Applied = true
	result.AppliedAt = now
	return result, nil
}

// ApplyUpdateForTheme applies the current theme version to every opted-in
// project bound to the theme. Projects that are already current are
// skipped; per-project failures do not stop the walk.
func (s *ThemeUpdateService) ApplyUpdateForTheme(ctx context.Context, themeID string) ([]*models.ThemeUpdateResult, error) {
	projects, err := s.projects.GetByTheme(ctx, themeID)
	if err != nil {
		return nil, err
	}

	var results []*models.ThemeUpdateResult
	for _, project := range projects {
		result, err := s.ApplyUpdate(ctx, project.ID)
		if err != nil {
			if errorsIsAny(err, models.ErrNoUpdateAvailable, models.ErrUpdatesDisabled) {
				continue
			}
			observability.WithContext(ctx).WithField("project", project.ID).
				Errorf("Theme update failed: %v", err)
			continue
		}
		results = append(results, result)
	}

	return results, nil
}

// replaceThemeOwnedPaths copies the fixed allow-list of theme-controlled
// paths from the theme source into the project, replacing what was there
func (s *ThemeUpdateService) replaceThemeOwnedPaths(srcDir, projectDir string, result *models.ThemeUpdateResult, logger *observability.Logger) {
	for _, rel := range themeOwnedPaths {
		src := filepath.Join(srcDir, filepath.FromSlash(rel))
		dst := filepath.Join(projectDir, filepath.FromSlash(rel))

		info, err := os.Stat(src)
		if err != nil {
			if !os.IsNotExist(err) {
				s.warnf(result, logger, "replace %s: %v", rel, err)
			}
			continue
		}

		if info.IsDir() {
			if err := os.RemoveAll(dst); err != nil {
				s.warnf(result, logger, "replace %s: %v", rel, err)
				continue
			}
			if err := os.MkdirAll(dst, 0755); err != nil {
				s.warnf(result, logger, "replace %s: %v", rel, err)
				continue
			}
			if err := copyDir(src, dst); err != nil {
				s.warnf(result, logger, "replace %s: %v", rel, err)
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
			s.warnf(result, logger, "replace %s: %v", rel, err)
			continue
		}
		if err := copyFile(src, dst); err != nil {
			s.warnf(result, logger, "replace %s: %v", rel, err)
		}
	}
}

// importMenus adds theme menus the project does not have yet. An existing
// project menu of the same name is never overwritten. Imported menus get a
// fresh identity and timestamps.
func (s *ThemeUpdateService) importMenus(srcDir, projectDir string, result *models.ThemeUpdateResult, logger *observability.Logger) {
	themeMenus := filepath.Join(srcDir, MenusDirName)
	entries, err := os.ReadDir(themeMenus)
	if err != nil {
		if !os.IsNotExist(err) {
			s.warnf(result, logger, "read theme menus: %v", err)
		}
		return
	}

	projectMenus := filepath.Join(projectDir, MenusDirName)
	if err := os.MkdirAll(projectMenus, 0755); err != nil {
		s.warnf(result, logger, "create project menus directory: %v", err)
		return
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		dst := filepath.Join(projectMenus, entry.Name())
		if _, err := os.Stat(dst); err == nil {
			continue
		}

		data, err := os.ReadFile(filepath.Join(themeMenus, entry.Name()))
		if err != nil {
			s.warnf(result, logger, "import menu %s: %v", entry.Name(), err)
			continue
		}

		var menu models.Menu
		if err := json.Unmarshal(jsonc.ToJSON(data), &menu); err != nil {
			s.warnf(result, logger, "import menu %s: %v", entry.Name(), err)
			continue
		}

		now := time.Now()
		menu.ID = uuid.NewString()
		menu.CreatedAt = now
		menu.UpdatedAt = now

		out, err := json.MarshalIndent(&menu, "", "  ")
		if err != nil {
			s.warnf(result, logger, "import menu %s: %v", entry.Name(), err)
			continue
		}
		if err := os.WriteFile(dst, out, 0644); err != nil {
			s.warnf(result, logger, "import menu %s: %v", entry.Name(), err)
			continue
		}

		result.ImportedMenus = append(result.ImportedMenus, entry.Name())
	}
}

// importPages creates project pages for templates the project does not use
// yet. Existing pages and their slots are left untouched.
func (s *ThemeUpdateService) importPages(srcDir, projectDir string, result *models.ThemeUpdateResult, logger *observability.Logger) {
	templatesDir := filepath.Join(srcDir, TemplatesDirName)
	templates, err := s.templates.ProcessTemplatesRecursive(templatesDir)
	if err != nil {
		if !os.IsNotExist(err) {
			s.warnf(result, logger, "read theme templates: %v", err)
		}
		return
	}

	pagesDir := filepath.Join(projectDir, PagesDirName)
	if err := os.MkdirAll(pagesDir, 0755); err != nil {
		s.warnf(result, logger, "create project pages directory: %v", err)
		return
	}

	for _, tpl := range templates {
		pagePath := filepath.Join(pagesDir, tpl.Name+".json")
		if _, err := os.Stat(pagePath); err == nil {
			continue
		}

		// The project keeps its own copy of the template file; only add
		// it when no file occupies that slot
		projectTemplate := filepath.Join(projectDir, TemplatesDirName, filepath.FromSlash(tpl.RelativePath))
		if _, err := os.Stat(projectTemplate); os.IsNotExist(err) {
			if err := os.MkdirAll(filepath.Dir(projectTemplate), 0755); err != nil {
				s.warnf(result, logger, "import template %s: %v", tpl.RelativePath, err)
				continue
			}
			if err := copyFile(filepath.Join(templatesDir, filepath.FromSlash(tpl.RelativePath)), projectTemplate); err != nil {
				s.warnf(result, logger, "import template %s: %v", tpl.RelativePath, err)
				continue
			}
		}

		now := time.Now()
		page := models.Page{
			ID:        uuid.NewString(),
			Title:     pageTitle(tpl.Name),
			Slug:      tpl.Name,
			Template:  tpl.RelativePath,
			CreatedAt: now,
			UpdatedAt: now,
		}

		out, err := json.MarshalIndent(&page, "", "  ")
		if err != nil {
			s.warnf(result, logger, "import page %s: %v", tpl.Name, err)
			continue
		}
		if err := os.WriteFile(pagePath, out, 0644); err != nil {
			s.warnf(result, logger, "import page %s: %v", tpl.Name, err)
			continue
		}

		result.ImportedPages = append(result.ImportedPages, tpl.Name)
	}
}

// mergeSettings reconciles the project's customized theme.json against the
// new theme's document and persists the merged result
func (s *ThemeUpdateService) mergeSettings(srcDir, projectDir string, result *models.ThemeUpdateResult, logger *observability.Logger) {
	newDoc, err := readSettingsDocument(filepath.Join(srcDir, MetadataFileName))
	if err != nil {
		s.warnf(result, logger, "read theme settings: %v", err)
		return
	}

	projectMetaPath := filepath.Join(projectDir, MetadataFileName)
	oldDoc, err := readSettingsDocument(projectMetaPath)
	if err != nil && !os.IsNotExist(err) {
		s.warnf(result, logger, "read project settings: %v", err)
		return
	}

	// The new document is authoritative; only the settings subtree carries
	// user values over
	merged := models.CloneDocument(newDoc)
	if oldDoc != nil {
		oldSettings, _ := oldDoc["settings"].(map[string]interface{})
		newSettings, _ := newDoc["settings"].(map[string]interface{})
		if newSettings != nil {
			merged["settings"] = s.settings.MergeThemeSettings(oldSettings, newSettings)
		}
	}

	out, err := json.MarshalIndent(merged, "", "  ")
	if err != nil {
		s.warnf(result, logger, "write project settings: %v", err)
		return
	}
	if err := os.WriteFile(projectMetaPath, out, 0644); err != nil {
		s.warnf(result, logger, "write project settings: %v", err)
	}
}

func (s *ThemeUpdateService) warnf(result *models.ThemeUpdateResult, logger *observability.Logger, format string, args ...interface{}) {
	warning := fmt.Sprintf(format, args...)
	result.Warnings = append(result.Warnings, warning)
	logger.Warn(warning)
}

// readSettingsDocument reads a theme.json as a generic document so the
// author-defined settings tree survives untouched
func readSettingsDocument(path string) (models.SettingsDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var doc map[string]interface{}
	if err := json.Unmarshal(jsonc.ToJSON(data), &doc); err != nil {
		return nil, fmt.Errorf("malformed settings document %s: %w", filepath.Base(path), err)
	}
	return doc, nil
}

// pageTitle turns a template name like "about-us" into "About us"
func pageTitle(name string) string {
	cleaned := strings.ReplaceAll(strings.ReplaceAll(name, "-", " "), "_", " ")
	if cleaned == "" {
		return name
	}
	return strings.ToUpper(cleaned[:1]) + cleaned[1:]
}

func errorsIsAny(err error, targets ...error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

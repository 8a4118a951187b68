package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/loomsite/server/internal/models"
	"github.com/loomsite/server/internal/observability"
	"github.com/loomsite/server/internal/repository"
)

var folderSanitizer = regexp.MustCompile(`[^a-z0-9-]+`)

// ProjectService instantiates projects from themes and manages their
// working folders
type ProjectService struct {
	store        *ThemeStorageService
	projects     repository.ProjectRepo
	projectsBase string
}

// NewProjectService creates a new ProjectService
func NewProjectService(store *ThemeStorageService, projects repository.ProjectRepo, projectsBase string) (*ProjectService, error) {
	absBase, err := filepath.Abs(projectsBase)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(absBase, 0755); err != nil {
		return nil, err
	}

	return &ProjectService{store: store, projects: projects, projectsBase: absBase}, nil
}

// CreateProjectFromTheme copies a theme's source files (minus the store's
// internal directories) into a fresh project folder and creates the
// project-theme binding. This is the moment the binding lifecycle starts.
func (s *ProjectService) CreateProjectFromTheme(ctx context.Context, name, themeID string) (*models.Project, error) {
	ctx, span := observability.StartServiceSpan(ctx, "ProjectService", "CreateProjectFromTheme")
	defer span.End()
	span.SetAttributes(observability.ThemeID(themeID))

	if strings.TrimSpace(name) == "" {
		observability.RecordError(span, models.ErrInvalidProjectName)
		return nil, models.ErrInvalidProjectName
	}
	if !s.store.ThemeExists(themeID) {
		err := fmt.Errorf("%w: %q", models.ErrThemeNotFound, themeID)
		observability.RecordError(span, err)
		return nil, err
	}

	sourceVersion, err := s.store.SourceVersion(themeID)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}

	folder, err := s.uniqueFolder(name)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}

	if err := s.store.CopyToProject(themeID, filepath.Join(s.projectsBase, folder)); err != nil {
		observability.RecordError(span, err)
		return nil, fmt.Errorf("copy theme into project folder: %w", err)
	}

	now := time.Now()
	project := &models.Project{
		ID:                  uuid.NewString(),
		Name:                name,
		Folder:              folder,
		Theme:               themeID,
		ThemeVersion:        sourceVersion,
		ReceiveThemeUpdates: true,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	if err := s.projects.Create(ctx, project); err != nil {
		observability.RecordError(span, err)
		return nil, err
	}

	observability.WithContext(ctx).WithFields(map[string]interface{}{
		"project": project.ID,
		"theme":   themeID,
		"version": sourceVersion,
	}).Info("Project created from theme")

	observability.SetSuccess(span)
	return project, nil
}

// SetReceiveUpdates toggles a project's theme-update opt-out flag
func (s *ProjectService) SetReceiveUpdates(ctx context.Context, projectID string, receive bool) error {
	project, err := s.projects.GetByID(ctx, projectID)
	if err != nil {
		return err
	}

	project.ReceiveThemeUpdates = receive
	return s.projects.Update(ctx, project)
}

// uniqueFolder derives a folder name from the project name, suffixing a
// counter on collision
func (s *ProjectService) uniqueFolder(name string) (string, error) {
	slug := folderSanitizer.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "-")
	slug = strings.Trim(slug, "-")
	if slug == "" {
		slug = "project"
	}

	candidate := slug
	for counter := 1; ; counter++ {
		if _, err := os.Stat(filepath.Join(s.projectsBase, candidate)); os.IsNotExist(err) {
			return candidate, nil
		}
		if counter > 9999 {
			return "", fmt.Errorf("could not find a free folder name for %q", name)
		}
		candidate = fmt.Sprintf("%s-%d", slug, counter)
	}
}

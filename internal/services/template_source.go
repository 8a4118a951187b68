package services

import (
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/loomsite/server/internal/models"
)

// TemplateSource reads page templates out of a theme's template tree. The
// render pipeline provides its own implementation; the filesystem one below
// is the default.
type TemplateSource interface {
	ProcessTemplatesRecursive(dir string) ([]models.PageTemplate, error)
}

// FileTemplateSource walks a template directory on disk
type FileTemplateSource struct{}

// NewFileTemplateSource creates the default filesystem template source
func NewFileTemplateSource() *FileTemplateSource {
	return &FileTemplateSource{}
}

// ProcessTemplatesRecursive returns every page template under dir. The
// snippets/ subtree holds reusable fragments, not pages, and is skipped.
func (s *FileTemplateSource) ProcessTemplatesRecursive(dir string) ([]models.PageTemplate, error) {
	var templates []models.PageTemplate

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == SnippetsDirName && filepath.Dir(path) == dir {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(d.Name(), ".liquid") {
			return nil
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}

		templates = append(templates, models.PageTemplate{
			Name:         strings.TrimSuffix(d.Name(), ".liquid"),
			RelativePath: filepath.ToSlash(rel),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	return templates, nil
}

package services

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"

	"github.com/loomsite/server/internal/models"
)

// Theme package layout conventions
const (
	MetadataFileName   = "theme.json"
	ScreenshotFileName = "screenshot.png"
	LayoutFileName     = "layout.liquid"
	UpdatesDirName     = "updates"
	SnapshotDirName    = "latest"
	AssetsDirName      = "assets"
	TemplatesDirName   = "templates"
	WidgetsDirName     = "widgets"
	MenusDirName       = "menus"
	SnippetsDirName    = "snippets"
	DeletedDirName     = "deleted"
	PagesDirName       = "pages"
)

// ThemeVersionStore is the versioned theme store consumed by the snapshot
// builder and the update applier. The filesystem implementation below is the
// only backend today; the interface keeps the composition logic independent
// of where the layers actually live.
type ThemeVersionStore interface {
	ThemeExists(themeID string) bool
	GetVersions(themeID string) ([]string, error)
	SourceDir(themeID string) (string, error)
	SourceVersion(themeID string) (string, error)
	HasPendingUpdates(themeID string) (bool, error)
	CopyToProject(themeID, projectDir string) error
}

// ThemeStorageService manages the on-disk theme store:
//
//	themes/<themeId>/                  base theme
//	themes/<themeId>/updates/<semver>/ one layer per incremental version
//	themes/<themeId>/latest/           derived snapshot (cache, rebuilt wholesale)
type ThemeStorageService struct {
	basePath string
}

// NewThemeStorageService creates a theme store rooted at basePath
func NewThemeStorageService(basePath string) (*ThemeStorageService, error) {
	if strings.TrimSpace(basePath) == "" {
		return nil, fmt.Errorf("theme storage base path cannot be empty")
	}

	absPath, err := filepath.Abs(basePath)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(absPath, 0755); err != nil {
		return nil, err
	}

	return &ThemeStorageService{basePath: absPath}, nil
}

// BasePath returns the absolute root of the theme store
func (s *ThemeStorageService) BasePath() string {
	return s.basePath
}

// ThemeDir returns the absolute base directory for a theme id
func (s *ThemeStorageService) ThemeDir(themeID string) (string, error) {
	if strings.TrimSpace(themeID) == "" {
		return "", models.ErrInvalidThemeID
	}

	// Theme ids become directory names; reject anything path-shaped
	if themeID != filepath.Base(themeID) || themeID == "." || themeID == ".." {
		return "", fmt.Errorf("%w: %q", models.ErrInvalidThemeID, themeID)
	}

	dir := filepath.Join(s.basePath, themeID)
	if !strings.HasPrefix(dir, s.basePath) {
		return "", fmt.Errorf("%w: %q", models.ErrInvalidThemeID, themeID)
	}

	return dir, nil
}

// UpdatesDir returns the updates/ directory for a theme id
func (s *ThemeStorageService) UpdatesDir(themeID string) (string, error) {
	dir, err := s.ThemeDir(themeID)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, UpdatesDirName), nil
}

// SnapshotDir returns the latest/ directory for a theme id
func (s *ThemeStorageService) SnapshotDir(themeID string) (string, error) {
	dir, err := s.ThemeDir(themeID)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, SnapshotDirName), nil
}

// ThemeExists reports whether a base directory exists for the theme id
func (s *ThemeStorageService) ThemeExists(themeID string) bool {
	dir, err := s.ThemeDir(themeID)
	if err != nil {
		return false
	}
	info, err := os.Stat(dir)
	return err == nil && info.IsDir()
}

// GetVersions enumerates every version of a theme: the base version (when
// its metadata is present and valid) plus every valid version-named
// subdirectory under updates/, deduplicated and sorted ascending. The
// latest/ snapshot is never consulted; it is a cache, not a source of truth.
func (s *ThemeStorageService) GetVersions(themeID string) ([]string, error) {
	dir, err := s.ThemeDir(themeID)
	if err != nil {
		return nil, err
	}
	if !s.ThemeExists(themeID) {
		return nil, fmt.Errorf("%w: %q", models.ErrThemeNotFound, themeID)
	}

	seen := make(map[string]bool)
	versions := []string{}

	if meta, err := ReadThemeMetadata(filepath.Join(dir, MetadataFileName)); err == nil {
		if models.IsValidVersion(meta.Version) {
			seen[meta.Version] = true
			versions = append(versions, meta.Version)
		}
	}

	entries, err := os.ReadDir(filepath.Join(dir, UpdatesDirName))
	if err != nil {
		if os.IsNotExist(err) {
			models.SortVersions(versions)
			return versions, nil
		}
		return nil, err
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !models.IsValidVersion(name) || seen[name] {
			continue
		}
		seen[name] = true
		versions = append(versions, name)
	}

	models.SortVersions(versions)
	return versions, nil
}

// SourceDir resolves the directory a theme should be read from: latest/ if
// it exists, else the base directory. Callers never need to know whether
// updates have been applied.
func (s *ThemeStorageService) SourceDir(themeID string) (string, error) {
	dir, err := s.ThemeDir(themeID)
	if err != nil {
		return "", err
	}
	if !s.ThemeExists(themeID) {
		return "", fmt.Errorf("%w: %q", models.ErrThemeNotFound, themeID)
	}

	snapshot := filepath.Join(dir, SnapshotDirName)
	if info, err := os.Stat(snapshot); err == nil && info.IsDir() {
		return snapshot, nil
	}

	return dir, nil
}

// SourceVersion returns the version declared by the source directory's
// metadata document
func (s *ThemeStorageService) SourceVersion(themeID string) (string, error) {
	dir, err := s.SourceDir(themeID)
	if err != nil {
		return "", err
	}

	meta, err := ReadThemeMetadata(filepath.Join(dir, MetadataFileName))
	if err != nil {
		return "", fmt.Errorf("read source metadata for theme %q: %w", themeID, err)
	}

	return meta.Version, nil
}

// LatestVersion returns the highest known version of a theme
func (s *ThemeStorageService) LatestVersion(themeID string) (string, error) {
	versions, err := s.GetVersions(themeID)
	if err != nil {
		return "", err
	}
	return models.LatestVersion(versions), nil
}

// HasPendingUpdates reports whether any stored version is newer than the
// version the source directory declares
func (s *ThemeStorageService) HasPendingUpdates(themeID string) (bool, error) {
	latest, err := s.LatestVersion(themeID)
	if err != nil {
		return false, err
	}
	if latest == "" {
		return false, nil
	}

	current, err := s.SourceVersion(themeID)
	if err != nil {
		return false, err
	}

	return models.IsNewerVersion(latest, current), nil
}

// Info returns a summary of a stored theme
func (s *ThemeStorageService) Info(themeID string) (*models.ThemeInfo, error) {
	dir, err := s.ThemeDir(themeID)
	if err != nil {
		return nil, err
	}
	versions, err := s.GetVersions(themeID)
	if err != nil {
		return nil, err
	}

	baseVersion := ""
	if meta, err := ReadThemeMetadata(filepath.Join(dir, MetadataFileName)); err == nil {
		baseVersion = meta.Version
	}

	sourceVersion, err := s.SourceVersion(themeID)
	if err != nil {
		return nil, err
	}

	snapshot, _ := s.SnapshotDir(themeID)
	_, snapErr := os.Stat(snapshot)

	return &models.ThemeInfo{
		ID:            themeID,
		BaseVersion:   baseVersion,
		Versions:      versions,
		SourceVersion: sourceVersion,
		HasSnapshot:   snapErr == nil,
	}, nil
}

// CopyToProject copies the theme's source directory into a project folder.
// The updates/ and latest/ directories are internal to the store and are
// excluded unconditionally.
func (s *ThemeStorageService) CopyToProject(themeID, projectDir string) error {
	src, err := s.SourceDir(themeID)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(projectDir, 0755); err != nil {
		return err
	}

	return copyDirFiltered(src, projectDir, internalStoreDirs())
}

// internalStoreDirs lists top-level directory names that must never leave
// the store
func internalStoreDirs() map[string]bool {
	return map[string]bool{
		UpdatesDirName:  true,
		SnapshotDirName: true,
	}
}

// ReadThemeMetadata reads and validates a theme.json document. Packages are
// hand-authored, so comments and trailing commas are tolerated.
func ReadThemeMetadata(path string) (*models.ThemeMetadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseThemeMetadata(data)
}

// ParseThemeMetadata parses theme.json bytes and validates the result
func ParseThemeMetadata(data []byte) (*models.ThemeMetadata, error) {
	var meta models.ThemeMetadata
	if err := json.Unmarshal(jsonc.ToJSON(data), &meta); err != nil {
		return nil, fmt.Errorf("malformed theme.json: %w", err)
	}
	if err := meta.Validate(); err != nil {
		return nil, err
	}
	return &meta, nil
}

// copyDirFiltered recursively copies src into dst, skipping the named
// top-level entries. Existing destination files are overwritten.
func copyDirFiltered(src, dst string, excludeTopLevel map[string]bool) error {
	entries, err := os.ReadDir(src)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if excludeTopLevel[entry.Name()] {
			continue
		}

		srcPath := filepath.Join(src, entry.Name())
		dstPath := filepath.Join(dst, entry.Name())

		if entry.IsDir() {
			if err := os.MkdirAll(dstPath, 0755); err != nil {
				return err
			}
			if err := copyDirFiltered(srcPath, dstPath, nil); err != nil {
				return err
			}
			continue
		}

		if err := copyFile(srcPath, dstPath); err != nil {
			return err
		}
	}

	return nil
}

// copyDir recursively copies src into dst with overwrite semantics
func copyDir(src, dst string) error {
	return copyDirFiltered(src, dst, nil)
}

// copyFile copies a file from src to dst
func copyFile(src, dst string) error {
	sourceFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer sourceFile.Close()

	destFile, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer destFile.Close()

	_, err = io.Copy(destFile, sourceFile)
	return err
}

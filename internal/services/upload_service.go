package services

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"

	"github.com/loomsite/server/internal/models"
	"github.com/loomsite/server/internal/observability"
)

// ThemeUploadService validates uploaded theme packages, classifies them as
// new-theme installs or incremental updates, and persists them into the
// theme store
type ThemeUploadService struct {
	store           *ThemeStorageService
	snapshots       *SnapshotService
	previews        *PreviewService
	checksums       *ChecksumService
	metrics         *observability.EngineMetrics
	maxPackageBytes int64
}

// NewThemeUploadService creates a new ThemeUploadService. previews may be
// nil when thumbnail generation is not wanted.
func NewThemeUploadService(
	store *ThemeStorageService,
	snapshots *SnapshotService,
	previews *PreviewService,
	checksums *ChecksumService,
	metrics *observability.EngineMetrics,
	maxPackageSizeMB int64,
) *ThemeUploadService {
	return &ThemeUploadService{
		store:           store,
		snapshots:       snapshots,
		previews:        previews,
		checksums:       checksums,
		metrics:         metrics,
		maxPackageBytes: maxPackageSizeMB * 1024 * 1024,
	}
}

// packageEntry is one usable file inside the uploaded archive, keyed by its
// path relative to the package root folder
type packageEntry struct {
	relPath string
	file    *zip.File
}

// UploadPackage validates and persists one uploaded theme package (a zip
// archive whose entries share a single root folder named after the theme
// id). Validation and conflict failures leave the store untouched.
func (s *ThemeUploadService) UploadPackage(ctx context.Context, pkg []byte) (*models.ThemeUploadResult, error) {
	ctx, span := observability.StartServiceSpan(ctx, "ThemeUploadService", "UploadPackage")
	defer span.End()

	result, err := s.uploadPackage(ctx, pkg)
	s.metrics.RecordUpload(ctx, err)

	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}

	span.SetAttributes(observability.ThemeID(result.ThemeID))
	observability.SetSuccess(span)
	return result, nil
}

func (s *ThemeUploadService) uploadPackage(ctx context.Context, pkg []byte) (*models.ThemeUploadResult, error) {
	logger := observability.WithContext(ctx)

	if s.maxPackageBytes > 0 && int64(len(pkg)) > s.maxPackageBytes {
		return nil, fmt.Errorf("theme package exceeds the %d MB size limit", s.maxPackageBytes/(1024*1024))
	}

	reader, err := zip.NewReader(bytes.NewReader(pkg), int64(len(pkg)))
	if err != nil {
		return nil, fmt.Errorf("theme package is not a readable zip archive: %w", err)
	}

	themeID, entries, err := collectEntries(reader)
	if err != nil {
		return nil, err
	}

	validation := &models.UploadValidationError{}
	meta := s.validateStructure(entries, validation)
	embedded := s.validateEmbeddedUpdates(entries, validation)
	if validation.HasProblems() {
		return nil, validation
	}

	result := &models.ThemeUploadResult{
		ThemeID:         themeID,
		BaseVersion:     meta.Version,
		PackageChecksum: s.checksums.ComputeChecksumBytes(pkg),
	}

	if !s.store.ThemeExists(themeID) {
		if err := s.installNewTheme(ctx, themeID, entries, embedded, result); err != nil {
			return nil, err
		}
	} else {
		if err := s.installUpdate(ctx, themeID, meta, entries, embedded, result); err != nil {
			return nil, err
		}
	}

	s.generatePreviews(ctx, themeID, result)

	logger.WithFields(map[string]interface{}{
		"theme":    themeID,
		"kind":     result.Kind,
		"versions": result.AddedVersions,
	}).Info("Theme package accepted")

	return result, nil
}

// collectEntries filters ignorable artifacts, enforces the single-root
// rule, and returns the theme id (root folder name) with the usable entries
func collectEntries(reader *zip.Reader) (string, []packageEntry, error) {
	root := ""
	var entries []packageEntry

	for _, file := range reader.File {
		name := path.Clean(strings.ReplaceAll(file.Name, "\\", "/"))
		if name == "." || name == "/" {
			continue
		}
		if strings.HasPrefix(name, "/") || strings.HasPrefix(name, "..") {
			return "", nil, &models.UploadValidationError{
				Problems: []string{fmt.Sprintf("archive entry %q escapes the package root", file.Name)},
			}
		}
		if isJunkEntry(name) {
			continue
		}

		segments := strings.SplitN(name, "/", 2)
		if root == "" {
			root = segments[0]
		} else if segments[0] != root {
			return "", nil, &models.UploadValidationError{
				Problems: []string{fmt.Sprintf(
					"archive entries must share a single root folder: found %q and %q", root, segments[0])},
			}
		}

		if file.FileInfo().IsDir() || len(segments) < 2 || segments[1] == "" {
			continue
		}

		entries = append(entries, packageEntry{relPath: segments[1], file: file})
	}

	if root == "" || len(entries) == 0 {
		return "", nil, &models.UploadValidationError{Problems: []string{"archive is empty"}}
	}

	return root, entries, nil
}

// isJunkEntry reports whether an archive path is platform cruft that must
// be ignored before structural validation
func isJunkEntry(name string) bool {
	for _, segment := range strings.Split(name, "/") {
		if segment == "__MACOSX" || segment == "Thumbs.db" || segment == "desktop.ini" {
			return true
		}
		if strings.HasPrefix(segment, ".") {
			return true
		}
	}
	return false
}

// validateStructure checks the required artifacts directly under the
// package root and parses the base metadata document. Every missing
// requirement is reported by name.
func (s *ThemeUploadService) validateStructure(entries []packageEntry, validation *models.UploadValidationError) *models.ThemeMetadata {
	files := make(map[string]*zip.File, len(entries))
	nonEmptyDirs := make(map[string]bool)
	for _, entry := range entries {
		files[entry.relPath] = entry.file
		if i := strings.IndexByte(entry.relPath, '/'); i > 0 {
			nonEmptyDirs[entry.relPath[:i]] = true
		}
	}

	for _, required := range []string{MetadataFileName, ScreenshotFileName, LayoutFileName} {
		if _, ok := files[required]; !ok {
			validation.Add("package is missing %s", required)
		}
	}
	for _, dir := range []string{AssetsDirName, TemplatesDirName, WidgetsDirName} {
		if !nonEmptyDirs[dir] {
			validation.Add("package is missing a non-empty %s/ directory", dir)
		}
	}

	metaFile, ok := files[MetadataFileName]
	if !ok {
		return &models.ThemeMetadata{}
	}

	meta, err := readArchiveMetadata(metaFile)
	if err != nil {
		validation.Add("%s: %v", MetadataFileName, err)
		return &models.ThemeMetadata{}
	}

	return meta
}

// validateEmbeddedUpdates checks every updates/<version>/ subtree declared
// inside the package and returns the embedded versions found
func (s *ThemeUploadService) validateEmbeddedUpdates(entries []packageEntry, validation *models.UploadValidationError) []string {
	metaByVersion := make(map[string]*zip.File)
	seen := make(map[string]bool)
	var versions []string

	prefix := UpdatesDirName + "/"
	for _, entry := range entries {
		if !strings.HasPrefix(entry.relPath, prefix) {
			continue
		}
		rest := strings.TrimPrefix(entry.relPath, prefix)
		segments := strings.SplitN(rest, "/", 2)
		if len(segments) < 2 {
			continue
		}

		version := segments[0]
		if !seen[version] {
			seen[version] = true
			versions = append(versions, version)
		}
		if segments[1] == MetadataFileName {
			metaByVersion[version] = entry.file
		}
	}

	for _, version := range versions {
		if !models.IsValidVersion(version) {
			validation.Add("updates/%s is not a valid MAJOR.MINOR.PATCH version folder", version)
			continue
		}

		metaFile, ok := metaByVersion[version]
		if !ok {
			validation.Add("updates/%s is missing %s", version, MetadataFileName)
			continue
		}

		meta, err := readArchiveMetadata(metaFile)
		if err != nil {
			validation.Add("updates/%s/%s: %v", version, MetadataFileName, err)
			continue
		}
		if meta.Version != version {
			validation.Add("updates/%s declares version %q in its %s", version, meta.Version, MetadataFileName)
		}
	}

	models.SortVersions(versions)
	return versions
}

// installNewTheme extracts the whole package into a fresh base directory
func (s *ThemeUploadService) installNewTheme(ctx context.Context, themeID string, entries []packageEntry, embedded []string, result *models.ThemeUploadResult) error {
	themeDir, err := s.store.ThemeDir(themeID)
	if err != nil {
		return err
	}

	if err := extractEntries(entries, themeDir, nil); err != nil {
		return fmt.Errorf("extract theme package: %w", err)
	}

	result.Kind = models.UploadKindNewTheme
	result.AddedVersions = embedded

	if len(embedded) > 0 {
		if err := s.snapshots.BuildSnapshot(ctx, themeID); err != nil {
			return err
		}
		result.SnapshotRebuilt = true
	}

	return nil
}

// installUpdate verifies the package against the stored theme and
// materializes only the new version folders under updates/
func (s *ThemeUploadService) installUpdate(ctx context.Context, themeID string, meta *models.ThemeMetadata, entries []packageEntry, embedded []string, result *models.ThemeUploadResult) error {
	themeDir, err := s.store.ThemeDir(themeID)
	if err != nil {
		return err
	}

	storedMeta, err := ReadThemeMetadata(filepath.Join(themeDir, MetadataFileName))
	if err != nil {
		return fmt.Errorf("read stored base metadata for theme %q: %w", themeID, err)
	}

	// A theme's identity cannot silently change through a re-upload
	if meta.Version != storedMeta.Version {
		return fmt.Errorf("%w: package declares %q, store has %q",
			models.ErrBaseVersionMismatch, meta.Version, storedMeta.Version)
	}

	existing, err := s.store.GetVersions(themeID)
	if err != nil {
		return err
	}
	known := make(map[string]bool, len(existing))
	for _, v := range existing {
		known[v] = true
	}

	var added []string
	for _, version := range embedded {
		if known[version] {
			return fmt.Errorf("%w: %q", models.ErrDuplicateVersion, version)
		}
		added = append(added, version)
	}

	if len(added) == 0 {
		return fmt.Errorf("%w: package declares no version newer than %q",
			models.ErrDuplicateVersion, storedMeta.Version)
	}

	newVersions := make(map[string]bool, len(added))
	for _, v := range added {
		newVersions[v] = true
	}

	err = extractEntries(entries, themeDir, func(relPath string) bool {
		rest, ok := strings.CutPrefix(relPath, UpdatesDirName+"/")
		if !ok {
			return false
		}
		version, _, _ := strings.Cut(rest, "/")
		return newVersions[version]
	})
	if err != nil {
		return fmt.Errorf("extract update layers: %w", err)
	}

	if err := s.snapshots.BuildSnapshot(ctx, themeID); err != nil {
		return err
	}

	result.Kind = models.UploadKindUpdate
	result.AddedVersions = added
	result.SnapshotRebuilt = true
	return nil
}

// generatePreviews regenerates the editor preview thumbnails from the
// theme's current screenshot; failures warn and never fail the upload
func (s *ThemeUploadService) generatePreviews(ctx context.Context, themeID string, result *models.ThemeUploadResult) {
	if s.previews == nil {
		return
	}

	srcDir, err := s.store.SourceDir(themeID)
	if err == nil {
		_, err = s.previews.GeneratePreviews(filepath.Join(srcDir, ScreenshotFileName))
	}
	if err != nil {
		warning := fmt.Sprintf("preview thumbnails not generated: %v", err)
		result.Warnings = append(result.Warnings, warning)
		observability.WithContext(ctx).WithField("theme", themeID).Warn(warning)
	}
}

// extractEntries writes archive entries under destDir. accept limits the
// extraction to a subset of relative paths; nil accepts everything.
func extractEntries(entries []packageEntry, destDir string, accept func(relPath string) bool) error {
	for _, entry := range entries {
		if accept != nil && !accept(entry.relPath) {
			continue
		}

		destPath := filepath.Join(destDir, filepath.FromSlash(entry.relPath))
		if !strings.HasPrefix(destPath, destDir+string(os.PathSeparator)) {
			return fmt.Errorf("archive entry %q escapes the destination directory", entry.relPath)
		}

		if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
			return err
		}

		if err := extractFile(entry.file, destPath); err != nil {
			return err
		}
	}

	return nil
}

func extractFile(file *zip.File, destPath string) error {
	src, err := file.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(destPath)
	if err != nil {
		return err
	}
	defer dst.Close()

	if _, err := dst.ReadFrom(src); err != nil {
		os.Remove(destPath)
		return err
	}

	return nil
}

// readArchiveMetadata parses a theme.json entry straight out of the archive
func readArchiveMetadata(file *zip.File) (*models.ThemeMetadata, error) {
	src, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer src.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(src); err != nil {
		return nil, err
	}

	return ParseThemeMetadata(buf.Bytes())
}

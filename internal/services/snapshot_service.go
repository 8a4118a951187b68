package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/loomsite/server/internal/models"
	"github.com/loomsite/server/internal/observability"
)

// stagingPrefix names the temporary directories a snapshot build stages
// into before renaming over latest/
const stagingPrefix = ".latest-build-"

// SnapshotService materializes the latest/ snapshot of a theme: the base
// directory overlaid by every update layer in ascending version order
type SnapshotService struct {
	store   *ThemeStorageService
	metrics *observability.EngineMetrics
}

// NewSnapshotService creates a snapshot builder over a theme store
func NewSnapshotService(store *ThemeStorageService, metrics *observability.EngineMetrics) *SnapshotService {
	return &SnapshotService{store: store, metrics: metrics}
}

// BuildSnapshot rebuilds latest/ for a theme in full. With one version or
// fewer there is nothing to layer, so no snapshot may exist and a stale one
// is removed. Every update layer is validated before any mutation: a layer
// must carry a theme.json whose declared version equals the folder name,
// and all violations are aggregated into a single consistency error that
// leaves the existing snapshot untouched. The build stages into a temporary
// sibling directory and renames it into place, so a failure mid-copy never
// corrupts the previous snapshot.
func (s *SnapshotService) BuildSnapshot(ctx context.Context, themeID string) error {
	ctx, span := observability.StartServiceSpan(ctx, "SnapshotService", "BuildSnapshot")
	defer span.End()
	span.SetAttributes(observability.ThemeID(themeID))

	start := time.Now()
	err := s.buildSnapshot(ctx, themeID)
	s.metrics.RecordSnapshotBuild(ctx, themeID, time.Since(start), err)

	if err != nil {
		observability.RecordError(span, err)
		return err
	}

	observability.SetSuccess(span)
	return nil
}

func (s *SnapshotService) buildSnapshot(ctx context.Context, themeID string) error {
	logger := observability.WithContext(ctx).WithField("theme", themeID)

	themeDir, err := s.store.ThemeDir(themeID)
	if err != nil {
		return err
	}

	versions, err := s.store.GetVersions(themeID)
	if err != nil {
		return err
	}

	snapshotDir := filepath.Join(themeDir, SnapshotDirName)

	// Stale staging dirs from crashed builds are reaped up front
	s.reapStagingDirs(themeDir, logger)

	if len(versions) <= 1 {
		if _, err := os.Stat(snapshotDir); err == nil {
			logger.Info("Removing stale snapshot: theme has no update layers")
			if err := os.RemoveAll(snapshotDir); err != nil {
				return fmt.Errorf("remove stale snapshot: %w", err)
			}
		}
		return nil
	}

	layers, err := s.validateLayers(themeID, themeDir)
	if err != nil {
		return err
	}

	staging, err := os.MkdirTemp(themeDir, stagingPrefix+"*")
	if err != nil {
		return fmt.Errorf("create snapshot staging directory: %w", err)
	}
	defer os.RemoveAll(staging)

	// Base first, minus the store-internal directories and any staging dirs
	excludes := internalStoreDirs()
	excludes[filepath.Base(staging)] = true
	if err := copyDirFiltered(themeDir, staging, excludes); err != nil {
		return fmt.Errorf("copy base theme into snapshot: %w", err)
	}

	// Then every update layer ascending; later versions win on collisions
	for _, version := range layers {
		layerDir := filepath.Join(themeDir, UpdatesDirName, version)
		if err := copyDirFiltered(layerDir, staging, map[string]bool{DeletedDirName: true}); err != nil {
			return fmt.Errorf("apply update layer %s: %w", version, err)
		}
		if err := applyDeletionMarkers(filepath.Join(layerDir, DeletedDirName), staging); err != nil {
			return fmt.Errorf("apply deletion markers of layer %s: %w", version, err)
		}
	}

	if err := os.RemoveAll(snapshotDir); err != nil {
		return fmt.Errorf("remove previous snapshot: %w", err)
	}
	if err := os.Rename(staging, snapshotDir); err != nil {
		return fmt.Errorf("activate snapshot: %w", err)
	}

	logger.WithField("layers", len(layers)).Info("Snapshot rebuilt")
	return nil
}

// validateLayers checks every update layer before anything is mutated and
// returns the layer versions in ascending order
func (s *SnapshotService) validateLayers(themeID, themeDir string) ([]string, error) {
	updatesDir := filepath.Join(themeDir, UpdatesDirName)
	entries, err := os.ReadDir(updatesDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	consistency := &models.SnapshotConsistencyError{ThemeID: themeID}
	layers := []string{}

	for _, entry := range entries {
		if !entry.IsDir() || !models.IsValidVersion(entry.Name()) {
			continue
		}

		version := entry.Name()
		layers = append(layers, version)

		meta, err := ReadThemeMetadata(filepath.Join(updatesDir, version, MetadataFileName))
		if err != nil {
			consistency.MissingMetadata = append(consistency.MissingMetadata, version)
			continue
		}
		if meta.Version != version {
			consistency.Mismatches = append(consistency.Mismatches, models.VersionMismatch{
				Folder:   version,
				Declared: meta.Version,
			})
		}
	}

	if consistency.HasProblems() {
		return nil, consistency
	}

	models.SortVersions(layers)
	return layers, nil
}

// applyDeletionMarkers removes from target every path listed under a
// layer's deleted/ marker directory. A missing marker directory is the
// common case and a no-op.
func applyDeletionMarkers(markerDir, target string) error {
	entries, err := os.ReadDir(markerDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, entry := range entries {
		targetPath := filepath.Join(target, entry.Name())

		if entry.IsDir() {
			children, err := os.ReadDir(filepath.Join(markerDir, entry.Name()))
			if err != nil {
				return err
			}
			if len(children) == 0 {
				// An empty marker directory deletes the whole subtree
				if err := os.RemoveAll(targetPath); err != nil {
					return err
				}
				continue
			}
			if err := applyDeletionMarkers(filepath.Join(markerDir, entry.Name()), targetPath); err != nil {
				return err
			}
			continue
		}

		if err := os.RemoveAll(targetPath); err != nil {
			return err
		}
	}

	return nil
}

func (s *SnapshotService) reapStagingDirs(themeDir string, logger *observability.Logger) {
	entries, err := os.ReadDir(themeDir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		if entry.IsDir() && strings.HasPrefix(entry.Name(), stagingPrefix) {
			logger.WithField("dir", entry.Name()).Warn("Removing abandoned snapshot staging directory")
			os.RemoveAll(filepath.Join(themeDir, entry.Name()))
		}
	}
}

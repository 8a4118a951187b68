package models

import "time"

// UploadKind classifies an accepted theme package
type UploadKind string

const (
	// UploadKindNewTheme is the first upload for a theme id; the package
	// becomes the base directory
	UploadKindNewTheme UploadKind = "new"
	// UploadKindUpdate adds one or more update layers to an existing theme
	UploadKindUpdate UploadKind = "update"
)

// ThemeUploadResult reports an accepted theme package upload
type ThemeUploadResult struct {
	ThemeID         string     `json:"themeId"`
	Kind            UploadKind `json:"kind"`
	BaseVersion     string     `json:"baseVersion"`
	AddedVersions   []string   `json:"addedVersions,omitempty"`
	PackageChecksum string     `json:"packageChecksum"`
	SnapshotRebuilt bool       `json:"snapshotRebuilt"`
	Warnings        []string   `json:"warnings,omitempty"`
}

// UpdateCheckResult reports whether a newer theme version exists for a
// project
type UpdateCheckResult struct {
	ProjectID        string `json:"projectId"`
	Theme            string `json:"theme"`
	CurrentVersion   string `json:"currentVersion"`
	AvailableVersion string `json:"availableVersion,omitempty"`
	UpdateAvailable  bool   `json:"updateAvailable"`
}

// ThemeUpdateResult reports an applied (or skipped) theme update for one
// project. Warnings carry the per-step failures that did not abort the
// update; callers must not infer success of every step from a nil error.
type ThemeUpdateResult struct {
	ProjectID     string    `json:"projectId"`
	Theme         string    `json:"theme"`
	FromVersion   string    `json:"fromVersion"`
	ToVersion     string    `json:"toVersion"`
	Applied       bool      `json:"applied"`
	ImportedMenus []string  `json:"importedMenus,omitempty"`
	ImportedPages []string  `json:"importedPages,omitempty"`
	Warnings      []string  `json:"warnings,omitempty"`
	AppliedAt     time.Time `json:"appliedAt,omitempty"`
}

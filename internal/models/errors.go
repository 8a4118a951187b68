package models

import (
	"fmt"
	"strings"
)

// UploadValidationError carries every structural problem found in an
// uploaded theme package. The package is rejected as a whole; nothing is
// written to the store.
type UploadValidationError struct {
	Problems []string
}

func (e *UploadValidationError) Error() string {
	return fmt.Sprintf("theme package is invalid: %s", strings.Join(e.Problems, "; "))
}

// Add appends a problem description
func (e *UploadValidationError) Add(format string, args ...interface{}) {
	e.Problems = append(e.Problems, fmt.Sprintf(format, args...))
}

// HasProblems reports whether any problem was recorded
func (e *UploadValidationError) HasProblems() bool {
	return len(e.Problems) > 0
}

// VersionMismatch pairs an update layer's folder name with the version its
// metadata document wrongly declares
type VersionMismatch struct {
	Folder   string
	Declared string
}

// SnapshotConsistencyError aggregates every per-layer problem found while
// validating a snapshot build. The build aborts before mutating anything.
type SnapshotConsistencyError struct {
	ThemeID         string
	MissingMetadata []string
	Mismatches      []VersionMismatch
}

func (e *SnapshotConsistencyError) Error() string {
	var parts []string
	if len(e.MissingMetadata) > 0 {
		parts = append(parts, fmt.Sprintf("update layers missing theme.json: %s",
			strings.Join(e.MissingMetadata, ", ")))
	}
	for _, m := range e.Mismatches {
		parts = append(parts, fmt.Sprintf("update layer %q declares version %q",
			m.Folder, m.Declared))
	}
	return fmt.Sprintf("theme %q has inconsistent update layers: %s",
		e.ThemeID, strings.Join(parts, "; "))
}

// HasProblems reports whether any inconsistency was recorded
func (e *SnapshotConsistencyError) HasProblems() bool {
	return len(e.MissingMetadata) > 0 || len(e.Mismatches) > 0
}

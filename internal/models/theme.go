package models

import (
	"fmt"
	"strings"
)

// ThemeMetadata is the metadata document (theme.json) carried by a theme's
// base directory and, independently, by every update layer
type ThemeMetadata struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Version     string `json:"version"`
	Author      string `json:"author"`
}

// Validate checks the required metadata fields and the version grammar
func (m *ThemeMetadata) Validate() error {
	var missing []string
	if strings.TrimSpace(m.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(m.Version) == "" {
		missing = append(missing, "version")
	}
	if strings.TrimSpace(m.Author) == "" {
		missing = append(missing, "author")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMetadataIncomplete, strings.Join(missing, ", "))
	}

	if !IsValidVersion(m.Version) {
		return fmt.Errorf("%w: %q", ErrInvalidVersion, m.Version)
	}

	return nil
}

// ThemeInfo summarizes a stored theme
type ThemeInfo struct {
	ID            string   `json:"id"`
	BaseVersion   string   `json:"baseVersion"`
	Versions      []string `json:"versions"`
	SourceVersion string   `json:"sourceVersion"`
	HasSnapshot   bool     `json:"hasSnapshot"`
}

// Theme sentinel errors
var (
	ErrThemeNotFound       = fmt.Errorf("theme not found")
	ErrInvalidThemeID      = fmt.Errorf("theme ID is required")
	ErrMetadataIncomplete  = fmt.Errorf("theme metadata is missing required fields")
	ErrInvalidVersion      = fmt.Errorf("version is not a valid MAJOR.MINOR.PATCH string")
	ErrDuplicateVersion    = fmt.Errorf("theme version already exists")
	ErrBaseVersionMismatch = fmt.Errorf("uploaded base version does not match the stored base version")
)

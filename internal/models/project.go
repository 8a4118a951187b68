package models

import (
	"fmt"
	"time"
)

// Project holds the metadata binding a project to its theme. The binding is
// created when the project is instantiated from a theme and mutated only by
// the update applier and explicit user toggles.
type Project struct {
	ID                     string     `json:"id"`
	Name                   string     `json:"name"`
	Folder                 string     `json:"folder"`
	Theme                  string     `json:"theme"`
	ThemeVersion           string     `json:"themeVersion"`
	ReceiveThemeUpdates    bool       `json:"receiveThemeUpdates"`
	LastThemeUpdateAt      *time.Time `json:"lastThemeUpdateAt,omitempty"`
	LastThemeUpdateVersion string     `json:"lastThemeUpdateVersion,omitempty"`
	CreatedAt              time.Time  `json:"createdAt"`
	UpdatedAt              time.Time  `json:"updatedAt"`
}

// Validate checks the fields required for persistence
func (p *Project) Validate() error {
	if p.ID == "" {
		return ErrInvalidProjectID
	}
	if p.Name == "" {
		return ErrInvalidProjectName
	}
	if p.Folder == "" {
		return ErrInvalidProjectFolder
	}
	return nil
}

// Menu is a navigation menu stored as a JSON file under the project's
// menus/ directory
type Menu struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Items     []MenuItem `json:"items"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// MenuItem is a single entry in a menu
type MenuItem struct {
	Label    string     `json:"label"`
	URL      string     `json:"url"`
	Children []MenuItem `json:"children,omitempty"`
}

// Page is a project page stored as a JSON file under the project's pages/
// directory, referencing the template it was created from
type Page struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Slug      string    `json:"slug"`
	Template  string    `json:"template"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// PageTemplate describes one template file found in a theme's template tree
type PageTemplate struct {
	Name         string `json:"name"`
	RelativePath string `json:"relativePath"`
}

// Project sentinel errors
var (
	ErrProjectNotFound      = fmt.Errorf("project not found")
	ErrInvalidProjectID     = fmt.Errorf("project ID is required")
	ErrInvalidProjectName   = fmt.Errorf("project name is required")
	ErrInvalidProjectFolder = fmt.Errorf("project folder is required")
	ErrUpdatesDisabled      = fmt.Errorf("project has opted out of theme updates")
	ErrNoUpdateAvailable    = fmt.Errorf("no update available")
)

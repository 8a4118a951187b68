package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/loomsite/server/internal/models"
)

type projectRepository struct {
	db DBTX
}

// NewProjectRepository creates a project repository over an initialized
// database (SQLite or PostgreSQL), plain or traced
func NewProjectRepository(db DBTX) ProjectRepo {
	return &projectRepository{db: db}
}

const projectColumns = `
	id, name, folder, theme, theme_version, receive_theme_updates,
	last_theme_update_at, last_theme_update_version, created_at, updated_at
`

// GetByID retrieves a project by its ID
func (r *projectRepository) GetByID(ctx context.Context, id string) (*models.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE id = $1`

	row := r.db.QueryRowContext(ctx, query, id)
	return r.scanProject(row)
}

// GetAll retrieves all projects ordered by name
func (r *projectRepository) GetAll(ctx context.Context) ([]*models.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects ORDER BY name ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return r.collect(rows)
}

// GetByTheme retrieves every project bound to a theme
func (r *projectRepository) GetByTheme(ctx context.Context, themeID string) ([]*models.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE theme = $1 ORDER BY name ASC`

	rows, err := r.db.QueryContext(ctx, query, themeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return r.collect(rows)
}

// Create creates a new project binding
func (r *projectRepository) Create(ctx context.Context, project *models.Project) error {
	if err := project.Validate(); err != nil {
		return err
	}

	query := `
		INSERT INTO projects (id, name, folder, theme, theme_version, receive_theme_updates,
			last_theme_update_at, last_theme_update_version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.db.ExecContext(ctx, query,
		project.ID,
		project.Name,
		project.Folder,
		project.Theme,
		project.ThemeVersion,
		project.ReceiveThemeUpdates,
		project.LastThemeUpdateAt,
		nullableString(project.LastThemeUpdateVersion),
		project.CreatedAt,
		project.UpdatedAt,
	)

	return err
}

// Update updates an existing project binding
func (r *projectRepository) Update(ctx context.Context, project *models.Project) error {
	if err := project.Validate(); err != nil {
		return err
	}

	query := `
		UPDATE projects
		SET name = $1, folder = $2, theme = $3, theme_version = $4,
			receive_theme_updates = $5, last_theme_update_at = $6,
			last_theme_update_version = $7, updated_at = $8
		WHERE id = $9
	`

	project.UpdatedAt = time.Now()

	result, err := r.db.ExecContext(ctx, query,
		project.Name,
		project.Folder,
		project.Theme,
		project.ThemeVersion,
		project.ReceiveThemeUpdates,
		project.LastThemeUpdateAt,
		nullableString(project.LastThemeUpdateVersion),
		project.UpdatedAt,
		project.ID,
	)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return models.ErrProjectNotFound
	}

	return nil
}

// Delete deletes a project binding by ID
func (r *projectRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return models.ErrProjectNotFound
	}

	return nil
}

func (r *projectRepository) collect(rows *sql.Rows) ([]*models.Project, error) {
	var projects []*models.Project
	for rows.Next() {
		project, err := r.scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, project)
	}
	return projects, rows.Err()
}

// scanProject scans a row into a Project struct
func (r *projectRepository) scanProject(scanner interface {
	Scan(dest ...interface{}) error
}) (*models.Project, error) {
	var project models.Project
	var receiveUpdates interface{} // BOOLEAN on postgres, INTEGER on sqlite
	var lastUpdateAt sql.NullTime
	var lastUpdateVersion sql.NullString

	err := scanner.Scan(
		&project.ID,
		&project.Name,
		&project.Folder,
		&project.Theme,
		&project.ThemeVersion,
		&receiveUpdates,
		&lastUpdateAt,
		&lastUpdateVersion,
		&project.CreatedAt,
		&project.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, models.ErrProjectNotFound
		}
		return nil, err
	}

	switch v := receiveUpdates.(type) {
	case bool:
		project.ReceiveThemeUpdates = v
	case int64:
		project.ReceiveThemeUpdates = v != 0
	}

	if lastUpdateAt.Valid {
		t := lastUpdateAt.Time
		project.LastThemeUpdateAt = &t
	}
	project.LastThemeUpdateVersion = lastUpdateVersion.String

	return &project, nil
}

func nullableString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

package repository

import (
	"context"
	"database/sql"

	"github.com/loomsite/server/internal/models"
)

// DBTX is the query surface shared by *sql.DB and the traced database
// wrapper, so repositories can run over either
type DBTX interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// ProjectRepo defines the interface for project metadata persistence
type ProjectRepo interface {
	GetByID(ctx context.Context, id string) (*models.Project, error)
	GetAll(ctx context.Context) ([]*models.Project, error)
	GetByTheme(ctx context.Context, themeID string) ([]*models.Project, error)
	Create(ctx context.Context, project *models.Project) error
	Update(ctx context.Context, project *models.Project) error
	Delete(ctx context.Context, id string) error
}

package services

import (
	"context"

	"github.com/loomsite/server/internal/models"
)

// RenderContext carries everything the external render engine needs to
// render a project: the resolved theme snapshot path, the project's merged
// settings document, and the asset cache for this render pass
type RenderContext struct {
	ProjectID string
	ThemeDir  string
	Settings  models.SettingsDocument
	Assets    *AssetCache
}

// Renderer is the template-rendering engine. It lives outside this module;
// the engine only hands it a resolved snapshot path and a settings
// document.
type Renderer interface {
	RenderWidget(ctx context.Context, rc RenderContext, widgetName string) (string, error)
	RenderPageLayout(ctx context.Context, rc RenderContext, page *models.Page) (string, error)
}

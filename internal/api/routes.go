// routes.go - Route registration helpers
package api

import (
	"log/slog"

	"github.com/altafino/invoice-analyzer/internal/analysis"
	"github.com/altafino/invoice-analyzer/internal/artifact"
	"github.com/altafino/invoice-analyzer/internal/progress"
	"github.com/altafino/invoice-analyzer/internal/types"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// Dependencies holds all handler dependencies
type Dependencies struct {
	Config   *types.Config
	Logger   *slog.Logger
	Tracker  *progress.Tracker
	Analysis *analysis.Service
	Store    artifact.Store
	Version  string
}

// Handlers holds all handler instances
type Handlers struct {
	Health   HealthHandler
	Search   SearchHandler
	Analysis AnalysisHandler
	Download DownloadHandler
}

// NewHandlers creates all handler instances
func NewHandlers(deps *Dependencies) *Handlers {
	return &Handlers{
		Health:   NewHealthHandler(deps.Version),
		Search:   NewSearchHandler(deps.Config, deps.Logger),
		Analysis: NewAnalysisHandler(deps.Analysis, deps.Tracker, deps.Logger),
		Download: NewDownloadHandler(deps.Store, deps.Logger),
	}
}

// RegisterRoutes registers all API routes with the Echo instance
func RegisterRoutes(e *echo.Echo, handlers *Handlers) {
	e.GET("/health", handlers.Health.HandleHealth)

	emailGroup := e.Group("/api/emails")
	emailGroup.POST("/search", handlers.Search.HandleSearch)

	pdfGroup := e.Group("/api/pdf")
	pdfGroup.POST("/analyze", handlers.Analysis.HandleAnalyze)
	pdfGroup.GET("/progress/:jobID", handlers.Analysis.HandleProgress)
	pdfGroup.GET("/result/:jobID", handlers.Analysis.HandleResult)
	pdfGroup.GET("/download/:sessionID", handlers.Download.HandleDownload)
}

// SetupMiddleware configures common middleware
func SetupMiddleware(e *echo.Echo, cfg *types.Config) {
	e.HTTPErrorHandler = ErrorHandler
	e.HideBanner = true

	e.Use(middleware.Recover())

	if cfg.Server.BodyLimit != "" {
		e.Use(middleware.BodyLimit(cfg.Server.BodyLimit))
	}

	if cfg.Security.CORS.Enabled {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: cfg.Security.CORS.AllowedOrigins,
			AllowMethods: cfg.Security.CORS.AllowedMethods,
		}))
	}
}

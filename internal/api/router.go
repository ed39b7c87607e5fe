package api

import (
	"github.com/gin-gonic/gin"

	"github.com/timmy/musiclip/internal/api/handler"
	"github.com/timmy/musiclip/internal/api/middleware"
	"github.com/timmy/musiclip/internal/logger"
)

// Services bundles what the router serves. Ingest and Runs are optional;
// their admin routes are only mounted when set.
type Services struct {
	Search    handler.Searcher
	Embedding handler.EmbeddingDiagnostics
	Ingest    handler.Ingester
	Runs      handler.RunStore
}

// RouterConfig holds router-level settings.
type RouterConfig struct {
	Mode string
	CORS middleware.CORSConfig
}

// SetupRouter configures the Gin router with all routes. The admin handler is
// returned so callers can wait for a background run on shutdown; it is nil
// when ingestion is not wired.
func SetupRouter(svc Services, cfg RouterConfig, log *logger.Logger) (*gin.Engine, *handler.AdminHandler) {
	// Set Gin mode
	switch cfg.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()

	// Add middleware
	r.Use(gin.Recovery())
	r.Use(middleware.LoggerMiddleware(log))
	r.Use(middleware.CORS(cfg.CORS))

	// Create handlers
	healthHandler := handler.NewHealthHandler(svc.Search, svc.Embedding)
	searchHandler := handler.NewSearchHandler(svc.Search)

	// Health check
	r.GET("/health", healthHandler.Health)
	if svc.Embedding != nil {
		r.GET("/embedding/health", healthHandler.EmbeddingHealth)
		r.GET("/embedding/info", healthHandler.EmbeddingInfo)
	}

	// Queries
	r.GET("/collection/info", searchHandler.CollectionInfo)
	r.POST("/query/text", searchHandler.QueryText)
	r.POST("/query/similar", searchHandler.QuerySimilar)

	if svc.Ingest == nil {
		return r, nil
	}

	adminHandler := handler.NewAdminHandler(svc.Ingest, svc.Runs, log)
	admin := r.Group("/admin")
	{
		admin.POST("/ingest", adminHandler.TriggerIngest)
		admin.GET("/ingest/status", adminHandler.GetIngestStatus)
		if svc.Runs != nil {
			admin.GET("/ingest/runs", adminHandler.ListRuns)
			admin.GET("/ingest/runs/:id", adminHandler.GetRun)
		}
	}

	return r, adminHandler
}

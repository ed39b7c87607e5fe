package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/timmy/musiclip/internal/domain"
	"github.com/timmy/musiclip/internal/logger"
	"github.com/timmy/musiclip/internal/service"
)

// CollectionInspector reports vector collection stats.
type CollectionInspector interface {
	CollectionInfo(ctx context.Context) (*domain.CollectionInfo, error)
}

// EmbeddingDiagnostics exposes the embedding server's diagnostics.
type EmbeddingDiagnostics interface {
	Health(ctx context.Context) (*service.EmbeddingHealth, error)
	Info(ctx context.Context) (*service.EmbeddingInfo, error)
}

// HealthHandler handles health check endpoints
type HealthHandler struct {
	collection CollectionInspector
	embedding  EmbeddingDiagnostics
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(collection CollectionInspector, embedding EmbeddingDiagnostics) *HealthHandler {
	return &HealthHandler{collection: collection, embedding: embedding}
}

// Health returns the health status of the service. The service stays healthy
// when the vector store is down; the flag reports it.
func (h *HealthHandler) Health(c *gin.Context) {
	resp := gin.H{
		"status":                 "healthy",
		"vector_store_connected": false,
		"collection_size":        uint64(0),
	}
	if h.collection != nil {
		info, err := h.collection.CollectionInfo(c.Request.Context())
		if err != nil {
			logger.CtxWarn(c.Request.Context(), "Vector store unavailable: error=%v", err)
		} else {
			resp["vector_store_connected"] = true
			resp["collection_size"] = info.Count
		}
	}
	c.JSON(http.StatusOK, resp)
}

// EmbeddingHealth proxies GET /health on the embedding server.
func (h *HealthHandler) EmbeddingHealth(c *gin.Context) {
	health, err := h.embedding.Health(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, health)
}

// EmbeddingInfo proxies GET /info on the embedding server.
func (h *HealthHandler) EmbeddingInfo(c *gin.Context) {
	info, err := h.embedding.Info(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

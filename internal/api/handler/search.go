package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/timmy/musiclip/internal/domain"
	"github.com/timmy/musiclip/internal/service"
)

// Searcher is the query engine as seen by the HTTP layer.
type Searcher interface {
	QueryByText(ctx context.Context, text string, topK int) ([]domain.QueryResult, error)
	QueryBySimilarity(ctx context.Context, trackID string, topK int) ([]domain.QueryResult, error)
	CollectionInfo(ctx context.Context) (*domain.CollectionInfo, error)
	DefaultTopK() int
}

// SearchHandler handles query endpoints.
type SearchHandler struct {
	searchService Searcher
}

// NewSearchHandler creates a new search handler.
// Parameters:
//   - searchService: query engine.
//
// Returns:
//   - *SearchHandler: initialized handler.
func NewSearchHandler(searchService Searcher) *SearchHandler {
	return &SearchHandler{
		searchService: searchService,
	}
}

// TextQueryRequest is the body of POST /query/text.
type TextQueryRequest struct {
	Query string `json:"query"`
	TopK  *int   `json:"top_k"`
}

// SimilarQueryRequest is the body of POST /query/similar.
type SimilarQueryRequest struct {
	SongID string `json:"song_id"`
	TopK   *int   `json:"top_k"`
}

// QueryResponse wraps ranked results.
type QueryResponse struct {
	Results   []domain.QueryResult `json:"results"`
	QueryType string               `json:"query_type"`
}

func (h *SearchHandler) topK(v *int) int {
	if v == nil {
		return h.searchService.DefaultTopK()
	}
	return *v
}

func respond(c *gin.Context, results []domain.QueryResult, queryType string) {
	if results == nil {
		results = []domain.QueryResult{}
	}
	c.JSON(http.StatusOK, QueryResponse{Results: results, QueryType: queryType})
}

// QueryText handles POST /query/text.
func (h *SearchHandler) QueryText(c *gin.Context) {
	var req TextQueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request: "+err.Error())
		return
	}

	results, err := h.searchService.QueryByText(c.Request.Context(), req.Query, h.topK(req.TopK))
	if err != nil {
		writeError(c, err)
		return
	}
	respond(c, results, service.QueryTypeText)
}

// QuerySimilar handles POST /query/similar.
func (h *SearchHandler) QuerySimilar(c *gin.Context) {
	var req SimilarQueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request: "+err.Error())
		return
	}

	results, err := h.searchService.QueryBySimilarity(c.Request.Context(), req.SongID, h.topK(req.TopK))
	if err != nil {
		writeError(c, err)
		return
	}
	respond(c, results, service.QueryTypeSimilarity)
}

// CollectionInfo handles GET /collection/info.
func (h *SearchHandler) CollectionInfo(c *gin.Context) {
	info, err := h.searchService.CollectionInfo(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

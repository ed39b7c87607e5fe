package handler

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/timmy/musiclip/internal/domain"
	"github.com/timmy/musiclip/internal/logger"
	"github.com/timmy/musiclip/internal/service"
)

// Ingester starts playlist ingestion runs.
type Ingester interface {
	Ingest(ctx context.Context, playlistID string, opts service.IngestOptions) (*domain.IngestionReport, error)
}

// RunStore reads the run ledger.
type RunStore interface {
	ListRuns(ctx context.Context, limit int) ([]domain.IngestRun, error)
	GetRun(ctx context.Context, id string) (*domain.IngestRun, error)
}

const (
	defaultRunsLimit = 20
	maxRunsLimit     = 100
)

// AdminHandler handles admin operations.
type AdminHandler struct {
	ingestService Ingester
	runs          RunStore
	logger        *logger.Logger

	// Ingest job state
	mu              sync.RWMutex
	wg              sync.WaitGroup
	isRunning       bool
	currentPlaylist string
	lastRunTime     time.Time
	lastRunStatus   string
	lastReport      *domain.IngestionReport
}

// NewAdminHandler creates a new admin handler.
// Parameters:
//   - ingestService: ingest service instance.
//   - runs: run ledger, may be nil.
//   - log: logger instance.
//
// Returns:
//   - *AdminHandler: initialized handler.
func NewAdminHandler(ingestService Ingester, runs RunStore, log *logger.Logger) *AdminHandler {
	return &AdminHandler{
		ingestService: ingestService,
		runs:          runs,
		logger:        log,
	}
}

// IngestRequest represents the ingest API request.
type IngestRequest struct {
	PlaylistID   string `json:"playlist_id" binding:"required"`
	Override     bool   `json:"override"`
	SkipExisting *bool  `json:"skip_existing"`
}

// IngestStatusResponse represents the ingest status.
type IngestStatusResponse struct {
	IsRunning     bool                    `json:"is_running"`
	PlaylistID    string                  `json:"playlist_id,omitempty"`
	LastRunTime   string                  `json:"last_run_time,omitempty"`
	LastRunStatus string                  `json:"last_run_status,omitempty"`
	LastReport    *domain.IngestionReport `json:"last_report,omitempty"`
}

// TriggerIngest handles POST /admin/ingest. The run continues in the
// background after the response is sent.
func (h *AdminHandler) TriggerIngest(c *gin.Context) {
	ctx := c.Request.Context()

	var req IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.CtxWarn(ctx, "Invalid ingest request: client_ip=%s, error=%v", c.ClientIP(), err)
		badRequest(c, err.Error())
		return
	}

	opts := service.DefaultIngestOptions()
	if req.SkipExisting != nil {
		opts.SkipExisting = *req.SkipExisting
	}
	opts.OverrideExisting = req.Override

	h.mu.Lock()
	if h.isRunning {
		running := h.currentPlaylist
		h.mu.Unlock()
		logger.CtxWarn(ctx, "Ingest request rejected: already running, playlist=%s, client_ip=%s",
			running, c.ClientIP())
		c.JSON(http.StatusConflict, ErrorBody{Error: ErrorDetail{Kind: "conflict", Message: "Ingest is already running"}})
		return
	}
	h.isRunning = true
	h.currentPlaylist = req.PlaylistID
	h.mu.Unlock()

	logger.CtxInfo(ctx, "Starting ingest process: playlist=%s, override=%v, skip_existing=%v",
		req.PlaylistID, opts.OverrideExisting, opts.SkipExisting)

	// Detach from the request so the run outlives it, keeping the request's log fields.
	runCtx := logger.FromContextOr(ctx, h.logger).WithContext(context.Background())
	h.wg.Add(1)
	go h.runIngest(runCtx, req.PlaylistID, opts)

	c.JSON(http.StatusAccepted, gin.H{
		"message":     "Ingest started",
		"playlist_id": req.PlaylistID,
	})
}

func (h *AdminHandler) runIngest(ctx context.Context, playlistID string, opts service.IngestOptions) {
	defer h.wg.Done()

	startTime := time.Now()
	report, err := h.ingestService.Ingest(ctx, playlistID, opts)
	duration := time.Since(startTime)

	h.mu.Lock()
	h.isRunning = false
	h.currentPlaylist = ""
	h.lastReport = report
	h.lastRunTime = time.Now()
	if err != nil {
		h.lastRunStatus = "failed: " + domain.PublicMessage(err)
	} else {
		h.lastRunStatus = "success"
	}
	h.mu.Unlock()

	if err != nil {
		logger.With(logger.Fields{
			logger.FieldDurationMs: duration.Milliseconds(),
		}).Error(ctx, "Ingest process failed: playlist=%s, error=%v", playlistID, err)
		return
	}
	logger.With(logger.Fields{
		logger.FieldDurationMs: duration.Milliseconds(),
		logger.FieldCount:      report.Total(),
	}).Info(ctx, "Ingest process completed: playlist=%s, indexed=%d, skipped=%d, failed=%d",
		playlistID, report.Count(domain.StateIndexed), report.Skipped(), report.Failed())
}

// Wait blocks until the background run, if any, has finished.
func (h *AdminHandler) Wait() {
	h.wg.Wait()
}

// GetIngestStatus returns the current ingest status.
func (h *AdminHandler) GetIngestStatus(c *gin.Context) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	logger.CtxDebug(c.Request.Context(), "Ingest status requested: client_ip=%s, is_running=%v", c.ClientIP(), h.isRunning)

	resp := IngestStatusResponse{
		IsRunning:     h.isRunning,
		PlaylistID:    h.currentPlaylist,
		LastRunStatus: h.lastRunStatus,
		LastReport:    h.lastReport,
	}
	if !h.lastRunTime.IsZero() {
		resp.LastRunTime = h.lastRunTime.Format(time.RFC3339)
	}

	c.JSON(http.StatusOK, resp)
}

// ListRuns handles GET /admin/ingest/runs?limit=N.
func (h *AdminHandler) ListRuns(c *gin.Context) {
	limit := defaultRunsLimit
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > maxRunsLimit {
			badRequest(c, "limit must be between 1 and "+strconv.Itoa(maxRunsLimit))
			return
		}
		limit = n
	}

	runs, err := h.runs.ListRuns(c.Request.Context(), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	if runs == nil {
		runs = []domain.IngestRun{}
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs, "total": len(runs)})
}

// GetRun handles GET /admin/ingest/runs/:id.
func (h *AdminHandler) GetRun(c *gin.Context) {
	run, err := h.runs.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, run)
}

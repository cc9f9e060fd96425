package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/s0urc3k0d/Statisfaction-sub001/config"
	"github.com/s0urc3k0d/Statisfaction-sub001/logging"
	"github.com/s0urc3k0d/Statisfaction-sub001/task"
)

const defaultCleanupDays = 7

type Handler struct {
	taskManager *task.Manager
	cfg         *config.Config
	logger      *slog.Logger
}

func NewHandler(tm *task.Manager, cfg *config.Config, logger *slog.Logger) *Handler {
	return &Handler{
		taskManager: tm,
		cfg:         cfg,
		logger:      logging.WithComponent(logger, "api"),
	}
}

type CompilationRequest struct {
	ClipIDs            []string `json:"clipIds"`
	Format             string   `json:"format"`
	Quality            string   `json:"quality"`
	IncludeTransitions *bool    `json:"includeTransitions"`
}

// handleCreateCompilation queues a compilation and answers before any work starts.
func (h *Handler) handleCreateCompilation(c *gin.Context) {
	var req CompilationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	jobID, err := h.taskManager.Submit(currentUser(c), req.ClipIDs, task.Options{
		Format:             req.Format,
		Quality:            req.Quality,
		IncludeTransitions: req.IncludeTransitions,
	})
	switch {
	case err == nil:
		c.JSON(http.StatusAccepted, gin.H{"jobId": jobID})
	case task.IsValidation(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, task.ErrEngineUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		h.logger.Error("could not queue compilation", "user_id", currentUser(c), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create compilation", "details": err.Error()})
	}
}

func (h *Handler) handleListJobs(c *gin.Context) {
	jobs := h.taskManager.UserJobs(currentUser(c))
	for i := range jobs {
		h.buildDownloadURL(c, &jobs[i])
	}
	c.JSON(http.StatusOK, jobs)
}

// buildDownloadURL constructs the full URL for a finished job's file.
func (h *Handler) buildDownloadURL(c *gin.Context, j *task.Job) {
	if j.Status != task.StatusDone || j.OutputPath == "" {
		return
	}

	baseURL := h.cfg.BaseURL
	if baseURL == "" {
		scheme := "http"
		if c.Request.TLS != nil {
			scheme = "https"
		}
		baseURL = fmt.Sprintf("%s://%s", scheme, c.Request.Host)
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	filename := filepath.Base(j.OutputPath)
	j.DownloadURL = fmt.Sprintf("%s/api/v1/files/%s", baseURL, filename)
}

// handleGetJob reports a single job. Jobs owned by someone else look unknown.
func (h *Handler) handleGetJob(c *gin.Context) {
	j, found := h.taskManager.Get(c.Param("jobId"))
	if !found || j.UserID != currentUser(c) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
		return
	}

	h.buildDownloadURL(c, &j)
	c.JSON(http.StatusOK, j)
}

func (h *Handler) handleHistory(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}
		limit = n
	}

	records, err := h.taskManager.History(c.Request.Context(), currentUser(c), limit)
	if err != nil {
		h.logger.Error("history lookup failed", "user_id", currentUser(c), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load history"})
		return
	}
	c.JSON(http.StatusOK, records)
}

func (h *Handler) handleDeleteCompilation(c *gin.Context) {
	deleted, err := h.taskManager.DeleteCompilation(c.Request.Context(), currentUser(c), c.Param("recordId"))
	if err != nil {
		h.logger.Error("delete failed", "record_id", c.Param("recordId"), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete compilation"})
		return
	}
	if !deleted {
		c.JSON(http.StatusNotFound, gin.H{"error": "Compilation not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

func (h *Handler) handleCleanup(c *gin.Context) {
	days := defaultCleanupDays
	if raw := c.Query("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "days must be an integer"})
			return
		}
		days = n
	}

	start := time.Now()
	removed, err := h.taskManager.CleanupOldCompilations(c.Request.Context(), days)
	if err != nil {
		if task.IsValidation(err) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("cleanup failed", "days", days, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Cleanup failed"})
		return
	}
	h.logger.Info("manual cleanup", "days", days, "removed", removed, "took", time.Since(start).String())
	c.JSON(http.StatusOK, gin.H{"removed": removed})
}

// handleGetFile serves a finished compilation.
func (h *Handler) handleGetFile(c *gin.Context) {
	filePath, err := h.taskManager.GetFilePath(c.Param("filename"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.File(filePath)
}

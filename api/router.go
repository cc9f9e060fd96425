package api

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/s0urc3k0d/Statisfaction-sub001/config"
	"github.com/s0urc3k0d/Statisfaction-sub001/task"
)

func SetupRouter(tm *task.Manager, cfg *config.Config, logger *slog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(logger))
	h := NewHandler(tm, cfg, logger)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok", "activeJobs": tm.ActiveJobs()})
	})

	v1 := r.Group("/api/v1")
	v1.Use(AuthMiddleware(cfg), UserMiddleware())
	{
		v1.POST("/compilations", h.handleCreateCompilation)
		v1.GET("/compilations", h.handleHistory)
		v1.DELETE("/compilations/:recordId", h.handleDeleteCompilation)
		v1.POST("/compilations/cleanup", h.handleCleanup)

		v1.GET("/jobs", h.handleListJobs)
		v1.GET("/jobs/:jobId", h.handleGetJob)

		// Output names embed the job id, so knowing the name implies access.
		v1.GET("/files/:filename", h.handleGetFile)
	}
	return r
}

package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/trungle-dev/vid2mp3/internal/api/handler"
)

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies) *gin.Engine {
	r := gin.New()

	// Middleware
	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware())

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		if deps.DBHealth != nil {
			if err := deps.DBHealth.HealthCheck(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{
					"status":  "unhealthy",
					"service": "vid2mp3-api",
					"error":   err.Error(),
				})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "vid2mp3-api",
		})
	})

	jobHandler := handler.NewJobHandler(deps)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		jobs := v1.Group("/jobs")
		{
			// POST /api/v1/jobs - upload a video and enqueue a conversion
			jobs.POST("", jobHandler.Upload)

			// GET /api/v1/jobs/:job_id - poll job status
			jobs.GET("/:job_id", jobHandler.GetStatus)

			// GET /api/v1/jobs/:job_id/download - fetch the converted MP3
			jobs.GET("/:job_id/download", jobHandler.Download)
		}
	}

	return r
}

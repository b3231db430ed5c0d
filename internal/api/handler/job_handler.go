package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/trungle-dev/vid2mp3/internal/domain"
	"github.com/trungle-dev/vid2mp3/internal/ledger"
	"github.com/trungle-dev/vid2mp3/internal/objectstore"
)

// Upload handles POST /api/v1/jobs
// Accepts a multipart video upload, persists it to the object store, creates
// the ledger entry and enqueues a job message.
func (h *JobHandler) Upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "exactly one file is required",
		})
		return
	}

	if h.maxUploadBytes > 0 && fileHeader.Size > h.maxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{
			"error": "file exceeds the upload size limit",
		})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		h.logger.Error("Failed to open uploaded file", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "invalid file",
		})
		return
	}
	defer file.Close()

	contentType := fileHeader.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	inputRef, err := h.store.Put(c.Request.Context(), file, contentType)
	if err != nil {
		h.logger.Error("Failed to store uploaded file", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "failed to store file",
		})
		return
	}

	jobID := uuid.New().String()
	requester := c.PostForm("email")

	if _, err := h.ledger.Create(c.Request.Context(), jobID, inputRef, requester); err != nil {
		h.logger.Error("Failed to create job",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "failed to create job",
		})
		return
	}

	// Mark the job queued before the message exists on the broker, so the
	// worker's claim is always a strict queued→processing write.
	if _, err := h.ledger.Transition(c.Request.Context(), jobID, domain.StateCreated, domain.StateQueued, ledger.Fields{}); err != nil {
		h.logger.Error("Failed to mark job queued",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "failed to enqueue job",
		})
		return
	}

	body, err := json.Marshal(domain.JobMessage{JobID: jobID, InputRef: inputRef})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "failed to enqueue job",
		})
		return
	}

	if err := h.rabbitClient.PublishWithRetry(c.Request.Context(), h.jobsRoutingKey, body, "application/json"); err != nil {
		h.logger.Error("Failed to publish job message",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "failed to enqueue job",
		})
		return
	}

	h.logger.Info("Upload accepted",
		slog.String("job_id", jobID),
		slog.String("input_ref", inputRef),
		slog.Int64("size", fileHeader.Size),
	)

	c.JSON(http.StatusAccepted, gin.H{
		"job_id": jobID,
		"state":  domain.StateQueued,
	})
}

// GetStatus handles GET /api/v1/jobs/:job_id
// Returns the ledger view of one job for polling clients.
func (h *JobHandler) GetStatus(c *gin.Context) {
	jobID := c.Param("job_id")

	job, err := h.ledger.Get(c.Request.Context(), jobID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "job not found",
			})
			return
		}
		h.logger.Error("Failed to get job",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "failed to get job",
		})
		return
	}

	resp := gin.H{
		"job_id":        job.JobID,
		"state":         job.State,
		"attempt_count": job.AttemptCount,
		"created_at":    job.CreatedAt,
		"updated_at":    job.UpdatedAt,
	}
	if job.OutputRef != "" {
		resp["output_ref"] = job.OutputRef
	}
	if job.ErrorKind != "" {
		resp["error"] = job.ErrorKind
		resp["error_detail"] = job.ErrorDetail
	}

	c.JSON(http.StatusOK, resp)
}

// Download handles GET /api/v1/jobs/:job_id/download
// Streams the converted MP3 for a completed job.
func (h *JobHandler) Download(c *gin.Context) {
	jobID := c.Param("job_id")

	job, err := h.ledger.Get(c.Request.Context(), jobID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "job not found",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "failed to get job",
		})
		return
	}

	if job.State != domain.StateCompleted {
		c.JSON(http.StatusConflict, gin.H{
			"error": "job is not completed",
			"state": job.State,
		})
		return
	}

	rc, err := h.store.Get(c.Request.Context(), job.OutputRef)
	if err != nil {
		if errors.Is(err, objectstore.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "output file not found",
			})
			return
		}
		h.logger.Error("Failed to open output file",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "failed to fetch output file",
		})
		return
	}
	defer rc.Close()

	c.Header("Content-Type", "audio/mpeg")
	c.Header("Content-Disposition", `attachment; filename="`+jobID+`.mp3"`)
	c.Status(http.StatusOK)

	if _, err := io.Copy(c.Writer, rc); err != nil {
		h.logger.Error("Failed to stream output file",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
	}
}

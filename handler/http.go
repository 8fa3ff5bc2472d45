package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"library-encoder/dto"
	"library-encoder/registry"
	"library-encoder/service"
)

// EncodeLibrary accepts an encode request and returns the job id
// immediately. Session handling lives upstream; the user identity and the
// provider token arrive as headers.
func EncodeLibrary(svc service.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		userId := c.GetHeader("X-User-Id")
		if userId == "" {
			c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "missing X-User-Id header"})
			return
		}
		accessToken := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")

		jobId, err := svc.StartEncoding(c.Request.Context(), userId, accessToken)
		if err != nil {
			if errors.Is(err, registry.ErrJobAlreadyActive) {
				c.JSON(http.StatusConflict, gin.H{"status": "error", "message": err.Error()})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": "failed to start encoding job"})
			return
		}

		c.JSON(http.StatusAccepted, dto.EncodeResponse{TaskId: jobId})
	}
}

// TaskStatus reports the job's current snapshot. Reads never block on
// pipeline work.
func TaskStatus(svc service.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		jobId, err := uuid.Parse(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"status": "error", "message": registry.ErrJobNotFound.Error()})
			return
		}

		snap, err := svc.GetStatus(jobId)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"status": "error", "message": registry.ErrJobNotFound.Error()})
			return
		}

		resp := dto.StatusResponse{
			State:    snap.State.String(),
			Progress: snap.Progress,
			Status:   snap.Message,
			Result:   snap.Result,
		}
		c.JSON(http.StatusOK, resp)
	}
}

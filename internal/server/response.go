package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pixelcrate/pixelcrate/internal/storage"
)

// APIResponse is the envelope every endpoint returns: either a payload or
// a human-readable error string, never both, never a stack trace.
type APIResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func respondOK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, APIResponse{Success: true, Data: data})
}

func respondError(c *gin.Context, status int, msg string) {
	c.JSON(status, APIResponse{Success: false, Error: msg})
}

// respondStorageError maps backend sentinels onto HTTP statuses. Missing
// credentials are a configuration problem, not a crash.
func respondStorageError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, storage.ErrNotConfigured):
		respondError(c, http.StatusServiceUnavailable, "storage not configured")
	case errors.Is(err, storage.ErrNotFound):
		respondError(c, http.StatusNotFound, "image not found")
	default:
		respondError(c, http.StatusInternalServerError, "storage operation failed")
	}
}

package utils

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RespondError writes the standard error envelope.
func RespondError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}

// RespondInternalError hides internal detail from the client; the real
// error is expected to be logged at the call site.
func RespondInternalError(c *gin.Context) {
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
}

// RespondNotFound is the envelope for missing or not-owned resources.
// Both cases answer identically so ownership cannot be probed.
func RespondNotFound(c *gin.Context, resource string) {
	c.JSON(http.StatusNotFound, gin.H{"error": resource + " not found"})
}

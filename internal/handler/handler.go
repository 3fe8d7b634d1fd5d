package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	logger "github.com/Gopher0727/bytehub/middleware/log"
)

// currentUser returns the authenticated user id, answering 401 when absent
func currentUser(c *gin.Context) (string, bool) {
	userID := c.GetString("user_id")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return "", false
	}
	return userID, true
}

// internalError logs err with the request's trace id and answers an opaque 500
func internalError(c *gin.Context, log *logger.Logger, msg string, err error) {
	log.ErrorContext(c.Request.Context(), msg,
		zap.Error(err),
		zap.String("method", c.Request.Method),
		zap.String("route", c.FullPath()),
	)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
}

func errorJSON(c *gin.Context, status int, err error) {
	c.JSON(status, gin.H{"error": err.Error()})
}

func nopIfNil(log *logger.Logger) *logger.Logger {
	if log == nil {
		return logger.NewNop()
	}
	return log
}

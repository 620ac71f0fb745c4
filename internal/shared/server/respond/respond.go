package respond

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"medicare-backend/internal/shared/telemetry"
)

// JSON writes payload as-is with the given status.
func JSON(c *gin.Context, status int, payload interface{}) {
	c.JSON(status, payload)
}

// Success writes {success:true, data}.
func Success(c *gin.Context, data interface{}) {
	JSON(c, http.StatusOK, gin.H{"success": true, "data": data})
}

// Fail aborts with {success:false, message, ...extra}.
func Fail(c *gin.Context, status int, message string, extra gin.H) {
	logFailure(c, status, "", message)

	body := gin.H{"success": false, "message": message}
	for k, v := range extra {
		body[k] = v
	}
	c.AbortWithStatusJSON(status, body)
}

func logFailure(c *gin.Context, status int, code, message string) {
	fields := map[string]any{
		"status":     status,
		"message":    message,
		"path":       c.Request.URL.Path,
		"method":     c.Request.Method,
		"request_id": c.GetString("requestId"),
	}
	if code != "" {
		fields["code"] = code
	}
	if userID := c.GetString("userId"); userID != "" {
		fields["user_id"] = userID
	}
	if sessionID := c.GetString("sessionId"); sessionID != "" {
		fields["session_id"] = sessionID
	}
	telemetry.Error("http.error", fields)
}

package respond

import "github.com/gin-gonic/gin"

// ErrorBody is the {error:{code,message,details}} shape used by middleware
// rejections (auth, rate limit, panics).
type ErrorBody struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

func Error(c *gin.Context, status int, code, message string, details interface{}) {
	logFailure(c, status, code, message)
	c.AbortWithStatusJSON(status, ErrorResponse{Error: ErrorBody{Code: code, Message: message, Details: details}})
}

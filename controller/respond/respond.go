package respond

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const startTimeKey = "request_start_time"

// Response unified response envelope
type Response struct {
	Code           int         `json:"code" example:"0"`
	Message        string      `json:"message" example:"success"`
	ProcessingTime int64       `json:"processingTime" example:"3"` // milliseconds
	Data           interface{} `json:"data"`
}

// TimingMiddleware records the request start for ProcessingTime
func TimingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(startTimeKey, time.Now())
		c.Next()
	}
}

func elapsed(c *gin.Context) int64 {
	if v, ok := c.Get(startTimeKey); ok {
		if start, ok := v.(time.Time); ok {
			return time.Since(start).Milliseconds()
		}
	}
	return 0
}

func write(c *gin.Context, status, code int, message string, data interface{}) {
	c.JSON(status, Response{
		Code:           code,
		Message:        message,
		ProcessingTime: elapsed(c),
		Data:           data,
	})
}

// Success 200 with code 0
func Success(c *gin.Context, data interface{}) {
	write(c, http.StatusOK, 0, "success", data)
}

// SuccessWithCode 200 with a custom code
func SuccessWithCode(c *gin.Context, code int, data interface{}) {
	write(c, http.StatusOK, code, "success", data)
}

// InvalidParam 400
func InvalidParam(c *gin.Context, message string) {
	write(c, http.StatusBadRequest, http.StatusBadRequest, message, nil)
}

// NotFound 404
func NotFound(c *gin.Context, message string) {
	write(c, http.StatusNotFound, http.StatusNotFound, message, nil)
}

// ServerError 500
func ServerError(c *gin.Context, message string) {
	write(c, http.StatusInternalServerError, http.StatusInternalServerError, message, nil)
}

// Unavailable 503
func Unavailable(c *gin.Context, message string) {
	write(c, http.StatusServiceUnavailable, http.StatusServiceUnavailable, message, nil)
}

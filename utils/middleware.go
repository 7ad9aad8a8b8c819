package utils

import (
	"log/slog"
	"strconv"

	"github.com/gin-gonic/gin"
)

const (
	CacheNoCache = 0
	CacheCustom  = -1
)

// CacheControl sets the cache-control header, seconds being CacheNoCache,
// CacheCustom (handler decides) or a max-age
func CacheControl(seconds int) gin.HandlerFunc {
	return func(c *gin.Context) {
		if seconds != CacheCustom {
			if seconds == CacheNoCache {
				c.Header("cache-control", "no-cache")
			} else {
				c.Header("cache-control", "private, max-age="+strconv.Itoa(seconds))
			}
		}
		c.Next()
	}
}

type errorLogWriter struct {
	gin.ResponseWriter
	gc *gin.Context
}

func (w errorLogWriter) Write(b []byte) (int, error) {
	status := w.gc.Writer.Status()
	if status >= 400 {
		slog.Debug("error response", "method", w.gc.Request.Method, "path", w.gc.Request.URL.Path, "status", status, "body", string(b))
	}
	return w.ResponseWriter.Write(b)
}

// ErrorLogMiddleware doesn't work with GZIP
func ErrorLogMiddleware(c *gin.Context) {
	blw := &errorLogWriter{gc: c, ResponseWriter: c.Writer}
	c.Writer = blw
	c.Next()
}

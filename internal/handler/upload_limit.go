package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

func formatUploadLimit(bytes int64) string {
	const mb = 1024 * 1024
	if bytes <= 0 {
		return "0MB"
	}
	value := bytes / mb
	if value <= 0 {
		value = 1
	}
	return strconv.FormatInt(value, 10) + "MB"
}

// bindJSON decodes the request body into dst, rejecting bodies above limit
// when limit is positive.
func bindJSON(c *gin.Context, limit int64, dst interface{}) bool {
	if limit > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
	}
	if err := c.ShouldBindJSON(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			invalidRequest(c, "request body too large (max "+formatUploadLimit(limit)+")")
			return false
		}
		invalidRequest(c, "invalid request body")
		return false
	}
	return true
}

package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type ErrorBody struct {
	Detail    string `json:"detail"`
	Kind      string `json:"kind"`
	Code      int    `json:"code"`
	Retryable bool   `json:"retryable"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

func Error(c *gin.Context, status int, body ErrorBody) {
	c.AbortWithStatusJSON(status, body)
}

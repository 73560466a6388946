package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/ragbase/internal/pkg/errcode"
	appErr "github.com/xxxsen/ragbase/internal/pkg/errors"
	"github.com/xxxsen/ragbase/internal/pkg/response"
)

func invalidRequest(c *gin.Context, detail string) {
	response.Error(c, http.StatusBadRequest, response.ErrorBody{
		Detail: detail,
		Kind:   appErr.Kind(appErr.ErrInvalid),
		Code:   errcode.ErrInvalid,
	})
}

func handleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	requestID, _ := c.Get("request_id")
	logutil.GetLogger(c.Request.Context()).Error("request failed",
		zap.Any("request_id", requestID),
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.Error(err),
	)
	status, code := classify(err)
	response.Error(c, status, response.ErrorBody{
		Detail:    err.Error(),
		Kind:      appErr.Kind(err),
		Code:      code,
		Retryable: appErr.IsRetryable(err),
	})
}

func classify(err error) (int, int) {
	switch {
	case errors.Is(err, appErr.ErrEmptyDocument):
		return http.StatusBadRequest, errcode.ErrEmptyDocument
	case errors.Is(err, appErr.ErrInvalid):
		return http.StatusBadRequest, errcode.ErrInvalid
	case errors.Is(err, appErr.ErrConfiguration):
		return http.StatusBadRequest, errcode.ErrConfiguration
	case errors.Is(err, appErr.ErrNotFound):
		return http.StatusNotFound, errcode.ErrNotFound
	case errors.Is(err, appErr.ErrEmbedding):
		return http.StatusBadGateway, errcode.ErrEmbedding
	case errors.Is(err, appErr.ErrStorage):
		return http.StatusServiceUnavailable, errcode.ErrStorage
	default:
		return http.StatusInternalServerError, errcode.ErrInternal
	}
}

package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/ragbase/internal/pkg/response"
	"github.com/xxxsen/ragbase/internal/service"
)

const serviceName = "ragbase"

type SystemHandler struct {
	retrieval *service.RetrievalService
}

func NewSystemHandler(retrieval *service.RetrievalService) *SystemHandler {
	return &SystemHandler{retrieval: retrieval}
}

type providerRequest struct {
	Provider string                 `json:"provider"`
	Params   map[string]interface{} `json:"params"`
}

type providerResponse struct {
	Provider  string   `json:"provider"`
	Providers []string `json:"providers"`
}

func (h *SystemHandler) Root(c *gin.Context) {
	response.Success(c, gin.H{"status": "ok", "service": serviceName})
}

// Health always answers 200; failures are reported in the body.
func (h *SystemHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, h.retrieval.Health(c.Request.Context()))
}

func (h *SystemHandler) GetProvider(c *gin.Context) {
	response.Success(c, providerResponse{
		Provider:  h.retrieval.ActiveProvider(),
		Providers: h.retrieval.Providers(),
	})
}

func (h *SystemHandler) SetProvider(c *gin.Context) {
	var req providerRequest
	if !bindJSON(c, 0, &req) {
		return
	}
	if strings.TrimSpace(req.Provider) == "" {
		invalidRequest(c, "provider is required")
		return
	}
	if err := h.retrieval.ConfigureProvider(c.Request.Context(), req.Provider, req.Params); err != nil {
		handleError(c, err)
		return
	}
	h.GetProvider(c)
}

package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/xxxsen/ragbase/internal/model"
	"github.com/xxxsen/ragbase/internal/pkg/response"
	"github.com/xxxsen/ragbase/internal/service"
)

type SearchHandler struct {
	retrieval *service.RetrievalService
}

func NewSearchHandler(retrieval *service.RetrievalService) *SearchHandler {
	return &SearchHandler{retrieval: retrieval}
}

type searchRequest struct {
	Query string `json:"query"`
	Limit *int   `json:"limit"`
}

type searchResponse struct {
	Query   string               `json:"query"`
	Results []model.SearchResult `json:"results"`
	Count   int                  `json:"count"`
}

type embedRequest struct {
	Text string `json:"text"`
}

type embedResponse struct {
	Embedding  []float32 `json:"embedding"`
	Dimensions int       `json:"dimensions"`
}

func (h *SearchHandler) Search(c *gin.Context) {
	var req searchRequest
	if !bindJSON(c, 0, &req) {
		return
	}
	limit := service.DefaultQueryLimit
	if req.Limit != nil {
		limit = *req.Limit
	}
	results, err := h.retrieval.Query(c.Request.Context(), req.Query, limit)
	if err != nil {
		handleError(c, err)
		return
	}
	if results == nil {
		results = []model.SearchResult{}
	}
	response.Success(c, searchResponse{Query: req.Query, Results: results, Count: len(results)})
}

func (h *SearchHandler) Embed(c *gin.Context) {
	var req embedRequest
	if !bindJSON(c, 0, &req) {
		return
	}
	vec, err := h.retrieval.Embed(c.Request.Context(), req.Text)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, embedResponse{Embedding: vec, Dimensions: len(vec)})
}

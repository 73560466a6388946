package handler

import (
	"errors"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/ragbase/internal/model"
	"github.com/xxxsen/ragbase/internal/pkg/response"
	"github.com/xxxsen/ragbase/internal/service"
)

type DocumentHandler struct {
	retrieval     *service.RetrievalService
	maxUploadSize int64
}

func NewDocumentHandler(retrieval *service.RetrievalService, maxUploadSize int64) *DocumentHandler {
	return &DocumentHandler{retrieval: retrieval, maxUploadSize: maxUploadSize}
}

type importRequest struct {
	Key   string `json:"key"`
	Title string `json:"title"`
}

type ingestResponse struct {
	Success bool    `json:"success"`
	Title   string  `json:"title"`
	Chunks  int     `json:"chunks"`
	IDs     []int64 `json:"ids"`
}

type listResponse struct {
	Documents []model.DocumentSummary `json:"documents"`
	Count     int                     `json:"count"`
}

type deleteResponse struct {
	Success       bool  `json:"success"`
	DeletedChunks int64 `json:"deleted_chunks"`
}

func (h *DocumentHandler) Create(c *gin.Context) {
	var req model.Document
	if !bindJSON(c, h.maxUploadSize, &req) {
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		invalidRequest(c, "title is required")
		return
	}
	res, err := h.retrieval.Ingest(c.Request.Context(), req.Title, req.Content)
	writeIngest(c, res, err)
}

func (h *DocumentHandler) Import(c *gin.Context) {
	var req importRequest
	if !bindJSON(c, 0, &req) {
		return
	}
	if strings.TrimSpace(req.Key) == "" {
		invalidRequest(c, "key is required")
		return
	}
	res, err := h.retrieval.ImportFile(c.Request.Context(), req.Key, req.Title)
	writeIngest(c, res, err)
}

func writeIngest(c *gin.Context, res *model.IngestResult, err error) {
	if err != nil {
		var ingestErr *service.IngestError
		if errors.As(err, &ingestErr) {
			c.Header("X-Stored-Chunks", strconv.Itoa(ingestErr.Stored))
		}
		handleError(c, err)
		return
	}
	response.Success(c, ingestResponse{
		Success: true,
		Title:   res.Title,
		Chunks:  res.ChunkCount,
		IDs:     res.IDs,
	})
}

func (h *DocumentHandler) List(c *gin.Context) {
	docs, err := h.retrieval.ListDocuments(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}
	if docs == nil {
		docs = []model.DocumentSummary{}
	}
	response.Success(c, listResponse{Documents: docs, Count: len(docs)})
}

func (h *DocumentHandler) Delete(c *gin.Context) {
	n, err := h.retrieval.DeleteDocument(c.Request.Context(), c.Param("title"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, deleteResponse{Success: true, DeletedChunks: n})
}

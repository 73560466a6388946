package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/xxxsen/ragbase/internal/metrics"
)

type RouterDeps struct {
	Documents *DocumentHandler
	Search    *SearchHandler
	System    *SystemHandler
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	api.GET("/", deps.System.Root)
	api.GET("/health", deps.System.Health)
	api.GET("/provider", deps.System.GetProvider)
	api.PUT("/provider", deps.System.SetProvider)
	api.GET("/metrics", gin.WrapH(metrics.Handler()))

	api.POST("/documents", deps.Documents.Create)
	api.GET("/documents", deps.Documents.List)
	api.POST("/documents/import", deps.Documents.Import)
	api.DELETE("/documents/:title", deps.Documents.Delete)

	api.POST("/search", deps.Search.Search)
	api.POST("/embed", deps.Search.Embed)
}

package api

import (
	httpSwagger "github.com/swaggo/http-swagger"

	_ "go-image-pipeline/docs"
	"go-image-pipeline/internal/api/handler"
	"go-image-pipeline/pkg/router"
)

// @title Image Batch Pipeline API
// @version 1.0
// @description Start, inspect and cancel bounded fetch and transform batches.
// @host localhost:8080
// @BasePath /api/v1
func RegisterRoutes(r *router.Router) {
	r.POST("/api/v1/batches", handler.CreateBatch)
	r.GET("/api/v1/batches", handler.ListBatches)
	r.GET("/api/v1/batches/{id}", handler.GetBatch)
	r.GET("/api/v1/batches/{id}/metrics", handler.GetBatchMetrics)
	r.GET("/api/v1/batches/{id}/failures", handler.GetBatchFailures)
	r.POST("/api/v1/batches/{id}/cancel", handler.CancelBatch)

	r.GET("/swagger/*", httpSwagger.WrapHandler)
}

package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ashwinyue/next-analytics/internal/handler"
	"github.com/ashwinyue/next-analytics/internal/middleware"
)

// SetupRouter 设置路由
func SetupRouter(h *handler.Handlers, logger *zap.SugaredLogger) *gin.Engine {
	r := gin.New()

	// 中间件
	r.Use(middleware.RecoveryMiddleware(logger))
	r.Use(middleware.LoggingMiddleware(logger))

	// 健康检查与指标
	r.GET("/health", h.System.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 分析
	an := r.Group("/analysis")
	{
		an.POST("/holistic", h.Analysis.Holistic)
		an.POST("/run", h.Analysis.Run)
		an.POST("/save-state", h.Analysis.SaveState)
		an.GET("/load-state/:id", h.Analysis.LoadState)
		an.GET("/saved-states/:dataset_id", h.Analysis.ListStates)
		an.DELETE("/delete-state/:id", h.Analysis.DeleteState)
		an.GET("/training-metadata/:dataset_id", h.Analysis.TrainingMetadata)
		an.POST("/feedback", h.Analysis.SubmitFeedback)
		an.GET("/feedback/stats", h.Analysis.FeedbackStats)
	}

	// 数据源
	ds := r.Group("/datasource")
	{
		ds.POST("/upload", h.Datasource.Upload)
		ds.GET("/datasets", h.Datasource.ListDatasets)
		ds.GET("/datasets/:id", h.Datasource.GetDataset)
		ds.DELETE("/datasets/:id", h.Datasource.DeleteDataset)
		ds.POST("/datasets/:id/query", h.Datasource.Query)
	}

	return r
}

package handler

import (
	"github.com/ashwinyue/next-analytics/internal/service"
)

// Handlers 处理器集合
type Handlers struct {
	Analysis   *AnalysisHandler
	Datasource *DatasourceHandler
	System     *SystemHandler
}

// NewHandlers 创建所有处理器
func NewHandlers(svc *service.Services, db Pinger) *Handlers {
	return &Handlers{
		Analysis:   NewAnalysisHandler(svc),
		Datasource: NewDatasourceHandler(svc),
		System:     NewSystemHandler(svc, db),
	}
}

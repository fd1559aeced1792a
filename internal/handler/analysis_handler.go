package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/ashwinyue/next-analytics/internal/service"
	"github.com/ashwinyue/next-analytics/internal/service/analysis"
)

// AnalysisHandler 分析处理器
type AnalysisHandler struct {
	svc *service.Services
}

// NewAnalysisHandler 创建分析处理器
func NewAnalysisHandler(svc *service.Services) *AnalysisHandler {
	return &AnalysisHandler{svc: svc}
}

// Holistic 整体分析
// POST /analysis/holistic
func (h *AnalysisHandler) Holistic(c *gin.Context) {
	var req analysis.HolisticRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	resp, err := h.svc.Analysis.Holistic(c.Request.Context(), &req)
	if err != nil {
		Error(c, err)
		return
	}

	Success(c, resp)
}

// Run 单项分析
// POST /analysis/run
func (h *AnalysisHandler) Run(c *gin.Context) {
	var req analysis.RunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	resp, err := h.svc.Analysis.Run(c.Request.Context(), &req)
	if err != nil {
		Error(c, err)
		return
	}

	Success(c, resp)
}

// SaveState 保存工作区
// POST /analysis/save-state
func (h *AnalysisHandler) SaveState(c *gin.Context) {
	var req analysis.SaveStateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	ws, err := h.svc.Analysis.SaveState(c.Request.Context(), &req)
	if err != nil {
		Error(c, err)
		return
	}

	Success(c, gin.H{
		"workspace_id": ws.ID,
		"workspace":    ws,
		"message":      "Workspace saved",
	})
}

// LoadState 读取工作区
// GET /analysis/load-state/:id
func (h *AnalysisHandler) LoadState(c *gin.Context) {
	ws, err := h.svc.Analysis.LoadState(c.Request.Context(), c.Param("id"))
	if err != nil {
		Error(c, err)
		return
	}

	Success(c, ws)
}

// ListStates 列出数据集的工作区
// GET /analysis/saved-states/:dataset_id
func (h *AnalysisHandler) ListStates(c *gin.Context) {
	list, err := h.svc.Analysis.ListStates(c.Request.Context(), c.Param("dataset_id"))
	if err != nil {
		Error(c, err)
		return
	}

	Success(c, gin.H{"workspaces": list, "count": len(list)})
}

// DeleteState 删除工作区
// DELETE /analysis/delete-state/:id
func (h *AnalysisHandler) DeleteState(c *gin.Context) {
	id := c.Param("id")
	if err := h.svc.Analysis.DeleteState(c.Request.Context(), id); err != nil {
		Error(c, err)
		return
	}

	Success(c, gin.H{"workspace_id": id, "message": "Workspace deleted"})
}

// TrainingMetadata 训练记录
// GET /analysis/training-metadata/:dataset_id?workspace_name=
func (h *AnalysisHandler) TrainingMetadata(c *gin.Context) {
	datasetID := c.Param("dataset_id")
	records, err := h.svc.Analysis.TrainingHistory(c.Request.Context(), datasetID, c.Query("workspace_name"))
	if err != nil {
		Error(c, err)
		return
	}

	Success(c, gin.H{"dataset_id": datasetID, "training_metadata": records, "count": len(records)})
}

// SubmitFeedback 提交模型评价
// POST /analysis/feedback
func (h *AnalysisHandler) SubmitFeedback(c *gin.Context) {
	var req analysis.FeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	fb, err := h.svc.Analysis.SubmitFeedback(c.Request.Context(), &req)
	if err != nil {
		Error(c, err)
		return
	}

	Created(c, fb)
}

// FeedbackStats 评价统计
// GET /analysis/feedback/stats?dataset_id=
func (h *AnalysisHandler) FeedbackStats(c *gin.Context) {
	stats, err := h.svc.Analysis.FeedbackStats(c.Request.Context(), c.Query("dataset_id"))
	if err != nil {
		Error(c, err)
		return
	}

	Success(c, stats)
}

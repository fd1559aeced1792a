package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ashwinyue/next-analytics/internal/service"
	"github.com/ashwinyue/next-analytics/internal/service/dataset"
)

// DatasourceHandler 数据源处理器
type DatasourceHandler struct {
	svc *service.Services
}

// NewDatasourceHandler 创建数据源处理器
func NewDatasourceHandler(svc *service.Services) *DatasourceHandler {
	return &DatasourceHandler{svc: svc}
}

// Upload 上传数据文件
// POST /datasource/upload (multipart: file, name)
func (h *DatasourceHandler) Upload(c *gin.Context) {
	if limit := h.svc.Config.Server.MaxUploadMB; limit > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, int64(limit)<<20)
	}

	fh, err := c.FormFile("file")
	if err != nil {
		BadRequest(c, fmt.Sprintf("file is required: %v", err))
		return
	}
	f, err := fh.Open()
	if err != nil {
		BadRequest(c, fmt.Sprintf("failed to open upload: %v", err))
		return
	}
	defer f.Close()

	result, err := h.svc.Dataset.Upload(c.Request.Context(), &dataset.UploadRequest{
		Name:     c.PostForm("name"),
		FileName: fh.Filename,
		Reader:   f,
	})
	if err != nil {
		Error(c, err)
		return
	}

	Created(c, result)
}

// ListDatasets 列出数据集
// GET /datasource/datasets?page=&size=
func (h *DatasourceHandler) ListDatasets(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("size", "20"))
	if page <= 0 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 20
	}

	datasets, total, err := h.svc.Dataset.ListDatasets(c.Request.Context(), page, size)
	if err != nil {
		Error(c, err)
		return
	}

	SuccessWithPagination(c, datasets, total, page, size)
}

// GetDataset 获取数据集详情与预览
// GET /datasource/datasets/:id
func (h *DatasourceHandler) GetDataset(c *gin.Context) {
	detail, err := h.svc.Dataset.GetDataset(c.Request.Context(), c.Param("id"))
	if err != nil {
		Error(c, err)
		return
	}

	Success(c, detail)
}

// DeleteDataset 删除数据集
// DELETE /datasource/datasets/:id
func (h *DatasourceHandler) DeleteDataset(c *gin.Context) {
	id := c.Param("id")
	if err := h.svc.Dataset.DeleteDataset(c.Request.Context(), id); err != nil {
		Error(c, err)
		return
	}

	Success(c, gin.H{"dataset_id": id, "message": "Dataset deleted"})
}

// Query 在数据集上执行只读 SQL
// POST /datasource/datasets/:id/query
func (h *DatasourceHandler) Query(c *gin.Context) {
	var req dataset.QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	res, err := h.svc.Dataset.Query(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		Error(c, err)
		return
	}

	Success(c, res)
}

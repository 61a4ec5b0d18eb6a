package handler

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"jornadas/backend/internal/dto"
	"jornadas/backend/internal/service"
	"jornadas/backend/pkg/response"
)

// ReportHandler 报表模块 HTTP 处理器
type ReportHandler struct {
	reportSvc service.ReportService
}

// NewReportHandler 创建 ReportHandler
func NewReportHandler(reportSvc service.ReportService) *ReportHandler {
	return &ReportHandler{reportSvc: reportSvc}
}

// PermitReport 工作日与劳动请假报表
// GET /api/v1/reports/permits?from=&to=&operator_id=
func (h *ReportHandler) PermitReport(c *gin.Context) {
	var query dto.PermitReportQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.BadRequest(c, 21001, "参数校验失败")
		return
	}

	report, err := h.reportSvc.PermitReport(c.Request.Context(), &query)
	if err != nil {
		h.handleReportError(c, err)
		return
	}

	response.OK(c, report)
}

// ExportPermitReport 导出请假报表
// GET /api/v1/reports/permits/export?from=&to=&operator_id=
func (h *ReportHandler) ExportPermitReport(c *gin.Context) {
	var query dto.PermitReportQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.BadRequest(c, 21001, "参数校验失败")
		return
	}

	buf, filename, err := h.reportSvc.ExportPermitReport(c.Request.Context(), &query)
	if err != nil {
		h.handleReportError(c, err)
		return
	}

	// 设置下载响应头
	encodedFilename := url.QueryEscape(filename)
	c.Header("Content-Description", "File Transfer")
	c.Header("Content-Disposition", "attachment; filename*=UTF-8''"+encodedFilename)
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
}

func (h *ReportHandler) handleReportError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrReportGenerateFail):
		response.InternalError(c)
	default:
		handleFieldError(c, err)
	}
}

package handler

import "jornadas/backend/internal/service"

// Handler 所有 Handler 的聚合入口
type Handler struct {
	Shift  *ShiftHandler
	Report *ReportHandler
}

// NewHandler 创建 Handler 聚合
func NewHandler(svc *service.Service) *Handler {
	return &Handler{
		Shift:  NewShiftHandler(svc.Shift),
		Report: NewReportHandler(svc.Report),
	}
}

package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"jornadas/backend/internal/dto"
	"jornadas/backend/internal/service"
	pkgerrors "jornadas/backend/pkg/errors"
	"jornadas/backend/pkg/response"
)

// ShiftHandler 工作日模块 HTTP 处理器
type ShiftHandler struct {
	shiftSvc service.ShiftService
}

// NewShiftHandler 创建 ShiftHandler
func NewShiftHandler(shiftSvc service.ShiftService) *ShiftHandler {
	return &ShiftHandler{shiftSvc: shiftSvc}
}

// ListShifts 获取全部工作日
// GET /api/v1/shifts?limit=&sort=
func (h *ShiftHandler) ListShifts(c *gin.Context) {
	var query dto.ShiftListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.BadRequest(c, 20001, "参数校验失败")
		return
	}

	list, err := h.shiftSvc.List(c.Request.Context(), &query)
	if err != nil {
		h.handleShiftError(c, err)
		return
	}

	response.OK(c, gin.H{"list": list})
}

// CreateShift 创建工作日
// POST /api/v1/shifts
func (h *ShiftHandler) CreateShift(c *gin.Context) {
	var req dto.CreateShiftRequest
	if !bindJSON(c, &req) {
		return
	}

	shift, err := h.shiftSvc.Create(c.Request.Context(), &req)
	if err != nil {
		h.handleShiftError(c, err)
		return
	}

	response.Created(c, shift)
}

// GetShift 获取工作日详情
// GET /api/v1/shifts/:id
func (h *ShiftHandler) GetShift(c *gin.Context) {
	shift, err := h.shiftSvc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleShiftError(c, err)
		return
	}

	response.OK(c, shift)
}

// UpdateShift 更新工作日
// PUT /api/v1/shifts/:id
func (h *ShiftHandler) UpdateShift(c *gin.Context) {
	var req dto.UpdateShiftRequest
	if !bindJSON(c, &req) {
		return
	}

	shift, err := h.shiftSvc.Update(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		h.handleShiftError(c, err)
		return
	}

	response.OK(c, shift)
}

// DeleteShift 删除工作日
// DELETE /api/v1/shifts/:id
func (h *ShiftHandler) DeleteShift(c *gin.Context) {
	if err := h.shiftSvc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.handleShiftError(c, err)
		return
	}

	response.OK(c, nil)
}

// ListByOperator 操作员的工作日（返回前合并同日重复记录）
// GET /api/v1/shifts/operator/:operatorId?date=
func (h *ShiftHandler) ListByOperator(c *gin.Context) {
	list, err := h.shiftSvc.ListByOperator(c.Request.Context(), c.Param("operatorId"), c.Query("date"))
	if err != nil {
		h.handleShiftError(c, err)
		return
	}

	response.OK(c, gin.H{"list": list})
}

// ListByOperatorAndDate 操作员某一天的工作日
// GET /api/v1/shifts/operator/:operatorId/date/:date
func (h *ShiftHandler) ListByOperatorAndDate(c *gin.Context) {
	list, err := h.shiftSvc.ListByOperatorAndDate(c.Request.Context(), c.Param("operatorId"), c.Param("date"))
	if err != nil {
		h.handleShiftError(c, err)
		return
	}

	response.OK(c, gin.H{"list": list})
}

// AddActivity 向工作日追加一条活动
// POST /api/v1/shifts/:id/activities
func (h *ShiftHandler) AddActivity(c *gin.Context) {
	var input dto.ActivityInput
	if !bindJSON(c, &input) {
		return
	}

	result, err := h.shiftSvc.AddActivity(c.Request.Context(), c.Param("id"), &input)
	if err != nil {
		h.handleShiftError(c, err)
		return
	}

	response.Created(c, result)
}

// SaveComplete 一次性保存整天的工作日与活动
// POST /api/v1/shifts/complete
func (h *ShiftHandler) SaveComplete(c *gin.Context) {
	var req dto.SaveCompleteRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.shiftSvc.SaveComplete(c.Request.Context(), &req)
	if err != nil {
		h.handleShiftError(c, err)
		return
	}

	response.Created(c, result)
}

// RecalculateAll 重新计算全部工作日的缓存工时
// POST /api/v1/shifts/recalculate
// 管理接口：失败时在 details 中返回底层错误信息
func (h *ShiftHandler) RecalculateAll(c *gin.Context) {
	stats, err := h.shiftSvc.RecalculateAll(c.Request.Context())
	if err != nil {
		response.ErrorWithDetails(c, http.StatusInternalServerError, 20500, "批量重算失败", err.Error())
		return
	}

	response.OK(c, stats)
}

// ListLabor 由工作时段/请假记录聚合的虚拟工作日（分页）
// GET /api/v1/shifts/labor?page=&page_size=&operator=&from=&to=&include_activities=
func (h *ShiftHandler) ListLabor(c *gin.Context) {
	var query dto.LaborListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.BadRequest(c, 20001, "参数校验失败")
		return
	}

	list, total, err := h.shiftSvc.ListLaborPaged(c.Request.Context(), &query)
	if err != nil {
		h.handleShiftError(c, err)
		return
	}

	response.OKPage(c, list, total, query.GetPage(), query.GetPageSize())
}

// ── 错误映射 ──

func (h *ShiftHandler) handleShiftError(c *gin.Context, err error) {
	var exists *service.ShiftExistsError
	switch {
	case errors.As(err, &exists):
		response.Conflict(c, 20202, "该操作员当天已存在工作日", exists.ShiftID)
	case errors.Is(err, service.ErrShiftNotFound):
		response.NotFound(c, 20101, "工作日不存在")
	case errors.Is(err, service.ErrOperatorNotFound):
		response.NotFound(c, 20102, "操作员不存在")
	case errors.Is(err, service.ErrNoShifts):
		response.NotFound(c, 20103, "该操作员在此日期没有工作日")
	default:
		handleFieldError(c, err)
	}
}

// bindJSON 绑定请求体；字段类型不符（如集合字段传了标量）时返回带字段定位的 400
func bindJSON(c *gin.Context, obj interface{}) bool {
	err := c.ShouldBindJSON(obj)
	if err == nil {
		return true
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		response.ErrorWithField(c, http.StatusBadRequest, 20005, "字段类型错误", typeErr.Field, typeErr.Value)
		return false
	}
	response.BadRequest(c, 20001, "参数校验失败")
	return false
}

// handleFieldError 结构化字段错误 → 4xx（带 field/value），其余 → 500
func handleFieldError(c *gin.Context, err error) {
	fe, ok := pkgerrors.AsFieldError(err)
	if !ok {
		response.InternalError(c)
		return
	}

	switch {
	case errors.Is(err, pkgerrors.ErrDuplicateSchedule):
		response.Conflict(c, 20201, fe.Error(), pkgerrors.DuplicateScheduleCode)
	case errors.Is(err, pkgerrors.ErrNotFound):
		response.ErrorWithField(c, http.StatusNotFound, 20104, fe.Error(), fe.Field, fe.Value)
	case errors.Is(err, pkgerrors.ErrInvalidIdentifier):
		response.ErrorWithField(c, http.StatusBadRequest, 20002, fe.Error(), fe.Field, fe.Value)
	case errors.Is(err, pkgerrors.ErrInvalidDate):
		response.ErrorWithField(c, http.StatusBadRequest, 20003, fe.Error(), fe.Field, fe.Value)
	case errors.Is(err, pkgerrors.ErrMissingRequiredField):
		response.ErrorWithField(c, http.StatusBadRequest, 20004, fe.Error(), fe.Field, fe.Value)
	case errors.Is(err, pkgerrors.ErrValidation):
		response.ErrorWithField(c, http.StatusBadRequest, 20005, fe.Error(), fe.Field, fe.Value)
	default:
		response.InternalError(c)
	}
}

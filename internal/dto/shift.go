package dto

// ── 工作日模块 DTO ──

// CreateShiftRequest 创建工作日请求（date 为空时取当天）
type CreateShiftRequest struct {
	OperatorID string `json:"operator_id" binding:"required,uuid"`
	Date       string `json:"date"`
}

// UpdateShiftRequest 更新工作日请求；未提供的字段保持不变
type UpdateShiftRequest struct {
	StartTime    *string  `json:"start_time"`
	EndTime      *string  `json:"end_time"`
	ActivityRefs []string `json:"activity_refs" binding:"omitempty,dive,uuid"`
}

// ActivityInput 单条活动录入
// 校验由录入流程统一完成（validate 标签），以便返回带下标的字段定位
type ActivityInput struct {
	WorkOrder        string   `json:"work_order"         validate:"required"`
	ProductionAreaID string   `json:"production_area_id" validate:"required,uuid"`
	MachineIDs       []string `json:"machine_ids"        validate:"required,min=1,dive,required,uuid"`
	ProcessIDs       []string `json:"process_ids"        validate:"required,min=1,dive,required,uuid"`
	SupplyIDs        []string `json:"supply_ids"         validate:"required,min=1,dive,required,uuid"`
	TimeCategory     string   `json:"time_category"      validate:"required"`
	PermitType       *string  `json:"permit_type"`
	StartTime        string   `json:"start_time"         validate:"required"`
	EndTime          string   `json:"end_time"           validate:"required"`
	Minutes          *int     `json:"minutes"` // 调用方提供的时长（分钟），正数时直接采用
	Observations     *string  `json:"observations"       validate:"omitempty,max=2000"`
}

// SaveCompleteRequest 一次性保存整天的工作日与活动
type SaveCompleteRequest struct {
	OperatorID string          `json:"operator_id" binding:"required"`
	Date       string          `json:"date"        binding:"required"`
	StartTime  *string         `json:"start_time"`
	EndTime    *string         `json:"end_time"`
	Activities []ActivityInput `json:"activities"`
}

// ShiftListQuery 工作日列表查询参数
type ShiftListQuery struct {
	Limit int    `form:"limit" binding:"omitempty,min=1,max=1000"`
	Sort  string `form:"sort"` // date | -date | created_at | -created_at
}

// LaborListQuery 工作时段/请假视图分页查询参数
type LaborListQuery struct {
	PaginationRequest
	Operator          string `form:"operator"`
	From              string `form:"from"`
	To                string `form:"to"`
	IncludeActivities bool   `form:"include_activities"`
}

// ── 响应 ──

// DurationResponse {hours, minutes} 时长
type DurationResponse struct {
	Hours   int `json:"hours"`
	Minutes int `json:"minutes"`
}

// OperatorBrief 操作员简要信息
type OperatorBrief struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	IDNumber string `json:"id_number,omitempty"`
}

// ActivityResponse 活动记录响应
type ActivityResponse struct {
	ID               string   `json:"id"`
	ShiftID          string   `json:"shift_id"`
	OperatorID       string   `json:"operator_id"`
	Date             string   `json:"date"`
	WorkOrderID      string   `json:"work_order_id"`
	WorkOrderCode    string   `json:"work_order_code,omitempty"`
	ProductionAreaID string   `json:"production_area_id"`
	MachineIDs       []string `json:"machine_ids"`
	ProcessIDs       []string `json:"process_ids"`
	SupplyIDs        []string `json:"supply_ids"`
	TimeCategory     string   `json:"time_category"`
	PermitType       *string  `json:"permit_type,omitempty"`
	StartTime        string   `json:"start_time"`
	EndTime          string   `json:"end_time"`
	DurationMinutes  int      `json:"duration_minutes"`
	Observations     *string  `json:"observations,omitempty"`
}

// ShiftResponse 工作日响应；effective_payable_time 每次读取时重新计算
type ShiftResponse struct {
	ID                   string             `json:"id"`
	OperatorID           string             `json:"operator_id"`
	Operator             *OperatorBrief     `json:"operator,omitempty"`
	Date                 string             `json:"date"`
	StartTime            *string            `json:"start_time,omitempty"`
	EndTime              *string            `json:"end_time,omitempty"`
	ActivityRefs         []string           `json:"activity_refs"`
	Activities           []ActivityResponse `json:"activities,omitempty"`
	TotalActivityTime    DurationResponse   `json:"total_activity_time"`
	EffectivePayableTime DurationResponse   `json:"effective_payable_time"`
	CreatedAt            string             `json:"created_at"`
	UpdatedAt            string             `json:"updated_at"`
}

// SaveCompleteResponse 整天保存结果
type SaveCompleteResponse struct {
	Shift      ShiftResponse `json:"shift"`
	CreatedIDs []string      `json:"created_ids"`
}

// AddActivityResponse 追加活动结果
type AddActivityResponse struct {
	ActivityID string        `json:"activity_id"`
	Shift      ShiftResponse `json:"shift"`
}

// RecalculateResponse 批量重算统计
type RecalculateResponse struct {
	TotalShifts        int              `json:"total_shifts"`
	Updated            int              `json:"updated"`
	Errors             int              `json:"errors"`
	ShiftsWithOverlaps int              `json:"shifts_with_overlaps"`
	RecoveredMinutes   int              `json:"recovered_minutes"`
	Recovered          DurationResponse `json:"recovered"`
}

// LaborShiftResponse 由工作时段/请假记录按 操作员+日 聚合出的虚拟工作日
type LaborShiftResponse struct {
	ID                   string             `json:"id"` // operator_id + 日期键
	Operator             *OperatorBrief     `json:"operator,omitempty"`
	Date                 string             `json:"date"`
	StartTime            *string            `json:"start_time,omitempty"`
	EndTime              *string            `json:"end_time,omitempty"`
	Activities           []ActivityResponse `json:"activities"`
	EffectivePayableTime DurationResponse   `json:"effective_payable_time"`
}

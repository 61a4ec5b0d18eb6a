package dto

// ── 报表模块 DTO ──

// PermitReportQuery 请假报表查询参数
type PermitReportQuery struct {
	From       string `form:"from"`
	To         string `form:"to"`
	OperatorID string `form:"operator_id" binding:"omitempty,uuid"`
}

// PermitEntry 报表中的单条请假
type PermitEntry struct {
	ActivityID   string  `json:"activity_id"`
	StartTime    string  `json:"start_time"`
	EndTime      string  `json:"end_time"`
	PermitType   string  `json:"permit_type,omitempty"`
	Minutes      int     `json:"minutes"`
	Observations *string `json:"observations,omitempty"`
}

// PermitReportItem 报表中的单个工作日
type PermitReportItem struct {
	ShiftID           string           `json:"shift_id"`
	Date              string           `json:"date"`
	Operator          *OperatorBrief   `json:"operator,omitempty"`
	StartTime         *string          `json:"start_time,omitempty"`
	EndTime           *string          `json:"end_time,omitempty"`
	TotalShiftMinutes int              `json:"total_shift_minutes"`
	TotalActivities   int              `json:"total_activities"`
	Permits           []PermitEntry    `json:"permits"`
	TotalActivityTime DurationResponse `json:"total_activity_time"`
}

// PermitReportResponse 请假报表
type PermitReportResponse struct {
	Total int                `json:"total"`
	Items []PermitReportItem `json:"items"`
}

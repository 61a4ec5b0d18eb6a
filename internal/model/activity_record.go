package model

import (
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ── 时间类别 ──

// TimeCategory 活动记录的时间类别
type TimeCategory string

const (
	CategoryWorkSchedule TimeCategory = "work_schedule" // 工作时段（Horario Laboral）
	CategoryLaborPermit  TimeCategory = "labor_permit"  // 劳动请假（Permiso Laboral）
	CategoryProduction   TimeCategory = "production"
	CategorySetup        TimeCategory = "setup"
	CategoryMeal         TimeCategory = "meal"
	CategoryMaintenance  TimeCategory = "maintenance"
	CategoryOther        TimeCategory = "other"
)

var categoryAliases = map[string]TimeCategory{
	"work_schedule":   CategoryWorkSchedule,
	"horario laboral": CategoryWorkSchedule,
	"labor_permit":    CategoryLaborPermit,
	"permiso laboral": CategoryLaborPermit,
	"production":      CategoryProduction,
	"produccion":      CategoryProduction,
	"setup":           CategorySetup,
	"preparacion":     CategorySetup,
	"meal":            CategoryMeal,
	"alimentacion":    CategoryMeal,
	"maintenance":     CategoryMaintenance,
	"mantenimiento":   CategoryMaintenance,
	"other":           CategoryOther,
	"otro":            CategoryOther,
}

// ParseTimeCategory 时间类别的唯一归一化入口（忽略大小写、重音和多余空白）
func ParseTimeCategory(s string) (TimeCategory, bool) {
	c, ok := categoryAliases[foldLabel(s)]
	return c, ok
}

// ── 请假类型 ──

// PermitType 请假类型，仅在 TimeCategory = labor_permit 时有意义
type PermitType string

const (
	PermitPaid   PermitType = "paid"   // permiso remunerado
	PermitUnpaid PermitType = "unpaid" // permiso NO remunerado
)

var permitAliases = map[string]PermitType{
	"paid":                  PermitPaid,
	"remunerado":            PermitPaid,
	"permiso remunerado":    PermitPaid,
	"unpaid":                PermitUnpaid,
	"no remunerado":         PermitUnpaid,
	"permiso no remunerado": PermitUnpaid,
}

// ParsePermitType 请假类型的唯一归一化入口
func ParsePermitType(s string) (PermitType, bool) {
	p, ok := permitAliases[foldLabel(s)]
	return p, ok
}

var accentFolder = strings.NewReplacer(
	"á", "a", "é", "e", "í", "i", "ó", "o", "ú", "u", "ñ", "n",
)

func foldLabel(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = accentFolder.Replace(s)
	return strings.Join(strings.Fields(s), " ")
}

// ── 活动记录 ──

// ActivityRecord 活动记录（生产记录），对应 activity_records
// ShiftID 为反向引用；正向引用保存在 Shift.ActivityRefs
type ActivityRecord struct {
	ActivityID       string                      `gorm:"type:uuid;primaryKey"                 json:"activity_id"`
	ShiftID          string                      `gorm:"type:uuid;not null;index"             json:"shift_id"`
	OperatorID       string                      `gorm:"type:uuid;not null;index:idx_activity_operator_date" json:"operator_id"`
	Date             time.Time                   `gorm:"not null;index:idx_activity_operator_date" json:"date"`
	WorkOrderID      string                      `gorm:"type:uuid;not null"                   json:"work_order_id"`
	ProductionAreaID string                      `gorm:"type:uuid;not null"                   json:"production_area_id"`
	MachineIDs       datatypes.JSONSlice[string] `gorm:"not null"                             json:"machine_ids"`
	ProcessIDs       datatypes.JSONSlice[string] `gorm:"not null"                             json:"process_ids"`
	SupplyIDs        datatypes.JSONSlice[string] `gorm:"not null"                             json:"supply_ids"`
	TimeCategory     TimeCategory                `gorm:"type:varchar(30);not null;index"      json:"time_category"`
	PermitType       *PermitType                 `gorm:"type:varchar(20)"                     json:"permit_type,omitempty"`
	StartTime        time.Time                   `gorm:"not null"                             json:"start_time"`
	EndTime          time.Time                   `gorm:"not null"                             json:"end_time"`
	DurationMinutes  int                         `gorm:"not null;check:duration_minutes >= 1" json:"duration_minutes"`
	Observations     *string                     `gorm:"type:text"                            json:"observations,omitempty"`
	BaseModel

	// 关联
	Operator  *Operator  `gorm:"foreignKey:OperatorID;references:OperatorID"   json:"operator,omitempty"`
	WorkOrder *WorkOrder `gorm:"foreignKey:WorkOrderID;references:WorkOrderID" json:"work_order,omitempty"`
}

// TableName 指定表名
func (ActivityRecord) TableName() string { return "activity_records" }

// BeforeCreate 补齐主键
func (a *ActivityRecord) BeforeCreate(_ *gorm.DB) error {
	if a.ActivityID == "" {
		a.ActivityID = NewID()
	}
	return nil
}

// IsUnpaidPermit 是否为不带薪请假
func (a *ActivityRecord) IsUnpaidPermit() bool {
	return a.PermitType != nil && *a.PermitType == PermitUnpaid
}

// IsPaidPermit 是否为带薪请假
func (a *ActivityRecord) IsPaidPermit() bool {
	return a.PermitType != nil && *a.PermitType == PermitPaid
}

// HasInterval 开始与结束时间是否都存在
func (a *ActivityRecord) HasInterval() bool {
	return !a.StartTime.IsZero() && !a.EndTime.IsZero()
}

// Interval 返回实际时间区间；结束不晚于开始时视为跨午夜，结束时间顺延 24 小时
func (a *ActivityRecord) Interval() (time.Time, time.Time) {
	end := a.EndTime
	if !end.After(a.StartTime) {
		end = end.Add(24 * time.Hour)
	}
	return a.StartTime, end
}

// OverlapsWith 两条记录的时间区间是否重叠
func (a *ActivityRecord) OverlapsWith(other *ActivityRecord) bool {
	if !a.HasInterval() || !other.HasInterval() {
		return false
	}
	s1, e1 := a.Interval()
	s2, e2 := other.Interval()
	return s1.Before(e2) && s2.Before(e1)
}

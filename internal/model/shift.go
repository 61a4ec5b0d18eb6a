package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Shift 工作日（jornada），对应 shifts
// 一个操作员一个日历日只应有一条；该约束由合并流程修复，而非由表结构强制
type Shift struct {
	ShiftID           string                           `gorm:"type:uuid;primaryKey"                        json:"shift_id"`
	OperatorID        string                           `gorm:"type:uuid;not null;index:idx_shifts_operator_date" json:"operator_id"`
	Date              time.Time                        `gorm:"not null;index:idx_shifts_operator_date"     json:"date"`
	StartTime         *time.Time                       `json:"start_time,omitempty"`
	EndTime           *time.Time                       `json:"end_time,omitempty"`
	ActivityRefs      datatypes.JSONSlice[ActivityRef] `gorm:"not null"                                  json:"activity_refs"`
	TotalActivityTime HoursMinutes                     `gorm:"embedded;embeddedPrefix:total_activity_"     json:"total_activity_time"`
	BaseModel

	// 关联
	Operator *Operator `gorm:"foreignKey:OperatorID;references:OperatorID" json:"operator,omitempty"`
}

// TableName 指定表名
func (Shift) TableName() string { return "shifts" }

// BeforeCreate 补齐主键
func (s *Shift) BeforeCreate(_ *gorm.DB) error {
	if s.ShiftID == "" {
		s.ShiftID = NewID()
	}
	return nil
}

// HasBoundary 开始与结束时间是否都存在
func (s *Shift) HasBoundary() bool {
	return s.StartTime != nil && s.EndTime != nil && !s.StartTime.IsZero() && !s.EndTime.IsZero()
}

// RefIDs 返回活动引用的标识符列表（保持原顺序）
func (s *Shift) RefIDs() []string {
	return RefIDs(s.ActivityRefs)
}

// ── 活动引用 ──

// ActivityRef 工作日对活动记录的引用
// 既可能是裸 ID，也可能是已展开（populate）的记录；两者按标识符视为等价
type ActivityRef struct {
	ID     string
	Record *ActivityRecord
}

// RefTo 由 ID 构造引用
func RefTo(id string) ActivityRef { return ActivityRef{ID: id} }

// RefID 标识符提取：展开的记录优先取记录主键
func (r ActivityRef) RefID() string {
	if r.Record != nil && r.Record.ActivityID != "" {
		return r.Record.ActivityID
	}
	return r.ID
}

// MarshalJSON 始终以裸 ID 存储
func (r ActivityRef) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.RefID())
}

// UnmarshalJSON 兼容裸 ID 与历史遗留的内嵌对象
func (r *ActivityRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var id string
		if err := json.Unmarshal(data, &id); err != nil {
			return err
		}
		*r = ActivityRef{ID: id}
		return nil
	}

	var obj struct {
		LegacyID   string `json:"_id"`
		ID         string `json:"id"`
		ActivityID string `json:"activity_id"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("ActivityRef: 无法解析引用 %s: %w", string(data), err)
	}
	switch {
	case obj.ActivityID != "":
		r.ID = obj.ActivityID
	case obj.LegacyID != "":
		r.ID = obj.LegacyID
	default:
		r.ID = obj.ID
	}
	if r.ID == "" {
		return fmt.Errorf("ActivityRef: 引用缺少标识符 %s", string(data))
	}
	return nil
}

// RefIDs 提取标识符列表
func RefIDs(refs []ActivityRef) []string {
	ids := make([]string, 0, len(refs))
	for _, r := range refs {
		if id := r.RefID(); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// MergeRefs 按标识符去重合并，保持首次出现的顺序
func MergeRefs(groups ...[]ActivityRef) []ActivityRef {
	seen := make(map[string]bool)
	merged := make([]ActivityRef, 0)
	for _, g := range groups {
		for _, r := range g {
			id := r.RefID()
			if id == "" || seen[id] {
				continue
			}
			seen[id] = true
			merged = append(merged, RefTo(id))
		}
	}
	return merged
}

// RefsFromIDs 由 ID 列表构造引用
func RefsFromIDs(ids []string) []ActivityRef {
	refs := make([]ActivityRef, 0, len(ids))
	for _, id := range ids {
		refs = append(refs, RefTo(id))
	}
	return refs
}

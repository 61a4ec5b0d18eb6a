package model

import "gorm.io/gorm"

// WorkOrder 工单（OTI），对应 work_orders
// Code 为人工可读编号，批量录入时可用编号代替 ID，不存在则自动创建
type WorkOrder struct {
	WorkOrderID string `gorm:"type:uuid;primaryKey"                json:"work_order_id"`
	Code        string `gorm:"type:varchar(50);not null;uniqueIndex" json:"code"`
	BaseModel
}

// TableName 指定表名
func (WorkOrder) TableName() string { return "work_orders" }

// BeforeCreate 补齐主键
func (w *WorkOrder) BeforeCreate(_ *gorm.DB) error {
	if w.WorkOrderID == "" {
		w.WorkOrderID = NewID()
	}
	return nil
}

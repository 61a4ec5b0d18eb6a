package model

import "gorm.io/gorm"

// Operator 操作员，对应 operators
type Operator struct {
	OperatorID string `gorm:"type:uuid;primaryKey"          json:"operator_id"`
	Name       string `gorm:"type:varchar(120);not null"    json:"name"`
	IDNumber   string `gorm:"type:varchar(30);index"        json:"id_number"` // 证件号（cédula）
	IsActive   bool   `gorm:"not null;default:true"         json:"is_active"`
	BaseModel
}

// TableName 指定表名
func (Operator) TableName() string { return "operators" }

// BeforeCreate 补齐主键
func (o *Operator) BeforeCreate(_ *gorm.DB) error {
	if o.OperatorID == "" {
		o.OperatorID = NewID()
	}
	return nil
}

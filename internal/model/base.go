package model

import (
	"time"

	"github.com/google/uuid"
)

// BaseModel 通用审计字段（所有业务模型嵌入）
type BaseModel struct {
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// NewID 生成实体主键（客户端生成，便于在持久化前建立双向引用）
func NewID() string {
	return uuid.NewString()
}

// IsValidID 判断是否为合法的实体标识符
func IsValidID(s string) bool {
	if len(s) != 36 {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}

// HoursMinutes {hours, minutes} 时长表示，对外的唯一时长格式
type HoursMinutes struct {
	Hours   int `gorm:"not null;default:0" json:"hours"`
	Minutes int `gorm:"not null;default:0" json:"minutes"`
}

// FromMinutes 分钟数转 {hours, minutes}，负数按 0 处理
func FromMinutes(total int) HoursMinutes {
	if total < 0 {
		total = 0
	}
	return HoursMinutes{Hours: total / 60, Minutes: total % 60}
}

// TotalMinutes 折算为分钟
func (h HoursMinutes) TotalMinutes() int {
	return h.Hours*60 + h.Minutes
}

// IsZero 是否为 0 时长
func (h HoursMinutes) IsZero() bool {
	return h.Hours == 0 && h.Minutes == 0
}

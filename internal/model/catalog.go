package model

import "gorm.io/gorm"

// 活动记录引用的目录类实体：生产区域、机器、工序、物料
// 核心逻辑只校验其存在性，不解释其内容

// CatalogItem 目录实体公共字段
type CatalogItem struct {
	ID       string `gorm:"type:uuid;primaryKey"       json:"id"`
	Name     string `gorm:"type:varchar(120);not null" json:"name"`
	IsActive bool   `gorm:"not null;default:true"      json:"is_active"`
	BaseModel
}

// BeforeCreate 补齐主键
func (c *CatalogItem) BeforeCreate(_ *gorm.DB) error {
	if c.ID == "" {
		c.ID = NewID()
	}
	return nil
}

// ProductionArea 生产区域，production_areas
type ProductionArea struct{ CatalogItem }

func (ProductionArea) TableName() string { return "production_areas" }

// Machine 机器，machines
type Machine struct{ CatalogItem }

func (Machine) TableName() string { return "machines" }

// Process 工序，processes
type Process struct{ CatalogItem }

func (Process) TableName() string { return "processes" }

// Supply 物料，supplies
type Supply struct{ CatalogItem }

func (Supply) TableName() string { return "supplies" }

// CatalogKind 目录类别
type CatalogKind string

const (
	CatalogArea    CatalogKind = "production_area"
	CatalogMachine CatalogKind = "machine"
	CatalogProcess CatalogKind = "process"
	CatalogSupply  CatalogKind = "supply"
)

// TableFor 目录类别对应的表名
func (k CatalogKind) TableFor() string {
	switch k {
	case CatalogArea:
		return ProductionArea{}.TableName()
	case CatalogMachine:
		return Machine{}.TableName()
	case CatalogProcess:
		return Process{}.TableName()
	case CatalogSupply:
		return Supply{}.TableName()
	}
	return ""
}

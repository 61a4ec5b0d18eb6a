package repository

import (
	"context"

	"gorm.io/gorm"
)

// Repository 所有 Repository 的聚合入口
type Repository struct {
	db *gorm.DB

	Shift     ShiftRepository
	Activity  ActivityRepository
	Operator  OperatorRepository
	WorkOrder WorkOrderRepository
	Catalog   CatalogRepository
}

// NewRepository 创建 Repository 聚合
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		db:        db,
		Shift:     NewShiftRepo(db),
		Activity:  NewActivityRepo(db),
		Operator:  NewOperatorRepo(db),
		WorkOrder: NewWorkOrderRepo(db),
		Catalog:   NewCatalogRepo(db),
	}
}

// WithTx 返回绑定到事务连接的 Repository 聚合
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return NewRepository(tx)
}

// Transaction 在单个数据库事务内执行 fn
// 未绑定数据库（测试中手工组装的聚合）时直接执行
func (r *Repository) Transaction(ctx context.Context, fn func(txRepo *Repository) error) error {
	if r.db == nil {
		return fn(r)
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(r.WithTx(tx))
	})
}

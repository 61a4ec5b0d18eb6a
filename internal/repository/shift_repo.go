package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"jornadas/backend/internal/model"
	"jornadas/backend/pkg/dateutil"
)

// ShiftFilter 工作日查询条件
type ShiftFilter struct {
	OperatorID  string
	OperatorIDs []string
	From        *time.Time
	To          *time.Time
	OrderBy     string // date | created_at | updated_at
	Desc        bool
	Limit       int
}

// ShiftRepository 工作日数据访问接口
type ShiftRepository interface {
	Create(ctx context.Context, shift *model.Shift) error
	GetByID(ctx context.Context, id string) (*model.Shift, error)
	FindByOperatorAndDay(ctx context.Context, operatorID string, day dateutil.Range) (*model.Shift, error)
	List(ctx context.Context, filter ShiftFilter) ([]model.Shift, error)
	ListIDs(ctx context.Context) ([]string, error)
	Update(ctx context.Context, shift *model.Shift) error
	UpdateDate(ctx context.Context, id string, date time.Time) error
	Delete(ctx context.Context, id string) error
}

type shiftRepo struct {
	db *gorm.DB
}

// NewShiftRepo 创建 ShiftRepository 实例
func NewShiftRepo(db *gorm.DB) ShiftRepository {
	return &shiftRepo{db: db}
}

var shiftOrderColumns = map[string]string{
	"date":       "date",
	"created_at": "created_at",
	"updated_at": "updated_at",
}

func (r *shiftRepo) Create(ctx context.Context, shift *model.Shift) error {
	if shift.ActivityRefs == nil {
		shift.ActivityRefs = []model.ActivityRef{}
	}
	return r.db.WithContext(ctx).Create(shift).Error
}

func (r *shiftRepo) GetByID(ctx context.Context, id string) (*model.Shift, error) {
	var shift model.Shift
	err := r.db.WithContext(ctx).
		Preload("Operator").
		Where("shift_id = ?", id).
		First(&shift).Error
	if err != nil {
		return nil, err
	}
	return &shift, nil
}

func (r *shiftRepo) FindByOperatorAndDay(ctx context.Context, operatorID string, day dateutil.Range) (*model.Shift, error) {
	var shift model.Shift
	err := r.db.WithContext(ctx).
		Where("operator_id = ? AND date >= ? AND date <= ?", operatorID, day.Start, day.End).
		Order("created_at ASC").
		First(&shift).Error
	if err != nil {
		return nil, err
	}
	return &shift, nil
}

func (r *shiftRepo) List(ctx context.Context, filter ShiftFilter) ([]model.Shift, error) {
	db := r.db.WithContext(ctx).Model(&model.Shift{}).Preload("Operator")

	if filter.OperatorID != "" {
		db = db.Where("operator_id = ?", filter.OperatorID)
	}
	if len(filter.OperatorIDs) > 0 {
		db = db.Where("operator_id IN ?", filter.OperatorIDs)
	}
	if filter.From != nil {
		db = db.Where("date >= ?", *filter.From)
	}
	if filter.To != nil {
		db = db.Where("date <= ?", *filter.To)
	}

	column, ok := shiftOrderColumns[filter.OrderBy]
	if !ok {
		column = "date"
	}
	if filter.Desc {
		column += " DESC"
	} else {
		column += " ASC"
	}
	db = db.Order(column)

	if filter.Limit > 0 {
		db = db.Limit(filter.Limit)
	}

	var shifts []model.Shift
	err := db.Find(&shifts).Error
	return shifts, err
}

func (r *shiftRepo) ListIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&model.Shift{}).
		Order("date DESC").
		Pluck("shift_id", &ids).Error
	return ids, err
}

// Update 整体覆盖写入（无版本号校验，后写覆盖先写）
func (r *shiftRepo) Update(ctx context.Context, shift *model.Shift) error {
	if shift.ActivityRefs == nil {
		shift.ActivityRefs = []model.ActivityRef{}
	}
	return r.db.WithContext(ctx).
		Model(shift).
		Where("shift_id = ?", shift.ShiftID).
		Select("operator_id", "date", "start_time", "end_time", "activity_refs",
			"total_activity_hours", "total_activity_minutes", "updated_at").
		Updates(shift).Error
}

func (r *shiftRepo) UpdateDate(ctx context.Context, id string, date time.Time) error {
	return r.db.WithContext(ctx).
		Model(&model.Shift{}).
		Where("shift_id = ?", id).
		Updates(map[string]interface{}{
			"date":       date,
			"updated_at": time.Now(),
		}).Error
}

// Delete 硬删除；记录不存在时返回 gorm.ErrRecordNotFound
func (r *shiftRepo) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).
		Where("shift_id = ?", id).
		Delete(&model.Shift{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

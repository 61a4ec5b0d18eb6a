package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"jornadas/backend/internal/model"
	"jornadas/backend/pkg/dateutil"
	pkgerrors "jornadas/backend/pkg/errors"
)

// LaborFilter 工作时段/请假类活动查询条件
type LaborFilter struct {
	Categories  []model.TimeCategory
	OperatorIDs []string
	From        *time.Time
	To          *time.Time
}

// ActivityRepository 活动记录数据访问接口
type ActivityRepository interface {
	// Create 写入记录；工作时段与同日已有工作时段重叠时返回 ErrDuplicateSchedule
	Create(ctx context.Context, record *model.ActivityRecord) error
	GetByID(ctx context.Context, id string) (*model.ActivityRecord, error)
	// ListByIDs 按 ID 批量读取（含工单），即读时关联展开
	ListByIDs(ctx context.Context, ids []string) ([]model.ActivityRecord, error)
	ListLabor(ctx context.Context, filter LaborFilter) ([]model.ActivityRecord, error)
	ListWorkSchedules(ctx context.Context, operatorID string, day dateutil.Range) ([]model.ActivityRecord, error)
	ReassignShift(ctx context.Context, ids []string, shiftID string) error
}

type activityRepo struct {
	db *gorm.DB
}

// NewActivityRepo 创建 ActivityRepository 实例
func NewActivityRepo(db *gorm.DB) ActivityRepository {
	return &activityRepo{db: db}
}

func (r *activityRepo) Create(ctx context.Context, record *model.ActivityRecord) error {
	if record.TimeCategory == model.CategoryWorkSchedule {
		existing, err := r.ListWorkSchedules(ctx, record.OperatorID, dateutil.DayRange(record.Date))
		if err != nil {
			return err
		}
		if conflict := FindScheduleConflict(record, existing); conflict != nil {
			return pkgerrors.DuplicateSchedule("time_category",
				fmt.Sprintf("与已有工作时段 %s 重叠", conflict.ActivityID))
		}
	}
	if record.MachineIDs == nil {
		record.MachineIDs = []string{}
	}
	if record.ProcessIDs == nil {
		record.ProcessIDs = []string{}
	}
	if record.SupplyIDs == nil {
		record.SupplyIDs = []string{}
	}
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *activityRepo) GetByID(ctx context.Context, id string) (*model.ActivityRecord, error) {
	var record model.ActivityRecord
	err := r.db.WithContext(ctx).
		Preload("WorkOrder").
		Where("activity_id = ?", id).
		First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *activityRepo) ListByIDs(ctx context.Context, ids []string) ([]model.ActivityRecord, error) {
	if len(ids) == 0 {
		return []model.ActivityRecord{}, nil
	}
	var records []model.ActivityRecord
	err := r.db.WithContext(ctx).
		Preload("WorkOrder").
		Where("activity_id IN ?", ids).
		Order("start_time ASC").
		Find(&records).Error
	return records, err
}

func (r *activityRepo) ListLabor(ctx context.Context, filter LaborFilter) ([]model.ActivityRecord, error) {
	db := r.db.WithContext(ctx).Preload("Operator")

	categories := filter.Categories
	if len(categories) == 0 {
		categories = []model.TimeCategory{model.CategoryWorkSchedule, model.CategoryLaborPermit}
	}
	db = db.Where("time_category IN ?", categories)

	if len(filter.OperatorIDs) > 0 {
		db = db.Where("operator_id IN ?", filter.OperatorIDs)
	}
	if filter.From != nil {
		db = db.Where("date >= ?", *filter.From)
	}
	if filter.To != nil {
		db = db.Where("date <= ?", *filter.To)
	}

	var records []model.ActivityRecord
	err := db.Order("date DESC, start_time ASC").Find(&records).Error
	return records, err
}

func (r *activityRepo) ListWorkSchedules(ctx context.Context, operatorID string, day dateutil.Range) ([]model.ActivityRecord, error) {
	var records []model.ActivityRecord
	err := r.db.WithContext(ctx).
		Where("operator_id = ? AND time_category = ? AND date >= ? AND date <= ?",
			operatorID, model.CategoryWorkSchedule, day.Start, day.End).
		Find(&records).Error
	return records, err
}

// ReassignShift 改写反向引用（合并工作日后指向新记录）
func (r *activityRepo) ReassignShift(ctx context.Context, ids []string, shiftID string) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&model.ActivityRecord{}).
		Where("activity_id IN ?", ids).
		Updates(map[string]interface{}{
			"shift_id":   shiftID,
			"updated_at": time.Now(),
		}).Error
}

// FindScheduleConflict 在 existing 中查找与 record 重叠的工作时段
func FindScheduleConflict(record *model.ActivityRecord, existing []model.ActivityRecord) *model.ActivityRecord {
	if record.TimeCategory != model.CategoryWorkSchedule {
		return nil
	}
	for i := range existing {
		other := &existing[i]
		if other.TimeCategory != model.CategoryWorkSchedule {
			continue
		}
		if record.ActivityID != "" && other.ActivityID == record.ActivityID {
			continue
		}
		if other.OperatorID != record.OperatorID {
			continue
		}
		if record.OverlapsWith(other) {
			return other
		}
	}
	return nil
}

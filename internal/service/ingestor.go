package service

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"jornadas/backend/internal/dto"
	"jornadas/backend/internal/model"
	"jornadas/backend/internal/repository"
	"jornadas/backend/pkg/dateutil"
	pkgerrors "jornadas/backend/pkg/errors"
)

// IngestResult 录入结果
type IngestResult struct {
	Shift      *model.Shift
	CreatedIDs []string
	Activities []model.ActivityRecord // 工作日引用的全部活动（含新建）
}

// ActivityIngestor 校验并写入活动记录，维护工作日与活动的双向引用
type ActivityIngestor struct {
	repo     *repository.Repository
	validate *validator.Validate
	logger   *zap.Logger
}

// NewActivityIngestor 创建 ActivityIngestor
func NewActivityIngestor(repo *repository.Repository, logger *zap.Logger) *ActivityIngestor {
	v := validator.New(validator.WithRequiredStructEnabled())
	// 错误字段使用 json 名称，如 machine_ids[2]
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &ActivityIngestor{repo: repo, validate: v, logger: logger}
}

type preparedActivity struct {
	record    *model.ActivityRecord
	workOrder string // ID 或工单编号
}

// IngestBatch 批量录入：先校验全部活动，任一不合法则不写入任何记录
// shift.ShiftID 为空表示尚未持久化的新工作日，与活动在同一事务内创建
func (in *ActivityIngestor) IngestBatch(ctx context.Context, shift *model.Shift, inputs []dto.ActivityInput) (*IngestResult, error) {
	if len(inputs) == 0 {
		return nil, pkgerrors.MissingField("activities")
	}
	return in.ingest(ctx, shift, inputs, func(i int) string {
		return fmt.Sprintf("activities[%d]", i)
	})
}

// IngestSingle 向已有工作日追加一条活动
func (in *ActivityIngestor) IngestSingle(ctx context.Context, shiftID string, input dto.ActivityInput) (string, *IngestResult, error) {
	if !model.IsValidID(shiftID) {
		return "", nil, pkgerrors.InvalidIdentifier("shift_id", shiftID)
	}
	shift, err := in.repo.Shift.GetByID(ctx, shiftID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil, ErrShiftNotFound
		}
		in.logger.Error("查询工作日失败", zap.String("shift_id", shiftID), zap.Error(err))
		return "", nil, err
	}

	result, err := in.ingest(ctx, shift, []dto.ActivityInput{input}, nil)
	if err != nil {
		return "", nil, err
	}
	return result.CreatedIDs[0], result, nil
}

func (in *ActivityIngestor) ingest(ctx context.Context, shift *model.Shift, inputs []dto.ActivityInput, prefix func(int) string) (*IngestResult, error) {
	withPrefix := func(i int, err error) error {
		if prefix == nil {
			return err
		}
		if fe, ok := pkgerrors.AsFieldError(err); ok {
			return fe.WithPrefix(prefix(i))
		}
		return err
	}

	// ── 阶段1: 校验（只读） ──

	var existingSchedules []model.ActivityRecord
	schedulesLoaded := false

	prepared := make([]preparedActivity, 0, len(inputs))
	for i := range inputs {
		p, err := in.prepare(ctx, shift, &inputs[i])
		if err != nil {
			return nil, withPrefix(i, err)
		}

		if p.record.TimeCategory == model.CategoryWorkSchedule {
			if !schedulesLoaded {
				existingSchedules, err = in.repo.Activity.ListWorkSchedules(ctx, shift.OperatorID, dateutil.DayRange(shift.Date))
				if err != nil {
					in.logger.Error("查询已有工作时段失败", zap.String("operator_id", shift.OperatorID), zap.Error(err))
					return nil, err
				}
				schedulesLoaded = true
			}
			if conflict := repository.FindScheduleConflict(p.record, existingSchedules); conflict != nil {
				return nil, withPrefix(i, pkgerrors.DuplicateSchedule("time_category",
					fmt.Sprintf("与工作时段 %s 重叠", describeInterval(conflict))))
			}
			existingSchedules = append(existingSchedules, *p.record)
		}

		prepared = append(prepared, p)
	}

	// ── 阶段2: 顺序写入 ──

	isNew := shift.ShiftID == ""
	updated := *shift
	if isNew {
		updated.ShiftID = model.NewID()
	}
	var created []string
	var activities []model.ActivityRecord

	err := in.repo.Transaction(ctx, func(tx *repository.Repository) error {
		codeCache := make(map[string]string)
		for i, p := range prepared {
			woID, err := in.resolveWorkOrder(ctx, tx, p.workOrder, codeCache)
			if err != nil {
				return err
			}
			p.record.WorkOrderID = woID
			p.record.ShiftID = updated.ShiftID

			if err := tx.Activity.Create(ctx, p.record); err != nil {
				return withPrefix(i, err)
			}
			created = append(created, p.record.ActivityID)
		}

		updated.ActivityRefs = model.MergeRefs(shift.ActivityRefs, model.RefsFromIDs(created))

		var err error
		activities, err = tx.Activity.ListByIDs(ctx, updated.RefIDs())
		if err != nil {
			return err
		}
		updated, _ = Recompute(updated, activities)
		if isNew {
			return tx.Shift.Create(ctx, &updated)
		}
		return tx.Shift.Update(ctx, &updated)
	})
	if err != nil {
		if _, ok := pkgerrors.AsFieldError(err); !ok {
			in.logger.Error("写入活动记录失败", zap.String("shift_id", shift.ShiftID), zap.Error(err))
		}
		return nil, err
	}

	*shift = updated
	in.logger.Info("活动记录已写入",
		zap.String("shift_id", shift.ShiftID),
		zap.String("operator_id", shift.OperatorID),
		zap.Int("count", len(created)))

	return &IngestResult{Shift: shift, CreatedIDs: created, Activities: activities}, nil
}

// prepare 校验单条输入并构造待写入记录（不写库）
func (in *ActivityIngestor) prepare(ctx context.Context, shift *model.Shift, input *dto.ActivityInput) (preparedActivity, error) {
	if err := in.validate.Struct(input); err != nil {
		return preparedActivity{}, toFieldError(err)
	}

	start, err := dateutil.Parse(input.StartTime)
	if err != nil {
		return preparedActivity{}, pkgerrors.InvalidDate("start_time", input.StartTime)
	}
	end, err := dateutil.Parse(input.EndTime)
	if err != nil {
		return preparedActivity{}, pkgerrors.InvalidDate("end_time", input.EndTime)
	}

	category, ok := model.ParseTimeCategory(input.TimeCategory)
	if !ok {
		return preparedActivity{}, pkgerrors.Validation("time_category", input.TimeCategory, "未知的时间类别")
	}

	var permit *model.PermitType
	if category == model.CategoryLaborPermit && input.PermitType != nil && strings.TrimSpace(*input.PermitType) != "" {
		p, ok := model.ParsePermitType(*input.PermitType)
		if !ok {
			return preparedActivity{}, pkgerrors.Validation("permit_type", *input.PermitType, "未知的请假类型")
		}
		permit = &p
	}

	if err := in.checkCatalog(ctx, input); err != nil {
		return preparedActivity{}, err
	}

	workOrder := strings.TrimSpace(input.WorkOrder)
	if model.IsValidID(workOrder) {
		if _, err := in.repo.WorkOrder.GetByID(ctx, workOrder); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return preparedActivity{}, pkgerrors.NotFound("work_order", workOrder)
			}
			return preparedActivity{}, err
		}
	}

	record := &model.ActivityRecord{
		ShiftID:          shift.ShiftID,
		OperatorID:       shift.OperatorID,
		Date:             dateutil.Normalize(shift.Date),
		ProductionAreaID: input.ProductionAreaID,
		MachineIDs:       input.MachineIDs,
		ProcessIDs:       input.ProcessIDs,
		SupplyIDs:        input.SupplyIDs,
		TimeCategory:     category,
		PermitType:       permit,
		StartTime:        start,
		EndTime:          end,
		DurationMinutes:  ActivityDuration(start, end, input.Minutes),
		Observations:     input.Observations,
	}
	return preparedActivity{record: record, workOrder: workOrder}, nil
}

func (in *ActivityIngestor) checkCatalog(ctx context.Context, input *dto.ActivityInput) error {
	checks := []struct {
		kind  model.CatalogKind
		field string
		ids   []string
		list  bool
	}{
		{model.CatalogArea, "production_area_id", []string{input.ProductionAreaID}, false},
		{model.CatalogMachine, "machine_ids", input.MachineIDs, true},
		{model.CatalogProcess, "process_ids", input.ProcessIDs, true},
		{model.CatalogSupply, "supply_ids", input.SupplyIDs, true},
	}
	for _, c := range checks {
		missing, err := in.repo.Catalog.MissingIDs(ctx, c.kind, c.ids)
		if err != nil {
			in.logger.Error("校验目录实体失败", zap.String("kind", string(c.kind)), zap.Error(err))
			return err
		}
		if len(missing) == 0 {
			continue
		}
		field := c.field
		if c.list {
			field = fmt.Sprintf("%s[%d]", c.field, indexOf(c.ids, missing[0]))
		}
		return pkgerrors.NotFound(field, missing[0])
	}
	return nil
}

// resolveWorkOrder 合法 ID 直接使用；否则按工单编号查找，不存在则创建
func (in *ActivityIngestor) resolveWorkOrder(ctx context.Context, tx *repository.Repository, value string, cache map[string]string) (string, error) {
	if model.IsValidID(value) {
		return value, nil
	}
	if id, ok := cache[value]; ok {
		return id, nil
	}

	order, err := tx.WorkOrder.GetByCode(ctx, value)
	if err == nil {
		cache[value] = order.WorkOrderID
		return order.WorkOrderID, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", err
	}

	order = &model.WorkOrder{Code: value}
	if err := tx.WorkOrder.Create(ctx, order); err != nil {
		return "", fmt.Errorf("创建工单 %s 失败: %w", value, err)
	}
	in.logger.Info("按编号创建工单", zap.String("code", value), zap.String("work_order_id", order.WorkOrderID))
	cache[value] = order.WorkOrderID
	return order.WorkOrderID, nil
}

// toFieldError validator 错误转换为结构化字段错误（取第一条）
func toFieldError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	fe := verrs[0]

	// Namespace 形如 ActivityInput.machine_ids[2]，去掉类型名
	field := fe.Namespace()
	if i := strings.Index(field, "."); i >= 0 {
		field = field[i+1:]
	}

	switch fe.Tag() {
	case "required", "min":
		return pkgerrors.MissingField(field)
	case "uuid":
		return pkgerrors.InvalidIdentifier(field, fmt.Sprint(fe.Value()))
	default:
		return pkgerrors.Validation(field, fmt.Sprint(fe.Value()), fe.Tag())
	}
}

func indexOf(ids []string, id string) int {
	for i, v := range ids {
		if v == id {
			return i
		}
	}
	return -1
}

func describeInterval(a *model.ActivityRecord) string {
	return fmt.Sprintf("%s-%s", a.StartTime.UTC().Format("15:04"), a.EndTime.UTC().Format("15:04"))
}

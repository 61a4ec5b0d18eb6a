package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"jornadas/backend/internal/dto"
	"jornadas/backend/internal/model"
	"jornadas/backend/internal/repository"
	"jornadas/backend/pkg/dateutil"
	pkgerrors "jornadas/backend/pkg/errors"
)

// ── 工作日模块业务错误 ──

var (
	ErrShiftNotFound      = errors.New("工作日不存在")
	ErrOperatorNotFound   = errors.New("操作员不存在")
	ErrShiftAlreadyExists = errors.New("该操作员当天已存在工作日")
	ErrNoShifts           = errors.New("该操作员在此日期没有工作日")
)

// ShiftExistsError 创建重复工作日时返回，携带已存在记录的 ID
type ShiftExistsError struct {
	ShiftID string
}

func (e *ShiftExistsError) Error() string { return ErrShiftAlreadyExists.Error() }

// Unwrap 使 errors.Is(err, ErrShiftAlreadyExists) 生效
func (e *ShiftExistsError) Unwrap() error { return ErrShiftAlreadyExists }

const timeLayout = time.RFC3339

// ShiftService 工作日业务接口
type ShiftService interface {
	// 创建当天的工作日（同一操作员同一天已存在时拒绝）
	Create(ctx context.Context, req *dto.CreateShiftRequest) (*dto.ShiftResponse, error)
	// 全部工作日
	List(ctx context.Context, query *dto.ShiftListQuery) ([]dto.ShiftResponse, error)
	Get(ctx context.Context, id string) (*dto.ShiftResponse, error)
	Update(ctx context.Context, id string, req *dto.UpdateShiftRequest) (*dto.ShiftResponse, error)
	Delete(ctx context.Context, id string) error
	// 操作员的工作日（返回前先合并重复记录），date 可为空
	ListByOperator(ctx context.Context, operatorID, date string) ([]dto.ShiftResponse, error)
	ListByOperatorAndDate(ctx context.Context, operatorID, date string) ([]dto.ShiftResponse, error)
	// 向工作日追加一条活动
	AddActivity(ctx context.Context, shiftID string, input *dto.ActivityInput) (*dto.AddActivityResponse, error)
	// 一次性保存整天的工作日与活动
	SaveComplete(ctx context.Context, req *dto.SaveCompleteRequest) (*dto.SaveCompleteResponse, error)
	// 重新计算所有工作日的缓存工时，单条失败计数后跳过
	RecalculateAll(ctx context.Context) (*dto.RecalculateResponse, error)
	// 由工作时段/请假记录聚合出的虚拟工作日（分页）
	ListLaborPaged(ctx context.Context, query *dto.LaborListQuery) ([]dto.LaborShiftResponse, int64, error)
}

type shiftService struct {
	repo         *repository.Repository
	consolidator *ShiftConsolidator
	ingestor     *ActivityIngestor
	logger       *zap.Logger
}

// NewShiftService 创建 ShiftService 实例
func NewShiftService(repo *repository.Repository, consolidator *ShiftConsolidator, ingestor *ActivityIngestor, logger *zap.Logger) ShiftService {
	return &shiftService{repo: repo, consolidator: consolidator, ingestor: ingestor, logger: logger}
}

// ════════════════════════════════════════════════════════════
// CRUD
// ════════════════════════════════════════════════════════════

func (s *shiftService) Create(ctx context.Context, req *dto.CreateShiftRequest) (*dto.ShiftResponse, error) {
	if err := s.ensureOperator(ctx, req.OperatorID); err != nil {
		return nil, err
	}

	day := dateutil.Normalize(time.Now())
	if strings.TrimSpace(req.Date) != "" {
		d, err := dateutil.ParseDay(req.Date)
		if err != nil {
			return nil, pkgerrors.InvalidDate("date", req.Date)
		}
		day = d
	}

	existing, err := s.repo.Shift.FindByOperatorAndDay(ctx, req.OperatorID, dateutil.DayRange(day))
	if err == nil {
		return nil, &ShiftExistsError{ShiftID: existing.ShiftID}
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Error("查询已有工作日失败", zap.String("operator_id", req.OperatorID), zap.Error(err))
		return nil, err
	}

	shift := &model.Shift{
		OperatorID:   req.OperatorID,
		Date:         day,
		ActivityRefs: []model.ActivityRef{},
	}
	if err := s.repo.Shift.Create(ctx, shift); err != nil {
		s.logger.Error("创建工作日失败", zap.String("operator_id", req.OperatorID), zap.Error(err))
		return nil, err
	}

	resp := toShiftResponse(shift, nil)
	return &resp, nil
}

func (s *shiftService) List(ctx context.Context, query *dto.ShiftListQuery) ([]dto.ShiftResponse, error) {
	filter := repository.ShiftFilter{OrderBy: "date", Desc: true}
	if query != nil {
		filter.Limit = query.Limit
		if query.Sort != "" {
			filter.OrderBy = strings.TrimPrefix(query.Sort, "-")
			filter.Desc = strings.HasPrefix(query.Sort, "-")
		}
	}

	shifts, err := s.repo.Shift.List(ctx, filter)
	if err != nil {
		s.logger.Error("查询工作日列表失败", zap.Error(err))
		return nil, err
	}
	return s.buildResponses(ctx, shifts)
}

func (s *shiftService) Get(ctx context.Context, id string) (*dto.ShiftResponse, error) {
	shift, err := s.getShift(ctx, id)
	if err != nil {
		return nil, err
	}
	activities, err := s.repo.Activity.ListByIDs(ctx, shift.RefIDs())
	if err != nil {
		s.logger.Error("查询工作日活动失败", zap.String("shift_id", id), zap.Error(err))
		return nil, err
	}
	resp := toShiftResponse(shift, orderByRefs(shift, activities))
	return &resp, nil
}

func (s *shiftService) Update(ctx context.Context, id string, req *dto.UpdateShiftRequest) (*dto.ShiftResponse, error) {
	shift, err := s.getShift(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.StartTime != nil {
		t, err := parseOptionalTime("start_time", *req.StartTime)
		if err != nil {
			return nil, err
		}
		shift.StartTime = t
	}
	if req.EndTime != nil {
		t, err := parseOptionalTime("end_time", *req.EndTime)
		if err != nil {
			return nil, err
		}
		shift.EndTime = t
	}
	if req.ActivityRefs != nil {
		for i, ref := range req.ActivityRefs {
			if !model.IsValidID(ref) {
				return nil, pkgerrors.InvalidIdentifier(fmtIndex("activity_refs", i), ref)
			}
		}
		shift.ActivityRefs = model.MergeRefs(model.RefsFromIDs(req.ActivityRefs))
	}

	activities, err := s.repo.Activity.ListByIDs(ctx, shift.RefIDs())
	if err != nil {
		s.logger.Error("查询工作日活动失败", zap.String("shift_id", id), zap.Error(err))
		return nil, err
	}
	updated, _ := Recompute(*shift, activities)

	if err := s.repo.Shift.Update(ctx, &updated); err != nil {
		s.logger.Error("更新工作日失败", zap.String("shift_id", id), zap.Error(err))
		return nil, err
	}

	resp := toShiftResponse(&updated, orderByRefs(&updated, activities))
	return &resp, nil
}

func (s *shiftService) Delete(ctx context.Context, id string) error {
	if !model.IsValidID(id) {
		return pkgerrors.InvalidIdentifier("id", id)
	}
	if err := s.repo.Shift.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrShiftNotFound
		}
		s.logger.Error("删除工作日失败", zap.String("shift_id", id), zap.Error(err))
		return err
	}
	return nil
}

// ════════════════════════════════════════════════════════════
// 按操作员查询（读路径上合并重复工作日）
// ════════════════════════════════════════════════════════════

func (s *shiftService) ListByOperator(ctx context.Context, operatorID, date string) ([]dto.ShiftResponse, error) {
	if err := s.ensureOperator(ctx, operatorID); err != nil {
		return nil, err
	}

	filter := repository.ShiftFilter{OperatorID: operatorID, OrderBy: "date", Desc: true}
	if strings.TrimSpace(date) != "" {
		day, err := dateutil.ParseDayRange(date)
		if err != nil {
			return nil, pkgerrors.InvalidDate("date", date)
		}
		filter.From, filter.To = &day.Start, &day.End
	}

	shifts, err := s.repo.Shift.List(ctx, filter)
	if err != nil {
		s.logger.Error("查询操作员工作日失败", zap.String("operator_id", operatorID), zap.Error(err))
		return nil, err
	}

	consolidated, err := s.consolidator.Consolidate(ctx, operatorID, shifts)
	if err != nil {
		return nil, err
	}
	return s.buildResponses(ctx, consolidated)
}

func (s *shiftService) ListByOperatorAndDate(ctx context.Context, operatorID, date string) ([]dto.ShiftResponse, error) {
	if !model.IsValidID(operatorID) {
		return nil, pkgerrors.InvalidIdentifier("operator_id", operatorID)
	}
	day, err := dateutil.ParseDayRange(date)
	if err != nil {
		return nil, pkgerrors.InvalidDate("date", date)
	}

	shifts, err := s.repo.Shift.List(ctx, repository.ShiftFilter{
		OperatorID: operatorID,
		From:       &day.Start,
		To:         &day.End,
		OrderBy:    "created_at",
	})
	if err != nil {
		s.logger.Error("查询操作员工作日失败", zap.String("operator_id", operatorID), zap.Error(err))
		return nil, err
	}
	if len(shifts) == 0 {
		return nil, ErrNoShifts
	}

	consolidated, err := s.consolidator.Consolidate(ctx, operatorID, shifts)
	if err != nil {
		return nil, err
	}
	return s.buildResponses(ctx, consolidated)
}

// ════════════════════════════════════════════════════════════
// 活动录入
// ════════════════════════════════════════════════════════════

func (s *shiftService) AddActivity(ctx context.Context, shiftID string, input *dto.ActivityInput) (*dto.AddActivityResponse, error) {
	activityID, result, err := s.ingestor.IngestSingle(ctx, shiftID, *input)
	if err != nil {
		return nil, err
	}
	return &dto.AddActivityResponse{
		ActivityID: activityID,
		Shift:      toShiftResponse(result.Shift, orderByRefs(result.Shift, result.Activities)),
	}, nil
}

func (s *shiftService) SaveComplete(ctx context.Context, req *dto.SaveCompleteRequest) (*dto.SaveCompleteResponse, error) {
	if err := s.ensureOperator(ctx, req.OperatorID); err != nil {
		return nil, err
	}
	day, err := dateutil.ParseDay(req.Date)
	if err != nil {
		return nil, pkgerrors.InvalidDate("date", req.Date)
	}
	if len(req.Activities) == 0 {
		return nil, pkgerrors.MissingField("activities")
	}

	var start, end *time.Time
	if req.StartTime != nil {
		if start, err = parseOptionalTime("start_time", *req.StartTime); err != nil {
			return nil, err
		}
	}
	if req.EndTime != nil {
		if end, err = parseOptionalTime("end_time", *req.EndTime); err != nil {
			return nil, err
		}
	}

	shift, err := s.repo.Shift.FindByOperatorAndDay(ctx, req.OperatorID, dateutil.DayRange(day))
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Error("查询工作日失败", zap.String("operator_id", req.OperatorID), zap.Error(err))
			return nil, err
		}
		// 新工作日与活动一起写入
		shift = &model.Shift{
			OperatorID:   req.OperatorID,
			Date:         day,
			ActivityRefs: []model.ActivityRef{},
		}
	}

	// 只用非空且不同的值覆盖边界时间，省略不会清空已有值
	if start != nil && (shift.StartTime == nil || !shift.StartTime.Equal(*start)) {
		shift.StartTime = start
	}
	if end != nil && (shift.EndTime == nil || !shift.EndTime.Equal(*end)) {
		shift.EndTime = end
	}

	result, err := s.ingestor.IngestBatch(ctx, shift, req.Activities)
	if err != nil {
		return nil, err
	}

	return &dto.SaveCompleteResponse{
		Shift:      toShiftResponse(result.Shift, orderByRefs(result.Shift, result.Activities)),
		CreatedIDs: result.CreatedIDs,
	}, nil
}

// ════════════════════════════════════════════════════════════
// RecalculateAll 批量重算
// ════════════════════════════════════════════════════════════

func (s *shiftService) RecalculateAll(ctx context.Context) (*dto.RecalculateResponse, error) {
	ids, err := s.repo.Shift.ListIDs(ctx)
	if err != nil {
		s.logger.Error("查询工作日 ID 失败", zap.Error(err))
		return nil, err
	}

	stats := &dto.RecalculateResponse{TotalShifts: len(ids)}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		totals, err := s.recalculateOne(ctx, id)
		if err != nil {
			stats.Errors++
			s.logger.Warn("重算工作日失败，跳过", zap.String("shift_id", id), zap.Error(err))
			continue
		}
		stats.Updated++
		if totals.Overlaps {
			stats.ShiftsWithOverlaps++
			stats.RecoveredMinutes += totals.RecoveredMinutes()
		}
	}
	stats.Recovered = toDuration(model.FromMinutes(stats.RecoveredMinutes))

	s.logger.Info("工作日重算完成",
		zap.Int("total", stats.TotalShifts),
		zap.Int("updated", stats.Updated),
		zap.Int("errors", stats.Errors),
		zap.Int("with_overlaps", stats.ShiftsWithOverlaps),
		zap.Int("recovered_minutes", stats.RecoveredMinutes))

	return stats, nil
}

func (s *shiftService) recalculateOne(ctx context.Context, id string) (ActivityTotals, error) {
	shift, err := s.repo.Shift.GetByID(ctx, id)
	if err != nil {
		return ActivityTotals{}, err
	}
	activities, err := s.repo.Activity.ListByIDs(ctx, shift.RefIDs())
	if err != nil {
		return ActivityTotals{}, err
	}

	updated, totals := Recompute(*shift, activities)
	if updated.TotalActivityTime != shift.TotalActivityTime {
		if err := s.repo.Shift.Update(ctx, &updated); err != nil {
			return ActivityTotals{}, err
		}
	}
	return totals, nil
}

// ════════════════════════════════════════════════════════════
// ListLaborPaged 虚拟工作日视图
// 独立于 shifts 表，直接由工作时段/请假记录按 操作员+日 聚合
// ════════════════════════════════════════════════════════════

type laborGroup struct {
	key        string
	operatorID string
	operator   *model.Operator
	day        time.Time
	records    []model.ActivityRecord
}

func (s *shiftService) ListLaborPaged(ctx context.Context, query *dto.LaborListQuery) ([]dto.LaborShiftResponse, int64, error) {
	filter := repository.LaborFilter{}

	if name := strings.TrimSpace(query.Operator); name != "" {
		operators, err := s.repo.Operator.SearchByName(ctx, name)
		if err != nil {
			s.logger.Error("按姓名查询操作员失败", zap.String("name", name), zap.Error(err))
			return nil, 0, err
		}
		if len(operators) == 0 {
			return []dto.LaborShiftResponse{}, 0, nil
		}
		for _, op := range operators {
			filter.OperatorIDs = append(filter.OperatorIDs, op.OperatorID)
		}
	}
	if query.From != "" {
		from, err := dateutil.ParseDay(query.From)
		if err != nil {
			return nil, 0, pkgerrors.InvalidDate("from", query.From)
		}
		filter.From = &from
	}
	if query.To != "" {
		to, err := dateutil.ParseDayRange(query.To)
		if err != nil {
			return nil, 0, pkgerrors.InvalidDate("to", query.To)
		}
		filter.To = &to.End
	}

	records, err := s.repo.Activity.ListLabor(ctx, filter)
	if err != nil {
		s.logger.Error("查询工作时段记录失败", zap.Error(err))
		return nil, 0, err
	}

	groups := groupLabor(records)
	total := len(groups)

	start, end := query.PageBounds(total)

	list := make([]dto.LaborShiftResponse, 0, end-start)
	for _, g := range groups[start:end] {
		list = append(list, toLaborResponse(g, query.IncludeActivities))
	}
	return list, int64(total), nil
}

func groupLabor(records []model.ActivityRecord) []*laborGroup {
	index := make(map[string]*laborGroup)
	var groups []*laborGroup
	for _, r := range records {
		key := r.OperatorID + "-" + dateutil.DayKey(r.Date)
		g, ok := index[key]
		if !ok {
			g = &laborGroup{
				key:        key,
				operatorID: r.OperatorID,
				operator:   r.Operator,
				day:        dateutil.Normalize(r.Date),
			}
			index[key] = g
			groups = append(groups, g)
		}
		g.records = append(g.records, r)
	}
	sort.SliceStable(groups, func(i, j int) bool { return groups[i].day.After(groups[j].day) })
	return groups
}

func toLaborResponse(g *laborGroup, includeActivities bool) dto.LaborShiftResponse {
	resp := dto.LaborShiftResponse{
		ID:                   g.key,
		Date:                 g.day.Format(timeLayout),
		Activities:           []dto.ActivityResponse{},
		EffectivePayableTime: toDuration(ComputeEffectiveTime(nil, g.records, ModeCategoryRestricted)),
	}
	if g.operator != nil {
		resp.Operator = toOperatorBrief(g.operator)
	} else {
		resp.Operator = &dto.OperatorBrief{ID: g.operatorID}
	}

	var schedules []model.ActivityRecord
	for _, r := range g.records {
		if r.TimeCategory == model.CategoryWorkSchedule {
			schedules = append(schedules, r)
		}
	}
	if start, end, ok := scheduleBounds(schedules); ok {
		if !end.After(start) {
			end = end.Add(24 * time.Hour)
		}
		resp.StartTime = formatTimePtr(&start)
		resp.EndTime = formatTimePtr(&end)
	}

	if includeActivities {
		for i := range g.records {
			resp.Activities = append(resp.Activities, toActivityResponse(&g.records[i]))
		}
	}
	return resp
}

// ════════════════════════════════════════════════════════════
// 辅助
// ════════════════════════════════════════════════════════════

func (s *shiftService) getShift(ctx context.Context, id string) (*model.Shift, error) {
	if !model.IsValidID(id) {
		return nil, pkgerrors.InvalidIdentifier("id", id)
	}
	shift, err := s.repo.Shift.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrShiftNotFound
		}
		s.logger.Error("查询工作日失败", zap.String("shift_id", id), zap.Error(err))
		return nil, err
	}
	return shift, nil
}

func (s *shiftService) ensureOperator(ctx context.Context, operatorID string) error {
	if !model.IsValidID(operatorID) {
		return pkgerrors.InvalidIdentifier("operator_id", operatorID)
	}
	if _, err := s.repo.Operator.GetByID(ctx, operatorID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrOperatorNotFound
		}
		s.logger.Error("查询操作员失败", zap.String("operator_id", operatorID), zap.Error(err))
		return err
	}
	return nil
}

// buildResponses 一次性读取所有引用的活动并计算有效工时
func (s *shiftService) buildResponses(ctx context.Context, shifts []model.Shift) ([]dto.ShiftResponse, error) {
	var ids []string
	for i := range shifts {
		ids = append(ids, shifts[i].RefIDs()...)
	}
	activities, err := s.repo.Activity.ListByIDs(ctx, ids)
	if err != nil {
		s.logger.Error("查询工作日活动失败", zap.Error(err))
		return nil, err
	}

	result := make([]dto.ShiftResponse, 0, len(shifts))
	for i := range shifts {
		result = append(result, toShiftResponse(&shifts[i], orderByRefs(&shifts[i], activities)))
	}
	return result, nil
}

// orderByRefs 按工作日引用顺序挑出属于它的活动（读时关联展开）
func orderByRefs(shift *model.Shift, activities []model.ActivityRecord) []model.ActivityRecord {
	byID := make(map[string]*model.ActivityRecord, len(activities))
	for i := range activities {
		byID[activities[i].ActivityID] = &activities[i]
	}
	result := make([]model.ActivityRecord, 0, len(shift.ActivityRefs))
	for _, id := range shift.RefIDs() {
		if a, ok := byID[id]; ok {
			result = append(result, *a)
		}
	}
	return result
}

// parseOptionalTime 空字符串表示清空
func parseOptionalTime(field, value string) (*time.Time, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}
	t, err := dateutil.Parse(value)
	if err != nil {
		return nil, pkgerrors.InvalidDate(field, value)
	}
	return &t, nil
}

func fmtIndex(field string, i int) string {
	return fmt.Sprintf("%s[%d]", field, i)
}

func toShiftResponse(shift *model.Shift, activities []model.ActivityRecord) dto.ShiftResponse {
	resp := dto.ShiftResponse{
		ID:                   shift.ShiftID,
		OperatorID:           shift.OperatorID,
		Date:                 shift.Date.UTC().Format(timeLayout),
		StartTime:            formatTimePtr(shift.StartTime),
		EndTime:              formatTimePtr(shift.EndTime),
		ActivityRefs:         shift.RefIDs(),
		TotalActivityTime:    toDuration(shift.TotalActivityTime),
		EffectivePayableTime: toDuration(ComputeEffectiveTime(shift, activities, ModeBoundary)),
		CreatedAt:            shift.CreatedAt.UTC().Format(timeLayout),
		UpdatedAt:            shift.UpdatedAt.UTC().Format(timeLayout),
	}
	if shift.Operator != nil {
		resp.Operator = toOperatorBrief(shift.Operator)
	}
	for i := range activities {
		resp.Activities = append(resp.Activities, toActivityResponse(&activities[i]))
	}
	return resp
}

func toActivityResponse(a *model.ActivityRecord) dto.ActivityResponse {
	resp := dto.ActivityResponse{
		ID:               a.ActivityID,
		ShiftID:          a.ShiftID,
		OperatorID:       a.OperatorID,
		Date:             a.Date.UTC().Format(timeLayout),
		WorkOrderID:      a.WorkOrderID,
		ProductionAreaID: a.ProductionAreaID,
		MachineIDs:       a.MachineIDs,
		ProcessIDs:       a.ProcessIDs,
		SupplyIDs:        a.SupplyIDs,
		TimeCategory:     string(a.TimeCategory),
		StartTime:        a.StartTime.UTC().Format(timeLayout),
		EndTime:          a.EndTime.UTC().Format(timeLayout),
		DurationMinutes:  a.DurationMinutes,
		Observations:     a.Observations,
	}
	if a.PermitType != nil {
		p := string(*a.PermitType)
		resp.PermitType = &p
	}
	if a.WorkOrder != nil {
		resp.WorkOrderCode = a.WorkOrder.Code
	}
	return resp
}

func toOperatorBrief(op *model.Operator) *dto.OperatorBrief {
	return &dto.OperatorBrief{ID: op.OperatorID, Name: op.Name, IDNumber: op.IDNumber}
}

func toDuration(h model.HoursMinutes) dto.DurationResponse {
	return dto.DurationResponse{Hours: h.Hours, Minutes: h.Minutes}
}

func formatTimePtr(t *time.Time) *string {
	if t == nil || t.IsZero() {
		return nil
	}
	s := t.UTC().Format(timeLayout)
	return &s
}

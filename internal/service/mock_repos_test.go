package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"gorm.io/gorm"

	"jornadas/backend/internal/model"
	"jornadas/backend/internal/repository"
	"jornadas/backend/pkg/dateutil"
	pkgerrors "jornadas/backend/pkg/errors"
)

var errMockDB = errors.New("mock: 数据库故障")

// ── Mock ShiftRepository ──

type mockShiftRepo struct {
	shifts      map[string]*model.Shift
	createCalls int
	deleted     []string
	dateUpdates map[string]time.Time
	failDelete  map[string]bool
	failGet     map[string]bool
}

func newMockShiftRepo() *mockShiftRepo {
	return &mockShiftRepo{
		shifts:      make(map[string]*model.Shift),
		dateUpdates: make(map[string]time.Time),
		failDelete:  make(map[string]bool),
		failGet:     make(map[string]bool),
	}
}

func copyShift(s *model.Shift) *model.Shift {
	cp := *s
	cp.ActivityRefs = append([]model.ActivityRef{}, s.ActivityRefs...)
	return &cp
}

// seed 直接写入（不计入 createCalls）
func (m *mockShiftRepo) seed(s *model.Shift) *model.Shift {
	if s.ShiftID == "" {
		s.ShiftID = model.NewID()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now()
	}
	m.shifts[s.ShiftID] = copyShift(s)
	return s
}

func (m *mockShiftRepo) Create(_ context.Context, shift *model.Shift) error {
	if shift.ShiftID == "" {
		shift.ShiftID = model.NewID()
	}
	if shift.ActivityRefs == nil {
		shift.ActivityRefs = []model.ActivityRef{}
	}
	shift.CreatedAt = time.Now()
	shift.UpdatedAt = shift.CreatedAt
	m.createCalls++
	m.shifts[shift.ShiftID] = copyShift(shift)
	return nil
}

func (m *mockShiftRepo) GetByID(_ context.Context, id string) (*model.Shift, error) {
	if m.failGet[id] {
		return nil, errMockDB
	}
	if s, ok := m.shifts[id]; ok {
		return copyShift(s), nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockShiftRepo) FindByOperatorAndDay(_ context.Context, operatorID string, day dateutil.Range) (*model.Shift, error) {
	var found *model.Shift
	for _, s := range m.shifts {
		if s.OperatorID != operatorID || s.Date.Before(day.Start) || s.Date.After(day.End) {
			continue
		}
		if found == nil || s.CreatedAt.Before(found.CreatedAt) {
			found = s
		}
	}
	if found == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return copyShift(found), nil
}

func (m *mockShiftRepo) List(_ context.Context, filter repository.ShiftFilter) ([]model.Shift, error) {
	var result []model.Shift
	for _, s := range m.shifts {
		if filter.OperatorID != "" && s.OperatorID != filter.OperatorID {
			continue
		}
		if filter.From != nil && s.Date.Before(*filter.From) {
			continue
		}
		if filter.To != nil && s.Date.After(*filter.To) {
			continue
		}
		result = append(result, *copyShift(s))
	}
	sort.SliceStable(result, func(i, j int) bool {
		if filter.Desc {
			return result[i].Date.After(result[j].Date)
		}
		return result[i].Date.Before(result[j].Date)
	})
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

func (m *mockShiftRepo) ListIDs(_ context.Context) ([]string, error) {
	var ids []string
	for id := range m.shifts {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *mockShiftRepo) Update(_ context.Context, shift *model.Shift) error {
	shift.UpdatedAt = time.Now()
	m.shifts[shift.ShiftID] = copyShift(shift)
	return nil
}

func (m *mockShiftRepo) UpdateDate(_ context.Context, id string, date time.Time) error {
	if s, ok := m.shifts[id]; ok {
		s.Date = date
	}
	m.dateUpdates[id] = date
	return nil
}

func (m *mockShiftRepo) Delete(_ context.Context, id string) error {
	if m.failDelete[id] {
		return errMockDB
	}
	if _, ok := m.shifts[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(m.shifts, id)
	m.deleted = append(m.deleted, id)
	return nil
}

// ── Mock ActivityRepository ──

type mockActivityRepo struct {
	records   map[string]*model.ActivityRecord
	operators *mockOperatorRepo
}

func newMockActivityRepo(operators *mockOperatorRepo) *mockActivityRepo {
	return &mockActivityRepo{records: make(map[string]*model.ActivityRecord), operators: operators}
}

func (m *mockActivityRepo) seed(a *model.ActivityRecord) *model.ActivityRecord {
	if a.ActivityID == "" {
		a.ActivityID = model.NewID()
	}
	cp := *a
	m.records[a.ActivityID] = &cp
	return a
}

func (m *mockActivityRepo) Create(ctx context.Context, record *model.ActivityRecord) error {
	if record.TimeCategory == model.CategoryWorkSchedule {
		existing, _ := m.ListWorkSchedules(ctx, record.OperatorID, dateutil.DayRange(record.Date))
		if repository.FindScheduleConflict(record, existing) != nil {
			return pkgerrors.DuplicateSchedule("time_category", "重叠")
		}
	}
	if record.ActivityID == "" {
		record.ActivityID = model.NewID()
	}
	cp := *record
	m.records[record.ActivityID] = &cp
	return nil
}

func (m *mockActivityRepo) GetByID(_ context.Context, id string) (*model.ActivityRecord, error) {
	if a, ok := m.records[id]; ok {
		cp := *a
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockActivityRepo) ListByIDs(_ context.Context, ids []string) ([]model.ActivityRecord, error) {
	result := []model.ActivityRecord{}
	seen := make(map[string]bool)
	for _, id := range ids {
		if a, ok := m.records[id]; ok && !seen[id] {
			seen[id] = true
			result = append(result, *a)
		}
	}
	sort.SliceStable(result, func(i, j int) bool { return result[i].StartTime.Before(result[j].StartTime) })
	return result, nil
}

func (m *mockActivityRepo) ListLabor(_ context.Context, filter repository.LaborFilter) ([]model.ActivityRecord, error) {
	ops := make(map[string]bool)
	for _, id := range filter.OperatorIDs {
		ops[id] = true
	}
	var result []model.ActivityRecord
	for _, a := range m.records {
		if a.TimeCategory != model.CategoryWorkSchedule && a.TimeCategory != model.CategoryLaborPermit {
			continue
		}
		if len(ops) > 0 && !ops[a.OperatorID] {
			continue
		}
		if filter.From != nil && a.Date.Before(*filter.From) {
			continue
		}
		if filter.To != nil && a.Date.After(*filter.To) {
			continue
		}
		cp := *a
		if op, ok := m.operators.operators[a.OperatorID]; ok {
			opCopy := *op
			cp.Operator = &opCopy
		}
		result = append(result, cp)
	}
	sort.SliceStable(result, func(i, j int) bool { return result[i].StartTime.Before(result[j].StartTime) })
	return result, nil
}

func (m *mockActivityRepo) ListWorkSchedules(_ context.Context, operatorID string, day dateutil.Range) ([]model.ActivityRecord, error) {
	var result []model.ActivityRecord
	for _, a := range m.records {
		if a.OperatorID == operatorID && a.TimeCategory == model.CategoryWorkSchedule &&
			!a.Date.Before(day.Start) && !a.Date.After(day.End) {
			result = append(result, *a)
		}
	}
	return result, nil
}

func (m *mockActivityRepo) ReassignShift(_ context.Context, ids []string, shiftID string) error {
	for _, id := range ids {
		if a, ok := m.records[id]; ok {
			a.ShiftID = shiftID
		}
	}
	return nil
}

// ── Mock OperatorRepository ──

type mockOperatorRepo struct {
	operators map[string]*model.Operator
}

func newMockOperatorRepo() *mockOperatorRepo {
	return &mockOperatorRepo{operators: make(map[string]*model.Operator)}
}

func (m *mockOperatorRepo) Create(_ context.Context, operator *model.Operator) error {
	if operator.OperatorID == "" {
		operator.OperatorID = model.NewID()
	}
	m.operators[operator.OperatorID] = operator
	return nil
}

func (m *mockOperatorRepo) GetByID(_ context.Context, id string) (*model.Operator, error) {
	if o, ok := m.operators[id]; ok {
		return o, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockOperatorRepo) SearchByName(_ context.Context, keyword string) ([]model.Operator, error) {
	var result []model.Operator
	kw := strings.ToLower(keyword)
	for _, o := range m.operators {
		if strings.Contains(strings.ToLower(o.Name), kw) {
			result = append(result, *o)
		}
	}
	return result, nil
}

// ── Mock WorkOrderRepository ──

type mockWorkOrderRepo struct {
	orders      map[string]*model.WorkOrder
	createCalls int
}

func newMockWorkOrderRepo() *mockWorkOrderRepo {
	return &mockWorkOrderRepo{orders: make(map[string]*model.WorkOrder)}
}

func (m *mockWorkOrderRepo) Create(_ context.Context, order *model.WorkOrder) error {
	if order.WorkOrderID == "" {
		order.WorkOrderID = model.NewID()
	}
	m.createCalls++
	m.orders[order.WorkOrderID] = order
	return nil
}

func (m *mockWorkOrderRepo) GetByID(_ context.Context, id string) (*model.WorkOrder, error) {
	if o, ok := m.orders[id]; ok {
		return o, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockWorkOrderRepo) GetByCode(_ context.Context, code string) (*model.WorkOrder, error) {
	for _, o := range m.orders {
		if o.Code == code {
			return o, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

// ── Mock CatalogRepository ──

type mockCatalogRepo struct {
	items map[model.CatalogKind]map[string]bool
}

func newMockCatalogRepo() *mockCatalogRepo {
	return &mockCatalogRepo{items: make(map[model.CatalogKind]map[string]bool)}
}

func (m *mockCatalogRepo) add(kind model.CatalogKind) string {
	if m.items[kind] == nil {
		m.items[kind] = make(map[string]bool)
	}
	id := model.NewID()
	m.items[kind][id] = true
	return id
}

func (m *mockCatalogRepo) MissingIDs(_ context.Context, kind model.CatalogKind, ids []string) ([]string, error) {
	var missing []string
	for _, id := range ids {
		if !m.items[kind][id] {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

// ── Mock Locker ──

type mockLocker struct {
	busy     bool
	busyFor  int    // 前 busyFor 次尝试返回占用
	onBusy   func() // 每次返回占用时回调，模拟持锁方的操作
	attempts int
	err      error
	locked   []string
	unlocked []string
}

func (m *mockLocker) TryLock(_ context.Context, key string, _ time.Duration) (string, bool, error) {
	if m.err != nil {
		return "", false, m.err
	}
	m.attempts++
	if m.busy || m.attempts <= m.busyFor {
		if m.onBusy != nil {
			m.onBusy()
		}
		return "", false, nil
	}
	m.locked = append(m.locked, key)
	return "token-" + key, true, nil
}

func (m *mockLocker) Unlock(_ context.Context, key, _ string) error {
	m.unlocked = append(m.unlocked, key)
	return nil
}

// ── 测试仓储聚合 ──

type testRepos struct {
	shift     *mockShiftRepo
	activity  *mockActivityRepo
	operator  *mockOperatorRepo
	workOrder *mockWorkOrderRepo
	catalog   *mockCatalogRepo
}

func newTestRepos() *testRepos {
	operators := newMockOperatorRepo()
	return &testRepos{
		shift:     newMockShiftRepo(),
		activity:  newMockActivityRepo(operators),
		operator:  operators,
		workOrder: newMockWorkOrderRepo(),
		catalog:   newMockCatalogRepo(),
	}
}

func (r *testRepos) toRepository() *repository.Repository {
	return &repository.Repository{
		Shift:     r.shift,
		Activity:  r.activity,
		Operator:  r.operator,
		WorkOrder: r.workOrder,
		Catalog:   r.catalog,
	}
}

func (r *testRepos) addOperator(name string) *model.Operator {
	op := &model.Operator{Name: name, IDNumber: "CC-" + name, IsActive: true}
	_ = r.operator.Create(context.Background(), op)
	return op
}

// ── 时间辅助 ──

var testDay = time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)

// at 测试日 h:m（UTC）
func at(h, m int) time.Time {
	return testDay.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute)
}

func atPtr(h, m int) *time.Time {
	t := at(h, m)
	return &t
}

func permit(p model.PermitType) *model.PermitType {
	return &p
}

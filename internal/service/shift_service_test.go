package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"jornadas/backend/internal/dto"
	"jornadas/backend/internal/model"
	pkgerrors "jornadas/backend/pkg/errors"
)

func setupTestShiftService() (ShiftService, *testRepos) {
	repos := newTestRepos()
	repo := repos.toRepository()
	logger := zap.NewNop()
	svc := NewShiftService(repo,
		NewShiftConsolidator(repo, nil, time.Second, logger),
		NewActivityIngestor(repo, logger),
		logger)
	return svc, repos
}

func strPtr(s string) *string { return &s }

// ── Create ──

func TestShiftService_Create(t *testing.T) {
	svc, repos := setupTestShiftService()
	op := repos.addOperator("Luis")

	resp, err := svc.Create(context.Background(), &dto.CreateShiftRequest{OperatorID: op.OperatorID, Date: "2024-03-05"})
	if err != nil {
		t.Fatalf("Create 应成功: %v", err)
	}
	if resp.Date != "2024-03-05T00:00:00Z" {
		t.Errorf("日期应归一化为当天零点，实际 %s", resp.Date)
	}
	if len(resp.ActivityRefs) != 0 || resp.TotalActivityTime.Hours != 0 {
		t.Error("新工作日应没有活动")
	}

	_, err = svc.Create(context.Background(), &dto.CreateShiftRequest{OperatorID: op.OperatorID, Date: "2024-03-05T15:00:00Z"})
	if !errors.Is(err, ErrShiftAlreadyExists) {
		t.Fatalf("同一天重复创建应返回 ErrShiftAlreadyExists，实际: %v", err)
	}
	var exists *ShiftExistsError
	if !errors.As(err, &exists) || exists.ShiftID != resp.ID {
		t.Fatal("错误应携带已存在工作日的 ID")
	}
	if repos.shift.createCalls != 1 {
		t.Errorf("只应创建一次，实际 %d", repos.shift.createCalls)
	}
}

func TestShiftService_CreateOperatorErrors(t *testing.T) {
	svc, _ := setupTestShiftService()

	_, err := svc.Create(context.Background(), &dto.CreateShiftRequest{OperatorID: "abc"})
	if !errors.Is(err, pkgerrors.ErrInvalidIdentifier) {
		t.Fatalf("非法操作员 ID 应返回 ErrInvalidIdentifier，实际: %v", err)
	}

	_, err = svc.Create(context.Background(), &dto.CreateShiftRequest{OperatorID: model.NewID()})
	if !errors.Is(err, ErrOperatorNotFound) {
		t.Fatalf("操作员不存在应返回 ErrOperatorNotFound，实际: %v", err)
	}
}

// ── Get / Update / Delete ──

func TestShiftService_GetErrors(t *testing.T) {
	svc, _ := setupTestShiftService()

	if _, err := svc.Get(context.Background(), "123"); !errors.Is(err, pkgerrors.ErrInvalidIdentifier) {
		t.Fatalf("非法 ID 应返回 ErrInvalidIdentifier，实际: %v", err)
	}
	if _, err := svc.Get(context.Background(), model.NewID()); !errors.Is(err, ErrShiftNotFound) {
		t.Fatalf("不存在应返回 ErrShiftNotFound，实际: %v", err)
	}
}

func TestShiftService_GetComputesEffectiveTime(t *testing.T) {
	svc, repos := setupTestShiftService()
	op := repos.addOperator("Ana")

	a := repos.activity.seed(&model.ActivityRecord{
		OperatorID: op.OperatorID, Date: testDay, TimeCategory: model.CategoryLaborPermit,
		PermitType: permit(model.PermitUnpaid), StartTime: at(12, 0), EndTime: at(13, 0), DurationMinutes: 60,
	})
	shift := repos.shift.seed(&model.Shift{
		OperatorID: op.OperatorID, Date: testDay,
		StartTime: atPtr(8, 0), EndTime: atPtr(17, 0),
		ActivityRefs: model.RefsFromIDs([]string{a.ActivityID}),
	})

	resp, err := svc.Get(context.Background(), shift.ShiftID)
	if err != nil {
		t.Fatalf("Get 应成功: %v", err)
	}
	if resp.EffectivePayableTime.Hours != 8 || resp.EffectivePayableTime.Minutes != 0 {
		t.Errorf("有效工时应为 9h 减去 1h 不带薪请假，实际 %+v", resp.EffectivePayableTime)
	}
	if len(resp.Activities) != 1 || resp.Activities[0].ID != a.ActivityID {
		t.Error("响应应展开引用的活动")
	}
}

func TestShiftService_UpdateClearsAndReplacesRefs(t *testing.T) {
	svc, repos := setupTestShiftService()
	op := repos.addOperator("Ana")

	a := repos.activity.seed(&model.ActivityRecord{
		OperatorID: op.OperatorID, Date: testDay, TimeCategory: model.CategoryProduction,
		StartTime: at(8, 0), EndTime: at(9, 30), DurationMinutes: 90,
	})
	shift := repos.shift.seed(&model.Shift{
		OperatorID: op.OperatorID, Date: testDay,
		StartTime: atPtr(8, 0), EndTime: atPtr(16, 0),
	})

	resp, err := svc.Update(context.Background(), shift.ShiftID, &dto.UpdateShiftRequest{
		StartTime:    strPtr(""),
		ActivityRefs: []string{a.ActivityID, a.ActivityID},
	})
	if err != nil {
		t.Fatalf("Update 应成功: %v", err)
	}
	if resp.StartTime != nil {
		t.Error("空字符串应清空开始时间")
	}
	if resp.EndTime == nil {
		t.Error("未提供的字段应保持不变")
	}
	if len(resp.ActivityRefs) != 1 {
		t.Errorf("重复引用应去重，实际 %v", resp.ActivityRefs)
	}
	if resp.TotalActivityTime.Hours != 1 || resp.TotalActivityTime.Minutes != 30 {
		t.Errorf("缓存工时应随引用重算，实际 %+v", resp.TotalActivityTime)
	}

	stored := repos.shift.shifts[shift.ShiftID]
	if stored.StartTime != nil {
		t.Error("清空应持久化")
	}

	_, err = svc.Update(context.Background(), shift.ShiftID, &dto.UpdateShiftRequest{EndTime: strPtr("mañana")})
	if !errors.Is(err, pkgerrors.ErrInvalidDate) {
		t.Fatalf("非法时间应返回 ErrInvalidDate，实际: %v", err)
	}
}

func TestShiftService_Delete(t *testing.T) {
	svc, repos := setupTestShiftService()
	shift := repos.shift.seed(&model.Shift{OperatorID: model.NewID(), Date: testDay})

	if err := svc.Delete(context.Background(), shift.ShiftID); err != nil {
		t.Fatalf("Delete 应成功: %v", err)
	}
	if err := svc.Delete(context.Background(), shift.ShiftID); !errors.Is(err, ErrShiftNotFound) {
		t.Fatalf("重复删除应返回 ErrShiftNotFound，实际: %v", err)
	}
}

// ── 按操作员查询 ──

func TestShiftService_ListByOperatorConsolidates(t *testing.T) {
	svc, repos := setupTestShiftService()
	op := repos.addOperator("Ana")

	repos.shift.seed(&model.Shift{OperatorID: op.OperatorID, Date: testDay})
	repos.shift.seed(&model.Shift{OperatorID: op.OperatorID, Date: testDay.Add(6 * time.Hour)})
	repos.shift.seed(&model.Shift{OperatorID: op.OperatorID, Date: testDay.Add(-24 * time.Hour)})
	repos.shift.seed(&model.Shift{OperatorID: model.NewID(), Date: testDay})

	list, err := svc.ListByOperator(context.Background(), op.OperatorID, "")
	if err != nil {
		t.Fatalf("ListByOperator 应成功: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("同一天的重复工作日应合并，期望 2 条，实际 %d", len(list))
	}
	if list[0].Date != "2024-03-05T00:00:00Z" {
		t.Errorf("应按日期倒序，首条为 %s", list[0].Date)
	}

	// 合并结果已持久化，再次读取不再变化
	again, _ := svc.ListByOperator(context.Background(), op.OperatorID, "2024-03-05")
	if len(again) != 1 || again[0].ID != list[0].ID {
		t.Error("再次读取应返回同一条合并后的工作日")
	}
}

func TestShiftService_ListByOperatorAndDate(t *testing.T) {
	svc, repos := setupTestShiftService()
	op := repos.addOperator("Ana")

	_, err := svc.ListByOperatorAndDate(context.Background(), op.OperatorID, "2024-03-05")
	if !errors.Is(err, ErrNoShifts) {
		t.Fatalf("没有工作日时应返回 ErrNoShifts，实际: %v", err)
	}

	_, err = svc.ListByOperatorAndDate(context.Background(), op.OperatorID, "05/03/2024x")
	if !errors.Is(err, pkgerrors.ErrInvalidDate) {
		t.Fatalf("非法日期应返回 ErrInvalidDate，实际: %v", err)
	}

	repos.shift.seed(&model.Shift{OperatorID: op.OperatorID, Date: testDay.Add(8 * time.Hour)})
	list, err := svc.ListByOperatorAndDate(context.Background(), op.OperatorID, "2024-03-05")
	if err != nil {
		t.Fatalf("ListByOperatorAndDate 应成功: %v", err)
	}
	if len(list) != 1 || list[0].Date != "2024-03-05T00:00:00Z" {
		t.Fatalf("应返回归一化后的单条工作日，实际 %+v", list)
	}
}

// ── SaveComplete / AddActivity ──

func TestShiftService_SaveCompleteNewAndExisting(t *testing.T) {
	svc, repos := setupTestShiftService()
	f := &ingestFixture{
		repos:   repos,
		area:    repos.catalog.add(model.CatalogArea),
		machine: repos.catalog.add(model.CatalogMachine),
		process: repos.catalog.add(model.CatalogProcess),
		supply:  repos.catalog.add(model.CatalogSupply),
	}
	op := repos.addOperator("Ana")

	first, err := svc.SaveComplete(context.Background(), &dto.SaveCompleteRequest{
		OperatorID: op.OperatorID,
		Date:       "2024-03-05",
		StartTime:  strPtr("2024-03-05T08:00:00Z"),
		EndTime:    strPtr("2024-03-05T16:00:00Z"),
		Activities: []dto.ActivityInput{f.input("production", "2024-03-05T08:00:00Z", "2024-03-05T10:00:00Z")},
	})
	if err != nil {
		t.Fatalf("SaveComplete 应成功: %v", err)
	}
	if first.Shift.ID == "" || len(first.CreatedIDs) != 1 {
		t.Fatalf("应新建工作日并写入 1 条活动: %+v", first)
	}
	if first.Shift.EffectivePayableTime.Hours != 8 {
		t.Errorf("有效工时应按边界时间计算为 8h，实际 %+v", first.Shift.EffectivePayableTime)
	}

	// 第二次省略边界时间，不应清空已有值
	second, err := svc.SaveComplete(context.Background(), &dto.SaveCompleteRequest{
		OperatorID: op.OperatorID,
		Date:       "2024-03-05",
		Activities: []dto.ActivityInput{f.input("setup", "2024-03-05T10:00:00Z", "2024-03-05T11:00:00Z")},
	})
	if err != nil {
		t.Fatalf("第二次 SaveComplete 应成功: %v", err)
	}
	if second.Shift.ID != first.Shift.ID {
		t.Fatal("同一天应复用已有工作日")
	}
	if second.Shift.StartTime == nil || *second.Shift.StartTime != "2024-03-05T08:00:00Z" {
		t.Error("省略的开始时间应保持不变")
	}
	if len(second.Shift.ActivityRefs) != 2 {
		t.Errorf("引用应追加为 2 条，实际 %d", len(second.Shift.ActivityRefs))
	}
	if second.Shift.TotalActivityTime.Hours != 3 {
		t.Errorf("缓存工时应为 3h，实际 %+v", second.Shift.TotalActivityTime)
	}
	if repos.shift.createCalls != 1 {
		t.Errorf("只应创建一次工作日，实际 %d", repos.shift.createCalls)
	}
}

func TestShiftService_SaveCompleteValidationLeavesNoShift(t *testing.T) {
	svc, repos := setupTestShiftService()
	op := repos.addOperator("Ana")

	bad := dto.ActivityInput{WorkOrder: "OTI-1", TimeCategory: "production",
		StartTime: "2024-03-05T08:00:00Z", EndTime: "2024-03-05T09:00:00Z"}
	_, err := svc.SaveComplete(context.Background(), &dto.SaveCompleteRequest{
		OperatorID: op.OperatorID, Date: "2024-03-05", Activities: []dto.ActivityInput{bad},
	})
	if !errors.Is(err, pkgerrors.ErrMissingRequiredField) {
		t.Fatalf("缺少字段应返回 ErrMissingRequiredField，实际: %v", err)
	}
	if len(repos.shift.shifts) != 0 {
		t.Error("校验失败时不应留下空工作日")
	}

	_, err = svc.SaveComplete(context.Background(), &dto.SaveCompleteRequest{OperatorID: op.OperatorID, Date: "2024-03-05"})
	if !errors.Is(err, pkgerrors.ErrMissingRequiredField) {
		t.Fatalf("没有活动应返回 ErrMissingRequiredField，实际: %v", err)
	}
}

func TestShiftService_AddActivity(t *testing.T) {
	svc, repos := setupTestShiftService()
	f := &ingestFixture{
		repos:   repos,
		area:    repos.catalog.add(model.CatalogArea),
		machine: repos.catalog.add(model.CatalogMachine),
		process: repos.catalog.add(model.CatalogProcess),
		supply:  repos.catalog.add(model.CatalogSupply),
	}
	op := repos.addOperator("Ana")
	shift := repos.shift.seed(&model.Shift{OperatorID: op.OperatorID, Date: testDay})

	in := f.input("meal", "2024-03-05T12:00:00Z", "2024-03-05T12:45:00Z")
	resp, err := svc.AddActivity(context.Background(), shift.ShiftID, &in)
	if err != nil {
		t.Fatalf("AddActivity 应成功: %v", err)
	}
	if resp.ActivityID == "" || len(resp.Shift.Activities) != 1 {
		t.Fatalf("响应应包含新活动: %+v", resp)
	}
	if resp.Shift.TotalActivityTime.Minutes != 45 {
		t.Errorf("缓存工时应为 45 分钟，实际 %+v", resp.Shift.TotalActivityTime)
	}
}

// ── RecalculateAll ──

func TestShiftService_RecalculateAll(t *testing.T) {
	svc, repos := setupTestShiftService()
	op := model.NewID()

	a := repos.activity.seed(&model.ActivityRecord{OperatorID: op, Date: testDay,
		TimeCategory: model.CategoryProduction, StartTime: at(8, 0), EndTime: at(10, 0), DurationMinutes: 120})
	b := repos.activity.seed(&model.ActivityRecord{OperatorID: op, Date: testDay,
		TimeCategory: model.CategoryProduction, StartTime: at(9, 0), EndTime: at(11, 0), DurationMinutes: 120})
	overlapping := repos.shift.seed(&model.Shift{OperatorID: op, Date: testDay,
		ActivityRefs:      model.RefsFromIDs([]string{a.ActivityID, b.ActivityID}),
		TotalActivityTime: model.HoursMinutes{Hours: 4}})

	repos.shift.seed(&model.Shift{OperatorID: op, Date: testDay.Add(24 * time.Hour)})
	broken := repos.shift.seed(&model.Shift{OperatorID: op, Date: testDay.Add(48 * time.Hour)})
	repos.shift.failGet[broken.ShiftID] = true

	stats, err := svc.RecalculateAll(context.Background())
	if err != nil {
		t.Fatalf("RecalculateAll 应成功: %v", err)
	}
	if stats.TotalShifts != 3 || stats.Updated != 2 || stats.Errors != 1 {
		t.Fatalf("统计不符: %+v", stats)
	}
	if stats.ShiftsWithOverlaps != 1 || stats.RecoveredMinutes != 60 {
		t.Errorf("重叠统计不符: %+v", stats)
	}
	if stats.Recovered.Hours != 1 || stats.Recovered.Minutes != 0 {
		t.Errorf("Recovered 应为 1h，实际 %+v", stats.Recovered)
	}

	stored := repos.shift.shifts[overlapping.ShiftID]
	if stored.TotalActivityTime.Hours != 3 || stored.TotalActivityTime.Minutes != 0 {
		t.Errorf("重叠部分只计一次，缓存工时应为 3h，实际 %+v", stored.TotalActivityTime)
	}
}

func TestShiftService_RecalculateAllEmpty(t *testing.T) {
	svc, _ := setupTestShiftService()

	stats, err := svc.RecalculateAll(context.Background())
	if err != nil {
		t.Fatalf("没有工作日时不应报错: %v", err)
	}
	if stats.TotalShifts != 0 || stats.Updated != 0 {
		t.Errorf("统计应全为 0: %+v", stats)
	}
}

func TestShiftService_RecalculateAllCancelled(t *testing.T) {
	svc, repos := setupTestShiftService()
	repos.shift.seed(&model.Shift{OperatorID: model.NewID(), Date: testDay})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := svc.RecalculateAll(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("取消后应中止，实际: %v", err)
	}
}

// ── ListLaborPaged ──

func seedLabor(repos *testRepos, operatorID string, day time.Time, category model.TimeCategory, p *model.PermitType, start, end time.Duration) {
	repos.activity.seed(&model.ActivityRecord{
		OperatorID:      operatorID,
		Date:            day,
		TimeCategory:    category,
		PermitType:      p,
		StartTime:       day.Add(start),
		EndTime:         day.Add(end),
		DurationMinutes: int((end - start).Minutes()),
	})
}

func TestShiftService_ListLaborPaged(t *testing.T) {
	svc, repos := setupTestShiftService()
	ana := repos.addOperator("Ana María")
	luis := repos.addOperator("Luis")
	nextDay := testDay.Add(24 * time.Hour)

	seedLabor(repos, ana.OperatorID, testDay, model.CategoryWorkSchedule, nil, 8*time.Hour, 16*time.Hour)
	seedLabor(repos, ana.OperatorID, testDay, model.CategoryLaborPermit, permit(model.PermitUnpaid), 12*time.Hour, 13*time.Hour)
	seedLabor(repos, ana.OperatorID, testDay, model.CategoryProduction, nil, 8*time.Hour, 10*time.Hour)
	seedLabor(repos, ana.OperatorID, nextDay, model.CategoryLaborPermit, permit(model.PermitPaid), 9*time.Hour, 10*time.Hour)
	seedLabor(repos, luis.OperatorID, testDay, model.CategoryWorkSchedule, nil, 6*time.Hour, 14*time.Hour)

	query := &dto.LaborListQuery{PaginationRequest: dto.PaginationRequest{Page: 1, PageSize: 2}, IncludeActivities: true}
	list, total, err := svc.ListLaborPaged(context.Background(), query)
	if err != nil {
		t.Fatalf("ListLaborPaged 应成功: %v", err)
	}
	if total != 3 {
		t.Fatalf("应按 操作员+日 聚合为 3 组，实际 %d", total)
	}
	if len(list) != 2 {
		t.Fatalf("第一页应有 2 条，实际 %d", len(list))
	}
	if list[0].ID != ana.OperatorID+"-2024-03-06" {
		t.Errorf("应按日期倒序，首条为 %s", list[0].ID)
	}
	if list[0].EffectivePayableTime.Hours != 1 {
		t.Errorf("只有带薪请假时按请假时长计，实际 %+v", list[0].EffectivePayableTime)
	}

	page2, _, _ := svc.ListLaborPaged(context.Background(),
		&dto.LaborListQuery{PaginationRequest: dto.PaginationRequest{Page: 2, PageSize: 2}})
	if len(page2) != 1 {
		t.Fatalf("第二页应有 1 条，实际 %d", len(page2))
	}

	filtered, total, err := svc.ListLaborPaged(context.Background(),
		&dto.LaborListQuery{Operator: "maría", From: "2024-03-05", To: "2024-03-05", IncludeActivities: true})
	if err != nil {
		t.Fatalf("按姓名过滤应成功: %v", err)
	}
	if total != 1 || len(filtered) != 1 {
		t.Fatalf("过滤后应只剩 1 组，实际 %d", total)
	}
	group := filtered[0]
	if len(group.Activities) != 2 {
		t.Errorf("只应包含工作时段与请假记录，实际 %d 条", len(group.Activities))
	}
	if group.EffectivePayableTime.Hours != 7 {
		t.Errorf("有效工时应为 8h 减 1h 不带薪请假，实际 %+v", group.EffectivePayableTime)
	}
	if group.StartTime == nil || *group.StartTime != "2024-03-05T08:00:00Z" {
		t.Error("开始时间应取工作时段的最早开始")
	}
	if group.Operator == nil || group.Operator.Name != "Ana María" {
		t.Error("应展开操作员信息")
	}
}

func TestShiftService_ListLaborPagedPageOutOfRange(t *testing.T) {
	svc, repos := setupTestShiftService()
	op := repos.addOperator("Ana")
	seedLabor(repos, op.OperatorID, testDay, model.CategoryWorkSchedule, nil, 8*time.Hour, 16*time.Hour)

	for _, page := range []int{2, 461168601842738792} {
		query := &dto.LaborListQuery{PaginationRequest: dto.PaginationRequest{Page: page, PageSize: 20}}
		list, total, err := svc.ListLaborPaged(context.Background(), query)
		if err != nil {
			t.Fatalf("page=%d 不应报错: %v", page, err)
		}
		if total != 1 || len(list) != 0 {
			t.Errorf("page=%d 超出范围应返回空页且 total=1，实际 total=%d len=%d", page, total, len(list))
		}
	}
}

func TestShiftService_ListLaborPagedNoOperatorMatch(t *testing.T) {
	svc, repos := setupTestShiftService()
	op := repos.addOperator("Ana")
	seedLabor(repos, op.OperatorID, testDay, model.CategoryWorkSchedule, nil, 8*time.Hour, 16*time.Hour)

	list, total, err := svc.ListLaborPaged(context.Background(), &dto.LaborListQuery{Operator: "Pedro"})
	if err != nil {
		t.Fatalf("无匹配时不应报错: %v", err)
	}
	if total != 0 || len(list) != 0 {
		t.Fatalf("姓名无匹配时应返回空结果，实际 %d", total)
	}
}

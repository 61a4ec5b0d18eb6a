package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"jornadas/backend/internal/dto"
	"jornadas/backend/internal/model"
	"jornadas/backend/internal/repository"
	"jornadas/backend/pkg/dateutil"
	pkgerrors "jornadas/backend/pkg/errors"
)

// ── 报表模块业务错误 ──

var (
	ErrReportGenerateFail = errors.New("生成 Excel 文件失败")
)

// ReportService 报表业务接口
//
// 说明：
//   - 只包含至少有一条活动的工作日
//   - 导出以 bytes.Buffer 返回，由 Handler 层设置 HTTP 响应头后写入 Response
type ReportService interface {
	// PermitReport 工作日与劳动请假报表
	PermitReport(ctx context.Context, query *dto.PermitReportQuery) (*dto.PermitReportResponse, error)
	// ExportPermitReport 导出为 Excel（Sheet "Jornadas" + "Permisos"）
	ExportPermitReport(ctx context.Context, query *dto.PermitReportQuery) (*bytes.Buffer, string, error)
}

type reportService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewReportService 创建 ReportService 实例
func NewReportService(repo *repository.Repository, logger *zap.Logger) ReportService {
	return &reportService{repo: repo, logger: logger}
}

func (s *reportService) PermitReport(ctx context.Context, query *dto.PermitReportQuery) (*dto.PermitReportResponse, error) {
	filter := repository.ShiftFilter{OrderBy: "date", Desc: true}
	if query.OperatorID != "" {
		if !model.IsValidID(query.OperatorID) {
			return nil, pkgerrors.InvalidIdentifier("operator_id", query.OperatorID)
		}
		filter.OperatorID = query.OperatorID
	}
	if query.From != "" {
		from, err := dateutil.ParseDay(query.From)
		if err != nil {
			return nil, pkgerrors.InvalidDate("from", query.From)
		}
		filter.From = &from
	}
	if query.To != "" {
		to, err := dateutil.ParseDayRange(query.To)
		if err != nil {
			return nil, pkgerrors.InvalidDate("to", query.To)
		}
		filter.To = &to.End
	}

	shifts, err := s.repo.Shift.List(ctx, filter)
	if err != nil {
		s.logger.Error("查询报表工作日失败", zap.Error(err))
		return nil, err
	}

	var ids []string
	for i := range shifts {
		ids = append(ids, shifts[i].RefIDs()...)
	}
	activities, err := s.repo.Activity.ListByIDs(ctx, ids)
	if err != nil {
		s.logger.Error("查询报表活动失败", zap.Error(err))
		return nil, err
	}

	items := make([]dto.PermitReportItem, 0, len(shifts))
	for i := range shifts {
		shift := &shifts[i]
		owned := orderByRefs(shift, activities)
		if len(owned) == 0 {
			continue
		}
		items = append(items, toPermitReportItem(shift, owned))
	}

	return &dto.PermitReportResponse{Total: len(items), Items: items}, nil
}

func toPermitReportItem(shift *model.Shift, activities []model.ActivityRecord) dto.PermitReportItem {
	item := dto.PermitReportItem{
		ShiftID:           shift.ShiftID,
		Date:              shift.Date.UTC().Format(timeLayout),
		StartTime:         formatTimePtr(shift.StartTime),
		EndTime:           formatTimePtr(shift.EndTime),
		TotalActivities:   len(activities),
		Permits:           []dto.PermitEntry{},
		TotalActivityTime: toDuration(shift.TotalActivityTime),
	}
	if shift.Operator != nil {
		item.Operator = toOperatorBrief(shift.Operator)
	}
	if shift.HasBoundary() {
		item.TotalShiftMinutes = ElapsedMinutes(*shift.StartTime, *shift.EndTime)
	}

	for i := range activities {
		a := &activities[i]
		if a.TimeCategory != model.CategoryLaborPermit {
			continue
		}
		entry := dto.PermitEntry{
			ActivityID:   a.ActivityID,
			StartTime:    a.StartTime.UTC().Format(timeLayout),
			EndTime:      a.EndTime.UTC().Format(timeLayout),
			Minutes:      a.DurationMinutes,
			Observations: a.Observations,
		}
		if a.PermitType != nil {
			entry.PermitType = string(*a.PermitType)
		}
		item.Permits = append(item.Permits, entry)
	}
	return item
}

// ═══════════════════════════════════════════════════════════
// ExportPermitReport 导出为 Excel
// ═══════════════════════════════════════════════════════════
//
// Sheet "Jornadas"：每个工作日一行
// Sheet "Permisos"：每条请假一行，首列为所属工作日

var (
	shiftSheetHeader  = []string{"Fecha", "Operario", "Cédula", "Hora inicio", "Hora fin", "Minutos jornada", "Actividades", "Permisos", "Tiempo actividades"}
	permitSheetHeader = []string{"Jornada", "Fecha", "Operario", "Tipo permiso", "Hora inicio", "Hora fin", "Minutos", "Observaciones"}
)

func (s *reportService) ExportPermitReport(ctx context.Context, query *dto.PermitReportQuery) (*bytes.Buffer, string, error) {
	report, err := s.PermitReport(ctx, query)
	if err != nil {
		return nil, "", err
	}

	f := excelize.NewFile()
	defer f.Close()

	const shiftSheet, permitSheet = "Jornadas", "Permisos"
	idx, _ := f.NewSheet(shiftSheet)
	f.SetActiveSheet(idx)
	f.NewSheet(permitSheet)
	// 删除默认 Sheet1
	f.DeleteSheet("Sheet1")

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	writeHeader(f, shiftSheet, shiftSheetHeader, headerStyle)
	writeHeader(f, permitSheet, permitSheetHeader, headerStyle)

	shiftRow, permitRow := 2, 2
	for _, item := range report.Items {
		operatorName, idNumber := "", ""
		if item.Operator != nil {
			operatorName, idNumber = item.Operator.Name, item.Operator.IDNumber
		}
		day := item.Date[:len(dateutil.DayKeyLayout)]

		f.SetSheetRow(shiftSheet, cell("A", shiftRow), &[]interface{}{
			day,
			operatorName,
			idNumber,
			derefOr(item.StartTime, "-"),
			derefOr(item.EndTime, "-"),
			item.TotalShiftMinutes,
			item.TotalActivities,
			len(item.Permits),
			fmt.Sprintf("%dh %02dm", item.TotalActivityTime.Hours, item.TotalActivityTime.Minutes),
		})
		shiftRow++

		for _, p := range item.Permits {
			f.SetSheetRow(permitSheet, cell("A", permitRow), &[]interface{}{
				item.ShiftID,
				day,
				operatorName,
				p.PermitType,
				p.StartTime,
				p.EndTime,
				p.Minutes,
				derefOr(p.Observations, ""),
			})
			permitRow++
		}
	}

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		s.logger.Error("写入 Excel 失败", zap.Error(err))
		return nil, "", ErrReportGenerateFail
	}

	filename := "reporte_permisos.xlsx"
	if query.From != "" || query.To != "" {
		filename = fmt.Sprintf("reporte_permisos_%s_%s.xlsx", query.From, query.To)
	}
	return buf, filename, nil
}

// ── 辅助函数 ──

func writeHeader(f *excelize.File, sheet string, header []string, style int) {
	row := make([]interface{}, len(header))
	for i, h := range header {
		row[i] = h
	}
	f.SetSheetRow(sheet, "A1", &row)
	f.SetCellStyle(sheet, "A1", cell(colName(len(header)-1), 1), style)
	for i := range header {
		col := colName(i)
		f.SetColWidth(sheet, col, col, 18)
	}
}

func colName(idx int) string {
	name, _ := excelize.ColumnNumberToName(idx + 1)
	return name
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}

func derefOr(s *string, fallback string) string {
	if s == nil {
		return fallback
	}
	return *s
}

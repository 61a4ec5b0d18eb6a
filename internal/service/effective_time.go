package service

import (
	"math"
	"sort"
	"time"

	"jornadas/backend/internal/model"
)

// CalculationMode 有效工时的计算模式
type CalculationMode int

const (
	// ModeBoundary 边界优先：边界时间 → 活动累加 → 缓存值
	ModeBoundary CalculationMode = iota
	// ModeCategoryRestricted 只看工作时段与劳动请假两类活动
	ModeCategoryRestricted
)

// ElapsedMinutes 两个时刻之间的分钟数（四舍五入）；end 不晚于 start 时按跨午夜处理
func ElapsedMinutes(start, end time.Time) int {
	if !end.After(start) {
		end = end.Add(24 * time.Hour)
	}
	return int(math.Round(end.Sub(start).Minutes()))
}

// ActivityDuration 单条活动的时长（分钟），结果至少为 1
// supplied 为正时直接采用；开始等于结束视为无法计算，按 1 处理
func ActivityDuration(start, end time.Time, supplied *int) int {
	if supplied != nil && *supplied > 0 {
		return *supplied
	}
	if start.IsZero() || end.IsZero() || start.Equal(end) {
		return 1
	}
	minutes := ElapsedMinutes(start, end)
	if minutes <= 0 {
		return 1
	}
	return minutes
}

// ComputeEffectiveTime 计算工作日的应付有效工时
func ComputeEffectiveTime(shift *model.Shift, activities []model.ActivityRecord, mode CalculationMode) model.HoursMinutes {
	if mode == ModeCategoryRestricted {
		return computeCategoryRestricted(activities)
	}
	return computeBoundaryFirst(shift, activities)
}

func computeBoundaryFirst(shift *model.Shift, activities []model.ActivityRecord) model.HoursMinutes {
	unpaid := unpaidMinutes(activities)

	// 1. 边界时间
	if shift != nil && shift.HasBoundary() {
		elapsed := ElapsedMinutes(*shift.StartTime, *shift.EndTime)
		return model.FromMinutes(elapsed - unpaid)
	}

	// 2. 活动累加
	total := 0
	for i := range activities {
		total += activities[i].DurationMinutes
	}
	if net := total - unpaid; net > 0 {
		return model.FromMinutes(net)
	}

	// 3. 缓存值
	if shift != nil {
		return shift.TotalActivityTime
	}
	return model.HoursMinutes{}
}

func computeCategoryRestricted(activities []model.ActivityRecord) model.HoursMinutes {
	var schedules, permits []model.ActivityRecord
	for i := range activities {
		switch activities[i].TimeCategory {
		case model.CategoryWorkSchedule:
			schedules = append(schedules, activities[i])
		case model.CategoryLaborPermit:
			permits = append(permits, activities[i])
		}
	}

	if len(schedules) > 0 {
		start, end, ok := scheduleBounds(schedules)
		if !ok {
			return model.HoursMinutes{}
		}
		return model.FromMinutes(ElapsedMinutes(start, end) - unpaidMinutes(permits))
	}

	if len(permits) > 0 {
		paid := 0
		for i := range permits {
			p := &permits[i]
			if !p.IsPaidPermit() {
				continue
			}
			if p.HasInterval() {
				paid += ElapsedMinutes(p.StartTime, p.EndTime)
			} else {
				paid += p.DurationMinutes
			}
		}
		return model.FromMinutes(paid)
	}

	return model.HoursMinutes{}
}

// scheduleBounds 工作时段的最早开始与最晚结束
func scheduleBounds(schedules []model.ActivityRecord) (time.Time, time.Time, bool) {
	var start, end time.Time
	found := false
	for i := range schedules {
		s := &schedules[i]
		if !s.HasInterval() {
			continue
		}
		if !found || s.StartTime.Before(start) {
			start = s.StartTime
		}
		if !found || s.EndTime.After(end) {
			end = s.EndTime
		}
		found = true
	}
	return start, end, found
}

func unpaidMinutes(activities []model.ActivityRecord) int {
	total := 0
	for i := range activities {
		if activities[i].IsUnpaidPermit() {
			total += activities[i].DurationMinutes
		}
	}
	return total
}

// ════════════════════════════════════════════════════════════
// Recompute 保存前重新计算缓存字段
// ════════════════════════════════════════════════════════════

// ActivityTotals 活动时间汇总
type ActivityTotals struct {
	SummedMinutes    int  // 各活动时长直接相加
	EffectiveMinutes int  // 重叠区间合并后的时长
	Overlaps         bool // 是否存在重叠
}

// RecoveredMinutes 因重叠而被剔除的分钟数
func (t ActivityTotals) RecoveredMinutes() int {
	if !t.Overlaps || t.SummedMinutes <= t.EffectiveMinutes {
		return 0
	}
	return t.SummedMinutes - t.EffectiveMinutes
}

type interval struct {
	start time.Time
	end   time.Time
}

// Recompute 返回更新了 TotalActivityTime 的工作日副本及汇总
// 只统计 shift 引用到的活动；不修改入参
func Recompute(shift model.Shift, activities []model.ActivityRecord) (model.Shift, ActivityTotals) {
	referenced := make(map[string]bool, len(shift.ActivityRefs))
	for _, id := range shift.RefIDs() {
		referenced[id] = true
	}

	var totals ActivityTotals
	var intervals []interval
	standalone := 0
	for i := range activities {
		a := &activities[i]
		if !referenced[a.ActivityID] {
			continue
		}
		totals.SummedMinutes += a.DurationMinutes
		if a.HasInterval() && !a.StartTime.Equal(a.EndTime) {
			s, e := a.Interval()
			intervals = append(intervals, interval{start: s, end: e})
		} else {
			standalone += a.DurationMinutes
		}
	}

	merged, overlaps := mergeIntervals(intervals)
	totals.Overlaps = overlaps
	totals.EffectiveMinutes = standalone
	for _, iv := range merged {
		totals.EffectiveMinutes += int(math.Round(iv.end.Sub(iv.start).Minutes()))
	}
	// 合并后的时长不应超过直接相加（四舍五入误差）
	if totals.EffectiveMinutes > totals.SummedMinutes {
		totals.EffectiveMinutes = totals.SummedMinutes
	}

	shift.TotalActivityTime = model.FromMinutes(totals.EffectiveMinutes)
	return shift, totals
}

func mergeIntervals(in []interval) ([]interval, bool) {
	if len(in) == 0 {
		return nil, false
	}
	sorted := make([]interval, len(in))
	copy(sorted, in)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].start.Before(sorted[j].start) })

	overlaps := false
	merged := []interval{sorted[0]}
	for _, iv := range sorted[1:] {
		last := &merged[len(merged)-1]
		if iv.start.Before(last.end) {
			overlaps = true
			if iv.end.After(last.end) {
				last.end = iv.end
			}
			continue
		}
		merged = append(merged, iv)
	}
	return merged, overlaps
}

// Package dateutil 日历日归一化：一个操作员一天一条工作日的分组键
package dateutil

import (
	"strings"
	"time"

	"github.com/jinzhu/now"

	pkgerrors "jornadas/backend/pkg/errors"
)

// DayKeyLayout 日历日键格式
const DayKeyLayout = "2006-01-02"

// 可接受的输入格式（按顺序尝试）
var layouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.000Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	DayKeyLayout,
}

// Range 某一日历日的闭区间 [00:00:00.000, 23:59:59.999]（UTC）
type Range struct {
	Start time.Time
	End   time.Time
}

// Normalize 去掉时刻部分，固定为同一日历日的 UTC 零点
func Normalize(t time.Time) time.Time {
	return now.New(t.UTC()).BeginningOfDay()
}

// DayRange 返回 t 所在日历日的 UTC 闭区间
func DayRange(t time.Time) Range {
	start := Normalize(t)
	return Range{
		Start: start,
		End:   start.Add(24*time.Hour - time.Millisecond),
	}
}

// DayKey 分组键，如 2024-03-05
func DayKey(t time.Time) string {
	return Normalize(t).Format(DayKeyLayout)
}

// Parse 解析日期字符串；无法解析时返回 ErrInvalidDate
func Parse(value string) (time.Time, error) {
	s := strings.TrimSpace(value)
	if s == "" {
		return time.Time{}, pkgerrors.InvalidDate("date", value)
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, pkgerrors.InvalidDate("date", value)
}

// ParseDay 解析并归一化为日历日
func ParseDay(value string) (time.Time, error) {
	t, err := Parse(value)
	if err != nil {
		return time.Time{}, err
	}
	return Normalize(t), nil
}

// ParseDayRange 解析并返回该日的查询区间
func ParseDayRange(value string) (Range, error) {
	t, err := Parse(value)
	if err != nil {
		return Range{}, err
	}
	return DayRange(t), nil
}

// Check 零值时间视为无效日期
func Check(field string, t time.Time) error {
	if t.IsZero() {
		return pkgerrors.InvalidDate(field, "")
	}
	return nil
}

package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"jornadas/backend/internal/model"
	"jornadas/backend/internal/repository"
	"jornadas/backend/pkg/dateutil"
)

// Locker 按键加锁（由 pkg/redis 实现）
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error)
	Unlock(ctx context.Context, key, token string) error
}

// ShiftConsolidator 合并同一操作员同一天的重复工作日
type ShiftConsolidator struct {
	repo    *repository.Repository
	locker  Locker
	lockTTL time.Duration
	logger  *zap.Logger

	// 锁被占用时的重试次数与间隔
	lockRetries   int
	lockRetryWait time.Duration
}

// NewShiftConsolidator 创建合并器；locker 为 nil 时不加锁
func NewShiftConsolidator(repo *repository.Repository, locker Locker, lockTTL time.Duration, logger *zap.Logger) *ShiftConsolidator {
	if lockTTL <= 0 {
		lockTTL = 30 * time.Second
	}
	return &ShiftConsolidator{
		repo:          repo,
		locker:        locker,
		lockTTL:       lockTTL,
		logger:        logger,
		lockRetries:   3,
		lockRetryWait: 150 * time.Millisecond,
	}
}

type dayGroup struct {
	day    time.Time
	shifts []model.Shift
}

// Consolidate 合并 shifts 中同一日历日的记录，结果按日期倒序
// 每组的 删除 → 新建 → 改写反向引用 在同一事务内完成；任一组失败即返回错误
func (c *ShiftConsolidator) Consolidate(ctx context.Context, operatorID string, shifts []model.Shift) ([]model.Shift, error) {
	for i := range shifts {
		if err := dateutil.Check("date", shifts[i].Date); err != nil {
			return nil, err
		}
	}

	if c.locker != nil {
		lockKey := "consolidate:" + operatorID
		token, attempts, err := c.acquire(ctx, lockKey)
		switch {
		case err != nil:
			// Redis 不可用时降级为不加锁
			c.logger.Warn("获取合并锁失败，降级为不加锁", zap.String("operator_id", operatorID), zap.Error(err))
		case token == "":
			// 重试后仍被占用，本次只读返回
			c.logger.Info("合并进行中，跳过", zap.String("operator_id", operatorID), zap.Int("attempts", attempts))
			return sortByDateDesc(shifts), nil
		default:
			defer func() {
				if err := c.locker.Unlock(context.WithoutCancel(ctx), lockKey, token); err != nil {
					c.logger.Warn("释放合并锁失败", zap.String("operator_id", operatorID), zap.Error(err))
				}
			}()
			if attempts > 1 {
				// 等锁期间其他请求可能已合并，输入可能已过期
				shifts, err = c.reload(ctx, operatorID, shifts)
				if err != nil {
					return nil, err
				}
			}
		}
	}

	groups := groupByDay(shifts)
	result := make([]model.Shift, 0, len(groups))

	for _, g := range groups {
		if len(g.shifts) == 1 {
			s := g.shifts[0]
			if !s.Date.Equal(g.day) {
				if err := c.repo.Shift.UpdateDate(ctx, s.ShiftID, g.day); err != nil {
					c.logger.Error("归一化工作日日期失败",
						zap.String("shift_id", s.ShiftID), zap.Error(err))
					return nil, fmt.Errorf("归一化工作日 %s 日期失败: %w", s.ShiftID, err)
				}
				s.Date = g.day
			}
			result = append(result, s)
			continue
		}

		merged, err := c.mergeGroup(ctx, operatorID, g)
		if err != nil {
			c.logger.Error("合并重复工作日失败",
				zap.String("operator_id", operatorID),
				zap.String("day", dateutil.DayKey(g.day)),
				zap.Error(err))
			return nil, err
		}
		c.logger.Info("已合并重复工作日",
			zap.String("operator_id", operatorID),
			zap.String("day", dateutil.DayKey(g.day)),
			zap.Int("merged", len(g.shifts)),
			zap.String("shift_id", merged.ShiftID))
		result = append(result, *merged)
	}

	return sortByDateDesc(result), nil
}

// acquire 获取合并锁，占用时有限次重试
// 返回空 token 表示重试耗尽仍未拿到
func (c *ShiftConsolidator) acquire(ctx context.Context, key string) (string, int, error) {
	attempts := 0
	for {
		attempts++
		token, ok, err := c.locker.TryLock(ctx, key, c.lockTTL)
		if err != nil {
			return "", attempts, err
		}
		if ok {
			return token, attempts, nil
		}
		if attempts > c.lockRetries {
			return "", attempts, nil
		}

		select {
		case <-ctx.Done():
			return "", attempts, ctx.Err()
		case <-time.After(c.lockRetryWait):
		}
	}
}

// reload 按输入涉及的日历日重新读取该操作员的工作日
func (c *ShiftConsolidator) reload(ctx context.Context, operatorID string, shifts []model.Shift) ([]model.Shift, error) {
	if len(shifts) == 0 {
		return shifts, nil
	}

	days := make(map[string]bool, len(shifts))
	from, to := dateutil.Normalize(shifts[0].Date), dateutil.Normalize(shifts[0].Date)
	for _, s := range shifts {
		day := dateutil.Normalize(s.Date)
		days[dateutil.DayKey(day)] = true
		if day.Before(from) {
			from = day
		}
		if day.After(to) {
			to = day
		}
	}
	end := dateutil.DayRange(to).End

	fresh, err := c.repo.Shift.List(ctx, repository.ShiftFilter{OperatorID: operatorID, From: &from, To: &end})
	if err != nil {
		c.logger.Error("重新读取工作日失败", zap.String("operator_id", operatorID), zap.Error(err))
		return nil, err
	}

	result := make([]model.Shift, 0, len(fresh))
	for _, s := range fresh {
		if days[dateutil.DayKey(s.Date)] {
			result = append(result, s)
		}
	}
	return result, nil
}

func (c *ShiftConsolidator) mergeGroup(ctx context.Context, operatorID string, g dayGroup) (*model.Shift, error) {
	refGroups := make([][]model.ActivityRef, 0, len(g.shifts))
	for _, s := range g.shifts {
		refGroups = append(refGroups, s.ActivityRefs)
	}

	merged := &model.Shift{
		OperatorID:   operatorID,
		Date:         g.day,
		ActivityRefs: model.MergeRefs(refGroups...),
	}

	err := c.repo.Transaction(ctx, func(tx *repository.Repository) error {
		// 删除集合取自合并前的原始列表，新记录不会被删除
		for _, s := range g.shifts {
			if err := tx.Shift.Delete(ctx, s.ShiftID); err != nil {
				return fmt.Errorf("删除重复工作日 %s 失败: %w", s.ShiftID, err)
			}
		}
		if err := tx.Shift.Create(ctx, merged); err != nil {
			return fmt.Errorf("创建合并后的工作日失败: %w", err)
		}
		if err := tx.Activity.ReassignShift(ctx, merged.RefIDs(), merged.ShiftID); err != nil {
			return fmt.Errorf("改写活动反向引用失败: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return merged, nil
}

// groupByDay 按日历日分组，组的顺序为首次出现的顺序
func groupByDay(shifts []model.Shift) []dayGroup {
	index := make(map[string]int)
	var groups []dayGroup
	for _, s := range shifts {
		key := dateutil.DayKey(s.Date)
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, dayGroup{day: dateutil.Normalize(s.Date)})
		}
		groups[i].shifts = append(groups[i].shifts, s)
	}
	return groups
}

func sortByDateDesc(shifts []model.Shift) []model.Shift {
	out := make([]model.Shift, len(shifts))
	copy(out, shifts)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out
}

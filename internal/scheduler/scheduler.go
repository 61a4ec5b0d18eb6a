package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"jornadas/backend/config"
	"jornadas/backend/internal/dto"
)

// Recalculator 批量重算工时的能力
type Recalculator interface {
	RecalculateAll(ctx context.Context) (*dto.RecalculateResponse, error)
}

// Scheduler 定时重算缓存工时
type Scheduler struct {
	cron    *cron.Cron
	recalc  Recalculator
	timeout time.Duration
	logger  *zap.Logger
}

// New 按配置注册定时任务，不启动
func New(cfg *config.SchedulerConfig, recalc Recalculator, logger *zap.Logger) (*Scheduler, error) {
	loc := time.Local
	if cfg.Timezone != "" {
		l, err := time.LoadLocation(cfg.Timezone)
		if err != nil {
			return nil, fmt.Errorf("加载时区失败: %w", err)
		}
		loc = l
	}

	s := &Scheduler{
		cron:    cron.New(cron.WithLocation(loc)),
		recalc:  recalc,
		timeout: 30 * time.Minute,
		logger:  logger,
	}

	if _, err := s.cron.AddFunc(cfg.RecalcCron, s.runRecalculate); err != nil {
		return nil, fmt.Errorf("注册重算任务失败: %w", err)
	}

	return s, nil
}

// Start 启动调度
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("定时重算已启动", zap.Int("jobs", len(s.cron.Entries())))
}

// Stop 停止调度并等待正在执行的任务结束
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.logger.Warn("等待重算任务结束超时")
	}
}

func (s *Scheduler) runRecalculate() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	start := time.Now()
	stats, err := s.recalc.RecalculateAll(ctx)
	if err != nil {
		s.logger.Error("定时重算失败", zap.Error(err))
		return
	}

	s.logger.Info("定时重算完成",
		zap.Int("total", stats.TotalShifts),
		zap.Int("updated", stats.Updated),
		zap.Int("errors", stats.Errors),
		zap.Int("overlaps", stats.ShiftsWithOverlaps),
		zap.Int("recovered_minutes", stats.RecoveredMinutes),
		zap.Duration("elapsed", time.Since(start)),
	)
}

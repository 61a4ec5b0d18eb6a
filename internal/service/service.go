package service

import (
	"go.uber.org/zap"

	"jornadas/backend/config"
	"jornadas/backend/internal/repository"
)

// Service 所有 Service 的聚合入口
type Service struct {
	Shift  ShiftService
	Report ReportService
}

// NewService 创建 Service 聚合
// locker 为 nil 时合并流程不加锁
func NewService(
	cfg *config.Config,
	repo *repository.Repository,
	locker Locker,
	logger *zap.Logger,
) *Service {
	consolidator := NewShiftConsolidator(repo, locker, cfg.Consolidation.LockTTL, logger)
	ingestor := NewActivityIngestor(repo, logger)

	return &Service{
		Shift:  NewShiftService(repo, consolidator, ingestor, logger),
		Report: NewReportService(repo, logger),
	}
}

package database

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrDirtySchema 上次迁移中途失败，需要人工修复后再启动
var ErrDirtySchema = errors.New("数据库结构处于 dirty 状态")

// RunMigrations 将 shifts / activity_records 等表迁移到最新版本
// dirty 状态直接拒绝启动，不在半迁移的表结构上计算工时
func RunMigrations(db *sql.DB, logger *zap.Logger) error {
	m, err := newMigrator(db)
	if err != nil {
		return err
	}

	before, err := schemaVersion(m)
	if err != nil {
		return err
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("执行迁移失败（起始版本 %d）: %w", before, err)
	}

	after, err := schemaVersion(m)
	if err != nil {
		return err
	}

	if after == before {
		logger.Info("数据库结构已是最新", zap.Uint("schema_version", after))
	} else {
		logger.Info("数据库迁移完成",
			zap.Uint("from_version", before),
			zap.Uint("schema_version", after),
		)
	}
	return nil
}

func newMigrator(db *sql.DB) (*migrate.Migrate, error) {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("加载迁移文件失败: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return nil, fmt.Errorf("创建迁移驱动失败: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("初始化迁移实例失败: %w", err)
	}
	return m, nil
}

// schemaVersion 当前结构版本；空库返回 0
func schemaVersion(m *migrate.Migrate) (uint, error) {
	version, dirty, err := m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		return 0, nil
	case err != nil:
		return 0, fmt.Errorf("读取迁移版本失败: %w", err)
	case dirty:
		return version, fmt.Errorf("%w: version=%d", ErrDirtySchema, version)
	}
	return version, nil
}

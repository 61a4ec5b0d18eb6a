package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"jornadas/backend/internal/model"
)

// CatalogRepository 目录实体（区域/机器/工序/物料）存在性校验
type CatalogRepository interface {
	// MissingIDs 返回 ids 中不存在的部分（保持输入顺序）
	MissingIDs(ctx context.Context, kind model.CatalogKind, ids []string) ([]string, error)
}

type catalogRepo struct {
	db *gorm.DB
}

// NewCatalogRepo 创建 CatalogRepository 实例
func NewCatalogRepo(db *gorm.DB) CatalogRepository {
	return &catalogRepo{db: db}
}

func (r *catalogRepo) MissingIDs(ctx context.Context, kind model.CatalogKind, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	table := kind.TableFor()
	if table == "" {
		return nil, fmt.Errorf("未知目录类别: %s", kind)
	}

	var found []string
	err := r.db.WithContext(ctx).
		Table(table).
		Where("id IN ?", ids).
		Pluck("id", &found).Error
	if err != nil {
		return nil, err
	}

	exists := make(map[string]bool, len(found))
	for _, id := range found {
		exists[id] = true
	}
	var missing []string
	for _, id := range ids {
		if !exists[id] {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

package repository

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"jornadas/backend/internal/model"
)

// OperatorRepository 操作员数据访问接口
type OperatorRepository interface {
	Create(ctx context.Context, operator *model.Operator) error
	GetByID(ctx context.Context, id string) (*model.Operator, error)
	SearchByName(ctx context.Context, keyword string) ([]model.Operator, error)
}

type operatorRepo struct {
	db *gorm.DB
}

// NewOperatorRepo 创建 OperatorRepository 实例
func NewOperatorRepo(db *gorm.DB) OperatorRepository {
	return &operatorRepo{db: db}
}

func (r *operatorRepo) Create(ctx context.Context, operator *model.Operator) error {
	return r.db.WithContext(ctx).Create(operator).Error
}

func (r *operatorRepo) GetByID(ctx context.Context, id string) (*model.Operator, error) {
	var operator model.Operator
	err := r.db.WithContext(ctx).
		Where("operator_id = ?", id).
		First(&operator).Error
	if err != nil {
		return nil, err
	}
	return &operator, nil
}

// SearchByName 姓名模糊查询（不区分大小写）
func (r *operatorRepo) SearchByName(ctx context.Context, keyword string) ([]model.Operator, error) {
	var operators []model.Operator
	pattern := "%" + strings.ToLower(strings.TrimSpace(keyword)) + "%"
	err := r.db.WithContext(ctx).
		Where("LOWER(name) LIKE ?", pattern).
		Order("name ASC").
		Find(&operators).Error
	return operators, err
}

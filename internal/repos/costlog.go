package repos

import (
	"context"

	"gorm.io/gorm"

	"github.com/nightreel/narrative-backend/internal/logger"
	"github.com/nightreel/narrative-backend/internal/types"
)

type CostLogRepo interface {
	Create(ctx context.Context, tx *gorm.DB, logs []*types.CostLog) ([]*types.CostLog, error)
}

type costLogRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCostLogRepo(db *gorm.DB, baseLog *logger.Logger) CostLogRepo {
	return &costLogRepo{db: db, log: baseLog.With("repo", "CostLogRepo")}
}

func (r *costLogRepo) Create(ctx context.Context, tx *gorm.DB, logs []*types.CostLog) ([]*types.CostLog, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(logs) == 0 {
		return []*types.CostLog{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}

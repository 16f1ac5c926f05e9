package repos

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/nightreel/narrative-backend/internal/logger"
	"github.com/nightreel/narrative-backend/internal/types"
)

type StageGateRepo interface {
	Get(ctx context.Context, tx *gorm.DB, outputID uuid.UUID, stage string) (*types.StageGate, error)
	// Upsert sets the gate's status, creating the row on first touch.
	Upsert(ctx context.Context, tx *gorm.DB, outputID uuid.UUID, stage, status string) error
}

type stageGateRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewStageGateRepo(db *gorm.DB, baseLog *logger.Logger) StageGateRepo {
	return &stageGateRepo{db: db, log: baseLog.With("repo", "StageGateRepo")}
}

func (r *stageGateRepo) Get(ctx context.Context, tx *gorm.DB, outputID uuid.UUID, stage string) (*types.StageGate, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var gate types.StageGate
	err := transaction.WithContext(ctx).
		Where("output_id = ? AND stage = ?", outputID, stage).
		First(&gate).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &gate, nil
}

func (r *stageGateRepo) Upsert(ctx context.Context, tx *gorm.DB, outputID uuid.UUID, stage, status string) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	gate := &types.StageGate{OutputID: outputID, Stage: stage, Status: status}
	return transaction.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "output_id"}, {Name: "stage"}},
		DoUpdates: clause.Assignments(map[string]any{
			"status":     status,
			"updated_at": gorm.Expr("now()"),
		}),
	}).Create(gate).Error
}

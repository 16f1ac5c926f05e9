package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nightreel/narrative-backend/internal/logger"
	"github.com/nightreel/narrative-backend/internal/types"
)

type SourceDocRepo interface {
	ListForOutput(ctx context.Context, tx *gorm.DB, outputID uuid.UUID) ([]*types.SourceDoc, error)
}

type sourceDocRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSourceDocRepo(db *gorm.DB, baseLog *logger.Logger) SourceDocRepo {
	return &sourceDocRepo{db: db, log: baseLog.With("repo", "SourceDocRepo")}
}

func (r *sourceDocRepo) ListForOutput(ctx context.Context, tx *gorm.DB, outputID uuid.UUID) ([]*types.SourceDoc, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var docs []*types.SourceDoc
	if err := transaction.WithContext(ctx).
		Where("output_id = ?", outputID).
		Order("created_at ASC").
		Find(&docs).Error; err != nil {
		return nil, err
	}
	return docs, nil
}

package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nightreel/narrative-backend/internal/logger"
	"github.com/nightreel/narrative-backend/internal/types"
)

type SceneRepo interface {
	ListByOutput(ctx context.Context, tx *gorm.DB, outputID uuid.UUID) ([]*types.Scene, error)
	// ReplaceForOutput deletes every scene of the output and inserts the
	// given set. Runs inside the caller's transaction; scripts are replaced
	// wholesale, never patched scene by scene.
	ReplaceForOutput(ctx context.Context, tx *gorm.DB, outputID uuid.UUID, scenes []*types.Scene) error
}

type sceneRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSceneRepo(db *gorm.DB, baseLog *logger.Logger) SceneRepo {
	return &sceneRepo{db: db, log: baseLog.With("repo", "SceneRepo")}
}

func (r *sceneRepo) ListByOutput(ctx context.Context, tx *gorm.DB, outputID uuid.UUID) ([]*types.Scene, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var scenes []*types.Scene
	if err := transaction.WithContext(ctx).
		Where("output_id = ?", outputID).
		Order("scene_order ASC").
		Find(&scenes).Error; err != nil {
		return nil, err
	}
	return scenes, nil
}

type SceneReferenceRepo interface {
	ListByOutput(ctx context.Context, tx *gorm.DB, outputID uuid.UUID) ([]*types.SceneReference, error)
}

type sceneReferenceRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSceneReferenceRepo(db *gorm.DB, baseLog *logger.Logger) SceneReferenceRepo {
	return &sceneReferenceRepo{db: db, log: baseLog.With("repo", "SceneReferenceRepo")}
}

func (r *sceneReferenceRepo) ListByOutput(ctx context.Context, tx *gorm.DB, outputID uuid.UUID) ([]*types.SceneReference, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var refs []*types.SceneReference
	if err := transaction.WithContext(ctx).
		Where("output_id = ?", outputID).
		Order("scene_order ASC").
		Find(&refs).Error; err != nil {
		return nil, err
	}
	return refs, nil
}

func (r *sceneRepo) ReplaceForOutput(ctx context.Context, tx *gorm.DB, outputID uuid.UUID, scenes []*types.Scene) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if err := transaction.WithContext(ctx).
		Where("output_id = ?", outputID).
		Delete(&types.Scene{}).Error; err != nil {
		return err
	}
	if len(scenes) == 0 {
		return nil
	}
	for i, s := range scenes {
		s.OutputID = outputID
		s.Order = i
	}
	return transaction.WithContext(ctx).Create(&scenes).Error
}

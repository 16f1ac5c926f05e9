package repos

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	apperrors "github.com/nightreel/narrative-backend/internal/errors"
	"github.com/nightreel/narrative-backend/internal/logger"
	"github.com/nightreel/narrative-backend/internal/types"
)

type OutputRepo interface {
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Output, error)
	Create(ctx context.Context, tx *gorm.DB, output *types.Output) (*types.Output, error)
	Update(ctx context.Context, tx *gorm.DB, output *types.Output) error
	UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, fields map[string]any) error
	// ListPriorEpisodes returns the project's full-video outputs with an
	// episode number below the given one, oldest first.
	ListPriorEpisodes(ctx context.Context, tx *gorm.DB, projectID uuid.UUID, beforeEpisode int) ([]*types.Output, error)
}

type outputRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewOutputRepo(db *gorm.DB, baseLog *logger.Logger) OutputRepo {
	return &outputRepo{db: db, log: baseLog.With("repo", "OutputRepo")}
}

func (r *outputRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Output, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out types.Output
	if err := transaction.WithContext(ctx).First(&out, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &out, nil
}

func (r *outputRepo) Create(ctx context.Context, tx *gorm.DB, output *types.Output) (*types.Output, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if err := transaction.WithContext(ctx).Create(output).Error; err != nil {
		return nil, err
	}
	return output, nil
}

func (r *outputRepo) Update(ctx context.Context, tx *gorm.DB, output *types.Output) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).Save(output).Error
}

func (r *outputRepo) ListPriorEpisodes(ctx context.Context, tx *gorm.DB, projectID uuid.UUID, beforeEpisode int) ([]*types.Output, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var outputs []*types.Output
	if err := transaction.WithContext(ctx).
		Where("project_id = ? AND format = ? AND episode_number > 0 AND episode_number < ?",
			projectID, types.FormatFullVideo, beforeEpisode).
		Order("episode_number ASC").
		Find(&outputs).Error; err != nil {
		return nil, err
	}
	return outputs, nil
}

func (r *outputRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, fields map[string]any) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).Model(&types.Output{}).Where("id = ?", id).Updates(fields).Error
}

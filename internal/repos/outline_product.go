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

type OutlineProductRepo interface {
	GetByOutput(ctx context.Context, tx *gorm.DB, outputID uuid.UUID) (*types.StoryOutlineProduct, error)
	// Upsert replaces the outline payload for the output, bumping Version
	// when a row already exists.
	Upsert(ctx context.Context, tx *gorm.DB, product *types.StoryOutlineProduct) error
	UpsertMonetization(ctx context.Context, tx *gorm.DB, product *types.MonetizationProduct) error
}

type outlineProductRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewOutlineProductRepo(db *gorm.DB, baseLog *logger.Logger) OutlineProductRepo {
	return &outlineProductRepo{db: db, log: baseLog.With("repo", "OutlineProductRepo")}
}

func (r *outlineProductRepo) GetByOutput(ctx context.Context, tx *gorm.DB, outputID uuid.UUID) (*types.StoryOutlineProduct, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var product types.StoryOutlineProduct
	err := transaction.WithContext(ctx).
		Where("output_id = ?", outputID).
		First(&product).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &product, nil
}

func (r *outlineProductRepo) Upsert(ctx context.Context, tx *gorm.DB, product *types.StoryOutlineProduct) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "output_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"payload":    product.Payload,
			"version":    gorm.Expr("story_outline_product.version + 1"),
			"updated_at": gorm.Expr("now()"),
		}),
	}).Create(product).Error
}

func (r *outlineProductRepo) UpsertMonetization(ctx context.Context, tx *gorm.DB, product *types.MonetizationProduct) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "output_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"payload":    product.Payload,
			"updated_at": gorm.Expr("now()"),
		}),
	}).Create(product).Error
}

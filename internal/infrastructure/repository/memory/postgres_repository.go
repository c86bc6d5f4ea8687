package memory

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	domain "openchat/server/internal/domain/memory"
	"openchat/server/internal/infrastructure/database/entities"
	"openchat/server/internal/utils/platformerrors"
)

// Repository persists working memory, one row per resource owner.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a working memory repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

var _ domain.Repository = (*Repository)(nil)

// Get returns the owner's working memory; a missing row yields the zero value.
func (r *Repository) Get(ctx context.Context, resourceOwner string) (domain.WorkingMemory, error) {
	var entity entities.WorkingMemory
	if err := r.db.WithContext(ctx).
		Where("resource_owner = ?", resourceOwner).
		First(&entity).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.WorkingMemory{}, nil
		}
		return domain.WorkingMemory{}, platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to fetch working memory",
			err,
		)
	}
	return entity.EtoD(), nil
}

// Upsert replaces the owner's working memory.
func (r *Repository) Upsert(ctx context.Context, resourceOwner string, m domain.WorkingMemory) error {
	entity := entities.NewSchemaWorkingMemory(resourceOwner, m)
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "resource_owner"}},
			UpdateAll: true,
		}).
		Create(entity).Error; err != nil {
		return platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to upsert working memory",
			err,
		)
	}
	return nil
}

package thread

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	domain "openchat/server/internal/domain/thread"
	"openchat/server/internal/infrastructure/database/entities"
	"openchat/server/internal/utils/platformerrors"
)

// Repository persists thread metadata.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a thread repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

var _ domain.Repository = (*Repository)(nil)

// GetByID fetches a thread by its id.
func (r *Repository) GetByID(ctx context.Context, id string) (*domain.Thread, error) {
	var entity entities.Thread
	if err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&entity).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, platformerrors.NewError(
				ctx,
				platformerrors.LayerRepository,
				platformerrors.ErrorTypeNotFound,
				fmt.Sprintf("thread not found: %s", id),
				nil,
			)
		}
		return nil, platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to fetch thread",
			err,
		)
	}
	return entity.EtoD(), nil
}

// CreateIfAbsent inserts the thread unless its id already exists. The unique
// constraint on the primary key makes the check-then-create atomic: on
// conflict nothing is written and the stored row is fetched instead.
func (r *Repository) CreateIfAbsent(ctx context.Context, t *domain.Thread) (*domain.Thread, bool, error) {
	entity := entities.NewSchemaThread(t)

	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoNothing: true,
		}).
		Create(entity)
	if result.Error != nil {
		return nil, false, platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to create thread",
			result.Error,
		)
	}

	if result.RowsAffected > 0 {
		return entity.EtoD(), true, nil
	}

	existing, err := r.GetByID(ctx, t.ID)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

// UpdateTitle replaces the thread title.
func (r *Repository) UpdateTitle(ctx context.Context, id string, title string) error {
	result := r.db.WithContext(ctx).
		Model(&entities.Thread{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"title":      title,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to update thread title",
			result.Error,
		)
	}
	if result.RowsAffected == 0 {
		return platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeNotFound,
			fmt.Sprintf("thread not found: %s", id),
			nil,
		)
	}
	return nil
}

// Touch bumps updated_at.
func (r *Repository) Touch(ctx context.Context, id string) error {
	if err := r.db.WithContext(ctx).
		Model(&entities.Thread{}).
		Where("id = ?", id).
		Update("updated_at", time.Now()).Error; err != nil {
		return platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to touch thread",
			err,
		)
	}
	return nil
}

// ListByOwner returns the owner's threads, most recently updated first.
func (r *Repository) ListByOwner(ctx context.Context, resourceOwner string) ([]*domain.Thread, error) {
	var rows []entities.Thread
	if err := r.db.WithContext(ctx).
		Where("resource_owner = ?", resourceOwner).
		Order("updated_at DESC").
		Find(&rows).Error; err != nil {
		return nil, platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to list threads",
			err,
		)
	}

	out := make([]*domain.Thread, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].EtoD())
	}
	return out, nil
}

// Delete removes the thread and its messages.
func (r *Repository) Delete(ctx context.Context, id string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("thread_id = ?", id).Delete(&entities.ThreadMessage{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&entities.Thread{}).Error
	})
	if err != nil {
		return platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to delete thread",
			err,
		)
	}
	return nil
}

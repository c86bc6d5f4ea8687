package thread

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	domain "openchat/server/internal/domain/thread"
	"openchat/server/internal/infrastructure/database/entities"
	"openchat/server/internal/utils/platformerrors"
)

// MessageRepository persists per-thread message logs.
type MessageRepository struct {
	db *gorm.DB
}

// NewMessageRepository builds a message repository.
func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

var _ domain.MessageRepository = (*MessageRepository)(nil)

// ListByThread returns the thread's messages in insertion order. An unknown
// or empty thread yields an empty slice.
func (r *MessageRepository) ListByThread(ctx context.Context, threadID string) ([]domain.Message, error) {
	var rows []entities.ThreadMessage
	if err := r.db.WithContext(ctx).
		Where("thread_id = ?", threadID).
		Order("sequence ASC").
		Find(&rows).Error; err != nil {
		return nil, platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to list thread messages",
			err,
		)
	}

	out := make([]domain.Message, 0, len(rows))
	for i := range rows {
		m, err := rows[i].EtoD()
		if err != nil {
			return nil, platformerrors.NewError(
				ctx,
				platformerrors.LayerRepository,
				platformerrors.ErrorTypeDatabaseError,
				"failed to decode thread message",
				err,
			)
		}
		out = append(out, *m)
	}
	return out, nil
}

// Append stores messages at the tail of the thread log. Re-inserting an
// already stored id is a no-op, which makes turn persistence safe to retry.
func (r *MessageRepository) Append(ctx context.Context, messages []domain.Message) error {
	if len(messages) == 0 {
		return nil
	}

	rows := make([]*entities.ThreadMessage, 0, len(messages))
	for i := range messages {
		row, err := entities.NewSchemaThreadMessage(&messages[i])
		if err != nil {
			return platformerrors.NewError(
				ctx,
				platformerrors.LayerRepository,
				platformerrors.ErrorTypeDatabaseError,
				"failed to encode thread message",
				err,
			)
		}
		rows = append(rows, row)
	}

	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoNothing: true,
		}).
		Create(rows).Error; err != nil {
		return platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to append thread messages",
			err,
		)
	}
	return nil
}

// DeleteByIDs removes the given messages.
func (r *MessageRepository) DeleteByIDs(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).
		Where("id IN ?", ids).
		Delete(&entities.ThreadMessage{}).Error; err != nil {
		return platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to delete thread messages",
			err,
		)
	}
	return nil
}

package chatrepo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"chatdesk/chat-api/internal/domain/chat"
	"chatdesk/chat-api/internal/infrastructure/database/dbschema"
	"chatdesk/chat-api/internal/infrastructure/database/transaction"
	"chatdesk/chat-api/internal/utils/functional"
	"chatdesk/chat-api/internal/utils/platformerrors"
)

// ChatGormRepository implements chat.Repository using GORM
type ChatGormRepository struct {
	db *transaction.Database
}

var _ chat.Repository = (*ChatGormRepository)(nil)

// NewChatGormRepository creates a new chat repository
func NewChatGormRepository(db *transaction.Database) chat.Repository {
	return &ChatGormRepository{db: db}
}

func (repo *ChatGormRepository) getDB(ctx context.Context) *gorm.DB {
	return repo.db.GetTx(ctx).WithContext(ctx)
}

// Create implements chat.Repository. A duplicate public ID surfaces as a
// conflict, never as a silent overwrite.
func (repo *ChatGormRepository) Create(ctx context.Context, c *chat.Chat) error {
	model := dbschema.NewSchemaChat(c)
	if err := repo.getDB(ctx).Create(model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeConflict, "chat already exists", err, "6b2d8f4a-1c7e-4390-b5d2-9a0e3c6f8b1d")
		}
		return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError, "failed to create chat", err, "0d4f8b2c-6a1e-4753-9c0d-2e5a8f1b4c7e")
	}
	c.ID = model.ID
	c.CreatedAt = model.CreatedAt
	c.UpdatedAt = model.UpdatedAt
	return nil
}

// FindByID implements chat.Repository.
func (repo *ChatGormRepository) FindByID(ctx context.Context, id uint) (*chat.Chat, error) {
	var model dbschema.Chat
	if err := repo.getDB(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeNotFound, "chat not found", err, "4e8a2c6d-0f3b-4167-8e9a-5d2c7b0f4a8e")
		}
		return nil, platformerrors.AsErrorWithUUID(ctx, platformerrors.LayerRepository, err, "failed to find chat by ID", "8c0e4a2f-6d1b-4935-a7c4-3b8e0d5f2a6c")
	}
	return model.EtoD(), nil
}

// FindByPublicID implements chat.Repository.
func (repo *ChatGormRepository) FindByPublicID(ctx context.Context, publicID string) (*chat.Chat, error) {
	var model dbschema.Chat
	if err := repo.getDB(ctx).Where("public_id = ?", publicID).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeNotFound, "chat not found", err, "2a6c0e4b-8f5d-4791-b3a6-1d9f4c7e0b2a")
		}
		return nil, platformerrors.AsErrorWithUUID(ctx, platformerrors.LayerRepository, err, "failed to find chat by public ID", "5d1f7b3e-9a2c-4680-8f1d-7c4a0e6b9d3f")
	}
	return model.EtoD(), nil
}

// FindByUser implements chat.Repository. Most recent chats come first.
func (repo *ChatGormRepository) FindByUser(ctx context.Context, userID string) ([]*chat.Chat, error) {
	var rows []dbschema.Chat
	err := repo.getDB(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, platformerrors.AsErrorWithUUID(ctx, platformerrors.LayerRepository, err, "failed to list chats", "9f3b7d1a-5c8e-4246-b0f9-8e2d5a1c4f7b")
	}
	return functional.Map(rows, func(item dbschema.Chat) *chat.Chat {
		return item.EtoD()
	}), nil
}

// Delete implements chat.Repository. Votes, messages and the chat row go in
// one transaction, children first, so a partial cascade is never persisted.
func (repo *ChatGormRepository) Delete(ctx context.Context, id uint) error {
	err := repo.db.RunInTx(ctx, func(txCtx context.Context) error {
		tx := repo.getDB(txCtx)
		if err := tx.Where("chat_id = ?", id).Delete(&dbschema.Vote{}).Error; err != nil {
			return err
		}
		if err := tx.Where("chat_id = ?", id).Delete(&dbschema.Message{}).Error; err != nil {
			return err
		}
		return tx.Delete(&dbschema.Chat{}, id).Error
	})
	if err != nil {
		return platformerrors.AsErrorWithUUID(ctx, platformerrors.LayerRepository, err, "failed to delete chat", "3c7e1b5d-9f0a-4824-a6c3-0b4f8d2e6a9c")
	}
	return nil
}

// UpdateVisibility implements chat.Repository.
func (repo *ChatGormRepository) UpdateVisibility(ctx context.Context, id uint, visibility chat.Visibility) error {
	err := repo.getDB(ctx).
		Model(&dbschema.Chat{}).
		Where("id = ?", id).
		Update("visibility", string(visibility)).Error
	if err != nil {
		return platformerrors.AsErrorWithUUID(ctx, platformerrors.LayerRepository, err, "failed to update chat visibility", "7a1d5f9b-3e6c-4480-9d7a-4f0b8c2e5d1f")
	}
	return nil
}

// AppendMessages implements chat.Repository. A duplicate message public ID is
// a conflict; messages are never silently dropped.
func (repo *ChatGormRepository) AppendMessages(ctx context.Context, chatID uint, messages []*chat.Message) error {
	if len(messages) == 0 {
		return nil
	}

	models := functional.Map(messages, func(m *chat.Message) *dbschema.Message {
		return dbschema.NewSchemaMessage(m)
	})

	err := repo.db.RunInTx(ctx, func(txCtx context.Context) error {
		tx := repo.getDB(txCtx)
		for _, model := range models {
			if err := tx.Create(model).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeConflict, "duplicate message ID", err, "1e5a9d3f-7b0c-4648-8a1e-6c9f2b5d0a4e")
		}
		return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError, "failed to append messages", err, "a4c8e2b6-0d7f-4915-b3a8-5e1c9f4d7b0a")
	}

	for i, model := range models {
		messages[i].ID = model.ID
		messages[i].CreatedAt = model.CreatedAt
	}
	return nil
}

// ListMessages implements chat.Repository. Oldest messages come first; the
// result is the canonical chronological transcript.
func (repo *ChatGormRepository) ListMessages(ctx context.Context, chatID uint) ([]*chat.Message, error) {
	var rows []dbschema.Message
	err := repo.getDB(ctx).
		Where("chat_id = ?", chatID).
		Order("created_at ASC, id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, platformerrors.AsErrorWithUUID(ctx, platformerrors.LayerRepository, err, "failed to list messages", "e8b2f6a0-4d9c-4371-9f8b-2a6e0c4d8f1b")
	}
	return functional.Map(rows, func(item dbschema.Message) *chat.Message {
		return item.EtoD()
	}), nil
}

// GetMessageByPublicID implements chat.Repository.
func (repo *ChatGormRepository) GetMessageByPublicID(ctx context.Context, publicID string) (*chat.Message, error) {
	var model dbschema.Message
	if err := repo.getDB(ctx).Where("public_id = ?", publicID).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeNotFound, "message not found", err, "b6d0f4a8-2e7c-4539-8d1b-9c5f3a0e6b2d")
		}
		return nil, platformerrors.AsErrorWithUUID(ctx, platformerrors.LayerRepository, err, "failed to find message by public ID", "f2a6c0e4-8b3d-4157-a9f2-7d0b4e8c1f5a")
	}
	return model.EtoD(), nil
}

// DeleteMessagesAfter implements chat.Repository. Everything created at or
// after ts goes, along with votes referencing the removed messages, in one
// transaction.
func (repo *ChatGormRepository) DeleteMessagesAfter(ctx context.Context, chatID uint, ts time.Time) error {
	err := repo.db.RunInTx(ctx, func(txCtx context.Context) error {
		tx := repo.getDB(txCtx)

		var ids []uint
		err := tx.Model(&dbschema.Message{}).
			Where("chat_id = ? AND created_at >= ?", chatID, ts).
			Pluck("id", &ids).Error
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}

		if err := tx.Where("chat_id = ? AND message_id IN ?", chatID, ids).Delete(&dbschema.Vote{}).Error; err != nil {
			return err
		}
		return tx.Where("id IN ?", ids).Delete(&dbschema.Message{}).Error
	})
	if err != nil {
		return platformerrors.AsErrorWithUUID(ctx, platformerrors.LayerRepository, err, "failed to delete trailing messages", "c0e4a8d2-6f1b-4793-b5c0-8a3e7d1f4b6c")
	}
	return nil
}

// UpsertVote implements chat.Repository. The unique (chat_id, message_id)
// index makes repeated votes update in place; last writer wins.
func (repo *ChatGormRepository) UpsertVote(ctx context.Context, vote *chat.Vote) error {
	model := &dbschema.Vote{
		ChatID:    vote.ChatID,
		MessageID: vote.MessageID,
		IsUpvoted: vote.IsUpvoted,
	}
	err := repo.getDB(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "chat_id"}, {Name: "message_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"is_upvoted", "updated_at"}),
	}).Create(model).Error
	if err != nil {
		return platformerrors.AsErrorWithUUID(ctx, platformerrors.LayerRepository, err, "failed to upsert vote", "d8f2b6e0-4a9c-4315-8f7d-1b5e9c3a6d0f")
	}
	vote.UpdatedAt = model.UpdatedAt
	return nil
}

// ListVotes implements chat.Repository.
func (repo *ChatGormRepository) ListVotes(ctx context.Context, chatID uint) ([]*chat.Vote, error) {
	type voteRow struct {
		ChatID          uint
		MessageID       uint
		ChatPublicID    string
		MessagePublicID string
		IsUpvoted       bool
		UpdatedAt       time.Time
	}

	var rows []voteRow
	err := repo.getDB(ctx).
		Model(&dbschema.Vote{}).
		Select("votes.chat_id, votes.message_id, chats.public_id AS chat_public_id, messages.public_id AS message_public_id, votes.is_upvoted, votes.updated_at").
		Joins("JOIN chat_api.chats chats ON chats.id = votes.chat_id").
		Joins("JOIN chat_api.messages messages ON messages.id = votes.message_id").
		Where("votes.chat_id = ?", chatID).
		Scan(&rows).Error
	if err != nil {
		return nil, platformerrors.AsErrorWithUUID(ctx, platformerrors.LayerRepository, err, "failed to list votes", "e4a8c2f6-0b5d-4971-a3e4-6d0f8b2c5e9a")
	}

	return functional.Map(rows, func(r voteRow) *chat.Vote {
		return &chat.Vote{
			ChatID:          r.ChatID,
			MessageID:       r.MessageID,
			ChatPublicID:    r.ChatPublicID,
			MessagePublicID: r.MessagePublicID,
			IsUpvoted:       r.IsUpvoted,
			UpdatedAt:       r.UpdatedAt,
		}
	}), nil
}

package usagerepo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"chatdesk/chat-api/internal/domain/aiusage"
	"chatdesk/chat-api/internal/infrastructure/database/transaction"
	"chatdesk/chat-api/internal/utils/platformerrors"
)

// UsageGormRepository implements aiusage.Repository using GORM
type UsageGormRepository struct {
	db *transaction.Database
}

var _ aiusage.Repository = (*UsageGormRepository)(nil)

// NewUsageGormRepository creates a new usage repository
func NewUsageGormRepository(db *transaction.Database) aiusage.Repository {
	return &UsageGormRepository{db: db}
}

func (repo *UsageGormRepository) getDB(ctx context.Context) *gorm.DB {
	return repo.db.GetTx(ctx).WithContext(ctx)
}

// Create implements aiusage.Repository.
func (repo *UsageGormRepository) Create(ctx context.Context, record *aiusage.UsageRecord) error {
	if err := repo.getDB(ctx).Create(record).Error; err != nil {
		return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError, "failed to create usage record", err, "5f9b3d7a-1c4e-4862-b0f5-8d2a6c0e4f9b")
	}
	return nil
}

// ListByUser implements aiusage.Repository. Newest records come first.
func (repo *UsageGormRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*aiusage.UsageRecord, error) {
	var rows []*aiusage.UsageRecord
	err := repo.getDB(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&rows).Error
	if err != nil {
		return nil, platformerrors.AsErrorWithUUID(ctx, platformerrors.LayerRepository, err, "failed to list usage records", "9d3f7b1e-5a8c-4240-8b9d-2f6e0a4c8d1f")
	}
	return rows, nil
}

// SumCostByUser implements aiusage.Repository. The sum happens in the
// database over the decimal column, so it stays exact.
func (repo *UsageGormRepository) SumCostByUser(ctx context.Context, userID string) (string, error) {
	var total string
	err := repo.getDB(ctx).
		Model(&aiusage.UsageRecord{}).
		Select("COALESCE(SUM(cost_usd), 0)::text").
		Where("user_id = ?", userID).
		Scan(&total).Error
	if err != nil {
		return "", platformerrors.AsErrorWithUUID(ctx, platformerrors.LayerRepository, err, "failed to sum usage cost", "3b7d1f5a-9e2c-4684-a1b3-6d0f4e8a2c5d")
	}
	return total, nil
}

// AggregateDay implements aiusage.Repository. The rollup is
// delete-then-insert inside one transaction so a rerun for the same day never
// double counts.
func (repo *UsageGormRepository) AggregateDay(ctx context.Context, day time.Time) error {
	dayStart := day.UTC().Truncate(24 * time.Hour)
	dayEnd := dayStart.AddDate(0, 0, 1)

	err := repo.db.RunInTx(ctx, func(txCtx context.Context) error {
		tx := repo.getDB(txCtx)

		if err := tx.Where("date = ?", dayStart).Delete(&aiusage.DailyUsage{}).Error; err != nil {
			return err
		}

		return tx.Exec(`
			INSERT INTO chat_api.ai_usage_daily
				(date, user_id, feature, model, total_prompt_tokens, total_completion_tokens, total_tokens, request_count, cost_usd, created_at, updated_at)
			SELECT
				?::date, user_id, feature, model,
				SUM(prompt_tokens), SUM(completion_tokens), SUM(total_tokens),
				COUNT(*), SUM(cost_usd), now(), now()
			FROM chat_api.ai_usage
			WHERE created_at >= ? AND created_at < ?
			GROUP BY user_id, feature, model
		`, dayStart, dayStart, dayEnd).Error
	})
	if err != nil {
		return platformerrors.AsErrorWithUUID(ctx, platformerrors.LayerRepository, err, "failed to aggregate daily usage", "7f1b5d9c-3a6e-4028-b7f1-0c4e8a2d6f9b")
	}
	return nil
}

// ListDailyByUser implements aiusage.Repository.
func (repo *UsageGormRepository) ListDailyByUser(ctx context.Context, userID string, from, to time.Time) ([]*aiusage.DailyUsage, error) {
	var rows []*aiusage.DailyUsage
	err := repo.getDB(ctx).
		Where("user_id = ? AND date >= ? AND date <= ?", userID, from, to).
		Order("date DESC").
		Find(&rows).Error
	if err != nil {
		return nil, platformerrors.AsErrorWithUUID(ctx, platformerrors.LayerRepository, err, "failed to list daily usage", "1d5f9b3e-7c0a-4462-9d1f-4b8e2a6c0d4f")
	}
	return rows, nil
}

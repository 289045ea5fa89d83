package aiusage

import (
	"context"
	"time"

	"chatdesk/chat-api/internal/infrastructure/logger"
	"chatdesk/chat-api/internal/utils/platformerrors"
)

const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

// Service provides usage metering business logic
type Service struct {
	repo Repository
}

// NewService creates a new usage service
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// RecordUsage appends a usage event, filling in cost and token totals when
// the caller left them zero.
func (s *Service) RecordUsage(ctx context.Context, record *UsageRecord) error {
	if record.UserID == "" {
		return platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation, "usage record requires a user", nil, "1c7f3b9d-5e2a-4684-b0c9-8a4d6f1e3c5b")
	}
	if record.Feature == "" {
		record.Feature = FeatureChat
	}
	if record.TotalTokens == 0 {
		record.TotalTokens = record.PromptTokens + record.CompletionTokens
	}
	if record.CostUSD.IsZero() {
		record.CostUSD = CalculateCost(record.Model, record.PromptTokens, record.CompletionTokens)
	}

	if err := s.repo.Create(ctx, record); err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to record usage")
	}
	return nil
}

// RecordUsageBestEffort records usage and only logs on failure. Metering must
// never abort the user-visible operation that produced it.
func (s *Service) RecordUsageBestEffort(ctx context.Context, record *UsageRecord) {
	if err := s.RecordUsage(ctx, record); err != nil {
		log := logger.GetLogger()
		log.Error().Err(err).
			Str("user_id", record.UserID).
			Str("model", record.Model).
			Msg("failed to record usage")
	}
}

// ListByUser returns the caller's usage records, newest first. Limit and
// offset fall back to sane defaults when out of range.
func (s *Service) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*UsageRecord, error) {
	if limit <= 0 || limit > maxListLimit {
		limit = defaultListLimit
	}
	if offset < 0 {
		offset = 0
	}

	records, err := s.repo.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to list usage")
	}
	return records, nil
}

// TotalCost returns the exact accumulated cost for the user as a decimal
// string.
func (s *Service) TotalCost(ctx context.Context, userID string) (string, error) {
	total, err := s.repo.SumCostByUser(ctx, userID)
	if err != nil {
		return "", platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to sum usage cost")
	}
	return total, nil
}

// RollupDay aggregates one UTC day of raw usage into the daily table.
func (s *Service) RollupDay(ctx context.Context, day time.Time) error {
	day = day.UTC().Truncate(24 * time.Hour)
	if err := s.repo.AggregateDay(ctx, day); err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to roll up daily usage")
	}
	return nil
}

// ListDailyByUser returns the user's daily aggregates for a date range; the
// range defaults to the trailing 30 days.
func (s *Service) ListDailyByUser(ctx context.Context, userID string, from, to time.Time) ([]*DailyUsage, error) {
	if to.IsZero() {
		to = time.Now().UTC()
	}
	if from.IsZero() {
		from = to.AddDate(0, 0, -30)
	}
	if from.After(to) {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation, "from must not be after to", nil, "9e5b1d7f-3a8c-4260-8f4e-6b2d0c9a5e1f")
	}

	aggregates, err := s.repo.ListDailyByUser(ctx, userID, from, to)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to list daily usage")
	}
	return aggregates, nil
}

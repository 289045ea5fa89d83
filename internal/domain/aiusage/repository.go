package aiusage

import (
	"context"
	"time"
)

// Repository defines the interface for usage data access
type Repository interface {
	// Create appends a new usage record. Records are never mutated.
	Create(ctx context.Context, record *UsageRecord) error

	// ListByUser returns records for the user, newest first, paginated.
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]*UsageRecord, error)

	// SumCostByUser returns the exact total cost for the user.
	SumCostByUser(ctx context.Context, userID string) (string, error)

	// AggregateDay rolls raw usage of one UTC day into ai_usage_daily,
	// replacing any existing aggregates for that day.
	AggregateDay(ctx context.Context, day time.Time) error

	// ListDailyByUser returns the user's daily aggregates in a date range.
	ListDailyByUser(ctx context.Context, userID string, from, to time.Time) ([]*DailyUsage, error)
}

package aiusage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"chatdesk/chat-api/internal/utils/platformerrors"
)

type fakeUsageRepo struct {
	records   []*UsageRecord
	createErr error

	lastLimit  int
	lastOffset int
	lastFrom   time.Time
	lastTo     time.Time
}

func (f *fakeUsageRepo) Create(ctx context.Context, record *UsageRecord) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.records = append(f.records, record)
	return nil
}

func (f *fakeUsageRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*UsageRecord, error) {
	f.lastLimit = limit
	f.lastOffset = offset
	return f.records, nil
}

func (f *fakeUsageRepo) SumCostByUser(ctx context.Context, userID string) (string, error) {
	total := decimal.Zero
	for _, r := range f.records {
		if r.UserID == userID {
			total = total.Add(r.CostUSD)
		}
	}
	return total.String(), nil
}

func (f *fakeUsageRepo) AggregateDay(ctx context.Context, day time.Time) error {
	return nil
}

func (f *fakeUsageRepo) ListDailyByUser(ctx context.Context, userID string, from, to time.Time) ([]*DailyUsage, error) {
	f.lastFrom = from
	f.lastTo = to
	return nil, nil
}

func TestRecordUsageFillsDerivedFields(t *testing.T) {
	repo := &fakeUsageRepo{}
	svc := NewService(repo)

	record := &UsageRecord{
		UserID:           "user-1",
		Model:            "gpt-4o",
		PromptTokens:     1000,
		CompletionTokens: 1000,
	}
	if err := svc.RecordUsage(context.Background(), record); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if record.Feature != FeatureChat {
		t.Fatalf("expected feature %q, got %q", FeatureChat, record.Feature)
	}
	if record.TotalTokens != 2000 {
		t.Fatalf("expected 2000 total tokens, got %d", record.TotalTokens)
	}
	if !record.CostUSD.Equal(decimal.RequireFromString("0.02")) {
		t.Fatalf("unexpected cost: %s", record.CostUSD)
	}
	if len(repo.records) != 1 {
		t.Fatalf("expected 1 stored record, got %d", len(repo.records))
	}
}

func TestRecordUsageKeepsExplicitCost(t *testing.T) {
	repo := &fakeUsageRepo{}
	svc := NewService(repo)

	record := &UsageRecord{
		UserID:  "user-1",
		Model:   "gpt-4o",
		CostUSD: decimal.RequireFromString("1.5"),
	}
	if err := svc.RecordUsage(context.Background(), record); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !record.CostUSD.Equal(decimal.RequireFromString("1.5")) {
		t.Fatalf("explicit cost was overwritten: %s", record.CostUSD)
	}
}

func TestRecordUsageRequiresUser(t *testing.T) {
	svc := NewService(&fakeUsageRepo{})

	err := svc.RecordUsage(context.Background(), &UsageRecord{Model: "gpt-4o"})
	if err == nil {
		t.Fatal("expected error for missing user")
	}
	if !platformerrors.IsErrorType(err, platformerrors.ErrorTypeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestRecordUsageBestEffortSwallowsFailure(t *testing.T) {
	repo := &fakeUsageRepo{createErr: errors.New("db down")}
	svc := NewService(repo)

	// must not panic or propagate
	svc.RecordUsageBestEffort(context.Background(), &UsageRecord{UserID: "user-1", Model: "gpt-4o"})
}

func TestListByUserClampsPagination(t *testing.T) {
	repo := &fakeUsageRepo{}
	svc := NewService(repo)

	cases := []struct {
		name       string
		limit      int
		offset     int
		wantLimit  int
		wantOffset int
	}{
		{"zero limit", 0, 0, defaultListLimit, 0},
		{"negative limit", -5, 0, defaultListLimit, 0},
		{"over max", maxListLimit + 1, 0, defaultListLimit, 0},
		{"negative offset", 50, -1, 50, 0},
		{"in range", 50, 10, 50, 10},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.ListByUser(context.Background(), "user-1", tc.limit, tc.offset); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if repo.lastLimit != tc.wantLimit || repo.lastOffset != tc.wantOffset {
				t.Fatalf("expected limit=%d offset=%d, got limit=%d offset=%d",
					tc.wantLimit, tc.wantOffset, repo.lastLimit, repo.lastOffset)
			}
		})
	}
}

func TestListDailyByUserDefaultsRange(t *testing.T) {
	repo := &fakeUsageRepo{}
	svc := NewService(repo)

	if _, err := svc.ListDailyByUser(context.Background(), "user-1", time.Time{}, time.Time{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.lastTo.IsZero() || repo.lastFrom.IsZero() {
		t.Fatal("expected defaulted range")
	}
	if got := repo.lastTo.Sub(repo.lastFrom); got < 29*24*time.Hour || got > 31*24*time.Hour {
		t.Fatalf("expected roughly 30 day default range, got %s", got)
	}
}

func TestListDailyByUserRejectsInvertedRange(t *testing.T) {
	svc := NewService(&fakeUsageRepo{})

	from := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	_, err := svc.ListDailyByUser(context.Background(), "user-1", from, to)
	if !platformerrors.IsErrorType(err, platformerrors.ErrorTypeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

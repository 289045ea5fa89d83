package aiusage

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// FeatureChat tags usage produced by the chat completion pipeline.
const FeatureChat = "chat"

// UsageRecord is a single append-only usage event. Cost is stored as a
// fixed-precision decimal; floating point would drift across many small
// increments.
type UsageRecord struct {
	ID               int64           `gorm:"primaryKey;autoIncrement"`
	UserID           string          `gorm:"column:user_id;not null;index"`
	Feature          string          `gorm:"column:feature;not null;index"`
	Model            string          `gorm:"column:model;not null;index"`
	PromptTokens     int             `gorm:"column:prompt_tokens;not null;default:0"`
	CompletionTokens int             `gorm:"column:completion_tokens;not null;default:0"`
	TotalTokens      int             `gorm:"column:total_tokens;not null;default:0"`
	CostUSD          decimal.Decimal `gorm:"column:cost_usd;type:decimal(12,6);not null"`
	RequestID        *string         `gorm:"column:request_id"`
	Metadata         datatypes.JSON  `gorm:"column:metadata"`
	CreatedAt        time.Time       `gorm:"column:created_at;autoCreateTime;index"`
}

func (UsageRecord) TableName() string {
	return "ai_usage"
}

// DailyUsage is the rolled-up daily aggregate maintained by the cron job.
type DailyUsage struct {
	ID                    int64           `gorm:"primaryKey;autoIncrement"`
	Date                  time.Time       `gorm:"column:date;not null;index:idx_ai_usage_daily_key,unique"`
	UserID                string          `gorm:"column:user_id;not null;index:idx_ai_usage_daily_key,unique"`
	Feature               string          `gorm:"column:feature;not null;index:idx_ai_usage_daily_key,unique"`
	Model                 string          `gorm:"column:model;not null;index:idx_ai_usage_daily_key,unique"`
	TotalPromptTokens     int64           `gorm:"column:total_prompt_tokens;not null;default:0"`
	TotalCompletionTokens int64           `gorm:"column:total_completion_tokens;not null;default:0"`
	TotalTokens           int64           `gorm:"column:total_tokens;not null;default:0"`
	RequestCount          int             `gorm:"column:request_count;not null;default:0"`
	CostUSD               decimal.Decimal `gorm:"column:cost_usd;type:decimal(14,6);not null"`
	CreatedAt             time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt             time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (DailyUsage) TableName() string {
	return "ai_usage_daily"
}

// ModelPricing maps model identifiers to USD prices per million tokens.
// Prices are decimals end to end so repeated small charges sum exactly.
var ModelPricing = map[string]struct {
	PromptPerMillion     decimal.Decimal
	CompletionPerMillion decimal.Decimal
}{
	"gpt-4o":       {decimal.NewFromInt(5), decimal.NewFromInt(15)},
	"gpt-4o-mini":  {decimal.RequireFromString("0.15"), decimal.RequireFromString("0.6")},
	"gpt-4.1":      {decimal.NewFromInt(2), decimal.NewFromInt(8)},
	"gpt-4.1-mini": {decimal.RequireFromString("0.4"), decimal.RequireFromString("1.6")},
	"gpt-4.1-nano": {decimal.RequireFromString("0.1"), decimal.RequireFromString("0.4")},
}

var defaultPricing = struct {
	PromptPerMillion     decimal.Decimal
	CompletionPerMillion decimal.Decimal
}{decimal.NewFromInt(3), decimal.NewFromInt(6)}

var million = decimal.NewFromInt(1_000_000)

// CalculateCost computes the exact decimal cost for a completion call.
func CalculateCost(model string, promptTokens, completionTokens int) decimal.Decimal {
	pricing, ok := ModelPricing[model]
	if !ok {
		pricing = defaultPricing
	}

	promptCost := pricing.PromptPerMillion.Mul(decimal.NewFromInt(int64(promptTokens))).Div(million)
	completionCost := pricing.CompletionPerMillion.Mul(decimal.NewFromInt(int64(completionTokens))).Div(million)

	return promptCost.Add(completionCost)
}

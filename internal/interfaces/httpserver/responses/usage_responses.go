package responses

import (
	"time"

	"chatdesk/chat-api/internal/domain/aiusage"
	"chatdesk/chat-api/internal/utils/functional"
)

type UsageRecordResponse struct {
	ID               int64     `json:"id"`
	Feature          string    `json:"feature"`
	Model            string    `json:"model"`
	PromptTokens     int       `json:"prompt_tokens"`
	CompletionTokens int       `json:"completion_tokens"`
	TotalTokens      int       `json:"total_tokens"`
	CostUSD          string    `json:"cost_usd"`
	CreatedAt        time.Time `json:"created_at"`
}

type UsageListResponse struct {
	Records   []UsageRecordResponse `json:"records"`
	TotalCost string                `json:"total_cost"`
}

type DailyUsageResponse struct {
	Date                  string `json:"date"`
	Feature               string `json:"feature"`
	Model                 string `json:"model"`
	TotalPromptTokens     int64  `json:"total_prompt_tokens"`
	TotalCompletionTokens int64  `json:"total_completion_tokens"`
	TotalTokens           int64  `json:"total_tokens"`
	RequestCount          int    `json:"request_count"`
	CostUSD               string `json:"cost_usd"`
}

type DailyUsageListResponse struct {
	Days []DailyUsageResponse `json:"days"`
}

func NewUsageListResponse(records []*aiusage.UsageRecord, totalCost string) UsageListResponse {
	return UsageListResponse{
		Records: functional.Map(records, func(r *aiusage.UsageRecord) UsageRecordResponse {
			return UsageRecordResponse{
				ID:               r.ID,
				Feature:          r.Feature,
				Model:            r.Model,
				PromptTokens:     r.PromptTokens,
				CompletionTokens: r.CompletionTokens,
				TotalTokens:      r.TotalTokens,
				CostUSD:          r.CostUSD.String(),
				CreatedAt:        r.CreatedAt,
			}
		}),
		TotalCost: totalCost,
	}
}

func NewDailyUsageListResponse(days []*aiusage.DailyUsage) DailyUsageListResponse {
	return DailyUsageListResponse{
		Days: functional.Map(days, func(d *aiusage.DailyUsage) DailyUsageResponse {
			return DailyUsageResponse{
				Date:                  d.Date.Format("2006-01-02"),
				Feature:               d.Feature,
				Model:                 d.Model,
				TotalPromptTokens:     d.TotalPromptTokens,
				TotalCompletionTokens: d.TotalCompletionTokens,
				TotalTokens:           d.TotalTokens,
				RequestCount:          d.RequestCount,
				CostUSD:               d.CostUSD.String(),
			}
		}),
	}
}

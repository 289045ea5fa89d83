package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"chatdesk/chat-api/internal/domain/aiusage"
	"chatdesk/chat-api/internal/interfaces/httpserver/requests"
	"chatdesk/chat-api/internal/interfaces/httpserver/responses"
	"chatdesk/chat-api/internal/utils/platformerrors"
)

const dailyDateLayout = "2006-01-02"

// UsageHandler exposes usage metering endpoints.
type UsageHandler struct {
	usageService *aiusage.Service
	log          zerolog.Logger
}

func NewUsageHandler(usageService *aiusage.Service, log zerolog.Logger) *UsageHandler {
	return &UsageHandler{
		usageService: usageService,
		log:          log.With().Str("component", "usage-handler").Logger(),
	}
}

// PostUsage logs a usage event for the caller. Cost may be supplied as a
// decimal string; otherwise it is derived from token counts and pricing.
func (h *UsageHandler) PostUsage(c *gin.Context) {
	principal, ok := requireHandlerPrincipal(c)
	if !ok {
		return
	}

	var req requests.PostUsageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		responses.HandleNewError(c, platformerrors.ErrorTypeValidation, "invalid usage request: "+err.Error(), "1d5f9b3a-7c0e-4268-91d5-4b8e2c6a0d3f")
		return
	}

	record := &aiusage.UsageRecord{
		UserID:           principal.UserID,
		Feature:          req.Feature,
		Model:            req.Model,
		PromptTokens:     req.PromptTokens,
		CompletionTokens: req.CompletionTokens,
	}

	if req.Cost != "" {
		cost, err := decimal.NewFromString(req.Cost)
		if err != nil || cost.IsNegative() {
			responses.HandleNewError(c, platformerrors.ErrorTypeValidation, "cost must be a non-negative decimal string", "9b3f7d1e-5a8c-4420-b9b3-2f6d0a4e8c1b")
			return
		}
		record.CostUSD = cost
	}

	if len(req.Metadata) > 0 {
		metadata, err := json.Marshal(req.Metadata)
		if err != nil {
			responses.HandleNewError(c, platformerrors.ErrorTypeValidation, "invalid metadata", "5e9d3b7f-1c4a-4682-85e9-0d2f6b8a4c7e")
			return
		}
		record.Metadata = metadata
	}

	if err := h.usageService.RecordUsage(c.Request.Context(), record); err != nil {
		responses.HandleError(c, err, "failed to record usage")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": record.ID, "cost_usd": record.CostUSD.String()})
}

// GetUsage lists the caller's raw usage events plus their exact total cost.
func (h *UsageHandler) GetUsage(c *gin.Context) {
	principal, ok := requireHandlerPrincipal(c)
	if !ok {
		return
	}

	var query requests.ListUsageQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		responses.HandleNewError(c, platformerrors.ErrorTypeValidation, "invalid usage query", "7f1b5d9c-3e6a-4048-a7f1-8b2d6f0a4e9c")
		return
	}

	records, err := h.usageService.ListByUser(c.Request.Context(), principal.UserID, query.Limit, query.Offset)
	if err != nil {
		responses.HandleError(c, err, "failed to list usage")
		return
	}

	total, err := h.usageService.TotalCost(c.Request.Context(), principal.UserID)
	if err != nil {
		responses.HandleError(c, err, "failed to total usage")
		return
	}
	c.JSON(http.StatusOK, responses.NewUsageListResponse(records, total))
}

// GetDailyUsage returns the caller's rolled-up daily aggregates.
func (h *UsageHandler) GetDailyUsage(c *gin.Context) {
	principal, ok := requireHandlerPrincipal(c)
	if !ok {
		return
	}

	var query requests.DailyUsageQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		responses.HandleNewError(c, platformerrors.ErrorTypeValidation, "invalid date range", "3b7d1f5e-9a2c-4604-93b7-6d0f4b8e2a5c")
		return
	}

	from, err := parseDay(query.From)
	if err != nil {
		responses.HandleNewError(c, platformerrors.ErrorTypeValidation, "from must be formatted YYYY-MM-DD", "e6a0c4b8-2d7f-4131-9e6a-5c9b3d7f1a4e")
		return
	}
	to, err := parseDay(query.To)
	if err != nil {
		responses.HandleNewError(c, platformerrors.ErrorTypeValidation, "to must be formatted YYYY-MM-DD", "0a4e8c2b-6f9d-4517-80a4-3d7b1e5f9c2a")
		return
	}

	days, err := h.usageService.ListDailyByUser(c.Request.Context(), principal.UserID, from, to)
	if err != nil {
		responses.HandleError(c, err, "failed to list daily usage")
		return
	}
	c.JSON(http.StatusOK, responses.NewDailyUsageListResponse(days))
}

func parseDay(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	return time.Parse(dailyDateLayout, value)
}

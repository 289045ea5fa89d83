package requests

// PostUsageRequest logs one usage event. Cost is a decimal string; when
// empty, the server derives it from token counts and model pricing.
type PostUsageRequest struct {
	Feature          string         `json:"feature"`
	Model            string         `json:"model" binding:"required"`
	PromptTokens     int            `json:"prompt_tokens" binding:"min=0"`
	CompletionTokens int            `json:"completion_tokens" binding:"min=0"`
	Cost             string         `json:"cost"`
	Metadata         map[string]any `json:"metadata"`
}

type ListUsageQuery struct {
	Limit  int `form:"limit,default=100"`
	Offset int `form:"offset,default=0"`
}

type DailyUsageQuery struct {
	From string `form:"from" time_format:"2006-01-02"`
	To   string `form:"to" time_format:"2006-01-02"`
}

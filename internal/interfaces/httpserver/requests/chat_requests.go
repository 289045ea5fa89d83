package requests

// IncomingMessagePart mirrors one structured content fragment of a message.
type IncomingMessagePart struct {
	Type string         `json:"type" binding:"required"`
	Text string         `json:"text"`
	Data map[string]any `json:"data"`
}

type IncomingAttachment struct {
	Name        string `json:"name"`
	URL         string `json:"url" binding:"required"`
	ContentType string `json:"content_type"`
}

// IncomingMessage is a client-supplied message. The ID is optional; the
// server generates one when absent.
type IncomingMessage struct {
	ID          string                `json:"id"`
	Role        string                `json:"role" binding:"required"`
	Parts       []IncomingMessagePart `json:"parts" binding:"required"`
	Attachments []IncomingAttachment  `json:"attachments"`
}

// PostChatRequest starts or continues a chat completion exchange.
type PostChatRequest struct {
	ID       string            `json:"id" binding:"required"`
	Messages []IncomingMessage `json:"messages" binding:"required"`
}

type DeleteChatRequest struct {
	ID string `json:"id" binding:"required"`
}

type VoteRequest struct {
	ChatID    string `json:"chat_id" binding:"required"`
	MessageID string `json:"message_id" binding:"required"`
	Type      string `json:"type" binding:"required,oneof=up down"`
}

type VisibilityRequest struct {
	ChatID     string `json:"chat_id" binding:"required"`
	Visibility string `json:"visibility" binding:"required,oneof=private public"`
}

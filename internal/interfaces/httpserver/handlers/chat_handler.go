package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"

	"chatdesk/chat-api/internal/config"
	"chatdesk/chat-api/internal/domain/aiusage"
	"chatdesk/chat-api/internal/domain/chat"
	"chatdesk/chat-api/internal/infrastructure/auth"
	"chatdesk/chat-api/internal/infrastructure/metrics"
	"chatdesk/chat-api/internal/interfaces/httpserver/middlewares"
	"chatdesk/chat-api/internal/interfaces/httpserver/requests"
	"chatdesk/chat-api/internal/interfaces/httpserver/responses"
	"chatdesk/chat-api/internal/utils/functional"
	chatclient "chatdesk/chat-api/internal/utils/httpclients/chat"
	"chatdesk/chat-api/internal/utils/platformerrors"
)

const modelCookieName = "selected-model"

// ChatHandler exposes the chat, message and vote endpoints.
type ChatHandler struct {
	cfg          *config.Config
	chatService  *chat.Service
	usageService *aiusage.Service
	completions  *chatclient.ChatCompletionClient
	log          zerolog.Logger
}

func NewChatHandler(
	cfg *config.Config,
	chatService *chat.Service,
	usageService *aiusage.Service,
	completions *chatclient.ChatCompletionClient,
	log zerolog.Logger,
) *ChatHandler {
	return &ChatHandler{
		cfg:          cfg,
		chatService:  chatService,
		usageService: usageService,
		completions:  completions,
		log:          log.With().Str("component", "chat-handler").Logger(),
	}
}

// PostChat resolves or creates the chat, persists the incoming user message
// and streams the assistant reply back as SSE. The assistant message and its
// usage record are only written once the provider stream completed.
func (h *ChatHandler) PostChat(c *gin.Context) {
	principal, ok := requireHandlerPrincipal(c)
	if !ok {
		return
	}
	if principal.Guest && !h.cfg.AllowAnonymousChat {
		responses.HandleNewError(c, platformerrors.ErrorTypeUnauthorized, "anonymous chats are disabled", "7b1d5f9a-3c6e-4820-b7d1-0f4a8c2e6b9d")
		return
	}

	var req requests.PostChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		responses.HandleNewError(c, platformerrors.ErrorTypeValidation, "invalid chat request: "+err.Error(), "2d6f0b4e-8a1c-4593-92d6-5b9e3c7a1f4d")
		return
	}

	model, err := c.Cookie(modelCookieName)
	if err != nil || model == "" {
		responses.HandleNewError(c, platformerrors.ErrorTypeValidation, "no model selected", "9f3b7d1c-5e8a-4264-bf3b-6d0a4e8c2f5b")
		return
	}

	incoming := toDomainMessages(req.Messages)
	lastUser := lastUserMessage(incoming)
	if lastUser == nil {
		responses.HandleNewError(c, platformerrors.ErrorTypeValidation, "request must include a user message", "4e8c2a6f-0d3b-4917-84e8-7f1b5d9c3a60")
		return
	}

	ctx := c.Request.Context()

	chatRecord, created, err := h.chatService.ResolveOrCreate(ctx, req.ID, principal.UserID, lastUser)
	if err != nil {
		responses.HandleError(c, err, "failed to resolve chat")
		return
	}
	if created {
		metrics.ChatsCreatedTotal.Inc()
	}

	// The user message is stored before streaming starts so an interrupted
	// stream never loses the prompt.
	if _, err := h.chatService.AppendMessages(ctx, chatRecord.ID, []*chat.Message{lastUser}); err != nil {
		responses.HandleError(c, err, "failed to store message")
		return
	}

	completionReq := openai.ChatCompletionRequest{
		Model:    model,
		Messages: toOpenAIMessages(incoming),
		Stream:   true,
	}

	metrics.StreamsActive.Inc()
	defer metrics.StreamsActive.Dec()

	beforeDone := h.persistCompletion(chatRecord, principal, model)

	if _, err := h.completions.StreamChatCompletionToContext(c, h.cfg.ProviderAPIKey, completionReq, beforeDone); err != nil {
		metrics.ProviderErrorsTotal.WithLabelValues("chat_completion").Inc()
		if !c.Writer.Written() {
			responses.HandleError(c, err, "completion failed")
			return
		}
		h.log.Error().Err(err).Str("chat_id", chatRecord.PublicID).Msg("stream aborted after first byte")
	}
}

// persistCompletion builds the callback that stores the assistant message and
// meters usage before the [DONE] marker reaches the client. It runs on a
// detached context: a disconnected client must not abort persistence.
func (h *ChatHandler) persistCompletion(chatRecord *chat.Chat, principal *auth.Principal, model string) chatclient.BeforeDoneCallback {
	return func(c *gin.Context, response *openai.ChatCompletionResponse) error {
		ctx := context.WithoutCancel(c.Request.Context())

		content := ""
		if len(response.Choices) > 0 {
			content = response.Choices[0].Message.Content
		}

		assistant := &chat.Message{
			Role:  chat.RoleAssistant,
			Parts: []chat.MessagePart{{Type: "text", Text: content}},
		}
		if _, err := h.chatService.AppendMessages(ctx, chatRecord.ID, []*chat.Message{assistant}); err != nil {
			return err
		}

		metadata, _ := json.Marshal(map[string]string{"chat_id": chatRecord.PublicID})
		h.usageService.RecordUsageBestEffort(ctx, &aiusage.UsageRecord{
			UserID:           principal.UserID,
			Feature:          aiusage.FeatureChat,
			Model:            model,
			PromptTokens:     response.Usage.PromptTokens,
			CompletionTokens: response.Usage.CompletionTokens,
			Metadata:         metadata,
		})

		metrics.TokensPromptTotal.WithLabelValues(model).Add(float64(response.Usage.PromptTokens))
		metrics.TokensCompletionTotal.WithLabelValues(model).Add(float64(response.Usage.CompletionTokens))
		return nil
	}
}

// GetHistory lists the caller's chats, most recent first.
func (h *ChatHandler) GetHistory(c *gin.Context) {
	principal, ok := requireHandlerPrincipal(c)
	if !ok {
		return
	}

	chats, err := h.chatService.ListChats(c.Request.Context(), principal.UserID)
	if err != nil {
		responses.HandleError(c, err, "failed to list chats")
		return
	}
	c.JSON(http.StatusOK, responses.NewHistoryResponse(chats))
}

// GetMessages returns the chronological transcript of a readable chat.
func (h *ChatHandler) GetMessages(c *gin.Context) {
	principal, ok := requireHandlerPrincipal(c)
	if !ok {
		return
	}

	chatID := c.Param("id")
	if chatID == "" {
		responses.HandleNewError(c, platformerrors.ErrorTypeValidation, "chat id is required", "b8d2f6a0-4c7e-4193-9b8d-1f5a3c9e7b2d")
		return
	}

	readable, err := h.chatService.GetReadableChat(c.Request.Context(), chatID, principal.UserID)
	if err != nil {
		responses.HandleError(c, err, "chat not found")
		return
	}

	messages, err := h.chatService.ListMessages(c.Request.Context(), readable.ID)
	if err != nil {
		responses.HandleError(c, err, "failed to list messages")
		return
	}
	c.JSON(http.StatusOK, responses.NewMessageListResponse(messages))
}

// DeleteChat removes an owned chat with its messages and votes.
func (h *ChatHandler) DeleteChat(c *gin.Context) {
	principal, ok := requireHandlerPrincipal(c)
	if !ok {
		return
	}

	var req requests.DeleteChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		responses.HandleNewError(c, platformerrors.ErrorTypeValidation, "chat id is required", "6a0c4e8b-2d5f-4739-a6a0-9c3e7b1d5f82")
		return
	}

	if err := h.chatService.DeleteChat(c.Request.Context(), req.ID, principal.UserID); err != nil {
		responses.HandleError(c, err, "failed to delete chat")
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": req.ID, "status": "deleted"})
}

// DeleteTrailingMessages removes a message and everything after it in its
// chat. Supports the edit-and-regenerate flow.
func (h *ChatHandler) DeleteTrailingMessages(c *gin.Context) {
	principal, ok := requireHandlerPrincipal(c)
	if !ok {
		return
	}

	if err := h.chatService.DeleteTrailingMessages(c.Request.Context(), c.Param("id"), principal.UserID); err != nil {
		responses.HandleError(c, err, "failed to delete messages")
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// PostVote records an up or down vote on a message of an owned chat.
func (h *ChatHandler) PostVote(c *gin.Context) {
	principal, ok := requireHandlerPrincipal(c)
	if !ok {
		return
	}

	var req requests.VoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		responses.HandleNewError(c, platformerrors.ErrorTypeValidation, "invalid vote request: "+err.Error(), "0e4a8c2d-6f1b-4957-80e4-3b7d1f5a9c2e")
		return
	}

	if err := h.chatService.UpsertVote(c.Request.Context(), req.ChatID, req.MessageID, principal.UserID, req.Type == "up"); err != nil {
		responses.HandleError(c, err, "failed to record vote")
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "voted"})
}

// GetVotes lists the votes of a readable chat.
func (h *ChatHandler) GetVotes(c *gin.Context) {
	principal, ok := requireHandlerPrincipal(c)
	if !ok {
		return
	}

	chatID := c.Param("id")
	if chatID == "" {
		responses.HandleNewError(c, platformerrors.ErrorTypeValidation, "chat id is required", "8c2e6a0d-4f7b-4153-98c2-1e5b9d3f7a0c")
		return
	}

	votes, err := h.chatService.ListVotes(c.Request.Context(), chatID, principal.UserID)
	if err != nil {
		responses.HandleError(c, err, "failed to list votes")
		return
	}
	c.JSON(http.StatusOK, responses.NewVoteListResponse(votes))
}

// PatchVisibility flips an owned chat between private and public.
func (h *ChatHandler) PatchVisibility(c *gin.Context) {
	principal, ok := requireHandlerPrincipal(c)
	if !ok {
		return
	}

	var req requests.VisibilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		responses.HandleNewError(c, platformerrors.ErrorTypeValidation, "invalid visibility request: "+err.Error(), "5f9b3d7a-1c4e-4682-b5f9-8d2a6c0e4b7f")
		return
	}

	if err := h.chatService.SetVisibility(c.Request.Context(), req.ChatID, principal.UserID, chat.Visibility(req.Visibility)); err != nil {
		responses.HandleError(c, err, "failed to update visibility")
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": req.ChatID, "visibility": req.Visibility})
}

// requireHandlerPrincipal fetches the authenticated principal set by the auth
// middleware, rejecting the request when it is somehow absent.
func requireHandlerPrincipal(c *gin.Context) (*auth.Principal, bool) {
	principal, ok := middlewares.PrincipalFromContext(c)
	if !ok {
		responses.HandleNewError(c, platformerrors.ErrorTypeUnauthorized, "authentication required", "3a7d1f5b-9c2e-4046-a3a7-6e0b4d8f2c5a")
		return nil, false
	}
	return principal, true
}

func toDomainMessages(incoming []requests.IncomingMessage) []*chat.Message {
	return functional.Map(incoming, func(m requests.IncomingMessage) *chat.Message {
		return &chat.Message{
			PublicID: m.ID,
			Role:     chat.Role(m.Role),
			Parts: functional.Map(m.Parts, func(p requests.IncomingMessagePart) chat.MessagePart {
				return chat.MessagePart{Type: p.Type, Text: p.Text, Data: p.Data}
			}),
			Attachments: functional.Map(m.Attachments, func(a requests.IncomingAttachment) chat.Attachment {
				return chat.Attachment{Name: a.Name, URL: a.URL, ContentType: a.ContentType}
			}),
		}
	})
}

func lastUserMessage(messages []*chat.Message) *chat.Message {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == chat.RoleUser {
			return messages[i]
		}
	}
	return nil
}

func toOpenAIMessages(messages []*chat.Message) []openai.ChatCompletionMessage {
	return functional.Map(messages, func(m *chat.Message) openai.ChatCompletionMessage {
		return openai.ChatCompletionMessage{
			Role:    string(m.Role),
			Content: m.TextContent(),
		}
	})
}

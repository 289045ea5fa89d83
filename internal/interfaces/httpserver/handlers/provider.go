package handlers

import (
	"github.com/rs/zerolog"

	"chatdesk/chat-api/internal/config"
	"chatdesk/chat-api/internal/domain/aiusage"
	"chatdesk/chat-api/internal/domain/chat"
	chatclient "chatdesk/chat-api/internal/utils/httpclients/chat"
)

// Provider wires HTTP handlers.
type Provider struct {
	Chat  *ChatHandler
	Usage *UsageHandler
}

func NewProvider(
	cfg *config.Config,
	chatService *chat.Service,
	usageService *aiusage.Service,
	completions *chatclient.ChatCompletionClient,
	log zerolog.Logger,
) *Provider {
	return &Provider{
		Chat:  NewChatHandler(cfg, chatService, usageService, completions, log),
		Usage: NewUsageHandler(usageService, log),
	}
}

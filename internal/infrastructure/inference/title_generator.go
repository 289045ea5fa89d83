package inference

import (
	"context"
	"strings"

	"github.com/sashabaranov/go-openai"

	"chatdesk/chat-api/internal/config"
	domainchat "chatdesk/chat-api/internal/domain/chat"
	chatclient "chatdesk/chat-api/internal/utils/httpclients/chat"
	"chatdesk/chat-api/internal/utils/platformerrors"
)

const titleSystemPrompt = "Generate a short title summarizing the user's message. " +
	"Keep it under 80 characters. Do not use quotes or colons."

// TitleGenerator produces chat titles with a single non-streaming completion
// call. Provider failures are returned to the caller, which decides the
// fallback; nothing is retried here.
type TitleGenerator struct {
	client *chatclient.ChatCompletionClient
	apiKey string
	model  string
}

var _ domainchat.TitleGenerator = (*TitleGenerator)(nil)

func NewTitleGenerator(client *chatclient.ChatCompletionClient, cfg *config.Config) *TitleGenerator {
	return &TitleGenerator{
		client: client,
		apiKey: cfg.ProviderAPIKey,
		model:  cfg.TitleModel,
	}
}

// GenerateTitle implements chat.TitleGenerator.
func (g *TitleGenerator) GenerateTitle(ctx context.Context, content string) (string, error) {
	resp, err := g.client.CreateChatCompletion(ctx, g.apiKey, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: titleSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: content},
		},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeExternal, "title completion returned no choices", nil, "a2c6e0b4-8d1f-4375-9a2c-5e8b0d3f6a1c")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

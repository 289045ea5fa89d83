package responses

import (
	"time"

	"chatdesk/chat-api/internal/domain/chat"
	"chatdesk/chat-api/internal/utils/functional"
)

type ChatResponse struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	UserID     string    `json:"user_id"`
	Visibility string    `json:"visibility"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type MessageResponse struct {
	ID          string             `json:"id"`
	Role        string             `json:"role"`
	Parts       []chat.MessagePart `json:"parts"`
	Attachments []chat.Attachment  `json:"attachments,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
}

type VoteResponse struct {
	ChatID    string `json:"chat_id"`
	MessageID string `json:"message_id"`
	IsUpvoted bool   `json:"is_upvoted"`
}

type HistoryResponse struct {
	Chats []ChatResponse `json:"chats"`
}

type MessageListResponse struct {
	Messages []MessageResponse `json:"messages"`
}

type VoteListResponse struct {
	Votes []VoteResponse `json:"votes"`
}

func NewChatResponse(c *chat.Chat) ChatResponse {
	return ChatResponse{
		ID:         c.PublicID,
		Title:      c.Title,
		UserID:     c.UserID,
		Visibility: string(c.Visibility),
		CreatedAt:  c.CreatedAt,
		UpdatedAt:  c.UpdatedAt,
	}
}

func NewHistoryResponse(chats []*chat.Chat) HistoryResponse {
	return HistoryResponse{
		Chats: functional.Map(chats, func(c *chat.Chat) ChatResponse {
			return NewChatResponse(c)
		}),
	}
}

func NewMessageResponse(m *chat.Message) MessageResponse {
	return MessageResponse{
		ID:          m.PublicID,
		Role:        string(m.Role),
		Parts:       m.Parts,
		Attachments: m.Attachments,
		CreatedAt:   m.CreatedAt,
	}
}

func NewMessageListResponse(messages []*chat.Message) MessageListResponse {
	return MessageListResponse{
		Messages: functional.Map(messages, func(m *chat.Message) MessageResponse {
			return NewMessageResponse(m)
		}),
	}
}

func NewVoteListResponse(votes []*chat.Vote) VoteListResponse {
	return VoteListResponse{
		Votes: functional.Map(votes, func(v *chat.Vote) VoteResponse {
			return VoteResponse{
				ChatID:    v.ChatPublicID,
				MessageID: v.MessagePublicID,
				IsUpvoted: v.IsUpvoted,
			}
		}),
	}
}

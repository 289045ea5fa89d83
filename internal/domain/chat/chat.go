package chat

import (
	"context"
	"time"
)

type Visibility string

const (
	VisibilityPrivate Visibility = "private"
	VisibilityPublic  Visibility = "public"
)

// ValidVisibility reports whether v is a recognized visibility value.
func ValidVisibility(v Visibility) bool {
	return v == VisibilityPrivate || v == VisibilityPublic
}

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Chat is a single conversation owned by one user. The owner never changes;
// visibility may be flipped by the owner only.
type Chat struct {
	ID         uint       `json:"-"`
	PublicID   string     `json:"id"`
	UserID     string     `json:"user_id"`
	Title      string     `json:"title"`
	Visibility Visibility `json:"visibility"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// MessagePart is one structured fragment of a message body. Text parts carry
// Text; other kinds keep their payload in Data.
type MessagePart struct {
	Type string         `json:"type"`
	Text string         `json:"text,omitempty"`
	Data map[string]any `json:"data,omitempty"`
}

type Attachment struct {
	Name        string `json:"name"`
	URL         string `json:"url"`
	ContentType string `json:"content_type,omitempty"`
}

// Message is immutable once stored, except for deletion. Within a chat,
// messages are ordered by CreatedAt.
type Message struct {
	ID          uint          `json:"-"`
	PublicID    string        `json:"id"`
	ChatID      uint          `json:"-"`
	Role        Role          `json:"role"`
	Parts       []MessagePart `json:"parts"`
	Attachments []Attachment  `json:"attachments"`
	CreatedAt   time.Time     `json:"created_at"`
}

// TextContent concatenates the text parts of the message.
func (m *Message) TextContent() string {
	var out string
	for _, p := range m.Parts {
		if p.Type == "text" {
			out += p.Text
		}
	}
	return out
}

// Vote records an up/down flag for one (chat, message) pair. Repeated votes
// overwrite in place.
type Vote struct {
	ChatID          uint      `json:"-"`
	MessageID       uint      `json:"-"`
	ChatPublicID    string    `json:"chat_id"`
	MessagePublicID string    `json:"message_id"`
	IsUpvoted       bool      `json:"is_upvoted"`
	UpdatedAt       time.Time `json:"-"`
}

type Repository interface {
	Create(ctx context.Context, chat *Chat) error
	FindByID(ctx context.Context, id uint) (*Chat, error)
	FindByPublicID(ctx context.Context, publicID string) (*Chat, error)
	FindByUser(ctx context.Context, userID string) ([]*Chat, error)
	// Delete removes the chat, its messages and their votes in one
	// transaction, children first.
	Delete(ctx context.Context, id uint) error
	UpdateVisibility(ctx context.Context, id uint, visibility Visibility) error

	AppendMessages(ctx context.Context, chatID uint, messages []*Message) error
	ListMessages(ctx context.Context, chatID uint) ([]*Message, error)
	GetMessageByPublicID(ctx context.Context, publicID string) (*Message, error)
	// DeleteMessagesAfter removes every message of the chat created at or
	// after ts, plus votes referencing them, in one transaction.
	DeleteMessagesAfter(ctx context.Context, chatID uint, ts time.Time) error

	UpsertVote(ctx context.Context, vote *Vote) error
	ListVotes(ctx context.Context, chatID uint) ([]*Vote, error)
}

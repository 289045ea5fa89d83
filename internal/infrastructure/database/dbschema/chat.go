package dbschema

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"chatdesk/chat-api/internal/domain/chat"
)

// Chat represents the database schema for chats
type Chat struct {
	BaseModel
	PublicID   string `gorm:"type:varchar(64);uniqueIndex;not null"`
	UserID     string `gorm:"type:varchar(64);index:idx_chat_user_created;not null"`
	Title      string `gorm:"type:varchar(256);not null"`
	Visibility string `gorm:"type:varchar(16);not null;default:'private'"`

	Messages []Message `gorm:"foreignKey:ChatID"`
}

// Message represents the database schema for chat messages
type Message struct {
	BaseModel
	PublicID    string          `gorm:"type:varchar(64);uniqueIndex;not null"`
	ChatID      uint            `gorm:"index:idx_message_chat_created;not null"`
	Chat        Chat            `gorm:"foreignKey:ChatID"`
	Role        string          `gorm:"type:varchar(20);not null"`
	Parts       JSONParts       `gorm:"type:jsonb;not null"`
	Attachments JSONAttachments `gorm:"type:jsonb"`
}

// Vote represents the database schema for message votes. The unique index on
// (chat_id, message_id) backs the upsert.
type Vote struct {
	BaseModel
	ChatID    uint    `gorm:"uniqueIndex:idx_vote_chat_message;not null"`
	MessageID uint    `gorm:"uniqueIndex:idx_vote_chat_message;not null"`
	Message   Message `gorm:"foreignKey:MessageID"`
	IsUpvoted bool    `gorm:"not null"`
}

// JSONParts stores []chat.MessagePart as JSON
type JSONParts []chat.MessagePart

func (j JSONParts) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

func (j *JSONParts) Scan(value any) error {
	if value == nil {
		*j = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("expected []byte, got %T", value)
	}
	return json.Unmarshal(bytes, j)
}

// JSONAttachments stores []chat.Attachment as JSON
type JSONAttachments []chat.Attachment

func (j JSONAttachments) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

func (j *JSONAttachments) Scan(value any) error {
	if value == nil {
		*j = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("expected []byte, got %T", value)
	}
	return json.Unmarshal(bytes, j)
}

// NewSchemaChat creates a database schema from a domain chat
func NewSchemaChat(c *chat.Chat) *Chat {
	return &Chat{
		BaseModel: BaseModel{
			ID:        c.ID,
			CreatedAt: c.CreatedAt,
			UpdatedAt: c.UpdatedAt,
		},
		PublicID:   c.PublicID,
		UserID:     c.UserID,
		Title:      c.Title,
		Visibility: string(c.Visibility),
	}
}

// EtoD converts the schema chat to its domain representation
func (c *Chat) EtoD() *chat.Chat {
	return &chat.Chat{
		ID:         c.ID,
		PublicID:   c.PublicID,
		UserID:     c.UserID,
		Title:      c.Title,
		Visibility: chat.Visibility(c.Visibility),
		CreatedAt:  c.CreatedAt,
		UpdatedAt:  c.UpdatedAt,
	}
}

// NewSchemaMessage creates a database schema from a domain message
func NewSchemaMessage(m *chat.Message) *Message {
	return &Message{
		BaseModel: BaseModel{
			ID:        m.ID,
			CreatedAt: m.CreatedAt,
		},
		PublicID:    m.PublicID,
		ChatID:      m.ChatID,
		Role:        string(m.Role),
		Parts:       JSONParts(m.Parts),
		Attachments: JSONAttachments(m.Attachments),
	}
}

// EtoD converts the schema message to its domain representation
func (m *Message) EtoD() *chat.Message {
	return &chat.Message{
		ID:          m.ID,
		PublicID:    m.PublicID,
		ChatID:      m.ChatID,
		Role:        chat.Role(m.Role),
		Parts:       []chat.MessagePart(m.Parts),
		Attachments: []chat.Attachment(m.Attachments),
		CreatedAt:   m.CreatedAt,
	}
}

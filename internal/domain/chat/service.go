package chat

import (
	"context"
	"time"

	"chatdesk/chat-api/internal/infrastructure/logger"
	"chatdesk/chat-api/internal/utils/idgen"
	"chatdesk/chat-api/internal/utils/platformerrors"
	"chatdesk/chat-api/internal/utils/stringutils"
)

const (
	fallbackTitle  = "New chat"
	titleMaxLength = 80
)

// TitleGenerator produces a short chat title from the first user message.
type TitleGenerator interface {
	GenerateTitle(ctx context.Context, content string) (string, error)
}

// Service handles business logic for chats, messages and votes
type Service struct {
	repo   Repository
	titles TitleGenerator
}

// NewService creates a new chat service
func NewService(repo Repository, titles TitleGenerator) *Service {
	return &Service{
		repo:   repo,
		titles: titles,
	}
}

// ===============================================
// Chat Operations
// ===============================================

// ResolveOrCreate looks up a chat by its public ID and creates it when absent.
// The boolean result reports whether a new chat was created. An existing chat
// owned by a different user is a forbidden error regardless of visibility:
// visibility only grants read access.
func (s *Service) ResolveOrCreate(ctx context.Context, publicID, userID string, firstMessage *Message) (*Chat, bool, error) {
	existing, err := s.repo.FindByPublicID(ctx, publicID)
	if err == nil {
		if existing.UserID != userID {
			return nil, false, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeForbidden, "chat belongs to another user", nil, "3f6d8a12-9c4e-4b71-a2d5-8e0f1b3c5d7a")
		}
		return existing, false, nil
	}
	if !platformerrors.IsErrorType(err, platformerrors.ErrorTypeNotFound) {
		return nil, false, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to resolve chat")
	}

	created := &Chat{
		PublicID:   publicID,
		UserID:     userID,
		Title:      s.titleFor(ctx, firstMessage),
		Visibility: VisibilityPrivate,
	}
	if err := s.repo.Create(ctx, created); err != nil {
		return nil, false, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to create chat")
	}
	return created, true, nil
}

// titleFor asks the title generator and falls back to a truncated copy of the
// message text. Generation failure never blocks chat creation.
func (s *Service) titleFor(ctx context.Context, firstMessage *Message) string {
	content := ""
	if firstMessage != nil {
		content = firstMessage.TextContent()
	}

	if s.titles != nil && content != "" {
		title, err := s.titles.GenerateTitle(ctx, content)
		if err == nil && title != "" {
			return stringutils.TruncateTitle(title, titleMaxLength)
		}
		if err != nil {
			log := logger.GetLogger()
			log.Warn().Err(err).Msg("title generation failed, using fallback")
		}
	}

	if fallback := stringutils.GenerateTitle(content, titleMaxLength); fallback != "" {
		return fallback
	}
	return fallbackTitle
}

// GetOwnedChat retrieves a chat and verifies the caller owns it.
func (s *Service) GetOwnedChat(ctx context.Context, publicID, userID string) (*Chat, error) {
	found, err := s.repo.FindByPublicID(ctx, publicID)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "chat not found")
	}
	if found.UserID != userID {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeForbidden, "chat belongs to another user", nil, "5a1c9e37-2b8d-4f60-9c3e-7d4a6b8f0e2c")
	}
	return found, nil
}

// GetReadableChat retrieves a chat for read access: the owner always, anyone
// else only when the chat is public.
func (s *Service) GetReadableChat(ctx context.Context, publicID, userID string) (*Chat, error) {
	found, err := s.repo.FindByPublicID(ctx, publicID)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "chat not found")
	}
	if found.UserID != userID && found.Visibility != VisibilityPublic {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeForbidden, "chat is private", nil, "8c2e4a60-1f7b-4d93-b5a8-3e9c0d6f2b4e")
	}
	return found, nil
}

// ListChats returns the caller's chats, most recent first.
func (s *Service) ListChats(ctx context.Context, userID string) ([]*Chat, error) {
	chats, err := s.repo.FindByUser(ctx, userID)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to list chats")
	}
	return chats, nil
}

// DeleteChat removes an owned chat together with its messages and votes.
func (s *Service) DeleteChat(ctx context.Context, publicID, userID string) error {
	owned, err := s.GetOwnedChat(ctx, publicID, userID)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, owned.ID); err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to delete chat")
	}
	return nil
}

// SetVisibility updates the visibility of an owned chat.
func (s *Service) SetVisibility(ctx context.Context, publicID, userID string, visibility Visibility) error {
	if !ValidVisibility(visibility) {
		return platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation, "invalid visibility value", nil, "b7d1f3a9-6e2c-4850-a4b7-9f0e3c5d8a1b")
	}
	owned, err := s.GetOwnedChat(ctx, publicID, userID)
	if err != nil {
		return err
	}
	if err := s.repo.UpdateVisibility(ctx, owned.ID, visibility); err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to update visibility")
	}
	return nil
}

// ===============================================
// Message Operations
// ===============================================

// AppendMessages stores messages on the chat, assigning timestamps and public
// IDs where missing. Duplicate public IDs surface as storage errors, never as
// silent drops.
func (s *Service) AppendMessages(ctx context.Context, chatID uint, messages []*Message) ([]*Message, error) {
	now := time.Now().UTC()
	for _, msg := range messages {
		if msg.PublicID == "" {
			publicID, err := idgen.NewMessageID()
			if err != nil {
				return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to generate message ID")
			}
			msg.PublicID = publicID
		}
		if msg.CreatedAt.IsZero() {
			msg.CreatedAt = now
		}
		msg.ChatID = chatID
	}

	if err := s.repo.AppendMessages(ctx, chatID, messages); err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to append messages")
	}
	return messages, nil
}

// ListMessages returns the chronological transcript, oldest first.
func (s *Service) ListMessages(ctx context.Context, chatID uint) ([]*Message, error) {
	messages, err := s.repo.ListMessages(ctx, chatID)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to list messages")
	}
	return messages, nil
}

// DeleteTrailingMessages removes the named message and everything after it in
// the same chat, including votes on the removed messages. Used for
// edit-and-regenerate.
func (s *Service) DeleteTrailingMessages(ctx context.Context, messagePublicID, userID string) error {
	msg, err := s.repo.GetMessageByPublicID(ctx, messagePublicID)
	if err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "message not found")
	}

	parent, err := s.repo.FindByID(ctx, msg.ChatID)
	if err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "chat not found")
	}
	if parent.UserID != userID {
		return platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeForbidden, "chat belongs to another user", nil, "d4a8c2e6-0b5f-4971-8d3a-6c1e9f4b7a0d")
	}

	if err := s.repo.DeleteMessagesAfter(ctx, msg.ChatID, msg.CreatedAt); err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to delete trailing messages")
	}
	return nil
}

// ===============================================
// Vote Operations
// ===============================================

// UpsertVote records an up/down vote on a message of an owned chat. Calling
// twice for the same pair updates in place.
func (s *Service) UpsertVote(ctx context.Context, chatPublicID, messagePublicID, userID string, isUpvoted bool) error {
	owned, err := s.GetOwnedChat(ctx, chatPublicID, userID)
	if err != nil {
		return err
	}

	msg, err := s.repo.GetMessageByPublicID(ctx, messagePublicID)
	if err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "message not found")
	}
	if msg.ChatID != owned.ID {
		return platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation, "message does not belong to chat", nil, "e9b3d7f1-4a6c-4285-9e0b-2d8f5a1c3e6b")
	}

	vote := &Vote{
		ChatID:          owned.ID,
		MessageID:       msg.ID,
		ChatPublicID:    owned.PublicID,
		MessagePublicID: msg.PublicID,
		IsUpvoted:       isUpvoted,
	}
	if err := s.repo.UpsertVote(ctx, vote); err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to upsert vote")
	}
	return nil
}

// ListVotes returns the votes of a readable chat.
func (s *Service) ListVotes(ctx context.Context, chatPublicID, userID string) ([]*Vote, error) {
	readable, err := s.GetReadableChat(ctx, chatPublicID, userID)
	if err != nil {
		return nil, err
	}
	votes, err := s.repo.ListVotes(ctx, readable.ID)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to list votes")
	}
	return votes, nil
}

package handlers_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"chatdesk/chat-api/internal/config"
	"chatdesk/chat-api/internal/domain/aiusage"
	"chatdesk/chat-api/internal/domain/chat"
	"chatdesk/chat-api/internal/infrastructure/auth"
	"chatdesk/chat-api/internal/infrastructure/logger"
	"chatdesk/chat-api/internal/interfaces/httpserver"
	"chatdesk/chat-api/internal/interfaces/httpserver/handlers"
	"chatdesk/chat-api/internal/utils/httpclients"
	chatclient "chatdesk/chat-api/internal/utils/httpclients/chat"
	"chatdesk/chat-api/internal/utils/platformerrors"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// ===============================================
// In-memory fakes
// ===============================================

type memChatRepo struct {
	chats     []*chat.Chat
	messages  []*chat.Message
	votes     []*chat.Vote
	nextID    uint
	createErr error
}

func repoNotFound(msg string) error {
	return platformerrors.NewError(context.Background(), platformerrors.LayerInfrastructure, platformerrors.ErrorTypeNotFound, msg, nil, "00000000-0000-0000-0000-000000000000")
}

func repoConflict(msg string) error {
	return platformerrors.NewError(context.Background(), platformerrors.LayerInfrastructure, platformerrors.ErrorTypeConflict, msg, nil, "00000000-0000-0000-0000-000000000000")
}

func (r *memChatRepo) Create(ctx context.Context, c *chat.Chat) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.nextID++
	c.ID = r.nextID
	c.CreatedAt = time.Now().UTC()
	r.chats = append(r.chats, c)
	return nil
}

func (r *memChatRepo) FindByID(ctx context.Context, id uint) (*chat.Chat, error) {
	for _, c := range r.chats {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, repoNotFound("chat not found")
}

func (r *memChatRepo) FindByPublicID(ctx context.Context, publicID string) (*chat.Chat, error) {
	for _, c := range r.chats {
		if c.PublicID == publicID {
			return c, nil
		}
	}
	return nil, repoNotFound("chat not found")
}

func (r *memChatRepo) FindByUser(ctx context.Context, userID string) ([]*chat.Chat, error) {
	var out []*chat.Chat
	for _, c := range r.chats {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *memChatRepo) Delete(ctx context.Context, id uint) error {
	var chats []*chat.Chat
	for _, c := range r.chats {
		if c.ID != id {
			chats = append(chats, c)
		}
	}
	r.chats = chats
	var messages []*chat.Message
	for _, m := range r.messages {
		if m.ChatID != id {
			messages = append(messages, m)
		}
	}
	r.messages = messages
	return nil
}

func (r *memChatRepo) UpdateVisibility(ctx context.Context, id uint, visibility chat.Visibility) error {
	c, err := r.FindByID(ctx, id)
	if err != nil {
		return err
	}
	c.Visibility = visibility
	return nil
}

func (r *memChatRepo) AppendMessages(ctx context.Context, chatID uint, messages []*chat.Message) error {
	for _, m := range messages {
		r.nextID++
		m.ID = r.nextID
		r.messages = append(r.messages, m)
	}
	return nil
}

func (r *memChatRepo) ListMessages(ctx context.Context, chatID uint) ([]*chat.Message, error) {
	var out []*chat.Message
	for _, m := range r.messages {
		if m.ChatID == chatID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *memChatRepo) GetMessageByPublicID(ctx context.Context, publicID string) (*chat.Message, error) {
	for _, m := range r.messages {
		if m.PublicID == publicID {
			return m, nil
		}
	}
	return nil, repoNotFound("message not found")
}

func (r *memChatRepo) DeleteMessagesAfter(ctx context.Context, chatID uint, ts time.Time) error {
	var keep []*chat.Message
	for _, m := range r.messages {
		if m.ChatID == chatID && !m.CreatedAt.Before(ts) {
			continue
		}
		keep = append(keep, m)
	}
	r.messages = keep
	return nil
}

func (r *memChatRepo) UpsertVote(ctx context.Context, vote *chat.Vote) error {
	for i, v := range r.votes {
		if v.ChatID == vote.ChatID && v.MessageID == vote.MessageID {
			r.votes[i] = vote
			return nil
		}
	}
	r.votes = append(r.votes, vote)
	return nil
}

func (r *memChatRepo) ListVotes(ctx context.Context, chatID uint) ([]*chat.Vote, error) {
	var out []*chat.Vote
	for _, v := range r.votes {
		if v.ChatID == chatID {
			out = append(out, v)
		}
	}
	return out, nil
}

type memUsageRepo struct {
	records []*aiusage.UsageRecord
}

func (r *memUsageRepo) Create(ctx context.Context, record *aiusage.UsageRecord) error {
	r.records = append(r.records, record)
	return nil
}

func (r *memUsageRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*aiusage.UsageRecord, error) {
	var out []*aiusage.UsageRecord
	for _, rec := range r.records {
		if rec.UserID == userID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (r *memUsageRepo) SumCostByUser(ctx context.Context, userID string) (string, error) {
	total := "0"
	for _, rec := range r.records {
		if rec.UserID == userID {
			total = rec.CostUSD.String()
		}
	}
	return total, nil
}

func (r *memUsageRepo) AggregateDay(ctx context.Context, day time.Time) error { return nil }

func (r *memUsageRepo) ListDailyByUser(ctx context.Context, userID string, from, to time.Time) ([]*aiusage.DailyUsage, error) {
	return nil, nil
}

// ===============================================
// Fixture
// ===============================================

type fixture struct {
	engine    *gin.Engine
	chatRepo  *memChatRepo
	usageRepo *memUsageRepo
	sessions  *auth.SessionValidator
}

func newFixture(t *testing.T, providerURL string) *fixture {
	t.Helper()

	cfg := &config.Config{
		Environment:        "test",
		SessionSecret:      []byte("test-secret-at-least-16-bytes"),
		AllowAnonymousChat: false,
		ProviderBaseURL:    providerURL,
		ProviderAPIKey:     "test-key",
		TitleModel:         "gpt-4.1-nano",
		StreamTimeout:      5 * time.Second,
		ServiceName:        "chat-api-test",
	}

	sessions, err := auth.NewSessionValidator(cfg.SessionSecret, 30*time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	chatRepo := &memChatRepo{}
	usageRepo := &memUsageRepo{}

	restyClient := httpclients.NewClient("test")
	t.Cleanup(func() { _ = restyClient.Close() })
	completions := chatclient.NewChatCompletionClient(restyClient, "test", providerURL, cfg.StreamTimeout)

	chatService := chat.NewService(chatRepo, nil)
	usageService := aiusage.NewService(usageRepo)

	log, _ := logger.New("error", "console")
	provider := handlers.NewProvider(cfg, chatService, usageService, completions, log)
	server := httpserver.New(cfg, log, provider, sessions)

	return &fixture{
		engine:    server.Engine(),
		chatRepo:  chatRepo,
		usageRepo: usageRepo,
		sessions:  sessions,
	}
}

func (f *fixture) token(t *testing.T, userID string, guest bool) string {
	t.Helper()
	token, err := f.sessions.IssueToken(userID, userID+"@example.com", guest, time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return token
}

func (f *fixture) do(t *testing.T, method, path, token, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body != "" {
		reader = strings.NewReader(body)
	} else {
		reader = strings.NewReader("")
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	recorder := httptest.NewRecorder()
	f.engine.ServeHTTP(recorder, req)
	return recorder
}

func modelCookie(model string) *http.Cookie {
	return &http.Cookie{Name: "selected-model", Value: model}
}

func sseProvider(t *testing.T, content string, promptTokens, completionTokens int) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)

		chunk, _ := json.Marshal(map[string]any{
			"choices": []map[string]any{{"delta": map[string]string{"content": content}}},
		})
		fmt.Fprintf(w, "data: %s\n\n", chunk)

		usage, _ := json.Marshal(map[string]any{
			"choices": []any{},
			"usage": map[string]int{
				"prompt_tokens":     promptTokens,
				"completion_tokens": completionTokens,
				"total_tokens":      promptTokens + completionTokens,
			},
		})
		fmt.Fprintf(w, "data: %s\n\n", usage)
		fmt.Fprint(w, "data: [DONE]\n\n")
		flusher.Flush()
	}))
	t.Cleanup(server.Close)
	return server
}

func chatBody(id, text string) string {
	body, _ := json.Marshal(map[string]any{
		"id": id,
		"messages": []map[string]any{
			{
				"role":  "user",
				"parts": []map[string]string{{"type": "text", "text": text}},
			},
		},
	})
	return string(body)
}

// ===============================================
// Tests
// ===============================================

func TestRoutesRequireAuthentication(t *testing.T) {
	f := newFixture(t, "http://unused.invalid")

	recorder := f.do(t, http.MethodGet, "/history", "", "")
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", recorder.Code)
	}
}

func TestHealthEndpointsStayOpen(t *testing.T) {
	f := newFixture(t, "http://unused.invalid")

	for _, path := range []string{"/healthz", "/readyz", "/version"} {
		recorder := f.do(t, http.MethodGet, path, "", "")
		if recorder.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, recorder.Code)
		}
	}
}

func TestPostChatRejectsGuestsWhenDisabled(t *testing.T) {
	f := newFixture(t, "http://unused.invalid")

	recorder := f.do(t, http.MethodPost, "/chat", f.token(t, "guest-1", true), chatBody("chat_x", "hi"), modelCookie("gpt-4o"))
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", recorder.Code)
	}
}

func TestPostChatRequiresModelCookie(t *testing.T) {
	f := newFixture(t, "http://unused.invalid")

	recorder := f.do(t, http.MethodPost, "/chat", f.token(t, "user-1", false), chatBody("chat_x", "hi"))
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", recorder.Code)
	}
}

func TestPostChatRequiresUserMessage(t *testing.T) {
	f := newFixture(t, "http://unused.invalid")

	body, _ := json.Marshal(map[string]any{
		"id": "chat_x",
		"messages": []map[string]any{
			{"role": "assistant", "parts": []map[string]string{{"type": "text", "text": "hello"}}},
		},
	})
	recorder := f.do(t, http.MethodPost, "/chat", f.token(t, "user-1", false), string(body), modelCookie("gpt-4o"))
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", recorder.Code)
	}
}

func TestPostChatStreamsAndPersists(t *testing.T) {
	provider := sseProvider(t, "Hello there", 10, 5)
	f := newFixture(t, provider.URL)

	recorder := f.do(t, http.MethodPost, "/chat", f.token(t, "user-1", false), chatBody("chat_abc", "say hello"), modelCookie("gpt-4o"))
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", recorder.Code, recorder.Body.String())
	}
	if !strings.Contains(recorder.Body.String(), "[DONE]") {
		t.Fatal("response missing [DONE] marker")
	}

	if len(f.chatRepo.chats) != 1 {
		t.Fatalf("expected 1 chat, got %d", len(f.chatRepo.chats))
	}
	created := f.chatRepo.chats[0]
	if created.PublicID != "chat_abc" || created.UserID != "user-1" {
		t.Fatalf("unexpected chat: %+v", created)
	}
	if created.Visibility != chat.VisibilityPrivate {
		t.Fatal("new chats must be private")
	}

	messages, _ := f.chatRepo.ListMessages(context.Background(), created.ID)
	if len(messages) != 2 {
		t.Fatalf("expected user + assistant messages, got %d", len(messages))
	}
	if messages[0].Role != chat.RoleUser || messages[1].Role != chat.RoleAssistant {
		t.Fatalf("unexpected message roles: %s, %s", messages[0].Role, messages[1].Role)
	}
	if got := messages[1].TextContent(); got != "Hello there" {
		t.Fatalf("assistant content %q", got)
	}

	if len(f.usageRepo.records) != 1 {
		t.Fatalf("expected 1 usage record, got %d", len(f.usageRepo.records))
	}
	usage := f.usageRepo.records[0]
	if usage.PromptTokens != 10 || usage.CompletionTokens != 5 || usage.Model != "gpt-4o" {
		t.Fatalf("unexpected usage record: %+v", usage)
	}
	if usage.CostUSD.IsZero() {
		t.Fatal("usage cost was not derived")
	}
}

func TestPostChatDuplicateCreateConflicts(t *testing.T) {
	// Two first messages racing on the same chat id: the loser's insert
	// hits the unique constraint and must surface as a conflict.
	f := newFixture(t, "http://unused.invalid")
	f.chatRepo.createErr = repoConflict("chat already exists")

	recorder := f.do(t, http.MethodPost, "/chat", f.token(t, "user-1", false), chatBody("chat_dup", "hi"), modelCookie("gpt-4o"))
	if recorder.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", recorder.Code, recorder.Body.String())
	}
}

func TestPostChatProviderFailureReturnsError(t *testing.T) {
	// Provider fails before producing a single byte: the client must get a
	// real error status, not an empty stream that looks like success.
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"model overloaded"}`, http.StatusServiceUnavailable)
	}))
	t.Cleanup(provider.Close)
	f := newFixture(t, provider.URL)

	recorder := f.do(t, http.MethodPost, "/chat", f.token(t, "user-1", false), chatBody("chat_1", "hi"), modelCookie("gpt-4o"))
	if recorder.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d: %s", recorder.Code, recorder.Body.String())
	}
	if !strings.Contains(recorder.Body.String(), "error") {
		t.Fatalf("expected an error payload, got %q", recorder.Body.String())
	}

	// The prompt survives even though the completion never started.
	messages, _ := f.chatRepo.ListMessages(context.Background(), f.chatRepo.chats[0].ID)
	if len(messages) != 1 || messages[0].Role != chat.RoleUser {
		t.Fatalf("expected only the user message, got %d", len(messages))
	}
	if len(f.usageRepo.records) != 0 {
		t.Fatal("no usage may be recorded for a failed completion")
	}
}

func TestPostChatPersistsOnProviderCloseWithoutDone(t *testing.T) {
	// A provider that ends the stream cleanly without [DONE] still produced
	// a complete turn: it must be persisted and metered like any other.
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		chunk, _ := json.Marshal(map[string]any{
			"choices": []map[string]any{{"delta": map[string]string{"content": "truncated reply"}}},
		})
		fmt.Fprintf(w, "data: %s\n\n", chunk)
		w.(http.Flusher).Flush()
	}))
	t.Cleanup(provider.Close)
	f := newFixture(t, provider.URL)

	recorder := f.do(t, http.MethodPost, "/chat", f.token(t, "user-1", false), chatBody("chat_1", "hi"), modelCookie("gpt-4o"))
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", recorder.Code, recorder.Body.String())
	}

	messages, _ := f.chatRepo.ListMessages(context.Background(), f.chatRepo.chats[0].ID)
	if len(messages) != 2 {
		t.Fatalf("expected user + assistant messages, got %d", len(messages))
	}
	if got := messages[1].TextContent(); got != "truncated reply" {
		t.Fatalf("assistant content %q", got)
	}
	if len(f.usageRepo.records) != 1 {
		t.Fatalf("expected 1 usage record, got %d", len(f.usageRepo.records))
	}
}

func TestPostChatForbiddenForForeignChat(t *testing.T) {
	f := newFixture(t, "http://unused.invalid")
	seedOwnedChat(t, f, "chat_owned", "user-1")

	recorder := f.do(t, http.MethodPost, "/chat", f.token(t, "user-2", false), chatBody("chat_owned", "hi"), modelCookie("gpt-4o"))
	if recorder.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", recorder.Code)
	}
}

func seedOwnedChat(t *testing.T, f *fixture, publicID, userID string) *chat.Chat {
	t.Helper()
	c := &chat.Chat{PublicID: publicID, UserID: userID, Title: "seeded", Visibility: chat.VisibilityPrivate}
	if err := f.chatRepo.Create(context.Background(), c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return c
}

func seedMessage(t *testing.T, f *fixture, c *chat.Chat, publicID string, role chat.Role) *chat.Message {
	t.Helper()
	m := &chat.Message{
		PublicID:  publicID,
		ChatID:    c.ID,
		Role:      role,
		Parts:     []chat.MessagePart{{Type: "text", Text: "seeded"}},
		CreatedAt: time.Now().UTC(),
	}
	if err := f.chatRepo.AppendMessages(context.Background(), c.ID, []*chat.Message{m}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return m
}

func TestGetHistoryListsOwnChats(t *testing.T) {
	f := newFixture(t, "http://unused.invalid")
	seedOwnedChat(t, f, "chat_1", "user-1")
	seedOwnedChat(t, f, "chat_2", "user-2")

	recorder := f.do(t, http.MethodGet, "/history", f.token(t, "user-1", false), "")
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}

	var payload struct {
		Chats []struct {
			ID string `json:"id"`
		} `json:"chats"`
	}
	if err := json.Unmarshal(recorder.Body.Bytes(), &payload); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(payload.Chats) != 1 || payload.Chats[0].ID != "chat_1" {
		t.Fatalf("unexpected history: %+v", payload.Chats)
	}
}

func TestGetMessagesVisibility(t *testing.T) {
	f := newFixture(t, "http://unused.invalid")
	c := seedOwnedChat(t, f, "chat_1", "user-1")
	seedMessage(t, f, c, "msg_1", chat.RoleUser)

	// private chat is invisible to others
	recorder := f.do(t, http.MethodGet, "/chat/messages/chat_1", f.token(t, "user-2", false), "")
	if recorder.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", recorder.Code)
	}

	// owner flips it public
	body, _ := json.Marshal(map[string]string{"chat_id": "chat_1", "visibility": "public"})
	recorder = f.do(t, http.MethodPatch, "/chat/visibility", f.token(t, "user-1", false), string(body))
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}

	// now readable by anyone
	recorder = f.do(t, http.MethodGet, "/chat/messages/chat_1", f.token(t, "user-2", false), "")
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200 after publish, got %d", recorder.Code)
	}

	// but never writable by non-owners
	body, _ = json.Marshal(map[string]string{"chat_id": "chat_1", "visibility": "private"})
	recorder = f.do(t, http.MethodPatch, "/chat/visibility", f.token(t, "user-2", false), string(body))
	if recorder.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", recorder.Code)
	}
}

func TestGetMessagesRequiresChatID(t *testing.T) {
	f := newFixture(t, "http://unused.invalid")

	recorder := f.do(t, http.MethodGet, "/chat/messages", f.token(t, "user-1", false), "")
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing id, got %d", recorder.Code)
	}
}

func TestDeleteChatRemovesEverything(t *testing.T) {
	f := newFixture(t, "http://unused.invalid")
	c := seedOwnedChat(t, f, "chat_1", "user-1")
	seedMessage(t, f, c, "msg_1", chat.RoleUser)

	body, _ := json.Marshal(map[string]string{"id": "chat_1"})
	recorder := f.do(t, http.MethodDelete, "/chat", f.token(t, "user-1", false), string(body))
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	if len(f.chatRepo.chats) != 0 {
		t.Fatal("chat was not deleted")
	}
	if len(f.chatRepo.messages) != 0 {
		t.Fatal("messages were not deleted")
	}

	recorder = f.do(t, http.MethodDelete, "/chat", f.token(t, "user-1", false), string(body))
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for missing chat, got %d", recorder.Code)
	}
}

func TestVoteLifecycle(t *testing.T) {
	f := newFixture(t, "http://unused.invalid")
	c := seedOwnedChat(t, f, "chat_1", "user-1")
	seedMessage(t, f, c, "msg_1", chat.RoleAssistant)

	token := f.token(t, "user-1", false)

	body, _ := json.Marshal(map[string]string{"chat_id": "chat_missing", "message_id": "msg_1", "type": "up"})
	recorder := f.do(t, http.MethodPost, "/chat/vote", token, string(body))
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown chat, got %d", recorder.Code)
	}

	body, _ = json.Marshal(map[string]string{"chat_id": "chat_1", "message_id": "msg_1", "type": "sideways"})
	recorder = f.do(t, http.MethodPost, "/chat/vote", token, string(body))
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid vote type, got %d", recorder.Code)
	}

	body, _ = json.Marshal(map[string]string{"chat_id": "chat_1", "message_id": "msg_1", "type": "up"})
	recorder = f.do(t, http.MethodPost, "/chat/vote", token, string(body))
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", recorder.Code, recorder.Body.String())
	}

	recorder = f.do(t, http.MethodGet, "/chat/votes/chat_1", token, "")
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	var votes struct {
		Votes []struct {
			MessageID string `json:"message_id"`
			IsUpvoted bool   `json:"is_upvoted"`
		} `json:"votes"`
	}
	if err := json.Unmarshal(recorder.Body.Bytes(), &votes); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(votes.Votes) != 1 || !votes.Votes[0].IsUpvoted || votes.Votes[0].MessageID != "msg_1" {
		t.Fatalf("unexpected votes: %+v", votes.Votes)
	}

	// Revoting the same message overwrites in place rather than adding a row.
	body, _ = json.Marshal(map[string]string{"chat_id": "chat_1", "message_id": "msg_1", "type": "down"})
	recorder = f.do(t, http.MethodPost, "/chat/vote", token, string(body))
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}

	recorder = f.do(t, http.MethodGet, "/chat/votes/chat_1", token, "")
	if err := json.Unmarshal(recorder.Body.Bytes(), &votes); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(votes.Votes) != 1 || votes.Votes[0].IsUpvoted {
		t.Fatalf("expected one downvote after revote, got %+v", votes.Votes)
	}
}

func TestDeleteTrailingMessages(t *testing.T) {
	f := newFixture(t, "http://unused.invalid")
	c := seedOwnedChat(t, f, "chat_1", "user-1")
	seedMessage(t, f, c, "msg_1", chat.RoleUser)
	time.Sleep(2 * time.Millisecond)
	target := seedMessage(t, f, c, "msg_2", chat.RoleAssistant)
	time.Sleep(2 * time.Millisecond)
	seedMessage(t, f, c, "msg_3", chat.RoleUser)

	recorder := f.do(t, http.MethodDelete, "/chat/messages/"+target.PublicID+"/trailing", f.token(t, "user-2", false), "")
	if recorder.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", recorder.Code)
	}

	recorder = f.do(t, http.MethodDelete, "/chat/messages/"+target.PublicID+"/trailing", f.token(t, "user-1", false), "")
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}

	remaining, _ := f.chatRepo.ListMessages(context.Background(), c.ID)
	if len(remaining) != 1 || remaining[0].PublicID != "msg_1" {
		t.Fatalf("expected only msg_1 to remain, got %d messages", len(remaining))
	}
}

func TestUsageEndpoints(t *testing.T) {
	f := newFixture(t, "http://unused.invalid")
	token := f.token(t, "user-1", false)

	body, _ := json.Marshal(map[string]any{
		"model":             "gpt-4o",
		"prompt_tokens":     1000,
		"completion_tokens": 1000,
	})
	recorder := f.do(t, http.MethodPost, "/ai-usage", token, string(body))
	if recorder.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", recorder.Code, recorder.Body.String())
	}

	body, _ = json.Marshal(map[string]any{"model": "gpt-4o", "cost": "not-a-number"})
	recorder = f.do(t, http.MethodPost, "/ai-usage", token, string(body))
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad cost, got %d", recorder.Code)
	}

	recorder = f.do(t, http.MethodGet, "/ai-usage", token, "")
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	var usage struct {
		Records []struct {
			CostUSD string `json:"cost_usd"`
		} `json:"records"`
		TotalCost string `json:"total_cost"`
	}
	if err := json.Unmarshal(recorder.Body.Bytes(), &usage); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(usage.Records) != 1 || usage.Records[0].CostUSD != "0.02" {
		t.Fatalf("unexpected usage listing: %+v", usage)
	}
	if usage.TotalCost != "0.02" {
		t.Fatalf("unexpected total: %q", usage.TotalCost)
	}

	recorder = f.do(t, http.MethodGet, "/ai-usage/daily?from=June-1st", token, "")
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad date, got %d", recorder.Code)
	}
	recorder = f.do(t, http.MethodGet, "/ai-usage/daily?from=2025-06-01&to=2025-06-30", token, "")
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
}

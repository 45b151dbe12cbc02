package controllers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"messenger-api/controllers"
	"messenger-api/models"
	"messenger-api/pubsub"
	"messenger-api/routes"
	"messenger-api/services"
)

type record struct {
	Channel string
	Event   string
}

type recordingPublisher struct {
	mu      sync.Mutex
	records []record
}

func (p *recordingPublisher) Publish(_ context.Context, channel, event string, _ interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.records = append(p.records, record{Channel: channel, Event: event})
	return nil
}

func (p *recordingPublisher) count(channel, event string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, r := range p.records {
		if r.Channel == channel && r.Event == event {
			n++
		}
	}
	return n
}

func (p *recordingPublisher) reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.records = nil
}

func setupAPI(t *testing.T) (*gin.Engine, *recordingPublisher) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := models.Migrate(db); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	store := services.NewStore(db)
	tokens := services.NewTokenManager("test-secret", time.Hour)
	presence := services.NewPresenceRegistry()
	hub := pubsub.NewHub(presence)
	go hub.Run()

	pub := &recordingPublisher{}
	fanout := services.NewFanoutRouter(pub, time.Second)
	seen := services.NewSeenReconciler(store)

	handlers := controllers.NewHandlers(store, tokens, presence, fanout, seen, hub, t.TempDir())
	r := routes.RegisterRoutes(handlers, tokens, store, t.TempDir())
	return r, pub
}

type apiResponse struct {
	Code  int             `json:"code"`
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error"`
}

func doJSON(t *testing.T, r *gin.Engine, method, path, token string, body interface{}) (*httptest.ResponseRecorder, apiResponse) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var resp apiResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	return w, resp
}

func registerUser(t *testing.T, r *gin.Engine, name, email string) (token string, user models.User) {
	t.Helper()

	w, resp := doJSON(t, r, http.MethodPost, "/api/register", "", gin.H{
		"name": name, "email": email, "password": "password123",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("register %s failed with status %d: %s", email, w.Code, w.Body.String())
	}
	var data struct {
		Token string      `json:"token"`
		User  models.User `json:"user"`
	}
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		t.Fatalf("failed to decode register response: %v", err)
	}
	return data.Token, data.User
}

func TestAPI_RequiresAuth(t *testing.T) {
	r, _ := setupAPI(t)
	w, _ := doJSON(t, r, http.MethodGet, "/api/conversations", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestAPI_MessageFlow(t *testing.T) {
	r, pub := setupAPI(t)
	aliceToken, alice := registerUser(t, r, "Alice", "alice@example.com")
	bobToken, bob := registerUser(t, r, "Bob", "bob@example.com")

	// 创建私聊
	w, resp := doJSON(t, r, http.MethodPost, "/api/conversations", aliceToken, gin.H{"userId": bob.ID})
	if w.Code != http.StatusOK {
		t.Fatalf("create conversation failed: %d %s", w.Code, w.Body.String())
	}
	var conv models.Conversation
	if err := json.Unmarshal(resp.Data, &conv); err != nil {
		t.Fatalf("failed to decode conversation: %v", err)
	}
	if pub.count(alice.Email, pubsub.EventNewConversation) != 1 || pub.count(bob.Email, pubsub.EventNewConversation) != 1 {
		t.Fatalf("expected conversation:new for both members, got %+v", pub.records)
	}

	// 发消息:会话频道一条 messages:new，每个成员一条 message:update
	pub.reset()
	w, resp = doJSON(t, r, http.MethodPost, "/api/messages", aliceToken, gin.H{
		"message": "hello", "conversationId": conv.ID,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("send message failed: %d %s", w.Code, w.Body.String())
	}
	var msg models.Message
	if err := json.Unmarshal(resp.Data, &msg); err != nil {
		t.Fatalf("failed to decode message: %v", err)
	}
	if pub.count(conv.ID, pubsub.EventNewMessage) != 1 {
		t.Fatal("expected exactly one conversation-channel publish")
	}
	for _, email := range []string{alice.Email, bob.Email} {
		if pub.count(email, pubsub.EventMessageUpdate) != 1 {
			t.Fatalf("expected message:update for %s", email)
		}
	}

	// 空消息被拒绝
	w, _ = doJSON(t, r, http.MethodPost, "/api/messages", aliceToken, gin.H{
		"message": "   ", "conversationId": conv.ID,
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty message, got %d", w.Code)
	}

	// bob 上报已读:已读集合变为 {alice, bob}
	w, resp = doJSON(t, r, http.MethodPost, fmt.Sprintf("/api/conversations/%s/seen", conv.ID), bobToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("mark seen failed: %d %s", w.Code, w.Body.String())
	}
	var seenMsg models.Message
	if err := json.Unmarshal(resp.Data, &seenMsg); err != nil {
		t.Fatalf("failed to decode seen response: %v", err)
	}
	if seenMsg.ID != msg.ID || len(seenMsg.SeenBy) != 2 {
		t.Fatalf("expected last message seen by 2 users, got %d on message %d", len(seenMsg.SeenBy), seenMsg.ID)
	}

	// 删除会话:两名成员各收到一条 conversation:remove
	pub.reset()
	w, _ = doJSON(t, r, http.MethodDelete, "/api/conversations/"+conv.ID, aliceToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("delete conversation failed: %d %s", w.Code, w.Body.String())
	}
	for _, email := range []string{alice.Email, bob.Email} {
		if pub.count(email, pubsub.EventConversationRemove) != 1 {
			t.Fatalf("expected conversation:remove for %s", email)
		}
	}
	w, _ = doJSON(t, r, http.MethodGet, "/api/conversations/"+conv.ID, aliceToken, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", w.Code)
	}
}

func TestAPI_ConversationValidation(t *testing.T) {
	r, _ := setupAPI(t)
	aliceToken, alice := registerUser(t, r, "Alice", "alice@example.com")
	_, bob := registerUser(t, r, "Bob", "bob@example.com")

	// 不能和自己创建会话
	w, _ := doJSON(t, r, http.MethodPost, "/api/conversations", aliceToken, gin.H{"userId": alice.ID})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for self conversation, got %d", w.Code)
	}

	// 群聊成员不足
	w, _ = doJSON(t, r, http.MethodPost, "/api/conversations", aliceToken, gin.H{
		"isGroup": true, "name": "Trio", "members": []string{bob.ID},
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for undersized group, got %d", w.Code)
	}

	// 群聊缺名字
	w, _ = doJSON(t, r, http.MethodPost, "/api/conversations", aliceToken, gin.H{
		"isGroup": true, "members": []string{bob.ID, "someone-else"},
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unnamed group, got %d", w.Code)
	}
}

func TestAPI_NonParticipantIsRejected(t *testing.T) {
	r, _ := setupAPI(t)
	aliceToken, _ := registerUser(t, r, "Alice", "alice@example.com")
	_, bob := registerUser(t, r, "Bob", "bob@example.com")
	carolToken, _ := registerUser(t, r, "Carol", "carol@example.com")

	w, resp := doJSON(t, r, http.MethodPost, "/api/conversations", aliceToken, gin.H{"userId": bob.ID})
	if w.Code != http.StatusOK {
		t.Fatalf("create conversation failed: %d", w.Code)
	}
	var conv models.Conversation
	if err := json.Unmarshal(resp.Data, &conv); err != nil {
		t.Fatalf("failed to decode conversation: %v", err)
	}

	// carol 不是成员，读写都被拒绝
	w, _ = doJSON(t, r, http.MethodGet, "/api/conversations/"+conv.ID, carolToken, nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-participant read, got %d", w.Code)
	}
	w, _ = doJSON(t, r, http.MethodPost, "/api/messages", carolToken, gin.H{
		"message": "intruding", "conversationId": conv.ID,
	})
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-participant write, got %d", w.Code)
	}
}

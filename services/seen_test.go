package services

import (
	"errors"
	"testing"
	"time"

	"messenger-api/models"
)

func TestSeenReconciler_MarkSeen_TargetsLastMessage(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db)
	reconciler := NewSeenReconciler(store)

	alice := createTestUser(t, store, "Alice", "alice@example.com")
	bob := createTestUser(t, store, "Bob", "bob@example.com")
	conv, _, err := store.CreateDirectConversation(alice, bob.ID)
	if err != nil {
		t.Fatalf("failed to create conversation: %v", err)
	}

	// m2 和 m3 时间戳相同（秒级粒度下常见），m3 后插入。
	t1 := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	t2 := time.Date(2025, 6, 1, 10, 0, 5, 0, time.UTC)
	m1 := &models.Message{Body: "m1", ConversationID: conv.ID, SenderID: alice.ID, CreatedAt: t1}
	m2 := &models.Message{Body: "m2", ConversationID: conv.ID, SenderID: alice.ID, CreatedAt: t2}
	m3 := &models.Message{Body: "m3", ConversationID: conv.ID, SenderID: alice.ID, CreatedAt: t2}
	for _, m := range []*models.Message{m1, m2, m3} {
		if err := db.Create(m).Error; err != nil {
			t.Fatalf("failed to insert message: %v", err)
		}
	}

	marked, _, err := reconciler.MarkSeen(conv.ID, bob.ID)
	if err != nil {
		t.Fatalf("MarkSeen() error = %v", err)
	}
	if marked.ID != m3.ID {
		t.Fatalf("expected message %d (last inserted) to be marked, got %d", m3.ID, marked.ID)
	}
	if !marked.SeenByUser(bob.ID) {
		t.Fatal("expected bob in the seen set")
	}

	// m1 和 m2 不受影响
	for _, id := range []uint{m1.ID, m2.ID} {
		var count int64
		db.Table("message_seen_by").Where("message_id = ? AND user_id = ?", id, bob.ID).Count(&count)
		if count != 0 {
			t.Fatalf("message %d should not have been marked", id)
		}
	}
}

func TestSeenReconciler_MarkSeen_Idempotent(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db)
	reconciler := NewSeenReconciler(store)

	alice := createTestUser(t, store, "Alice", "alice@example.com")
	bob := createTestUser(t, store, "Bob", "bob@example.com")
	conv, _, err := store.CreateDirectConversation(alice, bob.ID)
	if err != nil {
		t.Fatalf("failed to create conversation: %v", err)
	}
	if _, err := store.CreateMessage(conv, alice, "hello", ""); err != nil {
		t.Fatalf("failed to create message: %v", err)
	}

	first, _, err := reconciler.MarkSeen(conv.ID, bob.ID)
	if err != nil {
		t.Fatalf("MarkSeen() error = %v", err)
	}
	second, _, err := reconciler.MarkSeen(conv.ID, bob.ID)
	if err != nil {
		t.Fatalf("second MarkSeen() error = %v", err)
	}

	// 已读集合只增不减，重复标记是空操作
	if len(second.SeenBy) != len(first.SeenBy) {
		t.Fatalf("expected seen set size %d after repeat, got %d", len(first.SeenBy), len(second.SeenBy))
	}
	var count int64
	db.Table("message_seen_by").Where("message_id = ? AND user_id = ?", first.ID, bob.ID).Count(&count)
	if count != 1 {
		t.Fatalf("expected exactly one seen row, got %d", count)
	}
}

func TestSeenReconciler_MarkSeen_EmptyConversation(t *testing.T) {
	store := NewStore(setupTestDB(t))
	reconciler := NewSeenReconciler(store)

	alice := createTestUser(t, store, "Alice", "alice@example.com")
	bob := createTestUser(t, store, "Bob", "bob@example.com")
	conv, _, err := store.CreateDirectConversation(alice, bob.ID)
	if err != nil {
		t.Fatalf("failed to create conversation: %v", err)
	}

	msg, got, err := reconciler.MarkSeen(conv.ID, bob.ID)
	if err != nil {
		t.Fatalf("MarkSeen() on empty conversation error = %v", err)
	}
	if msg != nil {
		t.Fatalf("expected no message to be marked, got %d", msg.ID)
	}
	if got.ID != conv.ID {
		t.Fatalf("expected the conversation back, got %s", got.ID)
	}
}

func TestSeenReconciler_MarkSeen_ConversationNotFound(t *testing.T) {
	store := NewStore(setupTestDB(t))
	reconciler := NewSeenReconciler(store)
	alice := createTestUser(t, store, "Alice", "alice@example.com")

	_, _, err := reconciler.MarkSeen("missing", alice.ID)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

// Package client 实现连接端的订阅管理约定：订阅自己的个人频道和
// 当前打开的会话频道，并把收到的事件按稳定 ID 幂等地合并进本地状态。
// 传输层是至少一次投递，重复和乱序都必须被这里吸收。
package client

import (
	"encoding/json"
	"sort"
	"sync"

	"messenger-api/models"
	"messenger-api/pubsub"
)

// SeenFunc 通知服务端"当前用户已读该会话"（通常是 POST /conversations/:id/seen）
type SeenFunc func(conversationID string) error

// NavigateFunc 当前打开的会话被删除时的跳转回调
type NavigateFunc func(conversationID string)

// State 单个已连接客户端的本地视图状态机。
// 会话视图只有两个状态：关闭 / 打开某个会话；
// 打开时每收到一条 messages:new 都会再触发一次已读上报。
type State struct {
	mu            sync.Mutex
	email         string
	openID        string // 当前打开的会话 ID，"" 表示未打开
	messages      []pubsub.MessagePayload
	seenIDs       map[uint]struct{}
	conversations []*models.Conversation

	markSeen     SeenFunc
	navigateAway NavigateFunc
}

func NewState(email string, markSeen SeenFunc, navigateAway NavigateFunc) *State {
	return &State{
		email:        email,
		seenIDs:      make(map[uint]struct{}),
		markSeen:     markSeen,
		navigateAway: navigateAway,
	}
}

// SetConversations 用服务端的初始列表填充本地状态
func (s *State) SetConversations(convs []*models.Conversation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversations = append([]*models.Conversation(nil), convs...)
	s.sortConversations()
}

// OpenConversation 进入"打开"状态：装载初始消息并上报一次已读
func (s *State) OpenConversation(id string, initial []pubsub.MessagePayload) {
	s.mu.Lock()
	s.openID = id
	s.messages = nil
	s.seenIDs = make(map[uint]struct{})
	for _, m := range initial {
		if _, dup := s.seenIDs[m.ID]; dup {
			continue
		}
		s.seenIDs[m.ID] = struct{}{}
		s.messages = append(s.messages, m)
	}
	s.mu.Unlock()

	if s.markSeen != nil {
		s.markSeen(id)
	}
}

// CloseConversation 退出"打开"状态。之后该会话频道的事件不再被处理。
func (s *State) CloseConversation() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.openID = ""
	s.messages = nil
	s.seenIDs = make(map[uint]struct{})
}

// Open 返回当前打开的会话 ID
func (s *State) Open() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.openID
}

// Messages 返回打开会话的消息列表（按首次到达顺序）
func (s *State) Messages() []pubsub.MessagePayload {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]pubsub.MessagePayload(nil), s.messages...)
}

// Conversations 返回会话列表（按最后消息时间倒序）
func (s *State) Conversations() []*models.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*models.Conversation(nil), s.conversations...)
}

// HandleFrame 把一帧事件合并进本地状态。非当前订阅范围的帧被忽略。
func (s *State) HandleFrame(frame pubsub.Frame) error {
	s.mu.Lock()
	personal := frame.Channel == s.email
	open := s.openID != "" && frame.Channel == s.openID
	s.mu.Unlock()

	switch {
	case open && frame.Event == pubsub.EventNewMessage:
		return s.handleNewMessage(frame.Payload)
	case personal:
		return s.handlePersonal(frame.Event, frame.Payload)
	default:
		return nil
	}
}

func (s *State) handleNewMessage(payload json.RawMessage) error {
	var msg pubsub.MessagePayload
	if err := json.Unmarshal(payload, &msg); err != nil {
		return err
	}

	s.mu.Lock()
	openID := s.openID
	added := false
	if openID != "" {
		if _, dup := s.seenIDs[msg.ID]; !dup {
			s.seenIDs[msg.ID] = struct{}{}
			s.messages = append(s.messages, msg)
			added = true
		}
	}
	s.mu.Unlock()

	// 会话开着的时候收到新消息，立即再上报一次已读
	if added && s.markSeen != nil {
		s.markSeen(openID)
	}
	return nil
}

func (s *State) handlePersonal(event string, payload json.RawMessage) error {
	switch event {
	case pubsub.EventNewConversation, pubsub.EventConversationUpdate:
		var conv models.Conversation
		if err := json.Unmarshal(payload, &conv); err != nil {
			return err
		}
		s.mergeConversation(&conv)

	case pubsub.EventMessageUpdate:
		var update pubsub.ConversationUpdatePayload
		if err := json.Unmarshal(payload, &update); err != nil {
			return err
		}
		s.applyMessageUpdate(update)

	case pubsub.EventConversationRemove:
		var conv models.Conversation
		if err := json.Unmarshal(payload, &conv); err != nil {
			return err
		}
		s.removeConversation(conv.ID)
	}
	return nil
}

// mergeConversation 按 ID 合并：已存在则整体替换，否则插入
func (s *State) mergeConversation(conv *models.Conversation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, c := range s.conversations {
		if c.ID == conv.ID {
			s.conversations[i] = conv
			s.sortConversations()
			return
		}
	}
	s.conversations = append(s.conversations, conv)
	s.sortConversations()
}

// applyMessageUpdate 更新会话的最后消息预览并重排列表。
// 未知会话的更新被忽略（随后的 conversation:new 或整页刷新会补上）。
func (s *State) applyMessageUpdate(update pubsub.ConversationUpdatePayload) {
	if len(update.Messages) == 0 {
		return
	}
	last := update.Messages[len(update.Messages)-1]

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.conversations {
		if c.ID != update.ID {
			continue
		}
		exists := false
		for _, m := range c.Messages {
			if m.ID == last.ID {
				exists = true
				break
			}
		}
		if !exists {
			c.Messages = append(c.Messages, &models.Message{
				ID:             last.ID,
				Body:           last.Body,
				CreatedAt:      last.CreatedAt,
				ConversationID: c.ID,
			})
		}
		if last.CreatedAt.After(c.LastMessageAt) {
			c.LastMessageAt = last.CreatedAt
		}
		s.sortConversations()
		return
	}
}

func (s *State) removeConversation(id string) {
	s.mu.Lock()
	wasOpen := s.openID == id
	kept := s.conversations[:0]
	for _, c := range s.conversations {
		if c.ID != id {
			kept = append(kept, c)
		}
	}
	s.conversations = kept
	if wasOpen {
		s.openID = ""
		s.messages = nil
		s.seenIDs = make(map[uint]struct{})
	}
	s.mu.Unlock()

	if wasOpen && s.navigateAway != nil {
		s.navigateAway(id)
	}
}

func (s *State) sortConversations() {
	sort.SliceStable(s.conversations, func(i, j int) bool {
		return s.conversations[i].LastMessageAt.After(s.conversations[j].LastMessageAt)
	})
}

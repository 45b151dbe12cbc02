package pubsub

import (
	"context"
	"encoding/json"
	"time"

	"messenger-api/models"
)

// 事件名，与前端绑定的名字保持一致
const (
	EventNewMessage         = "messages:new"
	EventMessageUpdate      = "message:update"
	EventNewConversation    = "conversation:new"
	EventConversationUpdate = "conversation:update"
	EventConversationRemove = "conversation:remove"
)

// Publisher 发布端接口。频道命名约定：个人频道 = 用户邮箱，
// 会话频道 = 会话 ID 字符串。
type Publisher interface {
	Publish(ctx context.Context, channel, event string, payload interface{}) error
}

// Frame 投递给订阅者的帧
type Frame struct {
	Channel string          `json:"channel"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// SenderSummary 消息负载里的发送者摘要
type SenderSummary struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Image string `json:"image,omitempty"`
}

// MessagePayload messages:new 的负载
type MessagePayload struct {
	ID        uint          `json:"id"`
	Body      string        `json:"body,omitempty"`
	Image     string        `json:"image,omitempty"`
	CreatedAt time.Time     `json:"createdAt"`
	Sender    SenderSummary `json:"sender"`
}

// MessageRef message:update 里最后一条消息的摘要
type MessageRef struct {
	ID        uint      `json:"id"`
	Body      string    `json:"body,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// ConversationUpdatePayload message:update 的负载：会话 ID 加最后一条消息
type ConversationUpdatePayload struct {
	ID       string       `json:"id"`
	Messages []MessageRef `json:"messages"`
}

// NewMessagePayload 从消息模型生成裁剪后的负载
func NewMessagePayload(msg *models.Message) MessagePayload {
	p := MessagePayload{
		ID:        msg.ID,
		Body:      msg.Body,
		Image:     msg.Image,
		CreatedAt: msg.CreatedAt,
	}
	if msg.Sender != nil {
		p.Sender = SenderSummary{ID: msg.Sender.ID, Name: msg.Sender.Name, Image: msg.Sender.Image}
	}
	return p
}

// NewMessageRef 生成 message:update 用的消息摘要
func NewMessageRef(msg *models.Message) MessageRef {
	return MessageRef{ID: msg.ID, Body: msg.Body, CreatedAt: msg.CreatedAt}
}

// EncodeFrame 序列化一帧
func EncodeFrame(channel, event string, payload interface{}) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Frame{Channel: channel, Event: event, Payload: raw})
}

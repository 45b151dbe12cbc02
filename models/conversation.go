package models

import "time"

// Conversation 会话模型（私聊或群聊）
type Conversation struct {
	ID            string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Name          string    `json:"name,omitempty"` // 群聊必填
	IsGroup       bool      `gorm:"index" json:"isGroup"`
	LastMessageAt time.Time `gorm:"index" json:"lastMessageAt"`
	CreatedAt     time.Time `json:"createdAt"`

	Users    []*User    `gorm:"many2many:conversation_users" json:"users"`
	Messages []*Message `gorm:"foreignKey:ConversationID" json:"messages,omitempty"`
}

// HasUser 判断用户是否是会话成员
func (c *Conversation) HasUser(userID string) bool {
	for _, u := range c.Users {
		if u.ID == userID {
			return true
		}
	}
	return false
}

// LastMessage 返回最后一条消息（按创建时间，其次按插入顺序）。
// 同一秒内的多条消息靠自增 ID 区分先后。
func (c *Conversation) LastMessage() *Message {
	var last *Message
	for _, m := range c.Messages {
		if last == nil {
			last = m
			continue
		}
		if m.CreatedAt.After(last.CreatedAt) || (m.CreatedAt.Equal(last.CreatedAt) && m.ID > last.ID) {
			last = m
		}
	}
	return last
}

package models

import "time"

// Message 消息模型。ID 由存储层自增分配，同时充当插入顺序。
type Message struct {
	ID             uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Body           string    `json:"body,omitempty"`
	Image          string    `json:"image,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	ConversationID string    `gorm:"index;type:varchar(36)" json:"conversationId"`
	SenderID       string    `gorm:"index;type:varchar(36)" json:"senderId"`

	Sender *User   `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
	SeenBy []*User `gorm:"many2many:message_seen_by" json:"seen"` // 只增不减
}

// SeenByUser 判断用户是否已读该消息
func (m *Message) SeenByUser(userID string) bool {
	for _, u := range m.SeenBy {
		if u.ID == userID {
			return true
		}
	}
	return false
}

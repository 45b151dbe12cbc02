package models

import "time"

// User 用户模型
type User struct {
	ID             string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Name           string    `gorm:"not null" json:"name"`
	Email          string    `gorm:"uniqueIndex;size:191;not null" json:"email"` // 也作为个人频道名
	Image          string    `json:"image,omitempty"`
	HashedPassword string    `gorm:"not null" json:"-"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`

	Conversations []*Conversation `gorm:"many2many:conversation_users" json:"-"`
}

package models

import "gorm.io/gorm"

// Migrate 自动迁移
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&User{}, &Conversation{}, &Message{})
}

package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"messenger-api/models"
)

// Store 会话/消息/用户的存储适配层，所有数据库访问都经过这里
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) DB() *gorm.DB {
	return s.db
}

// ---- 用户 ----

func (s *Store) CreateUser(name, email, image, hashedPassword string) (*models.User, error) {
	if name == "" || email == "" || hashedPassword == "" {
		return nil, fmt.Errorf("%w: name, email and password are required", ErrInvalidData)
	}

	var existing models.User
	if err := s.db.Where("email = ?", email).First(&existing).Error; err == nil {
		return nil, ErrEmailTaken
	}

	user := models.User{
		ID:             uuid.New().String(),
		Name:           name,
		Email:          email,
		Image:          image,
		HashedPassword: hashedPassword,
	}
	if err := s.db.Create(&user).Error; err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return &user, nil
}

func (s *Store) FindUserByID(id string) (*models.User, error) {
	var user models.User
	if err := s.db.Where("id = ?", id).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (s *Store) FindUserByEmail(email string) (*models.User, error) {
	var user models.User
	if err := s.db.Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

// UpdateUser 更新用户资料（设置页）
func (s *Store) UpdateUser(id, name, image string) (*models.User, error) {
	user, err := s.FindUserByID(id)
	if err != nil {
		return nil, err
	}
	if name != "" {
		user.Name = name
	}
	if image != "" {
		user.Image = image
	}
	if err := s.db.Save(user).Error; err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	return user, nil
}

// ListUsersExcept 返回除指定用户外的所有用户，用于发起会话
func (s *Store) ListUsersExcept(userID string) ([]*models.User, error) {
	var users []*models.User
	err := s.db.Where("id <> ?", userID).Order("created_at DESC").Find(&users).Error
	return users, err
}

// ---- 会话 ----

// FindConversation 按 ID 加载会话，包含成员和按插入顺序排列的消息
func (s *Store) FindConversation(id string) (*models.Conversation, error) {
	var conv models.Conversation
	err := s.db.
		Preload("Users").
		Preload("Messages", func(db *gorm.DB) *gorm.DB {
			return db.Order("messages.created_at ASC, messages.id ASC")
		}).
		Preload("Messages.Sender").
		Preload("Messages.SeenBy").
		Where("id = ?", id).
		First(&conv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &conv, nil
}

// ListConversations 返回用户参与的所有会话，按最后消息时间倒序
func (s *Store) ListConversations(userID string) ([]*models.Conversation, error) {
	var convs []*models.Conversation
	err := s.db.
		Joins("JOIN conversation_users cu ON cu.conversation_id = conversations.id").
		Where("cu.user_id = ?", userID).
		Order("conversations.last_message_at DESC").
		Preload("Users").
		Preload("Messages", func(db *gorm.DB) *gorm.DB {
			return db.Order("messages.created_at ASC, messages.id ASC")
		}).
		Preload("Messages.Sender").
		Preload("Messages.SeenBy").
		Find(&convs).Error
	return convs, err
}

// CreateDirectConversation 创建私聊。若两人之间已有私聊则返回已存在的会话，
// created 为 false。不允许和自己创建会话。
func (s *Store) CreateDirectConversation(current *models.User, otherID string) (conv *models.Conversation, created bool, err error) {
	if otherID == "" {
		return nil, false, fmt.Errorf("%w: user id is required", ErrInvalidData)
	}
	if otherID == current.ID {
		return nil, false, fmt.Errorf("%w: cannot create a conversation with yourself", ErrInvalidData)
	}

	other, err := s.FindUserByID(otherID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, false, fmt.Errorf("%w: user does not exist", ErrInvalidData)
		}
		return nil, false, err
	}

	// 查找是否已有这两人的私聊
	var existing models.Conversation
	err = s.db.
		Joins("JOIN conversation_users cu ON cu.conversation_id = conversations.id").
		Where("conversations.is_group = ?", false).
		Where("cu.user_id IN ?", []string{current.ID, other.ID}).
		Group("conversations.id").
		Having("COUNT(DISTINCT cu.user_id) = 2").
		First(&existing).Error
	if err == nil {
		found, ferr := s.FindConversation(existing.ID)
		return found, false, ferr
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	newConv := models.Conversation{
		ID:            uuid.New().String(),
		IsGroup:       false,
		LastMessageAt: time.Now(),
	}
	if err := s.db.Omit("Users").Create(&newConv).Error; err != nil {
		return nil, false, fmt.Errorf("failed to create conversation: %w", err)
	}
	if err := s.db.Model(&newConv).Association("Users").Append(current, other); err != nil {
		return nil, false, fmt.Errorf("failed to attach users: %w", err)
	}
	newConv.Users = []*models.User{current, other}
	return &newConv, true, nil
}

// CreateGroupConversation 创建群聊：名称必填，除创建者外至少两名成员，
// 成员必须全部存在。
func (s *Store) CreateGroupConversation(current *models.User, name string, memberIDs []string) (*models.Conversation, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: group name is required", ErrInvalidData)
	}

	unique := make([]string, 0, len(memberIDs))
	seen := map[string]bool{current.ID: true}
	for _, id := range memberIDs {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		unique = append(unique, id)
	}
	if len(unique) < 2 {
		return nil, fmt.Errorf("%w: a group needs at least 2 other members", ErrInvalidData)
	}

	var members []*models.User
	if err := s.db.Where("id IN ?", unique).Find(&members).Error; err != nil {
		return nil, err
	}
	if len(members) != len(unique) {
		return nil, fmt.Errorf("%w: some members do not exist", ErrInvalidData)
	}

	conv := models.Conversation{
		ID:            uuid.New().String(),
		Name:          name,
		IsGroup:       true,
		LastMessageAt: time.Now(),
	}
	if err := s.db.Omit("Users").Create(&conv).Error; err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}
	users := append([]*models.User{current}, members...)
	if err := s.db.Model(&conv).Association("Users").Append(users); err != nil {
		return nil, fmt.Errorf("failed to attach users: %w", err)
	}
	conv.Users = users
	return &conv, nil
}

// DeleteConversation 删除会话及其消息。调用方负责先广播 conversation:remove。
func (s *Store) DeleteConversation(conv *models.Conversation) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(
			"DELETE FROM message_seen_by WHERE message_id IN (SELECT id FROM messages WHERE conversation_id = ?)",
			conv.ID,
		).Error; err != nil {
			return err
		}
		if err := tx.Where("conversation_id = ?", conv.ID).Delete(&models.Message{}).Error; err != nil {
			return err
		}
		if err := tx.Exec("DELETE FROM conversation_users WHERE conversation_id = ?", conv.ID).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", conv.ID).Delete(&models.Conversation{}).Error
	})
}

// ---- 消息 ----

// CreateMessage 持久化一条消息，发送者自动进入已读集合，
// 并刷新会话的 last_message_at。
func (s *Store) CreateMessage(conv *models.Conversation, sender *models.User, body, image string) (*models.Message, error) {
	if body == "" && image == "" {
		return nil, fmt.Errorf("%w: message or image is required", ErrInvalidData)
	}

	msg := models.Message{
		Body:           body,
		Image:          image,
		ConversationID: conv.ID,
		SenderID:       sender.ID,
		CreatedAt:      time.Now(),
	}
	if err := s.db.Omit("Sender", "SeenBy").Create(&msg).Error; err != nil {
		return nil, fmt.Errorf("failed to create message: %w", err)
	}
	if err := s.db.Model(&msg).Association("SeenBy").Append(sender); err != nil {
		return nil, fmt.Errorf("failed to mark sender as seen: %w", err)
	}

	if err := s.db.Model(&models.Conversation{}).
		Where("id = ?", conv.ID).
		Update("last_message_at", msg.CreatedAt).Error; err != nil {
		return nil, fmt.Errorf("failed to update conversation: %w", err)
	}
	conv.LastMessageAt = msg.CreatedAt

	msg.Sender = sender
	msg.SeenBy = []*models.User{sender}
	return &msg, nil
}

// ListMessages 返回会话的全部消息，最早的在前
func (s *Store) ListMessages(conversationID string) ([]*models.Message, error) {
	var messages []*models.Message
	err := s.db.
		Preload("Sender").
		Preload("SeenBy").
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC, id ASC").
		Find(&messages).Error
	return messages, err
}

// AddSeen 把用户加入消息的已读集合。幂等：重复调用不产生变化。
func (s *Store) AddSeen(msg *models.Message, user *models.User) error {
	if msg.SeenByUser(user.ID) {
		return nil
	}
	if err := s.db.Model(msg).Association("SeenBy").Append(user); err != nil {
		return fmt.Errorf("failed to update seen state: %w", err)
	}
	msg.SeenBy = append(msg.SeenBy, user)
	return nil
}

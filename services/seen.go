package services

import (
	"messenger-api/models"
)

// SeenReconciler 已读状态协调：用户打开（或正停留在）某个会话时，
// 把会话的最后一条消息标记为该用户已读。
type SeenReconciler struct {
	store *Store
}

func NewSeenReconciler(store *Store) *SeenReconciler {
	return &SeenReconciler{store: store}
}

// MarkSeen 把会话最后一条消息标记为 userID 已读。
// 会话不存在返回 ErrNotFound；会话没有消息则原样返回，不做任何修改。
// 最后一条消息按创建时间选取，时间戳相同（秒级粒度）时按存储自增 ID 取后插入的。
// 已读集合是幂等的并集，只增不减。
func (r *SeenReconciler) MarkSeen(conversationID, userID string) (*models.Message, *models.Conversation, error) {
	conv, err := r.store.FindConversation(conversationID)
	if err != nil {
		return nil, nil, err
	}

	last := conv.LastMessage()
	if last == nil {
		return nil, conv, nil
	}

	user, err := r.store.FindUserByID(userID)
	if err != nil {
		return nil, nil, err
	}

	if err := r.store.AddSeen(last, user); err != nil {
		return nil, nil, err
	}
	return last, conv, nil
}

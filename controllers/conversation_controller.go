package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"messenger-api/services"
	"messenger-api/utils"
)

type ConversationController struct {
	store  *services.Store
	fanout *services.FanoutRouter
	seen   *services.SeenReconciler
}

func NewConversationController(store *services.Store, fanout *services.FanoutRouter, seen *services.SeenReconciler) *ConversationController {
	return &ConversationController{store: store, fanout: fanout, seen: seen}
}

// GetConversations 当前用户的会话列表，按最后消息时间倒序
func (cc *ConversationController) GetConversations(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	convs, err := cc.store.ListConversations(user.ID)
	if err != nil {
		utils.RespondError(c, http.StatusInternalServerError, "Failed to fetch conversations")
		return
	}
	utils.RespondSuccess(c, convs, nil)
}

// CreateConversation 创建私聊或群聊
func (cc *ConversationController) CreateConversation(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var input struct {
		UserID  string   `json:"userId"`
		IsGroup bool     `json:"isGroup"`
		Name    string   `json:"name"`
		Members []string `json:"members"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondError(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	if input.IsGroup {
		conv, err := cc.store.CreateGroupConversation(user, input.Name, input.Members)
		if err != nil {
			respondServiceError(c, err)
			return
		}
		cc.fanout.OnConversationCreated(c.Request.Context(), conv)
		utils.RespondSuccess(c, conv, nil)
		return
	}

	conv, created, err := cc.store.CreateDirectConversation(user, input.UserID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	if created {
		cc.fanout.OnConversationCreated(c.Request.Context(), conv)
	}
	utils.RespondSuccess(c, conv, nil)
}

// GetConversation 会话详情，仅成员可见
func (cc *ConversationController) GetConversation(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	conv, err := cc.store.FindConversation(c.Param("conversation_id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	if !conv.HasUser(user.ID) {
		utils.RespondError(c, http.StatusForbidden, "You are not part of this conversation")
		return
	}
	utils.RespondSuccess(c, conv, nil)
}

// DeleteConversation 删除会话：先通知所有成员，再删除。
// 删除事件发布之后不再为该会话发布任何事件。
func (cc *ConversationController) DeleteConversation(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	conv, err := cc.store.FindConversation(c.Param("conversation_id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	if !conv.HasUser(user.ID) {
		utils.RespondError(c, http.StatusForbidden, "You are not part of this conversation")
		return
	}

	// 带着完整的删除前快照广播
	cc.fanout.OnConversationRemoved(c.Request.Context(), conv)

	if err := cc.store.DeleteConversation(conv); err != nil {
		utils.RespondError(c, http.StatusInternalServerError, "Failed to delete conversation")
		return
	}
	utils.RespondSuccess(c, conv, nil)
}

// MarkSeen 已读上报：把会话最后一条消息标记为当前用户已读
func (cc *ConversationController) MarkSeen(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	conversationID := c.Param("conversation_id")
	conv, err := cc.store.FindConversation(conversationID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	if !conv.HasUser(user.ID) {
		utils.RespondError(c, http.StatusForbidden, "You are not part of this conversation")
		return
	}

	msg, conv, err := cc.seen.MarkSeen(conversationID, user.ID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	if msg == nil {
		// 空会话：无消息可标记
		utils.RespondSuccess(c, conv, nil)
		return
	}
	utils.RespondSuccess(c, msg, nil)
}

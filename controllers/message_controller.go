package controllers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"messenger-api/services"
	"messenger-api/utils"
)

type MessageController struct {
	store  *services.Store
	fanout *services.FanoutRouter
}

func NewMessageController(store *services.Store, fanout *services.FanoutRouter) *MessageController {
	return &MessageController{store: store, fanout: fanout}
}

// SendMessage 发送消息：校验 -> 落库 -> 广播。
// 广播失败不影响响应，消息此时已经持久化。
func (mc *MessageController) SendMessage(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var input struct {
		Message        string `json:"message"`
		Image          string `json:"image"`
		ConversationID string `json:"conversationId"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondError(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	body := strings.TrimSpace(input.Message)
	if body == "" && input.Image == "" {
		utils.RespondError(c, http.StatusBadRequest, "Message or image is required")
		return
	}
	if input.ConversationID == "" {
		utils.RespondError(c, http.StatusBadRequest, "Conversation ID is required")
		return
	}

	conv, err := mc.store.FindConversation(input.ConversationID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	if !conv.HasUser(user.ID) {
		utils.RespondError(c, http.StatusForbidden, "You are not part of this conversation")
		return
	}

	msg, err := mc.store.CreateMessage(conv, user, body, input.Image)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	mc.fanout.OnMessageCreated(c.Request.Context(), msg, conv)
	utils.RespondSuccess(c, msg, nil)
}

// GetMessages 会话消息列表，最早的在前
func (mc *MessageController) GetMessages(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	conversationID := c.Param("conversation_id")
	conv, err := mc.store.FindConversation(conversationID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	if !conv.HasUser(user.ID) {
		utils.RespondError(c, http.StatusForbidden, "You are not part of this conversation")
		return
	}

	messages, err := mc.store.ListMessages(conversationID)
	if err != nil {
		utils.RespondError(c, http.StatusInternalServerError, "Failed to fetch messages")
		return
	}
	utils.RespondSuccess(c, messages, nil)
}

package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"messenger-api/pubsub"
	"messenger-api/services"
	"messenger-api/utils"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WSController WebSocket 接入：校验 token 后把连接交给 Hub。
// 个人频道随连接自动订阅，会话频道由客户端发控制帧订阅。
type WSController struct {
	hub    *pubsub.Hub
	tokens *services.TokenManager
	store  *services.Store
}

func NewWSController(hub *pubsub.Hub, tokens *services.TokenManager, store *services.Store) *WSController {
	return &WSController{hub: hub, tokens: tokens, store: store}
}

func (wc *WSController) Handle(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		utils.RespondError(c, http.StatusUnauthorized, "Token is required")
		return
	}

	userID, err := wc.tokens.ParseToken(token)
	if err != nil {
		utils.RespondError(c, http.StatusUnauthorized, "Invalid or expired token")
		return
	}
	user, err := wc.store.FindUserByID(userID)
	if err != nil {
		utils.RespondError(c, http.StatusUnauthorized, "Invalid or expired token")
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		utils.RespondError(c, http.StatusInternalServerError, "Failed to upgrade connection")
		return
	}
	wc.hub.Attach(conn, user.Email)
}

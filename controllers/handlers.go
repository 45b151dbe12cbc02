package controllers

import (
	"messenger-api/pubsub"
	"messenger-api/services"
)

// Handlers 所有控制器的集合，供路由注册使用
type Handlers struct {
	Users         *UserController
	Conversations *ConversationController
	Messages      *MessageController
	Uploads       *UploadController
	WS            *WSController
}

func NewHandlers(
	store *services.Store,
	tokens *services.TokenManager,
	presence *services.PresenceRegistry,
	fanout *services.FanoutRouter,
	seen *services.SeenReconciler,
	hub *pubsub.Hub,
	uploadDir string,
) *Handlers {
	return &Handlers{
		Users:         NewUserController(store, tokens, presence),
		Conversations: NewConversationController(store, fanout, seen),
		Messages:      NewMessageController(store, fanout),
		Uploads:       NewUploadController(uploadDir),
		WS:            NewWSController(hub, tokens, store),
	}
}

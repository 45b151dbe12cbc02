package services

import (
	"context"
	"log"
	"sync"
	"time"

	"messenger-api/models"
	"messenger-api/pubsub"
)

// FanoutRouter 把已落库的领域事件翻译成 (频道, 事件, 负载) 并发布。
// 发布是尽力而为：单个失败只记日志，不影响请求结果，也不重试——
// 数据库里的状态才是事实来源，客户端随时可以整页刷新恢复。
type FanoutRouter struct {
	publisher pubsub.Publisher
	timeout   time.Duration
}

func NewFanoutRouter(publisher pubsub.Publisher, timeout time.Duration) *FanoutRouter {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &FanoutRouter{publisher: publisher, timeout: timeout}
}

// OnMessageCreated 新消息：先发会话频道的 messages:new，
// 再并发地给每个成员的个人频道发 message:update（用于会话列表重排/预览）。
func (f *FanoutRouter) OnMessageCreated(ctx context.Context, msg *models.Message, conv *models.Conversation) {
	f.publish(ctx, conv.ID, pubsub.EventNewMessage, pubsub.NewMessagePayload(msg))

	update := pubsub.ConversationUpdatePayload{
		ID:       conv.ID,
		Messages: []pubsub.MessageRef{pubsub.NewMessageRef(msg)},
	}

	var wg sync.WaitGroup
	for _, user := range conv.Users {
		if user.Email == "" {
			continue
		}
		wg.Add(1)
		go func(email string) {
			defer wg.Done()
			f.publish(ctx, email, pubsub.EventMessageUpdate, update)
		}(user.Email)
	}
	wg.Wait()
}

// OnConversationCreated 给每个成员的个人频道发 conversation:new
func (f *FanoutRouter) OnConversationCreated(ctx context.Context, conv *models.Conversation) {
	var wg sync.WaitGroup
	for _, user := range conv.Users {
		if user.Email == "" {
			continue
		}
		wg.Add(1)
		go func(email string) {
			defer wg.Done()
			f.publish(ctx, email, pubsub.EventNewConversation, conv)
		}(user.Email)
	}
	wg.Wait()
}

// OnConversationRemoved 给每个成员发删除前的完整会话快照。
// 此事件之后不再为该会话发布任何事件。
func (f *FanoutRouter) OnConversationRemoved(ctx context.Context, conv *models.Conversation) {
	var wg sync.WaitGroup
	for _, user := range conv.Users {
		if user.Email == "" {
			continue
		}
		wg.Add(1)
		go func(email string) {
			defer wg.Done()
			f.publish(ctx, email, pubsub.EventConversationRemove, conv)
		}(user.Email)
	}
	wg.Wait()
}

func (f *FanoutRouter) publish(ctx context.Context, channel, event string, payload interface{}) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()
	if err := f.publisher.Publish(ctx, channel, event, payload); err != nil {
		log.Printf("publish %s to channel %s failed: %v", event, channel, err)
	}
}

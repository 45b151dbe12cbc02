package pubsub

import (
	"context"
	"encoding/json"
	"log"

	"github.com/redis/go-redis/v9"
)

// redisChannel 所有实例共用的 Redis 频道；逻辑频道写在帧里
const redisChannel = "messenger:events"

// RedisBridge 多实例部署时的发布端：事件先进 Redis，
// 每个实例的后台循环再把收到的帧投递进本地 Hub。
type RedisBridge struct {
	rdb *redis.Client
	hub *Hub
}

func NewRedisBridge(rdb *redis.Client, hub *Hub) *RedisBridge {
	return &RedisBridge{rdb: rdb, hub: hub}
}

func (b *RedisBridge) Publish(ctx context.Context, channel, event string, payload interface{}) error {
	frame, err := EncodeFrame(channel, event, payload)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, redisChannel, frame).Err()
}

// Run 订阅 Redis 并转发到本地 Hub，ctx 取消时退出
func (b *RedisBridge) Run(ctx context.Context) {
	sub := b.rdb.Subscribe(ctx, redisChannel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var frame Frame
			if err := json.Unmarshal([]byte(msg.Payload), &frame); err != nil {
				log.Printf("invalid frame from redis: %v", err)
				continue
			}
			b.hub.Deliver(frame.Channel, []byte(msg.Payload))
		}
	}
}

package main

import (
	"context"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"

	"messenger-api/config"
	"messenger-api/controllers"
	"messenger-api/models"
	"messenger-api/pubsub"
	"messenger-api/routes"
	"messenger-api/services"
)

func main() {
	cfg := config.Load()

	// 初始化数据库
	if err := config.InitDB(cfg); err != nil {
		log.Fatalf("Failed to init database: %v", err)
	}
	// 自动迁移
	if err := models.Migrate(config.DB); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	store := services.NewStore(config.DB)
	tokens := services.NewTokenManager(cfg.JWTSecret, cfg.TokenTTL)
	presence := services.NewPresenceRegistry()

	hub := pubsub.NewHub(presence)
	go hub.Run()

	// 单实例直接走本地 Hub；配置了 Redis 则经由 Redis 桥接，
	// 让事件到达所有实例的订阅者
	var publisher pubsub.Publisher = hub
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		bridge := pubsub.NewRedisBridge(rdb, hub)
		go bridge.Run(context.Background())
		publisher = bridge
		log.Printf("using redis bridge at %s", cfg.RedisAddr)
	}

	fanout := services.NewFanoutRouter(publisher, cfg.PublishTimeout)
	seen := services.NewSeenReconciler(store)

	handlers := controllers.NewHandlers(store, tokens, presence, fanout, seen, hub, cfg.UploadDir)
	r := routes.RegisterRoutes(handlers, tokens, store, cfg.UploadDir)

	if err := r.Run(fmt.Sprintf(":%d", cfg.Port)); err != nil {
		log.Fatalf("Server failed to start: %v", err)
	}
}

package pubsub

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	pingInterval = 10 * time.Second
	pongTimeout  = 30 * time.Second
	sendBuffer   = 64
)

// Presence 在线集合的最小接口，由连接生命周期事件驱动
type Presence interface {
	Add(email string)
	Remove(email string)
}

// Hub 本地 WebSocket 发布端：维护频道 -> 订阅者映射，
// 把发布的事件投递给当前订阅该频道的连接。
type Hub struct {
	mu         sync.RWMutex
	channels   map[string]map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	presence   Presence
}

func NewHub(presence Presence) *Hub {
	return &Hub{
		channels:   make(map[string]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		presence:   presence,
	}
}

// Client 一条 WebSocket 连接
type Client struct {
	hub       *Hub
	conn      *websocket.Conn
	send      chan []byte
	done      chan struct{}
	email     string
	lastPong  time.Time
	mu        sync.Mutex
	closeOnce sync.Once
}

// controlFrame 客户端发来的订阅控制帧
type controlFrame struct {
	Action  string `json:"action"` // "subscribe" 或 "unsubscribe"
	Channel string `json:"channel"`
}

// Run 处理连接的注册/注销
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			// 个人频道随连接建立自动订阅
			h.subscribe(client, client.email)
			if h.presence != nil {
				h.presence.Add(client.email)
			}
			log.Printf("client connected: %s", client.email)

		case client := <-h.unregister:
			h.dropClient(client)
			if h.presence != nil {
				h.presence.Remove(client.email)
			}
			log.Printf("client disconnected: %s", client.email)
		}
	}
}

// Attach 接管一条已升级的连接
func (h *Hub) Attach(conn *websocket.Conn, email string) *Client {
	client := &Client{
		hub:      h,
		conn:     conn,
		send:     make(chan []byte, sendBuffer),
		done:     make(chan struct{}),
		email:    email,
		lastPong: time.Now(),
	}
	h.register <- client

	go client.writeMessages()
	go client.readMessages()
	go client.heartbeat()
	return client
}

// Publish 把事件投递给频道的所有订阅者。投递是非阻塞的：
// 发送缓冲已满的慢连接会被跳过并记日志。
func (h *Hub) Publish(ctx context.Context, channel, event string, payload interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	frame, err := EncodeFrame(channel, event, payload)
	if err != nil {
		return err
	}
	h.Deliver(channel, frame)
	return nil
}

// Deliver 投递一帧已编码的数据（也被 Redis 桥接复用）
func (h *Hub) Deliver(channel string, frame []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.channels[channel] {
		select {
		case client.send <- frame:
		default:
			log.Printf("dropping frame for slow client: %s", client.email)
		}
	}
}

// Subscribers 返回频道当前的订阅连接数
func (h *Hub) Subscribers(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels[channel])
}

func (h *Hub) subscribe(client *Client, channel string) {
	if channel == "" {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.channels[channel] == nil {
		h.channels[channel] = make(map[*Client]struct{})
	}
	h.channels[channel][client] = struct{}{}
}

func (h *Hub) unsubscribe(client *Client, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if subs, ok := h.channels[channel]; ok {
		delete(subs, client)
		if len(subs) == 0 {
			delete(h.channels, channel)
		}
	}
}

func (h *Hub) dropClient(client *Client) {
	h.mu.Lock()
	for channel, subs := range h.channels {
		if _, ok := subs[client]; ok {
			delete(subs, client)
			if len(subs) == 0 {
				delete(h.channels, channel)
			}
		}
	}
	h.mu.Unlock()

	client.closeOnce.Do(func() {
		close(client.done)
	})
}

func (c *Client) readMessages() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		if string(msg) == "pong" {
			c.mu.Lock()
			c.lastPong = time.Now()
			c.mu.Unlock()
			continue
		}

		var frame controlFrame
		if err := json.Unmarshal(msg, &frame); err != nil {
			log.Printf("invalid control frame from %s: %s", c.email, string(msg))
			continue
		}
		switch frame.Action {
		case "subscribe":
			c.hub.subscribe(c, frame.Channel)
		case "unsubscribe":
			c.hub.unsubscribe(c, frame.Channel)
		}
	}
}

func (c *Client) writeMessages() {
	for {
		select {
		case msg := <-c.send:
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.conn.Close()
				return
			}
		case <-c.done:
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			c.conn.Close()
			return
		}
	}
}

func (c *Client) heartbeat() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
		}

		c.mu.Lock()
		expired := time.Since(c.lastPong) > pongTimeout
		c.mu.Unlock()
		if expired {
			log.Printf("client timed out: %s", c.email)
			c.conn.Close()
			return
		}
		select {
		case c.send <- []byte("ping"):
		default:
		}
	}
}

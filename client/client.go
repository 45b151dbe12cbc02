package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"

	"github.com/gorilla/websocket"

	"messenger-api/pubsub"
)

// Client 维护到服务端的 WebSocket 连接，并把收到的帧喂给 State。
// 个人频道由服务端在连接建立时自动订阅；会话频道跟随
// OpenConversation / CloseConversation 显式订阅和退订。
type Client struct {
	conn    *websocket.Conn
	state   *State
	writeMu sync.Mutex
}

// Dial 连接 /ws 端点
func Dial(ctx context.Context, rawURL, token string, state *State) (*Client, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid server url: %w", err)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}
	return &Client{conn: conn, state: state}, nil
}

// Run 读循环：应答心跳，其余帧交给 State 合并。连接断开时返回。
func (c *Client) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			return err
		}
		if string(msg) == "ping" {
			c.write([]byte("pong"))
			continue
		}

		var frame pubsub.Frame
		if err := json.Unmarshal(msg, &frame); err != nil {
			continue
		}
		if err := c.state.HandleFrame(frame); err != nil {
			return err
		}
	}
}

// OpenConversation 订阅会话频道并进入打开状态
func (c *Client) OpenConversation(id string, initial []pubsub.MessagePayload) error {
	if err := c.control("subscribe", id); err != nil {
		return err
	}
	c.state.OpenConversation(id, initial)
	return nil
}

// CloseConversation 退订会话频道并关闭视图
func (c *Client) CloseConversation() error {
	id := c.state.Open()
	if id == "" {
		return nil
	}
	c.state.CloseConversation()
	return c.control("unsubscribe", id)
}

func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) control(action, channel string) error {
	frame, err := json.Marshal(map[string]string{"action": action, "channel": channel})
	if err != nil {
		return err
	}
	return c.write(frame)
}

func (c *Client) write(msg []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, msg)
}

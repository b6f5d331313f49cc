package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"blackjack/protocol"
)

// wsConn 浏览器玩家的连接：一条 WebSocket 消息就是一帧负载（WS 自带分帧，不再加长度前缀）
type wsConn struct {
	ws           *websocket.Conn
	writeTimeout time.Duration
	mu           sync.Mutex // gorilla 只允许一个并发写者
}

func newWSConn(ws *websocket.Conn, writeTimeout time.Duration) *wsConn {
	ws.SetReadLimit(protocol.MaxPayload)
	return &wsConn{ws: ws, writeTimeout: writeTimeout}
}

func (c *wsConn) ReadFrame() ([]byte, error) {
	_, payload, err := c.ws.ReadMessage()
	if err != nil {
		switch {
		case errors.Is(err, websocket.ErrReadLimit):
			return nil, fmt.Errorf("read ws message: %w", protocol.ErrFrameTooLarge)
		case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived):
			return nil, io.EOF
		}
		return nil, err
	}
	return payload, nil
}

func (c *wsConn) WriteFrame(payload []byte) error {
	if len(payload) > protocol.MaxPayload {
		return protocol.ErrFrameTooLarge
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeTimeout > 0 {
		_ = c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	return c.ws.WriteMessage(websocket.TextMessage, payload)
}

func (c *wsConn) SetReadDeadline(t time.Time) error { return c.ws.SetReadDeadline(t) }
func (c *wsConn) Close() error                      { return c.ws.Close() }
func (c *wsConn) RemoteAddr() string                { return c.ws.RemoteAddr().String() }

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// 演示环境：允许所有来源（生产环境需严格限制）
		return true
	},
}

// HandleWS WebSocket 接入：升级后与 TCP 玩家走同一套握手与会话
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		Log.Warnw("upgrade error", "err", err)
		return
	}
	s.Admit(newWSConn(ws, time.Duration(s.cfg.WriteTimeout)))
}

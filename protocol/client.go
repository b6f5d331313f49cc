package protocol

import (
	"context"
	"fmt"
	"io"
	"net"
	"sync"
	"time"
)

// Stream 在字节流上按帧收发；写入加锁，读取只应由一个协程进行
type Stream struct {
	r  io.Reader
	w  io.Writer
	mu sync.Mutex
}

func NewStream(rw io.ReadWriter) *Stream {
	return &Stream{r: rw, w: rw}
}

func (s *Stream) ReadFrame() ([]byte, error) { return ReadFrame(s.r) }

func (s *Stream) WriteFrame(payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return WriteFrame(s.w, payload)
}

// RejectedError 服务端以 ERROR 拒绝了请求
type RejectedError struct{ Reason string }

func (e *RejectedError) Error() string { return "rejected by server: " + e.Reason }

// Client 牌桌协议的客户端一端
type Client struct {
	conn   net.Conn
	stream *Stream

	ID   int
	Name string
}

// Dial 连接服务端（不发送 JOIN）
func Dial(ctx context.Context, addr string) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return NewClient(conn), nil
}

func NewClient(conn net.Conn) *Client {
	return &Client{conn: conn, stream: NewStream(conn)}
}

// Send 发送一条指令
func (c *Client) Send(cmd Command) error {
	return c.stream.WriteFrame([]byte(cmd.Payload()))
}

// Join 完成入座握手，返回 WELCOME
func (c *Client) Join(name string) (Welcome, error) {
	if err := c.Send(Join{Name: name}); err != nil {
		return Welcome{}, err
	}
	msg, err := c.Next()
	if err != nil {
		return Welcome{}, err
	}
	switch m := msg.(type) {
	case Welcome:
		c.ID, c.Name = m.ID, m.Name
		return m, nil
	case Error:
		return Welcome{}, &RejectedError{Reason: m.Reason}
	default:
		return Welcome{}, fmt.Errorf("%w: expected %s, got %s", ErrMalformed, TagWelcome, msg.Tag())
	}
}

func (c *Client) Hit() error          { return c.Send(Act{Action: ActionHit}) }
func (c *Client) Stand() error        { return c.Send(Act{Action: ActionStand}) }
func (c *Client) Quit() error         { return c.Send(Quit{}) }
func (c *Client) Chat(s string) error { return c.Send(Chat{Text: s}) }

// Next 读取下一条服务端消息；BROADCAST 会连同其文本帧一起读出
func (c *Client) Next() (Message, error) {
	frame, err := c.stream.ReadFrame()
	if err != nil {
		return nil, err
	}
	return ParseMessage(string(frame), func() (string, error) {
		text, err := c.stream.ReadFrame()
		return string(text), err
	})
}

// SetReadTimeout 设置后续读取的截止时间，d 为 0 时取消
func (c *Client) SetReadTimeout(d time.Duration) error {
	if d == 0 {
		return c.conn.SetReadDeadline(time.Time{})
	}
	return c.conn.SetReadDeadline(time.Now().Add(d))
}

func (c *Client) Close() error { return c.conn.Close() }

package server

import (
	"net"
	"time"

	"blackjack/protocol"
)

// Conn 一条玩家连接：按帧收发，与底层是 TCP 还是 WebSocket 无关
type Conn interface {
	ReadFrame() ([]byte, error)
	WriteFrame(payload []byte) error
	SetReadDeadline(t time.Time) error
	Close() error
	RemoteAddr() string
}

// tcpConn 长度前缀帧跑在 TCP 字节流上
type tcpConn struct {
	conn         net.Conn
	stream       *protocol.Stream
	writeTimeout time.Duration
}

func newTCPConn(c net.Conn, writeTimeout time.Duration) *tcpConn {
	if tc, ok := c.(*net.TCPConn); ok {
		_ = tc.SetKeepAlive(true)
		_ = tc.SetKeepAlivePeriod(30 * time.Second)
		_ = tc.SetNoDelay(true)
	}
	return &tcpConn{conn: c, stream: protocol.NewStream(c), writeTimeout: writeTimeout}
}

func (c *tcpConn) ReadFrame() ([]byte, error) { return c.stream.ReadFrame() }

func (c *tcpConn) WriteFrame(payload []byte) error {
	if c.writeTimeout > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	return c.stream.WriteFrame(payload)
}

func (c *tcpConn) SetReadDeadline(t time.Time) error { return c.conn.SetReadDeadline(t) }
func (c *tcpConn) Close() error                      { return c.conn.Close() }
func (c *tcpConn) RemoteAddr() string                { return c.conn.RemoteAddr().String() }

package server

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"blackjack/deck"
	"blackjack/protocol"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Addr = "127.0.0.1:0"
	cfg.AdminAddr = ""
	cfg.ActionTimeout = Duration(5 * time.Second)
	cfg.RoundPause = Duration(10 * time.Millisecond)
	cfg.WaitPoll = Duration(10 * time.Millisecond)
	cfg.JoinTimeout = Duration(2 * time.Second)
	cfg.WriteTimeout = Duration(2 * time.Second)
	cfg.Log = LogConfig{}
	return cfg
}

// stubConn 不做任何 I/O 的连接，只用于登记表等不收发消息的测试
type stubConn struct{}

func (stubConn) ReadFrame() ([]byte, error)      { select {} }
func (stubConn) WriteFrame([]byte) error         { return nil }
func (stubConn) SetReadDeadline(time.Time) error { return nil }
func (stubConn) Close() error                    { return nil }
func (stubConn) RemoteAddr() string              { return "stub" }

// pipeSession 在 net.Pipe 上建立一个已入局的会话，返回会话与客户端一端
func pipeSession(t *testing.T, reg *Registry, m *Metrics, cfg Config, name string) (*Session, *protocol.Client, net.Conn) {
	t.Helper()
	srvEnd, cliEnd := net.Pipe()
	sess, err := reg.Join(func(id int) *Session {
		return newSession(id, name, newTCPConn(srvEnd, 0), reg, m, cfg)
	})
	require.NoError(t, err)
	require.True(t, reg.Seat(sess.ID, sess))
	sess.start()
	go sess.readPump()

	c := protocol.NewClient(cliEnd)
	t.Cleanup(func() { _ = c.Close() })
	return sess, c, cliEnd
}

// harness 在回环地址上运行的完整服务端（牌局协调协程由各测试自行驱动）
type harness struct {
	t      *testing.T
	srv    *Server
	addr   string
	ctx    context.Context
	cancel context.CancelFunc
}

func startServer(t *testing.T, cfg Config, d *deck.Deck) *harness {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := New(cfg, d)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = srv.Serve(ctx, ln)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return &harness{t: t, srv: srv, addr: ln.Addr().String(), ctx: ctx, cancel: cancel}
}

func (h *harness) dial() *protocol.Client {
	h.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	c, err := protocol.Dial(ctx, h.addr)
	require.NoError(h.t, err)
	h.t.Cleanup(func() { _ = c.Close() })
	return c
}

// join 入座并等到服务端把该玩家计入在线人数
func (h *harness) join(name string) *protocol.Client {
	h.t.Helper()
	want := h.srv.reg.Connected() + 1
	c := h.dial()
	require.NoError(h.t, c.SetReadTimeout(2*time.Second))
	_, err := c.Join(name)
	require.NoError(h.t, err)
	require.Eventually(h.t, func() bool { return h.srv.reg.Connected() == want }, 2*time.Second, 5*time.Millisecond)
	return c
}

// playRound 在后台打一局，返回接收结果的通道
func (h *harness) playRound() <-chan RoundSummary {
	out := make(chan RoundSummary, 1)
	go func() {
		summary, _ := h.srv.table.PlayRound(h.ctx)
		out <- summary
	}()
	return out
}

func expect(t *testing.T, c *protocol.Client, want ...protocol.Message) {
	t.Helper()
	for _, w := range want {
		require.NoError(t, c.SetReadTimeout(3*time.Second))
		got, err := c.Next()
		require.NoError(t, err, "waiting for %s", w.Tag())
		require.Equal(t, w, got)
	}
}

func waitSummary(t *testing.T, ch <-chan RoundSummary) RoundSummary {
	t.Helper()
	select {
	case s := <-ch:
		return s
	case <-time.After(5 * time.Second):
		t.Fatal("round did not finish")
		return RoundSummary{}
	}
}

func cards(s ...string) []deck.Card {
	out := make([]deck.Card, len(s))
	for i, c := range s {
		out[i] = deck.MustParse(c)
	}
	return out
}

func deal(a, b string) protocol.Deal {
	return protocol.Deal{Cards: [2]deck.Card{deck.MustParse(a), deck.MustParse(b)}}
}

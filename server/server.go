package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"
	"unicode"
	"unicode/utf8"

	"blackjack/deck"
	"blackjack/protocol"
)

var (
	// ErrExpectedJoin 连接的第一条消息不是 JOIN
	ErrExpectedJoin = errors.New("expected JOIN")
	// ErrServerClosed 服务端已开始关闭，不再接纳新玩家
	ErrServerClosed = errors.New("server closed")
)

// Server 接入层：接受连接、完成 JOIN 握手、为每位玩家启动会话
type Server struct {
	cfg     Config
	reg     *Registry
	table   *Table
	metrics *Metrics

	wg sync.WaitGroup // 所有连接协程

	mu      sync.Mutex
	pending map[Conn]struct{} // 尚在 JOIN 握手中的连接
	closed  bool
}

// New 组装登记表、牌桌与指标；d 为 nil 时使用随机洗好的一副牌
func New(cfg Config, d *deck.Deck) *Server {
	m := &Metrics{}
	reg := NewRegistry(cfg.MaxPlayers)
	return &Server{
		cfg:     cfg,
		reg:     reg,
		table:   NewTable(cfg, reg, d, m),
		metrics: m,
		pending: make(map[Conn]struct{}),
	}
}

func (s *Server) Table() *Table       { return s.table }
func (s *Server) Registry() *Registry { return s.reg }
func (s *Server) Metrics() *Metrics   { return s.metrics }

// ListenAndServe 监听 cfg.Addr 并接受连接，直到 ctx 取消
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve 接受循环；每个连接的握手在独立协程中进行，慢连接不会阻塞接入
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	Log.Infof("blackjack table listening on %s", ln.Addr())
	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()
	defer s.Shutdown()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			Log.Warnw("accept failed", "err", err)
			time.Sleep(10 * time.Millisecond)
			continue
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.Admit(newTCPConn(conn, time.Duration(s.cfg.WriteTimeout)))
		}()
	}
}

// Shutdown 关闭握手中的连接，向所有在线玩家告别，等待连接协程退出
// 置位 closed 之后 handshake 不会再入座，Live 快照因此是完整的
func (s *Server) Shutdown() {
	s.mu.Lock()
	s.closed = true
	for c := range s.pending {
		_ = c.Close()
	}
	s.mu.Unlock()

	for _, sess := range s.reg.Live() {
		sess.Close()
	}
	s.wg.Wait()
}

// track 登记握手中的连接；已关闭时返回 false
func (s *Server) track(c Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.pending[c] = struct{}{}
	return true
}

func (s *Server) untrack(c Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, c)
}

// Admit 完成握手并在当前协程运行会话的读循环，直到玩家离开
func (s *Server) Admit(c Conn) {
	if !s.track(c) {
		s.metrics.JoinsRejected.Add(1)
		_ = c.Close()
		return
	}
	sess, err := s.handshake(c)
	s.untrack(c)
	if err != nil {
		s.metrics.JoinsRejected.Add(1)
		Log.Infow("join rejected", "remote", c.RemoteAddr(), "err", err)
		_ = c.Close()
		return
	}
	sess.readPump()
	sess.Wait()
}

// handshake 第一条消息必须是 JOIN <name>；成功后 WELCOME 并入局
func (s *Server) handshake(c Conn) (*Session, error) {
	if jt := time.Duration(s.cfg.JoinTimeout); jt > 0 {
		_ = c.SetReadDeadline(time.Now().Add(jt))
	}
	payload, err := c.ReadFrame()
	if err != nil {
		return nil, fmt.Errorf("read join: %w", err)
	}
	_ = c.SetReadDeadline(time.Time{})

	join, ok := protocol.ParseCommand(payload).(protocol.Join)
	if !ok {
		s.reject(c, "Expected JOIN")
		return nil, ErrExpectedJoin
	}
	name := sanitizeName(join.Name)

	sess, err := s.join(c, name)
	if errors.Is(err, ErrServerClosed) {
		s.reject(c, "Server shutting down")
		return nil, err
	}
	if err != nil {
		s.reject(c, "Server full")
		return nil, err
	}
	sess.start()
	sess.Send(protocol.Welcome{Name: sess.Name, ID: sess.ID})
	s.reg.Seat(sess.ID, sess)
	s.metrics.Joins.Add(1)
	Log.Infow("player joined", "slot", sess.ID, "name", sess.Name, "remote", c.RemoteAddr())

	if connected, needed := s.reg.Connected(), s.table.Settings().MinPlayers; connected < needed {
		sess.Send(protocol.Waiting{Connected: connected, Needed: needed})
	}
	return sess, nil
}

// join 占座；与 Shutdown 互斥，关闭开始后一律拒绝
func (s *Server) join(c Conn, name string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrServerClosed
	}
	sess, err := s.reg.Join(func(id int) *Session {
		display := name
		if display == "" {
			display = fmt.Sprintf("player%d", id)
		}
		return newSession(id, display, c, s.reg, s.metrics, s.cfg)
	})
	if err == nil {
		delete(s.pending, c)
	}
	return sess, err
}

func (s *Server) reject(c Conn, reason string) {
	if err := c.WriteFrame([]byte(protocol.Error{Reason: reason}.Frames()[0])); err != nil {
		Log.Debugw("send error frame failed", "remote", c.RemoteAddr(), "err", err)
	}
}

// sanitizeName 去掉控制字符与首尾空白，截断到 MaxNameLen-1 字节
func sanitizeName(name string) string {
	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, name)
	name = strings.TrimSpace(name)
	if len(name) > MaxNameLen-1 {
		name = name[:MaxNameLen-1]
		for len(name) > 0 && !utf8.ValidString(name) {
			name = name[:len(name)-1]
		}
		name = strings.TrimSpace(name)
	}
	return name
}

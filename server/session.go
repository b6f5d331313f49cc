package server

import (
	"errors"
	"sync"
	"sync/atomic"

	"golang.org/x/time/rate"

	"blackjack/protocol"
)

// SessionState 会话状态，只通过动作通道这一边界迁移
type SessionState int32

const (
	StateIdle           SessionState = iota
	StateAwaitingAction              // 协调者正在等待该玩家出手
	StateDisconnected
)

func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingAction:
		return "awaiting_action"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Session 一个已入座玩家的连接：读协程解析指令，写协程发送队列中的帧
//
// 动作通过容量为 1 的 actions 通道交给协调者，只保留最新一次；
// 断线时一定先投递一次 STAND 再关闭 gone，协调者不会因此卡住。
type Session struct {
	ID   int // 1-based 座位号
	Name string

	conn    Conn
	reg     *Registry
	metrics *Metrics
	limiter *rate.Limiter

	state   atomic.Int32
	actions chan protocol.Action
	gone    chan struct{}

	sendMu     sync.Mutex
	send       chan [][]byte
	sendClosed bool
	pumpDone   chan struct{}
}

func newSession(id int, name string, conn Conn, reg *Registry, m *Metrics, cfg Config) *Session {
	return &Session{
		ID:       id,
		Name:     name,
		conn:     conn,
		reg:      reg,
		metrics:  m,
		limiter:  rate.NewLimiter(rate.Limit(cfg.ChatPerSecond), cfg.ChatBurst),
		actions:  make(chan protocol.Action, 1),
		gone:     make(chan struct{}),
		send:     make(chan [][]byte, cfg.SendQueue),
		pumpDone: make(chan struct{}),
	}
}

func (s *Session) State() SessionState { return SessionState(s.state.Load()) }

// Alive 连接仍然有效
func (s *Session) Alive() bool { return s.State() != StateDisconnected }

// Gone 断线后关闭
func (s *Session) Gone() <-chan struct{} { return s.gone }

// Actions 协调者读取玩家动作的通道
func (s *Session) Actions() <-chan protocol.Action { return s.actions }

// arm 协调者开始等待：Idle → AwaitingAction
func (s *Session) arm() bool {
	return s.state.CompareAndSwap(int32(StateIdle), int32(StateAwaitingAction))
}

// disarm 等待结束：AwaitingAction → Idle（已断线则保持不变）
func (s *Session) disarm() {
	s.state.CompareAndSwap(int32(StateAwaitingAction), int32(StateIdle))
}

// resetAction 清掉尚未被读取的动作（开局时 pending = None）
func (s *Session) resetAction() {
	select {
	case <-s.actions:
	default:
	}
}

// deliver 投递动作，覆盖尚未被读取的旧动作；只有读协程调用
func (s *Session) deliver(a protocol.Action) {
	for {
		select {
		case s.actions <- a:
			return
		default:
		}
		select {
		case <-s.actions:
		default:
		}
	}
}

// Send 将消息压入发送队列（非阻塞）；队列满说明对端过慢，直接断开它
func (s *Session) Send(msg protocol.Message) bool {
	frames := msg.Frames()
	batch := make([][]byte, len(frames))
	for i, f := range frames {
		batch[i] = []byte(f)
	}

	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if s.sendClosed {
		return false
	}
	select {
	case s.send <- batch:
		return true
	default:
		Log.Warnw("send queue full, dropping slow peer", "slot", s.ID, "name", s.Name)
		s.metrics.SlowPeers.Add(1)
		s.sendClosed = true
		close(s.send)
		_ = s.conn.Close()
		return false
	}
}

// closeSend 关闭发送队列，写协程发完剩余的帧后关闭连接
func (s *Session) closeSend() {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if !s.sendClosed {
		s.sendClosed = true
		close(s.send)
	}
}

// Close 服务端主动结束会话：告别后关闭
func (s *Session) Close() {
	s.Send(protocol.Goodbye{})
	s.closeSend()
}

// writePump 独立协程，负责从 send 队列写出；同一批次的帧连续写出，BROADCAST 不会被拆开
func (s *Session) writePump() {
	defer close(s.pumpDone)
	defer s.conn.Close()
	for batch := range s.send {
		for _, frame := range batch {
			if err := s.conn.WriteFrame(frame); err != nil {
				Log.Debugw("write failed", "slot", s.ID, "err", err)
				return
			}
		}
	}
}

// readPump 读取玩家指令直到断线或 QUIT；退出时走统一的断线流程
func (s *Session) readPump() {
	reason := "disconnected"
	defer func() { s.disconnect(reason) }()

	for {
		payload, err := s.conn.ReadFrame()
		if err != nil {
			switch {
			case protocol.IsDisconnect(err):
			case errors.Is(err, protocol.ErrFrameTooLarge), errors.Is(err, protocol.ErrTruncated):
				s.metrics.BadFrames.Add(1)
				reason = "malformed frame"
				Log.Warnw("malformed frame", "slot", s.ID, "name", s.Name, "err", err)
			default:
				reason = "read error"
				Log.Debugw("read error", "slot", s.ID, "err", err)
			}
			return
		}

		switch cmd := protocol.ParseCommand(payload).(type) {
		case protocol.Act:
			s.deliver(cmd.Action)
		case protocol.Quit:
			reason = "quit"
			s.Send(protocol.Goodbye{})
			return
		case protocol.Chat:
			s.chat(cmd.Text)
		default:
			s.metrics.UnknownCmds.Add(1)
		}
	}
}

// disconnect 标记断线、释放座位，并强制投递 STAND 唤醒可能正在等待的协调者
func (s *Session) disconnect(reason string) {
	s.state.Store(int32(StateDisconnected))
	s.reg.Release(s.ID, s)
	s.deliver(protocol.ActionStand)
	close(s.gone)
	s.closeSend()
	s.metrics.Disconnects.Add(1)
	Log.Infow("player left", "slot", s.ID, "name", s.Name, "reason", reason)
}

// chat 把聊天转发给其他在线玩家（只在遍历期间持有登记表锁）
func (s *Session) chat(text string) {
	if !s.limiter.Allow() {
		s.metrics.ChatThrottled.Add(1)
		return
	}
	msg := protocol.Broadcast{Text: s.Name + ": " + text}
	s.reg.ForEachLive(func(p *Session) {
		if p != s {
			p.Send(msg)
		}
	})
	s.metrics.ChatRelayed.Add(1)
}

// start 启动写协程；读循环由调用方在当前协程中运行
func (s *Session) start() {
	go s.writePump()
}

// Wait 等待写协程退出（连接已关闭）
func (s *Session) Wait() { <-s.pumpDone }

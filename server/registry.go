package server

import (
	"errors"
	"sync"
)

var (
	// ErrTableFull 没有空座位
	ErrTableFull = errors.New("server full")
	// ErrSlotTaken 座位已被占用
	ErrSlotTaken = errors.New("slot taken")
)

// SlotState 座位状态：Empty → Connected → InGame → Empty
type SlotState int

const (
	SlotEmpty SlotState = iota
	SlotConnected
	SlotInGame
)

func (s SlotState) String() string {
	switch s {
	case SlotConnected:
		return "connected"
	case SlotInGame:
		return "in_game"
	default:
		return "empty"
	}
}

type slot struct {
	state   SlotState
	session *Session
}

// Registry 固定容量的座位表；一把锁只管座位状态与在线计数，不在持锁时做网络 I/O
type Registry struct {
	mu        sync.Mutex
	slots     []slot
	connected int
}

// NewRegistry 创建 capacity 个空座位
func NewRegistry(capacity int) *Registry {
	return &Registry{slots: make([]slot, capacity)}
}

func (r *Registry) Capacity() int { return len(r.slots) }

// FindFreeSlot 返回第一个空座位的编号（1-based）
func (r *Registry) FindFreeSlot() (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.slots {
		if r.slots[i].state == SlotEmpty {
			return i + 1, true
		}
	}
	return 0, false
}

// Assign 占用空座位：Empty → Connected
func (r *Registry) Assign(id int, s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	sl, ok := r.at(id)
	if !ok || sl.state != SlotEmpty {
		return ErrSlotTaken
	}
	sl.state = SlotConnected
	sl.session = s
	return nil
}

// Join 找座并占用；与其他握手并发时重试
func (r *Registry) Join(build func(id int) *Session) (*Session, error) {
	for {
		id, ok := r.FindFreeSlot()
		if !ok {
			return nil, ErrTableFull
		}
		s := build(id)
		err := r.Assign(id, s)
		if err == nil {
			return s, nil
		}
		if !errors.Is(err, ErrSlotTaken) {
			return nil, err
		}
	}
}

// Seat 入局：Connected → InGame，在线计数加一
func (r *Registry) Seat(id int, s *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	sl, ok := r.at(id)
	if !ok || sl.session != s || sl.state != SlotConnected {
		return false
	}
	sl.state = SlotInGame
	r.connected++
	return true
}

// Release 释放座位；只有座位仍属于 s 时生效
func (r *Registry) Release(id int, s *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	sl, ok := r.at(id)
	if !ok || sl.session != s || sl.state == SlotEmpty {
		return false
	}
	if sl.state == SlotInGame {
		r.connected--
	}
	sl.state = SlotEmpty
	sl.session = nil
	return true
}

// Connected 已入局的在线人数
func (r *Registry) Connected() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.connected
}

// Live 按座位顺序返回所有在线会话的快照
func (r *Registry) Live() []*Session {
	return r.collect(func(sl slot) bool { return sl.state != SlotEmpty })
}

// Seated 按座位顺序返回已入局的在线会话（每局发牌的对象）
func (r *Registry) Seated() []*Session {
	return r.collect(func(sl slot) bool { return sl.state == SlotInGame })
}

// ForEachLive 对在线会话逐个调用 visit；锁只在取快照时持有
func (r *Registry) ForEachLive(visit func(*Session)) {
	for _, s := range r.Live() {
		visit(s)
	}
}

// SlotInfo 座位快照，供管理接口输出
type SlotInfo struct {
	ID      int    `json:"id"`
	State   string `json:"state"`
	Name    string `json:"name,omitempty"`
	Session string `json:"session,omitempty"`
	Remote  string `json:"remote,omitempty"`
}

func (r *Registry) Snapshot() []SlotInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]SlotInfo, len(r.slots))
	for i, sl := range r.slots {
		out[i] = SlotInfo{ID: i + 1, State: sl.state.String()}
		if sl.session != nil {
			out[i].Name = sl.session.Name
			out[i].Session = sl.session.State().String()
			out[i].Remote = sl.session.conn.RemoteAddr()
		}
	}
	return out
}

func (r *Registry) collect(keep func(slot) bool) []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Session, 0, len(r.slots))
	for _, sl := range r.slots {
		if keep(sl) && sl.session != nil && sl.session.Alive() {
			out = append(out, sl.session)
		}
	}
	return out
}

func (r *Registry) at(id int) (*slot, bool) {
	if id < 1 || id > len(r.slots) {
		return nil, false
	}
	return &r.slots[id-1], true
}

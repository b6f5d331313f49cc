package server

import (
	"sync"
	"time"

	"blackjack/protocol"
)

// PlayerSummary 一局中单个玩家的结果
type PlayerSummary struct {
	Slot     int              `json:"slot"`
	Name     string           `json:"name"`
	Hand     []string         `json:"hand"`
	Total    int              `json:"total"`
	Soft     bool             `json:"soft,omitempty"`
	Busted   bool             `json:"busted,omitempty"`
	TimedOut bool             `json:"timed_out,omitempty"`
	Left     bool             `json:"left,omitempty"`
	Outcome  protocol.Outcome `json:"outcome,omitempty"`
}

// RoundSummary 一局的记录
type RoundSummary struct {
	ID          string          `json:"id"`
	StartedAt   time.Time       `json:"started_at"`
	ElapsedMs   int64           `json:"elapsed_ms"`
	Reshuffled  bool            `json:"reshuffled,omitempty"`
	Dealer      []string        `json:"dealer"`
	DealerTotal int             `json:"dealer_total"`
	Players     []PlayerSummary `json:"players"`
}

// History 固定容量的环形记录，旧的被覆盖；只在内存中保存
type History struct {
	mu     sync.RWMutex
	rounds []RoundSummary
	next   int
	full   bool
}

func NewHistory(size int) *History {
	if size < 1 {
		size = 1
	}
	return &History{rounds: make([]RoundSummary, size)}
}

func (h *History) Add(r RoundSummary) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.rounds[h.next] = r
	h.next = (h.next + 1) % len(h.rounds)
	if h.next == 0 {
		h.full = true
	}
}

// Recent 由新到旧返回记录
func (h *History) Recent() []RoundSummary {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := h.next
	if h.full {
		n = len(h.rounds)
	}
	out := make([]RoundSummary, 0, n)
	for i := 1; i <= n; i++ {
		idx := (h.next - i + len(h.rounds)) % len(h.rounds)
		out = append(out, h.rounds[idx])
	}
	return out
}

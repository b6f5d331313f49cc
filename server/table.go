package server

import (
	"fmt"
	"sync"
	"time"

	"blackjack/deck"
)

// Settings 可在运行期热更新的牌桌规则；下一次提示或下一局生效
type Settings struct {
	ActionTimeout      time.Duration
	RoundPause         time.Duration
	WaitPoll           time.Duration
	ReshuffleThreshold int
	MinPlayers         int
}

func (s Settings) validate(maxPlayers int) error {
	switch {
	case s.ActionTimeout <= 0:
		return fmt.Errorf("%w: action_timeout must be positive", ErrInvalidConfig)
	case s.RoundPause < 0:
		return fmt.Errorf("%w: round_pause must not be negative", ErrInvalidConfig)
	case s.WaitPoll <= 0:
		return fmt.Errorf("%w: wait_poll must be positive", ErrInvalidConfig)
	case s.ReshuffleThreshold < 0 || s.ReshuffleThreshold > deck.Size:
		return fmt.Errorf("%w: reshuffle_threshold must be in [0,52]", ErrInvalidConfig)
	case s.MinPlayers < 1 || s.MinPlayers > maxPlayers:
		return fmt.Errorf("%w: min_players must be in [1,%d]", ErrInvalidConfig, maxPlayers)
	}
	return nil
}

// Table 牌局协调者：独占牌堆与所有手牌，由 Run 所在的单个协程推进
type Table struct {
	reg     *Registry
	deck    *deck.Deck
	metrics *Metrics
	history *History

	mu       sync.RWMutex
	settings Settings
}

// NewTable 创建牌桌；d 为 nil 时使用新洗好的一副牌
func NewTable(cfg Config, reg *Registry, d *deck.Deck, m *Metrics) *Table {
	if d == nil {
		d = deck.New(nil)
	}
	if m == nil {
		m = &Metrics{}
	}
	return &Table{
		reg:     reg,
		deck:    d,
		metrics: m,
		history: NewHistory(cfg.HistorySize),
		settings: Settings{
			ActionTimeout:      time.Duration(cfg.ActionTimeout),
			RoundPause:         time.Duration(cfg.RoundPause),
			WaitPoll:           time.Duration(cfg.WaitPoll),
			ReshuffleThreshold: cfg.ReshuffleThreshold,
			MinPlayers:         cfg.MinPlayers,
		},
	}
}

// Settings 当前规则的副本
func (t *Table) Settings() Settings {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.settings
}

// UpdateSettings 在副本上修改并校验，通过后整体替换
func (t *Table) UpdateSettings(edit func(*Settings)) (Settings, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	next := t.settings
	edit(&next)
	if err := next.validate(t.reg.Capacity()); err != nil {
		return t.settings, err
	}
	t.settings = next
	return next, nil
}

// History 最近若干局的记录
func (t *Table) History() *History { return t.history }

// reshuffleIfLow 开局前检查：剩余张数低于阈值时整副重洗
func (t *Table) reshuffleIfLow(threshold int) bool {
	if t.deck.Remaining() >= threshold {
		return false
	}
	t.deck.Reshuffle()
	t.metrics.Reshuffles.Add(1)
	Log.Infow("deck reshuffled", "threshold", threshold)
	return true
}

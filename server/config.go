package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"
)

const (
	DefaultPort        = 12345
	MaxPlayers         = 6
	MaxNameLen         = 32 // 含结尾，显示名最多 31 字节
	ActionTimeout      = 30 * time.Second
	ReshuffleThreshold = 15
	DealerStandsOn     = 17
)

// ErrInvalidConfig 配置取值不合法
var ErrInvalidConfig = errors.New("invalid config")

// Duration 支持 JSON 中写 "30s"、"1500ms" 这样的字符串
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("duration must be a string like \"30s\": %w", err)
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Config 牌桌服务配置
type Config struct {
	Addr      string `json:"addr"`       // 玩家 TCP 监听地址
	AdminAddr string `json:"admin_addr"` // HTTP（管理、指标、WebSocket）监听地址，空则不启用

	MaxPlayers int `json:"max_players"`
	MinPlayers int `json:"min_players"` // 凑够多少人才开局

	ActionTimeout      Duration `json:"action_timeout"`
	RoundPause         Duration `json:"round_pause"`
	WaitPoll           Duration `json:"wait_poll"`
	JoinTimeout        Duration `json:"join_timeout"`
	WriteTimeout       Duration `json:"write_timeout"`
	ReshuffleThreshold int      `json:"reshuffle_threshold"`

	SendQueue     int     `json:"send_queue"`
	ChatPerSecond float64 `json:"chat_per_second"`
	ChatBurst     int     `json:"chat_burst"`
	HistorySize   int     `json:"history_size"`

	Log LogConfig `json:"log"`
}

// DefaultConfig 默认配置
func DefaultConfig() Config {
	return Config{
		Addr:               fmt.Sprintf(":%d", DefaultPort),
		AdminAddr:          ":8080",
		MaxPlayers:         MaxPlayers,
		MinPlayers:         1,
		ActionTimeout:      Duration(ActionTimeout),
		RoundPause:         Duration(2 * time.Second),
		WaitPoll:           Duration(time.Second),
		JoinTimeout:        Duration(10 * time.Second),
		WriteTimeout:       Duration(5 * time.Second),
		ReshuffleThreshold: ReshuffleThreshold,
		SendQueue:          64,
		ChatPerSecond:      1,
		ChatBurst:          5,
		HistorySize:        20,
		Log: LogConfig{
			File:       "blackjack.log",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 7,
			Level:      "info",
		},
	}
}

// LoadConfig 在默认配置之上叠加 JSON 文件中的字段
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate 检查取值范围
func (c Config) Validate() error {
	switch {
	case c.MaxPlayers < 1:
		return fmt.Errorf("%w: max_players must be >= 1", ErrInvalidConfig)
	case c.MinPlayers < 1 || c.MinPlayers > c.MaxPlayers:
		return fmt.Errorf("%w: min_players must be in [1,max_players]", ErrInvalidConfig)
	case c.ActionTimeout <= 0:
		return fmt.Errorf("%w: action_timeout must be positive", ErrInvalidConfig)
	case c.WaitPoll <= 0:
		return fmt.Errorf("%w: wait_poll must be positive", ErrInvalidConfig)
	case c.RoundPause < 0 || c.JoinTimeout < 0 || c.WriteTimeout < 0:
		return fmt.Errorf("%w: durations must not be negative", ErrInvalidConfig)
	case c.ReshuffleThreshold < 0 || c.ReshuffleThreshold > 52:
		return fmt.Errorf("%w: reshuffle_threshold must be in [0,52]", ErrInvalidConfig)
	case c.SendQueue < 1:
		return fmt.Errorf("%w: send_queue must be >= 1", ErrInvalidConfig)
	case c.ChatPerSecond <= 0 || c.ChatBurst < 1:
		return fmt.Errorf("%w: chat rate must be positive", ErrInvalidConfig)
	}
	return nil
}

package protocol

import "strings"

// Action 玩家在自己回合内的决定
type Action int32

const (
	ActionNone Action = iota
	ActionHit
	ActionStand
)

func (a Action) String() string {
	switch a {
	case ActionHit:
		return "HIT"
	case ActionStand:
		return "STAND"
	default:
		return "NONE"
	}
}

const (
	CmdJoin   = "JOIN"
	CmdAction = "ACTION"
	CmdQuit   = "QUIT"
	CmdChat   = "CHAT"
)

// Command 客户端→服务端指令（封闭变体），在传输边界一次性解析
type Command interface {
	// Payload 线上文本
	Payload() string
	isCommand()
}

type (
	Join    struct{ Name string }
	Act     struct{ Action Action }
	Quit    struct{}
	Chat    struct{ Text string }
	Unknown struct{ Raw string }
)

func (c Join) Payload() string { return CmdJoin + " " + c.Name }
func (c Act) Payload() string  { return CmdAction + " " + c.Action.String() }
func (Quit) Payload() string   { return CmdQuit }
func (c Chat) Payload() string { return CmdChat + " " + c.Text }
func (c Unknown) Payload() string {
	return c.Raw
}

func (Join) isCommand()    {}
func (Act) isCommand()     {}
func (Quit) isCommand()    {}
func (Chat) isCommand()    {}
func (Unknown) isCommand() {}

// ParseCommand 解析一帧客户端指令；首个空格前为指令名，无法识别的返回 Unknown
func ParseCommand(payload []byte) Command {
	raw := string(payload)
	tag, rest, _ := strings.Cut(raw, " ")
	rest = strings.TrimLeft(rest, " ")
	switch tag {
	case CmdJoin:
		return Join{Name: strings.TrimSpace(rest)}
	case CmdAction:
		switch strings.TrimSpace(rest) {
		case "HIT":
			return Act{Action: ActionHit}
		case "STAND":
			return Act{Action: ActionStand}
		}
	case CmdQuit:
		if strings.TrimSpace(rest) == "" {
			return Quit{}
		}
	case CmdChat:
		return Chat{Text: rest}
	}
	return Unknown{Raw: raw}
}

package protocol

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"blackjack/deck"
)

// Tag 服务端消息的首个字段
type Tag string

const (
	TagWelcome       Tag = "WELCOME"
	TagWaiting       Tag = "WAITING"
	TagGameStart     Tag = "GAME_START"
	TagDeal          Tag = "DEAL"
	TagYourTurn      Tag = "YOUR_TURN"
	TagRequestAction Tag = "REQUEST_ACTION"
	TagCard          Tag = "CARD"
	TagBusted        Tag = "BUSTED"
	TagResult        Tag = "RESULT"
	TagBroadcast     Tag = "BROADCAST"
	TagError         Tag = "ERROR"
	TagGoodbye       Tag = "GOODBYE"
)

// ErrMalformed 无法解析的服务端消息
var ErrMalformed = errors.New("malformed message")

// Outcome 单局结算结果
type Outcome string

const (
	Win  Outcome = "WIN"
	Lose Outcome = "LOSE"
	Push Outcome = "PUSH"
)

// Message 服务端→客户端消息（封闭变体，只能是本包定义的类型）
type Message interface {
	Tag() Tag
	// Frames 线上帧序列；除 BROADCAST 外都只有一帧
	Frames() []string
	isMessage()
}

type (
	Welcome struct {
		Name string
		ID   int
	}
	Waiting struct {
		Connected int
		Needed    int
	}
	GameStart     struct{}
	Deal          struct{ Cards [2]deck.Card }
	YourTurn      struct{}
	RequestAction struct{}
	CardDealt     struct{ Card deck.Card }
	Busted        struct{}
	Result        struct {
		Outcome     Outcome
		PlayerTotal int
		DealerTotal int
	}
	// Broadcast 以两帧发送：先是只有标签的一帧，随后是文本帧
	Broadcast struct{ Text string }
	Error     struct{ Reason string }
	Goodbye   struct{}
)

func (Welcome) Tag() Tag       { return TagWelcome }
func (Waiting) Tag() Tag       { return TagWaiting }
func (GameStart) Tag() Tag     { return TagGameStart }
func (Deal) Tag() Tag          { return TagDeal }
func (YourTurn) Tag() Tag      { return TagYourTurn }
func (RequestAction) Tag() Tag { return TagRequestAction }
func (CardDealt) Tag() Tag     { return TagCard }
func (Busted) Tag() Tag        { return TagBusted }
func (Result) Tag() Tag        { return TagResult }
func (Broadcast) Tag() Tag     { return TagBroadcast }
func (Error) Tag() Tag         { return TagError }
func (Goodbye) Tag() Tag       { return TagGoodbye }

func (m Welcome) Frames() []string {
	return []string{fmt.Sprintf("%s %s %d", TagWelcome, m.Name, m.ID)}
}
func (m Waiting) Frames() []string {
	return []string{fmt.Sprintf("%s %d/%d", TagWaiting, m.Connected, m.Needed)}
}
func (GameStart) Frames() []string { return []string{string(TagGameStart)} }
func (m Deal) Frames() []string {
	return []string{fmt.Sprintf("%s %s %s", TagDeal, m.Cards[0], m.Cards[1])}
}
func (YourTurn) Frames() []string      { return []string{string(TagYourTurn)} }
func (RequestAction) Frames() []string { return []string{string(TagRequestAction)} }
func (m CardDealt) Frames() []string   { return []string{fmt.Sprintf("%s %s", TagCard, m.Card)} }
func (Busted) Frames() []string        { return []string{string(TagBusted)} }
func (m Result) Frames() []string {
	return []string{fmt.Sprintf("%s %s %d %d", TagResult, m.Outcome, m.PlayerTotal, m.DealerTotal)}
}
func (m Broadcast) Frames() []string { return []string{string(TagBroadcast), clip(m.Text)} }
func (m Error) Frames() []string     { return []string{fmt.Sprintf("%s %s", TagError, m.Reason)} }
func (Goodbye) Frames() []string     { return []string{string(TagGoodbye)} }

func (Welcome) isMessage()       {}
func (Waiting) isMessage()       {}
func (GameStart) isMessage()     {}
func (Deal) isMessage()          {}
func (YourTurn) isMessage()      {}
func (RequestAction) isMessage() {}
func (CardDealt) isMessage()     {}
func (Busted) isMessage()        {}
func (Result) isMessage()        {}
func (Broadcast) isMessage()     {}
func (Error) isMessage()         {}
func (Goodbye) isMessage()       {}

// clip 截断到单帧上限，保证 UTF-8 边界完整
func clip(s string) string {
	if len(s) <= MaxPayload {
		return s
	}
	s = s[:MaxPayload]
	for len(s) > 0 && !utf8.ValidString(s) {
		s = s[:len(s)-1]
	}
	return s
}

// ParseMessage 解析一帧服务端消息；next 用于读取 BROADCAST 的后续文本帧
func ParseMessage(frame string, next func() (string, error)) (Message, error) {
	tag, rest, _ := strings.Cut(frame, " ")
	args := strings.Fields(rest)
	bad := func() (Message, error) {
		return nil, fmt.Errorf("%w: %q", ErrMalformed, frame)
	}
	switch Tag(tag) {
	case TagWelcome:
		if len(args) < 2 {
			return bad()
		}
		id, err := strconv.Atoi(args[len(args)-1])
		if err != nil {
			return bad()
		}
		name := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(rest), args[len(args)-1]))
		return Welcome{Name: name, ID: id}, nil
	case TagWaiting:
		if len(args) != 1 {
			return bad()
		}
		a, b, ok := strings.Cut(args[0], "/")
		connected, err1 := strconv.Atoi(a)
		needed, err2 := strconv.Atoi(b)
		if !ok || err1 != nil || err2 != nil {
			return bad()
		}
		return Waiting{Connected: connected, Needed: needed}, nil
	case TagGameStart:
		return GameStart{}, nil
	case TagDeal:
		if len(args) != 2 {
			return bad()
		}
		c1, err1 := deck.ParseCard(args[0])
		c2, err2 := deck.ParseCard(args[1])
		if err1 != nil || err2 != nil {
			return bad()
		}
		return Deal{Cards: [2]deck.Card{c1, c2}}, nil
	case TagYourTurn:
		return YourTurn{}, nil
	case TagRequestAction:
		return RequestAction{}, nil
	case TagCard:
		if len(args) != 1 {
			return bad()
		}
		c, err := deck.ParseCard(args[0])
		if err != nil {
			return bad()
		}
		return CardDealt{Card: c}, nil
	case TagBusted:
		return Busted{}, nil
	case TagResult:
		if len(args) != 3 {
			return bad()
		}
		pt, err1 := strconv.Atoi(args[1])
		dt, err2 := strconv.Atoi(args[2])
		out := Outcome(args[0])
		if err1 != nil || err2 != nil || (out != Win && out != Lose && out != Push) {
			return bad()
		}
		return Result{Outcome: out, PlayerTotal: pt, DealerTotal: dt}, nil
	case TagBroadcast:
		if next == nil {
			return bad()
		}
		text, err := next()
		if err != nil {
			return nil, fmt.Errorf("read broadcast text: %w", err)
		}
		return Broadcast{Text: text}, nil
	case TagError:
		return Error{Reason: strings.TrimSpace(rest)}, nil
	case TagGoodbye:
		return Goodbye{}, nil
	}
	return bad()
}

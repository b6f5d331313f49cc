package deck

import "fmt"

// Card 牌的编号 0..51：花色 = id/13，点数 = id%13（0 = A … 12 = K）
type Card uint8

const (
	// Size 一副牌的张数
	Size = 52
	// RanksPerSuit 每个花色的点数个数
	RanksPerSuit = 13
)

const suitLetters = "SHDC" // 黑桃 红心 方块 梅花

var rankTokens = [RanksPerSuit]string{"A", "2", "3", "4", "5", "6", "7", "8", "9", "10", "J", "Q", "K"}

// NewCard 由花色与点数构造一张牌
func NewCard(suit, rank int) Card {
	return Card(suit*RanksPerSuit + rank)
}

func (c Card) Suit() int { return int(c) / RanksPerSuit }
func (c Card) Rank() int { return int(c) % RanksPerSuit }

// Valid 是否为合法编号
func (c Card) Valid() bool { return int(c) < Size }

// IsAce 是否为 A
func (c Card) IsAce() bool { return c.Rank() == 0 }

// Pips 点数价值：A 记 11，J/Q/K 记 10
func (c Card) Pips() int {
	r := c.Rank()
	switch {
	case r == 0:
		return 11
	case r >= 9:
		return 10
	default:
		return r + 1
	}
}

// String 文本形式：花色字母 + 点数，如 "SA"、"H10"
func (c Card) String() string {
	if !c.Valid() {
		return "??"
	}
	return string(suitLetters[c.Suit()]) + rankTokens[c.Rank()]
}

// ParseCard 解析文本形式的牌，与 String 互逆
func ParseCard(s string) (Card, error) {
	if len(s) < 2 {
		return 0, fmt.Errorf("parse card %q: too short", s)
	}
	suit := -1
	for i := 0; i < len(suitLetters); i++ {
		if s[0] == suitLetters[i] {
			suit = i
			break
		}
	}
	if suit < 0 {
		return 0, fmt.Errorf("parse card %q: unknown suit", s)
	}
	tok := s[1:]
	for r, t := range rankTokens {
		if t == tok {
			return NewCard(suit, r), nil
		}
	}
	return 0, fmt.Errorf("parse card %q: unknown rank", s)
}

// MustParse 解析失败即 panic，仅用于常量表与测试
func MustParse(s string) Card {
	c, err := ParseCard(s)
	if err != nil {
		panic(err)
	}
	return c
}

// FormatCards 以空格连接多张牌
func FormatCards(cards []Card) string {
	b := make([]byte, 0, len(cards)*4)
	for i, c := range cards {
		if i > 0 {
			b = append(b, ' ')
		}
		b = append(b, c.String()...)
	}
	return string(b)
}

package deck

// Blackjack 最大不爆牌点数
const Blackjack = 21

// HandValue 计算手牌点数：A 先记 11，总点数超过 21 时逐张把 A 降为 1
func HandValue(cards []Card) int {
	total, _ := value(cards)
	return total
}

// IsSoft 是否仍有一张 A 按 11 计（软牌）
func IsSoft(cards []Card) bool {
	_, soft := value(cards)
	return soft
}

// IsBust 是否爆牌
func IsBust(cards []Card) bool { return HandValue(cards) > Blackjack }

func value(cards []Card) (int, bool) {
	total, aces := 0, 0
	for _, c := range cards {
		if c.IsAce() {
			aces++
		}
		total += c.Pips()
	}
	for total > Blackjack && aces > 0 {
		total -= 10
		aces--
	}
	return total, aces > 0
}

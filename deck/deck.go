package deck

import (
	"errors"
	"math/rand/v2"
	"time"
)

// ErrExhausted 牌已发完（调用方应在发牌前检查并重洗）
var ErrExhausted = errors.New("deck exhausted")

// Deck 一副 52 张的牌与发牌游标；游标之前的牌视为已发出
// 仅由牌局协调者单线程使用，不加锁
type Deck struct {
	cards  [Size]Card
	cursor int
	rng    *rand.Rand
}

// New 创建并洗好一副牌；rng 为 nil 时以当前时间作种子
func New(rng *rand.Rand) *Deck {
	if rng == nil {
		seed := uint64(time.Now().UnixNano())
		rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	}
	d := &Deck{rng: rng}
	d.Reshuffle()
	return d
}

// Stacked 构造一副“码好”的牌：prefix 依次在最前，其余牌按标准顺序跟随
// 结果仍是 52 张的排列，重复的 prefix 会被忽略；用于复盘与测试
func Stacked(prefix ...Card) *Deck {
	seed := uint64(time.Now().UnixNano())
	d := &Deck{rng: rand.New(rand.NewPCG(seed, seed>>1))}
	var used [Size]bool
	n := 0
	for _, c := range prefix {
		if !c.Valid() || used[c] {
			continue
		}
		used[c] = true
		d.cards[n] = c
		n++
	}
	for i := 0; i < Size; i++ {
		if !used[i] {
			d.cards[n] = Card(i)
			n++
		}
	}
	return d
}

// Initialize 按标准顺序填满 52 张并将游标归零
func (d *Deck) Initialize() {
	for i := range d.cards {
		d.cards[i] = Card(i)
	}
	d.cursor = 0
}

// Shuffle Fisher–Yates：从最后一位到第 1 位，每步与 [0,i] 内均匀选出的位置交换
func (d *Deck) Shuffle() { d.shuffleFrom(0) }

// shuffleFrom 只打乱 [lo, Size) 区间
func (d *Deck) shuffleFrom(lo int) {
	for i := Size - 1; i > lo; i-- {
		j := lo + d.rng.IntN(i-lo+1)
		d.cards[i], d.cards[j] = d.cards[j], d.cards[i]
	}
}

// Reshuffle 重新生成并洗牌
func (d *Deck) Reshuffle() {
	d.Initialize()
	d.Shuffle()
}

// Recycle 把 inPlay 之外的牌重新洗成牌堆；inPlay 中的牌记为已发出，不会再被发到
func (d *Deck) Recycle(inPlay []Card) {
	var held [Size]bool
	n := 0
	for _, c := range inPlay {
		if !c.Valid() || held[c] {
			continue
		}
		held[c] = true
		d.cards[n] = c
		n++
	}
	d.cursor = n
	for i := 0; i < Size; i++ {
		if !held[i] {
			d.cards[n] = Card(i)
			n++
		}
	}
	d.shuffleFrom(d.cursor)
}

// Deal 发出游标处的牌并前移游标
func (d *Deck) Deal() (Card, error) {
	if d.cursor >= Size {
		return 0, ErrExhausted
	}
	c := d.cards[d.cursor]
	d.cursor++
	return c, nil
}

// Remaining 剩余未发的张数
func (d *Deck) Remaining() int { return Size - d.cursor }

// Cursor 下一张待发牌的位置
func (d *Deck) Cursor() int { return d.cursor }

// Cards 返回当前顺序的副本
func (d *Deck) Cards() []Card {
	out := make([]Card, Size)
	copy(out, d.cards[:])
	return out
}

package server

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"blackjack/deck"
	"blackjack/protocol"
)

// seat 一局中某位玩家的手牌与状态，只由协调者协程读写
type seat struct {
	session  *Session
	hand     []deck.Card
	busted   bool
	stood    bool
	timedOut bool
	left     bool
}

// round 一局的上下文
type round struct {
	id       string
	table    *Table
	settings Settings
	seats    []*seat
	dealer   []deck.Card
	log      *zap.SugaredLogger

	reshuffled bool
	startedAt  time.Time
}

// waitResult 一次等待的结束方式
type waitResult int

const (
	waitAction waitResult = iota
	waitTimeout
	waitGone
	waitCancelled
)

// PlayRound 完整打一局：检查牌堆 → 发牌 → 逐个玩家回合 → 庄家补牌 → 结算
// 当前没有在线玩家时返回 false
func (t *Table) PlayRound(ctx context.Context) (RoundSummary, bool) {
	r := &round{
		id:        uuid.NewString(),
		table:     t,
		settings:  t.Settings(),
		startedAt: time.Now(),
	}
	r.log = Log.With("round", r.id)

	r.reshuffled = t.reshuffleIfLow(r.settings.ReshuffleThreshold)
	if !r.deal() {
		return RoundSummary{}, false
	}
	r.log.Infow("round started", "players", len(r.seats), "remaining", t.deck.Remaining())

	for _, st := range r.seats {
		r.playTurn(ctx, st)
	}
	dealerTotal := r.playDealer()
	summary := r.settle(dealerTotal)

	t.metrics.AddRound(time.Since(r.startedAt).Nanoseconds())
	t.history.Add(summary)
	r.log.Infow("round finished", "dealer", deck.FormatCards(r.dealer), "dealer_total", dealerTotal)
	return summary, true
}

// deal 为每位已入局的在线玩家重置本局状态并各发两张，庄家两张
func (r *round) deal() bool {
	t := r.table
	for _, s := range t.reg.Seated() {
		s.resetAction()
		r.seats = append(r.seats, &seat{session: s, hand: make([]deck.Card, 0, 12)})
	}
	if len(r.seats) == 0 {
		return false
	}
	// 逐张追加，draw 回收牌堆时能看到已发出的每一张
	for _, st := range r.seats {
		st.hand = append(st.hand, r.draw())
		st.hand = append(st.hand, r.draw())
	}
	r.dealer = append(r.dealer, r.draw())
	r.dealer = append(r.dealer, r.draw())

	for _, st := range r.seats {
		st.session.Send(protocol.GameStart{})
		st.session.Send(protocol.Deal{Cards: [2]deck.Card{st.hand[0], st.hand[1]}})
	}
	return true
}

// playTurn 一位玩家的回合：可以连续要牌，直到停牌、爆牌、超时或断线
func (r *round) playTurn(ctx context.Context, st *seat) {
	t := r.table
	s := st.session
	for {
		if !s.Alive() {
			st.left = true
			return
		}
		s.Send(protocol.YourTurn{})
		s.Send(protocol.RequestAction{})

		action, res := t.awaitAction(ctx, s, r.settings.ActionTimeout)
		switch res {
		case waitGone:
			// 断线按停牌处理，不再向其发送任何消息
			st.left = true
			r.log.Infow("player left during turn", "slot", s.ID, "name", s.Name)
			return
		case waitTimeout:
			st.timedOut = true
			t.metrics.Timeouts.Add(1)
			r.log.Infow("action timed out, standing", "slot", s.ID, "name", s.Name)
		}

		if action == protocol.ActionHit {
			c := r.draw()
			st.hand = append(st.hand, c)
			t.metrics.Hits.Add(1)
			s.Send(protocol.CardDealt{Card: c})
			if deck.IsBust(st.hand) {
				st.busted = true
				t.metrics.Busts.Add(1)
				s.Send(protocol.Busted{})
				return
			}
			continue
		}
		st.stood = true
		t.metrics.Stands.Add(1)
		return
	}
}

// awaitAction 等待玩家动作，截止时间为 now+timeout；超时、断线、取消都视为停牌
func (t *Table) awaitAction(ctx context.Context, s *Session, timeout time.Duration) (protocol.Action, waitResult) {
	deadline := time.Now().Add(timeout)
	s.arm()
	defer s.disarm()

	timer := time.NewTimer(time.Until(deadline))
	defer timer.Stop()

	for {
		select {
		case a := <-s.Actions():
			if !s.Alive() {
				return protocol.ActionStand, waitGone
			}
			if a == protocol.ActionNone {
				continue
			}
			return a, waitAction
		case <-s.Gone():
			return protocol.ActionStand, waitGone
		case <-timer.C:
			return protocol.ActionStand, waitTimeout
		case <-ctx.Done():
			return protocol.ActionStand, waitCancelled
		}
	}
}

// draw 发一张牌；局中牌耗尽（极长手牌）时只回收不在任何手牌中的牌，本局不会出现重复的牌
func (r *round) draw() deck.Card {
	t := r.table
	c, err := t.deck.Deal()
	if errors.Is(err, deck.ErrExhausted) {
		inPlay := r.inPlay()
		r.log.Warnw("deck exhausted mid-round, recycling unseen cards", "in_play", len(inPlay))
		t.metrics.EmergencyDeals.Add(1)
		t.deck.Recycle(inPlay)
		c, _ = t.deck.Deal()
	}
	return c
}

// inPlay 本局已发出、仍在桌面上的牌
func (r *round) inPlay() []deck.Card {
	out := append([]deck.Card(nil), r.dealer...)
	for _, st := range r.seats {
		out = append(out, st.hand...)
	}
	return out
}

// playDealer 亮出底牌，点数小于 17 时持续补牌；返回庄家最终点数
func (r *round) playDealer() int {
	r.broadcast("Dealer shows " + deck.FormatCards(r.dealer))
	total := deck.HandValue(r.dealer)
	for total < DealerStandsOn {
		c := r.draw()
		r.dealer = append(r.dealer, c)
		r.broadcast("Dealer hits " + c.String())
		total = deck.HandValue(r.dealer)
	}
	return total
}

// broadcast 向本局仍在线的玩家发送一条 BROADCAST；某个玩家发送失败不影响其他人
func (r *round) broadcast(text string) {
	msg := protocol.Broadcast{Text: text}
	for _, st := range r.seats {
		if st.session.Alive() {
			st.session.Send(msg)
		}
	}
}

// Settle 结算规则：玩家爆牌输；庄家爆牌玩家赢；否则比点数，相同为平局
func Settle(playerTotal int, busted bool, dealerTotal int) protocol.Outcome {
	switch {
	case busted:
		return protocol.Lose
	case dealerTotal > deck.Blackjack:
		return protocol.Win
	case playerTotal > dealerTotal:
		return protocol.Win
	case playerTotal < dealerTotal:
		return protocol.Lose
	default:
		return protocol.Push
	}
}

// settle 向仍在线的玩家发送结果并生成本局记录
func (r *round) settle(dealerTotal int) RoundSummary {
	t := r.table
	summary := RoundSummary{
		ID:          r.id,
		StartedAt:   r.startedAt,
		Reshuffled:  r.reshuffled,
		Dealer:      cardStrings(r.dealer),
		DealerTotal: dealerTotal,
		Players:     make([]PlayerSummary, 0, len(r.seats)),
	}
	for _, st := range r.seats {
		s := st.session
		total := deck.HandValue(st.hand)
		ps := PlayerSummary{
			Slot:     s.ID,
			Name:     s.Name,
			Hand:     cardStrings(st.hand),
			Total:    total,
			Soft:     deck.IsSoft(st.hand),
			Busted:   st.busted,
			TimedOut: st.timedOut,
			Left:     st.left || !s.Alive(),
		}
		if !ps.Left {
			ps.Outcome = Settle(total, st.busted, dealerTotal)
			switch ps.Outcome {
			case protocol.Win:
				t.metrics.Wins.Add(1)
			case protocol.Lose:
				t.metrics.Losses.Add(1)
			case protocol.Push:
				t.metrics.Pushes.Add(1)
			}
			s.Send(protocol.Result{Outcome: ps.Outcome, PlayerTotal: total, DealerTotal: dealerTotal})
		}
		summary.Players = append(summary.Players, ps)
	}
	summary.ElapsedMs = time.Since(r.startedAt).Milliseconds()
	return summary
}

func cardStrings(cards []deck.Card) []string {
	out := make([]string, len(cards))
	for i, c := range cards {
		out[i] = c.String()
	}
	return out
}

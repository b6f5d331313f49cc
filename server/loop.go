package server

import (
	"context"
	"time"
)

// Run 牌局主循环（单协程推进）：等人 → 打一局 → 短暂停顿，直到 ctx 取消
func (t *Table) Run(ctx context.Context) error {
	Log.Info("table loop started")
	defer Log.Info("table loop stopped")
	for {
		if !t.waitForPlayers(ctx) {
			return nil
		}
		// 核心循环：发牌 → 玩家回合 → 庄家 → 结算
		t.PlayRound(ctx)
		if !sleepCtx(ctx, t.Settings().RoundPause) {
			return nil
		}
	}
}

// waitForPlayers 定期检查在线人数，凑够 MinPlayers 返回 true；ctx 取消返回 false
func (t *Table) waitForPlayers(ctx context.Context) bool {
	for {
		st := t.Settings()
		if ctx.Err() != nil {
			return false
		}
		if t.reg.Connected() >= st.MinPlayers {
			return true
		}
		if !sleepCtx(ctx, st.WaitPoll) {
			return false
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

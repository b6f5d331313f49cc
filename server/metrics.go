package server

import (
	"sync/atomic"
)

// Metrics 记录牌桌运行期的关键指标（用于监控与调试）
type Metrics struct {
	Joins          atomic.Int64 // 成功入座
	JoinsRejected  atomic.Int64 // 握手失败或满员被拒
	Disconnects    atomic.Int64 // 断线/退出
	Rounds         atomic.Int64 // 完成的局数
	Reshuffles     atomic.Int64 // 开局前按阈值重洗
	EmergencyDeals atomic.Int64 // 局中牌耗尽被迫重洗
	Hits           atomic.Int64
	Stands         atomic.Int64
	Timeouts       atomic.Int64 // 超时按停牌处理
	Busts          atomic.Int64
	Wins           atomic.Int64
	Losses         atomic.Int64
	Pushes         atomic.Int64
	ChatRelayed    atomic.Int64
	ChatThrottled  atomic.Int64
	UnknownCmds    atomic.Int64
	BadFrames      atomic.Int64 // 超长/截断帧
	SlowPeers      atomic.Int64 // 发送队列满被断开
	TotalRoundNs   atomic.Int64 // 局累计耗时（纳秒）
}

// AddRound 记录一局完成及耗时
func (m *Metrics) AddRound(ns int64) {
	m.Rounds.Add(1)
	m.TotalRoundNs.Add(ns)
}

// Snapshot 返回只读副本，便于 HTTP 输出
func (m *Metrics) Snapshot() map[string]any {
	rounds := m.Rounds.Load()
	total := m.TotalRoundNs.Load()
	var avgMs float64
	if rounds > 0 {
		avgMs = float64(total) / float64(rounds) / 1e6
	}
	return map[string]any{
		"joins":           m.Joins.Load(),
		"joins_rejected":  m.JoinsRejected.Load(),
		"disconnects":     m.Disconnects.Load(),
		"rounds":          rounds,
		"reshuffles":      m.Reshuffles.Load(),
		"emergency_deals": m.EmergencyDeals.Load(),
		"hits":            m.Hits.Load(),
		"stands":          m.Stands.Load(),
		"timeouts":        m.Timeouts.Load(),
		"busts":           m.Busts.Load(),
		"wins":            m.Wins.Load(),
		"losses":          m.Losses.Load(),
		"pushes":          m.Pushes.Load(),
		"chat_relayed":    m.ChatRelayed.Load(),
		"chat_throttled":  m.ChatThrottled.Load(),
		"unknown_cmds":    m.UnknownCmds.Load(),
		"bad_frames":      m.BadFrames.Load(),
		"slow_peers":      m.SlowPeers.Load(),
		"avg_round_ms":    avgMs,
	}
}

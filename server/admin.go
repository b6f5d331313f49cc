package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"
)

// Handler 管理与监控接口，以及 WebSocket 接入
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.HandleWS)
	mux.HandleFunc("/admin/config", s.HandleAdminConfig)
	mux.HandleFunc("/admin/table", s.HandleTable)
	mux.HandleFunc("/metrics", s.HandleMetrics)
	mux.HandleFunc("/rounds", s.HandleRounds)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

// settingsBody 可热更新的规则（POST 只需给出要改的字段）
type settingsBody struct {
	ActionTimeout      *Duration `json:"action_timeout,omitempty"`
	RoundPause         *Duration `json:"round_pause,omitempty"`
	ReshuffleThreshold *int      `json:"reshuffle_threshold,omitempty"`
	MinPlayers         *int      `json:"min_players,omitempty"`
}

func bodyOf(st Settings) settingsBody {
	at, rp := Duration(st.ActionTimeout), Duration(st.RoundPause)
	th, mp := st.ReshuffleThreshold, st.MinPlayers
	return settingsBody{ActionTimeout: &at, RoundPause: &rp, ReshuffleThreshold: &th, MinPlayers: &mp}
}

// HandleAdminConfig 提供牌桌规则的读取与更新
// GET /admin/config  返回当前规则
// POST /admin/config 以 JSON 载荷更新部分字段
func (s *Server) HandleAdminConfig(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, bodyOf(s.table.Settings()))
	case http.MethodPost:
		var body settingsBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		next, err := s.table.UpdateSettings(func(st *Settings) {
			if body.ActionTimeout != nil {
				st.ActionTimeout = time.Duration(*body.ActionTimeout)
			}
			if body.RoundPause != nil {
				st.RoundPause = time.Duration(*body.RoundPause)
			}
			if body.ReshuffleThreshold != nil {
				st.ReshuffleThreshold = *body.ReshuffleThreshold
			}
			if body.MinPlayers != nil {
				st.MinPlayers = *body.MinPlayers
			}
		})
		if errors.Is(err, ErrInvalidConfig) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		Log.Infof("config updated: action_timeout=%s round_pause=%s reshuffle_threshold=%d min_players=%d",
			next.ActionTimeout, next.RoundPause, next.ReshuffleThreshold, next.MinPlayers)
		writeJSON(w, http.StatusOK, bodyOf(next))
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleTable 输出座位快照
// GET /admin/table
func (s *Server) HandleTable(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"connected": s.reg.Connected(),
		"slots":     s.reg.Snapshot(),
	})
}

// HandleMetrics 输出运行指标
// GET /metrics
func (s *Server) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"connected": s.reg.Connected(),
		"metrics":   s.metrics.Snapshot(),
	})
}

// HandleRounds 输出最近的牌局记录（由新到旧）
// GET /rounds
func (s *Server) HandleRounds(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.table.History().Recent())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

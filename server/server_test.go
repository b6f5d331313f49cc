package server

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blackjack/deck"
	"blackjack/protocol"
)

func TestTwoPlayersStandAgainstSeventeen(t *testing.T) {
	d := deck.Stacked(cards("SA", "S9", "S10", "H10", "S7", "D10")...)
	h := startServer(t, testConfig(), d)
	alice := h.join("alice")
	bob := h.join("bob")
	assert.Equal(t, 1, alice.ID)
	assert.Equal(t, 2, bob.ID)

	done := h.playRound()

	expect(t, alice, protocol.GameStart{}, deal("SA", "S9"), protocol.YourTurn{}, protocol.RequestAction{})
	require.NoError(t, alice.Stand())
	expect(t, bob, protocol.GameStart{}, deal("S10", "H10"), protocol.YourTurn{}, protocol.RequestAction{})
	require.NoError(t, bob.Stand())

	for _, c := range []*protocol.Client{alice, bob} {
		expect(t, c,
			protocol.Broadcast{Text: "Dealer shows S7 D10"},
			protocol.Result{Outcome: protocol.Win, PlayerTotal: 20, DealerTotal: 17},
		)
	}

	summary := waitSummary(t, done)
	assert.NotEmpty(t, summary.ID)
	assert.Equal(t, []string{"S7", "D10"}, summary.Dealer)
	assert.Equal(t, 17, summary.DealerTotal)
	require.Len(t, summary.Players, 2)
	assert.Equal(t, PlayerSummary{Slot: 1, Name: "alice", Hand: []string{"SA", "S9"}, Total: 20, Soft: true, Outcome: protocol.Win}, summary.Players[0])
	assert.Equal(t, PlayerSummary{Slot: 2, Name: "bob", Hand: []string{"S10", "H10"}, Total: 20, Outcome: protocol.Win}, summary.Players[1])

	assert.EqualValues(t, 2, h.srv.metrics.Wins.Load())
	assert.EqualValues(t, 2, h.srv.metrics.Stands.Load())
	require.Len(t, h.srv.table.History().Recent(), 1)
}

func TestHitAndBust(t *testing.T) {
	d := deck.Stacked(cards("S10", "H9", "D7", "C10", "S5")...)
	h := startServer(t, testConfig(), d)
	alice := h.join("alice")

	done := h.playRound()
	expect(t, alice, protocol.GameStart{}, deal("S10", "H9"), protocol.YourTurn{}, protocol.RequestAction{})
	require.NoError(t, alice.Hit())
	expect(t, alice,
		protocol.CardDealt{Card: deck.MustParse("S5")},
		protocol.Busted{},
		protocol.Broadcast{Text: "Dealer shows D7 C10"},
		protocol.Result{Outcome: protocol.Lose, PlayerTotal: 24, DealerTotal: 17},
	)

	summary := waitSummary(t, done)
	require.Len(t, summary.Players, 1)
	assert.True(t, summary.Players[0].Busted)
	assert.EqualValues(t, 1, h.srv.metrics.Busts.Load())
	assert.EqualValues(t, 1, h.srv.metrics.Hits.Load())
}

func TestHitThenStandAndDealerDraws(t *testing.T) {
	d := deck.Stacked(cards("S2", "H3", "D10", "C6", "S9", "HK")...)
	h := startServer(t, testConfig(), d)
	alice := h.join("alice")

	done := h.playRound()
	expect(t, alice, protocol.GameStart{}, deal("S2", "H3"), protocol.YourTurn{}, protocol.RequestAction{})
	require.NoError(t, alice.Hit())
	expect(t, alice, protocol.CardDealt{Card: deck.MustParse("S9")}, protocol.YourTurn{}, protocol.RequestAction{})
	require.NoError(t, alice.Stand())
	expect(t, alice,
		protocol.Broadcast{Text: "Dealer shows D10 C6"},
		protocol.Broadcast{Text: "Dealer hits HK"},
		protocol.Result{Outcome: protocol.Win, PlayerTotal: 14, DealerTotal: 26},
	)
	summary := waitSummary(t, done)
	assert.Equal(t, []string{"D10", "C6", "HK"}, summary.Dealer)
}

func TestActionTimeoutStands(t *testing.T) {
	cfg := testConfig()
	cfg.ActionTimeout = Duration(200 * time.Millisecond)
	d := deck.Stacked(cards("S10", "H8", "D10", "C9")...)
	h := startServer(t, cfg, d)
	alice := h.join("alice")

	done := h.playRound()
	expect(t, alice, protocol.GameStart{}, deal("S10", "H8"), protocol.YourTurn{}, protocol.RequestAction{})
	prompted := time.Now()
	expect(t, alice, protocol.Broadcast{Text: "Dealer shows D10 C9"})
	assert.GreaterOrEqual(t, time.Since(prompted), 150*time.Millisecond)
	expect(t, alice, protocol.Result{Outcome: protocol.Lose, PlayerTotal: 18, DealerTotal: 19})

	summary := waitSummary(t, done)
	assert.True(t, summary.Players[0].TimedOut)
	assert.EqualValues(t, 1, h.srv.metrics.Timeouts.Load())
}

func TestDisconnectDuringTurnSkipsPlayer(t *testing.T) {
	cfg := testConfig()
	cfg.ActionTimeout = Duration(10 * time.Second)
	d := deck.Stacked(cards("SA", "S9", "S10", "H10", "S7", "D10")...)
	h := startServer(t, cfg, d)
	alice := h.join("alice")
	bob := h.join("bob")

	done := h.playRound()
	expect(t, alice, protocol.GameStart{}, deal("SA", "S9"), protocol.YourTurn{}, protocol.RequestAction{})
	expect(t, bob, protocol.GameStart{}, deal("S10", "H10"))

	start := time.Now()
	require.NoError(t, alice.Close())
	expect(t, bob, protocol.YourTurn{}, protocol.RequestAction{})
	assert.Less(t, time.Since(start), 2*time.Second)

	require.NoError(t, bob.Stand())
	expect(t, bob,
		protocol.Broadcast{Text: "Dealer shows S7 D10"},
		protocol.Result{Outcome: protocol.Win, PlayerTotal: 20, DealerTotal: 17},
	)

	summary := waitSummary(t, done)
	require.Len(t, summary.Players, 2)
	assert.True(t, summary.Players[0].Left)
	assert.Empty(t, summary.Players[0].Outcome)
	assert.Equal(t, protocol.Win, summary.Players[1].Outcome)
	assert.Equal(t, 1, h.srv.reg.Connected())
}

func TestJoinRequiredFirst(t *testing.T) {
	h := startServer(t, testConfig(), nil)
	c := h.dial()
	require.NoError(t, c.Chat("hello?"))
	expect(t, c, protocol.Error{Reason: "Expected JOIN"})

	_, err := c.Next()
	assert.ErrorIs(t, err, io.EOF)
	assert.EqualValues(t, 1, h.srv.metrics.JoinsRejected.Load())
	assert.Zero(t, h.srv.reg.Connected())
}

func TestServerFull(t *testing.T) {
	cfg := testConfig()
	cfg.MaxPlayers = 1
	h := startServer(t, cfg, nil)
	h.join("alice")

	c := h.dial()
	require.NoError(t, c.SetReadTimeout(2*time.Second))
	_, err := c.Join("bob")
	var rejected *protocol.RejectedError
	require.True(t, errors.As(err, &rejected), "got %v", err)
	assert.Equal(t, "Server full", rejected.Reason)

	_, err = c.Next()
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, 1, h.srv.reg.Connected())
}

func TestSlotReusedAfterLeave(t *testing.T) {
	cfg := testConfig()
	cfg.MaxPlayers = 1
	h := startServer(t, cfg, nil)
	alice := h.join("alice")
	require.NoError(t, alice.Quit())
	expect(t, alice, protocol.Goodbye{})
	require.Eventually(t, func() bool { return h.srv.reg.Connected() == 0 }, 2*time.Second, 5*time.Millisecond)

	bob := h.join("bob")
	assert.Equal(t, 1, bob.ID)
}

func TestJoinWithoutNameGetsDefault(t *testing.T) {
	h := startServer(t, testConfig(), nil)
	c := h.join("")
	assert.Equal(t, "player1", c.Name)
}

func TestWaitingForMorePlayers(t *testing.T) {
	cfg := testConfig()
	cfg.MinPlayers = 2
	h := startServer(t, cfg, nil)
	alice := h.join("alice")
	expect(t, alice, protocol.Waiting{Connected: 1, Needed: 2})
}

func TestServerRunsRounds(t *testing.T) {
	h := startServer(t, testConfig(), nil)
	alice := h.join("alice")

	stopped := make(chan error, 1)
	go func() { stopped <- h.srv.Table().Run(h.ctx) }()

	for round := 0; round < 2; round++ {
		expect(t, alice, protocol.GameStart{})
		for {
			require.NoError(t, alice.SetReadTimeout(3*time.Second))
			msg, err := alice.Next()
			require.NoError(t, err)
			if _, ok := msg.(protocol.RequestAction); ok {
				require.NoError(t, alice.Stand())
			}
			if _, ok := msg.(protocol.Result); ok {
				break
			}
		}
	}

	h.cancel()
	select {
	case err := <-stopped:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("table loop did not stop")
	}
	assert.GreaterOrEqual(t, h.srv.metrics.Rounds.Load(), int64(2))
}

func TestShutdownSaysGoodbye(t *testing.T) {
	h := startServer(t, testConfig(), nil)
	alice := h.join("alice")

	h.cancel()
	expect(t, alice, protocol.Goodbye{})
	_, err := alice.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func (s *Server) pendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

func TestShutdownWithJoinInFlight(t *testing.T) {
	for name, joinTimeout := range map[string]time.Duration{
		"no join deadline":   0,
		"long join deadline": time.Minute,
	} {
		t.Run(name, func(t *testing.T) {
			cfg := testConfig()
			cfg.JoinTimeout = Duration(joinTimeout)
			ln, err := net.Listen("tcp", "127.0.0.1:0")
			require.NoError(t, err)
			srv := New(cfg, nil)
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			served := make(chan error, 1)
			go func() { served <- srv.Serve(ctx, ln) }()

			dialCtx, dialCancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer dialCancel()
			c, err := protocol.Dial(dialCtx, ln.Addr().String())
			require.NoError(t, err)
			defer c.Close()
			require.Eventually(t, func() bool { return srv.pendingCount() == 1 }, 2*time.Second, 5*time.Millisecond)

			cancel()
			// JOIN 在关闭开始之后才到达
			_ = c.Send(protocol.Join{Name: "late"})

			select {
			case err := <-served:
				assert.NoError(t, err)
			case <-time.After(time.Second):
				t.Fatal("Serve did not return after cancel")
			}
			assert.Zero(t, srv.reg.Connected())
			assert.Empty(t, srv.reg.Live())
		})
	}
}

func TestJoinRefusedAfterShutdown(t *testing.T) {
	srv := New(testConfig(), nil)
	srv.Shutdown()

	srvEnd, cliEnd := net.Pipe()
	c := protocol.NewClient(cliEnd)
	defer c.Close()
	done := make(chan struct{})
	go func() {
		defer close(done)
		srv.Admit(newTCPConn(srvEnd, 0))
	}()

	require.NoError(t, c.SetReadTimeout(2*time.Second))
	_, err := c.Next()
	assert.Error(t, err)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Admit blocked after shutdown")
	}
	assert.EqualValues(t, 1, srv.metrics.JoinsRejected.Load())
}

func TestHandshakeRejectsOnceClosed(t *testing.T) {
	srv := New(testConfig(), nil)
	srvEnd, cliEnd := net.Pipe()
	conn := newTCPConn(srvEnd, 0)
	defer conn.Close()
	require.True(t, srv.track(conn))
	srv.mu.Lock()
	srv.closed = true
	srv.mu.Unlock()

	c := protocol.NewClient(cliEnd)
	defer c.Close()
	done := make(chan error, 1)
	go func() {
		_, err := srv.handshake(conn)
		done <- err
	}()

	require.NoError(t, c.SetReadTimeout(2*time.Second))
	_, err := c.Join("late")
	var rejected *protocol.RejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, "Server shutting down", rejected.Reason)
	assert.ErrorIs(t, <-done, ErrServerClosed)
	assert.Empty(t, srv.reg.Live())
}

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"alice", "alice"},
		{"  bob  ", "bob"},
		{"ev\x00il\n", "evil"},
		{"", ""},
		{strings.Repeat("x", 40), strings.Repeat("x", MaxNameLen-1)},
		{strings.Repeat("é", 20), strings.Repeat("é", 15)},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, sanitizeName(tt.in), "sanitizeName(%q)", tt.in)
	}
}

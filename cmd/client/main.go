package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"blackjack/protocol"
)

// 命令行玩家：h/hit 要牌，s/stand 停牌，q/quit 离开，其余输入作为聊天发送
func main() {
	var (
		addr string
		name string
	)
	flag.StringVar(&addr, "addr", "127.0.0.1:12345", "table address")
	flag.StringVar(&name, "name", "", "display name")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	c, err := protocol.Dial(dialCtx, addr)
	cancel()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer c.Close()

	welcome, err := c.Join(name)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Printf("seated as %s (slot %d)\n", welcome.Name, welcome.ID)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			msg, err := c.Next()
			if err != nil {
				if !errors.Is(err, io.EOF) && ctx.Err() == nil {
					fmt.Fprintln(os.Stderr, "connection lost:", err)
				}
				return
			}
			fmt.Println(render(msg))
			if _, ok := msg.(protocol.Goodbye); ok {
				return
			}
		}
	}()

	go func() {
		sc := bufio.NewScanner(os.Stdin)
		for sc.Scan() {
			if err := send(c, strings.TrimSpace(sc.Text())); err != nil {
				fmt.Fprintln(os.Stderr, err)
				return
			}
		}
	}()

	select {
	case <-done:
	case <-ctx.Done():
		_ = c.Quit()
	}
}

func send(c *protocol.Client, line string) error {
	switch strings.ToLower(line) {
	case "":
		return nil
	case "h", "hit":
		return c.Hit()
	case "s", "stand":
		return c.Stand()
	case "q", "quit":
		return c.Quit()
	default:
		return c.Chat(line)
	}
}

func render(msg protocol.Message) string {
	switch m := msg.(type) {
	case protocol.Waiting:
		return fmt.Sprintf("waiting for players (%d/%d)", m.Connected, m.Needed)
	case protocol.GameStart:
		return "--- new round ---"
	case protocol.Deal:
		return fmt.Sprintf("your cards: %s %s", m.Cards[0], m.Cards[1])
	case protocol.YourTurn:
		return "your turn"
	case protocol.RequestAction:
		return "hit or stand? (h/s)"
	case protocol.CardDealt:
		return "you drew " + m.Card.String()
	case protocol.Busted:
		return "busted!"
	case protocol.Result:
		return fmt.Sprintf("%s: you %d, dealer %d", m.Outcome, m.PlayerTotal, m.DealerTotal)
	case protocol.Broadcast:
		return m.Text
	case protocol.Error:
		return "error: " + m.Reason
	case protocol.Goodbye:
		return "goodbye"
	default:
		return string(msg.Tag())
	}
}

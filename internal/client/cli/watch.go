package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	syncclient "github.com/iudanet/tallysync/internal/client/sync"
)

const reconnectDelay = 5 * time.Second

func (c *Cli) runWatch(ctx context.Context) error {
	c.io.Println("=== Watch ===")
	c.io.Printf("Connecting to %s\n", c.serverURL)
	c.io.Println("Press Ctrl+C to stop.")
	c.io.Println()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	for {
		agent := syncclient.NewAgent(logger, wsEndpoint(c.serverURL), c.auth, c.states, nil)

		done := make(chan error, 1)
		go func() { done <- agent.Run(ctx) }()

		c.consumeEvents(agent)

		err := <-done
		switch {
		case errors.Is(err, context.Canceled):
			c.io.Println("Stopped.")
			return nil
		case errors.Is(err, syncclient.ErrNotAuthenticated):
			return fmt.Errorf("not authenticated, run 'tallysync login' first")
		case errors.Is(err, syncclient.ErrCredentialRejected):
			return fmt.Errorf("session rejected, run 'tallysync login' again: %w", err)
		case errors.Is(err, syncclient.ErrConnectionLimit):
			// Переподключение не поможет, пока занято другое устройство
			return err
		}

		c.io.Printf("Connection lost: %v\n", err)
		c.io.Printf("Reconnecting in %s...\n", reconnectDelay)

		select {
		case <-ctx.Done():
			c.io.Println("Stopped.")
			return nil
		case <-time.After(reconnectDelay):
		}
	}
}

// consumeEvents печатает события агента до закрытия канала
func (c *Cli) consumeEvents(agent *syncclient.Agent) {
	for ev := range agent.Events() {
		switch ev.Kind {
		case syncclient.EventSnapshot:
			c.io.Printf("[%s] snapshot received\n", time.Now().Format(time.TimeOnly))
			c.printState(ev.State)
		case syncclient.EventUpdate:
			c.io.Printf("[%s] update from another device\n", time.Now().Format(time.TimeOnly))
			c.printState(ev.State)
		case syncclient.EventAccountChanged:
			c.io.Printf("[%s] account changed\n", time.Now().Format(time.TimeOnly))
			if ev.Account != nil && ev.Account.SubscriptionEnd != 0 {
				end := time.UnixMilli(ev.Account.SubscriptionEnd)
				c.io.Printf("  subscription until %s\n", end.Format(time.RFC3339))
			}
		}
	}
}

// printState печатает состояние с отступами
func (c *Cli) printState(state json.RawMessage) {
	if len(state) == 0 || bytes.Equal(state, []byte("null")) {
		c.io.Println("  (empty state)")
		return
	}

	var buf bytes.Buffer
	if err := json.Indent(&buf, state, "  ", "  "); err != nil {
		c.io.Printf("  %s\n", state)
		return
	}
	c.io.Printf("  %s\n", buf.String())
}

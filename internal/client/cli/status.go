package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iudanet/tallysync/internal/client/storage"
)

func (c *Cli) runStatus(ctx context.Context) error {
	c.io.Println("=== Session Status ===")
	c.io.Println()

	authData, err := c.auth.GetAuth(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrAuthNotFound) {
			c.io.Println("Status: Not authenticated")
			c.io.Println()
			c.io.Println("Run 'tallysync login' to authenticate.")
			return nil
		}
		return fmt.Errorf("failed to check authentication: %w", err)
	}

	expiresAt := time.Unix(authData.ExpiresAt, 0)
	remaining := time.Until(expiresAt)

	c.io.Println("Status: Authenticated")
	c.io.Printf("Account: %s (%s)\n", authData.Email, authData.AccountClass)
	c.io.Printf("Token expires: %s\n", expiresAt.Format(time.RFC3339))

	if remaining > 0 {
		c.io.Printf("Time remaining: %s\n", remaining.Round(time.Second))
	} else {
		c.io.Println("⚠️  Token has expired. Please login again.")
	}

	c.io.Println()

	state, err := c.states.GetState(ctx)
	switch {
	case errors.Is(err, storage.ErrStateNotFound):
		c.io.Println("Local state: never synced")
	case err != nil:
		return fmt.Errorf("failed to read local state: %w", err)
	default:
		c.io.Printf("Local state: %d bytes mirrored\n", len(state))
	}

	return nil
}

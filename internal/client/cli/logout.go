package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/iudanet/tallysync/internal/client/storage"
)

func (c *Cli) runLogout(ctx context.Context) error {
	c.io.Println("=== Logout ===")

	if err := c.auth.DeleteAuth(ctx); err != nil {
		if errors.Is(err, storage.ErrAuthNotFound) {
			c.io.Println("Not logged in.")
			return nil
		}
		return fmt.Errorf("logout failed: %w", err)
	}

	// Локальное зеркало без сессии бесполезно
	if err := c.states.DeleteState(ctx); err != nil {
		return fmt.Errorf("failed to drop local state: %w", err)
	}

	c.io.Println("✓ Logout successful!")
	c.io.Println("Your local session and state mirror have been deleted.")

	return nil
}

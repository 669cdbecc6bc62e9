package cli

import (
	"context"
	"fmt"

	"github.com/iudanet/tallysync/internal/client/storage"
	"github.com/iudanet/tallysync/pkg/api"
)

func (c *Cli) runRegister(ctx context.Context) error {
	c.io.Println("=== Registration ===")
	c.io.Println()

	email, err := c.io.ReadInput("Email: ")
	if err != nil {
		return fmt.Errorf("failed to read email: %w", err)
	}

	password, err := c.io.ReadPassword("Password (min 6 chars): ")
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}

	confirm, err := c.io.ReadPassword("Confirm password: ")
	if err != nil {
		return fmt.Errorf("failed to read confirmation: %w", err)
	}

	if password != confirm {
		return fmt.Errorf("passwords do not match")
	}

	company, err := c.io.ReadInput("Company name (optional): ")
	if err != nil {
		return fmt.Errorf("failed to read company name: %w", err)
	}

	class, err := c.io.ReadInput("Account class [individual/team] (default individual): ")
	if err != nil {
		return fmt.Errorf("failed to read account class: %w", err)
	}

	c.io.Println()
	c.io.Println("Registering account...")

	resp, err := c.apiClient.Register(ctx, api.RegisterRequest{
		Email:        email,
		Password:     password,
		CompanyName:  company,
		AccountClass: class,
	})
	if err != nil {
		return err
	}

	if err := c.saveSession(ctx, resp); err != nil {
		return err
	}

	c.io.Println()
	c.io.Println("✓ Registration successful!")
	c.io.Printf("Account ID: %s\n", resp.Account.ID)
	c.io.Printf("Account class: %s\n", resp.Account.AccountClass)
	c.io.Println()
	c.io.Println("Run 'tallysync watch' to start syncing.")

	return nil
}

// saveSession сохраняет полученный токен для последующих команд
func (c *Cli) saveSession(ctx context.Context, resp *api.AuthResponse) error {
	authData := &storage.AuthData{
		Email:        resp.Account.Email,
		AccountID:    resp.Account.ID,
		AccountClass: resp.Account.AccountClass,
		Token:        resp.Token,
		ExpiresAt:    resp.ExpiresAt,
	}
	if err := c.auth.SaveAuth(ctx, authData); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

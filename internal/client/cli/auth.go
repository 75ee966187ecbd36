package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/caresync-io/caresync/internal/client/auth"
)

func (c *Cli) runRegister(ctx context.Context) error {
	c.io.Println("=== Register ===")
	c.io.Println()

	username, err := c.io.ReadInput("Username: ")
	if err != nil {
		return fmt.Errorf("failed to read username: %w", err)
	}
	password, err := c.io.ReadPassword("Password: ")
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}

	resp, err := c.authService.Register(ctx, username, password)
	if err != nil {
		return err
	}

	c.io.Println()
	c.io.Println("✓ Account created")
	c.io.Printf("Username: %s\n", resp.Username)
	c.io.Println("Run 'caresync login' to log this device in.")
	return nil
}

func (c *Cli) runLogin(ctx context.Context) error {
	c.io.Println("=== Login ===")
	c.io.Println()

	username, err := c.io.ReadInput("Username: ")
	if err != nil {
		return fmt.Errorf("failed to read username: %w", err)
	}
	password, err := c.io.ReadPassword("Password: ")
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}

	authData, err := c.authService.Login(ctx, username, password)
	if err != nil {
		return err
	}

	c.io.Println()
	c.io.Println("✓ Login successful")
	c.io.Printf("Username: %s\n", authData.Username)
	c.io.Printf("Token expires: %s\n", time.Unix(authData.ExpiresAt, 0).Format(time.RFC3339))
	return nil
}

func (c *Cli) runLogout(ctx context.Context) error {
	if err := c.authService.Logout(ctx); err != nil {
		return err
	}
	c.io.Println("✓ Logged out")
	c.io.Println("Queued operations stay on this device and replay after the next login.")
	return nil
}

func (c *Cli) runStatus(ctx context.Context) error {
	c.io.Println("=== Status ===")
	c.io.Println()

	authData, err := c.authService.Session(ctx)
	switch {
	case errors.Is(err, auth.ErrNotAuthenticated):
		c.io.Println("Session: not authenticated")
	case errors.Is(err, auth.ErrSessionExpired):
		c.io.Printf("Session: expired (user %s), run 'caresync login' again\n", authData.Username)
	case err != nil:
		return err
	default:
		c.io.Printf("Session: %s, token expires %s\n",
			authData.Username, time.Unix(authData.ExpiresAt, 0).Format(time.RFC3339))
	}

	if c.net.Check(ctx) {
		c.io.Println("Server:  reachable")
	} else {
		c.io.Println("Server:  unreachable (working offline)")
	}

	counts, err := c.driver.Counts(ctx)
	if err != nil {
		return fmt.Errorf("failed to read queue counts: %w", err)
	}

	c.io.Println()
	c.io.Printf("Pending operations:    %d\n", counts.PendingOperations)
	c.io.Printf("Unresolved conflicts:  %d\n", counts.UnresolvedConflicts)
	c.io.Printf("Unsynced evidence:     %d\n", counts.UnsyncedEvidence)
	c.io.Printf("Unsynced audit events: %d\n", counts.UnsyncedAuditEvents)
	if counts.LastSyncAt.IsZero() {
		c.io.Println("Last sync:             never")
	} else {
		c.io.Printf("Last sync:             %s\n", counts.LastSyncAt.Format(time.RFC3339))
	}

	if counts.PendingOperations > 0 {
		c.io.Println()
		c.io.Println("Run 'caresync sync' to replay the queue.")
	}
	return nil
}

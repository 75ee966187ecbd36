package cli

import (
	"context"
	"errors"
	"fmt"
)

func (c *Cli) runSync(ctx context.Context) error {
	token, _, err := c.session(ctx)
	if err != nil {
		return err
	}

	c.io.Println("Syncing...")

	result, err := c.driver.Sync(ctx, token)
	if result != nil {
		c.io.Println()
		c.io.Printf("Synced:              %d\n", result.Synced)
		if result.AlreadyApplied > 0 {
			c.io.Printf("Already applied:     %d\n", result.AlreadyApplied)
		}
		c.io.Printf("Conflicts:           %d\n", result.Conflicts)
		c.io.Printf("Transient failures:  %d\n", result.TransientFailures)
		c.io.Printf("Permanent failures:  %d\n", result.PermanentFailures)
		if result.Deferred > 0 {
			c.io.Printf("Deferred (backoff):  %d\n", result.Deferred)
		}
		if result.Recovered > 0 {
			c.io.Printf("Recovered:           %d\n", result.Recovered)
		}
		c.io.Printf("Evidence uploaded:   %d\n", result.EvidenceUploaded)
		c.io.Printf("Audit uploaded:      %d\n", result.AuditUploaded)
	}
	if err != nil {
		return fmt.Errorf("sync pass failed: %w", err)
	}

	if result.Conflicts > 0 {
		c.io.Println()
		c.io.Println("Run 'caresync conflicts' to inspect version conflicts.")
	}
	return nil
}

// runWatch keeps the connectivity watcher running and replays the queue on
// every offline-to-online transition. Blocks until ctx is cancelled.
func (c *Cli) runWatch(ctx context.Context) error {
	if _, _, err := c.session(ctx); err != nil {
		return err
	}

	c.net.SetOnOnline(func() {
		if err := c.runSync(ctx); err != nil {
			c.io.Printf("Sync on reconnect failed: %v\n", err)
		}
	})

	c.io.Println("Watching connectivity; the queue replays on every reconnect. Ctrl+C to stop.")

	// The loop only fires on a transition, so when the server is already
	// reachable drain the queue once up front.
	if c.net.Online() {
		if err := c.runSync(ctx); err != nil {
			c.io.Printf("Sync failed: %v\n", err)
		}
	}

	if err := c.net.Run(ctx); !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (c *Cli) runGC(ctx context.Context) error {
	result, err := c.driver.GC(ctx)
	if err != nil {
		return fmt.Errorf("garbage collection failed: %w", err)
	}

	c.io.Println("✓ Garbage collection completed")
	c.io.Printf("Operations removed:   %d\n", result.Operations)
	c.io.Printf("Evidence removed:     %d\n", result.Evidence)
	c.io.Printf("Audit events removed: %d\n", result.AuditEvents)
	return nil
}

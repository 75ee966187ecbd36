package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/caresync-io/caresync/internal/models"
)

func (c *Cli) runConflicts(ctx context.Context) error {
	unresolved, err := c.conflicts.ListUnresolved(ctx)
	if err != nil {
		return fmt.Errorf("failed to list conflicts: %w", err)
	}

	if len(unresolved) == 0 {
		c.io.Println("No unresolved conflicts.")
		return nil
	}

	for _, rec := range unresolved {
		c.io.Printf("Conflict %s\n", rec.ID)
		c.io.Printf("  Detected:  %s\n", rec.DetectedAt.Format(time.RFC3339))
		c.io.Printf("  Operation: %s\n", rec.OperationID)
		c.io.Printf("  Entity:    %s\n", rec.EntityID)
		c.io.Printf("  Local:     %s\n", rec.LocalValue)
		c.io.Printf("  Server:    %s\n", rec.ServerValue)
		c.io.Println()
	}
	c.io.Printf("%d unresolved conflict(s). Use 'caresync resolve <id> <outcome>'.\n", len(unresolved))
	return nil
}

func (c *Cli) runResolve(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: caresync resolve <conflict-id> <outcome> (local, server, merged)")
	}
	conflictID := args[0]
	outcome := models.ResolutionOutcome(args[1])

	if err := c.conflicts.Resolve(ctx, conflictID, outcome); err != nil {
		return err
	}

	c.io.Printf("✓ Conflict %s resolved as %s\n", conflictID, outcome)
	if outcome == models.ResolutionLocal {
		c.io.Println("To push the local value, requeue the operation: caresync requeue <operation-id>")
	}
	return nil
}

func (c *Cli) runQueue(ctx context.Context) error {
	pending, err := c.queue.ListByStatus(ctx, models.StatusPending)
	if err != nil {
		return fmt.Errorf("failed to list pending operations: %w", err)
	}
	failed, err := c.queue.ListByStatus(ctx, models.StatusFailed)
	if err != nil {
		return fmt.Errorf("failed to list failed operations: %w", err)
	}

	if len(pending) == 0 && len(failed) == 0 {
		c.io.Println("Queue is empty.")
		return nil
	}

	if len(pending) > 0 {
		c.io.Printf("Pending (%d):\n", len(pending))
		for _, op := range pending {
			c.io.Printf("  %s  %-18s %-38s retries=%d\n", op.ID, op.Kind, op.EntityID, op.RetryCount)
		}
	}
	if len(failed) > 0 {
		c.io.Println()
		c.io.Printf("Failed (%d):\n", len(failed))
		for _, op := range failed {
			c.io.Printf("  %s  %-18s %-38s %s\n", op.ID, op.Kind, op.EntityID, op.LastError)
		}
		c.io.Println()
		c.io.Println("Use 'caresync requeue <operation-id>' after fixing the cause.")
	}
	return nil
}

func (c *Cli) runRequeue(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: caresync requeue <operation-id>")
	}

	if err := c.queue.Requeue(ctx, args[0]); err != nil {
		return err
	}

	c.io.Printf("✓ Operation %s returned to the queue\n", args[0])
	c.io.Println("It replays on the next sync.")
	return nil
}

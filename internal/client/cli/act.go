package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/caresync-io/caresync/internal/models"
)

// runAct moves a task to a target state. The expected version is optional
// when the server is reachable (it is looked up live); offline it must be
// given explicitly, typically from the last 'tasks' listing.
func (c *Cli) runAct(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: caresync act <task-id> <state> [version] [note]")
	}
	taskID, targetState := args[0], args[1]

	token, userID, err := c.session(ctx)
	if err != nil {
		return err
	}

	var note string
	expectedVersion := int64(-1)
	rest := args[2:]
	if len(rest) > 0 {
		if v, err := strconv.ParseInt(rest[0], 10, 64); err == nil {
			expectedVersion = v
			rest = rest[1:]
		}
	}
	if len(rest) > 0 {
		note = strings.Join(rest, " ")
	}

	if expectedVersion < 0 {
		expectedVersion, err = c.lookupVersion(ctx, token, taskID)
		if err != nil {
			return err
		}
	}

	result, err := c.dispatcher.Transition(ctx, token, taskID, userID, targetState, note, expectedVersion)
	if err != nil {
		return err
	}

	if result.Queued() {
		c.io.Println("✓ Queued (server unreachable)")
		c.io.Printf("Operation: %s\n", result.Operation.ID)
		c.io.Println("The change replays on the next sync.")
		return nil
	}

	c.io.Println("✓ Applied")
	c.io.Printf("Task %s is now %s (version %d)\n", result.Task.ID, result.Task.State, result.Task.Version)
	return nil
}

// lookupVersion fetches the task's current version from the server.
func (c *Cli) lookupVersion(ctx context.Context, token, taskID string) (int64, error) {
	if !c.net.Check(ctx) {
		return 0, fmt.Errorf("offline: pass the expected version explicitly (caresync act <task-id> <state> <version>)")
	}

	resp, err := c.apiClient.ListTasks(ctx, token)
	if err != nil {
		return 0, fmt.Errorf("failed to look up task version: %w", err)
	}
	for _, task := range resp.Tasks {
		if task.ID == taskID {
			return task.Version, nil
		}
	}
	return 0, fmt.Errorf("task %s not found", taskID)
}

func (c *Cli) runCapture(ctx context.Context, args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("usage: caresync capture <task-id> <kind> <value>")
	}
	taskID := args[0]
	kind := models.MediaKind(args[1])
	value := strings.Join(args[2:], " ")

	_, userID, err := c.session(ctx)
	if err != nil {
		return err
	}

	ev, err := c.dispatcher.CaptureEvidence(ctx, taskID, userID, kind, []byte(value))
	if err != nil {
		return err
	}

	c.io.Println("✓ Evidence recorded")
	c.io.Printf("ID:   %s\n", ev.ID)
	c.io.Printf("Kind: %s\n", ev.Kind)
	c.io.Println("It uploads on the next sync.")
	return nil
}

func (c *Cli) runNote(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: caresync note <task-id> <action>")
	}
	taskID := args[0]
	action := strings.Join(args[1:], "_")

	_, userID, err := c.session(ctx)
	if err != nil {
		return err
	}

	ev, err := c.dispatcher.RecordAudit(ctx, "task", taskID, action, userID, nil)
	if err != nil {
		return err
	}

	c.io.Println("✓ Audit event recorded")
	c.io.Printf("ID:     %s\n", ev.ID)
	c.io.Printf("Action: %s\n", ev.Action)
	return nil
}

package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/caresync-io/caresync/pkg/api"
)

func (c *Cli) runTasks(ctx context.Context) error {
	token, _, err := c.session(ctx)
	if err != nil {
		return err
	}

	resp, err := c.apiClient.ListTasks(ctx, token)
	if err != nil {
		return fmt.Errorf("failed to list tasks: %w", err)
	}

	if len(resp.Tasks) == 0 {
		c.io.Println("No tasks.")
		return nil
	}

	c.io.Printf("%-38s %-12s %-8s %s\n", "ID", "STATE", "VERSION", "TITLE")
	for _, task := range resp.Tasks {
		c.io.Printf("%-38s %-12s %-8d %s\n", task.ID, task.State, task.Version, task.Title)
	}
	return nil
}

func (c *Cli) runAddTask(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: caresync task-add <resident-id> <title>")
	}

	token, _, err := c.session(ctx)
	if err != nil {
		return err
	}

	task, err := c.apiClient.CreateTask(ctx, token, api.CreateTaskRequest{
		ResidentID: args[0],
		Title:      strings.Join(args[1:], " "),
	})
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}

	c.io.Println("✓ Task created")
	c.io.Printf("ID:      %s\n", task.ID)
	c.io.Printf("Title:   %s\n", task.Title)
	c.io.Printf("State:   %s\n", task.State)
	c.io.Printf("Version: %d\n", task.Version)
	return nil
}

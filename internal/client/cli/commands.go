package cli

import (
	"context"
	"fmt"
	"os"
)

func (c *Cli) Run(ctx context.Context, command string, args []string) {
	var err error
	switch command {
	case "register":
		err = c.runRegister(ctx)
	case "login":
		err = c.runLogin(ctx)
	case "logout":
		err = c.runLogout(ctx)
	case "status":
		err = c.runStatus(ctx)
	case "tasks":
		err = c.runTasks(ctx)
	case "task-add":
		err = c.runAddTask(ctx, args)
	case "act":
		err = c.runAct(ctx, args)
	case "capture":
		err = c.runCapture(ctx, args)
	case "note":
		err = c.runNote(ctx, args)
	case "sync":
		err = c.runSync(ctx)
	case "watch":
		err = c.runWatch(ctx)
	case "queue":
		err = c.runQueue(ctx)
	case "requeue":
		err = c.runRequeue(ctx, args)
	case "conflicts":
		err = c.runConflicts(ctx)
	case "resolve":
		err = c.runResolve(ctx, args)
	case "gc":
		err = c.runGC(ctx)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		PrintUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

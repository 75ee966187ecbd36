package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/caresync-io/caresync/internal/client/api"
	"github.com/caresync-io/caresync/internal/client/auth"
	"github.com/caresync-io/caresync/internal/client/cli"
	"github.com/caresync-io/caresync/internal/client/conflict"
	"github.com/caresync-io/caresync/internal/client/dispatch"
	"github.com/caresync-io/caresync/internal/client/iocli"
	"github.com/caresync-io/caresync/internal/client/netstate"
	"github.com/caresync-io/caresync/internal/client/queue"
	"github.com/caresync-io/caresync/internal/client/sink"
	"github.com/caresync-io/caresync/internal/client/storage/boltdb"
	"github.com/caresync-io/caresync/internal/client/sync"
)

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "Show version information")
	serverURL := flag.String("server", "http://localhost:8080", "Server URL")
	dbPath := flag.String("db", "caresync-client.db", "Path to local database")

	flag.Parse()

	if *showVersion {
		printVersion()
		os.Exit(0)
	}

	args := flag.Args()
	if len(args) == 0 {
		cli.PrintUsage()
		os.Exit(1)
	}
	command := args[0]

	// Ctrl+C cancels long-running commands (watch, sync) between operations.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))

	store := boltdb.New(*dbPath)
	if err := store.Open(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open database: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("failed to close database", "error", err)
		}
	}()

	apiClient := api.NewClient(*serverURL)

	queueMgr := queue.NewManager(store, logger)
	evidence := sink.NewEvidenceSink(store, logger)
	audit := sink.NewAuditSink(store, logger)
	conflicts := conflict.NewTracker(store, logger)
	authService := auth.NewService(apiClient, store, logger)
	net := netstate.NewWatcher(netstate.CheckerFunc(apiClient.Health), logger, netstate.DefaultConfig())
	dispatcher := dispatch.NewDispatcher(apiClient, queueMgr, evidence, audit, net, logger)
	driver := sync.NewDriver(apiClient, queueMgr, evidence, audit, conflicts, store, logger, sync.DefaultConfig())

	// A single probe before the command runs; one-shot commands do not need
	// the watch loop.
	net.Check(ctx)

	c := cli.New(apiClient, authService, dispatcher, driver, queueMgr, conflicts, net, iocli.NewStdio())
	c.Run(ctx, command, args[1:])
}

func printVersion() {
	fmt.Printf("CareSync Client\n")
	fmt.Printf("Version:    %s\n", Version)
	fmt.Printf("Build Date: %s\n", BuildDate)
	fmt.Printf("Git Commit: %s\n", GitCommit)
}

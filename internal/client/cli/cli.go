// Package cli implements the caregiver-facing commands. Every command talks
// to the local engine first; the server is involved only when netstate says
// it is reachable.
package cli

import (
	"context"
	"fmt"

	httpClient "github.com/caresync-io/caresync/internal/client/api"
	"github.com/caresync-io/caresync/internal/client/auth"
	"github.com/caresync-io/caresync/internal/client/conflict"
	"github.com/caresync-io/caresync/internal/client/dispatch"
	"github.com/caresync-io/caresync/internal/client/iocli"
	"github.com/caresync-io/caresync/internal/client/netstate"
	"github.com/caresync-io/caresync/internal/client/queue"
	"github.com/caresync-io/caresync/internal/client/sync"
)

type Cli struct {
	apiClient   httpClient.ClientAPI
	authService *auth.Service
	dispatcher  *dispatch.Dispatcher
	driver      *sync.Driver
	queue       *queue.Manager
	conflicts   *conflict.Tracker
	net         *netstate.Watcher
	io          iocli.IO
}

func New(
	apiClient httpClient.ClientAPI,
	authService *auth.Service,
	dispatcher *dispatch.Dispatcher,
	driver *sync.Driver,
	queueMgr *queue.Manager,
	conflicts *conflict.Tracker,
	net *netstate.Watcher,
	io iocli.IO,
) *Cli {
	return &Cli{
		apiClient:   apiClient,
		authService: authService,
		dispatcher:  dispatcher,
		driver:      driver,
		queue:       queueMgr,
		conflicts:   conflicts,
		net:         net,
		io:          io,
	}
}

// session returns the stored device session or a user-facing error.
func (c *Cli) session(ctx context.Context) (token, userID string, err error) {
	authData, err := c.authService.Session(ctx)
	if err != nil {
		return "", "", err
	}
	return authData.AccessToken, authData.UserID, nil
}

func PrintUsage() {
	fmt.Println("CareSync Client")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  caresync [OPTIONS] COMMAND")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  --version         Show version information")
	fmt.Println("  --server URL      Server URL (default: http://localhost:8080)")
	fmt.Println("  --db PATH         Path to local database (default: caresync-client.db)")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  register                              Register a caregiver account")
	fmt.Println("  login                                 Log the device in")
	fmt.Println("  logout                                Remove the local session")
	fmt.Println("  status                                Show session, connectivity and queue counts")
	fmt.Println("  tasks                                 List care tasks (requires connectivity)")
	fmt.Println("  task-add <resident-id> <title>        Create a care task")
	fmt.Println("  act <task-id> <state> [version] [note]  Move a task to a state; queues when offline")
	fmt.Println("  capture <task-id> <kind> <value>      Record evidence (photo, audio, numeric, text)")
	fmt.Println("  note <task-id> <action>               Record an audit event for a task")
	fmt.Println("  sync                                  Replay the queue against the server")
	fmt.Println("  watch                                 Stay running; sync whenever the server becomes reachable")
	fmt.Println("  queue                                 List pending and failed operations")
	fmt.Println("  requeue <operation-id>                Put a failed operation back in the queue")
	fmt.Println("  conflicts                             List unresolved version conflicts")
	fmt.Println("  resolve <conflict-id> <outcome>       Record a conflict decision (local, server, merged)")
	fmt.Println("  gc                                    Remove synced records from local storage")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  caresync login")
	fmt.Println("  caresync act 4f7c2b1a completed 3 'taken with breakfast'")
	fmt.Println("  caresync capture 4f7c2b1a numeric 37.2")
	fmt.Println("  caresync sync")
	fmt.Println("  caresync --server https://care.example.com tasks")
}

// cmd/queuectl/main.go
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/queuectl/queuectl/cmd/queuectl/commands"
	"github.com/queuectl/queuectl/pkg/job"
	"github.com/queuectl/queuectl/pkg/store"
)

// Exit codes. User mistakes (bad input, unknown ids, duplicates) exit 1;
// system failures (database unavailable) exit 2; interruption exits 130.
const (
	exitOK          = 0
	exitUserError   = 1
	exitSystemError = 2
	exitInterrupted = 130
)

func main() {
	os.Exit(run())
}

func run() int {
	rootCmd := commands.NewCommand()
	err := rootCmd.Execute()
	if err == nil {
		return exitOK
	}

	if errors.Is(err, commands.ErrInterrupted) {
		return exitInterrupted
	}

	fmt.Fprintf(os.Stderr, "Error: %v\n", err)

	switch {
	case store.IsUnavailable(err), store.IsClosed(err):
		return exitSystemError
	case errors.Is(err, job.ErrInvalidSpec),
		store.IsInvalidInput(err),
		store.IsDuplicateID(err),
		store.IsNotFound(err):
		return exitUserError
	default:
		return exitUserError
	}
}

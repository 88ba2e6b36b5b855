package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/flowforge/forge-go/internal/containers"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(exitCode(err))
	}
}

// exitCode separates configuration problems (2) from runtime failures (1),
// matching the service entrypoints.
func exitCode(err error) int {
	var cfgErr *configError
	switch {
	case errors.As(err, &cfgErr):
		return 2
	case errors.Is(err, containers.ErrNotFound), errors.Is(err, containers.ErrConflict):
		return 3
	default:
		return 1
	}
}

type configError struct {
	err error
}

func (e *configError) Error() string {
	return "invalid config: " + e.err.Error()
}

func (e *configError) Unwrap() error {
	return e.err
}

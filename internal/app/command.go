package app

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/shandysiswandi/ledgerguard/internal/pkg/goerror"
	"github.com/shandysiswandi/ledgerguard/internal/pkg/stacktrace"
)

// Run executes the command line and returns the process exit code. A panic
// inside a command is logged and reported as an internal error.
func (a *App) Run(args []string) (code int) {
	defer func() {
		if rvr := recover(); rvr != nil {
			paths := stacktrace.InternalPaths(debug.Stack())
			if len(paths) == 0 {
				slog.ErrorContext(a.ctx, "panic in command trace debug", "because", rvr, "stack", string(debug.Stack()))
			} else {
				slog.ErrorContext(a.ctx, "panic in command", "because", rvr, "stack", paths)
			}

			code = a.console.Fail(goerror.NewServer(fmt.Errorf("panic: %v", rvr)))
		}
	}()

	a.root.SetArgs(args)

	err := a.root.ExecuteContext(a.ctx)
	if err != nil {
		slog.DebugContext(a.ctx, "command failed", "error", err)
	}

	return a.console.Fail(err)
}

// Stop cancels the app context and closes every resource.
func (a *App) Stop(ctx context.Context) {
	if a.cancel != nil {
		a.cancel()
	}

	for _, closer := range a.closers {
		if err := closer.fn(ctx); err != nil {
			slog.ErrorContext(ctx, "failed to close resources", "name", closer.name, "error", err)
		}
	}
}

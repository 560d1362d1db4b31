package command

import (
	"context"
	"os/exec"
)

// MockExecCommandContext replaces the exec.CommandContext() wrapper and
// returns a function that can be called to restore the original.
func MockExecCommandContext(mock func(ctx context.Context, name string, arg ...string) *exec.Cmd) (restore func()) {
	original := execCommandContext
	execCommandContext = mock
	return func() {
		execCommandContext = original
	}
}

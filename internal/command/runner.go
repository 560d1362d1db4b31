// Package command runs the cloud provider command line tools.
package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/osbuild/cloud-image-import/internal/common"
)

// Result is the outcome of a command that was started. A non-zero ExitCode
// is not an error at this level.
type Result struct {
	ExitCode int
	Stdout   []byte
	Stderr   []byte
}

// Runner executes an external command. Run returns an error only if the
// command could not be started or was interrupted.
type Runner interface {
	Run(ctx context.Context, argv []string) (*Result, error)
}

// var alias for exec.CommandContext() that can be mocked for testing
var execCommandContext = exec.CommandContext

// ExecRunner runs commands on the host. Stderr of the child is always
// captured and, when Stream is set, also copied there so that progress of
// long uploads stays visible.
type ExecRunner struct {
	Stream io.Writer
	Env    []string
}

func NewExecRunner() *ExecRunner {
	return &ExecRunner{}
}

func (r *ExecRunner) Run(ctx context.Context, argv []string) (*Result, error) {
	if len(argv) == 0 {
		return nil, fmt.Errorf("empty command")
	}

	common.Logger(ctx).Debugf("running %s", strings.Join(argv, " "))

	var stdout, stderr bytes.Buffer
	cmd := execCommandContext(ctx, argv[0], argv[1:]...)
	if len(r.Env) > 0 {
		cmd.Env = append(os.Environ(), r.Env...)
	}
	cmd.Stdout = &stdout
	if r.Stream != nil {
		cmd.Stderr = io.MultiWriter(&stderr, r.Stream)
	} else {
		cmd.Stderr = &stderr
	}

	err := cmd.Run()
	if ctx.Err() != nil {
		return nil, fmt.Errorf("%s: %w", argv[0], ctx.Err())
	}

	result := &Result{
		Stdout: stdout.Bytes(),
		Stderr: stderr.Bytes(),
	}
	var exitErr *exec.ExitError
	switch {
	case err == nil:
	case errors.As(err, &exitErr):
		result.ExitCode = exitErr.ExitCode()
	default:
		return nil, fmt.Errorf("cannot run %s: %w", argv[0], err)
	}
	return result, nil
}

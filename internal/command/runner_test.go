package command_test

import (
	"bytes"
	"context"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osbuild/cloud-image-import/internal/command"
)

// fakeShell routes every command through sh so the tests do not depend on
// any cloud CLI being installed.
func fakeShell(t *testing.T, script string, calls *[][]string) func() {
	return command.MockExecCommandContext(func(ctx context.Context, name string, arg ...string) *exec.Cmd {
		*calls = append(*calls, append([]string{name}, arg...))
		return exec.CommandContext(ctx, "sh", "-c", script)
	})
}

func TestExecRunnerSuccess(t *testing.T) {
	var calls [][]string
	restore := fakeShell(t, `echo '{"ImportTaskId": "import-snap-1"}'; echo progress >&2`, &calls)
	defer restore()

	var stream bytes.Buffer
	r := &command.ExecRunner{Stream: &stream}
	res, err := r.Run(context.Background(), []string{"aws", "ec2", "import-snapshot"})
	require.NoError(t, err)

	assert.Equal(t, 0, res.ExitCode)
	assert.Equal(t, "{\"ImportTaskId\": \"import-snap-1\"}\n", string(res.Stdout))
	assert.Equal(t, "progress\n", string(res.Stderr))
	assert.Equal(t, "progress\n", stream.String())
	assert.Equal(t, [][]string{{"aws", "ec2", "import-snapshot"}}, calls)
}

func TestExecRunnerNonZeroExit(t *testing.T) {
	var calls [][]string
	restore := fakeShell(t, `echo 'AccessDenied' >&2; exit 7`, &calls)
	defer restore()

	res, err := command.NewExecRunner().Run(context.Background(), []string{"gcloud", "storage", "cp"})
	require.NoError(t, err)
	assert.Equal(t, 7, res.ExitCode)
	assert.Equal(t, "AccessDenied\n", string(res.Stderr))
	assert.Empty(t, res.Stdout)
}

func TestExecRunnerNotFound(t *testing.T) {
	_, err := command.NewExecRunner().Run(context.Background(), []string{"/nonexistent/az-cli-binary"})
	assert.ErrorContains(t, err, "cannot run /nonexistent/az-cli-binary")
}

func TestExecRunnerEmpty(t *testing.T) {
	_, err := command.NewExecRunner().Run(context.Background(), nil)
	assert.Error(t, err)
}

func TestExecRunnerCanceled(t *testing.T) {
	var calls [][]string
	restore := fakeShell(t, `sleep 10`, &calls)
	defer restore()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := command.NewExecRunner().Run(ctx, []string{"aws", "s3", "cp"})
	assert.ErrorIs(t, err, context.Canceled)
}

// runner_mock provides a scripted command.Runner for testing the import
// procedures without any cloud CLI installed.
package runner_mock

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/osbuild/cloud-image-import/internal/command"
)

// Response is returned for the first call whose argv starts with Prefix.
// Each Response is used once; unmatched calls exit 0 with empty output.
type Response struct {
	Prefix   []string
	ExitCode int
	Stdout   string
	Stderr   string
	// Err makes Run itself fail, as if the binary could not be started.
	Err error
}

type Runner struct {
	mu        sync.Mutex
	Calls     [][]string
	responses []Response
}

func New(responses ...Response) *Runner {
	return &Runner{responses: responses}
}

// Add queues more responses.
func (r *Runner) Add(responses ...Response) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.responses = append(r.responses, responses...)
}

func (r *Runner) Run(ctx context.Context, argv []string) (*command.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.Calls = append(r.Calls, append([]string(nil), argv...))
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for idx, resp := range r.responses {
		if !hasPrefix(argv, resp.Prefix) {
			continue
		}
		r.responses = append(r.responses[:idx], r.responses[idx+1:]...)
		if resp.Err != nil {
			return nil, resp.Err
		}
		return &command.Result{
			ExitCode: resp.ExitCode,
			Stdout:   []byte(resp.Stdout),
			Stderr:   []byte(resp.Stderr),
		}, nil
	}
	return &command.Result{}, nil
}

// CallsWithPrefix returns the recorded calls starting with prefix.
func (r *Runner) CallsWithPrefix(prefix ...string) [][]string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var calls [][]string
	for _, c := range r.Calls {
		if hasPrefix(c, prefix) {
			calls = append(calls, c)
		}
	}
	return calls
}

// Commands returns the recorded calls joined by spaces, handy for
// comparing the order of invocations.
func (r *Runner) Commands() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	cmds := make([]string, 0, len(r.Calls))
	for _, c := range r.Calls {
		cmds = append(cmds, strings.Join(c, " "))
	}
	return cmds
}

func (r *Runner) String() string {
	return fmt.Sprintf("runner_mock.Runner{%d calls}", len(r.Calls))
}

func hasPrefix(argv, prefix []string) bool {
	if len(prefix) > len(argv) {
		return false
	}
	for i := range prefix {
		if argv[i] != prefix[i] {
			return false
		}
	}
	return true
}

// ArgValue returns the value following flag in argv, or "" if flag is not
// present. Both "--flag value" and "--flag=value" are recognized.
func ArgValue(argv []string, flag string) string {
	for i, a := range argv {
		if a == flag && i+1 < len(argv) {
			return argv[i+1]
		}
		if v, ok := strings.CutPrefix(a, flag+"="); ok {
			return v
		}
	}
	return ""
}

// Package cloudcli drives the aws, az and gcloud command line tools. It
// relies on sessions that are already authenticated.
package cloudcli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/osbuild/cloud-image-import/internal/clienterrors"
	"github.com/osbuild/cloud-image-import/internal/command"
)

// run executes argv once and turns a failure to start or a non-zero exit
// status into a ProviderCommandError. Cancellation is returned as is.
func run(ctx context.Context, runner command.Runner, argv []string) ([]byte, error) {
	res, err := runner.Run(ctx, argv)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		return nil, &clienterrors.ProviderCommandError{
			Argv: argv,
			Err:  err,
		}
	}
	if res.ExitCode != 0 {
		return nil, &clienterrors.ProviderCommandError{
			Argv:     argv,
			ExitCode: res.ExitCode,
			Stderr:   string(res.Stderr),
		}
	}
	return res.Stdout, nil
}

// runJSON is run followed by decoding stdout into v.
func runJSON(ctx context.Context, runner command.Runner, argv []string, v interface{}) error {
	out, err := run(ctx, runner, argv)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(out, v); err != nil {
		return &clienterrors.ProviderCommandError{
			Argv: argv,
			Err:  fmt.Errorf("cannot parse output: %w", err),
		}
	}
	return nil
}

func orDefault(value, def string) string {
	if value == "" {
		return def
	}
	return value
}

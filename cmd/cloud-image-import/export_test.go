package main

import (
	"io"

	"github.com/osbuild/cloud-image-import/internal/command"
)

var Run = run

func MockNewRunner(r command.Runner) (restore func()) {
	saved := newRunner
	newRunner = func(io.Writer) command.Runner {
		return r
	}
	return func() {
		newRunner = saved
	}
}

//go:build windows

package main

import (
	"fmt"
	"os"

	"github.com/born-ml/born/autodiff"
	"github.com/born-ml/born/backend/cpu"
	"github.com/born-ml/born/backend/webgpu"
)

func execute(opts options) error {
	if opts.gpu {
		gpu, err := webgpu.New()
		if err == nil {
			defer gpu.Release()
			return runCommand(opts, autodiff.New(gpu))
		}
		fmt.Fprintf(os.Stderr, "webgpu: %v, falling back to cpu\n", err)
	}
	return runCommand(opts, autodiff.New(cpu.New()))
}

func backends() []string {
	gpu := "webgpu (not available)"
	if webgpu.IsAvailable() {
		gpu = "webgpu (available)"
	}
	return []string{"cpu (available)", gpu}
}

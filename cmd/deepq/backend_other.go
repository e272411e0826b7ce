//go:build !windows

package main

import (
	"github.com/born-ml/born/autodiff"
	"github.com/born-ml/born/backend/cpu"
)

func execute(opts options) error {
	return runCommand(opts, autodiff.New(cpu.New()))
}

func backends() []string {
	return []string{"cpu (available)", "webgpu (windows only)"}
}

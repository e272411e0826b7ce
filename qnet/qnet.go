// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package qnet

import (
	"github.com/born-ml/born/nn"
	"github.com/born-ml/born/tensor"

	"github.com/born-ml/deepq/internal/qnet"
)

// Config describes the network to build.
type Config = qnet.Config

// Network is a multi-input convolutional Q-network.
type Network[B tensor.Backend] = qnet.Network[B]

// ActionSpec describes a discrete action space.
type ActionSpec = qnet.ActionSpec

// ActionKind tells how an ActionSpec was declared.
type ActionKind = qnet.ActionKind

// Action spec variants.
const (
	ActionCount  = qnet.ActionCount
	ActionLabels = qnet.ActionLabels
)

// Layout is the memory layout of the frames fed to Forward.
type Layout = qnet.Layout

// Frame layouts.
const (
	LayoutChannelsFirst = qnet.LayoutChannelsFirst
	LayoutChannelsLast  = qnet.LayoutChannelsLast
)

// MinFrameSize is the smallest frame height or width Build accepts.
const MinFrameSize = qnet.MinFrameSize

// Validation errors.
var (
	ErrBatchSize     = qnet.ErrBatchSize
	ErrNoInputs      = qnet.ErrNoInputs
	ErrFrameRank     = qnet.ErrFrameRank
	ErrFrameDims     = qnet.ErrFrameDims
	ErrFrameTooSmall = qnet.ErrFrameTooSmall
	ErrNoActions     = qnet.ErrNoActions
)

// Actions declares n anonymous actions.
func Actions(n int) ActionSpec {
	return qnet.Actions(n)
}

// ActionList declares one action per label.
func ActionList(labels ...string) ActionSpec {
	return qnet.ActionList(labels...)
}

// Build assembles a Q-network and returns it with its trainable parameters.
//
// Example:
//
//	backend := autodiff.New(cpu.New())
//	net, params, err := qnet.Build(qnet.Config{
//	    BatchSize: 32,
//	    InputDims: [][]int{{1, 32, 32}},
//	    Actions:   qnet.Actions(3),
//	    Seed:      42,
//	}, backend)
//	q := net.Forward(frames) // [batch, 3]
func Build[B tensor.Backend](cfg Config, backend B) (*Network[B], []*nn.Parameter[B], error) {
	return qnet.Build(cfg, backend)
}

// StackFrames packs flat channel-first frames into a [N, C, H, W] batch.
func StackFrames[B tensor.Backend](frames [][]float32, dim []int, backend B) (*tensor.Tensor[float32, B], error) {
	return qnet.StackFrames(frames, dim, backend)
}

// ToChannelsLast reorders a flat [C, H, W] frame into [H, W, C] order.
func ToChannelsLast(frame []float32, dim []int) []float32 {
	return qnet.ToChannelsLast(frame, dim)
}

// OneHot encodes actions as a [len(actions), n] batch.
func OneHot[B tensor.Backend](actions []int, n int, backend B) (*tensor.Tensor[float32, B], error) {
	return qnet.OneHot(actions, n, backend)
}

// CountParameters returns the number of scalar weights in params.
func CountParameters[B tensor.Backend](params []*nn.Parameter[B]) int {
	return qnet.CountParameters(params)
}

// CopyParameters overwrites dst with the values of src.
func CopyParameters[B tensor.Backend](dst, src []*nn.Parameter[B]) error {
	return qnet.CopyParameters(dst, src)
}

// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package qnet builds convolutional Q-value networks for deep Q-learning.
//
// # Overview
//
// A network takes one frame batch per observation modality. Each frame is
// channels × height × width. Every modality gets its own convolution tower:
//
//	Conv(8, 4x4, stride 2) -> ReLU
//	Conv(16, 3x3)          -> ReLU -> MaxPool(2x2)
//	Conv(16, 3x3)          -> ReLU -> MaxPool(2x2)
//	Flatten
//
// The flattened towers are concatenated and passed through a dense head
// (50 -> ReLU -> 20 -> ReLU) ending in one output per action.
//
// # Basic Usage
//
//	import (
//	    "github.com/born-ml/born/autodiff"
//	    "github.com/born-ml/born/backend/cpu"
//	    "github.com/born-ml/deepq/qnet"
//	)
//
//	func main() {
//	    backend := autodiff.New(cpu.New())
//
//	    net, params, err := qnet.Build(qnet.Config{
//	        BatchSize: 32,
//	        InputDims: [][]int{{1, 32, 32}, {3, 24, 24}},
//	        Actions:   qnet.ActionList("left", "stay", "right"),
//	        Seed:      1,
//	    }, backend)
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//
//	    optimizer := optim.NewAdam(params, optim.AdamConfig{LR: 1e-3}, backend)
//	    q := net.Forward(frames0, frames1) // [batch, 3]
//	}
//
// # Action as input
//
// With Config.ActionAsInput the network takes a one-hot action batch as
// its last input and returns a single value per sample:
//
//	actions, _ := qnet.OneHot([]int{0, 2}, 3, backend)
//	v := net.Forward(frames, actions) // [2, 1]
//
// # Layout
//
// Born convolutions are channel-first. Frames stored channel-last
// ([batch, H, W, C]) are accepted with Config.Layout = LayoutChannelsLast
// and permuted before the first convolution.
package qnet

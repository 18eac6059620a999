// Copyright 2025 The Rift Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package autodiff provides the gradient tape the differentiable shuffle
// operators record on.
//
// Example:
//
//	tape := autodiff.NewGradientTape()
//	tape.StartRecording()
//	output, desc, _ := op.Apply(tape, input, splits, group, align)
//	grads := tape.Backward(upstreamGrad, cpu.New())
//	gradInput := grads[input]
package autodiff

import (
	"github.com/rift-ml/rift/internal/autodiff"
	"github.com/rift-ml/rift/internal/autodiff/ops"
)

// GradientTape records operations for reverse-mode differentiation.
type GradientTape = autodiff.GradientTape

// NewGradientTape creates a new gradient tape.
func NewGradientTape() *GradientTape {
	return autodiff.NewGradientTape()
}

// Operation is a differentiable node recorded on the tape.
type Operation = ops.Operation

// MultiOutputOperation is a node producing multiple outputs, such as the
// collective shuffles (data plus routing descriptor).
type MultiOutputOperation = ops.MultiOutputOperation

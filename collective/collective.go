// Copyright 2025 The Rift Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package collective provides the two differentiable variable-length
// all-to-all operators.
//
// Example (one worker of a group):
//
//	op := collective.NewAligned(runtime)
//	_ = op.Init(maxOutputLen)
//
//	tape := autodiff.NewGradientTape()
//	tape.StartRecording()
//	output, desc, err := op.Apply(tape, input, inputSplits, symmem.WorldGroup, majorAlign)
//	// ... compute loss on output ...
//	grads := tape.Backward(upstreamGrad, cpu.New())
//	gradInput := grads[input]
package collective

import (
	"github.com/rift-ml/rift/internal/collective"
)

// Aligned is the fixed-alignment variable all-to-all operator: forward takes
// per-destination counts, backward routes gradients through the offset-based
// kernel.
type Aligned = collective.Aligned

// Offset is the offset-based variable all-to-all operator: forward takes an
// explicit splits-and-offsets descriptor, backward routes gradients through
// the splits-only kernel using the alignment configured at Init.
type Offset = collective.Offset

// NewAligned creates an unconfigured Aligned operator bound to a runtime.
var NewAligned = collective.NewAligned

// NewOffset creates an unconfigured Offset operator bound to a runtime.
var NewOffset = collective.NewOffset

// ErrNotConfigured is returned when an operator is applied before Init.
var ErrNotConfigured = collective.ErrNotConfigured

// ErrReconfigured is returned when Init is called again with different
// values.
var ErrReconfigured = collective.ErrReconfigured

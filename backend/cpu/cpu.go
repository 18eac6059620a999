// Copyright 2025 The Rift Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package cpu provides the host-memory backend used for local gradient math.
package cpu

import (
	"github.com/rift-ml/rift/internal/backend/cpu"
)

// CPUBackend implements tensor.Backend on host memory.
type CPUBackend = cpu.CPUBackend

// New creates a new CPU backend.
func New() *CPUBackend {
	return cpu.New()
}

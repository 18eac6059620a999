// Copyright 2025 The Rift Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package symmem exposes the symmetric-memory runtime contract and the
// process-local reference runtime.
//
// Production deployments implement Runtime on top of a real device fabric;
// the LocalRuntime here runs every rank as a goroutine of one process and is
// what the tests and the demo binary use.
package symmem

import (
	"github.com/rift-ml/rift/internal/symmem"
)

// Runtime is the distributed runtime contract: named process groups,
// symmetric buffer allocation, and the two variable all-to-all kernels.
type Runtime = symmem.Runtime

// Descriptor is a (2, n) int64 splits/offsets view: row 0 per-peer counts,
// row 1 per-peer starting offsets.
type Descriptor = symmem.Descriptor

// NewDescriptor allocates a zeroed descriptor covering n peers.
var NewDescriptor = symmem.NewDescriptor

// AsDescriptor wraps an existing (2, n) int64 tensor as a Descriptor.
var AsDescriptor = symmem.AsDescriptor

// LocalRuntime is the in-process multi-goroutine runtime.
type LocalRuntime = symmem.LocalRuntime

// Peer is a LocalRuntime handle bound to one rank; it implements Runtime.
type Peer = symmem.Peer

// NewLocalRuntime creates a runtime with worldSize ranks.
var NewLocalRuntime = symmem.NewLocalRuntime

// WorldGroup is the name of the group containing every rank.
const WorldGroup = symmem.WorldGroup

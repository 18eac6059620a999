// Package symmem defines the symmetric-memory distributed runtime contract
// consumed by the differentiable all-to-all-v operators, plus a process-local
// reference runtime for tests and single-host experiments.
//
// A symmetric buffer is a region registered with the runtime so that peer
// workers can address it directly. The runtime exposes two variable-length
// all-to-all kernels over such buffers:
//
//   - AllToAllVSplits: routing given per-destination counts only; placement
//     on the receiver is aligned up to a configurable granularity.
//   - AllToAllVOffsets: routing given explicit per-destination counts and
//     starting offsets; placement on the receiver is densely packed.
//
// Both kernels are blocking collectives: every member of the named group must
// invoke the matching kernel, in the same order, before any invocation
// returns.
package symmem

import (
	"github.com/pkg/errors"

	"github.com/rift-ml/rift/internal/tensor"
)

// Runtime is the distributed runtime contract. Implementations resolve named
// process groups, allocate peer-addressable buffers, and execute the two
// collective kernels.
type Runtime interface {
	// Empty allocates a zero-initialized symmetric buffer registered for
	// peer access.
	Empty(shape tensor.Shape, dtype tensor.DataType, device tensor.Device) (*tensor.RawTensor, error)

	// Rank returns the caller's rank within the named group.
	Rank(group string) (int, error)

	// WorldSize returns the number of members of the named group.
	WorldSize(group string) (int, error)

	// AllToAllVSplits shuffles input into output according to inSplits, a
	// rank-1 int64 tensor of per-destination row counts. Each source chunk
	// lands on its receiver at an offset rounded up to a multiple of
	// majorAlign (values <= 1 mean no padding). The receiver-side counts
	// and offsets are written into outSplitsOffsets, a (2, worldSize)
	// int64 tensor: row 0 counts, row 1 offsets.
	AllToAllVSplits(input, output, inSplits, outSplitsOffsets *tensor.RawTensor, group string, majorAlign int) error

	// AllToAllVOffsets shuffles input into output according to
	// inSplitsOffsets, a (2, worldSize) int64 tensor giving explicit
	// per-destination counts and input-side starting offsets. Receiver
	// placement is densely packed; the resulting counts and offsets are
	// written into outSplitsOffsets.
	AllToAllVOffsets(input, output, inSplitsOffsets, outSplitsOffsets *tensor.RawTensor, group string) error
}

// Descriptor is a view over a (2, n) int64 tensor describing how a flat
// buffer is partitioned: row 0 holds per-peer row counts, row 1 per-peer
// starting row offsets.
type Descriptor struct {
	t *tensor.RawTensor
}

// NewDescriptor allocates a zeroed (2, n) int64 descriptor tensor on the
// given device.
func NewDescriptor(n int, device tensor.Device) (Descriptor, error) {
	t, err := tensor.NewRaw(tensor.Shape{2, n}, tensor.Int64, device)
	if err != nil {
		return Descriptor{}, errors.Wrap(err, "allocating descriptor")
	}
	return Descriptor{t: t}, nil
}

// AsDescriptor wraps an existing tensor as a Descriptor, validating its
// layout.
func AsDescriptor(t *tensor.RawTensor) (Descriptor, error) {
	shape := t.Shape()
	if len(shape) != 2 || shape[0] != 2 {
		return Descriptor{}, errors.Errorf("descriptor must have shape (2, n), got %v", shape)
	}
	if t.DType() != tensor.Int64 {
		return Descriptor{}, errors.Errorf("descriptor must be int64, got %s", t.DType())
	}
	return Descriptor{t: t}, nil
}

// Len returns the number of peers the descriptor covers.
func (d Descriptor) Len() int {
	return d.t.Shape()[1]
}

// Splits returns row 0: per-peer row counts.
func (d Descriptor) Splits() []int64 {
	return d.t.AsInt64()[:d.Len()]
}

// Offsets returns row 1: per-peer starting row offsets.
func (d Descriptor) Offsets() []int64 {
	n := d.Len()
	return d.t.AsInt64()[n : 2*n]
}

// Tensor returns the underlying (2, n) int64 tensor.
func (d Descriptor) Tensor() *tensor.RawTensor {
	return d.t
}

// TotalRows returns the sum of the counts row, i.e. the number of occupied
// rows the descriptor accounts for.
func (d Descriptor) TotalRows() int64 {
	var total int64
	for _, s := range d.Splits() {
		total += s
	}
	return total
}

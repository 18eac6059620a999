// Package collective implements the two differentiable variable-length
// all-to-all operators.
//
// Aligned redistributes ragged per-destination chunks given counts only,
// placing received chunks at configurable alignment boundaries; Offset
// redistributes chunks given explicit counts and offsets, packing received
// chunks densely. The two are duals: each one's gradient routing is the
// other's forward kernel.
//
// An operator instance owns two persistent symmetric buffers, the
// maximum-length output buffer and the gradient staging buffer, and must be
// configured exactly once via Init before use. Instances assume a single
// computation stream; they perform no internal locking.
package collective

import (
	"github.com/pkg/errors"

	"github.com/rift-ml/rift/internal/symmem"
	"github.com/rift-ml/rift/internal/tensor"
)

// ErrNotConfigured is returned when an operator is applied before Init.
var ErrNotConfigured = errors.New("operator not configured: call Init first")

// ErrReconfigured is returned when Init is called again with different
// values. Calling Init again with identical values is a no-op.
var ErrReconfigured = errors.New("operator already configured with different values")

// reusableOutput returns the operator's persistent output buffer, allocating
// it on first use. The buffer is sized to maxLen rows of input's trailing
// shape; later calls only reuse it, so an operator instance is bound to the
// dtype and trailing shape of its first input.
func reusableOutput(runtime symmem.Runtime, buf **tensor.RawTensor, maxLen int, input *tensor.RawTensor) (*tensor.RawTensor, error) {
	if len(input.Shape()) == 0 {
		return nil, errors.New("input must have a leading ragged axis")
	}
	if *buf == nil {
		out, err := runtime.Empty(input.Shape().WithLeading(maxLen), input.DType(), input.Device())
		if err != nil {
			return nil, errors.Wrap(err, "allocating output buffer")
		}
		*buf = out
		return out, nil
	}

	out := *buf
	if out.DType() != input.DType() || out.Shape().RowElements() != input.Shape().RowElements() {
		return nil, errors.Errorf("output buffer holds %v %s rows but input has %v %s rows; one operator instance serves one layout",
			out.Shape()[1:], out.DType(), input.Shape()[1:], input.DType())
	}
	return out, nil
}

// freshDescriptor allocates a symmetric (2, n) descriptor for a kernel to
// fill.
func freshDescriptor(runtime symmem.Runtime, n int, device tensor.Device) (symmem.Descriptor, error) {
	t, err := runtime.Empty(tensor.Shape{2, n}, tensor.Int64, device)
	if err != nil {
		return symmem.Descriptor{}, errors.Wrap(err, "allocating output descriptor")
	}
	return symmem.AsDescriptor(t)
}

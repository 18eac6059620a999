package ops

import (
	"github.com/pkg/errors"

	"github.com/rift-ml/rift/internal/symmem"
	"github.com/rift-ml/rift/internal/tensor"
)

// AlignedAllToAllVOp is the graph node of the fixed-alignment variable
// all-to-all. Its backward routes gradients through the offset-based kernel,
// using the descriptor the forward exchange produced: what arrived from a
// peer goes back to that peer, at the position it came from.
type AlignedAllToAllVOp struct {
	runtime symmem.Runtime
	group   string

	input      *tensor.RawTensor
	inputShape tensor.Shape
	output     *tensor.RawTensor
	// Out splits/offsets of the forward exchange; the input-side routing of
	// the backward exchange.
	outDesc symmem.Descriptor

	gradBuf *GradBuffer
}

// NewAlignedAllToAllVOp records the invocation context of one forward call.
func NewAlignedAllToAllVOp(
	runtime symmem.Runtime,
	group string,
	input, output *tensor.RawTensor,
	outDesc symmem.Descriptor,
	gradBuf *GradBuffer,
) *AlignedAllToAllVOp {
	return &AlignedAllToAllVOp{
		runtime:    runtime,
		group:      group,
		input:      input,
		inputShape: input.Shape().Clone(),
		output:     output,
		outDesc:    outDesc,
		gradBuf:    gradBuf,
	}
}

// Inputs returns the redistributed tensor. The splits, group name and
// alignment are not differentiable.
func (op *AlignedAllToAllVOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.input}
}

// Output returns the redistributed output.
func (op *AlignedAllToAllVOp) Output() *tensor.RawTensor {
	return op.output
}

// Outputs returns the redistributed output and its splits/offsets
// descriptor.
func (op *AlignedAllToAllVOp) Outputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.output, op.outDesc.Tensor()}
}

// Backward satisfies Operation; the tape always routes through
// BackwardMulti for multi-output nodes.
func (op *AlignedAllToAllVOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return op.BackwardMulti([]*tensor.RawTensor{outputGrad, nil}, backend)
}

// BackwardMulti performs the inverse shuffle of the incoming gradient. The
// descriptor gradient slot is ignored: routing metadata is not
// differentiable.
func (op *AlignedAllToAllVOp) BackwardMulti(outputGrads []*tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	gradOutput := outputGrads[0]
	if gradOutput == nil {
		return []*tensor.RawTensor{nil}
	}

	staged, err := op.gradBuf.Stage(gradOutput)
	if err != nil {
		panic(errors.Wrap(err, "aligned all-to-all-v backward"))
	}
	defer staged.Release()

	gradInput, gradInDesc, err := allocBackwardBuffers(op.runtime, op.inputShape, gradOutput, op.outDesc.Len())
	if err != nil {
		panic(errors.Wrap(err, "aligned all-to-all-v backward"))
	}

	// The out descriptor of the forward pass is exactly the in descriptor
	// of the gradient exchange. The descriptor computed by the inverse
	// kernel is discarded, the original input layout is already known.
	err = op.runtime.AllToAllVOffsets(staged, gradInput, op.outDesc.Tensor(), gradInDesc.Tensor(), op.group)
	if err != nil {
		panic(errors.Wrap(err, "aligned all-to-all-v backward"))
	}
	return []*tensor.RawTensor{gradInput}
}

// OffsetAllToAllVOp is the graph node of the offset-based variable
// all-to-all. Its backward routes gradients through the splits-only kernel,
// re-deriving offsets from the counts row of the saved descriptor plus the
// operator's configured alignment.
type OffsetAllToAllVOp struct {
	runtime symmem.Runtime
	group   string
	// Alignment of the forward input's offsets, configured on the operator.
	// The splits-only inverse kernel reproduces the input layout from it.
	alignment int

	input      *tensor.RawTensor
	inputShape tensor.Shape
	output     *tensor.RawTensor
	outDesc    symmem.Descriptor

	gradBuf *GradBuffer
}

// NewOffsetAllToAllVOp records the invocation context of one forward call.
func NewOffsetAllToAllVOp(
	runtime symmem.Runtime,
	group string,
	alignment int,
	input, output *tensor.RawTensor,
	outDesc symmem.Descriptor,
	gradBuf *GradBuffer,
) *OffsetAllToAllVOp {
	return &OffsetAllToAllVOp{
		runtime:    runtime,
		group:      group,
		alignment:  alignment,
		input:      input,
		inputShape: input.Shape().Clone(),
		output:     output,
		outDesc:    outDesc,
		gradBuf:    gradBuf,
	}
}

// Inputs returns the redistributed tensor only; the descriptor and group
// name are not differentiable.
func (op *OffsetAllToAllVOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.input}
}

// Output returns the redistributed output.
func (op *OffsetAllToAllVOp) Output() *tensor.RawTensor {
	return op.output
}

// Outputs returns the redistributed output and its splits/offsets
// descriptor.
func (op *OffsetAllToAllVOp) Outputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.output, op.outDesc.Tensor()}
}

// Backward satisfies Operation; the tape always routes through
// BackwardMulti for multi-output nodes.
func (op *OffsetAllToAllVOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return op.BackwardMulti([]*tensor.RawTensor{outputGrad, nil}, backend)
}

// BackwardMulti performs the inverse shuffle of the incoming gradient using
// only the counts row of the saved descriptor; offsets are re-derived by the
// aligned kernel.
func (op *OffsetAllToAllVOp) BackwardMulti(outputGrads []*tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	gradOutput := outputGrads[0]
	if gradOutput == nil {
		return []*tensor.RawTensor{nil}
	}

	staged, err := op.gradBuf.Stage(gradOutput)
	if err != nil {
		panic(errors.Wrap(err, "offset all-to-all-v backward"))
	}
	defer staged.Release()

	// Splits row of the gradient's layout; the offsets row is dropped.
	gradOutSplits, err := tensor.FromSlice(
		append([]int64(nil), op.outDesc.Splits()...),
		tensor.Shape{op.outDesc.Len()}, gradOutput.Device())
	if err != nil {
		panic(errors.Wrap(err, "offset all-to-all-v backward"))
	}

	gradInput, gradInDesc, err := allocBackwardBuffers(op.runtime, op.inputShape, gradOutput, op.outDesc.Len())
	if err != nil {
		panic(errors.Wrap(err, "offset all-to-all-v backward"))
	}

	err = op.runtime.AllToAllVSplits(staged, gradInput, gradOutSplits, gradInDesc.Tensor(), op.group, op.alignment)
	if err != nil {
		panic(errors.Wrap(err, "offset all-to-all-v backward"))
	}
	return []*tensor.RawTensor{gradInput}
}

// allocBackwardBuffers allocates the gradient destination, shaped like the
// original forward input, and a fresh descriptor for the inverse kernel to
// fill.
func allocBackwardBuffers(
	runtime symmem.Runtime,
	inputShape tensor.Shape,
	gradOutput *tensor.RawTensor,
	peers int,
) (*tensor.RawTensor, symmem.Descriptor, error) {
	gradInput, err := runtime.Empty(inputShape, gradOutput.DType(), gradOutput.Device())
	if err != nil {
		return nil, symmem.Descriptor{}, errors.Wrap(err, "allocating input gradient")
	}
	descTensor, err := runtime.Empty(tensor.Shape{2, peers}, tensor.Int64, gradOutput.Device())
	if err != nil {
		return nil, symmem.Descriptor{}, errors.Wrap(err, "allocating gradient descriptor")
	}
	desc, err := symmem.AsDescriptor(descTensor)
	if err != nil {
		return nil, symmem.Descriptor{}, err
	}
	return gradInput, desc, nil
}

// Package ops defines the differentiable graph nodes of the library.
//
// Each node records its forward inputs and outputs plus whatever routing
// state the backward pass needs, and computes input gradients when the tape
// walks backwards. The collective nodes here are duals of each other: the
// backward of the aligned shuffle invokes the offset-based kernel, and the
// backward of the offset-based shuffle invokes the aligned kernel.
package ops

import "github.com/rift-ml/rift/internal/tensor"

// Operation represents a differentiable operation in the computation graph.
type Operation interface {
	// Backward computes gradients for inputs given the output gradient.
	// Returns a slice of gradients corresponding to each input tensor.
	Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor

	// Inputs returns the differentiable input tensors for this operation.
	// Non-differentiable arguments (splits, descriptors, group names) are
	// not inputs.
	Inputs() []*tensor.RawTensor

	// Output returns the primary output tensor produced by this operation.
	Output() *tensor.RawTensor
}

// MultiOutputOperation represents an operation that produces multiple
// outputs. The collective shuffles are such operations: they produce the
// redistributed data plus its splits/offsets descriptor. The tape collects
// gradients for all outputs before calling BackwardMulti.
type MultiOutputOperation interface {
	Operation

	// Outputs returns all output tensors produced by this operation.
	Outputs() []*tensor.RawTensor

	// BackwardMulti computes input gradients given gradients for ALL
	// outputs, in the order of Outputs(). Entries may be nil when no
	// gradient flowed to that output.
	BackwardMulti(outputGrads []*tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor
}

// Package cpu implements the CPU backend used for local gradient math.
package cpu

import (
	"fmt"

	"github.com/rift-ml/rift/internal/tensor"
)

// CPUBackend implements tensor.Backend on host memory.
type CPUBackend struct {
	device tensor.Device
}

// New creates a new CPU backend.
func New() *CPUBackend {
	return &CPUBackend{
		device: tensor.CPU,
	}
}

// Name returns the backend name.
func (cpu *CPUBackend) Name() string {
	return "CPU"
}

// Device returns the compute device.
func (cpu *CPUBackend) Device() tensor.Device {
	return cpu.device
}

// Add performs element-wise addition. Both operands must have the same shape
// and dtype. When a is uniquely referenced the addition happens in place.
func (cpu *CPUBackend) Add(a, b *tensor.RawTensor) *tensor.RawTensor {
	if !a.Shape().Equal(b.Shape()) {
		panic(fmt.Sprintf("add: shape mismatch %v vs %v", a.Shape(), b.Shape()))
	}
	if a.DType() != b.DType() {
		panic(fmt.Sprintf("add: dtype mismatch %s vs %s", a.DType(), b.DType()))
	}

	if a.IsUnique() {
		addInto(a, a, b)
		return a
	}

	result, err := tensor.NewRaw(a.Shape(), a.DType(), cpu.device)
	if err != nil {
		panic(fmt.Sprintf("add: failed to create result tensor: %v", err))
	}
	addInto(result, a, b)
	return result
}

func addInto(dst, a, b *tensor.RawTensor) {
	switch a.DType() {
	case tensor.Float32:
		av, bv, dv := a.AsFloat32(), b.AsFloat32(), dst.AsFloat32()
		for i := range dv {
			dv[i] = av[i] + bv[i]
		}
	case tensor.Float64:
		av, bv, dv := a.AsFloat64(), b.AsFloat64(), dst.AsFloat64()
		for i := range dv {
			dv[i] = av[i] + bv[i]
		}
	case tensor.Int32:
		av, bv, dv := a.AsInt32(), b.AsInt32(), dst.AsInt32()
		for i := range dv {
			dv[i] = av[i] + bv[i]
		}
	case tensor.Int64:
		av, bv, dv := a.AsInt64(), b.AsInt64(), dst.AsInt64()
		for i := range dv {
			dv[i] = av[i] + bv[i]
		}
	default:
		panic("add: unsupported dtype")
	}
}

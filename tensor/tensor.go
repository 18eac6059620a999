// Copyright 2025 The Rift Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the low-level tensor type the shuffle operators
// move around: a contiguous, reference-counted buffer with shape, dtype and
// device information plus leading-axis views.
//
// Example:
//
//	raw, _ := tensor.NewRaw(tensor.Shape{8, 2}, tensor.Float32, tensor.CPU)
//	view := raw.Narrow(0, 3) // first 3 rows, shares the allocation
package tensor

import (
	"github.com/rift-ml/rift/internal/tensor"
)

// RawTensor is the low-level tensor representation.
//
// RawTensor provides:
//   - Shape and type information via Shape(), DType(), Device()
//   - Type-safe data access via AsFloat32(), AsInt64(), etc.
//   - Leading-axis views via Narrow()
//   - Reference counting via Clone() and Release()
type RawTensor = tensor.RawTensor

// Shape represents the dimensions of a tensor; the leading dimension is the
// ragged axis redistributed by the collective operators.
type Shape = tensor.Shape

// DataType represents runtime type information for tensors.
type DataType = tensor.DataType

// Supported data types.
const (
	Float32 = tensor.Float32
	Float64 = tensor.Float64
	Int32   = tensor.Int32
	Int64   = tensor.Int64
)

// Device represents the compute device for tensor data.
type Device = tensor.Device

// Supported devices.
const (
	CPU  = tensor.CPU
	CUDA = tensor.CUDA
)

// Backend performs the local tensor math the gradient tape needs.
type Backend = tensor.Backend

// NewRaw creates a new zero-initialized RawTensor.
func NewRaw(shape Shape, dtype DataType, device Device) (*RawTensor, error) {
	return tensor.NewRaw(shape, dtype, device)
}

// FromSlice creates a RawTensor from a Go slice, copying the data.
func FromSlice[T tensor.DType](data []T, shape Shape, device Device) (*RawTensor, error) {
	return tensor.FromSlice(data, shape, device)
}

// Zeros creates a zero-filled RawTensor with the element type of T.
func Zeros[T tensor.DType](shape Shape, device Device) (*RawTensor, error) {
	return tensor.Zeros[T](shape, device)
}

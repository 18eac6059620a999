package tensor

import "fmt"

// FromSlice creates a RawTensor from a Go slice, copying the data.
// The slice length must match the shape's element count.
func FromSlice[T DType](data []T, shape Shape, device Device) (*RawTensor, error) {
	var dummy T
	dtype := inferDataType(dummy)

	if len(data) != shape.NumElements() {
		return nil, fmt.Errorf("data length %d does not match shape %v (%d elements)",
			len(data), shape, shape.NumElements())
	}

	t, err := NewRaw(shape, dtype, device)
	if err != nil {
		return nil, err
	}

	switch dtype {
	case Float32:
		copy(t.AsFloat32(), any(data).([]float32))
	case Float64:
		copy(t.AsFloat64(), any(data).([]float64))
	case Int32:
		copy(t.AsInt32(), any(data).([]int32))
	case Int64:
		copy(t.AsInt64(), any(data).([]int64))
	}
	return t, nil
}

// Zeros creates a zero-filled RawTensor with the element type of T.
func Zeros[T DType](shape Shape, device Device) (*RawTensor, error) {
	var dummy T
	return NewRaw(shape, inferDataType(dummy), device)
}

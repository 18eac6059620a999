package tensor

// Backend performs the local tensor math this library needs outside of the
// collective kernels themselves. The gradient tape uses Add to accumulate
// gradients when a tensor feeds multiple operations.
type Backend interface {
	// Name returns a human-readable backend name.
	Name() string

	// Device returns the compute device this backend operates on.
	Device() Device

	// Add performs element-wise addition. Implementations may reuse one of
	// the operands when it is uniquely referenced.
	Add(a, b *RawTensor) *RawTensor
}

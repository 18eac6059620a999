package ops

import (
	"github.com/pkg/errors"

	"github.com/rift-ml/rift/internal/symmem"
	"github.com/rift-ml/rift/internal/tensor"
)

// GradBuffer is the persistent symmetric buffer an operator stages incoming
// output gradients into before running the inverse collective. It is
// allocated once, sized to the operator's configured maximum output length,
// and narrowed to the actual gradient length on every backward call.
//
// One GradBuffer belongs to exactly one operator instance and assumes a
// single computation stream: concurrent Stage calls would race on the shared
// allocation.
type GradBuffer struct {
	runtime symmem.Runtime
	maxLen  int
	buf     *tensor.RawTensor
}

// NewGradBuffer creates an empty staging buffer bound to a runtime. The
// allocation itself is deferred until the first gradient arrives, because
// the trailing shape and dtype are not known before then.
func NewGradBuffer(runtime symmem.Runtime, maxLen int) *GradBuffer {
	return &GradBuffer{runtime: runtime, maxLen: maxLen}
}

// Stage copies grad into the persistent buffer and returns a view narrowed
// to grad's leading dimension. The returned view aliases the buffer and is
// only valid until the next Stage call.
func (g *GradBuffer) Stage(grad *tensor.RawTensor) (*tensor.RawTensor, error) {
	rows := grad.Shape()[0]
	if rows > g.maxLen {
		return nil, errors.Errorf("gradient has %d rows, exceeding the configured maximum output length %d",
			rows, g.maxLen)
	}

	if g.buf == nil {
		buf, err := g.runtime.Empty(grad.Shape().WithLeading(g.maxLen), grad.DType(), grad.Device())
		if err != nil {
			return nil, errors.Wrap(err, "allocating gradient staging buffer")
		}
		g.buf = buf
	}

	view := g.buf.Narrow(0, rows)
	if err := view.CopyFrom(grad); err != nil {
		view.Release()
		return nil, errors.Wrap(err, "staging gradient")
	}
	return view, nil
}

// Allocated reports whether the staging buffer has been materialized yet.
func (g *GradBuffer) Allocated() bool {
	return g.buf != nil
}

// Reset releases the staged allocation; the next Stage call reallocates.
func (g *GradBuffer) Reset() {
	if g.buf != nil {
		g.buf.Release()
		g.buf = nil
	}
}

package collective

import (
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/rift-ml/rift/internal/autodiff"
	"github.com/rift-ml/rift/internal/autodiff/ops"
	"github.com/rift-ml/rift/internal/symmem"
	"github.com/rift-ml/rift/internal/tensor"
)

// Offset is the offset-based variable all-to-all operator. Forward takes an
// explicit splits-and-offsets descriptor instead of implicit alignment;
// received chunks are packed densely. Backward shuffles gradients back
// through the splits-only kernel, passing the alignment configured at Init:
// the saved descriptor's offsets row is dropped, so the inverse kernel must
// re-derive the forward input's placement from its counts plus that
// alignment.
type Offset struct {
	id      uuid.UUID
	runtime symmem.Runtime

	maxOutputLen int
	alignment    int
	configured   bool

	outputBuf *tensor.RawTensor
	gradBuf   *ops.GradBuffer
}

// NewOffset creates an unconfigured operator bound to a runtime.
func NewOffset(runtime symmem.Runtime) *Offset {
	return &Offset{
		id:      uuid.New(),
		runtime: runtime,
	}
}

// Init sets the upper bound on redistributed output length and the alignment
// of the forward input's offsets, used only during backward. It must be
// called once before Apply; calling it again with the same values is a no-op
// and with different values an error.
func (o *Offset) Init(maxOutputLen, alignment int) error {
	if maxOutputLen <= 0 {
		return errors.Errorf("maximum output length must be positive, got %d", maxOutputLen)
	}
	if o.configured {
		if o.maxOutputLen == maxOutputLen && o.alignment == alignment {
			return nil
		}
		return errors.Wrapf(ErrReconfigured, "(maxOutputLen, alignment) (%d, %d) vs (%d, %d)",
			o.maxOutputLen, o.alignment, maxOutputLen, alignment)
	}
	o.maxOutputLen = maxOutputLen
	o.alignment = alignment
	o.configured = true
	klog.V(1).Infof("offset all-to-all-v %s: configured maxOutputLen=%d alignment=%d",
		o.id, maxOutputLen, alignment)
	return nil
}

// MaxOutputLen returns the configured bound, or 0 before Init.
func (o *Offset) MaxOutputLen() int {
	return o.maxOutputLen
}

// Alignment returns the configured backward alignment.
func (o *Offset) Alignment() int {
	return o.alignment
}

// Apply performs the forward shuffle and, when a recording tape is given,
// registers the gradient routing for the backward pass.
//
// inSplitsOffsets describes, per destination, how many rows to send and
// where they start in input. The returned output is the operator's
// persistent maximum-length buffer: only the prefix described by the
// returned descriptor is meaningful.
func (o *Offset) Apply(
	tape *autodiff.GradientTape,
	input *tensor.RawTensor,
	inSplitsOffsets symmem.Descriptor,
	group string,
) (*tensor.RawTensor, symmem.Descriptor, error) {
	if !o.configured {
		return nil, symmem.Descriptor{}, errors.Wrap(ErrNotConfigured, "offset all-to-all-v")
	}

	output, err := reusableOutput(o.runtime, &o.outputBuf, o.maxOutputLen, input)
	if err != nil {
		return nil, symmem.Descriptor{}, err
	}

	outDesc, err := freshDescriptor(o.runtime, inSplitsOffsets.Len(), input.Device())
	if err != nil {
		return nil, symmem.Descriptor{}, err
	}

	err = o.runtime.AllToAllVOffsets(input, output, inSplitsOffsets.Tensor(), outDesc.Tensor(), group)
	if err != nil {
		return nil, symmem.Descriptor{}, errors.Wrap(err, "offset all-to-all-v")
	}
	klog.V(2).Infof("offset all-to-all-v %s: shuffled %d rows on group %q",
		o.id, outDesc.TotalRows(), group)

	if tape != nil && tape.IsRecording() {
		if o.gradBuf == nil {
			o.gradBuf = ops.NewGradBuffer(o.runtime, o.maxOutputLen)
		}
		tape.Record(ops.NewOffsetAllToAllVOp(o.runtime, group, o.alignment, input, output, outDesc, o.gradBuf))
	}
	return output, outDesc, nil
}

// Reset releases the persistent buffers. The configuration is kept; the next
// Apply reallocates.
func (o *Offset) Reset() {
	if o.outputBuf != nil {
		o.outputBuf.Release()
		o.outputBuf = nil
	}
	if o.gradBuf != nil {
		o.gradBuf.Reset()
		o.gradBuf = nil
	}
}

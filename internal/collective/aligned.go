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

// Aligned is the fixed-alignment variable all-to-all operator. Forward takes
// per-destination row counts and shuffles the input so each worker ends up
// with the concatenation of the chunks sent to it, every source chunk placed
// at an offset rounded up to the call's major alignment. Backward shuffles
// gradients back through the offset-based kernel.
type Aligned struct {
	id      uuid.UUID
	runtime symmem.Runtime

	maxOutputLen int
	configured   bool

	outputBuf *tensor.RawTensor
	gradBuf   *ops.GradBuffer
}

// NewAligned creates an unconfigured operator bound to a runtime.
func NewAligned(runtime symmem.Runtime) *Aligned {
	return &Aligned{
		id:      uuid.New(),
		runtime: runtime,
	}
}

// Init sets the upper bound on redistributed output length. It must be
// called once before Apply; calling it again with the same value is a no-op
// and with a different value an error.
func (a *Aligned) Init(maxOutputLen int) error {
	if maxOutputLen <= 0 {
		return errors.Errorf("maximum output length must be positive, got %d", maxOutputLen)
	}
	if a.configured {
		if a.maxOutputLen == maxOutputLen {
			return nil
		}
		return errors.Wrapf(ErrReconfigured, "maxOutputLen %d vs %d", a.maxOutputLen, maxOutputLen)
	}
	a.maxOutputLen = maxOutputLen
	a.configured = true
	klog.V(1).Infof("aligned all-to-all-v %s: configured maxOutputLen=%d", a.id, maxOutputLen)
	return nil
}

// MaxOutputLen returns the configured bound, or 0 before Init.
func (a *Aligned) MaxOutputLen() int {
	return a.maxOutputLen
}

// Apply performs the forward shuffle and, when a recording tape is given,
// registers the gradient routing for the backward pass.
//
// input's leading dimension is the ragged axis; inputSplits is a rank-1
// int64 tensor of per-destination row counts. The returned output is the
// operator's persistent maximum-length buffer: only the prefix described by
// the returned descriptor is meaningful, the rest is leftover from the
// allocation or a prior call.
func (a *Aligned) Apply(
	tape *autodiff.GradientTape,
	input, inputSplits *tensor.RawTensor,
	group string,
	majorAlign int,
) (*tensor.RawTensor, symmem.Descriptor, error) {
	if !a.configured {
		return nil, symmem.Descriptor{}, errors.Wrap(ErrNotConfigured, "aligned all-to-all-v")
	}

	output, err := reusableOutput(a.runtime, &a.outputBuf, a.maxOutputLen, input)
	if err != nil {
		return nil, symmem.Descriptor{}, err
	}

	splitsShape := inputSplits.Shape()
	if len(splitsShape) != 1 {
		return nil, symmem.Descriptor{}, errors.Errorf("input splits must be rank 1, got shape %v", splitsShape)
	}
	outDesc, err := freshDescriptor(a.runtime, splitsShape[0], input.Device())
	if err != nil {
		return nil, symmem.Descriptor{}, err
	}

	err = a.runtime.AllToAllVSplits(input, output, inputSplits, outDesc.Tensor(), group, majorAlign)
	if err != nil {
		return nil, symmem.Descriptor{}, errors.Wrap(err, "aligned all-to-all-v")
	}
	klog.V(2).Infof("aligned all-to-all-v %s: shuffled %d rows on group %q (align %d)",
		a.id, outDesc.TotalRows(), group, majorAlign)

	if tape != nil && tape.IsRecording() {
		if a.gradBuf == nil {
			a.gradBuf = ops.NewGradBuffer(a.runtime, a.maxOutputLen)
		}
		tape.Record(ops.NewAlignedAllToAllVOp(a.runtime, group, input, output, outDesc, a.gradBuf))
	}
	return output, outDesc, nil
}

// Reset releases the persistent buffers. The configuration is kept; the next
// Apply reallocates.
func (a *Aligned) Reset() {
	if a.outputBuf != nil {
		a.outputBuf.Release()
		a.outputBuf = nil
	}
	if a.gradBuf != nil {
		a.gradBuf.Reset()
		a.gradBuf = nil
	}
}

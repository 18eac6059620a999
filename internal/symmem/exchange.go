package symmem

import (
	"github.com/pkg/errors"

	"github.com/rift-ml/rift/internal/parallel"
	"github.com/rift-ml/rift/internal/tensor"
)

// contribution is one rank's view of a collective round: its input and output
// symmetric buffers, its routing tensor (rank-1 splits or a (2, n) splits and
// offsets descriptor, depending on the kernel), and the descriptor the kernel
// fills with receiver-side routing.
type contribution struct {
	input   *tensor.RawTensor
	output  *tensor.RawTensor
	routing *tensor.RawTensor
	outDesc Descriptor
}

// alignUp rounds x up to the next multiple of align. Align values <= 1 leave
// x unchanged.
func alignUp(x int64, align int) int64 {
	if align <= 1 {
		return x
	}
	a := int64(align)
	return (x + a - 1) / a * a
}

// exchangeGeometry validates that every contribution agrees on dtype and
// trailing shape and returns the byte width of one row of the ragged axis.
func exchangeGeometry(contribs []*contribution) (int, error) {
	ref := contribs[0].input
	if len(ref.Shape()) == 0 {
		return 0, errors.New("exchange input must have a leading ragged axis")
	}
	rowBytes := ref.Shape().RowElements() * ref.DType().Size()

	for rank, c := range contribs {
		for _, t := range []*tensor.RawTensor{c.input, c.output} {
			if t.DType() != ref.DType() {
				return 0, errors.Errorf("rank %d: dtype %s differs from rank 0's %s",
					rank, t.DType(), ref.DType())
			}
			if len(t.Shape()) == 0 || t.Shape().RowElements() != ref.Shape().RowElements() {
				return 0, errors.Errorf("rank %d: trailing shape of %v incompatible with rank 0's %v",
					rank, t.Shape(), ref.Shape())
			}
		}
	}
	return rowBytes, nil
}

// destPlan is the receiver-side routing for one destination rank: how many
// rows arrive from each source and where each source's chunk starts.
type destPlan struct {
	counts   []int64
	offsets  []int64
	srcStart []int64 // row offset of the chunk within each source's input
	required int64   // rows of output the plan occupies
}

// planSplits computes receiver placement for the splits-only kernel: source
// chunks are read at dense prefix-sum positions and land on the receiver at
// offsets aligned up to majorAlign.
func planSplits(contribs []*contribution, majorAlign int) ([]destPlan, error) {
	n := len(contribs)

	// Per-source splits and dense input-side offsets.
	splits := make([][]int64, n)
	srcOff := make([][]int64, n)
	for i, c := range contribs {
		shape := c.routing.Shape()
		if len(shape) != 1 || shape[0] != n {
			return nil, errors.Errorf("rank %d: input splits must have shape (%d,), got %v", i, n, shape)
		}
		if c.routing.DType() != tensor.Int64 {
			return nil, errors.Errorf("rank %d: input splits must be int64, got %s", i, c.routing.DType())
		}
		splits[i] = c.routing.AsInt64()
		srcOff[i] = make([]int64, n)
		var cur int64
		for j, s := range splits[i] {
			if s < 0 {
				return nil, errors.Errorf("rank %d: negative split %d for destination %d", i, s, j)
			}
			srcOff[i][j] = cur
			cur += s
		}
		if cur > int64(c.input.Shape()[0]) {
			return nil, errors.Errorf("rank %d: splits sum to %d rows but input has %d",
				i, cur, c.input.Shape()[0])
		}
	}

	plans := make([]destPlan, n)
	for k := range contribs {
		plan := destPlan{
			counts:   make([]int64, n),
			offsets:  make([]int64, n),
			srcStart: make([]int64, n),
		}
		var cur int64
		for i := 0; i < n; i++ {
			plan.counts[i] = splits[i][k]
			plan.offsets[i] = cur
			plan.srcStart[i] = srcOff[i][k]
			if end := cur + plan.counts[i]; end > plan.required {
				plan.required = end
			}
			cur = alignUp(cur+plan.counts[i], majorAlign)
		}
		if plan.required > int64(contribs[k].output.Shape()[0]) {
			return nil, errors.Errorf("destination rank %d: exchange needs %d rows but output buffer holds %d",
				k, plan.required, contribs[k].output.Shape()[0])
		}
		plans[k] = plan
	}
	return plans, nil
}

// planOffsets computes receiver placement for the explicit-offsets kernel:
// source chunks are read at caller-given positions and land on the receiver
// densely packed.
func planOffsets(contribs []*contribution) ([]destPlan, error) {
	n := len(contribs)

	descs := make([]Descriptor, n)
	for i, c := range contribs {
		d, err := AsDescriptor(c.routing)
		if err != nil {
			return nil, errors.Wrapf(err, "rank %d", i)
		}
		if d.Len() != n {
			return nil, errors.Errorf("rank %d: descriptor covers %d peers, group has %d", i, d.Len(), n)
		}
		inRows := int64(c.input.Shape()[0])
		for j := 0; j < n; j++ {
			cnt, off := d.Splits()[j], d.Offsets()[j]
			if cnt < 0 || off < 0 || off+cnt > inRows {
				return nil, errors.Errorf("rank %d: chunk [%d:%d] for destination %d out of range for input with %d rows",
					i, off, off+cnt, j, inRows)
			}
		}
		descs[i] = d
	}

	plans := make([]destPlan, n)
	for k := range contribs {
		plan := destPlan{
			counts:   make([]int64, n),
			offsets:  make([]int64, n),
			srcStart: make([]int64, n),
		}
		var cur int64
		for i := 0; i < n; i++ {
			plan.counts[i] = descs[i].Splits()[k]
			plan.srcStart[i] = descs[i].Offsets()[k]
			plan.offsets[i] = cur
			cur += plan.counts[i]
		}
		plan.required = cur
		if plan.required > int64(contribs[k].output.Shape()[0]) {
			return nil, errors.Errorf("destination rank %d: exchange needs %d rows but output buffer holds %d",
				k, plan.required, contribs[k].output.Shape()[0])
		}
		plans[k] = plan
	}
	return plans, nil
}

// scatter executes the planned byte movement. Each destination's output and
// out descriptor are written by exactly one iteration, so the fan-out is safe.
func scatter(contribs []*contribution, plans []destPlan, rowBytes int, cfg parallel.Config) {
	parallel.For(len(contribs), func(k int) {
		plan := plans[k]
		dst := contribs[k].output.Data()
		for i, c := range contribs {
			if plan.counts[i] == 0 {
				continue
			}
			src := c.input.Data()
			nb := int(plan.counts[i]) * rowBytes
			srcOff := int(plan.srcStart[i]) * rowBytes
			dstOff := int(plan.offsets[i]) * rowBytes
			copy(dst[dstOff:dstOff+nb], src[srcOff:srcOff+nb])
		}
		copy(contribs[k].outDesc.Splits(), plan.counts)
		copy(contribs[k].outDesc.Offsets(), plan.offsets)
	}, cfg)
}

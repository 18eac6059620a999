package symmem

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rift-ml/rift/internal/tensor"
)

func TestAlignUp(t *testing.T) {
	tests := []struct {
		x     int64
		align int
		want  int64
	}{
		{0, 4, 0},
		{1, 4, 4},
		{4, 4, 4},
		{5, 4, 8},
		{7, 1, 7},
		{7, 0, 7},
		{7, -3, 7},
		{13, 8, 16},
	}
	for _, tt := range tests {
		if got := alignUp(tt.x, tt.align); got != tt.want {
			t.Errorf("alignUp(%d, %d) = %d, want %d", tt.x, tt.align, got, tt.want)
		}
	}
}

// makeContribution builds one rank's buffers directly, bypassing the runtime.
func makeContribution(t *testing.T, inRows, outRows, n int, routing *tensor.RawTensor) *contribution {
	t.Helper()
	input, err := tensor.NewRaw(tensor.Shape{inRows, 1}, tensor.Float32, tensor.CPU)
	require.NoError(t, err)
	output, err := tensor.NewRaw(tensor.Shape{outRows, 1}, tensor.Float32, tensor.CPU)
	require.NoError(t, err)
	outDesc, err := NewDescriptor(n, tensor.CPU)
	require.NoError(t, err)
	return &contribution{input: input, output: output, routing: routing, outDesc: outDesc}
}

func splitsTensor(t *testing.T, splits []int64) *tensor.RawTensor {
	t.Helper()
	raw, err := tensor.FromSlice(splits, tensor.Shape{len(splits)}, tensor.CPU)
	require.NoError(t, err)
	return raw
}

func TestPlanSplits_AlignedPlacement(t *testing.T) {
	// Two ranks; rank 0 sends [3, 1], rank 1 sends [2, 2]. With alignment 4,
	// the second source chunk on every destination starts at a multiple of 4.
	contribs := []*contribution{
		makeContribution(t, 4, 16, 2, splitsTensor(t, []int64{3, 1})),
		makeContribution(t, 4, 16, 2, splitsTensor(t, []int64{2, 2})),
	}

	plans, err := planSplits(contribs, 4)
	require.NoError(t, err)

	assert.Equal(t, []int64{3, 2}, plans[0].counts)
	assert.Equal(t, []int64{0, 4}, plans[0].offsets)
	assert.Equal(t, int64(6), plans[0].required)

	assert.Equal(t, []int64{1, 2}, plans[1].counts)
	assert.Equal(t, []int64{0, 4}, plans[1].offsets)
	// Source-side read positions follow dense prefix sums.
	assert.Equal(t, []int64{3, 2}, plans[1].srcStart)
}

func TestPlanSplits_NoPaddingWithAlignOne(t *testing.T) {
	contribs := []*contribution{
		makeContribution(t, 4, 8, 2, splitsTensor(t, []int64{3, 1})),
		makeContribution(t, 4, 8, 2, splitsTensor(t, []int64{2, 2})),
	}

	plans, err := planSplits(contribs, 1)
	require.NoError(t, err)
	assert.Equal(t, []int64{0, 3}, plans[0].offsets)
	assert.Equal(t, int64(5), plans[0].required)
}

func TestPlanSplits_Errors(t *testing.T) {
	t.Run("splits exceed input rows", func(t *testing.T) {
		contribs := []*contribution{
			makeContribution(t, 2, 8, 2, splitsTensor(t, []int64{3, 1})),
			makeContribution(t, 4, 8, 2, splitsTensor(t, []int64{2, 2})),
		}
		_, err := planSplits(contribs, 1)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "splits sum to")
	})

	t.Run("negative split", func(t *testing.T) {
		contribs := []*contribution{
			makeContribution(t, 4, 8, 2, splitsTensor(t, []int64{-1, 1})),
			makeContribution(t, 4, 8, 2, splitsTensor(t, []int64{2, 2})),
		}
		_, err := planSplits(contribs, 1)
		require.Error(t, err)
	})

	t.Run("output capacity exceeded", func(t *testing.T) {
		contribs := []*contribution{
			makeContribution(t, 4, 3, 2, splitsTensor(t, []int64{2, 2})),
			makeContribution(t, 4, 3, 2, splitsTensor(t, []int64{2, 2})),
		}
		_, err := planSplits(contribs, 1)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "output buffer holds")
	})

	t.Run("wrong splits arity", func(t *testing.T) {
		contribs := []*contribution{
			makeContribution(t, 4, 8, 2, splitsTensor(t, []int64{2, 1, 1})),
			makeContribution(t, 4, 8, 2, splitsTensor(t, []int64{2, 2})),
		}
		_, err := planSplits(contribs, 1)
		require.Error(t, err)
	})
}

func TestPlanSplits_BoundaryExactCapacity(t *testing.T) {
	// Splits summing to exactly the output capacity succeed.
	contribs := []*contribution{
		makeContribution(t, 4, 4, 2, splitsTensor(t, []int64{2, 2})),
		makeContribution(t, 4, 4, 2, splitsTensor(t, []int64{2, 2})),
	}
	plans, err := planSplits(contribs, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(4), plans[0].required)
}

func TestPlanOffsets_DensePacking(t *testing.T) {
	desc := func(splits, offsets []int64) *tensor.RawTensor {
		raw, err := tensor.FromSlice(append(append([]int64{}, splits...), offsets...),
			tensor.Shape{2, len(splits)}, tensor.CPU)
		require.NoError(t, err)
		return raw
	}

	// Chunks read from explicit, gapped positions; receiver packs densely.
	contribs := []*contribution{
		makeContribution(t, 8, 8, 2, desc([]int64{3, 1}, []int64{0, 4})),
		makeContribution(t, 8, 8, 2, desc([]int64{2, 2}, []int64{0, 4})),
	}

	plans, err := planOffsets(contribs)
	require.NoError(t, err)

	assert.Equal(t, []int64{3, 2}, plans[0].counts)
	assert.Equal(t, []int64{0, 3}, plans[0].offsets)
	assert.Equal(t, []int64{0, 0}, plans[0].srcStart)

	assert.Equal(t, []int64{1, 2}, plans[1].counts)
	assert.Equal(t, []int64{0, 1}, plans[1].offsets)
	assert.Equal(t, []int64{4, 4}, plans[1].srcStart)
}

func TestPlanOffsets_ChunkOutOfRange(t *testing.T) {
	desc, err := tensor.FromSlice([]int64{3, 1, 0, 6}, tensor.Shape{2, 2}, tensor.CPU)
	require.NoError(t, err)
	contribs := []*contribution{
		makeContribution(t, 6, 8, 2, desc),
		makeContribution(t, 6, 8, 2, desc.Clone()),
	}
	_, err = planOffsets(contribs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of range")
}

func TestExchangeGeometry_Mismatch(t *testing.T) {
	a := makeContribution(t, 4, 8, 2, splitsTensor(t, []int64{2, 2}))
	b := makeContribution(t, 4, 8, 2, splitsTensor(t, []int64{2, 2}))
	wide, err := tensor.NewRaw(tensor.Shape{4, 3}, tensor.Float32, tensor.CPU)
	require.NoError(t, err)
	b.input = wide

	_, err = exchangeGeometry([]*contribution{a, b})
	require.Error(t, err)
}

func TestDescriptor(t *testing.T) {
	d, err := NewDescriptor(3, tensor.CPU)
	require.NoError(t, err)
	copy(d.Splits(), []int64{2, 0, 5})
	copy(d.Offsets(), []int64{0, 4, 4})

	assert.Equal(t, 3, d.Len())
	assert.Equal(t, int64(7), d.TotalRows())
	assert.Equal(t, []int64{2, 0, 5, 0, 4, 4}, d.Tensor().AsInt64())

	bad, err := tensor.NewRaw(tensor.Shape{3, 2}, tensor.Int64, tensor.CPU)
	require.NoError(t, err)
	_, err = AsDescriptor(bad)
	require.Error(t, err)
}

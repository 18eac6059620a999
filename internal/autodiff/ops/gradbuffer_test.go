package ops

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rift-ml/rift/internal/symmem"
	"github.com/rift-ml/rift/internal/tensor"
)

func stagePeer(t *testing.T) (*symmem.LocalRuntime, *symmem.Peer) {
	t.Helper()
	rt, err := symmem.NewLocalRuntime(1)
	require.NoError(t, err)
	peer, err := rt.Peer(0)
	require.NoError(t, err)
	return rt, peer
}

func TestGradBuffer_AllocatesOnceAndNarrows(t *testing.T) {
	rt, peer := stagePeer(t)
	g := NewGradBuffer(peer, 8)
	assert.False(t, g.Allocated())

	grad1, err := tensor.FromSlice([]float32{1, 2, 3, 4}, tensor.Shape{2, 2}, tensor.CPU)
	require.NoError(t, err)
	staged1, err := g.Stage(grad1)
	require.NoError(t, err)
	assert.True(t, g.Allocated())
	assert.True(t, staged1.Shape().Equal(tensor.Shape{2, 2}))
	assert.Equal(t, []float32{1, 2, 3, 4}, staged1.AsFloat32())
	staged1.Release()

	// A longer gradient reuses the same allocation, only the view grows.
	grad2, err := tensor.FromSlice([]float32{9, 9, 9, 9, 9, 9}, tensor.Shape{3, 2}, tensor.CPU)
	require.NoError(t, err)
	staged2, err := g.Stage(grad2)
	require.NoError(t, err)
	assert.True(t, staged2.Shape().Equal(tensor.Shape{3, 2}))
	staged2.Release()

	_, bytes := rt.AllocStats()
	assert.Equal(t, int64(8*2*4), bytes, "staging buffer must be allocated exactly once")
}

func TestGradBuffer_RejectsOversizedGradient(t *testing.T) {
	_, peer := stagePeer(t)
	g := NewGradBuffer(peer, 2)

	grad, err := tensor.Zeros[float32](tensor.Shape{3, 1}, tensor.CPU)
	require.NoError(t, err)
	_, err = g.Stage(grad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "maximum output length")
}

func TestGradBuffer_Reset(t *testing.T) {
	_, peer := stagePeer(t)
	g := NewGradBuffer(peer, 4)

	grad, err := tensor.Zeros[float32](tensor.Shape{1, 1}, tensor.CPU)
	require.NoError(t, err)
	staged, err := g.Stage(grad)
	require.NoError(t, err)
	staged.Release()

	g.Reset()
	assert.False(t, g.Allocated())
}
